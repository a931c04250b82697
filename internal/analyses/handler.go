package analyses

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"ideascope-backend/internal/aiservice"
	"ideascope-backend/internal/shared/server/middleware"
	"ideascope-backend/internal/shared/server/respond"
)

const (
	PathSubmit   = "/projects/analyses/overview"
	PathStatus   = "/projects/analyses/overview/status"
	PathOverview = "/projects/:id/analysis-overview"
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST(PathSubmit, h.submit)
	rg.GET(PathStatus, h.watch)
	rg.GET(PathOverview, h.getOverview)
}

type submitRequest struct {
	Problem  string `json:"problem"`
	Solution string `json:"solution"`
}

type submitResponse struct {
	TaskID string `json:"task_id"`
}

type progressFrame struct {
	IsComplete bool    `json:"is_complete"`
	Progress   float64 `json:"progress"`
	Message    string  `json:"message"`
}

type completeFrame struct {
	IsComplete bool        `json:"is_complete"`
	Result     CacheResult `json:"result"`
}

type errorFrame struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) submit(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	taskID, err := h.Svc.Submit(c.Request.Context(), userID, aiservice.Idea{Problem: req.Problem, Solution: req.Solution})
	if err != nil {
		if errors.Is(err, ErrInvalidIdea) {
			respond.Error(c, http.StatusBadRequest, "validation_error", strings.TrimPrefix(err.Error(), ErrInvalidIdea.Error()+": "), nil)
			return
		}
		respondDomainError(c, err)
		return
	}
	c.Set("taskId", taskID)
	respond.Accepted(c, submitResponse{TaskID: taskID})
}

func (h *Handler) watch(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	taskID := strings.TrimSpace(c.Query("task_id"))
	if taskID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "task_id is required", nil)
		return
	}
	c.Set("taskId", taskID)

	events, err := h.Svc.Watch(c.Request.Context(), userID, taskID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.Render(-1, sseFrame(ev))
		return !ev.Terminal()
	})
}

func sseFrame(ev WatchEvent) sse.Event {
	switch {
	case ev.Err != nil:
		de := AsError(ev.Err)
		return sse.Event{
			Event: "error",
			Data:  errorFrame{Code: de.PublicCode(), Message: de.PublicMessage()},
		}
	case ev.IsComplete && ev.Project != nil:
		return sse.Event{Data: completeFrame{IsComplete: true, Result: CacheResult{Project: *ev.Project}}}
	default:
		return sse.Event{Data: progressFrame{Progress: ev.Progress, Message: ev.Message}}
	}
}

func (h *Handler) getOverview(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || projectID <= 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "project id must be a positive integer", nil)
		return
	}
	c.Set("projectId", projectID)

	view, err := h.Svc.GetOverview(c.Request.Context(), userID, projectID)
	if err != nil {
		switch {
		case errors.Is(err, ErrProjectNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "project not found", nil)
		case errors.Is(err, ErrForbidden):
			respond.Error(c, http.StatusForbidden, "forbidden", "project belongs to another user", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to load analysis overview", nil)
		}
		return
	}
	respond.OK(c, view)
}

// respondDomainError writes err before any streaming has started.
func respondDomainError(c *gin.Context, err error) {
	de := AsError(err)
	status := http.StatusBadGateway
	switch de.Kind {
	case KindTaskNotFound:
		status = http.StatusNotFound
	case KindUpstreamRejected:
		status = http.StatusBadRequest
	case KindPersistenceFailure:
		status = http.StatusInternalServerError
	}
	respond.Error(c, status, de.PublicCode(), de.PublicMessage(), nil)
}
