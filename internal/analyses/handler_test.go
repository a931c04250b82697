package analyses

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type sseMessage struct {
	Event string
	Data  string
}

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Set("userId", testUserID)
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(api)
	return r
}

// readSSE splits a finished event-stream body into messages.
func readSSE(t *testing.T, body io.Reader) []sseMessage {
	t.Helper()
	raw, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	var out []sseMessage
	for _, block := range strings.Split(string(raw), "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		var msg sseMessage
		for _, line := range strings.Split(block, "\n") {
			field, value, _ := strings.Cut(line, ":")
			switch field {
			case "event":
				msg.Event = strings.TrimSpace(value)
			case "data":
				msg.Data += strings.TrimSpace(value)
			}
		}
		out = append(out, msg)
	}
	return out
}

func TestHandlerSubmitAndStream(t *testing.T) {
	stub := newAIStub(t, aiStubConfig{frames: []string{progressFrameRaw, completeFrameRaw(t)}})
	svc, _, _ := newTestService(t, stub)
	srv := httptest.NewServer(newTestRouter(svc))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/projects/analyses/overview", "application/json",
		strings.NewReader(`{"problem":"X","solution":"Y"}`))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var submitted submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		t.Fatalf("decode submit: %v", err)
	}
	if submitted.TaskID != "t1" {
		t.Fatalf("expected task t1, got %q", submitted.TaskID)
	}

	stream, err := http.Get(srv.URL + "/api/v1/projects/analyses/overview/status?task_id=t1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer stream.Body.Close()
	if ct := stream.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("expected event stream, got %q", ct)
	}
	msgs := readSSE(t, stream.Body)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %+v", msgs)
	}

	var progress progressFrame
	if err := json.Unmarshal([]byte(msgs[0].Data), &progress); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if msgs[0].Event != "" || progress.IsComplete || progress.Progress != 0.3 {
		t.Fatalf("unexpected progress message %+v", msgs[0])
	}

	var done completeFrame
	if err := json.Unmarshal([]byte(msgs[1].Data), &done); err != nil {
		t.Fatalf("decode complete: %v", err)
	}
	if !done.IsComplete || done.Result.Project.ID == 0 || done.Result.Project.Name != testProjectName {
		t.Fatalf("unexpected complete message %+v", done)
	}

	overview, err := http.Get(srv.URL + "/api/v1/projects/" + strconv.FormatInt(done.Result.Project.ID, 10) + "/analysis-overview")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	defer overview.Body.Close()
	if overview.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", overview.StatusCode)
	}
	var view OverviewView
	if err := json.NewDecoder(overview.Body).Decode(&view); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if view.Project.ID != done.Result.Project.ID || view.MarketStats == nil {
		t.Fatalf("unexpected overview %+v", view.Project)
	}
}

func TestHandlerStreamErrorFrame(t *testing.T) {
	stub := newAIStub(t, aiStubConfig{frames: []string{`{"is_complete":false,"progress":1.5,"message":"x"}`}})
	svc, cache, _ := newTestService(t, stub)
	_ = cache.Set(context.Background(), testUserID, "t1", inProgressEntry(), time.Minute)
	srv := httptest.NewServer(newTestRouter(svc))
	defer srv.Close()

	stream, err := http.Get(srv.URL + "/api/v1/projects/analyses/overview/status?task_id=t1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer stream.Body.Close()
	msgs := readSSE(t, stream.Body)
	if len(msgs) != 1 || msgs[0].Event != "error" {
		t.Fatalf("expected a single error message, got %+v", msgs)
	}
	var body errorFrame
	if err := json.Unmarshal([]byte(msgs[0].Data), &body); err != nil {
		t.Fatalf("decode error frame: %v", err)
	}
	if body.Code != ErrorCodeUpstreamUnavailable {
		t.Fatalf("expected %q, got %q", ErrorCodeUpstreamUnavailable, body.Code)
	}
}

func TestHandlerWatchUnknownTaskIs404(t *testing.T) {
	stub := newAIStub(t, aiStubConfig{})
	svc, _, _ := newTestService(t, stub)
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects/analyses/overview/status?task_id=ghost", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	assertErrorCode(t, resp, ErrorCodeTaskNotFound)
}

func TestHandlerSubmitErrors(t *testing.T) {
	cases := []struct {
		name   string
		stub   aiStubConfig
		body   string
		status int
		code   string
	}{
		{
			name:   "missing solution",
			body:   `{"problem":"X"}`,
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
		{
			name:   "malformed body",
			body:   `{"problem":`,
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
		{
			name:   "upstream rejected",
			stub:   aiStubConfig{submitStatus: 422, submitBody: `{"code":"unsupported_language"}`},
			body:   `{"problem":"X","solution":"Y"}`,
			status: http.StatusBadRequest,
			code:   "unsupported_language",
		},
		{
			name:   "upstream down",
			stub:   aiStubConfig{submitStatus: 500, submitBody: `{"code":"boom"}`},
			body:   `{"problem":"X","solution":"Y"}`,
			status: http.StatusBadGateway,
			code:   ErrorCodeUpstreamUnavailable,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _ := newTestService(t, newAIStub(t, tc.stub))
			router := newTestRouter(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/analyses/overview", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			if resp.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, resp.Code, resp.Body.String())
			}
			assertErrorCode(t, resp, tc.code)
		})
	}
}

func TestHandlerOverviewErrors(t *testing.T) {
	svc, _, _ := newTestService(t, newAIStub(t, aiStubConfig{}))
	router := newTestRouter(svc)

	for path, status := range map[string]int{
		"/api/v1/projects/abc/analysis-overview": http.StatusBadRequest,
		"/api/v1/projects/99/analysis-overview":  http.StatusNotFound,
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != status {
			t.Fatalf("%s: expected %d, got %d", path, status, resp.Code)
		}
	}
}

func assertErrorCode(t *testing.T, resp *httptest.ResponseRecorder, code string) {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error.Code != code {
		t.Fatalf("expected error code %q, got %q", code, body.Error.Code)
	}
}
