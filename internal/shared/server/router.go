package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ideascope-backend/internal/analyses"
	"ideascope-backend/internal/shared/config"
	"ideascope-backend/internal/shared/metrics"
	"ideascope-backend/internal/shared/server/middleware"
	"ideascope-backend/internal/shared/server/respond"
	"ideascope-backend/internal/users"
)

const apiPrefix = "/api/v1"

// UserDirectory resolves callers and loads their profile.
type UserDirectory interface {
	middleware.IdentityResolver
	GetByID(ctx context.Context, userID int64) (users.User, error)
}

// RouterDeps contains dependencies needed to build the HTTP router.
type RouterDeps struct {
	Config          config.Config
	Verifier        middleware.TokenVerifier
	Users           UserDirectory
	AnalysisHandler *analyses.Handler
	RateLimiter     *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group(apiPrefix)
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})

	authed := api.Group("",
		middleware.Auth(deps.Verifier, deps.Users),
		middleware.RateLimit(rateLimitConfig(deps.RateLimiter)),
	)
	registerMeRoutes(authed, deps.Users)

	if deps.AnalysisHandler != nil {
		general := authed.Group("", middleware.RequirePermission(users.PermissionGeneral))
		deps.AnalysisHandler.RegisterRoutes(general)
	}

	return r
}

// rateLimitConfig keeps submissions, which start paid analysis runs, on the
// tightest budget.
func rateLimitConfig(limiter *middleware.RateLimiter) middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		Limiter: limiter,
		Rules: map[string]middleware.RateLimitRule{
			middleware.GroupSubmit:  {Rate: 0.2, Burst: 5},
			middleware.GroupWatch:   {Rate: 1, Burst: 10},
			middleware.GroupDefault: {Rate: 5, Burst: 30},
		},
		GroupFor: func(c *gin.Context) string {
			switch c.FullPath() {
			case apiPrefix + analyses.PathSubmit:
				if c.Request.Method == http.MethodPost {
					return middleware.GroupSubmit
				}
			case apiPrefix + analyses.PathStatus:
				return middleware.GroupWatch
			}
			return middleware.GroupDefault
		},
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
