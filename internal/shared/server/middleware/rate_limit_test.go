package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func withUser(id int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(userIDKey, id)
		c.Next()
	}
}

func TestRateLimitSubmitStricterThanWatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })

	groupFor := func(c *gin.Context) string {
		if c.Request.Method == http.MethodPost && c.FullPath() == "/api/v1/projects/analyses/overview" {
			return GroupSubmit
		}
		return GroupWatch
	}

	r := gin.New()
	r.Use(withUser(7))
	r.Use(RateLimit(RateLimitConfig{
		GroupFor: groupFor,
		Limiter:  limiter,
		Rules: map[string]RateLimitRule{
			GroupSubmit: {Rate: 0.1, Burst: 2},
			GroupWatch:  {Rate: 5, Burst: 10},
		},
	}))
	r.POST("/api/v1/projects/analyses/overview", func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"task_id": "t"})
	})
	r.GET("/api/v1/projects/analyses/overview/status", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/projects/analyses/overview", nil))
		if resp.Code != http.StatusAccepted {
			t.Fatalf("submit %d expected 202, got %d", i+1, resp.Code)
		}
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/projects/analyses/overview", nil))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("submit 3 expected 429, got %d", resp.Code)
	}

	for i := 0; i < 3; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/projects/analyses/overview/status", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("watch %d expected 200, got %d", i+1, resp.Code)
		}
	}
}

func TestRateLimit429UsesErrorBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })

	r := gin.New()
	r.Use(withUser(7))
	r.Use(RateLimit(RateLimitConfig{
		Limiter: limiter,
		Rules:   map[string]RateLimitRule{GroupDefault: {Rate: 1, Burst: 1}},
	}))
	r.GET("/limited", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	resp1 := httptest.NewRecorder()
	r.ServeHTTP(resp1, httptest.NewRequest(http.MethodGet, "/limited", nil))
	if resp1.Code != http.StatusOK {
		t.Fatalf("expected first request 200, got %d", resp1.Code)
	}

	resp2 := httptest.NewRecorder()
	r.ServeHTTP(resp2, httptest.NewRequest(http.MethodGet, "/limited", nil))
	if resp2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp2.Code)
	}
	if resp2.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After 1, got %q", resp2.Header().Get("Retry-After"))
	}

	var payload struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Error.Code != "rate_limited" {
		t.Fatalf("expected code rate_limited, got %q", payload.Error.Code)
	}
	if _, ok := payload.Error.Details["retryAfterMs"]; !ok {
		t.Fatalf("expected retryAfterMs in details")
	}
}

func TestRateLimitSeparatesUsers(t *testing.T) {
	limiter := NewRateLimiter(func() time.Time { return time.Unix(0, 0) })
	rule := RateLimitRule{Rate: 1, Burst: 1}
	if ok, _ := limiter.Allow("user:1|SUBMIT", rule); !ok {
		t.Fatalf("first call for user 1 must pass")
	}
	if ok, _ := limiter.Allow("user:2|SUBMIT", rule); !ok {
		t.Fatalf("user 2 has its own bucket")
	}
	if ok, wait := limiter.Allow("user:1|SUBMIT", rule); ok || wait != time.Second {
		t.Fatalf("expected user 1 limited for 1s, got ok=%v wait=%s", ok, wait)
	}
}
