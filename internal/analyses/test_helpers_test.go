package analyses

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"ideascope-backend/internal/aiservice"
	"ideascope-backend/internal/projects"
)

const (
	testUserID       int64 = 7
	testProjectName        = "데이터 기반 창업 검증 도구"
	progressFrameRaw       = `{"is_complete":false,"progress":0.3,"message":"시장 규모를 분석하고 있습니다"}`
)

func loadFixture(t *testing.T, path string) []byte {
	t.Helper()
	payload, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return payload
}

// completeFrameRaw is the complete event fixture on a single line, as one SSE data field.
func completeFrameRaw(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := json.Compact(&buf, loadFixture(t, "schema/testdata/complete_event.json")); err != nil {
		t.Fatalf("compact fixture: %v", err)
	}
	return buf.String()
}

type aiStubConfig struct {
	taskID       string
	submitStatus int
	submitBody   string
	streamStatus int
	streamBody   string
	frames       []string
	errorFrame   string
	// hang keeps the status stream open after the frames until the client leaves.
	hang bool
}

// aiStub is an httptest stand-in for the AI analysis service.
type aiStub struct {
	cfg     aiStubConfig
	srv     *httptest.Server
	submits atomic.Int32
	opens   atomic.Int32
	gone    chan struct{}
}

func newAIStub(t *testing.T, cfg aiStubConfig) *aiStub {
	t.Helper()
	if cfg.taskID == "" {
		cfg.taskID = "t1"
	}
	s := &aiStub{cfg: cfg, gone: make(chan struct{}, 8)}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *aiStub) serve(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/analyses/projects/overview":
		s.submits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if s.cfg.submitStatus != 0 {
			w.WriteHeader(s.cfg.submitStatus)
			_, _ = io.WriteString(w, s.cfg.submitBody)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = fmt.Fprintf(w, `{"task_id":%q}`, s.cfg.taskID)
	case "/analyses/projects/overview/status":
		s.opens.Add(1)
		if s.cfg.streamStatus != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(s.cfg.streamStatus)
			_, _ = io.WriteString(w, s.cfg.streamBody)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, f := range s.cfg.frames {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", f)
			flusher.Flush()
		}
		if s.cfg.errorFrame != "" {
			_, _ = fmt.Fprintf(w, "event: error\ndata: %s\n\n", s.cfg.errorFrame)
			flusher.Flush()
		}
		if s.cfg.hang {
			<-r.Context().Done()
			s.gone <- struct{}{}
		}
	default:
		http.NotFound(w, r)
	}
}

func newTestService(t *testing.T, stub *aiStub) (*Service, *MemoryTaskCache, *projects.MemoryStore) {
	t.Helper()
	client, err := aiservice.NewClient(aiservice.Config{BaseURL: stub.srv.URL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("new ai client: %v", err)
	}
	cache := NewMemoryTaskCache(nil)
	store := projects.NewMemoryStore()
	svc := &Service{
		AI:    client,
		Cache: cache,
		Store: store,
		Now:   func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) },
	}
	return svc, cache, store
}

// collect drains a watch channel until it is closed.
func collect(t *testing.T, events <-chan WatchEvent) []WatchEvent {
	t.Helper()
	var out []WatchEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("watch did not finish, got %d events", len(out))
		}
	}
}
