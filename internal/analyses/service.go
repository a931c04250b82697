package analyses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"ideascope-backend/internal/aiservice"
	"ideascope-backend/internal/analyses/schema"
	"ideascope-backend/internal/projects"
	"ideascope-backend/internal/shared/metrics"
	"ideascope-backend/internal/shared/telemetry"
)

const (
	MaxIdeaFieldRunes    = 5000
	DefaultCommitTimeout = 30 * time.Second

	// overviewTrendYears is how many calendar years of trends the read-back shows.
	overviewTrendYears = 5
)

// Watch outcomes beyond the error kinds.
const (
	outcomeCompleted = "completed"
	outcomeReplayed  = "replayed"
	outcomeCancelled = "cancelled"
)

// AIService is the part of the AI analysis client the service depends on.
type AIService interface {
	SubmitIdea(ctx context.Context, idea aiservice.Idea) (string, error)
	OpenStatusStream(ctx context.Context, taskID string) (*aiservice.EventStream, error)
}

// Service submits ideas, watches their analysis and reads committed results back.
type Service struct {
	AI      AIService
	Cache   TaskCache
	Store   projects.Store
	Archive *Archive

	InProgressTTL time.Duration
	CompleteTTL   time.Duration
	CommitTimeout time.Duration

	Now func() time.Time
}

// WatchEvent is one element of a watch sequence. Exactly one event per
// sequence is terminal: IsComplete with Project set, or Err set.
type WatchEvent struct {
	IsComplete bool
	Progress   float64
	Message    string
	Project    *ProjectRef
	Err        error
}

// Terminal reports whether no event follows this one.
func (e WatchEvent) Terminal() bool {
	return e.IsComplete || e.Err != nil
}

// Submit starts an analysis task for userID and records it as in progress.
func (s *Service) Submit(ctx context.Context, userID int64, idea aiservice.Idea) (string, error) {
	idea, err := validateIdea(idea)
	if err != nil {
		metrics.IncSubmitted("invalid")
		return "", err
	}

	taskID, err := s.AI.SubmitIdea(ctx, idea)
	if err != nil {
		de := upstreamError(err)
		metrics.IncSubmitted(string(de.Kind))
		return "", de
	}

	if err := s.Cache.Set(ctx, userID, taskID, inProgressEntry(), s.inProgressTTL()); err != nil {
		metrics.IncSubmitted(string(KindPersistenceFailure))
		return "", newError(KindPersistenceFailure, fmt.Errorf("record task %q: %w", taskID, err))
	}
	metrics.IncSubmitted("accepted")
	telemetry.Info("analysis.submitted", map[string]any{
		"user_id": userID,
		"task_id": taskID,
	})
	return taskID, nil
}

func validateIdea(idea aiservice.Idea) (aiservice.Idea, error) {
	idea.Problem = strings.TrimSpace(idea.Problem)
	idea.Solution = strings.TrimSpace(idea.Solution)

	var problems []string
	for _, f := range []struct{ name, value string }{
		{"problem", idea.Problem},
		{"solution", idea.Solution},
	} {
		switch {
		case f.value == "":
			problems = append(problems, f.name+" is required")
		case utf8.RuneCountInString(f.value) > MaxIdeaFieldRunes:
			problems = append(problems, fmt.Sprintf("%s exceeds %d characters", f.name, MaxIdeaFieldRunes))
		}
	}
	if len(problems) > 0 {
		return aiservice.Idea{}, fmt.Errorf("%w: %s", ErrInvalidIdea, strings.Join(problems, "; "))
	}
	return idea, nil
}

// Watch returns the event sequence for taskID. Unknown tasks fail
// synchronously. A task already committed replays its project without
// contacting the AI service. The channel is closed after the terminal event
// or when ctx is done.
func (s *Service) Watch(ctx context.Context, userID int64, taskID string) (<-chan WatchEvent, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		metrics.IncWatchOutcome(string(KindTaskNotFound))
		return nil, taskNotFound(taskID)
	}

	entry, ok, err := s.Cache.Get(ctx, userID, taskID)
	if err != nil {
		metrics.IncWatchOutcome(string(KindPersistenceFailure))
		return nil, newError(KindPersistenceFailure, fmt.Errorf("read task state: %w", err))
	}
	if !ok {
		metrics.IncWatchOutcome(string(KindTaskNotFound))
		return nil, taskNotFound(taskID)
	}

	if entry.IsComplete {
		if entry.Result == nil {
			metrics.IncWatchOutcome(string(KindPersistenceFailure))
			return nil, newError(KindPersistenceFailure, fmt.Errorf("task %q is complete without a project", taskID))
		}
		ref := entry.Result.Project
		out := make(chan WatchEvent, 1)
		out <- WatchEvent{IsComplete: true, Progress: 1, Project: &ref}
		close(out)
		metrics.IncWatchOutcome(outcomeReplayed)
		return out, nil
	}

	upstream, err := s.AI.OpenStatusStream(ctx, taskID)
	if err != nil {
		de := upstreamError(err)
		metrics.IncWatchOutcome(string(de.Kind))
		return nil, de
	}
	stream := newStatusStream(ctx, upstream, func(raw []byte) {
		s.Archive.SaveRejected(context.WithoutCancel(ctx), userID, taskID, raw)
	})

	out := make(chan WatchEvent)
	go s.run(ctx, userID, taskID, stream, out)
	return out, nil
}

func (s *Service) run(ctx context.Context, userID int64, taskID string, stream *StatusStream, out chan<- WatchEvent) {
	defer close(out)
	defer stream.Close()
	defer metrics.WatchStarted()()

	for {
		ev, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				metrics.IncWatchOutcome(outcomeCancelled)
				return
			}
			s.fail(ctx, userID, taskID, out, err)
			return
		}

		if !ev.IsComplete {
			if !send(ctx, out, WatchEvent{Progress: ev.Progress, Message: ev.Message}) {
				metrics.IncWatchOutcome(outcomeCancelled)
				return
			}
			continue
		}

		ref, err := s.commit(ctx, userID, taskID, ev.Result)
		if err != nil {
			s.fail(ctx, userID, taskID, out, err)
			return
		}
		metrics.IncWatchOutcome(outcomeCompleted)
		telemetry.Info("analysis.completed", map[string]any{
			"user_id":    userID,
			"task_id":    taskID,
			"project_id": ref.ID,
		})
		send(ctx, out, WatchEvent{IsComplete: true, Progress: ev.Progress, Message: ev.Message, Project: &ref})
		return
	}
}

// commit runs detached from ctx so a disconnecting caller cannot abort the
// transaction half way.
func (s *Service) commit(ctx context.Context, userID int64, taskID string, result *schema.AnalysisResult) (ProjectRef, error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.commitTimeout())
	defer cancel()

	committer := Committer{Store: s.Store}
	ref, err := committer.Commit(cctx, userID, taskID, result)
	if err != nil {
		return ProjectRef{}, err
	}
	if err := s.Cache.Set(cctx, userID, taskID, completeEntry(ref), s.completeTTL()); err != nil {
		telemetry.Warn("analysis.cache_complete_failed", map[string]any{
			"user_id":    userID,
			"task_id":    taskID,
			"project_id": ref.ID,
			"error":      err,
		})
	}
	return ref, nil
}

func (s *Service) fail(ctx context.Context, userID int64, taskID string, out chan<- WatchEvent, err error) {
	de := AsError(err)
	metrics.IncWatchOutcome(string(de.Kind))
	fields := map[string]any{
		"user_id": userID,
		"task_id": taskID,
		"kind":    string(de.Kind),
		"error":   err,
	}
	if de.Recoverable() {
		telemetry.Warn("analysis.watch_failed", fields)
	} else {
		telemetry.Error("analysis.watch_failed", fields)
	}
	send(ctx, out, WatchEvent{Err: de})
}

func send(ctx context.Context, out chan<- WatchEvent, ev WatchEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// OverviewView is the read-back of one committed project.
type OverviewView struct {
	Project     ProjectRef                `json:"project"`
	Overview    projects.AnalysisOverview `json:"overview"`
	MarketStats *projects.MarketStats     `json:"marketStats,omitempty"`
}

// GetOverview loads a committed project owned by userID with its overview and
// the recent market stats for its industry. Ranked lists come back sorted.
func (s *Service) GetOverview(ctx context.Context, userID, projectID int64) (OverviewView, error) {
	p, err := s.Store.FindProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, projects.ErrNotFound) {
			return OverviewView{}, ErrProjectNotFound
		}
		return OverviewView{}, fmt.Errorf("load project %d: %w", projectID, err)
	}
	if p.UserID != userID {
		return OverviewView{}, ErrForbidden
	}

	overview, err := s.Store.FindAnalysisOverview(ctx, p.ID)
	if err != nil {
		if errors.Is(err, projects.ErrNotFound) {
			return OverviewView{}, ErrProjectNotFound
		}
		return OverviewView{}, fmt.Errorf("load analysis overview %d: %w", p.ID, err)
	}

	view := OverviewView{
		Project:  ProjectRef{ID: p.ID, Name: p.Name},
		Overview: overview.Ranked(),
	}

	toYear := s.now().Year()
	fromYear := toYear - overviewTrendYears + 1
	stats, err := s.Store.FindMarketStats(ctx, overview.IndustryPath, fromYear, toYear)
	switch {
	case err == nil:
		view.MarketStats = &stats
	case errors.Is(err, projects.ErrNotFound):
	default:
		return OverviewView{}, fmt.Errorf("load market stats: %w", err)
	}
	return view, nil
}

func (s *Service) inProgressTTL() time.Duration {
	if s.InProgressTTL > 0 {
		return s.InProgressTTL
	}
	return DefaultInProgressTTL
}

func (s *Service) completeTTL() time.Duration {
	if s.CompleteTTL > 0 {
		return s.CompleteTTL
	}
	return DefaultCompleteTTL
}

func (s *Service) commitTimeout() time.Duration {
	if s.CommitTimeout > 0 {
		return s.CommitTimeout
	}
	return DefaultCommitTimeout
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
