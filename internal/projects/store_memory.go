package projects

import (
	"context"
	"sync"
	"time"
)

// Write steps reported to MemoryStore.FailOn.
const (
	StepSaveProject          = "save_project"
	StepSaveAnalysisOverview = "save_analysis_overview"
	StepSaveMarketStats      = "save_market_stats"
)

// MemoryStore is an in-memory Store for dev and tests. A transaction works on
// a private copy of the state that replaces the live state only on success.
type MemoryStore struct {
	mu sync.Mutex

	// FailOn, when set, is consulted before every write step; a non-nil
	// result aborts the transaction.
	FailOn func(step string) error

	state memState
}

type memState struct {
	nextID    int64
	projects  map[int64]Project
	overviews map[int64]AnalysisOverview
	stats     []MarketStats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: memState{
		projects:  make(map[int64]Project),
		overviews: make(map[int64]AnalysisOverview),
	}}
}

func (s memState) clone() memState {
	out := memState{
		nextID:    s.nextID,
		projects:  make(map[int64]Project, len(s.projects)),
		overviews: make(map[int64]AnalysisOverview, len(s.overviews)),
		stats:     append([]MarketStats(nil), s.stats...),
	}
	for k, v := range s.projects {
		out.projects[k] = v
	}
	for k, v := range s.overviews {
		out.overviews[k] = v
	}
	return out
}

// InTx serializes transactions; the store is only meant for a single process.
func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{state: s.state.clone(), failOn: s.FailOn}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

type memTx struct {
	state  memState
	failOn func(string) error
}

func (t *memTx) step(name string) error {
	if t.failOn == nil {
		return nil
	}
	return t.failOn(name)
}

func (t *memTx) id() int64 {
	t.state.nextID++
	return t.state.nextID
}

func (t *memTx) SaveProject(_ context.Context, p Project) (Project, error) {
	if err := t.step(StepSaveProject); err != nil {
		return Project{}, err
	}
	if p.TaskID != "" {
		for _, existing := range t.state.projects {
			if existing.DeletedAt == nil && existing.UserID == p.UserID && existing.TaskID == p.TaskID {
				return Project{}, ErrDuplicateTask
			}
		}
	}
	now := time.Now().UTC()
	p.ID = t.id()
	p.CreatedAt = now
	p.UpdatedAt = now
	t.state.projects[p.ID] = p
	return p, nil
}

func (t *memTx) SaveAnalysisOverview(_ context.Context, o AnalysisOverview) (AnalysisOverview, error) {
	if err := t.step(StepSaveAnalysisOverview); err != nil {
		return AnalysisOverview{}, err
	}
	now := time.Now().UTC()
	o.ID = t.id()
	o.CreatedAt = now
	o.UpdatedAt = now
	t.state.overviews[o.ProjectID] = o
	return o, nil
}

func (t *memTx) SaveMarketStats(_ context.Context, m MarketStats) (MarketStats, error) {
	if err := t.step(StepSaveMarketStats); err != nil {
		return MarketStats{}, err
	}
	now := time.Now().UTC()
	for i := range t.state.stats {
		live := &t.state.stats[i]
		if live.IndustryPath == m.IndustryPath && live.DeletedAt == nil {
			deletedAt := now
			live.DeletedAt = &deletedAt
		}
	}
	m.ID = t.id()
	m.CreatedAt = now
	m.DeletedAt = nil
	t.state.stats = append(t.state.stats, m)
	return m, nil
}

func (s *MemoryStore) FindProject(_ context.Context, id int64) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.projects[id]
	if !ok || p.DeletedAt != nil {
		return Project{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) FindProjectByTask(_ context.Context, userID int64, taskID string) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.state.projects {
		if p.DeletedAt == nil && p.UserID == userID && p.TaskID == taskID {
			return p, nil
		}
	}
	return Project{}, ErrNotFound
}

func (s *MemoryStore) FindAnalysisOverview(_ context.Context, projectID int64) (AnalysisOverview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.state.overviews[projectID]
	if !ok || o.DeletedAt != nil {
		return AnalysisOverview{}, ErrNotFound
	}
	return o, nil
}

func (s *MemoryStore) FindMarketStats(_ context.Context, industryPath string, fromYear, toYear int) (MarketStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.state.stats {
		if m.IndustryPath == industryPath && m.DeletedAt == nil {
			m.DomesticTrends = trendsInRange(m.DomesticTrends, fromYear, toYear)
			m.GlobalTrends = trendsInRange(m.GlobalTrends, fromYear, toYear)
			return m, nil
		}
	}
	return MarketStats{}, ErrNotFound
}

// MarketStatsHistory returns every snapshot stored for industryPath, live and
// soft-deleted, oldest first.
func (s *MemoryStore) MarketStatsHistory(industryPath string) []MarketStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []MarketStats
	for _, m := range s.state.stats {
		if m.IndustryPath == industryPath {
			out = append(out, m)
		}
	}
	return out
}

// ProjectCount returns the number of live projects.
func (s *MemoryStore) ProjectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.state.projects {
		if p.DeletedAt == nil {
			n++
		}
	}
	return n
}

var _ Store = (*MemoryStore)(nil)
