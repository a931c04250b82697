package projects

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreFailedTxLeavesNoRows(t *testing.T) {
	store := NewMemoryStore()
	boom := errors.New("boom")
	store.FailOn = func(step string) error {
		if step == StepSaveMarketStats {
			return boom
		}
		return nil
	}

	err := store.InTx(context.Background(), func(tx Tx) error {
		p, err := tx.SaveProject(context.Background(), Project{UserID: 1, TaskID: "t", Name: "n", IndustryPath: testPath})
		if err != nil {
			return err
		}
		if _, err := tx.SaveAnalysisOverview(context.Background(), AnalysisOverview{ProjectID: p.ID}); err != nil {
			return err
		}
		_, err = tx.SaveMarketStats(context.Background(), testStats())
		return err
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if n := store.ProjectCount(); n != 0 {
		t.Fatalf("expected no projects after rollback, got %d", n)
	}
	if _, err := store.FindAnalysisOverview(context.Background(), 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected overview rollback, got %v", err)
	}
}

func TestMemoryStoreRejectsDuplicateTask(t *testing.T) {
	store := NewMemoryStore()
	save := func() error {
		return store.InTx(context.Background(), func(tx Tx) error {
			_, err := tx.SaveProject(context.Background(), Project{UserID: 1, TaskID: "t", Name: "n"})
			return err
		})
	}
	if err := save(); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := save(); !errors.Is(err, ErrDuplicateTask) {
		t.Fatalf("expected ErrDuplicateTask, got %v", err)
	}

	p, err := store.FindProjectByTask(context.Background(), 1, "t")
	if err != nil {
		t.Fatalf("FindProjectByTask: %v", err)
	}
	if _, err := store.FindProjectByTask(context.Background(), 2, "t"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other user must not see task, got %v", err)
	}
	if p.ID == 0 {
		t.Fatalf("expected assigned id")
	}
}

func TestMemoryStoreMarketStatsReplacesSnapshot(t *testing.T) {
	store := NewMemoryStore()
	for _, score := range []float64{50, 80} {
		stats := testStats()
		stats.Score = score
		err := store.InTx(context.Background(), func(tx Tx) error {
			_, err := tx.SaveMarketStats(context.Background(), stats)
			return err
		})
		if err != nil {
			t.Fatalf("InTx: %v", err)
		}
	}

	history := store.MarketStatsHistory(testPath)
	if len(history) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(history))
	}
	if history[0].DeletedAt == nil || history[1].DeletedAt != nil {
		t.Fatalf("expected only the newest snapshot live")
	}

	live, err := store.FindMarketStats(context.Background(), testPath, 2023, 2023)
	if err != nil {
		t.Fatalf("FindMarketStats: %v", err)
	}
	if live.Score != 80 {
		t.Fatalf("expected live score 80, got %v", live.Score)
	}
	if len(live.DomesticTrends) != 1 || live.DomesticTrends[0].Year != 2023 {
		t.Fatalf("expected trends filtered to 2023, got %+v", live.DomesticTrends)
	}
}

func TestRankedSortsByOrderAndKeepsTies(t *testing.T) {
	o := AnalysisOverview{
		SimilarServices: []SimilarService{{Name: "b", Order: 2}, {Name: "a", Order: 1}},
		Limitations:     []Limitation{{Category: "x", Order: 1}, {Category: "y", Order: 1}},
		TeamRequirements: []TeamRequirement{
			{Role: "dev", Order: 3}, {Role: "pm", Order: 1},
		},
		BusinessModel: BusinessModel{Investments: []Investment{{Name: "later", Order: 2}, {Name: "first", Order: 1}}},
	}
	r := o.Ranked()

	if r.SimilarServices[0].Name != "a" || r.SimilarServices[1].Name != "b" {
		t.Fatalf("similar services not ranked: %+v", r.SimilarServices)
	}
	if r.Limitations[0].Category != "x" {
		t.Fatalf("tie order not stable: %+v", r.Limitations)
	}
	if r.TeamRequirements[0].Role != "pm" {
		t.Fatalf("team not ranked: %+v", r.TeamRequirements)
	}
	if r.BusinessModel.Investments[0].Name != "first" {
		t.Fatalf("investments not ranked: %+v", r.BusinessModel.Investments)
	}
	if o.SimilarServices[0].Name != "b" {
		t.Fatalf("Ranked must not mutate the receiver")
	}
}
