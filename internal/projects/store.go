package projects

import "context"

// Store is the relational store for projects, their analysis overviews and
// the per-industry market stats snapshots.
type Store interface {
	// InTx runs fn in one transaction. Any error returned by fn rolls back
	// every write made through tx.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	FindProject(ctx context.Context, id int64) (Project, error)
	FindProjectByTask(ctx context.Context, userID int64, taskID string) (Project, error)
	FindAnalysisOverview(ctx context.Context, projectID int64) (AnalysisOverview, error)
	// FindMarketStats returns the live snapshot for industryPath with trend
	// points limited to [fromYear, toYear].
	FindMarketStats(ctx context.Context, industryPath string, fromYear, toYear int) (MarketStats, error)
}

// Tx is the write side of Store, only reachable inside InTx.
type Tx interface {
	SaveProject(ctx context.Context, p Project) (Project, error)
	SaveAnalysisOverview(ctx context.Context, o AnalysisOverview) (AnalysisOverview, error)
	// SaveMarketStats soft-deletes the live snapshot for m.IndustryPath and
	// inserts m as the new one.
	SaveMarketStats(ctx context.Context, m MarketStats) (MarketStats, error)
}
