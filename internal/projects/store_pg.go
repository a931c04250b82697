package projects

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"ideascope-backend/internal/shared/storage/db"
)

const projectTaskConstraint = "projects_user_task_uniq"

// PGStore implements Store using Postgres.
type PGStore struct {
	DB *sql.DB
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// InTx runs fn against a single Postgres transaction.
func (s *PGStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return db.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) SaveProject(ctx context.Context, p Project) (Project, error) {
	const query = `
INSERT INTO projects (user_id, task_id, name, industry_path, created_at, updated_at)
VALUES ($1, $2, $3, $4, now(), now())
RETURNING id, created_at, updated_at`
	err := t.tx.QueryRowContext(ctx, query, p.UserID, nullableString(p.TaskID), p.Name, p.IndustryPath).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, projectTaskConstraint) {
			return Project{}, ErrDuplicateTask
		}
		return Project{}, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

func (t *pgTx) SaveAnalysisOverview(ctx context.Context, o AnalysisOverview) (AnalysisOverview, error) {
	const query = `
INSERT INTO analysis_overviews (
	project_id, summary, review, industry_path,
	similar_services_score, limitations_score, opportunities_score,
	similar_services, support_programs, target_markets, marketing_strategies,
	business_model, opportunities, limitations, team_requirements,
	created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9::jsonb, $10::jsonb, $11::jsonb, $12::jsonb, $13::jsonb, $14::jsonb, $15::jsonb, now(), now())
RETURNING id, created_at, updated_at`

	payloads, err := marshalAll(
		o.SimilarServices,
		o.SupportPrograms,
		o.TargetMarkets,
		o.MarketingStrategies,
		o.BusinessModel,
		o.Opportunities,
		o.Limitations,
		o.TeamRequirements,
	)
	if err != nil {
		return AnalysisOverview{}, err
	}

	args := []any{
		o.ProjectID, o.Summary, o.Review, o.IndustryPath,
		o.SimilarServicesScore, o.LimitationsScore, o.OpportunitiesScore,
	}
	for _, p := range payloads {
		args = append(args, p)
	}
	if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return AnalysisOverview{}, fmt.Errorf("insert analysis overview: %w", err)
	}
	return o, nil
}

func (t *pgTx) SaveMarketStats(ctx context.Context, m MarketStats) (MarketStats, error) {
	// Serialize replaces of the same industry path across concurrent commits.
	if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, m.IndustryPath); err != nil {
		return MarketStats{}, fmt.Errorf("lock market stats: %w", err)
	}

	const softDeleteTrends = `
UPDATE market_trends SET deleted_at = now()
WHERE deleted_at IS NULL
  AND market_stats_id IN (SELECT id FROM market_stats WHERE industry_path = $1 AND deleted_at IS NULL)`
	if _, err := t.tx.ExecContext(ctx, softDeleteTrends, m.IndustryPath); err != nil {
		return MarketStats{}, fmt.Errorf("soft delete market trends: %w", err)
	}

	const softDeleteRevenues = `
UPDATE avg_revenues SET deleted_at = now()
WHERE deleted_at IS NULL
  AND market_stats_id IN (SELECT id FROM market_stats WHERE industry_path = $1 AND deleted_at IS NULL)`
	if _, err := t.tx.ExecContext(ctx, softDeleteRevenues, m.IndustryPath); err != nil {
		return MarketStats{}, fmt.Errorf("soft delete avg revenues: %w", err)
	}

	const softDeleteStats = `
UPDATE market_stats SET deleted_at = now(), updated_at = now()
WHERE industry_path = $1 AND deleted_at IS NULL`
	if _, err := t.tx.ExecContext(ctx, softDeleteStats, m.IndustryPath); err != nil {
		return MarketStats{}, fmt.Errorf("soft delete market stats: %w", err)
	}

	const insertStats = `
INSERT INTO market_stats (industry_path, score, created_at, updated_at)
VALUES ($1, $2, now(), now())
RETURNING id, created_at`
	if err := t.tx.QueryRowContext(ctx, insertStats, m.IndustryPath, m.Score).Scan(&m.ID, &m.CreatedAt); err != nil {
		return MarketStats{}, fmt.Errorf("insert market stats: %w", err)
	}

	const insertTrend = `
INSERT INTO market_trends (market_stats_id, region, year, volume, currency, growth_rate, source, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())`
	for _, series := range []struct {
		region string
		points []MarketTrend
	}{
		{RegionDomestic, m.DomesticTrends},
		{RegionGlobal, m.GlobalTrends},
	} {
		for _, p := range series.points {
			if _, err := t.tx.ExecContext(ctx, insertTrend, m.ID, series.region, p.Year, p.Volume, p.Currency, p.GrowthRate, p.Source); err != nil {
				return MarketStats{}, fmt.Errorf("insert %s market trend: %w", series.region, err)
			}
		}
	}

	const insertRevenue = `
INSERT INTO avg_revenues (market_stats_id, region, amount, currency, source, created_at)
VALUES ($1, $2, $3, $4, $5, now())`
	for _, r := range []struct {
		region  string
		revenue AvgRevenue
	}{
		{RegionDomestic, m.DomesticAvgRevenue},
		{RegionGlobal, m.GlobalAvgRevenue},
	} {
		if _, err := t.tx.ExecContext(ctx, insertRevenue, m.ID, r.region, r.revenue.Amount, r.revenue.Currency, r.revenue.Source); err != nil {
			return MarketStats{}, fmt.Errorf("insert %s avg revenue: %w", r.region, err)
		}
	}
	return m, nil
}

// FindProject returns a live project by id.
func (s *PGStore) FindProject(ctx context.Context, id int64) (Project, error) {
	const query = `
SELECT id, user_id, task_id, name, industry_path, created_at, updated_at
FROM projects
WHERE id = $1 AND deleted_at IS NULL`
	return scanProject(s.DB.QueryRowContext(ctx, query, id))
}

// FindProjectByTask returns the live project committed for (userID, taskID).
func (s *PGStore) FindProjectByTask(ctx context.Context, userID int64, taskID string) (Project, error) {
	const query = `
SELECT id, user_id, task_id, name, industry_path, created_at, updated_at
FROM projects
WHERE user_id = $1 AND task_id = $2 AND deleted_at IS NULL`
	return scanProject(s.DB.QueryRowContext(ctx, query, userID, taskID))
}

func scanProject(row *sql.Row) (Project, error) {
	var (
		p      Project
		taskID sql.NullString
	)
	if err := row.Scan(&p.ID, &p.UserID, &taskID, &p.Name, &p.IndustryPath, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, err
	}
	if taskID.Valid {
		p.TaskID = taskID.String
	}
	return p, nil
}

// FindAnalysisOverview returns the live overview for a project.
func (s *PGStore) FindAnalysisOverview(ctx context.Context, projectID int64) (AnalysisOverview, error) {
	const query = `
SELECT id, project_id, summary, review, industry_path,
       similar_services_score, limitations_score, opportunities_score,
       similar_services, support_programs, target_markets, marketing_strategies,
       business_model, opportunities, limitations, team_requirements,
       created_at, updated_at
FROM analysis_overviews
WHERE project_id = $1 AND deleted_at IS NULL`

	var (
		o   AnalysisOverview
		raw [8][]byte
	)
	err := s.DB.QueryRowContext(ctx, query, projectID).Scan(
		&o.ID, &o.ProjectID, &o.Summary, &o.Review, &o.IndustryPath,
		&o.SimilarServicesScore, &o.LimitationsScore, &o.OpportunitiesScore,
		&raw[0], &raw[1], &raw[2], &raw[3], &raw[4], &raw[5], &raw[6], &raw[7],
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AnalysisOverview{}, ErrNotFound
		}
		return AnalysisOverview{}, err
	}
	targets := []any{
		&o.SimilarServices, &o.SupportPrograms, &o.TargetMarkets, &o.MarketingStrategies,
		&o.BusinessModel, &o.Opportunities, &o.Limitations, &o.TeamRequirements,
	}
	for i, target := range targets {
		if len(raw[i]) == 0 {
			continue
		}
		if err := json.Unmarshal(raw[i], target); err != nil {
			return AnalysisOverview{}, fmt.Errorf("decode analysis overview column %d: %w", i, err)
		}
	}
	return o, nil
}

// FindMarketStats returns the live snapshot for industryPath.
func (s *PGStore) FindMarketStats(ctx context.Context, industryPath string, fromYear, toYear int) (MarketStats, error) {
	const statsQuery = `
SELECT id, industry_path, score, created_at
FROM market_stats
WHERE industry_path = $1 AND deleted_at IS NULL`
	var m MarketStats
	if err := s.DB.QueryRowContext(ctx, statsQuery, industryPath).Scan(&m.ID, &m.IndustryPath, &m.Score, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MarketStats{}, ErrNotFound
		}
		return MarketStats{}, err
	}

	if err := loadTrends(ctx, s.DB, &m, fromYear, toYear); err != nil {
		return MarketStats{}, err
	}
	if err := loadRevenues(ctx, s.DB, &m); err != nil {
		return MarketStats{}, err
	}
	return m, nil
}

func loadTrends(ctx context.Context, q queryer, m *MarketStats, fromYear, toYear int) error {
	const query = `
SELECT region, year, volume, currency, growth_rate, source
FROM market_trends
WHERE market_stats_id = $1 AND deleted_at IS NULL AND year BETWEEN $2 AND $3
ORDER BY year ASC`
	rows, err := q.QueryContext(ctx, query, m.ID, fromYear, toYear)
	if err != nil {
		return fmt.Errorf("query market trends: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			region string
			t      MarketTrend
		)
		if err := rows.Scan(&region, &t.Year, &t.Volume, &t.Currency, &t.GrowthRate, &t.Source); err != nil {
			return err
		}
		switch region {
		case RegionDomestic:
			m.DomesticTrends = append(m.DomesticTrends, t)
		case RegionGlobal:
			m.GlobalTrends = append(m.GlobalTrends, t)
		}
	}
	return rows.Err()
}

func loadRevenues(ctx context.Context, q queryer, m *MarketStats) error {
	const query = `
SELECT region, amount, currency, source
FROM avg_revenues
WHERE market_stats_id = $1 AND deleted_at IS NULL`
	rows, err := q.QueryContext(ctx, query, m.ID)
	if err != nil {
		return fmt.Errorf("query avg revenues: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			region string
			r      AvgRevenue
		)
		if err := rows.Scan(&region, &r.Amount, &r.Currency, &r.Source); err != nil {
			return err
		}
		switch region {
		case RegionDomestic:
			m.DomesticAvgRevenue = r
		case RegionGlobal:
			m.GlobalAvgRevenue = r
		}
	}
	return rows.Err()
}

func marshalAll(values ...any) ([][]byte, error) {
	out := make([][]byte, 0, len(values))
	for i, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode jsonb column %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ Store = (*PGStore)(nil)
