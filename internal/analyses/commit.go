package analyses

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ideascope-backend/internal/analyses/normalize"
	"ideascope-backend/internal/analyses/schema"
	"ideascope-backend/internal/projects"
	"ideascope-backend/internal/shared/metrics"
	"ideascope-backend/internal/shared/telemetry"
)

// Committer persists a completed analysis as one project, its overview and
// the market stats snapshot for its industry, all in one transaction.
type Committer struct {
	Store projects.Store
}

// Commit writes result for (userID, taskID). When the task was already
// committed by a concurrent watch, the existing project is returned instead.
func (c *Committer) Commit(ctx context.Context, userID int64, taskID string, result *schema.AnalysisResult) (ProjectRef, error) {
	if result == nil {
		return ProjectRef{}, newError(KindPersistenceFailure, errors.New("complete event without result"))
	}
	start := time.Now()
	path := result.IndustryPath()

	var saved projects.Project
	err := c.Store.InTx(ctx, func(tx projects.Tx) error {
		p, err := tx.SaveProject(ctx, projects.Project{
			UserID:       userID,
			TaskID:       taskID,
			Name:         result.OneLineReview,
			IndustryPath: path,
		})
		if err != nil {
			return fmt.Errorf("save project: %w", err)
		}
		if _, err := tx.SaveAnalysisOverview(ctx, overviewFromResult(p.ID, path, result)); err != nil {
			return fmt.Errorf("save analysis overview: %w", err)
		}
		if _, err := tx.SaveMarketStats(ctx, marketStatsFromResult(path, result)); err != nil {
			return fmt.Errorf("save market stats: %w", err)
		}
		saved = p
		return nil
	})

	switch {
	case err == nil:
		metrics.ObserveCommit(metrics.CommitCommitted, time.Since(start))
		return ProjectRef{ID: saved.ID, Name: saved.Name}, nil
	case errors.Is(err, projects.ErrDuplicateTask):
		existing, findErr := c.Store.FindProjectByTask(ctx, userID, taskID)
		if findErr != nil {
			metrics.ObserveCommit(metrics.CommitFailed, time.Since(start))
			return ProjectRef{}, newError(KindPersistenceFailure, fmt.Errorf("load committed project: %w", findErr))
		}
		metrics.ObserveCommit(metrics.CommitDuplicate, time.Since(start))
		telemetry.Info("analysis.commit_duplicate", map[string]any{
			"user_id":    userID,
			"task_id":    taskID,
			"project_id": existing.ID,
		})
		return ProjectRef{ID: existing.ID, Name: existing.Name}, nil
	default:
		metrics.ObserveCommit(metrics.CommitFailed, time.Since(start))
		return ProjectRef{}, newError(KindPersistenceFailure, err)
	}
}

func overviewFromResult(projectID int64, path string, r *schema.AnalysisResult) projects.AnalysisOverview {
	o := projects.AnalysisOverview{
		ProjectID:            projectID,
		Summary:              r.Summary,
		Review:               r.OneLineReview,
		IndustryPath:         path,
		SimilarServicesScore: r.Scores.SimilarService,
		LimitationsScore:     r.Scores.Risk,
		OpportunitiesScore:   r.Scores.Opportunity,
		MarketingStrategies:  marketingStrategies(r.MarketingStrategy),
		BusinessModel: projects.BusinessModel{
			Tagline:          r.BusinessModel.Tagline,
			Value:            r.BusinessModel.Value,
			ValueDetails:     r.BusinessModel.ValueDetails,
			RevenueStructure: r.BusinessModel.RevenueStructure,
			BreakEvenPoint:   r.BusinessModel.BreakEvenPoint,
		},
	}

	for _, s := range r.SimilarServices {
		o.SimilarServices = append(o.SimilarServices, projects.SimilarService{
			Name:        s.Name,
			Description: s.Description,
			LogoURL:     s.LogoURL,
			WebsiteURL:  s.WebsiteURL,
			Tags:        s.Tags,
			Summary:     s.Summary,
			Order:       s.Order,
		})
	}
	for _, p := range r.SupportPrograms {
		o.SupportPrograms = append(o.SupportPrograms, projects.SupportProgram{
			Name:      p.Name,
			Organizer: p.Organization,
			URL:       p.URL,
			Period:    p.Period.Raw,
			StartDate: p.Period.Start,
			EndDate:   p.Period.End,
			Order:     p.Order,
		})
	}
	for _, t := range r.TargetAudience {
		o.TargetMarkets = append(o.TargetMarkets, projects.TargetMarket{
			Target:          t.Segment,
			IconURL:         t.IconURL,
			Reasons:         t.Reasons,
			Appeal:          t.InterestFactors,
			OnlineActivity:  t.OnlineActivities,
			OnlineChannels:  t.OnlineTouchpoints,
			OfflineChannels: t.OfflineTouchpoints,
			Order:           t.Order,
		})
	}
	for _, inv := range r.BusinessModel.InvestmentPriorities {
		o.BusinessModel.Investments = append(o.BusinessModel.Investments, projects.Investment{
			Name:        inv.Name,
			Description: inv.Description,
			Order:       inv.Order,
		})
	}
	for _, op := range r.Opportunities {
		o.Opportunities = append(o.Opportunities, projects.Opportunity{
			Title:       op.Title,
			Description: op.Description,
			Order:       op.Order,
		})
	}
	for _, l := range r.Limitations {
		o.Limitations = append(o.Limitations, projects.Limitation{
			Category: l.Category,
			Detail:   l.Details,
			Impact:   l.Impact,
			Solution: l.Solution,
			Order:    l.Order,
		})
	}
	for _, role := range r.TeamRoles {
		o.TeamRequirements = append(o.TeamRequirements, projects.TeamRequirement{
			Role:   role.Title,
			Skills: role.Skills,
			Tasks:  role.Responsibilities,
			Order:  role.Priority,
		})
	}
	return o
}

// marketingStrategies splits the single strategy block into titled groups.
func marketingStrategies(m schema.MarketingStrategy) []projects.MarketingStrategy {
	return []projects.MarketingStrategy{
		{
			Title: "approach",
			Details: []projects.StrategyDetail{
				{Label: "approach", Description: m.Approach},
				{Label: "budget_allocation", Description: m.BudgetAllocation},
			},
		},
		{Title: "channels", Details: numberedDetails(m.Channels)},
		{Title: "messages", Details: numberedDetails(m.Messages)},
		{Title: "kpis", Details: numberedDetails(m.KPIs)},
		{
			Title: "phased_strategy",
			Details: []projects.StrategyDetail{
				{Label: "pre_launch", Description: m.PhasedStrategy.PreLaunch},
				{Label: "launch", Description: m.PhasedStrategy.Launch},
				{Label: "growth", Description: m.PhasedStrategy.Growth},
			},
		},
	}
}

func numberedDetails(items []string) []projects.StrategyDetail {
	out := make([]projects.StrategyDetail, 0, len(items))
	for i, item := range items {
		out = append(out, projects.StrategyDetail{Label: strconv.Itoa(i + 1), Description: item})
	}
	return out
}

func marketStatsFromResult(path string, r *schema.AnalysisResult) projects.MarketStats {
	return projects.MarketStats{
		IndustryPath:       path,
		Score:              r.Scores.Market,
		DomesticTrends:     trends(r.DomesticMarket),
		GlobalTrends:       trends(r.GlobalMarket),
		DomesticAvgRevenue: avgRevenue(r.AverageRevenue.Domestic, r.AverageRevenue.Source),
		GlobalAvgRevenue:   avgRevenue(r.AverageRevenue.Global, r.AverageRevenue.Source),
	}
}

func trends(series schema.MarketSeries) []projects.MarketTrend {
	out := make([]projects.MarketTrend, 0, len(series.Points))
	for _, p := range series.Points {
		out = append(out, projects.MarketTrend{
			Year:       p.Year,
			Volume:     p.Size.Amount,
			Currency:   p.Size.Currency,
			GrowthRate: p.GrowthRate,
			Source:     series.Source,
		})
	}
	return out
}

func avgRevenue(m normalize.Money, source string) projects.AvgRevenue {
	return projects.AvgRevenue{Amount: m.Amount, Currency: m.Currency, Source: source}
}
