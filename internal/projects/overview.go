package projects

import (
	"sort"
	"time"
)

// AnalysisOverview is the flattened analysis result stored one-to-one with a Project.
// Ranked lists keep their order field verbatim; use Ranked to read them in rank order.
type AnalysisOverview struct {
	ID                   int64               `json:"id"`
	ProjectID            int64               `json:"projectId"`
	Summary              string              `json:"summary"`
	Review               string              `json:"review"`
	IndustryPath         string              `json:"industryPath"`
	SimilarServicesScore float64             `json:"similarServicesScore"`
	LimitationsScore     float64             `json:"limitationsScore"`
	OpportunitiesScore   float64             `json:"opportunitiesScore"`
	SimilarServices      []SimilarService    `json:"similarServices"`
	SupportPrograms      []SupportProgram    `json:"supportPrograms"`
	TargetMarkets        []TargetMarket      `json:"targetMarkets"`
	MarketingStrategies  []MarketingStrategy `json:"marketingStrategies"`
	BusinessModel        BusinessModel       `json:"businessModel"`
	Opportunities        []Opportunity       `json:"opportunities"`
	Limitations          []Limitation        `json:"limitations"`
	TeamRequirements     []TeamRequirement   `json:"teamRequirements"`
	CreatedAt            time.Time           `json:"createdAt"`
	UpdatedAt            time.Time           `json:"updatedAt"`
	DeletedAt            *time.Time          `json:"deletedAt,omitempty"`
}

type SimilarService struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	LogoURL     string   `json:"logoUrl,omitempty"`
	WebsiteURL  string   `json:"websiteUrl,omitempty"`
	Tags        []string `json:"tags"`
	Summary     string   `json:"summary"`
	Order       int      `json:"order"`
}

type SupportProgram struct {
	Name      string     `json:"name"`
	Organizer string     `json:"organizer"`
	URL       string     `json:"url,omitempty"`
	Period    string     `json:"period"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Order     int        `json:"order"`
}

type TargetMarket struct {
	Target          string `json:"target"`
	IconURL         string `json:"iconUrl,omitempty"`
	Reasons         string `json:"reasons"`
	Appeal          string `json:"appeal"`
	OnlineActivity  string `json:"onlineActivity"`
	OnlineChannels  string `json:"onlineChannels"`
	OfflineChannels string `json:"offlineChannels"`
	Order           int    `json:"order"`
}

type StrategyDetail struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

type MarketingStrategy struct {
	Title   string           `json:"title"`
	Details []StrategyDetail `json:"details"`
}

type Investment struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

type BusinessModel struct {
	Tagline          string       `json:"tagline"`
	Value            string       `json:"value"`
	ValueDetails     string       `json:"valueDetails"`
	RevenueStructure string       `json:"revenueStructure"`
	BreakEvenPoint   string       `json:"breakEvenPoint"`
	Investments      []Investment `json:"investments"`
}

type Opportunity struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

type Limitation struct {
	Category string `json:"category"`
	Detail   string `json:"detail"`
	Impact   string `json:"impact"`
	Solution string `json:"solution"`
	Order    int    `json:"order"`
}

type TeamRequirement struct {
	Role   string   `json:"role"`
	Skills []string `json:"skills"`
	Tasks  []string `json:"tasks"`
	Order  int      `json:"order"`
}

// Ranked returns a copy with every ranked list sorted by its order field.
// Ties keep stored order.
func (o AnalysisOverview) Ranked() AnalysisOverview {
	out := o
	out.SimilarServices = sortedBy(o.SimilarServices, func(v SimilarService) int { return v.Order })
	out.SupportPrograms = sortedBy(o.SupportPrograms, func(v SupportProgram) int { return v.Order })
	out.TargetMarkets = sortedBy(o.TargetMarkets, func(v TargetMarket) int { return v.Order })
	out.Opportunities = sortedBy(o.Opportunities, func(v Opportunity) int { return v.Order })
	out.Limitations = sortedBy(o.Limitations, func(v Limitation) int { return v.Order })
	out.TeamRequirements = sortedBy(o.TeamRequirements, func(v TeamRequirement) int { return v.Order })
	out.BusinessModel.Investments = sortedBy(o.BusinessModel.Investments, func(v Investment) int { return v.Order })
	return out
}

func sortedBy[T any](in []T, rank func(T) int) []T {
	if in == nil {
		return nil
	}
	out := append([]T(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out
}
