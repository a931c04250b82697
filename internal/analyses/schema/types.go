package schema

import (
	"strings"

	"ideascope-backend/internal/analyses/normalize"
)

// IndustryPathSeparator joins the four classification levels.
const IndustryPathSeparator = ">"

// Event is one validated message from the status stream.
type Event struct {
	SchemaVersion string
	IsComplete    bool
	Progress      float64
	Message       string
	Result        *AnalysisResult
}

// Classification is one level of the industry hierarchy.
type Classification struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type Industry struct {
	Large  Classification `json:"large"`
	Medium Classification `json:"medium"`
	Small  Classification `json:"small"`
	Detail Classification `json:"detail"`
}

// TrendPoint is a single year of market size history.
type TrendPoint struct {
	Year       int
	Size       normalize.Money
	GrowthRate float64
}

// MarketSeries is a region's trend points plus the citation they came from.
type MarketSeries struct {
	Points []TrendPoint
	Source string
}

type AverageRevenue struct {
	Domestic normalize.Money
	Global   normalize.Money
	Source   string
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
	Name         string
	Organization string
	URL          string
	Period       normalize.Period
	Order        int
}

type TargetSegment struct {
	Segment            string `json:"segment"`
	IconURL            string `json:"iconUrl,omitempty"`
	Reasons            string `json:"reasons"`
	InterestFactors    string `json:"interestFactors"`
	OnlineActivities   string `json:"onlineActivities"`
	OnlineTouchpoints  string `json:"onlineTouchpoints"`
	OfflineTouchpoints string `json:"offlineTouchpoints"`
	Order              int    `json:"order"`
}

type PhasedStrategy struct {
	PreLaunch string `json:"preLaunch"`
	Launch    string `json:"launch"`
	Growth    string `json:"growth"`
}

type MarketingStrategy struct {
	Approach         string         `json:"approach"`
	Channels         []string       `json:"channels"`
	Messages         []string       `json:"messages"`
	BudgetAllocation string         `json:"budgetAllocation"`
	KPIs             []string       `json:"kpis"`
	PhasedStrategy   PhasedStrategy `json:"phasedStrategy"`
}

type InvestmentPriority struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

type BusinessModel struct {
	Tagline              string               `json:"tagline"`
	Value                string               `json:"value"`
	ValueDetails         string               `json:"valueDetails"`
	RevenueStructure     string               `json:"revenueStructure"`
	InvestmentPriorities []InvestmentPriority `json:"investmentPriorities"`
	BreakEvenPoint       string               `json:"breakEvenPoint"`
}

type Opportunity struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

type Limitation struct {
	Category string `json:"category"`
	Details  string `json:"details"`
	Impact   string `json:"impact"`
	Solution string `json:"solution"`
	Order    int    `json:"order"`
}

type TeamRole struct {
	Title            string   `json:"title"`
	Skills           []string `json:"skills"`
	Responsibilities []string `json:"responsibilities"`
	Priority         int      `json:"priority"`
}

type Scores struct {
	Market         float64 `json:"market"`
	Opportunity    float64 `json:"opportunity"`
	SimilarService float64 `json:"similarService"`
	Risk           float64 `json:"risk"`
	Total          float64 `json:"total"`
}

// AnalysisResult is the typed payload of a completed analysis.
type AnalysisResult struct {
	KsicCode          string
	KsicCategory      string
	Industry          Industry
	DomesticMarket    MarketSeries
	GlobalMarket      MarketSeries
	AverageRevenue    AverageRevenue
	SimilarServices   []SimilarService
	SupportPrograms   []SupportProgram
	TargetAudience    []TargetSegment
	MarketingStrategy MarketingStrategy
	BusinessModel     BusinessModel
	Opportunities     []Opportunity
	Limitations       []Limitation
	TeamRoles         []TeamRole
	Scores            Scores
	OneLineReview     string
	Summary           string
}

// IndustryPath joins the classification level names, large to detail.
func (r *AnalysisResult) IndustryPath() string {
	return strings.Join([]string{
		r.Industry.Large.Name,
		r.Industry.Medium.Name,
		r.Industry.Small.Name,
		r.Industry.Detail.Name,
	}, IndustryPathSeparator)
}
