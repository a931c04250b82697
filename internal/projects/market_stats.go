package projects

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RegionDomestic = "domestic"
	RegionGlobal   = "global"
)

// MarketStats is the shared snapshot for one industry path. A newer commit for
// the same path replaces it wholesale.
type MarketStats struct {
	ID                 int64         `json:"id"`
	IndustryPath       string        `json:"industryPath"`
	Score              float64       `json:"score"`
	DomesticTrends     []MarketTrend `json:"domesticTrends"`
	GlobalTrends       []MarketTrend `json:"globalTrends"`
	DomesticAvgRevenue AvgRevenue    `json:"domesticAvgRevenue"`
	GlobalAvgRevenue   AvgRevenue    `json:"globalAvgRevenue"`
	CreatedAt          time.Time     `json:"createdAt"`
	DeletedAt          *time.Time    `json:"deletedAt,omitempty"`
}

type MarketTrend struct {
	Year       int             `json:"year"`
	Volume     decimal.Decimal `json:"volume"`
	Currency   string          `json:"currency"`
	GrowthRate float64         `json:"growthRate"`
	Source     string          `json:"source"`
}

type AvgRevenue struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Source   string          `json:"source"`
}

// trendsInRange keeps points in [from, to] ordered by year.
func trendsInRange(in []MarketTrend, from, to int) []MarketTrend {
	out := make([]MarketTrend, 0, len(in))
	for _, t := range in {
		if t.Year >= from && t.Year <= to {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}
