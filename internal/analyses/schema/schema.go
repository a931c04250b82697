// Package schema validates status stream messages from the AI analysis
// service and decodes them into typed events.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"ideascope-backend/internal/analyses/normalize"
)

// CurrentVersion is assumed when a message carries no schema_version.
const CurrentVersion = "v1"

//go:embed status_event.schema.json
var statusEventSchema []byte

var (
	compileOnce sync.Once
	compiled    *gojsonschema.Schema
	compileErr  error
)

// ErrInvalid matches every ValidationError.
var ErrInvalid = errors.New("status event failed validation")

// ValidationError lists every rule a message broke.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalid, strings.Join(e.Fields, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

func invalid(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func loadSchema() (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled, compileErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(statusEventSchema))
	})
	return compiled, compileErr
}

// Parse validates raw against the status event schema and decodes it.
// Nothing is returned unless the whole message conforms.
func Parse(raw []byte) (Event, error) {
	s, err := loadSchema()
	if err != nil {
		return Event{}, fmt.Errorf("compile status schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return Event{}, invalid("(root): " + err.Error())
	}
	if !res.Valid() {
		fields := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			fields = append(fields, e.String())
		}
		sort.Strings(fields)
		return Event{}, &ValidationError{Fields: fields}
	}

	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return Event{}, invalid("(root): " + err.Error())
	}
	ev := Event{
		SchemaVersion: w.SchemaVersion,
		IsComplete:    w.IsComplete,
		Progress:      w.Progress,
		Message:       w.Message,
	}
	if ev.SchemaVersion == "" {
		ev.SchemaVersion = CurrentVersion
	}
	if !w.IsComplete {
		return ev, nil
	}
	result, err := w.Result.decode()
	if err != nil {
		return Event{}, err
	}
	ev.Result = result
	return ev, nil
}

type wireEvent struct {
	SchemaVersion string      `json:"schema_version"`
	IsComplete    bool        `json:"is_complete"`
	Progress      float64     `json:"progress"`
	Message       string      `json:"message"`
	Result        *wireResult `json:"result"`
}

type wireResult struct {
	KsicCode         string   `json:"ksicCode"`
	KsicCategory     string   `json:"ksicCategory"`
	KsicHierarchy    Industry `json:"ksicHierarchy"`
	MarketSizeByYear struct {
		Domestic []json.RawMessage `json:"domestic"`
		Global   []json.RawMessage `json:"global"`
	} `json:"marketSizeByYear"`
	AverageRevenue struct {
		Domestic string `json:"domestic"`
		Global   string `json:"global"`
		Source   string `json:"source"`
	} `json:"averageRevenue"`
	SimilarServices []SimilarService `json:"similarServices"`
	SupportPrograms []struct {
		Name         string `json:"name"`
		Organization string `json:"organization"`
		URL          string `json:"url"`
		Period       string `json:"period"`
		Order        int    `json:"order"`
	} `json:"supportPrograms"`
	TargetAudience    []TargetSegment   `json:"targetAudience"`
	MarketingStrategy MarketingStrategy `json:"marketingStrategy"`
	BusinessModel     BusinessModel     `json:"businessModel"`
	Opportunities     []Opportunity     `json:"opportunities"`
	Limitations       []Limitation      `json:"limitations"`
	RequiredTeam      struct {
		Roles []TeamRole `json:"roles"`
	} `json:"requiredTeam"`
	Scores        Scores `json:"scores"`
	OneLineReview string `json:"oneLineReview"`
	Summary       string `json:"summary"`
}

func (w *wireResult) decode() (*AnalysisResult, error) {
	if w == nil {
		return nil, invalid("result: is required")
	}
	domestic, err := splitSeries("result.marketSizeByYear.domestic", w.MarketSizeByYear.Domestic)
	if err != nil {
		return nil, err
	}
	global, err := splitSeries("result.marketSizeByYear.global", w.MarketSizeByYear.Global)
	if err != nil {
		return nil, err
	}
	domesticRevenue, err := normalize.ParseMoney(w.AverageRevenue.Domestic)
	if err != nil {
		return nil, invalid("result.averageRevenue.domestic: " + err.Error())
	}
	globalRevenue, err := normalize.ParseMoney(w.AverageRevenue.Global)
	if err != nil {
		return nil, invalid("result.averageRevenue.global: " + err.Error())
	}

	programs := make([]SupportProgram, 0, len(w.SupportPrograms))
	for _, p := range w.SupportPrograms {
		programs = append(programs, SupportProgram{
			Name:         p.Name,
			Organization: p.Organization,
			URL:          p.URL,
			Period:       normalize.ParsePeriod(p.Period),
			Order:        p.Order,
		})
	}

	return &AnalysisResult{
		KsicCode:       w.KsicCode,
		KsicCategory:   w.KsicCategory,
		Industry:       w.KsicHierarchy,
		DomesticMarket: domestic,
		GlobalMarket:   global,
		AverageRevenue: AverageRevenue{
			Domestic: domesticRevenue,
			Global:   globalRevenue,
			Source:   w.AverageRevenue.Source,
		},
		SimilarServices:   w.SimilarServices,
		SupportPrograms:   programs,
		TargetAudience:    w.TargetAudience,
		MarketingStrategy: w.MarketingStrategy,
		BusinessModel:     w.BusinessModel,
		Opportunities:     w.Opportunities,
		Limitations:       w.Limitations,
		TeamRoles:         w.RequiredTeam.Roles,
		Scores:            w.Scores,
		OneLineReview:     w.OneLineReview,
		Summary:           w.Summary,
	}, nil
}

func splitSeries(field string, raw []json.RawMessage) (MarketSeries, error) {
	points, source, err := SplitTrendAndCitation(raw)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			for i := range ve.Fields {
				ve.Fields[i] = field + ve.Fields[i]
			}
			return MarketSeries{}, ve
		}
		return MarketSeries{}, err
	}
	return MarketSeries{Points: points, Source: source}, nil
}

type wireTrendPoint struct {
	Year       *int    `json:"year"`
	Size       *string `json:"size"`
	GrowthRate *string `json:"growthRate"`
}

type wireCitation struct {
	Source *string `json:"source"`
}

// SplitTrendAndCitation decodes a market size sequence. Every element but the
// last is a trend point; the last is the {source} citation.
func SplitTrendAndCitation(raw []json.RawMessage) ([]TrendPoint, string, error) {
	if len(raw) < 2 {
		return nil, "", invalid(fmt.Sprintf(": expected at least one point and a citation, got %d elements", len(raw)))
	}
	last := len(raw) - 1

	var cite wireCitation
	if err := strictDecode(raw[last], &cite); err != nil || cite.Source == nil || strings.TrimSpace(*cite.Source) == "" {
		return nil, "", invalid(fmt.Sprintf(".%d: last element must be a {source} citation", last))
	}

	points := make([]TrendPoint, 0, last)
	for i, item := range raw[:last] {
		var w wireTrendPoint
		if err := strictDecode(item, &w); err != nil || w.Year == nil || w.Size == nil || w.GrowthRate == nil {
			return nil, "", invalid(fmt.Sprintf(".%d: expected {year, size, growthRate}", i))
		}
		size, err := normalize.ParseMoney(*w.Size)
		if err != nil {
			return nil, "", invalid(fmt.Sprintf(".%d.size: %v", i, err))
		}
		growth, err := normalize.ParsePercentage(*w.GrowthRate)
		if err != nil {
			return nil, "", invalid(fmt.Sprintf(".%d.growthRate: %v", i, err))
		}
		points = append(points, TrendPoint{Year: *w.Year, Size: size, GrowthRate: growth})
	}
	return points, *cite.Source, nil
}

// strictDecode rejects a citation that also carries point fields and vice versa.
func strictDecode(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
