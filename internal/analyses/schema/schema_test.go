package schema

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"ideascope-backend/internal/analyses/normalize"
)

func loadFixture(t *testing.T, path string) []byte {
	t.Helper()
	payload, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return payload
}

// mutateFixture decodes the complete fixture, applies fn, and re-encodes it.
func mutateFixture(t *testing.T, fn func(doc map[string]any)) []byte {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal(loadFixture(t, "testdata/complete_event.json"), &doc); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	fn(doc)
	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return out
}

func result(doc map[string]any) map[string]any {
	return doc["result"].(map[string]any)
}

func TestParseProgressEvent(t *testing.T) {
	ev, err := Parse([]byte(`{"is_complete":false,"progress":0.3,"message":"시장 규모 분석 중"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.IsComplete || ev.Result != nil {
		t.Fatalf("expected in-progress event, got %+v", ev)
	}
	if ev.Progress != 0.3 || ev.Message != "시장 규모 분석 중" {
		t.Fatalf("unexpected progress payload: %+v", ev)
	}
	if ev.SchemaVersion != CurrentVersion {
		t.Fatalf("expected default schema version, got %q", ev.SchemaVersion)
	}
}

func TestParseRejectsInvalidProgressEvents(t *testing.T) {
	cases := map[string]string{
		"progress above one":      `{"is_complete":false,"progress":1.5,"message":"m"}`,
		"negative progress":       `{"is_complete":false,"progress":-0.1,"message":"m"}`,
		"missing message":         `{"is_complete":false,"progress":0.5}`,
		"empty message":           `{"is_complete":false,"progress":0.5,"message":""}`,
		"missing progress":        `{"is_complete":false,"message":"m"}`,
		"missing is_complete":     `{"progress":0.5,"message":"m"}`,
		"result while running":    `{"is_complete":false,"progress":0.5,"message":"m","result":{}}`,
		"complete w/o result":     `{"is_complete":true,"progress":1,"message":"done"}`,
		"unknown version":         `{"schema_version":"v9","is_complete":false,"progress":0.5,"message":"m"}`,
		"string is_complete":      `{"is_complete":"false","progress":0.5,"message":"m"}`,
		"not json":                `data: nope`,
		"array instead of object": `[1,2]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			ev, err := Parse([]byte(raw))
			if err == nil {
				t.Fatalf("expected validation error, got event %+v", ev)
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if ev.Result != nil || ev.Message != "" {
				t.Fatalf("expected zero event on failure, got %+v", ev)
			}
		})
	}
}

func TestParseCompleteEvent(t *testing.T) {
	ev, err := Parse(loadFixture(t, "testdata/complete_event.json"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !ev.IsComplete || ev.Result == nil {
		t.Fatalf("expected complete event with result")
	}
	r := ev.Result

	if r.KsicCode != "58222" || r.KsicCategory != "응용 소프트웨어 개발 및 공급업" {
		t.Fatalf("unexpected ksic code/category %q %q", r.KsicCode, r.KsicCategory)
	}
	if r.Industry.Detail.Code != "58222" {
		t.Fatalf("expected ksicHierarchy decoded, got %+v", r.Industry)
	}
	if got, want := r.IndustryPath(), "정보통신업>출판업>소프트웨어 개발 및 공급업>응용 소프트웨어 개발 및 공급업"; got != want {
		t.Fatalf("IndustryPath = %q, want %q", got, want)
	}

	if len(r.DomesticMarket.Points) != 3 {
		t.Fatalf("expected 3 domestic points, got %d", len(r.DomesticMarket.Points))
	}
	if r.DomesticMarket.Source != "한국소프트웨어산업협회 2023" {
		t.Fatalf("unexpected domestic source %q", r.DomesticMarket.Source)
	}
	first := r.DomesticMarket.Points[0]
	if first.Year != 2021 || !first.Size.Amount.Equal(decimal.NewFromInt(1200000000)) || first.Size.Currency != normalize.CurrencyUSD {
		t.Fatalf("unexpected first domestic point: %+v", first)
	}
	if diff := first.GrowthRate - 0.045; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("unexpected growth rate %v", first.GrowthRate)
	}
	if got := r.GlobalMarket.Points[0].GrowthRate; got > -0.0149 || got < -0.0151 {
		t.Fatalf("expected negative global growth, got %v", got)
	}

	if r.AverageRevenue.Domestic.Currency != normalize.CurrencyKRW {
		t.Fatalf("expected KRW domestic revenue, got %s", r.AverageRevenue.Domestic.Currency)
	}

	if len(r.SupportPrograms) != 2 {
		t.Fatalf("expected 2 support programs, got %d", len(r.SupportPrograms))
	}
	if !r.SupportPrograms[0].Period.Parsed() || r.SupportPrograms[0].Period.Start == nil {
		t.Fatalf("expected first program period parsed: %+v", r.SupportPrograms[0].Period)
	}
	if r.SupportPrograms[1].Period.Parsed() || r.SupportPrograms[1].Period.Raw != "상시 모집" {
		t.Fatalf("expected second program period kept raw: %+v", r.SupportPrograms[1].Period)
	}

	// array order is preserved; ranking happens on read-back
	if r.SimilarServices[0].Name != "Beta" || r.SimilarServices[0].Order != 2 {
		t.Fatalf("expected wire order preserved, got %+v", r.SimilarServices[0])
	}
	if r.Scores.Total != 63 || r.OneLineReview == "" || r.Summary == "" {
		t.Fatalf("unexpected scores or review: %+v", r.Scores)
	}
}

func TestParseRejectsInvalidCompleteEvents(t *testing.T) {
	cases := map[string]func(doc map[string]any){
		"score above 100": func(doc map[string]any) {
			result(doc)["scores"].(map[string]any)["risk"] = 101
		},
		"empty impact": func(doc map[string]any) {
			lim := result(doc)["limitations"].([]any)[0].(map[string]any)
			lim["impact"] = ""
		},
		"growth rate below -100%": func(doc map[string]any) {
			series := result(doc)["marketSizeByYear"].(map[string]any)["global"].([]any)
			series[0].(map[string]any)["growthRate"] = "-150%"
		},
		"missing ksic code": func(doc map[string]any) {
			delete(result(doc), "ksicCode")
		},
		"money without glyph": func(doc map[string]any) {
			result(doc)["averageRevenue"].(map[string]any)["global"] = "2,400,000"
		},
		"percentage without sign": func(doc map[string]any) {
			series := result(doc)["marketSizeByYear"].(map[string]any)["domestic"].([]any)
			series[0].(map[string]any)["growthRate"] = "4.5"
		},
		"missing industry level": func(doc map[string]any) {
			delete(result(doc)["ksicHierarchy"].(map[string]any), "detail")
		},
		"tagline too short": func(doc map[string]any) {
			result(doc)["businessModel"].(map[string]any)["tagline"] = "abc"
		},
		"citation not last": func(doc map[string]any) {
			m := result(doc)["marketSizeByYear"].(map[string]any)
			series := m["global"].([]any)
			m["global"] = []any{series[2], series[0], series[1]}
		},
		"no citation": func(doc map[string]any) {
			m := result(doc)["marketSizeByYear"].(map[string]any)
			series := m["global"].([]any)
			m["global"] = series[:2]
		},
		"team priority zero": func(doc map[string]any) {
			role := result(doc)["requiredTeam"].(map[string]any)["roles"].([]any)[0].(map[string]any)
			role["priority"] = 0
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(mutateFixture(t, mutate))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestSplitTrendAndCitationRoundTrip(t *testing.T) {
	points := []map[string]any{
		{"year": 2020, "size": "$100", "growthRate": "1%"},
		{"year": 2021, "size": "$110", "growthRate": "10%"},
		{"year": 2022, "size": "$99.5", "growthRate": "-9.5%"},
	}
	raw := make([]json.RawMessage, 0, len(points)+1)
	for _, p := range points {
		b, _ := json.Marshal(p)
		raw = append(raw, b)
	}
	raw = append(raw, json.RawMessage(`{"source":"OECD"}`))

	got, source, err := SplitTrendAndCitation(raw)
	if err != nil {
		t.Fatalf("SplitTrendAndCitation: %v", err)
	}
	if source != "OECD" {
		t.Fatalf("source = %q, want OECD", source)
	}
	if len(got) != len(points) {
		t.Fatalf("expected %d points, got %d", len(points), len(got))
	}
	wantYears := []int{2020, 2021, 2022}
	wantSizes := []string{"100", "110", "99.5"}
	for i, p := range got {
		if p.Year != wantYears[i] {
			t.Fatalf("point %d year = %d, want %d", i, p.Year, wantYears[i])
		}
		if !p.Size.Amount.Equal(decimal.RequireFromString(wantSizes[i])) {
			t.Fatalf("point %d size = %s, want %s", i, p.Size.Amount, wantSizes[i])
		}
	}
}

func TestSplitTrendAndCitationRejectsShortSequences(t *testing.T) {
	for _, raw := range [][]json.RawMessage{
		nil,
		{json.RawMessage(`{"source":"only"}`)},
	} {
		if _, _, err := SplitTrendAndCitation(raw); !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected ErrInvalid for %d elements, got %v", len(raw), err)
		}
	}
}

func TestSplitTrendAndCitationRejectsMixedElement(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`{"year":2020,"size":"$1","growthRate":"1%"}`),
		json.RawMessage(`{"year":2021,"size":"$1","growthRate":"1%","source":"x"}`),
	}
	_, _, err := SplitTrendAndCitation(raw)
	if err == nil || !strings.Contains(err.Error(), "citation") {
		t.Fatalf("expected citation error, got %v", err)
	}
}
