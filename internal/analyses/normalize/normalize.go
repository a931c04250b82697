// Package normalize turns the loosely formatted strings produced by the AI
// analysis service into typed values.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	CurrencyUSD = "USD"
	CurrencyKRW = "KRW"
)

var (
	ErrInvalidMoney      = errors.New("invalid money")
	ErrInvalidPercentage = errors.New("invalid percentage")
)

// FormatError reports a value that did not match its accepted grammar.
type FormatError struct {
	Kind  error
	Input string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%v: %q", e.Kind, e.Input)
}

func (e *FormatError) Unwrap() error { return e.Kind }

// Money is an amount with an explicit ISO currency code.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

var (
	moneyPattern      = regexp.MustCompile(`^([$₩])(\d+(?:,\d{3})*(?:\.\d+)?)$`)
	percentagePattern = regexp.MustCompile(`^(-?\d+(?:\.\d+)?)%$`)

	currencyByGlyph = map[string]string{
		"$": CurrencyUSD,
		"₩": CurrencyKRW,
	}
)

// ParseMoney parses strings like "$1,234.5" or "₩50,000".
func ParseMoney(s string) (Money, error) {
	m := moneyPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Money{}, &FormatError{Kind: ErrInvalidMoney, Input: s}
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(m[2], ",", ""))
	if err != nil {
		return Money{}, &FormatError{Kind: ErrInvalidMoney, Input: s}
	}
	return Money{Amount: amount, Currency: currencyByGlyph[m[1]]}, nil
}

// ParsePercentage parses "12.5%" into 0.125. The result is never below -1;
// growth above 100% is allowed.
func ParsePercentage(s string) (float64, error) {
	m := percentagePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, &FormatError{Kind: ErrInvalidPercentage, Input: s}
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, &FormatError{Kind: ErrInvalidPercentage, Input: s}
	}
	fraction := v / 100
	if fraction < -1 {
		return 0, &FormatError{Kind: ErrInvalidPercentage, Input: s}
	}
	return fraction, nil
}

// Period is a validity window. Start and End are nil when Raw was not
// recognized; an open-ended "until" window has only End.
type Period struct {
	Raw   string     `json:"raw"`
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Parsed reports whether an end date was recognized.
func (p Period) Parsed() bool {
	return p.End != nil
}

type periodPattern struct {
	re *regexp.Regexp
	// build maps submatches to (startY, startM, startD, endY, endM, endD).
	// A zero start year means the window has no start.
	build func(n []int) [6]int
}

// Patterns may match anywhere in the text. The match starting earliest wins,
// so "until" never claims the tail of a two-year range; on equal starts the
// earlier pattern wins.
var periodPatterns = []periodPattern{
	{
		re: regexp.MustCompile(`(\d{4})년\s*(\d{1,2})월\s*(\d{1,2})일\s*까지`),
		build: func(n []int) [6]int {
			return [6]int{0, 0, 0, n[0], n[1], n[2]}
		},
	},
	{
		re: regexp.MustCompile(`(\d{4})년\s*(\d{1,2})월\s*(\d{1,2})일\s*부터\s*(\d{1,2})월\s*(\d{1,2})일\s*까지`),
		build: func(n []int) [6]int {
			return [6]int{n[0], n[1], n[2], n[0], n[3], n[4]}
		},
	},
	{
		re: regexp.MustCompile(`(\d{4})년\s*(\d{1,2})월\s*(\d{1,2})일\s*부터\s*(\d{4})년\s*(\d{1,2})월\s*(\d{1,2})일\s*까지`),
		build: func(n []int) [6]int {
			return [6]int{n[0], n[1], n[2], n[3], n[4], n[5]}
		},
	},
	{
		re: regexp.MustCompile(`(\d{4})년\s*(\d{1,2})월\s*(\d{1,2})일\s*~\s*(\d{1,2})월\s*(\d{1,2})일`),
		build: func(n []int) [6]int {
			return [6]int{n[0], n[1], n[2], n[0], n[3], n[4]}
		},
	},
	{
		re: regexp.MustCompile(`(\d{4})년\s*(\d{1,2})월\s*(\d{1,2})일\s*~\s*(\d{4})년\s*(\d{1,2})월\s*(\d{1,2})일`),
		build: func(n []int) [6]int {
			return [6]int{n[0], n[1], n[2], n[3], n[4], n[5]}
		},
	},
}

// ParsePeriod recognizes the Korean date-range forms used by support program
// listings. It never fails: unrecognized text comes back with only Raw set.
func ParsePeriod(s string) Period {
	out := Period{Raw: s}
	best := -1
	for _, p := range periodPatterns {
		loc := p.re.FindStringSubmatchIndex(s)
		if loc == nil || (best >= 0 && loc[0] >= best) {
			continue
		}
		start, end, ok := p.window(s, loc)
		if !ok {
			continue
		}
		best = loc[0]
		out.Start, out.End = start, end
	}
	return out
}

// window converts a match into dates. Impossible calendar dates count as no
// match.
func (p periodPattern) window(s string, loc []int) (*time.Time, *time.Time, bool) {
	nums := make([]int, 0, len(loc)/2-1)
	for i := 2; i+1 < len(loc); i += 2 {
		v, err := strconv.Atoi(s[loc[i]:loc[i+1]])
		if err != nil {
			return nil, nil, false
		}
		nums = append(nums, v)
	}
	b := p.build(nums)
	end, ok := civilDate(b[3], b[4], b[5])
	if !ok {
		return nil, nil, false
	}
	if b[0] == 0 {
		return nil, &end, true
	}
	start, ok := civilDate(b[0], b[1], b[2])
	if !ok {
		return nil, nil, false
	}
	return &start, &end, true
}

// civilDate rejects dates that time.Date would silently roll over.
func civilDate(y, m, d int) (time.Time, bool) {
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}
