package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/stock-insights/internal/observ"
)

type TrendStrength string

const (
	StrengthWeak   TrendStrength = "WEAK"
	StrengthMedium TrendStrength = "MEDIUM"
	StrengthStrong TrendStrength = "STRONG"
)

type Momentum string

const (
	MomentumBullish Momentum = "BULLISH"
	MomentumBearish Momentum = "BEARISH"
	MomentumNeutral Momentum = "NEUTRAL"
)

// TrendEntry is one row of the trending list. IsFallback marks static
// catalogue data that did not come from a live call.
type TrendEntry struct {
	Symbol        string          `json:"symbol"`
	DisplayName   string          `json:"display_name"`
	Price         decimal.Decimal `json:"price"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Sector        string          `json:"sector"`
	TrendStrength TrendStrength   `json:"trend_strength"`
	Momentum      Momentum        `json:"momentum"`
	IsFallback    bool            `json:"is_fallback"`
	Market        string          `json:"market"`
	Insight       string          `json:"insight,omitempty"`
}

var (
	strongThreshold = decimal.NewFromInt(3)
	mediumThreshold = decimal.NewFromInt(1)
)

// ClassifyTrend derives strength and momentum from a change percent. ok=false
// means the percent did not parse.
func ClassifyTrend(pct decimal.Decimal, ok bool) (TrendStrength, Momentum) {
	if !ok {
		return StrengthWeak, MomentumNeutral
	}
	momentum := MomentumBearish
	if pct.IsPositive() {
		momentum = MomentumBullish
	}
	abs := pct.Abs()
	switch {
	case abs.GreaterThan(strongThreshold):
		return StrengthStrong, momentum
	case abs.GreaterThan(mediumThreshold):
		return StrengthMedium, momentum
	default:
		return StrengthWeak, momentum
	}
}

// QuoteFetcher is the part of FetchClient the aggregator needs
type QuoteFetcher interface {
	Call(ctx context.Context, function, symbol string, params url.Values) (Payload, error)
}

// TrendingAggregator builds a ranked list inside the call budget, padding
// with static entries when live data runs out.
type TrendingAggregator struct {
	fetcher   QuoteFetcher
	catalogue *Catalogue
}

func NewTrendingAggregator(fetcher QuoteFetcher, catalogue *Catalogue) *TrendingAggregator {
	return &TrendingAggregator{fetcher: fetcher, catalogue: catalogue}
}

// Trending returns exactly limit entries unless the fallback catalogue is too
// small. It never fails.
func (a *TrendingAggregator) Trending(ctx context.Context, limit int) []TrendEntry {
	return a.TrendingExcluding(ctx, limit, nil)
}

// TrendingExcluding is Trending with some symbols left out of both the scan
// and the fallback padding.
func (a *TrendingAggregator) TrendingExcluding(ctx context.Context, limit int, exclude []string) []TrendEntry {
	if limit <= 0 {
		return []TrendEntry{}
	}
	excluded := make(map[string]bool, len(exclude))
	for _, s := range exclude {
		excluded[strings.ToUpper(strings.TrimSpace(s))] = true
	}

	var candidates []Candidate
	for _, c := range a.catalogue.Candidates() {
		if !excluded[c.Symbol] {
			candidates = append(candidates, c)
		}
	}
	toTry := min(2*limit, len(candidates))

	live, stopReason := a.scan(ctx, candidates[:toTry], limit)

	result := live
	present := make(map[string]bool, len(live))
	for _, e := range live {
		present[e.Symbol] = true
	}
	padded := 0
	if len(result) < limit {
		for _, fb := range a.catalogue.Fallback() {
			if padded >= limit-len(live) {
				break
			}
			if present[fb.Symbol] || excluded[fb.Symbol] {
				continue
			}
			present[fb.Symbol] = true
			result = append(result, fb)
			padded++
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ChangePercent.Abs().GreaterThan(result[j].ChangePercent.Abs())
	})
	if len(result) > limit {
		result = result[:limit]
	}

	observ.SetGauge("trending_fallback_entries", float64(padded), nil)
	if padded > 0 {
		observ.IncCounterBy("trending_fallback_entries_total", nil, int64(padded))
		observ.Warn("trending_fallback_used", map[string]any{
			"live":        len(live),
			"fallback":    padded,
			"limit":       limit,
			"stop_reason": stopReason,
		})
	}
	return result
}

// scan queries candidates in order and returns the live entries plus the
// reason the scan ended.
func (a *TrendingAggregator) scan(ctx context.Context, candidates []Candidate, limit int) ([]TrendEntry, string) {
	live := make([]TrendEntry, 0, limit)
	for _, cand := range candidates {
		if ctx.Err() != nil {
			return live, "cancelled"
		}

		payload, err := a.fetcher.Call(ctx, FnGlobalQuote, cand.Symbol, nil)
		if err != nil {
			switch {
			case errors.Is(err, ErrRateLimited):
				return live, "rate_limited"
			case errors.Is(err, ErrAuthFailure):
				return live, "auth_failure"
			case ctx.Err() != nil:
				return live, "cancelled"
			}
			observ.Debug("trending_candidate_skipped", map[string]any{
				"symbol": cand.Symbol,
				"error":  err.Error(),
			})
			continue
		}

		q, err := ParseGlobalQuote(payload)
		if err != nil {
			observ.Debug("trending_candidate_skipped", map[string]any{
				"symbol": cand.Symbol,
				"error":  err.Error(),
			})
			continue
		}

		live = append(live, a.entryFromQuote(cand, q))
		if len(live) >= limit {
			return live, "satisfied"
		}
	}
	return live, "exhausted"
}

func (a *TrendingAggregator) entryFromQuote(cand Candidate, q *GlobalQuote) TrendEntry {
	strength, momentum := ClassifyTrend(q.ChangePercent, q.ChangePercentOK)
	name := cand.Name
	if name == "" {
		name = a.catalogue.NameFor(cand.Symbol)
	}
	return TrendEntry{
		Symbol:        cand.Symbol,
		DisplayName:   name,
		Price:         q.Price,
		ChangePercent: q.ChangePercent,
		Sector:        a.catalogue.SectorFor(cand.Symbol),
		TrendStrength: strength,
		Momentum:      momentum,
		Market:        marketOf(cand.Symbol),
		Insight: fmt.Sprintf("Stock has shown %s %s momentum recently with %s change.",
			strings.ToLower(string(strength)), strings.ToLower(string(momentum)), q.RawChangePercent),
	}
}
