package adapters

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher answers GLOBAL_QUOTE calls from a per-symbol script
type fakeFetcher struct {
	quotes map[string]string
	errs   map[string]error
	calls  []string
}

func (f *fakeFetcher) Call(_ context.Context, function, symbol string, _ url.Values) (Payload, error) {
	f.calls = append(f.calls, symbol)
	if err, ok := f.errs[symbol]; ok {
		return nil, err
	}
	pct, ok := f.quotes[symbol]
	if !ok {
		return nil, NewProviderError(function, symbol, "Invalid API call")
	}
	return quotePayload(map[string]any{
		"01. symbol":         symbol,
		"05. price":          "100.00",
		"10. change percent": pct,
	}), nil
}

func newTestAggregator(t *testing.T, f *fakeFetcher) *TrendingAggregator {
	t.Helper()
	cat, err := DefaultCatalogue()
	require.NoError(t, err)
	return NewTrendingAggregator(f, cat)
}

func assertRanked(t *testing.T, entries []TrendEntry) {
	t.Helper()
	seen := map[string]bool{}
	for i, e := range entries {
		assert.False(t, seen[e.Symbol], "duplicate %s", e.Symbol)
		seen[e.Symbol] = true
		if i > 0 {
			assert.True(t, entries[i-1].ChangePercent.Abs().GreaterThanOrEqual(e.ChangePercent.Abs()),
				"%s ranked above %s", entries[i-1].Symbol, e.Symbol)
		}
	}
}

func TestTrendingThrottledMidScan(t *testing.T) {
	f := &fakeFetcher{
		quotes: map[string]string{"NSE:RELIANCE": "2.5%"},
		errs: map[string]error{
			"NSE:TCS": NewRateLimitError(FnGlobalQuote, "NSE:TCS", ReasonProvider, time.Minute),
		},
	}
	agg := newTestAggregator(t, f)

	got := agg.Trending(testContext(t), 5)
	require.Len(t, got, 5)
	assertRanked(t, got)

	// the scan stops at the throttle
	assert.Equal(t, []string{"NSE:RELIANCE", "NSE:TCS"}, f.calls)

	live, fallback := 0, 0
	for _, e := range got {
		if e.IsFallback {
			fallback++
			continue
		}
		live++
		assert.Equal(t, "NSE:RELIANCE", e.Symbol)
		assert.Equal(t, "Reliance Industries", e.DisplayName)
		assert.Equal(t, StrengthMedium, e.TrendStrength)
		assert.Equal(t, MomentumBullish, e.Momentum)
		assert.Equal(t, "Oil & Gas", e.Sector)
		assert.Equal(t, "NSE", e.Market)
		assert.Contains(t, e.Insight, "2.5%")
	}
	assert.Equal(t, 1, live)
	assert.Equal(t, 4, fallback)

	// HDFCBANK (2.1) outranks the rest of the padding
	assert.Equal(t, "NSE:RELIANCE", got[0].Symbol)
	assert.Equal(t, "NSE:HDFCBANK", got[1].Symbol)
}

func TestTrendingAllLive(t *testing.T) {
	f := &fakeFetcher{quotes: map[string]string{
		"NSE:RELIANCE": "0.5%",
		"NSE:TCS":      "-4.2%",
		"NSE:HDFCBANK": "1.1%",
	}}
	agg := newTestAggregator(t, f)

	got := agg.Trending(testContext(t), 3)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"NSE:TCS", "NSE:HDFCBANK", "NSE:RELIANCE"},
		[]string{got[0].Symbol, got[1].Symbol, got[2].Symbol})
	for _, e := range got {
		assert.False(t, e.IsFallback)
	}
	assert.Equal(t, StrengthStrong, got[0].TrendStrength)
	assert.Equal(t, MomentumBearish, got[0].Momentum)
	assert.Len(t, f.calls, 3)
}

func TestTrendingSkipsFailedCandidates(t *testing.T) {
	// TCS and HDFCBANK fail with provider errors; the scan moves on
	f := &fakeFetcher{quotes: map[string]string{
		"NSE:RELIANCE": "1.2%",
		"NSE:INFY":     "-0.3%",
	}}
	agg := newTestAggregator(t, f)

	got := agg.Trending(testContext(t), 2)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"NSE:RELIANCE", "NSE:TCS", "NSE:HDFCBANK", "NSE:INFY"}, f.calls)
	for _, e := range got {
		assert.False(t, e.IsFallback)
	}
}

func TestTrendingScanBound(t *testing.T) {
	f := &fakeFetcher{}
	agg := newTestAggregator(t, f)

	got := agg.Trending(testContext(t), 3)
	assert.Len(t, f.calls, 6)
	require.Len(t, got, 3)
	for _, e := range got {
		assert.True(t, e.IsFallback)
	}
	assertRanked(t, got)
}

func TestTrendingStopsOnAuthFailure(t *testing.T) {
	f := &fakeFetcher{errs: map[string]error{
		"NSE:RELIANCE": NewAuthError(FnGlobalQuote, "NSE:RELIANCE", "HTTP 403: access denied"),
	}}
	agg := newTestAggregator(t, f)

	got := agg.Trending(testContext(t), 4)
	assert.Len(t, f.calls, 1)
	require.Len(t, got, 4)
	for _, e := range got {
		assert.True(t, e.IsFallback)
	}
}

func TestTrendingCancelled(t *testing.T) {
	f := &fakeFetcher{quotes: map[string]string{"NSE:RELIANCE": "1%"}}
	agg := newTestAggregator(t, f)

	ctx, cancel := context.WithCancel(testContext(t))
	cancel()
	got := agg.Trending(ctx, 2)
	assert.Empty(t, f.calls)
	assert.Len(t, got, 2)
}

func TestTrendingNonPositiveLimit(t *testing.T) {
	f := &fakeFetcher{}
	agg := newTestAggregator(t, f)

	for _, limit := range []int{0, -3} {
		got := agg.Trending(testContext(t), limit)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
	assert.Empty(t, f.calls)
}

func TestTrendingLimitBeyondFallback(t *testing.T) {
	f := &fakeFetcher{}
	agg := newTestAggregator(t, f)

	got := agg.Trending(testContext(t), 12)
	assert.Len(t, got, 8)
	assertRanked(t, got)
}

func TestTrendingExcluding(t *testing.T) {
	f := &fakeFetcher{quotes: map[string]string{"NSE:TCS": "0.9%"}}
	agg := newTestAggregator(t, f)

	got := agg.TrendingExcluding(testContext(t), 3, []string{"nse:reliance", "NSE:HDFCBANK"})
	require.Len(t, got, 3)
	assert.NotContains(t, f.calls, "NSE:RELIANCE")
	for _, e := range got {
		assert.NotEqual(t, "NSE:RELIANCE", e.Symbol)
		assert.NotEqual(t, "NSE:HDFCBANK", e.Symbol)
	}
	assertRanked(t, got)
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		pct      string
		ok       bool
		strength TrendStrength
		momentum Momentum
	}{
		{"3.5", true, StrengthStrong, MomentumBullish},
		{"-3.01", true, StrengthStrong, MomentumBearish},
		{"3", true, StrengthMedium, MomentumBullish},
		{"1.01", true, StrengthMedium, MomentumBullish},
		{"1", true, StrengthWeak, MomentumBullish},
		{"0", true, StrengthWeak, MomentumBearish},
		{"0", false, StrengthWeak, MomentumNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.pct, func(t *testing.T) {
			s, m := ClassifyTrend(decimal.RequireFromString(tt.pct), tt.ok)
			assert.Equal(t, tt.strength, s)
			assert.Equal(t, tt.momentum, m)
		})
	}
}
