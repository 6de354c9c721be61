package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/stock-insights/internal/adapters"
	"github.com/Rajchodisetti/stock-insights/internal/config"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    map[string][]string
		wantErr bool
	}{
		{"empty", nil, map[string][]string{}, false},
		{"pairs", []string{"interval=daily", " time_period = 20"}, map[string][]string{"interval": {"daily"}, "time_period": {"20"}}, false},
		{"repeated", []string{"k=a", "k=b"}, map[string][]string{"k": {"a", "b"}}, false},
		{"empty value", []string{"k="}, map[string][]string{"k": {""}}, false},
		{"no equals", []string{"interval"}, nil, true},
		{"no key", []string{"=daily"}, nil, true},
		{"api key", []string{"APIKEY=x"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, map[string][]string(got))
		})
	}
}

func testConfig(t *testing.T) config.Root {
	t.Helper()
	c := config.Default()
	c.State.Path = filepath.Join(t.TempDir(), "state.json")
	return c
}

func TestNewRuntimeRequiresKeyForClient(t *testing.T) {
	c := testConfig(t)

	_, err := newRuntime(c, nil, true)
	assert.Error(t, err)

	rt, err := newRuntime(c, nil, false)
	require.NoError(t, err)
	assert.Nil(t, rt.client)
	rt.Close()

	c.AlphaVantage.APIKey = "demo"
	rt, err = newRuntime(c, nil, true)
	require.NoError(t, err)
	defer rt.Close()
	assert.NotNil(t, rt.client)
	assert.NotNil(t, rt.trending)
	assert.NotNil(t, rt.enricher)
	assert.Equal(t, adapters.ExchangeNSE, rt.client.Normalizer().DefaultExchange())
}

func TestRuntimePersistsBudgetAcrossRuns(t *testing.T) {
	c := testConfig(t)
	clock := adapters.NewManualClock(time.Date(2025, 3, 3, 9, 15, 0, 0, time.UTC))

	first, err := newRuntime(c, clock, false)
	require.NoError(t, err)
	require.Equal(t, adapters.Proceed, first.limiter.Admit().Kind)
	clock.Advance(12 * time.Second)
	require.Equal(t, adapters.Proceed, first.limiter.Admit().Kind)
	first.Close()

	clock.Advance(2 * time.Minute)
	second, err := newRuntime(c, clock, false)
	require.NoError(t, err)
	defer second.Close()

	snap := second.tracker.Snapshot()
	assert.Equal(t, 2, snap.CallsMadeToday)
	assert.Equal(t, 0, snap.CallsMadeThisMinute)
	assert.Equal(t, 498, snap.DailyRemaining)
}

func TestLimiterConfigFromSettings(t *testing.T) {
	av := config.Default().AlphaVantage
	av.RateLimitMinute = 2
	av.MinIntervalSecs = 30

	lc := limiterConfig(av)
	assert.Equal(t, 2, lc.PerMinute)
	assert.Equal(t, 500, lc.PerDay)
	assert.Equal(t, 30*time.Second, lc.MinInterval)
	assert.Equal(t, 5*time.Minute, lc.DayMargin)

	nc := normalizerConfig(config.AlphaVantage{DefaultExchange: "BSE", SupportedExchanges: []string{"BSE"}})
	assert.Equal(t, adapters.ExchangeBSE, nc.DefaultExchange)
	assert.Equal(t, []adapters.Exchange{adapters.ExchangeBSE}, nc.Supported)
}

func TestStatusCommandJSON(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
alpha_vantage:
  rate_limit_minute: 3
  rate_limit_day: 25
state:
  path: `+filepath.Join(dir, "state.json")+`
`), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"status", "--json", "--config", cfgPath, "--env-file", ""})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	t.Setenv("ALPHA_VANTAGE_RATE_LIMIT_DAY", "")
	t.Setenv("ALPHA_VANTAGE_RATE_LIMIT_MINUTE", "")

	require.NoError(t, Execute())

	var snap adapters.StatusSnapshot
	require.NoError(t, json.Unmarshal(out.Bytes(), &snap))
	assert.Equal(t, 3, snap.MinuteCapacity)
	assert.Equal(t, 25, snap.DailyCapacity)
	assert.Equal(t, 3, snap.AvailableCalls)
	assert.False(t, snap.IsThrottled)
}

func TestRenderTrending(t *testing.T) {
	var buf bytes.Buffer
	renderTrending(&buf, []adapters.TrendEntry{
		{Symbol: "NSE:TCS", DisplayName: "TCS", Price: decimal.RequireFromString("3567.8"), ChangePercent: decimal.RequireFromString("1.25"),
			TrendStrength: adapters.StrengthMedium, Momentum: adapters.MomentumBullish},
		{Symbol: "NSE:INFY", DisplayName: "Infosys", Price: decimal.RequireFromString("1489.5"), ChangePercent: decimal.RequireFromString("-0.7"),
			TrendStrength: adapters.StrengthWeak, Momentum: adapters.MomentumBearish, IsFallback: true},
	})
	s := buf.String()
	assert.Contains(t, s, "NSE:TCS")
	assert.Contains(t, s, "3567.80")
	assert.Contains(t, s, "fallback")
}
