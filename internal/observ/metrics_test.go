package observ

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndGauges(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	IncCounter("av_calls_total", map[string]string{"function": "GLOBAL_QUOTE", "result": "success"})
	IncCounter("av_calls_total", map[string]string{"result": "success", "function": "GLOBAL_QUOTE"})
	IncCounterBy("av_calls_total", map[string]string{"function": "OVERVIEW", "result": "rate_limited"}, 3)

	assert.Equal(t, int64(2), Counter("av_calls_total", map[string]string{"function": "GLOBAL_QUOTE", "result": "success"}))
	assert.Equal(t, int64(5), CounterTotal("av_calls_total"))
	assert.Equal(t, int64(0), CounterTotal("missing"))

	SetGauge("av_throttled", 1, nil)
	SetGauge("av_throttled", 0, nil)
	v, ok := Gauge("av_throttled", nil)
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)
	_, ok = Gauge("missing", nil)
	assert.False(t, ok)
}

func TestHistogramBounded(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	for i := 0; i < maxSamples+10; i++ {
		RecordDuration("av_call_latency", time.Duration(i)*time.Millisecond, nil)
	}
	reg.mu.Lock()
	samples := reg.hist["av_call_latency_ms"][""]
	reg.mu.Unlock()
	require.Len(t, samples, maxSamples)
	assert.Equal(t, 10.0, samples[0])
}

func TestP95(t *testing.T) {
	assert.Equal(t, 0.0, p95(nil))
	samples := make([]float64, 0, 100)
	for i := 100; i >= 1; i-- {
		samples = append(samples, float64(i))
	}
	assert.Equal(t, 96.0, p95(samples))
}

func getHealth(t *testing.T) (int, HealthStatus) {
	t.Helper()
	rec := httptest.NewRecorder()
	HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/detail", nil))
	var hs HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hs))
	return rec.Code, hs
}

func TestHealthHandlerStatus(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		wantCode int
		want     string
	}{
		{
			name:     "healthy",
			setup:    func() { IncCounter("av_calls_total", map[string]string{"result": "success"}) },
			wantCode: http.StatusOK,
			want:     "healthy",
		},
		{
			name:     "throttled is degraded",
			setup:    func() { SetGauge("av_throttled", 1, nil) },
			wantCode: http.StatusOK,
			want:     "degraded",
		},
		{
			name: "daily cap used up is degraded",
			setup: func() {
				SetGauge("av_budget_daily_cap", 500, nil)
				SetGauge("av_budget_used_today", 500, nil)
			},
			wantCode: http.StatusOK,
			want:     "degraded",
		},
		{
			name: "auth failure is failed",
			setup: func() {
				IncCounter("av_errors_total", map[string]string{"kind": "auth_failure"})
				SetGauge("av_auth_failing", 1, nil)
			},
			wantCode: http.StatusServiceUnavailable,
			want:     "failed",
		},
		{
			name: "auth failure cleared by a later success",
			setup: func() {
				IncCounter("av_errors_total", map[string]string{"kind": "auth_failure"})
				SetGauge("av_auth_failing", 1, nil)
				SetGauge("av_auth_failing", 0, nil)
			},
			wantCode: http.StatusOK,
			want:     "healthy",
		},
		{
			name: "low success rate is failed",
			setup: func() {
				IncCounterBy("av_calls_total", map[string]string{"result": "success"}, 5)
				IncCounterBy("av_calls_total", map[string]string{"result": "timeout"}, 15)
			},
			wantCode: http.StatusServiceUnavailable,
			want:     "failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Reset()
			t.Cleanup(Reset)
			tt.setup()

			code, hs := getHealth(t)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.want, hs.Status)
		})
	}
}

func TestHealthMetricsBudget(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	SetGauge("av_budget_available", 3, nil)
	SetGauge("av_budget_used_today", 125, nil)
	SetGauge("av_budget_daily_cap", 500, nil)
	IncCounterBy("trending_fallback_entries_total", nil, 4)
	IncCounter("av_throttle_events_total", map[string]string{"reason": "minute-limit"})

	_, hs := getHealth(t)
	assert.Equal(t, 3, hs.Metrics.BudgetAvailable)
	assert.Equal(t, 125, hs.Metrics.BudgetUsedToday)
	assert.InDelta(t, 0.75, hs.Metrics.BudgetRemainPct, 1e-9)
	assert.Equal(t, int64(4), hs.Metrics.FallbackServed)
	assert.Equal(t, int64(1), hs.Metrics.ThrottleEvents)
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Health().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
