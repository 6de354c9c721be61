package observ

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

type registry struct {
	mu       sync.Mutex
	counters map[string]map[string]int64   // name -> labelsKey -> count
	gauges   map[string]map[string]float64 // name -> labelsKey -> value
	hist     map[string]map[string][]float64
}

var reg = newRegistry()

func newRegistry() *registry {
	return &registry{
		counters: map[string]map[string]int64{},
		gauges:   map[string]map[string]float64{},
		hist:     map[string]map[string][]float64{},
	}
}

// maxSamples bounds each histogram series.
const maxSamples = 1024

// canonicalize label map so key order is stable
func canonLabels(lbl map[string]string) string {
	if len(lbl) == 0 {
		return ""
	}
	keys := make([]string, 0, len(lbl))
	for k := range lbl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(lbl[k])
	}
	return b.String()
}

func IncCounter(name string, labels map[string]string) {
	IncCounterBy(name, labels, 1)
}

func IncCounterBy(name string, labels map[string]string, value int64) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.counters[name]
	if !ok {
		m = map[string]int64{}
		reg.counters[name] = m
	}
	m[canonLabels(labels)] += value
}

func SetGauge(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.gauges[name]
	if !ok {
		m = map[string]float64{}
		reg.gauges[name] = m
	}
	m[canonLabels(labels)] = value
}

func Observe(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.hist[name]
	if !ok {
		m = map[string][]float64{}
		reg.hist[name] = m
	}
	k := canonLabels(labels)
	s := append(m[k], value)
	if len(s) > maxSamples {
		s = s[len(s)-maxSamples:]
	}
	m[k] = s
}

// RecordDuration records a duration metric in milliseconds.
func RecordDuration(name string, duration time.Duration, labels map[string]string) {
	Observe(name+"_ms", float64(duration.Milliseconds()), labels)
}

// CounterTotal sums a counter across all label sets.
func CounterTotal(name string) int64 {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	var total int64
	for _, v := range reg.counters[name] {
		total += v
	}
	return total
}

// Counter returns a single labelled counter value.
func Counter(name string, labels map[string]string) int64 {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.counters[name][canonLabels(labels)]
}

// Gauge returns a single labelled gauge value.
func Gauge(name string, labels map[string]string) (float64, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	v, ok := reg.gauges[name][canonLabels(labels)]
	return v, ok
}

// Reset clears every series. Intended for tests.
func Reset() {
	fresh := newRegistry()
	reg.mu.Lock()
	reg.counters = fresh.counters
	reg.gauges = fresh.gauges
	reg.hist = fresh.hist
	reg.mu.Unlock()
}

// Basic JSON dump for quick checks (not Prometheus format on purpose)
func Handler() http.Handler {
	type dump struct {
		Counters map[string]map[string]int64     `json:"counters"`
		Gauges   map[string]map[string]float64   `json:"gauges"`
		Hist     map[string]map[string][]float64 `json:"histograms"`
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reg.mu.Lock()
		defer reg.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dump{Counters: reg.counters, Gauges: reg.gauges, Hist: reg.hist})
	})
}

// HealthStatus represents overall provider health
type HealthStatus struct {
	Status    string         `json:"status"`    // "healthy", "degraded", "failed"
	Timestamp string         `json:"timestamp"` // ISO 8601
	Uptime    string         `json:"uptime"`
	Version   string         `json:"version"`
	Metrics   HealthMetrics  `json:"metrics"`
	Details   map[string]any `json:"details"`
}

// HealthMetrics holds the budget and call-outcome figures behind the status
type HealthMetrics struct {
	CallsTotal      int64   `json:"calls_total"`
	SuccessRate     float64 `json:"success_rate"`
	LatencyP95Ms    int64   `json:"latency_p95_ms"`
	ThrottleEvents  int64   `json:"throttle_events"`
	BudgetAvailable int     `json:"budget_available"`
	BudgetUsedToday int     `json:"budget_used_today"`
	BudgetDailyCap  int     `json:"budget_daily_cap"`
	BudgetRemainPct float64 `json:"budget_remaining_pct"`
	Throttled       bool    `json:"throttled"`
	FallbackServed  int64   `json:"fallback_entries_served"`
}

var (
	startTime = time.Now()
	version   = "dev" // Set via build flags
)

// SetVersion sets the version string for health reports
func SetVersion(v string) {
	version = v
}

// HealthHandler returns the detailed health endpoint
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reg.mu.Lock()
		metrics := calculateHealthMetrics()
		health := HealthStatus{
			Status:    overallStatus(metrics),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Uptime:    time.Since(startTime).String(),
			Version:   version,
			Metrics:   metrics,
			Details:   gatherHealthDetails(),
		}
		reg.mu.Unlock()

		statusCode := http.StatusOK
		if health.Status == "failed" {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(health)
	})
}

// overallStatus: throttled or exhausted budget is degraded. An auth failure not
// yet followed by a successful call, or a >50% error ratio over 20+ calls, is
// failed.
func overallStatus(m HealthMetrics) string {
	if firstGauge("av_auth_failing") == 1 {
		return "failed"
	}
	if m.CallsTotal >= 20 && m.SuccessRate < 0.5 {
		return "failed"
	}
	if m.Throttled || (m.BudgetDailyCap > 0 && m.BudgetUsedToday >= m.BudgetDailyCap) {
		return "degraded"
	}
	return "healthy"
}

// calculateHealthMetrics must be called with reg.mu held.
func calculateHealthMetrics() HealthMetrics {
	m := HealthMetrics{}

	var success int64
	for key, count := range reg.counters["av_calls_total"] {
		m.CallsTotal += count
		if strings.Contains(key, "result=success") {
			success += count
		}
	}
	if m.CallsTotal > 0 {
		m.SuccessRate = float64(success) / float64(m.CallsTotal)
	}

	for _, samples := range reg.hist["av_call_latency_ms"] {
		if p := p95(samples); int64(p) > m.LatencyP95Ms {
			m.LatencyP95Ms = int64(p)
		}
	}

	for _, count := range reg.counters["av_throttle_events_total"] {
		m.ThrottleEvents += count
	}
	for _, count := range reg.counters["trending_fallback_entries_total"] {
		m.FallbackServed += count
	}

	m.BudgetAvailable = int(firstGauge("av_budget_available"))
	m.BudgetUsedToday = int(firstGauge("av_budget_used_today"))
	m.BudgetDailyCap = int(firstGauge("av_budget_daily_cap"))
	m.Throttled = firstGauge("av_throttled") == 1
	if m.BudgetDailyCap > 0 {
		m.BudgetRemainPct = float64(m.BudgetDailyCap-m.BudgetUsedToday) / float64(m.BudgetDailyCap)
	}
	return m
}

func gatherHealthDetails() map[string]any {
	details := map[string]any{}

	type errorCount struct {
		Kind  string `json:"kind"`
		Count int64  `json:"count"`
	}
	var errs []errorCount
	for key, count := range reg.counters["av_errors_total"] {
		errs = append(errs, errorCount{Kind: strings.TrimPrefix(key, "kind="), Count: count})
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Count > errs[j].Count })
	if len(errs) > 5 {
		errs = errs[:5]
	}
	details["top_errors"] = errs

	if entries, ok := reg.gauges["av_payload_cache_size"]; ok {
		for _, v := range entries {
			details["cache_size"] = int(v)
			break
		}
	}
	return details
}

func firstGauge(name string) float64 {
	for _, v := range reg.gauges[name] {
		return v
	}
	return 0
}

func p95(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)
	idx := int(float64(len(sorted)) * 0.95)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Simple liveness handler
func Health() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}
