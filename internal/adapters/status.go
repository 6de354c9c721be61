package adapters

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const callLogCap = 10

// CallRecord is one attempted provider call
type CallRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Function  string    `json:"function"`
	Symbol    string    `json:"symbol"`
	Success   bool      `json:"success"`
}

// StatusSnapshot is a read-only view of the budget. It is computed on demand
// and never stored.
type StatusSnapshot struct {
	AvailableCalls          int          `json:"available_calls"`
	CallsMadeThisMinute     int          `json:"calls_made_this_minute"`
	CallsMadeToday          int          `json:"calls_made_today"`
	MinuteCapacity          int          `json:"minute_capacity"`
	DailyCapacity           int          `json:"daily_capacity"`
	DailyRemaining          int          `json:"daily_remaining"`
	IsThrottled             bool         `json:"is_throttled"`
	ThrottleReason          string       `json:"throttle_reason,omitempty"`
	SecondsToNextReset      int          `json:"seconds_to_next_reset"`
	RateLimitResetInSeconds *int         `json:"rate_limit_reset_in_seconds,omitempty"`
	RecentCalls             []CallRecord `json:"recent_calls"`
}

// StatusTracker keeps the recent call log and projects budget status. It
// shares the limiter's mutex and throttle state.
type StatusTracker struct {
	lim *RateLimiter
	log []CallRecord
}

func NewStatusTracker(lim *RateLimiter) *StatusTracker {
	return &StatusTracker{lim: lim, log: make([]CallRecord, 0, callLogCap)}
}

// Limiter returns the limiter this tracker is bound to.
func (t *StatusTracker) Limiter() *RateLimiter { return t.lim }

// Record appends one attempt to the call log, dropping the oldest beyond ten.
func (t *StatusTracker) Record(function, symbol string, success bool) {
	t.lim.mu.Lock()
	rec := CallRecord{Timestamp: t.lim.clock.Now(), Function: function, Symbol: symbol, Success: success}
	if len(t.log) >= callLogCap {
		t.log = append(t.log[:0], t.log[len(t.log)-callLogCap+1:]...)
	}
	t.log = append(t.log, rec)
	t.lim.mu.Unlock()
}

// Snapshot projects the current status without mutating any window.
func (t *StatusTracker) Snapshot() StatusSnapshot {
	t.lim.mu.Lock()
	defer t.lim.mu.Unlock()
	l := t.lim
	now := l.clock.Now()

	minuteCount := l.minute.count(now)
	dayCount := l.day.count(now)
	s := StatusSnapshot{
		CallsMadeThisMinute: minuteCount,
		CallsMadeToday:      dayCount,
		MinuteCapacity:      l.cfg.PerMinute,
		DailyCapacity:       l.cfg.PerDay,
		DailyRemaining:      max(0, l.cfg.PerDay-dayCount),
		RecentCalls:         append([]CallRecord(nil), t.log...),
	}

	// an expired throttle reads as clear even before an admission clears it
	throttled := l.throttle.Throttled && now.Before(l.throttle.ResetAt)
	if throttled {
		s.IsThrottled = true
		s.ThrottleReason = l.throttle.Reason
		secs := ceilSeconds(l.throttle.ResetAt.Sub(now))
		s.RateLimitResetInSeconds = &secs
	} else {
		s.AvailableCalls = min(max(0, l.cfg.PerMinute-minuteCount), s.DailyRemaining)
	}

	if oldest, ok := l.minute.oldestLive(now); ok {
		s.SecondsToNextReset = ceilSeconds(oldest.Add(minuteWindow).Sub(now))
	}
	return s
}

// MarkThrottled sets the shared throttle for d.
func (t *StatusTracker) MarkThrottled(d time.Duration, reason string) {
	t.lim.MarkThrottled(d, reason)
}

// CheckAndClearThrottle reports whether the shared throttle is still active.
func (t *StatusTracker) CheckAndClearThrottle() bool {
	return t.lim.CheckAndClearThrottle()
}

// Logical operations that cost more or less than one provider call
const (
	OpStockData         = "stock_data"
	OpTechnicalAnalysis = "technical_analysis"
	OpTrending          = "trending"
)

var operationCosts = map[string]int{
	FnGlobalQuote:       1,
	FnOverview:          1,
	FnTimeSeriesDaily:   1,
	FnSymbolSearch:      1,
	FnSMA:               1,
	FnRSI:               1,
	OpTechnicalAnalysis: 2,
	OpStockData:         1,
	OpTrending:          5,
}

// OperationCost is the estimated number of provider calls for an operation.
func OperationCost(op string) int {
	if c, ok := operationCosts[strings.TrimSpace(op)]; ok {
		return c
	}
	if c, ok := operationCosts[strings.ToUpper(strings.TrimSpace(op))]; ok {
		return c
	}
	return 1
}

// PreflightResult is advisory; the limiter still decides on the real call.
type PreflightResult struct {
	Function          string         `json:"function"`
	Symbol            string         `json:"symbol"`
	Cost              int            `json:"cost"`
	CanProceed        bool           `json:"can_proceed"`
	Recommendation    string         `json:"recommendation"`
	FallbackAvailable bool           `json:"fallback_available"`
	Reason            string         `json:"reason,omitempty"`
	WaitSeconds       int            `json:"wait_seconds,omitempty"`
	Status            StatusSnapshot `json:"status"`
}

// Preflight compares an operation's cost against the calls available now.
func (t *StatusTracker) Preflight(function, symbol string) PreflightResult {
	status := t.Snapshot()
	cost := OperationCost(function)
	can := !status.IsThrottled && status.AvailableCalls >= cost

	res := PreflightResult{
		Function:          function,
		Symbol:            symbol,
		Cost:              cost,
		CanProceed:        can,
		Recommendation:    "proceed",
		FallbackAvailable: function == OpTrending || function == OpTechnicalAnalysis,
		Status:            status,
	}
	if can {
		return res
	}

	res.Recommendation = "wait"
	switch {
	case status.IsThrottled:
		res.Reason = "API is currently rate limited"
		res.WaitSeconds = 60
		if status.RateLimitResetInSeconds != nil {
			res.WaitSeconds = *status.RateLimitResetInSeconds
		}
	case status.DailyRemaining < cost:
		res.Reason = fmt.Sprintf("Daily budget exhausted (%d remaining, %d required)", status.DailyRemaining, cost)
		res.WaitSeconds = status.SecondsToNextReset
	default:
		res.Reason = fmt.Sprintf("Not enough available calls (%d available, %d required)", status.AvailableCalls, cost)
		res.WaitSeconds = status.SecondsToNextReset
	}
	return res
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
