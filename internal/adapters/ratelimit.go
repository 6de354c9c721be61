package adapters

import (
	"sort"
	"sync"
	"time"

	"github.com/Rajchodisetti/stock-insights/internal/observ"
)

// Throttle and refusal reasons
const (
	ReasonThrottled   = "throttled"
	ReasonMinuteLimit = "minute-limit"
	ReasonDayLimit    = "day-limit"
	ReasonProvider    = "provider-call-frequency"
	ReasonMinInterval = "min-interval"
)

const (
	minuteWindow = time.Minute
	dayWindow    = 24 * time.Hour
)

// LimiterConfig carries the budget constants. Free tier defaults are set by
// DefaultLimiterConfig; callers override from configuration.
type LimiterConfig struct {
	PerMinute    int
	PerDay       int
	MinInterval  time.Duration
	MinuteMargin time.Duration
	DayMargin    time.Duration
}

func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		PerMinute:    4,
		PerDay:       500,
		MinInterval:  12 * time.Second,
		MinuteMargin: 5 * time.Second,
		DayMargin:    5 * time.Minute,
	}
}

// DecisionKind is the outcome of an admission check
type DecisionKind int

const (
	Proceed DecisionKind = iota
	Wait
	Refuse
)

func (k DecisionKind) String() string {
	switch k {
	case Proceed:
		return "proceed"
	case Wait:
		return "wait"
	case Refuse:
		return "refuse"
	default:
		return "unknown"
	}
}

// Decision is returned by Admit. Delay is the wait for Wait and the
// retry-after hint for Refuse.
type Decision struct {
	Kind   DecisionKind
	Delay  time.Duration
	Reason string
}

// RateWindow holds call timestamps inside a sliding window of fixed length.
// Timestamps are appended in order and never exceed capacity.
type RateWindow struct {
	length   time.Duration
	capacity int
	stamps   []time.Time
}

func newRateWindow(length time.Duration, capacity int) *RateWindow {
	return &RateWindow{length: length, capacity: capacity, stamps: make([]time.Time, 0, capacity)}
}

func (w *RateWindow) expired(now, t time.Time) bool {
	return now.Sub(t) >= w.length
}

func (w *RateWindow) evict(now time.Time) {
	i := 0
	for i < len(w.stamps) && w.expired(now, w.stamps[i]) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// count is the number of live entries at now without evicting anything
func (w *RateWindow) count(now time.Time) int {
	n := 0
	for _, t := range w.stamps {
		if !w.expired(now, t) {
			n++
		}
	}
	return n
}

// oldestLive returns the first entry still inside the window at now
func (w *RateWindow) oldestLive(now time.Time) (time.Time, bool) {
	for _, t := range w.stamps {
		if !w.expired(now, t) {
			return t, true
		}
	}
	return time.Time{}, false
}

func (w *RateWindow) full() bool { return len(w.stamps) >= w.capacity }

func (w *RateWindow) add(t time.Time) {
	if len(w.stamps) > 0 && t.Before(w.stamps[len(w.stamps)-1]) {
		t = w.stamps[len(w.stamps)-1]
	}
	w.stamps = append(w.stamps, t)
}

func (w *RateWindow) snapshot() []time.Time {
	out := make([]time.Time, len(w.stamps))
	copy(out, w.stamps)
	return out
}

// ThrottleState is the single throttle flag shared by limiter and tracker
type ThrottleState struct {
	Throttled bool      `json:"throttled"`
	ResetAt   time.Time `json:"reset_at"`
	Reason    string    `json:"reason,omitempty"`
}

// RateLimiter enforces per-minute and per-day call budgets plus a minimum
// spacing between calls. It never sleeps; waits are returned to the caller.
type RateLimiter struct {
	mu       sync.Mutex
	clock    Clock
	cfg      LimiterConfig
	minute   *RateWindow
	day      *RateWindow
	lastCall time.Time
	throttle ThrottleState
}

func NewRateLimiter(cfg LimiterConfig, clock Clock) *RateLimiter {
	def := DefaultLimiterConfig()
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = def.PerMinute
	}
	if cfg.PerDay <= 0 {
		cfg.PerDay = def.PerDay
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	if cfg.MinuteMargin < 0 {
		cfg.MinuteMargin = 0
	}
	if cfg.DayMargin < 0 {
		cfg.DayMargin = 0
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &RateLimiter{
		clock:  clock,
		cfg:    cfg,
		minute: newRateWindow(minuteWindow, cfg.PerMinute),
		day:    newRateWindow(dayWindow, cfg.PerDay),
	}
}

// Config returns the constants the limiter was built with.
func (l *RateLimiter) Config() LimiterConfig { return l.cfg }

// Clock returns the limiter's time source.
func (l *RateLimiter) Clock() Clock { return l.clock }

// Admit decides whether one provider call may go out now. On Proceed the call
// is already counted against both windows.
func (l *RateLimiter) Admit() Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()

	if l.throttle.Throttled {
		if now.Before(l.throttle.ResetAt) {
			return Decision{Kind: Refuse, Reason: ReasonThrottled, Delay: l.throttle.ResetAt.Sub(now)}
		}
		l.clearThrottleLocked(now)
	}

	if !l.lastCall.IsZero() && l.cfg.MinInterval > 0 {
		elapsed := now.Sub(l.lastCall)
		if elapsed < 0 {
			elapsed = 0
		}
		if elapsed < l.cfg.MinInterval {
			return Decision{Kind: Wait, Delay: l.cfg.MinInterval - elapsed}
		}
	}

	l.minute.evict(now)
	l.day.evict(now)

	if l.minute.full() {
		resetAt := l.minute.stamps[0].Add(minuteWindow + l.cfg.MinuteMargin)
		l.markLocked(now, resetAt, ReasonMinuteLimit)
		return Decision{Kind: Refuse, Reason: ReasonMinuteLimit, Delay: resetAt.Sub(now)}
	}
	if l.day.full() {
		resetAt := l.day.stamps[0].Add(dayWindow + l.cfg.DayMargin)
		l.markLocked(now, resetAt, ReasonDayLimit)
		return Decision{Kind: Refuse, Reason: ReasonDayLimit, Delay: resetAt.Sub(now)}
	}

	l.minute.add(now)
	l.day.add(now)
	l.lastCall = now
	return Decision{Kind: Proceed}
}

// MarkThrottled refuses all admissions for d. An existing later deadline wins.
func (l *RateLimiter) MarkThrottled(d time.Duration, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	l.markLocked(now, now.Add(d), reason)
}

// CheckAndClearThrottle clears an expired throttle and reports whether the
// limiter is still throttled.
func (l *RateLimiter) CheckAndClearThrottle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	if l.throttle.Throttled && !now.Before(l.throttle.ResetAt) {
		l.clearThrottleLocked(now)
	}
	return l.throttle.Throttled
}

func (l *RateLimiter) markLocked(now, resetAt time.Time, reason string) {
	if l.throttle.Throttled && l.throttle.ResetAt.After(resetAt) {
		return
	}
	l.throttle = ThrottleState{Throttled: true, ResetAt: resetAt, Reason: reason}
	observ.IncCounter("av_throttle_events_total", map[string]string{"reason": reason})
	observ.SetGauge("av_throttled", 1, nil)
	observ.Warn("av_throttled", map[string]any{
		"reason":        reason,
		"reset_at":      resetAt.UTC().Format(time.RFC3339),
		"reset_in_secs": int(resetAt.Sub(now).Seconds()),
	})
}

// clearThrottleLocked drops the throttle flag. Windows are left alone so the
// budget accounting survives the throttle.
func (l *RateLimiter) clearThrottleLocked(now time.Time) {
	reason := l.throttle.Reason
	l.throttle = ThrottleState{}
	observ.SetGauge("av_throttled", 0, nil)
	observ.Log("av_throttle_cleared", map[string]any{
		"reason": reason,
		"at":     now.UTC().Format(time.RFC3339),
	})
}

// LimiterState is the persisted form of the limiter
type LimiterState struct {
	MinuteCalls []time.Time   `json:"minute_calls"`
	DayCalls    []time.Time   `json:"day_calls"`
	LastCall    time.Time     `json:"last_call"`
	Throttle    ThrottleState `json:"throttle"`
}

// Export copies the limiter state for persistence.
func (l *RateLimiter) Export() LimiterState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LimiterState{
		MinuteCalls: l.minute.snapshot(),
		DayCalls:    l.day.snapshot(),
		LastCall:    l.lastCall,
		Throttle:    l.throttle,
	}
}

// Restore loads persisted state. Expired entries are dropped and each window
// keeps at most its capacity of the newest entries.
func (l *RateLimiter) Restore(st LimiterState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()

	l.minute = restoreWindow(minuteWindow, l.cfg.PerMinute, st.MinuteCalls, now)
	l.day = restoreWindow(dayWindow, l.cfg.PerDay, st.DayCalls, now)
	l.lastCall = st.LastCall
	l.throttle = st.Throttle
	if l.throttle.Throttled && !now.Before(l.throttle.ResetAt) {
		l.throttle = ThrottleState{}
	}
}

func restoreWindow(length time.Duration, capacity int, stamps []time.Time, now time.Time) *RateWindow {
	w := newRateWindow(length, capacity)
	sorted := append([]time.Time(nil), stamps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	for _, t := range sorted {
		if t.After(now) || w.expired(now, t) {
			continue
		}
		w.add(t)
	}
	if len(w.stamps) > capacity {
		w.stamps = append(w.stamps[:0], w.stamps[len(w.stamps)-capacity:]...)
	}
	return w
}
