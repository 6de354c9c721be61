package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Rajchodisetti/stock-insights/internal/observ"
)

// DefaultBaseURL is the Alpha Vantage query endpoint
const DefaultBaseURL = "https://www.alphavantage.co/query"

// Provider functions used by this client
const (
	FnGlobalQuote     = "GLOBAL_QUOTE"
	FnOverview        = "OVERVIEW"
	FnTimeSeriesDaily = "TIME_SERIES_DAILY"
	FnSymbolSearch    = "SYMBOL_SEARCH"
	FnMarketStatus    = "MARKET_STATUS"
	FnSMA             = "SMA"
	FnRSI             = "RSI"
)

const maxResponseBytes = 8 << 20

// symbolless functions take no symbol parameter
var symbolless = map[string]bool{
	FnSymbolSearch: true,
	FnMarketStatus: true,
}

// IsSymbolless reports whether function is called without a symbol.
func IsSymbolless(function string) bool {
	return symbolless[strings.ToUpper(strings.TrimSpace(function))]
}

// CallEvent describes one recorded provider call
type CallEvent struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Function  string    `json:"function"`
	Symbol    string    `json:"symbol,omitempty"`
	Success   bool      `json:"success"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
}

// CallObserver is notified after every recorded call. Implementations must
// not block.
type CallObserver interface {
	ObserveCall(ev CallEvent)
}

// FetchClient issues budgeted Alpha Vantage requests and classifies replies
type FetchClient struct {
	apiKey           string
	baseURL          string
	httpClient       HTTPClient
	timeout          time.Duration
	throttleCooldown time.Duration

	tracker    *StatusTracker
	limiter    *RateLimiter
	normalizer *SymbolNormalizer
	clock      Clock
	cache      *PayloadCache
	observer   CallObserver

	// benign provider notes repeat on every response; log a sample
	noteLog rate.Sometimes
}

// FetchClientOption is a configuration option for the fetch client.
type FetchClientOption func(*FetchClient)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(httpClient HTTPClient) FetchClientOption {
	return func(c *FetchClient) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets the provider endpoint.
func WithBaseURL(baseURL string) FetchClientOption {
	return func(c *FetchClient) {
		c.baseURL = baseURL
	}
}

// WithTimeout bounds each HTTP request.
func WithTimeout(d time.Duration) FetchClientOption {
	return func(c *FetchClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithThrottleCooldown sets how long a provider throttle signal blocks calls.
func WithThrottleCooldown(d time.Duration) FetchClientOption {
	return func(c *FetchClient) {
		if d > 0 {
			c.throttleCooldown = d
		}
	}
}

// WithPayloadCache enables response caching.
func WithPayloadCache(cache *PayloadCache) FetchClientOption {
	return func(c *FetchClient) {
		c.cache = cache
	}
}

// WithCallObserver registers an observer for recorded calls.
func WithCallObserver(o CallObserver) FetchClientOption {
	return func(c *FetchClient) {
		c.observer = o
	}
}

// NewFetchClient creates a client bound to tracker (and through it, the limiter).
func NewFetchClient(apiKey string, tracker *StatusTracker, normalizer *SymbolNormalizer, opts ...FetchClientOption) (*FetchClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("Alpha Vantage API key is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("status tracker is required")
	}
	if normalizer == nil {
		normalizer = NewSymbolNormalizer(DefaultNormalizerConfig())
	}

	c := &FetchClient{
		apiKey:           apiKey,
		baseURL:          DefaultBaseURL,
		httpClient:       http.DefaultClient,
		timeout:          30 * time.Second,
		throttleCooldown: time.Minute,
		tracker:          tracker,
		limiter:          tracker.Limiter(),
		normalizer:       normalizer,
		clock:            tracker.Limiter().Clock(),
		noteLog:          rate.Sometimes{First: 1, Interval: 10 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *FetchClient) Tracker() *StatusTracker       { return c.tracker }
func (c *FetchClient) Normalizer() *SymbolNormalizer { return c.normalizer }

// Call runs one budgeted provider request. Every outcome is either a payload
// or a *FetchError. Unsupported symbols and cache hits never touch the budget;
// unsupported symbols still land in the call log as failures.
func (c *FetchClient) Call(ctx context.Context, function, symbol string, params url.Values) (Payload, error) {
	function = strings.ToUpper(strings.TrimSpace(function))

	var sym Symbol
	if !IsSymbolless(function) {
		sym = c.normalizer.Normalize(symbol)
		if sym.Ticker == "" || !c.normalizer.BelongsToSupportedMarket(sym) {
			// logged as a failed call; the budget is untouched
			c.tracker.Record(function, strings.TrimSpace(symbol), false)
			observ.IncCounter("av_errors_total", map[string]string{"kind": string(KindUnsupportedMarket)})
			return nil, NewUnsupportedMarketError(function, symbol)
		}
	}
	symStr := ""
	if !sym.IsZero() {
		symStr = sym.String()
	}

	key := cacheKey(function, sym, params)
	if p, ok := c.cache.Get(key); ok {
		return p, nil
	}

	start := c.clock.Now()
	payload, err := c.do(ctx, function, sym, params)
	latency := c.clock.Now().Sub(start)

	c.tracker.Record(function, symStr, err == nil)
	c.afterCall(function, symStr, latency, err)

	if err != nil {
		return nil, err
	}
	c.cache.Set(key, payload)
	return payload, nil
}

func (c *FetchClient) do(ctx context.Context, function string, sym Symbol, params url.Values) (Payload, error) {
	symStr := ""
	if !sym.IsZero() {
		symStr = sym.String()
	}

	dec := c.limiter.Admit()
	if dec.Kind == Wait {
		select {
		case <-ctx.Done():
			return nil, c.contextError(ctx, function, symStr, ctx.Err())
		case <-c.clock.After(dec.Delay):
		}
		dec = c.limiter.Admit()
		if dec.Kind == Wait {
			return nil, NewRateLimitError(function, symStr, ReasonMinInterval, dec.Delay)
		}
	}
	if dec.Kind == Refuse {
		return nil, NewRateLimitError(function, symStr, dec.Reason, dec.Delay)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.requestURL(function, sym, params), nil)
	if err != nil {
		return nil, NewNetworkError(function, symStr, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, reqCtx, function, symStr, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, c.transportError(ctx, reqCtx, function, symStr, err)
	}

	cls := ClassifyResponse(resp.StatusCode, body)
	switch cls.Outcome {
	case OutcomeAuthFailure:
		return nil, NewAuthError(function, symStr, cls.Message)
	case OutcomeThrottled:
		d := c.throttleCooldown
		if ra := parseRetryAfter(resp.Header, c.clock.Now()); ra > d {
			d = ra
		}
		c.tracker.MarkThrottled(d, ReasonProvider)
		fe := NewRateLimitError(function, symStr, ReasonProvider, d)
		fe.Message = cls.Message
		return nil, fe
	case OutcomeProviderError:
		return nil, NewProviderError(function, symStr, cls.Message)
	case OutcomeMalformed:
		return nil, NewMalformedError(function, symStr, cls.Message, nil)
	}

	if cls.Note != "" {
		c.noteLog.Do(func() {
			observ.Log("av_provider_note", map[string]any{
				"function": function,
				"symbol":   symStr,
				"note":     cls.Note,
			})
		})
	}
	return cls.Payload, nil
}

func (c *FetchClient) requestURL(function string, sym Symbol, params url.Values) string {
	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("function", function)
	if !sym.IsZero() {
		q.Set("symbol", sym.String())
	} else {
		q.Del("symbol")
	}
	q.Set("apikey", c.apiKey)

	sep := "?"
	if strings.Contains(c.baseURL, "?") {
		sep = "&"
	}
	return c.baseURL + sep + q.Encode()
}

// transportError separates our own request timeout from caller cancellation
// and plain network failures.
func (c *FetchClient) transportError(parent, reqCtx context.Context, function, symbol string, err error) *FetchError {
	if parent.Err() != nil {
		return c.contextError(parent, function, symbol, err)
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(function, symbol, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeoutError(function, symbol, err)
	}
	return NewNetworkError(function, symbol, "request failed", err)
}

func (c *FetchClient) contextError(ctx context.Context, function, symbol string, cause error) *FetchError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewTimeoutError(function, symbol, cause)
	}
	return NewNetworkError(function, symbol, "request cancelled", cause)
}

func (c *FetchClient) afterCall(function, symbol string, latency time.Duration, err error) {
	result := "success"
	ev := CallEvent{
		ID:        uuid.NewString(),
		Time:      c.clock.Now().UTC(),
		Function:  function,
		Symbol:    symbol,
		Success:   err == nil,
		LatencyMs: latency.Milliseconds(),
	}

	if err != nil {
		kind := KindOf(err)
		result = string(kind)
		ev.ErrorKind = kind
		var fe *FetchError
		if errors.As(err, &fe) {
			ev.Reason = fe.Reason
		}
		observ.IncCounter("av_errors_total", map[string]string{"kind": string(kind)})
		if kind == KindAuthFailure {
			observ.SetGauge("av_auth_failing", 1, nil)
		}
		observ.Warn("av_call_failed", map[string]any{
			"function": function,
			"symbol":   symbol,
			"kind":     string(kind),
			"error":    err.Error(),
		})
	} else {
		observ.SetGauge("av_auth_failing", 0, nil)
		observ.Debug("av_call_ok", map[string]any{
			"function":   function,
			"symbol":     symbol,
			"latency_ms": latency.Milliseconds(),
		})
	}

	observ.IncCounter("av_calls_total", map[string]string{"function": function, "result": result})
	observ.RecordDuration("av_call_latency", latency, map[string]string{"function": function})

	snap := c.tracker.Snapshot()
	observ.SetGauge("av_budget_available", float64(snap.AvailableCalls), nil)
	observ.SetGauge("av_budget_used_today", float64(snap.CallsMadeToday), nil)
	observ.SetGauge("av_budget_daily_cap", float64(snap.DailyCapacity), nil)

	if c.observer != nil {
		c.observer.ObserveCall(ev)
	}
}
