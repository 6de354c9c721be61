package adapters

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies fetch failures
type ErrorKind string

const (
	KindUnsupportedMarket ErrorKind = "unsupported_market"
	KindRateLimited       ErrorKind = "rate_limited"
	KindAuthFailure       ErrorKind = "auth_failure"
	KindTimeout           ErrorKind = "timeout"
	KindProviderError     ErrorKind = "provider_error"
	KindMalformed         ErrorKind = "malformed"
	KindNetwork           ErrorKind = "network"
)

// Sentinels for errors.Is; they match any *FetchError of the same kind.
var (
	ErrUnsupportedMarket = &FetchError{Kind: KindUnsupportedMarket}
	ErrRateLimited       = &FetchError{Kind: KindRateLimited}
	ErrAuthFailure       = &FetchError{Kind: KindAuthFailure}
	ErrTimeout           = &FetchError{Kind: KindTimeout}
	ErrProviderError     = &FetchError{Kind: KindProviderError}
	ErrMalformed         = &FetchError{Kind: KindMalformed}
	ErrNetwork           = &FetchError{Kind: KindNetwork}
)

// FetchError is the only error type FetchClient returns
type FetchError struct {
	Kind       ErrorKind
	Function   string
	Symbol     string
	Message    string
	Reason     string        // rate_limited only: throttled|minute-limit|day-limit|provider-call-frequency
	RetryAfter time.Duration // rate_limited only
	Cause      error
}

func (e *FetchError) Error() string {
	target := e.Function
	if e.Symbol != "" {
		target += " " + e.Symbol
	}
	msg := e.Message
	if e.Reason != "" {
		msg = fmt.Sprintf("%s [%s, retry after %s]", msg, e.Reason, e.RetryAfter.Round(time.Second))
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s error for %s: %s (%v)", e.Kind, target, msg, e.Cause)
	}
	return fmt.Sprintf("%s error for %s: %s", e.Kind, target, msg)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Is matches on kind so callers can test against the sentinels.
func (e *FetchError) Is(target error) bool {
	fe, ok := target.(*FetchError)
	return ok && fe.Kind == e.Kind
}

// Retryable: rate limits after RetryAfter, timeouts, malformed bodies and
// network failures. Unsupported markets, auth and provider errors need the
// caller to change something first.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindTimeout, KindMalformed, KindNetwork:
		return true
	default:
		return false
	}
}

// KindOf extracts the error kind, or "" when err is not a FetchError.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }

// Common error constructors
func NewUnsupportedMarketError(function, symbol string) *FetchError {
	return &FetchError{Kind: KindUnsupportedMarket, Function: function, Symbol: symbol,
		Message: "symbol is not on a supported exchange"}
}

func NewRateLimitError(function, symbol, reason string, retryAfter time.Duration) *FetchError {
	return &FetchError{Kind: KindRateLimited, Function: function, Symbol: symbol,
		Message: "call budget exhausted", Reason: reason, RetryAfter: retryAfter}
}

func NewAuthError(function, symbol, message string) *FetchError {
	return &FetchError{Kind: KindAuthFailure, Function: function, Symbol: symbol, Message: message}
}

func NewTimeoutError(function, symbol string, cause error) *FetchError {
	return &FetchError{Kind: KindTimeout, Function: function, Symbol: symbol, Message: "request timed out", Cause: cause}
}

func NewProviderError(function, symbol, message string) *FetchError {
	return &FetchError{Kind: KindProviderError, Function: function, Symbol: symbol, Message: message}
}

func NewMalformedError(function, symbol, message string, cause error) *FetchError {
	return &FetchError{Kind: KindMalformed, Function: function, Symbol: symbol, Message: message, Cause: cause}
}

func NewNetworkError(function, symbol, message string, cause error) *FetchError {
	return &FetchError{Kind: KindNetwork, Function: function, Symbol: symbol, Message: message, Cause: cause}
}
