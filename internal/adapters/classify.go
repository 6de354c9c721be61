package adapters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Payload is a decoded provider JSON object
type Payload map[string]any

// Outcome of classifying one provider response
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeAuthFailure
	OutcomeThrottled
	OutcomeProviderError
	OutcomeMalformed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAuthFailure:
		return "auth_failure"
	case OutcomeThrottled:
		return "throttled"
	case OutcomeProviderError:
		return "provider_error"
	case OutcomeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Classification is the pure result of inspecting status and body.
// Note carries benign Note/Information text on success.
type Classification struct {
	Outcome Outcome
	Message string
	Note    string
	Payload Payload
}

// throttleMarker is the only provider text treated as a throttle signal
const throttleMarker = "call frequency"

// ClassifyResponse maps a provider response onto an outcome. Priority:
// 403, throttle signals, "Error Message", other failures, success.
func ClassifyResponse(status int, body []byte) Classification {
	if status == http.StatusForbidden {
		return Classification{Outcome: OutcomeAuthFailure, Message: fmt.Sprintf("HTTP %d: access denied", status)}
	}

	obj, objErr := decodeObject(body)

	if status == http.StatusTooManyRequests {
		return Classification{Outcome: OutcomeThrottled, Message: fmt.Sprintf("HTTP %d", status)}
	}
	if objErr == nil {
		for _, field := range []string{"Note", "Information"} {
			if text, ok := obj[field].(string); ok && containsFold(text, throttleMarker) {
				return Classification{Outcome: OutcomeThrottled, Message: text}
			}
		}
	} else if containsFold(string(body), throttleMarker) {
		return Classification{Outcome: OutcomeThrottled, Message: snippet(body)}
	}

	if objErr == nil {
		if msg, ok := obj["Error Message"].(string); ok && msg != "" {
			return Classification{Outcome: OutcomeProviderError, Message: msg}
		}
	}

	if status != http.StatusOK {
		return Classification{Outcome: OutcomeMalformed, Message: fmt.Sprintf("HTTP %d: %s", status, snippet(body))}
	}
	if objErr != nil {
		return Classification{Outcome: OutcomeMalformed, Message: objErr.Error()}
	}

	c := Classification{Outcome: OutcomeSuccess, Payload: obj}
	for _, field := range []string{"Note", "Information"} {
		if text, ok := obj[field].(string); ok && text != "" {
			c.Note = text
			break
		}
	}
	return c
}

func decodeObject(body []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, fmt.Errorf("body is not JSON: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("body is JSON %T, want object", v)
	}
	return Payload(obj), nil
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}

func snippet(body []byte) string {
	const maxLen = 200
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}

// parseRetryAfter reads a Retry-After header in seconds or HTTP-date form.
func parseRetryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}
