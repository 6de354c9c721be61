package adapters

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quotePayload(fields map[string]any) Payload {
	return Payload{"Global Quote": fields}
}

func TestParseGlobalQuote(t *testing.T) {
	q, err := ParseGlobalQuote(quotePayload(map[string]any{
		"01. symbol":             "NSE:RELIANCE",
		"02. open":               "2840.00",
		"03. high":               "2870.50",
		"04. low":                "2831.10",
		"05. price":              "2856.15",
		"06. volume":             "5123456",
		"07. latest trading day": "2025-03-03",
		"08. previous close":     "2813.95",
		"09. change":             "42.20",
		"10. change percent":     "1.4997%",
	}))
	require.NoError(t, err)

	assert.Equal(t, "NSE:RELIANCE", q.Symbol)
	assert.True(t, q.Price.Equal(decimal.RequireFromString("2856.15")))
	assert.True(t, q.ChangePercent.Equal(decimal.RequireFromString("1.4997")))
	assert.True(t, q.ChangePercentOK)
	assert.Equal(t, int64(5123456), q.Volume)
	assert.Equal(t, "2025-03-03", q.LatestTradingDay)
	assert.Equal(t, "1.4997%", q.RawChangePercent)
}

func TestParseGlobalQuoteRejects(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		wantErr error
	}{
		{"no quote object", Payload{}, ErrNoQuote},
		{"empty quote object", quotePayload(map[string]any{}), ErrNoQuote},
		{"missing price", quotePayload(map[string]any{"10. change percent": "1%"}), ErrMissingPrice},
		{"price N/A", quotePayload(map[string]any{"05. price": "N/A", "10. change percent": "1%"}), ErrMissingPrice},
		{"missing change percent", quotePayload(map[string]any{"05. price": "10.5"}), ErrMissingChangePct},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGlobalQuote(tt.payload)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseGlobalQuoteUnparseablePercent(t *testing.T) {
	q, err := ParseGlobalQuote(quotePayload(map[string]any{
		"05. price":          "1,489.50",
		"10. change percent": "n/a%",
	}))
	require.NoError(t, err)
	assert.False(t, q.ChangePercentOK)
	assert.True(t, q.ChangePercent.IsZero())
	assert.True(t, q.Price.Equal(decimal.RequireFromString("1489.50")))
}
