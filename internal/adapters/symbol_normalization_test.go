package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	sn := NewSymbolNormalizer(DefaultNormalizerConfig())

	tests := []struct {
		raw  string
		want string
	}{
		{"RELIANCE", "NSE:RELIANCE"},
		{"reliance", "NSE:RELIANCE"},
		{"  tcs ", "NSE:TCS"},
		{"500325", "BSE:500325"},
		{"BSE:500325", "BSE:500325"},
		{"bse:532540", "BSE:532540"},
		{"NSE:INFY", "NSE:INFY"},
		{"NYSE:AAPL", "NSE:AAPL"},
		{"NASDAQ:MSFT", "NSE:MSFT"},
		{"NSE:M&M", "NSE:M&M"},
		{"NSE:500325", "NSE:500325"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := sn.Normalize(tt.raw)
			assert.Equal(t, tt.want, got.String())
			assert.True(t, sn.BelongsToSupportedMarket(got))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	sn := NewSymbolNormalizer(DefaultNormalizerConfig())

	inputs := []string{
		"RELIANCE", "500325", "BSE:500325", "NYSE:AAPL", "nse:tcs", "", ":", "NSE:",
		"A:B:C", " lse : vod ", "12AB", "0001", "NSE : INFY",
	}
	for _, in := range inputs {
		once := sn.Normalize(in)
		twice := sn.Normalize(once.String())
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestNormalizerCustomMarkets(t *testing.T) {
	sn := NewSymbolNormalizer(NormalizerConfig{
		Supported:       []Exchange{"nse"},
		DefaultExchange: "NSE",
		NumericExchange: "BSE",
	})

	// numeric exchange is always supported even if not listed
	assert.Equal(t, "BSE:500209", sn.Normalize("500209").String())
	assert.True(t, sn.BelongsToSupportedMarket(Symbol{Exchange: ExchangeBSE, Ticker: "X"}))
	assert.False(t, sn.BelongsToSupportedMarket(Symbol{Exchange: "NYSE", Ticker: "AAPL"}))
	assert.Equal(t, ExchangeNSE, sn.DefaultExchange())
}
