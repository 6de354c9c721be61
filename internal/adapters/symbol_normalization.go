package adapters

import (
	"strings"

	"github.com/Rajchodisetti/stock-insights/internal/observ"
)

// Exchange is a market code such as NSE or BSE
type Exchange string

const (
	ExchangeNSE Exchange = "NSE"
	ExchangeBSE Exchange = "BSE"
)

const exchangeDelimiter = ":"

// Symbol is an exchange-qualified ticker. String() gives EXCHANGE:TICKER.
type Symbol struct {
	Exchange Exchange `json:"exchange"`
	Ticker   string   `json:"ticker"`
}

func (s Symbol) String() string {
	return string(s.Exchange) + exchangeDelimiter + s.Ticker
}

// IsZero reports an empty symbol, used for symbol-less functions.
func (s Symbol) IsZero() bool {
	return s.Exchange == "" && s.Ticker == ""
}

// NormalizerConfig lists the markets the client serves
type NormalizerConfig struct {
	Supported       []Exchange
	DefaultExchange Exchange
	NumericExchange Exchange
}

func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		Supported:       []Exchange{ExchangeNSE, ExchangeBSE},
		DefaultExchange: ExchangeNSE,
		NumericExchange: ExchangeBSE,
	}
}

// SymbolNormalizer maps free-form input onto a supported exchange. It holds
// no mutable state and is safe for concurrent use.
type SymbolNormalizer struct {
	supported       map[Exchange]bool
	defaultExchange Exchange
	numericExchange Exchange
}

// NewSymbolNormalizer builds a normalizer. Default and numeric exchanges are
// always treated as supported.
func NewSymbolNormalizer(cfg NormalizerConfig) *SymbolNormalizer {
	def := DefaultNormalizerConfig()
	if cfg.DefaultExchange == "" {
		cfg.DefaultExchange = def.DefaultExchange
	}
	if cfg.NumericExchange == "" {
		cfg.NumericExchange = def.NumericExchange
	}
	if len(cfg.Supported) == 0 {
		cfg.Supported = def.Supported
	}

	sn := &SymbolNormalizer{
		supported:       make(map[Exchange]bool, len(cfg.Supported)+2),
		defaultExchange: Exchange(strings.ToUpper(string(cfg.DefaultExchange))),
		numericExchange: Exchange(strings.ToUpper(string(cfg.NumericExchange))),
	}
	for _, ex := range cfg.Supported {
		sn.supported[Exchange(strings.ToUpper(strings.TrimSpace(string(ex))))] = true
	}
	sn.supported[sn.defaultExchange] = true
	sn.supported[sn.numericExchange] = true
	return sn
}

// Normalize never fails. Rules, in order: an EXCHANGE:TICKER form keeps a
// supported exchange and downgrades anything else to the default; an all-digit
// ticker goes to the numeric exchange; everything else gets the default.
func (sn *SymbolNormalizer) Normalize(raw string) Symbol {
	s := strings.ToUpper(strings.TrimSpace(raw))

	if ex, ticker, ok := strings.Cut(s, exchangeDelimiter); ok {
		ex = strings.TrimSpace(ex)
		ticker = strings.TrimSpace(ticker)
		if sn.supported[Exchange(ex)] {
			return Symbol{Exchange: Exchange(ex), Ticker: ticker}
		}
		observ.Warn("symbol_exchange_downgraded", map[string]any{
			"input":    raw,
			"exchange": ex,
			"ticker":   ticker,
			"to":       string(sn.defaultExchange),
		})
		return Symbol{Exchange: sn.defaultExchange, Ticker: ticker}
	}

	if isNumericTicker(s) {
		return Symbol{Exchange: sn.numericExchange, Ticker: s}
	}
	return Symbol{Exchange: sn.defaultExchange, Ticker: s}
}

// BelongsToSupportedMarket checks exchange membership only.
func (sn *SymbolNormalizer) BelongsToSupportedMarket(sym Symbol) bool {
	return sn.supported[sym.Exchange]
}

// DefaultExchange returns the exchange used for unqualified tickers.
func (sn *SymbolNormalizer) DefaultExchange() Exchange { return sn.defaultExchange }

func isNumericTicker(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
