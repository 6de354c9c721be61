package adapters

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNoQuote          = errors.New("no quote data returned")
	ErrMissingPrice     = errors.New("quote has no usable price")
	ErrMissingChangePct = errors.New("quote has no change percent")
)

// GlobalQuote is a decoded GLOBAL_QUOTE response. Alpha Vantage sends every
// field as a string under numbered keys.
type GlobalQuote struct {
	Symbol           string          `json:"symbol"`
	Open             decimal.Decimal `json:"open"`
	High             decimal.Decimal `json:"high"`
	Low              decimal.Decimal `json:"low"`
	Price            decimal.Decimal `json:"price"`
	Volume           int64           `json:"volume"`
	LatestTradingDay string          `json:"latest_trading_day"`
	PreviousClose    decimal.Decimal `json:"previous_close"`
	Change           decimal.Decimal `json:"change"`
	ChangePercent    decimal.Decimal `json:"change_percent"`
	// ChangePercentOK is false when the provider sent a change percent that
	// does not parse as a number.
	ChangePercentOK  bool   `json:"change_percent_ok"`
	RawChangePercent string `json:"raw_change_percent"`
}

// ParseGlobalQuote extracts a quote. Price and change percent must be present;
// an unparseable change percent is tolerated and flagged.
func ParseGlobalQuote(p Payload) (*GlobalQuote, error) {
	raw, ok := p["Global Quote"].(map[string]any)
	if !ok || len(raw) == 0 {
		return nil, ErrNoQuote
	}
	field := func(k string) string {
		s, _ := raw[k].(string)
		return strings.TrimSpace(s)
	}

	price, err := parseDecimal(field("05. price"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingPrice, err)
	}
	rawPct := field("10. change percent")
	if rawPct == "" {
		return nil, ErrMissingChangePct
	}

	q := &GlobalQuote{
		Symbol:           field("01. symbol"),
		Price:            price,
		LatestTradingDay: field("07. latest trading day"),
		RawChangePercent: rawPct,
	}
	q.Open, _ = parseDecimal(field("02. open"))
	q.High, _ = parseDecimal(field("03. high"))
	q.Low, _ = parseDecimal(field("04. low"))
	q.PreviousClose, _ = parseDecimal(field("08. previous close"))
	q.Change, _ = parseDecimal(field("09. change"))
	if v, err := strconv.ParseInt(field("06. volume"), 10, 64); err == nil {
		q.Volume = v
	}
	if pct, err := parsePercent(rawPct); err == nil {
		q.ChangePercent = pct
		q.ChangePercentOK = true
	}
	return q, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || strings.EqualFold(s, "N/A") || strings.EqualFold(s, "None") || s == "-" {
		return decimal.Zero, fmt.Errorf("value %q is not a number", s)
	}
	return decimal.NewFromString(s)
}

// parsePercent accepts "1.2345%", "-0.7 %" or a bare number.
func parsePercent(s string) (decimal.Decimal, error) {
	return parseDecimal(strings.TrimSuffix(strings.TrimSpace(s), "%"))
}
