package adapters

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/stock-insights/internal/observ"
)

// Enricher composes several provider calls into one lookup while backing off
// as soon as the budget is throttled.
type Enricher struct {
	client *FetchClient
}

func NewEnricher(client *FetchClient) *Enricher {
	return &Enricher{client: client}
}

// StockData is the combined quote/overview/daily lookup. Later sections are
// empty when the budget ran out before they were fetched.
type StockData struct {
	Symbol   string       `json:"symbol"`
	Market   string       `json:"market"`
	Quote    *GlobalQuote `json:"quote,omitempty"`
	Overview Payload      `json:"overview,omitempty"`
	Daily    Payload      `json:"daily_data,omitempty"`
	Skipped  []string     `json:"skipped,omitempty"`
}

// StockData fetches the quote first, the overview only after a good quote, and
// the daily series only after both, stopping once throttled.
func (e *Enricher) StockData(ctx context.Context, symbol string) (*StockData, error) {
	sym := e.client.Normalizer().Normalize(symbol)
	out := &StockData{Symbol: sym.String(), Market: "Other"}
	if e.client.Normalizer().BelongsToSupportedMarket(sym) {
		out.Market = "Indian"
	}

	payload, err := e.client.Call(ctx, FnGlobalQuote, sym.String(), nil)
	if err != nil {
		return nil, err
	}
	q, err := ParseGlobalQuote(payload)
	if err != nil {
		return nil, NewMalformedError(FnGlobalQuote, sym.String(), "quote response has no usable data", err)
	}
	out.Quote = q

	if e.throttled() {
		out.Skipped = append(out.Skipped, FnOverview, FnTimeSeriesDaily)
		return out, nil
	}
	overview, err := e.client.Call(ctx, FnOverview, sym.String(), nil)
	if err != nil || len(overview) == 0 {
		e.logSkip(sym, FnOverview, err)
		out.Skipped = append(out.Skipped, FnOverview, FnTimeSeriesDaily)
		return out, nil
	}
	out.Overview = overview

	if e.throttled() {
		out.Skipped = append(out.Skipped, FnTimeSeriesDaily)
		return out, nil
	}
	daily, err := e.client.Call(ctx, FnTimeSeriesDaily, sym.String(), url.Values{"outputsize": {"compact"}})
	if err != nil {
		e.logSkip(sym, FnTimeSeriesDaily, err)
		out.Skipped = append(out.Skipped, FnTimeSeriesDaily)
		return out, nil
	}
	out.Daily = daily
	return out, nil
}

// Indicator is the latest value of one technical indicator
type Indicator struct {
	Value      decimal.Decimal `json:"value"`
	TimePeriod int             `json:"time_period"`
	Date       string          `json:"date"`
}

type TechnicalAnalysis struct {
	Symbol     string               `json:"symbol"`
	Indicators map[string]Indicator `json:"indicators"`
	Partial    bool                 `json:"partial,omitempty"`
}

const (
	smaPeriod = 20
	rsiPeriod = 14
)

// TechnicalAnalysis fetches SMA(20) then RSI(14) on daily closes. Once SMA is
// in hand a failed or throttled RSI yields a partial result, not an error.
func (e *Enricher) TechnicalAnalysis(ctx context.Context, symbol string) (*TechnicalAnalysis, error) {
	sym := e.client.Normalizer().Normalize(symbol)
	out := &TechnicalAnalysis{Symbol: sym.String(), Indicators: map[string]Indicator{}}

	sma, err := e.client.Call(ctx, FnSMA, sym.String(), indicatorParams(smaPeriod))
	if err != nil {
		return nil, err
	}
	if ind, ok := latestIndicator(sma, FnSMA, smaPeriod); ok {
		out.Indicators[FnSMA] = ind
	}

	_, haveSMA := out.Indicators[FnSMA]
	if haveSMA && e.throttled() {
		out.Partial = true
		observ.Log("technical_analysis_partial", map[string]any{"symbol": out.Symbol, "reason": "throttled"})
		return out, nil
	}

	rsi, err := e.client.Call(ctx, FnRSI, sym.String(), indicatorParams(rsiPeriod))
	if err != nil {
		if haveSMA {
			out.Partial = true
			observ.Log("technical_analysis_partial", map[string]any{"symbol": out.Symbol, "reason": string(KindOf(err))})
			return out, nil
		}
		return nil, err
	}
	if ind, ok := latestIndicator(rsi, FnRSI, rsiPeriod); ok {
		out.Indicators[FnRSI] = ind
	}
	return out, nil
}

func indicatorParams(period int) url.Values {
	return url.Values{
		"interval":    {"daily"},
		"time_period": {strconv.Itoa(period)},
		"series_type": {"close"},
	}
}

// latestIndicator reads "Technical Analysis: <NAME>" keyed by date and picks
// the most recent date.
func latestIndicator(p Payload, name string, period int) (Indicator, bool) {
	series, ok := p["Technical Analysis: "+name].(map[string]any)
	if !ok || len(series) == 0 {
		return Indicator{}, false
	}
	dates := make([]string, 0, len(series))
	for d := range series {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	point, ok := series[dates[0]].(map[string]any)
	if !ok {
		return Indicator{}, false
	}
	raw, _ := point[name].(string)
	v, err := parseDecimal(raw)
	if err != nil {
		return Indicator{}, false
	}
	return Indicator{Value: v, TimePeriod: period, Date: dates[0]}, true
}

// SymbolMatch is one filtered SYMBOL_SEARCH result
type SymbolMatch struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Region      string `json:"region"`
	MarketOpen  string `json:"market_open"`
	MarketClose string `json:"market_close"`
	Timezone    string `json:"timezone"`
	Currency    string `json:"currency"`
}

var ErrEmptyKeywords = errors.New("search keywords are required")

// SearchSymbols runs SYMBOL_SEARCH and keeps Indian listings only: region
// mentions India or the name mentions NSE/BSE.
func (e *Enricher) SearchSymbols(ctx context.Context, keywords string) ([]SymbolMatch, error) {
	keywords = strings.TrimSpace(keywords)
	if keywords == "" {
		return nil, ErrEmptyKeywords
	}
	payload, err := e.client.Call(ctx, FnSymbolSearch, "", url.Values{"keywords": {keywords}})
	if err != nil {
		return nil, err
	}
	raw, ok := payload["bestMatches"].([]any)
	if !ok {
		return []SymbolMatch{}, nil
	}

	matches := make([]SymbolMatch, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		get := func(k string) string {
			s, _ := m[k].(string)
			return s
		}
		region, name := get("4. region"), get("2. name")
		if !strings.Contains(region, "India") && !strings.Contains(name, "NSE") && !strings.Contains(name, "BSE") {
			continue
		}
		matches = append(matches, SymbolMatch{
			Symbol:      get("1. symbol"),
			Name:        name,
			Type:        get("3. type"),
			Region:      region,
			MarketOpen:  get("5. marketOpen"),
			MarketClose: get("6. marketClose"),
			Timezone:    get("7. timezone"),
			Currency:    get("8. currency"),
		})
	}
	return matches, nil
}

func (e *Enricher) throttled() bool {
	return e.client.Tracker().CheckAndClearThrottle()
}

func (e *Enricher) logSkip(sym Symbol, function string, err error) {
	kv := map[string]any{"symbol": sym.String(), "function": function}
	if err != nil {
		kv["error"] = err.Error()
	}
	observ.Log("stock_data_section_skipped", kv)
}

