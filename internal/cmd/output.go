package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Rajchodisetti/stock-insights/internal/adapters"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func renderStatus(w io.Writer, s adapters.StatusSnapshot) {
	t := newTable(w)
	t.SetTitle("Alpha Vantage budget")
	t.AppendRows([]table.Row{
		{"Available now", s.AvailableCalls},
		{"This minute", fmt.Sprintf("%d / %d", s.CallsMadeThisMinute, s.MinuteCapacity)},
		{"Today", fmt.Sprintf("%d / %d", s.CallsMadeToday, s.DailyCapacity)},
		{"Throttled", yesNo(s.IsThrottled)},
		{"Next reset (s)", s.SecondsToNextReset},
	})
	if s.IsThrottled {
		t.AppendRow(table.Row{"Throttle reason", s.ThrottleReason})
		if s.RateLimitResetInSeconds != nil {
			t.AppendRow(table.Row{"Throttle clears in (s)", *s.RateLimitResetInSeconds})
		}
	}
	t.Render()

	if len(s.RecentCalls) == 0 {
		return
	}
	calls := newTable(w)
	calls.SetTitle("Recent calls")
	calls.AppendHeader(table.Row{"Time", "Function", "Symbol", "OK"})
	for _, c := range s.RecentCalls {
		calls.AppendRow(table.Row{c.Timestamp.Format("15:04:05"), c.Function, c.Symbol, yesNo(c.Success)})
	}
	calls.Render()
}

func renderTrending(w io.Writer, entries []adapters.TrendEntry) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Symbol", "Name", "Price", "Change %", "Strength", "Momentum", "Sector", "Source"})
	fallback := 0
	for i, e := range entries {
		source := "live"
		if e.IsFallback {
			source = "fallback"
			fallback++
		}
		t.AppendRow(table.Row{
			i + 1, e.Symbol, e.DisplayName, e.Price.StringFixed(2), e.ChangePercent.StringFixed(2),
			e.TrendStrength, e.Momentum, e.Sector, source,
		})
	}
	if fallback > 0 {
		t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d of %d from static fallback", fallback, len(entries))})
	}
	t.Render()
}

func renderQuote(w io.Writer, q *adapters.GlobalQuote) {
	t := newTable(w)
	t.SetTitle(q.Symbol)
	change := "n/a"
	if q.ChangePercentOK {
		change = q.ChangePercent.StringFixed(2) + "%"
	}
	t.AppendRows([]table.Row{
		{"Price", q.Price.StringFixed(2)},
		{"Change", change},
		{"Volume", q.Volume},
		{"Trading day", q.LatestTradingDay},
	})
	t.Render()
}

func renderPreflight(w io.Writer, p adapters.PreflightResult) {
	t := newTable(w)
	t.SetTitle("Preflight: " + strings.TrimSpace(p.Function+" "+p.Symbol))
	t.AppendRows([]table.Row{
		{"Cost", p.Cost},
		{"Available", p.Status.AvailableCalls},
		{"Can proceed", yesNo(p.CanProceed)},
		{"Recommendation", p.Recommendation},
		{"Fallback available", yesNo(p.FallbackAvailable)},
	})
	if p.Reason != "" {
		t.AppendRow(table.Row{"Reason", p.Reason})
		t.AppendRow(table.Row{"Wait (s)", p.WaitSeconds})
	}
	t.Render()
}

func renderMatches(w io.Writer, matches []adapters.SymbolMatch) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Symbol", "Name", "Type", "Region", "Currency"})
	for _, m := range matches {
		t.AppendRow(table.Row{m.Symbol, m.Name, m.Type, m.Region, m.Currency})
	}
	t.Render()
}

func renderAnalysis(w io.Writer, ta *adapters.TechnicalAnalysis) {
	t := newTable(w)
	t.SetTitle("Technical analysis: " + ta.Symbol)
	t.AppendHeader(table.Row{"Indicator", "Period", "Date", "Value"})
	for _, name := range []string{adapters.FnSMA, adapters.FnRSI} {
		ind, ok := ta.Indicators[name]
		if !ok {
			t.AppendRow(table.Row{name, "", "", "unavailable"})
			continue
		}
		t.AppendRow(table.Row{name, ind.TimePeriod, ind.Date, ind.Value.StringFixed(2)})
	}
	if ta.Partial {
		t.AppendFooter(table.Row{"", "", "", "partial (budget)"})
	}
	t.Render()
}

func renderStockData(w io.Writer, d *adapters.StockData) {
	if d.Quote != nil {
		renderQuote(w, d.Quote)
	}
	t := newTable(w)
	t.AppendRow(table.Row{"Market", d.Market})
	for _, key := range []string{"Name", "Sector", "Industry", "MarketCapitalization", "PERatio"} {
		if v, ok := d.Overview[key]; ok {
			t.AppendRow(table.Row{key, v})
		}
	}
	t.AppendRow(table.Row{"Daily series", yesNo(d.Daily != nil)})
	if len(d.Skipped) > 0 {
		t.AppendRow(table.Row{"Skipped", strings.Join(d.Skipped, ", ")})
	}
	t.Render()
}
