package adapters

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yaml
var defaultCatalogueYAML []byte

// Candidate is one symbol the trending scan may query
type Candidate struct {
	Symbol string `yaml:"symbol"`
	Name   string `yaml:"name"`
}

type fallbackSpec struct {
	Symbol        string `yaml:"symbol"`
	Name          string `yaml:"name"`
	Price         string `yaml:"price"`
	ChangePercent string `yaml:"change_percent"`
	Sector        string `yaml:"sector"`
	Strength      string `yaml:"strength"`
	Momentum      string `yaml:"momentum"`
	Insight       string `yaml:"insight"`
}

type catalogueFile struct {
	Candidates []Candidate       `yaml:"candidates"`
	Sectors    map[string]string `yaml:"sectors"`
	BSECodes   map[string]string `yaml:"bse_codes"`
	Fallback   []fallbackSpec    `yaml:"fallback"`
}

// Catalogue holds the curated candidates, sector map and static fallback
// entries. It is read-only after load.
type Catalogue struct {
	candidates []Candidate
	names      map[string]string
	sectors    map[string]string
	bseCodes   map[string]string
	fallback   []TrendEntry
}

// DefaultCatalogue parses the embedded catalogue.
func DefaultCatalogue() (*Catalogue, error) {
	return ParseCatalogue(defaultCatalogueYAML)
}

// LoadCatalogue reads a catalogue file; an empty path means the embedded one.
func LoadCatalogue(path string) (*Catalogue, error) {
	if path == "" {
		return DefaultCatalogue()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalogue %s: %w", path, err)
	}
	return ParseCatalogue(b)
}

func ParseCatalogue(b []byte) (*Catalogue, error) {
	var f catalogueFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}
	if len(f.Candidates) == 0 {
		return nil, fmt.Errorf("catalogue has no candidates")
	}

	c := &Catalogue{
		names:    map[string]string{},
		sectors:  map[string]string{},
		bseCodes: map[string]string{},
	}
	seen := map[string]bool{}
	for _, cand := range f.Candidates {
		cand.Symbol = strings.ToUpper(strings.TrimSpace(cand.Symbol))
		if cand.Symbol == "" || seen[cand.Symbol] {
			continue
		}
		seen[cand.Symbol] = true
		c.candidates = append(c.candidates, cand)
		c.names[cand.Symbol] = cand.Name
	}
	for k, v := range f.Sectors {
		c.sectors[strings.ToUpper(k)] = v
	}
	for k, v := range f.BSECodes {
		c.bseCodes[k] = strings.ToUpper(v)
	}

	for i, fs := range f.Fallback {
		price, err := decimal.NewFromString(fs.Price)
		if err != nil {
			return nil, fmt.Errorf("fallback entry %d (%s): price: %w", i, fs.Symbol, err)
		}
		pct, err := parsePercent(fs.ChangePercent)
		if err != nil {
			return nil, fmt.Errorf("fallback entry %d (%s): change_percent: %w", i, fs.Symbol, err)
		}
		sym := strings.ToUpper(strings.TrimSpace(fs.Symbol))
		strength, momentum := ClassifyTrend(pct, true)
		if fs.Strength != "" {
			strength = TrendStrength(strings.ToUpper(fs.Strength))
		}
		if fs.Momentum != "" {
			momentum = Momentum(strings.ToUpper(fs.Momentum))
		}
		sector := fs.Sector
		if sector == "" {
			sector = c.SectorFor(sym)
		}
		c.fallback = append(c.fallback, TrendEntry{
			Symbol:        sym,
			DisplayName:   fs.Name,
			Price:         price,
			ChangePercent: pct,
			Sector:        sector,
			TrendStrength: strength,
			Momentum:      momentum,
			IsFallback:    true,
			Market:        marketOf(sym),
			Insight:       fs.Insight,
		})
	}
	return c, nil
}

// Candidates returns the scan order.
func (c *Catalogue) Candidates() []Candidate {
	return append([]Candidate(nil), c.candidates...)
}

// Fallback returns a copy of the static entries in catalogue order.
func (c *Catalogue) Fallback() []TrendEntry {
	return append([]TrendEntry(nil), c.fallback...)
}

// NameFor returns the display name, falling back to the ticker.
func (c *Catalogue) NameFor(symbol string) string {
	if n, ok := c.names[strings.ToUpper(symbol)]; ok && n != "" {
		return n
	}
	return tickerOf(symbol)
}

// SectorFor maps a symbol (with or without exchange prefix, BSE codes
// included) to its sector, or "Unknown".
func (c *Catalogue) SectorFor(symbol string) string {
	ticker := strings.ToUpper(tickerOf(symbol))
	if t, ok := c.bseCodes[ticker]; ok && isNumericTicker(ticker) {
		ticker = t
	}
	if s, ok := c.sectors[ticker]; ok {
		return s
	}
	return "Unknown"
}

func tickerOf(symbol string) string {
	if _, t, ok := strings.Cut(symbol, exchangeDelimiter); ok {
		return t
	}
	return symbol
}

func marketOf(symbol string) string {
	if ex, _, ok := strings.Cut(symbol, exchangeDelimiter); ok {
		return ex
	}
	return ""
}
