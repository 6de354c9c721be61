package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type AlphaVantage struct {
	APIKey               string   `yaml:"api_key"`
	BaseURL              string   `yaml:"base_url"`
	TimeoutSecs          int      `yaml:"timeout_seconds"`
	RateLimitMinute      int      `yaml:"rate_limit_minute"`
	RateLimitDay         int      `yaml:"rate_limit_day"`
	MinIntervalSecs      int      `yaml:"min_interval_seconds"`
	MinuteMarginSecs     int      `yaml:"minute_margin_seconds"`
	DayMarginSecs        int      `yaml:"day_margin_seconds"`
	ThrottleCooldownSecs int      `yaml:"throttle_cooldown_seconds"`
	DefaultExchange      string   `yaml:"default_exchange"`
	SupportedExchanges   []string `yaml:"supported_exchanges"`
}

type Cache struct {
	Enabled bool `yaml:"enabled"`
	TTLSecs int  `yaml:"ttl_seconds"`
	MaxSize int  `yaml:"max_size"`
}

type Trending struct {
	DefaultLimit  int    `yaml:"default_limit"`
	CataloguePath string `yaml:"catalogue_path"` // empty = embedded catalogue
}

type Server struct {
	Host                string  `yaml:"host"`
	Port                int     `yaml:"port"`
	FetchRPS            float64 `yaml:"fetch_rps"`
	FetchBurst          int     `yaml:"fetch_burst"`
	ShutdownTimeoutSecs int     `yaml:"shutdown_timeout_seconds"`
}

type State struct {
	Enabled          bool   `yaml:"enabled"`
	Path             string `yaml:"path"`
	SaveIntervalSecs int    `yaml:"save_interval_seconds"`
}

type Events struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

type Logging struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Root struct {
	AlphaVantage AlphaVantage `yaml:"alpha_vantage"`
	Cache        Cache        `yaml:"cache"`
	Trending     Trending     `yaml:"trending"`
	Server       Server       `yaml:"server"`
	State        State        `yaml:"state"`
	Events       Events       `yaml:"events"`
	Logging      Logging      `yaml:"logging"`
}

// Default returns the configuration used when no file or env overrides it.
func Default() Root {
	return Root{
		AlphaVantage: AlphaVantage{
			BaseURL:              "https://www.alphavantage.co/query",
			TimeoutSecs:          30,
			RateLimitMinute:      4,
			RateLimitDay:         500,
			MinIntervalSecs:      12,
			MinuteMarginSecs:     5,
			DayMarginSecs:        300,
			ThrottleCooldownSecs: 60,
			DefaultExchange:      "NSE",
			SupportedExchanges:   []string{"NSE", "BSE"},
		},
		Cache: Cache{
			Enabled: true,
			TTLSecs: 3600,
			MaxSize: 1000,
		},
		Trending: Trending{
			DefaultLimit: 10,
		},
		Server: Server{
			Host:                "localhost",
			Port:                8090,
			FetchRPS:            1,
			FetchBurst:          2,
			ShutdownTimeoutSecs: 10,
		},
		State: State{
			Enabled:          true,
			Path:             "data/av_limiter_state.json",
			SaveIntervalSecs: 30,
		},
		Events: Events{
			NATSURL: "nats://127.0.0.1:4222",
			Subject: "stock.av.calls",
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (Root, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

// LookupFunc matches os.LookupEnv
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays environment variables onto c.
func (c *Root) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("ALPHA_VANTAGE_API_KEY", &c.AlphaVantage.APIKey)
	str("ALPHA_VANTAGE_BASE_URL", &c.AlphaVantage.BaseURL)
	str("ALPHA_VANTAGE_DEFAULT_EXCHANGE", &c.AlphaVantage.DefaultExchange)
	str("LOG_LEVEL", &c.Logging.Level)
	str("NATS_URL", &c.Events.NATSURL)

	for key, dst := range map[string]*int{
		"ALPHA_VANTAGE_RATE_LIMIT_MINUTE": &c.AlphaVantage.RateLimitMinute,
		"ALPHA_VANTAGE_RATE_LIMIT_DAY":    &c.AlphaVantage.RateLimitDay,
		"CACHE_TTL":                       &c.Cache.TTLSecs,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup("CACHE_ENABLED"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("CACHE_ENABLED: %w", err)
		}
		c.Cache.Enabled = b
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.AlphaVantage.DefaultExchange = strings.ToUpper(c.AlphaVantage.DefaultExchange)
	return nil
}

// Validate rejects settings the client cannot run with. The API key is only
// checked when requireKey is set, so offline commands still work without one.
func (c Root) Validate(requireKey bool) error {
	av := c.AlphaVantage
	if requireKey && strings.TrimSpace(av.APIKey) == "" {
		return fmt.Errorf("alpha_vantage.api_key is required (set ALPHA_VANTAGE_API_KEY)")
	}
	if av.RateLimitMinute <= 0 || av.RateLimitDay <= 0 {
		return fmt.Errorf("rate limits must be positive (minute=%d day=%d)", av.RateLimitMinute, av.RateLimitDay)
	}
	if av.RateLimitMinute > av.RateLimitDay {
		return fmt.Errorf("minute limit %d exceeds daily limit %d", av.RateLimitMinute, av.RateLimitDay)
	}
	if av.MinIntervalSecs < 0 || av.TimeoutSecs <= 0 {
		return fmt.Errorf("min_interval_seconds must be >= 0 and timeout_seconds > 0")
	}
	supported := false
	for _, ex := range av.SupportedExchanges {
		if strings.EqualFold(ex, av.DefaultExchange) {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("default exchange %q is not in supported_exchanges %v", av.DefaultExchange, av.SupportedExchanges)
	}
	if c.Cache.Enabled && c.Cache.TTLSecs <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be positive when the cache is enabled")
	}
	if c.Server.FetchRPS <= 0 || c.Server.FetchBurst <= 0 {
		return fmt.Errorf("server.fetch_rps and server.fetch_burst must be positive")
	}
	if c.State.Enabled && strings.TrimSpace(c.State.Path) == "" {
		return fmt.Errorf("state.path is required when state persistence is enabled")
	}
	return nil
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

func (a AlphaVantage) Timeout() time.Duration          { return secs(a.TimeoutSecs) }
func (a AlphaVantage) MinInterval() time.Duration      { return secs(a.MinIntervalSecs) }
func (a AlphaVantage) MinuteMargin() time.Duration     { return secs(a.MinuteMarginSecs) }
func (a AlphaVantage) DayMargin() time.Duration        { return secs(a.DayMarginSecs) }
func (a AlphaVantage) ThrottleCooldown() time.Duration { return secs(a.ThrottleCooldownSecs) }
func (c Cache) TTL() time.Duration                     { return secs(c.TTLSecs) }
func (s Server) ShutdownTimeout() time.Duration        { return secs(s.ShutdownTimeoutSecs) }
func (s State) SaveInterval() time.Duration            { return secs(s.SaveIntervalSecs) }
