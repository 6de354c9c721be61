package cmd

import (
	"fmt"

	"github.com/Rajchodisetti/stock-insights/internal/adapters"
	"github.com/Rajchodisetti/stock-insights/internal/config"
	"github.com/Rajchodisetti/stock-insights/internal/events"
	"github.com/Rajchodisetti/stock-insights/internal/observ"
)

// runtime is the explicitly constructed object graph shared by commands:
// one limiter, the tracker bound to it, and everything built on top.
type runtime struct {
	cfg       config.Root
	limiter   *adapters.RateLimiter
	tracker   *adapters.StatusTracker
	state     *adapters.StatePersistenceManager
	publisher *events.NATSPublisher
	cache     *adapters.PayloadCache

	// nil unless built with a client
	client   *adapters.FetchClient
	trending *adapters.TrendingAggregator
	enricher *adapters.Enricher
}

func limiterConfig(av config.AlphaVantage) adapters.LimiterConfig {
	return adapters.LimiterConfig{
		PerMinute:    av.RateLimitMinute,
		PerDay:       av.RateLimitDay,
		MinInterval:  av.MinInterval(),
		MinuteMargin: av.MinuteMargin(),
		DayMargin:    av.DayMargin(),
	}
}

func normalizerConfig(av config.AlphaVantage) adapters.NormalizerConfig {
	nc := adapters.DefaultNormalizerConfig()
	nc.DefaultExchange = adapters.Exchange(av.DefaultExchange)
	nc.Supported = nc.Supported[:0]
	for _, ex := range av.SupportedExchanges {
		nc.Supported = append(nc.Supported, adapters.Exchange(ex))
	}
	return nc
}

// newRuntime builds the budget core and restores persisted limiter state.
// withClient also builds the provider client, which needs an API key.
func newRuntime(c config.Root, clock adapters.Clock, withClient bool) (*runtime, error) {
	if err := c.Validate(withClient); err != nil {
		return nil, err
	}

	rt := &runtime{cfg: c}
	rt.limiter = adapters.NewRateLimiter(limiterConfig(c.AlphaVantage), clock)
	rt.tracker = adapters.NewStatusTracker(rt.limiter)

	if c.State.Enabled {
		rt.state = adapters.NewStatePersistenceManager(c.State.Path, c.State.SaveInterval(), rt.limiter)
		if _, err := rt.state.Load(); err != nil {
			// a bad state file must not block the client; start fresh
			observ.Warn("state_load_failed", map[string]any{"path": c.State.Path, "error": err.Error()})
		}
	}
	if !withClient {
		return rt, nil
	}

	opts := []adapters.FetchClientOption{
		adapters.WithBaseURL(c.AlphaVantage.BaseURL),
		adapters.WithTimeout(c.AlphaVantage.Timeout()),
		adapters.WithThrottleCooldown(c.AlphaVantage.ThrottleCooldown()),
	}
	if c.Cache.Enabled {
		rt.cache = adapters.NewPayloadCache(c.Cache.TTL(), c.Cache.MaxSize, rt.limiter.Clock())
		opts = append(opts, adapters.WithPayloadCache(rt.cache))
	}
	if c.Events.Enabled {
		pub, err := events.Connect(events.Config{URL: c.Events.NATSURL, Subject: c.Events.Subject})
		if err != nil {
			observ.Warn("events_disabled", map[string]any{"error": err.Error()})
		} else {
			rt.publisher = pub
			opts = append(opts, adapters.WithCallObserver(pub))
		}
	}

	client, err := adapters.NewFetchClient(c.AlphaVantage.APIKey, rt.tracker,
		adapters.NewSymbolNormalizer(normalizerConfig(c.AlphaVantage)), opts...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	cat, err := adapters.LoadCatalogue(c.Trending.CataloguePath)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("load trending catalogue: %w", err)
	}

	rt.client = client
	rt.trending = adapters.NewTrendingAggregator(client, cat)
	rt.enricher = adapters.NewEnricher(client)
	return rt, nil
}

// Close persists limiter state and releases the event connection.
func (rt *runtime) Close() {
	if rt.state != nil {
		if err := rt.state.Stop(); err != nil {
			observ.Warn("state_save_failed", map[string]any{"error": err.Error()})
		}
	}
	if rt.publisher != nil {
		_ = rt.publisher.Close()
	}
	observ.Sync()
}
