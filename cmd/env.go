package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/searchlens/visibility-cli/internal/collector"
	"github.com/searchlens/visibility-cli/internal/cost"
	"github.com/searchlens/visibility-cli/internal/gateway"
	"github.com/searchlens/visibility-cli/internal/store"
)

// collectEnv bundles the wired store and collectors for a command run.
type collectEnv struct {
	Store     store.Store
	Collector *collector.Collector
	TextOnly  *collector.TextOnlyCollector
}

func (e *collectEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func pricingRates() cost.Rates {
	rates := cost.DefaultRates()
	for model, p := range cfg.Pricing.Anthropic {
		rates.Anthropic[model] = cost.ModelRate{Input: p.Input, Output: p.Output}
	}
	if cfg.Pricing.SerpPerQuery > 0 {
		rates.Serp.PerQuery = cfg.Pricing.SerpPerQuery
	}
	return rates
}

// newTextGenerator builds the generator stack: Anthropic client, TTL cache,
// then call recording so cache hits are not double-billed.
func newTextGenerator(st store.Store) gateway.TextGenerator {
	base := gateway.NewAnthropicGenerator(cfg.Anthropic.Key, cfg.Anthropic.Model, cfg.Anthropic.CallsPerMinute)
	cached := gateway.NewCachingGenerator(base, time.Duration(cfg.Anthropic.CacheTTLMinutes)*time.Minute)
	pricer := cost.NewCalculator(pricingRates())
	return gateway.NewRecordingGenerator(cached, "anthropic", st, pricer)
}

// initCollectEnv validates config for the given mode and wires the store,
// gateways, and collectors.
func initCollectEnv(ctx context.Context, mode string) (*collectEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	textgen := newTextGenerator(st)

	env := &collectEnv{
		Store:    st,
		TextOnly: collector.NewTextOnlyCollector(textgen, st),
	}

	if cfg.SerpAPI.Key != "" {
		search := gateway.NewSerpClient(cfg.SerpAPI.Key, cfg.SerpAPI.CallsPerMinute,
			gateway.WithSerpBaseURL(cfg.SerpAPI.BaseURL))
		env.Collector = collector.NewCollector(search, textgen, st, cfg.Collector.FanOutWidth)
	}

	return env, nil
}

// initReadEnv wires only the store, for read-side commands.
func initReadEnv(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("read"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
