package marketdata

import (
	"context"
	"fmt"
	"time"

	"spread-scanner/internal/models"
)

// Cached is a Provider decorated with the TTL read-through cache. All
// pipeline layers fetch through it; repeated calls within the TTL window
// observe byte-identical snapshots, which is what makes scan cycles
// reproducible.
type Cached struct {
	provider Provider
	cache    *Cache
	clock    Clock
}

// NewCached wraps a provider with a cache. A nil clock falls back to
// time.Now.
func NewCached(provider Provider, cache *Cache, clock Clock) *Cached {
	if clock == nil {
		clock = time.Now
	}
	return &Cached{provider: provider, cache: cache, clock: clock}
}

// FetchFundamentals implements Provider.
func (c *Cached) FetchFundamentals(ctx context.Context, symbol string) (models.Fundamentals, error) {
	payload, err := c.cache.Get(ctx, KindFundamentals, symbol, c.clock(), func(ctx context.Context) (interface{}, error) {
		return c.provider.FetchFundamentals(ctx, symbol)
	})
	if err != nil {
		return models.Fundamentals{}, err
	}
	return payload.(models.Fundamentals), nil
}

// FetchQuote implements Provider.
func (c *Cached) FetchQuote(ctx context.Context, symbol string) (models.Technicals, error) {
	payload, err := c.cache.Get(ctx, KindQuote, symbol, c.clock(), func(ctx context.Context) (interface{}, error) {
		return c.provider.FetchQuote(ctx, symbol)
	})
	if err != nil {
		return models.Technicals{}, err
	}
	return payload.(models.Technicals), nil
}

// FetchOptionChain implements Provider. The expiry range participates in
// the cache key: put and call scans request different windows.
func (c *Cached) FetchOptionChain(ctx context.Context, symbol string, expiry ExpiryRange) ([]models.OptionContract, error) {
	keySymbol := fmt.Sprintf("%s:%d-%d", symbol, expiry.MinDTE, expiry.MaxDTE)
	payload, err := c.cache.Get(ctx, KindChain, keySymbol, c.clock(), func(ctx context.Context) (interface{}, error) {
		return c.provider.FetchOptionChain(ctx, symbol, expiry)
	})
	if err != nil {
		return nil, err
	}
	return payload.([]models.OptionContract), nil
}

// FetchIndexSeries implements Provider.
func (c *Cached) FetchIndexSeries(ctx context.Context, indexID string, lookback int) (models.IndexSeries, error) {
	keySymbol := fmt.Sprintf("%s:%d", indexID, lookback)
	payload, err := c.cache.Get(ctx, KindIndex, keySymbol, c.clock(), func(ctx context.Context) (interface{}, error) {
		return c.provider.FetchIndexSeries(ctx, indexID, lookback)
	})
	if err != nil {
		return models.IndexSeries{}, err
	}
	return payload.(models.IndexSeries), nil
}

// CacheStats exposes the underlying cache counters for cycle diagnostics.
func (c *Cached) CacheStats() (hits, misses int64) {
	return c.cache.Stats()
}
