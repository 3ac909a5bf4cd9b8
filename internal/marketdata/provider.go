// Package marketdata defines the data-access contract for the screening
// pipeline and the caching and resilience layers that sit in front of it.
// The pipeline never talks to a quote provider directly.
package marketdata

import (
	"context"
	"time"

	"spread-scanner/internal/models"
)

// DataKind identifies a class of provider payload for cache keying.
type DataKind string

const (
	KindFundamentals DataKind = "fundamentals"
	KindQuote        DataKind = "quote"
	KindChain        DataKind = "chain"
	KindIndex        DataKind = "index"
)

// ExpiryRange bounds the option expiries requested from the provider, in
// calendar days from now.
type ExpiryRange struct {
	MinDTE int
	MaxDTE int
}

// Provider is the abstract market data source. Implementations must return
// errors distinguishable via errors.Is as ErrNotFound, ErrRateLimited or
// ErrTimeout; anything else is treated as a transient data failure.
type Provider interface {
	FetchFundamentals(ctx context.Context, symbol string) (models.Fundamentals, error)
	FetchQuote(ctx context.Context, symbol string) (models.Technicals, error)
	FetchOptionChain(ctx context.Context, symbol string, expiry ExpiryRange) ([]models.OptionContract, error)
	FetchIndexSeries(ctx context.Context, indexID string, lookback int) (models.IndexSeries, error)
}

// Clock abstracts time for deterministic cache-expiry tests.
type Clock func() time.Time
