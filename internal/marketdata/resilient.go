package marketdata

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	scanerrors "spread-scanner/internal/errors"
	"spread-scanner/internal/models"
	"spread-scanner/pkg/utils"
)

// Resilient decorates a Provider with the shared request budget and the
// backpressure policy: every fetch waits on a token from the hourly rate
// limiter, and RateLimited responses are retried with exponential backoff
// up to a bounded attempt count before being downgraded to a data failure.
// It sits below the cache so retries happen once per single-flight fetch.
type Resilient struct {
	provider Provider
	limiter  *rate.Limiter
	retry    utils.RetryConfig
}

// NewResilient wraps a provider. requestsPerHour bounds outbound calls
// (provider ceiling is about 2000/hour); zero disables limiting.
func NewResilient(provider Provider, requestsPerHour int, retry utils.RetryConfig) *Resilient {
	var limiter *rate.Limiter
	if requestsPerHour > 0 {
		perSecond := rate.Limit(float64(requestsPerHour) / 3600.0)
		burst := requestsPerHour / 60
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(perSecond, burst)
	}
	retry.RetryIf = func(err error) bool {
		return scanerrors.Is(err, scanerrors.ErrRateLimited)
	}
	return &Resilient{provider: provider, limiter: limiter, retry: retry}
}

func (r *Resilient) do(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	result, err := utils.RetryWithResult(ctx, r.retry, func() (interface{}, error) {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		return fn()
	})
	if err != nil && scanerrors.Is(err, scanerrors.ErrRateLimited) {
		// Attempts exhausted: downgrade so the instrument is eliminated
		// instead of failing the cycle.
		return nil, scanerrors.Wrap(scanerrors.ErrDataUnavailable, "rate limit retries exhausted")
	}
	return result, err
}

// FetchFundamentals implements Provider.
func (r *Resilient) FetchFundamentals(ctx context.Context, symbol string) (models.Fundamentals, error) {
	result, err := r.do(ctx, func() (interface{}, error) {
		return r.provider.FetchFundamentals(ctx, symbol)
	})
	if err != nil {
		return models.Fundamentals{}, err
	}
	return result.(models.Fundamentals), nil
}

// FetchQuote implements Provider.
func (r *Resilient) FetchQuote(ctx context.Context, symbol string) (models.Technicals, error) {
	result, err := r.do(ctx, func() (interface{}, error) {
		return r.provider.FetchQuote(ctx, symbol)
	})
	if err != nil {
		return models.Technicals{}, err
	}
	return result.(models.Technicals), nil
}

// FetchOptionChain implements Provider.
func (r *Resilient) FetchOptionChain(ctx context.Context, symbol string, expiry ExpiryRange) ([]models.OptionContract, error) {
	result, err := r.do(ctx, func() (interface{}, error) {
		return r.provider.FetchOptionChain(ctx, symbol, expiry)
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.OptionContract), nil
}

// FetchIndexSeries implements Provider.
func (r *Resilient) FetchIndexSeries(ctx context.Context, indexID string, lookback int) (models.IndexSeries, error) {
	result, err := r.do(ctx, func() (interface{}, error) {
		return r.provider.FetchIndexSeries(ctx, indexID, lookback)
	})
	if err != nil {
		return models.IndexSeries{}, err
	}
	return result.(models.IndexSeries), nil
}

var _ Provider = (*Resilient)(nil)
var _ Provider = (*Cached)(nil)

// Timeout returns a context bounded by the per-request deadline. Zero
// duration means no deadline.
func Timeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
