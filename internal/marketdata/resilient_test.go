package marketdata

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scanerrors "spread-scanner/internal/errors"
	"spread-scanner/internal/models"
	"spread-scanner/pkg/utils"
)

// flakyProvider fails a configured number of calls before succeeding.
type flakyProvider struct {
	failures int32
	err      error
	calls    atomic.Int32
}

func (p *flakyProvider) attempt() error {
	if p.calls.Add(1) <= p.failures {
		return p.err
	}
	return nil
}

func (p *flakyProvider) FetchFundamentals(_ context.Context, symbol string) (models.Fundamentals, error) {
	if err := p.attempt(); err != nil {
		return models.Fundamentals{}, err
	}
	return models.Fundamentals{PERatio: 12}, nil
}

func (p *flakyProvider) FetchQuote(_ context.Context, _ string) (models.Technicals, error) {
	if err := p.attempt(); err != nil {
		return models.Technicals{}, err
	}
	return models.Technicals{Price: 100}, nil
}

func (p *flakyProvider) FetchOptionChain(_ context.Context, _ string, _ ExpiryRange) ([]models.OptionContract, error) {
	if err := p.attempt(); err != nil {
		return nil, err
	}
	return []models.OptionContract{{Strike: 95}}, nil
}

func (p *flakyProvider) FetchIndexSeries(_ context.Context, indexID string, _ int) (models.IndexSeries, error) {
	if err := p.attempt(); err != nil {
		return models.IndexSeries{}, err
	}
	return models.IndexSeries{IndexID: indexID}, nil
}

func fastRetry(attempts int) utils.RetryConfig {
	return utils.RetryConfig{
		MaxAttempts:   attempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestResilientRetriesRateLimits(t *testing.T) {
	provider := &flakyProvider{failures: 2, err: scanerrors.ErrRateLimited}
	resilient := NewResilient(provider, 0, fastRetry(3))

	fund, err := resilient.FetchFundamentals(context.Background(), "JPM")
	require.NoError(t, err)
	assert.Equal(t, 12.0, fund.PERatio)
	assert.Equal(t, int32(3), provider.calls.Load())
}

func TestResilientDowngradesExhaustedRateLimits(t *testing.T) {
	provider := &flakyProvider{failures: 10, err: scanerrors.ErrRateLimited}
	resilient := NewResilient(provider, 0, fastRetry(3))

	_, err := resilient.FetchQuote(context.Background(), "JPM")
	require.Error(t, err)
	// Downgraded so the instrument is eliminated instead of failing the cycle.
	assert.ErrorIs(t, err, scanerrors.ErrDataUnavailable)
	assert.Equal(t, int32(3), provider.calls.Load())
}

func TestResilientDoesNotRetryOtherErrors(t *testing.T) {
	provider := &flakyProvider{failures: 10, err: scanerrors.ErrNotFound}
	resilient := NewResilient(provider, 0, fastRetry(3))

	_, err := resilient.FetchIndexSeries(context.Background(), "RSP", 252)
	assert.ErrorIs(t, err, scanerrors.ErrNotFound)
	assert.Equal(t, int32(1), provider.calls.Load())
}

func TestResilientPassesThroughSuccess(t *testing.T) {
	provider := &flakyProvider{}
	resilient := NewResilient(provider, 2000, fastRetry(3))

	chain, err := resilient.FetchOptionChain(context.Background(), "JPM", ExpiryRange{MinDTE: 30, MaxDTE: 45})
	require.NoError(t, err)
	assert.Len(t, chain, 1)
}

func TestRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastRetry(5)
	cfg.InitialDelay = time.Second
	cfg.RetryIf = func(error) bool { return true }

	_, err := utils.RetryWithResult(ctx, cfg, func() (int, error) {
		return 0, scanerrors.ErrRateLimited
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTimeoutHelper(t *testing.T) {
	ctx, cancel := Timeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, ok := ctx.Deadline()
	assert.True(t, ok)

	ctx, cancel = Timeout(context.Background(), 0)
	defer cancel()
	_, ok = ctx.Deadline()
	assert.False(t, ok)
}
