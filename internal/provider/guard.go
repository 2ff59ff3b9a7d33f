package provider

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	apperrors "optscore/internal/errors"
	"optscore/internal/logging"
	"optscore/internal/metrics"
	"optscore/internal/models"
	"optscore/pkg/utils"
)

// GuardConfig tunes Guarded.
type GuardConfig struct {
	RequestsPerSec   float64 // 0 disables limiting
	Burst            int
	BreakerFailures  uint32 // consecutive failures that open the breaker
	BreakerTimeout   time.Duration
	RetryAttempts    int
	RetryInitialWait time.Duration
}

// DefaultGuardConfig returns conservative limits for local sources.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		RequestsPerSec:   5,
		Burst:            5,
		BreakerFailures:  5,
		BreakerTimeout:   30 * time.Second,
		RetryAttempts:    3,
		RetryInitialWait: 200 * time.Millisecond,
	}
}

// Guarded rate-limits, retries and circuit-breaks calls to another provider.
// A missing symbol is neither retried nor counted against the breaker.
type Guarded struct {
	inner   Provider
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	retry   utils.RetryConfig
	metrics *metrics.Registry
	logger  zerolog.Logger
}

// NewGuarded wraps inner. m may be nil.
func NewGuarded(inner Provider, cfg GuardConfig, m *metrics.Registry, logger zerolog.Logger) *Guarded {
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	g := &Guarded{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
		metrics: m,
		logger:  logger,
	}

	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    inner.Name(),
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, apperrors.ErrSymbolNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Provider circuit state changed")
		},
	})

	g.retry = utils.RetryConfig{
		MaxAttempts:   cfg.RetryAttempts,
		InitialDelay:  cfg.RetryInitialWait,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2,
		RetryIf:       retryable,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			logger.Debug().
				Str("provider", inner.Name()).
				Int("attempt", attempt).
				Dur("wait", wait).
				Err(err).
				Msg("Retrying provider call")
		},
	}
	return g
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, apperrors.ErrSymbolNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		return false
	}
	return true
}

// Name implements Provider.
func (g *Guarded) Name() string { return g.inner.Name() }

// State reports the breaker state.
func (g *Guarded) State() gobreaker.State { return g.breaker.State() }

func (g *Guarded) call(ctx context.Context, op, symbol string, fn func() (interface{}, error)) (interface{}, error) {
	v, err := utils.RetryWithResult(ctx, g.retry, func() (interface{}, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		start := time.Now()
		v, err := g.breaker.Execute(fn)
		logging.LogProviderCall(g.logger, g.inner.Name(), op, symbol, time.Since(start), err)
		return v, err
	})
	if err == nil {
		return v, nil
	}

	g.metrics.RecordProviderError(op)
	if errors.Is(err, apperrors.ErrSymbolNotFound) || errors.Is(err, apperrors.ErrDataUnavailable) {
		return nil, err
	}
	return nil, apperrors.Unavailable(op, symbol, err)
}

// OptionsChain implements Provider.
func (g *Guarded) OptionsChain(ctx context.Context, symbol string) (*models.OptionChain, error) {
	v, err := g.call(ctx, KindChain, symbol, func() (interface{}, error) {
		return g.inner.OptionsChain(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.OptionChain), nil
}

// Underlying implements Provider.
func (g *Guarded) Underlying(ctx context.Context, symbol string) (*models.UnderlyingSnapshot, error) {
	v, err := g.call(ctx, KindUnderlying, symbol, func() (interface{}, error) {
		return g.inner.Underlying(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.UnderlyingSnapshot), nil
}

// PriceHistory implements Provider.
func (g *Guarded) PriceHistory(ctx context.Context, symbol string, days int) ([]models.Bar, error) {
	v, err := g.call(ctx, KindHistory, symbol, func() (interface{}, error) {
		return g.inner.PriceHistory(ctx, symbol, days)
	})
	if err != nil {
		return nil, err
	}
	bars, _ := v.([]models.Bar)
	return bars, nil
}
