package provider

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"optscore/internal/config"
	"optscore/internal/metrics"
)

// Opened is a configured provider stack and its cleanup.
type Opened struct {
	Provider Provider
	Store    *SQLiteStore // set for the sqlite kind
	closers  []func() error
}

// Close releases the stack's connections.
func (o *Opened) Close() error {
	var first error
	for i := len(o.closers) - 1; i >= 0; i-- {
		if err := o.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open builds the provider stack from configuration: the base source,
// wrapped in the guard, with the Redis cache outermost when enabled. An
// unreachable Redis is logged and skipped.
func Open(ctx context.Context, cfg *config.Config, m *metrics.Registry, logger zerolog.Logger) (*Opened, error) {
	o := &Opened{}

	var base Provider
	switch cfg.Provider.Kind {
	case "", "file":
		base = NewFileProvider(cfg.Provider.DataDir)
	case "sqlite":
		store, err := NewSQLiteStore(cfg.Provider.SQLitePath)
		if err != nil {
			return nil, err
		}
		o.Store = store
		o.closers = append(o.closers, store.Close)
		base = store
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Provider.Kind)
	}

	var p Provider = NewGuarded(base, GuardConfig{
		RequestsPerSec:   cfg.Provider.RequestsPerSec,
		Burst:            cfg.Provider.Burst,
		BreakerFailures:  cfg.Provider.BreakerFailures,
		BreakerTimeout:   cfg.Provider.BreakerTimeout,
		RetryAttempts:    cfg.Provider.RetryAttempts,
		RetryInitialWait: cfg.Provider.RetryInitialWait,
	}, m, logger)

	if cfg.Cache.Enabled {
		client, err := DialRedis(ctx, cfg.Cache.Addr, cfg.Cache.DB)
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Cache.Addr).Msg("Snapshot cache disabled")
		} else {
			o.closers = append(o.closers, client.Close)
			p = NewRedisCache(p, client, cfg.Cache.TTL, cfg.Cache.Prefix, m, logger)
		}
	}

	o.Provider = p
	return o, nil
}
