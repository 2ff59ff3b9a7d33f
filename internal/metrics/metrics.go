// Package metrics exposes Prometheus metrics for analyses and data access.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Analysis results used as label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Registry holds the engine's collectors on a private Prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	Analyses         *prometheus.CounterVec
	ContractsScored  *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec

	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	ProviderErrors *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Analyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optscore_analyses_total",
				Help: "Completed chain analyses by market and result",
			},
			[]string{"market", "result"},
		),

		ContractsScored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optscore_contracts_scored_total",
				Help: "Contracts that produced a score, by strategy",
			},
			[]string{"strategy"},
		),

		AnalysisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optscore_analysis_duration_seconds",
				Help:    "Wall time of a full chain analysis",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"market"},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optscore_cache_hits_total",
				Help: "Snapshot cache hits by kind",
			},
			[]string{"kind"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optscore_cache_misses_total",
				Help: "Snapshot cache misses by kind",
			},
			[]string{"kind"},
		),

		ProviderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optscore_provider_errors_total",
				Help: "Failed provider calls by operation",
			},
			[]string{"operation"},
		),
	}

	r.reg.MustRegister(
		r.Analyses,
		r.ContractsScored,
		r.AnalysisDuration,
		r.CacheHits,
		r.CacheMisses,
		r.ProviderErrors,
	)
	return r
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Timer measures one analysis.
type Timer struct {
	r      *Registry
	market string
	start  time.Time
}

// StartAnalysis begins timing an analysis for market.
func (r *Registry) StartAnalysis(market string) *Timer {
	return &Timer{r: r, market: market, start: time.Now()}
}

// Stop records the duration and the outcome.
func (t *Timer) Stop(success bool) time.Duration {
	if t == nil || t.r == nil {
		return 0
	}
	d := time.Since(t.start)
	result := ResultFailure
	if success {
		result = ResultSuccess
	}
	t.r.AnalysisDuration.WithLabelValues(t.market).Observe(d.Seconds())
	t.r.Analyses.WithLabelValues(t.market, result).Inc()
	return d
}

// RecordScored adds n scored contracts for strategy.
func (r *Registry) RecordScored(strategy string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.ContractsScored.WithLabelValues(strategy).Add(float64(n))
}

// RecordCache records a cache lookup.
func (r *Registry) RecordCache(kind string, hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.CacheHits.WithLabelValues(kind).Inc()
		return
	}
	r.CacheMisses.WithLabelValues(kind).Inc()
}

// RecordProviderError counts a failed provider call.
func (r *Registry) RecordProviderError(operation string) {
	if r == nil {
		return
	}
	r.ProviderErrors.WithLabelValues(operation).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Debug().Str("addr", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
