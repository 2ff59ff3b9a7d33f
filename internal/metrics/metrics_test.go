package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisTimer(t *testing.T) {
	r := New()

	r.StartAnalysis("US").Stop(true)
	r.StartAnalysis("US").Stop(false)
	r.StartAnalysis("US").Stop(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Analyses.WithLabelValues("US", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Analyses.WithLabelValues("US", ResultFailure)))
	assert.Equal(t, 1, testutil.CollectAndCount(r.AnalysisDuration))
}

func TestRecorders(t *testing.T) {
	r := New()

	r.RecordScored("sell_put", 12)
	r.RecordScored("sell_put", 0)
	r.RecordCache("chain", true)
	r.RecordCache("chain", false)
	r.RecordCache("chain", false)
	r.RecordProviderError("chain")

	assert.Equal(t, 12.0, testutil.ToFloat64(r.ContractsScored.WithLabelValues("sell_put")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.CacheHits.WithLabelValues("chain")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.CacheMisses.WithLabelValues("chain")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ProviderErrors.WithLabelValues("chain")))
}

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.RecordScored("buy_call", 3)
		r.RecordCache("chain", true)
		r.RecordProviderError("chain")
		var timer *Timer
		timer.Stop(true)
	})
}

func TestHandler(t *testing.T) {
	r := New()
	r.RecordScored("buy_put", 4)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `optscore_contracts_scored_total{strategy="buy_put"} 4`))
}
