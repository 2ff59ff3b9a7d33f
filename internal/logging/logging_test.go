package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger(t *testing.T, level string) (zerolog.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := DefaultLogConfig()
	cfg.Level = level
	cfg.JSON = true
	cfg.Out = &buf
	return NewLoggerWithConfig(cfg), &buf
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warning "))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestLogAnalysisFields(t *testing.T) {
	logger, buf := jsonLogger(t, "info")
	logger = WithRequestID(WithSymbol(logger, "AAPL"), "req-1")

	LogAnalysis(logger, "AAPL", "US", "buy", 74.5, 120*time.Millisecond)

	var ev map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &ev))
	assert.Equal(t, "analysis", ev["event"])
	assert.Equal(t, "req-1", ev["request_id"])
	assert.Equal(t, "buy", ev["action"])
	assert.Equal(t, 74.5, ev["best_score"])
}

func TestLevelFiltersDebugEvents(t *testing.T) {
	logger, buf := jsonLogger(t, "info")

	LogStrategyScored(logger, "sell_put", 10, 4, 81)
	LogProviderCall(logger, "file", "chain", "AAPL", time.Millisecond, nil)
	assert.Zero(t, buf.Len())

	LogProviderCall(logger, "file", "chain", "AAPL", time.Millisecond, errors.New("boom"))
	assert.Contains(t, buf.String(), `"error":"boom"`)
}

func TestNoWritersDiscards(t *testing.T) {
	cfg := DefaultLogConfig()
	cfg.Console = false
	logger := NewLoggerWithConfig(cfg)
	assert.NotPanics(t, func() {
		LogAnalysisFailure(logger, "MSFT", "DATA_UNAVAILABLE", errors.New("missing"))
	})
}
