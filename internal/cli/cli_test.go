package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optscore/internal/config"
	"optscore/internal/models"
	"optscore/internal/provider"
)

var fixedNow = time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

func testSnapshot() *provider.Snapshot {
	asOf := time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC)
	s := &provider.Snapshot{
		Symbol: "AAPL",
		AsOf:   asOf,
		Underlying: models.UnderlyingSnapshot{
			CurrentPrice:  180,
			ChangePercent: 0.5,
			Volatility30d: 0.22,
			Week52High:    200,
			Week52Low:     150,
		},
	}
	for k := 160.0; k <= 200; k += 5 {
		put := models.OptionContract{
			Strike: k, Bid: 1 + max(k-180, 0), Ask: 1.2 + max(k-180, 0),
			Volume: 300, OpenInterest: 1500, ImpliedVolatility: 0.27,
			DaysToExpiry: 30, Type: models.Put,
		}
		call := put
		call.Type = models.Call
		call.Bid, call.Ask = 1+max(180-k, 0), 1.2+max(180-k, 0)
		s.Puts = append(s.Puts, put)
		s.Calls = append(s.Calls, call)
	}
	price := 170.0
	for i := 0; i < 40; i++ {
		price *= 1 + 0.01*float64(i%3-1)
		s.History = append(s.History, models.Bar{
			Date: asOf.AddDate(0, 0, i-40), Open: price, High: price + 1, Low: price - 1, Close: price,
		})
	}
	return s
}

// setupDir writes a config and one snapshot file, returning the config dir.
func setupDir(t *testing.T, kind string) string {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "snapshots")
	require.NoError(t, os.MkdirAll(data, 0755))

	cfg := fmt.Sprintf(`
[provider]
kind = %q
data_dir = %q
sqlite_path = %q

[log]
level = "error"
`, kind, data, filepath.Join(dir, "snapshots.db"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(cfg), 0644))

	raw, err := provider.EncodeSnapshot(testSnapshot(), provider.FormatJSON)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(data, "AAPL.json"), raw, 0644))
	return dir
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	app := &App{Config: config.Default(), Logger: zerolog.New(io.Discard), Now: func() time.Time { return fixedNow }}
	cmd := newRootCmd(app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", dir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionJSON(t *testing.T) {
	out, err := run(t, setupDir(t, "file"), "version", "--json")
	require.NoError(t, err)

	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, Version, v["version"])
}

func TestAnalyzeFromFiles(t *testing.T) {
	dir := setupDir(t, "file")

	out, err := run(t, dir, "analyze", "aapl", "--json", "--size", "--portfolio", "50000")
	require.NoError(t, err)

	var res struct {
		models.AnalysisResult
		Sizing *models.PositionSizingResult `json:"position_sizing"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "AAPL", res.Symbol)
	assert.Len(t, res.Strategies, 4)
	require.NotNil(t, res.Overall)
	require.NotNil(t, res.Sizing)
	assert.Equal(t, models.Moderate, res.Sizing.RiskTolerance)
	assert.LessOrEqual(t, res.Sizing.TotalCapital, 50000*0.20)
}

func TestAnalyzeText(t *testing.T) {
	out, err := run(t, setupDir(t, "file"), "analyze", "AAPL", "-s", "sell_put", "--detailed")
	require.NoError(t, err)
	assert.Contains(t, out, "SELL PUT")
	assert.Contains(t, out, "Volatility premium")
	assert.Contains(t, out, "Overall:")
}

func TestAnalyzeFailures(t *testing.T) {
	dir := setupDir(t, "file")

	out, err := run(t, dir, "analyze", "MSFT", "--json")
	assert.ErrorIs(t, err, ErrAnalysisFailed)
	var res models.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "DATA_UNAVAILABLE", res.ErrorCode)

	out, err = run(t, dir, "analyze", "600519.SS")
	assert.ErrorIs(t, err, ErrAnalysisFailed)
	assert.Contains(t, out, "NOT_WHITELISTED")
	assert.Contains(t, out, "510050.SS")

	out, err = run(t, dir, "analyze", "AAPL", "--strategy", "collar", "--json")
	assert.ErrorIs(t, err, ErrAnalysisFailed)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "INVALID_STRATEGY", res.ErrorCode)
}

func TestScoreCommand(t *testing.T) {
	out, err := run(t, setupDir(t, "file"), "score", "AAPL", "-s", "buy_call", "--limit", "3", "--json")
	require.NoError(t, err)

	var scored []models.ScoredOption
	require.NoError(t, json.Unmarshal([]byte(out), &scored))
	assert.LessOrEqual(t, len(scored), 3)
	assert.NotEmpty(t, scored)
	for _, so := range scored {
		assert.Equal(t, models.BuyCall, so.Strategy)
	}

	_, err = run(t, setupDir(t, "file"), "score", "AAPL", "-s", "all")
	assert.Error(t, err)
}

func TestMarketCommand(t *testing.T) {
	dir := setupDir(t, "file")

	out, err := run(t, dir, "market", "700.hk", "--json")
	require.NoError(t, err)
	var v marketView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "0700.HK", v.Symbol)
	assert.Equal(t, models.MarketHK, v.Market)
	assert.Equal(t, 100.0, v.Multiplier)
	require.NotNil(t, v.Allowed)
	assert.True(t, *v.Allowed)

	out, err = run(t, dir, "market", "--json")
	require.NoError(t, err)
	var all []marketView
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	assert.Len(t, all, 4)
}

func TestDeliveryCommand(t *testing.T) {
	out, err := run(t, setupDir(t, "file"), "delivery", "AU2506", "CU2508", "bogus", "--as-of", "2025-05-10", "--json")
	require.NoError(t, err)

	var got []models.DeliveryRiskAssessment
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 3)

	assert.Equal(t, models.ZoneRed, got[0].Zone)
	assert.Equal(t, 22, got[0].DaysToDelivery)
	assert.Equal(t, models.DeliveryClose, got[0].Recommendation)

	assert.Equal(t, models.ZoneSafe, got[1].Zone)
	assert.Equal(t, 83, got[1].DaysToDelivery)

	assert.False(t, got[2].Parsed)
	assert.Equal(t, models.DeliveryOK, got[2].Recommendation)
}

func TestSnapshotImportAndAnalyzeFromSQLite(t *testing.T) {
	dir := setupDir(t, "sqlite")
	file := filepath.Join(dir, "snapshots", "AAPL.json")

	out, err := run(t, dir, "snapshot", "import", file, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"symbol": "AAPL"`)

	out, err = run(t, dir, "snapshot", "list", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, "AAPL")

	out, err = run(t, dir, "analyze", "AAPL", "--json")
	require.NoError(t, err)
	var res models.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success, res.Error)
	assert.Equal(t, "price_history", res.VRP.HVSource)
}

func TestSnapshotExportYAML(t *testing.T) {
	dir := setupDir(t, "file")
	dest := filepath.Join(t.TempDir(), "aapl.yaml")

	_, err := run(t, dir, "snapshot", "export", "AAPL", "--out", dest)
	require.NoError(t, err)

	snap, err := provider.ReadSnapshotFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", snap.Symbol)
	assert.Len(t, snap.Puts, 9)
}

func TestTableRenderAlignsColoredCells(t *testing.T) {
	var buf bytes.Buffer
	o := newOutput(&buf, false, true)
	table := NewTable(o, "A", "B")
	table.AddRow(o.Green("xx"), "1")
	table.AddRow("yyyy", "2")
	table.Render()

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 4)
	assert.Equal(t, visibleLen(string(lines[2])), visibleLen(string(lines[3])))
}

func TestAnalyzeSeveralSymbols(t *testing.T) {
	out, err := run(t, setupDir(t, "file"), "analyze", "AAPL", "510050.SS", "--json", "--workers", "2")
	assert.ErrorIs(t, err, ErrAnalysisFailed)

	var results []models.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Equal(t, "DATA_UNAVAILABLE", results[1].ErrorCode)
}

func TestRiskLevelColors(t *testing.T) {
	o := newOutput(io.Discard, false, true)

	assert.Equal(t, o.Green("low"), o.RiskLevel(string(models.RiskLow)))
	assert.Equal(t, o.Green("low"), o.RiskLevel(string(models.PortfolioLow)))
	assert.Equal(t, o.Yellow("medium"), o.RiskLevel(string(models.RiskMedium)))
	assert.Equal(t, o.Yellow("moderate"), o.RiskLevel(string(models.PortfolioModerate)))
	assert.Equal(t, o.Red("very_high"), o.RiskLevel(string(models.PortfolioVeryHigh)))
}
