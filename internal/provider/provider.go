// Package provider supplies option chains, underlying snapshots and price
// history to the engine from local snapshot files or a SQLite store, with an
// optional Redis cache and a rate-limited circuit breaker in front.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"optscore/internal/models"
)

// Provider fetches the inputs of one analysis.
type Provider interface {
	Name() string
	OptionsChain(ctx context.Context, symbol string) (*models.OptionChain, error)
	Underlying(ctx context.Context, symbol string) (*models.UnderlyingSnapshot, error)
	// PriceHistory returns up to days daily bars, oldest first. days <= 0
	// returns everything available.
	PriceHistory(ctx context.Context, symbol string, days int) ([]models.Bar, error)
}

// Snapshot is one point-in-time capture of a symbol: the underlying, both
// sides of the chain and optional daily history.
type Snapshot struct {
	Symbol     string                    `json:"symbol" yaml:"symbol" msgpack:"symbol"`
	AsOf       time.Time                 `json:"as_of" yaml:"as_of" msgpack:"as_of"`
	Underlying models.UnderlyingSnapshot `json:"underlying" yaml:"underlying" msgpack:"underlying"`
	Calls      []models.OptionContract   `json:"calls" yaml:"calls" msgpack:"calls"`
	Puts       []models.OptionContract   `json:"puts" yaml:"puts" msgpack:"puts"`
	History    []models.Bar              `json:"history,omitempty" yaml:"history,omitempty" msgpack:"history,omitempty"`
}

// Chain returns the snapshot's option chain.
func (s *Snapshot) Chain() *models.OptionChain {
	return &models.OptionChain{Symbol: s.Symbol, AsOf: s.AsOf, Calls: s.Calls, Puts: s.Puts}
}

// normalize fills the underlying's identity from the snapshot header.
func (s *Snapshot) normalize() {
	s.Symbol = strings.ToUpper(strings.TrimSpace(s.Symbol))
	if s.Underlying.Symbol == "" {
		s.Underlying.Symbol = s.Symbol
	}
	if s.Underlying.AsOf.IsZero() {
		s.Underlying.AsOf = s.AsOf
	}
	if s.AsOf.IsZero() {
		s.AsOf = s.Underlying.AsOf
	}
}

// Format is a snapshot file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the encoding from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported snapshot extension %q", filepath.Ext(path))
}

// DecodeSnapshot parses a snapshot document.
func DecodeSnapshot(data []byte, format Format) (*Snapshot, error) {
	var s Snapshot
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &s)
	case FormatYAML:
		err = yaml.Unmarshal(data, &s)
	default:
		return nil, fmt.Errorf("unsupported snapshot format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s snapshot: %w", format, err)
	}
	s.normalize()
	if s.Symbol == "" {
		return nil, fmt.Errorf("snapshot has no symbol")
	}
	return &s, nil
}

// EncodeSnapshot serializes a snapshot.
func EncodeSnapshot(s *Snapshot, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(s, "", "  ")
	case FormatYAML:
		return yaml.Marshal(s)
	}
	return nil, fmt.Errorf("unsupported snapshot format %q", format)
}

// ReadSnapshotFile loads a snapshot from disk.
func ReadSnapshotFile(path string) (*Snapshot, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeSnapshot(data, format)
}

// lastBars returns the trailing n bars, or all of them when n <= 0.
func lastBars(bars []models.Bar, n int) []models.Bar {
	if n <= 0 || len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}
