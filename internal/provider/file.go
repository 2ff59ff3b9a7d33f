package provider

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "optscore/internal/errors"
	"optscore/internal/models"
)

var snapshotExts = []string{".json", ".yaml", ".yml"}

// FileProvider reads <SYMBOL>.json, .yaml or .yml snapshots from a directory.
type FileProvider struct {
	dir string
}

// NewFileProvider creates a provider rooted at dir.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

// Name implements Provider.
func (p *FileProvider) Name() string { return "file" }

// Dir returns the snapshot directory.
func (p *FileProvider) Dir() string { return p.dir }

// Load returns the snapshot for symbol.
func (p *FileProvider) Load(ctx context.Context, symbol string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := p.find(symbol)
	if err != nil {
		return nil, err
	}
	snap, err := ReadSnapshotFile(path)
	if err != nil {
		return nil, apperrors.Unavailable("snapshot", symbol, err)
	}
	return snap, nil
}

func (p *FileProvider) find(symbol string) (string, error) {
	base := fileBase(symbol)
	for _, name := range []string{base, strings.ToLower(base)} {
		for _, ext := range snapshotExts {
			path := filepath.Join(p.dir, name+ext)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			} else if !errors.Is(err, fs.ErrNotExist) {
				return "", apperrors.Unavailable("snapshot", symbol, err)
			}
		}
	}
	return "", apperrors.NewDataError("snapshot", symbol, "no snapshot file in "+p.dir, apperrors.ErrSymbolNotFound)
}

// fileBase maps a symbol to a safe file name.
func fileBase(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	return strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(s)
}

// OptionsChain implements Provider.
func (p *FileProvider) OptionsChain(ctx context.Context, symbol string) (*models.OptionChain, error) {
	snap, err := p.Load(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return snap.Chain(), nil
}

// Underlying implements Provider.
func (p *FileProvider) Underlying(ctx context.Context, symbol string) (*models.UnderlyingSnapshot, error) {
	snap, err := p.Load(ctx, symbol)
	if err != nil {
		return nil, err
	}
	u := snap.Underlying
	return &u, nil
}

// PriceHistory implements Provider.
func (p *FileProvider) PriceHistory(ctx context.Context, symbol string, days int) ([]models.Bar, error) {
	snap, err := p.Load(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return lastBars(snap.History, days), nil
}

// Symbols lists the symbols with a snapshot file, sorted.
func (p *FileProvider) Symbols() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := FormatForPath(e.Name()); err != nil {
			continue
		}
		sym := strings.ToUpper(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		if !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out, nil
}
