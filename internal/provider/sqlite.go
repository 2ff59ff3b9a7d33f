package provider

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "optscore/internal/errors"
	"optscore/internal/models"
)

// SQLiteStore keeps imported snapshots and daily bars. Lookups return the
// most recent snapshot for a symbol.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the store at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Point-in-time chain snapshots
	CREATE TABLE IF NOT EXISTS snapshots (
		symbol TEXT NOT NULL,
		as_of DATETIME NOT NULL,
		underlying TEXT NOT NULL,
		calls TEXT NOT NULL,
		puts TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (symbol, as_of)
	);

	-- Daily bars of the underlying
	CREATE TABLE IF NOT EXISTS bars (
		symbol TEXT NOT NULL,
		date DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		UNIQUE(symbol, date)
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_symbol ON snapshots(symbol, as_of);
	CREATE INDEX IF NOT EXISTS idx_bars_symbol_date ON bars(symbol, date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Name implements Provider.
func (s *SQLiteStore) Name() string { return "sqlite" }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSnapshot stores snap and its history in one transaction. Saving the
// same symbol and as-of time again replaces the earlier row.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	snap.normalize()
	if snap.Symbol == "" {
		return apperrors.NewValidationError("symbol", snap.Symbol, "required")
	}
	if snap.AsOf.IsZero() {
		return apperrors.NewValidationError("as_of", snap.AsOf, "required")
	}

	underlying, err := json.Marshal(snap.Underlying)
	if err != nil {
		return fmt.Errorf("encoding underlying: %w", err)
	}
	calls, err := json.Marshal(snap.Calls)
	if err != nil {
		return fmt.Errorf("encoding calls: %w", err)
	}
	puts, err := json.Marshal(snap.Puts)
	if err != nil {
		return fmt.Errorf("encoding puts: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshots (symbol, as_of, underlying, calls, puts)
		VALUES (?, ?, ?, ?, ?)
	`, snap.Symbol, snap.AsOf.UTC(), string(underlying), string(calls), string(puts))
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if err := saveBars(ctx, tx, snap.Symbol, snap.History); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SaveBars stores daily bars, replacing bars on the same date.
func (s *SQLiteStore) SaveBars(ctx context.Context, symbol string, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveBars(ctx, tx, strings.ToUpper(strings.TrimSpace(symbol)), bars); err != nil {
		return err
	}
	return tx.Commit()
}

func saveBars(ctx context.Context, tx *sql.Tx, symbol string, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (symbol, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, b.Date.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("failed to insert bar: %w", err)
		}
	}
	return nil
}

// Latest returns the newest snapshot for symbol, without history.
func (s *SQLiteStore) Latest(ctx context.Context, symbol string) (*Snapshot, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	var snap Snapshot
	var underlying, calls, puts string
	err := s.db.QueryRowContext(ctx, `
		SELECT symbol, as_of, underlying, calls, puts
		FROM snapshots
		WHERE symbol = ?
		ORDER BY as_of DESC
		LIMIT 1
	`, symbol).Scan(&snap.Symbol, &snap.AsOf, &underlying, &calls, &puts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewDataError("snapshot", symbol, "no stored snapshot", apperrors.ErrSymbolNotFound)
	}
	if err != nil {
		return nil, apperrors.Unavailable("snapshot", symbol, err)
	}

	if err := json.Unmarshal([]byte(underlying), &snap.Underlying); err != nil {
		return nil, apperrors.Unavailable("snapshot", symbol, fmt.Errorf("decoding underlying: %w", err))
	}
	if err := json.Unmarshal([]byte(calls), &snap.Calls); err != nil {
		return nil, apperrors.Unavailable("snapshot", symbol, fmt.Errorf("decoding calls: %w", err))
	}
	if err := json.Unmarshal([]byte(puts), &snap.Puts); err != nil {
		return nil, apperrors.Unavailable("snapshot", symbol, fmt.Errorf("decoding puts: %w", err))
	}
	snap.normalize()
	return &snap, nil
}

// OptionsChain implements Provider.
func (s *SQLiteStore) OptionsChain(ctx context.Context, symbol string) (*models.OptionChain, error) {
	snap, err := s.Latest(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return snap.Chain(), nil
}

// Underlying implements Provider.
func (s *SQLiteStore) Underlying(ctx context.Context, symbol string) (*models.UnderlyingSnapshot, error) {
	snap, err := s.Latest(ctx, symbol)
	if err != nil {
		return nil, err
	}
	u := snap.Underlying
	return &u, nil
}

// PriceHistory implements Provider.
func (s *SQLiteStore) PriceHistory(ctx context.Context, symbol string, days int) ([]models.Bar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	limit := days
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume
		FROM bars
		WHERE symbol = ?
		ORDER BY date DESC
		LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, apperrors.Unavailable("history", symbol, err)
	}
	defer rows.Close()

	var bars []models.Bar
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bars: %w", err)
	}

	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// Symbols lists symbols with at least one snapshot.
func (s *SQLiteStore) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM snapshots ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}
