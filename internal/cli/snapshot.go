package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"optscore/internal/market"
	"optscore/internal/provider"
)

func newSnapshotCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage chain snapshots",
		Long: `Snapshots are point-in-time captures of an underlying, both sides of its
option chain and optional daily price history. They live as JSON/YAML files
in the data directory or in a SQLite store.`,
	}

	cmd.AddCommand(newSnapshotImportCmd(app))
	cmd.AddCommand(newSnapshotListCmd(app))
	cmd.AddCommand(newSnapshotExportCmd(app))
	return cmd
}

// withStore runs fn against the configured SQLite store, opening it
// directly when the active provider is not SQLite.
func withStore(ctx context.Context, app *App, fn func(*provider.SQLiteStore) error) error {
	if app.Config.Provider.Kind == "sqlite" {
		o, err := app.Provider(ctx)
		if err != nil {
			return err
		}
		return fn(o.Store)
	}
	store, err := provider.NewSQLiteStore(app.Config.Provider.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newSnapshotImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Import JSON/YAML snapshot files into the SQLite store",
		Example: `  optscore snapshot import ./AAPL.json ./0700.HK.yaml
  optscore snapshot import data/*.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			type imported struct {
				File   string `json:"file"`
				Symbol string `json:"symbol"`
				AsOf   string `json:"as_of"`
				Calls  int    `json:"calls"`
				Puts   int    `json:"puts"`
				Bars   int    `json:"bars"`
			}
			var done []imported
			var symbols []string

			err := withStore(ctx, app, func(store *provider.SQLiteStore) error {
				for _, path := range args {
					snap, err := provider.ReadSnapshotFile(path)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					if err := store.SaveSnapshot(ctx, snap); err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					done = append(done, imported{
						File:   path,
						Symbol: snap.Symbol,
						AsOf:   snap.AsOf.UTC().Format("2006-01-02T15:04:05Z"),
						Calls:  len(snap.Calls),
						Puts:   len(snap.Puts),
						Bars:   len(snap.History),
					})
					symbols = append(symbols, snap.Symbol)
				}
				return nil
			})
			if err != nil {
				output.Error("Import failed: %v", err)
				return err
			}

			// Cached copies of re-imported symbols would otherwise shadow the new data.
			if app.Config.Cache.Enabled {
				if o, err := app.Provider(ctx); err == nil {
					if cache, ok := o.Provider.(*provider.RedisCache); ok {
						for _, sym := range symbols {
							if err := cache.Invalidate(ctx, sym); err != nil {
								app.Logger.Warn().Err(err).Str("symbol", sym).Msg("Cache invalidation failed")
							}
						}
					}
				}
			}

			if output.IsJSON() {
				return output.JSON(done)
			}
			for _, d := range done {
				output.Success("Imported %s @ %s: %d calls, %d puts, %d bars", d.Symbol, d.AsOf, d.Calls, d.Puts, d.Bars)
			}
			output.Dim("Store: %s", app.Config.Provider.SQLitePath)
			return nil
		},
	}
}

func newSnapshotListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List symbols available to the configured provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			var (
				symbols []string
				source  string
				err     error
			)
			if app.Config.Provider.Kind == "sqlite" {
				source = app.Config.Provider.SQLitePath
				err = withStore(ctx, app, func(store *provider.SQLiteStore) error {
					symbols, err = store.Symbols(ctx)
					return err
				})
			} else {
				fp := provider.NewFileProvider(app.Config.Provider.DataDir)
				source = fp.Dir()
				symbols, err = fp.Symbols()
			}
			if err != nil {
				output.Error("Failed to list snapshots: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"source": source, "symbols": symbols})
			}
			output.Bold("%d symbols in %s", len(symbols), source)
			for _, s := range symbols {
				cfg := app.Resolver.Resolve(s)
				mark := ""
				if !cfg.Allows(s) {
					mark = output.Red(" (not whitelisted)")
				}
				output.Printf("  %-14s %s%s\n", s, cfg.Code(), mark)
			}
			return nil
		},
	}
}

func newSnapshotExportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <symbol>",
		Short: "Write the latest snapshot of a symbol as JSON or YAML",
		Example: `  optscore snapshot export AAPL --format yaml
  optscore snapshot export AU2512 --out au.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			symbol := market.Normalize(args[0])
			outPath, _ := cmd.Flags().GetString("out")
			formatName, _ := cmd.Flags().GetString("format")
			format := provider.Format(strings.ToLower(formatName))
			if outPath != "" && !cmd.Flags().Changed("format") {
				if f, err := provider.FormatForPath(outPath); err == nil {
					format = f
				}
			}

			var snap *provider.Snapshot
			var err error
			if app.Config.Provider.Kind == "sqlite" {
				err = withStore(ctx, app, func(store *provider.SQLiteStore) error {
					snap, err = store.Latest(ctx, symbol)
					return err
				})
			} else {
				snap, err = provider.NewFileProvider(app.Config.Provider.DataDir).Load(ctx, symbol)
			}
			if err != nil {
				output.Error("No snapshot for %s: %v", symbol, err)
				return err
			}

			data, err := provider.EncodeSnapshot(snap, format)
			if err != nil {
				output.Error("Encoding failed: %v", err)
				return err
			}
			if outPath == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(outPath, data, 0644); err != nil {
				output.Error("Write failed: %v", err)
				return err
			}
			output.Success("Wrote %s", outPath)
			return nil
		},
	}
	cmd.Flags().String("format", string(provider.FormatJSON), "json or yaml")
	cmd.Flags().StringP("out", "o", "", "output file (default stdout)")
	return cmd
}
