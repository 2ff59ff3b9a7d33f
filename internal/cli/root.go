// Package cli provides the command-line interface for the options scoring engine.
package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"optscore/internal/config"
	"optscore/internal/delivery"
	"optscore/internal/engine"
	"optscore/internal/logging"
	"optscore/internal/market"
	"optscore/internal/metrics"
	"optscore/internal/provider"
)

// Version information
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

// App holds the application dependencies. The provider and engine are
// opened on first use so that offline commands never touch data sources.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Metrics  *metrics.Registry
	Resolver *market.Resolver

	// Now is the clock for date-relative commands; nil means time.Now.
	Now func() time.Time

	opened *provider.Opened
	engine *engine.Engine
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) deliveryCalculator() *delivery.Calculator {
	return delivery.NewCalculator(delivery.DefaultThresholds())
}

// parseDate parses YYYY-MM-DD at midnight in loc.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation("2006-01-02", s, loc)
}

// setup loads configuration and builds the shared components.
func (a *App) setup(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	a.Config = cfg

	lc := logging.DefaultLogConfig()
	lc.Level = cfg.Log.Level
	lc.JSON = cfg.Log.JSON
	lc.File = cfg.Log.File
	if cfg.Log.FilePath != "" {
		lc.FilePath = cfg.Log.FilePath
	}
	if cfg.Log.MaxSize > 0 {
		lc.MaxSize, lc.MaxBackups, lc.MaxAge = cfg.Log.MaxSize, cfg.Log.MaxBackups, cfg.Log.MaxAge
	}
	a.Logger = logging.NewLoggerWithConfig(lc)
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logging.SetDebugLevel()
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}

	a.Resolver = market.NewResolver(market.OverridesFromConfig(cfg.Markets))
	a.Metrics = metrics.New()

	if cfg.Metrics.Enabled {
		go func() {
			if err := a.Metrics.Serve(cmd.Context(), cfg.Metrics.Addr); err != nil {
				a.Logger.Warn().Err(err).Str("addr", cfg.Metrics.Addr).Msg("Metrics listener stopped")
			}
		}()
		a.Logger.Debug().Str("addr", cfg.Metrics.Addr).Msg("Metrics listener started")
	}
	return nil
}

// Provider opens the configured data provider stack.
func (a *App) Provider(ctx context.Context) (*provider.Opened, error) {
	if a.opened != nil {
		return a.opened, nil
	}
	o, err := provider.Open(ctx, a.Config, a.Metrics, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("opening %s provider: %w", a.Config.Provider.Kind, err)
	}
	a.opened = o
	return o, nil
}

// Engine returns the analysis engine wired to the configured provider.
func (a *App) Engine(ctx context.Context) (*engine.Engine, error) {
	if a.engine != nil {
		return a.engine, nil
	}
	o, err := a.Provider(ctx)
	if err != nil {
		return nil, err
	}
	opts := engine.DefaultOptions()
	if a.Now != nil {
		opts.Now = a.Now
	}
	opts.ProfileTopN = a.Config.Engine.ProfileTopN
	opts.HistoryDays = a.Config.Engine.HistoryDays
	a.engine = engine.New(a.Resolver, o.Provider, opts, a.Metrics, a.Logger)
	return a.engine, nil
}

// Close releases the provider stack.
func (a *App) Close() error {
	if a.opened == nil {
		return nil
	}
	err := a.opened.Close()
	a.opened, a.engine = nil, nil
	return err
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(logger zerolog.Logger) *cobra.Command {
	return newRootCmd(&App{
		Config: config.Default(),
		Logger: logger,
	})
}

func newRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "optscore",
		Short: "Options strategy scoring and risk engine",
		Long: `optscore scores single-leg option contracts for four strategies
(sell put, sell call, buy call, buy put) across US, Hong Kong, mainland China
ETF and commodity futures option markets.

Each analysis compares implied with realized volatility, profiles the top
contracts, assesses portfolio risk and suggests position sizes.

Chain snapshots are read from a directory of JSON/YAML files or a SQLite
store; see 'optscore snapshot --help'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/optscore)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newScoreCmd(app))
	rootCmd.AddCommand(newSizeCmd(app))
	rootCmd.AddCommand(newMarketCmd(app))
	rootCmd.AddCommand(newDeliveryCmd(app))
	rootCmd.AddCommand(newSnapshotCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("optscore v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": dir})
			}
			output.Println(dir)
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Engine")
	output.Printf("  Default strategy: %s\n", cfg.Engine.DefaultStrategy)
	output.Printf("  Profiled top N:   %d\n", cfg.Engine.ProfileTopN)
	output.Printf("  History days:     %d\n", cfg.Engine.HistoryDays)
	output.Println()

	output.Bold("Risk")
	output.Printf("  Tolerance:        %s\n", cfg.Risk.Tolerance)
	output.Printf("  Portfolio value:  %s\n", FormatMoney(cfg.Risk.PortfolioValue, ""))
	output.Println()

	output.Bold("Provider")
	output.Printf("  Kind:             %s\n", cfg.Provider.Kind)
	switch cfg.Provider.Kind {
	case "sqlite":
		output.Printf("  SQLite path:      %s\n", cfg.Provider.SQLitePath)
	default:
		output.Printf("  Data dir:         %s\n", cfg.Provider.DataDir)
	}
	output.Printf("  Rate limit:       %.1f/s (burst %d)\n", cfg.Provider.RequestsPerSec, cfg.Provider.Burst)
	output.Printf("  Breaker:          %d failures, %s open\n", cfg.Provider.BreakerFailures, cfg.Provider.BreakerTimeout)
	output.Println()

	output.Bold("Cache")
	output.Printf("  Enabled:          %v\n", cfg.Cache.Enabled)
	if cfg.Cache.Enabled {
		output.Printf("  Redis:            %s db %d, ttl %s\n", cfg.Cache.Addr, cfg.Cache.DB, cfg.Cache.TTL)
	}
	output.Println()

	output.Bold("Metrics")
	output.Printf("  Enabled:          %v\n", cfg.Metrics.Enabled)
	if cfg.Metrics.Enabled {
		output.Printf("  Listen:           %s\n", cfg.Metrics.Addr)
	}
}

// commandContext bounds a command's data access.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, 60*time.Second)
}

// ErrAnalysisFailed is returned after a structured failure has already been
// printed, so callers only need to set the exit status.
var ErrAnalysisFailed = errors.New("analysis failed")
