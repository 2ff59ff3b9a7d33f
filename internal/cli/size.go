package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"optscore/internal/models"
)

func addSizingFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("portfolio", 0, "portfolio value (default from config)")
	cmd.Flags().String("tolerance", "", "conservative, moderate or aggressive (default from config)")
}

func sizingFlags(cmd *cobra.Command, app *App) (float64, string) {
	pv, _ := cmd.Flags().GetFloat64("portfolio")
	if pv <= 0 {
		pv = app.Config.Risk.PortfolioValue
	}
	tol, _ := cmd.Flags().GetString("tolerance")
	if tol == "" {
		tol = app.Config.Risk.Tolerance
	}
	return pv, tol
}

func newSizeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "size <symbol>",
		Short: "Suggest position sizes for the best contract of each strategy",
		Long: `Analyze a symbol and size the best contract of each requested strategy
against a portfolio value and risk tolerance.

Buyers risk the premium paid. Sellers are sized on estimated margin
(strike for puts, spot for calls, times the market margin rate, less premium).
When the positions together exceed the tier's portfolio risk budget they are
scaled down uniformly.`,
		Example: `  optscore size AAPL --portfolio 100000
  optscore size 510050.SS --tolerance aggressive --strategy sell_put`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			strategy, _ := cmd.Flags().GetString("strategy")
			pv, tol := sizingFlags(cmd, app)
			if pv <= 0 {
				output.Error("Portfolio value must be positive")
				return fmt.Errorf("invalid portfolio value %v", pv)
			}

			eng, err := app.Engine(ctx)
			if err != nil {
				output.Error("Failed to open data provider: %v", err)
				return err
			}

			res := eng.AnalyzeOptionsChain(ctx, args[0], strategy)
			if !res.Success {
				if output.IsJSON() {
					_ = output.JSON(res)
				} else {
					printFailure(output, res)
				}
				return ErrAnalysisFailed
			}

			sizing := eng.CalculatePositionSizing(res, pv, tol)
			if output.IsJSON() {
				return output.JSON(sizing)
			}
			printSizing(output, sizing, res.Currency)
			return nil
		},
	}

	cmd.Flags().StringP("strategy", "s", "all", "sell_put, sell_call, buy_put, buy_call or all")
	addSizingFlags(cmd)
	return cmd
}

func printSizing(output *Output, r models.PositionSizingResult, currency string) {
	output.Bold("Position sizing (%s)", r.RiskTolerance)
	output.Printf("  Portfolio %s   risk budget %s\n",
		FormatMoney(r.PortfolioValue, currency), FormatMoney(r.RiskBudget, currency))

	if len(r.Positions) > 0 {
		keys := make([]models.Strategy, 0, len(r.Positions))
		for s := range r.Positions {
			keys = append(keys, s)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		table := NewTable(output, "Strategy", "Strike", "Contracts", "Risk/contract", "Capital", "Basis")
		for _, s := range keys {
			p := r.Positions[s]
			table.AddRow(
				string(s),
				FormatPrice(p.Strike),
				fmt.Sprintf("%d", p.Contracts),
				FormatMoney(p.PerContractRisk, currency),
				FormatMoney(p.CapitalRequired, currency),
				p.RiskBasis,
			)
		}
		table.Render()
	}

	output.Printf("  Total capital %s\n", FormatMoney(r.TotalCapital, currency))
	if r.Scaled {
		output.Warning("  Scaled by %.4f to stay within budget", r.ScalingFactor)
	}
	for _, n := range r.Notes {
		output.Dim("  %s", n)
	}
}
