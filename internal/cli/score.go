package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"optscore/internal/market"
	"optscore/internal/models"
)

func newScoreCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <symbol>",
		Short: "Score every eligible contract of one chain side",
		Long: `Score every eligible contract for a single strategy, without the
top-10 cut, profiles or portfolio risk. Useful for auditing factor scores.`,
		Example: `  optscore score AAPL --strategy sell_put
  optscore score 0700.HK -s buy_call --limit 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			strategy, _ := cmd.Flags().GetString("strategy")
			limit, _ := cmd.Flags().GetInt("limit")
			s, ok := models.ParseStrategy(strategy)
			if !ok || s == models.AllStrategies {
				output.Error("Choose one of sell_put, sell_call, buy_put, buy_call")
				return fmt.Errorf("invalid strategy %q", strategy)
			}

			symbol := market.Normalize(args[0])
			cfg := app.Resolver.Resolve(symbol)
			if !cfg.Allows(symbol) {
				output.Error("%s is not whitelisted for %s", symbol, cfg.Code())
				return ErrAnalysisFailed
			}

			eng, err := app.Engine(ctx)
			if err != nil {
				output.Error("Failed to open data provider: %v", err)
				return err
			}
			o, _ := app.Provider(ctx)
			chain, err := o.Provider.OptionsChain(ctx, symbol)
			if err != nil {
				output.Error("Failed to load chain: %v", err)
				return err
			}
			u, err := o.Provider.Underlying(ctx, symbol)
			if err != nil {
				output.Error("Failed to load underlying: %v", err)
				return err
			}

			scored, err := eng.ScoreOptions(string(s), chain.Side(s.ContractType()), *u, cfg)
			if err != nil {
				return err
			}
			if limit > 0 && len(scored) > limit {
				scored = scored[:limit]
			}

			if output.IsJSON() {
				return output.JSON(scored)
			}

			output.Bold("%s %s: %d eligible contracts", symbol, s, len(scored))
			if len(scored) == 0 {
				return nil
			}
			table := NewTable(output, "Strike", "DTE", "Bid/Ask", "Vol/OI", "Score", "Breakeven", "Assignment", "Top factor")
			for _, so := range scored {
				top := "-"
				if f, ok := topFactor(so); ok {
					top = f.Name
				}
				table.AddRow(
					FormatPrice(so.Strike),
					fmt.Sprintf("%d", so.DaysToExpiry),
					FormatBidAsk(so.Bid, so.Ask),
					FormatVolume(so.Volume)+"/"+FormatVolume(so.OpenInterest),
					output.Score(so.Score),
					FormatPrice(so.Breakeven),
					string(so.AssignmentRisk),
					top,
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringP("strategy", "s", "sell_put", "sell_put, sell_call, buy_put or buy_call")
	cmd.Flags().Int("limit", 0, "show at most this many contracts (0 = all)")
	return cmd
}

// topFactor returns the factor contributing most to the score.
func topFactor(so models.ScoredOption) (models.FactorScore, bool) {
	var (
		best  models.FactorScore
		found bool
	)
	for _, f := range so.Factors {
		if !found || f.Weighted > best.Weighted {
			best, found = f, true
		}
	}
	return best, found
}
