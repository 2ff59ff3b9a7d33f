package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"optscore/internal/models"
)

func newAnalyzeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <symbol>...",
		Short: "Score an option chain for one or all strategies",
		Long: `Run a full analysis for a symbol:
- market resolution and whitelist check
- volatility risk premium (implied vs realized)
- per-strategy contract scoring with factor breakdown
- risk/return profiles for the top contracts
- portfolio risk and an overall recommendation`,
		Example: `  optscore analyze AAPL
  optscore analyze 0700.HK --strategy sell_put
  optscore analyze AU2512 --strategy buy_call --json
  optscore analyze SPY --size --portfolio 50000 --tolerance conservative
  optscore analyze AAPL MSFT 0700.HK --workers 4`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			strategy, _ := cmd.Flags().GetString("strategy")
			if strategy == "" {
				strategy = app.Config.Engine.DefaultStrategy
			}
			detailed, _ := cmd.Flags().GetBool("detailed")
			withSizing, _ := cmd.Flags().GetBool("size")

			eng, err := app.Engine(ctx)
			if err != nil {
				output.Error("Failed to open data provider: %v", err)
				return err
			}

			if len(args) > 1 {
				workers, _ := cmd.Flags().GetInt("workers")
				return printBatch(output, eng.AnalyzeBatch(ctx, args, strategy, workers))
			}

			res := eng.AnalyzeOptionsChain(ctx, args[0], strategy)

			var sizing *models.PositionSizingResult
			if res.Success && withSizing {
				pv, tol := sizingFlags(cmd, app)
				s := eng.CalculatePositionSizing(res, pv, tol)
				sizing = &s
			}

			if output.IsJSON() {
				if err := output.JSON(struct {
					*models.AnalysisResult
					Sizing *models.PositionSizingResult `json:"position_sizing,omitempty"`
				}{res, sizing}); err != nil {
					return err
				}
				if !res.Success {
					return ErrAnalysisFailed
				}
				return nil
			}

			if !res.Success {
				printFailure(output, res)
				return ErrAnalysisFailed
			}
			printAnalysis(output, res, detailed)
			if sizing != nil {
				output.Println()
				printSizing(output, *sizing, res.Currency)
			}
			return nil
		},
	}

	cmd.Flags().StringP("strategy", "s", "", "sell_put, sell_call, buy_put, buy_call or all (default from config)")
	cmd.Flags().Bool("detailed", false, "show factor breakdown for the best contract of each strategy")
	cmd.Flags().Bool("size", false, "append position sizing for the best contracts")
	cmd.Flags().Int("workers", 0, "concurrent analyses when several symbols are given (default: CPU count)")
	addSizingFlags(cmd)

	return cmd
}

// printBatch prints one summary row per symbol. It fails when any
// analysis failed.
func printBatch(output *Output, results []*models.AnalysisResult) error {
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}

	if output.IsJSON() {
		if err := output.JSON(results); err != nil {
			return err
		}
	} else {
		table := NewTable(output, "Symbol", "Market", "Price", "VRP", "Best", "Score", "Risk", "Overall")
		for _, r := range results {
			if !r.Success {
				table.AddRow(r.Symbol, string(r.Market), "-", "-", "-", "-", "-", output.Red(r.ErrorCode))
				continue
			}
			best, score, risk := "-", "-", "-"
			if len(r.BestStrategies) > 0 {
				b := r.BestStrategies[0]
				best = fmt.Sprintf("%s %s", b.Strategy, FormatPrice(b.Option.Strike))
				score = output.Score(b.Score)
			}
			if r.PortfolioRisk != nil {
				risk = output.RiskLevel(string(r.PortfolioRisk.Level))
			}
			table.AddRow(
				r.Symbol,
				string(r.Market),
				FormatMoney(r.Underlying.CurrentPrice, r.Currency),
				output.VRPTier(r.VRP.Tier),
				best, score, risk,
				output.Action(r.Overall.Action),
			)
		}
		table.Render()
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d symbols", ErrAnalysisFailed, failed, len(results))
	}
	return nil
}

func printFailure(output *Output, res *models.AnalysisResult) {
	output.Error("%s analysis failed [%s]: %s", res.Symbol, res.ErrorCode, res.Error)
	if len(res.AllowedSymbols) > 0 {
		output.Dim("Allowed symbols for %s: %s", res.Market, strings.Join(res.AllowedSymbols, ", "))
	}
}

func printAnalysis(output *Output, res *models.AnalysisResult, detailed bool) {
	u := res.Underlying
	output.Bold("%s  %s  %s", res.Symbol, res.Market, FormatMoney(u.CurrentPrice, res.Currency))
	output.Printf("  Change %s   30d vol %s   52w %s - %s\n",
		FormatPercent(u.ChangePercent), FormatIV(u.HistVol()),
		FormatPrice(u.Week52Low), FormatPrice(u.Week52High))
	output.Dim("  As of %s   id %s", FormatDate(res.AsOf, nil), res.ID)
	output.Println()

	if v := res.VRP; v != nil {
		output.Printf("Volatility premium: %s  (IV %s, HV %s, %+.1f pts)\n",
			output.VRPTier(v.Tier), FormatIV(v.ImpliedVol), FormatIV(v.HistoricalVol), v.VRPAbsolute*100)
		output.Dim("  %s", v.Description)
		for _, a := range v.Assumptions {
			output.Dim("  assumption: %s", a)
		}
		output.Println()
	}

	for _, s := range models.Strategies() {
		sr, ok := res.Strategies[s]
		if !ok {
			continue
		}
		printStrategy(output, sr, res.Currency, detailed)
		output.Println()
	}

	if pr := res.PortfolioRisk; pr != nil {
		output.Printf("Portfolio risk: %s (%.1f)\n", output.RiskLevel(string(pr.Level)), pr.Score)
		output.Dim("  %s", pr.Description)
		for _, sg := range pr.Suggestions {
			output.Printf("  - %s\n", sg)
		}
		output.Println()
	}

	if len(res.StyleBuckets) > 0 {
		output.Bold("By trading style")
		for _, style := range models.TradingStyles() {
			list, ok := res.StyleBuckets[style]
			if !ok {
				continue
			}
			picks := make([]string, 0, len(list))
			for _, so := range list {
				picks = append(picks, fmt.Sprintf("%s %s (%s)", so.Strategy, FormatPrice(so.Strike), FormatScore(so.Score)))
			}
			output.Printf("  %-22s %s\n", style, strings.Join(picks, ", "))
		}
		output.Println()
	}

	if o := res.Overall; o != nil {
		output.Printf("Overall: %s\n", output.Action(o.Action))
		output.Dim("  %s", o.Rationale)
	}
}

func printStrategy(output *Output, sr *models.StrategyResult, currency string, detailed bool) {
	output.Bold("%s  (%s)", strings.ToUpper(strings.ReplaceAll(string(sr.Strategy), "_", " ")), sr.Summary.Outlook)
	output.Dim("  %d evaluated, %d eligible, %d skipped", sr.Evaluated, sr.Eligible, sr.Skipped)

	if len(sr.Recommendations) > 0 {
		table := NewTable(output, "Strike", "DTE", "Bid/Ask", "IV", "OTM", "Score", "Win", "R/R", "Style", "Risk")
		for _, so := range sr.Recommendations {
			win, rr, style, risk := "-", "-", "-", "-"
			if p := so.Profile; p != nil {
				win = fmt.Sprintf("%.0f%%", p.WinProbability*100)
				rr = FormatRatio(p.RiskRewardRatio)
				style = string(p.Style)
				risk = output.RiskLevel(string(p.RiskLevel))
			}
			table.AddRow(
				FormatPrice(so.Strike),
				fmt.Sprintf("%d", so.DaysToExpiry),
				FormatBidAsk(so.Bid, so.Ask),
				FormatIV(so.IV()),
				fmt.Sprintf("%.1f%%", so.OTMPercent),
				output.Score(so.Score),
				win, rr, style, risk,
			)
		}
		table.Render()
	}

	for _, r := range sr.Summary.Recommendations {
		output.Printf("  - %s\n", r)
	}

	best, ok := sr.Best()
	if !ok || !detailed {
		return
	}
	output.Dim("  Best contract breakdown (%s premium per contract: %s)",
		sr.Strategy, FormatMoney(best.MidPrice*best.Multiplier, currency))
	factors := append([]models.FactorScore(nil), best.Factors...)
	sort.SliceStable(factors, func(i, j int) bool { return factors[i].Weighted > factors[j].Weighted })
	for _, f := range factors {
		output.Printf("    %-22s %5.1f x %.2f = %5.2f\n", f.Name, f.Score, f.Weight, f.Weighted)
	}
	if best.Delivery != nil {
		output.Printf("    delivery: %d days, zone %s, %s\n",
			best.Delivery.DaysToDelivery, best.Delivery.Zone, best.Delivery.Recommendation)
	}
	if best.Profile != nil {
		output.Printf("    %s\n", best.Profile.Summary)
	}
}
