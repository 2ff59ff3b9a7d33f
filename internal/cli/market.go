package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"optscore/internal/market"
	"optscore/internal/models"
)

type marketView struct {
	Symbol             string            `json:"symbol,omitempty"`
	Market             models.MarketCode `json:"market"`
	Currency           string            `json:"currency"`
	Multiplier         float64           `json:"multiplier"`
	RiskFreeRate       float64           `json:"risk_free_rate"`
	TradingDaysPerYear int               `json:"trading_days_per_year"`
	MarginRate         float64           `json:"margin_rate"`
	Liquidity          market.Liquidity  `json:"liquidity"`
	CashSettled        bool              `json:"cash_settled"`
	EnforcesWhitelist  bool              `json:"enforces_whitelist"`
	Allowed            *bool             `json:"allowed,omitempty"`
	Whitelist          []string          `json:"whitelist,omitempty"`
}

func newMarketView(cfg *market.Config, symbol string) marketView {
	v := marketView{
		Symbol:             symbol,
		Market:             cfg.Code(),
		Currency:           cfg.Currency(),
		Multiplier:         cfg.DefaultMultiplier(),
		RiskFreeRate:       cfg.RiskFreeRate(),
		TradingDaysPerYear: cfg.TradingDaysPerYear(),
		MarginRate:         cfg.MarginRate(),
		Liquidity:          cfg.Liquidity(),
		CashSettled:        cfg.CashSettled(),
		EnforcesWhitelist:  cfg.EnforcesWhitelist(),
		Whitelist:          market.AllowedSymbols(cfg),
	}
	if symbol != "" {
		allowed := cfg.Allows(symbol)
		v.Allowed = &allowed
		v.Multiplier = cfg.MultiplierFor(symbol)
	}
	return v
}

func newMarketCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "market [symbol]",
		Short: "Show the market configuration a symbol resolves to",
		Long: `Resolve a symbol to its market (US, HK, CN or COMMODITY) and show the
contract multiplier, rates, liquidity thresholds and whitelist status.
Without a symbol, list every market.

Detection order: .US/.HK/.SS/.SZ suffix, dated commodity contract code
(AU2506), commodity product code with an exchange suffix (AU.SHF, MA.ZCE).
Anything else is US, including bare product codes such as MA or C.`,
		Example: `  optscore market 700.hk
  optscore market AU2512
  optscore market MA.ZCE
  optscore market --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			var views []marketView
			if len(args) == 1 {
				symbol := market.Normalize(args[0])
				views = append(views, newMarketView(app.Resolver.Resolve(symbol), symbol))
			} else {
				for _, code := range []models.MarketCode{models.MarketUS, models.MarketHK, models.MarketCN, models.MarketCommodity} {
					if cfg := app.Resolver.Config(code); cfg != nil {
						views = append(views, newMarketView(cfg, ""))
					}
				}
			}

			if output.IsJSON() {
				if len(args) == 1 {
					return output.JSON(views[0])
				}
				return output.JSON(views)
			}
			for i, v := range views {
				if i > 0 {
					output.Println()
				}
				printMarket(output, v)
			}
			return nil
		},
	}
	return cmd
}

func printMarket(output *Output, v marketView) {
	if v.Symbol != "" {
		output.Bold("%s -> %s", v.Symbol, v.Market)
	} else {
		output.Bold("%s", v.Market)
	}
	output.Printf("  Currency:        %s\n", v.Currency)
	output.Printf("  Multiplier:      %g\n", v.Multiplier)
	output.Printf("  Risk-free rate:  %.2f%%\n", v.RiskFreeRate*100)
	output.Printf("  Trading days:    %d\n", v.TradingDaysPerYear)
	output.Printf("  Margin rate:     %.0f%%\n", v.MarginRate*100)
	output.Printf("  Liquidity:       volume >= %d, OI >= %d, spread <= %.0f%%\n",
		v.Liquidity.MinVolume, v.Liquidity.MinOpenInterest, v.Liquidity.MaxSpreadPct*100)
	settle := "cash"
	if !v.CashSettled {
		settle = "physical (delivery risk applies)"
	}
	output.Printf("  Settlement:      %s\n", settle)

	if v.EnforcesWhitelist {
		output.Printf("  Whitelist:       %s\n", TruncateString(strings.Join(v.Whitelist, ", "), 72))
	}
	if v.Allowed != nil {
		if *v.Allowed {
			output.Success("  %s is allowed", v.Symbol)
		} else {
			output.Error("  %s is not whitelisted", v.Symbol)
		}
	}
}

func newDeliveryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delivery <contract-code>...",
		Short: "Assess delivery risk of commodity contracts",
		Long: `Assess how close commodity contracts are to their delivery month.
Contracts 30 days or less from delivery should be closed; between 30 and 60
days the score penalty ramps linearly; beyond 60 days there is no penalty.`,
		Example: `  optscore delivery AU2506 CU2509
  optscore delivery M2509-C-3000 --as-of 2025-07-20`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Resolver.Config(models.MarketCommodity)

			asOfStr, _ := cmd.Flags().GetString("as-of")
			asOf := app.now()
			if asOfStr != "" {
				t, err := parseDate(asOfStr, cfg.Location())
				if err != nil {
					output.Error("Invalid --as-of date: %v", err)
					return err
				}
				asOf = t
			}

			calc := app.deliveryCalculator()
			out := make([]models.DeliveryRiskAssessment, 0, len(args))
			for _, code := range args {
				out = append(out, calc.AssessContract(strings.ToUpper(code), asOf, cfg.Location()))
			}

			if output.IsJSON() {
				return output.JSON(out)
			}

			table := NewTable(output, "Contract", "Delivery", "Days", "Zone", "Penalty", "Action")
			for _, a := range out {
				if !a.Parsed {
					table.AddRow(a.ContractCode, "-", "-", output.DimText("unparsable"), "0.00", string(a.Recommendation))
					continue
				}
				zone := string(a.Zone)
				switch a.Zone {
				case models.ZoneRed:
					zone = output.Red(zone)
				case models.ZoneWarning:
					zone = output.Yellow(zone)
				default:
					zone = output.Green(zone)
				}
				table.AddRow(
					a.ContractCode,
					FormatDate(*a.DeliveryDate, cfg.Location()),
					fmt.Sprintf("%d", a.DaysToDelivery),
					zone,
					fmt.Sprintf("%.2f", a.Penalty),
					string(a.Recommendation),
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().String("as-of", "", "assessment date YYYY-MM-DD in exchange time (default today)")
	return cmd
}
