package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"btc-intel/internal/analysis"
	"btc-intel/internal/analysis/indicators"
	"btc-intel/internal/analysis/levels"
	"btc-intel/internal/analysis/pipeline"
	"btc-intel/internal/analysis/scoring"
	apperrors "btc-intel/internal/errors"
	"btc-intel/internal/models"
	"btc-intel/internal/store"
	"btc-intel/internal/trading"
	"btc-intel/pkg/utils"
)

func addSignalCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "signal",
		Short: "Scored trade signals",
	}
	cmd.AddCommand(newSignalScanCmd(app))
	rootCmd.AddCommand(cmd)
	rootCmd.AddCommand(newTPSLCmd(app))
}

// onChainFlags reads the optional sentiment readings; unset flags stay nil.
func onChainFlags(cmd *cobra.Command) scoring.OnChain {
	var oc scoring.OnChain
	read := func(name string) *float64 {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		v, _ := cmd.Flags().GetFloat64(name)
		return &v
	}
	oc.FearGreed = read("fear-greed")
	oc.FundingRate = read("funding")
	oc.OIChangePct = read("oi-change")
	return oc
}

func newSignalScanCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Score every timeframe and store the signals",
		Long: `Run the full scan: levels, Fibonacci, patterns, indicators, setups,
extended score and TP/SL for every timeframe with enough candles.

Directional signals scoring 40 or more are stored for 'btcintel backtest evaluate'.
Sentiment readings are optional; leave them out when unknown.`,
		Example: `  btcintel signal scan
  btcintel signal scan --fear-greed 22 --funding -0.01 --oi-change 6
  btcintel signal scan --no-save --json`,
		RunE: app.instrument("signal scan", func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			noSave, _ := cmd.Flags().GetBool("no-save")

			scanner, result, err := app.scan(cmd, onChainFlags(cmd))
			if err != nil {
				return err
			}

			var saved []store.SignalRecord
			if noSave {
				saved = pipeline.SignalRecords(result)
			} else {
				saved, err = scanner.Persist(app.commandContext(cmd), result)
				if err != nil {
					return fmt.Errorf("saving scan: %w", err)
				}
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"scan":    result,
					"signals": saved,
					"saved":   !noSave,
				})
			}

			renderScan(output, result)
			output.Println()
			switch {
			case len(saved) == 0:
				output.Dim("No signal qualified for storage (directional and score >= 40)")
			case noSave:
				output.Dim("%d signal(s) qualify; not saved (--no-save)", len(saved))
			default:
				output.Success("✓ Stored %d signal(s) from scan %s", len(saved), result.ScanID)
			}
			return nil
		}),
	}

	cmd.Flags().StringP("symbol", "s", "", "symbol (default from config)")
	cmd.Flags().Float64("fear-greed", 0, "Fear & Greed index 0-100")
	cmd.Flags().Float64("funding", 0, "perpetual funding rate in percent")
	cmd.Flags().Float64("oi-change", 0, "open interest change in percent")
	cmd.Flags().Bool("no-save", false, "do not store the scan")
	return cmd
}

func renderScan(output *Output, result *pipeline.ScanResult) {
	output.Box(fmt.Sprintf("%s Signal Scan", result.Symbol), []string{
		fmt.Sprintf("Price:        %s", FormatPrice(result.Price)),
		fmt.Sprintf("Levels/Zones: %d / %d", len(result.Levels), len(result.Zones)),
		fmt.Sprintf("Confluences:  %d", len(result.Confluences)),
		fmt.Sprintf("Scan:         %s (%s)", result.ScanID, FormatDuration(result.Duration)),
	})
	if len(result.Skipped) > 0 {
		output.Dim("Skipped (too few candles): %s", FormatTimeframes(result.Skipped))
	}
	if len(result.Signals) == 0 {
		output.Warning("No timeframe has enough candles for a signal")
		return
	}
	output.Println()

	table := NewTable(output, "TF", "DIRECTION", "BASE", "LVL", "CNDL", "CHAIN", "PEN", "SCORE", "CLASS", "SETUP", "HTF").AlignRight(2, 3, 4, 5, 6, 7)
	for _, sig := range result.Signals {
		s := sig.Score
		setupName := "-"
		if sig.Setup != nil {
			setupName = string(sig.Setup.Type)
		}
		table.AddRow(
			string(sig.Timeframe),
			output.Direction(sig.Base.Direction),
			fmt.Sprintf("%.1f", s.BaseConfidence),
			fmt.Sprintf("%+d", s.BonusLevels),
			fmt.Sprintf("%+d", s.BonusCandles),
			fmt.Sprintf("%+d", s.BonusOnChain),
			fmt.Sprintf("%d", s.Penalties),
			FormatScore(s.FinalScore),
			output.Classification(s.Classification),
			setupName,
			string(sig.HTFDirection),
		)
	}
	table.Render()

	for _, sig := range result.Signals {
		output.Println()
		renderSignalDetail(output, sig)
	}
}

func renderSignalDetail(output *Output, sig pipeline.TimeframeSignal) {
	ind := sig.Indicators
	output.Printf("%s  %s  RSI %.1f  ATR %s  vol %s / avg %s  trend %s\n",
		output.Cyan(string(sig.Timeframe)),
		output.Direction(sig.Base.Direction),
		ind.RSI, FormatPrice(ind.ATR), utils.FormatVolume(ind.Volume), utils.FormatVolume(ind.VolumeSMA20), ind.Trend)

	if sig.Setup != nil {
		output.Printf("  Setup:    %s (%s)\n", TruncateString(sig.Setup.Description, 80), sig.Setup.Reliability)
	}
	if len(sig.Patterns) > 0 {
		names := make([]string, len(sig.Patterns))
		for i, p := range sig.Patterns {
			names[i] = string(p.ID)
		}
		output.Printf("  Patterns: %s\n", strings.Join(names, ", "))
	}

	tp := sig.TPSL
	if !tp.Valid {
		if tp.Reason != "" {
			output.Dim("  TP/SL:    not placed (%s)", tp.Reason)
		}
		return
	}
	output.Printf("  SL   %s  %s  [%s]\n", output.Red(FormatPrice(tp.SL)), FormatDistance(tp.SL, tp.Entry), tp.SLMethod)
	output.Printf("  TP1  %s  %s  R:R %s  [%s]\n", output.Green(FormatPrice(tp.TP1)), FormatDistance(tp.TP1, tp.Entry), FormatRiskReward(tp.RRTP1), tp.TP1Method)
	output.Printf("  TP2  %s  %s  R:R %s  [%s]\n", output.Green(FormatPrice(tp.TP2)), FormatDistance(tp.TP2, tp.Entry), FormatRiskReward(tp.RRTP2), tp.TP2Method)
}

func newTPSLCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tpsl",
		Short: "Place stop loss and take profits for an entry",
		Long: `Compute SL, TP1 and TP2 for an entry on market structure.

Levels and Fibonacci come from the last stored scan; swings, ATR and
Bollinger bands are computed from the stored candles of the timeframe.
--atr and the --bb-* flags override the computed values.`,
		Example: `  btcintel tpsl --entry 64250 --direction long --timeframe 4H
  btcintel tpsl --entry 64250 --direction short --timeframe 1D --atr 1850 --no-store`,
		RunE: app.instrument("tpsl", func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := app.commandContext(cmd)

			entry, _ := cmd.Flags().GetFloat64("entry")
			if entry <= 0 {
				return apperrors.NewValidationError("entry", entry, "must be positive")
			}
			dirFlag, _ := cmd.Flags().GetString("direction")
			dir, err := models.ParseDirection(dirFlag)
			if err != nil {
				return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
			}
			tfFlag, _ := cmd.Flags().GetString("timeframe")
			tf, err := models.ParseTimeframe(tfFlag)
			if err != nil {
				return fmt.Errorf("%w: %v", apperrors.ErrInvalidTimeframe, err)
			}

			in := trading.TPSLInput{Entry: entry, Direction: dir, Timeframe: tf}
			if noStore, _ := cmd.Flags().GetBool("no-store"); !noStore {
				if err := app.fillStructure(ctx, symbolFlag(cmd, app), &in); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("atr") {
				in.ATR, _ = cmd.Flags().GetFloat64("atr")
			}
			if cmd.Flags().Changed("bb-upper") {
				in.Bands.Upper, _ = cmd.Flags().GetFloat64("bb-upper")
			}
			if cmd.Flags().Changed("bb-mid") {
				in.Bands.Mid, _ = cmd.Flags().GetFloat64("bb-mid")
			}
			if cmd.Flags().Changed("bb-lower") {
				in.Bands.Lower, _ = cmd.Flags().GetFloat64("bb-lower")
			}

			var planner trading.Planner = trading.NewTPSLCalculator()
			res := planner.Calculate(in)

			if output.IsJSON() {
				return output.JSON(res)
			}
			renderTPSL(output, res, in)
			return nil
		}),
	}

	cmd.Flags().StringP("symbol", "s", "", "symbol (default from config)")
	cmd.Flags().Float64P("entry", "e", 0, "entry price")
	cmd.Flags().StringP("direction", "d", "", "long or short")
	cmd.Flags().StringP("timeframe", "t", "4H", "timeframe: 1H, 4H, 1D or 1W")
	cmd.Flags().Float64("atr", 0, "ATR override")
	cmd.Flags().Float64("bb-upper", 0, "upper Bollinger band override")
	cmd.Flags().Float64("bb-mid", 0, "middle Bollinger band override")
	cmd.Flags().Float64("bb-lower", 0, "lower Bollinger band override")
	cmd.Flags().Bool("no-store", false, "use only the flags, not stored structure")
	_ = cmd.MarkFlagRequired("entry")
	_ = cmd.MarkFlagRequired("direction")
	return cmd
}

// fillStructure loads the stored levels, Fibonacci and candles of in.Timeframe
// into in. Missing data leaves the fields empty.
func (app *App) fillStructure(ctx context.Context, symbol string, in *trading.TPSLInput) error {
	dataStore, err := app.openStore()
	if err != nil {
		return err
	}

	records, err := dataStore.GetLevels(ctx, symbol, store.LevelFilter{})
	if err != nil {
		return err
	}
	in.Levels = levelsOf(records)

	fibs, err := dataStore.GetFibonacci(ctx, symbol)
	if err != nil {
		return err
	}
	for i := range fibs {
		if fibs[i].Timeframe == in.Timeframe {
			in.Fib = &fibs[i]
			break
		}
	}

	candles, err := dataStore.GetLatestCandles(ctx, symbol, in.Timeframe, app.Config.Data.Bars)
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		app.Logger.Debug().Str("timeframe", string(in.Timeframe)).Msg("No candles for TP/SL structure")
		return nil
	}

	in.Swings = levels.NewSwingDetector().Detect(in.Timeframe, candles)
	snap, err := indicators.NewStandardEngine(2).Snapshot(ctx, candles)
	if err != nil {
		return fmt.Errorf("computing indicators: %w", err)
	}
	in.ATR = snap.ATR
	in.Bands = trading.Bands{Upper: snap.BBUpper, Mid: snap.BBMid, Lower: snap.BBLower}
	return nil
}

func renderTPSL(output *Output, res trading.TPSLResult, in trading.TPSLInput) {
	title := fmt.Sprintf("TP/SL %s %s @ %s", res.Timeframe, res.Direction, FormatPrice(res.Entry))
	if !res.Valid {
		output.Box(title, []string{output.Red("Not placed: " + res.Reason)})
		return
	}

	output.Box(title, []string{
		fmt.Sprintf("SL   %-14s %-9s %s", FormatPrice(res.SL), FormatDistance(res.SL, res.Entry), res.SLMethod),
		fmt.Sprintf("TP1  %-14s %-9s %s  R:R %s", FormatPrice(res.TP1), FormatDistance(res.TP1, res.Entry), res.TP1Method, FormatRiskReward(res.RRTP1)),
		fmt.Sprintf("TP2  %-14s %-9s %s  R:R %s", FormatPrice(res.TP2), FormatDistance(res.TP2, res.Entry), res.TP2Method, FormatRiskReward(res.RRTP2)),
		fmt.Sprintf("ATR buffer %s, %d levels, %d swings", FormatPrice(res.Buffer), len(in.Levels), len(in.Swings)),
	})
	if in.Fib == nil {
		output.Dim("No stored Fibonacci for %s; run 'btcintel fib scan' for Fibonacci targets", res.Timeframe)
	}
}

// levelsOf strips stored records down to their levels.
func levelsOf(records []store.LevelRecord) []analysis.PriceLevel {
	out := make([]analysis.PriceLevel, len(records))
	for i, rec := range records {
		out[i] = rec.PriceLevel
	}
	return out
}
