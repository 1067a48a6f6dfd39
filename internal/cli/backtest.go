package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"btc-intel/internal/models"
	"btc-intel/internal/store"
	"btc-intel/internal/trading"
)

func addBacktestCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Store, evaluate and report signal snapshots",
		Long: `Signals are stored as snapshots, evaluated once their window has passed
(1H: 1h, 4H: 4h, 1D: 24h, 1W: 168h) against the candles that followed,
and aggregated into hit rates and R multiples.`,
	}
	cmd.AddCommand(newBacktestSnapshotCmd(app))
	cmd.AddCommand(newBacktestEvaluateCmd(app))
	cmd.AddCommand(newBacktestReportCmd(app))
	rootCmd.AddCommand(cmd)
}

func newBacktestSnapshotCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Scan and store the qualifying signals",
		RunE: app.instrument("backtest snapshot", func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			scanner, result, err := app.scan(cmd, onChainFlags(cmd))
			if err != nil {
				return err
			}
			records, err := scanner.Persist(app.commandContext(cmd), result)
			if err != nil {
				return fmt.Errorf("saving scan: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(records)
			}
			if len(records) == 0 {
				output.Info("No signal qualified for a snapshot (directional and score >= 40)")
				return nil
			}

			output.Success("✓ Stored %d snapshot(s) from scan %s", len(records), result.ScanID)
			renderSignalRecords(output, records)
			return nil
		}),
	}

	cmd.Flags().StringP("symbol", "s", "", "symbol (default from config)")
	cmd.Flags().Float64("fear-greed", 0, "Fear & Greed index 0-100")
	cmd.Flags().Float64("funding", 0, "perpetual funding rate in percent")
	cmd.Flags().Float64("oi-change", 0, "open interest change in percent")
	return cmd
}

func newBacktestEvaluateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate pending snapshots against later candles",
		Example: `  btcintel backtest evaluate
  btcintel backtest evaluate --bars 4H --limit 50`,
		RunE: app.instrument("backtest evaluate", func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := app.commandContext(cmd)

			barTF := app.Config.Backtest.Timeframe()
			if cmd.Flags().Changed("bars") {
				flag, _ := cmd.Flags().GetString("bars")
				tf, err := models.ParseTimeframe(flag)
				if err != nil {
					return err
				}
				barTF = tf
			}
			limit := app.Config.Backtest.Limit
			if cmd.Flags().Changed("limit") {
				limit, _ = cmd.Flags().GetInt("limit")
			}

			dataStore, err := app.openStore()
			if err != nil {
				return err
			}
			var backtester trading.Backtester = trading.NewBacktestEngine(dataStore)
			result, err := backtester.Run(ctx, trading.BacktestConfig{
				Symbol:       symbolFlag(cmd, app),
				BarTimeframe: barTF,
				Limit:        limit,
			})
			if err != nil {
				return err
			}

			for _, ev := range result.Evaluated {
				app.Metrics.RecordEvaluation(string(ev.Outcome))
			}
			app.Metrics.BacktestWinRate.Set(result.Report.WinRate)

			if output.IsJSON() {
				return output.JSON(result)
			}

			output.Bold("Evaluated %d signal(s)", len(result.Evaluated))
			output.Dim("  %d not due yet, %d without %s candles", result.NotDue, result.NoData, barTF)
			if len(result.Evaluated) > 0 {
				table := NewTable(output, "ID", "TF", "DIRECTION", "CREATED", "OUTCOME", "HIT AT")
				for _, ev := range result.Evaluated {
					table.AddRow(
						shortID(ev.SignalID),
						string(ev.Timeframe),
						output.Direction(ev.Direction),
						FormatDateTime(ev.CreatedAt),
						output.Outcome(ev.Outcome),
						FormatDateTime(ev.HitAt),
					)
				}
				table.Render()
			}
			output.Println()
			renderReport(output, result.Report)
			return nil
		}),
	}

	cmd.Flags().StringP("symbol", "s", "", "symbol (default from config)")
	cmd.Flags().String("bars", "", "bar timeframe replayed against signals (default from config)")
	cmd.Flags().IntP("limit", "n", trading.DefaultEvalLimit, "maximum pending signals to evaluate")
	return cmd
}

func newBacktestReportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate evaluated signals",
		RunE: app.instrument("backtest report", func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := app.commandContext(cmd)
			symbol := symbolFlag(cmd, app)
			recent, _ := cmd.Flags().GetInt("recent")

			dataStore, err := app.openStore()
			if err != nil {
				return err
			}
			report, err := trading.NewBacktestEngine(dataStore).Report(ctx, symbol)
			if err != nil {
				return err
			}
			app.Metrics.BacktestWinRate.Set(report.WinRate)

			var signals []store.SignalRecord
			if recent > 0 {
				evaluated := true
				signals, err = dataStore.GetSignals(ctx, store.SignalFilter{
					Symbol:    symbol,
					Evaluated: &evaluated,
					Limit:     recent,
				})
				if err != nil {
					return err
				}
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"report":  report,
					"signals": signals,
				})
			}

			renderReport(output, report)
			if len(signals) > 0 {
				output.Println()
				output.Bold("Recent evaluated signals")
				renderSignalRecords(output, signals)
			}
			return nil
		}),
	}

	cmd.Flags().StringP("symbol", "s", "", "symbol (default from config)")
	cmd.Flags().IntP("recent", "r", 10, "recent evaluated signals to list")
	return cmd
}

func renderReport(output *Output, r *trading.BacktestReport) {
	if r == nil || r.TotalSignals == 0 {
		output.Warning("No evaluated signals yet")
		return
	}

	output.Box("Backtest Report", []string{
		fmt.Sprintf("Signals:       %d (%d wins, %d losses, %d pending)", r.TotalSignals, r.Wins, r.Losses, r.Pending),
		fmt.Sprintf("Win rate:      %.1f%%", r.WinRate),
		fmt.Sprintf("Avg win:       %+.2fR", r.AvgWinR),
		fmt.Sprintf("Avg loss:      %+.2fR", r.AvgLossR),
		fmt.Sprintf("Profit factor: %.2f", r.ProfitFactor),
		fmt.Sprintf("Expectancy:    %+.2fR", r.ExpectancyR),
	})

	outcomes := make([]store.Outcome, 0, len(r.ByOutcome))
	for oc := range r.ByOutcome {
		outcomes = append(outcomes, oc)
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i] < outcomes[j] })

	table := NewTable(output, "OUTCOME", "COUNT").AlignRight(1)
	for _, oc := range outcomes {
		table.AddRow(output.Outcome(oc), fmt.Sprintf("%d", r.ByOutcome[oc]))
	}
	table.Render()
	output.Println()

	tfTable := NewTable(output, "TF", "TOTAL", "WINS", "LOSSES", "PENDING", "WIN RATE").AlignRight(1, 2, 3, 4, 5)
	for _, tf := range models.AllTimeframes {
		st, ok := r.ByTimeframe[tf]
		if !ok {
			continue
		}
		tfTable.AddRow(
			string(tf),
			fmt.Sprintf("%d", st.Total),
			fmt.Sprintf("%d", st.Wins),
			fmt.Sprintf("%d", st.Losses),
			fmt.Sprintf("%d", st.Pending),
			fmt.Sprintf("%.1f%%", st.WinRate),
		)
	}
	tfTable.Render()
}

func renderSignalRecords(output *Output, records []store.SignalRecord) {
	table := NewTable(output, "ID", "TF", "DIRECTION", "SCORE", "CLASS", "PRICE", "SL", "TP1", "TP2", "OUTCOME").AlignRight(3, 5, 6, 7, 8)
	for _, rec := range records {
		table.AddRow(
			shortID(rec.ID),
			string(rec.Timeframe),
			output.Direction(rec.Direction),
			fmt.Sprintf("%d", rec.ExtendedScore),
			rec.Classification,
			FormatPrice(rec.Price),
			FormatPrice(rec.SL),
			FormatPrice(rec.TP1),
			FormatPrice(rec.TP2),
			output.Outcome(rec.Outcome),
		)
	}
	table.Render()
}

// shortID returns the first block of a UUID.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
