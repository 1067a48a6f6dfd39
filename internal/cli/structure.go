package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"btc-intel/internal/analysis"
	"btc-intel/internal/analysis/levels"
	"btc-intel/internal/analysis/patterns"
	"btc-intel/internal/analysis/pipeline"
	"btc-intel/internal/analysis/scoring"
	apperrors "btc-intel/internal/errors"
	"btc-intel/internal/models"
	"btc-intel/internal/store"
)

// patternBars is how many recent candles the pattern command loads.
const patternBars = 50

func addStructureCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newLevelsCmd(app))
	rootCmd.AddCommand(newFibCmd(app))
	rootCmd.AddCommand(newPatternsCmd(app))
}

// newScanner builds a scanner using the configured tolerances.
func (app *App) newScanner(dataStore store.DataStore) *pipeline.Scanner {
	lv := app.Config.Levels
	return pipeline.NewScannerWithTolerances(dataStore, pipeline.Tolerances{
		MergePct:      lv.MergeTolerancePct,
		FibPct:        lv.FibTolerancePct,
		ZonePct:       lv.ZoneTolerancePct,
		ConfluencePct: lv.ConfluenceTolerancePct,
	})
}

// scan runs one full scan over the stored series and records its metrics.
func (app *App) scan(cmd *cobra.Command, onChain scoring.OnChain) (*pipeline.Scanner, *pipeline.ScanResult, error) {
	dataStore, err := app.openStore()
	if err != nil {
		return nil, nil, err
	}

	scanner := app.newScanner(dataStore)
	result, err := scanner.Scan(app.commandContext(cmd), pipeline.ScanConfig{
		Symbol:        symbolFlag(cmd, app),
		BaseTimeframe: app.Config.Data.Timeframe(),
		Bars:          app.Config.Data.Bars,
		OnChain:       onChain,
	})
	if err != nil {
		if apperrors.Is(err, apperrors.ErrInsufficientData) {
			return nil, nil, fmt.Errorf("%w (import candles with 'btcintel data import')", err)
		}
		return nil, nil, err
	}

	scores := make(map[string]int, len(result.Signals))
	for _, sig := range result.Signals {
		scores[string(sig.Timeframe)] = sig.Score.FinalScore
	}
	app.Metrics.RecordScan(len(result.Levels), len(result.Zones), len(result.Confluences), scores)
	return scanner, result, nil
}

func newLevelsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "levels",
		Short: "Support and resistance levels",
		Long: `Detect support and resistance levels from swings, volume profile and
psychological round numbers, score them 0-20 and cluster them into zones.`,
	}
	cmd.AddCommand(newLevelsScanCmd(app))
	cmd.AddCommand(newLevelsListCmd(app))
	return cmd
}

func newLevelsScanCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Detect, score and store levels and zones",
		Example: `  btcintel levels scan
  btcintel levels scan --limit 40 --json`,
		RunE: app.instrument("levels scan", func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			limit, _ := cmd.Flags().GetInt("limit")

			scanner, result, err := app.scan(cmd, scoring.OnChain{})
			if err != nil {
				return err
			}
			if err := scanner.PersistStructure(app.commandContext(cmd), result); err != nil {
				return fmt.Errorf("saving levels: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"scan_id": result.ScanID,
					"symbol":  result.Symbol,
					"price":   result.Price,
					"levels":  result.Levels,
					"zones":   result.Zones,
				})
			}

			output.Box(fmt.Sprintf("%s Levels", result.Symbol), []string{
				fmt.Sprintf("Price:   %s", FormatPrice(result.Price)),
				fmt.Sprintf("Levels:  %d from %d swings on %s", len(result.Levels), len(result.Swings), result.BaseTimeframe),
				fmt.Sprintf("Zones:   %d", len(result.Zones)),
				fmt.Sprintf("Scan:    %s (%s)", result.ScanID, FormatDuration(result.Duration)),
			})
			output.Println()
			renderLevels(output, result.Levels, result.Price, limit)
			output.Println()
			renderZones(output, result.Zones, result.Price)
			return nil
		}),
	}

	cmd.Flags().StringP("symbol", "s", "", "symbol (default from config)")
	cmd.Flags().IntP("limit", "n", 20, "levels to show")
	return cmd
}

func newLevelsListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored levels from the last scan",
		Example: `  btcintel levels list --min-strength 10
  btcintel levels list --type support`,
		RunE: app.instrument("levels list", func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := app.commandContext(cmd)
			symbol := symbolFlag(cmd, app)

			minStrength := app.Config.Levels.MinStrength
			if cmd.Flags().Changed("min-strength") {
				minStrength, _ = cmd.Flags().GetInt("min-strength")
			}
			limit, _ := cmd.Flags().GetInt("limit")
			typeFlag, _ := cmd.Flags().GetString("type")
			levelType, err := parseLevelType(typeFlag)
			if err != nil {
				return err
			}

			dataStore, err := app.openStore()
			if err != nil {
				return err
			}
			records, err := dataStore.GetLevels(ctx, symbol, store.LevelFilter{
				MinStrength: minStrength,
				Type:        levelType,
				Limit:       limit,
			})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(records)
			}
			if len(records) == 0 {
				output.Warning("No stored levels for %s with strength >= %d. Run 'btcintel levels scan' first.", symbol, minStrength)
				return nil
			}

			output.Bold("%s levels (strength >= %d)", symbol, minStrength)
			table := NewTable(output, "PRICE", "TYPE", "STRENGTH", "CLASS", "SOURCES", "TIMEFRAMES", "FLAGS", "SCANNED").AlignRight(0, 2)
			for _, rec := range records {
				table.AddRow(
					FormatPrice(rec.Price),
					output.LevelType(rec.Type),
					fmt.Sprintf("%s %2d", StrengthBar(rec.Strength, levels.MaxStrength), rec.Strength),
					string(rec.Classification),
					FormatSources(rec.Sources),
					FormatTimeframes(rec.Timeframes),
					levelFlags(rec.PriceLevel),
					humanize.Time(rec.CreatedAt),
				)
			}
			table.Render()
			return nil
		}),
	}

	cmd.Flags().StringP("symbol", "s", "", "symbol (default from config)")
	cmd.Flags().Int("min-strength", 0, "minimum strength 0-20 (default from config)")
	cmd.Flags().String("type", "", "support or resistance")
	cmd.Flags().IntP("limit", "n", 0, "maximum levels to list")
	return cmd
}

func parseLevelType(s string) (analysis.LevelType, error) {
	switch t := analysis.LevelType(strings.ToLower(strings.TrimSpace(s))); t {
	case "", analysis.LevelSupport, analysis.LevelResistance:
		return t, nil
	}
	return "", apperrors.NewValidationError("type", s, "must be support or resistance")
}

func renderLevels(output *Output, lvls []analysis.PriceLevel, price float64, limit int) {
	if len(lvls) == 0 {
		output.Warning("No levels found")
		return
	}

	table := NewTable(output, "PRICE", "TYPE", "DIST", "STRENGTH", "CLASS", "TOUCHES", "SOURCES", "FLAGS").AlignRight(0, 2, 3, 5)
	for i, lv := range lvls {
		if limit > 0 && i >= limit {
			break
		}
		table.AddRow(
			FormatPrice(lv.Price),
			output.LevelType(lv.Type),
			FormatDistance(lv.Price, price),
			fmt.Sprintf("%s %2d", StrengthBar(lv.Strength, levels.MaxStrength), lv.Strength),
			string(levels.Classify(lv.Strength)),
			fmt.Sprintf("%d", lv.TouchCount),
			FormatSources(lv.Sources),
			levelFlags(lv),
		)
	}
	table.Render()
	if limit > 0 && len(lvls) > limit {
		output.Dim("  … %d more (use --limit)", len(lvls)-limit)
	}
}

func renderZones(output *Output, zones []analysis.Zone, price float64) {
	if len(zones) == 0 {
		output.Dim("No zones")
		return
	}

	output.Bold("Zones")
	table := NewTable(output, "RANGE", "MID", "TYPE", "DIST", "STRENGTH", "TOUCHES", "FIB", "MAJOR").AlignRight(1, 3, 4, 5)
	for _, z := range zones {
		major := ""
		if z.MajorLevel {
			major = output.Yellow("★")
		}
		table.AddRow(
			fmt.Sprintf("%s – %s", FormatPrice(z.PriceLow), FormatPrice(z.PriceHigh)),
			FormatPrice(z.PriceMid),
			output.LevelType(z.Type),
			FormatDistance(z.PriceMid, price),
			fmt.Sprintf("%d", z.Strength),
			fmt.Sprintf("%d", z.TouchCount),
			FormatRatios(z.FibRatios),
			major,
		)
	}
	table.Render()
}

// levelFlags summarises the boolean evidence of a level.
func levelFlags(lv analysis.PriceLevel) string {
	var flags []string
	if lv.FibCoincident {
		flags = append(flags, "fib "+FormatRatio(lv.FibRatio))
	}
	if lv.RoleFlip {
		flags = append(flags, "flip")
	}
	if lv.HighVolume {
		flags = append(flags, "hv")
	}
	if lv.Psychological {
		flags = append(flags, "round")
	}
	return strings.Join(flags, " ")
}

func newFibCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fib",
		Short: "Fibonacci retracements, extensions and confluences",
	}

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Compute Fibonacci structure for every timeframe",
		Example: `  btcintel fib scan
  btcintel fib scan --timeframe 4H`,
		RunE: app.instrument("fib scan", func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			var only models.Timeframe
			if tfFlag, _ := cmd.Flags().GetString("timeframe"); tfFlag != "" {
				tf, err := models.ParseTimeframe(tfFlag)
				if err != nil {
					return fmt.Errorf("%w: %v", apperrors.ErrInvalidTimeframe, err)
				}
				only = tf
			}

			scanner, result, err := app.scan(cmd, scoring.OnChain{})
			if err != nil {
				return err
			}
			if err := scanner.PersistStructure(app.commandContext(cmd), result); err != nil {
				return fmt.Errorf("saving fibonacci: %w", err)
			}

			fibs := result.FibList()
			if only != "" {
				fibs = filterFibs(fibs, only)
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"scan_id":     result.ScanID,
					"price":       result.Price,
					"fibonacci":   fibs,
					"confluences": result.Confluences,
				})
			}

			output.Bold("%s Fibonacci  %s", result.Symbol, FormatPrice(result.Price))
			if len(fibs) == 0 {
				output.Warning("No Fibonacci structure (series too short for a swing pair)")
			}
			for _, fib := range fibs {
				output.Println()
				renderFib(output, fib, result.Price)
			}
			output.Println()
			renderConfluences(output, result.Confluences)
			return nil
		}),
	}
	scanCmd.Flags().StringP("symbol", "s", "", "symbol (default from config)")
	scanCmd.Flags().StringP("timeframe", "t", "", "show only this timeframe")

	cmd.AddCommand(scanCmd)
	return cmd
}

func filterFibs(fibs []analysis.FibonacciAnalysis, tf models.Timeframe) []analysis.FibonacciAnalysis {
	var out []analysis.FibonacciAnalysis
	for _, f := range fibs {
		if f.Timeframe == tf {
			out = append(out, f)
		}
	}
	return out
}

func renderFib(output *Output, fib analysis.FibonacciAnalysis, price float64) {
	output.Printf("%s  %s  swing %s (%s) → %s (%s)\n",
		output.Cyan(string(fib.Timeframe)),
		output.Direction(fib.Direction),
		FormatPrice(fib.SwingLow), FormatDateTime(fib.SwingLowTime),
		FormatPrice(fib.SwingHigh), FormatDateTime(fib.SwingHighTime))

	table := NewTable(output, "RATIO", "LABEL", "PRICE", "DIST", "ZONE", "QUALITY").AlignRight(0, 2, 3)
	for _, r := range fib.Retracements {
		label := r.Label
		if r.IsGoldenPocket() {
			label = output.Yellow(label)
		}
		table.AddRow(
			FormatRatio(r.Ratio),
			label,
			FormatPrice(r.Price),
			FormatDistance(r.Price, price),
			fmt.Sprintf("%s – %s", FormatPrice(r.ZoneLow), FormatPrice(r.ZoneHigh)),
			fmt.Sprintf("%d", r.Quality),
		)
	}
	for _, e := range fib.Extensions {
		table.AddRow(
			FormatRatio(e.Ratio),
			output.DimText(e.Label),
			FormatPrice(e.Price),
			FormatDistance(e.Price, price),
			"",
			"",
		)
	}
	table.Render()
}

func renderConfluences(output *Output, confluences []analysis.Confluence) {
	if len(confluences) == 0 {
		output.Dim("No multi-timeframe confluences")
		return
	}

	output.Bold("Confluences")
	table := NewTable(output, "PRICE", "ZONE", "TIMEFRAMES", "RATIOS", "STRENGTH", "MAJOR").AlignRight(0, 4)
	for _, c := range confluences {
		major := ""
		if c.Major {
			major = output.Yellow("★")
		}
		table.AddRow(
			FormatPrice(c.Price),
			fmt.Sprintf("%s – %s", FormatPrice(c.ZoneLow), FormatPrice(c.ZoneHigh)),
			FormatTimeframes(c.Timeframes),
			FormatRatios(c.Ratios),
			fmt.Sprintf("%d", c.Strength),
			major,
		)
	}
	table.Render()
}

func newPatternsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Detect candlestick patterns on the latest candles",
		Example: `  btcintel patterns
  btcintel patterns --timeframe 4H`,
		RunE: app.instrument("patterns", func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := app.commandContext(cmd)
			symbol := symbolFlag(cmd, app)

			tfs := models.AllTimeframes
			if tfFlag, _ := cmd.Flags().GetString("timeframe"); tfFlag != "" {
				tf, err := models.ParseTimeframe(tfFlag)
				if err != nil {
					return fmt.Errorf("%w: %v", apperrors.ErrInvalidTimeframe, err)
				}
				tfs = []models.Timeframe{tf}
			}

			dataStore, err := app.openStore()
			if err != nil {
				return err
			}

			detector := patterns.NewCandleDetector()
			found := make(map[models.Timeframe][]analysis.CandlePattern)
			for _, tf := range tfs {
				candles, err := dataStore.GetLatestCandles(ctx, symbol, tf, patternBars)
				if err != nil {
					return err
				}
				if len(candles) == 0 {
					continue
				}
				found[tf] = detector.Detect(candles)
			}

			if output.IsJSON() {
				return output.JSON(found)
			}
			if len(found) == 0 {
				output.Warning("No candles stored for %s", symbol)
				return nil
			}

			table := NewTable(output, "TIMEFRAME", "PATTERN", "DIRECTION", "STRENGTH", "CANDLES").AlignRight(3)
			for _, tf := range tfs {
				for _, p := range found[tf] {
					table.AddRow(
						string(tf),
						string(p.ID),
						output.Direction(p.Direction),
						fmt.Sprintf("%d", p.Strength),
						fmt.Sprintf("%d", p.Candles),
					)
				}
			}
			if table.Len() == 0 {
				output.Info("No patterns on the latest candles")
				return nil
			}
			table.Render()
			return nil
		}),
	}

	cmd.Flags().StringP("symbol", "s", "", "symbol (default from config)")
	cmd.Flags().StringP("timeframe", "t", "", "only this timeframe")
	return cmd
}
