package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	apperrors "btc-intel/internal/errors"
	"btc-intel/internal/models"
	"btc-intel/pkg/utils"
)

// csvCandle is one row of an OHLCV export.
type csvCandle struct {
	Timestamp string  `csv:"timestamp"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    float64 `csv:"volume"`
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ReadCandlesCSV parses an OHLCV CSV with a header row and returns the
// candles sorted by time. Rows with a repeated timestamp keep the last one.
func ReadCandlesCSV(r io.Reader) ([]models.Candle, error) {
	var rows []*csvCandle
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("%w: parsing csv: %v", apperrors.ErrInvalidInput, err)
	}

	byTime := make(map[time.Time]models.Candle, len(rows))
	for i, row := range rows {
		line := i + 2
		ts, err := parseCSVTimestamp(row.Timestamp)
		if err != nil {
			return nil, apperrors.NewValidationError(fmt.Sprintf("line %d timestamp", line), row.Timestamp, err.Error())
		}
		c := models.Candle{
			Timestamp: ts,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
		}
		if err := checkCandle(c); err != nil {
			return nil, apperrors.NewValidationError(fmt.Sprintf("line %d", line), row.Timestamp, err.Error())
		}
		byTime[ts] = c
	}

	candles := make([]models.Candle, 0, len(byTime))
	for _, c := range byTime {
		candles = append(candles, c)
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Timestamp.Before(candles[j].Timestamp) })
	return candles, nil
}

// parseCSVTimestamp accepts the common layouts plus unix seconds or milliseconds.
func parseCSVTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp format")
}

func checkCandle(c models.Candle) error {
	switch {
	case c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0:
		return fmt.Errorf("prices must be positive")
	case c.High < c.Low:
		return fmt.Errorf("high below low")
	case c.High < max(c.Open, c.Close) || c.Low > min(c.Open, c.Close):
		return fmt.Errorf("open/close outside the high-low range")
	case c.Volume < 0:
		return fmt.Errorf("negative volume")
	}
	return nil
}

func addDataCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Candle data management",
		Long:  "Import OHLCV candles into the local store and inspect what is stored.",
	}
	cmd.AddCommand(newDataImportCmd(app))
	cmd.AddCommand(newDataInfoCmd(app))
	rootCmd.AddCommand(cmd)
}

func newDataImportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import candles from a CSV file",
		Long: `Import OHLCV candles from a CSV file with the header
timestamp,open,high,low,close,volume.

Timestamps may be RFC3339, "YYYY-MM-DD[ HH:MM[:SS]]" or unix seconds/milliseconds.
Existing candles with the same timestamp are replaced.`,
		Example: `  btcintel data import btc_1d.csv --timeframe 1D
  btcintel data import btc_1h.csv --timeframe 1H --symbol BTCUSDT`,
		Args: cobra.ExactArgs(1),
		RunE: app.instrument("data import", func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := app.commandContext(cmd)

			tfFlag, _ := cmd.Flags().GetString("timeframe")
			tf, err := models.ParseTimeframe(tfFlag)
			if err != nil {
				return fmt.Errorf("%w: %v", apperrors.ErrInvalidTimeframe, err)
			}
			symbol := symbolFlag(cmd, app)

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()

			candles, err := ReadCandlesCSV(f)
			if err != nil {
				return err
			}
			if len(candles) == 0 {
				return apperrors.NewDataError("csv", symbol, args[0]+" has no rows", apperrors.ErrInsufficientData)
			}

			dataStore, err := app.openStore()
			if err != nil {
				return err
			}
			if err := dataStore.SaveCandles(ctx, symbol, tf, candles); err != nil {
				return fmt.Errorf("saving candles: %w", err)
			}
			app.Metrics.RecordImport(string(tf), len(candles))
			app.Logger.Info().
				Str("symbol", symbol).
				Str("timeframe", string(tf)).
				Int("candles", len(candles)).
				Msg("Candles imported")

			first, last := candles[0].Timestamp, candles[len(candles)-1].Timestamp
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbol":    symbol,
					"timeframe": tf,
					"imported":  len(candles),
					"first":     first,
					"last":      last,
				})
			}
			output.Success("✓ Imported %s %s candles for %s", humanize.Comma(int64(len(candles))), tf, symbol)
			output.Dim("  %s → %s", FormatDateTime(first), FormatDateTime(last))
			return nil
		}),
	}

	cmd.Flags().StringP("timeframe", "t", "", "timeframe of the file: 1H, 4H, 1D or 1W")
	cmd.Flags().StringP("symbol", "s", "", "symbol to store under (default from config)")
	_ = cmd.MarkFlagRequired("timeframe")
	return cmd
}

func newDataInfoCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show stored candle series",
		RunE: app.instrument("data info", func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := app.commandContext(cmd)
			symbol := symbolFlag(cmd, app)

			dataStore, err := app.openStore()
			if err != nil {
				return err
			}
			infos, err := dataStore.GetSeriesInfo(ctx, symbol)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(infos)
			}
			if len(infos) == 0 {
				output.Warning("No candles stored for %s. Run 'btcintel data import' first.", symbol)
				return nil
			}

			output.Bold("Stored series for %s", symbol)
			table := NewTable(output, "TIMEFRAME", "CANDLES", "FIRST", "LAST", "UPDATED").AlignRight(1)
			for _, info := range infos {
				table.AddRow(
					string(info.Timeframe),
					humanize.Comma(int64(info.Count)),
					FormatDateTime(info.First),
					FormatDateTime(info.Last),
					utils.FormatAge(info.Last),
				)
			}
			table.Render()
			return nil
		}),
	}

	cmd.Flags().StringP("symbol", "s", "", "symbol (default from config)")
	return cmd
}

// symbolFlag returns --symbol upper-cased, or the configured symbol.
func symbolFlag(cmd *cobra.Command, app *App) string {
	if s, _ := cmd.Flags().GetString("symbol"); s != "" {
		return strings.ToUpper(s)
	}
	return app.Config.Data.Symbol
}
