package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"btc-intel/internal/config"
	"btc-intel/internal/logging"
	"btc-intel/internal/metrics"
	"btc-intel/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Store   store.DataStore
	Metrics *metrics.Metrics

	metricsFile string
}

// NewApp creates the application state for one process.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}
	if cfg.Metrics.Enabled {
		app.metricsFile = cfg.Metrics.Textfile
	}
	return app
}

// Close releases the store if one was opened.
func (app *App) Close() error {
	if app.Store == nil {
		return nil
	}
	err := app.Store.Close()
	app.Store = nil
	return err
}

// openStore opens the SQLite store on first use.
func (app *App) openStore() (store.DataStore, error) {
	if app.Store != nil {
		return app.Store, nil
	}
	dataStore, err := store.NewSQLiteStore(app.Config.Data.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	app.Store = dataStore
	app.Logger.Debug().Str("path", app.Config.Data.DBPath).Msg("SQLite store initialized")
	return dataStore, nil
}

// commandContext returns the command context carrying the app logger.
func (app *App) commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logging.WithLogger(ctx, app.Logger)
}

// instrument wraps a RunE so every run is timed and recorded in the
// metrics textfile when one is configured.
func (app *App) instrument(name string, run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		err := run(cmd, args)
		app.Metrics.RecordCommand(name, time.Since(start), err)

		if app.metricsFile != "" {
			if werr := app.Metrics.WriteTextfile(app.metricsFile); werr != nil {
				app.Logger.Warn().Err(werr).Str("path", app.metricsFile).Msg("Failed to write metrics")
			}
		}
		return err
	}
}

// Execute builds the root command, runs it with args and closes the store.
func Execute(cfg *config.Config, logger zerolog.Logger, args []string) error {
	app := NewApp(cfg, logger)
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close store")
		}
	}()
	rootCmd := NewRootCmd(app)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "btcintel",
		Short: "BTC price structure and signal engine",
		Long: `btcintel finds support and resistance levels, Fibonacci structure and
candlestick patterns in stored BTC candles, scores trade signals with
structural TP/SL placement and backtests the stored signals.

Import candles with 'btcintel data import', then run 'btcintel signal scan'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			if path, _ := cmd.Flags().GetString("metrics-file"); path != "" {
				app.metricsFile = path
			}
			if !app.Config.UI.ColorEnabled {
				return cmd.Flags().Set("no-color", "true")
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/btc-intel)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().String("metrics-file", "", "write Prometheus metrics to this textfile")

	addCoreCommands(rootCmd, app)
	addDataCommands(rootCmd, app)
	addStructureCommands(rootCmd, app)
	addSignalCommands(rootCmd, app)
	addBacktestCommands(rootCmd, app)

	return rootCmd
}

// ConfigDirFromArgs returns the --config value from raw arguments, so the
// config can be loaded before the command tree is built.
func ConfigDirFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if v, ok := strings.CutPrefix(arg, "--config="); ok {
			return v
		}
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
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
			output.Printf("btcintel v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the application configuration.",
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
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dir, _ := cmd.Flags().GetString("config")
			path := config.ConfigPath(dir)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Data")
	output.Printf("  Database:        %s\n", cfg.Data.DBPath)
	output.Printf("  Symbol:          %s\n", cfg.Data.Symbol)
	output.Printf("  Base Timeframe:  %s\n", cfg.Data.BaseTimeframe)
	output.Printf("  Bars:            %d\n", cfg.Data.Bars)
	output.Println()

	output.Bold("Levels")
	output.Printf("  Merge Tol:       %.2f%%\n", cfg.Levels.MergeTolerancePct)
	output.Printf("  Fib Tol:         %.2f%%\n", cfg.Levels.FibTolerancePct)
	output.Printf("  Zone Tol:        %.2f%%\n", cfg.Levels.ZoneTolerancePct)
	output.Printf("  Confluence Tol:  %.2f%%\n", cfg.Levels.ConfluenceTolerancePct)
	output.Printf("  Min Strength:    %d\n", cfg.Levels.MinStrength)
	output.Println()

	output.Bold("Backtest")
	output.Printf("  Bar Timeframe:   %s\n", cfg.Backtest.BarTimeframe)
	output.Printf("  Limit:           %d\n", cfg.Backtest.Limit)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Logging.Level)
	output.Printf("  Format:          %s\n", cfg.Logging.Format)
	output.Printf("  File:            %v\n", cfg.Logging.File)
	if cfg.Logging.File {
		output.Printf("  File Path:       %s\n", cfg.Logging.FilePath)
	}
	output.Println()

	output.Bold("Metrics")
	output.Printf("  Enabled:         %v\n", cfg.Metrics.Enabled)
	output.Printf("  Textfile:        %s\n", cfg.Metrics.Textfile)
}

// Main runs the CLI with args and returns the process exit status.
func Main(args []string) int {
	cfg, err := config.Load(ConfigDirFromArgs(args))
	if err != nil {
		fmt.Fprintf(os.Stderr, "btcintel: %v\n", err)
		return 2
	}

	logger := logging.NewLoggerWithConfig(cfg.Logging.LogConfig())
	if err := Execute(cfg, logger, args); err != nil {
		logger.Error().Err(err).Msg("Command failed")
		return 1
	}
	return 0
}
