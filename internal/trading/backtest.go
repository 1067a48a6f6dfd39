package trading

import (
	"context"
	"fmt"
	"math"
	"time"

	"btc-intel/internal/logging"
	"btc-intel/internal/models"
	"btc-intel/internal/store"
	"btc-intel/pkg/utils"
)

// DefaultEvalLimit caps how many pending signals one run evaluates.
const DefaultEvalLimit = 200

// BacktestConfig represents a signal evaluation run.
type BacktestConfig struct {
	Symbol string
	// BarTimeframe is the series replayed against stored signals.
	BarTimeframe models.Timeframe
	Limit        int
	Now          time.Time
}

// SignalEvaluation pairs a stored signal with its new outcome.
type SignalEvaluation struct {
	SignalID  string           `json:"signal_id"`
	Timeframe models.Timeframe `json:"timeframe"`
	Direction models.Direction `json:"direction"`
	CreatedAt time.Time        `json:"created_at"`
	Evaluation
}

// BacktestResult represents one evaluation run.
type BacktestResult struct {
	Evaluated []SignalEvaluation `json:"evaluated"`
	NotDue    int                `json:"not_due"`
	NoData    int                `json:"no_data"`
	Report    *BacktestReport    `json:"report"`
}

// TimeframeStats aggregates outcomes for one timeframe.
type TimeframeStats struct {
	Total   int     `json:"total"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	Pending int     `json:"pending"`
	WinRate float64 `json:"win_rate"`
}

// BacktestReport aggregates every evaluated signal.
type BacktestReport struct {
	TotalSignals int                                  `json:"total_signals"`
	Wins         int                                  `json:"wins"`
	Losses       int                                  `json:"losses"`
	Pending      int                                  `json:"pending"`
	WinRate      float64                              `json:"win_rate"`
	ByOutcome    map[store.Outcome]int                `json:"by_outcome"`
	ByTimeframe  map[models.Timeframe]*TimeframeStats `json:"by_timeframe"`
	AvgWinR      float64                              `json:"avg_win_r"`
	AvgLossR     float64                              `json:"avg_loss_r"`
	ProfitFactor float64                              `json:"profit_factor"`
	ExpectancyR  float64                              `json:"expectancy_r"`
}

// BacktestEngine evaluates stored signals against the bars that followed them.
type BacktestEngine struct {
	store     store.DataStore
	evaluator SignalEvaluator
}

// NewBacktestEngine creates a new backtest engine.
func NewBacktestEngine(dataStore store.DataStore) *BacktestEngine {
	return &BacktestEngine{
		store:     dataStore,
		evaluator: NewEvaluator(),
	}
}

// Run evaluates pending signals whose window has elapsed and persists the outcomes.
func (be *BacktestEngine) Run(ctx context.Context, config BacktestConfig) (*BacktestResult, error) {
	if err := be.validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.WithOperation(logging.FromContext(ctx), "backtest")

	unevaluated := false
	pending, err := be.store.GetSignals(ctx, store.SignalFilter{
		Symbol:    config.Symbol,
		Evaluated: &unevaluated,
		Limit:     config.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching pending signals: %w", err)
	}

	result := &BacktestResult{Evaluated: make([]SignalEvaluation, 0, len(pending))}

	for _, sig := range pending {
		if !be.evaluator.Due(sig.CreatedAt, sig.Timeframe, config.Now) {
			result.NotDue++
			continue
		}

		to := sig.CreatedAt.Add(EvalWindow(sig.Timeframe) + 24*time.Hour)
		if to.After(config.Now) {
			to = config.Now
		}
		bars, err := be.store.GetCandles(ctx, config.Symbol, config.BarTimeframe, sig.CreatedAt, to)
		if err != nil {
			return nil, fmt.Errorf("fetching candles for signal %s: %w", sig.ID, err)
		}
		if len(bars) == 0 {
			result.NoData++
			logger.Debug().Str("signal_id", sig.ID).Msg("No bars after signal")
			continue
		}

		eval := be.evaluator.Evaluate(sig, bars)
		if err := be.store.UpdateSignalOutcome(ctx, sig.ID, eval.Outcome, eval.HitAt, config.Now); err != nil {
			return nil, fmt.Errorf("saving outcome for signal %s: %w", sig.ID, err)
		}
		logging.LogEvaluation(logger, sig.ID, string(sig.Timeframe), string(eval.Outcome))

		result.Evaluated = append(result.Evaluated, SignalEvaluation{
			SignalID:   sig.ID,
			Timeframe:  sig.Timeframe,
			Direction:  sig.Direction,
			CreatedAt:  sig.CreatedAt,
			Evaluation: eval,
		})
	}

	report, err := be.Report(ctx, config.Symbol)
	if err != nil {
		return nil, err
	}
	result.Report = report

	logger.Info().
		Int("evaluated", len(result.Evaluated)).
		Int("not_due", result.NotDue).
		Int("no_data", result.NoData).
		Float64("win_rate", report.WinRate).
		Msg("Backtest run completed")

	return result, nil
}

// Report aggregates every evaluated signal of symbol.
func (be *BacktestEngine) Report(ctx context.Context, symbol string) (*BacktestReport, error) {
	evaluated := true
	signals, err := be.store.GetSignals(ctx, store.SignalFilter{Symbol: symbol, Evaluated: &evaluated})
	if err != nil {
		return nil, fmt.Errorf("fetching evaluated signals: %w", err)
	}
	return BuildReport(signals), nil
}

// BuildReport computes hit rates and R-multiple statistics. R-multiples only
// exist for signals with a stop: TP1 and TP2 hits earn their R:R, a stop hit
// loses 1R.
func BuildReport(signals []store.SignalRecord) *BacktestReport {
	report := &BacktestReport{
		ByOutcome:   make(map[store.Outcome]int),
		ByTimeframe: make(map[models.Timeframe]*TimeframeStats),
	}

	var wins, losses []float64
	for _, sig := range signals {
		report.TotalSignals++
		report.ByOutcome[sig.Outcome]++

		tfStats, ok := report.ByTimeframe[sig.Timeframe]
		if !ok {
			tfStats = &TimeframeStats{}
			report.ByTimeframe[sig.Timeframe] = tfStats
		}
		tfStats.Total++

		switch {
		case sig.Outcome.IsWin():
			report.Wins++
			tfStats.Wins++
		case sig.Outcome.IsLoss():
			report.Losses++
			tfStats.Losses++
		default:
			report.Pending++
			tfStats.Pending++
		}

		switch sig.Outcome {
		case store.OutcomeTP1Hit:
			wins = append(wins, sig.RRTP1)
		case store.OutcomeTP2Hit:
			wins = append(wins, sig.RRTP2)
		case store.OutcomeSLHit:
			losses = append(losses, -1)
		}
	}

	report.WinRate = winRate(report.Wins, report.Losses)
	for _, tfStats := range report.ByTimeframe {
		tfStats.WinRate = winRate(tfStats.Wins, tfStats.Losses)
	}

	var totalWin, totalLoss float64
	for _, w := range wins {
		totalWin += w
	}
	for _, l := range losses {
		totalLoss += l
	}
	if len(wins) > 0 {
		report.AvgWinR = utils.Round2(totalWin / float64(len(wins)))
	}
	if len(losses) > 0 {
		report.AvgLossR = utils.Round2(totalLoss / float64(len(losses)))
		report.ProfitFactor = utils.Round2(totalWin / math.Abs(totalLoss))
	}
	if n := len(wins) + len(losses); n > 0 {
		report.ExpectancyR = utils.Round2((totalWin + totalLoss) / float64(n))
	}

	return report
}

func winRate(wins, losses int) float64 {
	if wins+losses == 0 {
		return 0
	}
	return utils.Round2(float64(wins) / float64(wins+losses) * 100)
}

func (be *BacktestEngine) validateConfig(config *BacktestConfig) error {
	if config.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if config.BarTimeframe == "" {
		config.BarTimeframe = models.TF1H
	}
	if _, err := models.ParseTimeframe(string(config.BarTimeframe)); err != nil {
		return err
	}
	if config.Limit <= 0 {
		config.Limit = DefaultEvalLimit
	}
	if config.Now.IsZero() {
		config.Now = time.Now().UTC()
	}
	return nil
}
