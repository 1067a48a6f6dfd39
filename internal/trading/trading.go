// Package trading provides stop-loss and take-profit placement, signal
// evaluation, and backtesting of stored signals.
package trading

import (
	"context"
	"time"

	"btc-intel/internal/models"
	"btc-intel/internal/store"
)

// Planner places a stop and two targets around an entry.
type Planner interface {
	Calculate(in TPSLInput) TPSLResult
}

// SignalEvaluator decides the outcome of a stored signal.
type SignalEvaluator interface {
	Due(created time.Time, tf models.Timeframe, now time.Time) bool
	Evaluate(sig store.SignalRecord, bars []models.Candle) Evaluation
}

// Backtester evaluates pending signals and reports on evaluated ones.
type Backtester interface {
	Run(ctx context.Context, config BacktestConfig) (*BacktestResult, error)
	Report(ctx context.Context, symbol string) (*BacktestReport, error)
}

var (
	_ Planner         = (*TPSLCalculator)(nil)
	_ SignalEvaluator = (*Evaluator)(nil)
	_ Backtester      = (*BacktestEngine)(nil)
)
