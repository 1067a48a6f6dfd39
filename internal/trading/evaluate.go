package trading

import (
	"math"
	"time"

	"btc-intel/internal/models"
	"btc-intel/internal/store"
)

// neutralBandPct is the move below which a NEUTRAL call counts as correct.
const neutralBandPct = 1.0

var evalWindows = map[models.Timeframe]time.Duration{
	models.TF1H: time.Hour,
	models.TF4H: 4 * time.Hour,
	models.TF1D: 24 * time.Hour,
	models.TF1W: 168 * time.Hour,
}

// EvalWindow returns how long a signal on tf must age before it is evaluated.
func EvalWindow(tf models.Timeframe) time.Duration {
	if d, ok := evalWindows[tf]; ok {
		return d
	}
	return 24 * time.Hour
}

// Evaluation is the outcome of one signal and the bar that decided it.
type Evaluation struct {
	Outcome store.Outcome `json:"outcome"`
	HitAt   time.Time     `json:"hit_at,omitempty"`
}

// Evaluator replays stored signals against later bars.
type Evaluator struct{}

// NewEvaluator creates a new signal evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

func (e *Evaluator) Name() string {
	return "Evaluator"
}

// Due reports whether a signal created at created on tf can be evaluated at now.
func (e *Evaluator) Due(created time.Time, tf models.Timeframe, now time.Time) bool {
	return !now.Before(created.Add(EvalWindow(tf)))
}

// Evaluate scores sig against bars that follow it. Signals carrying a stop and
// first target are replayed bar by bar; the rest compare the last close with
// the entry price.
func (e *Evaluator) Evaluate(sig store.SignalRecord, bars []models.Candle) Evaluation {
	if sig.HasTPSL() && sig.Direction != models.Neutral {
		return e.EvaluateTPSL(sig.Direction, sig.SL, sig.TP1, sig.TP2, bars)
	}
	return e.EvaluateDirection(sig.Direction, sig.Price, bars)
}

// EvaluateTPSL walks bars in order. The stop is checked first on every bar, TP2
// only counts once TP1 has been touched, and tp2 of zero disables TP2.
func (e *Evaluator) EvaluateTPSL(dir models.Direction, sl, tp1, tp2 float64, bars []models.Candle) Evaluation {
	tp1Hit := false

	for _, bar := range bars {
		if dir == models.Long {
			if bar.Low <= sl {
				return Evaluation{Outcome: store.OutcomeSLHit, HitAt: bar.Timestamp}
			}
			if tp2 != 0 && tp1Hit && bar.High >= tp2 {
				return Evaluation{Outcome: store.OutcomeTP2Hit, HitAt: bar.Timestamp}
			}
			if bar.High >= tp1 {
				tp1Hit = true
			}
			continue
		}

		if bar.High >= sl {
			return Evaluation{Outcome: store.OutcomeSLHit, HitAt: bar.Timestamp}
		}
		if tp2 != 0 && tp1Hit && bar.Low <= tp2 {
			return Evaluation{Outcome: store.OutcomeTP2Hit, HitAt: bar.Timestamp}
		}
		if bar.Low <= tp1 {
			tp1Hit = true
		}
	}

	if tp1Hit {
		return Evaluation{Outcome: store.OutcomeTP1Hit}
	}
	return Evaluation{Outcome: store.OutcomePending}
}

// EvaluateDirection compares the final close with entry.
func (e *Evaluator) EvaluateDirection(dir models.Direction, entry float64, bars []models.Candle) Evaluation {
	if len(bars) == 0 || entry == 0 {
		return Evaluation{Outcome: store.OutcomePending}
	}

	change := (bars[len(bars)-1].Close - entry) / entry * 100

	var correct bool
	switch dir {
	case models.Long:
		correct = change > 0
	case models.Short:
		correct = change < 0
	default:
		correct = math.Abs(change) < neutralBandPct
	}

	if correct {
		return Evaluation{Outcome: store.OutcomeCorrect}
	}
	return Evaluation{Outcome: store.OutcomeIncorrect}
}
