package trading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"btc-intel/internal/models"
	"btc-intel/internal/store"
)

var evalStart = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

// hlBars builds hourly bars from parallel high and low series.
func hlBars(highs, lows []float64) []models.Candle {
	bars := make([]models.Candle, len(highs))
	for i := range highs {
		mid := (highs[i] + lows[i]) / 2
		bars[i] = models.Candle{
			Timestamp: evalStart.Add(time.Duration(i+1) * time.Hour),
			Open:      mid,
			High:      highs[i],
			Low:       lows[i],
			Close:     mid,
		}
	}
	return bars
}

func TestEvaluateTPSL_TP2AfterTP1(t *testing.T) {
	bars := hlBars([]float64{105, 112, 108, 125}, []float64{100, 108, 104, 115})

	got := NewEvaluator().EvaluateTPSL(models.Long, 95, 110, 120, bars)

	assert.Equal(t, store.OutcomeTP2Hit, got.Outcome)
	assert.Equal(t, bars[3].Timestamp, got.HitAt)
}

func TestEvaluateTPSL(t *testing.T) {
	e := NewEvaluator()

	tests := []struct {
		name    string
		dir     models.Direction
		sl      float64
		tp1     float64
		tp2     float64
		highs   []float64
		lows    []float64
		outcome store.Outcome
		hitBar  int // -1 when no bar decided it
	}{
		{
			name: "long stop first", dir: models.Long, sl: 95, tp1: 110, tp2: 120,
			highs: []float64{104, 101}, lows: []float64{98, 94},
			outcome: store.OutcomeSLHit, hitBar: 1,
		},
		{
			name: "long stop beats target on the same bar", dir: models.Long, sl: 95, tp1: 110, tp2: 120,
			highs: []float64{111}, lows: []float64{94},
			outcome: store.OutcomeSLHit, hitBar: 0,
		},
		{
			name: "long tp1 then stop", dir: models.Long, sl: 95, tp1: 110, tp2: 120,
			highs: []float64{111, 100}, lows: []float64{101, 94},
			outcome: store.OutcomeSLHit, hitBar: 1,
		},
		{
			name: "long tp2 needs an earlier tp1 bar", dir: models.Long, sl: 95, tp1: 110, tp2: 120,
			highs: []float64{121}, lows: []float64{101},
			outcome: store.OutcomeTP1Hit, hitBar: -1,
		},
		{
			name: "long tp1 only", dir: models.Long, sl: 95, tp1: 110, tp2: 120,
			highs: []float64{106, 112, 109}, lows: []float64{101, 104, 103},
			outcome: store.OutcomeTP1Hit, hitBar: -1,
		},
		{
			name: "long without tp2", dir: models.Long, sl: 95, tp1: 110,
			highs: []float64{112, 140}, lows: []float64{101, 120},
			outcome: store.OutcomeTP1Hit, hitBar: -1,
		},
		{
			name: "long pending", dir: models.Long, sl: 95, tp1: 110, tp2: 120,
			highs: []float64{104, 106}, lows: []float64{99, 97},
			outcome: store.OutcomePending, hitBar: -1,
		},
		{
			name: "short tp2", dir: models.Short, sl: 105, tp1: 90, tp2: 80,
			highs: []float64{101, 92, 85}, lows: []float64{95, 89, 79},
			outcome: store.OutcomeTP2Hit, hitBar: 2,
		},
		{
			name: "short stop", dir: models.Short, sl: 105, tp1: 90, tp2: 80,
			highs: []float64{103, 106}, lows: []float64{97, 99},
			outcome: store.OutcomeSLHit, hitBar: 1,
		},
		{
			name: "no bars", dir: models.Short, sl: 105, tp1: 90, tp2: 80,
			outcome: store.OutcomePending, hitBar: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars := hlBars(tt.highs, tt.lows)
			got := e.EvaluateTPSL(tt.dir, tt.sl, tt.tp1, tt.tp2, bars)
			assert.Equal(t, tt.outcome, got.Outcome)
			if tt.hitBar < 0 {
				assert.True(t, got.HitAt.IsZero())
			} else {
				assert.Equal(t, bars[tt.hitBar].Timestamp, got.HitAt)
			}
		})
	}
}

func TestEvaluateDirection(t *testing.T) {
	e := NewEvaluator()
	closing := func(price float64) []models.Candle {
		return []models.Candle{{Timestamp: evalStart, Close: 100}, {Timestamp: evalStart.Add(time.Hour), Close: price}}
	}

	tests := []struct {
		name    string
		dir     models.Direction
		close   float64
		outcome store.Outcome
	}{
		{"long up", models.Long, 101, store.OutcomeCorrect},
		{"long flat", models.Long, 100, store.OutcomeIncorrect},
		{"short down", models.Short, 99, store.OutcomeCorrect},
		{"short up", models.Short, 102, store.OutcomeIncorrect},
		{"neutral inside band", models.Neutral, 100.5, store.OutcomeCorrect},
		{"neutral outside band", models.Neutral, 98.5, store.OutcomeIncorrect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.EvaluateDirection(tt.dir, 100, closing(tt.close))
			assert.Equal(t, tt.outcome, got.Outcome)
			assert.True(t, got.HitAt.IsZero())
		})
	}

	assert.Equal(t, store.OutcomePending, e.EvaluateDirection(models.Long, 100, nil).Outcome)
}

func TestEvaluate_ChoosesMode(t *testing.T) {
	e := NewEvaluator()
	bars := hlBars([]float64{105, 112, 108, 125}, []float64{100, 108, 104, 115})

	withTPSL := store.SignalRecord{Direction: models.Long, Price: 100, SL: 95, TP1: 110, TP2: 120}
	assert.Equal(t, store.OutcomeTP2Hit, e.Evaluate(withTPSL, bars).Outcome)

	plain := store.SignalRecord{Direction: models.Short, Price: 100}
	// Last close is 120, well above entry.
	assert.Equal(t, store.OutcomeIncorrect, e.Evaluate(plain, bars).Outcome)
}

func TestDueAndWindows(t *testing.T) {
	e := NewEvaluator()
	created := evalStart

	assert.Equal(t, time.Hour, EvalWindow(models.TF1H))
	assert.Equal(t, 4*time.Hour, EvalWindow(models.TF4H))
	assert.Equal(t, 24*time.Hour, EvalWindow(models.TF1D))
	assert.Equal(t, 168*time.Hour, EvalWindow(models.TF1W))
	assert.Equal(t, 24*time.Hour, EvalWindow(models.Timeframe("2H")))

	assert.False(t, e.Due(created, models.TF4H, created.Add(3*time.Hour)))
	assert.True(t, e.Due(created, models.TF4H, created.Add(4*time.Hour)))
	assert.False(t, e.Due(created, models.TF1W, created.Add(100*time.Hour)))
}
