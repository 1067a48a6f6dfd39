package trading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btc-intel/internal/analysis"
	"btc-intel/internal/models"
)

func TestCalculate_ATRFallbackOnly(t *testing.T) {
	res := NewTPSLCalculator().Calculate(TPSLInput{
		Entry:     100000,
		Direction: models.Long,
		Timeframe: models.TF1D,
		ATR:       1000,
	})

	require.True(t, res.Valid, res.Reason)
	assert.Equal(t, 2000.0, res.Buffer)
	assert.Equal(t, 98500.0, res.SL)
	assert.Equal(t, 1.5, res.SLPct)
	assert.Equal(t, 102250.0, res.TP1)
	assert.Equal(t, 1.5, res.RRTP1)
	assert.Equal(t, 104500.0, res.TP2)
	assert.Equal(t, 3.0, res.RRTP2)
	assert.Equal(t, MethodATRFallback, res.SLMethod)
	assert.Equal(t, MethodATRFallback, res.TP1Method)
	assert.Equal(t, MethodATRFallback, res.TP2Method)
}

func TestCalculate_ShortMirrors(t *testing.T) {
	res := NewTPSLCalculator().Calculate(TPSLInput{
		Entry:     100000,
		Direction: models.Short,
		Timeframe: models.TF1D,
		ATR:       1000,
	})

	require.True(t, res.Valid, res.Reason)
	assert.Equal(t, 101500.0, res.SL)
	assert.Equal(t, 97750.0, res.TP1)
	assert.Equal(t, 95500.0, res.TP2)
	assert.Equal(t, 2.25, res.TP1Pct)
	assert.Equal(t, 4.5, res.TP2Pct)
}

func TestCalculate_StructuralStop(t *testing.T) {
	res := NewTPSLCalculator().Calculate(TPSLInput{
		Entry:     100000,
		Direction: models.Long,
		Timeframe: models.TF1D,
		ATR:       1000,
		Bands:     Bands{Lower: 99800},
		Levels: []analysis.PriceLevel{
			{Price: 99500, Type: analysis.LevelSupport, Strength: 12},
			{Price: 102500, Type: analysis.LevelResistance, Strength: 9},
		},
		Swings: []analysis.SwingPoint{{Price: 99900, Kind: analysis.SwingLow}},
	})

	require.True(t, res.Valid, res.Reason)
	// Band 99800 less half the 2000 buffer beats the other candidates.
	assert.Equal(t, 98800.0, res.SL)
	assert.Equal(t, MethodBBLower, res.SLMethod)
	assert.Equal(t, 101800.0, res.TP1)
	assert.Equal(t, MethodATRFallback, res.TP1Method)
	// 102500 is the nearest TP2 but only 2.08R, so the minimum R:R takes over.
	assert.Equal(t, 103600.0, res.TP2)
	assert.Equal(t, MethodMinRRFallback, res.TP2Method)
	assert.Equal(t, 3.0, res.RRTP2)
}

func TestCalculate_LevelsAtMinimumRR(t *testing.T) {
	res := NewTPSLCalculator().Calculate(TPSLInput{
		Entry:     100000,
		Direction: models.Long,
		Timeframe: models.TF1D,
		ATR:       1000,
		Levels: []analysis.PriceLevel{
			{Price: 102250, Type: analysis.LevelResistance, Strength: 8},
			{Price: 104500, Type: analysis.LevelResistance, Strength: 11},
		},
	})

	require.True(t, res.Valid, res.Reason)
	assert.Equal(t, 102250.0, res.TP1)
	assert.Equal(t, MethodStrongResistance, res.TP1Method)
	assert.Equal(t, 104500.0, res.TP2)
	assert.Equal(t, MethodNextResistance, res.TP2Method)
}

func TestCalculate_FibDeepRetracementStop(t *testing.T) {
	fib := &analysis.FibonacciAnalysis{
		Direction: models.Long,
		Retracements: []analysis.RetracementLevel{
			{Ratio: analysis.RatioDeep, Price: 99900},
		},
	}
	res := NewTPSLCalculator().Calculate(TPSLInput{
		Entry:     100000,
		Direction: models.Long,
		Timeframe: models.TF1H,
		ATR:       400,
		Fib:       fib,
	})

	require.True(t, res.Valid, res.Reason)
	// Buffer 400: 0.786 at 99900 gives 99500, fallback gives 99400.
	assert.Equal(t, 99500.0, res.SL)
	assert.Equal(t, MethodFib0786, res.SLMethod)
	assert.Equal(t, 0.5, res.SLPct)
}

func TestCalculate_Invalid(t *testing.T) {
	calc := NewTPSLCalculator()

	tests := []struct {
		name   string
		in     TPSLInput
		reason string
	}{
		{
			name:   "zero ATR",
			in:     TPSLInput{Entry: 100000, Direction: models.Long, Timeframe: models.TF1D},
			reason: ReasonATRNotPositive,
		},
		{
			name:   "negative ATR",
			in:     TPSLInput{Entry: 100000, Direction: models.Short, Timeframe: models.TF4H, ATR: -5},
			reason: ReasonATRNotPositive,
		},
		{
			name:   "stop wider than hourly cap",
			in:     TPSLInput{Entry: 100000, Direction: models.Long, Timeframe: models.TF1H, ATR: 2000},
			reason: ReasonSLTooWide,
		},
		{
			name:   "neutral direction",
			in:     TPSLInput{Entry: 100000, Direction: models.Neutral, Timeframe: models.TF1D, ATR: 1000},
			reason: ReasonNoDirection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := calc.Calculate(tt.in)
			assert.False(t, res.Valid)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Zero(t, res.SL)
		})
	}
}

func TestCalculate_StructureRescuesTightCap(t *testing.T) {
	res := NewTPSLCalculator().Calculate(TPSLInput{
		Entry:     100000,
		Direction: models.Long,
		Timeframe: models.TF1H,
		ATR:       2000,
		Bands:     Bands{Lower: 99900},
	})

	require.True(t, res.Valid, res.Reason)
	assert.Equal(t, 98900.0, res.SL)
	assert.Equal(t, MethodBBLower, res.SLMethod)
	assert.LessOrEqual(t, res.SLPct, Limits(models.TF1H).MaxSLPct)
}

func TestLimits(t *testing.T) {
	assert.Equal(t, RiskLimits{BufferMultiplier: 2.0, MaxSLPct: 7, MinRRTP1: 1.5, MinRRTP2: 3.0}, Limits(models.TF1D))
	assert.Equal(t, RiskLimits{BufferMultiplier: 1.0, MaxSLPct: 2, MinRRTP1: 1.2, MinRRTP2: 2.0}, Limits(models.TF1H))
	assert.Equal(t, defaultRisk, Limits(models.Timeframe("15m")))
}
