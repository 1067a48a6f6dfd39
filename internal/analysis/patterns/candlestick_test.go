package patterns

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btc-intel/internal/analysis"
	"btc-intel/internal/models"
)

var day0 = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

// ohlc is open, high, low, close.
type ohlc [4]float64

// filler is a zero-body bar that triggers no colour-based pattern.
var filler = ohlc{100, 101, 99, 100}

func series(bars ...ohlc) []models.Candle {
	out := make([]models.Candle, len(bars))
	for i, b := range bars {
		out[i] = models.Candle{
			Timestamp: day0.Add(time.Duration(i) * 24 * time.Hour),
			Open:      b[0],
			High:      b[1],
			Low:       b[2],
			Close:     b[3],
			Volume:    1,
		}
	}
	return out
}

func ids(patterns []analysis.CandlePattern) []analysis.PatternID {
	out := make([]analysis.PatternID, len(patterns))
	for i, p := range patterns {
		out[i] = p.ID
	}
	return out
}

func TestCandleDetector(t *testing.T) {
	tests := []struct {
		name string
		bars []ohlc
		want []analysis.PatternID
	}{
		{
			name: "hammer is also a bullish pin bar",
			bars: []ohlc{filler, filler, filler, filler, {100, 101.2, 97, 101}},
			want: []analysis.PatternID{analysis.Hammer, analysis.BullishPinBar},
		},
		{
			name: "shooting star after a decline is an inverted hammer",
			bars: []ohlc{{110, 111, 109, 110}, filler, filler, filler, {99, 101, 97.8, 98}},
			want: []analysis.PatternID{analysis.ShootingStar, analysis.BearishPinBar, analysis.InvertedHammer},
		},
		{
			name: "doji",
			bars: []ohlc{filler, filler, filler, filler, {100, 101, 99, 100.05}},
			want: []analysis.PatternID{analysis.Doji},
		},
		{
			name: "zero body uses the epsilon floor",
			bars: []ohlc{filler, filler, filler, filler, {100, 100, 99, 100}},
			want: []analysis.PatternID{analysis.Hammer, analysis.Doji, analysis.BullishPinBar},
		},
		{
			name: "bullish engulfing",
			bars: []ohlc{filler, filler, filler, {101, 101.1, 99.9, 100}, {99.5, 102.2, 99.4, 102}},
			want: []analysis.PatternID{analysis.BullishEngulfing},
		},
		{
			name: "morning star",
			bars: []ohlc{filler, filler, {110, 110.2, 99.9, 100}, {99, 99.2, 97.9, 98}, {99, 106.5, 98.8, 106}},
			want: []analysis.PatternID{analysis.MorningStar},
		},
		{
			name: "three black crows",
			bars: []ohlc{filler, filler, {106, 106.1, 104.9, 105}, {104.5, 104.6, 102.9, 103}, {102.5, 102.6, 100.9, 101}},
			want: []analysis.PatternID{analysis.ThreeBlackCrows},
		},
	}

	d := NewCandleDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect(series(tt.bars...))
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestCandleDetector_NeedsFiveCandles(t *testing.T) {
	got := NewCandleDetector().Detect(series(filler, filler, filler, ohlc{100, 101.2, 97, 101}))
	assert.Empty(t, got)
}

func TestCandleDetector_CataloguedValues(t *testing.T) {
	got := NewCandleDetector().Detect(series(filler, filler, filler, filler, ohlc{100, 101.2, 97, 101}))
	require.Len(t, got, 2)

	assert.Equal(t, analysis.CandlePattern{ID: analysis.Hammer, Direction: models.Long, Strength: 7, Candles: 1}, got[0])
	assert.Equal(t, analysis.CandlePattern{ID: analysis.BullishPinBar, Direction: models.Long, Strength: 8, Candles: 1}, got[1])
}

func TestPattern_Catalogue(t *testing.T) {
	star, ok := Pattern(analysis.EveningStar)
	require.True(t, ok)
	assert.Equal(t, models.Short, star.Direction)
	assert.Equal(t, 9, star.Strength)
	assert.Equal(t, 3, star.Candles)

	doji, ok := Pattern(analysis.Doji)
	require.True(t, ok)
	assert.Equal(t, models.Neutral, doji.Direction)

	_, ok = Pattern("spinning_top")
	assert.False(t, ok)
}

func TestStrongestPattern(t *testing.T) {
	hammer, _ := Pattern(analysis.Hammer)
	pin, _ := Pattern(analysis.BullishPinBar)
	engulf, _ := Pattern(analysis.BullishEngulfing)
	crows, _ := Pattern(analysis.ThreeBlackCrows)
	found := []analysis.CandlePattern{hammer, pin, crows, engulf}

	best, ok := analysis.StrongestPattern(found, models.Long, 6)
	require.True(t, ok)
	assert.Equal(t, analysis.BullishPinBar, best.ID)

	_, ok = analysis.StrongestPattern(found, models.Short, 9)
	assert.False(t, ok)
}
