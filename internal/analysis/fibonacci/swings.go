// Package fibonacci computes retracements, extensions and multi-timeframe
// confluences from significant price swings.
package fibonacci

import (
	"math"
	"sort"

	"btc-intel/internal/analysis"
	"btc-intel/internal/analysis/levels"
	"btc-intel/internal/models"
	"btc-intel/pkg/utils"
)

// DefaultMinSwingPct applies to timeframes without an explicit threshold.
const DefaultMinSwingPct = 8.0

var minSwingPct = map[models.Timeframe]float64{
	models.TF1H: 2,
	models.TF4H: 4,
	models.TF1D: 8,
	models.TF1W: 15,
}

// MinSwingPct returns the smallest move a swing must have to anchor a
// Fibonacci grid on tf.
func MinSwingPct(tf models.Timeframe) float64 {
	if v, ok := minSwingPct[tf]; ok {
		return v
	}
	return DefaultMinSwingPct
}

// SwingFinder keeps only the swings large enough to produce meaningful
// Fibonacci levels.
type SwingFinder struct{}

// NewSwingFinder creates a new significant-swing finder.
func NewSwingFinder() *SwingFinder {
	return &SwingFinder{}
}

func (f *SwingFinder) Name() string {
	return "SwingFinder"
}

// Find returns the chronologically ordered swings of candles whose move
// from the previous opposite swing meets the timeframe minimum.
func (f *SwingFinder) Find(tf models.Timeframe, candles []models.Candle) []analysis.SwingPoint {
	pivots := levels.FindPivots(candles, levels.PivotBars(tf))
	if len(pivots) == 0 {
		return nil
	}

	swings := make([]analysis.SwingPoint, 0, len(pivots))
	for _, p := range pivots {
		c := candles[p.Index]
		price := c.High
		if p.Kind == analysis.SwingLow {
			price = c.Low
		}
		swings = append(swings, analysis.SwingPoint{
			Price:     price,
			Kind:      p.Kind,
			Time:      c.Timestamp,
			Timeframe: tf,
		})
	}
	sort.SliceStable(swings, func(i, j int) bool {
		return swings[i].Time.Before(swings[j].Time)
	})

	withMoves(swings)

	minPct := MinSwingPct(tf)
	significant := swings[:0]
	for _, s := range swings {
		if s.PercentMove >= minPct {
			significant = append(significant, s)
		}
	}
	return significant
}

// withMoves sets each swing's percent move relative to the last opposite
// swing seen before it. Swings with no prior opposite swing keep zero.
func withMoves(swings []analysis.SwingPoint) {
	var lastHigh, lastLow *analysis.SwingPoint
	for i := range swings {
		s := &swings[i]
		switch s.Kind {
		case analysis.SwingHigh:
			if lastLow != nil && lastLow.Price != 0 {
				s.PercentMove = utils.Round2(math.Abs(s.Price-lastLow.Price) / lastLow.Price * 100)
			}
			lastHigh = s
		case analysis.SwingLow:
			if lastHigh != nil && lastHigh.Price != 0 {
				s.PercentMove = utils.Round2(math.Abs(lastHigh.Price-s.Price) / lastHigh.Price * 100)
			}
			lastLow = s
		}
	}
}
