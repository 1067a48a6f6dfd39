// Package levels builds, scores and clusters support/resistance levels.
package levels

import (
	"math"

	"btc-intel/internal/analysis"
	"btc-intel/internal/models"
	"btc-intel/pkg/utils"
)

// DefaultPivotBars is the pivot window used for unknown timeframes.
const DefaultPivotBars = 10

// swingLookahead is how many bars forward the percent move is measured over.
const swingLookahead = 20

var pivotBars = map[models.Timeframe]int{
	models.TF1H: 5,
	models.TF4H: 7,
	models.TF1D: 10,
	models.TF1W: 5,
}

// PivotBars returns the number of bars required on each side of a pivot.
func PivotBars(tf models.Timeframe) int {
	if n, ok := pivotBars[tf]; ok {
		return n
	}
	return DefaultPivotBars
}

// Pivot is a raw pivot index found by FindPivots.
type Pivot struct {
	Index int
	Kind  analysis.SwingKind
}

// FindPivots scans candles for bars that are the extreme of their
// [i-n, i+n] window. A bar is a high pivot when no neighbour has a
// strictly greater high, a low pivot when no neighbour has a strictly
// lower low. Highs are emitted before lows for the same bar.
func FindPivots(candles []models.Candle, n int) []Pivot {
	total := len(candles)
	if n < 1 || total < 2*n+1 {
		return nil
	}

	var pivots []Pivot
	for i := n; i < total-n; i++ {
		isHigh, isLow := true, true
		for j := i - n; j <= i+n; j++ {
			if j == i {
				continue
			}
			if candles[j].High > candles[i].High {
				isHigh = false
			}
			if candles[j].Low < candles[i].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			pivots = append(pivots, Pivot{Index: i, Kind: analysis.SwingHigh})
		}
		if isLow {
			pivots = append(pivots, Pivot{Index: i, Kind: analysis.SwingLow})
		}
	}
	return pivots
}

// SwingDetector identifies swing highs and lows from OHLCV data.
type SwingDetector struct {
	lookahead int
}

// NewSwingDetector creates a swing detector with the standard 20-bar lookahead.
func NewSwingDetector() *SwingDetector {
	return &SwingDetector{lookahead: swingLookahead}
}

func (d *SwingDetector) Name() string {
	return "SwingDetector"
}

// Detect returns the swings of candles using the pivot window of tf.
// Candles must be sorted by time ascending.
func (d *SwingDetector) Detect(tf models.Timeframe, candles []models.Candle) []analysis.SwingPoint {
	pivots := FindPivots(candles, PivotBars(tf))
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
			Price:       price,
			Kind:        p.Kind,
			Time:        c.Timestamp,
			Timeframe:   tf,
			PercentMove: d.percentMoveAfter(candles, p.Index, p.Kind),
		})
	}
	return swings
}

// DetectAll runs every timeframe's pivot window over the same series.
func (d *SwingDetector) DetectAll(candles []models.Candle) []analysis.SwingPoint {
	var all []analysis.SwingPoint
	for _, tf := range models.AllTimeframes {
		all = append(all, d.Detect(tf, candles)...)
	}
	return all
}

// percentMoveAfter measures the most extreme opposite close within the
// lookahead window as a percentage of the pivot bar's close.
func (d *SwingDetector) percentMoveAfter(candles []models.Candle, idx int, kind analysis.SwingKind) float64 {
	end := idx + d.lookahead + 1
	if end > len(candles) {
		end = len(candles)
	}
	if idx+1 >= end {
		return 0
	}

	base := candles[idx].Close
	if base == 0 {
		return 0
	}

	extreme := candles[idx+1].Close
	for _, c := range candles[idx+2 : end] {
		if kind == analysis.SwingHigh {
			extreme = math.Min(extreme, c.Close)
		} else {
			extreme = math.Max(extreme, c.Close)
		}
	}

	return utils.Round2(math.Abs((extreme - base) / base * 100))
}
