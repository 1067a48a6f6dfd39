// Package patterns provides candlestick pattern detection.
package patterns

import (
	"math"

	"btc-intel/internal/analysis"
	"btc-intel/internal/models"
)

// MinCandles is the number of recent candles the detector looks at.
const MinCandles = 5

// zeroBody replaces a zero body in wick-ratio tests.
const zeroBody = 0.01

type patternSpec struct {
	direction models.Direction
	strength  int
	candles   int
}

// catalogue is the closed set of recognised patterns.
var catalogue = map[analysis.PatternID]patternSpec{
	analysis.BullishEngulfing:   {models.Long, 8, 2},
	analysis.Hammer:             {models.Long, 7, 1},
	analysis.InvertedHammer:     {models.Long, 6, 1},
	analysis.MorningStar:        {models.Long, 9, 3},
	analysis.ThreeWhiteSoldiers: {models.Long, 8, 3},
	analysis.BullishPinBar:      {models.Long, 8, 1},
	analysis.BearishEngulfing:   {models.Short, 8, 2},
	analysis.ShootingStar:       {models.Short, 7, 1},
	analysis.EveningStar:        {models.Short, 9, 3},
	analysis.ThreeBlackCrows:    {models.Short, 8, 3},
	analysis.BearishPinBar:      {models.Short, 8, 1},
	analysis.Doji:               {models.Neutral, 3, 1},
}

// Pattern returns the catalogue entry for id.
func Pattern(id analysis.PatternID) (analysis.CandlePattern, bool) {
	spec, ok := catalogue[id]
	if !ok {
		return analysis.CandlePattern{}, false
	}
	return analysis.CandlePattern{
		ID:        id,
		Direction: spec.direction,
		Strength:  spec.strength,
		Candles:   spec.candles,
	}, true
}

// CandleDetector detects candlestick patterns on the most recent candles.
type CandleDetector struct {
	dojiThreshold   float64 // Body < 10% of range
	wickRatio       float64 // Long wick >= 2x body
	hammerTailRatio float64 // Opposite wick <= 0.3x body for hammer/shooting star
	pinTailRatio    float64 // Opposite wick <= 0.5x body for pin bars
	starBodyRatio   float64 // Middle star body < 0.5x first body
}

// NewCandleDetector creates a new candlestick pattern detector.
func NewCandleDetector() *CandleDetector {
	return &CandleDetector{
		dojiThreshold:   0.1,
		wickRatio:       2.0,
		hammerTailRatio: 0.3,
		pinTailRatio:    0.5,
		starBodyRatio:   0.5,
	}
}

func (d *CandleDetector) Name() string {
	return "CandleDetector"
}

// Detect runs every pattern test against the last five candles and returns
// the matches in a fixed order. Fewer than five candles yields nothing.
func (d *CandleDetector) Detect(candles []models.Candle) []analysis.CandlePattern {
	if len(candles) < MinCandles {
		return nil
	}

	window := candles[len(candles)-MinCandles:]
	curr := window[len(window)-1]
	prev := window[len(window)-2]
	last3 := window[len(window)-3:]

	var found []analysis.PatternID

	// Single-candle patterns on the latest bar
	if d.isHammer(curr) {
		found = append(found, analysis.Hammer)
	}
	if d.isShootingStar(curr) {
		found = append(found, analysis.ShootingStar)
	}
	if d.isDoji(curr) {
		found = append(found, analysis.Doji)
	}
	if d.isPinBar(curr, models.Long) {
		found = append(found, analysis.BullishPinBar)
	}
	if d.isPinBar(curr, models.Short) {
		found = append(found, analysis.BearishPinBar)
	}
	if d.isDowntrend(window) && d.isShootingStar(curr) {
		found = append(found, analysis.InvertedHammer)
	}

	// Two-candle patterns
	if d.isEngulfing(prev, curr, models.Long) {
		found = append(found, analysis.BullishEngulfing)
	}
	if d.isEngulfing(prev, curr, models.Short) {
		found = append(found, analysis.BearishEngulfing)
	}

	// Three-candle patterns
	if d.isMorningStar(last3) {
		found = append(found, analysis.MorningStar)
	}
	if d.isEveningStar(last3) {
		found = append(found, analysis.EveningStar)
	}
	if d.isThreeSoldiers(last3) {
		found = append(found, analysis.ThreeWhiteSoldiers)
	}
	if d.isThreeCrows(last3) {
		found = append(found, analysis.ThreeBlackCrows)
	}

	patterns := make([]analysis.CandlePattern, 0, len(found))
	for _, id := range found {
		p, _ := Pattern(id)
		patterns = append(patterns, p)
	}
	return patterns
}

// Helper functions for candle analysis
func (d *CandleDetector) bodySize(c models.Candle) float64 {
	return math.Abs(c.Close - c.Open)
}

// wickBody is the body used in wick ratio tests, never zero.
func (d *CandleDetector) wickBody(c models.Candle) float64 {
	if body := d.bodySize(c); body != 0 {
		return body
	}
	return zeroBody
}

func (d *CandleDetector) upperShadow(c models.Candle) float64 {
	return c.High - math.Max(c.Open, c.Close)
}

func (d *CandleDetector) lowerShadow(c models.Candle) float64 {
	return math.Min(c.Open, c.Close) - c.Low
}

func (d *CandleDetector) bodyMid(c models.Candle) float64 {
	return (c.Open + c.Close) / 2
}

// isDowntrend compares the first close of the window with the latest one.
func (d *CandleDetector) isDowntrend(window []models.Candle) bool {
	if len(window) < MinCandles {
		return false
	}
	return window[0].Close > window[len(window)-1].Close
}

// Single-candle pattern detection

func (d *CandleDetector) isHammer(c models.Candle) bool {
	body := d.wickBody(c)
	return d.lowerShadow(c) >= d.wickRatio*body && d.upperShadow(c) <= d.hammerTailRatio*body
}

func (d *CandleDetector) isShootingStar(c models.Candle) bool {
	body := d.wickBody(c)
	return d.upperShadow(c) >= d.wickRatio*body && d.lowerShadow(c) <= d.hammerTailRatio*body
}

func (d *CandleDetector) isDoji(c models.Candle) bool {
	rng := c.High - c.Low
	if rng == 0 {
		return false
	}
	return d.bodySize(c) < d.dojiThreshold*rng
}

func (d *CandleDetector) isPinBar(c models.Candle, dir models.Direction) bool {
	body := d.wickBody(c)
	upper, lower := d.upperShadow(c), d.lowerShadow(c)
	if dir == models.Long {
		return lower >= d.wickRatio*body && upper <= d.pinTailRatio*body
	}
	return upper >= d.wickRatio*body && lower <= d.pinTailRatio*body
}

// Two-candle pattern detection

// isEngulfing checks for an opposite-colour candle whose body strictly
// contains the previous body.
func (d *CandleDetector) isEngulfing(prev, curr models.Candle, dir models.Direction) bool {
	engulfs := math.Max(curr.Open, curr.Close) > math.Max(prev.Open, prev.Close) &&
		math.Min(curr.Open, curr.Close) < math.Min(prev.Open, prev.Close)
	if !engulfs {
		return false
	}
	if dir == models.Long {
		return prev.IsBearish() && curr.IsBullish()
	}
	return prev.IsBullish() && curr.IsBearish()
}

// Three-candle pattern detection

func (d *CandleDetector) isMorningStar(c []models.Candle) bool {
	c1, c2, c3 := c[0], c[1], c[2]
	c1Body := d.bodySize(c1)
	if c1Body == 0 {
		return false
	}
	return c1.IsBearish() && c3.IsBullish() &&
		d.bodySize(c2) < c1Body*d.starBodyRatio &&
		d.bodyMid(c2) < c1.Close &&
		c3.Close > d.bodyMid(c1)
}

func (d *CandleDetector) isEveningStar(c []models.Candle) bool {
	c1, c2, c3 := c[0], c[1], c[2]
	c1Body := d.bodySize(c1)
	if c1Body == 0 {
		return false
	}
	return c1.IsBullish() && c3.IsBearish() &&
		d.bodySize(c2) < c1Body*d.starBodyRatio &&
		d.bodyMid(c2) > c1.Close &&
		c3.Close < d.bodyMid(c1)
}

func (d *CandleDetector) isThreeSoldiers(c []models.Candle) bool {
	for _, candle := range c {
		if !candle.IsBullish() {
			return false
		}
	}
	return c[1].Close > c[0].Close && c[2].Close > c[1].Close
}

func (d *CandleDetector) isThreeCrows(c []models.Candle) bool {
	for _, candle := range c {
		if !candle.IsBearish() {
			return false
		}
	}
	return c[1].Close < c[0].Close && c[2].Close < c[1].Close
}
