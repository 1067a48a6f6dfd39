// Package scoring provides the base signal scorer and the extended
// structural scorer built on top of it.
package scoring

import (
	"math"

	"btc-intel/internal/analysis"
	"btc-intel/internal/analysis/indicators"
	"btc-intel/internal/models"
)

// directionThreshold is the composite score beyond which a side is taken.
const directionThreshold = 15.0

// SignalScorer combines indicator readings into a directional base score.
type SignalScorer struct {
	weights IndicatorWeights
}

// IndicatorWeights defines the weights for each indicator in the composite score.
type IndicatorWeights struct {
	RSI       float64
	Trend     float64
	Bollinger float64
	Volume    float64
}

// DefaultWeights returns the default indicator weights.
func DefaultWeights() IndicatorWeights {
	return IndicatorWeights{
		RSI:       0.30,
		Trend:     0.40,
		Bollinger: 0.15,
		Volume:    0.15,
	}
}

// BaseScore is the indicator-only view of a timeframe.
type BaseScore struct {
	Score      float64            `json:"score"`
	Direction  models.Direction   `json:"direction"`
	Confidence float64            `json:"confidence"`
	Components map[string]float64 `json:"components"`
}

// NewSignalScorer creates a new signal scorer with default weights.
func NewSignalScorer() *SignalScorer {
	return &SignalScorer{weights: DefaultWeights()}
}

// NewSignalScorerWithWeights creates a new signal scorer with custom weights.
func NewSignalScorerWithWeights(weights IndicatorWeights) *SignalScorer {
	return &SignalScorer{weights: weights}
}

// Score returns a composite from -100 (bearish) to +100 (bullish), the side
// it implies and a 0-100 confidence equal to its magnitude.
func (s *SignalScorer) Score(snap indicators.Snapshot) BaseScore {
	components := map[string]float64{
		"RSI":       rsiScore(snap.RSI),
		"Trend":     trendScore(snap.Trend),
		"Bollinger": bollingerScore(snap),
		"Volume":    volumeScore(snap),
	}

	totalScore := components["RSI"]*s.weights.RSI +
		components["Trend"]*s.weights.Trend +
		components["Bollinger"]*s.weights.Bollinger +
		components["Volume"]*s.weights.Volume
	totalWeight := s.weights.RSI + s.weights.Trend + s.weights.Bollinger + s.weights.Volume

	var score float64
	if totalWeight > 0 {
		score = clamp(totalScore/totalWeight, -100, 100)
	}

	direction := models.Neutral
	switch {
	case score >= directionThreshold:
		direction = models.Long
	case score <= -directionThreshold:
		direction = models.Short
	}

	return BaseScore{
		Score:      score,
		Direction:  direction,
		Confidence: math.Abs(score),
		Components: components,
	}
}

// rsiScore maps RSI to a score:
// RSI 0-30: +100 to +33 (oversold = bullish)
// RSI 30-50: +33 to 0
// RSI 50-70: 0 to -33
// RSI 70-100: -33 to -100 (overbought = bearish)
func rsiScore(rsi float64) float64 {
	switch {
	case rsi <= 30:
		return 100 - (rsi/30)*67
	case rsi <= 50:
		return 33 - ((rsi-30)/20)*33
	case rsi <= 70:
		return -((rsi - 50) / 20) * 33
	default:
		return -33 - ((rsi-70)/30)*67
	}
}

func trendScore(t analysis.Trend) float64 {
	switch t {
	case analysis.TrendStrongBullish:
		return 100
	case analysis.TrendBullish:
		return 50
	case analysis.TrendBearish:
		return -50
	case analysis.TrendStrongBearish:
		return -100
	}
	return 0
}

// bollingerScore rewards closes near the lower band and penalises closes
// near the upper band.
func bollingerScore(snap indicators.Snapshot) float64 {
	half := snap.BBUpper - snap.BBMid
	if half <= 0 || snap.Close <= 0 {
		return 0
	}
	return clamp(-(snap.Close-snap.BBMid)/half*100, -100, 100)
}

// volumeScore amplifies the trend side when volume runs above average.
func volumeScore(snap indicators.Snapshot) float64 {
	if snap.VolumeSMA20 <= 0 || snap.Volume <= snap.VolumeSMA20 {
		return 0
	}
	excess := math.Min((snap.Volume/snap.VolumeSMA20-1)*100, 100)
	switch {
	case trendScore(snap.Trend) > 0:
		return excess
	case trendScore(snap.Trend) < 0:
		return -excess
	}
	return 0
}

// clamp restricts a value to the given range.
func clamp(value, minVal, maxVal float64) float64 {
	if value < minVal {
		return minVal
	}
	if value > maxVal {
		return maxVal
	}
	return value
}
