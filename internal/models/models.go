// Package models provides domain models shared across the engine.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe identifies the bar interval a series or signal belongs to.
type Timeframe string

const (
	TF1H Timeframe = "1H"
	TF4H Timeframe = "4H"
	TF1D Timeframe = "1D"
	TF1W Timeframe = "1W"
)

// AllTimeframes lists the supported timeframes from lowest to highest.
var AllTimeframes = []Timeframe{TF1H, TF4H, TF1D, TF1W}

// ParseTimeframe parses a timeframe label case-insensitively.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToUpper(strings.TrimSpace(s)))
	switch tf {
	case TF1H, TF4H, TF1D, TF1W:
		return tf, nil
	}
	return "", fmt.Errorf("unknown timeframe %q", s)
}

// Duration returns the wall-clock length of one bar.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF1H:
		return time.Hour
	case TF4H:
		return 4 * time.Hour
	case TF1W:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Direction represents the side of a signal or pattern.
type Direction string

const (
	Long    Direction = "LONG"
	Short   Direction = "SHORT"
	Neutral Direction = "NEUTRAL"
)

// ParseDirection parses LONG/SHORT/NEUTRAL case-insensitively.
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToUpper(strings.TrimSpace(s)))
	switch d {
	case Long, Short, Neutral:
		return d, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// IsBearish reports whether the candle closed below its open.
func (c Candle) IsBearish() bool {
	return c.Close < c.Open
}

// Closes extracts the close series.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Highs extracts the high series.
func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

// Lows extracts the low series.
func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

// Volumes extracts the volume series.
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}
