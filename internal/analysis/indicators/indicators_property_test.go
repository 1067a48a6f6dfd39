package indicators

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"btc-intel/internal/models"
)

// candleGen generates valid candle data with realistic OHLCV values
func candleGen() gopter.Gen {
	return gen.Struct(reflect.TypeOf(models.Candle{}), map[string]gopter.Gen{
		"Open":   gen.Float64Range(30000.0, 40000.0),
		"High":   gen.Float64Range(30000.0, 40000.0),
		"Low":    gen.Float64Range(30000.0, 40000.0),
		"Close":  gen.Float64Range(30000.0, 40000.0),
		"Volume": gen.Float64Range(1.0, 10000.0),
	}).Map(func(c models.Candle) models.Candle {
		c.High = math.Max(c.High, math.Max(c.Open, c.Close))
		c.Low = math.Min(c.Low, math.Min(c.Open, c.Close))
		if c.High <= c.Low {
			c.High = c.Low + 1.0
		}
		return c
	})
}

func timedCandles(candles []models.Candle) []models.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		candles[i].Timestamp = start.Add(time.Duration(i) * time.Hour)
	}
	return candles
}

func propertyParams() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	return parameters
}

// Feature: indicator-snapshot, Property 1: snapshot values within mathematical bounds
//
// Property: for any valid series long enough for every indicator,
// - RSI lies in [0, 100]
// - ATR is non-negative
// - Bollinger upper >= middle >= lower
// - the volume average lies within the observed volume range
func TestProperty_SnapshotWithinBounds(t *testing.T) {
	properties := gopter.NewProperties(propertyParams())
	engine := NewStandardEngine(4)

	properties.Property("snapshot values are bounded", prop.ForAll(
		func(raw []models.Candle) bool {
			candles := timedCandles(raw)
			snap, err := engine.Snapshot(context.Background(), candles)
			if err != nil {
				return false
			}
			if snap.RSI < 0 || snap.RSI > 100 {
				return false
			}
			if snap.ATR < 0 {
				return false
			}
			if snap.BBUpper < snap.BBMid-1e-6 || snap.BBMid < snap.BBLower-1e-6 {
				return false
			}
			minVol, maxVol := math.Inf(1), math.Inf(-1)
			for _, c := range candles[len(candles)-20:] {
				minVol = math.Min(minVol, c.Volume)
				maxVol = math.Max(maxVol, c.Volume)
			}
			return snap.VolumeSMA20 >= minVol-1e-6 && snap.VolumeSMA20 <= maxVol+1e-6
		},
		gen.SliceOfN(210, candleGen()),
	))

	properties.TestingRun(t)
}
