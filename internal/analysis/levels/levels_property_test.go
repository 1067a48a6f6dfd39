package levels

import (
	"math"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"btc-intel/internal/analysis"
	"btc-intel/internal/models"
)

// candleGen generates valid candles with realistic BTC-like prices.
func candleGen() gopter.Gen {
	return gen.Struct(reflect.TypeOf(models.Candle{}), map[string]gopter.Gen{
		"Open":   gen.Float64Range(20000.0, 30000.0),
		"High":   gen.Float64Range(20000.0, 30000.0),
		"Low":    gen.Float64Range(20000.0, 30000.0),
		"Close":  gen.Float64Range(20000.0, 30000.0),
		"Volume": gen.Float64Range(1.0, 5000.0),
	}).Map(func(c models.Candle) models.Candle {
		c.High = math.Max(c.High, math.Max(c.Open, c.Close))
		c.Low = math.Min(c.Low, math.Min(c.Open, c.Close))
		if c.High <= c.Low {
			c.High = c.Low + 1.0
		}
		return c
	})
}

// candleSliceGen generates a chronologically ordered slice of candles.
func candleSliceGen(minLen, maxLen int) gopter.Gen {
	return gen.SliceOfN(maxLen, candleGen()).Map(func(candles []models.Candle) []models.Candle {
		for len(candles) < minLen {
			candles = append(candles, candles[len(candles)-1])
		}
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := range candles {
			candles[i].Timestamp = start.Add(time.Duration(i) * 24 * time.Hour)
		}
		return candles
	}).SuchThat(func(candles []models.Candle) bool {
		return len(candles) >= minLen
	})
}

func propertyParams() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	return parameters
}

// Feature: level-engine, Property 1: strength is bounded and classification follows it
//
// Property: for any combination of evidence, 0 <= strength <= 20 and the
// classification is a pure function of the strength thresholds.
func TestProperty_LevelStrengthBounded(t *testing.T) {
	properties := gopter.NewProperties(propertyParams())
	scorer := NewScorer()

	properties.Property("strength in [0,20] with matching class", prop.ForAll(
		func(touches, tfCount, days int, fib, flip, vol, psych bool) bool {
			lv := analysis.PriceLevel{
				TouchCount:    touches,
				Timeframes:    models.AllTimeframes[:tfCount],
				LastTouchDays: days,
				FibCoincident: fib,
				RoleFlip:      flip,
				HighVolume:    vol,
				Psychological: psych,
			}
			s := scorer.Score(lv)
			if s < 0 || s > MaxStrength {
				return false
			}
			class := Classify(s)
			switch {
			case s >= 15:
				return class == ClassCritical
			case s >= 10:
				return class == ClassStrong
			case s >= 5:
				return class == ClassModerate
			default:
				return class == ClassWeak
			}
		},
		gen.IntRange(0, 50),
		gen.IntRange(0, 4),
		gen.IntRange(0, 1000),
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

type pivotKey struct {
	index int
	kind  analysis.SwingKind
}

// Feature: level-engine, Property 2: swing detection is mirror symmetric
//
// Property: reversing the series and negating prices (so highs become lows)
// yields the same pivots at mirrored indices with the kind flipped.
func TestProperty_SwingDetectionSymmetric(t *testing.T) {
	properties := gopter.NewProperties(propertyParams())

	properties.Property("mirrored series mirrors pivots", prop.ForAll(
		func(candles []models.Candle) bool {
			n := len(candles)
			mirror := make([]models.Candle, n)
			for i, c := range candles {
				mirror[n-1-i] = models.Candle{
					Timestamp: c.Timestamp,
					Open:      -c.Open,
					High:      -c.Low,
					Low:       -c.High,
					Close:     -c.Close,
				}
			}

			for _, tf := range models.AllTimeframes {
				window := PivotBars(tf)
				want := make(map[pivotKey]bool)
				for _, p := range FindPivots(candles, window) {
					kind := analysis.SwingLow
					if p.Kind == analysis.SwingLow {
						kind = analysis.SwingHigh
					}
					want[pivotKey{n - 1 - p.Index, kind}] = true
				}
				got := FindPivots(mirror, window)
				if len(got) != len(want) {
					return false
				}
				for _, p := range got {
					if !want[pivotKey{p.Index, p.Kind}] {
						return false
					}
				}
			}
			return true
		},
		candleSliceGen(15, 80),
	))

	properties.TestingRun(t)
}

// Feature: level-engine, Property 3: swings are chronological and confirmed
//
// Property: detected swings are ordered by time and each swing price is the
// extreme of its pivot window.
func TestProperty_SwingsConfirmedAndOrdered(t *testing.T) {
	properties := gopter.NewProperties(propertyParams())
	detector := NewSwingDetector()

	properties.Property("swings ordered and window-extreme", prop.ForAll(
		func(candles []models.Candle) bool {
			swings := detector.Detect(models.TF1D, candles)
			sorted := sort.SliceIsSorted(swings, func(i, j int) bool {
				return swings[i].Time.Before(swings[j].Time)
			})
			if !sorted {
				return false
			}
			for _, s := range swings {
				if s.PercentMove < 0 {
					return false
				}
				for _, c := range candles {
					if c.Timestamp.Sub(s.Time).Abs() > time.Duration(PivotBars(models.TF1D))*24*time.Hour {
						continue
					}
					if s.Kind == analysis.SwingHigh && c.High > s.Price {
						return false
					}
					if s.Kind == analysis.SwingLow && c.Low < s.Price {
						return false
					}
				}
			}
			return true
		},
		candleSliceGen(21, 120),
	))

	properties.TestingRun(t)
}

// Feature: level-engine, Property 4: zones partition the level set
//
// Property: clustering preserves the total touch count, every zone spans
// its members, and zones are ordered by strength descending.
func TestProperty_ZonesPartitionLevels(t *testing.T) {
	properties := gopter.NewProperties(propertyParams())
	clusterer := NewZoneClusterer()

	levelGen := gen.Struct(reflect.TypeOf(analysis.PriceLevel{}), map[string]gopter.Gen{
		"Price":      gen.Float64Range(50000, 70000),
		"Strength":   gen.IntRange(0, 20),
		"TouchCount": gen.IntRange(0, 6),
	})

	properties.Property("zones preserve touches and order", prop.ForAll(
		func(levels []analysis.PriceLevel) bool {
			zones := clusterer.Cluster(levels, 60000)
			if len(levels) == 0 {
				return len(zones) == 0
			}
			total, zoneTotal := 0, 0
			for _, lv := range levels {
				total += lv.TouchCount
			}
			for i, z := range zones {
				zoneTotal += z.TouchCount
				if z.PriceLow > z.PriceMid || z.PriceMid > z.PriceHigh {
					return false
				}
				if i > 0 && zones[i-1].Strength < z.Strength {
					return false
				}
				if z.MajorLevel != (z.Strength >= 15) {
					return false
				}
			}
			return total == zoneTotal && len(zones) <= len(levels)
		},
		gen.SliceOf(levelGen),
	))

	properties.TestingRun(t)
}

// Feature: level-engine, Property 5: volume zones lie inside the traded range
func TestProperty_VolumeZonesWithinRange(t *testing.T) {
	properties := gopter.NewProperties(propertyParams())
	profile := NewVolumeProfile()

	properties.Property("zone prices inside [min low, max high]", prop.ForAll(
		func(candles []models.Candle) bool {
			lo, hi := math.Inf(1), math.Inf(-1)
			for _, c := range candles {
				lo = math.Min(lo, c.Low)
				hi = math.Max(hi, c.High)
			}
			zones := profile.Detect(candles)
			if len(zones) == 0 || len(zones) > 100 {
				return false
			}
			for _, z := range zones {
				if z.Price < lo-0.01 || z.Price > hi+0.01 || z.Volume <= 0 {
					return false
				}
			}
			return true
		},
		candleSliceGen(5, 60),
	))

	properties.TestingRun(t)
}
