package trading

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"btc-intel/internal/analysis"
	"btc-intel/internal/models"
)

func propertyParams() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	return parameters
}

// Feature: tpsl, Property 1: valid results respect the risk limits
//
// Property: for any entry, ATR, direction, timeframe and surrounding structure,
// a valid result has
// - sl_pct within the timeframe's max SL percent
// - rr_tp1 and rr_tp2 at or above the timeframe minimums
// - sl < entry < tp1 < tp2 for LONG, reversed for SHORT
// and an invalid result can only be a stop that is too wide.
func TestProperty_TPSLRespectsLimits(t *testing.T) {
	properties := gopter.NewProperties(propertyParams())
	calc := NewTPSLCalculator()

	properties.Property("tpsl within limits", prop.ForAll(
		func(entry, atr float64, long bool, tfIdx int, offsets, strengths []int, withBands bool) bool {
			dir := models.Short
			if long {
				dir = models.Long
			}
			tf := models.AllTimeframes[tfIdx]

			// Structure sits on a half-ATR grid around entry.
			var levels []analysis.PriceLevel
			for i, k := range offsets {
				if k == 0 {
					continue
				}
				price := entry + float64(k)*atr/2
				levels = append(levels, analysis.PriceLevel{
					Price:    price,
					Type:     analysis.LevelTypeFor(price, entry),
					Strength: strengths[i%len(strengths)],
				})
			}
			in := TPSLInput{
				Entry:     entry,
				Direction: dir,
				Timeframe: tf,
				ATR:       atr,
				Levels:    levels,
			}
			if withBands {
				in.Bands = Bands{Upper: entry + 2*atr, Mid: entry, Lower: entry - 2*atr}
			}

			res := calc.Calculate(in)
			if !res.Valid {
				return res.Reason == ReasonSLTooWide
			}

			limits := Limits(tf)
			if res.SLPct > limits.MaxSLPct || res.RRTP1 < limits.MinRRTP1 || res.RRTP2 < limits.MinRRTP2 {
				return false
			}
			if long {
				return res.SL < entry && entry < res.TP1 && res.TP1 < res.TP2
			}
			return res.SL > entry && entry > res.TP1 && res.TP1 > res.TP2
		},
		gen.Float64Range(20000, 120000),
		gen.Float64Range(10, 3000),
		gen.Bool(),
		gen.IntRange(0, len(models.AllTimeframes)-1),
		gen.SliceOfN(6, gen.IntRange(-20, 20)),
		gen.SliceOfN(6, gen.IntRange(0, 20)),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Feature: tpsl, Property 2: calculation is repeatable
//
// Property: calling the calculator twice with the same input yields the same
// result including method tags.
func TestProperty_TPSLRepeatable(t *testing.T) {
	properties := gopter.NewProperties(propertyParams())
	calc := NewTPSLCalculator()

	properties.Property("tpsl repeatable", prop.ForAll(
		func(entry, atr, swing float64, long bool) bool {
			dir := models.Short
			kind := analysis.SwingHigh
			if long {
				dir = models.Long
				kind = analysis.SwingLow
			}
			in := TPSLInput{
				Entry:     entry,
				Direction: dir,
				Timeframe: models.TF4H,
				ATR:       atr,
				Swings:    []analysis.SwingPoint{{Price: swing, Kind: kind}},
			}
			return calc.Calculate(in) == calc.Calculate(in)
		},
		gen.Float64Range(20000, 120000),
		gen.Float64Range(10, 3000),
		gen.Float64Range(20000, 120000),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
