// Package setup classifies the kind of trade opportunity at the current
// price: trend pullback, breakout or reversal.
package setup

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"

	"btc-intel/internal/analysis"
	"btc-intel/internal/analysis/indicators"
	"btc-intel/internal/models"
	"btc-intel/pkg/utils"
)

const (
	proximityPct       = 1.0
	breakoutPct        = 0.5
	granNivelStrength  = 10
	breakoutStrength   = 6
	reversalStrength   = 8
	confirmingStrength = 6
	breakoutVolumeMul  = 1.2
	oversoldRSI        = 30.0
	overboughtRSI      = 70.0
)

// Input is everything the detector looks at for one timeframe.
type Input struct {
	Price      float64
	Direction  models.Direction
	Timeframe  models.Timeframe
	Levels     []analysis.PriceLevel
	Fib        *analysis.FibonacciAnalysis
	Patterns   []analysis.CandlePattern
	Indicators indicators.Snapshot
}

// Detector picks the highest-priority setup.
type Detector struct{}

// NewDetector creates a new setup detector.
func NewDetector() *Detector {
	return &Detector{}
}

func (d *Detector) Name() string {
	return "SetupDetector"
}

// Detect tries pullback, breakout and reversal in that order and returns
// the first that qualifies.
func (d *Detector) Detect(in Input) (analysis.Setup, bool) {
	if s, ok := d.pullback(in); ok {
		return s, true
	}
	if s, ok := d.breakout(in); ok {
		return s, true
	}
	if s, ok := d.reversal(in); ok {
		return s, true
	}
	return analysis.Setup{}, false
}

// pullback needs an aligned trend and price at a value zone.
func (d *Detector) pullback(in Input) (analysis.Setup, bool) {
	if !in.Indicators.Trend.Aligned(in.Direction) {
		return analysis.Setup{}, false
	}

	zone, ok := d.pullbackZone(in)
	if !ok {
		return analysis.Setup{}, false
	}

	desc := "Pullback to " + zone.Name
	if p, ok := analysis.StrongestPattern(in.Patterns, in.Direction, confirmingStrength); ok {
		desc += " + " + string(p.ID)
		zone.Pattern = p.ID
	}

	reliability := analysis.ReliabilityMedium
	if zone.Type == analysis.ZoneGoldenPocketPlusLevel {
		reliability = analysis.ReliabilityHigh
	}

	return analysis.Setup{
		Type:        analysis.SetupPullback,
		Direction:   in.Direction,
		EntryZone:   zone,
		Description: desc,
		Reliability: reliability,
	}, true
}

func (d *Detector) pullbackZone(in Input) (analysis.EntryZone, bool) {
	strong := nearLevels(in.Levels, in.Price, granNivelStrength, proximityPct)

	if golden, ok := nearRetracement(in.Fib, in.Price, proximityPct, analysis.RatioGoldenRatio, analysis.RatioGoldenPocket); ok && len(strong) > 0 {
		lv := strong[0]
		return analysis.EntryZone{
			Type:          analysis.ZoneGoldenPocketPlusLevel,
			Name:          fmt.Sprintf("Golden Pocket + %s (%d/20)", lv.Type.Title(), lv.Strength),
			LevelPrice:    lv.Price,
			LevelStrength: lv.Strength,
			FibRatio:      golden.Ratio,
			FibPrice:      golden.Price,
		}, true
	}

	if best, ok := strongest(strong); ok {
		return analysis.EntryZone{
			Type:          analysis.ZoneGranNivel,
			Name:          fmt.Sprintf("Strong %s (%d/20)", best.Type.Title(), best.Strength),
			LevelPrice:    best.Price,
			LevelStrength: best.Strength,
		}, true
	}

	if fib, ok := nearRetracement(in.Fib, in.Price, proximityPct); ok {
		return analysis.EntryZone{
			Type:     analysis.ZoneFibOnly,
			Name:     fmt.Sprintf("Fib %g (%s)", fib.Ratio, fib.Label),
			FibRatio: fib.Ratio,
			FibPrice: fib.Price,
		}, true
	}

	return analysis.EntryZone{}, false
}

// breakout needs above-average volume and price just past a level that
// used to be on the other side.
func (d *Detector) breakout(in Input) (analysis.Setup, bool) {
	vol, avg := in.Indicators.Volume, in.Indicators.VolumeSMA20
	if avg <= 0 || vol <= avg*breakoutVolumeMul {
		return analysis.Setup{}, false
	}

	var broken []analysis.PriceLevel
	for _, lv := range in.Levels {
		if lv.Strength < breakoutStrength || !utils.Near(in.Price, lv.Price, breakoutPct) {
			continue
		}
		switch in.Direction {
		case models.Long:
			if lv.Type == analysis.LevelResistance && lv.Price < in.Price {
				broken = append(broken, lv)
			}
		case models.Short:
			if lv.Type == analysis.LevelSupport && lv.Price > in.Price {
				broken = append(broken, lv)
			}
		}
	}

	best, ok := strongest(broken)
	if !ok {
		return analysis.Setup{}, false
	}

	mult := utils.Round(vol/avg, 1)
	return analysis.Setup{
		Type:      analysis.SetupBreakout,
		Direction: in.Direction,
		EntryZone: analysis.EntryZone{
			Type:             analysis.ZoneBreakout,
			Name:             fmt.Sprintf("Breakout %s (%d/20)", best.Type.Title(), best.Strength),
			LevelPrice:       best.Price,
			LevelStrength:    best.Strength,
			VolumeMultiplier: mult,
		},
		Description: fmt.Sprintf("Breakout of %s at $%s with %.1fx volume", best.Type, humanize.Comma(int64(math.Round(best.Price))), mult),
		Reliability: analysis.ReliabilityMedium,
	}, true
}

// reversal needs a confirming pattern, an RSI extreme and a level or
// Fibonacci retracement nearby.
func (d *Detector) reversal(in Input) (analysis.Setup, bool) {
	pattern, ok := analysis.StrongestPattern(in.Patterns, in.Direction, confirmingStrength)
	if !ok {
		return analysis.Setup{}, false
	}

	rsi := in.Indicators.RSI
	extreme := (in.Direction == models.Long && rsi < oversoldRSI) ||
		(in.Direction == models.Short && rsi > overboughtRSI)
	if !extreme {
		return analysis.Setup{}, false
	}

	best, atLevel := strongest(nearLevels(in.Levels, in.Price, reversalStrength, proximityPct))
	_, atFib := nearRetracement(in.Fib, in.Price, proximityPct)
	if !atLevel && !atFib {
		return analysis.Setup{}, false
	}

	where := "Fib extreme"
	zone := analysis.EntryZone{
		Type:    analysis.ZoneReversal,
		RSI:     rsi,
		Pattern: pattern.ID,
	}
	if atLevel {
		where = fmt.Sprintf("%s (%d/20)", best.Type.Title(), best.Strength)
		zone.LevelPrice = best.Price
		zone.LevelStrength = best.Strength
	}
	zone.Name = "Reversal at " + where

	return analysis.Setup{
		Type:        analysis.SetupReversal,
		Direction:   in.Direction,
		EntryZone:   zone,
		Description: fmt.Sprintf("Reversal: %s at %s (RSI %.0f)", pattern.ID, where, rsi),
		Reliability: analysis.ReliabilityLow,
	}, true
}

// nearLevels returns levels of at least minStrength within tolPct of price,
// in input order.
func nearLevels(levels []analysis.PriceLevel, price float64, minStrength int, tolPct float64) []analysis.PriceLevel {
	var out []analysis.PriceLevel
	for _, lv := range levels {
		if lv.Strength >= minStrength && utils.Near(price, lv.Price, tolPct) {
			out = append(out, lv)
		}
	}
	return out
}

// strongest returns the strongest level; the first one wins ties.
func strongest(levels []analysis.PriceLevel) (analysis.PriceLevel, bool) {
	if len(levels) == 0 {
		return analysis.PriceLevel{}, false
	}
	best := levels[0]
	for _, lv := range levels[1:] {
		if lv.Strength > best.Strength {
			best = lv
		}
	}
	return best, true
}

// nearRetracement returns the first retracement within tolPct of price,
// restricted to ratios when any are given.
func nearRetracement(fib *analysis.FibonacciAnalysis, price, tolPct float64, ratios ...float64) (analysis.RetracementLevel, bool) {
	if fib == nil {
		return analysis.RetracementLevel{}, false
	}
	for _, r := range fib.Retracements {
		if len(ratios) > 0 && !containsRatio(ratios, r.Ratio) {
			continue
		}
		if r.Price > 0 && utils.Near(price, r.Price, tolPct) {
			return r, true
		}
	}
	return analysis.RetracementLevel{}, false
}

func containsRatio(ratios []float64, r float64) bool {
	for _, v := range ratios {
		if v == r {
			return true
		}
	}
	return false
}
