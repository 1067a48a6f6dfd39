package trading

import (
	"math"

	"btc-intel/internal/analysis"
	"btc-intel/internal/models"
	"btc-intel/pkg/utils"
)

// Method tags which candidate produced a stop or target.
type Method string

const (
	MethodStrongSupport    Method = "strong_support"
	MethodStrongResistance Method = "strong_resistance"
	MethodFib0786          Method = "fib_0786"
	MethodSwingLow         Method = "swing_low"
	MethodSwingHigh        Method = "swing_high"
	MethodBBLower          Method = "bb_lower"
	MethodBBUpper          Method = "bb_upper"
	MethodBBMid            Method = "bb_mid"
	MethodFibExtAtLevel    Method = "fib_ext_at_level"
	MethodFib1618AtLevel   Method = "fib_1618_at_level"
	MethodFib1618          Method = "fib_1618"
	MethodNextResistance   Method = "next_resistance"
	MethodNextSupport      Method = "next_support"
	MethodATRFallback      Method = "atr_fallback"
	MethodMinRRFallback    Method = "min_rr_fallback"
)

// Invalid result reasons.
const (
	ReasonATRNotPositive = "ATR is zero or negative"
	ReasonZeroRisk       = "Risk is zero"
	ReasonSLTooWide      = "SL exceeds max percent"
	ReasonNoDirection    = "Direction must be LONG or SHORT"
)

const (
	slLevelMinStrength = 10
	tpLevelMinStrength = 8
	atrFallbackMult    = 1.5
	tp1ExtLevelTolPct  = 1.0
	tp2ExtLevelTolPct  = 1.5
	bandBufferFraction = 0.5
)

// RiskLimits are the per-timeframe buffer and risk constraints.
type RiskLimits struct {
	BufferMultiplier float64 `json:"buffer_multiplier"`
	MaxSLPct         float64 `json:"max_sl_pct"`
	MinRRTP1         float64 `json:"min_rr_tp1"`
	MinRRTP2         float64 `json:"min_rr_tp2"`
}

var riskTable = map[models.Timeframe]RiskLimits{
	models.TF1H: {BufferMultiplier: 1.0, MaxSLPct: 2, MinRRTP1: 1.2, MinRRTP2: 2.0},
	models.TF4H: {BufferMultiplier: 1.5, MaxSLPct: 4, MinRRTP1: 1.5, MinRRTP2: 2.5},
	models.TF1D: {BufferMultiplier: 2.0, MaxSLPct: 7, MinRRTP1: 1.5, MinRRTP2: 3.0},
	models.TF1W: {BufferMultiplier: 2.5, MaxSLPct: 12, MinRRTP1: 2.0, MinRRTP2: 4.0},
}

var defaultRisk = RiskLimits{BufferMultiplier: 1.5, MaxSLPct: 4, MinRRTP1: 1.5, MinRRTP2: 2.5}

// Limits returns the risk limits for tf, falling back to defaults for unknown timeframes.
func Limits(tf models.Timeframe) RiskLimits {
	if l, ok := riskTable[tf]; ok {
		return l
	}
	return defaultRisk
}

// Bands holds Bollinger band values. Zero means not available.
type Bands struct {
	Upper float64
	Mid   float64
	Lower float64
}

// TPSLInput is everything the calculator looks at for one entry.
type TPSLInput struct {
	Entry     float64
	Direction models.Direction
	Timeframe models.Timeframe
	ATR       float64
	Bands     Bands
	Levels    []analysis.PriceLevel
	Fib       *analysis.FibonacciAnalysis
	Swings    []analysis.SwingPoint
}

// TPSLResult is the computed stop and targets with the method behind each.
type TPSLResult struct {
	Valid     bool             `json:"valid"`
	Reason    string           `json:"reason,omitempty"`
	Entry     float64          `json:"entry"`
	Direction models.Direction `json:"direction"`
	Timeframe models.Timeframe `json:"timeframe"`
	Buffer    float64          `json:"buffer"`
	SL        float64          `json:"sl"`
	TP1       float64          `json:"tp1"`
	TP2       float64          `json:"tp2"`
	SLPct     float64          `json:"sl_pct"`
	TP1Pct    float64          `json:"tp1_pct"`
	TP2Pct    float64          `json:"tp2_pct"`
	RRTP1     float64          `json:"rr_tp1"`
	RRTP2     float64          `json:"rr_tp2"`
	SLMethod  Method           `json:"sl_method,omitempty"`
	TP1Method Method           `json:"tp1_method,omitempty"`
	TP2Method Method           `json:"tp2_method,omitempty"`
}

type candidate struct {
	price  float64
	method Method
}

// TPSLCalculator places stops and targets on market structure with ATR fallbacks.
// It keeps no state between calls.
type TPSLCalculator struct{}

// NewTPSLCalculator creates a new TP/SL calculator.
func NewTPSLCalculator() *TPSLCalculator {
	return &TPSLCalculator{}
}

func (c *TPSLCalculator) Name() string {
	return "TPSLCalculator"
}

// Calculate computes SL, TP1 and TP2 for in.
func (c *TPSLCalculator) Calculate(in TPSLInput) TPSLResult {
	limits := Limits(in.Timeframe)
	res := TPSLResult{
		Entry:     in.Entry,
		Direction: in.Direction,
		Timeframe: in.Timeframe,
	}

	if in.Direction != models.Long && in.Direction != models.Short {
		res.Reason = ReasonNoDirection
		return res
	}
	if in.ATR <= 0 {
		res.Reason = ReasonATRNotPositive
		return res
	}

	buffer := in.ATR * limits.BufferMultiplier
	res.Buffer = utils.Round2(buffer)

	sl, ok := c.stopLoss(in, buffer, limits)
	if !ok {
		res.Reason = ReasonSLTooWide
		return res
	}

	risk := math.Abs(in.Entry - sl.price)
	if risk == 0 {
		res.Reason = ReasonZeroRisk
		return res
	}

	tp1 := c.takeProfit1(in, risk, limits)
	tp2 := c.takeProfit2(in, tp1.price, risk, limits)

	res.Valid = true
	res.SL = utils.Round2(sl.price)
	res.TP1 = utils.Round2(tp1.price)
	res.TP2 = utils.Round2(tp2.price)
	res.SLPct = utils.Round2(utils.PctDistance(sl.price, in.Entry))
	res.TP1Pct = utils.Round2(utils.PctDistance(tp1.price, in.Entry))
	res.TP2Pct = utils.Round2(utils.PctDistance(tp2.price, in.Entry))
	res.RRTP1 = utils.Round2(math.Abs(tp1.price-in.Entry) / risk)
	res.RRTP2 = utils.Round2(math.Abs(tp2.price-in.Entry) / risk)
	res.SLMethod = sl.method
	res.TP1Method = tp1.method
	res.TP2Method = tp2.method
	return res
}

// stopLoss picks the candidate closest to entry that stays inside the max SL cap.
func (c *TPSLCalculator) stopLoss(in TPSLInput, buffer float64, limits RiskLimits) (candidate, bool) {
	long := in.Direction == models.Long
	entry := in.Entry
	var cands []candidate

	if long {
		if lvl, ok := nearestLevel(in.Levels, analysis.LevelSupport, slLevelMinStrength, entry, false); ok {
			cands = append(cands, candidate{lvl.Price - buffer, MethodStrongSupport})
		}
		if r, ok := in.Fib.Retracement(analysis.RatioDeep); ok && r.Price < entry {
			cands = append(cands, candidate{r.Price - buffer, MethodFib0786})
		}
		if sw, ok := nearestSwing(in.Swings, analysis.SwingLow, entry, false); ok {
			cands = append(cands, candidate{sw.Price - buffer, MethodSwingLow})
		}
		if in.Bands.Lower > 0 && in.Bands.Lower < entry {
			cands = append(cands, candidate{in.Bands.Lower - buffer*bandBufferFraction, MethodBBLower})
		}
	} else {
		if lvl, ok := nearestLevel(in.Levels, analysis.LevelResistance, slLevelMinStrength, entry, true); ok {
			cands = append(cands, candidate{lvl.Price + buffer, MethodStrongResistance})
		}
		if r, ok := in.Fib.Retracement(analysis.RatioDeep); ok && r.Price > entry {
			cands = append(cands, candidate{r.Price + buffer, MethodFib0786})
		}
		if sw, ok := nearestSwing(in.Swings, analysis.SwingHigh, entry, true); ok {
			cands = append(cands, candidate{sw.Price + buffer, MethodSwingHigh})
		}
		if in.Bands.Upper > 0 && in.Bands.Upper > entry {
			cands = append(cands, candidate{in.Bands.Upper + buffer*bandBufferFraction, MethodBBUpper})
		}
	}

	fallback := candidate{entry - in.ATR*atrFallbackMult, MethodATRFallback}
	if !long {
		fallback.price = entry + in.ATR*atrFallbackMult
	}
	cands = append(cands, fallback)

	// Candidates past the cap are dropped; the fallback is the last resort and
	// also has to respect it.
	var best candidate
	found := false
	for _, cand := range cands {
		if utils.PctDistance(cand.price, entry) > limits.MaxSLPct {
			continue
		}
		if !found || closer(cand.price, best.price, long) {
			best = cand
			found = true
		}
	}
	return best, found
}

func (c *TPSLCalculator) takeProfit1(in TPSLInput, risk float64, limits RiskLimits) candidate {
	long := in.Direction == models.Long
	entry := in.Entry
	target := analysis.LevelResistance
	levelMethod, swingMethod, swingKind := MethodStrongResistance, MethodSwingHigh, analysis.SwingHigh
	if !long {
		target = analysis.LevelSupport
		levelMethod, swingMethod, swingKind = MethodStrongSupport, MethodSwingLow, analysis.SwingLow
	}

	var cands []candidate
	if in.Fib != nil {
		for _, ext := range in.Fib.Extensions {
			if !beyond(ext.Price, entry, long) {
				continue
			}
			if levelNear(in.Levels, target, ext.Price, tp1ExtLevelTolPct) {
				cands = append(cands, candidate{ext.Price, MethodFibExtAtLevel})
			}
		}
	}
	if lvl, ok := nearestLevel(in.Levels, target, tpLevelMinStrength, entry, long); ok {
		cands = append(cands, candidate{lvl.Price, levelMethod})
	}
	if sw, ok := nearestSwing(in.Swings, swingKind, entry, long); ok {
		cands = append(cands, candidate{sw.Price, swingMethod})
	}
	if in.Bands.Mid > 0 && beyond(in.Bands.Mid, entry, long) {
		cands = append(cands, candidate{in.Bands.Mid, MethodBBMid})
	}
	cands = append(cands, candidate{offset(entry, risk*limits.MinRRTP1, long), MethodATRFallback})

	tp := pickTarget(cands, entry, long)
	if math.Abs(tp.price-entry)/risk < limits.MinRRTP1 {
		tp = candidate{offset(entry, risk*limits.MinRRTP1, long), MethodMinRRFallback}
	}
	return tp
}

// takeProfit2 only considers targets beyond tp1. TP1 never passes the TP1
// fallback, so the TP2 fallback always qualifies.
func (c *TPSLCalculator) takeProfit2(in TPSLInput, tp1, risk float64, limits RiskLimits) candidate {
	long := in.Direction == models.Long
	entry := in.Entry
	target := analysis.LevelResistance
	nextMethod, bandMethod, band := MethodNextResistance, MethodBBUpper, in.Bands.Upper
	if !long {
		target = analysis.LevelSupport
		nextMethod, bandMethod, band = MethodNextSupport, MethodBBLower, in.Bands.Lower
	}

	ext, hasExt := in.Fib.Extension(analysis.RatioGoldenExt)
	hasExt = hasExt && beyond(ext.Price, tp1, long)

	var cands []candidate
	if hasExt && levelNear(in.Levels, target, ext.Price, tp2ExtLevelTolPct) {
		cands = append(cands, candidate{ext.Price, MethodFib1618AtLevel})
	}
	if lvl, ok := nearestLevel(in.Levels, target, tpLevelMinStrength, tp1, long); ok {
		cands = append(cands, candidate{lvl.Price, nextMethod})
	}
	if hasExt {
		cands = append(cands, candidate{ext.Price, MethodFib1618})
	}
	if band > 0 && beyond(band, tp1, long) {
		cands = append(cands, candidate{band, bandMethod})
	}
	cands = append(cands, candidate{offset(entry, risk*limits.MinRRTP2, long), MethodATRFallback})

	tp := pickTarget(cands, tp1, long)
	if math.Abs(tp.price-entry)/risk < limits.MinRRTP2 {
		tp = candidate{offset(entry, risk*limits.MinRRTP2, long), MethodMinRRFallback}
	}
	return tp
}

// pickTarget returns the candidate nearest beyond ref, or the last candidate
// when none lies beyond it.
func pickTarget(cands []candidate, ref float64, long bool) candidate {
	var best candidate
	found := false
	for _, cand := range cands {
		if !beyond(cand.price, ref, long) {
			continue
		}
		if !found || closer(cand.price, best.price, !long) {
			best = cand
			found = true
		}
	}
	if !found {
		return cands[len(cands)-1]
	}
	return best
}

// nearestLevel returns the strongest-enough level of type t closest to ref on
// the given side (above when up is true).
func nearestLevel(levels []analysis.PriceLevel, t analysis.LevelType, minStrength int, ref float64, up bool) (analysis.PriceLevel, bool) {
	var best analysis.PriceLevel
	found := false
	for _, lvl := range levels {
		if lvl.Type != t || lvl.Strength < minStrength || !beyond(lvl.Price, ref, up) {
			continue
		}
		if !found || closer(lvl.Price, best.Price, !up) {
			best = lvl
			found = true
		}
	}
	return best, found
}

func nearestSwing(swings []analysis.SwingPoint, kind analysis.SwingKind, ref float64, up bool) (analysis.SwingPoint, bool) {
	var best analysis.SwingPoint
	found := false
	for _, sw := range swings {
		if sw.Kind != kind || !beyond(sw.Price, ref, up) {
			continue
		}
		if !found || closer(sw.Price, best.Price, !up) {
			best = sw
			found = true
		}
	}
	return best, found
}

// levelNear reports whether a level of type t with target strength sits within tolPct of price.
func levelNear(levels []analysis.PriceLevel, t analysis.LevelType, price, tolPct float64) bool {
	for _, lvl := range levels {
		if lvl.Type == t && lvl.Strength >= tpLevelMinStrength && utils.Near(price, lvl.Price, tolPct) {
			return true
		}
	}
	return false
}

// beyond reports whether p lies strictly above ref (up) or below it.
func beyond(p, ref float64, up bool) bool {
	if up {
		return p > ref
	}
	return p < ref
}

// closer reports whether a beats b: the higher price when high is true.
func closer(a, b float64, high bool) bool {
	if high {
		return a > b
	}
	return a < b
}

func offset(from, dist float64, up bool) float64 {
	if up {
		return from + dist
	}
	return from - dist
}
