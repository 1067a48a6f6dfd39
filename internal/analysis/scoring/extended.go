package scoring

import (
	"math"

	"btc-intel/internal/analysis"
	"btc-intel/internal/analysis/indicators"
	"btc-intel/internal/models"
	"btc-intel/pkg/utils"
)

// Bonus and penalty points.
const (
	bonusGranNivel       = 8
	bonusGoldenPocket    = 7
	bonusFibConfluence   = 6
	bonusLevelPlusFib    = 5
	bonusRoleFlip        = 4
	bonusPsychological   = 1
	bonusStrongAtLevel   = 8
	bonusModerateAtLevel = 5
	bonusStrongNoLevel   = 4
	bonusVolumeConfirms  = 2
	bonusFearLong        = 4
	bonusGreedShort      = 4
	bonusFunding         = 3
	bonusOIOrganic       = 3

	penaltyNoLevel       = -5
	penaltyAgainstHTF    = -8
	penaltyOverextended  = -5
	penaltyLowVolume     = -3
	penaltyContraOnChain = -5
)

// Component caps.
const (
	maxLevelBonus   = 20
	maxCandleBonus  = 10
	maxOnChainBonus = 10
	minPenalties    = -15
)

// Classification is the quality tier of an extended score.
type Classification string

const (
	ClassPremium  Classification = "PREMIUM"
	ClassStrong   Classification = "STRONG"
	ClassValid    Classification = "VALID"
	ClassWeak     Classification = "WEAK"
	ClassRejected Classification = "REJECTED"
)

// Classify maps a final score to its tier.
func Classify(score int) Classification {
	switch {
	case score >= 85:
		return ClassPremium
	case score >= 70:
		return ClassStrong
	case score >= 55:
		return ClassValid
	case score >= 40:
		return ClassWeak
	}
	return ClassRejected
}

// OnChain holds optional sentiment and derivatives readings. Nil fields
// are unknown and contribute nothing.
type OnChain struct {
	FearGreed   *float64 `json:"fear_greed,omitempty"`
	FundingRate *float64 `json:"funding_rate,omitempty"`
	OIChangePct *float64 `json:"oi_change_pct,omitempty"`
}

// ExtendedInput is everything the extended scorer considers.
type ExtendedInput struct {
	BaseConfidence float64
	Price          float64
	Direction      models.Direction
	Timeframe      models.Timeframe
	Levels         []analysis.PriceLevel
	Fib            *analysis.FibonacciAnalysis
	Confluences    []analysis.Confluence
	Patterns       []analysis.CandlePattern
	OnChain        OnChain
	Indicators     indicators.Snapshot

	// HTFDirection is the higher-timeframe side, empty when unknown or neutral.
	HTFDirection models.Direction
}

// ExtendedScore is the bonus breakdown and final score.
type ExtendedScore struct {
	BaseConfidence float64        `json:"base_confidence"`
	BonusLevels    int            `json:"bonus_levels"`
	BonusCandles   int            `json:"bonus_candles"`
	BonusOnChain   int            `json:"bonus_onchain"`
	Penalties      int            `json:"penalties"`
	FinalScore     int            `json:"final_score"`
	Classification Classification `json:"classification"`
}

// ExtendedScorer adds structural bonuses and penalties to a base score.
type ExtendedScorer struct{}

// NewExtendedScorer creates a new extended scorer.
func NewExtendedScorer() *ExtendedScorer {
	return &ExtendedScorer{}
}

func (s *ExtendedScorer) Name() string {
	return "ExtendedScorer"
}

// Score computes the extended score. The final score is the sum of the base
// and each capped component, rounded half to even and clamped to [0, 100].
func (s *ExtendedScorer) Score(in ExtendedInput) ExtendedScore {
	levels := min(s.levelBonus(in), maxLevelBonus)
	candles := min(s.candleBonus(in), maxCandleBonus)
	onchain := min(s.onChainBonus(in), maxOnChainBonus)
	penalties := max(s.penalties(in), minPenalties)

	raw := in.BaseConfidence + float64(levels+candles+onchain+penalties)
	final := int(math.Max(0, math.Min(100, math.RoundToEven(raw))))

	return ExtendedScore{
		BaseConfidence: utils.Round(in.BaseConfidence, 1),
		BonusLevels:    levels,
		BonusCandles:   candles,
		BonusOnChain:   onchain,
		Penalties:      penalties,
		FinalScore:     final,
		Classification: Classify(final),
	}
}

func (s *ExtendedScorer) levelBonus(in ExtendedInput) int {
	const proximity = 1.0
	bonus := 0

	var gran, flip, psych bool
	for _, lv := range in.Levels {
		if !utils.Near(in.Price, lv.Price, proximity) {
			continue
		}
		gran = gran || lv.Strength >= 10
		flip = flip || lv.RoleFlip
		psych = psych || lv.Psychological
	}
	if gran {
		bonus += bonusGranNivel
	}

	golden := false
	if in.Fib != nil {
		for _, r := range in.Fib.Retracements {
			if r.IsGoldenPocket() && utils.Near(in.Price, r.Price, proximity) {
				bonus += bonusGoldenPocket
				golden = true
				break
			}
		}
	}

	for _, c := range in.Confluences {
		if c.NumTimeframes >= 2 && utils.Near(in.Price, c.Price, proximity) {
			bonus += bonusFibConfluence
			break
		}
	}

	if !golden && gran && in.Fib != nil {
		for _, r := range in.Fib.Retracements {
			if utils.Near(in.Price, r.Price, proximity) {
				bonus += bonusLevelPlusFib
				break
			}
		}
	}

	if flip {
		bonus += bonusRoleFlip
	}
	if psych {
		bonus += bonusPsychological
	}
	return bonus
}

func (s *ExtendedScorer) candleBonus(in ExtendedInput) int {
	strongest, ok := analysis.StrongestPattern(in.Patterns, in.Direction, 0)
	if !ok {
		return 0
	}

	atLevel := false
	for _, lv := range in.Levels {
		if lv.Strength >= 8 && utils.Near(in.Price, lv.Price, 1.0) {
			atLevel = true
			break
		}
	}

	bonus := 0
	switch {
	case strongest.Strength >= 7 && atLevel:
		bonus += bonusStrongAtLevel
	case strongest.Strength >= 5 && atLevel:
		bonus += bonusModerateAtLevel
	case strongest.Strength >= 7:
		bonus += bonusStrongNoLevel
	}

	if snap := in.Indicators; snap.VolumeSMA20 > 0 && snap.Volume > snap.VolumeSMA20 {
		bonus += bonusVolumeConfirms
	}
	return bonus
}

// onChainBonus only applies on 4H and higher.
func (s *ExtendedScorer) onChainBonus(in ExtendedInput) int {
	switch in.Timeframe {
	case models.TF4H, models.TF1D, models.TF1W:
	default:
		return 0
	}

	bonus := 0
	if fg := in.OnChain.FearGreed; fg != nil {
		switch {
		case *fg < 20 && in.Direction == models.Long:
			bonus += bonusFearLong
		case *fg > 80 && in.Direction == models.Short:
			bonus += bonusGreedShort
		}
	}
	if fr := in.OnChain.FundingRate; fr != nil {
		if (*fr > 0.05 && in.Direction == models.Short) || (*fr < -0.03 && in.Direction == models.Long) {
			bonus += bonusFunding
		}
	}
	if oi := in.OnChain.OIChangePct; oi != nil && *oi < -10 {
		bonus += bonusOIOrganic
	}
	return bonus
}

// opposes reports whether two directions point opposite ways. NEUTRAL or
// unknown on either side never opposes.
func opposes(a, b models.Direction) bool {
	return (a == models.Long && b == models.Short) || (a == models.Short && b == models.Long)
}

func (s *ExtendedScorer) penalties(in ExtendedInput) int {
	penalty := 0

	clearLevel := false
	for _, lv := range in.Levels {
		if lv.Strength >= 6 && utils.Near(in.Price, lv.Price, 2.0) {
			clearLevel = true
			break
		}
	}
	if !clearLevel {
		penalty += penaltyNoLevel
	}

	if opposes(in.Direction, in.HTFDirection) {
		penalty += penaltyAgainstHTF
	}

	if ema := in.Indicators.EMA21; ema > 0 && utils.PctDistance(in.Price, ema) > 5 {
		penalty += penaltyOverextended
	}

	if snap := in.Indicators; snap.VolumeSMA20 > 0 && snap.Volume < snap.VolumeSMA20*0.7 {
		penalty += penaltyLowVolume
	}

	if fg := in.OnChain.FearGreed; fg != nil {
		if (in.Direction == models.Long && *fg > 85) || (in.Direction == models.Short && *fg < 15) {
			penalty += penaltyContraOnChain
		}
	}
	return penalty
}
