package levels

import "btc-intel/internal/analysis"

// MaxStrength is the ceiling of a level's strength score.
const MaxStrength = 20

// Classification is the strength tier of a level.
type Classification string

const (
	ClassCritical Classification = "critical"
	ClassStrong   Classification = "strong"
	ClassModerate Classification = "moderate"
	ClassWeak     Classification = "weak"
)

// Scorer assigns each level a deterministic 0-20 strength.
type Scorer struct{}

// NewScorer creates a level scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

func (s *Scorer) Name() string {
	return "LevelScorer"
}

// Score computes the strength of one level.
func (s *Scorer) Score(lv analysis.PriceLevel) int {
	score := lv.TouchCount * 2
	if score > 8 {
		score = 8
	}
	if score < 0 {
		score = 0
	}

	switch n := len(lv.Timeframes); {
	case n >= 3:
		score += 4
	case n >= 2:
		score += 2
	}

	if lv.FibCoincident {
		score += 3
	}
	if lv.RoleFlip {
		score += 3
	}
	if lv.HighVolume {
		score += 2
	}
	if lv.Psychological {
		score += 1
	}
	if lv.LastTouchDays < 30 {
		score += 1
	}

	if score > MaxStrength {
		score = MaxStrength
	}
	return score
}

// ScoreAll writes each level's strength in place.
func (s *Scorer) ScoreAll(levels []analysis.PriceLevel) {
	for i := range levels {
		levels[i].Strength = s.Score(levels[i])
	}
}

// Classify maps a strength to its tier.
func Classify(strength int) Classification {
	switch {
	case strength >= 15:
		return ClassCritical
	case strength >= 10:
		return ClassStrong
	case strength >= 5:
		return ClassModerate
	default:
		return ClassWeak
	}
}
