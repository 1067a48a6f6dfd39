package analysis

import "btc-intel/internal/models"

// PatternID identifies a candlestick pattern in the fixed catalogue.
type PatternID string

const (
	BullishEngulfing   PatternID = "bullish_engulfing"
	Hammer             PatternID = "hammer"
	InvertedHammer     PatternID = "inverted_hammer"
	MorningStar        PatternID = "morning_star"
	ThreeWhiteSoldiers PatternID = "three_white_soldiers"
	BullishPinBar      PatternID = "bullish_pin_bar"
	BearishEngulfing   PatternID = "bearish_engulfing"
	ShootingStar       PatternID = "shooting_star"
	EveningStar        PatternID = "evening_star"
	ThreeBlackCrows    PatternID = "three_black_crows"
	BearishPinBar      PatternID = "bearish_pin_bar"
	Doji               PatternID = "doji"
)

// CandlePattern is a detected pattern on the most recent candles.
type CandlePattern struct {
	ID        PatternID        `json:"pattern"`
	Direction models.Direction `json:"direction"`
	Strength  int              `json:"strength"`
	Candles   int              `json:"candles"`
}

// StrongestPattern returns the strongest pattern in direction d with
// strength >= minStrength. The first one wins ties.
func StrongestPattern(patterns []CandlePattern, d models.Direction, minStrength int) (CandlePattern, bool) {
	var best CandlePattern
	found := false
	for _, p := range patterns {
		if p.Direction != d || p.Strength < minStrength {
			continue
		}
		if !found || p.Strength > best.Strength {
			best = p
			found = true
		}
	}
	return best, found
}

// SetupType classifies how a trade idea is entered.
type SetupType string

const (
	SetupPullback SetupType = "pullback"
	SetupBreakout SetupType = "breakout"
	SetupReversal SetupType = "reversal"
)

// Reliability is the qualitative confidence of a setup.
type Reliability string

const (
	ReliabilityHigh   Reliability = "high"
	ReliabilityMedium Reliability = "medium"
	ReliabilityLow    Reliability = "low"
)

// EntryZoneType names the structure that qualified an entry.
type EntryZoneType string

const (
	ZoneGoldenPocketPlusLevel EntryZoneType = "golden_pocket_plus_level"
	ZoneGranNivel             EntryZoneType = "gran_nivel"
	ZoneFibOnly               EntryZoneType = "fib_only"
	ZoneBreakout              EntryZoneType = "breakout"
	ZoneReversal              EntryZoneType = "reversal"
)

// EntryZone carries the values that qualified a setup. Zero values mean not applicable.
type EntryZone struct {
	Type             EntryZoneType `json:"zone_type"`
	Name             string        `json:"name"`
	LevelPrice       float64       `json:"level_price,omitempty"`
	LevelStrength    int           `json:"level_strength,omitempty"`
	FibRatio         float64       `json:"fib_ratio,omitempty"`
	FibPrice         float64       `json:"fib_price,omitempty"`
	VolumeMultiplier float64       `json:"volume_multiplier,omitempty"`
	RSI              float64       `json:"rsi,omitempty"`
	Pattern          PatternID     `json:"pattern,omitempty"`
}

// Setup is a classified trade idea.
type Setup struct {
	Type        SetupType        `json:"type"`
	Direction   models.Direction `json:"direction"`
	EntryZone   EntryZone        `json:"entry_zone"`
	Description string           `json:"description"`
	Reliability Reliability      `json:"reliability"`
}
