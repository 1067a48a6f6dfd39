// Package analysis provides the value types shared by the level, Fibonacci,
// pattern, setup and scoring engines.
package analysis

import (
	"sort"
	"time"

	"btc-intel/internal/models"
)

// SwingKind marks a pivot as a local high or low.
type SwingKind string

const (
	SwingHigh SwingKind = "high"
	SwingLow  SwingKind = "low"
)

// SwingPoint is a confirmed pivot. Immutable once created.
type SwingPoint struct {
	Price       float64          `json:"price"`
	Kind        SwingKind        `json:"kind"`
	Time        time.Time        `json:"time"`
	Timeframe   models.Timeframe `json:"timeframe"`
	PercentMove float64          `json:"percent_move"`
}

// LevelType represents the type of price level.
type LevelType string

const (
	LevelSupport    LevelType = "support"
	LevelResistance LevelType = "resistance"
)

// LevelTypeFor returns support when price sits below current, resistance otherwise.
func LevelTypeFor(price, current float64) LevelType {
	if price < current {
		return LevelSupport
	}
	return LevelResistance
}

// Title returns the capitalised type name used in setup descriptions.
func (t LevelType) Title() string {
	switch t {
	case LevelSupport:
		return "Support"
	case LevelResistance:
		return "Resistance"
	}
	return string(t)
}

// Source tags where a level was observed.
type Source string

const (
	SourceSwing         Source = "swing"
	SourceVolumeProfile Source = "volume_profile"
	SourcePsychological Source = "psychological"
)

// NoRecentTouch is the days-since-touch value for levels never touched.
const NoRecentTouch = 999

// PriceLevel is a support or resistance level with the evidence behind it.
type PriceLevel struct {
	Price         float64            `json:"price"`
	Type          LevelType          `json:"type"`
	Strength      int                `json:"strength"`
	Sources       []Source           `json:"sources"`
	Timeframes    []models.Timeframe `json:"timeframes"`
	TouchCount    int                `json:"touch_count"`
	LastTouch     time.Time          `json:"last_touch,omitempty"`
	LastTouchDays int                `json:"last_touch_days"`
	FibCoincident bool               `json:"fib_coincident"`
	FibRatio      float64            `json:"fib_ratio,omitempty"`
	RoleFlip      bool               `json:"role_flip"`
	FlipDate      time.Time          `json:"flip_date,omitempty"`
	HighVolume    bool               `json:"high_volume"`
	Psychological bool               `json:"psychological"`
}

// HasSource reports whether the level carries the given source tag.
func (l *PriceLevel) HasSource(s Source) bool {
	for _, src := range l.Sources {
		if src == s {
			return true
		}
	}
	return false
}

// AddSource adds a source tag if not already present.
func (l *PriceLevel) AddSource(s Source) {
	if !l.HasSource(s) {
		l.Sources = append(l.Sources, s)
	}
}

// HasTimeframe reports whether the level was observed on tf.
func (l *PriceLevel) HasTimeframe(tf models.Timeframe) bool {
	for _, t := range l.Timeframes {
		if t == tf {
			return true
		}
	}
	return false
}

// AddTimeframe records tf if not already present.
func (l *PriceLevel) AddTimeframe(tf models.Timeframe) {
	if tf != "" && !l.HasTimeframe(tf) {
		l.Timeframes = append(l.Timeframes, tf)
	}
}

// Zone is a band of nearby scored levels collapsed together.
type Zone struct {
	PriceLow   float64            `json:"price_low"`
	PriceHigh  float64            `json:"price_high"`
	PriceMid   float64            `json:"price_mid"`
	Strength   int                `json:"strength"`
	Type       LevelType          `json:"type"`
	Sources    []Source           `json:"sources"`
	TouchCount int                `json:"touch_count"`
	Timeframes []models.Timeframe `json:"timeframes"`
	FibRatios  []float64          `json:"fib_ratios"`
	MajorLevel bool               `json:"major_level"`
}

// Trend is the indicator-derived trend state of a timeframe.
type Trend string

const (
	TrendStrongBullish Trend = "strong_bullish"
	TrendBullish       Trend = "bullish"
	TrendNeutral       Trend = "neutral"
	TrendBearish       Trend = "bearish"
	TrendStrongBearish Trend = "strong_bearish"
)

// Aligned reports whether the trend supports a signal in direction d.
func (t Trend) Aligned(d models.Direction) bool {
	switch d {
	case models.Long:
		return t == TrendBullish || t == TrendStrongBullish
	case models.Short:
		return t == TrendBearish || t == TrendStrongBearish
	}
	return false
}

// SortedSources returns the sources sorted and deduplicated.
func SortedSources(in []Source) []Source {
	seen := make(map[Source]bool, len(in))
	out := make([]Source, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SortedTimeframes returns the timeframes sorted and deduplicated.
func SortedTimeframes(in []models.Timeframe) []models.Timeframe {
	seen := make(map[models.Timeframe]bool, len(in))
	out := make([]models.Timeframe, 0, len(in))
	for _, tf := range in {
		if !seen[tf] {
			seen[tf] = true
			out = append(out, tf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SortedFloats returns the values sorted ascending and deduplicated.
func SortedFloats(in []float64) []float64 {
	seen := make(map[float64]bool, len(in))
	out := make([]float64, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}
