package analysis

import (
	"time"

	"btc-intel/internal/models"
)

// Retracement ratios with special meaning downstream.
const (
	RatioGoldenRatio  = 0.618
	RatioGoldenPocket = 0.65
	RatioDeep         = 0.786
	RatioGoldenExt    = 1.618
)

// RetracementLevel is one Fibonacci retracement price with its entry band.
type RetracementLevel struct {
	Ratio    float64 `json:"ratio"`
	Label    string  `json:"label"`
	Price    float64 `json:"price"`
	ZoneLow  float64 `json:"zone_low"`
	ZoneHigh float64 `json:"zone_high"`
	Quality  int     `json:"quality"`
}

// IsGoldenPocket reports whether the ratio falls in the 0.618-0.650 pocket.
func (r RetracementLevel) IsGoldenPocket() bool {
	return r.Ratio == RatioGoldenRatio || r.Ratio == RatioGoldenPocket
}

// ExtensionLevel is a projected Fibonacci target.
type ExtensionLevel struct {
	Ratio float64 `json:"ratio"`
	Label string  `json:"label"`
	Price float64 `json:"price"`
}

// FibonacciAnalysis holds one timeframe's retracements and extensions.
type FibonacciAnalysis struct {
	Timeframe     models.Timeframe   `json:"timeframe"`
	Direction     models.Direction   `json:"direction"`
	SwingHigh     float64            `json:"swing_high"`
	SwingHighTime time.Time          `json:"swing_high_time"`
	SwingLow      float64            `json:"swing_low"`
	SwingLowTime  time.Time          `json:"swing_low_time"`
	Retracements  []RetracementLevel `json:"retracements"`
	Extensions    []ExtensionLevel   `json:"extensions"`
}

// Retracement returns the retracement with the given ratio.
func (f *FibonacciAnalysis) Retracement(ratio float64) (RetracementLevel, bool) {
	if f == nil {
		return RetracementLevel{}, false
	}
	for _, r := range f.Retracements {
		if r.Ratio == ratio {
			return r, true
		}
	}
	return RetracementLevel{}, false
}

// Extension returns the extension with the given ratio.
func (f *FibonacciAnalysis) Extension(ratio float64) (ExtensionLevel, bool) {
	if f == nil {
		return ExtensionLevel{}, false
	}
	for _, e := range f.Extensions {
		if e.Ratio == ratio {
			return e, true
		}
	}
	return ExtensionLevel{}, false
}

// Confluence is a price where Fibonacci levels from several timeframes meet.
type Confluence struct {
	Price         float64            `json:"price"`
	Timeframes    []models.Timeframe `json:"timeframes"`
	NumTimeframes int                `json:"num_timeframes"`
	Ratios        []float64          `json:"ratios"`
	Labels        []string           `json:"labels"`
	Directions    []models.Direction `json:"directions"`
	MaxQuality    int                `json:"max_quality"`
	ZoneLow       float64            `json:"zone_low"`
	ZoneHigh      float64            `json:"zone_high"`
	Strength      int                `json:"strength"`
	Major         bool               `json:"major"`
}
