package fibonacci

import (
	"btc-intel/internal/analysis"
	"btc-intel/internal/models"
	"btc-intel/pkg/utils"
)

// zoneWidth is the half-width of a retracement's entry band.
const zoneWidth = 0.003

type retracementDef struct {
	ratio   float64
	label   string
	quality int
}

var retracementTable = []retracementDef{
	{0.236, "Shallow", 2},
	{0.382, "Moderate", 5},
	{0.5, "Mid", 6},
	{analysis.RatioGoldenRatio, "Golden Ratio", 9},
	{analysis.RatioGoldenPocket, "Golden Pocket", 10},
	{analysis.RatioDeep, "Deep", 7},
}

type extensionDef struct {
	ratio float64
	label string
}

var extensionTable = []extensionDef{
	{1.0, "Measured Move"},
	{1.272, "Standard"},
	{analysis.RatioGoldenExt, "Golden Extension"},
	{2.0, "Double Move"},
	{2.618, "Extended"},
}

// Engine produces Fibonacci retracements and extensions per timeframe.
type Engine struct {
	finder *SwingFinder
}

// NewEngine creates a new Fibonacci engine.
func NewEngine() *Engine {
	return &Engine{finder: NewSwingFinder()}
}

func (e *Engine) Name() string {
	return "FibonacciEngine"
}

// Calculate anchors a grid on the most recent significant high and low of
// candles. It returns false when there are not enough swings or the swing
// range is empty.
func (e *Engine) Calculate(tf models.Timeframe, candles []models.Candle, currentPrice float64) (analysis.FibonacciAnalysis, bool) {
	swings := e.finder.Find(tf, candles)
	if len(swings) < 2 {
		return analysis.FibonacciAnalysis{}, false
	}

	high, okHigh := lastOfKind(swings, analysis.SwingHigh)
	low, okLow := lastOfKind(swings, analysis.SwingLow)
	if !okHigh || !okLow {
		return analysis.FibonacciAnalysis{}, false
	}

	direction := models.Short
	if !high.Time.Before(low.Time) {
		direction = models.Long
	}

	retracements := Retracements(low.Price, high.Price, direction)
	if len(retracements) == 0 {
		return analysis.FibonacciAnalysis{}, false
	}

	return analysis.FibonacciAnalysis{
		Timeframe:     tf,
		Direction:     direction,
		SwingHigh:     high.Price,
		SwingHighTime: high.Time,
		SwingLow:      low.Price,
		SwingLowTime:  low.Time,
		Retracements:  retracements,
		Extensions:    Extensions(low.Price, high.Price, currentPrice, direction),
	}, true
}

// ScanAll runs Calculate for every timeframe that has a series in data.
func (e *Engine) ScanAll(data map[models.Timeframe][]models.Candle, currentPrice float64) map[models.Timeframe]analysis.FibonacciAnalysis {
	out := make(map[models.Timeframe]analysis.FibonacciAnalysis)
	for _, tf := range models.AllTimeframes {
		candles, ok := data[tf]
		if !ok {
			continue
		}
		if fa, ok := e.Calculate(tf, candles, currentPrice); ok {
			out[tf] = fa
		}
	}
	return out
}

// Retracements returns the retracement grid between swingLow and swingHigh.
// LONG grids measure down from the high, SHORT grids up from the low.
func Retracements(swingLow, swingHigh float64, direction models.Direction) []analysis.RetracementLevel {
	diff := swingHigh - swingLow
	if diff <= 0 {
		return nil
	}

	levels := make([]analysis.RetracementLevel, 0, len(retracementTable))
	for _, def := range retracementTable {
		price := swingLow + diff*def.ratio
		if direction == models.Long {
			price = swingHigh - diff*def.ratio
		}
		levels = append(levels, analysis.RetracementLevel{
			Ratio:    def.ratio,
			Label:    def.label,
			Price:    utils.Round2(price),
			ZoneLow:  utils.Round2(price * (1 - zoneWidth)),
			ZoneHigh: utils.Round2(price * (1 + zoneWidth)),
			Quality:  def.quality,
		})
	}
	return levels
}

// Extensions projects the swing range from origin in the trade direction.
func Extensions(swingLow, swingHigh, origin float64, direction models.Direction) []analysis.ExtensionLevel {
	diff := swingHigh - swingLow
	if diff <= 0 {
		return nil
	}

	levels := make([]analysis.ExtensionLevel, 0, len(extensionTable))
	for _, def := range extensionTable {
		price := origin - diff*def.ratio
		if direction == models.Long {
			price = origin + diff*def.ratio
		}
		levels = append(levels, analysis.ExtensionLevel{
			Ratio: def.ratio,
			Label: def.label,
			Price: utils.Round2(price),
		})
	}
	return levels
}

func lastOfKind(swings []analysis.SwingPoint, kind analysis.SwingKind) (analysis.SwingPoint, bool) {
	var (
		best  analysis.SwingPoint
		found bool
	)
	for _, s := range swings {
		if s.Kind != kind {
			continue
		}
		if !found || !s.Time.Before(best.Time) {
			best = s
			found = true
		}
	}
	return best, found
}
