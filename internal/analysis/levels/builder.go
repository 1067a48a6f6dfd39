package levels

import (
	"math"
	"time"

	"btc-intel/internal/analysis"
	"btc-intel/internal/models"
	"btc-intel/pkg/utils"
)

// Default proximity tolerances, in percent of the reference price.
const (
	DefaultMergeTolerancePct = 0.3
	DefaultFibTolerancePct   = 0.5
)

// Builder merges swing, volume-profile and psychological observations into
// one deduplicated level set.
type Builder struct {
	mergeTolerancePct float64 // same-level proximity
	fibTolerancePct   float64 // Fibonacci coincidence proximity
}

// NewBuilder creates a level builder with the default tolerances.
func NewBuilder() *Builder {
	return &Builder{
		mergeTolerancePct: DefaultMergeTolerancePct,
		fibTolerancePct:   DefaultFibTolerancePct,
	}
}

// NewBuilderWithTolerance creates a level builder with custom tolerances.
func NewBuilderWithTolerance(mergePct, fibPct float64) *Builder {
	return &Builder{
		mergeTolerancePct: mergePct,
		fibTolerancePct:   fibPct,
	}
}

func (b *Builder) Name() string {
	return "LevelBuilder"
}

// Build converts swings into levels, then folds in volume zones and
// psychological levels, in that order.
func (b *Builder) Build(swings []analysis.SwingPoint, zones []VolumeZone, currentPrice float64, now time.Time) []analysis.PriceLevel {
	levels := b.FromSwings(swings, now)
	levels = b.Merge(levels, FromVolumeZones(zones, currentPrice))
	levels = b.Merge(levels, PsychologicalLevels(currentPrice))
	return levels
}

// FromSwings converts swings into levels. A swing within tolerance of an
// existing level is merged into the first such level.
func (b *Builder) FromSwings(swings []analysis.SwingPoint, now time.Time) []analysis.PriceLevel {
	if len(swings) == 0 {
		return nil
	}

	var levels []analysis.PriceLevel
	for _, s := range swings {
		days := daysBetween(s.Time, now)

		if idx := b.findMatch(levels, s.Price); idx >= 0 {
			existing := &levels[idx]
			existing.TouchCount++
			existing.AddTimeframe(s.Timeframe)
			existing.AddSource(analysis.SourceSwing)
			if days < existing.LastTouchDays {
				existing.LastTouchDays = days
				existing.LastTouch = s.Time
			}
			continue
		}

		levelType := analysis.LevelResistance
		if s.Kind == analysis.SwingLow {
			levelType = analysis.LevelSupport
		}
		levels = append(levels, analysis.PriceLevel{
			Price:         utils.Round2(s.Price),
			Type:          levelType,
			Sources:       []analysis.Source{analysis.SourceSwing},
			Timeframes:    []models.Timeframe{s.Timeframe},
			TouchCount:    1,
			LastTouch:     s.Time,
			LastTouchDays: days,
		})
	}
	return levels
}

// FromVolumeZones converts volume zones into untouched high-volume levels.
func FromVolumeZones(zones []VolumeZone, currentPrice float64) []analysis.PriceLevel {
	out := make([]analysis.PriceLevel, 0, len(zones))
	for _, z := range zones {
		out = append(out, analysis.PriceLevel{
			Price:         utils.Round2(z.Price),
			Type:          analysis.LevelTypeFor(z.Price, currentPrice),
			Sources:       []analysis.Source{analysis.SourceVolumeProfile},
			HighVolume:    true,
			LastTouchDays: analysis.NoRecentTouch,
		})
	}
	return out
}

// Merge folds incoming into base. Matching entries combine sources,
// timeframes, flags, touches and the most recent touch; the rest are
// appended and may absorb later incoming entries.
func (b *Builder) Merge(base, incoming []analysis.PriceLevel) []analysis.PriceLevel {
	for _, in := range incoming {
		idx := b.findMatch(base, in.Price)
		if idx < 0 {
			base = append(base, in)
			continue
		}

		existing := &base[idx]
		for _, src := range in.Sources {
			existing.AddSource(src)
		}
		for _, tf := range in.Timeframes {
			existing.AddTimeframe(tf)
		}
		existing.HighVolume = existing.HighVolume || in.HighVolume
		existing.Psychological = existing.Psychological || in.Psychological
		if in.LastTouchDays < existing.LastTouchDays {
			existing.LastTouchDays = in.LastTouchDays
			existing.LastTouch = in.LastTouch
		}
		existing.TouchCount += in.TouchCount
	}
	return base
}

// MarkFibCoincidence flags every level lying within the Fibonacci
// tolerance of a retracement price, recording the closest ratio.
func (b *Builder) MarkFibCoincidence(levels []analysis.PriceLevel, fibs []analysis.FibonacciAnalysis) {
	for i := range levels {
		lv := &levels[i]
		if lv.Price <= 0 {
			continue
		}
		bestDist := math.Inf(1)
		for _, f := range fibs {
			for _, r := range f.Retracements {
				dist := math.Abs(r.Price-lv.Price) / lv.Price * 100
				if dist <= b.fibTolerancePct && dist < bestDist {
					bestDist = dist
					lv.FibCoincident = true
					lv.FibRatio = r.Ratio
				}
			}
		}
	}
}

func (b *Builder) findMatch(levels []analysis.PriceLevel, price float64) int {
	for i := range levels {
		if levels[i].Price <= 0 {
			continue
		}
		if math.Abs(price-levels[i].Price)/levels[i].Price*100 <= b.mergeTolerancePct {
			return i
		}
	}
	return -1
}

// daysBetween counts whole calendar days (UTC) from t to now.
func daysBetween(t, now time.Time) int {
	if t.IsZero() {
		return analysis.NoRecentTouch
	}
	from := time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}
