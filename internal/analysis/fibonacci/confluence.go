package fibonacci

import (
	"sort"

	"btc-intel/internal/analysis"
	"btc-intel/internal/models"
	"btc-intel/pkg/utils"
)

const (
	// DefaultConfluenceTolerancePct is the max distance from a cluster's
	// first member for a level to join it.
	DefaultConfluenceTolerancePct = 0.5

	confluenceBand        = 0.005
	confluenceMajorTFs    = 3
	maxConfluenceStrength = 20
)

type flatLevel struct {
	price     float64
	ratio     float64
	label     string
	quality   int
	timeframe models.Timeframe
	direction models.Direction
}

// ConfluenceDetector finds prices where Fibonacci levels from different
// timeframes coincide.
type ConfluenceDetector struct {
	tolerancePct float64
}

// NewConfluenceDetector creates a detector with the default 0.5% tolerance.
func NewConfluenceDetector() *ConfluenceDetector {
	return &ConfluenceDetector{tolerancePct: DefaultConfluenceTolerancePct}
}

// NewConfluenceDetectorWithTolerance creates a detector with a custom tolerance.
func NewConfluenceDetectorWithTolerance(tolerancePct float64) *ConfluenceDetector {
	return &ConfluenceDetector{tolerancePct: tolerancePct}
}

func (d *ConfluenceDetector) Name() string {
	return "FibConfluenceDetector"
}

// Find clusters every retracement and extension across timeframes and
// returns clusters spanning at least two timeframes, strongest first.
func (d *ConfluenceDetector) Find(fibs map[models.Timeframe]analysis.FibonacciAnalysis) []analysis.Confluence {
	flat := flatten(fibs)
	if len(flat) < 2 {
		return nil
	}
	sort.SliceStable(flat, func(i, j int) bool {
		return flat[i].price < flat[j].price
	})

	var out []analysis.Confluence
	used := make([]bool, len(flat))
	for i, base := range flat {
		if used[i] {
			continue
		}
		used[i] = true
		cluster := []flatLevel{base}

		for j := i + 1; j < len(flat); j++ {
			if used[j] || base.price == 0 {
				continue
			}
			if !utils.Near(flat[j].price, base.price, d.tolerancePct) {
				break
			}
			cluster = append(cluster, flat[j])
			used[j] = true
		}

		if c, ok := buildConfluence(cluster); ok {
			out = append(out, c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].NumTimeframes != out[j].NumTimeframes {
			return out[i].NumTimeframes > out[j].NumTimeframes
		}
		return out[i].MaxQuality > out[j].MaxQuality
	})
	return out
}

// flatten lists retracements then extensions per timeframe. Timeframes are
// visited in sorted order so equal prices keep a deterministic order.
func flatten(fibs map[models.Timeframe]analysis.FibonacciAnalysis) []flatLevel {
	var flat []flatLevel
	for _, tf := range orderedTimeframes(fibs) {
		fa := fibs[tf]
		direction := fa.Direction
		if direction == "" {
			direction = models.Long
		}
		for _, r := range fa.Retracements {
			flat = append(flat, flatLevel{r.Price, r.Ratio, r.Label, r.Quality, tf, direction})
		}
		for _, e := range fa.Extensions {
			flat = append(flat, flatLevel{e.Price, e.Ratio, e.Label, 0, tf, direction})
		}
	}
	return flat
}

func orderedTimeframes(fibs map[models.Timeframe]analysis.FibonacciAnalysis) []models.Timeframe {
	tfs := make([]models.Timeframe, 0, len(fibs))
	for tf := range fibs {
		tfs = append(tfs, tf)
	}
	sort.Slice(tfs, func(i, j int) bool { return tfs[i] < tfs[j] })
	return tfs
}

func buildConfluence(cluster []flatLevel) (analysis.Confluence, bool) {
	tfSet := make(map[models.Timeframe]struct{})
	ratioSet := make(map[float64]struct{})
	labelSet := make(map[string]struct{})
	dirSet := make(map[models.Direction]struct{})

	var sum float64
	maxQuality := 0
	for _, l := range cluster {
		tfSet[l.timeframe] = struct{}{}
		ratioSet[l.ratio] = struct{}{}
		labelSet[l.label] = struct{}{}
		dirSet[l.direction] = struct{}{}
		sum += l.price
		if l.quality > maxQuality {
			maxQuality = l.quality
		}
	}
	if len(tfSet) < 2 {
		return analysis.Confluence{}, false
	}

	tfs := make([]models.Timeframe, 0, len(tfSet))
	for tf := range tfSet {
		tfs = append(tfs, tf)
	}
	ratios := make([]float64, 0, len(ratioSet))
	for r := range ratioSet {
		ratios = append(ratios, r)
	}
	ratios = analysis.SortedFloats(ratios)
	labels := make([]string, 0, len(labelSet))
	for l := range labelSet {
		labels = append(labels, l)
	}
	dirs := make([]models.Direction, 0, len(dirSet))
	for d := range dirSet {
		dirs = append(dirs, d)
	}
	sort.Strings(labels)
	sort.Slice(dirs, func(i, j int) bool { return dirs[i] < dirs[j] })

	price := utils.Round2(sum / float64(len(cluster)))
	numTF := len(tfs)
	strength := numTF*3 + maxQuality
	if strength > maxConfluenceStrength {
		strength = maxConfluenceStrength
	}

	return analysis.Confluence{
		Price:         price,
		Timeframes:    analysis.SortedTimeframes(tfs),
		NumTimeframes: numTF,
		Ratios:        ratios,
		Labels:        labels,
		Directions:    dirs,
		MaxQuality:    maxQuality,
		ZoneLow:       utils.Round2(price * (1 - confluenceBand)),
		ZoneHigh:      utils.Round2(price * (1 + confluenceBand)),
		Strength:      strength,
		Major:         numTF >= confluenceMajorTFs,
	}, true
}
