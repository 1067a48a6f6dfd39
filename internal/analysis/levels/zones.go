package levels

import (
	"math"
	"sort"

	"btc-intel/internal/analysis"
	"btc-intel/pkg/utils"
)

// ZoneClusterer groups nearby scored levels into zones. A level joins the
// current cluster while it sits within tolerance of the cluster's running
// mean price.
type ZoneClusterer struct {
	tolerancePct float64
	majorLevel   int
}

// NewZoneClusterer creates a clusterer with 0.5% tolerance.
func NewZoneClusterer() *ZoneClusterer {
	return &ZoneClusterer{
		tolerancePct: 0.5,
		majorLevel:   15,
	}
}

// NewZoneClustererWithTolerance creates a clusterer with a custom tolerance.
func NewZoneClustererWithTolerance(tolerancePct float64) *ZoneClusterer {
	z := NewZoneClusterer()
	z.tolerancePct = tolerancePct
	return z
}

func (z *ZoneClusterer) Name() string {
	return "ZoneClusterer"
}

// Cluster returns zones sorted by strength descending.
func (z *ZoneClusterer) Cluster(levels []analysis.PriceLevel, currentPrice float64) []analysis.Zone {
	if len(levels) == 0 {
		return nil
	}

	sorted := make([]analysis.PriceLevel, len(levels))
	copy(sorted, levels)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Price < sorted[j].Price
	})

	var clusters [][]analysis.PriceLevel
	current := []analysis.PriceLevel{sorted[0]}
	sum := sorted[0].Price

	for _, lv := range sorted[1:] {
		mean := sum / float64(len(current))
		within := mean <= 0 || math.Abs(lv.Price-mean)/mean*100 <= z.tolerancePct
		if within {
			current = append(current, lv)
			sum += lv.Price
			continue
		}
		clusters = append(clusters, current)
		current = []analysis.PriceLevel{lv}
		sum = lv.Price
	}
	clusters = append(clusters, current)

	zones := make([]analysis.Zone, 0, len(clusters))
	for _, c := range clusters {
		zones = append(zones, z.buildZone(c, currentPrice))
	}

	sort.SliceStable(zones, func(i, j int) bool {
		return zones[i].Strength > zones[j].Strength
	})
	return zones
}

func (z *ZoneClusterer) buildZone(cluster []analysis.PriceLevel, currentPrice float64) analysis.Zone {
	low, high := math.Inf(1), math.Inf(-1)
	var sum float64
	var sources []analysis.Source
	var ratios []float64
	zone := analysis.Zone{}

	for _, lv := range cluster {
		low = math.Min(low, lv.Price)
		high = math.Max(high, lv.Price)
		sum += lv.Price
		if lv.Strength > zone.Strength {
			zone.Strength = lv.Strength
		}
		zone.TouchCount += lv.TouchCount
		sources = append(sources, lv.Sources...)
		zone.Timeframes = append(zone.Timeframes, lv.Timeframes...)
		if lv.FibCoincident {
			ratios = append(ratios, lv.FibRatio)
		}
	}

	zone.PriceLow = utils.Round2(low)
	zone.PriceHigh = utils.Round2(high)
	zone.PriceMid = utils.Round2(sum / float64(len(cluster)))
	zone.Sources = analysis.SortedSources(sources)
	zone.Timeframes = analysis.SortedTimeframes(zone.Timeframes)
	zone.FibRatios = analysis.SortedFloats(ratios)
	zone.Type = analysis.LevelTypeFor(zone.PriceMid, currentPrice)
	zone.MajorLevel = zone.Strength >= z.majorLevel
	return zone
}
