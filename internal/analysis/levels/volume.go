package levels

import (
	"math"
	"sort"

	"btc-intel/internal/models"
	"btc-intel/pkg/utils"
)

// VolumeZone is a high-volume bin of the volume profile.
type VolumeZone struct {
	Price  float64 `json:"price"`
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
	Volume float64 `json:"volume"`
}

// VolumeProfile detects high-volume price zones from a volume histogram.
type VolumeProfile struct {
	bins       int
	percentile float64
}

// NewVolumeProfile creates a 100-bin profile reporting bins at or above the 90th percentile.
func NewVolumeProfile() *VolumeProfile {
	return &VolumeProfile{
		bins:       100,
		percentile: 90,
	}
}

func (v *VolumeProfile) Name() string {
	return "VolumeProfile"
}

// Detect distributes each candle's volume evenly over the bins its
// high-low range touches and returns the bins at or above the threshold.
func (v *VolumeProfile) Detect(candles []models.Candle) []VolumeZone {
	if len(candles) == 0 {
		return nil
	}

	minPrice, maxPrice := math.Inf(1), math.Inf(-1)
	for _, c := range candles {
		minPrice = math.Min(minPrice, c.Low)
		maxPrice = math.Max(maxPrice, c.High)
	}
	if maxPrice <= minPrice {
		return nil
	}

	width := (maxPrice - minPrice) / float64(v.bins)
	hist := make([]float64, v.bins)

	for _, c := range candles {
		if c.Volume <= 0 || c.High <= c.Low {
			continue
		}
		first := v.clampBin(int((c.Low - minPrice) / width))
		last := v.clampBin(int((c.High - minPrice) / width))
		share := c.Volume / float64(last-first+1)
		for b := first; b <= last; b++ {
			hist[b] += share
		}
	}

	var nonZero []float64
	for _, vol := range hist {
		if vol > 0 {
			nonZero = append(nonZero, vol)
		}
	}
	if len(nonZero) == 0 {
		return nil
	}
	threshold := percentile(nonZero, v.percentile)

	var zones []VolumeZone
	for b, vol := range hist {
		if vol <= 0 || vol < threshold {
			continue
		}
		low := minPrice + float64(b)*width
		zones = append(zones, VolumeZone{
			Price:  utils.Round2(low + width/2),
			Low:    utils.Round2(low),
			High:   utils.Round2(low + width),
			Volume: utils.Round2(vol),
		})
	}
	return zones
}

func (v *VolumeProfile) clampBin(b int) int {
	if b < 0 {
		return 0
	}
	if b > v.bins-1 {
		return v.bins - 1
	}
	return b
}

// percentile returns the p-th percentile using linear interpolation
// between closest ranks.
func percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}
