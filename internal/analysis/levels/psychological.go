package levels

import "btc-intel/internal/analysis"

// psychologicalTable holds the round-number milestones in ascending order.
var psychologicalTable = []float64{
	10000, 15000, 20000, 25000, 30000, 35000, 40000, 45000, 50000,
	55000, 60000, 65000, 70000, 75000, 80000, 85000, 90000, 95000,
	100000, 110000, 120000, 125000, 150000, 175000, 200000,
	250000, 300000, 500000,
}

// psychologicalRangePct bounds how far from price a milestone may sit.
const psychologicalRangePct = 30.0

// PsychologicalLevels returns every milestone within 30% of price.
func PsychologicalLevels(price float64) []analysis.PriceLevel {
	if price <= 0 {
		return nil
	}

	lower := price * (1 - psychologicalRangePct/100)
	upper := price * (1 + psychologicalRangePct/100)

	var out []analysis.PriceLevel
	for _, lvl := range psychologicalTable {
		if lvl < lower || lvl > upper {
			continue
		}
		out = append(out, analysis.PriceLevel{
			Price:         lvl,
			Type:          analysis.LevelTypeFor(lvl, price),
			Sources:       []analysis.Source{analysis.SourcePsychological},
			Psychological: true,
			LastTouchDays: analysis.NoRecentTouch,
		})
	}
	return out
}
