package indicators

import "btc-intel/internal/analysis"

// ClassifyTrend derives the trend state from the moving-average stack.
// Zero averages are treated as unavailable.
func ClassifyTrend(price, ema21, ema50, sma200 float64) analysis.Trend {
	if price <= 0 || ema50 <= 0 {
		return analysis.TrendNeutral
	}
	if ema21 > 0 && sma200 > 0 {
		if price > ema21 && ema21 > ema50 && ema50 > sma200 {
			return analysis.TrendStrongBullish
		}
		if price < ema21 && ema21 < ema50 && ema50 < sma200 {
			return analysis.TrendStrongBearish
		}
	}
	switch {
	case price > ema50:
		return analysis.TrendBullish
	case price < ema50:
		return analysis.TrendBearish
	}
	return analysis.TrendNeutral
}
