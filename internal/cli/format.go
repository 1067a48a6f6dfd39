package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"btc-intel/internal/analysis"
	"btc-intel/internal/models"
	"btc-intel/pkg/utils"
)

const strengthBarWidth = 10

// FormatPrice formats a price in dollars, or "-" when unset.
func FormatPrice(price float64) string {
	if price == 0 {
		return "-"
	}
	return utils.FormatUSD(price)
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	return utils.FormatPercent(value)
}

// FormatDistance formats how far price sits from ref, signed.
func FormatDistance(price, ref float64) string {
	if ref == 0 {
		return "-"
	}
	return FormatPercent((price - ref) / ref * 100)
}

// FormatRiskReward formats a risk-reward ratio.
func FormatRiskReward(rr float64) string {
	if rr == 0 {
		return "-"
	}
	return fmt.Sprintf("1:%.2f", rr)
}

// FormatRatio formats a Fibonacci ratio without trailing zeros.
func FormatRatio(ratio float64) string {
	return strconv.FormatFloat(ratio, 'f', -1, 64)
}

// FormatRatios joins ratios in order.
func FormatRatios(ratios []float64) string {
	parts := make([]string, len(ratios))
	for i, r := range ratios {
		parts[i] = FormatRatio(r)
	}
	return utils.FormatList(parts)
}

// FormatTimeframes joins timeframes in order.
func FormatTimeframes(tfs []models.Timeframe) string {
	parts := make([]string, len(tfs))
	for i, tf := range tfs {
		parts[i] = string(tf)
	}
	return utils.FormatList(parts)
}

// FormatSources joins level sources in sorted order.
func FormatSources(sources []analysis.Source) string {
	sorted := analysis.SortedSources(sources)
	parts := make([]string, len(sorted))
	for i, s := range sorted {
		parts[i] = string(s)
	}
	return utils.FormatList(parts)
}

// StrengthBar renders strength out of maxStrength as a fixed-width bar.
func StrengthBar(strength, maxStrength int) string {
	if maxStrength <= 0 {
		return strings.Repeat("░", strengthBarWidth)
	}
	strength = max(0, min(strength, maxStrength))
	filled := strength * strengthBarWidth / maxStrength
	return strings.Repeat("█", filled) + strings.Repeat("░", strengthBarWidth-filled)
}

// FormatScore formats a 0-100 score.
func FormatScore(score int) string {
	return fmt.Sprintf("%d/100", score)
}

// FormatDateTime formats a timestamp in UTC.
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
