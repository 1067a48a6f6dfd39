// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Round rounds value half away from zero to the given number of decimal places.
func Round(value float64, places int32) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return value
	}
	return decimal.NewFromFloat(value).Round(places).InexactFloat64()
}

// Round2 rounds a price to cents.
func Round2(value float64) float64 {
	return Round(value, 2)
}

// PctDistance returns |a-b| / b * 100. Returns +Inf when b is zero.
func PctDistance(a, b float64) float64 {
	if b == 0 {
		return math.Inf(1)
	}
	return math.Abs(a-b) / b * 100
}

// Near reports whether a is within tolerancePct percent of b.
func Near(a, b, tolerancePct float64) bool {
	if b == 0 {
		return false
	}
	return PctDistance(a, b) <= tolerancePct
}

// FormatUSD formats a dollar amount with thousands separators.
func FormatUSD(amount float64) string {
	if amount < 0 {
		return "-$" + humanize.CommafWithDigits(-amount, 2)
	}
	return "$" + humanize.CommafWithDigits(amount, 2)
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatVolume formats a volume in compact SI form (e.g. 1.25 M).
func FormatVolume(volume float64) string {
	return strings.TrimSpace(humanize.SIWithDigits(volume, 2, ""))
}

// FormatAge formats a timestamp relative to now ("3 days ago").
func FormatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// FormatList joins values with ", " or returns "-" for an empty list.
func FormatList(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}
