package indicators

import "errors"

var (
	// ErrInsufficientData is returned when there's not enough data for calculation.
	ErrInsufficientData = errors.New("insufficient data for calculation")
	// ErrInvalidPeriod is returned when the period is invalid.
	ErrInvalidPeriod = errors.New("invalid period")
)

// checkPeriod validates period against the number of candles required.
func checkPeriod(period, need, have int) error {
	if period <= 0 {
		return ErrInvalidPeriod
	}
	if have < need {
		return ErrInsufficientData
	}
	return nil
}

// last returns the final value of a series, or 0 when empty.
func last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}
