package levels

import (
	"btc-intel/internal/analysis"
	"btc-intel/internal/models"
)

// RoleFlipDetector finds levels that turned from resistance into support:
// repeated rejections, a breakout close, then a retest that holds.
type RoleFlipDetector struct {
	tolerancePct  float64
	minRejections int
}

// NewRoleFlipDetector creates a detector with 0.3% tolerance and two required rejections.
func NewRoleFlipDetector() *RoleFlipDetector {
	return &RoleFlipDetector{
		tolerancePct:  0.3,
		minRejections: 2,
	}
}

func (d *RoleFlipDetector) Name() string {
	return "RoleFlipDetector"
}

type flipPhase int

const (
	phaseSeekRejection flipPhase = iota
	phaseAwaitRetest
)

// Detect sets the role-flip flag and date on every level whose history
// completes the rejection, breakout, retest sequence.
func (d *RoleFlipDetector) Detect(levels []analysis.PriceLevel, candles []models.Candle) {
	if len(candles) == 0 {
		return
	}
	for i := range levels {
		if flipAt, ok := d.scan(levels[i].Price, candles); ok {
			levels[i].RoleFlip = true
			levels[i].FlipDate = flipAt.Timestamp
		}
	}
}

func (d *RoleFlipDetector) scan(price float64, candles []models.Candle) (flipAt models.Candle, ok bool) {
	tol := price * d.tolerancePct / 100
	phase := phaseSeekRejection
	rejections := 0

	for _, c := range candles {
		switch phase {
		case phaseSeekRejection:
			if c.High >= price-tol && c.Close < price {
				rejections++
			}
			if rejections >= d.minRejections && c.Close > price {
				phase = phaseAwaitRetest
			}
		case phaseAwaitRetest:
			if c.Low <= price+tol && c.Close > price {
				return c, true
			}
			if c.Close < price-tol {
				phase = phaseSeekRejection
				rejections = 0
			}
		}
	}
	return models.Candle{}, false
}
