package indicators

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"btc-intel/internal/models"
)

// ATR is Wilder's Average True Range. It needs one bar beyond the period
// for the first true range.
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string {
	return fmt.Sprintf("ATR_%d", a.period)
}

func (a *ATR) Period() int {
	return a.period
}

func (a *ATR) Calculate(candles []models.Candle) ([]float64, error) {
	if err := checkPeriod(a.period, a.period+1, len(candles)); err != nil {
		return nil, err
	}
	return talib.Atr(models.Highs(candles), models.Lows(candles), models.Closes(candles), a.period), nil
}

// Bollinger band output keys.
const (
	BandUpper  = "upper"
	BandMiddle = "middle"
	BandLower  = "lower"
)

// BollingerBands are SMA-based bands stdDevMul standard deviations wide.
type BollingerBands struct {
	period    int
	stdDevMul float64
}

// NewBollingerBands creates a new Bollinger Bands indicator.
func NewBollingerBands(period int, stdDevMul float64) *BollingerBands {
	return &BollingerBands{
		period:    period,
		stdDevMul: stdDevMul,
	}
}

func (b *BollingerBands) Name() string {
	return fmt.Sprintf("BB_%d_%.1f", b.period, b.stdDevMul)
}

func (b *BollingerBands) Period() int {
	return b.period
}

func (b *BollingerBands) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if err := checkPeriod(b.period, b.period, len(candles)); err != nil {
		return nil, err
	}
	upper, middle, lower := talib.BBands(models.Closes(candles), b.period, b.stdDevMul, b.stdDevMul, talib.SMA)
	return map[string][]float64{
		BandUpper:  upper,
		BandMiddle: middle,
		BandLower:  lower,
	}, nil
}
