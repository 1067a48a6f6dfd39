package indicators

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"btc-intel/internal/models"
)

// Series is a single-input talib function applied over one candle field.
type Series struct {
	label  string
	period int
	// warmup is the number of bars needed beyond period.
	warmup int
	input  func([]models.Candle) []float64
	fn     func([]float64, int) []float64
}

// NewSMA creates a simple moving average of closes.
func NewSMA(period int) *Series {
	return &Series{label: "SMA", period: period, input: models.Closes, fn: talib.Sma}
}

// NewEMA creates an exponential moving average of closes.
func NewEMA(period int) *Series {
	return &Series{label: "EMA", period: period, input: models.Closes, fn: talib.Ema}
}

// NewRSI creates a Wilder RSI of closes.
func NewRSI(period int) *Series {
	return &Series{label: "RSI", period: period, warmup: 1, input: models.Closes, fn: talib.Rsi}
}

// NewVolumeSMA creates a simple moving average of volume.
func NewVolumeSMA(period int) *Series {
	return &Series{label: "VOL_SMA", period: period, input: models.Volumes, fn: talib.Sma}
}

func (s *Series) Name() string {
	return fmt.Sprintf("%s_%d", s.label, s.period)
}

func (s *Series) Period() int {
	return s.period
}

func (s *Series) Calculate(candles []models.Candle) ([]float64, error) {
	if err := checkPeriod(s.period, s.period+s.warmup, len(candles)); err != nil {
		return nil, err
	}
	return s.fn(s.input(candles), s.period), nil
}
