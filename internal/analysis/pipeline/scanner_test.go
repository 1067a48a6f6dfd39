package pipeline

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btc-intel/internal/analysis"
	"btc-intel/internal/analysis/scoring"
	apperrors "btc-intel/internal/errors"
	"btc-intel/internal/logging"
	"btc-intel/internal/models"
	"btc-intel/internal/store"
	"btc-intel/internal/trading"
)

var scanNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// waveCandles builds a series oscillating 5% around 100000 with a period
// of 40 bars, ending one bar before scanNow.
func waveCandles(tf models.Timeframe, count int) []models.Candle {
	step := tf.Duration()
	start := scanNow.Add(-time.Duration(count) * step)
	candles := make([]models.Candle, count)
	prev := 100000.0
	for i := range candles {
		price := 100000 + 5000*math.Sin(2*math.Pi*float64(i)/40)
		candles[i] = models.Candle{
			Timestamp: start.Add(time.Duration(i) * step),
			Open:      prev,
			High:      math.Max(prev, price) * 1.002,
			Low:       math.Min(prev, price) * 0.998,
			Close:     price,
			Volume:    1000 + float64(i%7)*25,
		}
		prev = price
	}
	return candles
}

func waveSeries() map[models.Timeframe][]models.Candle {
	return map[models.Timeframe][]models.Candle{
		models.TF1H: waveCandles(models.TF1H, 300),
		models.TF4H: waveCandles(models.TF4H, 300),
		models.TF1D: waveCandles(models.TF1D, 300),
		models.TF1W: waveCandles(models.TF1W, 20),
	}
}

func TestAnalyze_RequiresBaseSeries(t *testing.T) {
	s := NewScanner(nil)
	series := map[models.Timeframe][]models.Candle{models.TF4H: waveCandles(models.TF4H, 100)}

	_, err := s.Analyze(context.Background(), ScanConfig{Symbol: "BTCUSDT", Now: scanNow}, series)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientData))

	var seriesErr *apperrors.SeriesError
	require.True(t, apperrors.As(err, &seriesErr))
	assert.Equal(t, "1D", seriesErr.Timeframe)
	assert.EqualError(t, err, "no 1D candles for BTCUSDT")
}

func TestAnalyze_LogsEachTimeframe(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.WithLogger(context.Background(), zerolog.New(&buf).Level(zerolog.DebugLevel))

	_, err := NewScanner(nil).Analyze(ctx, ScanConfig{Symbol: "BTCUSDT", Now: scanNow}, waveSeries())
	require.NoError(t, err)

	for _, tf := range []string{"1H", "4H", "1D"} {
		assert.Contains(t, buf.String(), `"timeframe":"`+tf+`"`)
	}
	assert.Contains(t, buf.String(), `"message":"Timeframe analysed"`)
}

func TestAnalyze_RequiresSymbol(t *testing.T) {
	_, err := NewScanner(nil).Analyze(context.Background(), ScanConfig{}, waveSeries())
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
}

func TestAnalyze_WaveSeries(t *testing.T) {
	s := NewScanner(nil)
	result, err := s.Analyze(context.Background(), ScanConfig{Symbol: "BTCUSDT", Now: scanNow}, waveSeries())
	require.NoError(t, err)

	assert.NotEmpty(t, result.ScanID)
	assert.Equal(t, models.TF1D, result.BaseTimeframe)
	assert.Equal(t, scanNow, result.ScannedAt)
	assert.NotEmpty(t, result.Swings)
	require.NotEmpty(t, result.Levels)
	assert.NotEmpty(t, result.Zones)

	for i, lv := range result.Levels {
		assert.GreaterOrEqual(t, lv.Strength, 0)
		assert.LessOrEqual(t, lv.Strength, 20)
		if i > 0 {
			assert.LessOrEqual(t, lv.Strength, result.Levels[i-1].Strength)
		}
	}
	for _, c := range result.Confluences {
		assert.GreaterOrEqual(t, c.NumTimeframes, 2)
	}

	// The weekly series is too short to score.
	assert.Equal(t, []models.Timeframe{models.TF1W}, result.Skipped)
	require.Len(t, result.Signals, 3)
	for i, tf := range []models.Timeframe{models.TF1H, models.TF4H, models.TF1D} {
		assert.Equal(t, tf, result.Signals[i].Timeframe)
	}

	for _, sig := range result.Signals {
		assert.GreaterOrEqual(t, sig.Score.FinalScore, 0)
		assert.LessOrEqual(t, sig.Score.FinalScore, 100)
		if !sig.TPSL.Valid {
			continue
		}
		limits := trading.Limits(sig.Timeframe)
		assert.LessOrEqual(t, sig.TPSL.SLPct, limits.MaxSLPct)
		if sig.TPSL.Direction == models.Long {
			assert.Less(t, sig.TPSL.SL, sig.TPSL.Entry)
			assert.Less(t, sig.TPSL.Entry, sig.TPSL.TP1)
			assert.Less(t, sig.TPSL.TP1, sig.TPSL.TP2)
		} else {
			assert.Greater(t, sig.TPSL.SL, sig.TPSL.Entry)
			assert.Greater(t, sig.TPSL.Entry, sig.TPSL.TP1)
			assert.Greater(t, sig.TPSL.TP1, sig.TPSL.TP2)
		}
	}

	daily, ok := result.Signal(models.TF1D)
	require.True(t, ok)
	// No weekly signal means no higher-timeframe view for the daily.
	assert.Empty(t, daily.HTFDirection)

	_, ok = result.Signal(models.TF1W)
	assert.False(t, ok)
}

func TestHigherDirection(t *testing.T) {
	trends := map[models.Timeframe]analysis.Trend{
		models.TF4H: analysis.TrendStrongBullish,
		models.TF1D: analysis.TrendBearish,
		models.TF1W: analysis.TrendNeutral,
	}

	assert.Equal(t, models.Long, higherDirection(models.TF1H, trends))
	assert.Equal(t, models.Short, higherDirection(models.TF4H, trends))
	assert.Empty(t, higherDirection(models.TF1D, trends))
	assert.Empty(t, higherDirection(models.TF1W, trends))
	assert.Empty(t, higherDirection(models.TF1H, map[models.Timeframe]analysis.Trend{}))
}

func TestSignalRecords_SnapshotRule(t *testing.T) {
	result := &ScanResult{
		ScanID:    "scan-1",
		Symbol:    "BTCUSDT",
		ScannedAt: scanNow,
		Signals: []TimeframeSignal{
			{
				Timeframe: models.TF4H,
				Base:      scoring.BaseScore{Direction: models.Long, Confidence: 55},
				Score:     scoring.ExtendedScore{FinalScore: 72, Classification: scoring.ClassStrong},
				Patterns: []analysis.CandlePattern{
					{ID: analysis.Doji, Direction: models.Neutral, Strength: 3},
					{ID: analysis.BullishEngulfing, Direction: models.Long, Strength: 7},
				},
				Setup: &analysis.Setup{Type: analysis.SetupPullback},
				TPSL: trading.TPSLResult{
					Valid: true, SL: 98500, TP1: 102250, TP2: 104500, RRTP1: 1.5, RRTP2: 3,
					SLMethod: trading.MethodATRFallback, TP1Method: trading.MethodATRFallback, TP2Method: trading.MethodATRFallback,
				},
			},
			{
				Timeframe: models.TF1D,
				Base:      scoring.BaseScore{Direction: models.Short, Confidence: 40},
				Score:     scoring.ExtendedScore{FinalScore: 45, Classification: scoring.ClassWeak},
				TPSL:      trading.TPSLResult{Valid: false, SL: 1, TP1: 2},
			},
			{
				Timeframe: models.TF1H,
				Base:      scoring.BaseScore{Direction: models.Neutral},
				Score:     scoring.ExtendedScore{FinalScore: 90},
			},
			{
				Timeframe: models.TF1W,
				Base:      scoring.BaseScore{Direction: models.Long},
				Score:     scoring.ExtendedScore{FinalScore: 39},
			},
		},
	}
	result.Signals[0].Indicators.Close = 100000
	result.Signals[1].Indicators.Close = 101000

	records := SignalRecords(result)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "scan-1", first.ScanID)
	assert.Equal(t, scanNow, first.CreatedAt)
	assert.Equal(t, models.TF4H, first.Timeframe)
	assert.Equal(t, 100000.0, first.Price)
	assert.Equal(t, "pullback", first.SetupType)
	assert.Equal(t, string(analysis.BullishEngulfing), first.Pattern)
	assert.True(t, first.HasTPSL())
	assert.Equal(t, 104500.0, first.TP2)
	assert.Equal(t, "atr_fallback", first.SLMethod)

	second := records[1]
	assert.Equal(t, models.Short, second.Direction)
	assert.False(t, second.HasTPSL())
	assert.Empty(t, second.SetupType)
}

func TestScanAndPersist(t *testing.T) {
	ctx := context.Background()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "scan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	const symbol = "BTCUSDT"
	series := waveSeries()
	delete(series, models.TF1H)
	for tf, candles := range series {
		require.NoError(t, db.SaveCandles(ctx, symbol, tf, candles))
	}

	s := NewScanner(db)

	loaded, err := s.LoadSeries(ctx, symbol, 250)
	require.NoError(t, err)
	assert.NotContains(t, loaded, models.TF1H)
	assert.Len(t, loaded[models.TF4H], 250)
	assert.Len(t, loaded[models.TF1W], 20)

	result, err := s.Scan(ctx, ScanConfig{Symbol: symbol, Now: scanNow})
	require.NoError(t, err)

	records, err := s.Persist(ctx, result)
	require.NoError(t, err)

	stored, err := db.GetLevels(ctx, symbol, store.LevelFilter{})
	require.NoError(t, err)
	assert.Len(t, stored, len(result.Levels))
	for _, lv := range stored {
		assert.Equal(t, result.ScanID, lv.ScanID)
	}

	fibs, err := db.GetFibonacci(ctx, symbol)
	require.NoError(t, err)
	assert.Len(t, fibs, len(result.Fibonacci))

	pending := false
	signals, err := db.GetSignals(ctx, store.SignalFilter{Symbol: symbol, Evaluated: &pending})
	require.NoError(t, err)
	assert.Len(t, signals, len(records))
	for _, sig := range signals {
		assert.NotEqual(t, models.Neutral, sig.Direction)
		assert.GreaterOrEqual(t, sig.ExtendedScore, 40)
	}
}
