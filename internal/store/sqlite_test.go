package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btc-intel/internal/analysis"
	"btc-intel/internal/analysis/levels"
	apperrors "btc-intel/internal/errors"
	"btc-intel/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLevels_ReplacedAndFiltered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	touch := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveLevels(ctx, "scan-1", "BTCUSDT", []analysis.PriceLevel{
		{Price: 90000, Type: analysis.LevelSupport, Strength: 4},
	}))
	require.NoError(t, s.SaveLevels(ctx, "scan-2", "BTCUSDT", []analysis.PriceLevel{
		{
			Price:      95000,
			Type:       analysis.LevelSupport,
			Strength:   16,
			Sources:    []analysis.Source{analysis.SourceSwing, analysis.SourcePsychological},
			Timeframes: []models.Timeframe{models.TF1D, models.TF4H},
			TouchCount: 3,
			LastTouch:  touch,
			RoleFlip:   true,
			FibRatio:   0.618,
		},
		{Price: 105000, Type: analysis.LevelResistance, Strength: 7, Psychological: true},
	}))

	all, err := s.GetLevels(ctx, "BTCUSDT", LevelFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	top := all[0]
	assert.Equal(t, "scan-2", top.ScanID)
	assert.Equal(t, 95000.0, top.Price)
	assert.Equal(t, levels.ClassCritical, top.Classification)
	assert.Equal(t, []analysis.Source{analysis.SourceSwing, analysis.SourcePsychological}, top.Sources)
	assert.Equal(t, []models.Timeframe{models.TF1D, models.TF4H}, top.Timeframes)
	assert.True(t, top.LastTouch.Equal(touch))
	assert.True(t, top.RoleFlip)
	assert.True(t, top.FlipDate.IsZero())
	assert.Equal(t, 0.618, top.FibRatio)
	assert.True(t, all[1].Psychological)
	assert.Equal(t, levels.ClassModerate, all[1].Classification)

	strong, err := s.GetLevels(ctx, "BTCUSDT", LevelFilter{MinStrength: 10})
	require.NoError(t, err)
	require.Len(t, strong, 1)

	resistance, err := s.GetLevels(ctx, "BTCUSDT", LevelFilter{Type: analysis.LevelResistance})
	require.NoError(t, err)
	require.Len(t, resistance, 1)
	assert.Equal(t, 105000.0, resistance[0].Price)
}

func TestZonesFibonacciConfluences_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	zones := []analysis.Zone{{
		PriceLow: 94800, PriceHigh: 95200, PriceMid: 95000, Strength: 15, Type: analysis.LevelSupport,
		Sources: []analysis.Source{analysis.SourceSwing}, TouchCount: 4,
		Timeframes: []models.Timeframe{models.TF1D}, FibRatios: []float64{0.618}, MajorLevel: true,
	}}
	require.NoError(t, s.SaveZones(ctx, "scan", "BTCUSDT", zones))
	gotZones, err := s.GetZones(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, zones, gotZones)

	high := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	low := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fib := analysis.FibonacciAnalysis{
		Timeframe: models.TF1D, Direction: models.Long,
		SwingHigh: 100000, SwingHighTime: high, SwingLow: 90000, SwingLowTime: low,
		Retracements: []analysis.RetracementLevel{{Ratio: 0.618, Label: "Golden Ratio", Price: 93820, ZoneLow: 93538.54, ZoneHigh: 94101.46, Quality: 9}},
		Extensions:   []analysis.ExtensionLevel{{Ratio: 1.618, Label: "Golden Extension", Price: 106180}},
	}
	require.NoError(t, s.SaveFibonacci(ctx, "scan", "BTCUSDT", []analysis.FibonacciAnalysis{fib}))
	gotFibs, err := s.GetFibonacci(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, gotFibs, 1)
	assert.True(t, gotFibs[0].SwingHighTime.Equal(high))
	assert.Equal(t, fib.Retracements, gotFibs[0].Retracements)
	assert.Equal(t, fib.Extensions, gotFibs[0].Extensions)

	conf := analysis.Confluence{
		Price: 94000, Timeframes: []models.Timeframe{models.TF1D, models.TF4H}, NumTimeframes: 2,
		Ratios: []float64{0.618, 0.65}, Labels: []string{"Golden Pocket", "Golden Ratio"},
		Directions: []models.Direction{models.Long}, MaxQuality: 10, ZoneLow: 93530, ZoneHigh: 94470, Strength: 16,
	}
	require.NoError(t, s.SaveConfluences(ctx, "scan", "BTCUSDT", []analysis.Confluence{conf}))
	gotConf, err := s.GetConfluences(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, []analysis.Confluence{conf}, gotConf)
}

func TestSignals_PendingAndOutcome(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	withTPSL := &SignalRecord{
		ScanID: "scan", Symbol: "BTCUSDT", CreatedAt: created, Timeframe: models.TF4H, Direction: models.Long,
		Confidence: 60, ExtendedScore: 72, Classification: "STRONG", Price: 100000,
		SL: 98500, TP1: 102250, TP2: 104500, SLMethod: "atr_fallback",
	}
	plain := &SignalRecord{
		ScanID: "scan", Symbol: "BTCUSDT", CreatedAt: created.Add(time.Hour), Timeframe: models.TF1D,
		Direction: models.Short, Confidence: 45, ExtendedScore: 50, Classification: "WEAK", Price: 101000,
	}
	require.NoError(t, s.SaveSignal(ctx, withTPSL))
	require.NoError(t, s.SaveSignal(ctx, plain))
	require.NotEmpty(t, withTPSL.ID)
	assert.NotEqual(t, withTPSL.ID, plain.ID)

	pending := false
	got, err := s.GetSignals(ctx, SignalFilter{Evaluated: &pending})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, withTPSL.ID, got[0].ID)
	assert.True(t, got[0].HasTPSL())
	assert.False(t, got[1].HasTPSL())
	assert.Empty(t, got[0].Outcome)

	hit := created.Add(8 * time.Hour)
	evaluated := created.Add(48 * time.Hour)
	require.NoError(t, s.UpdateSignalOutcome(ctx, withTPSL.ID, OutcomeTP1Hit, hit, evaluated))

	got, err = s.GetSignals(ctx, SignalFilter{Evaluated: &pending})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, plain.ID, got[0].ID)

	done := true
	got, err = s.GetSignals(ctx, SignalFilter{Evaluated: &done, Timeframe: models.TF4H})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, OutcomeTP1Hit, got[0].Outcome)
	assert.True(t, got[0].HitAt.Equal(hit))
	assert.True(t, got[0].EvaluatedAt.Equal(evaluated))

	err = s.UpdateSignalOutcome(ctx, "missing", OutcomeSLHit, time.Time{}, evaluated)
	assert.ErrorIs(t, err, apperrors.ErrDataNotFound)
}

func TestSeriesInfo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	daily := barSeries(models.TF1D, 0, 5, 60000)
	hourly := barSeries(models.TF1H, 0, 3, 60000)
	require.NoError(t, s.SaveCandles(ctx, "BTCUSDT", models.TF1D, daily))
	require.NoError(t, s.SaveCandles(ctx, "BTCUSDT", models.TF1H, hourly))

	infos, err := s.GetSeriesInfo(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, infos, 2)

	byTF := map[models.Timeframe]SeriesInfo{}
	for _, info := range infos {
		byTF[info.Timeframe] = info
	}
	assert.Equal(t, 5, byTF[models.TF1D].Count)
	assert.True(t, byTF[models.TF1D].First.Equal(daily[0].Timestamp))
	assert.True(t, byTF[models.TF1D].Last.Equal(daily[4].Timestamp))
	assert.Equal(t, 3, byTF[models.TF1H].Count)
}

func TestOutcome_WinLoss(t *testing.T) {
	assert.True(t, OutcomeTP1Hit.IsWin())
	assert.True(t, OutcomeTP2Hit.IsWin())
	assert.True(t, OutcomeCorrect.IsWin())
	assert.True(t, OutcomeSLHit.IsLoss())
	assert.True(t, OutcomeIncorrect.IsLoss())
	assert.False(t, OutcomePending.IsWin())
	assert.False(t, OutcomePending.IsLoss())
}
