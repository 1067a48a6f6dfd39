// Package pipeline runs one full structure and signal scan over the stored
// candle series of a symbol.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"btc-intel/internal/analysis"
	"btc-intel/internal/analysis/fibonacci"
	"btc-intel/internal/analysis/indicators"
	"btc-intel/internal/analysis/levels"
	"btc-intel/internal/analysis/patterns"
	"btc-intel/internal/analysis/scoring"
	"btc-intel/internal/analysis/setup"
	apperrors "btc-intel/internal/errors"
	"btc-intel/internal/logging"
	"btc-intel/internal/models"
	"btc-intel/internal/store"
	"btc-intel/internal/trading"
)

const (
	// DefaultBars is how many of the latest candles are loaded per timeframe.
	DefaultBars = 500

	// minSignalBars is the shortest series a timeframe signal is computed for.
	minSignalBars = 50

	// minSnapshotScore is the lowest extended score kept as a signal snapshot.
	minSnapshotScore = 40
)

// Tolerances are the proximity rules used by the level and Fibonacci stages.
type Tolerances struct {
	MergePct      float64
	FibPct        float64
	ZonePct       float64
	ConfluencePct float64
}

// DefaultTolerances returns the standard proximity rules.
func DefaultTolerances() Tolerances {
	return Tolerances{
		MergePct:      levels.DefaultMergeTolerancePct,
		FibPct:        levels.DefaultFibTolerancePct,
		ZonePct:       0.5,
		ConfluencePct: fibonacci.DefaultConfluenceTolerancePct,
	}
}

// ScanConfig selects what one scan looks at.
type ScanConfig struct {
	Symbol string
	// BaseTimeframe is the series levels, volume zones and role flips are built from.
	BaseTimeframe models.Timeframe
	Bars          int
	Now           time.Time
	OnChain       scoring.OnChain
}

// TimeframeSignal is the per-timeframe signal view of a scan.
type TimeframeSignal struct {
	Timeframe    models.Timeframe         `json:"timeframe"`
	Bars         int                      `json:"bars"`
	Indicators   indicators.Snapshot      `json:"indicators"`
	Base         scoring.BaseScore        `json:"base"`
	Patterns     []analysis.CandlePattern `json:"patterns"`
	Setup        *analysis.Setup          `json:"setup,omitempty"`
	HTFDirection models.Direction         `json:"htf_direction,omitempty"`
	Score        scoring.ExtendedScore    `json:"score"`
	TPSL         trading.TPSLResult       `json:"tpsl"`

	swings []analysis.SwingPoint
}

// ScanResult is everything one scan produced.
type ScanResult struct {
	ScanID        string                                          `json:"scan_id"`
	Symbol        string                                          `json:"symbol"`
	BaseTimeframe models.Timeframe                                `json:"base_timeframe"`
	Price         float64                                         `json:"price"`
	ScannedAt     time.Time                                       `json:"scanned_at"`
	Swings        []analysis.SwingPoint                           `json:"swings"`
	Levels        []analysis.PriceLevel                           `json:"levels"`
	Zones         []analysis.Zone                                 `json:"zones"`
	Fibonacci     map[models.Timeframe]analysis.FibonacciAnalysis `json:"fibonacci"`
	Confluences   []analysis.Confluence                           `json:"confluences"`
	Signals       []TimeframeSignal                               `json:"signals"`
	Skipped       []models.Timeframe                              `json:"skipped,omitempty"`
	Duration      time.Duration                                   `json:"duration"`
}

// Signal returns the signal of tf, if that timeframe was scored.
func (r *ScanResult) Signal(tf models.Timeframe) (TimeframeSignal, bool) {
	for _, s := range r.Signals {
		if s.Timeframe == tf {
			return s, true
		}
	}
	return TimeframeSignal{}, false
}

// FibList returns the Fibonacci analyses ordered by timeframe.
func (r *ScanResult) FibList() []analysis.FibonacciAnalysis {
	out := make([]analysis.FibonacciAnalysis, 0, len(r.Fibonacci))
	for _, tf := range models.AllTimeframes {
		if fib, ok := r.Fibonacci[tf]; ok {
			out = append(out, fib)
		}
	}
	return out
}

// BestScore is the highest extended score across timeframes.
func (r *ScanResult) BestScore() int {
	best := 0
	for _, s := range r.Signals {
		best = max(best, s.Score.FinalScore)
	}
	return best
}

// Scanner wires every detector into one scan.
type Scanner struct {
	store store.DataStore

	swings     *levels.SwingDetector
	volume     *levels.VolumeProfile
	builder    *levels.Builder
	flips      *levels.RoleFlipDetector
	scorer     *levels.Scorer
	clusterer  *levels.ZoneClusterer
	fibs       *fibonacci.Engine
	confluence *fibonacci.ConfluenceDetector
	candles    *patterns.CandleDetector
	engine     *indicators.Engine
	base       *scoring.SignalScorer
	setups     *setup.Detector
	extended   *scoring.ExtendedScorer
	tpsl       trading.Planner
}

// NewScanner creates a scanner with the default tolerances.
func NewScanner(dataStore store.DataStore) *Scanner {
	return NewScannerWithTolerances(dataStore, DefaultTolerances())
}

// NewScannerWithTolerances creates a scanner with custom proximity rules.
func NewScannerWithTolerances(dataStore store.DataStore, tol Tolerances) *Scanner {
	return &Scanner{
		store:      dataStore,
		swings:     levels.NewSwingDetector(),
		volume:     levels.NewVolumeProfile(),
		builder:    levels.NewBuilderWithTolerance(tol.MergePct, tol.FibPct),
		flips:      levels.NewRoleFlipDetector(),
		scorer:     levels.NewScorer(),
		clusterer:  levels.NewZoneClustererWithTolerance(tol.ZonePct),
		fibs:       fibonacci.NewEngine(),
		confluence: fibonacci.NewConfluenceDetectorWithTolerance(tol.ConfluencePct),
		candles:    patterns.NewCandleDetector(),
		engine:     indicators.NewStandardEngine(4),
		base:       scoring.NewSignalScorer(),
		setups:     setup.NewDetector(),
		extended:   scoring.NewExtendedScorer(),
		tpsl:       trading.NewTPSLCalculator(),
	}
}

func (s *Scanner) Name() string {
	return "Scanner"
}

// LoadSeries fetches the latest bars of every timeframe concurrently.
// Timeframes without stored candles are left out.
func (s *Scanner) LoadSeries(ctx context.Context, symbol string, bars int) (map[models.Timeframe][]models.Candle, error) {
	if bars <= 0 {
		bars = DefaultBars
	}

	tfs := models.AllTimeframes
	loaded := make([][]models.Candle, len(tfs))

	g, gctx := errgroup.WithContext(ctx)
	for i, tf := range tfs {
		i, tf := i, tf
		g.Go(func() error {
			candles, err := s.store.GetLatestCandles(gctx, symbol, tf, bars)
			if err != nil {
				return fmt.Errorf("loading %s candles: %w", tf, err)
			}
			loaded[i] = candles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	series := make(map[models.Timeframe][]models.Candle, len(tfs))
	for i, tf := range tfs {
		if len(loaded[i]) > 0 {
			series[tf] = loaded[i]
		}
	}
	return series, nil
}

// Scan loads the stored series of cfg.Symbol and analyzes them.
func (s *Scanner) Scan(ctx context.Context, cfg ScanConfig) (*ScanResult, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	series, err := s.LoadSeries(ctx, cfg.Symbol, cfg.Bars)
	if err != nil {
		return nil, err
	}
	return s.Analyze(ctx, cfg, series)
}

// Analyze runs every stage over series. It needs candles on the base
// timeframe; other timeframes are optional.
func (s *Scanner) Analyze(ctx context.Context, cfg ScanConfig, series map[models.Timeframe][]models.Candle) (*ScanResult, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	start := time.Now()
	base := series[cfg.BaseTimeframe]
	if len(base) == 0 {
		return nil, apperrors.NewSeriesError(cfg.Symbol, string(cfg.BaseTimeframe), minSignalBars, 0)
	}

	result := &ScanResult{
		ScanID:        uuid.NewString(),
		Symbol:        cfg.Symbol,
		BaseTimeframe: cfg.BaseTimeframe,
		Price:         latestClose(series),
		ScannedAt:     cfg.Now,
	}

	logger := logging.WithScanID(logging.WithOperation(logging.FromContext(ctx), "scan"), result.ScanID)
	logger = logging.WithSymbol(logger, cfg.Symbol)

	// Structure
	result.Swings = s.swings.DetectAll(base)
	lvls := s.builder.Build(result.Swings, s.volume.Detect(base), result.Price, cfg.Now)
	s.flips.Detect(lvls, base)

	result.Fibonacci = s.fibs.ScanAll(series, result.Price)
	s.builder.MarkFibCoincidence(lvls, result.FibList())
	s.scorer.ScoreAll(lvls)
	sort.SliceStable(lvls, func(i, j int) bool { return lvls[i].Strength > lvls[j].Strength })

	result.Levels = lvls
	result.Zones = s.clusterer.Cluster(lvls, result.Price)
	result.Confluences = s.confluence.Find(result.Fibonacci)

	logger.Debug().
		Int("swings", len(result.Swings)).
		Int("fibonacci", len(result.Fibonacci)).
		Msg("Structure built")

	// Signals, lowest timeframe first
	trends := make(map[models.Timeframe]analysis.Trend)
	for _, tf := range models.AllTimeframes {
		candles := series[tf]
		if len(candles) < minSignalBars {
			if len(candles) > 0 {
				result.Skipped = append(result.Skipped, tf)
			}
			continue
		}

		sig, err := s.signal(ctx, tf, candles)
		if err != nil {
			return nil, fmt.Errorf("scoring %s: %w", tf, err)
		}
		trends[tf] = sig.Indicators.Trend
		result.Signals = append(result.Signals, sig)

		tfLogger := logging.WithTimeframe(logger, string(tf))
		tfLogger.Debug().
			Str("direction", string(sig.Base.Direction)).
			Float64("confidence", sig.Base.Confidence).
			Int("patterns", len(sig.Patterns)).
			Msg("Timeframe analysed")
	}

	s.scoreSignals(cfg, result, trends)

	result.Duration = time.Since(start)
	logging.LogScan(logger, len(result.Levels), len(result.Zones), len(result.Confluences), result.BestScore(), result.Duration)

	return result, nil
}

func (s *Scanner) signal(ctx context.Context, tf models.Timeframe, candles []models.Candle) (TimeframeSignal, error) {
	snap, err := s.engine.Snapshot(ctx, candles)
	if err != nil {
		return TimeframeSignal{}, err
	}

	sig := TimeframeSignal{
		Timeframe:  tf,
		Bars:       len(candles),
		Indicators: snap,
		Base:       s.base.Score(snap),
		Patterns:   s.candles.Detect(candles),
		swings:     s.swings.Detect(tf, candles),
	}
	return sig, nil
}

// scoreSignals scores every timeframe once the trend of the next higher
// timeframe is known, then places TP/SL.
func (s *Scanner) scoreSignals(cfg ScanConfig, result *ScanResult, trends map[models.Timeframe]analysis.Trend) {
	for i := range result.Signals {
		sig := &result.Signals[i]
		price := sig.Indicators.Close
		dir := sig.Base.Direction

		var fib *analysis.FibonacciAnalysis
		if f, ok := result.Fibonacci[sig.Timeframe]; ok {
			fib = &f
		}

		if st, ok := s.setups.Detect(setup.Input{
			Price:      price,
			Direction:  dir,
			Timeframe:  sig.Timeframe,
			Levels:     result.Levels,
			Fib:        fib,
			Patterns:   sig.Patterns,
			Indicators: sig.Indicators,
		}); ok {
			sig.Setup = &st
		}

		sig.HTFDirection = higherDirection(sig.Timeframe, trends)
		sig.Score = s.extended.Score(scoring.ExtendedInput{
			BaseConfidence: sig.Base.Confidence,
			Price:          price,
			Direction:      dir,
			Timeframe:      sig.Timeframe,
			Levels:         result.Levels,
			Fib:            fib,
			Confluences:    result.Confluences,
			Patterns:       sig.Patterns,
			OnChain:        cfg.OnChain,
			Indicators:     sig.Indicators,
			HTFDirection:   sig.HTFDirection,
		})

		sig.TPSL = s.tpsl.Calculate(trading.TPSLInput{
			Entry:     price,
			Direction: dir,
			Timeframe: sig.Timeframe,
			ATR:       sig.Indicators.ATR,
			Bands: trading.Bands{
				Upper: sig.Indicators.BBUpper,
				Mid:   sig.Indicators.BBMid,
				Lower: sig.Indicators.BBLower,
			},
			Levels: result.Levels,
			Fib:    fib,
			Swings: sig.swings,
		})
	}
}

// PersistStructure replaces the stored levels, zones, Fibonacci and
// confluence snapshot of the symbol.
func (s *Scanner) PersistStructure(ctx context.Context, result *ScanResult) error {
	if err := s.store.SaveLevels(ctx, result.ScanID, result.Symbol, result.Levels); err != nil {
		return err
	}
	if err := s.store.SaveZones(ctx, result.ScanID, result.Symbol, result.Zones); err != nil {
		return err
	}
	if err := s.store.SaveFibonacci(ctx, result.ScanID, result.Symbol, result.FibList()); err != nil {
		return err
	}
	return s.store.SaveConfluences(ctx, result.ScanID, result.Symbol, result.Confluences)
}

// Persist replaces the stored structure snapshot and records the signals
// worth evaluating later.
func (s *Scanner) Persist(ctx context.Context, result *ScanResult) ([]store.SignalRecord, error) {
	if err := s.PersistStructure(ctx, result); err != nil {
		return nil, err
	}

	records := SignalRecords(result)
	for i := range records {
		if err := s.store.SaveSignal(ctx, &records[i]); err != nil {
			return nil, err
		}
	}

	logger := logging.WithScanID(logging.FromContext(ctx), result.ScanID)
	logger.Info().
		Int("levels", len(result.Levels)).
		Int("signals", len(records)).
		Msg("Scan persisted")

	return records, nil
}

// SignalRecords converts the directional signals scoring at least 40 into
// snapshots. TP/SL fields are filled only for valid placements.
func SignalRecords(result *ScanResult) []store.SignalRecord {
	var records []store.SignalRecord
	for _, sig := range result.Signals {
		if sig.Base.Direction == models.Neutral || sig.Score.FinalScore < minSnapshotScore {
			continue
		}

		rec := store.SignalRecord{
			ScanID:         result.ScanID,
			Symbol:         result.Symbol,
			CreatedAt:      result.ScannedAt,
			Timeframe:      sig.Timeframe,
			Direction:      sig.Base.Direction,
			Confidence:     sig.Base.Confidence,
			ExtendedScore:  sig.Score.FinalScore,
			Classification: string(sig.Score.Classification),
			Price:          sig.Indicators.Close,
		}
		if sig.Setup != nil {
			rec.SetupType = string(sig.Setup.Type)
		}
		if p, ok := analysis.StrongestPattern(sig.Patterns, sig.Base.Direction, 1); ok {
			rec.Pattern = string(p.ID)
		}
		if sig.TPSL.Valid {
			rec.SL = sig.TPSL.SL
			rec.TP1 = sig.TPSL.TP1
			rec.TP2 = sig.TPSL.TP2
			rec.RRTP1 = sig.TPSL.RRTP1
			rec.RRTP2 = sig.TPSL.RRTP2
			rec.SLMethod = string(sig.TPSL.SLMethod)
			rec.TP1Method = string(sig.TPSL.TP1Method)
			rec.TP2Method = string(sig.TPSL.TP2Method)
		}
		records = append(records, rec)
	}
	return records
}

// higherDirection maps the trend of the next higher timeframe to a side,
// or "" when that trend is neutral or unknown.
func higherDirection(tf models.Timeframe, trends map[models.Timeframe]analysis.Trend) models.Direction {
	tfs := models.AllTimeframes
	for i, t := range tfs {
		if t != tf || i+1 >= len(tfs) {
			continue
		}
		trend, ok := trends[tfs[i+1]]
		if !ok {
			return ""
		}
		switch {
		case trend.Aligned(models.Long):
			return models.Long
		case trend.Aligned(models.Short):
			return models.Short
		}
		return ""
	}
	return ""
}

// latestClose returns the close of the most recent candle across series.
func latestClose(series map[models.Timeframe][]models.Candle) float64 {
	var latest models.Candle
	for _, tf := range models.AllTimeframes {
		candles := series[tf]
		if len(candles) == 0 {
			continue
		}
		if c := candles[len(candles)-1]; c.Timestamp.After(latest.Timestamp) {
			latest = c
		}
	}
	return latest.Close
}

func validateConfig(cfg *ScanConfig) error {
	if cfg.Symbol == "" {
		return apperrors.NewValidationError("symbol", cfg.Symbol, "symbol is required")
	}
	if cfg.BaseTimeframe == "" {
		cfg.BaseTimeframe = models.TF1D
	}
	if _, err := models.ParseTimeframe(string(cfg.BaseTimeframe)); err != nil {
		return err
	}
	if cfg.Bars <= 0 {
		cfg.Bars = DefaultBars
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now().UTC()
	}
	return nil
}
