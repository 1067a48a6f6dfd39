// Package indicators computes the technical indicators a scan reads, backed
// by go-talib and evaluated on a small worker pool.
package indicators

import (
	"context"
	"sync"

	"btc-intel/internal/analysis"
	"btc-intel/internal/models"
)

// Indicator defines the interface for single-value technical indicators.
type Indicator interface {
	Name() string
	Calculate(candles []models.Candle) ([]float64, error)
	Period() int
}

// MultiValueIndicator defines the interface for indicators that return multiple values.
type MultiValueIndicator interface {
	Name() string
	Calculate(candles []models.Candle) (map[string][]float64, error)
	Period() int
}

// Standard indicator set used by the scan.
var (
	atr14    = NewATR(14)
	bb20     = NewBollingerBands(20, 2.0)
	ema21    = NewEMA(21)
	ema50    = NewEMA(50)
	sma200   = NewSMA(200)
	rsi14    = NewRSI(14)
	volSMA20 = NewVolumeSMA(20)
)

// neutralRSI stands in for RSI on series too short to compute it.
const neutralRSI = 50.0

// Snapshot holds the latest indicator values of one series. A zero value
// means the series was too short for that indicator.
type Snapshot struct {
	Close       float64        `json:"close"`
	Volume      float64        `json:"volume"`
	ATR         float64        `json:"atr"`
	BBUpper     float64        `json:"bb_upper"`
	BBMid       float64        `json:"bb_mid"`
	BBLower     float64        `json:"bb_lower"`
	EMA21       float64        `json:"ema_21"`
	EMA50       float64        `json:"ema_50"`
	SMA200      float64        `json:"sma_200"`
	RSI         float64        `json:"rsi"`
	VolumeSMA20 float64        `json:"volume_sma_20"`
	Trend       analysis.Trend `json:"trend"`
}

// Results holds every series the engine could compute, keyed by indicator
// name. Indicators that failed, usually for lack of data, are absent.
type Results struct {
	Single map[string][]float64
	Multi  map[string]map[string][]float64
}

// Latest returns the last value of a single-value series.
func (r Results) Latest(name string) (float64, bool) {
	values, ok := r.Single[name]
	if !ok || len(values) == 0 {
		return 0, false
	}
	return values[len(values)-1], true
}

// LatestBand returns the last value of one output of a multi-value indicator.
func (r Results) LatestBand(name, key string) float64 {
	return last(r.Multi[name][key])
}

type job func(res *Results, mu *sync.Mutex)

// Engine evaluates registered indicators concurrently.
type Engine struct {
	workers int

	mu     sync.RWMutex
	single map[string]Indicator
	multi  map[string]MultiValueIndicator
}

// NewEngine creates an engine running at most workers calculations at once.
func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		workers: workers,
		single:  make(map[string]Indicator),
		multi:   make(map[string]MultiValueIndicator),
	}
}

// NewStandardEngine creates an engine with the indicators a Snapshot needs.
func NewStandardEngine(workers int) *Engine {
	e := NewEngine(workers)
	for _, ind := range []Indicator{atr14, ema21, ema50, sma200, rsi14, volSMA20} {
		e.RegisterIndicator(ind)
	}
	e.RegisterMultiIndicator(bb20)
	return e
}

// RegisterIndicator registers a single-value indicator.
func (e *Engine) RegisterIndicator(ind Indicator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.single[ind.Name()] = ind
}

// RegisterMultiIndicator registers a multi-value indicator.
func (e *Engine) RegisterMultiIndicator(ind MultiValueIndicator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.multi[ind.Name()] = ind
}

func (e *Engine) jobs(candles []models.Candle) []job {
	e.mu.RLock()
	defer e.mu.RUnlock()

	jobs := make([]job, 0, len(e.single)+len(e.multi))
	for name, ind := range e.single {
		jobs = append(jobs, func(res *Results, mu *sync.Mutex) {
			if values, err := ind.Calculate(candles); err == nil {
				mu.Lock()
				res.Single[name] = values
				mu.Unlock()
			}
		})
	}
	for name, ind := range e.multi {
		jobs = append(jobs, func(res *Results, mu *sync.Mutex) {
			if values, err := ind.Calculate(candles); err == nil {
				mu.Lock()
				res.Multi[name] = values
				mu.Unlock()
			}
		})
	}
	return jobs
}

// CalculateAll runs every registered indicator over candles. Work stops being
// handed out once ctx is done and the context error is returned.
func (e *Engine) CalculateAll(ctx context.Context, candles []models.Candle) (Results, error) {
	jobs := e.jobs(candles)
	res := Results{
		Single: make(map[string][]float64, len(jobs)),
		Multi:  make(map[string]map[string][]float64),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	queue := make(chan job)
	for i := 0; i < min(e.workers, len(jobs)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				j(&res, &mu)
			}
		}()
	}

feed:
	for _, j := range jobs {
		select {
		case queue <- j:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return Results{}, err
	}
	return res, nil
}

// Snapshot computes the standard indicator set and keeps the latest value
// of each. RSI falls back to 50 when the series is too short.
func (e *Engine) Snapshot(ctx context.Context, candles []models.Candle) (Snapshot, error) {
	if len(candles) == 0 {
		return Snapshot{}, ErrInsufficientData
	}

	res, err := e.CalculateAll(ctx, candles)
	if err != nil {
		return Snapshot{}, err
	}

	latest := candles[len(candles)-1]
	snap := Snapshot{
		Close:   latest.Close,
		Volume:  latest.Volume,
		RSI:     neutralRSI,
		BBUpper: res.LatestBand(bb20.Name(), BandUpper),
		BBMid:   res.LatestBand(bb20.Name(), BandMiddle),
		BBLower: res.LatestBand(bb20.Name(), BandLower),
	}
	snap.ATR, _ = res.Latest(atr14.Name())
	snap.EMA21, _ = res.Latest(ema21.Name())
	snap.EMA50, _ = res.Latest(ema50.Name())
	snap.SMA200, _ = res.Latest(sma200.Name())
	snap.VolumeSMA20, _ = res.Latest(volSMA20.Name())
	if rsi, ok := res.Latest(rsi14.Name()); ok {
		snap.RSI = rsi
	}
	snap.Trend = ClassifyTrend(snap.Close, snap.EMA21, snap.EMA50, snap.SMA200)
	return snap, nil
}
