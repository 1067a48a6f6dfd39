// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"btc-intel/internal/analysis"
	"btc-intel/internal/analysis/levels"
	"btc-intel/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Candles
	SaveCandles(ctx context.Context, symbol string, tf models.Timeframe, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol string, tf models.Timeframe, from, to time.Time) ([]models.Candle, error)
	GetLatestCandles(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Candle, error)
	GetSeriesInfo(ctx context.Context, symbol string) ([]SeriesInfo, error)

	// Structure snapshots, replaced on every scan
	SaveLevels(ctx context.Context, scanID, symbol string, lvls []analysis.PriceLevel) error
	GetLevels(ctx context.Context, symbol string, filter LevelFilter) ([]LevelRecord, error)
	SaveZones(ctx context.Context, scanID, symbol string, zones []analysis.Zone) error
	GetZones(ctx context.Context, symbol string) ([]analysis.Zone, error)
	SaveFibonacci(ctx context.Context, scanID, symbol string, fibs []analysis.FibonacciAnalysis) error
	GetFibonacci(ctx context.Context, symbol string) ([]analysis.FibonacciAnalysis, error)
	SaveConfluences(ctx context.Context, scanID, symbol string, confluences []analysis.Confluence) error
	GetConfluences(ctx context.Context, symbol string) ([]analysis.Confluence, error)

	// Signals
	SaveSignal(ctx context.Context, sig *SignalRecord) error
	GetSignals(ctx context.Context, filter SignalFilter) ([]SignalRecord, error)
	UpdateSignalOutcome(ctx context.Context, id string, outcome Outcome, hitAt, evaluatedAt time.Time) error

	// Lifecycle
	Close() error
}

// SeriesInfo summarises the stored candles of one timeframe.
type SeriesInfo struct {
	Timeframe models.Timeframe `json:"timeframe"`
	Count     int              `json:"count"`
	First     time.Time        `json:"first"`
	Last      time.Time        `json:"last"`
}

// LevelRecord is a stored level with its classification.
type LevelRecord struct {
	analysis.PriceLevel
	ScanID         string                `json:"scan_id"`
	Classification levels.Classification `json:"classification"`
	CreatedAt      time.Time             `json:"created_at"`
}

// LevelFilter represents filters for querying levels.
type LevelFilter struct {
	MinStrength int
	Type        analysis.LevelType
	Limit       int
}

// Outcome is the evaluated result of a stored signal.
type Outcome string

const (
	OutcomeSLHit     Outcome = "sl_hit"
	OutcomeTP1Hit    Outcome = "tp1_hit"
	OutcomeTP2Hit    Outcome = "tp2_hit"
	OutcomePending   Outcome = "pending"
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
)

// IsWin reports whether the outcome counts as a successful signal.
func (o Outcome) IsWin() bool {
	return o == OutcomeTP1Hit || o == OutcomeTP2Hit || o == OutcomeCorrect
}

// IsLoss reports whether the outcome counts as a failed signal.
func (o Outcome) IsLoss() bool {
	return o == OutcomeSLHit || o == OutcomeIncorrect
}

// SignalRecord is a signal snapshot stored for later evaluation.
// SL/TP fields are zero when no valid TP/SL was computed.
type SignalRecord struct {
	ID             string           `json:"id"`
	ScanID         string           `json:"scan_id"`
	Symbol         string           `json:"symbol"`
	CreatedAt      time.Time        `json:"created_at"`
	Timeframe      models.Timeframe `json:"timeframe"`
	Direction      models.Direction `json:"direction"`
	Confidence     float64          `json:"confidence"`
	ExtendedScore  int              `json:"extended_score"`
	Classification string           `json:"classification"`
	Price          float64          `json:"price"`
	SetupType      string           `json:"setup_type,omitempty"`
	Pattern        string           `json:"pattern,omitempty"`
	SL             float64          `json:"sl,omitempty"`
	TP1            float64          `json:"tp1,omitempty"`
	TP2            float64          `json:"tp2,omitempty"`
	RRTP1          float64          `json:"rr_tp1,omitempty"`
	RRTP2          float64          `json:"rr_tp2,omitempty"`
	SLMethod       string           `json:"sl_method,omitempty"`
	TP1Method      string           `json:"tp1_method,omitempty"`
	TP2Method      string           `json:"tp2_method,omitempty"`
	Outcome        Outcome          `json:"outcome,omitempty"`
	HitAt          time.Time        `json:"hit_at,omitempty"`
	EvaluatedAt    time.Time        `json:"evaluated_at,omitempty"`
}

// HasTPSL reports whether the signal carries a stop and first target.
func (s *SignalRecord) HasTPSL() bool {
	return s.SL != 0 && s.TP1 != 0
}

// SignalFilter represents filters for querying signals.
type SignalFilter struct {
	Symbol    string
	Timeframe models.Timeframe
	// Evaluated selects evaluated (true) or unevaluated (false) signals; nil selects both.
	Evaluated *bool
	Since     time.Time
	Limit     int
}
