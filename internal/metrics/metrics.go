// Package metrics records batch run metrics and writes them to a Prometheus
// textfile for the node exporter to pick up.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	CommandRuns     *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	LastRun         *prometheus.GaugeVec

	CandlesImported *prometheus.CounterVec
	ScanLevels      prometheus.Gauge
	ScanZones       prometheus.Gauge
	ScanConfluences prometheus.Gauge
	SignalScore     *prometheus.GaugeVec

	SignalsEvaluated *prometheus.CounterVec
	BacktestWinRate  prometheus.Gauge
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		CommandRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "btcintel_command_runs_total",
				Help: "Total number of command runs",
			},
			[]string{"command", "status"}, // status: success|error
		),
		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "btcintel_command_duration_seconds",
				Help:    "Command duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"command"},
		),
		LastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "btcintel_command_last_run_timestamp",
				Help: "Unix timestamp of the last command run",
			},
			[]string{"command"},
		),

		CandlesImported: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "btcintel_candles_imported_total",
				Help: "Total number of candles imported",
			},
			[]string{"timeframe"},
		),
		ScanLevels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "btcintel_scan_levels",
			Help: "Price levels found by the last scan",
		}),
		ScanZones: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "btcintel_scan_zones",
			Help: "Zones found by the last scan",
		}),
		ScanConfluences: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "btcintel_scan_confluences",
			Help: "Fibonacci confluences found by the last scan",
		}),
		SignalScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "btcintel_signal_score",
				Help: "Extended signal score of the last scan",
			},
			[]string{"timeframe"},
		),

		SignalsEvaluated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "btcintel_signals_evaluated_total",
				Help: "Total number of evaluated signals",
			},
			[]string{"outcome"},
		),
		BacktestWinRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "btcintel_backtest_win_rate",
			Help: "Win rate of evaluated signals in percent",
		}),
	}

	m.registry.MustRegister(
		m.CommandRuns,
		m.CommandDuration,
		m.LastRun,
		m.CandlesImported,
		m.ScanLevels,
		m.ScanZones,
		m.ScanConfluences,
		m.SignalScore,
		m.SignalsEvaluated,
		m.BacktestWinRate,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCommand records a command run.
func (m *Metrics) RecordCommand(command string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.CommandRuns.WithLabelValues(command, status).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(duration.Seconds())
	m.LastRun.WithLabelValues(command).SetToCurrentTime()
}

// RecordScan records the size of a scan result and its per-timeframe scores.
func (m *Metrics) RecordScan(levels, zones, confluences int, scores map[string]int) {
	m.ScanLevels.Set(float64(levels))
	m.ScanZones.Set(float64(zones))
	m.ScanConfluences.Set(float64(confluences))
	for tf, score := range scores {
		m.SignalScore.WithLabelValues(tf).Set(float64(score))
	}
}

// RecordImport records imported candles.
func (m *Metrics) RecordImport(timeframe string, n int) {
	m.CandlesImported.WithLabelValues(timeframe).Add(float64(n))
}

// RecordEvaluation records one evaluated signal.
func (m *Metrics) RecordEvaluation(outcome string) {
	m.SignalsEvaluated.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes every collector to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
