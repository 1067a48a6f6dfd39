// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"btc-intel/internal/analysis"
	"btc-intel/internal/analysis/levels"
	apperrors "btc-intel/internal/errors"
	"btc-intel/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperrors.NewStoreError("open database", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, apperrors.NewStoreError("initialize schema", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Candles table for historical OHLCV data
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timeframe, timestamp)
	);

	-- Scored support/resistance levels from the latest scan
	CREATE TABLE IF NOT EXISTS price_levels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		price REAL NOT NULL,
		type TEXT NOT NULL,
		strength INTEGER NOT NULL,
		classification TEXT NOT NULL,
		sources TEXT NOT NULL,
		timeframes TEXT NOT NULL,
		touch_count INTEGER NOT NULL,
		last_touch DATETIME,
		last_touch_days INTEGER NOT NULL,
		fib_coincident INTEGER DEFAULT 0,
		fib_ratio REAL,
		role_flip INTEGER DEFAULT 0,
		flip_date DATETIME,
		high_volume INTEGER DEFAULT 0,
		psychological INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	-- Clustered level zones
	CREATE TABLE IF NOT EXISTS level_zones (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		price_low REAL NOT NULL,
		price_high REAL NOT NULL,
		price_mid REAL NOT NULL,
		strength INTEGER NOT NULL,
		type TEXT NOT NULL,
		sources TEXT NOT NULL,
		touch_count INTEGER NOT NULL,
		timeframes TEXT NOT NULL,
		fib_ratios TEXT NOT NULL,
		major INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	-- Fibonacci grids per timeframe
	CREATE TABLE IF NOT EXISTS fibonacci_levels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		direction TEXT NOT NULL,
		swing_high REAL NOT NULL,
		swing_high_time DATETIME NOT NULL,
		swing_low REAL NOT NULL,
		swing_low_time DATETIME NOT NULL,
		retracements TEXT NOT NULL,
		extensions TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE(symbol, timeframe)
	);

	-- Cross-timeframe Fibonacci confluences
	CREATE TABLE IF NOT EXISTS confluence_zones (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		price REAL NOT NULL,
		timeframes TEXT NOT NULL,
		ratios TEXT NOT NULL,
		labels TEXT NOT NULL,
		directions TEXT NOT NULL,
		max_quality INTEGER NOT NULL,
		zone_low REAL NOT NULL,
		zone_high REAL NOT NULL,
		strength INTEGER NOT NULL,
		major INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	-- Signal snapshots awaiting or carrying an outcome
	CREATE TABLE IF NOT EXISTS signals (
		id TEXT PRIMARY KEY,
		scan_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		timeframe TEXT NOT NULL,
		direction TEXT NOT NULL,
		confidence REAL NOT NULL,
		extended_score INTEGER NOT NULL,
		classification TEXT NOT NULL,
		price REAL NOT NULL,
		setup_type TEXT,
		pattern TEXT,
		sl REAL,
		tp1 REAL,
		tp2 REAL,
		rr_tp1 REAL,
		rr_tp2 REAL,
		sl_method TEXT,
		tp1_method TEXT,
		tp2_method TEXT,
		outcome TEXT,
		hit_at DATETIME,
		evaluated_at DATETIME,
		UNIQUE(symbol, timeframe, created_at)
	);

	-- Create indexes for performance
	CREATE INDEX IF NOT EXISTS idx_candles_symbol_timeframe ON candles(symbol, timeframe);
	CREATE INDEX IF NOT EXISTS idx_candles_timestamp ON candles(timestamp);
	CREATE INDEX IF NOT EXISTS idx_levels_symbol ON price_levels(symbol);
	CREATE INDEX IF NOT EXISTS idx_levels_strength ON price_levels(strength);
	CREATE INDEX IF NOT EXISTS idx_zones_symbol ON level_zones(symbol);
	CREATE INDEX IF NOT EXISTS idx_confluences_symbol ON confluence_zones(symbol);
	CREATE INDEX IF NOT EXISTS idx_signals_created ON signals(created_at);
	CREATE INDEX IF NOT EXISTS idx_signals_evaluated ON signals(evaluated_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Candles Methods
// ============================================================================

// SaveCandles saves candles to the database.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol string, tf models.Timeframe, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStoreError("begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return apperrors.NewStoreError("prepare statement", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx, symbol, string(tf), c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return apperrors.NewStoreError("insert candle", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStoreError("commit transaction", err)
	}

	return nil
}

// GetCandles retrieves candles from the database.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol string, tf models.Timeframe, from, to time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, symbol, string(tf), from.UTC(), to.UTC())
	if err != nil {
		return nil, apperrors.NewStoreError("query candles", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// GetLatestCandles returns the most recent limit candles in ascending order.
func (s *SQLiteStore) GetLatestCandles(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, symbol, string(tf), limit)
	if err != nil {
		return nil, apperrors.NewStoreError("query candles", err)
	}
	defer rows.Close()

	candles, err := scanCandles(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

func scanCandles(rows *sql.Rows) ([]models.Candle, error) {
	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, apperrors.NewStoreError("scan candle", err)
		}
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("iterate candles", err)
	}

	return candles, nil
}

// GetSeriesInfo returns candle counts and date ranges per timeframe.
func (s *SQLiteStore) GetSeriesInfo(ctx context.Context, symbol string) ([]SeriesInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timeframe, COUNT(*), MIN(timestamp), MAX(timestamp)
		FROM candles
		WHERE symbol = ?
		GROUP BY timeframe
		ORDER BY timeframe
	`, symbol)
	if err != nil {
		return nil, apperrors.NewStoreError("query series info", err)
	}
	defer rows.Close()

	var infos []SeriesInfo
	for rows.Next() {
		var info SeriesInfo
		var tf, first, last string
		if err := rows.Scan(&tf, &info.Count, &first, &last); err != nil {
			return nil, apperrors.NewStoreError("scan series info", err)
		}
		info.Timeframe = models.Timeframe(tf)
		if info.First, err = parseTimestamp(first); err != nil {
			return nil, err
		}
		if info.Last, err = parseTimestamp(last); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}

	return infos, rows.Err()
}

// parseTimestamp parses aggregate timestamps, which the driver returns as text.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSuffix(s, "Z")
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse timestamp %q", s)
}

// ============================================================================
// Structure Methods
// ============================================================================

// SaveLevels replaces the stored levels of symbol.
func (s *SQLiteStore) SaveLevels(ctx context.Context, scanID, symbol string, lvls []analysis.PriceLevel) error {
	now := time.Now().UTC()
	return s.replace(ctx, "price_levels", symbol, `
		INSERT INTO price_levels (scan_id, symbol, price, type, strength, classification, sources, timeframes, touch_count, last_touch, last_touch_days, fib_coincident, fib_ratio, role_flip, flip_date, high_volume, psychological, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, len(lvls), func(stmt *sql.Stmt, i int) error {
		l := lvls[i]
		_, err := stmt.ExecContext(ctx, scanID, symbol, l.Price, string(l.Type), l.Strength, string(levels.Classify(l.Strength)),
			encodeJSON(l.Sources), encodeJSON(l.Timeframes), l.TouchCount, nullTime(l.LastTouch), l.LastTouchDays,
			l.FibCoincident, l.FibRatio, l.RoleFlip, nullTime(l.FlipDate), l.HighVolume, l.Psychological, now)
		return err
	})
}

// GetLevels retrieves stored levels, strongest first.
func (s *SQLiteStore) GetLevels(ctx context.Context, symbol string, filter LevelFilter) ([]LevelRecord, error) {
	query := `SELECT scan_id, price, type, strength, classification, sources, timeframes, touch_count, last_touch, last_touch_days,
		fib_coincident, COALESCE(fib_ratio, 0), role_flip, flip_date, high_volume, psychological, created_at
		FROM price_levels WHERE symbol = ?`
	args := []interface{}{symbol}

	if filter.MinStrength > 0 {
		query += " AND strength >= ?"
		args = append(args, filter.MinStrength)
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, string(filter.Type))
	}

	query += " ORDER BY strength DESC, price ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("query levels", err)
	}
	defer rows.Close()

	var records []LevelRecord
	for rows.Next() {
		var r LevelRecord
		var levelType, class, sources, timeframes string
		var lastTouch, flipDate sql.NullTime

		if err := rows.Scan(&r.ScanID, &r.Price, &levelType, &r.Strength, &class, &sources, &timeframes, &r.TouchCount,
			&lastTouch, &r.LastTouchDays, &r.FibCoincident, &r.FibRatio, &r.RoleFlip, &flipDate, &r.HighVolume,
			&r.Psychological, &r.CreatedAt); err != nil {
			return nil, apperrors.NewStoreError("scan level", err)
		}
		if err := decodeJSON(sources, &r.Sources); err != nil {
			return nil, err
		}
		if err := decodeJSON(timeframes, &r.Timeframes); err != nil {
			return nil, err
		}
		r.Type = analysis.LevelType(levelType)
		r.Classification = levels.Classification(class)
		r.LastTouch = lastTouch.Time
		r.FlipDate = flipDate.Time
		records = append(records, r)
	}

	return records, rows.Err()
}

// SaveZones replaces the stored zones of symbol.
func (s *SQLiteStore) SaveZones(ctx context.Context, scanID, symbol string, zones []analysis.Zone) error {
	now := time.Now().UTC()
	return s.replace(ctx, "level_zones", symbol, `
		INSERT INTO level_zones (scan_id, symbol, price_low, price_high, price_mid, strength, type, sources, touch_count, timeframes, fib_ratios, major, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, len(zones), func(stmt *sql.Stmt, i int) error {
		z := zones[i]
		_, err := stmt.ExecContext(ctx, scanID, symbol, z.PriceLow, z.PriceHigh, z.PriceMid, z.Strength, string(z.Type),
			encodeJSON(z.Sources), z.TouchCount, encodeJSON(z.Timeframes), encodeJSON(z.FibRatios), z.MajorLevel, now)
		return err
	})
}

// GetZones retrieves stored zones, strongest first.
func (s *SQLiteStore) GetZones(ctx context.Context, symbol string) ([]analysis.Zone, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT price_low, price_high, price_mid, strength, type, sources, touch_count, timeframes, fib_ratios, major
		FROM level_zones WHERE symbol = ?
		ORDER BY strength DESC, id ASC
	`, symbol)
	if err != nil {
		return nil, apperrors.NewStoreError("query zones", err)
	}
	defer rows.Close()

	var zones []analysis.Zone
	for rows.Next() {
		var z analysis.Zone
		var zoneType, sources, timeframes, ratios string
		if err := rows.Scan(&z.PriceLow, &z.PriceHigh, &z.PriceMid, &z.Strength, &zoneType, &sources, &z.TouchCount,
			&timeframes, &ratios, &z.MajorLevel); err != nil {
			return nil, apperrors.NewStoreError("scan zone", err)
		}
		z.Type = analysis.LevelType(zoneType)
		if err := decodeJSON(sources, &z.Sources); err != nil {
			return nil, err
		}
		if err := decodeJSON(timeframes, &z.Timeframes); err != nil {
			return nil, err
		}
		if err := decodeJSON(ratios, &z.FibRatios); err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}

	return zones, rows.Err()
}

// SaveFibonacci replaces the stored Fibonacci grids of symbol.
func (s *SQLiteStore) SaveFibonacci(ctx context.Context, scanID, symbol string, fibs []analysis.FibonacciAnalysis) error {
	now := time.Now().UTC()
	return s.replace(ctx, "fibonacci_levels", symbol, `
		INSERT INTO fibonacci_levels (scan_id, symbol, timeframe, direction, swing_high, swing_high_time, swing_low, swing_low_time, retracements, extensions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, len(fibs), func(stmt *sql.Stmt, i int) error {
		f := fibs[i]
		_, err := stmt.ExecContext(ctx, scanID, symbol, string(f.Timeframe), string(f.Direction), f.SwingHigh, f.SwingHighTime.UTC(),
			f.SwingLow, f.SwingLowTime.UTC(), encodeJSON(f.Retracements), encodeJSON(f.Extensions), now)
		return err
	})
}

// GetFibonacci retrieves stored Fibonacci grids ordered by timeframe.
func (s *SQLiteStore) GetFibonacci(ctx context.Context, symbol string) ([]analysis.FibonacciAnalysis, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timeframe, direction, swing_high, swing_high_time, swing_low, swing_low_time, retracements, extensions
		FROM fibonacci_levels WHERE symbol = ?
		ORDER BY id ASC
	`, symbol)
	if err != nil {
		return nil, apperrors.NewStoreError("query fibonacci levels", err)
	}
	defer rows.Close()

	var fibs []analysis.FibonacciAnalysis
	for rows.Next() {
		var f analysis.FibonacciAnalysis
		var tf, dir, retracements, extensions string
		if err := rows.Scan(&tf, &dir, &f.SwingHigh, &f.SwingHighTime, &f.SwingLow, &f.SwingLowTime,
			&retracements, &extensions); err != nil {
			return nil, apperrors.NewStoreError("scan fibonacci levels", err)
		}
		f.Timeframe = models.Timeframe(tf)
		f.Direction = models.Direction(dir)
		if err := decodeJSON(retracements, &f.Retracements); err != nil {
			return nil, err
		}
		if err := decodeJSON(extensions, &f.Extensions); err != nil {
			return nil, err
		}
		fibs = append(fibs, f)
	}

	return fibs, rows.Err()
}

// SaveConfluences replaces the stored confluences of symbol.
func (s *SQLiteStore) SaveConfluences(ctx context.Context, scanID, symbol string, confluences []analysis.Confluence) error {
	now := time.Now().UTC()
	return s.replace(ctx, "confluence_zones", symbol, `
		INSERT INTO confluence_zones (scan_id, symbol, price, timeframes, ratios, labels, directions, max_quality, zone_low, zone_high, strength, major, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, len(confluences), func(stmt *sql.Stmt, i int) error {
		c := confluences[i]
		_, err := stmt.ExecContext(ctx, scanID, symbol, c.Price, encodeJSON(c.Timeframes), encodeJSON(c.Ratios),
			encodeJSON(c.Labels), encodeJSON(c.Directions), c.MaxQuality, c.ZoneLow, c.ZoneHigh, c.Strength, c.Major, now)
		return err
	})
}

// GetConfluences retrieves stored confluences in saved order.
func (s *SQLiteStore) GetConfluences(ctx context.Context, symbol string) ([]analysis.Confluence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT price, timeframes, ratios, labels, directions, max_quality, zone_low, zone_high, strength, major
		FROM confluence_zones WHERE symbol = ?
		ORDER BY id ASC
	`, symbol)
	if err != nil {
		return nil, apperrors.NewStoreError("query confluences", err)
	}
	defer rows.Close()

	var out []analysis.Confluence
	for rows.Next() {
		var c analysis.Confluence
		var timeframes, ratios, labels, directions string
		if err := rows.Scan(&c.Price, &timeframes, &ratios, &labels, &directions, &c.MaxQuality, &c.ZoneLow,
			&c.ZoneHigh, &c.Strength, &c.Major); err != nil {
			return nil, apperrors.NewStoreError("scan confluence", err)
		}
		for _, pair := range []struct {
			raw string
			dst interface{}
		}{
			{timeframes, &c.Timeframes},
			{ratios, &c.Ratios},
			{labels, &c.Labels},
			{directions, &c.Directions},
		} {
			if err := decodeJSON(pair.raw, pair.dst); err != nil {
				return nil, err
			}
		}
		c.NumTimeframes = len(c.Timeframes)
		out = append(out, c)
	}

	return out, rows.Err()
}

// replace deletes the rows of symbol in table and inserts n new ones in one transaction.
func (s *SQLiteStore) replace(ctx context.Context, table, symbol, insert string, n int, exec func(*sql.Stmt, int) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStoreError("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE symbol = ?", symbol); err != nil {
		return apperrors.NewStoreError("clear "+table, err)
	}

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return apperrors.NewStoreError("prepare statement", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			return apperrors.NewStoreError("insert into "+table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStoreError("commit transaction", err)
	}

	return nil
}

// ============================================================================
// Signal Methods
// ============================================================================

// SaveSignal stores a signal snapshot, assigning an ID when missing.
// A second snapshot for the same symbol, timeframe and instant replaces the first.
func (s *SQLiteStore) SaveSignal(ctx context.Context, sig *SignalRecord) error {
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO signals (id, scan_id, symbol, created_at, timeframe, direction, confidence, extended_score, classification, price, setup_type, pattern, sl, tp1, tp2, rr_tp1, rr_tp2, sl_method, tp1_method, tp2_method, outcome, hit_at, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sig.ID, sig.ScanID, sig.Symbol, sig.CreatedAt.UTC(), string(sig.Timeframe), string(sig.Direction), sig.Confidence,
		sig.ExtendedScore, sig.Classification, sig.Price, sig.SetupType, sig.Pattern, sig.SL, sig.TP1, sig.TP2,
		sig.RRTP1, sig.RRTP2, sig.SLMethod, sig.TP1Method, sig.TP2Method, nullString(string(sig.Outcome)),
		nullTime(sig.HitAt), nullTime(sig.EvaluatedAt))
	if err != nil {
		return apperrors.NewStoreError("save signal", err)
	}
	return nil
}

// GetSignals retrieves signals oldest first.
func (s *SQLiteStore) GetSignals(ctx context.Context, filter SignalFilter) ([]SignalRecord, error) {
	query := `SELECT id, scan_id, symbol, created_at, timeframe, direction, confidence, extended_score, classification, price,
		COALESCE(setup_type, ''), COALESCE(pattern, ''), COALESCE(sl, 0), COALESCE(tp1, 0), COALESCE(tp2, 0),
		COALESCE(rr_tp1, 0), COALESCE(rr_tp2, 0), COALESCE(sl_method, ''), COALESCE(tp1_method, ''), COALESCE(tp2_method, ''),
		COALESCE(outcome, ''), hit_at, evaluated_at
		FROM signals WHERE 1=1`
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Timeframe != "" {
		query += " AND timeframe = ?"
		args = append(args, string(filter.Timeframe))
	}
	if filter.Evaluated != nil {
		if *filter.Evaluated {
			query += " AND evaluated_at IS NOT NULL"
		} else {
			query += " AND evaluated_at IS NULL"
		}
	}
	if !filter.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filter.Since.UTC())
	}

	query += " ORDER BY created_at ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("query signals", err)
	}
	defer rows.Close()

	var signals []SignalRecord
	for rows.Next() {
		var sig SignalRecord
		var tf, dir, outcome string
		var hitAt, evaluatedAt sql.NullTime

		if err := rows.Scan(&sig.ID, &sig.ScanID, &sig.Symbol, &sig.CreatedAt, &tf, &dir, &sig.Confidence,
			&sig.ExtendedScore, &sig.Classification, &sig.Price, &sig.SetupType, &sig.Pattern, &sig.SL, &sig.TP1,
			&sig.TP2, &sig.RRTP1, &sig.RRTP2, &sig.SLMethod, &sig.TP1Method, &sig.TP2Method, &outcome, &hitAt,
			&evaluatedAt); err != nil {
			return nil, apperrors.NewStoreError("scan signal", err)
		}
		sig.Timeframe = models.Timeframe(tf)
		sig.Direction = models.Direction(dir)
		sig.Outcome = Outcome(outcome)
		sig.HitAt = hitAt.Time
		sig.EvaluatedAt = evaluatedAt.Time
		signals = append(signals, sig)
	}

	return signals, rows.Err()
}

// UpdateSignalOutcome records the evaluated outcome of a signal.
func (s *SQLiteStore) UpdateSignalOutcome(ctx context.Context, id string, outcome Outcome, hitAt, evaluatedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE signals SET outcome = ?, hit_at = ?, evaluated_at = ? WHERE id = ?
	`, string(outcome), nullTime(hitAt), evaluatedAt.UTC(), id)
	if err != nil {
		return apperrors.NewStoreError("update signal outcome", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewStoreError("update signal outcome", err)
	}
	if n == 0 {
		return fmt.Errorf("signal %s: %w", id, apperrors.ErrDataNotFound)
	}
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func encodeJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

func decodeJSON(raw string, v interface{}) error {
	if raw == "" || raw == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return apperrors.NewStoreError("decode stored JSON", err)
	}
	return nil
}
