package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	scanerrors "spread-scanner/internal/errors"
	"spread-scanner/internal/models"
)

// SQLiteStore implements DataStore using SQLite. Nested spread and signal
// payloads are stored as JSON alongside the queryable columns.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, scanerrors.Wrap(err, "opening database")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	st := &SQLiteStore{db: db}
	if err := st.initSchema(); err != nil {
		db.Close()
		return nil, scanerrors.Wrap(err, "initializing schema")
	}
	return st, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS signals (
		id TEXT PRIMARY KEY,
		cycle_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		kind TEXT NOT NULL,
		ev_percent REAL NOT NULL,
		pop REAL NOT NULL,
		rank INTEGER NOT NULL,
		payload TEXT NOT NULL,
		emitted_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_signals_symbol ON signals(symbol);
	CREATE INDEX IF NOT EXISTS idx_signals_cycle ON signals(cycle_id);

	CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		state TEXT NOT NULL,
		entry_price REAL NOT NULL,
		target_profit REAL NOT NULL,
		stop_loss REAL NOT NULL,
		realized_pnl REAL NOT NULL DEFAULT 0,
		payload TEXT NOT NULL,
		opened_at DATETIME NOT NULL,
		closed_at DATETIME,
		archived INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_positions_state ON positions(state);
	CREATE INDEX IF NOT EXISTS idx_positions_symbol ON positions(symbol);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveSignals stores all signals from one cycle.
func (s *SQLiteStore) SaveSignals(ctx context.Context, cycleID string, signals []models.Signal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return scanerrors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO signals (id, cycle_id, symbol, kind, ev_percent, pop, rank, payload, emitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return scanerrors.Wrap(err, "preparing insert")
	}
	defer stmt.Close()

	for _, sig := range signals {
		payload, err := json.Marshal(sig)
		if err != nil {
			return scanerrors.Wrap(err, "marshaling signal")
		}
		if _, err := stmt.ExecContext(ctx, sig.ID, cycleID, sig.Symbol, string(sig.Spread.Kind),
			sig.EVPercent, sig.POP, sig.Rank, string(payload), sig.EmittedAt); err != nil {
			return scanerrors.Wrap(err, "inserting signal")
		}
	}

	return tx.Commit()
}

// GetSignals queries stored signals, most recent first.
func (s *SQLiteStore) GetSignals(ctx context.Context, filter SignalFilter) ([]models.Signal, error) {
	query := `SELECT payload FROM signals WHERE 1=1`
	var args []interface{}

	if filter.Symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, filter.Symbol)
	}
	if filter.CycleID != "" {
		query += ` AND cycle_id = ?`
		args = append(args, filter.CycleID)
	}
	if !filter.StartDate.IsZero() {
		query += ` AND emitted_at >= ?`
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		query += ` AND emitted_at <= ?`
		args = append(args, filter.EndDate)
	}
	query += ` ORDER BY emitted_at DESC, rank ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, scanerrors.Wrap(err, "querying signals")
	}
	defer rows.Close()

	var signals []models.Signal
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, scanerrors.Wrap(err, "scanning signal row")
		}
		var sig models.Signal
		if err := json.Unmarshal([]byte(payload), &sig); err != nil {
			return nil, scanerrors.Wrap(err, "unmarshaling signal")
		}
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

// SavePosition upserts an open position.
func (s *SQLiteStore) SavePosition(ctx context.Context, pos *models.Position) error {
	return s.writePosition(ctx, pos, false)
}

// ArchivePosition stores a closed position in its terminal state. Archived
// rows are never deleted.
func (s *SQLiteStore) ArchivePosition(ctx context.Context, pos *models.Position) error {
	if !pos.State.Closed() {
		return scanerrors.NewTransitionError(pos.ID, string(pos.State), "archive")
	}
	return s.writePosition(ctx, pos, true)
}

func (s *SQLiteStore) writePosition(ctx context.Context, pos *models.Position, archived bool) error {
	payload, err := json.Marshal(pos)
	if err != nil {
		return scanerrors.Wrap(err, "marshaling position")
	}

	var closedAt interface{}
	if !pos.ClosedAt.IsZero() {
		closedAt = pos.ClosedAt
	}

	flag := 0
	if archived {
		flag = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO positions
			(id, symbol, state, entry_price, target_profit, stop_loss, realized_pnl, payload, opened_at, closed_at, archived)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pos.ID, pos.Signal.Symbol, string(pos.State), pos.EntryPrice, pos.TargetProfit,
		pos.StopLoss, pos.RealizedPnL, string(payload), pos.OpenedAt, closedAt, flag)
	return scanerrors.Wrap(err, "writing position")
}

// GetPositions queries positions, open before archived, most recent first.
func (s *SQLiteStore) GetPositions(ctx context.Context, filter PositionFilter) ([]models.Position, error) {
	query := `SELECT payload FROM positions WHERE 1=1`
	var args []interface{}

	if filter.Symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, filter.Symbol)
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, filter.State)
	}
	query += ` ORDER BY archived ASC, opened_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, scanerrors.Wrap(err, "querying positions")
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, scanerrors.Wrap(err, "scanning position row")
		}
		var pos models.Position
		if err := json.Unmarshal([]byte(payload), &pos); err != nil {
			return nil, scanerrors.Wrap(err, "unmarshaling position")
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ DataStore = (*SQLiteStore)(nil)
