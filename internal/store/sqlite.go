package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"yield-pilot/internal/errors"
	"yield-pilot/internal/models"
	"yield-pilot/internal/stream"
)

// SQLiteStore implements AuditStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based audit store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		session_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		type TEXT NOT NULL,
		confidence REAL NOT NULL,
		reasoning TEXT,
		actions TEXT,
		risk TEXT,
		portfolio_value REAL
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_session ON decisions(session_id);
	CREATE INDEX IF NOT EXISTS idx_decisions_timestamp ON decisions(timestamp);

	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		status TEXT NOT NULL,
		actions TEXT,
		estimated_value_usd REAL NOT NULL,
		requires_approval INTEGER NOT NULL,
		approved_at DATETIME,
		approved_by TEXT,
		executed_at DATETIME,
		tx_id TEXT,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status);
	CREATE INDEX IF NOT EXISTS idx_trades_timestamp ON trades(timestamp);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		type TEXT NOT NULL,
		data TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordDecision implements AuditStore.
func (s *SQLiteStore) RecordDecision(ctx context.Context, decision *models.Decision, dctx DecisionContext) error {
	actionsJSON, err := json.Marshal(decision.Actions)
	if err != nil {
		return errors.Wrap(err, "marshaling actions")
	}
	riskJSON, err := json.Marshal(decision.Risk)
	if err != nil {
		return errors.Wrap(err, "marshaling risk analysis")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO decisions
		(id, timestamp, session_id, mode, type, confidence, reasoning, actions, risk, portfolio_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		decision.ID, decision.Timestamp, dctx.SessionID, string(dctx.Mode),
		string(decision.Type), decision.Confidence, decision.Reasoning,
		string(actionsJSON), string(riskJSON), dctx.PortfolioValue,
	)
	if err != nil {
		return errors.Wrap(err, "inserting decision")
	}
	return nil
}

// RecordTrade implements AuditStore. Re-recording a trade replaces its row,
// so the stored row always reflects the latest status.
func (s *SQLiteStore) RecordTrade(ctx context.Context, trade *models.PendingTrade) error {
	actionsJSON, err := json.Marshal(trade.Actions)
	if err != nil {
		return errors.Wrap(err, "marshaling actions")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO trades
		(id, timestamp, status, actions, estimated_value_usd, requires_approval,
		 approved_at, approved_by, executed_at, tx_id, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.ID, trade.Timestamp, string(trade.Status), string(actionsJSON),
		trade.EstimatedValueUsd, boolToInt(trade.RequiresApproval),
		nullableTime(trade.ApprovedAt), trade.ApprovedBy,
		nullableTime(trade.ExecutedAt), trade.TxID, trade.Error,
	)
	if err != nil {
		return errors.Wrap(err, "inserting trade")
	}
	return nil
}

// RecordEvent implements AuditStore.
func (s *SQLiteStore) RecordEvent(ctx context.Context, ev stream.Event) error {
	dataJSON, err := json.Marshal(ev.Data)
	if err != nil {
		return errors.Wrap(err, "marshaling event data")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (timestamp, type, data) VALUES (?, ?, ?)`,
		ev.Timestamp, string(ev.Type), string(dataJSON),
	)
	if err != nil {
		return errors.Wrap(err, "inserting event")
	}
	return nil
}

// GetDecisions implements AuditStore.
func (s *SQLiteStore) GetDecisions(ctx context.Context, filter DecisionFilter) ([]DecisionRecord, error) {
	query := `SELECT id, timestamp, session_id, mode, type, confidence, reasoning, actions, risk, portfolio_value
		FROM decisions`
	var conditions []string
	var args []interface{}

	if filter.SessionID != "" {
		conditions = append(conditions, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(filter.Type))
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, filter.To)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying decisions")
	}
	defer rows.Close()

	var records []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		var mode, decisionType, actionsJSON, riskJSON string
		if err := rows.Scan(
			&rec.Decision.ID, &rec.Decision.Timestamp, &rec.Context.SessionID,
			&mode, &decisionType, &rec.Decision.Confidence, &rec.Decision.Reasoning,
			&actionsJSON, &riskJSON, &rec.Context.PortfolioValue,
		); err != nil {
			return nil, errors.Wrap(err, "scanning decision")
		}
		rec.Context.Mode = models.Mode(mode)
		rec.Decision.Type = models.DecisionType(decisionType)
		if actionsJSON != "" {
			if err := json.Unmarshal([]byte(actionsJSON), &rec.Decision.Actions); err != nil {
				return nil, errors.Wrap(err, "unmarshaling actions")
			}
		}
		if riskJSON != "" {
			if err := json.Unmarshal([]byte(riskJSON), &rec.Decision.Risk); err != nil {
				return nil, errors.Wrap(err, "unmarshaling risk analysis")
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetTrades implements AuditStore.
func (s *SQLiteStore) GetTrades(ctx context.Context, filter TradeFilter) ([]models.PendingTrade, error) {
	query := `SELECT id, timestamp, status, actions, estimated_value_usd, requires_approval,
		approved_at, approved_by, executed_at, tx_id, error FROM trades`
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, filter.To)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying trades")
	}
	defer rows.Close()

	var trades []models.PendingTrade
	for rows.Next() {
		var trade models.PendingTrade
		var status, actionsJSON string
		var requiresApproval int
		var approvedAt, executedAt sql.NullTime
		if err := rows.Scan(
			&trade.ID, &trade.Timestamp, &status, &actionsJSON,
			&trade.EstimatedValueUsd, &requiresApproval,
			&approvedAt, &trade.ApprovedBy, &executedAt, &trade.TxID, &trade.Error,
		); err != nil {
			return nil, errors.Wrap(err, "scanning trade")
		}
		trade.Status = models.TradeStatus(status)
		trade.RequiresApproval = requiresApproval != 0
		if approvedAt.Valid {
			trade.ApprovedAt = approvedAt.Time
		}
		if executedAt.Valid {
			trade.ExecutedAt = executedAt.Time
		}
		if actionsJSON != "" {
			if err := json.Unmarshal([]byte(actionsJSON), &trade.Actions); err != nil {
				return nil, errors.Wrap(err, "unmarshaling actions")
			}
		}
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
