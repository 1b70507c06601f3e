package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"OrdreBook/internal/domain/models"
	domrepo "OrdreBook/internal/domain/repository"
	pkgch "OrdreBook/pkg/clickhouse"
	"OrdreBook/pkg/logger"
)

const (
	decisionsTable  = "trade_decisions"
	executionsTable = "trade_executions"
)

// JournalSchema returns the idempotent DDL for the journal tables.
func JournalSchema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + decisionsTable + ` (
            id String,
            symbol LowCardinality(String),
            final_action LowCardinality(String),
            buy_votes UInt8,
            sell_votes UInt8,
            reference_price Float64,
            recommendations String,
            event_time DateTime64(3),
            created_at DateTime64(3)
        ) ENGINE = MergeTree
        PARTITION BY toYYYYMM(created_at)
        ORDER BY (symbol, created_at)`,
		`CREATE TABLE IF NOT EXISTS ` + executionsTable + ` (
            signal_id String,
            decision_id String,
            symbol LowCardinality(String),
            action LowCardinality(String),
            price Float64,
            stop_loss Float64,
            balance Float64,
            size Float64,
            order_id String,
            status LowCardinality(String),
            outcome LowCardinality(String),
            reason String,
            started_at DateTime64(3),
            finished_at DateTime64(3)
        ) ENGINE = MergeTree
        PARTITION BY toYYYYMM(started_at)
        ORDER BY (symbol, started_at)`,
	}
}

// ClickHouseJournal writes decisions and execution outcomes to ClickHouse.
type ClickHouseJournal struct {
	db *sql.DB
	l  *logger.Logger
}

var (
	_ domrepo.Journal          = (*ClickHouseJournal)(nil)
	_ domrepo.ExecutionHistory = (*ClickHouseJournal)(nil)
)

func NewClickHouseJournal(ch *pkgch.Client, l *logger.Logger) *ClickHouseJournal {
	return &ClickHouseJournal{db: ch.DB(), l: l.With(logger.String("component", "clickhouse_journal"))}
}

// Init creates the journal tables when they are missing.
func (j *ClickHouseJournal) Init(ctx context.Context) error {
	for _, stmt := range JournalSchema() {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("journal schema: %w", err)
		}
	}
	return nil
}

func (j *ClickHouseJournal) RecordDecision(ctx context.Context, d models.Decision) error {
	args, err := decisionRow(d)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, symbol, final_action, buy_votes, sell_votes, reference_price,
        recommendations, event_time, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, decisionsTable)
	if _, err := j.db.ExecContext(ctx, q, args...); err != nil {
		j.l.Error("clickhouse insert decision failed",
			logger.String("decision_id", d.ID),
			logger.String("symbol", d.Symbol),
			logger.Error(err),
		)
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

func (j *ClickHouseJournal) RecordExecution(ctx context.Context, r models.ExecutionRecord) error {
	q := fmt.Sprintf(`INSERT INTO %s (signal_id, decision_id, symbol, action, price, stop_loss, balance, size,
        order_id, status, outcome, reason, started_at, finished_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, executionsTable)
	if _, err := j.db.ExecContext(ctx, q, executionRow(r)...); err != nil {
		j.l.Error("clickhouse insert execution failed",
			logger.String("signal_id", r.SignalID),
			logger.String("order_id", r.OrderID),
			logger.Error(err),
		)
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// RecentExecutions returns the newest records for symbol, newest first.
func (j *ClickHouseJournal) RecentExecutions(ctx context.Context, symbol string, limit int) ([]models.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	q := fmt.Sprintf(`SELECT signal_id, decision_id, symbol, action, price, stop_loss, balance, size,
        order_id, status, outcome, reason, started_at, finished_at
        FROM %s WHERE symbol = ? ORDER BY started_at DESC LIMIT ?`, executionsTable)
	rows, err := j.db.QueryContext(ctx, q, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	out := make([]models.ExecutionRecord, 0, limit)
	for rows.Next() {
		var (
			r                       models.ExecutionRecord
			action, status, outcome string
		)
		if err := rows.Scan(&r.SignalID, &r.DecisionID, &r.Symbol, &action, &r.Price, &r.StopLoss,
			&r.Balance, &r.Size, &r.OrderID, &status, &outcome, &r.Reason, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		r.Action = models.Action(action)
		r.Status = models.OrderStatus(status)
		r.Outcome = models.ExecutionOutcome(outcome)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (j *ClickHouseJournal) Health(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

func decisionRow(d models.Decision) ([]interface{}, error) {
	recs, err := json.Marshal(d.Recommendations)
	if err != nil {
		return nil, fmt.Errorf("encode recommendations: %w", err)
	}
	return []interface{}{
		d.ID,
		d.Symbol,
		string(d.FinalAction),
		uint8(clampVotes(d.BuyVotes)),
		uint8(clampVotes(d.SellVotes)),
		d.ReferencePrice,
		string(recs),
		orNow(d.EventTime),
		orNow(d.CreatedAt),
	}, nil
}

func executionRow(r models.ExecutionRecord) []interface{} {
	return []interface{}{
		r.SignalID,
		r.DecisionID,
		r.Symbol,
		string(r.Action),
		r.Price,
		r.StopLoss,
		r.Balance,
		r.Size,
		r.OrderID,
		string(r.Status),
		string(r.Outcome),
		r.Reason,
		orNow(r.StartedAt),
		orNow(r.FinishedAt),
	}
}

func clampVotes(n int) int {
	if n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return n
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
