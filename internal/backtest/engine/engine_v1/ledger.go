package engine

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// Ledger persists every executed transaction in an in-memory DuckDB table.
// Each rebalance date is written as one SQL transaction, so a failed step
// leaves no partial trades behind.
type Ledger struct {
	db     *sql.DB
	logger *logger.Logger
}

func NewLedger(log *logger.Logger) (*Ledger, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerFailed, "failed to open ledger database", err)
	}

	l := &Ledger{db: db, logger: log}
	if err := l.createTable(); err != nil {
		db.Close()
		return nil, err
	}

	return l, nil
}

func (l *Ledger) createTable() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id VARCHAR PRIMARY KEY,
			date TIMESTAMP NOT NULL,
			symbol VARCHAR NOT NULL,
			action VARCHAR NOT NULL,
			quantity BIGINT NOT NULL,
			price DOUBLE NOT NULL,
			total_value DOUBLE NOT NULL,
			cash_balance DOUBLE NOT NULL,
			portfolio_value DOUBLE NOT NULL,
			reason VARCHAR NOT NULL
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerFailed, "failed to create transactions table", err)
	}

	return nil
}

// RecordBatch writes all transactions of one rebalance step atomically.
func (l *Ledger) RecordBatch(transactions []types.Transaction) error {
	if len(transactions) == 0 {
		return nil
	}

	tx, err := l.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerFailed, "failed to begin ledger transaction", err)
	}

	for _, t := range transactions {
		query, args, err := sq.Insert("transactions").
			Columns("id", "date", "symbol", "action", "quantity", "price", "total_value", "cash_balance", "portfolio_value", "reason").
			Values(t.ID, t.Date, t.Symbol, string(t.Action), t.Quantity, t.Price, t.TotalValue, t.CashBalance, t.PortfolioValue, t.Reason).
			ToSql()
		if err != nil {
			tx.Rollback()
			return errors.Wrap(errors.ErrCodeLedgerFailed, "failed to build ledger insert", err)
		}

		if _, err := tx.Exec(query, args...); err != nil {
			tx.Rollback()
			return errors.Wrap(errors.ErrCodeLedgerFailed, "failed to insert transaction", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeLedgerFailed, "failed to commit ledger batch", err)
	}

	return nil
}

// GetAllTransactions returns the full history ordered by date then symbol.
func (l *Ledger) GetAllTransactions() ([]types.Transaction, error) {
	query, args, err := sq.Select("id", "date", "symbol", "action", "quantity", "price", "total_value", "cash_balance", "portfolio_value", "reason").
		From("transactions").
		OrderBy("date", "symbol", "action").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerFailed, "failed to build ledger query", err)
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerFailed, "ledger query failed", err)
	}
	defer rows.Close()

	var out []types.Transaction
	for rows.Next() {
		var t types.Transaction
		var action string
		var date time.Time
		if err := rows.Scan(&t.ID, &date, &t.Symbol, &action, &t.Quantity, &t.Price, &t.TotalValue, &t.CashBalance, &t.PortfolioValue, &t.Reason); err != nil {
			return nil, errors.Wrap(errors.ErrCodeLedgerFailed, "failed to scan transaction", err)
		}
		t.Date = date
		t.Action = types.TransactionAction(action)
		out = append(out, t)
	}

	return out, rows.Err()
}

// Count returns the number of recorded transactions.
func (l *Ledger) Count() (int, error) {
	var count int
	if err := l.db.QueryRow("SELECT COUNT(*) FROM transactions").Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeLedgerFailed, "ledger count failed", err)
	}

	return count, nil
}

// Write exports the ledger to a parquet file at the given path.
func (l *Ledger) Write(path string) error {
	stmt := fmt.Sprintf("COPY (SELECT * FROM transactions ORDER BY date, symbol) TO '%s' (FORMAT PARQUET)", escapePath(path))
	if _, err := l.db.Exec(stmt); err != nil {
		return errors.Wrap(errors.ErrCodeLedgerFailed, "failed to export ledger to parquet", err)
	}

	return nil
}

// Cleanup drops all recorded transactions so the ledger can back another run.
func (l *Ledger) Cleanup() error {
	if _, err := l.db.Exec("DELETE FROM transactions"); err != nil {
		return errors.Wrap(errors.ErrCodeLedgerFailed, "failed to clean ledger", err)
	}

	return nil
}

func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}

	return l.db.Close()
}

func escapePath(path string) string {
	return strings.ReplaceAll(path, "'", "''")
}

