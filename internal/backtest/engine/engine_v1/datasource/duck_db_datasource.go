package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

const (
	priceColumns       = "symbol, date, open, high, low, close, adjusted_close, volume"
	fundamentalColumns = "symbol, report_date, period_type, revenue, pat, ebitda, shareholders_equity, total_debt, market_cap, roe, roce, pe_ratio, pb_ratio, debt_equity_ratio, current_ratio"
)

// DuckDBDataSource serves price and fundamental queries from DuckDB. The
// source can be a DuckDB database file with `prices` and `fundamentals`
// tables, or a directory containing `prices.parquet` and
// `fundamentals.parquet` (csv accepted as a fallback), which are exposed as
// views over the files.
type DuckDBDataSource struct {
	db     *sql.DB
	logger *logger.Logger
}

func NewDuckDBDataSource(log *logger.Logger) *DuckDBDataSource {
	return &DuckDBDataSource{logger: log}
}

func (d *DuckDBDataSource) Initialize(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDataSourceUnavailable, "data path is not accessible", err)
	}

	if !info.IsDir() {
		db, err := sql.Open("duckdb", path)
		if err != nil {
			return errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb database", err)
		}
		d.db = db
		return d.verifyTables()
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open in-memory duckdb", err)
	}
	d.db = db

	if err := d.createView("prices", path); err != nil {
		return err
	}
	if err := d.createView("fundamentals", path); err != nil {
		return err
	}

	return nil
}

func (d *DuckDBDataSource) createView(name, dir string) error {
	parquet := filepath.Join(dir, name+".parquet")
	csv := filepath.Join(dir, name+".csv")

	var stmt string
	switch {
	case fileExists(parquet):
		stmt = fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM read_parquet('%s')", name, escapePath(parquet))
	case fileExists(csv):
		stmt = fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM read_csv_auto('%s')", name, escapePath(csv))
	default:
		return errors.Newf(errors.ErrCodeDataSourceUnavailable, "no %s.parquet or %s.csv under %s", name, name, dir)
	}

	if _, err := d.db.Exec(stmt); err != nil {
		return errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to create %s view", name)
	}

	return nil
}

func (d *DuckDBDataSource) verifyTables() error {
	for _, table := range []string{"prices", "fundamentals"} {
		if _, err := d.db.Exec(fmt.Sprintf("SELECT 1 FROM %s LIMIT 1", table)); err != nil {
			return errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "database is missing the %s table", table)
		}
	}

	return nil
}

func (d *DuckDBDataSource) GetPrice(ctx context.Context, symbol string, date time.Time) (types.PriceBar, error) {
	query, args, err := sq.Select(priceColumns).
		From("prices").
		Where(sq.Eq{"symbol": symbol}).
		Where("date = CAST(? AS DATE)", date.Format(time.DateOnly)).
		ToSql()
	if err != nil {
		return types.PriceBar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build price query", err)
	}

	row := d.db.QueryRowContext(ctx, query, args...)
	bar, err := scanPriceBar(row.Scan)
	if err == sql.ErrNoRows {
		return types.PriceBar{}, errors.Newf(errors.ErrCodePriceNotFound, "no price for %s on %s", symbol, date.Format(time.DateOnly))
	}
	if err != nil {
		return types.PriceBar{}, errors.Wrap(errors.ErrCodeQueryFailed, "price query failed", err)
	}

	return bar, nil
}

func (d *DuckDBDataSource) GetPriceAsOf(ctx context.Context, symbol string, date time.Time, lookbackDays int) (PriceLookup, error) {
	earliest := date.AddDate(0, 0, -lookbackDays)

	query, args, err := sq.Select(priceColumns).
		From("prices").
		Where(sq.Eq{"symbol": symbol}).
		Where("date <= CAST(? AS DATE)", date.Format(time.DateOnly)).
		Where("date >= CAST(? AS DATE)", earliest.Format(time.DateOnly)).
		OrderBy("date DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return PriceLookup{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build price query", err)
	}

	row := d.db.QueryRowContext(ctx, query, args...)
	bar, err := scanPriceBar(row.Scan)
	if err == sql.ErrNoRows {
		return PriceLookup{}, priceGap(symbol, date,
			"no price for %s within %d days of %s", symbol, lookbackDays, date.Format(time.DateOnly))
	}
	if err != nil {
		return PriceLookup{}, errors.Wrap(errors.ErrCodeQueryFailed, "price query failed", err)
	}

	return PriceLookup{Bar: bar, Lag: daysBetween(bar.Date, date)}, nil
}

func (d *DuckDBDataSource) GetFundamentalsAsOf(ctx context.Context, symbol string, date time.Time) (optional.Option[types.FundamentalSnapshot], error) {
	query, args, err := sq.Select(fundamentalColumns).
		From("fundamentals").
		Where(sq.Eq{"symbol": symbol}).
		Where("report_date <= CAST(? AS DATE)", date.Format(time.DateOnly)).
		OrderBy("report_date DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build fundamentals query", err)
	}

	row := d.db.QueryRowContext(ctx, query, args...)
	snap, err := scanFundamentalSnapshot(row.Scan)
	if err == sql.ErrNoRows {
		return optional.None[types.FundamentalSnapshot](), nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "fundamentals query failed", err)
	}

	return optional.Some(snap), nil
}

func (d *DuckDBDataSource) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT DISTINCT symbol FROM prices ORDER BY symbol")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "symbol listing failed", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan symbol", err)
		}
		symbols = append(symbols, s)
	}

	return symbols, rows.Err()
}

func (d *DuckDBDataSource) TradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	query, args, err := sq.Select("DISTINCT date").
		From("prices").
		Where("date >= CAST(? AS DATE)", start.Format(time.DateOnly)).
		Where("date <= CAST(? AS DATE)", end.Format(time.DateOnly)).
		OrderBy("date").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build trading days query", err)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "trading days query failed", err)
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan trading day", err)
		}
		days = append(days, t)
	}

	return days, rows.Err()
}

func (d *DuckDBDataSource) ReadAllPrices(ctx context.Context, start, end time.Time) (chan types.PriceBar, error) {
	query, args, err := sq.Select(priceColumns).
		From("prices").
		Where("date >= CAST(? AS DATE)", start.Format(time.DateOnly)).
		Where("date <= CAST(? AS DATE)", end.Format(time.DateOnly)).
		OrderBy("symbol", "date").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build price scan query", err)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "price scan failed", err)
	}

	out := make(chan types.PriceBar, 1024)
	go func() {
		defer close(out)
		defer rows.Close()
		for rows.Next() {
			bar, err := scanPriceBar(rows.Scan)
			if err != nil {
				d.logger.Error("failed to scan price row", zap.Error(err))
				return
			}
			select {
			case out <- bar:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (d *DuckDBDataSource) ReadAllFundamentals(ctx context.Context, end time.Time) (chan types.FundamentalSnapshot, error) {
	query, args, err := sq.Select(fundamentalColumns).
		From("fundamentals").
		Where("report_date <= CAST(? AS DATE)", end.Format(time.DateOnly)).
		OrderBy("symbol", "report_date").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build fundamentals scan query", err)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "fundamentals scan failed", err)
	}

	out := make(chan types.FundamentalSnapshot, 256)
	go func() {
		defer close(out)
		defer rows.Close()
		for rows.Next() {
			snap, err := scanFundamentalSnapshot(rows.Scan)
			if err != nil {
				d.logger.Error("failed to scan fundamentals row", zap.Error(err))
				return
			}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (d *DuckDBDataSource) Count(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM prices").Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "count query failed", err)
	}

	return count, nil
}

func (d *DuckDBDataSource) Close() error {
	if d.db == nil {
		return nil
	}

	return d.db.Close()
}

func scanPriceBar(scan func(dest ...any) error) (types.PriceBar, error) {
	var bar types.PriceBar
	var adjusted sql.NullFloat64

	err := scan(&bar.Symbol, &bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &adjusted, &bar.Volume)
	if err != nil {
		return types.PriceBar{}, err
	}
	if adjusted.Valid {
		bar.AdjustedClose = adjusted.Float64
	}

	return bar, nil
}

func scanFundamentalSnapshot(scan func(dest ...any) error) (types.FundamentalSnapshot, error) {
	var snap types.FundamentalSnapshot
	var periodType string
	nullable := make([]sql.NullFloat64, 12)

	err := scan(&snap.Symbol, &snap.ReportDate, &periodType,
		&nullable[0], &nullable[1], &nullable[2], &nullable[3], &nullable[4], &nullable[5],
		&nullable[6], &nullable[7], &nullable[8], &nullable[9], &nullable[10], &nullable[11])
	if err != nil {
		return types.FundamentalSnapshot{}, err
	}

	snap.PeriodType = types.PeriodType(periodType)
	snap.Revenue = toOption(nullable[0])
	snap.PAT = toOption(nullable[1])
	snap.EBITDA = toOption(nullable[2])
	snap.ShareholdersEquity = toOption(nullable[3])
	snap.TotalDebt = toOption(nullable[4])
	snap.MarketCap = toOption(nullable[5])
	snap.ROE = toOption(nullable[6])
	snap.ROCE = toOption(nullable[7])
	snap.PERatio = toOption(nullable[8])
	snap.PBRatio = toOption(nullable[9])
	snap.DebtEquityRatio = toOption(nullable[10])
	snap.CurrentRatio = toOption(nullable[11])

	return snap, nil
}

func toOption(v sql.NullFloat64) optional.Option[float64] {
	if !v.Valid {
		return optional.None[float64]()
	}

	return optional.Some(v.Float64)
}

func daysBetween(earlier, later time.Time) int {
	return int(later.Sub(earlier).Hours() / 24)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func escapePath(path string) string {
	return strings.ReplaceAll(path, "'", "''")
}
