// Package readmodel serves read-only aggregates from a Postgres read replica.
package readmodel

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/infrastructure/config"
)

// amounts are read as text so no float ever touches money
const invoiceTotalsSQL = `SELECT status, total::text, amount_paid::text, balance_due::text FROM invoices`

// NewPool opens a pgx pool against the replica and pings it
func NewPool(ctx context.Context, cfg config.ReplicaConfig) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse replica dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	// the replica is never written to
	pcfg.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create replica pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping replica: %w", err)
	}
	return pool, nil
}

// querier is the slice of pgxpool.Pool used here
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgxStatsSource streams invoice totals from the read replica
type PgxStatsSource struct {
	db querier
}

// NewPgxStatsSource creates a stats source over a replica pool
func NewPgxStatsSource(pool *pgxpool.Pool) *PgxStatsSource {
	return &PgxStatsSource{db: pool}
}

// ScanInvoiceTotals calls fn for every invoice row
func (s *PgxStatsSource) ScanInvoiceTotals(ctx context.Context, fn func(billing.StatsRow) error) error {
	rows, err := s.db.Query(ctx, invoiceTotalsSQL)
	if err != nil {
		return fmt.Errorf("query invoice totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		row, err := scanStatsRow(rows)
		if err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStatsRow(r scanner) (billing.StatsRow, error) {
	var status, total, paid, balance string
	if err := r.Scan(&status, &total, &paid, &balance); err != nil {
		return billing.StatsRow{}, fmt.Errorf("scan invoice totals: %w", err)
	}

	row := billing.StatsRow{Status: billing.InvoiceStatus(status)}
	var err error
	if row.Total, err = decimal.NewFromString(total); err != nil {
		return billing.StatsRow{}, fmt.Errorf("parse total %q: %w", total, err)
	}
	if row.AmountPaid, err = decimal.NewFromString(paid); err != nil {
		return billing.StatsRow{}, fmt.Errorf("parse amount_paid %q: %w", paid, err)
	}
	if row.BalanceDue, err = decimal.NewFromString(balance); err != nil {
		return billing.StatsRow{}, fmt.Errorf("parse balance_due %q: %w", balance, err)
	}
	return row, nil
}

var _ billing.StatsSource = (*PgxStatsSource)(nil)
