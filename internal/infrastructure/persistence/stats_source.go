package persistence

import (
	"context"

	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormStatsSource streams invoice totals from the primary database
type GormStatsSource struct {
	db *gorm.DB
}

func NewGormStatsSource(db *gorm.DB) *GormStatsSource {
	return &GormStatsSource{db: db}
}

// ScanInvoiceTotals calls fn for every invoice without buffering the table
func (s *GormStatsSource) ScanInvoiceTotals(ctx context.Context, fn func(billing.StatsRow) error) error {
	rows, err := s.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Select("status", "total", "amount_paid", "balance_due").
		Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var row billing.StatsRow
		if err := rows.Scan(&row.Status, &row.Total, &row.AmountPaid, &row.BalanceDue); err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

var _ billing.StatsSource = (*GormStatsSource)(nil)
