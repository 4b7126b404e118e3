package persistence

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/domain/shared"
	"github.com/hospital/billing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const invoiceSequenceWidth = 5

// GormInvoiceRepository implements billing.InvoiceRepository using gorm
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

func preloadPayments(db *gorm.DB) *gorm.DB {
	return db.Order("recorded_at ASC")
}

// FindByID loads an invoice with its payment ledger
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Preload("Payments", preloadPayments).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return model.ToDomain(), nil
}

// FindByNumber loads an invoice by its invoice number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, number string) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Preload("Payments", preloadPayments).
		Where("invoice_number = ?", number).
		First(&model).Error; err != nil {
		return nil, translate(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists invoice headers matching the filter. Payments are not loaded.
func (r *GormInvoiceRepository) FindAll(ctx context.Context, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	var rows []models.InvoiceModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.InvoiceModel{}), filter)

	query = query.Clauses(invoiceOrder(filter.Filter))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	invoices := make([]billing.Invoice, len(rows))
	for i := range rows {
		invoices[i] = *rows[i].ToDomain()
	}
	return invoices, nil
}

// Count counts invoices matching the filter
func (r *GormInvoiceRepository) Count(ctx context.Context, filter billing.InvoiceFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.db.WithContext(ctx).Model(&models.InvoiceModel{}), filter).Count(&count).Error
	return count, err
}

func (r *GormInvoiceRepository) applyFilter(query *gorm.DB, filter billing.InvoiceFilter) *gorm.DB {
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.PatientID != nil {
		query = query.Where("patient_id = ?", *filter.PatientID)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		query = query.Where("LOWER(invoice_number) LIKE ? OR LOWER(patient_name) LIKE ?", like, like)
	}
	if filter.DueBefore != nil {
		query = query.Where("due_date < ?", *filter.DueBefore)
	}
	return query
}

// FindOverdueCandidates returns past-due invoices that still owe money,
// oldest due date first
func (r *GormInvoiceRepository) FindOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]billing.Invoice, error) {
	statuses := make([]billing.InvoiceStatus, 0, 3)
	for _, s := range billing.AllInvoiceStatuses {
		if s.CanBecomeOverdue() {
			statuses = append(statuses, s)
		}
	}

	var rows []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND due_date IS NOT NULL AND due_date < ? AND balance_due > 0", statuses, asOf).
		Order("due_date ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	invoices := make([]billing.Invoice, len(rows))
	for i := range rows {
		invoices[i] = *rows[i].ToDomain()
	}
	return invoices, nil
}

// Save inserts a new invoice together with any ledger entries it already has
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(inv)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			return translate(err)
		}
		return appendEntries(tx, inv)
	})
}

// SaveWithLock updates the invoice header if its stored version is the one
// it was loaded at, and appends new payments and corrections atomically
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, inv *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(inv)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(model).
			Where("id = ? AND version = ?", inv.ID, inv.Version-1).
			Select("*").
			Omit("created_at", clause.Associations).
			Updates(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}
		return appendEntries(tx, inv)
	})
}

func appendEntries(tx *gorm.DB, inv *billing.Invoice) error {
	for _, p := range inv.NewPayments() {
		if err := tx.Create(models.InvoicePaymentModelFromDomain(&p)).Error; err != nil {
			return fmt.Errorf("append payment %s: %w", p.ID, translate(err))
		}
	}
	for _, c := range inv.NewCorrections() {
		if err := tx.Create(models.InvoiceCorrectionModelFromDomain(&c)).Error; err != nil {
			return fmt.Errorf("append correction %s: %w", c.ID, translate(err))
		}
	}
	return nil
}

// GenerateInvoiceNumber returns the next INV-YYYYMMDD-NNNNN for the day of at.
// Two callers may compute the same number; the unique index rejects the
// loser, which retries.
func (r *GormInvoiceRepository) GenerateInvoiceNumber(ctx context.Context, at time.Time) (string, error) {
	prefix := fmt.Sprintf("INV-%s-", at.Format("20060102"))

	var last []string
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("invoice_number LIKE ?", prefix+"%").
		Order("invoice_number DESC").
		Limit(1).
		Pluck("invoice_number", &last).Error; err != nil {
		return "", err
	}

	next := 1
	if len(last) > 0 {
		n, err := strconv.Atoi(strings.TrimPrefix(last[0], prefix))
		if err != nil {
			return "", fmt.Errorf("malformed invoice number %q: %w", last[0], err)
		}
		next = n + 1
	}
	if next >= 100000 {
		return "", fmt.Errorf("invoice sequence exhausted for %s", at.Format("2006-01-02"))
	}
	return fmt.Sprintf("%s%0*d", prefix, invoiceSequenceWidth, next), nil
}

// ListPayments returns the payment ledger of an invoice, oldest first
func (r *GormInvoiceRepository) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]billing.Payment, error) {
	var rows []models.InvoicePaymentModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("recorded_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	payments := make([]billing.Payment, len(rows))
	for i := range rows {
		payments[i] = *rows[i].ToDomain()
	}
	return payments, nil
}

// ListCorrections returns the correction log of an invoice, oldest first
func (r *GormInvoiceRepository) ListCorrections(ctx context.Context, invoiceID uuid.UUID) ([]billing.CorrectionRecord, error) {
	var rows []models.InvoiceCorrectionModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("occurred_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]billing.CorrectionRecord, len(rows))
	for i := range rows {
		records[i] = *rows[i].ToDomain()
	}
	return records, nil
}

// ExistsGatewayTransaction reports whether any payment carries txnID
func (r *GormInvoiceRepository) ExistsGatewayTransaction(ctx context.Context, txnID string) (bool, error) {
	if txnID == "" {
		return false, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.InvoicePaymentModel{}).
		Where("gateway_transaction_id = ?", txnID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

var _ billing.InvoiceRepository = (*GormInvoiceRepository)(nil)
