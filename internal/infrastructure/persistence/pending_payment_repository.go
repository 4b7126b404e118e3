package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPendingPaymentRepository implements billing.PendingPaymentRepository using gorm
type GormPendingPaymentRepository struct {
	db *gorm.DB
}

// NewGormPendingPaymentRepository creates a new GormPendingPaymentRepository
func NewGormPendingPaymentRepository(db *gorm.DB) *GormPendingPaymentRepository {
	return &GormPendingPaymentRepository{db: db}
}

// FindByID finds a pending payment by ID
func (r *GormPendingPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.PendingPayment, error) {
	var model models.PendingPaymentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return model.ToDomain(), nil
}

// FindByGatewayReference finds the pending payment a gateway session belongs to
func (r *GormPendingPaymentRepository) FindByGatewayReference(ctx context.Context, reference string) (*billing.PendingPayment, error) {
	var model models.PendingPaymentModel
	if err := r.db.WithContext(ctx).
		Where("gateway_reference = ?", reference).
		First(&model).Error; err != nil {
		return nil, translate(err)
	}
	return model.ToDomain(), nil
}

// FindByInvoice lists the pending payments of an invoice, newest first
func (r *GormPendingPaymentRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]billing.PendingPayment, error) {
	var rows []models.PendingPaymentModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	payments := make([]billing.PendingPayment, len(rows))
	for i := range rows {
		payments[i] = *rows[i].ToDomain()
	}
	return payments, nil
}

// Save creates or updates a pending payment
func (r *GormPendingPaymentRepository) Save(ctx context.Context, p *billing.PendingPayment) error {
	model := models.PendingPaymentModelFromDomain(p)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "gateway_reference", "authorization_url", "expires_at", "confirmed_at"}),
		}).
		Create(model).Error
	return translate(err)
}

var _ billing.PendingPaymentRepository = (*GormPendingPaymentRepository)(nil)
