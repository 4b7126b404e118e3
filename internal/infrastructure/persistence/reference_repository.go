package persistence

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormServiceCatalog reads the service catalog table, which is owned by
// the clinical system and only read here
type GormServiceCatalog struct {
	db *gorm.DB
}

func NewGormServiceCatalog(db *gorm.DB) *GormServiceCatalog {
	return &GormServiceCatalog{db: db}
}

func (c *GormServiceCatalog) GetService(ctx context.Context, code string) (*billing.ServiceCode, error) {
	var model models.ServiceCodeModel
	if err := c.db.WithContext(ctx).
		Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&model).Error; err != nil {
		return nil, translate(err)
	}
	return model.ToDomain(), nil
}

// GormPatientDirectory reads the patients table
type GormPatientDirectory struct {
	db *gorm.DB
}

func NewGormPatientDirectory(db *gorm.DB) *GormPatientDirectory {
	return &GormPatientDirectory{db: db}
}

func (d *GormPatientDirectory) GetPatient(ctx context.Context, id uuid.UUID) (*billing.Patient, error) {
	var model models.PatientModel
	if err := d.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return model.ToDomain(), nil
}

var (
	_ billing.ServiceCatalog   = (*GormServiceCatalog)(nil)
	_ billing.PatientDirectory = (*GormPatientDirectory)(nil)
)
