package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Patient is the directory's view of a patient
type Patient struct {
	ID       uuid.UUID
	FullName string
}

// PatientDirectory resolves patients from the external registry
type PatientDirectory interface {
	// GetPatient returns shared.ErrNotFound for unknown ids
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
}

// ServiceCode is a billable service from the external catalog
type ServiceCode struct {
	Code        string
	Description string
	Price       decimal.Decimal
	Active      bool
}

// ServiceCatalog resolves service codes to descriptions and list prices
type ServiceCatalog interface {
	// GetService returns shared.ErrNotFound for unknown codes
	GetService(ctx context.Context, code string) (*ServiceCode, error)
}

// EncounterReopener reopens the clinical encounter behind a reversed invoice
type EncounterReopener interface {
	ReopenEncounter(ctx context.Context, encounterID uuid.UUID, invoiceID uuid.UUID, reason string) error
}

// InvoiceLocker grants exclusive access to one invoice at a time.
// Acquire blocks up to timeout and returns a ResourceBusyError when the lock
// is still held by someone else.
type InvoiceLocker interface {
	Acquire(ctx context.Context, invoiceID uuid.UUID, timeout time.Duration) (release func(), err error)
}
