package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultDueDays        = 30
	invoiceNumberAttempts = 3
)

// LineItemInput is a line item as entered by staff. A service code fills in
// the description and unit price from the catalog when they are left empty.
type LineItemInput struct {
	Description string
	ServiceCode string
	Quantity    int
	UnitPrice   *decimal.Decimal
	Discount    decimal.Decimal
}

// CreateInvoiceCommand drafts an invoice for a patient
type CreateInvoiceCommand struct {
	PatientID   uuid.UUID
	EncounterID *uuid.UUID
	LineItems   []LineItemInput
	DueDate     *time.Time
	Notes       string
}

// InvoiceService handles invoice creation, issuing and queries
type InvoiceService struct {
	invoiceMutator
	patients       billing.PatientDirectory
	catalog        billing.ServiceCatalog
	defaultDueDays int
}

// InvoiceServiceConfig holds the dependencies of InvoiceService
type InvoiceServiceConfig struct {
	Repo           billing.InvoiceRepository
	Locker         billing.InvoiceLocker
	LockTimeout    time.Duration
	Patients       billing.PatientDirectory
	Catalog        billing.ServiceCatalog
	Publisher      shared.EventPublisher
	Metrics        Metrics
	Logger         *zap.Logger
	DefaultDueDays int
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(cfg InvoiceServiceConfig) *InvoiceService {
	dueDays := cfg.DefaultDueDays
	if dueDays <= 0 {
		dueDays = defaultDueDays
	}
	return &InvoiceService{
		invoiceMutator: invoiceMutator{
			repo:        cfg.Repo,
			locker:      cfg.Locker,
			lockTimeout: lockTimeoutOrDefault(cfg.LockTimeout),
			publisher:   cfg.Publisher,
			metrics:     metricsOrNop(cfg.Metrics),
			logger:      loggerOrNop(cfg.Logger),
		},
		patients:       cfg.Patients,
		catalog:        cfg.Catalog,
		defaultDueDays: dueDays,
	}
}

// Create drafts a new invoice with its total computed from the line items
func (s *InvoiceService) Create(ctx context.Context, cmd CreateInvoiceCommand) (*billing.Invoice, error) {
	if cmd.PatientID == uuid.Nil {
		return nil, billing.NewValidationError("patient_id", "patient is required")
	}
	patient, err := s.patients.GetPatient(ctx, cmd.PatientID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, billing.NewNotFoundError("patient", cmd.PatientID.String())
		}
		return nil, fmt.Errorf("lookup patient: %w", err)
	}

	items, err := s.resolveLineItems(ctx, cmd.LineItems)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	dueDate := cmd.DueDate
	if dueDate == nil {
		d := now.AddDate(0, 0, s.defaultDueDays)
		dueDate = &d
	}

	var inv *billing.Invoice
	for attempt := 1; ; attempt++ {
		number, err := s.repo.GenerateInvoiceNumber(ctx, now)
		if err != nil {
			return nil, fmt.Errorf("generate invoice number: %w", err)
		}
		inv, err = billing.NewInvoice(billing.NewInvoiceInput{
			InvoiceNumber: number,
			PatientID:     patient.ID,
			PatientName:   patient.FullName,
			EncounterID:   cmd.EncounterID,
			LineItems:     items,
			DueDate:       dueDate,
			Notes:         cmd.Notes,
		})
		if err != nil {
			return nil, err
		}
		err = s.repo.Save(ctx, inv)
		if err == nil {
			break
		}
		// another writer took the number between generation and insert
		if errors.Is(err, shared.ErrAlreadyExists) && attempt < invoiceNumberAttempts {
			continue
		}
		return nil, fmt.Errorf("save invoice: %w", err)
	}

	if inv.TotalAnomaly {
		s.logger.Warn("Invoice total floored at zero",
			zap.String("invoice_number", inv.InvoiceNumber),
			zap.String("patient_id", inv.PatientID.String()))
	}
	s.logger.Info("Invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("total", inv.Total.StringFixed(2)))
	s.metrics.InvoiceCreated(ctx)
	s.publish(ctx, inv)
	return inv, nil
}

func (s *InvoiceService) resolveLineItems(ctx context.Context, inputs []LineItemInput) ([]billing.LineItem, error) {
	items := make([]billing.LineItem, 0, len(inputs))
	for i, in := range inputs {
		item := billing.LineItem{
			Description: strings.TrimSpace(in.Description),
			ServiceCode: strings.TrimSpace(in.ServiceCode),
			Quantity:    in.Quantity,
			Discount:    in.Discount,
		}
		if in.UnitPrice != nil {
			item.UnitPrice = *in.UnitPrice
		}
		if item.ServiceCode != "" && s.catalog != nil && (item.Description == "" || in.UnitPrice == nil) {
			svc, err := s.catalog.GetService(ctx, item.ServiceCode)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return nil, billing.NewValidationError(fmt.Sprintf("line_items[%d].service_code", i), "unknown service code")
				}
				return nil, fmt.Errorf("lookup service %s: %w", item.ServiceCode, err)
			}
			if !svc.Active {
				return nil, billing.NewValidationError(fmt.Sprintf("line_items[%d].service_code", i), "service code is inactive")
			}
			if item.Description == "" {
				item.Description = svc.Description
			}
			if in.UnitPrice == nil {
				item.UnitPrice = svc.Price
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// Send issues a draft invoice
func (s *InvoiceService) Send(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	inv, err := s.mutate(ctx, id, func(inv *billing.Invoice) error {
		return inv.Send()
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Invoice sent",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber))
	return inv, nil
}

// Get returns one invoice
func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	return s.load(ctx, id)
}

// List returns a page of invoices
func (s *InvoiceService) List(ctx context.Context, filter billing.InvoiceFilter) (shared.Paginated[billing.Invoice], error) {
	filter.Filter = filter.Filter.Clamped()
	items, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[billing.Invoice]{}, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return shared.Paginated[billing.Invoice]{}, err
	}
	return shared.NewPaginated(items, total, filter.Filter), nil
}

// ListPayments returns the payment ledger of an invoice
func (s *InvoiceService) ListPayments(ctx context.Context, id uuid.UUID) ([]billing.Payment, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, id)
}

// ListCorrections returns the correction log of an invoice
func (s *InvoiceService) ListCorrections(ctx context.Context, id uuid.UUID) ([]billing.CorrectionRecord, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListCorrections(ctx, id)
}
