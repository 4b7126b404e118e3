package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/hospital/billing/internal/domain/billing"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate
type InvoiceModel struct {
	AggregateModel
	InvoiceNumber     string                 `gorm:"type:varchar(32);not null;uniqueIndex"`
	PatientID         uuid.UUID              `gorm:"type:uuid;not null;index"`
	PatientName       string                 `gorm:"type:varchar(200);not null"`
	EncounterID       *uuid.UUID             `gorm:"type:uuid;index"`
	LineItems         billing.LineItems      `gorm:"type:jsonb;not null"`
	Total             decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	TotalAnomaly      bool                   `gorm:"not null;default:false"`
	AmountPaid        decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	BalanceDue        decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	Status            billing.InvoiceStatus  `gorm:"type:varchar(24);not null;index"`
	PaymentMethod     *billing.PaymentMethod `gorm:"type:varchar(24)"`
	DueDate           *time.Time             `gorm:"index"`
	Notes             string                 `gorm:"type:text"`
	SentAt            *time.Time
	PaidAt            *time.Time
	ReversedAt        *time.Time
	ReversalReason    string `gorm:"type:varchar(500)"`
	VoidedAt          *time.Time
	VoidReason        string `gorm:"type:varchar(500)"`
	VoidOverride      bool   `gorm:"not null;default:false"`
	CancelledAt       *time.Time
	CancelReason      string                 `gorm:"type:varchar(500)"`
	StatusBeforeClaim *billing.InvoiceStatus `gorm:"type:varchar(24)"`

	Payments []InvoicePaymentModel `gorm:"foreignKey:InvoiceID;references:ID"`
}

// TableName returns the table name for gorm
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the model to a domain Invoice. Payments are mapped only
// when they were preloaded.
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	inv := &billing.Invoice{
		BaseAggregateRoot: m.toRoot(),
		InvoiceNumber:     m.InvoiceNumber,
		PatientID:         m.PatientID,
		PatientName:       m.PatientName,
		EncounterID:       m.EncounterID,
		LineItems:         m.LineItems,
		Total:             m.Total,
		TotalAnomaly:      m.TotalAnomaly,
		AmountPaid:        m.AmountPaid,
		BalanceDue:        m.BalanceDue,
		Status:            m.Status,
		PaymentMethod:     m.PaymentMethod,
		DueDate:           m.DueDate,
		Notes:             m.Notes,
		SentAt:            m.SentAt,
		PaidAt:            m.PaidAt,
		ReversedAt:        m.ReversedAt,
		ReversalReason:    m.ReversalReason,
		VoidedAt:          m.VoidedAt,
		VoidReason:        m.VoidReason,
		VoidOverride:      m.VoidOverride,
		CancelledAt:       m.CancelledAt,
		CancelReason:      m.CancelReason,
		StatusBeforeClaim: m.StatusBeforeClaim,
		Payments:          make([]billing.Payment, len(m.Payments)),
	}
	for i := range m.Payments {
		inv.Payments[i] = *m.Payments[i].ToDomain()
	}
	return inv
}

// InvoiceModelFromDomain maps the invoice header. Payments are written
// separately because the ledger is append-only.
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{
		InvoiceNumber:     inv.InvoiceNumber,
		PatientID:         inv.PatientID,
		PatientName:       inv.PatientName,
		EncounterID:       inv.EncounterID,
		LineItems:         inv.LineItems,
		Total:             inv.Total,
		TotalAnomaly:      inv.TotalAnomaly,
		AmountPaid:        inv.AmountPaid,
		BalanceDue:        inv.BalanceDue,
		Status:            inv.Status,
		PaymentMethod:     inv.PaymentMethod,
		DueDate:           inv.DueDate,
		Notes:             inv.Notes,
		SentAt:            inv.SentAt,
		PaidAt:            inv.PaidAt,
		ReversedAt:        inv.ReversedAt,
		ReversalReason:    inv.ReversalReason,
		VoidedAt:          inv.VoidedAt,
		VoidReason:        inv.VoidReason,
		VoidOverride:      inv.VoidOverride,
		CancelledAt:       inv.CancelledAt,
		CancelReason:      inv.CancelReason,
		StatusBeforeClaim: inv.StatusBeforeClaim,
	}
	m.fromRoot(inv.BaseAggregateRoot)
	return m
}

// InvoicePaymentModel is one row of the append-only payment ledger
type InvoicePaymentModel struct {
	ID                   uuid.UUID             `gorm:"type:uuid;primaryKey"`
	InvoiceID            uuid.UUID             `gorm:"type:uuid;not null;index"`
	Amount               decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	Method               billing.PaymentMethod `gorm:"type:varchar(24);not null"`
	Reference            string                `gorm:"type:varchar(128)"`
	GatewayTransactionID *string               `gorm:"type:varchar(128);uniqueIndex"`
	Notes                string                `gorm:"type:text"`
	Verified             bool                  `gorm:"not null;default:true"`
	RecordedAt           time.Time             `gorm:"not null"`
	RecordedBy           string                `gorm:"type:varchar(128);not null"`
}

// TableName returns the table name for gorm
func (InvoicePaymentModel) TableName() string {
	return "invoice_payments"
}

// ToDomain converts the model to a domain Payment
func (m *InvoicePaymentModel) ToDomain() *billing.Payment {
	p := &billing.Payment{
		ID:         m.ID,
		InvoiceID:  m.InvoiceID,
		Amount:     m.Amount,
		Method:     m.Method,
		Reference:  m.Reference,
		Notes:      m.Notes,
		RecordedAt: m.RecordedAt,
		RecordedBy: m.RecordedBy,
	}
	if m.GatewayTransactionID != nil {
		p.GatewayTransactionID = *m.GatewayTransactionID
	}
	return p
}

// InvoicePaymentModelFromDomain maps a payment. An empty gateway transaction
// id is stored as NULL so the unique index only covers gateway payments.
func InvoicePaymentModelFromDomain(p *billing.Payment) *InvoicePaymentModel {
	m := &InvoicePaymentModel{
		ID:         p.ID,
		InvoiceID:  p.InvoiceID,
		Amount:     p.Amount,
		Method:     p.Method,
		Reference:  p.Reference,
		Notes:      p.Notes,
		Verified:   true,
		RecordedAt: p.RecordedAt,
		RecordedBy: p.RecordedBy,
	}
	if p.GatewayTransactionID != "" {
		txn := p.GatewayTransactionID
		m.GatewayTransactionID = &txn
	}
	return m
}

// InvoiceCorrectionModel is one row of the append-only correction log
type InvoiceCorrectionModel struct {
	ID                 uuid.UUID              `gorm:"type:uuid;primaryKey"`
	InvoiceID          uuid.UUID              `gorm:"type:uuid;not null;index"`
	Kind               billing.CorrectionKind `gorm:"type:varchar(32);not null"`
	Actor              string                 `gorm:"type:varchar(128);not null"`
	Reason             string                 `gorm:"type:varchar(500)"`
	Override           bool                   `gorm:"not null;default:false"`
	FromStatus         billing.InvoiceStatus  `gorm:"type:varchar(24);not null"`
	ToStatus           billing.InvoiceStatus  `gorm:"type:varchar(24);not null"`
	AmountPaidSnapshot decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	BalanceDueSnapshot decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	PreviousMethod     *billing.PaymentMethod `gorm:"type:varchar(24)"`
	NewMethod          *billing.PaymentMethod `gorm:"type:varchar(24)"`
	OccurredAt         time.Time              `gorm:"not null;index"`
}

// TableName returns the table name for gorm
func (InvoiceCorrectionModel) TableName() string {
	return "invoice_corrections"
}

// ToDomain converts the model to a domain CorrectionRecord
func (m *InvoiceCorrectionModel) ToDomain() *billing.CorrectionRecord {
	return &billing.CorrectionRecord{
		ID:                 m.ID,
		InvoiceID:          m.InvoiceID,
		Kind:               m.Kind,
		Actor:              m.Actor,
		Reason:             m.Reason,
		Override:           m.Override,
		FromStatus:         m.FromStatus,
		ToStatus:           m.ToStatus,
		AmountPaidSnapshot: m.AmountPaidSnapshot,
		BalanceDueSnapshot: m.BalanceDueSnapshot,
		PreviousMethod:     m.PreviousMethod,
		NewMethod:          m.NewMethod,
		OccurredAt:         m.OccurredAt,
	}
}

// InvoiceCorrectionModelFromDomain maps a correction record
func InvoiceCorrectionModelFromDomain(c *billing.CorrectionRecord) *InvoiceCorrectionModel {
	return &InvoiceCorrectionModel{
		ID:                 c.ID,
		InvoiceID:          c.InvoiceID,
		Kind:               c.Kind,
		Actor:              c.Actor,
		Reason:             c.Reason,
		Override:           c.Override,
		FromStatus:         c.FromStatus,
		ToStatus:           c.ToStatus,
		AmountPaidSnapshot: c.AmountPaidSnapshot,
		BalanceDueSnapshot: c.BalanceDueSnapshot,
		PreviousMethod:     c.PreviousMethod,
		NewMethod:          c.NewMethod,
		OccurredAt:         c.OccurredAt,
	}
}

// PendingPaymentModel is the persistence model for initiated payments
type PendingPaymentModel struct {
	ID               uuid.UUID                    `gorm:"type:uuid;primaryKey"`
	InvoiceID        uuid.UUID                    `gorm:"type:uuid;not null;index"`
	Method           billing.PaymentMethod        `gorm:"type:varchar(24);not null"`
	Amount           decimal.Decimal              `gorm:"type:decimal(18,2);not null"`
	Status           billing.PendingPaymentStatus `gorm:"type:varchar(16);not null;index"`
	GatewayReference *string                      `gorm:"type:varchar(255);uniqueIndex"`
	AuthorizationURL string                       `gorm:"type:text"`
	SubscriberNumber string                       `gorm:"type:varchar(32)"`
	ClaimNumber      string                       `gorm:"type:varchar(64)"`
	CreatedAt        time.Time                    `gorm:"not null"`
	ExpiresAt        *time.Time
	ConfirmedAt      *time.Time
}

// TableName returns the table name for gorm
func (PendingPaymentModel) TableName() string {
	return "pending_payments"
}

// ToDomain converts the model to a domain PendingPayment
func (m *PendingPaymentModel) ToDomain() *billing.PendingPayment {
	p := &billing.PendingPayment{
		ID:               m.ID,
		InvoiceID:        m.InvoiceID,
		Method:           m.Method,
		Amount:           m.Amount,
		Status:           m.Status,
		AuthorizationURL: m.AuthorizationURL,
		SubscriberNumber: m.SubscriberNumber,
		ClaimNumber:      m.ClaimNumber,
		CreatedAt:        m.CreatedAt,
		ExpiresAt:        m.ExpiresAt,
		ConfirmedAt:      m.ConfirmedAt,
	}
	if m.GatewayReference != nil {
		p.GatewayReference = *m.GatewayReference
	}
	return p
}

// PendingPaymentModelFromDomain maps a pending payment
func PendingPaymentModelFromDomain(p *billing.PendingPayment) *PendingPaymentModel {
	m := &PendingPaymentModel{
		ID:               p.ID,
		InvoiceID:        p.InvoiceID,
		Method:           p.Method,
		Amount:           p.Amount,
		Status:           p.Status,
		AuthorizationURL: p.AuthorizationURL,
		SubscriberNumber: p.SubscriberNumber,
		ClaimNumber:      p.ClaimNumber,
		CreatedAt:        p.CreatedAt,
		ExpiresAt:        p.ExpiresAt,
		ConfirmedAt:      p.ConfirmedAt,
	}
	if p.GatewayReference != "" {
		ref := p.GatewayReference
		m.GatewayReference = &ref
	}
	return m
}

// ServiceCodeModel is a row of the read-only service catalog
type ServiceCodeModel struct {
	Code        string          `gorm:"type:varchar(32);primaryKey"`
	Description string          `gorm:"type:varchar(255);not null"`
	Price       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Active      bool            `gorm:"not null;default:true"`
}

// TableName returns the table name for gorm
func (ServiceCodeModel) TableName() string {
	return "service_codes"
}

// ToDomain converts the model to a domain ServiceCode
func (m *ServiceCodeModel) ToDomain() *billing.ServiceCode {
	return &billing.ServiceCode{
		Code:        m.Code,
		Description: m.Description,
		Price:       m.Price,
		Active:      m.Active,
	}
}

// PatientModel is a row of the read-only patient directory
type PatientModel struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	FullName string    `gorm:"type:varchar(200);not null"`
}

// TableName returns the table name for gorm
func (PatientModel) TableName() string {
	return "patients"
}

// ToDomain converts the model to a domain Patient
func (m *PatientModel) ToDomain() *billing.Patient {
	return &billing.Patient{ID: m.ID, FullName: m.FullName}
}

// AllModels lists every model for AutoMigrate in tests
func AllModels() []any {
	return []any{
		&InvoiceModel{},
		&InvoicePaymentModel{},
		&InvoiceCorrectionModel{},
		&PendingPaymentModel{},
		&ServiceCodeModel{},
		&PatientModel{},
	}
}
