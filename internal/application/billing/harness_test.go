package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/infrastructure/lock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type harness struct {
	repo        *memInvoiceRepo
	pending     *memPendingRepo
	publisher   *recordingPublisher
	metrics     *countingMetrics
	reopener    *MockEncounterReopener
	gateway     *MockPaymentGateway
	patientID   uuid.UUID
	invoices    *InvoiceService
	recorder    *PaymentRecorder
	initiation  *PaymentInitiationService
	corrections *CorrectionEngine
	overdue     *OverdueService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo:      newMemInvoiceRepo(),
		pending:   newMemPendingRepo(),
		publisher: &recordingPublisher{},
		metrics:   newCountingMetrics(),
		reopener:  &MockEncounterReopener{},
		gateway:   &MockPaymentGateway{},
		patientID: uuid.New(),
	}
	locker := lock.NewMemoryLocker()
	channels := billing.NewChannelRegistry(billing.DefaultChannels(h.gateway)...)

	h.invoices = NewInvoiceService(InvoiceServiceConfig{
		Repo:     h.repo,
		Locker:   locker,
		Patients: staticPatients{h.patientID: "Ama Mensah"},
		Catalog: staticCatalog{
			"CONS-01": {Code: "CONS-01", Description: "General consultation", Price: decimal.NewFromInt(50), Active: true},
			"OLD-99":  {Code: "OLD-99", Description: "Retired", Price: decimal.NewFromInt(1), Active: false},
		},
		Publisher: h.publisher,
		Metrics:   h.metrics,
	})
	h.recorder = NewPaymentRecorder(PaymentRecorderConfig{
		Repo:      h.repo,
		Locker:    locker,
		Channels:  channels,
		Publisher: h.publisher,
		Metrics:   h.metrics,
	})
	h.initiation = NewPaymentInitiationService(PaymentInitiationServiceConfig{
		Repo:        h.repo,
		PendingRepo: h.pending,
		Locker:      locker,
		Channels:    channels,
		Publisher:   h.publisher,
	})
	h.corrections = NewCorrectionEngine(CorrectionEngineConfig{
		Repo:      h.repo,
		Locker:    locker,
		Reopener:  h.reopener,
		Publisher: h.publisher,
		Metrics:   h.metrics,
	})
	h.overdue = NewOverdueService(OverdueServiceConfig{
		Repo:      h.repo,
		Locker:    locker,
		Publisher: h.publisher,
		BatchSize: 2,
	})
	return h
}

func price(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

// sentInvoice creates and sends the 125.00 invoice
func (h *harness) sentInvoice(t *testing.T) *billing.Invoice {
	t.Helper()
	encounter := uuid.New()
	inv, err := h.invoices.Create(context.Background(), CreateInvoiceCommand{
		PatientID:   h.patientID,
		EncounterID: &encounter,
		LineItems: []LineItemInput{
			{Description: "Consultation", Quantity: 2, UnitPrice: price("50")},
			{Description: "Dressing", Quantity: 1, UnitPrice: price("30"), Discount: decimal.NewFromInt(5)},
		},
	})
	require.NoError(t, err)
	inv, err = h.invoices.Send(context.Background(), inv.ID)
	require.NoError(t, err)
	return inv
}

func (h *harness) cash(t *testing.T, id uuid.UUID, amount string) (*billing.Invoice, error) {
	t.Helper()
	return h.recorder.Record(context.Background(), RecordPaymentCommand{
		InvoiceID:  id,
		Amount:     decimal.RequireFromString(amount),
		Method:     billing.PaymentMethodCash,
		Verified:   true,
		RecordedBy: "cashier",
	})
}

func past(days int) *time.Time {
	d := time.Now().AddDate(0, 0, -days)
	return &d
}
