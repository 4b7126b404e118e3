package billing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// memInvoiceRepo stores detached copies of invoices and enforces the
// version check of SaveWithLock
type memInvoiceRepo struct {
	mu          sync.Mutex
	invoices    map[uuid.UUID]billing.Invoice
	payments    map[uuid.UUID][]billing.Payment
	corrections map[uuid.UUID][]billing.CorrectionRecord
	seq         int
	// saveErrs are returned by Save in order before it starts succeeding
	saveErrs []error
	// staleWrites makes SaveWithLock report a version conflict
	staleWrites bool
}

func newMemInvoiceRepo() *memInvoiceRepo {
	return &memInvoiceRepo{
		invoices:    make(map[uuid.UUID]billing.Invoice),
		payments:    make(map[uuid.UUID][]billing.Payment),
		corrections: make(map[uuid.UUID][]billing.CorrectionRecord),
	}
}

func detach(inv *billing.Invoice) billing.Invoice {
	c := *inv
	c.Payments = append([]billing.Payment(nil), inv.Payments...)
	c.LineItems = append(billing.LineItems(nil), inv.LineItems...)
	c.MarkPersisted()
	c.ClearEvents()
	return c
}

func (r *memInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	c := detach(&inv)
	return &c, nil
}

func (r *memInvoiceRepo) FindByNumber(_ context.Context, number string) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.InvoiceNumber == number {
			c := detach(&inv)
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memInvoiceRepo) FindAll(_ context.Context, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]billing.Invoice, 0)
	for _, inv := range r.invoices {
		if filter.Status != nil && inv.Status != *filter.Status {
			continue
		}
		out = append(out, detach(&inv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceNumber < out[j].InvoiceNumber })
	return out, nil
}

func (r *memInvoiceRepo) Count(ctx context.Context, filter billing.InvoiceFilter) (int64, error) {
	all, err := r.FindAll(ctx, filter)
	return int64(len(all)), err
}

func (r *memInvoiceRepo) FindOverdueCandidates(_ context.Context, asOf time.Time, limit int) ([]billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]billing.Invoice, 0)
	for _, inv := range r.invoices {
		if inv.Status.CanBecomeOverdue() && inv.IsPastDue(asOf) {
			out = append(out, detach(&inv))
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memInvoiceRepo) Save(_ context.Context, inv *billing.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saveErrs) > 0 {
		err := r.saveErrs[0]
		r.saveErrs = r.saveErrs[1:]
		return err
	}
	r.invoices[inv.ID] = detach(inv)
	return nil
}

func (r *memInvoiceRepo) SaveWithLock(_ context.Context, inv *billing.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.invoices[inv.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if r.staleWrites || stored.Version != inv.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.payments[inv.ID] = append(r.payments[inv.ID], inv.NewPayments()...)
	r.corrections[inv.ID] = append(r.corrections[inv.ID], inv.NewCorrections()...)
	r.invoices[inv.ID] = detach(inv)
	return nil
}

func (r *memInvoiceRepo) GenerateInvoiceNumber(_ context.Context, at time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return fmt.Sprintf("INV-%s-%05d", at.Format("20060102"), r.seq), nil
}

func (r *memInvoiceRepo) ListPayments(_ context.Context, id uuid.UUID) ([]billing.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]billing.Payment(nil), r.payments[id]...), nil
}

func (r *memInvoiceRepo) ListCorrections(_ context.Context, id uuid.UUID) ([]billing.CorrectionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]billing.CorrectionRecord(nil), r.corrections[id]...), nil
}

func (r *memInvoiceRepo) ExistsGatewayTransaction(_ context.Context, txnID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ps := range r.payments {
		for _, p := range ps {
			if p.GatewayTransactionID == txnID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *memInvoiceRepo) stored(id uuid.UUID) billing.Invoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invoices[id]
}

type memPendingRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]billing.PendingPayment
}

func newMemPendingRepo() *memPendingRepo {
	return &memPendingRepo{items: make(map[uuid.UUID]billing.PendingPayment)}
}

func (r *memPendingRepo) FindByID(_ context.Context, id uuid.UUID) (*billing.PendingPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &p, nil
}

func (r *memPendingRepo) FindByGatewayReference(_ context.Context, ref string) (*billing.PendingPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.GatewayReference == ref {
			return &p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memPendingRepo) FindByInvoice(_ context.Context, invoiceID uuid.UUID) ([]billing.PendingPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]billing.PendingPayment, 0)
	for _, p := range r.items {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memPendingRepo) Save(_ context.Context, p *billing.PendingPayment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[p.ID] = *p
	return nil
}

type staticPatients map[uuid.UUID]string

func (p staticPatients) GetPatient(_ context.Context, id uuid.UUID) (*billing.Patient, error) {
	name, ok := p[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &billing.Patient{ID: id, FullName: name}, nil
}

type staticCatalog map[string]billing.ServiceCode

func (c staticCatalog) GetService(_ context.Context, code string) (*billing.ServiceCode, error) {
	svc, ok := c[code]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &svc, nil
}

// passLocker grants every lock immediately
type passLocker struct{}

func (passLocker) Acquire(context.Context, uuid.UUID, time.Duration) (func(), error) {
	return func() {}, nil
}

// busyLocker never grants a lock
type busyLocker struct{}

func (busyLocker) Acquire(_ context.Context, id uuid.UUID, _ time.Duration) (func(), error) {
	return nil, &billing.ResourceBusyError{InvoiceID: id}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type countingMetrics struct {
	mu          sync.Mutex
	created     int
	payments    map[string]decimal.Decimal
	corrections map[string]int
	contended   int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{payments: map[string]decimal.Decimal{}, corrections: map[string]int{}}
}

func (m *countingMetrics) InvoiceCreated(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
}

func (m *countingMetrics) PaymentRecorded(_ context.Context, method string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[method] = m.payments[method].Add(amount)
}

func (m *countingMetrics) CorrectionApplied(_ context.Context, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corrections[kind]++
}

func (m *countingMetrics) LockContended(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contended++
}

type MockEncounterReopener struct {
	mock.Mock
}

func (m *MockEncounterReopener) ReopenEncounter(ctx context.Context, encounterID, invoiceID uuid.UUID, reason string) error {
	args := m.Called(ctx, encounterID, invoiceID, reason)
	return args.Error(0)
}

type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) Name() string {
	return "stripe"
}

func (m *MockPaymentGateway) CreateCheckout(ctx context.Context, req *billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.CheckoutSession), args.Error(1)
}

func (m *MockPaymentGateway) QueryPayment(ctx context.Context, sessionID string) (*billing.GatewayPayment, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.GatewayPayment), args.Error(1)
}

func (m *MockPaymentGateway) VerifyCallback(ctx context.Context, payload []byte, signature string) (*billing.GatewayPayment, error) {
	args := m.Called(ctx, payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.GatewayPayment), args.Error(1)
}

type memIdempotencyStore struct {
	mu       sync.Mutex
	keys     map[string]bool
	released []string
}

func newMemIdempotencyStore() *memIdempotencyStore {
	return &memIdempotencyStore{keys: make(map[string]bool)}
}

func (s *memIdempotencyStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *memIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key], nil
}

func (s *memIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	s.released = append(s.released, key)
	return nil
}

func (s *memIdempotencyStore) Close() error { return nil }

type sliceStatsSource struct {
	mu    sync.Mutex
	rows  []billing.StatsRow
	scans int
	err   error
}

func (s *sliceStatsSource) ScanInvoiceTotals(_ context.Context, fn func(billing.StatsRow) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans++
	if s.err != nil {
		return s.err
	}
	for _, r := range s.rows {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}
