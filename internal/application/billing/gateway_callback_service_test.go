package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hospital/billing/internal/domain/billing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newCallbackService(h *harness, store *memIdempotencyStore) *GatewayCallbackService {
	return NewGatewayCallbackService(GatewayCallbackServiceConfig{
		Gateway:          h.gateway,
		Recorder:         h.recorder,
		InvoiceRepo:      h.repo,
		PendingRepo:      h.pending,
		IdempotencyStore: store,
	})
}

func initiateCard(t *testing.T, h *harness, inv *billing.Invoice, session string) *billing.PendingPayment {
	t.Helper()
	h.gateway.On("CreateCheckout", mock.Anything, mock.Anything).
		Return(&billing.CheckoutSession{SessionID: session, AuthorizationURL: "https://pay.example/" + session}, nil).Once()
	result, err := h.initiation.Initiate(context.Background(), InitiatePaymentCommand{InvoiceID: inv.ID, Method: billing.PaymentMethodCard})
	require.NoError(t, err)
	return result.Pending
}

func paidCallback(inv *billing.Invoice, session, txn string, amount int64) *billing.GatewayPayment {
	return &billing.GatewayPayment{
		Gateway:       "stripe",
		SessionID:     session,
		TransactionID: txn,
		InvoiceID:     inv.ID,
		Amount:        decimal.NewFromInt(amount),
		Status:        billing.GatewayPaymentStatusPaid,
	}
}

func TestGatewayCallback_RecordsPaymentOnce(t *testing.T) {
	h := newHarness(t)
	store := newMemIdempotencyStore()
	svc := newCallbackService(h, store)
	inv := h.sentInvoice(t)
	pending := initiateCard(t, h, inv, "cs_1")

	payload := []byte(`{"id":"evt_1"}`)
	h.gateway.On("VerifyCallback", mock.Anything, payload, "sig").Return(paidCallback(inv, "cs_1", "pi_1", 125), nil)

	first, err := svc.ProcessCallback(context.Background(), payload, "sig")
	require.NoError(t, err)
	assert.True(t, first.Processed)

	second, err := svc.ProcessCallback(context.Background(), payload, "sig")
	require.NoError(t, err)
	assert.True(t, second.AlreadyProcessed)
	assert.False(t, second.Processed)

	stored := h.repo.stored(inv.ID)
	assert.Equal(t, billing.InvoiceStatusPaid, stored.Status)
	require.Len(t, stored.Payments, 1)
	assert.Equal(t, "pi_1", stored.Payments[0].GatewayTransactionID)
	assert.Equal(t, "gateway:stripe", stored.Payments[0].RecordedBy)

	confirmed, err := h.pending.FindByID(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.PendingPaymentStatusConfirmed, confirmed.Status)
}

func TestGatewayCallback_DurableCheckWhenStoreForgets(t *testing.T) {
	h := newHarness(t)
	inv := h.sentInvoice(t)
	initiateCard(t, h, inv, "cs_2")
	h.gateway.On("VerifyCallback", mock.Anything, mock.Anything, mock.Anything).Return(paidCallback(inv, "cs_2", "pi_2", 60), nil)

	_, err := newCallbackService(h, newMemIdempotencyStore()).ProcessCallback(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)

	// a fresh store, as after a restart with the in-memory fallback
	result, err := newCallbackService(h, newMemIdempotencyStore()).ProcessCallback(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	assert.True(t, result.AlreadyProcessed)

	stored := h.repo.stored(inv.ID)
	assert.True(t, stored.AmountPaid.Equal(decimal.NewFromInt(60)))
	assert.Len(t, stored.Payments, 1)
}

func TestGatewayCallback_InvalidSignature(t *testing.T) {
	h := newHarness(t)
	svc := newCallbackService(h, newMemIdempotencyStore())
	h.gateway.On("VerifyCallback", mock.Anything, mock.Anything, "bad").Return(nil, billing.ErrGatewayInvalidCallback)

	_, err := svc.ProcessCallback(context.Background(), []byte("{}"), "bad")
	assert.ErrorIs(t, err, ErrCallbackVerificationFailed)
}

func TestGatewayCallback_UnsupportedEventIgnored(t *testing.T) {
	h := newHarness(t)
	svc := newCallbackService(h, newMemIdempotencyStore())
	h.gateway.On("VerifyCallback", mock.Anything, mock.Anything, mock.Anything).Return(nil, billing.ErrGatewayUnsupportedType)

	result, err := svc.ProcessCallback(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	assert.True(t, result.Ignored)
}

func TestGatewayCallback_BusinessRejectionKeepsKey(t *testing.T) {
	h := newHarness(t)
	store := newMemIdempotencyStore()
	svc := newCallbackService(h, store)
	inv := h.sentInvoice(t)
	pending := initiateCard(t, h, inv, "cs_3")

	// cash settled the invoice while the card checkout was open
	_, err := h.cash(t, inv.ID, "125")
	require.NoError(t, err)
	h.gateway.On("VerifyCallback", mock.Anything, mock.Anything, mock.Anything).Return(paidCallback(inv, "cs_3", "pi_3", 125), nil)

	result, err := svc.ProcessCallback(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	assert.False(t, result.Processed)
	assert.NotEmpty(t, result.Message)
	assert.Empty(t, store.released)

	failed, err := h.pending.FindByID(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.PendingPaymentStatusFailed, failed.Status)
}

func TestGatewayCallback_InfrastructureFailureReleasesKey(t *testing.T) {
	h := newHarness(t)
	store := newMemIdempotencyStore()
	svc := newCallbackService(h, store)
	inv := h.sentInvoice(t)
	h.gateway.On("VerifyCallback", mock.Anything, mock.Anything, mock.Anything).Return(paidCallback(inv, "cs_4", "pi_4", 10), nil)
	h.repo.staleWrites = true

	_, err := svc.ProcessCallback(context.Background(), []byte("{}"), "sig")
	var busy *billing.ResourceBusyError
	require.ErrorAs(t, err, &busy)
	assert.Equal(t, []string{"payment:stripe:pi_4"}, store.released)

	h.repo.staleWrites = false
	result, err := svc.ProcessCallback(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	assert.True(t, result.Processed)
}

func TestGatewayCallback_UnpaidStatusMarksPending(t *testing.T) {
	h := newHarness(t)
	svc := newCallbackService(h, newMemIdempotencyStore())
	inv := h.sentInvoice(t)
	pending := initiateCard(t, h, inv, "cs_5")

	expired := paidCallback(inv, "cs_5", "", 125)
	expired.Status = billing.GatewayPaymentStatusExpired
	h.gateway.On("VerifyCallback", mock.Anything, mock.Anything, mock.Anything).Return(expired, nil)

	result, err := svc.ProcessCallback(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	assert.True(t, result.Ignored)

	abandoned, err := h.pending.FindByID(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.PendingPaymentStatusAbandoned, abandoned.Status)
	assert.True(t, h.repo.stored(inv.ID).AmountPaid.IsZero())
}

func TestGatewayCallback_Reconcile(t *testing.T) {
	h := newHarness(t)
	svc := newCallbackService(h, newMemIdempotencyStore())
	inv := h.sentInvoice(t)
	pending := initiateCard(t, h, inv, "cs_6")

	h.gateway.On("QueryPayment", mock.Anything, "cs_6").Return(&billing.GatewayPayment{
		SessionID:     "cs_6",
		TransactionID: "pi_6",
		Amount:        decimal.NewFromInt(125),
		Status:        billing.GatewayPaymentStatusPaid,
	}, nil).Once()

	result, err := svc.Reconcile(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, inv.ID, result.InvoiceID)
	assert.Equal(t, billing.InvoiceStatusPaid, h.repo.stored(inv.ID).Status)

	again, err := svc.Reconcile(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyProcessed)
	h.gateway.AssertNumberOfCalls(t, "QueryPayment", 1)
}

func TestGatewayCallback_ReconcileErrors(t *testing.T) {
	h := newHarness(t)
	svc := newCallbackService(h, newMemIdempotencyStore())

	_, err := svc.Reconcile(context.Background(), uuid.New())
	var notFound *billing.NotFoundError
	require.ErrorAs(t, err, &notFound)

	inv := h.sentInvoice(t)
	mm, err := h.initiation.Initiate(context.Background(), InitiatePaymentCommand{
		InvoiceID: inv.ID,
		Method:    billing.PaymentMethodMobileMoney,
		Params:    billing.ChannelParams{SubscriberNumber: "+233201234567"},
	})
	require.NoError(t, err)
	_, err = svc.Reconcile(context.Background(), mm.Pending.ID)
	var verr *billing.ValidationError
	require.ErrorAs(t, err, &verr)

	pending := initiateCard(t, h, inv, "cs_7")
	h.gateway.On("QueryPayment", mock.Anything, "cs_7").Return(nil, errors.New("timeout"))
	_, err = svc.Reconcile(context.Background(), pending.ID)
	assert.Error(t, err)
}
