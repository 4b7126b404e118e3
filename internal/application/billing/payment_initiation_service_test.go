package billing

import (
	"context"
	"testing"

	"github.com/hospital/billing/internal/domain/billing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPaymentInitiation_CardReturnsPendingWithoutTouchingInvoice(t *testing.T) {
	h := newHarness(t)
	inv := h.sentInvoice(t)
	h.gateway.On("CreateCheckout", mock.Anything, mock.MatchedBy(func(req *billing.CheckoutRequest) bool {
		return req.InvoiceID == inv.ID && req.Amount.Equal(decimal.NewFromInt(125))
	})).Return(&billing.CheckoutSession{SessionID: "cs_1", AuthorizationURL: "https://pay.example/cs_1"}, nil)

	result, err := h.initiation.Initiate(context.Background(), InitiatePaymentCommand{InvoiceID: inv.ID, Method: billing.PaymentMethodCard})
	require.NoError(t, err)

	require.NotNil(t, result.Pending)
	assert.Equal(t, "https://pay.example/cs_1", result.Pending.AuthorizationURL)
	saved, err := h.pending.FindByGatewayReference(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, result.Pending.ID, saved.ID)

	stored := h.repo.stored(inv.ID)
	assert.Equal(t, inv.Version, stored.Version)
	assert.True(t, stored.AmountPaid.IsZero())
	h.gateway.AssertExpectations(t)
}

func TestPaymentInitiation_ImmediateChannelReturnsInvoice(t *testing.T) {
	h := newHarness(t)
	inv := h.sentInvoice(t)

	result, err := h.initiation.Initiate(context.Background(), InitiatePaymentCommand{InvoiceID: inv.ID, Method: billing.PaymentMethodBankTransfer})
	require.NoError(t, err)
	assert.Nil(t, result.Pending)
	require.NotNil(t, result.Invoice)
	assert.Equal(t, inv.ID, result.Invoice.ID)
}

func TestPaymentInitiation_InsuranceClaimMovesInvoice(t *testing.T) {
	h := newHarness(t)
	inv := h.sentInvoice(t)

	result, err := h.initiation.Initiate(context.Background(), InitiatePaymentCommand{
		InvoiceID: inv.ID,
		Method:    billing.PaymentMethodInsuranceClaim,
		Params:    billing.ChannelParams{ClaimNumber: "NHIS-9"},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Pending)
	assert.Equal(t, billing.InvoiceStatusPendingInsurance, result.Invoice.Status)
	assert.Equal(t, billing.InvoiceStatusPendingInsurance, h.repo.stored(inv.ID).Status)
	assert.Contains(t, h.publisher.types(), billing.EventTypeInsuranceClaimSubmitted)

	// settlement still goes through the recorder
	paid, err := h.recorder.Record(context.Background(), RecordPaymentCommand{
		InvoiceID: inv.ID,
		Amount:    decimal.NewFromInt(125),
		Method:    billing.PaymentMethodInsuranceClaim,
		Reference: "NHIS-9",
		Verified:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceStatusPaid, paid.Status)
}

func TestPaymentInitiation_MobileMoneyValidation(t *testing.T) {
	h := newHarness(t)
	inv := h.sentInvoice(t)

	_, err := h.initiation.Initiate(context.Background(), InitiatePaymentCommand{InvoiceID: inv.ID, Method: billing.PaymentMethodMobileMoney})
	var verr *billing.ValidationError
	require.ErrorAs(t, err, &verr)

	result, err := h.initiation.Initiate(context.Background(), InitiatePaymentCommand{
		InvoiceID: inv.ID,
		Method:    billing.PaymentMethodMobileMoney,
		Params:    billing.ChannelParams{SubscriberNumber: "+233201234567"},
	})
	require.NoError(t, err)
	assert.Equal(t, "+233201234567", result.Pending.SubscriberNumber)
}

func TestPaymentInitiation_UnknownMethod(t *testing.T) {
	h := newHarness(t)
	inv := h.sentInvoice(t)

	_, err := h.initiation.Initiate(context.Background(), InitiatePaymentCommand{InvoiceID: inv.ID, Method: "cheque"})
	var verr *billing.ValidationError
	assert.ErrorAs(t, err, &verr)
}
