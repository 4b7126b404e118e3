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

func TestCorrectionEngine_ReverseReopensEncounterOnce(t *testing.T) {
	h := newHarness(t)
	inv := h.sentInvoice(t)
	_, err := h.cash(t, inv.ID, "60")
	require.NoError(t, err)

	h.reopener.On("ReopenEncounter", mock.Anything, *inv.EncounterID, inv.ID, "billed wrong encounter").Return(nil).Once()

	reversed, err := h.corrections.Reverse(context.Background(), inv.ID, "billed wrong encounter", "dr.owusu")
	require.NoError(t, err)

	assert.Equal(t, billing.InvoiceStatusReversed, reversed.Status)
	assert.True(t, reversed.AmountPaid.Equal(decimal.NewFromInt(60)))
	assert.True(t, reversed.BalanceDue.Equal(decimal.NewFromInt(65)))
	h.reopener.AssertNumberOfCalls(t, "ReopenEncounter", 1)

	log, err := h.invoices.ListCorrections(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, billing.CorrectionReverse, log[0].Kind)
	assert.Equal(t, "dr.owusu", log[0].Actor)
	assert.Equal(t, 1, h.metrics.corrections["reverse"])
}

func TestCorrectionEngine_ReverseRejectedDoesNotReopen(t *testing.T) {
	h := newHarness(t)
	inv := h.sentInvoice(t)
	_, err := h.cash(t, inv.ID, "125")
	require.NoError(t, err)

	_, err = h.corrections.Reverse(context.Background(), inv.ID, "late", "dr.owusu")
	var terr *billing.InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	h.reopener.AssertNotCalled(t, "ReopenEncounter", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCorrectionEngine_ReopenFailureKeepsReversal(t *testing.T) {
	h := newHarness(t)
	inv := h.sentInvoice(t)
	h.reopener.On("ReopenEncounter", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("ehr down"))

	reversed, err := h.corrections.Reverse(context.Background(), inv.ID, "duplicate", "clerk")
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceStatusReversed, reversed.Status)
	assert.Equal(t, billing.InvoiceStatusReversed, h.repo.stored(inv.ID).Status)
}

func TestCorrectionEngine_VoidOverride(t *testing.T) {
	h := newHarness(t)
	inv := h.sentInvoice(t)
	_, err := h.cash(t, inv.ID, "60")
	require.NoError(t, err)

	_, err = h.corrections.Void(context.Background(), inv.ID, "duplicate", false, "supervisor")
	var terr *billing.InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, billing.InvoiceStatusPartiallyPaid, h.repo.stored(inv.ID).Status)

	voided, err := h.corrections.Void(context.Background(), inv.ID, "duplicate", true, "supervisor")
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceStatusVoided, voided.Status)
	assert.True(t, voided.VoidOverride)

	log, err := h.invoices.ListCorrections(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.True(t, log[0].Override)
}

func TestCorrectionEngine_ChangePaymentMethod(t *testing.T) {
	h := newHarness(t)
	inv := h.sentInvoice(t)

	changed, err := h.corrections.ChangePaymentMethod(context.Background(), inv.ID, billing.PaymentMethodMobileMoney, "clerk")
	require.NoError(t, err)
	require.NotNil(t, changed.PaymentMethod)
	assert.Equal(t, billing.PaymentMethodMobileMoney, *changed.PaymentMethod)

	_, err = h.corrections.ChangePaymentMethod(context.Background(), inv.ID, "barter", "clerk")
	var verr *billing.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = h.cash(t, inv.ID, "5")
	require.NoError(t, err)
	_, err = h.corrections.ChangePaymentMethod(context.Background(), inv.ID, billing.PaymentMethodCard, "clerk")
	var terr *billing.InvalidTransitionError
	require.ErrorAs(t, err, &terr)
}

func TestCorrectionEngine_CancelDraft(t *testing.T) {
	h := newHarness(t)
	draft, err := h.invoices.Create(context.Background(), CreateInvoiceCommand{
		PatientID: h.patientID,
		LineItems: []LineItemInput{{Description: "Consultation", Quantity: 1, UnitPrice: price("50")}},
	})
	require.NoError(t, err)

	cancelled, err := h.corrections.Cancel(context.Background(), draft.ID, "patient left", "clerk")
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceStatusCancelled, cancelled.Status)

	_, err = h.invoices.Send(context.Background(), draft.ID)
	var terr *billing.InvalidTransitionError
	assert.ErrorAs(t, err, &terr)
}

func TestCorrectionEngine_RejectClaim(t *testing.T) {
	h := newHarness(t)
	inv := h.sentInvoice(t)

	_, err := h.initiation.Initiate(context.Background(), InitiatePaymentCommand{
		InvoiceID: inv.ID,
		Method:    billing.PaymentMethodInsuranceClaim,
		Params:    billing.ChannelParams{ClaimNumber: "NHIS-1"},
	})
	require.NoError(t, err)

	restored, err := h.corrections.RejectClaim(context.Background(), inv.ID, "policy lapsed", "claims")
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceStatusSent, restored.Status)
}

func TestCorrectionEngine_BlankReasonRejectedBeforeLock(t *testing.T) {
	engine := NewCorrectionEngine(CorrectionEngineConfig{
		Repo:   newMemInvoiceRepo(),
		Locker: busyLocker{},
	})
	ctx := context.Background()
	id := uuid.New()

	tests := []struct {
		name string
		call func() error
	}{
		{"reverse", func() error { _, err := engine.Reverse(ctx, id, "", "clerk"); return err }},
		{"void", func() error { _, err := engine.Void(ctx, id, "  ", true, "clerk"); return err }},
		{"cancel", func() error { _, err := engine.Cancel(ctx, id, "", "clerk"); return err }},
		{"reject claim", func() error { _, err := engine.RejectClaim(ctx, id, "\t", "clerk"); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var verr *billing.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "reason", verr.Field)

			var busy *billing.ResourceBusyError
			assert.False(t, errors.As(err, &busy))
		})
	}
}
