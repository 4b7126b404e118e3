package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hospital/billing/internal/domain/billing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statsRow(status billing.InvoiceStatus, total, paid int64) billing.StatsRow {
	return billing.StatsRow{
		Status:     status,
		Total:      decimal.NewFromInt(total),
		AmountPaid: decimal.NewFromInt(paid),
		BalanceDue: decimal.NewFromInt(total - paid),
	}
}

func TestStatsService_GetStats(t *testing.T) {
	source := &sliceStatsSource{rows: []billing.StatsRow{
		statsRow(billing.InvoiceStatusPaid, 125, 125),
		statsRow(billing.InvoiceStatusPartiallyPaid, 125, 60),
		statsRow(billing.InvoiceStatusVoided, 125, 60),
	}}
	svc := NewStatsService(StatsServiceConfig{Source: source, CacheTTL: time.Minute})

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.TotalBilled.Equal(decimal.NewFromInt(250)))
	assert.True(t, stats.TotalCollected.Equal(decimal.NewFromInt(245)))
	assert.True(t, stats.TotalOutstanding.Equal(decimal.NewFromInt(65)))
	assert.Equal(t, "0.98", stats.CollectionRate.StringFixed(2))
}

func TestStatsService_CachesUntilTTL(t *testing.T) {
	source := &sliceStatsSource{rows: []billing.StatsRow{statsRow(billing.InvoiceStatusSent, 100, 0)}}
	svc := NewStatsService(StatsServiceConfig{Source: source, CacheTTL: time.Minute})
	now := time.Now()
	svc.now = func() time.Time { return now }

	_, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	_, err = svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, source.scans)

	now = now.Add(2 * time.Minute)
	_, err = svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, source.scans)

	NewStatsInvalidationHandler(svc).Handle(context.Background(), nil)
	_, err = svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, source.scans)
}

func TestStatsService_ServesStaleOnError(t *testing.T) {
	source := &sliceStatsSource{rows: []billing.StatsRow{statsRow(billing.InvoiceStatusSent, 100, 0)}}
	svc := NewStatsService(StatsServiceConfig{Source: source})

	_, err := svc.GetStats(context.Background())
	require.NoError(t, err)

	source.err = errors.New("replica lag")
	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.TotalOutstanding.Equal(decimal.NewFromInt(100)))

	empty := NewStatsService(StatsServiceConfig{Source: &sliceStatsSource{err: errors.New("down")}})
	_, err = empty.GetStats(context.Background())
	assert.Error(t, err)
}

func TestStatsInvalidationHandler_CoversStatusChanges(t *testing.T) {
	types := NewStatsInvalidationHandler(NewStatsService(StatsServiceConfig{Source: &sliceStatsSource{}})).EventTypes()

	for _, want := range []string{
		billing.EventTypeInvoiceCreated,
		billing.EventTypeInvoiceSent,
		billing.EventTypePaymentRecorded,
		billing.EventTypeInvoiceReversed,
		billing.EventTypeInvoiceVoided,
		billing.EventTypeInvoiceCancelled,
		billing.EventTypeInvoiceOverdue,
		billing.EventTypeInsuranceClaimSubmitted,
		billing.EventTypeInsuranceClaimRejected,
	} {
		assert.Contains(t, types, want)
	}
	assert.NotContains(t, types, billing.EventTypePaymentMethodChanged)
}
