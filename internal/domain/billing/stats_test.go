package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func row(status InvoiceStatus, total, paid string) StatsRow {
	t, p := dec(total), dec(paid)
	return StatsRow{Status: status, Total: t, AmountPaid: p, BalanceDue: t.Sub(p)}
}

func TestSummarize(t *testing.T) {
	stats := Summarize([]StatsRow{
		row(InvoiceStatusPaid, "125", "125"),
		row(InvoiceStatusPartiallyPaid, "100", "40"),
		row(InvoiceStatusOverdue, "50", "0"),
		row(InvoiceStatusVoided, "80", "30"),
		row(InvoiceStatusReversed, "60", "20"),
		row(InvoiceStatusDraft, "100", "0"),
		row(InvoiceStatusCancelled, "10", "0"),
	})

	assert.True(t, stats.TotalBilled.Equal(dec("445")), stats.TotalBilled.String())
	assert.True(t, stats.TotalCollected.Equal(dec("215")), stats.TotalCollected.String())
	assert.True(t, stats.TotalOutstanding.Equal(dec("210")), stats.TotalOutstanding.String())
	assert.Equal(t, "0.4831", stats.CollectionRate.StringFixed(4))
	assert.Equal(t, 7, stats.InvoiceCount)
	assert.Equal(t, 1, stats.ByStatus[InvoiceStatusVoided])
}

func TestSummarize_VoidWithOverrideLeavesOutstanding(t *testing.T) {
	before := Summarize([]StatsRow{row(InvoiceStatusPartiallyPaid, "125", "60")})
	after := Summarize([]StatsRow{row(InvoiceStatusVoided, "125", "60")})

	assert.True(t, before.TotalOutstanding.Equal(dec("65")))
	assert.True(t, after.TotalOutstanding.IsZero())
}

func TestSummarize_DraftAndCancelledFollowTheFormulas(t *testing.T) {
	stats := Summarize([]StatsRow{
		row(InvoiceStatusDraft, "100", "0"),
		row(InvoiceStatusSent, "100", "0"),
		row(InvoiceStatusCancelled, "40", "0"),
	})

	// billed covers every non-voided invoice
	assert.True(t, stats.TotalBilled.Equal(dec("240")), stats.TotalBilled.String())
	// a cancelled draft is terminal, so only draft and sent are owed
	assert.True(t, stats.TotalOutstanding.Equal(dec("200")), stats.TotalOutstanding.String())
	assert.True(t, stats.TotalCollected.IsZero())
	assert.True(t, stats.CollectionRate.IsZero())
	assert.Equal(t, 1, stats.ByStatus[InvoiceStatusDraft])
	assert.Equal(t, 1, stats.ByStatus[InvoiceStatusCancelled])
}

func TestSummarize_Empty(t *testing.T) {
	stats := Summarize(nil)
	assert.True(t, stats.TotalBilled.IsZero())
	assert.True(t, stats.CollectionRate.Equal(decimal.Zero))
}
