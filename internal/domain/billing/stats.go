package billing

import (
	"github.com/shopspring/decimal"
)

// Stats are the headline collection figures
type Stats struct {
	TotalBilled      decimal.Decimal       `json:"total_billed"`
	TotalCollected   decimal.Decimal       `json:"total_collected"`
	TotalOutstanding decimal.Decimal       `json:"total_outstanding"`
	CollectionRate   decimal.Decimal       `json:"collection_rate"`
	InvoiceCount     int                   `json:"invoice_count"`
	ByStatus         map[InvoiceStatus]int `json:"by_status"`
}

// StatsAccumulator folds invoice rows into Stats one at a time
type StatsAccumulator struct {
	billed      decimal.Decimal
	collected   decimal.Decimal
	outstanding decimal.Decimal
	count       int
	byStatus    map[InvoiceStatus]int
}

// NewStatsAccumulator creates an empty accumulator
func NewStatsAccumulator() *StatsAccumulator {
	return &StatsAccumulator{byStatus: make(map[InvoiceStatus]int)}
}

// Add folds one invoice into the running totals. Every invoice but a voided
// one counts as billed; balances still owed count as outstanding until the
// invoice is frozen.
func (a *StatsAccumulator) Add(row StatsRow) {
	a.count++
	a.byStatus[row.Status]++

	a.collected = a.collected.Add(row.AmountPaid)
	if row.Status != InvoiceStatusVoided {
		a.billed = a.billed.Add(row.Total)
	}
	if !row.Status.IsFrozen() {
		a.outstanding = a.outstanding.Add(row.BalanceDue)
	}
}

// Result returns the aggregated stats
func (a *StatsAccumulator) Result() Stats {
	rate := decimal.Zero
	if a.billed.IsPositive() {
		rate = a.collected.DivRound(a.billed, 4)
	}
	byStatus := make(map[InvoiceStatus]int, len(a.byStatus))
	for k, v := range a.byStatus {
		byStatus[k] = v
	}
	return Stats{
		TotalBilled:      a.billed,
		TotalCollected:   a.collected,
		TotalOutstanding: a.outstanding,
		CollectionRate:   rate,
		InvoiceCount:     a.count,
		ByStatus:         byStatus,
	}
}

// Summarize aggregates a slice of rows
func Summarize(rows []StatsRow) Stats {
	acc := NewStatsAccumulator()
	for _, row := range rows {
		acc.Add(row)
	}
	return acc.Result()
}
