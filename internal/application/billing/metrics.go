package billing

import (
	"context"

	"github.com/shopspring/decimal"
)

// Metrics receives business counters from the billing services
type Metrics interface {
	InvoiceCreated(ctx context.Context)
	PaymentRecorded(ctx context.Context, method string, amount decimal.Decimal)
	CorrectionApplied(ctx context.Context, kind string)
	LockContended(ctx context.Context)
}

type nopMetrics struct{}

func (nopMetrics) InvoiceCreated(context.Context)                           {}
func (nopMetrics) PaymentRecorded(context.Context, string, decimal.Decimal) {}
func (nopMetrics) CorrectionApplied(context.Context, string)                {}
func (nopMetrics) LockContended(context.Context)                            {}

func metricsOrNop(m Metrics) Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
