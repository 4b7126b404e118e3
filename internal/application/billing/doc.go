// Package billing contains the application services of the invoice-to-cash
// workflow: invoice creation and issuing, payment initiation and recording,
// gateway callbacks, corrections, overdue sweeps and collection stats.
//
// Every mutation of an invoice runs under the per-invoice lock, reloads the
// invoice after acquiring it and re-validates before saving.
package billing
