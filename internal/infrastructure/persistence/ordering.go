package persistence

import (
	"strings"

	"gorm.io/gorm/clause"

	"github.com/hospital/billing/internal/domain/shared"
)

// invoiceOrderColumns are the invoice list sort keys mapped to columns.
// Anything else falls back to creation time so user input never reaches SQL.
var invoiceOrderColumns = map[string]string{
	"created_at":     "created_at",
	"updated_at":     "updated_at",
	"invoice_number": "invoice_number",
	"due_date":       "due_date",
	"total":          "total",
	"balance_due":    "balance_due",
	"status":         "status",
}

// invoiceOrder builds the ORDER BY of an invoice listing. The id tiebreaker
// keeps pages stable when many rows share the sort value.
func invoiceOrder(f shared.Filter) clause.OrderBy {
	column, ok := invoiceOrderColumns[strings.TrimSpace(f.OrderBy)]
	if !ok {
		column = "created_at"
	}
	desc := !strings.EqualFold(strings.TrimSpace(f.OrderDir), "asc")
	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: column}, Desc: desc},
		{Column: clause.Column{Name: "id"}, Desc: desc},
	}}
}
