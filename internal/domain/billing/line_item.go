package billing

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// LineItem is one billable service or product entry within an invoice
type LineItem struct {
	Description string          `json:"description"`
	ServiceCode string          `json:"service_code,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
}

// Amount returns quantity × unit_price − discount. The result may be negative
// for a credit line.
func (li LineItem) Amount() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity))).Sub(li.Discount).Round(2)
}

// LineItems is an ordered list of line items, stored as a JSON array
type LineItems []LineItem

// Value implements driver.Valuer for database storage
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for database retrieval
func (l *LineItems) Scan(value any) error {
	if value == nil {
		*l = LineItems{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for LineItems: %T", value)
	}
	return json.Unmarshal(data, l)
}

// TotalResult is the outcome of a line item calculation
type TotalResult struct {
	Subtotal      decimal.Decimal
	TotalDiscount decimal.Decimal
	// Raw is Σ(item amounts) before flooring, kept for anomaly reports
	Raw   decimal.Decimal
	Total decimal.Decimal
	// Anomaly is set when Raw was negative and Total was floored at zero
	Anomaly bool
}

// CalculateTotal computes an invoice total from its line items.
//
// A negative item contribution is allowed, but the aggregate is floored at
// zero and Anomaly is set so the caller can surface it.
func CalculateTotal(items []LineItem) (TotalResult, error) {
	if len(items) == 0 {
		return TotalResult{}, NewValidationError("line_items", "at least one line item is required")
	}

	described := false
	subtotal := decimal.Zero
	discount := decimal.Zero
	for i, item := range items {
		if item.Quantity < 1 {
			return TotalResult{}, NewValidationError(fmt.Sprintf("line_items[%d].quantity", i), "quantity must be at least 1")
		}
		if item.UnitPrice.IsNegative() {
			return TotalResult{}, NewValidationError(fmt.Sprintf("line_items[%d].unit_price", i), "unit price cannot be negative")
		}
		if item.Discount.IsNegative() {
			return TotalResult{}, NewValidationError(fmt.Sprintf("line_items[%d].discount", i), "discount cannot be negative")
		}
		if strings.TrimSpace(item.Description) != "" {
			described = true
		}
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		discount = discount.Add(item.Discount)
	}
	if !described {
		return TotalResult{}, NewValidationError("line_items", "line items must have a description")
	}

	raw := subtotal.Sub(discount).Round(2)
	result := TotalResult{
		Subtotal:      subtotal.Round(2),
		TotalDiscount: discount.Round(2),
		Raw:           raw,
		Total:         raw,
	}
	if raw.IsNegative() {
		result.Total = decimal.Zero
		result.Anomaly = true
	}
	return result, nil
}
