package billing

// PaymentMethod identifies the settlement rail used for a payment
type PaymentMethod string

const (
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodBankTransfer   PaymentMethod = "bank_transfer"
	PaymentMethodMobileMoney    PaymentMethod = "mobile_money"
	PaymentMethodCash           PaymentMethod = "cash"
	PaymentMethodInsuranceClaim PaymentMethod = "insurance_claim"
)

// IsValid returns true if the payment method is supported
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodBankTransfer, PaymentMethodMobileMoney,
		PaymentMethodCash, PaymentMethodInsuranceClaim:
		return true
	default:
		return false
	}
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// RequiresGatewayConfirmation returns true for rails whose payments are
// confirmed by the gateway callback rather than by staff.
func (m PaymentMethod) RequiresGatewayConfirmation() bool {
	return m == PaymentMethodCard
}
