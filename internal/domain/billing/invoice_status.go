package billing

// InvoiceStatus represents the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft            InvoiceStatus = "draft"
	InvoiceStatusSent             InvoiceStatus = "sent"
	InvoiceStatusPartiallyPaid    InvoiceStatus = "partially_paid"
	InvoiceStatusPaid             InvoiceStatus = "paid"
	InvoiceStatusOverdue          InvoiceStatus = "overdue"
	InvoiceStatusPendingInsurance InvoiceStatus = "pending_insurance"
	InvoiceStatusReversed         InvoiceStatus = "reversed"
	InvoiceStatusVoided           InvoiceStatus = "voided"
	InvoiceStatusCancelled        InvoiceStatus = "cancelled"
)

// AllInvoiceStatuses lists every status in lifecycle order
var AllInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusSent,
	InvoiceStatusPartiallyPaid,
	InvoiceStatusPaid,
	InvoiceStatusOverdue,
	InvoiceStatusPendingInsurance,
	InvoiceStatusReversed,
	InvoiceStatusVoided,
	InvoiceStatusCancelled,
}

// IsValid returns true if the status is a known status
func (s InvoiceStatus) IsValid() bool {
	for _, known := range AllInvoiceStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true for statuses that never change again
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusVoided || s == InvoiceStatusCancelled
}

// IsFrozen returns true when balances no longer move: terminal statuses and
// reversed invoices, whose amounts are kept as an audit snapshot.
func (s InvoiceStatus) IsFrozen() bool {
	return s.IsTerminal() || s == InvoiceStatusReversed
}

// CanAcceptPayment returns true if a payment may be posted in this status
func (s InvoiceStatus) CanAcceptPayment() bool {
	switch s {
	case InvoiceStatusSent, InvoiceStatusPartiallyPaid, InvoiceStatusOverdue, InvoiceStatusPendingInsurance:
		return true
	default:
		return false
	}
}

// CanReverse returns true if a reversal is permitted in this status
func (s InvoiceStatus) CanReverse() bool {
	switch s {
	case InvoiceStatusSent, InvoiceStatusPartiallyPaid, InvoiceStatusOverdue:
		return true
	default:
		return false
	}
}

// CanVoid returns true if a void may be attempted in this status. Whether it
// succeeds also depends on the payments recorded so far.
func (s InvoiceStatus) CanVoid() bool {
	switch s {
	case InvoiceStatusSent, InvoiceStatusPartiallyPaid, InvoiceStatusOverdue,
		InvoiceStatusPendingInsurance, InvoiceStatusPaid, InvoiceStatusReversed:
		return true
	default:
		return false
	}
}

// CanBecomeOverdue returns true if the periodic due-date check may flag this status
func (s InvoiceStatus) CanBecomeOverdue() bool {
	switch s {
	case InvoiceStatusSent, InvoiceStatusPartiallyPaid, InvoiceStatusPendingInsurance:
		return true
	default:
		return false
	}
}

// CanSubmitClaim returns true if an insurance claim may be lodged in this status
func (s InvoiceStatus) CanSubmitClaim() bool {
	switch s {
	case InvoiceStatusSent, InvoiceStatusPartiallyPaid, InvoiceStatusOverdue:
		return true
	default:
		return false
	}
}

// InvoiceEvent names a requested state machine transition
type InvoiceEvent string

const (
	EventSend                InvoiceEvent = "send"
	EventCancel              InvoiceEvent = "cancel"
	EventPayment             InvoiceEvent = "record_payment"
	EventReverse             InvoiceEvent = "reverse"
	EventVoid                InvoiceEvent = "void"
	EventMarkOverdue         InvoiceEvent = "mark_overdue"
	EventChangePaymentMethod InvoiceEvent = "change_payment_method"
	EventSubmitClaim         InvoiceEvent = "submit_claim"
	EventClaimRejected       InvoiceEvent = "claim_rejected"
	EventInitiatePayment     InvoiceEvent = "initiate_payment"
)

// String returns the string representation of InvoiceEvent
func (e InvoiceEvent) String() string {
	return string(e)
}
