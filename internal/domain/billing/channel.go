package billing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// ReferenceField names a piece of proof a channel needs before a payment
// can be recorded
type ReferenceField struct {
	Name     string
	Required bool
}

// FieldSet is the set of reference fields a channel declares
type FieldSet []ReferenceField

// Validate checks a payment reference against the required fields
func (fs FieldSet) Validate(method PaymentMethod, reference string) error {
	for _, f := range fs {
		if f.Required && strings.TrimSpace(reference) == "" {
			return &MissingReferenceError{Method: method, Field: f.Name}
		}
	}
	return nil
}

// Names returns the field names in declaration order
func (fs FieldSet) Names() []string {
	names := make([]string, 0, len(fs))
	for _, f := range fs {
		names = append(names, f.Name)
	}
	return names
}

// ChannelParams carries channel-specific initiation input
type ChannelParams struct {
	Amount           decimal.Decimal
	SubscriberNumber string
	ClaimNumber      string
	SuccessURL       string
	CancelURL        string
}

// Initiation is the outcome of starting a payment. Exactly one of the two
// shapes is meaningful: a pending payment awaiting confirmation, or an
// immediate channel whose payment is recorded directly by staff.
type Initiation struct {
	Pending   *PendingPayment
	Immediate bool
	// InvoiceChanged is set when initiation moved the invoice state
	InvoiceChanged bool
}

// PaymentChannel is one settlement rail
type PaymentChannel interface {
	Method() PaymentMethod
	Initiate(ctx context.Context, inv *Invoice, params ChannelParams) (*Initiation, error)
	RequiredReferenceFields() FieldSet
}

// ChannelRegistry resolves payment methods to channels
type ChannelRegistry struct {
	mu       sync.RWMutex
	channels map[PaymentMethod]PaymentChannel
}

// NewChannelRegistry creates a registry holding the given channels
func NewChannelRegistry(channels ...PaymentChannel) *ChannelRegistry {
	r := &ChannelRegistry{channels: make(map[PaymentMethod]PaymentChannel)}
	for _, ch := range channels {
		r.Register(ch)
	}
	return r
}

// Register adds or replaces the channel for its method
func (r *ChannelRegistry) Register(ch PaymentChannel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.Method()] = ch
}

// Get returns the channel for a method
func (r *ChannelRegistry) Get(method PaymentMethod) (PaymentChannel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[method]
	if !ok {
		return nil, NewValidationError("method", fmt.Sprintf("unsupported payment method %q", method))
	}
	return ch, nil
}

// ValidateReference checks a reference against the method's channel
func (r *ChannelRegistry) ValidateReference(method PaymentMethod, reference string) error {
	ch, err := r.Get(method)
	if err != nil {
		return err
	}
	return ch.RequiredReferenceFields().Validate(method, reference)
}

// StatefulChannel is implemented by channels whose initiation moves the
// invoice state, so it must run under the invoice lock
type StatefulChannel interface {
	MutatesInvoiceOnInitiate() bool
}
