package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
)

const (
	// Stripe accepts checkout expiry between 30 minutes and 24 hours
	minSessionTTL     = 30 * time.Minute
	maxSessionTTL     = 24 * time.Hour
	defaultSessionTTL = time.Hour

	// maxWebhookPayload bounds the webhook bodies we are willing to verify
	maxWebhookPayload = 64 * 1024
)

// StripeConfig holds configuration for the Stripe card gateway
type StripeConfig struct {
	// SecretKey is the Stripe secret API key (sk_test_xxx or sk_live_xxx)
	SecretKey string

	// WebhookSecret verifies Stripe-Signature headers (whsec_xxx)
	WebhookSecret string

	// Currency is the billing currency; Stripe wants it lower-cased
	Currency currency.Unit

	// SessionTTL is how long a hosted checkout stays open
	SessionTTL time.Duration

	// Backend overrides the Stripe API backend, for tests
	Backend stripe.Backend

	Logger *zap.Logger
}

// Validate validates the Stripe configuration
func (c *StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("stripe: secret key is required")
	}
	if !strings.HasPrefix(c.SecretKey, "sk_") && !strings.HasPrefix(c.SecretKey, "rk_") {
		return fmt.Errorf("stripe: secret key must start with sk_ or rk_")
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("stripe: webhook secret is required")
	}
	if c.Currency == (currency.Unit{}) {
		return fmt.Errorf("stripe: currency is required")
	}
	if c.SessionTTL != 0 && (c.SessionTTL < minSessionTTL || c.SessionTTL > maxSessionTTL) {
		return fmt.Errorf("stripe: session ttl must be between %s and %s", minSessionTTL, maxSessionTTL)
	}
	return nil
}

// IsTestMode reports whether the key belongs to Stripe test mode
func (c *StripeConfig) IsTestMode() bool {
	return strings.Contains(c.SecretKey, "_test_")
}

func (c *StripeConfig) sessionTTL() time.Duration {
	if c.SessionTTL == 0 {
		return defaultSessionTTL
	}
	return c.SessionTTL
}
