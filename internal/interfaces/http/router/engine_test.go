package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appbilling "github.com/hospital/billing/internal/application/billing"
	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/domain/shared"
	"github.com/hospital/billing/internal/infrastructure/config"
	"github.com/hospital/billing/internal/interfaces/http/handler"
	"github.com/hospital/billing/internal/interfaces/http/middleware"
)

// stubServices answers every call with an empty result
type stubServices struct {
	lastActor string
}

func (s *stubServices) Create(context.Context, appbilling.CreateInvoiceCommand) (*billing.Invoice, error) {
	return nil, shared.ErrNotFound
}
func (s *stubServices) Send(context.Context, uuid.UUID) (*billing.Invoice, error) {
	return nil, shared.ErrNotFound
}
func (s *stubServices) Get(context.Context, uuid.UUID) (*billing.Invoice, error) {
	return nil, shared.ErrNotFound
}
func (s *stubServices) List(context.Context, billing.InvoiceFilter) (shared.Paginated[billing.Invoice], error) {
	return shared.Paginated[billing.Invoice]{}, nil
}
func (s *stubServices) ListPayments(context.Context, uuid.UUID) ([]billing.Payment, error) {
	return nil, nil
}
func (s *stubServices) ListCorrections(context.Context, uuid.UUID) ([]billing.CorrectionRecord, error) {
	return nil, nil
}
func (s *stubServices) Initiate(context.Context, appbilling.InitiatePaymentCommand) (*appbilling.InitiationResult, error) {
	return nil, shared.ErrNotFound
}
func (s *stubServices) Record(context.Context, appbilling.RecordPaymentCommand) (*billing.Invoice, error) {
	return nil, shared.ErrNotFound
}
func (s *stubServices) Reverse(_ context.Context, _ uuid.UUID, _, actor string) (*billing.Invoice, error) {
	s.lastActor = actor
	return nil, shared.ErrNotFound
}
func (s *stubServices) Void(context.Context, uuid.UUID, string, bool, string) (*billing.Invoice, error) {
	return nil, shared.ErrNotFound
}
func (s *stubServices) ChangePaymentMethod(context.Context, uuid.UUID, billing.PaymentMethod, string) (*billing.Invoice, error) {
	return nil, shared.ErrNotFound
}
func (s *stubServices) Cancel(context.Context, uuid.UUID, string, string) (*billing.Invoice, error) {
	return nil, shared.ErrNotFound
}
func (s *stubServices) RejectClaim(context.Context, uuid.UUID, string, string) (*billing.Invoice, error) {
	return nil, shared.ErrNotFound
}
func (s *stubServices) GetStats(context.Context) (billing.Stats, error) {
	return billing.Stats{ByStatus: map[billing.InvoiceStatus]int{}}, nil
}
func (s *stubServices) ProcessCallback(context.Context, []byte, string) (*appbilling.CallbackResult, error) {
	return &appbilling.CallbackResult{Ignored: true}, nil
}
func (s *stubServices) Reconcile(context.Context, uuid.UUID) (*appbilling.CallbackResult, error) {
	return nil, shared.ErrNotFound
}

func newTestEngine(t *testing.T, swagger config.SwaggerConfig) (http.Handler, *stubServices) {
	t.Helper()
	stub := &stubServices{}
	engine := NewEngine(EngineConfig{
		HTTP:    config.HTTPConfig{MaxBodySize: 1 << 20},
		Swagger: swagger,
		Actor:   middleware.ActorConfig{AllowHeader: true},
	}, Handlers{
		Invoice:    handler.NewInvoiceHandler(stub),
		Payment:    handler.NewPaymentHandler(stub, stub, handler.CheckoutURLs{}),
		Correction: handler.NewCorrectionHandler(stub),
		Stats:      handler.NewStatsHandler(stub),
		Webhook:    handler.NewWebhookHandler(stub),
		System:     handler.NewSystemHandler("hospital-billing", "test", nil),
	})
	return engine, stub
}

func serve(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNewEngine_Routes(t *testing.T) {
	engine, stub := newTestEngine(t, config.SwaggerConfig{})
	actor := map[string]string{middleware.ActorHeader: "cashier-2"}

	t.Run("health needs no actor", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	})

	t.Run("api requires an actor", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/api/v1/invoices", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("api with actor", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/api/v1/invoices", "", actor)
		assert.Equal(t, http.StatusOK, w.Code)

		w = serve(engine, http.MethodGet, "/api/v1/billing/stats", "", actor)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("correction is attributed to the actor", func(t *testing.T) {
		w := serve(engine, http.MethodPost, "/api/v1/invoices/"+uuid.NewString()+"/reverse", `{"reason":"wrong patient"}`, actor)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "cashier-2", stub.lastActor)
	})

	t.Run("payment method change is a PUT", func(t *testing.T) {
		path := "/api/v1/invoices/" + uuid.NewString() + "/payment-method"
		w := serve(engine, http.MethodPut, path, `{"method":"cash"}`, actor)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = serve(engine, http.MethodPost, path, `{"method":"cash"}`, actor)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NotContains(t, w.Body.String(), "ERR_NOT_FOUND")
	})

	t.Run("webhook bypasses actor resolution", func(t *testing.T) {
		w := serve(engine, http.MethodPost, "/api/v1/webhooks/stripe", `{}`, map[string]string{"Stripe-Signature": "t=1,v1=x"})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("reconcile requires an actor", func(t *testing.T) {
		w := serve(engine, http.MethodPost, "/api/v1/pending-payments/"+uuid.NewString()+"/reconcile", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("swagger disabled", func(t *testing.T) {
		w := serve(engine, http.MethodGet, openAPIPath, "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestNewEngine_Swagger(t *testing.T) {
	spec := filepath.Join(t.TempDir(), "openapi.json")
	require.NoError(t, os.WriteFile(spec, []byte(`{"openapi":"3.0.3"}`), 0o600))

	engine, _ := newTestEngine(t, config.SwaggerConfig{Enabled: true, SpecPath: spec})

	w := serve(engine, http.MethodGet, openAPIPath, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "3.0.3")
}
