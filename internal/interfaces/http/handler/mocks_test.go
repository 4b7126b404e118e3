package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appbilling "github.com/hospital/billing/internal/application/billing"
	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/domain/shared"
	"github.com/hospital/billing/internal/infrastructure/auth"
	"github.com/hospital/billing/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

type mockInvoiceService struct{ mock.Mock }

func (m *mockInvoiceService) Create(ctx context.Context, cmd appbilling.CreateInvoiceCommand) (*billing.Invoice, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *mockInvoiceService) Send(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *mockInvoiceService) Get(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *mockInvoiceService) List(ctx context.Context, filter billing.InvoiceFilter) (shared.Paginated[billing.Invoice], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(shared.Paginated[billing.Invoice]), args.Error(1)
}

func (m *mockInvoiceService) ListPayments(ctx context.Context, id uuid.UUID) ([]billing.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Payment), args.Error(1)
}

func (m *mockInvoiceService) ListCorrections(ctx context.Context, id uuid.UUID) ([]billing.CorrectionRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.CorrectionRecord), args.Error(1)
}

type mockPaymentInitiator struct{ mock.Mock }

func (m *mockPaymentInitiator) Initiate(ctx context.Context, cmd appbilling.InitiatePaymentCommand) (*appbilling.InitiationResult, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appbilling.InitiationResult), args.Error(1)
}

type mockPaymentRecorder struct{ mock.Mock }

func (m *mockPaymentRecorder) Record(ctx context.Context, cmd appbilling.RecordPaymentCommand) (*billing.Invoice, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

type mockCorrectionService struct{ mock.Mock }

func (m *mockCorrectionService) result(args mock.Arguments) (*billing.Invoice, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *mockCorrectionService) Reverse(ctx context.Context, id uuid.UUID, reason, actor string) (*billing.Invoice, error) {
	return m.result(m.Called(ctx, id, reason, actor))
}

func (m *mockCorrectionService) Void(ctx context.Context, id uuid.UUID, reason string, override bool, actor string) (*billing.Invoice, error) {
	return m.result(m.Called(ctx, id, reason, override, actor))
}

func (m *mockCorrectionService) ChangePaymentMethod(ctx context.Context, id uuid.UUID, method billing.PaymentMethod, actor string) (*billing.Invoice, error) {
	return m.result(m.Called(ctx, id, method, actor))
}

func (m *mockCorrectionService) Cancel(ctx context.Context, id uuid.UUID, reason, actor string) (*billing.Invoice, error) {
	return m.result(m.Called(ctx, id, reason, actor))
}

func (m *mockCorrectionService) RejectClaim(ctx context.Context, id uuid.UUID, reason, actor string) (*billing.Invoice, error) {
	return m.result(m.Called(ctx, id, reason, actor))
}

type mockStatsProvider struct{ mock.Mock }

func (m *mockStatsProvider) GetStats(ctx context.Context) (billing.Stats, error) {
	args := m.Called(ctx)
	return args.Get(0).(billing.Stats), args.Error(1)
}

type mockCallbackProcessor struct{ mock.Mock }

func (m *mockCallbackProcessor) ProcessCallback(ctx context.Context, payload []byte, signature string) (*appbilling.CallbackResult, error) {
	args := m.Called(ctx, payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appbilling.CallbackResult), args.Error(1)
}

func (m *mockCallbackProcessor) Reconcile(ctx context.Context, pendingID uuid.UUID) (*appbilling.CallbackResult, error) {
	args := m.Called(ctx, pendingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appbilling.CallbackResult), args.Error(1)
}

// testActor is attached to every request routed through newTestEngine
var testActor = &auth.Actor{ID: "staff-17", Name: "Ama Mensah"}

func newTestEngine() *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ActorKey, testActor)
		c.Next()
	})
	return r
}

func newTestInvoice(t *testing.T) *billing.Invoice {
	t.Helper()
	inv, err := billing.NewInvoice(billing.NewInvoiceInput{
		InvoiceNumber: "INV-20261016-0001",
		PatientID:     uuid.New(),
		PatientName:   "Kofi Boateng",
		LineItems: []billing.LineItem{
			{Description: "Consultation", Quantity: 1, UnitPrice: decimal.NewFromInt(150)},
			{Description: "Malaria test", ServiceCode: "LAB-MAL", Quantity: 2, UnitPrice: decimal.NewFromInt(25)},
		},
	})
	require.NoError(t, err)
	return inv
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Field   string `json:"field"`
		Guard   string `json:"guard"`
	} `json:"error"`
	Meta *struct {
		Total      int64 `json:"total"`
		Page       int   `json:"page"`
		PageSize   int   `json:"page_size"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}
