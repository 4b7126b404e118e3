package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// route binds one handler under the versioned API prefix
type route struct {
	method  string
	path    string
	handler gin.HandlerFunc
}

// apiRoutes lists the actor-authenticated billing API relative to /api/v1
func apiRoutes(h Handlers) []route {
	return []route{
		{http.MethodPost, "/invoices", h.Invoice.Create},
		{http.MethodGet, "/invoices", h.Invoice.List},
		{http.MethodGet, "/invoices/:id", h.Invoice.Get},
		{http.MethodPost, "/invoices/:id/send", h.Invoice.Send},
		{http.MethodGet, "/invoices/:id/payments", h.Invoice.ListPayments},
		{http.MethodGet, "/invoices/:id/corrections", h.Invoice.ListCorrections},

		{http.MethodPost, "/invoices/:id/payments", h.Payment.Record},
		{http.MethodPost, "/invoices/:id/payments/initiate", h.Payment.Initiate},

		{http.MethodPost, "/invoices/:id/reverse", h.Correction.Reverse},
		{http.MethodPost, "/invoices/:id/void", h.Correction.Void},
		{http.MethodPut, "/invoices/:id/payment-method", h.Correction.ChangePaymentMethod},
		{http.MethodPost, "/invoices/:id/cancel", h.Correction.Cancel},
		{http.MethodPost, "/invoices/:id/claim/reject", h.Correction.RejectClaim},

		{http.MethodPost, "/pending-payments/:id/reconcile", h.Webhook.Reconcile},
		{http.MethodGet, "/billing/stats", h.Stats.GetStats},
	}
}

func mount(g *gin.RouterGroup, routes []route) {
	for _, r := range routes {
		g.Handle(r.method, r.path, r.handler)
	}
}
