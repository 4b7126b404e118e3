package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/hospital/billing/internal/domain/billing"
)

func TestStatsHandler_GetStats(t *testing.T) {
	t.Run("returns figures", func(t *testing.T) {
		provider := new(mockStatsProvider)
		h := NewStatsHandler(provider)
		r := newTestEngine()
		r.GET("/billing/stats", h.GetStats)

		provider.On("GetStats", mock.Anything).Return(billing.Stats{
			TotalBilled:      decimal.NewFromInt(1000),
			TotalCollected:   decimal.NewFromInt(750),
			TotalOutstanding: decimal.NewFromInt(250),
			CollectionRate:   decimal.NewFromInt(75),
			InvoiceCount:     4,
			ByStatus:         map[billing.InvoiceStatus]int{billing.InvoiceStatusPaid: 3, billing.InvoiceStatusSent: 1},
		}, nil)

		w := doJSON(r, http.MethodGet, "/billing/stats", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		env := decode[billing.Stats](t, w)
		assert.True(t, env.Data.TotalCollected.Equal(decimal.NewFromInt(750)))
		assert.True(t, env.Data.CollectionRate.Equal(decimal.NewFromInt(75)))
		assert.Equal(t, 3, env.Data.ByStatus[billing.InvoiceStatusPaid])
	})

	t.Run("store failure", func(t *testing.T) {
		provider := new(mockStatsProvider)
		h := NewStatsHandler(provider)
		r := newTestEngine()
		r.GET("/billing/stats", h.GetStats)
		provider.On("GetStats", mock.Anything).Return(billing.Stats{}, errors.New("replica unavailable"))

		w := doJSON(r, http.MethodGet, "/billing/stats", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
