package encounter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hospital/billing/internal/infrastructure/config"
)

func TestHTTPReopener_PostsRequest(t *testing.T) {
	encounterID := uuid.New()
	invoiceID := uuid.New()

	var got reopenRequest
	var gotPath, gotAuth, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("Idempotency-Key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	r := NewHTTPReopener(config.EncounterConfig{
		ReopenURL: srv.URL + "/encounters/{encounter_id}/reopen",
		Token:     "ehr-token",
	}, zap.NewNop())

	err := r.ReopenEncounter(context.Background(), encounterID, invoiceID, "wrong patient")
	require.NoError(t, err)

	assert.Equal(t, "/encounters/"+encounterID.String()+"/reopen", gotPath)
	assert.Equal(t, "Bearer ehr-token", gotAuth)
	assert.Equal(t, "reopen-"+invoiceID.String(), gotKey)
	assert.Equal(t, encounterID.String(), got.EncounterID)
	assert.Equal(t, invoiceID.String(), got.InvoiceID)
	assert.Equal(t, "wrong patient", got.Reason)
}

func TestHTTPReopener_ConflictIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	r := NewHTTPReopener(config.EncounterConfig{ReopenURL: srv.URL}, nil)
	assert.NoError(t, r.ReopenEncounter(context.Background(), uuid.New(), uuid.New(), "x"))
}

func TestHTTPReopener_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "encounter locked by coding", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	r := NewHTTPReopener(config.EncounterConfig{ReopenURL: srv.URL}, nil)
	err := r.ReopenEncounter(context.Background(), uuid.New(), uuid.New(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "encounter locked by coding")
}

func TestHTTPReopener_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	r := NewHTTPReopener(config.EncounterConfig{ReopenURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	err := r.ReopenEncounter(context.Background(), uuid.New(), uuid.New(), "x")
	assert.Error(t, err)
}

func TestNew_PicksImplementation(t *testing.T) {
	_, ok := New(config.EncounterConfig{}, nil).(*LogReopener)
	assert.True(t, ok)

	_, ok = New(config.EncounterConfig{ReopenURL: "http://ehr.local/reopen"}, nil).(*HTTPReopener)
	assert.True(t, ok)

	assert.NoError(t, NewLogReopener(nil).ReopenEncounter(context.Background(), uuid.New(), uuid.New(), "x"))
}
