// Package encounter notifies the EHR when a reversed invoice needs its
// clinical encounter reopened for re-billing.
package encounter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/infrastructure/config"
)

const defaultTimeout = 10 * time.Second

// reopenRequest is the body posted to the EHR
type reopenRequest struct {
	EncounterID string `json:"encounter_id"`
	InvoiceID   string `json:"invoice_id"`
	Reason      string `json:"reason"`
}

// HTTPReopener posts reopen requests to the EHR's encounter endpoint
type HTTPReopener struct {
	url        string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPReopener creates an HTTP reopener. The endpoint may contain
// {encounter_id}, which is substituted per call.
func NewHTTPReopener(cfg config.EncounterConfig, logger *zap.Logger) *HTTPReopener {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPReopener{
		url:   cfg.ReopenURL,
		token: cfg.Token,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// ReopenEncounter implements billing.EncounterReopener
func (r *HTTPReopener) ReopenEncounter(ctx context.Context, encounterID uuid.UUID, invoiceID uuid.UUID, reason string) error {
	body, err := json.Marshal(reopenRequest{
		EncounterID: encounterID.String(),
		InvoiceID:   invoiceID.String(),
		Reason:      reason,
	})
	if err != nil {
		return fmt.Errorf("encode reopen request: %w", err)
	}

	endpoint := strings.ReplaceAll(r.url, "{encounter_id}", encounterID.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build reopen request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "reopen-"+invoiceID.String())
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reopen encounter %s: %w", encounterID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		r.logger.Info("Encounter reopened",
			zap.String("encounter_id", encounterID.String()),
			zap.String("invoice_id", invoiceID.String()))
		return nil
	}
	// 409 means the EHR already has it open
	if resp.StatusCode == http.StatusConflict {
		r.logger.Info("Encounter already open",
			zap.String("encounter_id", encounterID.String()))
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("reopen encounter %s: EHR returned %d: %s",
		encounterID, resp.StatusCode, strings.TrimSpace(string(snippet)))
}

// LogReopener only logs. It is used when no EHR endpoint is configured.
type LogReopener struct {
	logger *zap.Logger
}

// NewLogReopener creates a log-only reopener
func NewLogReopener(logger *zap.Logger) *LogReopener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogReopener{logger: logger}
}

// ReopenEncounter implements billing.EncounterReopener
func (r *LogReopener) ReopenEncounter(_ context.Context, encounterID uuid.UUID, invoiceID uuid.UUID, reason string) error {
	r.logger.Warn("Encounter reopen requested but no EHR endpoint configured",
		zap.String("encounter_id", encounterID.String()),
		zap.String("invoice_id", invoiceID.String()),
		zap.String("reason", reason))
	return nil
}

// New picks the HTTP reopener when a URL is configured
func New(cfg config.EncounterConfig, logger *zap.Logger) billing.EncounterReopener {
	if cfg.ReopenURL == "" {
		return NewLogReopener(logger)
	}
	return NewHTTPReopener(cfg, logger)
}

var (
	_ billing.EncounterReopener = (*HTTPReopener)(nil)
	_ billing.EncounterReopener = (*LogReopener)(nil)
)
