package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appbilling "github.com/hospital/billing/internal/application/billing"
	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/domain/shared"
	"github.com/hospital/billing/internal/infrastructure/logger"
	"github.com/hospital/billing/internal/infrastructure/telemetry"
	"github.com/hospital/billing/internal/interfaces/http/dto"
	"github.com/hospital/billing/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// actorName returns the ledger form of the current actor
func actorName(c *gin.Context) string {
	if a := middleware.GetActor(c); a != nil {
		return a.String()
	}
	return ""
}

// parseID reads the :id path parameter. It writes the error response itself
// and reports false when the id is not a UUID.
func (h *BaseHandler) parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		h.fieldError(c, param, "must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON binds the body and answers 400 with field details on failure
func (h *BaseHandler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.bindError(c, err)
		return false
	}
	return true
}

// bindQuery binds query parameters and answers 400 on failure
func (h *BaseHandler) bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		h.bindError(c, err)
		return false
	}
	return true
}

func (h *BaseHandler) bindError(c *gin.Context, err error) {
	if details := middleware.ValidationDetails(err); details != nil {
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
			"Request validation failed",
			middleware.GetRequestID(c),
			details,
		))
		return
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge, "Request body exceeds maximum allowed size")
		return
	}
	h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Request body is not valid JSON: "+err.Error())
}

func (h *BaseHandler) fieldError(c *gin.Context, field, reason string) {
	resp := errorBody(c, dto.ErrCodeValidation, field+": "+reason)
	resp.Error.Field = field
	c.JSON(http.StatusBadRequest, resp)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, errorBody(c, code, message))
}

// HandleError converts service errors to HTTP responses. Billing errors keep
// their field or guard so clients can point at the offending input.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var validationErr *billing.ValidationError
	if errors.As(err, &validationErr) {
		resp := errorBody(c, dto.ErrCodeValidation, validationErr.Error())
		resp.Error.Field = validationErr.Field
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	var transitionErr *billing.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		resp := errorBody(c, dto.ErrCodeInvalidTransition, transitionErr.Error())
		resp.Error.Guard = transitionErr.Guard
		c.JSON(http.StatusConflict, resp)
		return
	}

	var missingRefErr *billing.MissingReferenceError
	if errors.As(err, &missingRefErr) {
		resp := errorBody(c, dto.ErrCodeMissingReference, missingRefErr.Error())
		resp.Error.Field = missingRefErr.Field
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	switch {
	case errors.Is(err, appbilling.ErrPaymentAlreadyApplied):
		h.Error(c, http.StatusConflict, dto.ErrCodeDuplicateReference, "Gateway transaction has already been recorded for this invoice")
		return
	case errors.Is(err, appbilling.ErrCallbackVerificationFailed):
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidSignature, "Callback signature verification failed")
		return
	case errors.Is(err, billing.ErrGatewayNotConfigured):
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeGatewayUnavailable, "Payment gateway is not configured")
		return
	case errors.Is(err, billing.ErrGatewayPaymentNotFound):
		h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, "Gateway payment not found")
		return
	case errors.Is(err, billing.ErrGatewayRequestFailed):
		h.logError(c, err)
		h.Error(c, http.StatusBadGateway, dto.ErrCodeGatewayFailure, "Payment gateway request failed")
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		c.JSON(dto.GetHTTPStatus(code), errorBody(c, code, domainErr.Message))
		return
	}

	h.logError(c, err)
	c.JSON(http.StatusInternalServerError, errorBody(c, dto.ErrCodeInternal, "An unexpected error occurred"))
}

// errorBody builds the error envelope, tagged with the request and trace
// ids so a failed call can be found in the logs and traces.
func errorBody(c *gin.Context, code, message string) dto.Response {
	resp := dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c))
	resp.Error.TraceID = telemetry.TraceID(c.Request.Context())
	return resp
}

func (h *BaseHandler) logError(c *gin.Context, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	_ = c.Error(err)
	logger.GetGinLogger(c).Error("Request failed", zap.Error(err))
}
