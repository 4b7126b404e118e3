package dto

import "net/http"

// Error code constants
// Format: ERR_<CATEGORY>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	// ErrCodeValidation is used for malformed input, including bad line items
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for requests that could not be parsed at all
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodePayloadTooLarge is used when a body exceeds the accepted size
	ErrCodePayloadTooLarge = "ERR_PAYLOAD_TOO_LARGE"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Billing error codes
const (
	// ErrCodeInvalidTransition is used when the invoice state machine refuses an event
	ErrCodeInvalidTransition = "ERR_INVALID_TRANSITION"
	// ErrCodeUnverifiedPayment is used when a payment was not attested as received
	ErrCodeUnverifiedPayment = "ERR_UNVERIFIED_PAYMENT"
	// ErrCodeMissingReference is used when a channel reference is absent
	ErrCodeMissingReference = "ERR_MISSING_REFERENCE"
	// ErrCodeOverpayment is used when an amount exceeds balance plus tolerance
	ErrCodeOverpayment = "ERR_OVERPAYMENT"
	// ErrCodeDuplicateReference is used when a bank reference was already recorded
	ErrCodeDuplicateReference = "ERR_DUPLICATE_REFERENCE"
	// ErrCodeResourceBusy is used when the invoice is locked by another operation
	ErrCodeResourceBusy = "ERR_RESOURCE_BUSY"
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
)

// Gateway error codes
const (
	ErrCodeInvalidSignature   = "ERR_INVALID_SIGNATURE"
	ErrCodeGatewayFailure     = "ERR_GATEWAY_FAILURE"
	ErrCodeGatewayUnavailable = "ERR_GATEWAY_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodePayloadTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeInvalidTransition:  http.StatusConflict,
	ErrCodeUnverifiedPayment:  http.StatusUnprocessableEntity,
	ErrCodeMissingReference:   http.StatusBadRequest,
	ErrCodeOverpayment:        http.StatusUnprocessableEntity,
	ErrCodeDuplicateReference: http.StatusConflict,
	ErrCodeResourceBusy:       http.StatusLocked,
	ErrCodeNotFound:           http.StatusNotFound,

	ErrCodeInvalidSignature:   http.StatusBadRequest,
	ErrCodeGatewayFailure:     http.StatusBadGateway,
	ErrCodeGatewayUnavailable: http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"VALIDATION_ERROR":     ErrCodeValidation,
	"INVALID_INPUT":        ErrCodeValidation,
	"INVALID_TRANSITION":   ErrCodeInvalidTransition,
	"INVALID_STATE":        ErrCodeInvalidTransition,
	"UNVERIFIED_PAYMENT":   ErrCodeUnverifiedPayment,
	"MISSING_REFERENCE":    ErrCodeMissingReference,
	"OVERPAYMENT":          ErrCodeOverpayment,
	"DUPLICATE_REFERENCE":  ErrCodeDuplicateReference,
	"RESOURCE_BUSY":        ErrCodeResourceBusy,
	"CONCURRENCY_CONFLICT": ErrCodeResourceBusy,
	"NOT_FOUND":            ErrCodeNotFound,
	"UNAUTHORIZED":         ErrCodeUnauthorized,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format, or unknown, are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
