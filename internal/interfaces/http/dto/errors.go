package dto

import (
	"net/http"
	"strings"
)

// Transport-level error codes. Domain errors carry their own codes; these
// cover failures that never reach a domain service.
const (
	// ErrCodeBadRequest is used for malformed or unparseable requests
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeInternal is used for unexpected server-side failures
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeUnauthorized is used when authentication is missing or invalid
	ErrCodeUnauthorized = "UNAUTHORIZED"
	// ErrCodeTokenExpired is used when the auth token has expired
	ErrCodeTokenExpired = "TOKEN_EXPIRED"
	// ErrCodeForbidden is used when the caller lacks permission
	ErrCodeForbidden = "FORBIDDEN"
	// ErrCodeTenantSuspended is used when the resolved tenant is not active
	ErrCodeTenantSuspended = "TENANT_SUSPENDED"
)

// ErrorCodeHTTPStatus maps stable error codes to HTTP status codes.
// TENANT_MISMATCH intentionally maps to 403 rather than 404: the resource
// exists, the caller's credentials just do not reach it, and the generic
// message never says who does own it.
var ErrorCodeHTTPStatus = map[string]int{
	// Transport errors
	ErrCodeBadRequest: http.StatusBadRequest,
	ErrCodeInternal:   http.StatusInternalServerError,

	// Auth and tenancy
	ErrCodeUnauthorized:    http.StatusUnauthorized,
	ErrCodeTokenExpired:    http.StatusUnauthorized,
	ErrCodeForbidden:       http.StatusForbidden,
	ErrCodeTenantSuspended: http.StatusForbidden,
	"TENANT_UNBOUND":       http.StatusUnauthorized,
	"TENANT_MISMATCH":      http.StatusForbidden,

	// Missing resources
	"NOT_FOUND":          http.StatusNotFound,
	"BUDGET_NOT_FOUND":   http.StatusNotFound,
	"ORG_UNIT_NOT_FOUND": http.StatusNotFound,
	"TENANT_NOT_FOUND":   http.StatusNotFound,
	"ENTRY_NOT_FOUND":    http.StatusNotFound,

	// Conflicts
	"ALREADY_EXISTS":       http.StatusConflict,
	"DUPLICATE_BUDGET":     http.StatusConflict,
	"CODE_EXISTS":          http.StatusConflict,
	"DOMAIN_EXISTS":        http.StatusConflict,
	"CONCURRENCY_CONFLICT": http.StatusConflict,
	"ALREADY_SUSPENDED":    http.StatusConflict,

	// Business rule violations
	"INSUFFICIENT_FUNDS":   http.StatusUnprocessableEntity,
	"FISCAL_YEAR_MISMATCH": http.StatusUnprocessableEntity,
	"DEDUCTION_MISMATCH":   http.StatusUnprocessableEntity,
	"INVALID_STATE":        http.StatusUnprocessableEntity,
	"HAS_CHILDREN":         http.StatusUnprocessableEntity,
	"HAS_ALLOCATIONS":      http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code. Validation
// codes (INVALID_*) map to 422; anything unrecognized is a 500 so that a
// missing mapping surfaces loudly instead of masquerading as a client error.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	if strings.HasPrefix(code, "INVALID_") {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
