package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Period lifecycle errors (PERIOD_*)
	ErrorCodePeriodNotFound      ErrorCode = "PERIOD_NOT_FOUND"
	ErrorCodePeriodNotOpen       ErrorCode = "PERIOD_NOT_OPEN"
	ErrorCodePeriodNotClosed     ErrorCode = "PERIOD_NOT_CLOSED"
	ErrorCodePeriodHasSettled    ErrorCode = "PERIOD_HAS_SETTLED_COMMISSIONS"
	ErrorCodePeriodNotContiguous ErrorCode = "PERIOD_NOT_CONTIGUOUS"
	ErrorCodeNoOpenPeriod        ErrorCode = "PERIOD_NONE_OPEN"

	// Rate configuration errors (RATE_*)
	ErrorCodeRateNotConfigured ErrorCode = "RATE_NOT_CONFIGURED"
	ErrorCodeRateInvalid       ErrorCode = "RATE_INVALID"

	// Aggregation errors (AGG_*)
	ErrorCodeEnterpriseUnresolved ErrorCode = "ENTERPRISE_UNRESOLVED"

	// Concurrency errors (CONCURRENCY_*)
	ErrorCodeConcurrentClosure ErrorCode = "CONCURRENT_CLOSURE_CONFLICT"

	// Commission detail errors (COMMISSION_*)
	ErrorCodeCommissionNotFound ErrorCode = "COMMISSION_NOT_FOUND"

	// Internal errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches DomainErrors by code so sentinel instances keep working with
// errors.Is after WithDetail copies
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// WithDetail returns a copy of the error with an added detail field.
// The receiver is not mutated, so package-level sentinels stay clean.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{
		Err:     e.Err,
		Details: details,
		Code:    e.Code,
		Message: e.Message,
	}
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// GetErrorCode extracts the error code from an error, returns empty string
// if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// IsLifecycleError checks if an error is a period lifecycle violation
func IsLifecycleError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodePeriodNotOpen ||
		code == ErrorCodePeriodNotClosed ||
		code == ErrorCodePeriodHasSettled ||
		code == ErrorCodePeriodNotContiguous
}

// IsEnterpriseScoped checks if an error affects a single enterprise's
// aggregation rather than the whole closure. Enterprise-scoped errors are
// reported as warnings; everything else aborts the operation.
func IsEnterpriseScoped(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeRateNotConfigured ||
		code == ErrorCodeEnterpriseUnresolved
}

// Structured error instances
var (
	ErrPeriodNotFound      = NewDomainError(ErrorCodePeriodNotFound, "billing period not found")
	ErrPeriodNotOpen       = NewDomainError(ErrorCodePeriodNotOpen, "billing period is not open")
	ErrPeriodNotClosed     = NewDomainError(ErrorCodePeriodNotClosed, "billing period is not closed")
	ErrPeriodHasSettled    = NewDomainError(ErrorCodePeriodHasSettled, "billing period has settled commissions")
	ErrPeriodNotContiguous = NewDomainError(ErrorCodePeriodNotContiguous, "new period must start where the previous period ends")
	ErrNoOpenPeriod        = NewDomainError(ErrorCodeNoOpenPeriod, "no billing period is currently open")

	ErrRateNotConfigured = NewDomainError(ErrorCodeRateNotConfigured, "no commission rate configured")
	ErrRateInvalid       = NewDomainError(ErrorCodeRateInvalid, "commission rate must be between 0 and 100")

	ErrEnterpriseUnresolved = NewDomainError(ErrorCodeEnterpriseUnresolved, "trip has no resolvable enterprise")

	ErrConcurrentClosure = NewDomainError(ErrorCodeConcurrentClosure, "period was modified by a concurrent operation")

	ErrCommissionNotFound = NewDomainError(ErrorCodeCommissionNotFound, "commission detail not found")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal error")
	ErrDatabaseError = NewDomainError(ErrorCodeDatabaseError, "database error")
)
