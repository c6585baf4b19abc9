package shared

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a typed rejection reason surfaced to callers.
type ErrorCode string

const (
	CodeDuplicateRequest       ErrorCode = "DUPLICATE_REQUEST"
	CodeUnbalancedJournal      ErrorCode = "UNBALANCED_JOURNAL"
	CodeDuplicateJournalNumber ErrorCode = "DUPLICATE_JOURNAL_NUMBER"
	CodeDuplicateInvoiceNumber ErrorCode = "DUPLICATE_INVOICE_NUMBER"
	CodeDuplicateBillNumber    ErrorCode = "DUPLICATE_BILL_NUMBER"
	CodeInsertFailed           ErrorCode = "INSERT_FAILED"
	CodeLineInsertFailed       ErrorCode = "LINE_INSERT_FAILED"
	CodeJournalNotFound        ErrorCode = "JOURNAL_NOT_FOUND"
	CodeInvoiceNotFound        ErrorCode = "INVOICE_NOT_FOUND"
	CodeBillNotFound           ErrorCode = "BILL_NOT_FOUND"
	CodePaymentNotFound        ErrorCode = "PAYMENT_NOT_FOUND"
	CodeCustomerNotFound       ErrorCode = "CUSTOMER_NOT_FOUND"
	CodeSupplierNotFound       ErrorCode = "SUPPLIER_NOT_FOUND"
	CodeTaxCodeNotFound        ErrorCode = "TAX_CODE_NOT_FOUND"
	CodeAccountNotFound        ErrorCode = "ACCOUNT_NOT_FOUND"
	CodeValidationFailed       ErrorCode = "VALIDATION_FAILED"
)

// Error is the typed failure raised by every core operation. All errors
// propagate to the immediate caller without internal retry; Details carries
// diagnostic values (line index, balance difference, prior response).
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches two Errors by code so callers can use errors.Is with a
// bare NewError(code, "") sentinel.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// NewError constructs a typed error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithDetail attaches a diagnostic value and returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// CodeOf extracts the error code, or empty when err is not a typed Error.
func CodeOf(err error) ErrorCode {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Code
	}
	return ""
}
