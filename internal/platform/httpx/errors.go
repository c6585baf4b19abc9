package httpx

import (
	"errors"
	"net/http"

	"github.com/pohlai88/ledgercore/internal/shared"
)

// RespondError maps typed core errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var typed *shared.Error
	if !errors.As(err, &typed) {
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	JSON(w, statusFor(typed.Code), ProblemDetail{
		Title:   string(typed.Code),
		Status:  statusFor(typed.Code),
		Detail:  typed.Message,
		Code:    string(typed.Code),
		Details: typed.Details,
	})
}

func statusFor(code shared.ErrorCode) int {
	switch code {
	case shared.CodeJournalNotFound,
		shared.CodeInvoiceNotFound,
		shared.CodeBillNotFound,
		shared.CodePaymentNotFound,
		shared.CodeCustomerNotFound,
		shared.CodeSupplierNotFound,
		shared.CodeTaxCodeNotFound,
		shared.CodeAccountNotFound:
		return http.StatusNotFound
	case shared.CodeDuplicateRequest,
		shared.CodeDuplicateJournalNumber,
		shared.CodeDuplicateInvoiceNumber,
		shared.CodeDuplicateBillNumber:
		return http.StatusConflict
	case shared.CodeUnbalancedJournal, shared.CodeValidationFailed:
		return http.StatusUnprocessableEntity
	case shared.CodeInsertFailed, shared.CodeLineInsertFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
