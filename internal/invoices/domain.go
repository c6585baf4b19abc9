package invoices

import (
	"time"

	"github.com/pohlai88/ledgercore/internal/shared"
)

// Status enumerates invoice statuses. Posting is one-way; a posted
// invoice can only move forward to paid.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusPosted    Status = "posted"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// Invoice is a customer sub-ledger document. JournalID is set when the
// invoice is posted to the general ledger.
type Invoice struct {
	ID            int64      `json:"id"`
	TenantID      int64      `json:"tenantId"`
	CompanyID     int64      `json:"companyId"`
	CustomerID    int64      `json:"customerId"`
	InvoiceNumber string     `json:"invoiceNumber"`
	InvoiceDate   time.Time  `json:"invoiceDate"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	Currency      string     `json:"currency"`
	ExchangeRate  float64    `json:"exchangeRate"`
	Subtotal      float64    `json:"subtotal"`
	TaxAmount     float64    `json:"taxAmount"`
	TotalAmount   float64    `json:"totalAmount"`
	PaidAmount    float64    `json:"paidAmount"`
	BalanceAmount float64    `json:"balanceAmount"`
	Status        Status     `json:"status"`
	JournalID     *int64     `json:"journalId,omitempty"`
	PostedBy      *int64     `json:"postedBy,omitempty"`
	PostedAt      *time.Time `json:"postedAt,omitempty"`
	CreatedBy     int64      `json:"createdBy"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	Lines         []Line     `json:"lines,omitempty"`
}

// Line is an invoice line. LineAmount is quantity x unitPrice by
// convention and is supplied by the caller, not re-derived here.
type Line struct {
	ID          int64   `json:"id"`
	InvoiceID   int64   `json:"invoiceId"`
	LineNumber  int     `json:"lineNumber"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	LineAmount  float64 `json:"lineAmount"`
	TaxCode     string  `json:"taxCode,omitempty"`
	TaxRate     float64 `json:"taxRate"`
	TaxAmount   float64 `json:"taxAmount"`
	AccountID   int64   `json:"accountId"`
}

// LineInput describes one line of a create request.
type LineInput struct {
	Description string  `json:"description" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
	LineAmount  float64 `json:"lineAmount" validate:"gte=0"`
	TaxCode     string  `json:"taxCode"`
	TaxRate     float64 `json:"taxRate" validate:"gte=0"`
	TaxAmount   float64 `json:"taxAmount" validate:"gte=0"`
	AccountID   int64   `json:"accountId" validate:"required"`
}

// CreateInput groups fields required to create an invoice.
type CreateInput struct {
	CustomerID    int64       `json:"customerId" validate:"required"`
	InvoiceNumber string      `json:"invoiceNumber" validate:"required"`
	InvoiceDate   time.Time   `json:"invoiceDate" validate:"required"`
	DueDate       *time.Time  `json:"dueDate"`
	Currency      string      `json:"currency" validate:"required,len=3"`
	ExchangeRate  float64     `json:"exchangeRate"`
	Lines         []LineInput `json:"lines" validate:"required,min=1,dive"`
}

// Validate checks structural rules before any row is written.
func (in CreateInput) Validate() error {
	if in.CustomerID == 0 {
		return shared.NewError(shared.CodeValidationFailed, "customer required")
	}
	if in.InvoiceNumber == "" {
		return shared.NewError(shared.CodeValidationFailed, "invoice number required")
	}
	if len(in.Lines) == 0 {
		return shared.NewError(shared.CodeValidationFailed, "invoice requires at least one line")
	}
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return shared.NewError(shared.CodeValidationFailed, "line missing revenue account").
				WithDetail("lineIndex", idx)
		}
		if line.LineAmount < 0 || line.TaxAmount < 0 {
			return shared.NewError(shared.CodeValidationFailed, "line amounts cannot be negative").
				WithDetail("lineIndex", idx)
		}
	}
	return nil
}

// Totals derives header amounts from the lines.
func (in CreateInput) Totals() (subtotal, tax float64) {
	for _, line := range in.Lines {
		subtotal += line.LineAmount
		tax += line.TaxAmount
	}
	return subtotal, tax
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	CustomerID int64
	Status     Status
	FromDate   time.Time
	ToDate     time.Time
	Limit      int
	Offset     int
}
