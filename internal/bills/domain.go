package bills

import (
	"time"

	"github.com/pohlai88/ledgercore/internal/shared"
)

// Status enumerates bill statuses.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPosted    Status = "posted"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// Bill is a supplier sub-ledger document.
type Bill struct {
	ID            int64      `json:"id"`
	TenantID      int64      `json:"tenantId"`
	CompanyID     int64      `json:"companyId"`
	SupplierID    int64      `json:"supplierId"`
	BillNumber    string     `json:"billNumber"`
	BillDate      time.Time  `json:"billDate"`
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

// Line is a bill line charged against an expense account.
type Line struct {
	ID               int64   `json:"id"`
	BillID           int64   `json:"billId"`
	LineNumber       int     `json:"lineNumber"`
	Description      string  `json:"description"`
	Quantity         float64 `json:"quantity"`
	UnitPrice        float64 `json:"unitPrice"`
	LineAmount       float64 `json:"lineAmount"`
	TaxCode          string  `json:"taxCode,omitempty"`
	TaxRate          float64 `json:"taxRate"`
	TaxAmount        float64 `json:"taxAmount"`
	ExpenseAccountID int64   `json:"expenseAccountId"`
}

// LineInput describes one line of a create request.
type LineInput struct {
	Description      string  `json:"description" validate:"required"`
	Quantity         float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice        float64 `json:"unitPrice" validate:"gte=0"`
	LineAmount       float64 `json:"lineAmount" validate:"gte=0"`
	TaxCode          string  `json:"taxCode"`
	TaxRate          float64 `json:"taxRate" validate:"gte=0"`
	TaxAmount        float64 `json:"taxAmount" validate:"gte=0"`
	ExpenseAccountID int64   `json:"expenseAccountId" validate:"required"`
}

// CreateInput groups fields required to create a bill.
type CreateInput struct {
	SupplierID   int64       `json:"supplierId" validate:"required"`
	BillNumber   string      `json:"billNumber" validate:"required"`
	BillDate     time.Time   `json:"billDate" validate:"required"`
	DueDate      *time.Time  `json:"dueDate"`
	Currency     string      `json:"currency" validate:"required,len=3"`
	ExchangeRate float64     `json:"exchangeRate"`
	Lines        []LineInput `json:"lines" validate:"required,min=1,dive"`
}

// Validate checks structural rules before any row is written.
func (in CreateInput) Validate() error {
	if in.SupplierID == 0 {
		return shared.NewError(shared.CodeValidationFailed, "supplier required")
	}
	if in.BillNumber == "" {
		return shared.NewError(shared.CodeValidationFailed, "bill number required")
	}
	if len(in.Lines) == 0 {
		return shared.NewError(shared.CodeValidationFailed, "bill requires at least one line")
	}
	for idx, line := range in.Lines {
		if line.ExpenseAccountID == 0 {
			return shared.NewError(shared.CodeValidationFailed, "line missing expense account").
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

// ListFilter narrows bill listings.
type ListFilter struct {
	SupplierID int64
	Status     Status
	FromDate   time.Time
	ToDate     time.Time
	Limit      int
	Offset     int
}
