package journals

import (
	"math"
	"time"

	"github.com/pohlai88/ledgercore/internal/shared"
)

// BalanceTolerance is the maximum permitted difference between total
// debits and credits, matching 2dp monetary precision.
const BalanceTolerance = 0.01

// PostingLineInput describes one journal line of a posting request.
type PostingLineInput struct {
	AccountID   int64   `json:"accountId" validate:"required"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
	Description string  `json:"description"`
	Reference   string  `json:"reference"`
}

// PostingInput groups fields required to create a journal.
type PostingInput struct {
	JournalNumber  string             `json:"journalNumber" validate:"required"`
	JournalDate    time.Time          `json:"journalDate" validate:"required"`
	Currency       string             `json:"currency" validate:"required,len=3"`
	Status         Status             `json:"status,omitempty"`
	IdempotencyKey string             `json:"idempotencyKey,omitempty"`
	Lines          []PostingLineInput `json:"lines" validate:"required,min=2,dive"`
}

// Validate checks structural posting rules; the balance invariant is
// enforced separately so it can carry the computed difference.
func (in PostingInput) Validate() error {
	if in.JournalNumber == "" {
		return shared.NewError(shared.CodeValidationFailed, "journal number required")
	}
	if in.JournalDate.IsZero() {
		return shared.NewError(shared.CodeValidationFailed, "journal date required")
	}
	if in.Currency == "" {
		return shared.NewError(shared.CodeValidationFailed, "currency required")
	}
	if len(in.Lines) < 2 {
		return shared.NewError(shared.CodeValidationFailed, "journal requires at least two lines")
	}
	switch in.Status {
	case "", StatusDraft, StatusPosted:
	default:
		return shared.NewError(shared.CodeValidationFailed, "status must be draft or posted").
			WithDetail("status", string(in.Status))
	}
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return shared.NewError(shared.CodeValidationFailed, "line missing account").
				WithDetail("lineIndex", idx)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return shared.NewError(shared.CodeValidationFailed, "line amount cannot be negative").
				WithDetail("lineIndex", idx)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return shared.NewError(shared.CodeValidationFailed, "line cannot carry both debit and credit").
				WithDetail("lineIndex", idx)
		}
	}
	return nil
}

// Totals sums debits and credits over all lines.
func (in PostingInput) Totals() (debit, credit float64) {
	for _, line := range in.Lines {
		debit += line.Debit
		credit += line.Credit
	}
	return debit, credit
}

// Balanced reports whether totals agree within tolerance and the absolute
// difference when they do not.
func (in PostingInput) Balanced() (bool, float64) {
	debit, credit := in.Totals()
	diff := math.Abs(debit - credit)
	return diff <= BalanceTolerance, diff
}

// AccountIDs returns the distinct account ids referenced by the lines, in
// first-seen order.
func (in PostingInput) AccountIDs() []int64 {
	seen := make(map[int64]bool, len(in.Lines))
	out := make([]int64, 0, len(in.Lines))
	for _, line := range in.Lines {
		if !seen[line.AccountID] {
			seen[line.AccountID] = true
			out = append(out, line.AccountID)
		}
	}
	return out
}

// PostingResult is the response shape recorded against the idempotency key.
type PostingResult struct {
	ID            int64   `json:"id"`
	JournalNumber string  `json:"journalNumber"`
	Status        Status  `json:"status"`
	TotalDebit    float64 `json:"totalDebit"`
	TotalCredit   float64 `json:"totalCredit"`
}

// ListFilter narrows journal listings.
type ListFilter struct {
	Status   Status
	FromDate time.Time
	ToDate   time.Time
	Limit    int
	Offset   int
}
