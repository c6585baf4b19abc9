package journals

import "time"

// Status enumerates journal lifecycle values. Reversal records exist in the
// schema but no transition produces them here; posting is one-way.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPosted   Status = "posted"
	StatusReversed Status = "reversed"
)

// Journal is a balanced double-entry record. Header fields are immutable
// after creation; only Status may move, draft to posted.
type Journal struct {
	ID            int64      `json:"id"`
	TenantID      int64      `json:"tenantId"`
	CompanyID     int64      `json:"companyId"`
	JournalNumber string     `json:"journalNumber"`
	JournalDate   time.Time  `json:"journalDate"`
	Currency      string     `json:"currency"`
	TotalDebit    float64    `json:"totalDebit"`
	TotalCredit   float64    `json:"totalCredit"`
	Status        Status     `json:"status"`
	CreatedBy     int64      `json:"createdBy"`
	PostedBy      *int64     `json:"postedBy,omitempty"`
	PostedAt      *time.Time `json:"postedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	Lines         []Line     `json:"lines,omitempty"`
}

// Line stores a debit or credit amount against one account. Lines are owned
// exclusively by their journal and created atomically with the header.
type Line struct {
	ID          int64   `json:"id"`
	JournalID   int64   `json:"journalId"`
	AccountID   int64   `json:"accountId"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
	Description string  `json:"description,omitempty"`
	Reference   string  `json:"reference,omitempty"`
}
