package accounts

import "time"

// AccountType enumerates chart-of-accounts categories.
type AccountType string

const (
	TypeAsset     AccountType = "ASSET"
	TypeLiability AccountType = "LIABILITY"
	TypeEquity    AccountType = "EQUITY"
	TypeRevenue   AccountType = "REVENUE"
	TypeExpense   AccountType = "EXPENSE"
)

// Account models a chart-of-accounts node. Accounts form a tree via
// ParentID; the directory rejects cycles on create.
type Account struct {
	ID        int64       `json:"id"`
	TenantID  int64       `json:"tenantId"`
	CompanyID int64       `json:"companyId"`
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	Type      AccountType `json:"accountType"`
	Currency  string      `json:"currency"`
	IsActive  bool        `json:"isActive"`
	Level     int         `json:"level"`
	ParentID  *int64      `json:"parentId,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// DefaultKind names a per-company fallback account the directory can
// resolve or create on demand.
type DefaultKind string

const (
	DefaultReceivable DefaultKind = "receivable"
	DefaultPayable    DefaultKind = "payable"
)

// fallbackSpec describes the account created when neither a saved setting
// nor a code/name match exists for a default kind.
type fallbackSpec struct {
	SettingKey  string
	Code        string
	Name        string
	NamePattern string
	Type        AccountType
}

var fallbacks = map[DefaultKind]fallbackSpec{
	DefaultReceivable: {
		SettingKey:  "default_receivable_account",
		Code:        "1200",
		Name:        "Accounts Receivable",
		NamePattern: "%receivable%",
		Type:        TypeAsset,
	},
	DefaultPayable: {
		SettingKey:  "default_payable_account",
		Code:        "2100",
		Name:        "Accounts Payable",
		NamePattern: "%payable%",
		Type:        TypeLiability,
	},
}

// CreateAccountInput describes a new chart-of-accounts node.
type CreateAccountInput struct {
	Code     string      `json:"code" validate:"required"`
	Name     string      `json:"name" validate:"required"`
	Type     AccountType `json:"accountType" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	Currency string      `json:"currency" validate:"required,len=3"`
	ParentID *int64      `json:"parentId"`
}
