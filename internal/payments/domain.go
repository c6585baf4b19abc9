package payments

import (
	"time"

	"github.com/pohlai88/ledgercore/internal/shared"
)

// PartyType distinguishes the counterparty of a payment.
type PartyType string

const (
	PartyCustomer PartyType = "CUSTOMER"
	PartySupplier PartyType = "SUPPLIER"
)

// ChargeType enumerates bank charge computation modes.
type ChargeType string

const (
	ChargeFixed      ChargeType = "FIXED"
	ChargePercentage ChargeType = "PERCENTAGE"
	ChargeTiered     ChargeType = "TIERED"
)

// Applicability restricts a withholding tax config to a party type.
type Applicability string

const (
	AppliesToSuppliers Applicability = "SUPPLIERS"
	AppliesToCustomers Applicability = "CUSTOMERS"
	AppliesToBoth      Applicability = "BOTH"
)

// ChargeTier is one rate bracket of a tiered bank charge. UpTo is the
// inclusive upper bound of the bracket; a zero UpTo marks the open-ended
// final bracket. Tiers are stored in ascending UpTo order.
type ChargeTier struct {
	UpTo float64 `json:"upTo"`
	Rate float64 `json:"rate"`
}

// BankChargeConfig describes how a bank account charges for outgoing
// payments.
type BankChargeConfig struct {
	ID               int64        `json:"id"`
	TenantID         int64        `json:"tenantId"`
	CompanyID        int64        `json:"companyId"`
	BankAccountID    int64        `json:"bankAccountId"`
	ChargeType       ChargeType   `json:"chargeType"`
	FixedAmount      float64      `json:"fixedAmount"`
	PercentageRate   float64      `json:"percentageRate"`
	Tiers            []ChargeTier `json:"tiers,omitempty"`
	MinAmount        float64      `json:"minAmount"`
	MaxAmount        float64      `json:"maxAmount"`
	ExpenseAccountID int64        `json:"expenseAccountId"`
	IsActive         bool         `json:"isActive"`
}

// WithholdingTaxConfig describes a tax withheld from payments and routed
// to a payable account.
type WithholdingTaxConfig struct {
	ID               int64         `json:"id"`
	TenantID         int64         `json:"tenantId"`
	CompanyID        int64         `json:"companyId"`
	TaxCode          string        `json:"taxCode"`
	TaxName          string        `json:"taxName"`
	TaxRate          float64       `json:"taxRate"`
	PayableAccountID int64         `json:"payableAccountId"`
	ExpenseAccountID int64         `json:"expenseAccountId"`
	ApplicableTo     Applicability `json:"applicableTo"`
	MinThreshold     float64       `json:"minThreshold"`
	IsActive         bool          `json:"isActive"`
}

// AppliesTo reports whether the config covers the given party type.
func (c WithholdingTaxConfig) AppliesTo(party PartyType) bool {
	switch c.ApplicableTo {
	case AppliesToBoth:
		return true
	case AppliesToSuppliers:
		return party == PartySupplier
	case AppliesToCustomers:
		return party == PartyCustomer
	default:
		return false
	}
}

// BankCharge is a computed charge line.
type BankCharge struct {
	Amount           float64 `json:"amount"`
	ExpenseAccountID int64   `json:"expenseAccountId"`
	Description      string  `json:"description"`
}

// WithholdingCharge is a computed withholding line.
type WithholdingCharge struct {
	TaxCode          string  `json:"taxCode"`
	TaxName          string  `json:"taxName"`
	Amount           float64 `json:"amount"`
	ExpenseAccountID int64   `json:"expenseAccountId"`
	PayableAccountID int64   `json:"payableAccountId"`
	Description      string  `json:"description"`
}

// AdvanceAccount tracks a per-party, per-currency overpayment balance.
// Unique per (tenant, company, partyType, partyId, currency); the
// balance never goes below zero.
type AdvanceAccount struct {
	ID            int64     `json:"id"`
	TenantID      int64     `json:"tenantId"`
	CompanyID     int64     `json:"companyId"`
	AccountID     int64     `json:"accountId"`
	PartyType     PartyType `json:"partyType"`
	PartyID       int64     `json:"partyId"`
	Currency      string    `json:"currency"`
	BalanceAmount float64   `json:"balanceAmount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Payment is a recorded outgoing or incoming payment.
type Payment struct {
	ID            int64     `json:"id"`
	TenantID      int64     `json:"tenantId"`
	CompanyID     int64     `json:"companyId"`
	BankAccountID int64     `json:"bankAccountId"`
	PartyType     PartyType `json:"partyType"`
	PartyID       int64     `json:"partyId"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	PaymentDate   time.Time `json:"paymentDate"`
	CreatedBy     int64     `json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
}

// AllocationRequest describes a payment to allocate against one
// sub-ledger document.
type AllocationRequest struct {
	BankAccountID    int64     `json:"bankAccountId" validate:"required"`
	PartyType        PartyType `json:"partyType" validate:"required,oneof=CUSTOMER SUPPLIER"`
	PartyID          int64     `json:"partyId" validate:"required"`
	Currency         string    `json:"currency" validate:"required,len=3"`
	Amount           float64   `json:"amount" validate:"required,gt=0"`
	DocumentType     string    `json:"documentType" validate:"required,oneof=invoice bill"`
	DocumentID       int64     `json:"documentId" validate:"required"`
	AdvanceAccountID int64     `json:"advanceAccountId"`
	PaymentDate      time.Time `json:"paymentDate"`
}

// Validate checks structural rules.
func (in AllocationRequest) Validate() error {
	if in.Amount <= 0 {
		return shared.NewError(shared.CodeValidationFailed, "payment amount must be positive")
	}
	if in.PartyType != PartyCustomer && in.PartyType != PartySupplier {
		return shared.NewError(shared.CodeValidationFailed, "party type must be CUSTOMER or SUPPLIER")
	}
	if in.DocumentType != "invoice" && in.DocumentType != "bill" {
		return shared.NewError(shared.CodeValidationFailed, "document type must be invoice or bill")
	}
	if in.DocumentID == 0 {
		return shared.NewError(shared.CodeValidationFailed, "document required")
	}
	return nil
}

// AllocationResult summarises the outcome of an allocation.
type AllocationResult struct {
	PaymentID     int64               `json:"paymentId"`
	GrossAmount   float64             `json:"grossAmount"`
	NetAmount     float64             `json:"netAmount"`
	AppliedAmount float64             `json:"appliedAmount"`
	AdvanceAmount float64             `json:"advanceAmount"`
	BankCharge    *BankCharge         `json:"bankCharge,omitempty"`
	Withholding   []WithholdingCharge `json:"withholding,omitempty"`
}
