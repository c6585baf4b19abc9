package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pohlai88/ledgercore/internal/platform/db"
	"github.com/pohlai88/ledgercore/internal/shared"
)

// Repository encapsulates DB operations for payments, charge configs and
// advance accounts.
type Repository interface {
	GetActiveChargeConfig(ctx context.Context, scope shared.Scope, bankAccountID int64) (*BankChargeConfig, error)
	ListWithholdingConfigs(ctx context.Context, scope shared.Scope) ([]WithholdingTaxConfig, error)
	GetAdvanceAccount(ctx context.Context, scope shared.Scope, partyType PartyType, partyID int64, currency string) (AdvanceAccount, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within an allocation
// transaction.
type TxRepository interface {
	InsertPayment(ctx context.Context, scope shared.Scope, req AllocationRequest, now time.Time) (Payment, error)
	UpsertAdvanceAccount(ctx context.Context, scope shared.Scope, partyType PartyType, partyID int64, currency string, accountID int64) (AdvanceAccount, error)
	AdjustAdvanceBalance(ctx context.Context, scope shared.Scope, partyType PartyType, partyID int64, currency string, delta float64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetActiveChargeConfig(ctx context.Context, scope shared.Scope, bankAccountID int64) (*BankChargeConfig, error) {
	var cfg BankChargeConfig
	var tiers []byte
	err := r.pool.QueryRow(ctx, `
SELECT id, tenant_id, company_id, bank_account_id, charge_type, fixed_amount,
	percentage_rate, tiers, min_amount, max_amount, expense_account_id, is_active
FROM bank_charge_configs
WHERE tenant_id=$1 AND company_id=$2 AND bank_account_id=$3 AND is_active
ORDER BY id DESC LIMIT 1`,
		scope.TenantID, scope.CompanyID, bankAccountID).
		Scan(&cfg.ID, &cfg.TenantID, &cfg.CompanyID, &cfg.BankAccountID, &cfg.ChargeType,
			&cfg.FixedAmount, &cfg.PercentageRate, &tiers, &cfg.MinAmount, &cfg.MaxAmount,
			&cfg.ExpenseAccountID, &cfg.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(tiers) > 0 {
		if err := json.Unmarshal(tiers, &cfg.Tiers); err != nil {
			return nil, fmt.Errorf("decode charge tiers: %w", err)
		}
	}
	return &cfg, nil
}

func (r *repository) ListWithholdingConfigs(ctx context.Context, scope shared.Scope) ([]WithholdingTaxConfig, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, tenant_id, company_id, tax_code, tax_name, tax_rate, payable_account_id,
	expense_account_id, applicable_to, min_threshold, is_active
FROM withholding_tax_configs
WHERE tenant_id=$1 AND company_id=$2 AND is_active
ORDER BY tax_code`,
		scope.TenantID, scope.CompanyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WithholdingTaxConfig
	for rows.Next() {
		var cfg WithholdingTaxConfig
		if err := rows.Scan(&cfg.ID, &cfg.TenantID, &cfg.CompanyID, &cfg.TaxCode, &cfg.TaxName,
			&cfg.TaxRate, &cfg.PayableAccountID, &cfg.ExpenseAccountID, &cfg.ApplicableTo,
			&cfg.MinThreshold, &cfg.IsActive); err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

const advanceColumns = `id, tenant_id, company_id, account_id, party_type, party_id,
currency, balance_amount, created_at, updated_at`

func scanAdvance(row pgx.Row) (AdvanceAccount, error) {
	var a AdvanceAccount
	err := row.Scan(&a.ID, &a.TenantID, &a.CompanyID, &a.AccountID, &a.PartyType,
		&a.PartyID, &a.Currency, &a.BalanceAmount, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *repository) GetAdvanceAccount(ctx context.Context, scope shared.Scope, partyType PartyType, partyID int64, currency string) (AdvanceAccount, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+advanceColumns+` FROM advance_accounts
WHERE tenant_id=$1 AND company_id=$2 AND party_type=$3 AND party_id=$4 AND currency=$5`,
		scope.TenantID, scope.CompanyID, partyType, partyID, currency)
	a, err := scanAdvance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AdvanceAccount{}, shared.NewError(shared.CodePaymentNotFound,
				"advance account not found").
				WithDetail("partyType", string(partyType)).
				WithDetail("partyId", partyID)
		}
		return AdvanceAccount{}, err
	}
	return a, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertPayment(ctx context.Context, scope shared.Scope, req AllocationRequest, now time.Time) (Payment, error) {
	paymentDate := req.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = now
	}
	var p Payment
	err := r.tx.QueryRow(ctx, `
INSERT INTO payments (tenant_id, company_id, bank_account_id, party_type, party_id,
	amount, currency, status, payment_date, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, 'allocated', $8, $9)
RETURNING id, tenant_id, company_id, bank_account_id, party_type, party_id,
amount, currency, status, payment_date, created_by, created_at`,
		scope.TenantID, scope.CompanyID, req.BankAccountID, req.PartyType, req.PartyID,
		money(req.Amount), req.Currency, paymentDate, scope.UserID).
		Scan(&p.ID, &p.TenantID, &p.CompanyID, &p.BankAccountID, &p.PartyType, &p.PartyID,
			&p.Amount, &p.Currency, &p.Status, &p.PaymentDate, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		return Payment{}, shared.NewError(shared.CodeInsertFailed, "failed to insert payment")
	}
	return p, nil
}

// UpsertAdvanceAccount is an ON CONFLICT DO NOTHING insert followed by a
// select, so concurrent callers for the same key always converge on one
// row.
func (r *txRepository) UpsertAdvanceAccount(ctx context.Context, scope shared.Scope, partyType PartyType, partyID int64, currency string, accountID int64) (AdvanceAccount, error) {
	_, err := r.tx.Exec(ctx, `
INSERT INTO advance_accounts (tenant_id, company_id, account_id, party_type, party_id,
	currency, balance_amount)
VALUES ($1, $2, $3, $4, $5, $6, 0)
ON CONFLICT (tenant_id, company_id, party_type, party_id, currency) DO NOTHING`,
		scope.TenantID, scope.CompanyID, accountID, partyType, partyID, currency)
	if err != nil {
		return AdvanceAccount{}, err
	}
	row := r.tx.QueryRow(ctx,
		`SELECT `+advanceColumns+` FROM advance_accounts
WHERE tenant_id=$1 AND company_id=$2 AND party_type=$3 AND party_id=$4 AND currency=$5`,
		scope.TenantID, scope.CompanyID, partyType, partyID, currency)
	return scanAdvance(row)
}

// AdjustAdvanceBalance applies the delta with a store-side arithmetic
// update. The guard clause keeps the balance non-negative; a zero row
// count means the account is missing or the withdrawal overdraws it.
func (r *txRepository) AdjustAdvanceBalance(ctx context.Context, scope shared.Scope, partyType PartyType, partyID int64, currency string, delta float64) error {
	tag, err := r.tx.Exec(ctx, `
UPDATE advance_accounts SET
	balance_amount = balance_amount + $6,
	updated_at = NOW()
WHERE tenant_id=$1 AND company_id=$2 AND party_type=$3 AND party_id=$4 AND currency=$5
	AND balance_amount + $6 >= 0`,
		scope.TenantID, scope.CompanyID, partyType, partyID, currency, money(delta))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewError(shared.CodeValidationFailed,
			"advance balance adjustment rejected").
			WithDetail("partyId", partyID).
			WithDetail("delta", delta)
	}
	return nil
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
