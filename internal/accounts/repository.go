package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pohlai88/ledgercore/internal/platform/db"
	"github.com/pohlai88/ledgercore/internal/shared"
)

// Repository encapsulates DB operations for the chart of accounts.
type Repository interface {
	ListActive(ctx context.Context, scope shared.Scope) ([]Account, error)
	GetByIDs(ctx context.Context, scope shared.Scope, ids []int64) ([]Account, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction. Settings
// access lives here so the default-account fallback commits atomically.
type TxRepository interface {
	GetSetting(ctx context.Context, scope shared.Scope, key string) (int64, bool, error)
	SaveSetting(ctx context.Context, scope shared.Scope, key string, accountID int64) error
	FindByCodeOrName(ctx context.Context, scope shared.Scope, code, namePattern string) (*Account, error)
	InsertAccount(ctx context.Context, scope shared.Scope, in CreateAccountInput, level int) (Account, error)
	GetAccount(ctx context.Context, scope shared.Scope, id int64) (*Account, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const accountColumns = `id, tenant_id, company_id, code, name, account_type, currency, is_active, level, parent_id, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.TenantID, &a.CompanyID, &a.Code, &a.Name, &a.Type,
		&a.Currency, &a.IsActive, &a.Level, &a.ParentID, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *repository) ListActive(ctx context.Context, scope shared.Scope) ([]Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts
WHERE tenant_id=$1 AND company_id=$2 AND is_active ORDER BY code`,
		scope.TenantID, scope.CompanyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) GetByIDs(ctx context.Context, scope shared.Scope, ids []int64) ([]Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts
WHERE tenant_id=$1 AND company_id=$2 AND id = ANY($3)`,
		scope.TenantID, scope.CompanyID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetSetting(ctx context.Context, scope shared.Scope, key string) (int64, bool, error) {
	var accountID int64
	err := r.tx.QueryRow(ctx,
		`SELECT account_id FROM company_settings
WHERE tenant_id=$1 AND company_id=$2 AND key=$3`,
		scope.TenantID, scope.CompanyID, key).Scan(&accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return accountID, true, nil
}

func (r *txRepository) SaveSetting(ctx context.Context, scope shared.Scope, key string, accountID int64) error {
	// ON CONFLICT keeps the first writer's value, making concurrent
	// fallback creation converge on one account per company.
	_, err := r.tx.Exec(ctx, `
INSERT INTO company_settings (tenant_id, company_id, key, account_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (tenant_id, company_id, key) DO NOTHING`,
		scope.TenantID, scope.CompanyID, key, accountID)
	return err
}

func (r *txRepository) FindByCodeOrName(ctx context.Context, scope shared.Scope, code, namePattern string) (*Account, error) {
	row := r.tx.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts
WHERE tenant_id=$1 AND company_id=$2 AND is_active AND (code=$3 OR name ILIKE $4)
ORDER BY code LIMIT 1`,
		scope.TenantID, scope.CompanyID, code, namePattern)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *txRepository) InsertAccount(ctx context.Context, scope shared.Scope, in CreateAccountInput, level int) (Account, error) {
	row := r.tx.QueryRow(ctx, `
INSERT INTO accounts (tenant_id, company_id, code, name, account_type, currency, is_active, level, parent_id)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $8)
RETURNING `+accountColumns,
		scope.TenantID, scope.CompanyID, in.Code, in.Name, in.Type, in.Currency, level, in.ParentID)
	return scanAccount(row)
}

func (r *txRepository) GetAccount(ctx context.Context, scope shared.Scope, id int64) (*Account, error) {
	row := r.tx.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts
WHERE tenant_id=$1 AND company_id=$2 AND id=$3`,
		scope.TenantID, scope.CompanyID, id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}
