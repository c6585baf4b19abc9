package bills

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pohlai88/ledgercore/internal/platform/db"
	"github.com/pohlai88/ledgercore/internal/shared"
)

// Repository encapsulates DB operations for bills.
type Repository interface {
	Get(ctx context.Context, scope shared.Scope, id int64) (Bill, error)
	List(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Bill, int, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a document transaction.
type TxRepository interface {
	SupplierExists(ctx context.Context, scope shared.Scope, supplierID int64) (bool, error)
	InsertBill(ctx context.Context, scope shared.Scope, in CreateInput, subtotal, tax float64, now time.Time) (Bill, error)
	InsertLine(ctx context.Context, billID int64, lineNumber int, line LineInput) (Line, error)
	MarkPosted(ctx context.Context, scope shared.Scope, id, journalID, postedBy int64, now time.Time) (Bill, error)
	ApplyPayment(ctx context.Context, scope shared.Scope, id int64, amount float64) (Bill, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const billColumns = `id, tenant_id, company_id, supplier_id, bill_number, bill_date,
due_date, currency, exchange_rate, subtotal, tax_amount, total_amount, paid_amount,
balance_amount, status, journal_id, posted_by, posted_at, created_by, created_at, updated_at`

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.TenantID, &b.CompanyID, &b.SupplierID, &b.BillNumber,
		&b.BillDate, &b.DueDate, &b.Currency, &b.ExchangeRate, &b.Subtotal,
		&b.TaxAmount, &b.TotalAmount, &b.PaidAmount, &b.BalanceAmount, &b.Status,
		&b.JournalID, &b.PostedBy, &b.PostedAt, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (r *repository) Get(ctx context.Context, scope shared.Scope, id int64) (Bill, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+billColumns+` FROM bills
WHERE tenant_id=$1 AND company_id=$2 AND id=$3`,
		scope.TenantID, scope.CompanyID, id)
	b, err := scanBill(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, shared.NewError(shared.CodeBillNotFound,
				fmt.Sprintf("bill %d not found", id)).WithDetail("billId", id)
		}
		return Bill{}, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, bill_id, line_number, description, quantity, unit_price, line_amount,
tax_code, tax_rate, tax_amount, expense_account_id
FROM bill_lines WHERE bill_id=$1 ORDER BY line_number`, id)
	if err != nil {
		return Bill{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.BillID, &line.LineNumber, &line.Description,
			&line.Quantity, &line.UnitPrice, &line.LineAmount, &line.TaxCode,
			&line.TaxRate, &line.TaxAmount, &line.ExpenseAccountID); err != nil {
			return Bill{}, err
		}
		b.Lines = append(b.Lines, line)
	}
	return b, rows.Err()
}

func (r *repository) List(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Bill, int, error) {
	where := `WHERE tenant_id=$1 AND company_id=$2`
	args := []any{scope.TenantID, scope.CompanyID}
	if filter.SupplierID > 0 {
		args = append(args, filter.SupplierID)
		where += fmt.Sprintf(" AND supplier_id=$%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if !filter.FromDate.IsZero() {
		args = append(args, filter.FromDate)
		where += fmt.Sprintf(" AND bill_date >= $%d", len(args))
	}
	if !filter.ToDate.IsZero() {
		args = append(args, filter.ToDate)
		where += fmt.Sprintf(" AND bill_date <= $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bills `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT `+billColumns+` FROM bills %s ORDER BY bill_date DESC, id DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) SupplierExists(ctx context.Context, scope shared.Scope, supplierID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM suppliers WHERE tenant_id=$1 AND company_id=$2 AND id=$3)`,
		scope.TenantID, scope.CompanyID, supplierID).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertBill(ctx context.Context, scope shared.Scope, in CreateInput, subtotal, tax float64, now time.Time) (Bill, error) {
	rate := in.ExchangeRate
	if rate == 0 {
		rate = 1
	}
	total := subtotal + tax
	row := r.tx.QueryRow(ctx, `
INSERT INTO bills (tenant_id, company_id, supplier_id, bill_number, bill_date,
	due_date, currency, exchange_rate, subtotal, tax_amount, total_amount, paid_amount,
	balance_amount, status, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $11, $12, $13)
RETURNING `+billColumns,
		scope.TenantID, scope.CompanyID, in.SupplierID, in.BillNumber, in.BillDate,
		in.DueDate, in.Currency, rate, money(subtotal), money(tax), money(total),
		StatusDraft, scope.UserID)
	b, err := scanBill(row)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_bills_number") {
			return Bill{}, shared.NewError(shared.CodeDuplicateBillNumber,
				fmt.Sprintf("bill number %q already exists", in.BillNumber)).
				WithDetail("billNumber", in.BillNumber)
		}
		return Bill{}, shared.NewError(shared.CodeInsertFailed, "failed to insert bill header")
	}
	return b, nil
}

func (r *txRepository) InsertLine(ctx context.Context, billID int64, lineNumber int, line LineInput) (Line, error) {
	var out Line
	err := r.tx.QueryRow(ctx, `
INSERT INTO bill_lines (bill_id, line_number, description, quantity, unit_price,
	line_amount, tax_code, tax_rate, tax_amount, expense_account_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, bill_id, line_number, description, quantity, unit_price, line_amount,
tax_code, tax_rate, tax_amount, expense_account_id`,
		billID, lineNumber, line.Description, line.Quantity, line.UnitPrice,
		money(line.LineAmount), line.TaxCode, line.TaxRate, money(line.TaxAmount), line.ExpenseAccountID).
		Scan(&out.ID, &out.BillID, &out.LineNumber, &out.Description, &out.Quantity,
			&out.UnitPrice, &out.LineAmount, &out.TaxCode, &out.TaxRate, &out.TaxAmount, &out.ExpenseAccountID)
	return out, err
}

func (r *txRepository) MarkPosted(ctx context.Context, scope shared.Scope, id, journalID, postedBy int64, now time.Time) (Bill, error) {
	row := r.tx.QueryRow(ctx, `
UPDATE bills SET journal_id=$4, status=$5, posted_by=$6, posted_at=$7, updated_at=NOW()
WHERE tenant_id=$1 AND company_id=$2 AND id=$3 AND journal_id IS NULL AND status=$8
RETURNING `+billColumns,
		scope.TenantID, scope.CompanyID, id, journalID, StatusPosted, postedBy, now, StatusDraft)
	b, err := scanBill(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, shared.NewError(shared.CodeBillNotFound,
				fmt.Sprintf("postable bill %d not found", id)).WithDetail("billId", id)
		}
		return Bill{}, err
	}
	return b, nil
}

func (r *txRepository) ApplyPayment(ctx context.Context, scope shared.Scope, id int64, amount float64) (Bill, error) {
	row := r.tx.QueryRow(ctx, `
UPDATE bills SET
	paid_amount = paid_amount + $4,
	balance_amount = balance_amount - $4,
	status = CASE WHEN balance_amount - $4 < 0.005 THEN $5::text ELSE status END,
	updated_at = NOW()
WHERE tenant_id=$1 AND company_id=$2 AND id=$3 AND balance_amount >= $4
RETURNING `+billColumns,
		scope.TenantID, scope.CompanyID, id, money(amount), StatusPaid)
	b, err := scanBill(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, shared.NewError(shared.CodeValidationFailed,
				"payment exceeds bill balance or bill not found").
				WithDetail("billId", id).WithDetail("amount", amount)
		}
		return Bill{}, err
	}
	return b, nil
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
