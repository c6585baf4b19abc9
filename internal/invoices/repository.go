package invoices

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

// Repository encapsulates DB operations for invoices.
type Repository interface {
	Get(ctx context.Context, scope shared.Scope, id int64) (Invoice, error)
	List(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Invoice, int, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a document transaction.
type TxRepository interface {
	CustomerExists(ctx context.Context, scope shared.Scope, customerID int64) (bool, error)
	TaxCodeExists(ctx context.Context, scope shared.Scope, code string) (bool, error)
	InsertInvoice(ctx context.Context, scope shared.Scope, in CreateInput, subtotal, tax float64, now time.Time) (Invoice, error)
	InsertLine(ctx context.Context, invoiceID int64, lineNumber int, line LineInput) (Line, error)
	MarkPosted(ctx context.Context, scope shared.Scope, id, journalID, postedBy int64, now time.Time) (Invoice, error)
	ApplyPayment(ctx context.Context, scope shared.Scope, id int64, amount float64) (Invoice, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const invoiceColumns = `id, tenant_id, company_id, customer_id, invoice_number, invoice_date,
due_date, currency, exchange_rate, subtotal, tax_amount, total_amount, paid_amount,
balance_amount, status, journal_id, posted_by, posted_at, created_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.TenantID, &inv.CompanyID, &inv.CustomerID, &inv.InvoiceNumber,
		&inv.InvoiceDate, &inv.DueDate, &inv.Currency, &inv.ExchangeRate, &inv.Subtotal,
		&inv.TaxAmount, &inv.TotalAmount, &inv.PaidAmount, &inv.BalanceAmount, &inv.Status,
		&inv.JournalID, &inv.PostedBy, &inv.PostedAt, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func (r *repository) Get(ctx context.Context, scope shared.Scope, id int64) (Invoice, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
WHERE tenant_id=$1 AND company_id=$2 AND id=$3`,
		scope.TenantID, scope.CompanyID, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, shared.NewError(shared.CodeInvoiceNotFound,
				fmt.Sprintf("invoice %d not found", id)).WithDetail("invoiceId", id)
		}
		return Invoice{}, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, invoice_id, line_number, description, quantity, unit_price, line_amount,
tax_code, tax_rate, tax_amount, account_id
FROM invoice_lines WHERE invoice_id=$1 ORDER BY line_number`, id)
	if err != nil {
		return Invoice{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.LineNumber, &line.Description,
			&line.Quantity, &line.UnitPrice, &line.LineAmount, &line.TaxCode,
			&line.TaxRate, &line.TaxAmount, &line.AccountID); err != nil {
			return Invoice{}, err
		}
		inv.Lines = append(inv.Lines, line)
	}
	return inv, rows.Err()
}

func (r *repository) List(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Invoice, int, error) {
	where := `WHERE tenant_id=$1 AND company_id=$2`
	args := []any{scope.TenantID, scope.CompanyID}
	if filter.CustomerID > 0 {
		args = append(args, filter.CustomerID)
		where += fmt.Sprintf(" AND customer_id=$%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if !filter.FromDate.IsZero() {
		args = append(args, filter.FromDate)
		where += fmt.Sprintf(" AND invoice_date >= $%d", len(args))
	}
	if !filter.ToDate.IsZero() {
		args = append(args, filter.ToDate)
		where += fmt.Sprintf(" AND invoice_date <= $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT `+invoiceColumns+` FROM invoices %s ORDER BY invoice_date DESC, id DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, inv)
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

func (r *txRepository) CustomerExists(ctx context.Context, scope shared.Scope, customerID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM customers WHERE tenant_id=$1 AND company_id=$2 AND id=$3)`,
		scope.TenantID, scope.CompanyID, customerID).Scan(&exists)
	return exists, err
}

func (r *txRepository) TaxCodeExists(ctx context.Context, scope shared.Scope, code string) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tax_codes WHERE tenant_id=$1 AND company_id=$2 AND code=$3)`,
		scope.TenantID, scope.CompanyID, code).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertInvoice(ctx context.Context, scope shared.Scope, in CreateInput, subtotal, tax float64, now time.Time) (Invoice, error) {
	rate := in.ExchangeRate
	if rate == 0 {
		rate = 1
	}
	total := subtotal + tax
	row := r.tx.QueryRow(ctx, `
INSERT INTO invoices (tenant_id, company_id, customer_id, invoice_number, invoice_date,
	due_date, currency, exchange_rate, subtotal, tax_amount, total_amount, paid_amount,
	balance_amount, status, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $11, $12, $13)
RETURNING `+invoiceColumns,
		scope.TenantID, scope.CompanyID, in.CustomerID, in.InvoiceNumber, in.InvoiceDate,
		in.DueDate, in.Currency, rate, money(subtotal), money(tax), money(total),
		StatusDraft, scope.UserID)
	inv, err := scanInvoice(row)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_invoices_number") {
			return Invoice{}, shared.NewError(shared.CodeDuplicateInvoiceNumber,
				fmt.Sprintf("invoice number %q already exists", in.InvoiceNumber)).
				WithDetail("invoiceNumber", in.InvoiceNumber)
		}
		return Invoice{}, shared.NewError(shared.CodeInsertFailed, "failed to insert invoice header")
	}
	return inv, nil
}

func (r *txRepository) InsertLine(ctx context.Context, invoiceID int64, lineNumber int, line LineInput) (Line, error) {
	var out Line
	err := r.tx.QueryRow(ctx, `
INSERT INTO invoice_lines (invoice_id, line_number, description, quantity, unit_price,
	line_amount, tax_code, tax_rate, tax_amount, account_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, invoice_id, line_number, description, quantity, unit_price, line_amount,
tax_code, tax_rate, tax_amount, account_id`,
		invoiceID, lineNumber, line.Description, line.Quantity, line.UnitPrice,
		money(line.LineAmount), line.TaxCode, line.TaxRate, money(line.TaxAmount), line.AccountID).
		Scan(&out.ID, &out.InvoiceID, &out.LineNumber, &out.Description, &out.Quantity,
			&out.UnitPrice, &out.LineAmount, &out.TaxCode, &out.TaxRate, &out.TaxAmount, &out.AccountID)
	return out, err
}

func (r *txRepository) MarkPosted(ctx context.Context, scope shared.Scope, id, journalID, postedBy int64, now time.Time) (Invoice, error) {
	row := r.tx.QueryRow(ctx, `
UPDATE invoices SET journal_id=$4, status=$5, posted_by=$6, posted_at=$7, updated_at=NOW()
WHERE tenant_id=$1 AND company_id=$2 AND id=$3 AND journal_id IS NULL
	AND status IN ($8, $9)
RETURNING `+invoiceColumns,
		scope.TenantID, scope.CompanyID, id, journalID, StatusPosted, postedBy, now,
		StatusDraft, StatusSent)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, shared.NewError(shared.CodeInvoiceNotFound,
				fmt.Sprintf("postable invoice %d not found", id)).WithDetail("invoiceId", id)
		}
		return Invoice{}, err
	}
	return inv, nil
}

// ApplyPayment moves paid and balance amounts with a store-side
// arithmetic update. The balance guard keeps it non-negative; the
// status flips to paid once the remaining balance is below a cent.
func (r *txRepository) ApplyPayment(ctx context.Context, scope shared.Scope, id int64, amount float64) (Invoice, error) {
	row := r.tx.QueryRow(ctx, `
UPDATE invoices SET
	paid_amount = paid_amount + $4,
	balance_amount = balance_amount - $4,
	status = CASE WHEN balance_amount - $4 < 0.005 THEN $5::text ELSE status END,
	updated_at = NOW()
WHERE tenant_id=$1 AND company_id=$2 AND id=$3 AND balance_amount >= $4
RETURNING `+invoiceColumns,
		scope.TenantID, scope.CompanyID, id, money(amount), StatusPaid)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, shared.NewError(shared.CodeValidationFailed,
				"payment exceeds invoice balance or invoice not found").
				WithDetail("invoiceId", id).WithDetail("amount", amount)
		}
		return Invoice{}, err
	}
	return inv, nil
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
