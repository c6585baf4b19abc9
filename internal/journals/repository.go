package journals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pohlai88/ledgercore/internal/idempotency"
	"github.com/pohlai88/ledgercore/internal/platform/db"
	"github.com/pohlai88/ledgercore/internal/shared"
)

// Repository encapsulates DB operations for journals.
type Repository interface {
	Get(ctx context.Context, scope shared.Scope, id int64) (Journal, error)
	List(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Journal, int, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a posting transaction.
// Idempotency operations live here so the key reservation and the journal
// rows commit or roll back together.
type TxRepository interface {
	InsertJournal(ctx context.Context, scope shared.Scope, in PostingInput, totalDebit, totalCredit float64, now time.Time) (Journal, error)
	InsertLine(ctx context.Context, journalID int64, line PostingLineInput) (Line, error)
	MarkPosted(ctx context.Context, scope shared.Scope, id int64, postedBy int64, now time.Time) (Journal, error)

	IdempotencyBegin(ctx context.Context, tenantID int64, key, requestHash string) (*idempotency.Record, bool, error)
	IdempotencyComplete(ctx context.Context, tenantID int64, key string, response json.RawMessage, status idempotency.Status) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const journalColumns = `id, tenant_id, company_id, journal_number, journal_date, currency,
total_debit, total_credit, status, created_by, posted_by, posted_at, created_at, updated_at`

func scanJournal(row pgx.Row) (Journal, error) {
	var j Journal
	err := row.Scan(&j.ID, &j.TenantID, &j.CompanyID, &j.JournalNumber, &j.JournalDate,
		&j.Currency, &j.TotalDebit, &j.TotalCredit, &j.Status, &j.CreatedBy,
		&j.PostedBy, &j.PostedAt, &j.CreatedAt, &j.UpdatedAt)
	return j, err
}

func (r *repository) Get(ctx context.Context, scope shared.Scope, id int64) (Journal, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+journalColumns+` FROM journals
WHERE tenant_id=$1 AND company_id=$2 AND id=$3`,
		scope.TenantID, scope.CompanyID, id)
	j, err := scanJournal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, shared.NewError(shared.CodeJournalNotFound,
				fmt.Sprintf("journal %d not found", id)).WithDetail("journalId", id)
		}
		return Journal{}, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, journal_id, account_id, debit, credit, description, reference
FROM journal_lines WHERE journal_id=$1 ORDER BY id`, id)
	if err != nil {
		return Journal{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.JournalID, &line.AccountID,
			&line.Debit, &line.Credit, &line.Description, &line.Reference); err != nil {
			return Journal{}, err
		}
		j.Lines = append(j.Lines, line)
	}
	return j, rows.Err()
}

func (r *repository) List(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Journal, int, error) {
	where := `WHERE tenant_id=$1 AND company_id=$2`
	args := []any{scope.TenantID, scope.CompanyID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if !filter.FromDate.IsZero() {
		args = append(args, filter.FromDate)
		where += fmt.Sprintf(" AND journal_date >= $%d", len(args))
	}
	if !filter.ToDate.IsZero() {
		args = append(args, filter.ToDate)
		where += fmt.Sprintf(" AND journal_date <= $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM journals `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT `+journalColumns+` FROM journals %s ORDER BY journal_date DESC, id DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Journal
	for rows.Next() {
		j, err := scanJournal(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, j)
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

func (r *txRepository) InsertJournal(ctx context.Context, scope shared.Scope, in PostingInput, totalDebit, totalCredit float64, now time.Time) (Journal, error) {
	status := in.Status
	if status == "" {
		status = StatusDraft
	}
	var postedBy *int64
	var postedAt *time.Time
	if status == StatusPosted {
		postedBy = &scope.UserID
		postedAt = &now
	}
	row := r.tx.QueryRow(ctx, `
INSERT INTO journals (tenant_id, company_id, journal_number, journal_date, currency,
	total_debit, total_credit, status, created_by, posted_by, posted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING `+journalColumns,
		scope.TenantID, scope.CompanyID, in.JournalNumber, in.JournalDate, in.Currency,
		money(totalDebit), money(totalCredit), status, scope.UserID, postedBy, postedAt)
	j, err := scanJournal(row)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_journals_number") {
			return Journal{}, shared.NewError(shared.CodeDuplicateJournalNumber,
				fmt.Sprintf("journal number %q already exists", in.JournalNumber)).
				WithDetail("journalNumber", in.JournalNumber)
		}
		return Journal{}, shared.NewError(shared.CodeInsertFailed, "failed to insert journal header")
	}
	return j, nil
}

func (r *txRepository) InsertLine(ctx context.Context, journalID int64, line PostingLineInput) (Line, error) {
	var out Line
	err := r.tx.QueryRow(ctx, `
INSERT INTO journal_lines (journal_id, account_id, debit, credit, description, reference)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, journal_id, account_id, debit, credit, description, reference`,
		journalID, line.AccountID, money(line.Debit), money(line.Credit),
		line.Description, line.Reference).
		Scan(&out.ID, &out.JournalID, &out.AccountID, &out.Debit, &out.Credit,
			&out.Description, &out.Reference)
	return out, err
}

func (r *txRepository) MarkPosted(ctx context.Context, scope shared.Scope, id int64, postedBy int64, now time.Time) (Journal, error) {
	row := r.tx.QueryRow(ctx, `
UPDATE journals SET status=$4, posted_by=$5, posted_at=$6, updated_at=NOW()
WHERE tenant_id=$1 AND company_id=$2 AND id=$3 AND status=$7
RETURNING `+journalColumns,
		scope.TenantID, scope.CompanyID, id, StatusPosted, postedBy, now, StatusDraft)
	j, err := scanJournal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, shared.NewError(shared.CodeJournalNotFound,
				fmt.Sprintf("draft journal %d not found", id)).WithDetail("journalId", id)
		}
		return Journal{}, err
	}
	return j, nil
}

func (r *txRepository) IdempotencyBegin(ctx context.Context, tenantID int64, key, requestHash string) (*idempotency.Record, bool, error) {
	return idempotency.BeginTx(ctx, r.tx, tenantID, key, requestHash)
}

func (r *txRepository) IdempotencyComplete(ctx context.Context, tenantID int64, key string, response json.RawMessage, status idempotency.Status) error {
	return idempotency.CompleteTx(ctx, r.tx, tenantID, key, response, status, 0)
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
