package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pohlai88/ledgercore/internal/shared"
)

// Store persists idempotency records. Check and Cleanup run against the
// pool; BeginTx and CompleteTx run inside a caller-owned transaction so the
// key reservation commits or rolls back together with the business writes.
type Store struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewStore constructs the store. A zero ttl falls back to DefaultTTL.
func NewStore(pool *pgxpool.Pool, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{pool: pool, ttl: ttl}
}

// TTL exposes the configured retention for resolved records.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

const recordColumns = `id, tenant_id, key, request_hash, response, status, created_at, expires_at`

// Check looks up a record by (tenant, key). Returns nil when the key is
// unknown or the record has expired.
func (s *Store) Check(ctx context.Context, scope shared.Scope, key string) (*Record, error) {
	if key == "" {
		return nil, errors.New("idempotency: key required")
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM idempotency_records WHERE tenant_id=$1 AND key=$2`,
		scope.TenantID, key)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if rec.Expired(time.Now()) {
		return nil, nil
	}
	return rec, nil
}

// Cleanup removes records that expired before the cutoff. Invoked by the
// background worker on a cron schedule.
func (s *Store) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM idempotency_records WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// BeginTx reserves a key inside the caller's transaction. The insert relies
// on the (tenant_id, key) unique constraint, not a read-then-insert check,
// so two concurrent calls cannot both reserve the key. It returns the
// existing record and inserted=false when the key is already taken.
func BeginTx(ctx context.Context, tx pgx.Tx, tenantID int64, key, requestHash string) (*Record, bool, error) {
	if key == "" {
		return nil, false, errors.New("idempotency: key required")
	}
	tag, err := tx.Exec(ctx, `
INSERT INTO idempotency_records (id, tenant_id, key, request_hash, response, status, created_at, expires_at)
VALUES ($1, $2, $3, $4, NULL, $5, NOW(), $6)
ON CONFLICT (tenant_id, key) DO NOTHING`,
		uuid.New(), tenantID, key, requestHash, StatusProcessing, time.Now().Add(DefaultTTL))
	if err != nil {
		return nil, false, err
	}
	if tag.RowsAffected() > 0 {
		return nil, true, nil
	}
	row := tx.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM idempotency_records WHERE tenant_id=$1 AND key=$2`,
		tenantID, key)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, false, err
	}
	return rec, false, nil
}

// CompleteTx stores the response for a reserved key inside the caller's
// transaction and stamps the retention window.
func CompleteTx(ctx context.Context, tx pgx.Tx, tenantID int64, key string, response json.RawMessage, status Status, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	_, err := tx.Exec(ctx, `
UPDATE idempotency_records
SET response=$3, status=$4, expires_at=$5
WHERE tenant_id=$1 AND key=$2`,
		tenantID, key, response, status, time.Now().Add(ttl))
	return err
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	if err := row.Scan(&rec.ID, &rec.TenantID, &rec.Key, &rec.RequestHash,
		&rec.Response, &rec.Status, &rec.CreatedAt, &rec.ExpiresAt); err != nil {
		return nil, err
	}
	return &rec, nil
}
