package journals

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pohlai88/ledgercore/internal/accounts"
	"github.com/pohlai88/ledgercore/internal/idempotency"
	"github.com/pohlai88/ledgercore/internal/shared"
)

// AccountResolver validates that line accounts exist and are active within
// scope. Implemented by the account directory service.
type AccountResolver interface {
	ResolveAccounts(ctx context.Context, scope shared.Scope, ids []int64) ([]accounts.Account, error)
}

// Service is the journal posting engine: the central enforcement point for
// the balance and uniqueness invariants.
type Service struct {
	repo      Repository
	directory AccountResolver
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the engine.
func NewService(repo Repository, directory AccountResolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, directory: directory, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Post validates and persists a balanced journal. Header, lines and the
// idempotency reservation commit in one transaction, so a failure at any
// step leaves zero rows behind and a client retry with the same key gets
// the recorded prior result instead of a second posting.
func (s *Service) Post(ctx context.Context, scope shared.Scope, in PostingInput) (PostingResult, error) {
	if err := in.Validate(); err != nil {
		return PostingResult{}, err
	}
	if _, err := s.directory.ResolveAccounts(ctx, scope, in.AccountIDs()); err != nil {
		return PostingResult{}, err
	}
	if ok, diff := in.Balanced(); !ok {
		return PostingResult{}, shared.NewError(shared.CodeUnbalancedJournal,
			"total debits do not equal total credits").
			WithDetail("difference", round2(diff))
	}
	totalDebit, totalCredit := in.Totals()

	requestHash := ""
	if in.IdempotencyKey != "" {
		hash, err := idempotency.HashRequest(in)
		if err != nil {
			return PostingResult{}, err
		}
		requestHash = hash
	}

	var result PostingResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if in.IdempotencyKey != "" {
			prior, reserved, err := tx.IdempotencyBegin(ctx, scope.TenantID, in.IdempotencyKey, requestHash)
			if err != nil {
				return err
			}
			if !reserved {
				dup := shared.NewError(shared.CodeDuplicateRequest,
					"idempotency key already processed").
					WithDetail("idempotencyKey", in.IdempotencyKey).
					WithDetail("requestHashMatch", prior.RequestHash == requestHash)
				if len(prior.Response) > 0 {
					dup = dup.WithDetail("priorResponse", json.RawMessage(prior.Response))
				}
				return dup
			}
		}

		journal, err := tx.InsertJournal(ctx, scope, in, totalDebit, totalCredit, s.now())
		if err != nil {
			return err
		}
		for idx, line := range in.Lines {
			if _, err := tx.InsertLine(ctx, journal.ID, line); err != nil {
				return shared.NewError(shared.CodeLineInsertFailed, "failed to insert journal line").
					WithDetail("lineIndex", idx)
			}
		}

		result = PostingResult{
			ID:            journal.ID,
			JournalNumber: journal.JournalNumber,
			Status:        journal.Status,
			TotalDebit:    journal.TotalDebit,
			TotalCredit:   journal.TotalCredit,
		}
		if in.IdempotencyKey != "" {
			response, err := json.Marshal(result)
			if err != nil {
				return err
			}
			if err := tx.IdempotencyComplete(ctx, scope.TenantID, in.IdempotencyKey,
				response, idempotency.StatusCompleted); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return PostingResult{}, err
	}

	s.logger.Info("journal posted",
		slog.Int64("journalId", result.ID),
		slog.String("journalNumber", result.JournalNumber),
		slog.String("status", string(result.Status)),
		slog.Int64("tenantId", scope.TenantID))
	return result, nil
}

// Get loads a journal with its lines within scope.
func (s *Service) Get(ctx context.Context, scope shared.Scope, id int64) (Journal, error) {
	return s.repo.Get(ctx, scope, id)
}

// List returns a filtered page of journals plus paging metadata computed
// from the same predicate.
func (s *Service) List(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Journal, shared.Page, error) {
	items, total, err := s.repo.List(ctx, scope, filter)
	if err != nil {
		return nil, shared.Page{}, err
	}
	return items, shared.NewPage(filter.Limit, filter.Offset, total), nil
}

// MarkPosted transitions a draft journal to posted. The transition is
// one-way; reversal is out of scope for this core.
func (s *Service) MarkPosted(ctx context.Context, scope shared.Scope, id int64) (Journal, error) {
	var journal Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		j, err := tx.MarkPosted(ctx, scope, id, scope.UserID, s.now())
		if err != nil {
			return err
		}
		journal = j
		return nil
	})
	if err != nil {
		return Journal{}, err
	}
	return journal, nil
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
