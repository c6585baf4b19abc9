package bills

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pohlai88/ledgercore/internal/accounts"
	"github.com/pohlai88/ledgercore/internal/shared"
)

// AccountResolver validates expense accounts referenced by lines.
type AccountResolver interface {
	ResolveAccounts(ctx context.Context, scope shared.Scope, ids []int64) ([]accounts.Account, error)
}

// Service creates and posts supplier bills.
type Service struct {
	repo      Repository
	directory AccountResolver
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the service.
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

// Create validates the input, derives header totals and writes header
// plus lines in one transaction.
func (s *Service) Create(ctx context.Context, scope shared.Scope, in CreateInput) (Bill, error) {
	if err := in.Validate(); err != nil {
		return Bill{}, err
	}
	if _, err := s.directory.ResolveAccounts(ctx, scope, lineAccountIDs(in.Lines)); err != nil {
		return Bill{}, err
	}
	subtotal, tax := in.Totals()

	var bill Bill
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exists, err := tx.SupplierExists(ctx, scope, in.SupplierID)
		if err != nil {
			return err
		}
		if !exists {
			return shared.NewError(shared.CodeSupplierNotFound,
				fmt.Sprintf("supplier %d not found", in.SupplierID)).
				WithDetail("supplierId", in.SupplierID)
		}

		bill, err = tx.InsertBill(ctx, scope, in, subtotal, tax, s.now())
		if err != nil {
			return err
		}
		for idx, line := range in.Lines {
			inserted, err := tx.InsertLine(ctx, bill.ID, idx+1, line)
			if err != nil {
				return shared.NewError(shared.CodeLineInsertFailed, "failed to insert bill line").
					WithDetail("lineIndex", idx)
			}
			bill.Lines = append(bill.Lines, inserted)
		}
		return nil
	})
	if err != nil {
		return Bill{}, err
	}

	s.logger.Info("bill created",
		slog.Int64("billId", bill.ID),
		slog.String("billNumber", bill.BillNumber),
		slog.Int64("tenantId", scope.TenantID))
	return bill, nil
}

// PostDocument links the bill to an already posted journal.
func (s *Service) PostDocument(ctx context.Context, scope shared.Scope, id, journalID int64) (Bill, error) {
	var bill Bill
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		b, err := tx.MarkPosted(ctx, scope, id, journalID, scope.UserID, s.now())
		if err != nil {
			return err
		}
		bill = b
		return nil
	})
	if err != nil {
		return Bill{}, err
	}
	return bill, nil
}

// RecordPayment applies a payment amount against the bill balance.
func (s *Service) RecordPayment(ctx context.Context, scope shared.Scope, id int64, amount float64) (Bill, error) {
	if amount <= 0 {
		return Bill{}, shared.NewError(shared.CodeValidationFailed, "payment amount must be positive")
	}
	var bill Bill
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		b, err := tx.ApplyPayment(ctx, scope, id, amount)
		if err != nil {
			return err
		}
		bill = b
		return nil
	})
	if err != nil {
		return Bill{}, err
	}
	return bill, nil
}

// Get loads a bill with its lines within scope.
func (s *Service) Get(ctx context.Context, scope shared.Scope, id int64) (Bill, error) {
	return s.repo.Get(ctx, scope, id)
}

// List returns a filtered page of bills.
func (s *Service) List(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Bill, shared.Page, error) {
	items, total, err := s.repo.List(ctx, scope, filter)
	if err != nil {
		return nil, shared.Page{}, err
	}
	return items, shared.NewPage(filter.Limit, filter.Offset, total), nil
}

func lineAccountIDs(lines []LineInput) []int64 {
	seen := make(map[int64]bool, len(lines))
	out := make([]int64, 0, len(lines))
	for _, line := range lines {
		if !seen[line.ExpenseAccountID] {
			seen[line.ExpenseAccountID] = true
			out = append(out, line.ExpenseAccountID)
		}
	}
	return out
}
