package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pohlai88/ledgercore/internal/accounts"
	"github.com/pohlai88/ledgercore/internal/platform/cache"
	"github.com/pohlai88/ledgercore/internal/shared"
)

// AccountResolver validates revenue accounts referenced by lines.
type AccountResolver interface {
	ResolveAccounts(ctx context.Context, scope shared.Scope, ids []int64) ([]accounts.Account, error)
}

// Service creates and posts customer invoices.
type Service struct {
	repo      Repository
	directory AccountResolver
	cache     *cache.ReadCache
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the service. Cache may be nil.
func NewService(repo Repository, directory AccountResolver, rc *cache.ReadCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, directory: directory, cache: rc, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create validates the input, derives header totals from the lines and
// writes header plus lines in one transaction. Balance starts equal to
// the total since nothing is paid yet.
func (s *Service) Create(ctx context.Context, scope shared.Scope, in CreateInput) (Invoice, error) {
	if err := in.Validate(); err != nil {
		return Invoice{}, err
	}
	if _, err := s.directory.ResolveAccounts(ctx, scope, lineAccountIDs(in.Lines)); err != nil {
		return Invoice{}, err
	}
	subtotal, tax := in.Totals()

	var invoice Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exists, err := tx.CustomerExists(ctx, scope, in.CustomerID)
		if err != nil {
			return err
		}
		if !exists {
			return shared.NewError(shared.CodeCustomerNotFound,
				fmt.Sprintf("customer %d not found", in.CustomerID)).
				WithDetail("customerId", in.CustomerID)
		}
		for idx, line := range in.Lines {
			if line.TaxCode == "" {
				continue
			}
			ok, err := tx.TaxCodeExists(ctx, scope, line.TaxCode)
			if err != nil {
				return err
			}
			if !ok {
				return shared.NewError(shared.CodeTaxCodeNotFound,
					fmt.Sprintf("tax code %q not found", line.TaxCode)).
					WithDetail("lineIndex", idx).WithDetail("taxCode", line.TaxCode)
			}
		}

		invoice, err = tx.InsertInvoice(ctx, scope, in, subtotal, tax, s.now())
		if err != nil {
			return err
		}
		for idx, line := range in.Lines {
			inserted, err := tx.InsertLine(ctx, invoice.ID, idx+1, line)
			if err != nil {
				return shared.NewError(shared.CodeLineInsertFailed, "failed to insert invoice line").
					WithDetail("lineIndex", idx)
			}
			invoice.Lines = append(invoice.Lines, inserted)
		}
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	s.bump(ctx, scope)
	s.logger.Info("invoice created",
		slog.Int64("invoiceId", invoice.ID),
		slog.String("invoiceNumber", invoice.InvoiceNumber),
		slog.Int64("tenantId", scope.TenantID))
	return invoice, nil
}

// PostDocument links the invoice to an already posted journal. The
// caller is responsible for building and balancing that journal first.
func (s *Service) PostDocument(ctx context.Context, scope shared.Scope, id, journalID int64) (Invoice, error) {
	var invoice Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.MarkPosted(ctx, scope, id, journalID, scope.UserID, s.now())
		if err != nil {
			return err
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.bump(ctx, scope)
	return invoice, nil
}

// RecordPayment applies a payment amount against the invoice balance.
func (s *Service) RecordPayment(ctx context.Context, scope shared.Scope, id int64, amount float64) (Invoice, error) {
	if amount <= 0 {
		return Invoice{}, shared.NewError(shared.CodeValidationFailed, "payment amount must be positive")
	}
	var invoice Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.ApplyPayment(ctx, scope, id, amount)
		if err != nil {
			return err
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.bump(ctx, scope)
	return invoice, nil
}

// Get loads an invoice with its lines within scope.
func (s *Service) Get(ctx context.Context, scope shared.Scope, id int64) (Invoice, error) {
	return s.repo.Get(ctx, scope, id)
}

// List returns a filtered page of invoices. Unfiltered first pages are
// served through the read cache; any write bumps the version.
func (s *Service) List(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Invoice, shared.Page, error) {
	if s.cache != nil && filter == (ListFilter{}) {
		type cached struct {
			Items []Invoice `json:"items"`
			Total int       `json:"total"`
		}
		key, err := s.cache.BuildKey(ctx, scope.TenantID, scope.CompanyID, "invoices", "list")
		if err == nil {
			var c cached
			err = s.cache.FetchJSON(ctx, key, &c, func(ctx context.Context) (any, error) {
				items, total, err := s.repo.List(ctx, scope, filter)
				if err != nil {
					return nil, err
				}
				return cached{Items: items, Total: total}, nil
			})
			if err == nil {
				return c.Items, shared.NewPage(filter.Limit, filter.Offset, c.Total), nil
			}
			s.logger.Warn("invoice list cache read failed", slog.Any("error", err))
		}
	}

	items, total, err := s.repo.List(ctx, scope, filter)
	if err != nil {
		return nil, shared.Page{}, err
	}
	return items, shared.NewPage(filter.Limit, filter.Offset, total), nil
}

func (s *Service) bump(ctx context.Context, scope shared.Scope) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx, scope.TenantID, scope.CompanyID); err != nil {
		s.logger.Warn("cache bump failed", slog.Any("error", err))
	}
}

func lineAccountIDs(lines []LineInput) []int64 {
	seen := make(map[int64]bool, len(lines))
	out := make([]int64, 0, len(lines))
	for _, line := range lines {
		if !seen[line.AccountID] {
			seen[line.AccountID] = true
			out = append(out, line.AccountID)
		}
	}
	return out
}
