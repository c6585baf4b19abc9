package payments

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/pohlai88/ledgercore/internal/shared"
)

// DocumentLedger is the slice of a sub-ledger the allocator needs:
// the open balance of a document and the ability to pay it down.
type DocumentLedger interface {
	Balance(ctx context.Context, scope shared.Scope, id int64) (float64, error)
	ApplyPayment(ctx context.Context, scope shared.Scope, id int64, amount float64) error
}

// Service computes charges and allocates payments to documents.
type Service struct {
	repo     Repository
	invoices DocumentLedger
	bills    DocumentLedger
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the service.
func NewService(repo Repository, invoiceLedger, billLedger DocumentLedger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, invoices: invoiceLedger, bills: billLedger, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ComputeBankCharge loads the active config for the bank account and
// evaluates it against the payment amount.
func (s *Service) ComputeBankCharge(ctx context.Context, scope shared.Scope, bankAccountID int64, amount float64) (*BankCharge, error) {
	cfg, err := s.repo.GetActiveChargeConfig(ctx, scope, bankAccountID)
	if err != nil {
		return nil, err
	}
	return ComputeBankCharge(cfg, amount), nil
}

// ComputeWithholdingTax evaluates every active withholding config
// applicable to the party type.
func (s *Service) ComputeWithholdingTax(ctx context.Context, scope shared.Scope, amount float64, party PartyType) ([]WithholdingCharge, error) {
	cfgs, err := s.repo.ListWithholdingConfigs(ctx, scope)
	if err != nil {
		return nil, err
	}
	return ComputeWithholding(cfgs, amount, party), nil
}

// Allocate records a payment, applies it to the target document and
// routes any overpayment to the party's advance account. Charge and
// withholding computation are independent reads and run concurrently.
// If the document can no longer absorb the applied amount after the
// payment committed, the amount is redirected to the advance account so
// every committed payment stays fully accounted for.
func (s *Service) Allocate(ctx context.Context, scope shared.Scope, req AllocationRequest) (AllocationResult, error) {
	if err := req.Validate(); err != nil {
		return AllocationResult{}, err
	}
	ledger, err := s.ledgerFor(req.DocumentType)
	if err != nil {
		return AllocationResult{}, err
	}

	var (
		charge      *BankCharge
		withholding []WithholdingCharge
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.ComputeBankCharge(gctx, scope, req.BankAccountID, req.Amount)
		if err != nil {
			return err
		}
		charge = c
		return nil
	})
	g.Go(func() error {
		w, err := s.ComputeWithholdingTax(gctx, scope, req.Amount, req.PartyType)
		if err != nil {
			return err
		}
		withholding = w
		return nil
	})
	if err := g.Wait(); err != nil {
		return AllocationResult{}, err
	}

	net := decimal.NewFromFloat(req.Amount)
	if charge != nil {
		net = net.Sub(decimal.NewFromFloat(charge.Amount))
	}
	for _, w := range withholding {
		net = net.Sub(decimal.NewFromFloat(w.Amount))
	}
	net = net.Round(2)
	if !net.IsPositive() {
		return AllocationResult{}, shared.NewError(shared.CodeValidationFailed,
			"charges and withholding consume the entire payment").
			WithDetail("amount", req.Amount)
	}
	netAmount := net.InexactFloat64()

	balance, err := ledger.Balance(ctx, scope, req.DocumentID)
	if err != nil {
		return AllocationResult{}, err
	}

	applied := netAmount
	if balance < applied {
		applied = balance
	}
	advance := decimal.NewFromFloat(netAmount).Sub(decimal.NewFromFloat(applied)).Round(2).InexactFloat64()

	result := AllocationResult{
		GrossAmount:   req.Amount,
		NetAmount:     netAmount,
		AppliedAmount: applied,
		AdvanceAmount: advance,
		BankCharge:    charge,
		Withholding:   withholding,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		payment, err := tx.InsertPayment(ctx, scope, req, s.now())
		if err != nil {
			return err
		}
		result.PaymentID = payment.ID

		if advance > 0 {
			if _, err := tx.UpsertAdvanceAccount(ctx, scope, req.PartyType, req.PartyID,
				req.Currency, req.AdvanceAccountID); err != nil {
				return err
			}
			if err := tx.AdjustAdvanceBalance(ctx, scope, req.PartyType, req.PartyID,
				req.Currency, advance); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return AllocationResult{}, err
	}

	if applied > 0 {
		if applyErr := ledger.ApplyPayment(ctx, scope, req.DocumentID, applied); applyErr != nil {
			// The payment row is already committed. The document balance
			// shrank or the document vanished since the read above, so the
			// amount goes to the advance account instead of dangling.
			err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
				if _, err := tx.UpsertAdvanceAccount(ctx, scope, req.PartyType, req.PartyID,
					req.Currency, req.AdvanceAccountID); err != nil {
					return err
				}
				return tx.AdjustAdvanceBalance(ctx, scope, req.PartyType, req.PartyID,
					req.Currency, applied)
			})
			if err != nil {
				return AllocationResult{}, err
			}
			s.logger.Warn("document rejected payment application, amount moved to advance",
				slog.Int64("paymentId", result.PaymentID),
				slog.Int64("documentId", req.DocumentID),
				slog.Float64("amount", applied),
				slog.Any("error", applyErr))
			advance = decimal.NewFromFloat(advance).Add(decimal.NewFromFloat(applied)).Round(2).InexactFloat64()
			applied = 0
			result.AppliedAmount = applied
			result.AdvanceAmount = advance
		}
	}

	s.logger.Info("payment allocated",
		slog.Int64("paymentId", result.PaymentID),
		slog.String("documentType", req.DocumentType),
		slog.Int64("documentId", req.DocumentID),
		slog.Float64("applied", applied),
		slog.Float64("advance", advance),
		slog.Int64("tenantId", scope.TenantID))
	return result, nil
}

// GetOrCreateAdvanceAccount returns the advance account for the key,
// creating a zero-balance row when absent. Safe under concurrent
// callers for the same key.
func (s *Service) GetOrCreateAdvanceAccount(ctx context.Context, scope shared.Scope, partyType PartyType, partyID int64, currency string, defaultAccountID int64) (AdvanceAccount, error) {
	var account AdvanceAccount
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		a, err := tx.UpsertAdvanceAccount(ctx, scope, partyType, partyID, currency, defaultAccountID)
		if err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		return AdvanceAccount{}, err
	}
	return account, nil
}

// AdjustAdvanceBalance applies a delta to an advance balance.
func (s *Service) AdjustAdvanceBalance(ctx context.Context, scope shared.Scope, partyType PartyType, partyID int64, currency string, delta float64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.AdjustAdvanceBalance(ctx, scope, partyType, partyID, currency, delta)
	})
}

// GetAdvanceAccount reads an advance account within scope.
func (s *Service) GetAdvanceAccount(ctx context.Context, scope shared.Scope, partyType PartyType, partyID int64, currency string) (AdvanceAccount, error) {
	return s.repo.GetAdvanceAccount(ctx, scope, partyType, partyID, currency)
}

func (s *Service) ledgerFor(documentType string) (DocumentLedger, error) {
	switch documentType {
	case "invoice":
		if s.invoices != nil {
			return s.invoices, nil
		}
	case "bill":
		if s.bills != nil {
			return s.bills, nil
		}
	}
	return nil, shared.NewError(shared.CodeValidationFailed, "no ledger for document type").
		WithDetail("documentType", documentType)
}
