package payments

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pohlai88/ledgercore/internal/shared"
)

type memoryRepo struct {
	mu          sync.Mutex
	chargeCfg   map[int64]*BankChargeConfig
	withholding []WithholdingTaxConfig
	advances    map[string]AdvanceAccount
	payments    []Payment
	nextID      int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		chargeCfg: make(map[int64]*BankChargeConfig),
		advances:  make(map[string]AdvanceAccount),
	}
}

func advanceKey(scope shared.Scope, partyType PartyType, partyID int64, currency string) string {
	return fmt.Sprintf("%d/%d/%s/%d/%s", scope.TenantID, scope.CompanyID, partyType, partyID, currency)
}

func (r *memoryRepo) GetActiveChargeConfig(ctx context.Context, scope shared.Scope, bankAccountID int64) (*BankChargeConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chargeCfg[bankAccountID], nil
}

func (r *memoryRepo) ListWithholdingConfigs(ctx context.Context, scope shared.Scope) ([]WithholdingTaxConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]WithholdingTaxConfig(nil), r.withholding...), nil
}

func (r *memoryRepo) GetAdvanceAccount(ctx context.Context, scope shared.Scope, partyType PartyType, partyID int64, currency string) (AdvanceAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.advances[advanceKey(scope, partyType, partyID, currency)]
	if !ok {
		return AdvanceAccount{}, shared.NewError(shared.CodePaymentNotFound, "advance account not found")
	}
	return a, nil
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) InsertPayment(ctx context.Context, scope shared.Scope, req AllocationRequest, now time.Time) (Payment, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	tx.repo.nextID++
	p := Payment{
		ID:            tx.repo.nextID,
		TenantID:      scope.TenantID,
		CompanyID:     scope.CompanyID,
		BankAccountID: req.BankAccountID,
		PartyType:     req.PartyType,
		PartyID:       req.PartyID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Status:        "allocated",
		PaymentDate:   now,
		CreatedBy:     scope.UserID,
		CreatedAt:     now,
	}
	tx.repo.payments = append(tx.repo.payments, p)
	return p, nil
}

func (tx *memoryTx) UpsertAdvanceAccount(ctx context.Context, scope shared.Scope, partyType PartyType, partyID int64, currency string, accountID int64) (AdvanceAccount, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	key := advanceKey(scope, partyType, partyID, currency)
	if a, ok := tx.repo.advances[key]; ok {
		return a, nil
	}
	tx.repo.nextID++
	a := AdvanceAccount{
		ID:        tx.repo.nextID,
		TenantID:  scope.TenantID,
		CompanyID: scope.CompanyID,
		AccountID: accountID,
		PartyType: partyType,
		PartyID:   partyID,
		Currency:  currency,
	}
	tx.repo.advances[key] = a
	return a, nil
}

func (tx *memoryTx) AdjustAdvanceBalance(ctx context.Context, scope shared.Scope, partyType PartyType, partyID int64, currency string, delta float64) error {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	key := advanceKey(scope, partyType, partyID, currency)
	a, ok := tx.repo.advances[key]
	if !ok || a.BalanceAmount+delta < 0 {
		return shared.NewError(shared.CodeValidationFailed, "advance balance adjustment rejected")
	}
	a.BalanceAmount += delta
	tx.repo.advances[key] = a
	return nil
}

type fakeLedger struct {
	mu        sync.Mutex
	balance   map[int64]float64
	applied   map[int64]float64
	applyFail error
}

func newFakeLedger(balances map[int64]float64) *fakeLedger {
	return &fakeLedger{balance: balances, applied: make(map[int64]float64)}
}

func (l *fakeLedger) Balance(ctx context.Context, scope shared.Scope, id int64) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.balance[id]
	if !ok {
		return 0, shared.NewError(shared.CodeInvoiceNotFound, "document not found")
	}
	return b, nil
}

func (l *fakeLedger) ApplyPayment(ctx context.Context, scope shared.Scope, id int64, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.applyFail != nil {
		return l.applyFail
	}
	if l.balance[id] < amount {
		return shared.NewError(shared.CodeValidationFailed, "payment exceeds balance")
	}
	l.balance[id] -= amount
	l.applied[id] += amount
	return nil
}

var testScope = shared.Scope{TenantID: 1, CompanyID: 2, UserID: 7, Role: shared.RoleAccountant}

func TestAllocateAppliesNetAmountToDocument(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	repo.chargeCfg[10] = &BankChargeConfig{
		ChargeType: ChargeFixed, FixedAmount: 5, ExpenseAccountID: 6300, IsActive: true,
	}
	repo.withholding = []WithholdingTaxConfig{{
		TaxCode: "WHT-S", TaxRate: 0.10, ApplicableTo: AppliesToSuppliers,
		PayableAccountID: 2300, IsActive: true,
	}}
	ledger := newFakeLedger(map[int64]float64{33: 2000})
	svc := NewService(repo, nil, ledger, nil)

	result, err := svc.Allocate(ctx, testScope, AllocationRequest{
		BankAccountID: 10,
		PartyType:     PartySupplier,
		PartyID:       200,
		Currency:      "MYR",
		Amount:        1000,
		DocumentType:  "bill",
		DocumentID:    33,
	})
	require.NoError(t, err)
	require.Equal(t, 1000.0, result.GrossAmount)
	require.Equal(t, 5.0, result.BankCharge.Amount)
	require.Len(t, result.Withholding, 1)
	require.Equal(t, 100.0, result.Withholding[0].Amount)
	require.Equal(t, 895.0, result.NetAmount, "gross minus charge minus withholding")
	require.Equal(t, 895.0, result.AppliedAmount)
	require.Equal(t, 0.0, result.AdvanceAmount)
	require.Equal(t, 895.0, ledger.applied[33])
	require.Len(t, repo.payments, 1)
}

func TestAllocateRoutesOverpaymentToAdvance(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	ledger := newFakeLedger(map[int64]float64{44: 300})
	svc := NewService(repo, ledger, nil, nil)

	result, err := svc.Allocate(ctx, testScope, AllocationRequest{
		BankAccountID:    10,
		PartyType:        PartyCustomer,
		PartyID:          100,
		Currency:         "MYR",
		Amount:           500,
		DocumentType:     "invoice",
		DocumentID:       44,
		AdvanceAccountID: 2150,
	})
	require.NoError(t, err)
	require.Equal(t, 300.0, result.AppliedAmount)
	require.Equal(t, 200.0, result.AdvanceAmount)
	require.Equal(t, 0.0, ledger.balance[44], "invoice fully settled")

	advance, err := svc.GetAdvanceAccount(ctx, testScope, PartyCustomer, 100, "MYR")
	require.NoError(t, err)
	require.Equal(t, 200.0, advance.BalanceAmount)
	require.Equal(t, int64(2150), advance.AccountID)
}

func TestAllocateMovesAmountToAdvanceWhenDocumentRejectsIt(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	ledger := newFakeLedger(map[int64]float64{33: 500})
	ledger.applyFail = shared.NewError(shared.CodeValidationFailed, "payment exceeds bill balance")
	svc := NewService(repo, nil, ledger, nil)

	result, err := svc.Allocate(ctx, testScope, AllocationRequest{
		BankAccountID:    10,
		PartyType:        PartySupplier,
		PartyID:          200,
		Currency:         "MYR",
		Amount:           300,
		DocumentType:     "bill",
		DocumentID:       33,
		AdvanceAccountID: 2100,
	})
	require.NoError(t, err, "a rejected application is not a failed allocation")
	require.Equal(t, 0.0, result.AppliedAmount)
	require.Equal(t, 300.0, result.AdvanceAmount)
	require.Equal(t, 0.0, ledger.applied[33])
	require.Len(t, repo.payments, 1)

	advance, err := svc.GetAdvanceAccount(ctx, testScope, PartySupplier, 200, "MYR")
	require.NoError(t, err)
	require.Equal(t, 300.0, advance.BalanceAmount, "committed payment fully tracked in advance")
	require.Equal(t, int64(2100), advance.AccountID)
}

func TestAllocateRejectsWhenChargesConsumePayment(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	repo.chargeCfg[10] = &BankChargeConfig{
		ChargeType: ChargeFixed, FixedAmount: 50, IsActive: true,
	}
	svc := NewService(repo, newFakeLedger(map[int64]float64{1: 100}), nil, nil)

	_, err := svc.Allocate(ctx, testScope, AllocationRequest{
		BankAccountID: 10,
		PartyType:     PartyCustomer,
		PartyID:       100,
		Currency:      "MYR",
		Amount:        50,
		DocumentType:  "invoice",
		DocumentID:    1,
	})
	require.Equal(t, shared.CodeValidationFailed, shared.CodeOf(err))
	require.Empty(t, repo.payments)
}

func TestGetOrCreateAdvanceAccountIsIdempotentUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)

	const callers = 8
	results := make([]AdvanceAccount, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := svc.GetOrCreateAdvanceAccount(ctx, testScope, PartySupplier, 200, "MYR", 2100)
			require.NoError(t, err)
			results[i] = a
		}(i)
	}
	wg.Wait()

	first := results[0]
	require.Equal(t, 0.0, first.BalanceAmount)
	for _, a := range results[1:] {
		require.Equal(t, first.ID, a.ID, "all callers converge on one row")
	}
	require.Len(t, repo.advances, 1)
}

func TestAdjustAdvanceBalanceGuardsNegative(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.GetOrCreateAdvanceAccount(ctx, testScope, PartyCustomer, 100, "MYR", 2150)
	require.NoError(t, err)

	require.NoError(t, svc.AdjustAdvanceBalance(ctx, testScope, PartyCustomer, 100, "MYR", 150))
	require.NoError(t, svc.AdjustAdvanceBalance(ctx, testScope, PartyCustomer, 100, "MYR", -100))

	err = svc.AdjustAdvanceBalance(ctx, testScope, PartyCustomer, 100, "MYR", -100)
	require.Equal(t, shared.CodeValidationFailed, shared.CodeOf(err), "balance cannot go below zero")

	advance, err := svc.GetAdvanceAccount(ctx, testScope, PartyCustomer, 100, "MYR")
	require.NoError(t, err)
	require.Equal(t, 50.0, advance.BalanceAmount)
}
