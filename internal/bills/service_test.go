package bills

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pohlai88/ledgercore/internal/accounts"
	"github.com/pohlai88/ledgercore/internal/shared"
)

type memoryRepo struct {
	bills     map[int64]Bill
	lines     map[int64][]Line
	suppliers map[int64]bool
	nextID    int64
}

type memoryTx struct {
	repo  *memoryRepo
	bills map[int64]Bill
	lines map[int64][]Line
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		bills:     make(map[int64]Bill),
		lines:     make(map[int64][]Line),
		suppliers: map[int64]bool{200: true},
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r, bills: make(map[int64]Bill), lines: make(map[int64][]Line)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, b := range tx.bills {
		r.bills[id] = b
	}
	for id, ls := range tx.lines {
		r.lines[id] = ls
	}
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, scope shared.Scope, id int64) (Bill, error) {
	b, ok := r.bills[id]
	if !ok || b.TenantID != scope.TenantID || b.CompanyID != scope.CompanyID {
		return Bill{}, shared.NewError(shared.CodeBillNotFound, "bill not found")
	}
	b.Lines = append([]Line(nil), r.lines[id]...)
	return b, nil
}

func (r *memoryRepo) List(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Bill, int, error) {
	var matched []Bill
	for _, b := range r.bills {
		if b.TenantID != scope.TenantID || b.CompanyID != scope.CompanyID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		matched = append(matched, b)
	}
	return matched, len(matched), nil
}

func (tx *memoryTx) SupplierExists(ctx context.Context, scope shared.Scope, supplierID int64) (bool, error) {
	return tx.repo.suppliers[supplierID], nil
}

func (tx *memoryTx) InsertBill(ctx context.Context, scope shared.Scope, in CreateInput, subtotal, tax float64, now time.Time) (Bill, error) {
	for _, b := range tx.repo.bills {
		if b.TenantID == scope.TenantID && b.CompanyID == scope.CompanyID && b.BillNumber == in.BillNumber {
			return Bill{}, shared.NewError(shared.CodeDuplicateBillNumber, "bill number exists")
		}
	}
	tx.repo.nextID++
	total := subtotal + tax
	b := Bill{
		ID:            tx.repo.nextID,
		TenantID:      scope.TenantID,
		CompanyID:     scope.CompanyID,
		SupplierID:    in.SupplierID,
		BillNumber:    in.BillNumber,
		BillDate:      in.BillDate,
		Currency:      in.Currency,
		ExchangeRate:  1,
		Subtotal:      subtotal,
		TaxAmount:     tax,
		TotalAmount:   total,
		BalanceAmount: total,
		Status:        StatusDraft,
		CreatedBy:     scope.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	tx.bills[b.ID] = b
	return b, nil
}

func (tx *memoryTx) InsertLine(ctx context.Context, billID int64, lineNumber int, line LineInput) (Line, error) {
	l := Line{
		ID:               int64(lineNumber),
		BillID:           billID,
		LineNumber:       lineNumber,
		Description:      line.Description,
		Quantity:         line.Quantity,
		UnitPrice:        line.UnitPrice,
		LineAmount:       line.LineAmount,
		TaxCode:          line.TaxCode,
		TaxRate:          line.TaxRate,
		TaxAmount:        line.TaxAmount,
		ExpenseAccountID: line.ExpenseAccountID,
	}
	tx.lines[billID] = append(tx.lines[billID], l)
	return l, nil
}

func (tx *memoryTx) MarkPosted(ctx context.Context, scope shared.Scope, id, journalID, postedBy int64, now time.Time) (Bill, error) {
	b, ok := tx.repo.bills[id]
	if !ok || b.TenantID != scope.TenantID || b.CompanyID != scope.CompanyID ||
		b.JournalID != nil || b.Status != StatusDraft {
		return Bill{}, shared.NewError(shared.CodeBillNotFound, "postable bill not found")
	}
	b.JournalID = &journalID
	b.Status = StatusPosted
	b.PostedBy = &postedBy
	b.PostedAt = &now
	tx.bills[id] = b
	return b, nil
}

func (tx *memoryTx) ApplyPayment(ctx context.Context, scope shared.Scope, id int64, amount float64) (Bill, error) {
	b, ok := tx.repo.bills[id]
	if !ok || b.TenantID != scope.TenantID || b.CompanyID != scope.CompanyID || b.BalanceAmount < amount {
		return Bill{}, shared.NewError(shared.CodeValidationFailed, "payment exceeds bill balance or bill not found")
	}
	b.PaidAmount += amount
	b.BalanceAmount -= amount
	if b.BalanceAmount < 0.005 {
		b.Status = StatusPaid
	}
	tx.bills[id] = b
	return b, nil
}

type stubDirectory struct{}

func (stubDirectory) ResolveAccounts(ctx context.Context, scope shared.Scope, ids []int64) ([]accounts.Account, error) {
	out := make([]accounts.Account, 0, len(ids))
	for _, id := range ids {
		out = append(out, accounts.Account{ID: id, IsActive: true})
	}
	return out, nil
}

var testScope = shared.Scope{TenantID: 1, CompanyID: 2, UserID: 7, Role: shared.RoleAccountant}

func validInput(number string) CreateInput {
	return CreateInput{
		SupplierID: 200,
		BillNumber: number,
		BillDate:   time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC),
		Currency:   "MYR",
		Lines: []LineInput{
			{Description: "Office rent", Quantity: 1, UnitPrice: 1500, LineAmount: 1500, ExpenseAccountID: 6100},
			{Description: "Utilities", Quantity: 1, UnitPrice: 250, LineAmount: 250, TaxRate: 0.06, TaxAmount: 15, ExpenseAccountID: 6200},
		},
	}
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, stubDirectory{}, nil)
	svc.WithNow(func() time.Time { return time.Date(2026, 4, 5, 9, 0, 0, 0, time.UTC) })
	return svc
}

func TestCreateDerivesTotals(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo)

	bill, err := svc.Create(ctx, testScope, validInput("BILL-001"))
	require.NoError(t, err)
	require.Equal(t, 1750.0, bill.Subtotal)
	require.Equal(t, 15.0, bill.TaxAmount)
	require.Equal(t, bill.Subtotal+bill.TaxAmount, bill.TotalAmount)
	require.Equal(t, bill.TotalAmount, bill.BalanceAmount)
	require.Len(t, bill.Lines, 2)
}

func TestCreateRejectsDuplicateNumber(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.Create(ctx, testScope, validInput("BILL-002"))
	require.NoError(t, err)

	_, err = svc.Create(ctx, testScope, validInput("BILL-002"))
	require.Equal(t, shared.CodeDuplicateBillNumber, shared.CodeOf(err))
	require.Len(t, repo.bills, 1)
}

func TestCreateRejectsUnknownSupplier(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo)

	in := validInput("BILL-003")
	in.SupplierID = 999
	_, err := svc.Create(ctx, testScope, in)
	require.Equal(t, shared.CodeSupplierNotFound, shared.CodeOf(err))
	require.Empty(t, repo.bills)
}

func TestPostDocumentOneWay(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo)

	bill, err := svc.Create(ctx, testScope, validInput("BILL-004"))
	require.NoError(t, err)

	posted, err := svc.PostDocument(ctx, testScope, bill.ID, 77)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)
	require.Equal(t, int64(77), *posted.JournalID)

	_, err = svc.PostDocument(ctx, testScope, bill.ID, 78)
	require.Equal(t, shared.CodeBillNotFound, shared.CodeOf(err))
}

func TestRecordPaymentGuardsBalance(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo)

	bill, err := svc.Create(ctx, testScope, validInput("BILL-005"))
	require.NoError(t, err)

	paid, err := svc.RecordPayment(ctx, testScope, bill.ID, bill.TotalAmount)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)
	require.Equal(t, 0.0, paid.BalanceAmount)

	_, err = svc.RecordPayment(ctx, testScope, bill.ID, 1)
	require.Equal(t, shared.CodeValidationFailed, shared.CodeOf(err))
}
