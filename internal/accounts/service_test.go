package accounts

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pohlai88/ledgercore/internal/shared"
)

type memoryRepo struct {
	accounts map[int64]Account
	settings map[string]int64
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		accounts: make(map[int64]Account),
		settings: make(map[string]int64),
	}
}

func (r *memoryRepo) ListActive(ctx context.Context, scope shared.Scope) ([]Account, error) {
	var out []Account
	for _, a := range r.accounts {
		if a.TenantID == scope.TenantID && a.CompanyID == scope.CompanyID && a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetByIDs(ctx context.Context, scope shared.Scope, ids []int64) ([]Account, error) {
	var out []Account
	for _, id := range ids {
		a, ok := r.accounts[id]
		if ok && a.TenantID == scope.TenantID && a.CompanyID == scope.CompanyID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func settingKey(scope shared.Scope, key string) string {
	return fmt.Sprintf("%d/%d/%s", scope.TenantID, scope.CompanyID, key)
}

func (tx *memoryTx) GetSetting(ctx context.Context, scope shared.Scope, key string) (int64, bool, error) {
	id, ok := tx.repo.settings[settingKey(scope, key)]
	return id, ok, nil
}

func (tx *memoryTx) SaveSetting(ctx context.Context, scope shared.Scope, key string, accountID int64) error {
	k := settingKey(scope, key)
	if _, exists := tx.repo.settings[k]; !exists {
		tx.repo.settings[k] = accountID
	}
	return nil
}

func (tx *memoryTx) FindByCodeOrName(ctx context.Context, scope shared.Scope, code, namePattern string) (*Account, error) {
	for _, a := range tx.repo.accounts {
		if a.TenantID != scope.TenantID || a.CompanyID != scope.CompanyID || !a.IsActive {
			continue
		}
		if a.Code == code {
			match := a
			return &match, nil
		}
	}
	return nil, nil
}

func (tx *memoryTx) InsertAccount(ctx context.Context, scope shared.Scope, in CreateAccountInput, level int) (Account, error) {
	tx.repo.nextID++
	now := time.Now()
	a := Account{
		ID:        tx.repo.nextID,
		TenantID:  scope.TenantID,
		CompanyID: scope.CompanyID,
		Code:      in.Code,
		Name:      in.Name,
		Type:      in.Type,
		Currency:  in.Currency,
		IsActive:  true,
		Level:     level,
		ParentID:  in.ParentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx.repo.accounts[a.ID] = a
	return a, nil
}

func (tx *memoryTx) GetAccount(ctx context.Context, scope shared.Scope, id int64) (*Account, error) {
	a, ok := tx.repo.accounts[id]
	if !ok || a.TenantID != scope.TenantID || a.CompanyID != scope.CompanyID {
		return nil, nil
	}
	match := a
	return &match, nil
}

var testScope = shared.Scope{TenantID: 1, CompanyID: 2, UserID: 7, Role: shared.RoleAccountant}

func TestResolveAccountsRejectsMissingAndInactive(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	repo.accounts[1] = Account{ID: 1, TenantID: 1, CompanyID: 2, Code: "1000", IsActive: true}
	repo.accounts[2] = Account{ID: 2, TenantID: 1, CompanyID: 2, Code: "1001", IsActive: false}
	svc := NewService(repo, nil, nil)

	resolved, err := svc.ResolveAccounts(ctx, testScope, []int64{1})
	require.NoError(t, err)
	require.Len(t, resolved, 1)

	_, err = svc.ResolveAccounts(ctx, testScope, []int64{1, 2})
	require.True(t, errors.Is(err, shared.NewError(shared.CodeAccountNotFound, "")))

	_, err = svc.ResolveAccounts(ctx, testScope, []int64{99})
	require.Error(t, err)
	var typed *shared.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, int64(99), typed.Details["accountId"])
}

func TestResolveAccountsIgnoresOtherTenants(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	repo.accounts[1] = Account{ID: 1, TenantID: 9, CompanyID: 2, Code: "1000", IsActive: true}
	svc := NewService(repo, nil, nil)

	_, err := svc.ResolveAccounts(ctx, testScope, []int64{1})
	require.Equal(t, shared.CodeAccountNotFound, shared.CodeOf(err))
}

func TestResolveOrCreateDefaultAccountFallback(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	created, err := svc.ResolveOrCreateDefaultAccount(ctx, testScope, DefaultReceivable)
	require.NoError(t, err)
	require.Equal(t, "1200", created.Code)
	require.Equal(t, TypeAsset, created.Type)
	require.Equal(t, 0, created.Level)

	// Second call resolves via the persisted setting, not a new account.
	again, err := svc.ResolveOrCreateDefaultAccount(ctx, testScope, DefaultReceivable)
	require.NoError(t, err)
	require.Equal(t, created.ID, again.ID)
	require.Len(t, repo.accounts, 1)
}

func TestResolveOrCreateDefaultAccountPrefersExistingCode(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	repo.accounts[5] = Account{ID: 5, TenantID: 1, CompanyID: 2, Code: "1200", Name: "Trade Debtors", Type: TypeAsset, IsActive: true}
	svc := NewService(repo, nil, nil)

	resolved, err := svc.ResolveOrCreateDefaultAccount(ctx, testScope, DefaultReceivable)
	require.NoError(t, err)
	require.Equal(t, int64(5), resolved.ID)
	require.Len(t, repo.accounts, 1, "no new account created")
	require.Equal(t, int64(5), repo.settings[settingKey(testScope, "default_receivable_account")])
}

func TestCreateRejectsParentCycle(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	parentOfOne := int64(2)
	parentOfTwo := int64(1)
	repo.accounts[1] = Account{ID: 1, TenantID: 1, CompanyID: 2, Code: "A", IsActive: true, ParentID: &parentOfOne}
	repo.accounts[2] = Account{ID: 2, TenantID: 1, CompanyID: 2, Code: "B", IsActive: true, ParentID: &parentOfTwo}
	svc := NewService(repo, nil, nil)

	parent := int64(1)
	_, err := svc.Create(ctx, testScope, CreateAccountInput{
		Code: "C", Name: "Child", Type: TypeAsset, Currency: "USD", ParentID: &parent,
	})
	require.Equal(t, shared.CodeValidationFailed, shared.CodeOf(err))
}

func TestCreateDerivesLevelFromParentChain(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	repo.accounts[1] = Account{ID: 1, TenantID: 1, CompanyID: 2, Code: "1000", IsActive: true}
	svc := NewService(repo, nil, nil)

	parent := int64(1)
	child, err := svc.Create(ctx, testScope, CreateAccountInput{
		Code: "1010", Name: "Cash on Hand", Type: TypeAsset, Currency: "USD", ParentID: &parent,
	})
	require.NoError(t, err)
	require.Equal(t, 1, child.Level)
}
