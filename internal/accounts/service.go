package accounts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pohlai88/ledgercore/internal/platform/cache"
	"github.com/pohlai88/ledgercore/internal/shared"
)

// Service resolves and validates chart-of-accounts entries for all
// posting paths.
type Service struct {
	repo   Repository
	cache  *cache.ReadCache
	logger *slog.Logger
}

// NewService constructs the directory service. cache may be nil.
func NewService(repo Repository, readCache *cache.ReadCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: readCache, logger: logger}
}

// List returns every active account within scope. Listing is read-mostly
// and served through the TTL cache; correctness-critical callers use
// ResolveAccounts, which always reads the store.
func (s *Service) List(ctx context.Context, scope shared.Scope) ([]Account, error) {
	key, err := s.cache.BuildKey(ctx, scope.TenantID, scope.CompanyID, "accounts", "active")
	if err != nil {
		return nil, err
	}
	var out []Account
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.repo.ListActive(ctx, scope)
	})
	return out, err
}

// ResolveAccounts validates that every id belongs to an active account
// within scope and returns the accounts. The first missing or inactive id
// fails the whole call.
func (s *Service) ResolveAccounts(ctx context.Context, scope shared.Scope, ids []int64) ([]Account, error) {
	found, err := s.repo.GetByIDs(ctx, scope, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]Account, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}
	out := make([]Account, 0, len(ids))
	for _, id := range ids {
		a, ok := byID[id]
		if !ok || !a.IsActive {
			return nil, shared.NewError(shared.CodeAccountNotFound,
				fmt.Sprintf("account %d is not an active account in this company", id)).
				WithDetail("accountId", id)
		}
		out = append(out, a)
	}
	return out, nil
}

// ResolveOrCreateDefaultAccount returns the configured default account for
// kind. Resolution order: saved company setting, then code/name pattern
// search, then creation of a top-level fallback account whose id is
// persisted as the new setting. The whole sequence runs in one transaction
// and the setting upsert is conflict-safe, so concurrent callers for the
// same company converge on a single account.
func (s *Service) ResolveOrCreateDefaultAccount(ctx context.Context, scope shared.Scope, kind DefaultKind) (Account, error) {
	spec, ok := fallbacks[kind]
	if !ok {
		return Account{}, shared.NewError(shared.CodeValidationFailed,
			fmt.Sprintf("unknown default account kind %q", kind))
	}

	var result Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if accountID, found, err := tx.GetSetting(ctx, scope, spec.SettingKey); err != nil {
			return err
		} else if found {
			account, err := tx.GetAccount(ctx, scope, accountID)
			if err != nil {
				return err
			}
			if account != nil && account.IsActive {
				result = *account
				return nil
			}
			// Stale setting pointing at a removed account: fall through.
		}

		if match, err := tx.FindByCodeOrName(ctx, scope, spec.Code, spec.NamePattern); err != nil {
			return err
		} else if match != nil {
			if err := tx.SaveSetting(ctx, scope, spec.SettingKey, match.ID); err != nil {
				return err
			}
			result = *match
			return nil
		}

		created, err := tx.InsertAccount(ctx, scope, CreateAccountInput{
			Code:     spec.Code,
			Name:     spec.Name,
			Type:     spec.Type,
			Currency: "USD",
		}, 0)
		if err != nil {
			return err
		}
		if err := tx.SaveSetting(ctx, scope, spec.SettingKey, created.ID); err != nil {
			return err
		}
		s.logger.Info("created fallback default account",
			slog.String("kind", string(kind)),
			slog.Int64("accountId", created.ID),
			slog.Int64("companyId", scope.CompanyID))
		result = created
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return result, nil
}

// Create inserts a new account, validating the parent chain is acyclic and
// deriving the level from the parent.
func (s *Service) Create(ctx context.Context, scope shared.Scope, in CreateAccountInput) (Account, error) {
	var result Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		level := 0
		if in.ParentID != nil {
			seen := map[int64]bool{}
			cursor := *in.ParentID
			for {
				if seen[cursor] {
					return shared.NewError(shared.CodeValidationFailed,
						"account parent chain contains a cycle").
						WithDetail("parentId", *in.ParentID)
				}
				seen[cursor] = true
				parent, err := tx.GetAccount(ctx, scope, cursor)
				if err != nil {
					return err
				}
				if parent == nil {
					return shared.NewError(shared.CodeAccountNotFound,
						fmt.Sprintf("parent account %d not found", cursor)).
						WithDetail("accountId", cursor)
				}
				if parent.ParentID == nil {
					break
				}
				cursor = *parent.ParentID
			}
			level = len(seen)
		}
		created, err := tx.InsertAccount(ctx, scope, in, level)
		if err != nil {
			return err
		}
		result = created
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	if err := s.cache.Bump(ctx, scope.TenantID, scope.CompanyID); err != nil {
		s.logger.Warn("bump account cache", slog.Any("error", err))
	}
	return result, nil
}
