package shared

import "context"

// UserRole enumerates caller roles resolved by the surrounding service layer.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleAccountant UserRole = "ACCOUNTANT"
	RoleViewer     UserRole = "VIEWER"
)

// Scope carries the tenant, company and user context an operation executes
// under. It is supplied by the caller on every call and never inferred;
// every repository query filters on TenantID and CompanyID explicitly.
type Scope struct {
	TenantID  int64
	CompanyID int64
	UserID    int64
	Role      UserRole
}

// Valid reports whether the scope identifies a tenant and company.
func (s Scope) Valid() bool {
	return s.TenantID > 0 && s.CompanyID > 0
}

type scopeContextKey struct{}

// ContextWithScope stores the resolved scope in context.
func ContextWithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFromContext extracts the scope from context.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	scope, ok := ctx.Value(scopeContextKey{}).(Scope)
	return scope, ok
}
