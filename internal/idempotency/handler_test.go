package idempotency

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/pohlai88/ledgercore/internal/shared"
)

type fakeChecker struct {
	records map[string]*Record
}

func (f fakeChecker) Check(ctx context.Context, scope shared.Scope, key string) (*Record, error) {
	rec, ok := f.records[key]
	if !ok {
		return nil, nil
	}
	return rec, nil
}

func newRequestRouter(checker Checker) http.Handler {
	h := NewHandler(nil, checker)
	r := chi.NewRouter()
	r.Route("/requests", h.MountRoutes)
	return r
}

func scopedRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	scope := shared.Scope{TenantID: 1, CompanyID: 2, UserID: 7, Role: shared.RoleAccountant}
	return req.WithContext(shared.ContextWithScope(req.Context(), scope))
}

func TestHandlerReturnsStoredRecord(t *testing.T) {
	created := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	checker := fakeChecker{records: map[string]*Record{
		"post-jv-001": {
			TenantID:  1,
			Key:       "post-jv-001",
			Response:  json.RawMessage(`{"id":9}`),
			Status:    StatusCompleted,
			CreatedAt: created,
			ExpiresAt: created.Add(DefaultTTL),
		},
	}}
	router := newRequestRouter(checker)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, scopedRequest(http.MethodGet, "/requests/post-jv-001"))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Key      string          `json:"key"`
		Status   string          `json:"status"`
		Response json.RawMessage `json:"response"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "post-jv-001", body.Key)
	require.Equal(t, string(StatusCompleted), body.Status)
	require.JSONEq(t, `{"id":9}`, string(body.Response))
}

func TestHandlerUnknownKeyIs404(t *testing.T) {
	router := newRequestRouter(fakeChecker{records: map[string]*Record{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, scopedRequest(http.MethodGet, "/requests/never-seen"))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerRequiresScope(t *testing.T) {
	router := newRequestRouter(fakeChecker{records: map[string]*Record{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/requests/post-jv-001", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
