package idempotency

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pohlai88/ledgercore/internal/platform/httpx"
	"github.com/pohlai88/ledgercore/internal/shared"
)

// Checker looks up the stored outcome of a keyed request.
type Checker interface {
	Check(ctx context.Context, scope shared.Scope, key string) (*Record, error)
}

// Handler exposes idempotency record lookups so clients can inspect the
// outcome of a keyed request before retrying it.
type Handler struct {
	logger *slog.Logger
	store  Checker
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, store Checker) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, store: store}
}

// MountRoutes registers idempotency routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{key}", h.get)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Scope", "tenant scope not resolved")
		return
	}
	key := chi.URLParam(r, "key")
	rec, err := h.store.Check(r.Context(), scope, key)
	if err != nil {
		h.logger.Error("check idempotency record", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if rec == nil {
		httpx.Problem(w, http.StatusNotFound, "Unknown Key", "no record for this idempotency key")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"key":       rec.Key,
		"status":    rec.Status,
		"response":  rec.Response,
		"createdAt": rec.CreatedAt.Format(time.RFC3339),
		"expiresAt": rec.ExpiresAt.Format(time.RFC3339),
	})
}
