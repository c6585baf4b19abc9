package payments

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pohlai88/ledgercore/internal/platform/httpx"
	"github.com/pohlai88/ledgercore/internal/shared"
)

// Handler exposes payment allocation and charge preview endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers payment routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/allocate", h.allocate)
	r.Get("/charges/preview", h.previewCharges)
	r.Get("/advances", h.getAdvance)
	r.Post("/advances", h.getOrCreateAdvance)
}

func (h *Handler) allocate(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Scope", "tenant scope not resolved")
		return
	}
	var req AllocationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Allocate(r.Context(), scope, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) previewCharges(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Scope", "tenant scope not resolved")
		return
	}
	bankAccountID, _ := strconv.ParseInt(r.URL.Query().Get("bankAccountId"), 10, 64)
	amount, _ := strconv.ParseFloat(r.URL.Query().Get("amount"), 64)
	party := PartyType(r.URL.Query().Get("partyType"))
	if bankAccountID == 0 || amount <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "bankAccountId and positive amount required")
		return
	}

	charge, err := h.service.ComputeBankCharge(r.Context(), scope, bankAccountID, amount)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	withholding, err := h.service.ComputeWithholdingTax(r.Context(), scope, amount, party)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"bankCharge":  charge,
		"withholding": withholding,
	})
}

func (h *Handler) getAdvance(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Scope", "tenant scope not resolved")
		return
	}
	partyID, _ := strconv.ParseInt(r.URL.Query().Get("partyId"), 10, 64)
	party := PartyType(r.URL.Query().Get("partyType"))
	currency := r.URL.Query().Get("currency")
	if partyID == 0 || currency == "" {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "partyType, partyId and currency required")
		return
	}
	account, err := h.service.GetAdvanceAccount(r.Context(), scope, party, partyID, currency)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) getOrCreateAdvance(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Scope", "tenant scope not resolved")
		return
	}
	var body struct {
		PartyType        PartyType `json:"partyType" validate:"required,oneof=CUSTOMER SUPPLIER"`
		PartyID          int64     `json:"partyId" validate:"required"`
		Currency         string    `json:"currency" validate:"required,len=3"`
		DefaultAccountID int64     `json:"defaultAccountId" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	account, err := h.service.GetOrCreateAdvanceAccount(r.Context(), scope,
		body.PartyType, body.PartyID, body.Currency, body.DefaultAccountID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}
