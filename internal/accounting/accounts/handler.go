package accounts

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler exposes the chart of accounts over JSON.
type Handler struct {
	service   *Service
	logger    *slog.Logger
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, v *validator.Validate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if v == nil {
		v = validator.New()
	}
	return &Handler{logger: logger, service: service, validator: v}
}

// MountRoutes registers account routes relative to the mount point.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/tree", h.Tree)
	r.Post("/seed", h.Seed)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/balance", h.Balance)
}

type createAccountRequest struct {
	Code          string `json:"code" validate:"required,max=32"`
	Name          string `json:"name" validate:"required,max=255"`
	Type          string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	Category      string `json:"category" validate:"max=64"`
	NormalBalance string `json:"normal_balance" validate:"omitempty,oneof=DEBIT CREDIT"`
	ParentID      *int64 `json:"parent_id" validate:"omitempty,gt=0"`
}

type updateAccountRequest struct {
	Code          *string `json:"code" validate:"omitempty,min=1,max=32"`
	Name          *string `json:"name" validate:"omitempty,min=1,max=255"`
	Category      *string `json:"category" validate:"omitempty,max=64"`
	ParentID      *int64  `json:"parent_id" validate:"omitempty,gt=0"`
	ClearParent   bool    `json:"clear_parent"`
	IsActive      *bool   `json:"is_active"`
	Type          *string `json:"type"`
	NormalBalance *string `json:"normal_balance"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accounts, err := h.service.List(r.Context(), id.TenantID)
	if err != nil {
		h.fail(w, "list accounts", err)
		return
	}
	if accounts == nil {
		accounts = []Account{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	roots, err := h.service.Hierarchy(r.Context(), id.TenantID)
	if err != nil {
		h.fail(w, "account hierarchy", err)
		return
	}
	if roots == nil {
		roots = []*Node{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": roots})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accountID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	acc, err := h.service.Get(r.Context(), id.TenantID, accountID)
	if err != nil {
		h.fail(w, "get account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, acc)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createAccountRequest
	if err := httpx.DecodeAndValidate(w, r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	acc, err := h.service.Create(r.Context(), id.TenantID, id.ActorID, CreateInput{
		Code:          req.Code,
		Name:          req.Name,
		Type:          AccountType(req.Type),
		Category:      req.Category,
		NormalBalance: NormalBalance(req.NormalBalance),
		ParentID:      req.ParentID,
	})
	if err != nil {
		h.fail(w, "create account", err)
		return
	}
	httpx.Created(w, fmt.Sprintf("%s/%d", strings.TrimSuffix(r.URL.Path, "/"), acc.ID), acc)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accountID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateAccountRequest
	if err := httpx.DecodeAndValidate(w, r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := UpdateInput{
		Code:        req.Code,
		Name:        req.Name,
		Category:    req.Category,
		ParentID:    req.ParentID,
		ClearParent: req.ClearParent,
		IsActive:    req.IsActive,
	}
	if req.Type != nil {
		t := AccountType(*req.Type)
		in.Type = &t
	}
	if req.NormalBalance != nil {
		nb := NormalBalance(*req.NormalBalance)
		in.NormalBalance = &nb
	}
	acc, err := h.service.Update(r.Context(), id.TenantID, id.ActorID, accountID, in)
	if err != nil {
		h.fail(w, "update account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, acc)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accountID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id.TenantID, id.ActorID, accountID); err != nil {
		h.fail(w, "delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.SeedDefaults(r.Context(), id.TenantID, id.ActorID)
	if err != nil {
		h.fail(w, "seed accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accountID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	rng, err := shared.ParseDateRange(q.Get("from"), q.Get("to"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bal, err := h.service.Balance(r.Context(), id.TenantID, accountID, rng)
	if err != nil {
		h.fail(w, "account balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bal)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
