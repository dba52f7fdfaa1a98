package journals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// IdempotencyModule scopes Idempotency-Key values used on journal creation.
const IdempotencyModule = "journals.create"

// Handler exposes journal entries over JSON.
type Handler struct {
	service     *Service
	logger      *slog.Logger
	validator   *validator.Validate
	idempotency internalShared.Idempotency
}

func NewHandler(logger *slog.Logger, service *Service, v *validator.Validate, idem internalShared.Idempotency) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if v == nil {
		v = validator.New()
	}
	return &Handler{logger: logger, service: service, validator: v, idempotency: idem}
}

// MountRoutes registers journal routes relative to the mount point.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/statistics", h.Statistics)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/post", h.Post)
	r.Post("/{id}/reverse", h.Reverse)
}

type lineRequest struct {
	AccountID    int64         `json:"account_id"`
	Description  string        `json:"description" validate:"max=500"`
	Debit        shared.Amount `json:"debit"`
	Credit       shared.Amount `json:"credit"`
	DepartmentID *int64        `json:"department_id" validate:"omitempty,gt=0"`
	ProjectID    *int64        `json:"project_id" validate:"omitempty,gt=0"`
	CostCenterID *int64        `json:"cost_center_id" validate:"omitempty,gt=0"`
}

type journalRequest struct {
	Date        string        `json:"date" validate:"required,datetime=2006-01-02"`
	Description string        `json:"description" validate:"max=1000"`
	Type        string        `json:"type" validate:"omitempty,oneof=STANDARD ADJUSTING OPENING CLOSING"`
	Lines       []lineRequest `json:"lines" validate:"dive"`
}

type reverseRequest struct {
	Reason string `json:"reason" validate:"max=500"`
	Date   string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (req journalRequest) draft() (Draft, error) {
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		return Draft{}, shared.Validationf("accounting: invalid date %q", req.Date)
	}
	d := Draft{Date: date, Description: req.Description, Type: EntryType(req.Type)}
	for _, l := range req.Lines {
		d.Lines = append(d.Lines, LineInput{
			AccountID:    l.AccountID,
			Description:  l.Description,
			Debit:        l.Debit,
			Credit:       l.Credit,
			DepartmentID: l.DepartmentID,
			ProjectID:    l.ProjectID,
			CostCenterID: l.CostCenterID,
		})
	}
	return d, nil
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
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
	page, err := httpx.QueryInt(r, "page")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	perPage, err := httpx.QueryInt(r, "per_page")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.List(r.Context(), id.TenantID, ListFilter{
		Status:  JournalStatus(q.Get("status")),
		Type:    EntryType(q.Get("type")),
		Range:   rng,
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		h.fail(w, "list journals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
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
	stats, err := h.service.Statistics(r.Context(), id.TenantID, rng)
	if err != nil {
		h.fail(w, "journal statistics", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, entryID, ok := h.target(w, r)
	if !ok {
		return
	}
	entry, err := h.service.Get(r.Context(), id.TenantID, entryID)
	if err != nil {
		h.fail(w, "get journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req journalRequest
	if err := httpx.DecodeAndValidate(w, r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	draft, err := req.draft()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), id.TenantID, key, IdempotencyModule); err != nil {
			if errors.Is(err, internalShared.ErrIdempotencyConflict) {
				httpx.RespondError(w, err)
				return
			}
			h.fail(w, "idempotency check", shared.Store(err, false))
			return
		}
	}
	entry, err := h.service.Create(r.Context(), id.TenantID, id.ActorID, draft)
	if err != nil {
		if key != "" && h.idempotency != nil {
			// release the key so the client can retry a rejected request
			if derr := h.idempotency.Delete(context.WithoutCancel(r.Context()), id.TenantID, key); derr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		h.fail(w, "create journal", err)
		return
	}
	httpx.Created(w, fmt.Sprintf("%s/%d", strings.TrimSuffix(r.URL.Path, "/"), entry.ID), entry)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, entryID, ok := h.target(w, r)
	if !ok {
		return
	}
	var req journalRequest
	if err := httpx.DecodeAndValidate(w, r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	draft, err := req.draft()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Update(r.Context(), id.TenantID, id.ActorID, entryID, draft)
	if err != nil {
		h.fail(w, "update journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, entryID, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id.TenantID, id.ActorID, entryID); err != nil {
		h.fail(w, "delete journal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	id, entryID, ok := h.target(w, r)
	if !ok {
		return
	}
	entry, err := h.service.Post(r.Context(), id.TenantID, id.ActorID, entryID)
	if err != nil {
		h.fail(w, "post journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, entryID, ok := h.target(w, r)
	if !ok {
		return
	}
	var req reverseRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeAndValidate(w, r, h.validator, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	in := ReverseInput{Reason: req.Reason}
	if req.Date != "" {
		date, err := time.Parse(time.DateOnly, req.Date)
		if err != nil {
			httpx.RespondError(w, shared.Validationf("accounting: invalid date %q", req.Date))
			return
		}
		in.Date = &date
	}
	res, err := h.service.Reverse(r.Context(), id.TenantID, id.ActorID, entryID, in)
	if err != nil {
		h.fail(w, "reverse journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (internalShared.Identity, int64, bool) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return internalShared.Identity{}, 0, false
	}
	entryID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return internalShared.Identity{}, 0, false
	}
	return id, entryID, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
