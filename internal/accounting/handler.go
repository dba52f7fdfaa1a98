// Package accounting mounts the ledger HTTP surface.
package accounting

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Handler wires ledger endpoints.
type Handler struct {
	accounts *accounts.Handler
	journals *journals.Handler
	limit    func(http.Handler) http.Handler
}

// NewHandler builds a Handler instance. limit, when set, throttles mutating requests.
func NewHandler(logger *slog.Logger, accountSvc *accounts.Service, journalSvc *journals.Service, idem internalShared.Idempotency, limit func(http.Handler) http.Handler) *Handler {
	v := validator.New()
	return &Handler{
		accounts: accounts.NewHandler(logger, accountSvc, v),
		journals: journals.NewHandler(logger, journalSvc, v, idem),
		limit:    limit,
	}
}

// MountRoutes registers HTTP routes for the ledger module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.limit != nil {
			r.Use(mutating(h.limit))
		}
		r.Route("/accounts", h.accounts.MountRoutes)
		r.Route("/journals", h.journals.MountRoutes)
	})
}

// mutating applies mw to every request except safe reads.
func mutating(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limited := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
			default:
				limited.ServeHTTP(w, r)
			}
		})
	}
}
