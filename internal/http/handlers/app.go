package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"photoai/internal/domain"
	"photoai/internal/ledger"
	"photoai/internal/middleware"
	"photoai/internal/packs"
	"photoai/internal/reconciler"
	"photoai/internal/storage"
	"photoai/internal/submitter"
)

// App carries the wired services every handler needs.
type App struct {
	Logger     zerolog.Logger
	Submitter  *submitter.Service
	Reconciler *reconciler.Service
	Ledger     *ledger.Service
	Packs      *packs.Catalog
	Models     domain.ModelRepository
	Images     domain.ImageRepository
	Uploads    *storage.SupabaseStore
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}

// domainError maps a domain error to its HTTP response. The split between
// 4xx ("will never succeed") and 502 ("retry later") lets clients tell the
// two apart.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrModelNotReady):
		a.error(w, http.StatusConflict, "model_not_ready", err.Error())
	case errors.Is(err, domain.ErrInsufficientCredits):
		a.error(w, http.StatusPaymentRequired, "insufficient_credits", "not enough credits for this operation")
	case errors.Is(err, domain.ErrExecutor):
		a.error(w, http.StatusBadGateway, "executor_unavailable", "the generation service rejected the request, try again later")
	default:
		a.Logger.Error().Err(err).Msg("handler: internal error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
