package handlers

import "net/http"

// Credits reports the caller's balance. First contact creates the account
// with the signup grant, so a brand-new user sees the grant here rather
// than zero.
func (a *App) Credits(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentUserID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if err := a.Ledger.EnsureAccount(r.Context(), ownerID); err != nil {
		a.domainError(w, err)
		return
	}
	balance, err := a.Ledger.Balance(r.Context(), ownerID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"balance": balance})
}
