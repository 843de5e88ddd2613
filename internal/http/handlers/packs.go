package handlers

import "net/http"

// ListPacks returns the pack catalog with display titles and prompt counts.
func (a *App) ListPacks(w http.ResponseWriter, r *http.Request) {
	entries, err := a.Packs.List(r.Context())
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"packs": entries})
}
