package handlers

import (
	"net/http"
	"strconv"
	"strings"
)

const imagePageSize = 10

// ListImages returns the caller's images, optionally filtered by id. Results
// are paged with a fixed window; clients pass offset to walk the set.
func (a *App) ListImages(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentUserID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	var ids []string
	if raw := r.URL.Query().Get("ids"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	images, err := a.Images.ListByOwner(r.Context(), ownerID, ids, offset, imagePageSize)
	if err != nil {
		a.domainError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(images))
	for _, img := range images {
		items = append(items, map[string]any{
			"id":         img.ID,
			"model_id":   img.ModelID,
			"prompt":     img.Prompt,
			"status":     img.Status,
			"image_url":  img.ImageURL,
			"created_at": img.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"images": items, "offset": offset, "limit": imagePageSize})
}
