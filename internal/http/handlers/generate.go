package handlers

import (
	"encoding/json"
	"net/http"
)

type generateRequest struct {
	ModelID string `json:"model_id"`
	Prompt  string `json:"prompt"`
}

type packGenerateRequest struct {
	ModelID string `json:"model_id"`
	PackID  string `json:"pack_id"`
}

// GenerateImage submits one generation job against a trained model.
func (a *App) GenerateImage(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentUserID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	imageID, err := a.Submitter.SubmitGeneration(r.Context(), ownerID, req.ModelID, req.Prompt)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]string{"image_id": imageID})
}

// GenerateFromPack fans a pack out into one generation job per prompt.
func (a *App) GenerateFromPack(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentUserID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req packGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	imageIDs, err := a.Submitter.SubmitPackGeneration(r.Context(), ownerID, req.ModelID, req.PackID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	images := make([]map[string]string, len(imageIDs))
	for i, id := range imageIDs {
		images[i] = map[string]string{"image_id": id}
	}
	a.json(w, http.StatusAccepted, map[string]any{"images": images})
}
