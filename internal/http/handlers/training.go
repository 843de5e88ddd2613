package handlers

import (
	"encoding/json"
	"net/http"

	"photoai/internal/domain"
	"photoai/internal/submitter"
)

type trainRequest struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Age       int    `json:"age"`
	Ethnicity string `json:"ethnicity"`
	EyeColor  string `json:"eye_color"`
	Bald      bool   `json:"bald"`
	ZipURL    string `json:"zip_url"`
}

// TrainModel accepts a training submission and returns the model id. The
// actual training runs asynchronously; clients poll /models or wait for the
// model to turn Generated.
func (a *App) TrainModel(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentUserID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req trainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	modelID, err := a.Submitter.SubmitTraining(r.Context(), ownerID, submitter.TrainingInput{
		Name:      req.Name,
		Type:      domain.ModelType(req.Type),
		Age:       req.Age,
		Ethnicity: domain.Ethnicity(req.Ethnicity),
		EyeColor:  domain.EyeColor(req.EyeColor),
		Bald:      req.Bald,
		ZipURL:    req.ZipURL,
	})
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]string{"model_id": modelID})
}

// ListModels returns the caller's models with their training status.
func (a *App) ListModels(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentUserID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	models, err := a.Models.ListByOwner(r.Context(), ownerID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(models))
	for _, m := range models {
		items = append(items, map[string]any{
			"id":          m.ID,
			"name":        m.Name,
			"type":        m.Type,
			"status":      m.TrainingStatus,
			"preview_url": m.PreviewURL,
			"created_at":  m.CreatedAt,
			"updated_at":  m.UpdatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"models": items})
}
