package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"photoai/internal/domain"
	"photoai/internal/reconciler"
)

// webhookEnvelope is the callback the fal queue delivers when a request
// settles. The payload shape depends on the model; only the fields we read
// are declared.
type webhookEnvelope struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Error     string `json:"error"`
	Payload   struct {
		TensorPath       string `json:"tensor_path"`
		DiffusersLoraRef struct {
			URL string `json:"url"`
		} `json:"diffusers_lora_file"`
		ImageURL string `json:"image_url"`
		Images   []struct {
			URL string `json:"url"`
		} `json:"images"`
		Detail string `json:"detail"`
	} `json:"payload"`
}

func decodeWebhook(r *http.Request) (*webhookEnvelope, error) {
	var env webhookEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		return nil, err
	}
	if env.RequestID == "" {
		return nil, errors.New("missing request_id")
	}
	return &env, nil
}

// TrainingWebhook resolves a training job from its queue callback. Redelivery
// is expected; a callback for an already settled job answers 200 so the queue
// stops retrying.
func (a *App) TrainingWebhook(w http.ResponseWriter, r *http.Request) {
	env, err := decodeWebhook(r)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid webhook payload")
		return
	}

	tensorPath := env.Payload.TensorPath
	if tensorPath == "" {
		tensorPath = env.Payload.DiffusersLoraRef.URL
	}
	errMessage := env.Error
	if errMessage == "" {
		errMessage = env.Payload.Detail
	}

	err = a.Reconciler.ReconcileTraining(r.Context(), env.RequestID, reconciler.TrainingOutcome{
		Status:     env.Status,
		TensorPath: tensorPath,
		ErrMessage: errMessage,
	})
	a.webhookResult(w, env.RequestID, err)
}

// ImageWebhook resolves a generation job from its queue callback.
func (a *App) ImageWebhook(w http.ResponseWriter, r *http.Request) {
	env, err := decodeWebhook(r)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid webhook payload")
		return
	}

	imageURL := env.Payload.ImageURL
	if imageURL == "" && len(env.Payload.Images) > 0 {
		imageURL = env.Payload.Images[0].URL
	}
	errMessage := env.Error
	if errMessage == "" {
		errMessage = env.Payload.Detail
	}

	err = a.Reconciler.ReconcileGeneration(r.Context(), env.RequestID, reconciler.GenerationOutcome{
		Status:     env.Status,
		ImageURL:   imageURL,
		ErrMessage: errMessage,
	})
	a.webhookResult(w, env.RequestID, err)
}

// webhookResult maps a reconcile outcome to the status the queue expects.
// An insufficient balance answers 402 so the queue redelivers once the
// account is topped up; the job stays Pending until then.
func (a *App) webhookResult(w http.ResponseWriter, trackingID string, err error) {
	switch {
	case err == nil:
		a.json(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "unknown tracking id")
	case errors.Is(err, domain.ErrInsufficientCredits):
		a.error(w, http.StatusPaymentRequired, "insufficient_credits", "not enough credits to settle this job")
	default:
		a.Logger.Error().Err(err).Str("tracking_id", trackingID).Msg("webhook: reconcile failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
