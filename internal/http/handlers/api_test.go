package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"photoai/internal/domain"
)

const trainBody = `{"name":"alex","type":"Man","age":30,"ethnicity":"White","eye_color":"Blue","zip_url":"https://cdn.test/photos.zip"}`

func trainedModel(t *testing.T, e *env, ownerID string) *domain.TrainedModel {
	t.Helper()
	resp, body, err := e.do(http.MethodPost, "/ai/training", ownerID, trainBody)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("training submit: status %d body %s", resp.StatusCode, body)
	}
	var out struct {
		ModelID string `json:"model_id"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatal(err)
	}
	model, err := e.models.GetByID(context.Background(), out.ModelID)
	if err != nil {
		t.Fatal(err)
	}
	return model
}

func completeTraining(t *testing.T, e *env, model *domain.TrainedModel) *domain.TrainedModel {
	t.Helper()
	webhook := fmt.Sprintf(`{"request_id":%q,"status":"OK","payload":{"tensor_path":"s3://tensors/alex"}}`, model.TrackingID)
	resp, body, err := e.do(http.MethodPost, "/fal-ai/webhook/train", "", webhook)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("training webhook: status %d body %s", resp.StatusCode, body)
	}
	got, err := e.models.GetByID(context.Background(), model.ID)
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func TestTrainingRequiresAuth(t *testing.T) {
	e := newEnv()
	defer e.close()

	resp, _, err := e.do(http.MethodPost, "/ai/training", "", trainBody)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestTrainingSubmitIsNotCharged(t *testing.T) {
	e := newEnv()
	defer e.close()
	e.credits.balances["u1"] = 50

	model := trainedModel(t, e, "u1")
	if model.TrainingStatus != domain.JobPending {
		t.Fatalf("status = %s, want Pending", model.TrainingStatus)
	}
	if bal := e.credits.balances["u1"]; bal != 50 {
		t.Fatalf("balance = %d, want 50", bal)
	}
}

func TestTrainingWebhookChargesOnce(t *testing.T) {
	e := newEnv()
	defer e.close()
	e.credits.balances["u1"] = 50

	model := trainedModel(t, e, "u1")
	got := completeTraining(t, e, model)
	if got.TrainingStatus != domain.JobGenerated {
		t.Fatalf("status = %s, want Generated", got.TrainingStatus)
	}
	if got.TensorPath != "s3://tensors/alex" {
		t.Fatalf("tensor path = %q", got.TensorPath)
	}
	if got.PreviewURL == "" {
		t.Fatal("preview url not set")
	}
	if bal := e.credits.balances["u1"]; bal != 50-testTrainCost {
		t.Fatalf("balance = %d, want %d", bal, 50-testTrainCost)
	}

	// Redelivery answers 200 and moves no credits.
	completeTraining(t, e, model)
	if bal := e.credits.balances["u1"]; bal != 50-testTrainCost {
		t.Fatalf("balance after redelivery = %d, want %d", bal, 50-testTrainCost)
	}
}

func TestTrainingWebhookInsufficientCredits(t *testing.T) {
	e := newEnv()
	defer e.close()
	e.credits.balances["u1"] = 50

	model := trainedModel(t, e, "u1")
	e.credits.balances["u1"] = testTrainCost - 1

	webhook := fmt.Sprintf(`{"request_id":%q,"status":"OK","payload":{"tensor_path":"s3://tensors/alex"}}`, model.TrackingID)
	resp, _, err := e.do(http.MethodPost, "/fal-ai/webhook/train", "", webhook)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", resp.StatusCode)
	}
	got, err := e.models.GetByID(context.Background(), model.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TrainingStatus != domain.JobPending {
		t.Fatalf("status = %s, want Pending", got.TrainingStatus)
	}
}

func TestWebhookUnknownTrackingID(t *testing.T) {
	e := newEnv()
	defer e.close()

	resp, _, err := e.do(http.MethodPost, "/fal-ai/webhook/train", "", `{"request_id":"nope","status":"OK"}`)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGenerateDebitsAndRecordsPending(t *testing.T) {
	e := newEnv()
	defer e.close()
	e.credits.balances["u1"] = 50

	model := completeTraining(t, e, trainedModel(t, e, "u1"))
	before := e.credits.balances["u1"]

	body := fmt.Sprintf(`{"model_id":%q,"prompt":"on a rooftop at dusk"}`, model.ID)
	resp, raw, err := e.do(http.MethodPost, "/ai/generate", "u1", body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d body %s", resp.StatusCode, raw)
	}
	if bal := e.credits.balances["u1"]; bal != before-testImageCost {
		t.Fatalf("balance = %d, want %d", bal, before-testImageCost)
	}

	var out struct {
		ImageID string `json:"image_id"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatal(err)
	}
	img := e.images.images[out.ImageID]
	if img == nil || img.Status != domain.JobPending {
		t.Fatalf("image not recorded Pending: %+v", img)
	}
}

func TestGenerateAgainstPendingModelConflicts(t *testing.T) {
	e := newEnv()
	defer e.close()
	e.credits.balances["u1"] = 50

	model := trainedModel(t, e, "u1")
	body := fmt.Sprintf(`{"model_id":%q,"prompt":"portrait"}`, model.ID)
	resp, _, err := e.do(http.MethodPost, "/ai/generate", "u1", body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestGenerateInsufficientCredits(t *testing.T) {
	e := newEnv()
	defer e.close()
	e.credits.balances["u1"] = 50

	model := completeTraining(t, e, trainedModel(t, e, "u1"))
	e.credits.balances["u1"] = 0

	body := fmt.Sprintf(`{"model_id":%q,"prompt":"portrait"}`, model.ID)
	resp, _, err := e.do(http.MethodPost, "/ai/generate", "u1", body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", resp.StatusCode)
	}
}

func TestImageWebhookSettlesGeneration(t *testing.T) {
	e := newEnv()
	defer e.close()
	e.credits.balances["u1"] = 50

	model := completeTraining(t, e, trainedModel(t, e, "u1"))
	body := fmt.Sprintf(`{"model_id":%q,"prompt":"portrait"}`, model.ID)
	_, raw, err := e.do(http.MethodPost, "/ai/generate", "u1", body)
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		ImageID string `json:"image_id"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatal(err)
	}
	img := e.images.images[out.ImageID]

	webhook := fmt.Sprintf(`{"request_id":%q,"status":"OK","payload":{"images":[{"url":"https://cdn.test/img.png"}]}}`, img.TrackingID)
	resp, _, err := e.do(http.MethodPost, "/fal-ai/webhook/image", "", webhook)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	got := e.images.images[out.ImageID]
	if got.Status != domain.JobGenerated || got.ImageURL != "https://cdn.test/img.png" {
		t.Fatalf("image = %+v", got)
	}
}

func TestImageWebhookErrorDropsURL(t *testing.T) {
	e := newEnv()
	defer e.close()
	e.credits.balances["u1"] = 50

	model := completeTraining(t, e, trainedModel(t, e, "u1"))
	body := fmt.Sprintf(`{"model_id":%q,"prompt":"portrait"}`, model.ID)
	_, raw, err := e.do(http.MethodPost, "/ai/generate", "u1", body)
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		ImageID string `json:"image_id"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatal(err)
	}
	img := e.images.images[out.ImageID]

	webhook := fmt.Sprintf(`{"request_id":%q,"status":"ERROR","error":"nsfw filter","payload":{"images":[{"url":"https://cdn.test/partial.png"}]}}`, img.TrackingID)
	resp, _, err := e.do(http.MethodPost, "/fal-ai/webhook/image", "", webhook)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	got := e.images.images[out.ImageID]
	if got.Status != domain.JobFailed {
		t.Fatalf("status = %s, want Failed", got.Status)
	}
	if got.ImageURL != "" {
		t.Fatalf("image url = %q, want empty", got.ImageURL)
	}
}

func TestPackGenerateFansOut(t *testing.T) {
	e := newEnv()
	defer e.close()
	e.credits.balances["u1"] = 50

	model := completeTraining(t, e, trainedModel(t, e, "u1"))
	before := e.credits.balances["u1"]

	body := fmt.Sprintf(`{"model_id":%q,"pack_id":"pk1"}`, model.ID)
	resp, raw, err := e.do(http.MethodPost, "/pack/generate", "u1", body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d body %s", resp.StatusCode, raw)
	}
	var out struct {
		Images []struct {
			ImageID string `json:"image_id"`
		} `json:"images"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Images) != 2 {
		t.Fatalf("images = %d, want 2", len(out.Images))
	}
	if bal := e.credits.balances["u1"]; bal != before-2*testImageCost {
		t.Fatalf("balance = %d, want %d", bal, before-2*testImageCost)
	}
}

func TestListImagesIsOwnerScoped(t *testing.T) {
	e := newEnv()
	defer e.close()
	e.credits.balances["u1"] = 50
	e.credits.balances["u2"] = 50

	for _, owner := range []string{"u1", "u2"} {
		model := completeTraining(t, e, trainedModel(t, e, owner))
		body := fmt.Sprintf(`{"model_id":%q,"prompt":"portrait"}`, model.ID)
		if _, _, err := e.do(http.MethodPost, "/ai/generate", owner, body); err != nil {
			t.Fatal(err)
		}
	}

	resp, raw, err := e.do(http.MethodGet, "/image/bulk", "u1", "")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out struct {
		Images []struct {
			ID string `json:"id"`
		} `json:"images"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Images) != 1 {
		t.Fatalf("images = %d, want 1", len(out.Images))
	}
	img := e.images.images[out.Images[0].ID]
	if img.OwnerID != "u1" {
		t.Fatalf("owner = %s, want u1", img.OwnerID)
	}
}

func TestCreditsGrantsSignupBalance(t *testing.T) {
	e := newEnv()
	defer e.close()

	resp, raw, err := e.do(http.MethodGet, "/credits", "newcomer", "")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out struct {
		Balance int64 `json:"balance"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatal(err)
	}
	if out.Balance != testGrant {
		t.Fatalf("balance = %d, want %d", out.Balance, testGrant)
	}
}

func TestListPacksNormalizesTitles(t *testing.T) {
	e := newEnv()
	defer e.close()

	resp, raw, err := e.do(http.MethodGet, "/pack/bulk", "u1", "")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(raw, "Corporate Headshots") {
		t.Fatalf("body missing title-cased pack name: %s", raw)
	}
	if !strings.Contains(raw, `"prompt_count":2`) {
		t.Fatalf("body missing prompt count: %s", raw)
	}
}

func TestPresignedURLUnavailableWithoutStorage(t *testing.T) {
	e := newEnv()
	defer e.close()

	resp, _, err := e.do(http.MethodGet, "/pre-signed-url", "u1", "")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	e := newEnv()
	defer e.close()

	resp, _, err := e.do(http.MethodGet, "/v1/healthz", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
