package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(ts *httptest.Server) *Client {
	return NewClient(Options{
		BaseURL:     ts.URL,
		SyncBaseURL: ts.URL,
		APIKey:      "test-key",
		TrainModel:  "fal-ai/train",
		ImageModel:  "fal-ai/image",
		WebhookBase: "https://api.example.com",
	})
}

func TestDispatchTraining(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Key test-key" {
			t.Fatalf("unexpected auth header: %s", got)
		}
		if !strings.HasPrefix(r.URL.Path, "/fal-ai/train") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("fal_webhook"); got != "https://api.example.com/fal-ai/webhook/train" {
			t.Fatalf("unexpected webhook param: %s", got)
		}
		var payload trainRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Input.ImagesDataURL != "https://example.com/photos.zip" {
			t.Fatalf("unexpected archive url: %s", payload.Input.ImagesDataURL)
		}
		_ = json.NewEncoder(w).Encode(queueResponse{RequestID: "tr-1"})
	}))
	defer ts.Close()

	id, err := newTestClient(ts).DispatchTraining(context.Background(), "https://example.com/photos.zip", "alice")
	if err != nil {
		t.Fatalf("DispatchTraining error: %v", err)
	}
	if id != "tr-1" {
		t.Fatalf("unexpected tracking id: %s", id)
	}
}

func TestDispatchGeneration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload generateRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Input.Prompt != "on a mountain" {
			t.Fatalf("unexpected prompt: %s", payload.Input.Prompt)
		}
		if len(payload.Input.Loras) != 1 || payload.Input.Loras[0].Path != "tensors/alice" {
			t.Fatalf("lora path mismatch: %+v", payload.Input.Loras)
		}
		_ = json.NewEncoder(w).Encode(queueResponse{RequestID: "img-1"})
	}))
	defer ts.Close()

	id, err := newTestClient(ts).DispatchGeneration(context.Background(), "on a mountain", "tensors/alice")
	if err != nil {
		t.Fatalf("DispatchGeneration error: %v", err)
	}
	if id != "img-1" {
		t.Fatalf("unexpected tracking id: %s", id)
	}
}

func TestDispatchMissingKey(t *testing.T) {
	client := NewClient(Options{TrainModel: "fal-ai/train", ImageModel: "fal-ai/image"})
	if _, err := client.DispatchTraining(context.Background(), "https://example.com/a.zip", "n"); err == nil {
		t.Fatalf("expected error when api key missing")
	}
}

func TestDispatchHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(queueResponse{Detail: "bad archive"})
	}))
	defer ts.Close()

	_, err := newTestClient(ts).DispatchTraining(context.Background(), "https://example.com/a.zip", "n")
	if err == nil || !strings.Contains(err.Error(), "bad archive") {
		t.Fatalf("expected detail in error, got %v", err)
	}
}

func TestFetchTrainingResultFallsBackToLoraFile(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fal-ai/train/requests/tr-9" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"diffusers_lora_file":{"url":"tensors/tr-9"}}`))
	}))
	defer ts.Close()

	res, err := newTestClient(ts).FetchTrainingResult(context.Background(), "tr-9")
	if err != nil {
		t.Fatalf("FetchTrainingResult error: %v", err)
	}
	if res.TensorPath != "tensors/tr-9" {
		t.Fatalf("unexpected tensor path: %s", res.TensorPath)
	}
	if !Succeeded(res.Status) {
		t.Fatalf("expected inferred completed status, got %q", res.Status)
	}
}

func TestGeneratePreview(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fal-ai/image" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"images":[{"url":"https://cdn.example.com/preview.png"}]}`))
	}))
	defer ts.Close()

	url, err := newTestClient(ts).GeneratePreview(context.Background(), "tensors/alice")
	if err != nil {
		t.Fatalf("GeneratePreview error: %v", err)
	}
	if url != "https://cdn.example.com/preview.png" {
		t.Fatalf("unexpected preview url: %s", url)
	}
}

func TestGeneratePreviewEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"images":[]}`))
	}))
	defer ts.Close()

	if _, err := newTestClient(ts).GeneratePreview(context.Background(), "tensors/alice"); err == nil {
		t.Fatalf("expected error for empty preview response")
	}
}
