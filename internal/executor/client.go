package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Options configures the fal.ai queue client.
type Options struct {
	BaseURL     string // queue endpoint, e.g. https://queue.fal.run
	SyncBaseURL string // synchronous endpoint, e.g. https://fal.run
	APIKey      string
	TrainModel  string // model id for training runs
	ImageModel  string // model id for generation runs
	WebhookBase string // public base URL callbacks are delivered to
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// Client talks to the fal.ai request queue. Dispatch calls enqueue a request
// and return its tracking id; the outcome arrives later on the webhook, or
// can be pulled from the result endpoint.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	syncBaseURL string
	token       string
	trainModel  string
	imageModel  string
	webhookBase string
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://queue.fal.run"
	}
	syncBase := strings.TrimRight(opts.SyncBaseURL, "/")
	if syncBase == "" {
		syncBase = "https://fal.run"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient:  client,
		baseURL:     base,
		syncBaseURL: syncBase,
		token:       strings.TrimSpace(opts.APIKey),
		trainModel:  opts.TrainModel,
		imageModel:  opts.ImageModel,
		webhookBase: strings.TrimRight(opts.WebhookBase, "/"),
	}
}

type trainRequest struct {
	Input struct {
		ImagesDataURL string `json:"images_data_url"`
		TriggerWord   string `json:"trigger_word,omitempty"`
	} `json:"input"`
}

type generateRequest struct {
	Input struct {
		Prompt string `json:"prompt"`
		Loras  []struct {
			Path string `json:"path"`
		} `json:"loras"`
	} `json:"input"`
}

type queueResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Detail    string `json:"detail"`
}

type resultResponse struct {
	Status           string `json:"status"`
	TensorPath       string `json:"tensor_path"`
	DiffusersLoraRef struct {
		URL string `json:"url"`
	} `json:"diffusers_lora_file"`
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
	Error string `json:"error"`
}

type syncImageResponse struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
	Detail string `json:"detail"`
}

// DispatchTraining enqueues a training run over the uploaded photo archive
// and returns the queue's tracking id.
func (c *Client) DispatchTraining(ctx context.Context, zipURL, name string) (string, error) {
	var payload trainRequest
	payload.Input.ImagesDataURL = zipURL
	payload.Input.TriggerWord = name

	var out queueResponse
	if err := c.enqueue(ctx, c.trainModel, "train", payload, &out); err != nil {
		return "", err
	}
	if out.RequestID == "" {
		return "", errors.New("fal: enqueue returned no request id")
	}
	return out.RequestID, nil
}

// DispatchGeneration enqueues an image generation against a trained artifact.
func (c *Client) DispatchGeneration(ctx context.Context, prompt, tensorPath string) (string, error) {
	var payload generateRequest
	payload.Input.Prompt = prompt
	payload.Input.Loras = []struct {
		Path string `json:"path"`
	}{{Path: tensorPath}}

	var out queueResponse
	if err := c.enqueue(ctx, c.imageModel, "image", payload, &out); err != nil {
		return "", err
	}
	if out.RequestID == "" {
		return "", errors.New("fal: enqueue returned no request id")
	}
	return out.RequestID, nil
}

// FetchTrainingResult pulls the outcome of a training run directly from the
// queue. Used when the webhook payload omits the artifact, and by the sweep
// worker for jobs whose webhook never arrived.
func (c *Client) FetchTrainingResult(ctx context.Context, trackingID string) (*Result, error) {
	endpoint := fmt.Sprintf("%s/%s/requests/%s", c.baseURL, c.trainModel, url.PathEscape(trackingID))
	var out resultResponse
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	res := &Result{Status: out.Status, TensorPath: out.TensorPath, ErrMessage: out.Error}
	if res.TensorPath == "" {
		res.TensorPath = out.DiffusersLoraRef.URL
	}
	if res.Status == "" && res.TensorPath != "" {
		res.Status = StatusCompleted
	}
	return res, nil
}

// FetchGenerationResult pulls the outcome of a generation run from the queue.
func (c *Client) FetchGenerationResult(ctx context.Context, trackingID string) (*Result, error) {
	endpoint := fmt.Sprintf("%s/%s/requests/%s", c.baseURL, c.imageModel, url.PathEscape(trackingID))
	var out resultResponse
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	res := &Result{Status: out.Status, ErrMessage: out.Error}
	if len(out.Images) > 0 {
		res.ImageURL = out.Images[0].URL
	}
	if res.Status == "" && res.ImageURL != "" {
		res.Status = StatusCompleted
	}
	return res, nil
}

// GeneratePreview runs a synchronous generation against the trained artifact
// and returns the resulting image URL. This is the one blocking call to the
// executor; everything else is queue-and-callback.
func (c *Client) GeneratePreview(ctx context.Context, tensorPath string) (string, error) {
	var payload generateRequest
	payload.Input.Prompt = "portrait photo, studio lighting, looking at the camera"
	payload.Input.Loras = []struct {
		Path string `json:"path"`
	}{{Path: tensorPath}}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	endpoint := c.syncBaseURL + "/" + c.imageModel
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out syncImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return "", fmt.Errorf("fal: http %d", resp.StatusCode)
		}
		return "", err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if out.Detail != "" {
			return "", fmt.Errorf("fal error: %s", out.Detail)
		}
		return "", fmt.Errorf("fal: http %d", resp.StatusCode)
	}
	if len(out.Images) == 0 || out.Images[0].URL == "" {
		return "", errors.New("fal: preview returned no image")
	}
	return out.Images[0].URL, nil
}

func (c *Client) enqueue(ctx context.Context, model, kind string, payload any, out *queueResponse) error {
	if c.token == "" {
		return errors.New("fal: API key is missing")
	}
	if model == "" {
		return errors.New("fal: model id is missing")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	endpoint := c.baseURL + "/" + model
	if c.webhookBase != "" {
		endpoint += "?fal_webhook=" + url.QueryEscape(c.webhookBase+"/fal-ai/webhook/"+kind)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("fal: http %d", resp.StatusCode)
		}
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if out.Detail != "" {
			return fmt.Errorf("fal error: %s", out.Detail)
		}
		return fmt.Errorf("fal: http %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	if c.token == "" {
		return errors.New("fal: API key is missing")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("fal: http %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.token)
}
