package handlers_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"photoai/internal/domain"
	"photoai/internal/executor"
	"photoai/internal/http/handlers"
	"photoai/internal/http/httpapi"
	"photoai/internal/infra"
	"photoai/internal/ledger"
	"photoai/internal/middleware"
	"photoai/internal/packs"
	"photoai/internal/reconciler"
	"photoai/internal/submitter"
)

const (
	testSecret    = "test-secret"
	testImageCost = int64(1)
	testTrainCost = int64(20)
	testGrant     = int64(10)
)

type memModels struct {
	mu     sync.Mutex
	models map[string]*domain.TrainedModel
}

func newMemModels() *memModels {
	return &memModels{models: make(map[string]*domain.TrainedModel)}
}

func (m *memModels) Create(_ context.Context, model *domain.TrainedModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *model
	m.models[model.ID] = &cp
	return nil
}

func (m *memModels) GetByID(_ context.Context, id string) (*domain.TrainedModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	model, ok := m.models[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *model
	return &cp, nil
}

func (m *memModels) GetByTrackingID(_ context.Context, trackingID string) (*domain.TrainedModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, model := range m.models {
		if model.TrackingID == trackingID {
			cp := *model
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memModels) ListByOwner(_ context.Context, ownerID string) ([]domain.TrainedModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TrainedModel
	for _, model := range m.models {
		if model.OwnerID == ownerID {
			out = append(out, *model)
		}
	}
	return out, nil
}

func (m *memModels) MarkGenerated(_ context.Context, id, tensorPath, previewURL string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	model, ok := m.models[id]
	if !ok || model.TrainingStatus != domain.JobPending {
		return false, nil
	}
	model.TrainingStatus = domain.JobGenerated
	model.TensorPath = tensorPath
	model.PreviewURL = previewURL
	return true, nil
}

func (m *memModels) MarkFailed(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	model, ok := m.models[id]
	if !ok || model.TrainingStatus != domain.JobPending {
		return false, nil
	}
	model.TrainingStatus = domain.JobFailed
	return true, nil
}

type memImages struct {
	mu     sync.Mutex
	images map[string]*domain.Image
}

func newMemImages() *memImages {
	return &memImages{images: make(map[string]*domain.Image)}
}

func (m *memImages) Create(_ context.Context, image *domain.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *image
	m.images[image.ID] = &cp
	return nil
}

func (m *memImages) CreateBatch(ctx context.Context, images []*domain.Image) error {
	for _, img := range images {
		if err := m.Create(ctx, img); err != nil {
			return err
		}
	}
	return nil
}

func (m *memImages) GetByTrackingID(_ context.Context, trackingID string) (*domain.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, img := range m.images {
		if img.TrackingID == trackingID {
			cp := *img
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memImages) ListByOwner(_ context.Context, ownerID string, ids []string, offset, limit int) ([]domain.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []domain.Image
	for _, img := range m.images {
		if img.OwnerID != ownerID {
			continue
		}
		if len(wanted) > 0 && !wanted[img.ID] {
			continue
		}
		out = append(out, *img)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memImages) MarkGenerated(_ context.Context, id, imageURL string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[id]
	if !ok || img.Status != domain.JobPending {
		return false, nil
	}
	img.Status = domain.JobGenerated
	img.ImageURL = imageURL
	return true, nil
}

func (m *memImages) MarkFailed(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[id]
	if !ok || img.Status != domain.JobPending {
		return false, nil
	}
	img.Status = domain.JobFailed
	return true, nil
}

type memPacks struct {
	packs   []domain.Pack
	prompts map[string][]domain.PackPrompt
}

func (m *memPacks) List(context.Context) ([]domain.Pack, error) { return m.packs, nil }

func (m *memPacks) GetByID(_ context.Context, id string) (*domain.Pack, error) {
	for _, p := range m.packs {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPacks) ListPrompts(_ context.Context, packID string) ([]domain.PackPrompt, error) {
	return m.prompts[packID], nil
}

type memCredits struct {
	mu       sync.Mutex
	balances map[string]int64
}

func newMemCredits() *memCredits {
	return &memCredits{balances: make(map[string]int64)}
}

func (m *memCredits) Balance(_ context.Context, ownerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.balances[ownerID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return bal, nil
}

func (m *memCredits) TryDebit(_ context.Context, ownerID string, amount int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[ownerID] < amount {
		return false, nil
	}
	m.balances[ownerID] -= amount
	return true, nil
}

func (m *memCredits) Credit(_ context.Context, ownerID string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[ownerID] += amount
	return nil
}

func (m *memCredits) EnsureAccount(_ context.Context, ownerID string, initial int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[ownerID]; !ok {
		m.balances[ownerID] = initial
	}
	return nil
}

// fakeExecutor serves both the dispatch and fetch sides of the executor.
type fakeExecutor struct {
	mu         sync.Mutex
	dispatched int
	previewURL string
}

func (f *fakeExecutor) nextID(prefix string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched++
	return fmt.Sprintf("%s-%d", prefix, f.dispatched)
}

func (f *fakeExecutor) DispatchTraining(context.Context, string, string) (string, error) {
	return f.nextID("train"), nil
}

func (f *fakeExecutor) DispatchGeneration(context.Context, string, string) (string, error) {
	return f.nextID("gen"), nil
}

func (f *fakeExecutor) FetchTrainingResult(context.Context, string) (*executor.Result, error) {
	return nil, fmt.Errorf("no secondary result")
}

func (f *fakeExecutor) GeneratePreview(context.Context, string) (string, error) {
	if f.previewURL == "" {
		return "https://cdn.test/preview.png", nil
	}
	return f.previewURL, nil
}

type env struct {
	server   *httptest.Server
	models   *memModels
	images   *memImages
	credits  *memCredits
	executor *fakeExecutor
}

func newEnv() *env {
	models := newMemModels()
	images := newMemImages()
	credits := newMemCredits()
	exec := &fakeExecutor{}
	logger := zerolog.Nop()

	packRepo := &memPacks{
		packs: []domain.Pack{{ID: "pk1", Name: "corporate headshots"}},
		prompts: map[string][]domain.PackPrompt{
			"pk1": {
				{ID: "pp1", PackID: "pk1", Prompt: "headshot in a navy suit", Seq: 1},
				{ID: "pp2", PackID: "pk1", Prompt: "headshot against a brick wall", Seq: 2},
			},
		},
	}

	ledgerSvc := ledger.NewService(credits, testGrant, logger)
	submitterSvc := submitter.NewService(models, images, packRepo, ledgerSvc, exec, nil, nil, submitter.Config{
		ImageGenCost: testImageCost,
	}, logger)
	reconcilerSvc := reconciler.NewService(models, images, ledgerSvc, exec, nil, nil, testTrainCost, logger)

	app := &handlers.App{
		Logger:     logger,
		Submitter:  submitterSvc,
		Reconciler: reconcilerSvc,
		Ledger:     ledgerSvc,
		Packs:      packs.NewCatalog(packRepo),
		Models:     models,
		Images:     images,
	}
	cfg := &infra.Config{JWTSecret: testSecret, RateLimitPerMin: 1000}
	router := httpapi.NewRouter(cfg, app, nil)
	return &env{
		server:   httptest.NewServer(router),
		models:   models,
		images:   images,
		credits:  credits,
		executor: exec,
	}
}

func (e *env) close() { e.server.Close() }

func token(ownerID string) string {
	tok, _ := middleware.SignJWT(testSecret, middleware.TokenClaims{
		Sub: ownerID,
		Exp: time.Now().Add(time.Hour).Unix(),
	})
	return tok
}

func (e *env) do(method, path, ownerID, body string) (*http.Response, string, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		return nil, "", err
	}
	if ownerID != "" {
		req.Header.Set("Authorization", "Bearer "+token(ownerID))
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return resp, string(raw), nil
}
