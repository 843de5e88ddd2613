// Package submitter accepts train-model and generate-image requests,
// enforces credit preconditions, dispatches work to the external executor and
// persists the pending job records. Generation is debit-then-dispatch with a
// compensating refund when the dispatch fails, so a user is never left
// charged for a job that was never submitted.
package submitter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"photoai/internal/adapter/sweep"
	"photoai/internal/domain"
	"photoai/internal/events"
	"photoai/internal/ledger"
)

// Dispatcher is the slice of the executor client the submitter needs.
type Dispatcher interface {
	DispatchTraining(ctx context.Context, zipURL, name string) (string, error)
	DispatchGeneration(ctx context.Context, prompt, tensorPath string) (string, error)
}

// Config carries the credit costs and the sweep deadline for new jobs.
type Config struct {
	ImageGenCost  int64
	SweepDeadline time.Duration
}

type Service struct {
	models     domain.ModelRepository
	images     domain.ImageRepository
	packs      domain.PackRepository
	ledger     *ledger.Service
	dispatcher Dispatcher
	tracker    *sweep.Tracker
	publisher  *events.Publisher
	cfg        Config
	logger     zerolog.Logger
}

func NewService(
	models domain.ModelRepository,
	images domain.ImageRepository,
	packs domain.PackRepository,
	ledger *ledger.Service,
	dispatcher Dispatcher,
	tracker *sweep.Tracker,
	publisher *events.Publisher,
	cfg Config,
	logger zerolog.Logger,
) *Service {
	if cfg.SweepDeadline <= 0 {
		cfg.SweepDeadline = 10 * time.Minute
	}
	return &Service{
		models:     models,
		images:     images,
		packs:      packs,
		ledger:     ledger,
		dispatcher: dispatcher,
		tracker:    tracker,
		publisher:  publisher,
		cfg:        cfg,
		logger:     logger,
	}
}

// TrainingInput carries the attributes of a model training request.
type TrainingInput struct {
	Name      string
	Type      domain.ModelType
	Age       int
	Ethnicity domain.Ethnicity
	EyeColor  domain.EyeColor
	Bald      bool
	ZipURL    string
}

func (in *TrainingInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("name is required: %w", domain.ErrValidation)
	case in.Type != domain.ModelTypeMan && in.Type != domain.ModelTypeWoman && in.Type != domain.ModelTypeOther:
		return fmt.Errorf("unknown model type %q: %w", in.Type, domain.ErrValidation)
	case in.Age <= 0:
		return fmt.Errorf("age must be positive: %w", domain.ErrValidation)
	case in.Ethnicity == "":
		return fmt.Errorf("ethnicity is required: %w", domain.ErrValidation)
	case in.EyeColor == "":
		return fmt.Errorf("eye color is required: %w", domain.ErrValidation)
	case strings.TrimSpace(in.ZipURL) == "":
		return fmt.Errorf("zip url is required: %w", domain.ErrValidation)
	}
	return nil
}

// SubmitTraining validates the request, dispatches the training run and
// persists the model in Pending state. Training is not charged here; the
// reconciler debits the training cost only on confirmed success.
func (s *Service) SubmitTraining(ctx context.Context, ownerID string, in TrainingInput) (string, error) {
	if err := in.validate(); err != nil {
		return "", err
	}

	trackingID, err := s.dispatcher.DispatchTraining(ctx, in.ZipURL, in.Name)
	if err != nil {
		return "", fmt.Errorf("dispatch training: %v: %w", err, domain.ErrExecutor)
	}

	model := &domain.TrainedModel{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		Name:           in.Name,
		Type:           in.Type,
		Age:            in.Age,
		Ethnicity:      in.Ethnicity,
		EyeColor:       in.EyeColor,
		Bald:           in.Bald,
		ZipURL:         in.ZipURL,
		TrackingID:     trackingID,
		TrainingStatus: domain.JobPending,
	}
	if err := s.models.Create(ctx, model); err != nil {
		return "", fmt.Errorf("persist model: %w", err)
	}

	s.track(ctx, sweep.KindTraining, trackingID)
	s.publisher.Publish(ctx, events.TypeTrainingSubmitted, trackingID, ownerID, map[string]any{"model_id": model.ID})
	s.logger.Info().Str("model_id", model.ID).Str("tracking_id", trackingID).Msg("submitter: training dispatched")
	return model.ID, nil
}

// SubmitGeneration charges ImageGenCost, dispatches one generation and
// persists the pending image job. The debit is rolled back if the dispatch
// or the persist fails.
func (s *Service) SubmitGeneration(ctx context.Context, ownerID, modelID, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt is required: %w", domain.ErrValidation)
	}
	model, err := s.readyModel(ctx, modelID)
	if err != nil {
		return "", err
	}

	if err := s.ledger.Debit(ctx, ownerID, s.cfg.ImageGenCost); err != nil {
		return "", err
	}

	trackingID, err := s.dispatcher.DispatchGeneration(ctx, prompt, model.TensorPath)
	if err != nil {
		s.refund(ctx, ownerID, s.cfg.ImageGenCost)
		return "", fmt.Errorf("dispatch generation: %v: %w", err, domain.ErrExecutor)
	}

	image := &domain.Image{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		ModelID:    model.ID,
		Prompt:     prompt,
		TrackingID: trackingID,
		Status:     domain.JobPending,
	}
	if err := s.images.Create(ctx, image); err != nil {
		s.refund(ctx, ownerID, s.cfg.ImageGenCost)
		return "", fmt.Errorf("persist image: %w", err)
	}

	s.track(ctx, sweep.KindImage, trackingID)
	s.publisher.Publish(ctx, events.TypeImageSubmitted, trackingID, ownerID, map[string]any{"image_id": image.ID})
	return image.ID, nil
}

// SubmitPackGeneration fans one request out into one generation job per pack
// prompt. The aggregate cost is debited once up front; any dispatch failure
// refunds the full amount and persists nothing.
func (s *Service) SubmitPackGeneration(ctx context.Context, ownerID, modelID, packID string) ([]string, error) {
	model, err := s.readyModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if _, err := s.packs.GetByID(ctx, packID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("pack %s: %w", packID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("load pack: %w", err)
	}
	prompts, err := s.packs.ListPrompts(ctx, packID)
	if err != nil {
		return nil, fmt.Errorf("load pack prompts: %w", err)
	}
	if len(prompts) == 0 {
		return nil, fmt.Errorf("pack %s has no prompts: %w", packID, domain.ErrValidation)
	}

	total := s.cfg.ImageGenCost * int64(len(prompts))
	if err := s.ledger.Debit(ctx, ownerID, total); err != nil {
		return nil, err
	}

	imgs := make([]*domain.Image, 0, len(prompts))
	for _, p := range prompts {
		trackingID, err := s.dispatcher.DispatchGeneration(ctx, p.Prompt, model.TensorPath)
		if err != nil {
			s.refund(ctx, ownerID, total)
			return nil, fmt.Errorf("dispatch pack prompt %d: %v: %w", p.Seq, err, domain.ErrExecutor)
		}
		imgs = append(imgs, &domain.Image{
			ID:         uuid.NewString(),
			OwnerID:    ownerID,
			ModelID:    model.ID,
			Prompt:     p.Prompt,
			TrackingID: trackingID,
			Status:     domain.JobPending,
		})
	}

	if err := s.images.CreateBatch(ctx, imgs); err != nil {
		s.refund(ctx, ownerID, total)
		return nil, fmt.Errorf("persist pack images: %w", err)
	}

	ids := make([]string, len(imgs))
	for i, img := range imgs {
		ids[i] = img.ID
		s.track(ctx, sweep.KindImage, img.TrackingID)
		s.publisher.Publish(ctx, events.TypeImageSubmitted, img.TrackingID, ownerID, map[string]any{"image_id": img.ID, "pack_id": packID})
	}
	s.logger.Info().Str("pack_id", packID).Int("jobs", len(ids)).Msg("submitter: pack dispatched")
	return ids, nil
}

func (s *Service) readyModel(ctx context.Context, modelID string) (*domain.TrainedModel, error) {
	model, err := s.models.GetByID(ctx, modelID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("model %s: %w", modelID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("load model: %w", err)
	}
	if !model.Ready() {
		return nil, fmt.Errorf("model %s: %w", modelID, domain.ErrModelNotReady)
	}
	return model, nil
}

func (s *Service) refund(ctx context.Context, ownerID string, amount int64) {
	if err := s.ledger.Refund(ctx, ownerID, amount); err != nil {
		s.logger.Error().Err(err).Str("owner_id", ownerID).Int64("amount", amount).Msg("submitter: refund failed")
	}
}

func (s *Service) track(ctx context.Context, kind sweep.Kind, trackingID string) {
	if err := s.tracker.Add(ctx, kind, trackingID, time.Now().Add(s.cfg.SweepDeadline)); err != nil {
		s.logger.Warn().Err(err).Str("tracking_id", trackingID).Msg("submitter: sweep tracking failed")
	}
}
