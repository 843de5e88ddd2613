// Package reconciler applies asynchronous executor outcomes to persisted job
// state. Webhook delivery is at-least-once, so every transition out of
// Pending is a conditional update at the database; a delivery that loses the
// race is a no-op and any credit it debited is refunded. The transition table
// is closed:
//
//	Pending --success--> Generated (terminal)
//	Pending --error----> Failed    (terminal)
//	Pending --other----> Pending
package reconciler

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"photoai/internal/adapter/sweep"
	"photoai/internal/domain"
	"photoai/internal/events"
	"photoai/internal/executor"
	"photoai/internal/ledger"
)

// ResultFetcher is the slice of the executor client the reconciler needs: the
// secondary result fetch for payload-less training callbacks and the
// synchronous preview render.
type ResultFetcher interface {
	FetchTrainingResult(ctx context.Context, trackingID string) (*executor.Result, error)
	GeneratePreview(ctx context.Context, tensorPath string) (string, error)
}

// TrainingOutcome is a training callback after payload extraction.
type TrainingOutcome struct {
	Status     string
	TensorPath string
	ErrMessage string
}

// GenerationOutcome is a generation callback after payload extraction.
type GenerationOutcome struct {
	Status     string
	ImageURL   string
	ErrMessage string
}

type Service struct {
	models         domain.ModelRepository
	images         domain.ImageRepository
	ledger         *ledger.Service
	fetcher        ResultFetcher
	tracker        *sweep.Tracker
	publisher      *events.Publisher
	trainModelCost int64
	logger         zerolog.Logger
}

func NewService(
	models domain.ModelRepository,
	images domain.ImageRepository,
	ledger *ledger.Service,
	fetcher ResultFetcher,
	tracker *sweep.Tracker,
	publisher *events.Publisher,
	trainModelCost int64,
	logger zerolog.Logger,
) *Service {
	return &Service{
		models:         models,
		images:         images,
		ledger:         ledger,
		fetcher:        fetcher,
		tracker:        tracker,
		publisher:      publisher,
		trainModelCost: trainModelCost,
		logger:         logger,
	}
}

// ReconcileTraining resolves a training callback. On success the training
// cost is debited exactly once: the debit happens before the conditional
// transition, and a delivery that loses the transition race refunds it.
// Insufficient credits leave the job Pending and surface the error to the
// caller; the produced artifact is not attached.
func (s *Service) ReconcileTraining(ctx context.Context, trackingID string, outcome TrainingOutcome) error {
	model, err := s.models.GetByTrackingID(ctx, trackingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("training job %s: %w", trackingID, domain.ErrNotFound)
		}
		return fmt.Errorf("load training job: %w", err)
	}
	if model.TrainingStatus.Terminal() {
		s.logger.Debug().Str("tracking_id", trackingID).Msg("reconciler: duplicate training callback ignored")
		return nil
	}

	switch {
	case executor.Failed(outcome.Status):
		s.failTraining(ctx, model, outcome.ErrMessage)
		return nil

	case executor.Succeeded(outcome.Status):
		return s.completeTraining(ctx, model, outcome)

	default:
		// Intermediate progress update; the job stays Pending.
		s.logger.Debug().Str("tracking_id", trackingID).Str("status", outcome.Status).Msg("reconciler: training status ignored")
		return nil
	}
}

func (s *Service) completeTraining(ctx context.Context, model *domain.TrainedModel, outcome TrainingOutcome) error {
	tensorPath := outcome.TensorPath
	if tensorPath == "" {
		res, err := s.fetcher.FetchTrainingResult(ctx, model.TrackingID)
		if err != nil {
			s.failTraining(ctx, model, "result fetch failed")
			return fmt.Errorf("fetch training result: %v: %w", err, domain.ErrExecutor)
		}
		tensorPath = res.TensorPath
	}
	if tensorPath == "" {
		// Completed callback with no artifact anywhere is a terminal
		// malformation, not a retryable condition.
		s.failTraining(ctx, model, "completed without artifact")
		return fmt.Errorf("training %s completed without artifact: %w", model.TrackingID, domain.ErrExecutor)
	}

	balance, err := s.ledger.Balance(ctx, model.OwnerID)
	if err != nil {
		s.failTraining(ctx, model, "balance check failed")
		return fmt.Errorf("balance check: %w", err)
	}
	if balance < s.trainModelCost {
		// The run already happened, but the model is not made usable
		// without funds. The job stays Pending.
		return domain.ErrInsufficientCredits
	}

	previewURL, err := s.fetcher.GeneratePreview(ctx, tensorPath)
	if err != nil {
		s.failTraining(ctx, model, "preview generation failed")
		return fmt.Errorf("generate preview: %v: %w", err, domain.ErrExecutor)
	}

	if err := s.ledger.Debit(ctx, model.OwnerID, s.trainModelCost); err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			// Lost a balance race since the check above; same contract.
			return domain.ErrInsufficientCredits
		}
		s.failTraining(ctx, model, "debit failed")
		return fmt.Errorf("debit training cost: %w", err)
	}

	applied, err := s.models.MarkGenerated(ctx, model.ID, tensorPath, previewURL)
	if err != nil {
		s.refund(ctx, model.OwnerID, s.trainModelCost)
		return fmt.Errorf("mark model generated: %w", err)
	}
	if !applied {
		// A concurrent delivery won the transition; give the debit back.
		s.refund(ctx, model.OwnerID, s.trainModelCost)
		s.logger.Debug().Str("tracking_id", model.TrackingID).Msg("reconciler: lost training transition race")
		return nil
	}

	s.untrack(ctx, sweep.KindTraining, model.TrackingID)
	s.publisher.Publish(ctx, events.TypeTrainingGenerated, model.TrackingID, model.OwnerID, map[string]any{"model_id": model.ID})
	s.logger.Info().Str("model_id", model.ID).Str("tracking_id", model.TrackingID).Msg("reconciler: training completed")
	return nil
}

// ReconcileGeneration resolves a generation callback. No credits move here;
// generation was charged at submission. Error outcomes never record an image
// URL, even if the payload carries one.
func (s *Service) ReconcileGeneration(ctx context.Context, trackingID string, outcome GenerationOutcome) error {
	image, err := s.images.GetByTrackingID(ctx, trackingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("generation job %s: %w", trackingID, domain.ErrNotFound)
		}
		return fmt.Errorf("load generation job: %w", err)
	}
	if image.Status.Terminal() {
		s.logger.Debug().Str("tracking_id", trackingID).Msg("reconciler: duplicate generation callback ignored")
		return nil
	}

	switch {
	case executor.Failed(outcome.Status):
		s.failGeneration(ctx, image, outcome.ErrMessage)
		return nil

	case executor.Succeeded(outcome.Status):
		if outcome.ImageURL == "" {
			s.failGeneration(ctx, image, "completed without image url")
			return fmt.Errorf("generation %s completed without image url: %w", trackingID, domain.ErrExecutor)
		}
		applied, err := s.images.MarkGenerated(ctx, image.ID, outcome.ImageURL)
		if err != nil {
			return fmt.Errorf("mark image generated: %w", err)
		}
		if !applied {
			return nil
		}
		s.untrack(ctx, sweep.KindImage, trackingID)
		s.publisher.Publish(ctx, events.TypeImageGenerated, trackingID, image.OwnerID, map[string]any{"image_id": image.ID})
		return nil

	default:
		s.logger.Debug().Str("tracking_id", trackingID).Str("status", outcome.Status).Msg("reconciler: generation status ignored")
		return nil
	}
}

func (s *Service) failTraining(ctx context.Context, model *domain.TrainedModel, reason string) {
	applied, err := s.models.MarkFailed(ctx, model.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("model_id", model.ID).Msg("reconciler: mark training failed errored")
		return
	}
	if !applied {
		return
	}
	s.untrack(ctx, sweep.KindTraining, model.TrackingID)
	s.publisher.Publish(ctx, events.TypeTrainingFailed, model.TrackingID, model.OwnerID, map[string]any{"model_id": model.ID, "reason": reason})
	s.logger.Warn().Str("model_id", model.ID).Str("reason", reason).Msg("reconciler: training failed")
}

func (s *Service) failGeneration(ctx context.Context, image *domain.Image, reason string) {
	applied, err := s.images.MarkFailed(ctx, image.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("image_id", image.ID).Msg("reconciler: mark generation failed errored")
		return
	}
	if !applied {
		return
	}
	s.untrack(ctx, sweep.KindImage, image.TrackingID)
	s.publisher.Publish(ctx, events.TypeImageFailed, image.TrackingID, image.OwnerID, map[string]any{"image_id": image.ID, "reason": reason})
	s.logger.Warn().Str("image_id", image.ID).Str("reason", reason).Msg("reconciler: generation failed")
}

func (s *Service) refund(ctx context.Context, ownerID string, amount int64) {
	if err := s.ledger.Refund(ctx, ownerID, amount); err != nil {
		s.logger.Error().Err(err).Str("owner_id", ownerID).Int64("amount", amount).Msg("reconciler: refund failed")
	}
}

func (s *Service) untrack(ctx context.Context, kind sweep.Kind, trackingID string) {
	if err := s.tracker.Remove(ctx, kind, trackingID); err != nil {
		s.logger.Warn().Err(err).Str("tracking_id", trackingID).Msg("reconciler: sweep untrack failed")
	}
}
