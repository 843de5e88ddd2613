package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"photoai/internal/adapter/repo"
	"photoai/internal/adapter/sweep"
	"photoai/internal/domain"
	"photoai/internal/events"
	"photoai/internal/executor"
	"photoai/internal/infra"
	"photoai/internal/ledger"
	"photoai/internal/reconciler"
)

// The sweeper resolves jobs whose webhook never arrived. It pops due entries
// from the pending set, pulls the result straight from the executor queue and
// feeds it through the same reconciliation path the webhook handlers use.

const sweepBatchSize = 100

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	if rdb == nil {
		logger.Fatal().Msg("REDIS_ADDR is required for the sweeper")
	}
	defer rdb.Close()

	models := repo.NewModelRepository(dbpool)
	images := repo.NewImageRepository(dbpool)
	credits := repo.NewCreditRepository(dbpool)

	ledgerSvc := ledger.NewService(credits, cfg.SignupGrant, logger)
	tracker := sweep.NewTracker(rdb)
	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	defer publisher.Close()

	fal := executor.NewClient(executor.Options{
		BaseURL:     cfg.FalBaseURL,
		SyncBaseURL: cfg.FalSyncBaseURL,
		APIKey:      cfg.FalAPIKey,
		TrainModel:  cfg.FalTrainModel,
		ImageModel:  cfg.FalImageModel,
		WebhookBase: cfg.WebhookBaseURL,
		Timeout:     cfg.DispatchTimeout,
	})
	reconcilerSvc := reconciler.NewService(models, images, ledgerSvc, fal, tracker, publisher, cfg.TrainModelCost, logger)

	s := &sweeper{
		tracker:    tracker,
		fal:        fal,
		reconciler: reconcilerSvc,
		deadline:   cfg.SweepDeadline,
		logger:     logger,
	}

	logger.Info().Dur("interval", cfg.SweepInterval).Msg("sweeper started")
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

type sweeper struct {
	tracker    *sweep.Tracker
	fal        *executor.Client
	reconciler *reconciler.Service
	deadline   time.Duration
	logger     zerolog.Logger
}

func (s *sweeper) sweep(ctx context.Context) {
	entries, err := s.tracker.PopDue(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("sweeper: pop due failed")
		return
	}
	for _, entry := range entries {
		if err := s.resolve(ctx, entry); err != nil {
			s.logger.Error().Err(err).Str("kind", string(entry.Kind)).Str("tracking_id", entry.TrackingID).Msg("sweeper: resolve failed")
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// resolve fetches the executor's current result for one due entry and runs
// it through reconciliation. Jobs that are still running, and jobs blocked on
// an empty credit balance, go back into the pending set with a fresh
// deadline.
func (s *sweeper) resolve(ctx context.Context, entry sweep.Entry) error {
	switch entry.Kind {
	case sweep.KindTraining:
		res, err := s.fal.FetchTrainingResult(ctx, entry.TrackingID)
		if err != nil {
			s.requeue(ctx, entry)
			return err
		}
		err = s.reconciler.ReconcileTraining(ctx, entry.TrackingID, reconciler.TrainingOutcome{
			Status:     res.Status,
			TensorPath: res.TensorPath,
			ErrMessage: res.ErrMessage,
		})
		return s.settle(ctx, entry, res.Status, err)

	case sweep.KindImage:
		res, err := s.fal.FetchGenerationResult(ctx, entry.TrackingID)
		if err != nil {
			s.requeue(ctx, entry)
			return err
		}
		err = s.reconciler.ReconcileGeneration(ctx, entry.TrackingID, reconciler.GenerationOutcome{
			Status:     res.Status,
			ImageURL:   res.ImageURL,
			ErrMessage: res.ErrMessage,
		})
		return s.settle(ctx, entry, res.Status, err)

	default:
		s.logger.Warn().Str("kind", string(entry.Kind)).Str("tracking_id", entry.TrackingID).Msg("sweeper: unknown entry kind dropped")
		return nil
	}
}

func (s *sweeper) settle(ctx context.Context, entry sweep.Entry, status string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// No job row for this tracking id; nothing left to sweep.
		return nil
	case errors.Is(err, domain.ErrInsufficientCredits):
		s.requeue(ctx, entry)
		return nil
	case err != nil:
		s.requeue(ctx, entry)
		return err
	case !executor.Succeeded(status) && !executor.Failed(status):
		// Still running at the executor.
		s.requeue(ctx, entry)
		return nil
	default:
		return nil
	}
}

func (s *sweeper) requeue(ctx context.Context, entry sweep.Entry) {
	if err := s.tracker.Add(ctx, entry.Kind, entry.TrackingID, time.Now().Add(s.deadline)); err != nil {
		s.logger.Error().Err(err).Str("tracking_id", entry.TrackingID).Msg("sweeper: requeue failed")
	}
}
