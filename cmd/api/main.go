package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"photoai/internal/adapter/repo"
	"photoai/internal/adapter/sweep"
	"photoai/internal/events"
	"photoai/internal/executor"
	"photoai/internal/http/handlers"
	httpapi "photoai/internal/http/httpapi"
	"photoai/internal/infra"
	"photoai/internal/infra/geoip"
	"photoai/internal/ledger"
	"photoai/internal/packs"
	"photoai/internal/reconciler"
	"photoai/internal/storage"
	"photoai/internal/submitter"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	geo, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
		geo = nil
	}

	models := repo.NewModelRepository(dbpool)
	images := repo.NewImageRepository(dbpool)
	packRepo := repo.NewPackRepository(dbpool)
	credits := repo.NewCreditRepository(dbpool)

	ledgerSvc := ledger.NewService(credits, cfg.SignupGrant, logger)
	tracker := sweep.NewTracker(rdb)
	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	if publisher != nil {
		defer publisher.Close()
	}

	fal := executor.NewClient(executor.Options{
		BaseURL:     cfg.FalBaseURL,
		SyncBaseURL: cfg.FalSyncBaseURL,
		APIKey:      cfg.FalAPIKey,
		TrainModel:  cfg.FalTrainModel,
		ImageModel:  cfg.FalImageModel,
		WebhookBase: cfg.WebhookBaseURL,
		Timeout:     cfg.DispatchTimeout,
	})

	submitterSvc := submitter.NewService(models, images, packRepo, ledgerSvc, fal, tracker, publisher, submitter.Config{
		ImageGenCost:  cfg.ImageGenCost,
		SweepDeadline: cfg.SweepDeadline,
	}, logger)
	reconcilerSvc := reconciler.NewService(models, images, ledgerSvc, fal, tracker, publisher, cfg.TrainModelCost, logger)

	app := &handlers.App{
		Logger:     logger,
		Submitter:  submitterSvc,
		Reconciler: reconcilerSvc,
		Ledger:     ledgerSvc,
		Packs:      packs.NewCatalog(packRepo),
		Models:     models,
		Images:     images,
		Uploads:    storage.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseBucket),
	}

	router := httpapi.NewRouter(cfg, app, geo)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
