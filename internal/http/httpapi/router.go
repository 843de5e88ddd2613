package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"photoai/internal/http/handlers"
	"photoai/internal/infra"
	"photoai/internal/infra/geoip"
	"photoai/internal/middleware"
)

// NewRouter assembles the HTTP surface. Webhook and health endpoints are
// unauthenticated; everything else requires a bearer token.
func NewRouter(cfg *infra.Config, app *handlers.App, geo geoip.CountryResolver) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger, geo),
		middleware.CORS(cfg.CORSOrigins),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/fal-ai/webhook", func(r chi.Router) {
		r.Post("/train", app.TrainingWebhook)
		r.Post("/image", app.ImageWebhook)
	})

	r.Group(func(r chi.Router) {
		r.Use(
			middleware.AuthJWT(cfg.JWTSecret),
			middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
		)

		r.Post("/ai/training", app.TrainModel)
		r.Post("/ai/generate", app.GenerateImage)
		r.Post("/pack/generate", app.GenerateFromPack)

		r.Get("/models", app.ListModels)
		r.Get("/image/bulk", app.ListImages)
		r.Get("/pack/bulk", app.ListPacks)

		r.Get("/pre-signed-url", app.PresignedUpload)
		r.Get("/credits", app.Credits)
	})

	return r
}
