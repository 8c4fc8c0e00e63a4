package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/forkcast-backend/api/controllers"
	"github.com/angelmondragon/forkcast-backend/api/middleware"
	"github.com/angelmondragon/forkcast-backend/internal/location"
	"github.com/angelmondragon/forkcast-backend/internal/parties"
	"github.com/angelmondragon/forkcast-backend/pkg/config"
	"github.com/angelmondragon/forkcast-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/forkcast-backend/pkg/redis"
)

// redisClient is the slice of the redis wrapper the HTTP layer needs.
type redisClient interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Deps carries everything NewRouter wires into handlers. Optional members may be nil.
type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	Parties         parties.Service
	Locations       location.Service
	Redis           redisClient
	Gatherer        prometheus.Gatherer
	ReadinessChecks []controllers.ReadinessCheck
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger
	maxDoc := cfg.Preferences.MaxDocumentBytes

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSAllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.ReadinessChecks...))
	})
	r.Method(http.MethodGet, "/metrics", controllers.Metrics(deps.Gatherer))

	var idem pkgredis.IdempotencyStore
	var limiter interface {
		FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	}
	if deps.Redis != nil {
		idem = deps.Redis
		limiter = deps.Redis
	}
	idempotent := middleware.Idempotency(idem, cfg.Redis.IdempotencyTTL, maxDoc, logg)
	guestPolicy := middleware.NewRateLimitPolicy("guest_submit", cfg.HTTP.GuestSubmitLimit, cfg.HTTP.GuestSubmitWindow)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())

		r.Route("/v1/parties", func(r chi.Router) {
			r.With(idempotent).Post("/", controllers.PartyCreate(deps.Parties, logg))
			r.Route("/{partyCode}", func(r chi.Router) {
				r.Use(middleware.PartyScope(logg))
				r.Get("/", controllers.PartyGet(deps.Parties, logg))
				r.With(middleware.PartyRateLimit(guestPolicy, limiter, logg)).
					Put("/guests/{guestId}", controllers.PartySubmitGuest(deps.Parties, maxDoc, logg))
				r.With(idempotent).Post("/aggregate", controllers.PartyAggregate(deps.Parties, maxDoc, logg))
				r.Get("/preferences", controllers.PartyPreferences(deps.Parties, logg))
				r.With(idempotent).Post("/results", controllers.PartySaveResults(deps.Parties, maxDoc, logg))
				r.Get("/results", controllers.PartyResults(deps.Parties, logg))
			})
		})

		r.Route("/v1/locations", func(r chi.Router) {
			r.Get("/suggest", controllers.LocationSuggest(deps.Locations, logg))
			r.Post("/resolve", controllers.LocationResolve(deps.Locations, logg))
		})
	})

	return r
}
