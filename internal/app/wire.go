package app

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/scorekeep/arena/internal/auth"
	"github.com/scorekeep/arena/internal/guard"
	"github.com/scorekeep/arena/internal/handler"
	adminhandler "github.com/scorekeep/arena/internal/handler/admin"
	"github.com/scorekeep/arena/internal/infra"
	"github.com/scorekeep/arena/internal/ledger"
	"github.com/scorekeep/arena/internal/policy"
	"github.com/scorekeep/arena/internal/projection"
	"github.com/scorekeep/arena/internal/repository"
	"github.com/scorekeep/arena/internal/service"
)

// Repositories groups the data access layer handed to the services.
type Repositories struct {
	Users   repository.UserRepository
	Teams   repository.TeamRepository
	Games   repository.GameRepository
	Results repository.ResultRepository
	Outbox  repository.OutboxRepository
}

// PostgresRepositories returns the pgx-backed repositories.
func PostgresRepositories() Repositories {
	return Repositories{
		Users:   repository.NewUserRepository(),
		Teams:   repository.NewTeamRepository(),
		Games:   repository.NewGameRepository(),
		Results: repository.NewResultRepository(),
		Outbox:  repository.NewOutboxRepository(),
	}
}

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	DB     repository.TxBeginner
	Repos  Repositories
	JWTMgr *auth.JWTManager
	Logger *slog.Logger

	ScorePolicy policy.ScorePolicy
	// Cache backs the QR identity cache and refresh-token revocations.
	Cache projection.Store
	// Blobs receives QR images; nil disables uploads.
	Blobs service.BlobStore
	// Hub streams leaderboard changes; nil disables /ws/leaderboard.
	Hub *infra.WSHub

	CORSOrigins     string
	LoginRateLimit  int
	VerifyRateLimit int
	// TrustedProxies may set X-Forwarded-For; the rate limiters key on the
	// address they report.
	TrustedProxies []netip.Prefix
	ReadyChecks    map[string]infra.Pinger
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	db := deps.DB
	repos := deps.Repos
	logger := deps.Logger

	// Ledger engine
	engine := ledger.NewEngine(repos.Users, repos.Teams, repos.Games, repos.Results, repos.Outbox, deps.ScorePolicy)

	// Services
	var notify service.Notifier = service.NopNotifier{}
	if deps.Hub != nil {
		notify = deps.Hub
	}
	qrSvc := service.NewQRService(db, repos.Users, deps.Cache, deps.Blobs, guard.NewCircuitBreaker(5, 30*time.Second), logger)
	authSvc := service.NewAuthService(db, repos.Users, repos.Outbox, deps.JWTMgr, deps.Cache, qrSvc, logger)
	catalogSvc := service.NewCatalogService(db, repos.Users, repos.Teams, repos.Games, repos.Outbox, qrSvc, logger)
	resultSvc := service.NewResultService(db, engine, repos.Results, guard.NewIdempotencyGuard(24*time.Hour), notify, logger)
	boardSvc := service.NewLeaderboardService(db, repos.Users, repos.Games, repos.Results, logger)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, qrSvc)
	verifyHandler := handler.NewVerifyHandler(qrSvc)
	teamHandler := handler.NewTeamHandler(catalogSvc)
	gameHandler := handler.NewGameHandler(catalogSvc)
	resultHandler := handler.NewResultHandler(resultSvc)
	boardHandler := handler.NewLeaderboardHandler(boardSvc, deps.Hub)

	// Admin handlers
	gameAdmin := adminhandler.NewGameAdminHandler(catalogSvc)
	resultAdmin := adminhandler.NewResultAdminHandler(resultSvc)
	userAdmin := adminhandler.NewUserAdminHandler(catalogSvc)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RealIP(deps.TrustedProxies))
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.Metrics)
	r.Use(handler.CORSWithOrigins(deps.CORSOrigins))

	// Operational endpoints (no auth)
	r.Get("/health", handler.HealthHandler())
	r.Get("/ready", handler.ReadyHandler(deps.ReadyChecks))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/leaderboard", boardHandler.Stream)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(handler.JSONContentType)

		// Auth routes (no auth, rate limited per client IP)
		r.Route("/auth", func(r chi.Router) {
			r.Use(handler.RateLimit(guard.NewRateLimiter(deps.LoginRateLimit, time.Minute)))
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)
		})

		// QR verification (public, scanned by kiosks)
		r.With(handler.RateLimit(guard.NewRateLimiter(deps.VerifyRateLimit, time.Minute))).
			Get("/verify/{qr_id}", verifyHandler.Verify)

		// Public reads
		r.Get("/games", gameHandler.List)
		r.Get("/games/{game_id}", gameHandler.Get)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate(deps.JWTMgr))

			r.Get("/me", authHandler.Me)
			r.Get("/me/qr", authHandler.MyQR)
			r.Get("/me/games", boardHandler.MyGames)
			r.Get("/leaderboard", boardHandler.Leaderboard)
			r.Get("/users/{user_id}/games", boardHandler.GamesForUser)

			r.Route("/teams", func(r chi.Router) {
				r.Get("/", teamHandler.List)
				r.Post("/", teamHandler.Create)
				r.Get("/{team_id}", teamHandler.Get)
				r.Put("/{team_id}", teamHandler.Update)
				r.Delete("/{team_id}", teamHandler.Delete)
			})

			r.Route("/results", func(r chi.Router) {
				r.Get("/", resultHandler.List)
				r.Post("/", resultHandler.Create)
				r.Get("/{result_id}", resultHandler.Get)
			})
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.Authenticate(deps.JWTMgr))
			r.Use(auth.RequireAdmin())

			r.Route("/games", func(r chi.Router) {
				r.Get("/", gameAdmin.ListGames)
				r.Post("/", gameAdmin.CreateGame)
				r.Put("/{game_id}", gameAdmin.UpdateGame)
				r.Delete("/{game_id}", gameAdmin.DeleteGame)
			})

			r.Route("/results", func(r chi.Router) {
				r.Get("/", resultAdmin.ListResults)
				r.Post("/", resultAdmin.CreateResult)
				r.Put("/{result_id}", resultAdmin.UpdateResult)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", userAdmin.ListUsers)
				r.Get("/{id}", userAdmin.GetUser)
				r.Put("/{id}/role", userAdmin.UpdateRole)
				r.Put("/{id}/status", userAdmin.UpdateStatus)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		handler.RespondJSON(w, http.StatusNotFound, map[string]string{
			"code":    "NOT_FOUND",
			"message": "route not found",
		})
	})

	return r
}
