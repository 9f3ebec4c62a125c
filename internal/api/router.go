package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/hugh/evently/internal/api/handlers"
	"github.com/hugh/evently/internal/api/middleware"
	"github.com/hugh/evently/internal/auth"
	"github.com/hugh/evently/internal/database/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
	limiters []*middleware.RateLimiter
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          redis.UniversalClient // optional, reported by /health
	Logger         *slog.Logger
	JWTService     auth.TokenService
	AuthService    auth.Authenticator
	Signups        handlers.SignUpper
	Verifier       handlers.Verifier
	Events         handlers.EventCatalog
	Providers      *auth.Providers
	States         auth.StateStore
	AppURL         string
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
	Development    bool
	SecureCookies  bool
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()
	router := &Router{Router: r}

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(cfg.Logger))

	// Per-IP limit for everything
	if cfg.RateLimitReqs > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimitReqs, time.Duration(cfg.RateLimitSecs)*time.Second)
		router.limiters = append(router.limiters, limiter)
		r.Use(middleware.RateLimit(limiter, middleware.ByIP))
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{cfg.AppURL}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Auth-Token", middleware.CSRFHeaderName, middleware.RequestIDHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	opts := handlers.Options{
		Logger:        cfg.Logger,
		Development:   cfg.Development,
		SessionTTL:    sessionTTL(cfg.JWTService),
		SecureCookies: cfg.SecureCookies,
	}

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.Signups, opts)
	verificationHandler := handlers.NewVerificationHandler(cfg.Verifier, cfg.AuthService, opts)
	oauthHandler := handlers.NewOAuthHandler(cfg.Providers, cfg.States, cfg.AuthService, cfg.AppURL, opts)
	eventHandler := handlers.NewEventHandler(cfg.Events, opts)

	requireAuth := middleware.Auth(cfg.JWTService)
	requireOrganizer := middleware.RequireRole(roleLookup(cfg.AuthService), models.RoleOrganizer, models.RoleAdmin)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.CSRF(cfg.SecureCookies))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.SignUp)
			r.Post("/signin", authHandler.SignIn)
			r.Post("/signout", authHandler.SignOut)

			r.Post("/verify-email", verificationHandler.VerifyEmail)
			r.Get("/verify-email", verificationHandler.ResendVerification)

			r.Get("/providers", oauthHandler.Providers)
			r.Get("/oauth/{provider}", oauthHandler.Redirect)
			r.Get("/oauth/{provider}/callback", oauthHandler.Callback)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)

				r.Get("/check-role", verificationHandler.CheckRole)
				r.Post("/verify-phone", verificationHandler.VerifyPhone)
				r.Get("/session", authHandler.Session)
				r.Post("/session", authHandler.RefreshSession)
			})
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", eventHandler.List)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, requireOrganizer)
				r.Post("/", eventHandler.Create)
			})
		})
	})

	return router
}

// Close releases the background resources held by the router.
func (r *Router) Close() {
	for _, l := range r.limiters {
		l.Close()
	}
}

func roleLookup(authService auth.Authenticator) middleware.RoleLookup {
	return func(ctx context.Context, userID uuid.UUID) (models.Role, error) {
		user, err := authService.GetUserByID(ctx, userID)
		if err != nil {
			return "", err
		}
		return user.Role, nil
	}
}

func sessionTTL(tokens auth.TokenService) time.Duration {
	if t, ok := tokens.(interface{ Expiry() time.Duration }); ok {
		return t.Expiry()
	}
	return 30 * 24 * time.Hour
}

var _ http.Handler = (*Router)(nil)
