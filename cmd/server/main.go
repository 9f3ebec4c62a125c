package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/evently/internal/accounts"
	"github.com/hugh/evently/internal/api"
	"github.com/hugh/evently/internal/auth"
	"github.com/hugh/evently/internal/database"
	"github.com/hugh/evently/internal/events"
	"github.com/hugh/evently/internal/notify"
	"github.com/hugh/evently/internal/tasks"
	"github.com/hugh/evently/internal/verification"
	"github.com/hugh/evently/pkg/config"
	"github.com/hugh/evently/pkg/crypto"
	"github.com/hugh/evently/pkg/queue"
	"github.com/hugh/evently/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting Evently server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Production schemas are managed outside the server.
	if cfg.Server.IsDevelopment() {
		if err := database.AutoMigrate(db); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	// Redis is optional: without it OAuth state is kept in memory, OTP
	// throttles are off and signup emails are sent inline.
	var redisClient redis.UniversalClient
	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := rc.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis", "error", err)
		rc.Close()
	} else {
		redisClient = rc
	}

	var asynqClient *asynq.Client
	var emailQueue verification.EmailQueue
	if redisClient != nil {
		asynqClient = queue.NewClient(&cfg.Redis)
		emailQueue = tasks.NewEnqueuer(asynqClient)
	}

	signupEmail := cfg.Verification.SignupEmail
	if signupEmail == config.SignupEmailAsync && emailQueue == nil {
		logger.Warn("async signup email needs Redis, sending inline instead")
		signupEmail = config.SignupEmailSync
	}

	var states auth.StateStore = auth.NewMemoryStateStore()
	if redisClient != nil {
		states = auth.NewRedisStateStore(redisClient)
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}
	if cfg.Encryption.Key == "" {
		logger.Warn("ENCRYPTION_KEY not set, using generated key - stored provider tokens will be unreadable after restart")
	}

	notifier, err := notify.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to configure notifications", "error", err)
		os.Exit(1)
	}

	store := accounts.NewGormStore(db)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(store, jwtService, encryptor, logger)

	verifier := verification.NewService(store, verification.NewIssuer(nil, nil), notifier, verification.Config{
		SignupEmail:        signupEmail,
		DefaultCountryCode: cfg.Verification.DefaultCountryCode,
		Queue:              emailQueue,
		SendThrottle:       verification.NewThrottle(redisClient, "otp:send:", cfg.Verification.OTPSendsPerHour, time.Hour),
		VerifyThrottle:     verification.NewThrottle(redisClient, "otp:verify:", cfg.Verification.OTPVerifyAttempts, verification.OTPTTL),
	}, logger)

	providers := auth.ProvidersFromConfig(cfg.OAuth)
	for _, p := range providers.List() {
		logger.Info("oauth provider enabled", "provider", p.ID)
	}

	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		JWTService:     jwtService,
		AuthService:    authService,
		Signups:        verifier,
		Verifier:       verifier,
		Events:         events.NewService(db, logger),
		Providers:      providers,
		States:         states,
		AppURL:         cfg.App.URL,
		AllowedOrigins: cfg.App.AllowedOrigins,
		RateLimitReqs:  cfg.RateLimit.Requests,
		RateLimitSecs:  cfg.RateLimit.WindowSeconds,
		Development:    cfg.Server.IsDevelopment(),
		SecureCookies:  !cfg.Server.IsDevelopment(),
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	router.Close()

	if asynqClient != nil {
		asynqClient.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	if err := database.Close(db); err != nil {
		logger.Error("failed to close database", "error", err)
	}

	logger.Info("server stopped")
}
