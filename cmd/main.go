package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-co-op/gocron/v2"
	_ "github.com/lib/pq"

	"github.com/nurbekov/courtside/config"
	"github.com/nurbekov/courtside/db"
	"github.com/nurbekov/courtside/feed"
	"github.com/nurbekov/courtside/handlers"
	"github.com/nurbekov/courtside/matchmaking"
	"github.com/nurbekov/courtside/repositories"
	api "github.com/nurbekov/courtside/routes"
	"github.com/nurbekov/courtside/services"
	"github.com/nurbekov/courtside/storage"
)

const janitorInterval = 10 * time.Minute

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	redisClient, err := feed.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("redis connection established")

	uploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	})
	if err != nil {
		logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Cloudflare R2 uploader initialized")

	wsHub := matchmaking.NewHub()
	go wsHub.Run()

	// The relay feeds every published room snapshot into the local hub so
	// viewers on this instance see mutations made on any instance.
	relayCtx, cancelRelay := context.WithCancel(context.Background())
	defer cancelRelay()
	roomFeed := feed.NewRedisFeed(redisClient, wsHub, logger)
	go func() {
		if err := roomFeed.Run(relayCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("change feed relay stopped", slog.Any("error", err))
		}
	}()

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	partyRepo := repositories.NewPostgresPartyRepository(dbConn)
	memberRepo := repositories.NewPostgresMemberRepository(dbConn)
	roomRepo := repositories.NewPostgresRoomRepository(dbConn)
	listingRepo := repositories.NewPostgresListingRepository(dbConn)
	logger.Info("repositories initialized")

	authService := services.NewAuthService(userRepo)
	userService := services.NewUserService(userRepo, uploader)
	partyService := services.NewPartyService(partyRepo, memberRepo)
	memberService := services.NewMemberService(memberRepo, partyRepo, uploader)
	billService := services.NewBillService(partyRepo, memberRepo)
	listingService := services.NewListingService(listingRepo, uploader)
	sessionService := services.NewSessionService(roomRepo, partyRepo, memberRepo, roomFeed, uploader, logger)
	logger.Info("services initialized")

	// Janitor: close sessions whose last snapshot write is older than the
	// configured threshold.
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		logger.Error("failed to create scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(janitorInterval),
		gocron.NewTask(func() {
			closed, err := sessionService.CloseStaleSessions(context.Background(), cfg.SessionStaleAfter)
			if err != nil {
				logger.Error("stale session sweep failed", slog.Any("error", err))
				return
			}
			if closed > 0 {
				logger.Info("closed stale sessions", slog.Int("count", closed))
			}
		}),
	)
	if err != nil {
		logger.Error("failed to schedule stale session sweep", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			logger.Error("failed to shut down scheduler", slog.Any("error", err))
		}
	}()
	logger.Info("stale session janitor started", slog.Duration("interval", janitorInterval))

	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey)
	userHandler := handlers.NewUserHandler(userService)
	partyHandler := handlers.NewPartyHandler(partyService, billService)
	memberHandler := handlers.NewMemberHandler(memberService)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	listingHandler := handlers.NewListingHandler(listingService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, logger)
	logger.Info("HTTP handlers initialized")

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		cfg.JWTSecretKey,
		authHandler,
		userHandler,
		partyHandler,
		memberHandler,
		sessionHandler,
		listingHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
