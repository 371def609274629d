package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"random-photo-backend/internal/config"
	"random-photo-backend/internal/database"
	"random-photo-backend/internal/handlers"
	"random-photo-backend/internal/imageloader"
	"random-photo-backend/internal/media"
	"random-photo-backend/internal/photoapi"
	"random-photo-backend/internal/repository"
	"random-photo-backend/internal/services"
	"random-photo-backend/internal/wallpaper"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	configPath := "config.yaml"
	if path := os.Getenv("PHOTO_CONFIG"); path != "" {
		configPath = path
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Open the shared image store
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to open image store")
	}
	defer closeStore()

	// Initialize services
	photoClient := photoapi.NewClient(photoapi.Options{
		BaseURL:   cfg.PhotoAPI.BaseURL,
		AccessKey: cfg.PhotoAPI.AccessKey,
		PageSize:  cfg.PhotoAPI.PageSize,
		Timeout:   cfg.PhotoAPI.Timeout,
		Debug:     cfg.PhotoAPI.Debug,
	})
	images := imageloader.New(cfg.Images.CacheSize, cfg.Images.CacheTTL, cfg.Images.Timeout, cfg.Images.MaxBytes)
	wallpaperSetter := wallpaper.NewCommandSetter(cfg.Wallpaper.Command, cfg.Wallpaper.Allowed, cfg.Wallpaper.CacheDir)
	wsHub := services.NewWSHub()

	sessions := services.NewSessionService(ctx, services.ScreenDeps{
		Fetcher:   photoClient,
		Images:    images,
		Store:     store,
		Wallpaper: wallpaperSetter,
		Notifier:  wsHub,

		WallpaperOfferTTL: cfg.Wallpaper.OfferTTL,
	}, cfg.JWT.Secret, cfg.Session.TTL)

	reaperDone := make(chan struct{})
	go func() {
		defer close(reaperDone)
		sessions.Run(ctx, time.Minute)
	}()

	log.Info().
		Bool("wallpaper_supported", wallpaperSetter.Supported()).
		Int("container_width", cfg.Grid.ContainerWidth()).
		Msg("Services initialized")

	// Setup router
	r := handlers.NewRouter(handlers.RouterDeps{
		Sessions:       sessions,
		Hub:            wsHub,
		Store:          store,
		ContainerWidth: cfg.Grid.ContainerWidth(),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Tear down every screen, cancelling in-flight fetches and saves
	stop()
	<-reaperDone

	log.Info().Msg("Server exited")
}

// openStore builds the configured image store and its cleanup
func openStore(ctx context.Context, cfg *config.Config) (media.Store, func(), error) {
	switch cfg.Store.Driver {
	case "fs":
		store, err := media.NewFSStore(cfg.Store.FS.Dir, cfg.Store.PendingFlag, cfg.Store.FS.RequirePermission)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("dir", store.Dir()).Bool("pending_flag", cfg.Store.PendingFlag).Msg("Using directory image store")
		return store, func() {}, nil

	case "s3":
		if err := database.Migrate(&cfg.Database); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}

		db, err := database.Connect(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}

		client, err := media.NewS3Client(ctx, cfg.AWS)
		if err != nil {
			db.Close()
			return nil, nil, err
		}

		log.Info().Str("bucket", cfg.AWS.S3Bucket).Msg("Using S3 image store")
		return media.NewS3Store(repository.NewImageRepository(db), client, cfg.AWS.S3Bucket), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
