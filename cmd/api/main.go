package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"flierbuilder/internal/api"
	"flierbuilder/internal/auth"
	"flierbuilder/internal/config"
	"flierbuilder/internal/database"
	"flierbuilder/internal/errlog"
	"flierbuilder/internal/handoff"
	"flierbuilder/internal/render"
	"flierbuilder/internal/session"
	"flierbuilder/internal/source"
	"flierbuilder/internal/storage"
	"flierbuilder/internal/web"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(errlog.NewHandler(slog.NewTextHandler(os.Stdout, nil)))
	slog.SetDefault(logger)

	log.Printf("api bootstrapped with db host=%s port=%d db=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	db, err := database.InitDatabase(cfg.Database, logger)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	log.Printf("database migrated")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer asynqClient.Close()

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	sessions, err := auth.NewSessionService([]byte(cfg.Auth.SessionSecret), cfg.Auth.SessionTTL)
	if err != nil {
		log.Fatalf("init session service: %v", err)
	}
	renderer, err := render.New(logger)
	if err != nil {
		log.Fatalf("init renderer: %v", err)
	}
	pages, err := web.NewPages()
	if err != nil {
		log.Fatalf("init pages: %v", err)
	}

	httpClient := source.NewHTTPClient(cfg.Source.FetchTimeout)
	handoffs := handoff.NewStore(redisClient, cfg.Handoff.TTL)
	states := session.NewStore(redisClient, cfg.Session.TTL)
	resource := source.ResourceSource{Client: httpClient, URL: cfg.Source.DefaultURL, Logger: logger}
	resolver := source.NewResolver(logger,
		source.HandoffSource{Store: handoffs},
		source.StateSource{},
		resource,
	)

	fliers := api.NewFlierStore(db)
	probeClient := source.NewProbeClient(cfg.Source.FetchTimeout)
	photos := api.NewPhotoHandler(storageClient, cfg.Clamd.Addr, probeClient, redisClient, cfg.API.MaxUploadBytes)

	router := api.NewRouter(api.Handlers{
		Logger:       logger,
		Sessions:     sessions,
		States:       states,
		SecureCookie: cfg.Auth.SecureCookie,
		PasscodeHash: cfg.Editor.PasscodeHash,
		Editor:       api.NewEditorHandler(pages, resource, handoffs, fliers, asynqClient, photos, cfg.API.MaxUploadBytes, cfg.Worker.MaxRetry),
		Photos:       photos,
		Preview:      api.NewPreviewHandler(resolver, renderer),
		Fliers:       api.NewFlierHandler(fliers, storageClient),
		Login:        api.NewLoginHandler(pages, cfg.Editor.PasscodeHash, redisClient),
		Ws:           api.NewWsHandler(redisClient, logger, cfg.API.AllowedOrigins),
	})

	address := fmt.Sprintf(":%d", cfg.API.Port)
	logger.Info("api listening", slog.String("addr", address), slog.Bool("passcode_gate", cfg.Editor.PasscodeHash != ""))
	if err := router.Run(address); err != nil {
		log.Fatalf("failed to start api server: %v", err)
	}
}
