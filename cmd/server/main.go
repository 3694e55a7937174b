package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/linkcut/linkcut/internal/cache"
	"github.com/linkcut/linkcut/internal/config"
	"github.com/linkcut/linkcut/internal/database"
	"github.com/linkcut/linkcut/internal/handlers"
	"github.com/linkcut/linkcut/internal/logger"
	"github.com/linkcut/linkcut/internal/metadata"
	"github.com/linkcut/linkcut/internal/redis"
	"github.com/linkcut/linkcut/internal/service"
	"github.com/linkcut/linkcut/internal/storage"
	"github.com/linkcut/linkcut/internal/track"
	"github.com/linkcut/linkcut/internal/unwrap"
)

func main() {
	log := logger.New("server")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, database.Config{
		PrimaryDSN:      cfg.Database.PrimaryDSN,
		ReplicaDSNs:     cfg.Database.ReplicaDSNs,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		log.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal("Failed to migrate schema: %v", err)
	}

	store := storage.NewPostgresStorage(db)

	// With Redis configured, clicks flow through a stream and a consumer
	// worker; without it they are written straight to storage.
	var recorder track.Recorder = track.NewStoreRecorder(store, nil)
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()

		recorder = track.NewProducer(redisClient, cfg.Tracking.StreamName)

		consumer := track.NewConsumer(redisClient, store, track.ConsumerConfig{
			Stream:       cfg.Tracking.StreamName,
			Group:        cfg.Tracking.ConsumerGroup,
			Consumer:     cfg.Tracking.ConsumerName,
			BatchSize:    cfg.Tracking.BatchSize,
			BlockTime:    cfg.Tracking.BlockTime,
			PollInterval: cfg.Tracking.PollInterval,
		})
		go func() {
			if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("Click consumer stopped: %v", err)
			}
		}()
	}

	shortener := service.NewShortener(
		store,
		cache.New(cfg.Cache.Capacity),
		unwrap.NewResolver(cfg.Unwrap.MaxHops, cfg.Unwrap.HopTimeout),
		recorder,
		cfg.Server.BaseURL,
	)
	scraper := metadata.NewScraper(cfg.Metadata.FetchTimeout)

	handler := handlers.New(shortener, scraper)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: handler.Router(),
	}

	go func() {
		log.Info("Listening on :%s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed: %v", err)
	}
}
