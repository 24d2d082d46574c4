package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/lumenreach/engage/internal/api"
	"github.com/lumenreach/engage/internal/auth"
	"github.com/lumenreach/engage/internal/config"
	"github.com/lumenreach/engage/internal/crm"
	"github.com/lumenreach/engage/internal/journeys"
	"github.com/lumenreach/engage/internal/segmentation"
	"github.com/lumenreach/engage/internal/sms"
	"github.com/lumenreach/engage/internal/storage"
	"github.com/lumenreach/engage/internal/worker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Printf("Warning: redis unavailable at %s, rate limits and count caches degrade: %v", cfg.Redis.Addr, err)
		redisClient = nil
	}

	store := crm.NewStore(db)
	smsClient := sms.NewClient(cfg.SMS)
	segments := segmentation.NewEngine(db, redisClient,
		time.Duration(cfg.Segments.CountCacheTTLMinutes)*time.Minute)

	limiter := worker.NewRateLimiter(redisClient, cfg.Sending.RatePerSecond)
	sender := worker.NewSender(store, smsClient, limiter)

	journeyEngine := journeys.NewEngine(db, sender,
		time.Duration(cfg.Journeys.TickIntervalSeconds)*time.Second)
	if cfg.Journeys.Enabled {
		journeyEngine.Start()
		defer journeyEngine.Stop()
	}

	files, err := buildFileStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize file storage: %v", err)
	}

	// By default the scheduler instance here only serves immediate
	// launches from the API; the polling loops run in cmd/worker. With
	// sending.embed_processor the server runs the send pipeline itself
	// for single-process deployments.
	scheduler := worker.NewCampaignScheduler(db, redisClient, segments,
		time.Duration(cfg.Sending.SchedulePollSec)*time.Second)
	if cfg.Sending.EmbedProcessor {
		scheduler.Start()
		defer scheduler.Stop()
		processor := worker.NewCampaignProcessor(db, sender, cfg.Sending.BatchSize)
		processor.Start()
		defer processor.Stop()
		log.Println("Embedded campaign processor enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var authManager *auth.Manager
	if cfg.Auth.Enabled && cfg.Auth.GoogleClientID != "" {
		authManager = auth.NewManager(&cfg.Auth)
		authManager.StartSessionCleanup(ctx)
		log.Printf("Google OAuth enabled for domain %q", cfg.Auth.AllowedDomain)
	} else {
		log.Println("Authentication disabled")
	}

	handlers := api.NewHandlers(store, segments, journeyEngine, smsClient,
		files, scheduler, authManager, cfg.SMS.WebhookSecret)
	server := api.NewServer(cfg.Server, handlers, authManager)

	go func() {
		log.Printf("API server listening on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, err
	}
	return db, nil
}

func buildFileStore(cfg *config.Config) (storage.FileStore, error) {
	if cfg.Imports.S3Bucket != "" {
		return storage.NewS3Store(context.Background(), storage.S3Options{
			Bucket: cfg.Imports.S3Bucket,
			Region: cfg.Imports.S3Region,
		})
	}
	return storage.NewLocalStore("data/imports")
}
