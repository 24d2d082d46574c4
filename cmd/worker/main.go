package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/lumenreach/engage/internal/config"
	"github.com/lumenreach/engage/internal/crm"
	"github.com/lumenreach/engage/internal/segmentation"
	"github.com/lumenreach/engage/internal/sms"
	"github.com/lumenreach/engage/internal/storage"
	"github.com/lumenreach/engage/internal/worker"
)

// The worker binary runs the background loops: scheduled campaign
// launches, queue draining, segment count refreshes and CSV imports.
// Multiple instances can run side by side; distributed locks keep the
// scheduler and refresher single-active.
func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Printf("Warning: redis unavailable at %s: %v", cfg.Redis.Addr, err)
		redisClient = nil
	}

	store := crm.NewStore(db)
	smsClient := sms.NewClient(cfg.SMS)
	segments := segmentation.NewEngine(db, redisClient,
		time.Duration(cfg.Segments.CountCacheTTLMinutes)*time.Minute)

	limiter := worker.NewRateLimiter(redisClient, cfg.Sending.RatePerSecond)
	sender := worker.NewSender(store, smsClient, limiter)

	scheduler := worker.NewCampaignScheduler(db, redisClient, segments,
		time.Duration(cfg.Sending.SchedulePollSec)*time.Second)
	scheduler.Start()
	defer scheduler.Stop()

	processor := worker.NewCampaignProcessor(db, sender, cfg.Sending.BatchSize)
	processor.Start()
	defer processor.Stop()

	refresher := worker.NewSegmentRefresher(db, redisClient, segments,
		time.Duration(cfg.Segments.RefreshIntervalMinutes)*time.Minute)
	refresher.Start()
	defer refresher.Stop()

	var files storage.FileStore
	if cfg.Imports.S3Bucket != "" {
		files, err = storage.NewS3Store(context.Background(), storage.S3Options{
			Bucket: cfg.Imports.S3Bucket,
			Region: cfg.Imports.S3Region,
		})
	} else {
		files, err = storage.NewLocalStore("data/imports")
	}
	if err != nil {
		log.Fatalf("Failed to initialize file storage: %v", err)
	}

	imports := worker.NewImportProcessor(db, files, redisClient, cfg.Imports.BatchSize)
	imports.Start()
	defer imports.Stop()

	log.Println("Worker started: scheduler, processor, segment refresher, import processor")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Worker shutting down...")
	sent, failed := processor.Stats()
	log.Printf("Session totals: sent=%d failed=%d", sent, failed)
}
