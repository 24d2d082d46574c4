package worker

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lumenreach/engage/internal/pkg/distlock"
	"github.com/lumenreach/engage/internal/pkg/logger"
	"github.com/lumenreach/engage/internal/segmentation"
)

// SegmentRefresher recomputes stale segment counts in the background so
// the UI never blocks on a full audience query.
type SegmentRefresher struct {
	engine   *segmentation.Engine
	lock     distlock.Lock
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSegmentRefresher(db *sql.DB, redisClient *redis.Client, engine *segmentation.Engine, interval time.Duration) *SegmentRefresher {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SegmentRefresher{
		engine:   engine,
		lock:     distlock.New(redisClient, db, "segment-refresher", 2*interval),
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (sr *SegmentRefresher) Start() {
	sr.wg.Add(1)
	go func() {
		defer sr.wg.Done()
		ticker := time.NewTicker(sr.interval)
		defer ticker.Stop()
		logger.Info("segment refresher started", "interval", sr.interval.String())
		for {
			select {
			case <-sr.ctx.Done():
				return
			case <-ticker.C:
				sr.refresh()
			}
		}
	}()
}

func (sr *SegmentRefresher) Stop() {
	sr.cancel()
	sr.wg.Wait()
}

func (sr *SegmentRefresher) refresh() {
	acquired, err := sr.lock.TryAcquire(sr.ctx)
	if err != nil {
		logger.Error("refresher lock error", "error", err.Error())
		return
	}
	if !acquired {
		return
	}
	defer sr.lock.Release(sr.ctx)

	refreshed, err := sr.engine.RefreshStaleCounts(sr.ctx, sr.interval)
	if err != nil {
		logger.Error("segment refresh failed", "error", err.Error())
		return
	}
	if refreshed > 0 {
		logger.Info("segment counts refreshed", "segments", refreshed)
	}
}
