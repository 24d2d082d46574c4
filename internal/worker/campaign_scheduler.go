package worker

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lumenreach/engage/internal/crm"
	"github.com/lumenreach/engage/internal/pkg/distlock"
	"github.com/lumenreach/engage/internal/pkg/logger"
	"github.com/lumenreach/engage/internal/segmentation"
)

// CampaignScheduler polls for scheduled campaigns whose send time has
// arrived, moves them to sending, and materializes their audience into
// the queue.
type CampaignScheduler struct {
	store    *crm.Store
	segments *segmentation.Engine
	lock     distlock.Lock
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCampaignScheduler(db *sql.DB, redisClient *redis.Client, segments *segmentation.Engine, interval time.Duration) *CampaignScheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CampaignScheduler{
		store:    crm.NewStore(db),
		segments: segments,
		lock:     distlock.New(redisClient, db, "campaign-scheduler", 2*interval),
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (cs *CampaignScheduler) Start() {
	cs.wg.Add(1)
	go func() {
		defer cs.wg.Done()
		ticker := time.NewTicker(cs.interval)
		defer ticker.Stop()
		logger.Info("campaign scheduler started", "interval", cs.interval.String())
		for {
			select {
			case <-cs.ctx.Done():
				return
			case <-ticker.C:
				cs.poll()
			}
		}
	}()
}

func (cs *CampaignScheduler) Stop() {
	cs.cancel()
	cs.wg.Wait()
}

func (cs *CampaignScheduler) poll() {
	acquired, err := cs.lock.TryAcquire(cs.ctx)
	if err != nil {
		logger.Error("scheduler lock error", "error", err.Error())
		return
	}
	if !acquired {
		return
	}
	defer cs.lock.Release(cs.ctx)

	due, err := cs.store.GetDueScheduledCampaigns(cs.ctx, time.Now())
	if err != nil {
		logger.Error("failed to list due campaigns", "error", err.Error())
		return
	}
	for _, c := range due {
		if err := cs.launch(c); err != nil {
			logger.Error("failed to launch campaign",
				"campaign_id", c.ID.String(), "error", err.Error())
		}
	}
}

func (cs *CampaignScheduler) launch(c *crm.Campaign) error {
	// Claim the campaign before enqueueing so a second scheduler sees
	// it already moved.
	if err := cs.store.TransitionCampaign(cs.ctx, c.OrganizationID, c.ID, crm.CampaignSending); err != nil {
		return err
	}

	queued, err := cs.enqueueAudience(cs.ctx, c)
	if err != nil {
		return err
	}
	logger.Info("campaign launched",
		"campaign_id", c.ID.String(), "name", c.Name, "queued", queued)

	if queued == 0 {
		// Empty audience, nothing for the processor to drain.
		return cs.store.TransitionCampaign(cs.ctx, c.OrganizationID, c.ID, crm.CampaignSent)
	}
	return nil
}

func (cs *CampaignScheduler) enqueueAudience(ctx context.Context, c *crm.Campaign) (int, error) {
	if c.SegmentID != nil && cs.segments != nil {
		previews, err := cs.segments.MatchingContacts(ctx, c.OrganizationID, *c.SegmentID)
		if err != nil {
			return 0, err
		}
		contacts := make([]*crm.Contact, 0, len(previews))
		for _, p := range previews {
			contacts = append(contacts, &crm.Contact{ID: p.ID, Phone: p.Phone})
		}
		return cs.store.EnqueueCampaignContacts(ctx, c.ID, contacts)
	}
	return cs.store.EnqueueCampaignAudience(ctx, c)
}

// LaunchNow moves a draft campaign straight to sending and queues its
// audience. Used by the API for unscheduled sends.
func (cs *CampaignScheduler) LaunchNow(ctx context.Context, orgID, campaignID uuid.UUID) (int, error) {
	c, err := cs.store.GetCampaign(ctx, orgID, campaignID)
	if err != nil {
		return 0, err
	}
	if c == nil {
		return 0, sql.ErrNoRows
	}
	if err := cs.store.TransitionCampaign(ctx, orgID, campaignID, crm.CampaignSending); err != nil {
		return 0, err
	}
	return cs.enqueueAudience(ctx, c)
}
