package worker

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lumenreach/engage/internal/crm"
	"github.com/lumenreach/engage/internal/pkg/logger"
)

const (
	// MaxSendAttempts is how many times a queue item is retried before
	// it is marked failed.
	MaxSendAttempts = 3

	defaultProcessorInterval = 5 * time.Second
)

// CampaignProcessor drains the campaign queue: it claims pending items
// in batches, sends each one, and completes campaigns whose queue is
// empty.
type CampaignProcessor struct {
	store     *crm.Store
	sender    *Sender
	batchSize int
	interval  time.Duration

	sent   int64
	failed int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCampaignProcessor(db *sql.DB, sender *Sender, batchSize int) *CampaignProcessor {
	if batchSize <= 0 {
		batchSize = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CampaignProcessor{
		store:     crm.NewStore(db),
		sender:    sender,
		batchSize: batchSize,
		interval:  defaultProcessorInterval,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (p *CampaignProcessor) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		logger.Info("campaign processor started", "batch_size", p.batchSize)
		for {
			select {
			case <-p.ctx.Done():
				return
			case <-ticker.C:
				p.drain()
			}
		}
	}()
}

func (p *CampaignProcessor) Stop() {
	p.cancel()
	p.wg.Wait()
	logger.Info("campaign processor stopped",
		"sent", atomic.LoadInt64(&p.sent), "failed", atomic.LoadInt64(&p.failed))
}

func (p *CampaignProcessor) Stats() (sent, failed int64) {
	return atomic.LoadInt64(&p.sent), atomic.LoadInt64(&p.failed)
}

func (p *CampaignProcessor) drain() {
	campaigns, err := p.store.GetSendingCampaigns(p.ctx)
	if err != nil {
		logger.Error("failed to list sending campaigns", "error", err.Error())
		return
	}
	for _, c := range campaigns {
		if err := p.processCampaign(c); err != nil {
			logger.Error("campaign batch failed",
				"campaign_id", c.ID.String(), "error", err.Error())
		}
	}
}

func (p *CampaignProcessor) processCampaign(c *crm.Campaign) error {
	items, err := p.store.DequeueCampaignBatch(p.ctx, c.ID, p.batchSize)
	if err != nil {
		return err
	}

	for i, item := range items {
		if err := p.processItem(c, item); err != nil {
			if errors.Is(err, ErrDailyLimit) {
				logger.Warn("daily send limit reached, pausing campaign",
					"campaign_id", c.ID.String())
				// Unsent claimed items go back to pending so the resumed
				// campaign can still reach them and complete.
				unsent := make([]uuid.UUID, 0, len(items)-i)
				for _, rest := range items[i:] {
					unsent = append(unsent, rest.ID)
				}
				if relErr := p.store.ReleaseQueueItems(p.ctx, unsent); relErr != nil {
					logger.Error("failed to release queue items",
						"campaign_id", c.ID.String(), "error", relErr.Error())
				}
				return p.store.TransitionCampaign(p.ctx, c.OrganizationID, c.ID, crm.CampaignPaused)
			}
		}
	}

	remaining, err := p.store.CountPendingQueueItems(p.ctx, c.ID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		logger.Info("campaign completed", "campaign_id", c.ID.String(), "name", c.Name)
		return p.store.TransitionCampaign(p.ctx, c.OrganizationID, c.ID, crm.CampaignSent)
	}
	return nil
}

func (p *CampaignProcessor) processItem(c *crm.Campaign, item *crm.QueueItem) error {
	_, err := p.sender.SendCampaignMessage(p.ctx, c, item)
	if err != nil {
		if errors.Is(err, ErrDailyLimit) {
			// Not a delivery failure. The item stays claimed and the
			// caller releases the whole tail of the batch.
			return err
		}
		atomic.AddInt64(&p.failed, 1)
		if markErr := p.store.MarkQueueItemFailed(p.ctx, item.ID, err.Error(), MaxSendAttempts); markErr != nil {
			logger.Error("failed to mark queue item",
				"item_id", item.ID.String(), "error", markErr.Error())
		}
		if item.Attempts >= MaxSendAttempts {
			if cntErr := p.store.IncrementCampaignCounter(p.ctx, c.ID, crm.EventFailed); cntErr != nil {
				logger.Error("failed to bump failure counter",
					"campaign_id", c.ID.String(), "error", cntErr.Error())
			}
		}
		return err
	}

	atomic.AddInt64(&p.sent, 1)
	if err := p.store.MarkQueueItemSent(p.ctx, item.ID); err != nil {
		return err
	}
	return p.store.IncrementCampaignCounter(p.ctx, c.ID, crm.EventSent)
}
