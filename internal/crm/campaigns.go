package crm

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CreateCampaign creates a new campaign in draft state
func (s *Store) CreateCampaign(ctx context.Context, c *Campaign) error {
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = time.Now()
	if c.Status == "" {
		c.Status = CampaignDraft
	}

	query := `INSERT INTO campaigns (id, organization_id, list_id, segment_id, template_id,
		name, body, from_number, media_url, status, scheduled_at, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.db.ExecContext(ctx, query, c.ID, c.OrganizationID, c.ListID, c.SegmentID,
		c.TemplateID, c.Name, c.Body, c.FromNumber, c.MediaURL, c.Status,
		c.ScheduledAt, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	return err
}

const campaignColumns = `SELECT id, organization_id, list_id, segment_id, template_id, name, body,
	from_number, media_url, status, scheduled_at, started_at, completed_at,
	total_queued, total_sent, total_delivered, total_failed, total_replies, total_clicks,
	created_by, created_at, updated_at`

func (s *Store) scanCampaign(row rowScanner) (*Campaign, error) {
	c := &Campaign{}
	err := row.Scan(&c.ID, &c.OrganizationID, &c.ListID, &c.SegmentID, &c.TemplateID,
		&c.Name, &c.Body, &c.FromNumber, &c.MediaURL, &c.Status, &c.ScheduledAt,
		&c.StartedAt, &c.CompletedAt, &c.TotalQueued, &c.TotalSent, &c.TotalDelivered,
		&c.TotalFailed, &c.TotalReplies, &c.TotalClicks, &c.CreatedBy,
		&c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetCampaign retrieves a campaign by ID
func (s *Store) GetCampaign(ctx context.Context, orgID, campaignID uuid.UUID) (*Campaign, error) {
	query := campaignColumns + ` FROM campaigns WHERE id = $1 AND organization_id = $2`
	return s.scanCampaign(s.db.QueryRowContext(ctx, query, campaignID, orgID))
}

// GetCampaigns retrieves campaigns for an organization, optionally by status
func (s *Store) GetCampaigns(ctx context.Context, orgID uuid.UUID, status string, limit, offset int) ([]*Campaign, int, error) {
	where := "organization_id = $1"
	args := []interface{}{orgID}
	if status != "" {
		args = append(args, status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM campaigns WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`%s FROM campaigns WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		campaignColumns, where, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var campaigns []*Campaign
	for rows.Next() {
		c, err := s.scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, total, rows.Err()
}

// UpdateCampaign updates a draft or paused campaign's content
func (s *Store) UpdateCampaign(ctx context.Context, c *Campaign) error {
	c.UpdatedAt = time.Now()

	query := `UPDATE campaigns SET name = $1, body = $2, from_number = $3, media_url = $4,
		list_id = $5, segment_id = $6, template_id = $7, scheduled_at = $8, updated_at = $9
		WHERE id = $10 AND organization_id = $11 AND status IN ('draft', 'paused', 'scheduled')`

	res, err := s.db.ExecContext(ctx, query, c.Name, c.Body, c.FromNumber, c.MediaURL,
		c.ListID, c.SegmentID, c.TemplateID, c.ScheduledAt, c.UpdatedAt,
		c.ID, c.OrganizationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("campaign not found or not editable")
	}
	return nil
}

// DeleteCampaign removes a campaign that has never entered the send
// pipeline. Anything past draft is cancelled instead so its queue and
// event history survive.
func (s *Store) DeleteCampaign(ctx context.Context, orgID, campaignID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM campaigns WHERE id = $1 AND organization_id = $2 AND status = 'draft'`,
		campaignID, orgID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("campaign not found or not a draft")
	}
	return nil
}

// campaign status transitions allowed from each state
var campaignTransitions = map[string][]string{
	CampaignDraft:     {CampaignScheduled, CampaignSending, CampaignCancelled},
	CampaignScheduled: {CampaignSending, CampaignDraft, CampaignCancelled},
	CampaignSending:   {CampaignSent, CampaignPaused, CampaignCancelled},
	CampaignPaused:    {CampaignSending, CampaignCancelled},
}

// TransitionCampaign moves a campaign between statuses, enforcing the
// allowed state machine. Terminal states (sent, cancelled) never change.
func (s *Store) TransitionCampaign(ctx context.Context, orgID, campaignID uuid.UUID, to string) error {
	c, err := s.GetCampaign(ctx, orgID, campaignID)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("campaign not found")
	}

	allowed := false
	for _, next := range campaignTransitions[c.Status] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("cannot transition campaign from %s to %s", c.Status, to)
	}

	query := `UPDATE campaigns SET status = $1, updated_at = NOW()`
	switch to {
	case CampaignSending:
		query += `, started_at = COALESCE(started_at, NOW())`
	case CampaignSent, CampaignCancelled:
		query += `, completed_at = NOW()`
	}
	query += ` WHERE id = $2 AND organization_id = $3 AND status = $4`

	res, err := s.db.ExecContext(ctx, query, to, campaignID, orgID, c.Status)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("campaign status changed concurrently")
	}
	return nil
}

// GetSendingCampaigns returns all campaigns currently in the sending state
func (s *Store) GetSendingCampaigns(ctx context.Context) ([]*Campaign, error) {
	query := campaignColumns + ` FROM campaigns WHERE status = 'sending' ORDER BY started_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []*Campaign
	for rows.Next() {
		c, err := s.scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// GetDueScheduledCampaigns returns scheduled campaigns whose send time has passed
func (s *Store) GetDueScheduledCampaigns(ctx context.Context, now time.Time) ([]*Campaign, error) {
	query := campaignColumns + ` FROM campaigns
		WHERE status = 'scheduled' AND scheduled_at IS NOT NULL AND scheduled_at <= $1
		ORDER BY scheduled_at`

	rows, err := s.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []*Campaign
	for rows.Next() {
		c, err := s.scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// EnqueueCampaignAudience builds the send queue for a campaign from its
// list, excluding unsubscribed and suppressed contacts. Returns the
// number of recipients queued.
func (s *Store) EnqueueCampaignAudience(ctx context.Context, c *Campaign) (int, error) {
	if c.ListID == nil {
		return 0, fmt.Errorf("campaign has no audience list")
	}

	query := `INSERT INTO campaign_queue (id, campaign_id, contact_id, phone, status, created_at)
		SELECT gen_random_uuid(), $1, ct.id, ct.phone, 'pending', NOW()
		FROM contacts ct
		WHERE ct.organization_id = $2 AND ct.list_id = $3 AND ct.status = 'subscribed'
		AND NOT EXISTS (
			SELECT 1 FROM suppressions sp
			WHERE sp.organization_id = ct.organization_id AND sp.phone_hash = ct.phone_hash
		)
		ON CONFLICT (campaign_id, contact_id) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query, c.ID, c.OrganizationID, *c.ListID)
	if err != nil {
		return 0, err
	}
	queued, _ := res.RowsAffected()

	_, err = s.db.ExecContext(ctx,
		`UPDATE campaigns SET total_queued = total_queued + $1, updated_at = NOW() WHERE id = $2`,
		queued, c.ID)
	return int(queued), err
}

// EnqueueCampaignContacts queues an explicit contact set, used for
// segment-targeted campaigns where the audience was materialized first.
func (s *Store) EnqueueCampaignContacts(ctx context.Context, campaignID uuid.UUID, contacts []*Contact) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO campaign_queue (id, campaign_id, contact_id, phone, status, created_at)
		VALUES ($1, $2, $3, $4, 'pending', NOW())
		ON CONFLICT (campaign_id, contact_id) DO NOTHING`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	queued := 0
	for _, c := range contacts {
		res, err := stmt.ExecContext(ctx, uuid.New(), campaignID, c.ID, c.Phone)
		if err != nil {
			return 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			queued++
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE campaigns SET total_queued = total_queued + $1, updated_at = NOW() WHERE id = $2`,
		queued, campaignID); err != nil {
		return 0, err
	}

	return queued, tx.Commit()
}

// DequeueCampaignBatch claims up to limit pending queue items for a
// campaign. Uses SKIP LOCKED so concurrent workers never double-send.
func (s *Store) DequeueCampaignBatch(ctx context.Context, campaignID uuid.UUID, limit int) ([]*QueueItem, error) {
	query := `UPDATE campaign_queue SET status = 'processing', attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM campaign_queue
			WHERE campaign_id = $1 AND status = 'pending'
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, campaign_id, contact_id, phone, status, attempts, last_error, processed_at, created_at`

	rows, err := s.db.QueryContext(ctx, query, campaignID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*QueueItem
	for rows.Next() {
		item := &QueueItem{}
		var lastError sql.NullString
		if err := rows.Scan(&item.ID, &item.CampaignID, &item.ContactID, &item.Phone,
			&item.Status, &item.Attempts, &lastError, &item.ProcessedAt, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.LastError = lastError.String
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkQueueItemSent finalizes a queue item after a successful send
func (s *Store) MarkQueueItemSent(ctx context.Context, itemID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE campaign_queue SET status = 'sent', processed_at = NOW() WHERE id = $1`, itemID)
	return err
}

// ReleaseQueueItems puts claimed items back in the queue without
// charging an attempt, for batches cut short by rate limits.
func (s *Store) ReleaseQueueItems(ctx context.Context, itemIDs []uuid.UUID) error {
	if len(itemIDs) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE campaign_queue SET status = 'pending', attempts = attempts - 1
		WHERE id = ANY($1) AND status = 'processing'`, pq.Array(itemIDs))
	return err
}

// MarkQueueItemFailed records a failed send. Items under the retry limit
// go back to pending.
func (s *Store) MarkQueueItemFailed(ctx context.Context, itemID uuid.UUID, sendErr string, maxAttempts int) error {
	query := `UPDATE campaign_queue SET
		status = CASE WHEN attempts >= $2 THEN 'failed' ELSE 'pending' END,
		last_error = $3, processed_at = NOW()
		WHERE id = $1`

	_, err := s.db.ExecContext(ctx, query, itemID, maxAttempts, sendErr)
	return err
}

// CountPendingQueueItems returns how many sends remain for a campaign
func (s *Store) CountPendingQueueItems(ctx context.Context, campaignID uuid.UUID) (int, error) {
	var pending int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM campaign_queue WHERE campaign_id = $1 AND status IN ('pending', 'processing')`,
		campaignID).Scan(&pending)
	return pending, err
}

// IncrementCampaignCounter bumps one of the denormalized send counters.
// Counters only move forward.
func (s *Store) IncrementCampaignCounter(ctx context.Context, campaignID uuid.UUID, counter string) error {
	var column string
	switch counter {
	case EventSent:
		column = "total_sent"
	case EventDelivered:
		column = "total_delivered"
	case EventFailed, EventUndelivered:
		column = "total_failed"
	case EventReceived:
		column = "total_replies"
	case EventClicked:
		column = "total_clicks"
	default:
		return fmt.Errorf("unknown campaign counter %q", counter)
	}

	query := fmt.Sprintf(`UPDATE campaigns SET %s = %s + 1, updated_at = NOW() WHERE id = $1`, column, column)
	_, err := s.db.ExecContext(ctx, query, campaignID)
	return err
}
