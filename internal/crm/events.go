package crm

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordMessageEvent stores one provider event. Events are idempotent
// on the provider's event identifier; a duplicate delivery reports
// inserted=false so callers skip counter updates.
func (s *Store) RecordMessageEvent(ctx context.Context, ev *MessageEvent) (bool, error) {
	ev.ID = uuid.New()
	ev.CreatedAt = time.Now()
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = ev.CreatedAt
	}

	query := `INSERT INTO message_events (id, organization_id, message_id, campaign_id,
		provider_sid, provider_event, event_type, error_code, payload, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (provider_event) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query, ev.ID, ev.OrganizationID, ev.MessageID,
		ev.CampaignID, ev.ProviderSID, ev.ProviderEvent, ev.EventType, ev.ErrorCode,
		ev.Payload, ev.OccurredAt, ev.CreatedAt)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// GetMessageEvents lists events for an organization, newest first
func (s *Store) GetMessageEvents(ctx context.Context, orgID uuid.UUID, eventType string, limit, offset int) ([]*MessageEvent, int, error) {
	where := "organization_id = $1"
	args := []interface{}{orgID}
	if eventType != "" {
		args = append(args, eventType)
		where += " AND event_type = $2"
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM message_events WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT id, organization_id, message_id, campaign_id, provider_sid,
		provider_event, event_type, error_code, payload, occurred_at, created_at
		FROM message_events WHERE %s
		ORDER BY occurred_at DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*MessageEvent
	for rows.Next() {
		ev := &MessageEvent{}
		if err := rows.Scan(&ev.ID, &ev.OrganizationID, &ev.MessageID, &ev.CampaignID,
			&ev.ProviderSID, &ev.ProviderEvent, &ev.EventType, &ev.ErrorCode,
			&ev.Payload, &ev.OccurredAt, &ev.CreatedAt); err != nil {
			return nil, 0, err
		}
		events = append(events, ev)
	}
	return events, total, rows.Err()
}

// GetCampaignStats aggregates events into per-campaign delivery stats
func (s *Store) GetCampaignStats(ctx context.Context, orgID, campaignID uuid.UUID) (*CampaignStats, error) {
	query := `SELECT
		COUNT(*) FILTER (WHERE event_type = 'queued'),
		COUNT(*) FILTER (WHERE event_type = 'sent'),
		COUNT(*) FILTER (WHERE event_type = 'delivered'),
		COUNT(*) FILTER (WHERE event_type IN ('failed', 'undelivered')),
		COUNT(*) FILTER (WHERE event_type = 'received'),
		COUNT(*) FILTER (WHERE event_type = 'clicked'),
		COUNT(*) FILTER (WHERE event_type = 'unsubscribed')
		FROM message_events
		WHERE organization_id = $1 AND campaign_id = $2`

	stats := &CampaignStats{CampaignID: campaignID}
	err := s.db.QueryRowContext(ctx, query, orgID, campaignID).Scan(
		&stats.Queued, &stats.Sent, &stats.Delivered, &stats.Failed,
		&stats.Replies, &stats.Clicks, &stats.Unsubscribes)
	if err != nil {
		return nil, err
	}

	if stats.Sent > 0 {
		stats.DeliveryRate = float64(stats.Delivered) / float64(stats.Sent)
		stats.ReplyRate = float64(stats.Replies) / float64(stats.Sent)
		stats.OptOutRate = float64(stats.Unsubscribes) / float64(stats.Sent)
	}

	stats.SendsByDay, err = s.GetSendsByDay(ctx, orgID, &campaignID, 30)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// GetSendsByDay buckets the last days of events by calendar day for
// activity charts. Pass a nil campaignID for the org-wide series.
func (s *Store) GetSendsByDay(ctx context.Context, orgID uuid.UUID, campaignID *uuid.UUID, days int) ([]DailyCount, error) {
	where := "organization_id = $1 AND occurred_at > NOW() - ($2 || ' days')::interval"
	args := []interface{}{orgID, days}
	if campaignID != nil {
		args = append(args, *campaignID)
		where += " AND campaign_id = $3"
	}

	query := `SELECT date_trunc('day', occurred_at) AS day,
		COUNT(*) FILTER (WHERE event_type = 'sent'),
		COUNT(*) FILTER (WHERE event_type = 'delivered'),
		COUNT(*) FILTER (WHERE event_type = 'received')
		FROM message_events
		WHERE ` + where + `
		GROUP BY day ORDER BY day`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series []DailyCount
	for rows.Next() {
		var d DailyCount
		if err := rows.Scan(&d.Day, &d.Sent, &d.Delivered, &d.Replies); err != nil {
			return nil, err
		}
		series = append(series, d)
	}
	return series, rows.Err()
}

// GetDashboardStats returns the org-level overview counters
func (s *Store) GetDashboardStats(ctx context.Context, orgID uuid.UUID) (*DashboardStats, error) {
	query := `SELECT
		(SELECT COUNT(*) FROM contacts WHERE organization_id = $1),
		(SELECT COUNT(*) FROM contacts WHERE organization_id = $1 AND status = 'subscribed'),
		(SELECT COUNT(*) FROM campaigns WHERE organization_id = $1),
		(SELECT COUNT(*) FROM campaigns WHERE organization_id = $1 AND status IN ('scheduled', 'sending')),
		(SELECT COUNT(*) FROM messages WHERE organization_id = $1 AND direction = 'outbound' AND created_at > NOW() - INTERVAL '30 days'),
		(SELECT COUNT(*) FROM messages WHERE organization_id = $1 AND direction = 'inbound' AND created_at > NOW() - INTERVAL '30 days'),
		(SELECT COUNT(*) FROM conversations WHERE organization_id = $1 AND unread_count > 0)`

	stats := &DashboardStats{}
	err := s.db.QueryRowContext(ctx, query, orgID).Scan(
		&stats.TotalContacts, &stats.ActiveContacts, &stats.TotalCampaigns,
		&stats.ActiveCampaigns, &stats.MessagesSent30d, &stats.RepliesReceived30d,
		&stats.UnreadConversations)
	if err != nil {
		return nil, err
	}

	stats.SendsByDay, err = s.GetSendsByDay(ctx, orgID, nil, 30)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
