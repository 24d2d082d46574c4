package crm

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// GetOrCreateConversation finds the conversation for a contact phone,
// creating it on first contact.
func (s *Store) GetOrCreateConversation(ctx context.Context, orgID, contactID uuid.UUID, phone string) (*Conversation, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	query := `INSERT INTO conversations (id, organization_id, contact_id, phone, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'active', NOW(), NOW())
		ON CONFLICT (organization_id, phone) DO UPDATE SET updated_at = NOW()
		RETURNING id, organization_id, contact_id, phone, last_message_at, last_body,
			unread_count, status, created_at, updated_at`

	conv := &Conversation{}
	var lastBody sql.NullString
	err = s.db.QueryRowContext(ctx, query, uuid.New(), orgID, contactID, normalized).Scan(
		&conv.ID, &conv.OrganizationID, &conv.ContactID, &conv.Phone,
		&conv.LastMessageAt, &lastBody, &conv.UnreadCount, &conv.Status,
		&conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	conv.LastBody = lastBody.String
	return conv, nil
}

// GetConversation retrieves one conversation by ID
func (s *Store) GetConversation(ctx context.Context, orgID, convID uuid.UUID) (*Conversation, error) {
	query := `SELECT id, organization_id, contact_id, phone, last_message_at, last_body,
		unread_count, status, created_at, updated_at
		FROM conversations WHERE id = $1 AND organization_id = $2`

	conv := &Conversation{}
	var lastBody sql.NullString
	err := s.db.QueryRowContext(ctx, query, convID, orgID).Scan(
		&conv.ID, &conv.OrganizationID, &conv.ContactID, &conv.Phone,
		&conv.LastMessageAt, &lastBody, &conv.UnreadCount, &conv.Status,
		&conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	conv.LastBody = lastBody.String
	return conv, nil
}

// GetConversations lists conversations for the inbox, most recent first
func (s *Store) GetConversations(ctx context.Context, orgID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Conversation, int, error) {
	where := `c.organization_id = $1 AND c.status = 'active'`
	if unreadOnly {
		where += ` AND c.unread_count > 0`
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations c WHERE `+where, orgID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT c.id, c.organization_id, c.contact_id, c.phone, c.last_message_at,
		c.last_body, c.unread_count, c.status, c.created_at, c.updated_at,
		COALESCE(NULLIF(TRIM(ct.first_name || ' ' || ct.last_name), ''), c.phone)
		FROM conversations c
		LEFT JOIN contacts ct ON ct.id = c.contact_id
		WHERE ` + where + `
		ORDER BY c.last_message_at DESC NULLS LAST LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, query, orgID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		conv := &Conversation{}
		var lastBody sql.NullString
		if err := rows.Scan(&conv.ID, &conv.OrganizationID, &conv.ContactID, &conv.Phone,
			&conv.LastMessageAt, &lastBody, &conv.UnreadCount, &conv.Status,
			&conv.CreatedAt, &conv.UpdatedAt, &conv.ContactName); err != nil {
			return nil, 0, err
		}
		conv.LastBody = lastBody.String
		convs = append(convs, conv)
	}
	return convs, total, rows.Err()
}

// MarkConversationRead resets the unread counter
func (s *Store) MarkConversationRead(ctx context.Context, orgID, convID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET unread_count = 0, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`, convID, orgID)
	return err
}

// CreateMessage persists one message and updates its conversation
// preview. Inbound messages bump the unread counter.
func (s *Store) CreateMessage(ctx context.Context, m *Message) error {
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	if m.Status == "" {
		if m.Direction == DirectionInbound {
			m.Status = MessageReceived
		} else {
			m.Status = MessageQueued
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO messages (id, organization_id, conversation_id, contact_id, campaign_id,
		journey_id, provider_sid, direction, from_number, to_number, body, media_url,
		status, error_code, segments_count, sent_at, delivered_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = tx.ExecContext(ctx, query, m.ID, m.OrganizationID, m.ConversationID,
		m.ContactID, m.CampaignID, m.JourneyID, m.ProviderSID, m.Direction,
		m.FromNumber, m.ToNumber, m.Body, m.MediaURL, m.Status, m.ErrorCode,
		m.SegmentsCount, m.SentAt, m.DeliveredAt, m.CreatedAt)
	if err != nil {
		return err
	}

	unreadDelta := 0
	if m.Direction == DirectionInbound {
		unreadDelta = 1
	}
	_, err = tx.ExecContext(ctx, `UPDATE conversations SET last_message_at = $1,
		last_body = $2, unread_count = unread_count + $3, updated_at = NOW()
		WHERE id = $4`, m.CreatedAt, m.Body, unreadDelta, m.ConversationID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

const messageColumns = `SELECT id, organization_id, conversation_id, contact_id, campaign_id,
	journey_id, provider_sid, direction, from_number, to_number, body, media_url,
	status, error_code, segments_count, sent_at, delivered_at, created_at`

func (s *Store) scanMessage(row rowScanner) (*Message, error) {
	m := &Message{}
	err := row.Scan(&m.ID, &m.OrganizationID, &m.ConversationID, &m.ContactID,
		&m.CampaignID, &m.JourneyID, &m.ProviderSID, &m.Direction, &m.FromNumber,
		&m.ToNumber, &m.Body, &m.MediaURL, &m.Status, &m.ErrorCode,
		&m.SegmentsCount, &m.SentAt, &m.DeliveredAt, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetMessages lists messages in a conversation, newest first
func (s *Store) GetMessages(ctx context.Context, orgID, convID uuid.UUID, limit, offset int) ([]*Message, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = $1 AND organization_id = $2`,
		convID, orgID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := messageColumns + ` FROM messages
		WHERE conversation_id = $1 AND organization_id = $2
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`

	rows, err := s.db.QueryContext(ctx, query, convID, orgID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m, err := s.scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		messages = append(messages, m)
	}
	return messages, total, rows.Err()
}

// GetMessageByProviderSID finds a message by the provider's message SID
func (s *Store) GetMessageByProviderSID(ctx context.Context, providerSID string) (*Message, error) {
	query := messageColumns + ` FROM messages WHERE provider_sid = $1`
	return s.scanMessage(s.db.QueryRowContext(ctx, query, providerSID))
}

// UpdateMessageStatus applies a provider delivery status to a message
func (s *Store) UpdateMessageStatus(ctx context.Context, messageID uuid.UUID, status, errorCode string) error {
	query := `UPDATE messages SET status = $1, error_code = $2,
		sent_at = CASE WHEN $1 = 'sent' THEN COALESCE(sent_at, NOW()) ELSE sent_at END,
		delivered_at = CASE WHEN $1 = 'delivered' THEN COALESCE(delivered_at, NOW()) ELSE delivered_at END
		WHERE id = $3`

	_, err := s.db.ExecContext(ctx, query, status, errorCode, messageID)
	return err
}
