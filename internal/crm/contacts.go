package crm

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ContactFilter narrows contact listings
type ContactFilter struct {
	ListID *uuid.UUID
	Status string
	Tag    string
	Search string
}

// CreateContact creates or updates a contact. The phone number is
// normalized to E.164 before insert; duplicates within an organization
// are merged on phone.
func (s *Store) CreateContact(ctx context.Context, c *Contact) error {
	phone, err := NormalizePhone(c.Phone)
	if err != nil {
		return err
	}
	c.Phone = phone
	c.PhoneHash = HashPhone(phone)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = time.Now()
	c.SubscribedAt = time.Now()
	if c.Status == "" {
		c.Status = ContactSubscribed
	}
	if c.EngagementScore == 0 {
		c.EngagementScore = 50.0
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}

	suppressed, err := s.IsSuppressed(ctx, c.OrganizationID, c.Phone)
	if err != nil {
		return err
	}
	if suppressed {
		c.Status = ContactSuppressed
	}

	// RETURNING reads back the surviving row: on a phone conflict the
	// generated id is discarded and the existing contact's id wins.
	query := `INSERT INTO contacts (id, organization_id, list_id, phone, phone_hash, email,
		first_name, last_name, status, source, attributes, tags, engagement_score,
		subscribed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (organization_id, phone) DO UPDATE SET
			email = EXCLUDED.email, first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name, attributes = EXCLUDED.attributes,
			updated_at = NOW()
		RETURNING id, status, subscribed_at, created_at`

	return s.db.QueryRowContext(ctx, query, c.ID, c.OrganizationID, c.ListID, c.Phone,
		c.PhoneHash, c.Email, c.FirstName, c.LastName, c.Status, c.Source,
		c.Attributes, pq.Array(c.Tags), c.EngagementScore, c.SubscribedAt,
		c.CreatedAt, c.UpdatedAt).
		Scan(&c.ID, &c.Status, &c.SubscribedAt, &c.CreatedAt)
}

// GetContact retrieves a contact by ID
func (s *Store) GetContact(ctx context.Context, orgID, contactID uuid.UUID) (*Contact, error) {
	query := contactColumns + ` FROM contacts WHERE id = $1 AND organization_id = $2`

	return s.scanContact(s.db.QueryRowContext(ctx, query, contactID, orgID))
}

// GetContactByPhone retrieves a contact by normalized phone number
func (s *Store) GetContactByPhone(ctx context.Context, orgID uuid.UUID, phone string) (*Contact, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	query := contactColumns + ` FROM contacts WHERE organization_id = $1 AND phone = $2`

	return s.scanContact(s.db.QueryRowContext(ctx, query, orgID, normalized))
}

const contactColumns = `SELECT id, organization_id, list_id, phone, email, first_name, last_name,
	status, source, attributes, tags, engagement_score, total_messages, total_replies,
	total_clicks, last_message_at, last_reply_at, opted_out_at, subscribed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanContact(row rowScanner) (*Contact, error) {
	c := &Contact{}
	err := row.Scan(&c.ID, &c.OrganizationID, &c.ListID, &c.Phone, &c.Email,
		&c.FirstName, &c.LastName, &c.Status, &c.Source, &c.Attributes,
		pq.Array(&c.Tags), &c.EngagementScore, &c.TotalMessages, &c.TotalReplies,
		&c.TotalClicks, &c.LastMessageAt, &c.LastReplyAt, &c.OptedOutAt,
		&c.SubscribedAt, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetContacts retrieves contacts for an organization with optional filters
func (s *Store) GetContacts(ctx context.Context, orgID uuid.UUID, filter ContactFilter, limit, offset int) ([]*Contact, int, error) {
	where := []string{"organization_id = $1"}
	args := []interface{}{orgID}

	if filter.ListID != nil {
		args = append(args, *filter.ListID)
		where = append(where, fmt.Sprintf("list_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Tag != "" {
		args = append(args, filter.Tag)
		where = append(where, fmt.Sprintf("$%d = ANY(tags)", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(phone ILIKE $%d OR email ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)", n, n, n, n))
	}
	clause := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM contacts WHERE ` + clause
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`%s FROM contacts WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		contactColumns, clause, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var contacts []*Contact
	for rows.Next() {
		c, err := s.scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		contacts = append(contacts, c)
	}
	return contacts, total, rows.Err()
}

// UpdateContact updates a contact's profile fields
func (s *Store) UpdateContact(ctx context.Context, c *Contact) error {
	c.UpdatedAt = time.Now()
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	if c.Tags == nil {
		c.Tags = []string{}
	}

	query := `UPDATE contacts SET email = $1, first_name = $2, last_name = $3,
		attributes = $4, tags = $5, list_id = $6, updated_at = $7
		WHERE id = $8 AND organization_id = $9`

	_, err := s.db.ExecContext(ctx, query, c.Email, c.FirstName, c.LastName,
		c.Attributes, pq.Array(c.Tags), c.ListID, c.UpdatedAt, c.ID, c.OrganizationID)
	return err
}

// DeleteContact removes a contact and its queue entries
func (s *Store) DeleteContact(ctx context.Context, orgID, contactID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM contacts WHERE id = $1 AND organization_id = $2`, contactID, orgID)
	return err
}

// UnsubscribeContact marks a contact opted out and records the suppression
func (s *Store) UnsubscribeContact(ctx context.Context, orgID uuid.UUID, phone, reason string) error {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return err
	}

	query := `UPDATE contacts SET status = 'unsubscribed', opted_out_at = NOW(), updated_at = NOW()
		WHERE organization_id = $1 AND phone = $2 AND status != 'unsubscribed'`

	if _, err := s.db.ExecContext(ctx, query, orgID, normalized); err != nil {
		return err
	}

	return s.AddSuppression(ctx, &Suppression{
		OrganizationID: orgID,
		Phone:          normalized,
		Reason:         reason,
		Source:         "opt_out",
	})
}

// RecordContactReply bumps reply counters and engagement after an inbound message
func (s *Store) RecordContactReply(ctx context.Context, orgID, contactID uuid.UUID) error {
	query := `UPDATE contacts SET total_replies = total_replies + 1,
		engagement_score = LEAST(engagement_score + 5, 100),
		last_reply_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`

	_, err := s.db.ExecContext(ctx, query, contactID, orgID)
	return err
}

// RecordContactMessage bumps outbound counters after a send
func (s *Store) RecordContactMessage(ctx context.Context, orgID, contactID uuid.UUID) error {
	query := `UPDATE contacts SET total_messages = total_messages + 1,
		last_message_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`

	_, err := s.db.ExecContext(ctx, query, contactID, orgID)
	return err
}

// RecordContactClick bumps click counters and engagement
func (s *Store) RecordContactClick(ctx context.Context, orgID, contactID uuid.UUID) error {
	query := `UPDATE contacts SET total_clicks = total_clicks + 1,
		engagement_score = LEAST(engagement_score + 3, 100),
		updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`

	_, err := s.db.ExecContext(ctx, query, contactID, orgID)
	return err
}

// AddContactTags appends tags not already present on a contact
func (s *Store) AddContactTags(ctx context.Context, orgID, contactID uuid.UUID, tags []string) error {
	query := `UPDATE contacts SET
		tags = (SELECT ARRAY(SELECT DISTINCT unnest(tags || $1::text[]))),
		updated_at = NOW()
		WHERE id = $2 AND organization_id = $3`

	_, err := s.db.ExecContext(ctx, query, pq.Array(tags), contactID, orgID)
	return err
}

// RemoveContactTag removes one tag from a contact
func (s *Store) RemoveContactTag(ctx context.Context, orgID, contactID uuid.UUID, tag string) error {
	query := `UPDATE contacts SET tags = array_remove(tags, $1), updated_at = NOW()
		WHERE id = $2 AND organization_id = $3`

	_, err := s.db.ExecContext(ctx, query, tag, contactID, orgID)
	return err
}
