package crm

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AddSuppression records a do-not-contact entry. Repeated adds for the
// same phone are a no-op.
func (s *Store) AddSuppression(ctx context.Context, sup *Suppression) error {
	phone, err := NormalizePhone(sup.Phone)
	if err != nil {
		return err
	}
	sup.Phone = phone
	sup.PhoneHash = HashPhone(phone)
	sup.ID = uuid.New()
	sup.CreatedAt = time.Now()
	if sup.Source == "" {
		sup.Source = "manual"
	}

	query := `INSERT INTO suppressions (id, organization_id, phone, phone_hash, reason, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (organization_id, phone_hash) DO NOTHING`

	_, err = s.db.ExecContext(ctx, query, sup.ID, sup.OrganizationID, sup.Phone,
		sup.PhoneHash, sup.Reason, sup.Source, sup.CreatedAt)
	return err
}

// IsSuppressed reports whether a phone is on the org's suppression list
func (s *Store) IsSuppressed(ctx context.Context, orgID uuid.UUID, phone string) (bool, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return false, err
	}

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM suppressions WHERE organization_id = $1 AND phone_hash = $2)`
	err = s.db.QueryRowContext(ctx, query, orgID, HashPhone(normalized)).Scan(&exists)
	return exists, err
}

// GetSuppressions lists suppression entries for an organization
func (s *Store) GetSuppressions(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*Suppression, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM suppressions WHERE organization_id = $1`, orgID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, organization_id, phone, reason, source, created_at
		FROM suppressions WHERE organization_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, query, orgID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sups []*Suppression
	for rows.Next() {
		sup := &Suppression{}
		if err := rows.Scan(&sup.ID, &sup.OrganizationID, &sup.Phone, &sup.Reason,
			&sup.Source, &sup.CreatedAt); err != nil {
			return nil, 0, err
		}
		sups = append(sups, sup)
	}
	return sups, total, rows.Err()
}

// RemoveSuppression deletes a suppression entry by phone
func (s *Store) RemoveSuppression(ctx context.Context, orgID uuid.UUID, phone string) error {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM suppressions WHERE organization_id = $1 AND phone_hash = $2`,
		orgID, HashPhone(normalized))
	return err
}
