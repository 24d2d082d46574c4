package crm

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// CreateList creates a new contact list
func (s *Store) CreateList(ctx context.Context, list *List) error {
	list.ID = uuid.New()
	list.CreatedAt = time.Now()
	list.UpdatedAt = time.Now()
	if list.Status == "" {
		list.Status = StatusActive
	}

	query := `INSERT INTO lists (id, organization_id, name, description, status, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query, list.ID, list.OrganizationID, list.Name,
		list.Description, list.Status, list.Settings, list.CreatedAt, list.UpdatedAt)
	return err
}

// GetList retrieves a list by ID
func (s *Store) GetList(ctx context.Context, orgID, listID uuid.UUID) (*List, error) {
	query := `SELECT id, organization_id, name, description, contact_count, active_count,
		status, settings, created_at, updated_at
		FROM lists WHERE id = $1 AND organization_id = $2`

	list := &List{}
	err := s.db.QueryRowContext(ctx, query, listID, orgID).Scan(
		&list.ID, &list.OrganizationID, &list.Name, &list.Description,
		&list.ContactCount, &list.ActiveCount, &list.Status, &list.Settings,
		&list.CreatedAt, &list.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return list, err
}

// GetLists retrieves all active lists for an organization
func (s *Store) GetLists(ctx context.Context, orgID uuid.UUID) ([]*List, error) {
	query := `SELECT id, organization_id, name, description, contact_count, active_count,
		status, created_at, updated_at
		FROM lists WHERE organization_id = $1 AND status != 'archived' ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lists []*List
	for rows.Next() {
		list := &List{}
		if err := rows.Scan(&list.ID, &list.OrganizationID, &list.Name, &list.Description,
			&list.ContactCount, &list.ActiveCount, &list.Status,
			&list.CreatedAt, &list.UpdatedAt); err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}
	return lists, rows.Err()
}

// UpdateList updates a list's mutable fields
func (s *Store) UpdateList(ctx context.Context, list *List) error {
	list.UpdatedAt = time.Now()

	query := `UPDATE lists SET name = $1, description = $2, status = $3, settings = $4, updated_at = $5
		WHERE id = $6 AND organization_id = $7`

	_, err := s.db.ExecContext(ctx, query, list.Name, list.Description, list.Status,
		list.Settings, list.UpdatedAt, list.ID, list.OrganizationID)
	return err
}

// ArchiveList soft-deletes a list
func (s *Store) ArchiveList(ctx context.Context, orgID, listID uuid.UUID) error {
	query := `UPDATE lists SET status = 'archived', updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`

	_, err := s.db.ExecContext(ctx, query, listID, orgID)
	return err
}

// RefreshListCounts recomputes the denormalized counts for a list
func (s *Store) RefreshListCounts(ctx context.Context, orgID, listID uuid.UUID) error {
	query := `UPDATE lists SET
		contact_count = (SELECT COUNT(*) FROM contacts WHERE list_id = $1),
		active_count = (SELECT COUNT(*) FROM contacts WHERE list_id = $1 AND status = 'subscribed'),
		updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`

	_, err := s.db.ExecContext(ctx, query, listID, orgID)
	return err
}
