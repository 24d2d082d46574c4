package crm

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CreateTemplate creates a reusable message template
func (s *Store) CreateTemplate(ctx context.Context, t *Template) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	t.UpdatedAt = time.Now()
	if t.Status == "" {
		t.Status = StatusActive
	}

	query := `INSERT INTO templates (id, organization_id, name, body, media_url, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query, t.ID, t.OrganizationID, t.Name, t.Body,
		t.MediaURL, t.Status, t.CreatedAt, t.UpdatedAt)
	return err
}

// GetTemplate retrieves a template by ID
func (s *Store) GetTemplate(ctx context.Context, orgID, templateID uuid.UUID) (*Template, error) {
	query := `SELECT id, organization_id, name, body, media_url, status, created_at, updated_at
		FROM templates WHERE id = $1 AND organization_id = $2`

	t := &Template{}
	err := s.db.QueryRowContext(ctx, query, templateID, orgID).Scan(
		&t.ID, &t.OrganizationID, &t.Name, &t.Body, &t.MediaURL, &t.Status,
		&t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// GetTemplateByName retrieves an active template by name
func (s *Store) GetTemplateByName(ctx context.Context, orgID uuid.UUID, name string) (*Template, error) {
	query := `SELECT id, organization_id, name, body, media_url, status, created_at, updated_at
		FROM templates WHERE organization_id = $1 AND name = $2 AND status = 'active'`

	t := &Template{}
	err := s.db.QueryRowContext(ctx, query, orgID, name).Scan(
		&t.ID, &t.OrganizationID, &t.Name, &t.Body, &t.MediaURL, &t.Status,
		&t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// GetTemplates lists active templates for an organization
func (s *Store) GetTemplates(ctx context.Context, orgID uuid.UUID) ([]*Template, error) {
	query := `SELECT id, organization_id, name, body, media_url, status, created_at, updated_at
		FROM templates WHERE organization_id = $1 AND status = 'active' ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		t := &Template{}
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Body, &t.MediaURL,
			&t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// UpdateTemplate updates a template's content
func (s *Store) UpdateTemplate(ctx context.Context, t *Template) error {
	t.UpdatedAt = time.Now()

	query := `UPDATE templates SET name = $1, body = $2, media_url = $3, status = $4, updated_at = $5
		WHERE id = $6 AND organization_id = $7`

	_, err := s.db.ExecContext(ctx, query, t.Name, t.Body, t.MediaURL, t.Status,
		t.UpdatedAt, t.ID, t.OrganizationID)
	return err
}

// DeleteTemplate soft-deletes a template
func (s *Store) DeleteTemplate(ctx context.Context, orgID, templateID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE templates SET status = 'archived', updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`, templateID, orgID)
	return err
}

// SaveWebhookEndpoint records a provider-side webhook registration
func (s *Store) SaveWebhookEndpoint(ctx context.Context, ep *WebhookEndpoint) error {
	ep.ID = uuid.New()
	ep.CreatedAt = time.Now()
	if ep.Status == "" {
		ep.Status = StatusActive
	}
	if ep.Events == nil {
		ep.Events = []string{}
	}

	query := `INSERT INTO webhook_endpoints (id, organization_id, provider_sid, url, events, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query, ep.ID, ep.OrganizationID, ep.ProviderSID,
		ep.URL, pq.Array(ep.Events), ep.Status, ep.CreatedAt)
	return err
}

// GetWebhookEndpoints lists webhook registrations for an organization
func (s *Store) GetWebhookEndpoints(ctx context.Context, orgID uuid.UUID) ([]*WebhookEndpoint, error) {
	query := `SELECT id, organization_id, provider_sid, url, events, status, created_at
		FROM webhook_endpoints WHERE organization_id = $1 AND status = 'active' ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var endpoints []*WebhookEndpoint
	for rows.Next() {
		ep := &WebhookEndpoint{}
		if err := rows.Scan(&ep.ID, &ep.OrganizationID, &ep.ProviderSID, &ep.URL,
			pq.Array(&ep.Events), &ep.Status, &ep.CreatedAt); err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, rows.Err()
}

// DeleteWebhookEndpoint removes a webhook registration by its provider SID
func (s *Store) DeleteWebhookEndpoint(ctx context.Context, orgID uuid.UUID, providerSID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE webhook_endpoints SET status = 'inactive'
		WHERE organization_id = $1 AND provider_sid = $2`, orgID, providerSID)
	return err
}
