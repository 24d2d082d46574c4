package crm

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store provides database operations for engagement entities
type Store struct {
	db *sql.DB
}

// NewStore creates a new store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for workers that need transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// CreateOrganization creates a new organization. The slug is derived
// from the name when not supplied.
func (s *Store) CreateOrganization(ctx context.Context, org *Organization) error {
	org.ID = uuid.New()
	org.CreatedAt = time.Now()
	org.UpdatedAt = time.Now()
	if org.Status == "" {
		org.Status = StatusActive
	}
	if org.Slug == "" {
		org.Slug = Slugify(org.Name)
	}

	query := `INSERT INTO organizations (id, name, slug, settings, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query, org.ID, org.Name, org.Slug, org.Settings,
		org.Status, org.CreatedAt, org.UpdatedAt)
	return err
}

// GetOrganization retrieves an organization by ID
func (s *Store) GetOrganization(ctx context.Context, orgID uuid.UUID) (*Organization, error) {
	query := `SELECT id, name, slug, settings, status, created_at, updated_at
		FROM organizations WHERE id = $1`

	org := &Organization{}
	err := s.db.QueryRowContext(ctx, query, orgID).Scan(
		&org.ID, &org.Name, &org.Slug, &org.Settings, &org.Status,
		&org.CreatedAt, &org.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return org, err
}

// GetOrganizationByFromNumber resolves which organization owns a
// sending number. Used to route inbound webhook events.
func (s *Store) GetOrganizationByFromNumber(ctx context.Context, phone string) (*Organization, error) {
	query := `SELECT id, name, slug, settings, status, created_at, updated_at
		FROM organizations WHERE settings->>'from_number' = $1 AND status = 'active'`

	org := &Organization{}
	err := s.db.QueryRowContext(ctx, query, phone).Scan(
		&org.ID, &org.Name, &org.Slug, &org.Settings, &org.Status,
		&org.CreatedAt, &org.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return org, err
}

// GetOrganizationsForUser retrieves all organizations a user belongs to
func (s *Store) GetOrganizationsForUser(ctx context.Context, userEmail string) ([]*Organization, error) {
	query := `SELECT o.id, o.name, o.slug, o.settings, o.status, o.created_at, o.updated_at
		FROM organizations o
		JOIN memberships m ON m.organization_id = o.id
		WHERE m.user_email = $1 AND o.status = 'active'
		ORDER BY o.name`

	rows, err := s.db.QueryContext(ctx, query, strings.ToLower(userEmail))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []*Organization
	for rows.Next() {
		org := &Organization{}
		if err := rows.Scan(&org.ID, &org.Name, &org.Slug, &org.Settings,
			&org.Status, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// CreateMembership adds a user to an organization
func (s *Store) CreateMembership(ctx context.Context, m *Membership) error {
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	m.UserEmail = strings.ToLower(strings.TrimSpace(m.UserEmail))
	if m.Role == "" {
		m.Role = RoleMember
	}

	query := `INSERT INTO memberships (id, organization_id, user_email, role, invited_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (organization_id, user_email) DO UPDATE SET role = EXCLUDED.role`

	_, err := s.db.ExecContext(ctx, query, m.ID, m.OrganizationID, m.UserEmail,
		m.Role, m.InvitedBy, m.CreatedAt)
	return err
}

// GetMembership retrieves a user's membership in an organization
func (s *Store) GetMembership(ctx context.Context, orgID uuid.UUID, userEmail string) (*Membership, error) {
	query := `SELECT id, organization_id, user_email, role, invited_by, created_at
		FROM memberships WHERE organization_id = $1 AND user_email = $2`

	m := &Membership{}
	err := s.db.QueryRowContext(ctx, query, orgID, strings.ToLower(userEmail)).Scan(
		&m.ID, &m.OrganizationID, &m.UserEmail, &m.Role, &m.InvitedBy, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// GetMemberships retrieves all members of an organization
func (s *Store) GetMemberships(ctx context.Context, orgID uuid.UUID) ([]*Membership, error) {
	query := `SELECT id, organization_id, user_email, role, invited_by, created_at
		FROM memberships WHERE organization_id = $1 ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*Membership
	for rows.Next() {
		m := &Membership{}
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.UserEmail, &m.Role,
			&m.InvitedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// UpdateMembershipRole changes a member's role. The last owner cannot
// be demoted.
func (s *Store) UpdateMembershipRole(ctx context.Context, orgID uuid.UUID, userEmail, role string) error {
	userEmail = strings.ToLower(userEmail)

	m, err := s.GetMembership(ctx, orgID, userEmail)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("membership not found")
	}
	if m.Role == RoleOwner && role != RoleOwner {
		var owners int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM memberships WHERE organization_id = $1 AND role = 'owner'`,
			orgID).Scan(&owners)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return fmt.Errorf("cannot demote the last owner of an organization")
		}
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE memberships SET role = $3 WHERE organization_id = $1 AND user_email = $2`,
		orgID, userEmail, role)
	return err
}

// DeleteMembership removes a user from an organization. The last owner
// cannot be removed.
func (s *Store) DeleteMembership(ctx context.Context, orgID uuid.UUID, userEmail string) error {
	userEmail = strings.ToLower(userEmail)

	var owners int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memberships WHERE organization_id = $1 AND role = 'owner'`,
		orgID).Scan(&owners)
	if err != nil {
		return err
	}

	m, err := s.GetMembership(ctx, orgID, userEmail)
	if err != nil {
		return err
	}
	if m == nil {
		return nil
	}
	if m.Role == RoleOwner && owners <= 1 {
		return fmt.Errorf("cannot remove the last owner of an organization")
	}

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE organization_id = $1 AND user_email = $2`,
		orgID, userEmail)
	return err
}

// Slugify lowercases a name and replaces runs of non-alphanumerics with dashes
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteRune('-')
			lastDash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
