package segmentation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store provides database operations for segments
type Store struct {
	db *sql.DB
}

// NewStore creates a new segmentation store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateSegment creates a new segment. The condition tree is validated
// before storage.
func (s *Store) CreateSegment(ctx context.Context, segment *Segment, root ConditionGroup) error {
	if errs := ValidateConditions(root); len(errs) > 0 {
		return fmt.Errorf("invalid conditions: %v", errs)
	}

	segment.ID = uuid.New()
	segment.CreatedAt = time.Now()
	segment.UpdatedAt = time.Now()
	if segment.Status == "" {
		segment.Status = "active"
	}

	conditionsJSON, err := json.Marshal(root)
	if err != nil {
		return fmt.Errorf("marshal conditions: %w", err)
	}
	segment.Conditions = conditionsJSON

	listID := ""
	if segment.ListID != nil {
		listID = segment.ListID.String()
	}
	segment.QueryHash = HashQuery(root, segment.OrganizationID.String(), listID)

	query := `INSERT INTO segments (id, organization_id, list_id, name, description,
		conditions, query_hash, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = s.db.ExecContext(ctx, query, segment.ID, segment.OrganizationID,
		segment.ListID, segment.Name, segment.Description, segment.Conditions,
		segment.QueryHash, segment.Status, segment.CreatedBy,
		segment.CreatedAt, segment.UpdatedAt)
	return err
}

const segmentColumns = `SELECT id, organization_id, list_id, name, description, conditions,
	contact_count, query_hash, last_calculated_at, status, created_by, created_at, updated_at`

func scanSegment(row interface{ Scan(...interface{}) error }) (*Segment, error) {
	seg := &Segment{}
	err := row.Scan(&seg.ID, &seg.OrganizationID, &seg.ListID, &seg.Name,
		&seg.Description, &seg.Conditions, &seg.ContactCount, &seg.QueryHash,
		&seg.LastCalculatedAt, &seg.Status, &seg.CreatedBy,
		&seg.CreatedAt, &seg.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return seg, nil
}

// GetSegment retrieves a segment by ID
func (s *Store) GetSegment(ctx context.Context, orgID, segmentID uuid.UUID) (*Segment, error) {
	query := segmentColumns + ` FROM segments WHERE id = $1 AND organization_id = $2`
	return scanSegment(s.db.QueryRowContext(ctx, query, segmentID, orgID))
}

// GetSegments lists active segments for an organization
func (s *Store) GetSegments(ctx context.Context, orgID uuid.UUID) ([]*Segment, error) {
	query := segmentColumns + ` FROM segments
		WHERE organization_id = $1 AND status != 'archived' ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []*Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// UpdateSegment replaces a segment's definition
func (s *Store) UpdateSegment(ctx context.Context, segment *Segment, root ConditionGroup) error {
	if errs := ValidateConditions(root); len(errs) > 0 {
		return fmt.Errorf("invalid conditions: %v", errs)
	}

	conditionsJSON, err := json.Marshal(root)
	if err != nil {
		return fmt.Errorf("marshal conditions: %w", err)
	}
	segment.Conditions = conditionsJSON
	segment.UpdatedAt = time.Now()

	listID := ""
	if segment.ListID != nil {
		listID = segment.ListID.String()
	}
	segment.QueryHash = HashQuery(root, segment.OrganizationID.String(), listID)

	query := `UPDATE segments SET name = $1, description = $2, list_id = $3,
		conditions = $4, query_hash = $5, status = $6, updated_at = $7
		WHERE id = $8 AND organization_id = $9`

	_, err = s.db.ExecContext(ctx, query, segment.Name, segment.Description,
		segment.ListID, segment.Conditions, segment.QueryHash, segment.Status,
		segment.UpdatedAt, segment.ID, segment.OrganizationID)
	return err
}

// ArchiveSegment soft-deletes a segment
func (s *Store) ArchiveSegment(ctx context.Context, orgID, segmentID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE segments SET status = 'archived', updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`, segmentID, orgID)
	return err
}

// UpdateSegmentCount records the result of a count refresh
func (s *Store) UpdateSegmentCount(ctx context.Context, segmentID uuid.UUID, count int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE segments SET contact_count = $1, last_calculated_at = NOW(), updated_at = NOW()
		WHERE id = $2`, count, segmentID)
	return err
}

// GetStaleSegments returns active segments whose counts have not been
// refreshed within maxAge.
func (s *Store) GetStaleSegments(ctx context.Context, maxAge time.Duration) ([]*Segment, error) {
	query := segmentColumns + ` FROM segments
		WHERE status = 'active'
		AND (last_calculated_at IS NULL OR last_calculated_at < NOW() - $1::interval)
		ORDER BY last_calculated_at NULLS FIRST
		LIMIT 100`

	rows, err := s.db.QueryContext(ctx, query, fmt.Sprintf("%d seconds", int(maxAge.Seconds())))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []*Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}
