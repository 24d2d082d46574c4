package journeys

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store persists journeys and enrollments.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateJourney(j *Journey) error {
	if j.TriggerEvent == "" {
		return fmt.Errorf("trigger event is required")
	}
	if len(j.Steps) == 0 {
		return fmt.Errorf("journey needs at least one step")
	}
	for i, step := range j.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}

	j.ID = uuid.New()
	if j.Status == "" {
		j.Status = "active"
	}
	stepsJSON, err := json.Marshal(j.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	query := `
		INSERT INTO journeys (id, organization_id, name, description, trigger_event, steps, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at`
	return s.db.QueryRow(query, j.ID, j.OrganizationID, j.Name, j.Description,
		j.TriggerEvent, stepsJSON, j.Status).Scan(&j.CreatedAt, &j.UpdatedAt)
}

func validateStep(step Step) error {
	switch step.Type {
	case StepSendMessage:
		if step.Template == "" {
			return fmt.Errorf("send_message step requires a template")
		}
	case StepWait:
		if step.DelayHours <= 0 {
			return fmt.Errorf("wait step requires delay_hours > 0")
		}
	case StepCondition:
		switch step.Check {
		case CheckHasReplied, CheckHasClicked, CheckIsActive:
		default:
			return fmt.Errorf("unknown condition check %q", step.Check)
		}
		if step.OnFalse != "" && step.OnFalse != "skip_to_end" && step.OnFalse != "continue" {
			return fmt.Errorf("on_false must be skip_to_end or continue")
		}
	default:
		return fmt.Errorf("unknown step type %q", step.Type)
	}
	return nil
}

func (s *Store) scanJourney(row interface{ Scan(...interface{}) error }) (*Journey, error) {
	var j Journey
	var stepsJSON []byte
	err := row.Scan(&j.ID, &j.OrganizationID, &j.Name, &j.Description,
		&j.TriggerEvent, &stepsJSON, &j.Status, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stepsJSON, &j.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}
	return &j, nil
}

const journeyColumns = "id, organization_id, name, description, trigger_event, steps, status, created_at, updated_at"

func (s *Store) GetJourney(orgID, id uuid.UUID) (*Journey, error) {
	query := `SELECT ` + journeyColumns + ` FROM journeys WHERE id = $1 AND organization_id = $2`
	j, err := s.scanJourney(s.db.QueryRow(query, id, orgID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func (s *Store) GetJourneys(orgID uuid.UUID) ([]*Journey, error) {
	query := `SELECT ` + journeyColumns + ` FROM journeys
		WHERE organization_id = $1 AND status != 'archived'
		ORDER BY created_at DESC`
	rows, err := s.db.Query(query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var journeys []*Journey
	for rows.Next() {
		j, err := s.scanJourney(rows)
		if err != nil {
			return nil, err
		}
		journeys = append(journeys, j)
	}
	return journeys, rows.Err()
}

// GetActiveJourneysByTrigger returns active journeys listening for the event.
func (s *Store) GetActiveJourneysByTrigger(orgID uuid.UUID, event string) ([]*Journey, error) {
	query := `SELECT ` + journeyColumns + ` FROM journeys
		WHERE organization_id = $1 AND trigger_event = $2 AND status = 'active'`
	rows, err := s.db.Query(query, orgID, event)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var journeys []*Journey
	for rows.Next() {
		j, err := s.scanJourney(rows)
		if err != nil {
			return nil, err
		}
		journeys = append(journeys, j)
	}
	return journeys, rows.Err()
}

func (s *Store) UpdateJourney(j *Journey) error {
	for i, step := range j.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	stepsJSON, err := json.Marshal(j.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}
	query := `
		UPDATE journeys
		SET name = $1, description = $2, trigger_event = $3, steps = $4, status = $5, updated_at = NOW()
		WHERE id = $6 AND organization_id = $7`
	result, err := s.db.Exec(query, j.Name, j.Description, j.TriggerEvent,
		stepsJSON, j.Status, j.ID, j.OrganizationID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("journey not found")
	}
	return nil
}

func (s *Store) ArchiveJourney(orgID, id uuid.UUID) error {
	query := `UPDATE journeys SET status = 'archived', updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`
	result, err := s.db.Exec(query, id, orgID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("journey not found")
	}
	return nil
}

// ExistsEnrollment reports whether the contact already has a running or
// completed enrollment in the journey. Used to dedupe triggers.
func (s *Store) ExistsEnrollment(journeyID, contactID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(
		SELECT 1 FROM journey_enrollments
		WHERE journey_id = $1 AND contact_id = $2 AND status IN ('running', 'completed'))`
	err := s.db.QueryRow(query, journeyID, contactID).Scan(&exists)
	return exists, err
}

func (s *Store) CreateEnrollment(e *Enrollment) error {
	e.ID = uuid.New()
	e.Status = EnrollmentRunning
	query := `
		INSERT INTO journey_enrollments (id, journey_id, contact_id, current_step, status, next_run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at`
	return s.db.QueryRow(query, e.ID, e.JourneyID, e.ContactID,
		e.CurrentStep, e.Status, e.NextRunAt).Scan(&e.CreatedAt, &e.UpdatedAt)
}

const enrollmentColumns = "e.id, e.journey_id, e.contact_id, c.phone, e.current_step, e.status, e.next_run_at, e.completed_at, e.created_at, e.updated_at"

func (s *Store) scanEnrollment(row interface{ Scan(...interface{}) error }) (*Enrollment, error) {
	var e Enrollment
	err := row.Scan(&e.ID, &e.JourneyID, &e.ContactID, &e.Phone,
		&e.CurrentStep, &e.Status, &e.NextRunAt, &e.CompletedAt,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) GetEnrollments(orgID, journeyID uuid.UUID, limit int) ([]*Enrollment, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT ` + enrollmentColumns + ` FROM journey_enrollments e
		JOIN journeys j ON j.id = e.journey_id
		JOIN contacts c ON c.id = e.contact_id
		WHERE e.journey_id = $1 AND j.organization_id = $2
		ORDER BY e.created_at DESC LIMIT $3`
	rows, err := s.db.Query(query, journeyID, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enrollments []*Enrollment
	for rows.Next() {
		e, err := s.scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

// ListDueEnrollments returns running enrollments whose next_run_at has
// passed, oldest first.
func (s *Store) ListDueEnrollments(limit int) ([]*Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM journey_enrollments e
		JOIN contacts c ON c.id = e.contact_id
		WHERE e.status = 'running' AND e.next_run_at <= NOW()
		ORDER BY e.next_run_at ASC LIMIT $1`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enrollments []*Enrollment
	for rows.Next() {
		e, err := s.scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

// AdvanceEnrollment moves the enrollment to the given step and run time.
func (s *Store) AdvanceEnrollment(id uuid.UUID, step int, nextRunAt time.Time) error {
	query := `UPDATE journey_enrollments
		SET current_step = $1, next_run_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'running'`
	_, err := s.db.Exec(query, step, nextRunAt, id)
	return err
}

func (s *Store) CompleteEnrollment(id uuid.UUID) error {
	query := `UPDATE journey_enrollments
		SET status = 'completed', next_run_at = NULL, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1`
	_, err := s.db.Exec(query, id)
	return err
}

func (s *Store) FailEnrollment(id uuid.UUID) error {
	query := `UPDATE journey_enrollments
		SET status = 'failed', next_run_at = NULL, updated_at = NOW()
		WHERE id = $1`
	_, err := s.db.Exec(query, id)
	return err
}

func (s *Store) GetJourneyStats(orgID, journeyID uuid.UUID) (*Stats, error) {
	stats := &Stats{JourneyID: journeyID}
	query := `
		SELECT
			COUNT(*) FILTER (WHERE e.status = 'running'),
			COUNT(*) FILTER (WHERE e.status = 'completed'),
			COUNT(*) FILTER (WHERE e.status = 'failed'),
			COUNT(*)
		FROM journey_enrollments e
		JOIN journeys j ON j.id = e.journey_id
		WHERE e.journey_id = $1 AND j.organization_id = $2`
	err := s.db.QueryRow(query, journeyID, orgID).Scan(
		&stats.Running, &stats.Completed, &stats.Failed, &stats.Total)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
