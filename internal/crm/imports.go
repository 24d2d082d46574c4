package crm

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// CreateImportJob records a pending CSV import
func (s *Store) CreateImportJob(ctx context.Context, job *ImportJob) error {
	job.ID = uuid.New()
	job.CreatedAt = time.Now()
	if job.Status == "" {
		job.Status = ImportPending
	}

	query := `INSERT INTO import_jobs (id, organization_id, list_id, file_name, storage_key,
		status, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query, job.ID, job.OrganizationID, job.ListID,
		job.FileName, job.StorageKey, job.Status, job.CreatedBy, job.CreatedAt)
	return err
}

const importJobColumns = `SELECT id, organization_id, list_id, file_name, storage_key, status,
	total_rows, imported_rows, skipped_rows, error_message, created_by,
	started_at, completed_at, created_at`

func (s *Store) scanImportJob(row rowScanner) (*ImportJob, error) {
	job := &ImportJob{}
	err := row.Scan(&job.ID, &job.OrganizationID, &job.ListID, &job.FileName,
		&job.StorageKey, &job.Status, &job.TotalRows, &job.ImportedRows,
		&job.SkippedRows, &job.ErrorMessage, &job.CreatedBy,
		&job.StartedAt, &job.CompletedAt, &job.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetImportJob retrieves an import job by ID
func (s *Store) GetImportJob(ctx context.Context, orgID, jobID uuid.UUID) (*ImportJob, error) {
	query := importJobColumns + ` FROM import_jobs WHERE id = $1 AND organization_id = $2`
	return s.scanImportJob(s.db.QueryRowContext(ctx, query, jobID, orgID))
}

// GetImportJobs lists import jobs for an organization, newest first
func (s *Store) GetImportJobs(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*ImportJob, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM import_jobs WHERE organization_id = $1`, orgID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := importJobColumns + ` FROM import_jobs WHERE organization_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, query, orgID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var jobs []*ImportJob
	for rows.Next() {
		job, err := s.scanImportJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}
	return jobs, total, rows.Err()
}

// ClaimPendingImportJob atomically claims the oldest pending import for
// processing. Returns nil when nothing is pending.
func (s *Store) ClaimPendingImportJob(ctx context.Context) (*ImportJob, error) {
	query := `UPDATE import_jobs SET status = 'processing', started_at = NOW()
		WHERE id = (
			SELECT id FROM import_jobs WHERE status = 'pending'
			ORDER BY created_at LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, organization_id, list_id, file_name, storage_key, status,
			total_rows, imported_rows, skipped_rows, error_message, created_by,
			started_at, completed_at, created_at`

	return s.scanImportJob(s.db.QueryRowContext(ctx, query))
}

// UpdateImportProgress records row counts mid-run
func (s *Store) UpdateImportProgress(ctx context.Context, jobID uuid.UUID, total, imported, skipped int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE import_jobs SET total_rows = $1, imported_rows = $2, skipped_rows = $3 WHERE id = $4`,
		total, imported, skipped, jobID)
	return err
}

// CompleteImportJob finalizes a job as completed or failed
func (s *Store) CompleteImportJob(ctx context.Context, jobID uuid.UUID, status, errorMessage string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE import_jobs SET status = $1, error_message = $2, completed_at = NOW() WHERE id = $3`,
		status, errorMessage, jobID)
	return err
}
