package worker

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lumenreach/engage/internal/crm"
	"github.com/lumenreach/engage/internal/pkg/logger"
	"github.com/lumenreach/engage/internal/storage"
)

// ImportProcessor claims pending import jobs and streams their CSV
// files into the contact store.
type ImportProcessor struct {
	store     *crm.Store
	files     storage.FileStore
	redis     *redis.Client
	batchSize int
	interval  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewImportProcessor(db *sql.DB, files storage.FileStore, redisClient *redis.Client, batchSize int) *ImportProcessor {
	if batchSize <= 0 {
		batchSize = 500
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ImportProcessor{
		store:     crm.NewStore(db),
		files:     files,
		redis:     redisClient,
		batchSize: batchSize,
		interval:  10 * time.Second,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (ip *ImportProcessor) Start() {
	ip.wg.Add(1)
	go func() {
		defer ip.wg.Done()
		ticker := time.NewTicker(ip.interval)
		defer ticker.Stop()
		logger.Info("import processor started", "batch_size", ip.batchSize)
		for {
			select {
			case <-ip.ctx.Done():
				return
			case <-ticker.C:
				ip.pollOnce()
			}
		}
	}()
}

func (ip *ImportProcessor) Stop() {
	ip.cancel()
	ip.wg.Wait()
}

func (ip *ImportProcessor) pollOnce() {
	for {
		job, err := ip.store.ClaimPendingImportJob(ip.ctx)
		if err != nil {
			logger.Error("failed to claim import job", "error", err.Error())
			return
		}
		if job == nil {
			return
		}
		if err := ip.ProcessJob(ip.ctx, job); err != nil {
			logger.Error("import job failed",
				"job_id", job.ID.String(), "file", job.FileName, "error", err.Error())
			if markErr := ip.store.CompleteImportJob(ip.ctx, job.ID, crm.ImportFailed, err.Error()); markErr != nil {
				logger.Error("failed to mark import job failed",
					"job_id", job.ID.String(), "error", markErr.Error())
			}
		}
	}
}

// columnMapping maps CSV header positions onto contact fields. Columns
// that match no known field land in attributes under their own name.
type columnMapping struct {
	phone      int
	email      int
	firstName  int
	lastName   int
	tags       int
	attributes map[int]string
}

var headerAliases = map[string]string{
	"phone":        "phone",
	"phone_number": "phone",
	"phonenumber":  "phone",
	"mobile":       "phone",
	"cell":         "phone",
	"email":        "email",
	"email_address": "email",
	"first_name":   "first_name",
	"firstname":    "first_name",
	"first":        "first_name",
	"last_name":    "last_name",
	"lastname":     "last_name",
	"last":         "last_name",
	"tags":         "tags",
}

func mapHeader(header []string) (*columnMapping, error) {
	m := &columnMapping{phone: -1, email: -1, firstName: -1, lastName: -1, tags: -1,
		attributes: make(map[int]string)}
	for i, raw := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\uFEFF")))
		name = strings.ReplaceAll(name, " ", "_")
		switch headerAliases[name] {
		case "phone":
			m.phone = i
		case "email":
			m.email = i
		case "first_name":
			m.firstName = i
		case "last_name":
			m.lastName = i
		case "tags":
			m.tags = i
		default:
			if name != "" {
				m.attributes[i] = name
			}
		}
	}
	if m.phone == -1 {
		return nil, fmt.Errorf("no phone column found in header %v", header)
	}
	return m, nil
}

func (m *columnMapping) field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func (m *columnMapping) toContact(orgID uuid.UUID, listID *uuid.UUID, record []string) *crm.Contact {
	c := &crm.Contact{
		OrganizationID: orgID,
		ListID:         listID,
		Phone:          m.field(record, m.phone),
		Email:          m.field(record, m.email),
		FirstName:      m.field(record, m.firstName),
		LastName:       m.field(record, m.lastName),
		Source:         "import",
	}
	if raw := m.field(record, m.tags); raw != "" {
		for _, tag := range strings.Split(raw, ";") {
			if tag = strings.TrimSpace(tag); tag != "" {
				c.Tags = append(c.Tags, tag)
			}
		}
	}
	for idx, name := range m.attributes {
		if v := m.field(record, idx); v != "" {
			if c.Attributes == nil {
				c.Attributes = crm.JSON{}
			}
			c.Attributes[name] = v
		}
	}
	return c
}

// ProcessJob imports a single claimed job. Exported so the API can run
// small files inline.
func (ip *ImportProcessor) ProcessJob(ctx context.Context, job *crm.ImportJob) error {
	body, err := ip.files.Get(ctx, job.StorageKey)
	if err != nil {
		return fmt.Errorf("opening import file: %w", err)
	}
	defer body.Close()

	reader := csv.NewReader(body)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	mapping, err := mapHeader(header)
	if err != nil {
		return err
	}

	var listID *uuid.UUID
	if job.ListID != uuid.Nil {
		listID = &job.ListID
	}

	total, imported, skipped := 0, 0, 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			total++
			continue
		}
		total++

		contact := mapping.toContact(job.OrganizationID, listID, record)
		if err := ip.store.CreateContact(ctx, contact); err != nil {
			skipped++
			continue
		}
		imported++

		if total%ip.batchSize == 0 {
			ip.reportProgress(ctx, job.ID, total, imported, skipped)
		}
	}

	if err := ip.store.UpdateImportProgress(ctx, job.ID, total, imported, skipped); err != nil {
		return err
	}
	if listID != nil {
		if err := ip.store.RefreshListCounts(ctx, job.OrganizationID, *listID); err != nil {
			logger.Warn("failed to refresh list counts",
				"list_id", listID.String(), "error", err.Error())
		}
	}

	logger.Info("import job completed",
		"job_id", job.ID.String(), "total", total, "imported", imported, "skipped", skipped)
	return ip.store.CompleteImportJob(ctx, job.ID, crm.ImportCompleted, "")
}

func (ip *ImportProcessor) reportProgress(ctx context.Context, jobID uuid.UUID, total, imported, skipped int) {
	if err := ip.store.UpdateImportProgress(ctx, jobID, total, imported, skipped); err != nil {
		logger.Warn("failed to update import progress",
			"job_id", jobID.String(), "error", err.Error())
	}
	if ip.redis != nil {
		key := "engage:import:progress:" + jobID.String()
		val := fmt.Sprintf("%d/%d", imported, total)
		if err := ip.redis.Set(ctx, key, val, time.Hour).Err(); err != nil {
			logger.Debug("failed to cache import progress", "error", err.Error())
		}
	}
}
