package segmentation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lumenreach/engage/internal/pkg/logger"
)

// Engine executes segments and maintains cached counts
type Engine struct {
	store    *Store
	db       *sql.DB
	redis    *redis.Client
	cacheTTL time.Duration
}

// NewEngine creates a new segmentation engine. The redis client may be
// nil, in which case counts are computed on every call.
func NewEngine(db *sql.DB, redisClient *redis.Client, cacheTTL time.Duration) *Engine {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Minute
	}
	return &Engine{
		store:    NewStore(db),
		db:       db,
		redis:    redisClient,
		cacheTTL: cacheTTL,
	}
}

// Store returns the underlying store for direct access
func (e *Engine) Store() *Store {
	return e.store
}

func (e *Engine) conditions(segment *Segment) (ConditionGroup, error) {
	var root ConditionGroup
	if len(segment.Conditions) == 0 {
		return ConditionGroup{LogicOperator: LogicAnd}, nil
	}
	if err := json.Unmarshal(segment.Conditions, &root); err != nil {
		return root, fmt.Errorf("unmarshal conditions: %w", err)
	}
	return root, nil
}

func (e *Engine) builder(segment *Segment) *QueryBuilder {
	qb := NewQueryBuilder()
	qb.SetOrganizationID(segment.OrganizationID.String())
	if segment.ListID != nil {
		qb.SetListID(segment.ListID.String())
	}
	return qb
}

// ExecuteSegment returns the IDs of all contacts currently matching a
// segment and updates its stored count.
func (e *Engine) ExecuteSegment(ctx context.Context, orgID, segmentID uuid.UUID) (*SegmentResult, error) {
	started := time.Now()

	segment, err := e.store.GetSegment(ctx, orgID, segmentID)
	if err != nil {
		return nil, fmt.Errorf("get segment: %w", err)
	}
	if segment == nil {
		return nil, fmt.Errorf("segment not found")
	}

	root, err := e.conditions(segment)
	if err != nil {
		return nil, err
	}

	query, args, err := e.builder(segment).BuildQuery(root)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var p ContactPreview
		if err := rows.Scan(&p.ID, &p.Phone, &p.FirstName, &p.LastName, &p.EngagementScore); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := e.store.UpdateSegmentCount(ctx, segmentID, len(ids)); err != nil {
		logger.Warn("failed to persist segment count", "segment_id", segmentID.String(), "error", err.Error())
	}
	e.cacheCount(ctx, segment.QueryHash, len(ids))

	return &SegmentResult{
		SegmentID:    segmentID,
		ContactCount: len(ids),
		ContactIDs:   ids,
		QueryHash:    segment.QueryHash,
		CalculatedAt: time.Now(),
		DurationMs:   time.Since(started).Milliseconds(),
	}, nil
}

// MatchingContacts returns the full preview rows for every contact in
// a segment, used when building campaign audiences.
func (e *Engine) MatchingContacts(ctx context.Context, orgID, segmentID uuid.UUID) ([]ContactPreview, error) {
	segment, err := e.store.GetSegment(ctx, orgID, segmentID)
	if err != nil {
		return nil, err
	}
	if segment == nil {
		return nil, fmt.Errorf("segment not found")
	}

	root, err := e.conditions(segment)
	if err != nil {
		return nil, err
	}

	query, args, err := e.builder(segment).BuildQuery(root)
	if err != nil {
		return nil, err
	}

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []ContactPreview
	for rows.Next() {
		var p ContactPreview
		if err := rows.Scan(&p.ID, &p.Phone, &p.FirstName, &p.LastName, &p.EngagementScore); err != nil {
			return nil, err
		}
		contacts = append(contacts, p)
	}
	return contacts, rows.Err()
}

// PreviewSegment estimates a condition tree without saving it
func (e *Engine) PreviewSegment(ctx context.Context, orgID uuid.UUID, listID *uuid.UUID, root ConditionGroup, limit int) (*SegmentPreview, error) {
	if limit <= 0 {
		limit = 10
	}
	if errs := ValidateConditions(root); len(errs) > 0 {
		return nil, fmt.Errorf("invalid conditions: %v", errs)
	}

	qb := NewQueryBuilder()
	qb.SetOrganizationID(orgID.String())
	if listID != nil {
		qb.SetListID(listID.String())
	}

	countQuery, countArgs, err := qb.BuildCountQuery(root)
	if err != nil {
		return nil, fmt.Errorf("build count query: %w", err)
	}

	var count int
	if err := e.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&count); err != nil {
		return nil, fmt.Errorf("count query: %w", err)
	}

	qb = NewQueryBuilder()
	qb.SetOrganizationID(orgID.String())
	if listID != nil {
		qb.SetListID(listID.String())
	}

	query, args, err := qb.BuildQuery(root)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	var samples []ContactPreview
	for rows.Next() {
		var p ContactPreview
		if err := rows.Scan(&p.ID, &p.Phone, &p.FirstName, &p.LastName, &p.EngagementScore); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		samples = append(samples, p)
	}

	return &SegmentPreview{
		EstimatedCount: count,
		SampleContacts: samples,
		CalculatedAt:   time.Now(),
	}, rows.Err()
}

// EvaluateContact checks whether one contact matches a segment, used
// for journey triggers on inbound events.
func (e *Engine) EvaluateContact(ctx context.Context, orgID, contactID, segmentID uuid.UUID) (bool, error) {
	segment, err := e.store.GetSegment(ctx, orgID, segmentID)
	if err != nil {
		return false, err
	}
	if segment == nil {
		return false, fmt.Errorf("segment not found")
	}

	root, err := e.conditions(segment)
	if err != nil {
		return false, err
	}

	query, args, err := e.builder(segment).BuildQuery(root)
	if err != nil {
		return false, err
	}

	checkQuery := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM (%s) matched WHERE matched.id = $%d)`,
		query, len(args)+1)
	args = append(args, contactID)

	var matches bool
	err = e.db.QueryRowContext(ctx, checkQuery, args...).Scan(&matches)
	return matches, err
}

// CachedCount returns the segment's count, served from Redis when the
// cached value for its query hash is still fresh.
func (e *Engine) CachedCount(ctx context.Context, orgID, segmentID uuid.UUID) (int, error) {
	segment, err := e.store.GetSegment(ctx, orgID, segmentID)
	if err != nil {
		return 0, err
	}
	if segment == nil {
		return 0, fmt.Errorf("segment not found")
	}

	if e.redis != nil && segment.QueryHash != "" {
		val, err := e.redis.Get(ctx, countCacheKey(segment.QueryHash)).Result()
		if err == nil {
			if n, convErr := strconv.Atoi(val); convErr == nil {
				return n, nil
			}
		}
	}

	root, err := e.conditions(segment)
	if err != nil {
		return 0, err
	}

	countQuery, args, err := e.builder(segment).BuildCountQuery(root)
	if err != nil {
		return 0, err
	}

	var count int
	if err := e.db.QueryRowContext(ctx, countQuery, args...).Scan(&count); err != nil {
		return 0, err
	}

	e.cacheCount(ctx, segment.QueryHash, count)
	if err := e.store.UpdateSegmentCount(ctx, segmentID, count); err != nil {
		logger.Warn("failed to persist segment count", "segment_id", segmentID.String(), "error", err.Error())
	}
	return count, nil
}

// RefreshStaleCounts recounts every active segment whose stored count
// is older than maxAge. Returns the number refreshed.
func (e *Engine) RefreshStaleCounts(ctx context.Context, maxAge time.Duration) (int, error) {
	segments, err := e.store.GetStaleSegments(ctx, maxAge)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, segment := range segments {
		root, err := e.conditions(segment)
		if err != nil {
			logger.Warn("skipping segment with bad conditions", "segment_id", segment.ID.String(), "error", err.Error())
			continue
		}

		countQuery, args, err := e.builder(segment).BuildCountQuery(root)
		if err != nil {
			logger.Warn("skipping segment with unbuildable query", "segment_id", segment.ID.String(), "error", err.Error())
			continue
		}

		var count int
		if err := e.db.QueryRowContext(ctx, countQuery, args...).Scan(&count); err != nil {
			logger.Error("segment count query failed", "segment_id", segment.ID.String(), "error", err.Error())
			continue
		}

		if err := e.store.UpdateSegmentCount(ctx, segment.ID, count); err != nil {
			logger.Error("failed to persist segment count", "segment_id", segment.ID.String(), "error", err.Error())
			continue
		}
		e.cacheCount(ctx, segment.QueryHash, count)
		refreshed++
	}
	return refreshed, nil
}

func (e *Engine) cacheCount(ctx context.Context, queryHash string, count int) {
	if e.redis == nil || queryHash == "" {
		return
	}
	if err := e.redis.Set(ctx, countCacheKey(queryHash), count, e.cacheTTL).Err(); err != nil {
		logger.Debug("segment count cache write failed", "error", err.Error())
	}
}

func countCacheKey(queryHash string) string {
	return "engage:segment:count:" + queryHash
}
