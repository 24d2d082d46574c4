package segmentation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEngineTest(t *testing.T) (*Engine, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewEngine(db, redisClient, time.Minute), mock, mr
}

func segmentRow(id, orgID uuid.UUID, queryHash string) *sqlmock.Rows {
	conditions, _ := json.Marshal(ConditionGroup{
		LogicOperator: LogicAnd,
		Conditions: []Condition{
			{ConditionType: ConditionProfile, Field: "engagement_score", Operator: OpGte, Value: "50"},
		},
	})
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "organization_id", "list_id", "name", "description", "conditions",
		"contact_count", "query_hash", "last_calculated_at", "status", "created_by",
		"created_at", "updated_at",
	}).AddRow(id, orgID, nil, "Engaged", "", conditions, 0, queryHash, nil, "active", "", now, now)
}

func TestCachedCountHitsRedis(t *testing.T) {
	engine, mock, mr := setupEngineTest(t)
	orgID := uuid.New()
	segmentID := uuid.New()

	mr.Set(countCacheKey("hash-abc"), "42")

	mock.ExpectQuery(`SELECT .+ FROM segments WHERE id = \$1 AND organization_id = \$2`).
		WithArgs(segmentID, orgID).
		WillReturnRows(segmentRow(segmentID, orgID, "hash-abc"))

	count, err := engine.CachedCount(context.Background(), orgID, segmentID)
	require.NoError(t, err)
	assert.Equal(t, 42, count)
	assert.NoError(t, mock.ExpectationsWereMet(), "cache hit must not run the count query")
}

func TestCachedCountMissComputesAndCaches(t *testing.T) {
	engine, mock, mr := setupEngineTest(t)
	orgID := uuid.New()
	segmentID := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM segments WHERE id = \$1 AND organization_id = \$2`).
		WithArgs(segmentID, orgID).
		WillReturnRows(segmentRow(segmentID, orgID, "hash-xyz"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM contacts c`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(17))
	mock.ExpectExec(`UPDATE segments SET contact_count = \$1`).
		WithArgs(17, segmentID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	count, err := engine.CachedCount(context.Background(), orgID, segmentID)
	require.NoError(t, err)
	assert.Equal(t, 17, count)

	cached, err := mr.Get(countCacheKey("hash-xyz"))
	require.NoError(t, err)
	assert.Equal(t, "17", cached)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteSegment(t *testing.T) {
	engine, mock, _ := setupEngineTest(t)
	orgID := uuid.New()
	segmentID := uuid.New()
	contactID := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM segments WHERE id = \$1 AND organization_id = \$2`).
		WithArgs(segmentID, orgID).
		WillReturnRows(segmentRow(segmentID, orgID, "hash-1"))
	mock.ExpectQuery(`SELECT c\.id, c\.phone`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "phone", "first_name", "last_name", "engagement_score"}).
			AddRow(contactID, "+15551234567", "Jane", "Doe", 80.0))
	mock.ExpectExec(`UPDATE segments SET contact_count = \$1`).
		WithArgs(1, segmentID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := engine.ExecuteSegment(context.Background(), orgID, segmentID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ContactCount)
	assert.Equal(t, []uuid.UUID{contactID}, result.ContactIDs)
	assert.Equal(t, "hash-1", result.QueryHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteSegmentNotFound(t *testing.T) {
	engine, mock, _ := setupEngineTest(t)
	orgID := uuid.New()
	segmentID := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM segments WHERE id = \$1 AND organization_id = \$2`).
		WithArgs(segmentID, orgID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := engine.ExecuteSegment(context.Background(), orgID, segmentID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestEvaluateContact(t *testing.T) {
	engine, mock, _ := setupEngineTest(t)
	orgID := uuid.New()
	segmentID := uuid.New()
	contactID := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM segments WHERE id = \$1 AND organization_id = \$2`).
		WithArgs(segmentID, orgID).
		WillReturnRows(segmentRow(segmentID, orgID, "hash-1"))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	matches, err := engine.EvaluateContact(context.Background(), orgID, contactID, segmentID)
	require.NoError(t, err)
	assert.True(t, matches)
}
