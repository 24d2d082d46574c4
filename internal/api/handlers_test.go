package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenreach/engage/internal/crm"
	"github.com/lumenreach/engage/internal/journeys"
	"github.com/lumenreach/engage/internal/segmentation"
	"github.com/lumenreach/engage/internal/worker"
)

func newTestServer(t *testing.T) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := crm.NewStore(db)
	segments := segmentation.NewEngine(db, nil, time.Minute)
	journeyEngine := journeys.NewEngine(db, nil, time.Minute)
	scheduler := worker.NewCampaignScheduler(db, nil, segments, time.Minute)
	h := NewHandlers(store, segments, journeyEngine, nil, nil, scheduler, nil, "test-secret")
	return SetupRoutes(h, nil, nil), mock
}

func doJSON(t *testing.T, handler http.Handler, method, path string, orgID uuid.UUID, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if orgID != uuid.Nil {
		req.Header.Set("X-Organization-ID", orgID.String())
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/health", uuid.Nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Contains(t, resp, "journey_engine")
}

func TestMissingOrgHeader(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/contacts", uuid.Nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "X-Organization-ID")
}

func TestInvalidOrgHeader(t *testing.T) {
	handler, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
	req.Header.Set("X-Organization-ID", "not-a-uuid")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateContact(t *testing.T) {
	handler, mock := newTestServer(t)
	orgID := uuid.New()

	now := time.Now()
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM suppressions`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO contacts`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "subscribed_at", "created_at"}).
			AddRow(uuid.New(), crm.ContactSubscribed, now, now))
	mock.ExpectQuery(`SELECT .+ FROM journeys`).
		WithArgs(orgID, journeys.TriggerContactCreated).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec := doJSON(t, handler, http.MethodPost, "/api/contacts", orgID, map[string]interface{}{
		"phone":      "+15551230001",
		"first_name": "Dana",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var contact crm.Contact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &contact))
	assert.Equal(t, "+15551230001", contact.Phone)
	assert.Equal(t, crm.ContactSubscribed, contact.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateContactRejectsBadPhone(t *testing.T) {
	handler, mock := newTestServer(t)
	orgID := uuid.New()

	rec := doJSON(t, handler, http.MethodPost, "/api/contacts", orgID, map[string]interface{}{
		"phone": "abc",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetContactNotFound(t *testing.T) {
	handler, mock := newTestServer(t)
	orgID := uuid.New()
	contactID := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM contacts WHERE id = \$1 AND organization_id = \$2`).
		WithArgs(contactID, orgID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec := doJSON(t, handler, http.MethodGet, "/api/contacts/"+contactID.String(), orgID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetContactInvalidID(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/contacts/nope", uuid.New(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTemplateRejectsBadLiquid(t *testing.T) {
	handler, mock := newTestServer(t)
	orgID := uuid.New()

	rec := doJSON(t, handler, http.MethodPost, "/api/templates", orgID, map[string]interface{}{
		"name": "welcome",
		"body": "Hi {{ first_name",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid template body")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCampaignRequiresAudience(t *testing.T) {
	handler, mock := newTestServer(t)
	orgID := uuid.New()

	rec := doJSON(t, handler, http.MethodPost, "/api/campaigns", orgID, map[string]interface{}{
		"name": "Launch",
		"body": "Big news!",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "list_id or segment_id")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleCampaignRejectsPast(t *testing.T) {
	handler, mock := newTestServer(t)
	orgID := uuid.New()
	campaignID := uuid.New()

	rec := doJSON(t, handler, http.MethodPost, "/api/campaigns/"+campaignID.String()+"/schedule", orgID, map[string]interface{}{
		"scheduled_at": time.Now().Add(-time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "future")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPauseCampaignInvalidTransition(t *testing.T) {
	handler, mock := newTestServer(t)
	orgID := uuid.New()
	campaignID := uuid.New()

	rows := sqlmock.NewRows([]string{
		"id", "organization_id", "list_id", "segment_id", "template_id", "name", "body",
		"from_number", "media_url", "status", "scheduled_at", "started_at", "completed_at",
		"total_queued", "total_sent", "total_delivered", "total_failed", "total_replies",
		"total_clicks", "created_by", "created_at", "updated_at",
	}).AddRow(campaignID, orgID, nil, nil, nil, "Launch", "Hi", "+15550001111", "",
		crm.CampaignDraft, nil, nil, nil, 0, 0, 0, 0, 0, 0, "", time.Now(), time.Now())

	mock.ExpectQuery(`SELECT .+ FROM campaigns WHERE id = \$1 AND organization_id = \$2`).
		WithArgs(campaignID, orgID).
		WillReturnRows(rows)

	rec := doJSON(t, handler, http.MethodPost, "/api/campaigns/"+campaignID.String()+"/pause", orgID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
