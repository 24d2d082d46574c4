package crm

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Corp", "acme-corp"},
		{"  Hello,   World!  ", "hello-world"},
		{"already-slugged", "already-slugged"},
		{"Ünicode Name", "nicode-name"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), "Slugify(%q)", tt.in)
	}
}

func TestGetListNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	orgID := uuid.New()
	listID := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM lists WHERE id = \$1 AND organization_id = \$2`).
		WithArgs(listID, orgID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	list, err := store.GetList(context.Background(), orgID, listID)
	require.NoError(t, err)
	assert.Nil(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateListDefaults(t *testing.T) {
	store, mock := newMockStore(t)
	orgID := uuid.New()

	mock.ExpectExec(`INSERT INTO lists`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	list := &List{OrganizationID: orgID, Name: "VIP Customers"}
	err := store.CreateList(context.Background(), list)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, list.ID)
	assert.Equal(t, StatusActive, list.Status)
	assert.False(t, list.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateContactNormalizesPhone(t *testing.T) {
	store, mock := newMockStore(t)
	orgID := uuid.New()

	now := time.Now()
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM suppressions`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO contacts`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "subscribed_at", "created_at"}).
			AddRow(uuid.New(), ContactSubscribed, now, now))

	c := &Contact{
		OrganizationID: orgID,
		Phone:          "(555) 123-4567",
		Email:          "  Jane@Example.COM ",
		FirstName:      "Jane",
	}
	err := store.CreateContact(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, "+15551234567", c.Phone)
	assert.Equal(t, HashPhone("+15551234567"), c.PhoneHash)
	assert.Equal(t, "jane@example.com", c.Email)
	assert.Equal(t, ContactSubscribed, c.Status)
	assert.Equal(t, 50.0, c.EngagementScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateContactSuppressedPhone(t *testing.T) {
	store, mock := newMockStore(t)
	orgID := uuid.New()

	now := time.Now()
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM suppressions`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`INSERT INTO contacts`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "subscribed_at", "created_at"}).
			AddRow(uuid.New(), ContactSuppressed, now, now))

	c := &Contact{OrganizationID: orgID, Phone: "+15551234567"}
	err := store.CreateContact(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, ContactSuppressed, c.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateContactDuplicateKeepsExistingID(t *testing.T) {
	store, mock := newMockStore(t)
	orgID := uuid.New()
	existingID := uuid.New()
	firstSeen := time.Now().Add(-24 * time.Hour)

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM suppressions`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO contacts`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "subscribed_at", "created_at"}).
			AddRow(existingID, ContactSubscribed, firstSeen, firstSeen))

	c := &Contact{OrganizationID: orgID, Phone: "+15551234567", FirstName: "Jane"}
	err := store.CreateContact(context.Background(), c)
	require.NoError(t, err)

	// The conflict path must hand back the row that actually exists, not
	// the id generated for the attempted insert.
	assert.Equal(t, existingID, c.ID)
	assert.WithinDuration(t, firstSeen, c.CreatedAt, time.Second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateContactRejectsBadPhone(t *testing.T) {
	store, _ := newMockStore(t)

	c := &Contact{OrganizationID: uuid.New(), Phone: "not-a-phone"}
	err := store.CreateContact(context.Background(), c)
	assert.Error(t, err)
}

func TestTransitionCampaignAllowed(t *testing.T) {
	store, mock := newMockStore(t)
	orgID := uuid.New()
	campaignID := uuid.New()

	rows := campaignRows(campaignID, orgID, CampaignDraft)
	mock.ExpectQuery(`SELECT .+ FROM campaigns WHERE id = \$1 AND organization_id = \$2`).
		WithArgs(campaignID, orgID).
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE campaigns SET status = \$1`).
		WithArgs(CampaignScheduled, campaignID, orgID, CampaignDraft).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.TransitionCampaign(context.Background(), orgID, campaignID, CampaignScheduled)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionCampaignRejectsIllegalMove(t *testing.T) {
	store, mock := newMockStore(t)
	orgID := uuid.New()
	campaignID := uuid.New()

	rows := campaignRows(campaignID, orgID, CampaignSent)
	mock.ExpectQuery(`SELECT .+ FROM campaigns WHERE id = \$1 AND organization_id = \$2`).
		WithArgs(campaignID, orgID).
		WillReturnRows(rows)

	err := store.TransitionCampaign(context.Background(), orgID, campaignID, CampaignSending)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot transition")
}

func campaignRows(id, orgID uuid.UUID, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "organization_id", "list_id", "segment_id", "template_id", "name", "body",
		"from_number", "media_url", "status", "scheduled_at", "started_at", "completed_at",
		"total_queued", "total_sent", "total_delivered", "total_failed", "total_replies",
		"total_clicks", "created_by", "created_at", "updated_at",
	}).AddRow(id, orgID, nil, nil, nil, "Spring Promo", "Hi {{ first_name }}",
		"+15550001111", "", status, nil, nil, nil, 0, 0, 0, 0, 0, 0, "ops@acme.test", now, now)
}

func TestCampaignStatsIncludesDailySeries(t *testing.T) {
	store, mock := newMockStore(t)
	orgID := uuid.New()
	campaignID := uuid.New()
	day := time.Now().Truncate(24 * time.Hour)

	mock.ExpectQuery(`SELECT\s+COUNT\(\*\) FILTER \(WHERE event_type = 'queued'\)`).
		WithArgs(orgID, campaignID).
		WillReturnRows(sqlmock.NewRows([]string{
			"queued", "sent", "delivered", "failed", "received", "clicked", "unsubscribed",
		}).AddRow(0, 10, 8, 1, 2, 3, 0))
	mock.ExpectQuery(`SELECT date_trunc\('day', occurred_at\) AS day`).
		WithArgs(orgID, 30, campaignID).
		WillReturnRows(sqlmock.NewRows([]string{"day", "sent", "delivered", "received"}).
			AddRow(day.Add(-24*time.Hour), 4, 3, 1).
			AddRow(day, 6, 5, 1))

	stats, err := store.GetCampaignStats(context.Background(), orgID, campaignID)
	require.NoError(t, err)

	assert.Equal(t, 10, stats.Sent)
	assert.InDelta(t, 0.8, stats.DeliveryRate, 0.001)
	require.Len(t, stats.SendsByDay, 2)
	assert.Equal(t, 6, stats.SendsByDay[1].Sent)
	assert.Equal(t, 5, stats.SendsByDay[1].Delivered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendsByDayOrgWide(t *testing.T) {
	store, mock := newMockStore(t)
	orgID := uuid.New()

	mock.ExpectQuery(`SELECT date_trunc\('day', occurred_at\) AS day`).
		WithArgs(orgID, 7).
		WillReturnRows(sqlmock.NewRows([]string{"day", "sent", "delivered", "received"}))

	series, err := store.GetSendsByDay(context.Background(), orgID, nil, 7)
	require.NoError(t, err)
	assert.Empty(t, series)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordMessageEventIdempotent(t *testing.T) {
	store, mock := newMockStore(t)
	orgID := uuid.New()

	mock.ExpectExec(`INSERT INTO message_events`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO message_events`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ev := &MessageEvent{
		OrganizationID: orgID,
		ProviderSID:    "SM123",
		ProviderEvent:  "EV456",
		EventType:      EventDelivered,
	}
	inserted, err := store.RecordMessageEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := &MessageEvent{
		OrganizationID: orgID,
		ProviderSID:    "SM123",
		ProviderEvent:  "EV456",
		EventType:      EventDelivered,
	}
	inserted, err = store.RecordMessageEvent(context.Background(), dup)
	require.NoError(t, err)
	assert.False(t, inserted, "duplicate provider event must not insert")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementCampaignCounterUnknown(t *testing.T) {
	store, _ := newMockStore(t)
	err := store.IncrementCampaignCounter(context.Background(), uuid.New(), "bogus")
	assert.Error(t, err)
}

func TestDequeueCampaignBatch(t *testing.T) {
	store, mock := newMockStore(t)
	campaignID := uuid.New()
	contactID := uuid.New()
	itemID := uuid.New()

	rows := sqlmock.NewRows([]string{
		"id", "campaign_id", "contact_id", "phone", "status", "attempts",
		"last_error", "processed_at", "created_at",
	}).AddRow(itemID, campaignID, contactID, "+15551234567", "processing", 1, nil, nil, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE campaign_queue SET status = 'processing'`)).
		WithArgs(campaignID, 50).
		WillReturnRows(rows)

	items, err := store.DequeueCampaignBatch(context.Background(), campaignID, 50)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, itemID, items[0].ID)
	assert.Equal(t, "+15551234567", items[0].Phone)
	assert.Equal(t, 1, items[0].Attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMembershipLastOwner(t *testing.T) {
	store, mock := newMockStore(t)
	orgID := uuid.New()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM memberships WHERE organization_id = \$1 AND role = 'owner'`).
		WithArgs(orgID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT .+ FROM memberships WHERE organization_id = \$1 AND user_email = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "organization_id", "user_email", "role", "invited_by", "created_at",
		}).AddRow(uuid.New(), orgID, "owner@acme.test", RoleOwner, "", time.Now()))

	err := store.DeleteMembership(context.Background(), orgID, "owner@acme.test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "last owner")
}
