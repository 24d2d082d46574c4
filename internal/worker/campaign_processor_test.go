package worker

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenreach/engage/internal/crm"
)

func processorCampaignRows(id, orgID uuid.UUID, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "organization_id", "list_id", "segment_id", "template_id", "name", "body",
		"from_number", "media_url", "status", "scheduled_at", "started_at", "completed_at",
		"total_queued", "total_sent", "total_delivered", "total_failed", "total_replies",
		"total_clicks", "created_by", "created_at", "updated_at",
	}).AddRow(id, orgID, nil, nil, nil, "Spring Promo", "Hello",
		"+15550001111", "", status, nil, nil, nil, 0, 0, 0, 0, 0, 0, "ops@acme.test", now, now)
}

func processorContactRows(id, orgID uuid.UUID, phone string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "organization_id", "list_id", "phone", "email", "first_name", "last_name",
		"status", "source", "attributes", "tags", "engagement_score", "total_messages",
		"total_replies", "total_clicks", "last_message_at", "last_reply_at", "opted_out_at",
		"subscribed_at", "created_at", "updated_at",
	}).AddRow(id, orgID, nil, phone, "", "Ada", "Lovelace",
		crm.ContactSubscribed, "seed", []byte("{}"), "{}", 50.0, 0, 0, 0,
		nil, nil, nil, now, now, now)
}

func TestDailyLimitReleasesClaimedItems(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewRateLimiter(redisClient, 10)
	limiter.dailyLimit = 0

	store := crm.NewStore(db)
	sender := NewSender(store, nil, limiter)
	processor := NewCampaignProcessor(db, sender, 10)

	orgID := uuid.New()
	campaignID := uuid.New()
	contactID := uuid.New()
	itemID := uuid.New()
	tailID := uuid.New()
	campaign := &crm.Campaign{
		ID: campaignID, OrganizationID: orgID,
		Name: "Spring Promo", Body: "Hello", FromNumber: "+15550001111",
		Status: crm.CampaignSending,
	}

	now := time.Now()
	mock.ExpectQuery(`UPDATE campaign_queue SET status = 'processing'`).
		WithArgs(campaignID, 10).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "campaign_id", "contact_id", "phone", "status", "attempts",
			"last_error", "processed_at", "created_at",
		}).
			AddRow(itemID, campaignID, contactID, "+15551230001", "processing", 1, nil, nil, now).
			AddRow(tailID, campaignID, uuid.New(), "+15551230002", "processing", 1, nil, nil, now))

	mock.ExpectQuery(`SELECT .+ FROM contacts WHERE id = \$1 AND organization_id = \$2`).
		WithArgs(contactID, orgID).
		WillReturnRows(processorContactRows(contactID, orgID, "+15551230001"))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM suppressions`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	// The daily budget is exhausted, so both claimed items go back to
	// pending and the campaign pauses without marking anything failed.
	mock.ExpectExec(`UPDATE campaign_queue SET status = 'pending', attempts = attempts - 1`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`SELECT .+ FROM campaigns WHERE id = \$1 AND organization_id = \$2`).
		WithArgs(campaignID, orgID).
		WillReturnRows(processorCampaignRows(campaignID, orgID, crm.CampaignSending))
	mock.ExpectExec(`UPDATE campaigns SET status = \$1`).
		WithArgs(crm.CampaignPaused, campaignID, orgID, crm.CampaignSending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = processor.processCampaign(campaign)
	require.NoError(t, err)

	sent, failed := processor.Stats()
	assert.Zero(t, sent)
	assert.Zero(t, failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
