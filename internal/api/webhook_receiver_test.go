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

	"github.com/lumenreach/engage/internal/sms"
)

func postWebhook(t *testing.T, handler http.Handler, secret string, event sms.WebhookEvent) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/sms", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Webhook-Signature", sms.SignPayload(secret, body))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func messageRow(msgID, orgID uuid.UUID, contactID, campaignID *uuid.UUID) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "organization_id", "conversation_id", "contact_id", "campaign_id",
		"journey_id", "provider_sid", "direction", "from_number", "to_number", "body",
		"media_url", "status", "error_code", "segments_count", "sent_at", "delivered_at",
		"created_at",
	}).AddRow(msgID, orgID, uuid.New(), contactID, campaignID, nil, "SM123", "outbound",
		"+15550001111", "+15551230001", "hello", "", "sent", "", 1, time.Now(), nil, time.Now())
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := postWebhook(t, handler, "", sms.WebhookEvent{
		EventID:   "evt_1",
		EventType: sms.WebhookMessageDelivered,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := postWebhook(t, handler, "wrong-secret", sms.WebhookEvent{
		EventID:   "evt_1",
		EventType: sms.WebhookMessageDelivered,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookDeliveredUpdatesMessage(t *testing.T) {
	handler, mock := newTestServer(t)
	msgID := uuid.New()
	orgID := uuid.New()
	campaignID := uuid.New()
	contactID := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM messages WHERE provider_sid = \$1`).
		WithArgs("SM123").
		WillReturnRows(messageRow(msgID, orgID, &contactID, &campaignID))
	mock.ExpectExec(`INSERT INTO message_events`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE messages SET status = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE campaigns SET total_delivered = total_delivered \+ 1`).
		WithArgs(campaignID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := postWebhook(t, handler, "test-secret", sms.WebhookEvent{
		EventID:    "evt_delivered_1",
		EventType:  sms.WebhookMessageDelivered,
		MessageSID: "SM123",
		Timestamp:  time.Now(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookDuplicateEventSkipsUpdates(t *testing.T) {
	handler, mock := newTestServer(t)
	msgID := uuid.New()
	orgID := uuid.New()
	campaignID := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM messages WHERE provider_sid = \$1`).
		WithArgs("SM123").
		WillReturnRows(messageRow(msgID, orgID, nil, &campaignID))
	mock.ExpectExec(`INSERT INTO message_events`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rec := postWebhook(t, handler, "test-secret", sms.WebhookEvent{
		EventID:    "evt_delivered_1",
		EventType:  sms.WebhookMessageDelivered,
		MessageSID: "SM123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookUnknownMessageAccepted(t *testing.T) {
	handler, mock := newTestServer(t)

	mock.ExpectQuery(`SELECT .+ FROM messages WHERE provider_sid = \$1`).
		WithArgs("SM404").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec := postWebhook(t, handler, "test-secret", sms.WebhookEvent{
		EventID:    "evt_x",
		EventType:  sms.WebhookMessageDelivered,
		MessageSID: "SM404",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookRequiresEventID(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := postWebhook(t, handler, "test-secret", sms.WebhookEvent{
		EventType: sms.WebhookMessageDelivered,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNormalizeKeyword(t *testing.T) {
	assert.True(t, stopKeywords[normalizeKeyword("stop")])
	assert.True(t, stopKeywords[normalizeKeyword("  STOP ")])
	assert.True(t, stopKeywords[normalizeKeyword("Unsubscribe")])
	assert.False(t, stopKeywords[normalizeKeyword("stop it please")])
	assert.False(t, stopKeywords[normalizeKeyword("thanks!")])
}
