package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenreach/engage/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.SMSConfig{
		AccountID:      "AC123",
		APIKey:         "key",
		APISecret:      "secret",
		BaseURL:        server.URL,
		TimeoutSeconds: 5,
		MaxRetries:     1,
	})
}

func TestSendMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/Accounts/AC123/Messages.json", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)

		var req SendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "+15550001111", req.From)
		assert.Equal(t, "+15551234567", req.To)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sid":          "SM001",
			"account_sid":  "AC123",
			"from":         req.From,
			"to":           req.To,
			"body":         req.Body,
			"status":       "queued",
			"direction":    "outbound-api",
			"num_segments": "1",
		})
	})

	msg, err := client.SendMessage(context.Background(), SendMessageRequest{
		From: "+15550001111",
		To:   "+15551234567",
		Body: "Hello!",
	})
	require.NoError(t, err)
	assert.Equal(t, "SM001", msg.SID)
	assert.Equal(t, "queued", msg.Status)
	assert.Equal(t, 1, msg.NumSegments)
}

func TestGetMessageNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    20404,
			"message": "The requested resource was not found",
		})
	})

	_, err := client.GetMessage(context.Background(), "SMmissing")
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok, "expected *APIError, got %T", err)
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, 20404, apiErr.Code)
	assert.Contains(t, apiErr.Error(), "not found")
}

func TestListMessagesQueryParams(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "+15551234567", q.Get("To"))
		assert.Equal(t, "50", q.Get("PageSize"))
		assert.Equal(t, "2", q.Get("Page"))

		json.NewEncoder(w).Encode(MessageListResponse{
			Messages: []MessageResponse{{SID: "SM1"}, {SID: "SM2"}},
			Page:     2,
			PageSize: 50,
		})
	})

	list, err := client.ListMessages(context.Background(), ListMessagesQuery{
		To:       "+15551234567",
		PageSize: 50,
		Page:     2,
	})
	require.NoError(t, err)
	assert.Len(t, list.Messages, 2)
	assert.Equal(t, 2, list.Page)
}

func TestShortenLink(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Accounts/AC123/Links.json", r.URL.Path)
		json.NewEncoder(w).Encode(ShortLinkResponse{
			SID:      "LK001",
			URL:      "https://example.com/sale",
			ShortURL: "https://lr.ly/abc123",
		})
	})

	link, err := client.ShortenLink(context.Background(), ShortenLinkRequest{URL: "https://example.com/sale"})
	require.NoError(t, err)
	assert.Equal(t, "https://lr.ly/abc123", link.ShortURL)
}

func TestWebhookLifecycle(t *testing.T) {
	var deleted string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(WebhookResponse{SID: "WH001", URL: "https://app.test/webhooks/sms"})
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(WebhookListResponse{
				Webhooks: []WebhookResponse{{SID: "WH001"}},
			})
		case r.Method == http.MethodDelete:
			deleted = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		}
	})

	hook, err := client.CreateWebhook(context.Background(), CreateWebhookRequest{
		URL:    "https://app.test/webhooks/sms",
		Events: []string{WebhookMessageDelivered, WebhookMessageReceived},
	})
	require.NoError(t, err)
	assert.Equal(t, "WH001", hook.SID)

	hooks, err := client.ListWebhooks(context.Background())
	require.NoError(t, err)
	assert.Len(t, hooks, 1)

	require.NoError(t, client.DeleteWebhook(context.Background(), "WH001"))
	assert.Equal(t, "/Accounts/AC123/Webhooks/WH001.json", deleted)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event_id":"EV1","event_type":"message.delivered"}`)
	sig := SignPayload("topsecret", body)

	assert.True(t, VerifySignature("topsecret", body, sig))
	assert.False(t, VerifySignature("wrong", body, sig))
	assert.False(t, VerifySignature("topsecret", []byte("tampered"), sig))
	assert.False(t, VerifySignature("", body, sig))
	assert.False(t, VerifySignature("topsecret", body, ""))
}
