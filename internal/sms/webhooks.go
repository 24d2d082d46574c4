package sms

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"time"
)

// Provider webhook event types
const (
	WebhookMessageSent        = "message.sent"
	WebhookMessageDelivered   = "message.delivered"
	WebhookMessageFailed      = "message.failed"
	WebhookMessageUndelivered = "message.undelivered"
	WebhookMessageReceived    = "message.received"
	WebhookLinkClicked        = "link.clicked"
)

// WebhookEvent is the payload the provider posts to our callback URL
type WebhookEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	MessageSID  string    `json:"message_sid"`
	AccountSID  string    `json:"account_sid"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Body        string    `json:"body,omitempty"`
	Status      string    `json:"status,omitempty"`
	ErrorCode   string    `json:"error_code,omitempty"`
	LinkURL     string    `json:"link_url,omitempty"`
	NumSegments int       `json:"num_segments,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// SignPayload computes the webhook signature for a request body.
// The provider sends the same value in the X-Webhook-Signature header.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook request body against its signature
// header using a constant-time comparison.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := SignPayload(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
