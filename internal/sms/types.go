// Package sms is a client for the SMS provider's REST API.
package sms

import (
	"fmt"
	"time"
)

// Message statuses reported by the provider
const (
	StatusQueued      = "queued"
	StatusSending     = "sending"
	StatusSent        = "sent"
	StatusDelivered   = "delivered"
	StatusFailed      = "failed"
	StatusUndelivered = "undelivered"
	StatusReceived    = "received"
)

// APIError is a non-2xx response from the provider
type APIError struct {
	StatusCode int    `json:"status"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
	MoreInfo   string `json:"more_info,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sms api error (status %d, code %d): %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether the error is a provider 404
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404
}

// SendMessageRequest is the payload for sending an outbound message
type SendMessageRequest struct {
	From           string `json:"from"`
	To             string `json:"to"`
	Body           string `json:"body"`
	MediaURL       string `json:"media_url,omitempty"`
	StatusCallback string `json:"status_callback,omitempty"`
}

// MessageResponse is the provider's representation of one message
type MessageResponse struct {
	SID          string     `json:"sid"`
	AccountSID   string     `json:"account_sid"`
	From         string     `json:"from"`
	To           string     `json:"to"`
	Body         string     `json:"body"`
	Status       string     `json:"status"`
	Direction    string     `json:"direction"`
	NumSegments  int        `json:"num_segments,string"`
	ErrorCode    *int       `json:"error_code"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Price        string     `json:"price,omitempty"`
	DateCreated  time.Time  `json:"date_created"`
	DateSent     *time.Time `json:"date_sent"`
}

// ListMessagesQuery filters a message listing
type ListMessagesQuery struct {
	To       string
	From     string
	SentAfter  time.Time
	SentBefore time.Time
	PageSize int
	Page     int
}

// MessageListResponse is a page of messages
type MessageListResponse struct {
	Messages []MessageResponse `json:"messages"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	NextPage string            `json:"next_page_uri,omitempty"`
}

// ShortenLinkRequest creates a tracked short link
type ShortenLinkRequest struct {
	URL    string `json:"url"`
	Domain string `json:"domain,omitempty"`
}

// ShortLinkResponse is a created short link
type ShortLinkResponse struct {
	SID         string    `json:"sid"`
	URL         string    `json:"url"`
	ShortURL    string    `json:"short_url"`
	DateCreated time.Time `json:"date_created"`
}

// CreateWebhookRequest registers a callback endpoint with the provider
type CreateWebhookRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

// WebhookResponse is a registered webhook
type WebhookResponse struct {
	SID         string    `json:"sid"`
	URL         string    `json:"url"`
	Events      []string  `json:"events"`
	Status      string    `json:"status"`
	DateCreated time.Time `json:"date_created"`
}

// WebhookListResponse is the webhook listing envelope
type WebhookListResponse struct {
	Webhooks []WebhookResponse `json:"webhooks"`
}
