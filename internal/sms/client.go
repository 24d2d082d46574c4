package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lumenreach/engage/internal/config"
	"github.com/lumenreach/engage/internal/pkg/httpretry"
)

// Client is an SMS provider API client
type Client struct {
	baseURL    string
	accountID  string
	apiKey     string
	apiSecret  string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a new SMS provider client
func NewClient(cfg config.SMSConfig) *Client {
	return &Client{
		baseURL:   cfg.BaseURL,
		accountID: cfg.AccountID,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		}, cfg.MaxRetries),
	}
}

// doRequest makes an authenticated request and decodes into out. Non-2xx
// responses are returned as *APIError.
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, payload, out interface{}) error {
	fullURL := c.baseURL + "/Accounts/" + c.accountID + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, c.apiSecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil {
			apiErr.Message = string(respBody)
		}
		apiErr.StatusCode = resp.StatusCode
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// SendMessage sends an outbound SMS
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*MessageResponse, error) {
	var msg MessageResponse
	if err := c.doRequest(ctx, http.MethodPost, "/Messages.json", nil, req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetMessage fetches one message by SID
func (c *Client) GetMessage(ctx context.Context, sid string) (*MessageResponse, error) {
	var msg MessageResponse
	if err := c.doRequest(ctx, http.MethodGet, "/Messages/"+sid+".json", nil, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListMessages fetches a page of messages matching the query
func (c *Client) ListMessages(ctx context.Context, query ListMessagesQuery) (*MessageListResponse, error) {
	params := url.Values{}
	if query.To != "" {
		params.Set("To", query.To)
	}
	if query.From != "" {
		params.Set("From", query.From)
	}
	if !query.SentAfter.IsZero() {
		params.Set("DateSent>", query.SentAfter.Format(time.RFC3339))
	}
	if !query.SentBefore.IsZero() {
		params.Set("DateSent<", query.SentBefore.Format(time.RFC3339))
	}
	if query.PageSize > 0 {
		params.Set("PageSize", strconv.Itoa(query.PageSize))
	}
	if query.Page > 0 {
		params.Set("Page", strconv.Itoa(query.Page))
	}

	var list MessageListResponse
	if err := c.doRequest(ctx, http.MethodGet, "/Messages.json", params, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// ShortenLink creates a tracked short link for use in message bodies
func (c *Client) ShortenLink(ctx context.Context, req ShortenLinkRequest) (*ShortLinkResponse, error) {
	var link ShortLinkResponse
	if err := c.doRequest(ctx, http.MethodPost, "/Links.json", nil, req, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// CreateWebhook registers a callback endpoint for message events
func (c *Client) CreateWebhook(ctx context.Context, req CreateWebhookRequest) (*WebhookResponse, error) {
	var hook WebhookResponse
	if err := c.doRequest(ctx, http.MethodPost, "/Webhooks.json", nil, req, &hook); err != nil {
		return nil, err
	}
	return &hook, nil
}

// ListWebhooks fetches all registered callback endpoints
func (c *Client) ListWebhooks(ctx context.Context) ([]WebhookResponse, error) {
	var list WebhookListResponse
	if err := c.doRequest(ctx, http.MethodGet, "/Webhooks.json", nil, nil, &list); err != nil {
		return nil, err
	}
	return list.Webhooks, nil
}

// DeleteWebhook removes a registered callback endpoint
func (c *Client) DeleteWebhook(ctx context.Context, sid string) error {
	return c.doRequest(ctx, http.MethodDelete, "/Webhooks/"+sid+".json", nil, nil, nil)
}
