package crm

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status constants
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusArchived = "archived"
)

// Campaign status constants
const (
	CampaignDraft     = "draft"
	CampaignScheduled = "scheduled"
	CampaignSending   = "sending"
	CampaignSent      = "sent"
	CampaignPaused    = "paused"
	CampaignCancelled = "cancelled"
)

// Contact status constants
const (
	ContactSubscribed   = "subscribed"
	ContactUnsubscribed = "unsubscribed"
	ContactSuppressed   = "suppressed"
)

// Message direction constants
const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
)

// Message status constants
const (
	MessageQueued      = "queued"
	MessageSent        = "sent"
	MessageDelivered   = "delivered"
	MessageFailed      = "failed"
	MessageUndelivered = "undelivered"
	MessageReceived    = "received"
)

// Event type constants
const (
	EventQueued       = "queued"
	EventSent         = "sent"
	EventDelivered    = "delivered"
	EventFailed       = "failed"
	EventUndelivered  = "undelivered"
	EventReceived     = "received"
	EventClicked      = "clicked"
	EventUnsubscribed = "unsubscribed"
)

// Membership role constants
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Import job status constants
const (
	ImportPending    = "pending"
	ImportProcessing = "processing"
	ImportCompleted  = "completed"
	ImportFailed     = "failed"
)

// JSON helper type for JSONB fields
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(b, j)
}

// Organization represents a tenant
type Organization struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	Settings  JSON      `json:"settings" db:"settings"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Membership links a user to an organization with a role
type Membership struct {
	ID             uuid.UUID `json:"id" db:"id"`
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
	UserEmail      string    `json:"user_email" db:"user_email"`
	Role           string    `json:"role" db:"role"`
	InvitedBy      string    `json:"invited_by" db:"invited_by"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// List represents a contact list
type List struct {
	ID             uuid.UUID `json:"id" db:"id"`
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Description    string    `json:"description" db:"description"`
	ContactCount   int       `json:"contact_count" db:"contact_count"`
	ActiveCount    int       `json:"active_count" db:"active_count"`
	Status         string    `json:"status" db:"status"`
	Settings       JSON      `json:"settings" db:"settings"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Contact represents a messaging contact profile
type Contact struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	OrganizationID  uuid.UUID  `json:"organization_id" db:"organization_id"`
	ListID          *uuid.UUID `json:"list_id" db:"list_id"`
	Phone           string     `json:"phone" db:"phone"`
	PhoneHash       string     `json:"-" db:"phone_hash"`
	Email           string     `json:"email" db:"email"`
	FirstName       string     `json:"first_name" db:"first_name"`
	LastName        string     `json:"last_name" db:"last_name"`
	Status          string     `json:"status" db:"status"`
	Source          string     `json:"source" db:"source"`
	Attributes      JSON       `json:"attributes" db:"attributes"`
	Tags            []string   `json:"tags" db:"tags"`
	EngagementScore float64    `json:"engagement_score" db:"engagement_score"`
	TotalMessages   int        `json:"total_messages" db:"total_messages"`
	TotalReplies    int        `json:"total_replies" db:"total_replies"`
	TotalClicks     int        `json:"total_clicks" db:"total_clicks"`
	LastMessageAt   *time.Time `json:"last_message_at" db:"last_message_at"`
	LastReplyAt     *time.Time `json:"last_reply_at" db:"last_reply_at"`
	OptedOutAt      *time.Time `json:"opted_out_at" db:"opted_out_at"`
	SubscribedAt    time.Time  `json:"subscribed_at" db:"subscribed_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Campaign represents an SMS campaign
type Campaign struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	OrganizationID uuid.UUID  `json:"organization_id" db:"organization_id"`
	ListID         *uuid.UUID `json:"list_id" db:"list_id"`
	SegmentID      *uuid.UUID `json:"segment_id" db:"segment_id"`
	TemplateID     *uuid.UUID `json:"template_id" db:"template_id"`
	Name           string     `json:"name" db:"name"`
	Body           string     `json:"body" db:"body"`
	FromNumber     string     `json:"from_number" db:"from_number"`
	MediaURL       string     `json:"media_url" db:"media_url"`
	Status         string     `json:"status" db:"status"`
	ScheduledAt    *time.Time `json:"scheduled_at" db:"scheduled_at"`
	StartedAt      *time.Time `json:"started_at" db:"started_at"`
	CompletedAt    *time.Time `json:"completed_at" db:"completed_at"`
	TotalQueued    int        `json:"total_queued" db:"total_queued"`
	TotalSent      int        `json:"total_sent" db:"total_sent"`
	TotalDelivered int        `json:"total_delivered" db:"total_delivered"`
	TotalFailed    int        `json:"total_failed" db:"total_failed"`
	TotalReplies   int        `json:"total_replies" db:"total_replies"`
	TotalClicks    int        `json:"total_clicks" db:"total_clicks"`
	CreatedBy      string     `json:"created_by" db:"created_by"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// QueueItem is a single pending campaign send
type QueueItem struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	CampaignID  uuid.UUID  `json:"campaign_id" db:"campaign_id"`
	ContactID   uuid.UUID  `json:"contact_id" db:"contact_id"`
	Phone       string     `json:"phone" db:"phone"`
	Status      string     `json:"status" db:"status"`
	Attempts    int        `json:"attempts" db:"attempts"`
	LastError   string     `json:"last_error" db:"last_error"`
	ProcessedAt *time.Time `json:"processed_at" db:"processed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// Template represents a reusable message template with liquid placeholders
type Template struct {
	ID             uuid.UUID `json:"id" db:"id"`
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Body           string    `json:"body" db:"body"`
	MediaURL       string    `json:"media_url" db:"media_url"`
	Status         string    `json:"status" db:"status"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Conversation groups the two-way message history with one contact
type Conversation struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	OrganizationID uuid.UUID  `json:"organization_id" db:"organization_id"`
	ContactID      uuid.UUID  `json:"contact_id" db:"contact_id"`
	Phone          string     `json:"phone" db:"phone"`
	LastMessageAt  *time.Time `json:"last_message_at" db:"last_message_at"`
	LastBody       string     `json:"last_body" db:"last_body"`
	UnreadCount    int        `json:"unread_count" db:"unread_count"`
	Status         string     `json:"status" db:"status"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`

	// Joined from contacts for inbox listings
	ContactName string `json:"contact_name,omitempty" db:"-"`
}

// Message is a single inbound or outbound SMS
type Message struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	OrganizationID uuid.UUID  `json:"organization_id" db:"organization_id"`
	ConversationID uuid.UUID  `json:"conversation_id" db:"conversation_id"`
	ContactID      *uuid.UUID `json:"contact_id" db:"contact_id"`
	CampaignID     *uuid.UUID `json:"campaign_id" db:"campaign_id"`
	JourneyID      *uuid.UUID `json:"journey_id" db:"journey_id"`
	ProviderSID    string     `json:"provider_sid" db:"provider_sid"`
	Direction      string     `json:"direction" db:"direction"`
	FromNumber     string     `json:"from_number" db:"from_number"`
	ToNumber       string     `json:"to_number" db:"to_number"`
	Body           string     `json:"body" db:"body"`
	MediaURL       string     `json:"media_url" db:"media_url"`
	Status         string     `json:"status" db:"status"`
	ErrorCode      string     `json:"error_code" db:"error_code"`
	SegmentsCount  int        `json:"segments_count" db:"segments_count"`
	SentAt         *time.Time `json:"sent_at" db:"sent_at"`
	DeliveredAt    *time.Time `json:"delivered_at" db:"delivered_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// MessageEvent is one provider lifecycle event for a message
type MessageEvent struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	OrganizationID uuid.UUID  `json:"organization_id" db:"organization_id"`
	MessageID      *uuid.UUID `json:"message_id" db:"message_id"`
	CampaignID     *uuid.UUID `json:"campaign_id" db:"campaign_id"`
	ProviderSID    string     `json:"provider_sid" db:"provider_sid"`
	ProviderEvent  string     `json:"provider_event" db:"provider_event"`
	EventType      string     `json:"event_type" db:"event_type"`
	ErrorCode      string     `json:"error_code" db:"error_code"`
	Payload        JSON       `json:"payload" db:"payload"`
	OccurredAt     time.Time  `json:"occurred_at" db:"occurred_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// Suppression is an org-scoped do-not-contact entry
type Suppression struct {
	ID             uuid.UUID `json:"id" db:"id"`
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
	Phone          string    `json:"phone" db:"phone"`
	PhoneHash      string    `json:"-" db:"phone_hash"`
	Reason         string    `json:"reason" db:"reason"`
	Source         string    `json:"source" db:"source"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// WebhookEndpoint is a provider-side callback registration tracked locally
type WebhookEndpoint struct {
	ID             uuid.UUID `json:"id" db:"id"`
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
	ProviderSID    string    `json:"provider_sid" db:"provider_sid"`
	URL            string    `json:"url" db:"url"`
	Events         []string  `json:"events" db:"events"`
	Status         string    `json:"status" db:"status"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// ImportJob tracks one CSV contact import
type ImportJob struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	OrganizationID uuid.UUID  `json:"organization_id" db:"organization_id"`
	ListID         uuid.UUID  `json:"list_id" db:"list_id"`
	FileName       string     `json:"file_name" db:"file_name"`
	StorageKey     string     `json:"storage_key" db:"storage_key"`
	Status         string     `json:"status" db:"status"`
	TotalRows      int        `json:"total_rows" db:"total_rows"`
	ImportedRows   int        `json:"imported_rows" db:"imported_rows"`
	SkippedRows    int        `json:"skipped_rows" db:"skipped_rows"`
	ErrorMessage   string     `json:"error_message" db:"error_message"`
	CreatedBy      string     `json:"created_by" db:"created_by"`
	StartedAt      *time.Time `json:"started_at" db:"started_at"`
	CompletedAt    *time.Time `json:"completed_at" db:"completed_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// CampaignStats is the aggregated event view for one campaign
type CampaignStats struct {
	CampaignID     uuid.UUID    `json:"campaign_id"`
	Queued         int          `json:"queued"`
	Sent           int          `json:"sent"`
	Delivered      int          `json:"delivered"`
	Failed         int          `json:"failed"`
	Replies        int          `json:"replies"`
	Clicks         int          `json:"clicks"`
	Unsubscribes   int          `json:"unsubscribes"`
	DeliveryRate   float64      `json:"delivery_rate"`
	ReplyRate      float64      `json:"reply_rate"`
	OptOutRate     float64      `json:"opt_out_rate"`
	SendsByDay     []DailyCount `json:"sends_by_day"`
}

// DailyCount is one day's event totals for activity charts
type DailyCount struct {
	Day       time.Time `json:"day"`
	Sent      int       `json:"sent"`
	Delivered int       `json:"delivered"`
	Replies   int       `json:"replies"`
}

// DashboardStats is the org-level overview for the home screen
type DashboardStats struct {
	TotalContacts       int          `json:"total_contacts"`
	ActiveContacts      int          `json:"active_contacts"`
	TotalCampaigns      int          `json:"total_campaigns"`
	ActiveCampaigns     int          `json:"active_campaigns"`
	MessagesSent30d     int          `json:"messages_sent_30d"`
	RepliesReceived30d  int          `json:"replies_received_30d"`
	UnreadConversations int          `json:"unread_conversations"`
	SendsByDay          []DailyCount `json:"sends_by_day"`
}
