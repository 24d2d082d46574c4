// Package journeys runs multi-step messaging automations triggered by
// contact events.
package journeys

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Journey trigger events
const (
	TriggerContactCreated  = "contact.created"
	TriggerContactTagged   = "contact.tagged"
	TriggerMessageReplied  = "message.replied"
	TriggerLinkClicked     = "link.clicked"
	TriggerSegmentEntered  = "segment.entered"
	TriggerContactOptedOut = "contact.opted_out"
)

// Step types
const (
	StepSendMessage = "send_message"
	StepWait        = "wait"
	StepCondition   = "condition"
)

// Condition checks
const (
	CheckHasReplied = "has_replied"
	CheckHasClicked = "has_clicked"
	CheckIsActive   = "is_active"
)

// Enrollment statuses
const (
	EnrollmentRunning   = "running"
	EnrollmentCompleted = "completed"
	EnrollmentFailed    = "failed"
)

// Step is a single step in a journey.
type Step struct {
	Type       string `json:"type"`
	Template   string `json:"template,omitempty"`
	DelayHours int    `json:"delay_hours,omitempty"`
	Check      string `json:"check,omitempty"`
	OnFalse    string `json:"on_false,omitempty"` // skip_to_end or continue
}

// Journey is the Go representation of a journeys row.
type Journey struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	TriggerEvent   string    `json:"trigger_event"`
	Steps          []Step    `json:"steps"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Enrollment is one contact's progress through a journey.
type Enrollment struct {
	ID          uuid.UUID  `json:"id"`
	JourneyID   uuid.UUID  `json:"journey_id"`
	ContactID   uuid.UUID  `json:"contact_id"`
	Phone       string     `json:"phone"`
	CurrentStep int        `json:"current_step"`
	Status      string     `json:"status"`
	NextRunAt   *time.Time `json:"next_run_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Stats summarizes one journey's enrollments.
type Stats struct {
	JourneyID uuid.UUID `json:"journey_id"`
	Running   int       `json:"running"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
	Total     int       `json:"total"`
}

// MessageSender delivers journey messages. Implemented by the campaign
// send pipeline so journeys share suppression and rate limiting.
type MessageSender interface {
	SendJourneyMessage(ctx context.Context, orgID, journeyID, contactID uuid.UUID, templateName string) error
}
