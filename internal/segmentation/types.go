// Package segmentation builds dynamic contact segments from boolean
// condition trees and compiles them to parameterized SQL.
package segmentation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Operator represents a comparison operator
type Operator string

const (
	// String operators
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpIsEmpty     Operator = "is_empty"
	OpIsNotEmpty  Operator = "is_not_empty"

	// Numeric operators
	OpGt      Operator = "gt"
	OpGte     Operator = "gte"
	OpLt      Operator = "lt"
	OpLte     Operator = "lte"
	OpBetween Operator = "between"

	// Date operators
	OpDateBefore      Operator = "date_before"
	OpDateAfter       Operator = "date_after"
	OpInLastDays      Operator = "in_last_days"
	OpMoreThanDaysAgo Operator = "more_than_days_ago"

	// Tag operators
	OpContainsAny    Operator = "contains_any"
	OpContainsAll    Operator = "contains_all"
	OpNotContainsAny Operator = "not_contains_any"
	OpTagsEmpty      Operator = "tags_empty"
	OpTagsNotEmpty   Operator = "tags_not_empty"

	// NULL checks
	OpIsNull    Operator = "is_null"
	OpIsNotNull Operator = "is_not_null"

	// Message activity operators
	OpMessagedInLastDays    Operator = "messaged_in_last_days"
	OpNotMessagedInLastDays Operator = "not_messaged_in_last_days"
	OpRepliedInLastDays     Operator = "replied_in_last_days"
	OpNotRepliedInLastDays  Operator = "not_replied_in_last_days"
)

// FieldType represents the data type of a field
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldNumber   FieldType = "number"
	FieldDatetime FieldType = "datetime"
	FieldTags     FieldType = "tags"
)

// ConditionType represents the category of condition
type ConditionType string

const (
	ConditionProfile   ConditionType = "profile"   // Contact columns
	ConditionAttribute ConditionType = "attribute" // JSONB attributes
	ConditionTag       ConditionType = "tag"       // Tag array matching
	ConditionActivity  ConditionType = "activity"  // Message history
)

// LogicOperator for combining conditions
type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
)

// Segment represents a dynamic contact segment
type Segment struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	OrganizationID   uuid.UUID       `json:"organization_id" db:"organization_id"`
	ListID           *uuid.UUID      `json:"list_id,omitempty" db:"list_id"`
	Name             string          `json:"name" db:"name"`
	Description      string          `json:"description,omitempty" db:"description"`
	Conditions       json.RawMessage `json:"conditions" db:"conditions"`
	ContactCount     int             `json:"contact_count" db:"contact_count"`
	QueryHash        string          `json:"query_hash,omitempty" db:"query_hash"`
	LastCalculatedAt *time.Time      `json:"last_calculated_at,omitempty" db:"last_calculated_at"`
	Status           string          `json:"status" db:"status"`
	CreatedBy        string          `json:"created_by,omitempty" db:"created_by"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// ConditionGroup is a boolean group of conditions and nested groups
type ConditionGroup struct {
	LogicOperator LogicOperator    `json:"logic_operator"`
	IsNegated     bool             `json:"is_negated,omitempty"`
	Conditions    []Condition      `json:"conditions,omitempty"`
	Groups        []ConditionGroup `json:"groups,omitempty"`
}

// Condition is a single comparison in a segment
type Condition struct {
	ConditionType  ConditionType `json:"condition_type"`
	Field          string        `json:"field,omitempty"`
	FieldType      FieldType     `json:"field_type,omitempty"`
	Operator       Operator      `json:"operator"`
	Value          string        `json:"value,omitempty"`
	ValueSecondary string        `json:"value_secondary,omitempty"`
	ValuesArray    []string      `json:"values_array,omitempty"`
}

// SegmentResult is the outcome of a full segment execution
type SegmentResult struct {
	SegmentID    uuid.UUID   `json:"segment_id"`
	ContactCount int         `json:"contact_count"`
	ContactIDs   []uuid.UUID `json:"contact_ids,omitempty"`
	QueryHash    string      `json:"query_hash"`
	CalculatedAt time.Time   `json:"calculated_at"`
	DurationMs   int64       `json:"duration_ms"`
}

// SegmentPreview is a quick estimate with sample contacts
type SegmentPreview struct {
	EstimatedCount int              `json:"estimated_count"`
	SampleContacts []ContactPreview `json:"sample_contacts"`
	CalculatedAt   time.Time        `json:"calculated_at"`
}

// ContactPreview is a minimal contact representation for previews
type ContactPreview struct {
	ID              uuid.UUID `json:"id"`
	Phone           string    `json:"phone"`
	FirstName       string    `json:"first_name,omitempty"`
	LastName        string    `json:"last_name,omitempty"`
	EngagementScore float64   `json:"engagement_score"`
}
