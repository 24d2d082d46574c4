package segmentation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// profileFields is the whitelist of contact columns segments may filter
// on. Field names from the API are looked up here; anything else is
// rejected before SQL is assembled.
var profileFields = map[string]FieldType{
	"phone":            FieldString,
	"email":            FieldString,
	"first_name":       FieldString,
	"last_name":        FieldString,
	"status":           FieldString,
	"source":           FieldString,
	"engagement_score": FieldNumber,
	"total_messages":   FieldNumber,
	"total_replies":    FieldNumber,
	"total_clicks":     FieldNumber,
	"last_message_at":  FieldDatetime,
	"last_reply_at":    FieldDatetime,
	"subscribed_at":    FieldDatetime,
	"created_at":       FieldDatetime,
}

const contactSelectColumns = `c.id, c.phone, c.first_name, c.last_name, c.engagement_score`

// QueryBuilder compiles condition trees into parameterized SQL against
// the contacts table.
type QueryBuilder struct {
	args           []interface{}
	argCounter     int
	organizationID string
	listID         string
}

// NewQueryBuilder creates a new QueryBuilder
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{args: make([]interface{}, 0), argCounter: 1}
}

// SetOrganizationID sets the organization filter
func (qb *QueryBuilder) SetOrganizationID(orgID string) *QueryBuilder {
	qb.organizationID = orgID
	return qb
}

// SetListID sets the list filter
func (qb *QueryBuilder) SetListID(listID string) *QueryBuilder {
	qb.listID = listID
	return qb
}

func (qb *QueryBuilder) nextArg(value interface{}) string {
	qb.args = append(qb.args, value)
	placeholder := fmt.Sprintf("$%d", qb.argCounter)
	qb.argCounter++
	return placeholder
}

// BuildQuery builds the full SELECT for a condition tree
func (qb *QueryBuilder) BuildQuery(group ConditionGroup) (string, []interface{}, error) {
	where, err := qb.buildWhere(group)
	if err != nil {
		return "", nil, err
	}

	query := "SELECT " + contactSelectColumns + "\nFROM contacts c\nWHERE " + where +
		"\nORDER BY c.engagement_score DESC"
	return query, qb.args, nil
}

// BuildCountQuery builds a COUNT query for the same condition tree
func (qb *QueryBuilder) BuildCountQuery(group ConditionGroup) (string, []interface{}, error) {
	where, err := qb.buildWhere(group)
	if err != nil {
		return "", nil, err
	}

	return "SELECT COUNT(*) FROM contacts c\nWHERE " + where, qb.args, nil
}

func (qb *QueryBuilder) buildWhere(group ConditionGroup) (string, error) {
	qb.args = make([]interface{}, 0)
	qb.argCounter = 1

	conditions := []string{"c.status = 'subscribed'"}

	if qb.organizationID != "" {
		conditions = append(conditions, fmt.Sprintf("c.organization_id = %s", qb.nextArg(qb.organizationID)))
	}
	if qb.listID != "" {
		conditions = append(conditions, fmt.Sprintf("c.list_id = %s", qb.nextArg(qb.listID)))
	}

	// Always exclude suppressed numbers
	conditions = append(conditions, `NOT EXISTS (
		SELECT 1 FROM suppressions sp
		WHERE sp.organization_id = c.organization_id AND sp.phone_hash = c.phone_hash
	)`)

	main, err := qb.buildGroup(group)
	if err != nil {
		return "", err
	}
	if main != "" {
		conditions = append(conditions, "("+main+")")
	}

	return strings.Join(conditions, "\n  AND "), nil
}

func (qb *QueryBuilder) buildGroup(group ConditionGroup) (string, error) {
	parts := []string{}

	for _, cond := range group.Conditions {
		sql, err := qb.buildCondition(cond)
		if err != nil {
			return "", err
		}
		if sql != "" {
			parts = append(parts, sql)
		}
	}

	for _, sub := range group.Groups {
		subSQL, err := qb.buildGroup(sub)
		if err != nil {
			return "", err
		}
		if subSQL != "" {
			if sub.IsNegated {
				parts = append(parts, "NOT ("+subSQL+")")
			} else {
				parts = append(parts, "("+subSQL+")")
			}
		}
	}

	if len(parts) == 0 {
		return "", nil
	}

	operator := " AND "
	if group.LogicOperator == LogicOr {
		operator = " OR "
	}

	result := strings.Join(parts, operator)
	if group.IsNegated {
		result = "NOT (" + result + ")"
	}
	return result, nil
}

func (qb *QueryBuilder) buildCondition(cond Condition) (string, error) {
	switch cond.ConditionType {
	case ConditionProfile, "":
		return qb.buildProfileCondition(cond)
	case ConditionAttribute:
		return qb.buildAttributeCondition(cond)
	case ConditionTag:
		return qb.buildTagCondition(cond)
	case ConditionActivity:
		return qb.buildActivityCondition(cond)
	default:
		return "", fmt.Errorf("unknown condition type: %s", cond.ConditionType)
	}
}

func (qb *QueryBuilder) buildProfileCondition(cond Condition) (string, error) {
	fieldType, ok := profileFields[cond.Field]
	if !ok {
		return "", fmt.Errorf("unknown profile field: %s", cond.Field)
	}
	field := "c." + cond.Field

	switch cond.Operator {
	case OpEquals:
		return fmt.Sprintf("%s = %s", field, qb.nextArg(cond.Value)), nil
	case OpNotEquals:
		return fmt.Sprintf("%s != %s", field, qb.nextArg(cond.Value)), nil
	case OpContains:
		return fmt.Sprintf("%s ILIKE %s", field, qb.nextArg("%"+cond.Value+"%")), nil
	case OpNotContains:
		return fmt.Sprintf("%s NOT ILIKE %s", field, qb.nextArg("%"+cond.Value+"%")), nil
	case OpStartsWith:
		return fmt.Sprintf("%s ILIKE %s", field, qb.nextArg(cond.Value+"%")), nil
	case OpEndsWith:
		return fmt.Sprintf("%s ILIKE %s", field, qb.nextArg("%"+cond.Value)), nil
	case OpIsEmpty:
		return fmt.Sprintf("(%s IS NULL OR %s = '')", field, field), nil
	case OpIsNotEmpty:
		return fmt.Sprintf("(%s IS NOT NULL AND %s != '')", field, field), nil
	case OpGt:
		return fmt.Sprintf("%s > %s", field, qb.nextArg(cond.Value)), nil
	case OpGte:
		return fmt.Sprintf("%s >= %s", field, qb.nextArg(cond.Value)), nil
	case OpLt:
		return fmt.Sprintf("%s < %s", field, qb.nextArg(cond.Value)), nil
	case OpLte:
		return fmt.Sprintf("%s <= %s", field, qb.nextArg(cond.Value)), nil
	case OpBetween:
		return fmt.Sprintf("%s BETWEEN %s AND %s", field, qb.nextArg(cond.Value), qb.nextArg(cond.ValueSecondary)), nil
	case OpDateBefore:
		return fmt.Sprintf("%s < %s", field, qb.nextArg(cond.Value)), nil
	case OpDateAfter:
		return fmt.Sprintf("%s > %s", field, qb.nextArg(cond.Value)), nil
	case OpInLastDays:
		if fieldType != FieldDatetime {
			return "", fmt.Errorf("operator %s requires a date field", cond.Operator)
		}
		return fmt.Sprintf("%s >= NOW() - (%s || ' days')::interval", field, qb.nextArg(cond.Value)), nil
	case OpMoreThanDaysAgo:
		if fieldType != FieldDatetime {
			return "", fmt.Errorf("operator %s requires a date field", cond.Operator)
		}
		return fmt.Sprintf("%s < NOW() - (%s || ' days')::interval", field, qb.nextArg(cond.Value)), nil
	case OpIsNull:
		return fmt.Sprintf("%s IS NULL", field), nil
	case OpIsNotNull:
		return fmt.Sprintf("%s IS NOT NULL", field), nil
	default:
		return "", fmt.Errorf("unsupported operator for profile field: %s", cond.Operator)
	}
}

func (qb *QueryBuilder) buildAttributeCondition(cond Condition) (string, error) {
	if cond.Field == "" {
		return "", fmt.Errorf("attribute conditions require a field name")
	}
	// The attribute key is passed as a parameter, never interpolated
	jsonPath := fmt.Sprintf("c.attributes->>%s", qb.nextArg(cond.Field))
	numericPath := "(" + jsonPath + ")::numeric"

	switch cond.Operator {
	case OpEquals:
		return fmt.Sprintf("%s = %s", jsonPath, qb.nextArg(cond.Value)), nil
	case OpNotEquals:
		return fmt.Sprintf("%s != %s", jsonPath, qb.nextArg(cond.Value)), nil
	case OpContains:
		return fmt.Sprintf("%s ILIKE %s", jsonPath, qb.nextArg("%"+cond.Value+"%")), nil
	case OpNotContains:
		return fmt.Sprintf("%s NOT ILIKE %s", jsonPath, qb.nextArg("%"+cond.Value+"%")), nil
	case OpGt:
		return fmt.Sprintf("%s > %s", numericPath, qb.nextArg(cond.Value)), nil
	case OpGte:
		return fmt.Sprintf("%s >= %s", numericPath, qb.nextArg(cond.Value)), nil
	case OpLt:
		return fmt.Sprintf("%s < %s", numericPath, qb.nextArg(cond.Value)), nil
	case OpLte:
		return fmt.Sprintf("%s <= %s", numericPath, qb.nextArg(cond.Value)), nil
	case OpBetween:
		return fmt.Sprintf("%s BETWEEN %s AND %s", numericPath, qb.nextArg(cond.Value), qb.nextArg(cond.ValueSecondary)), nil
	case OpIsNull:
		return fmt.Sprintf("%s IS NULL", jsonPath), nil
	case OpIsNotNull:
		return fmt.Sprintf("%s IS NOT NULL", jsonPath), nil
	default:
		return "", fmt.Errorf("unsupported operator for attribute: %s", cond.Operator)
	}
}

func (qb *QueryBuilder) buildTagCondition(cond Condition) (string, error) {
	arrayLiteral := func(values []string) string {
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = qb.nextArg(v)
		}
		return "ARRAY[" + strings.Join(placeholders, ",") + "]"
	}

	switch cond.Operator {
	case OpContainsAny:
		if len(cond.ValuesArray) == 0 {
			return "FALSE", nil
		}
		return fmt.Sprintf("c.tags && %s", arrayLiteral(cond.ValuesArray)), nil
	case OpContainsAll:
		if len(cond.ValuesArray) == 0 {
			return "TRUE", nil
		}
		return fmt.Sprintf("c.tags @> %s", arrayLiteral(cond.ValuesArray)), nil
	case OpNotContainsAny:
		if len(cond.ValuesArray) == 0 {
			return "TRUE", nil
		}
		return fmt.Sprintf("NOT (c.tags && %s)", arrayLiteral(cond.ValuesArray)), nil
	case OpTagsEmpty:
		return "(c.tags IS NULL OR array_length(c.tags, 1) IS NULL)", nil
	case OpTagsNotEmpty:
		return "(c.tags IS NOT NULL AND array_length(c.tags, 1) > 0)", nil
	default:
		return "", fmt.Errorf("unsupported tag operator: %s", cond.Operator)
	}
}

func (qb *QueryBuilder) buildActivityCondition(cond Condition) (string, error) {
	subquery := func(direction, negate string) string {
		return fmt.Sprintf(`%sEXISTS (
			SELECT 1 FROM messages m
			WHERE m.contact_id = c.id
			AND m.direction = '%s'
			AND m.created_at >= NOW() - (%s || ' days')::interval
		)`, negate, direction, qb.nextArg(cond.Value))
	}

	switch cond.Operator {
	case OpMessagedInLastDays:
		return subquery("outbound", ""), nil
	case OpNotMessagedInLastDays:
		return subquery("outbound", "NOT "), nil
	case OpRepliedInLastDays:
		return subquery("inbound", ""), nil
	case OpNotRepliedInLastDays:
		return subquery("inbound", "NOT "), nil
	default:
		return "", fmt.Errorf("unsupported activity operator: %s", cond.Operator)
	}
}

// ValidateConditions checks a condition tree without building SQL
func ValidateConditions(group ConditionGroup) []string {
	var errs []string

	for _, cond := range group.Conditions {
		switch cond.ConditionType {
		case ConditionProfile, "":
			if _, ok := profileFields[cond.Field]; !ok {
				errs = append(errs, fmt.Sprintf("unknown profile field: %s", cond.Field))
			}
		case ConditionAttribute:
			if cond.Field == "" {
				errs = append(errs, "attribute conditions require a field name")
			}
		case ConditionTag:
			switch cond.Operator {
			case OpContainsAny, OpContainsAll, OpNotContainsAny:
				if len(cond.ValuesArray) == 0 {
					errs = append(errs, fmt.Sprintf("operator %s requires values", cond.Operator))
				}
			}
		case ConditionActivity:
			if cond.Value == "" {
				errs = append(errs, fmt.Sprintf("operator %s requires a day count", cond.Operator))
			}
		default:
			errs = append(errs, fmt.Sprintf("unknown condition type: %s", cond.ConditionType))
		}
	}

	for _, sub := range group.Groups {
		errs = append(errs, ValidateConditions(sub)...)
	}
	return errs
}

// HashQuery generates a deterministic hash of a condition tree for
// count caching.
func HashQuery(group ConditionGroup, orgID, listID string) string {
	data := struct {
		Group  ConditionGroup `json:"group"`
		OrgID  string         `json:"org_id"`
		ListID string         `json:"list_id"`
	}{group, orgID, listID}

	jsonBytes, _ := json.Marshal(data)
	hash := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(hash[:])
}
