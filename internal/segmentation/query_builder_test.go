package segmentation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQuerySimpleProfileCondition(t *testing.T) {
	qb := NewQueryBuilder()
	qb.SetOrganizationID("org-1")

	group := ConditionGroup{
		LogicOperator: LogicAnd,
		Conditions: []Condition{
			{ConditionType: ConditionProfile, Field: "engagement_score", Operator: OpGte, Value: "70"},
		},
	}

	query, args, err := qb.BuildQuery(group)
	require.NoError(t, err)

	assert.Contains(t, query, "FROM contacts c")
	assert.Contains(t, query, "c.status = 'subscribed'")
	assert.Contains(t, query, "c.organization_id = $1")
	assert.Contains(t, query, "c.engagement_score >= $2")
	assert.Contains(t, query, "NOT EXISTS")
	assert.Contains(t, query, "suppressions")
	assert.Equal(t, []interface{}{"org-1", "70"}, args)
}

func TestBuildQueryRejectsUnknownField(t *testing.T) {
	qb := NewQueryBuilder()
	qb.SetOrganizationID("org-1")

	group := ConditionGroup{
		LogicOperator: LogicAnd,
		Conditions: []Condition{
			{ConditionType: ConditionProfile, Field: "phone; DROP TABLE contacts", Operator: OpEquals, Value: "x"},
		},
	}

	_, _, err := qb.BuildQuery(group)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown profile field")
}

func TestBuildQueryAttributeKeyIsParameterized(t *testing.T) {
	qb := NewQueryBuilder()
	qb.SetOrganizationID("org-1")

	group := ConditionGroup{
		LogicOperator: LogicAnd,
		Conditions: []Condition{
			{ConditionType: ConditionAttribute, Field: "plan'; --", Operator: OpEquals, Value: "pro"},
		},
	}

	query, args, err := qb.BuildQuery(group)
	require.NoError(t, err)

	assert.NotContains(t, query, "plan'; --", "attribute key must never be interpolated")
	assert.Contains(t, query, "c.attributes->>$2")
	assert.Equal(t, []interface{}{"org-1", "plan'; --", "pro"}, args)
}

func TestBuildQueryNestedGroups(t *testing.T) {
	qb := NewQueryBuilder()
	qb.SetOrganizationID("org-1")

	group := ConditionGroup{
		LogicOperator: LogicAnd,
		Conditions: []Condition{
			{ConditionType: ConditionProfile, Field: "status", Operator: OpEquals, Value: "subscribed"},
		},
		Groups: []ConditionGroup{
			{
				LogicOperator: LogicOr,
				Conditions: []Condition{
					{ConditionType: ConditionTag, Operator: OpContainsAny, ValuesArray: []string{"vip", "beta"}},
					{ConditionType: ConditionProfile, Field: "engagement_score", Operator: OpGt, Value: "90"},
				},
			},
		},
	}

	query, args, err := qb.BuildQuery(group)
	require.NoError(t, err)

	assert.Contains(t, query, "c.tags && ARRAY[$3,$4]")
	assert.Contains(t, query, " OR ")
	assert.Len(t, args, 5)
}

func TestBuildQueryNegatedGroup(t *testing.T) {
	qb := NewQueryBuilder()

	group := ConditionGroup{
		LogicOperator: LogicAnd,
		IsNegated:     true,
		Conditions: []Condition{
			{ConditionType: ConditionProfile, Field: "source", Operator: OpEquals, Value: "import"},
		},
	}

	query, _, err := qb.BuildQuery(group)
	require.NoError(t, err)
	assert.Contains(t, query, "NOT (c.source = $1)")
}

func TestBuildQueryActivityCondition(t *testing.T) {
	qb := NewQueryBuilder()
	qb.SetOrganizationID("org-1")

	group := ConditionGroup{
		LogicOperator: LogicAnd,
		Conditions: []Condition{
			{ConditionType: ConditionActivity, Operator: OpNotRepliedInLastDays, Value: "30"},
		},
	}

	query, args, err := qb.BuildQuery(group)
	require.NoError(t, err)

	assert.Contains(t, query, "NOT EXISTS (")
	assert.Contains(t, query, "m.direction = 'inbound'")
	assert.Equal(t, []interface{}{"org-1", "30"}, args)
}

func TestBuildCountQuery(t *testing.T) {
	qb := NewQueryBuilder()
	qb.SetOrganizationID("org-1")
	qb.SetListID("list-1")

	query, args, err := qb.BuildCountQuery(ConditionGroup{LogicOperator: LogicAnd})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(query, "SELECT COUNT(*)"))
	assert.Contains(t, query, "c.list_id = $2")
	assert.Equal(t, []interface{}{"org-1", "list-1"}, args)
}

func TestValidateConditions(t *testing.T) {
	errs := ValidateConditions(ConditionGroup{
		LogicOperator: LogicAnd,
		Conditions: []Condition{
			{ConditionType: ConditionProfile, Field: "nope", Operator: OpEquals},
			{ConditionType: ConditionTag, Operator: OpContainsAny},
			{ConditionType: ConditionActivity, Operator: OpRepliedInLastDays},
		},
	})
	assert.Len(t, errs, 3)

	errs = ValidateConditions(ConditionGroup{
		LogicOperator: LogicAnd,
		Conditions: []Condition{
			{ConditionType: ConditionProfile, Field: "phone", Operator: OpIsNotEmpty},
		},
	})
	assert.Empty(t, errs)
}

func TestHashQueryDeterministic(t *testing.T) {
	group := ConditionGroup{
		LogicOperator: LogicAnd,
		Conditions: []Condition{
			{ConditionType: ConditionProfile, Field: "status", Operator: OpEquals, Value: "subscribed"},
		},
	}

	h1 := HashQuery(group, "org-1", "")
	h2 := HashQuery(group, "org-1", "")
	h3 := HashQuery(group, "org-2", "")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}
