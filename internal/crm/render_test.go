package crm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPersonalization(t *testing.T) {
	r := NewRenderer()
	contact := &Contact{
		FirstName: "Jane",
		LastName:  "Doe",
		Phone:     "+15551234567",
		Attributes: JSON{
			"plan": "pro",
		},
	}

	out, err := r.Render("Hi {{ first_name }}, your {{ plan }} plan renews soon.", contact)
	require.NoError(t, err)
	assert.Equal(t, "Hi Jane, your pro plan renews soon.", out)
}

func TestRenderDefaultFilter(t *testing.T) {
	r := NewRenderer()
	contact := &Contact{}

	out, err := r.Render("Hi {{ first_name | default: \"there\" }}!", contact)
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", out)
}

func TestRenderTitlecaseFilter(t *testing.T) {
	r := NewRenderer()
	contact := &Contact{FirstName: "jane mary"}

	out, err := r.Render("{{ first_name | titlecase }}", contact)
	require.NoError(t, err)
	assert.Equal(t, "Jane Mary", out)
}

func TestRenderAttributesDoNotShadowProfileFields(t *testing.T) {
	r := NewRenderer()
	contact := &Contact{
		FirstName:  "Jane",
		Attributes: JSON{"first_name": "Imposter"},
	}

	out, err := r.Render("{{ first_name }}", contact)
	require.NoError(t, err)
	assert.Equal(t, "Jane", out)
}

func TestValidateRejectsBadTemplate(t *testing.T) {
	r := NewRenderer()
	assert.Error(t, r.Validate("Hi {% if %}"))
	assert.NoError(t, r.Validate("Hi {{ first_name }}"))
}
