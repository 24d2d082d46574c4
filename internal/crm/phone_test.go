package crm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"already e164", "+15551234567", "+15551234567", false},
		{"bare 10 digit", "5551234567", "+15551234567", false},
		{"11 digit with country code", "15551234567", "+15551234567", false},
		{"formatted us", "(555) 123-4567", "+15551234567", false},
		{"dots and spaces", "555.123.4567", "+15551234567", false},
		{"uk number", "+44 20 7946 0958", "+442079460958", false},
		{"international without plus", "442079460958", "+442079460958", false},
		{"empty", "", "", true},
		{"letters only", "not-a-phone", "", true},
		{"too short", "12345", "", true},
		{"too long", "+1234567890123456", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHashPhoneStable(t *testing.T) {
	a := HashPhone("+15551234567")
	b := HashPhone("+15551234567")
	c := HashPhone("+15551234568")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
