package crm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// NormalizePhone converts a raw phone number to E.164. Bare 10-digit
// numbers are assumed to be US/Canada. Returns an error when the result
// is not a plausible E.164 number.
func NormalizePhone(raw string) (string, error) {
	var digits strings.Builder
	trimmed := strings.TrimSpace(raw)
	hasPlus := strings.HasPrefix(trimmed, "+")
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case d == "":
		return "", fmt.Errorf("phone %q has no digits", raw)
	case hasPlus:
		if len(d) < 8 || len(d) > 15 {
			return "", fmt.Errorf("phone %q is not a valid e.164 number", raw)
		}
		return "+" + d, nil
	case len(d) == 10:
		return "+1" + d, nil
	case len(d) == 11 && d[0] == '1':
		return "+" + d, nil
	case len(d) >= 8 && len(d) <= 15:
		return "+" + d, nil
	default:
		return "", fmt.Errorf("phone %q is not a valid e.164 number", raw)
	}
}

// HashPhone creates a SHA256 hash of a normalized phone number
func HashPhone(phone string) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(phone)))
	return hex.EncodeToString(h[:])
}
