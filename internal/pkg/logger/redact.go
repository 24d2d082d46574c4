package logger

import "strings"

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactPhone masks a phone number, keeping the country prefix and the last
// two digits: "+15551234567" → "+1*******67".
func RedactPhone(phone string) string {
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 7 {
		return "***"
	}
	keepHead := 2
	if strings.HasPrefix(phone, "+") {
		keepHead = 3
	}
	if len(phone) <= keepHead+2 {
		return "***"
	}
	return phone[:keepHead] + strings.Repeat("*", len(phone)-keepHead-2) + phone[len(phone)-2:]
}
