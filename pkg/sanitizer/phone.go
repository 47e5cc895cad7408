package sanitizer

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizePhone converts phone to E.164. Numbers without a country code are
// read in defaultRegion. Numbers that do not parse, or are not valid for
// their region, come back trimmed but otherwise untouched.
func NormalizePhone(phone, defaultRegion string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}

	parsed, err := phonenumbers.Parse(phone, strings.ToUpper(defaultRegion))
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return phone
	}
	return phonenumbers.Format(parsed, phonenumbers.E164)
}

// IsE164Phone reports whether phone is a valid number already in E.164 form.
func IsE164Phone(phone string) bool {
	if !strings.HasPrefix(phone, "+") {
		return false
	}
	parsed, err := phonenumbers.Parse(phone, "")
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return false
	}
	return phonenumbers.Format(parsed, phonenumbers.E164) == phone
}
