package booking

import (
	"regexp"
	"strings"
)

var emailRE = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validEmail(email string) bool {
	return emailRE.MatchString(strings.TrimSpace(email))
}

// normalizePhone strips non-digits and normalizes 10-digit US numbers to
// the 11-digit form. Returns "" when too short to be dialable.
func normalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) == 10 {
		return "1" + d
	}
	if len(d) < 8 {
		return ""
	}
	return d
}

// phoneRequired reports whether the channel needs an explicitly collected
// phone number. Phone-native channels carry the number in the thread key,
// so only web-style channels ask for it.
func phoneRequired(channel string) bool {
	switch strings.ToLower(channel) {
	case "whatsapp", "sms":
		return false
	default:
		return true
	}
}
