package logger

import "strings"

// RedactEmail masks an address down to its first two local characters, so
// "john.doe@example.com" logs as "jo***@example.com". Local parts of two
// characters or fewer are masked entirely; malformed input becomes "***@***".
func RedactEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at < 0 || strings.Count(email, "@") != 1 {
		return "***@***"
	}
	local, domain := email[:at], email[at+1:]
	if len(local) <= 2 {
		return "***@" + domain
	}
	return local[:2] + "***@" + domain
}
