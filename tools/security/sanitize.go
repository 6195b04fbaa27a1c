package security

import (
	"regexp"
	"strings"
)

const MaxMessageLen = 500

var (
	roomIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]{1,50}$`)

	// Injection patterns rejected outright. The server validates again;
	// this keeps garbage off the wire.
	maliciousPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<script\b`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)on\w+\s*=`),
		regexp.MustCompile(`(?i)eval\s*\(`),
	}

	angleBrackets  = regexp.MustCompile(`[<>]`)
	jsScheme       = regexp.MustCompile(`(?i)javascript:`)
	inlineHandlers = regexp.MustCompile(`(?i)on\w+\s*=`)
)

// ValidateMessage checks an outbound chat message body.
// Returns ok=false with a user-facing reason on rejection.
func ValidateMessage(message string) (bool, string) {
	if message == "" {
		return false, "Message cannot be empty"
	}
	if len(message) > MaxMessageLen {
		return false, "Message too long (max 500 characters)"
	}
	for _, p := range maliciousPatterns {
		if p.MatchString(message) {
			return false, "Message contains forbidden content"
		}
	}
	return true, ""
}

// SanitizeInput strips angle brackets, javascript: schemes and inline
// event-handler attributes, then trims whitespace.
func SanitizeInput(input string) string {
	out := angleBrackets.ReplaceAllString(input, "")
	out = jsScheme.ReplaceAllString(out, "")
	out = inlineHandlers.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

// ValidateRoomID checks the syntactic shape of a room identifier:
// 1-50 chars, alphanumeric or underscore.
func ValidateRoomID(roomID string) bool {
	return roomIDPattern.MatchString(roomID)
}
