package logutil

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// IsSensitiveLogField returns true when a field name likely labels sensitive data.
func IsSensitiveLogField(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, "_", "")
	normalized = strings.ReplaceAll(normalized, " ", "")

	switch {
	case normalized == "authorization":
		return true
	case strings.Contains(normalized, "token"):
		return true
	case strings.Contains(normalized, "secret"):
		return true
	case strings.Contains(normalized, "password"):
		return true
	case strings.Contains(normalized, "passcode"):
		return true
	case strings.Contains(normalized, "パスワード"):
		return true
	case strings.Contains(normalized, "apikey"):
		return true
	case strings.Contains(normalized, "cookie"):
		return true
	default:
		return false
	}
}

// FieldValueForLog returns a loggable rendering of a value typed into the
// field labelled key. Sensitive fields report only their length.
func FieldValueForLog(key, value string, maxChars int) string {
	if IsSensitiveLogField(key) {
		return fmt.Sprintf("[REDACTED len=%d]", utf8.RuneCountInString(value))
	}
	return fmt.Sprintf("%q", TruncateForLog(value, maxChars))
}

// TruncateForLog returns a single-line truncated preview for unstructured values.
func TruncateForLog(value string, maxChars int) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	normalized := strings.ReplaceAll(trimmed, "\n", "\\n")
	if maxChars <= 0 || utf8.RuneCountInString(normalized) <= maxChars {
		return normalized
	}
	runes := []rune(normalized)
	return string(runes[:maxChars]) + "... [truncated]"
}
