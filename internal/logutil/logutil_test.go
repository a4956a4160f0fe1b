package logutil

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestIsSensitiveLogField(t *testing.T) {
	t.Parallel()
	cases := map[string]bool{
		"Password":       true,
		"パスワード":          true,
		"api_key":        true,
		"X-Auth-Token":   true,
		"メールアドレス":        false,
		"email":          false,
		"search query":   false,
		"Authorization":  true,
		"session cookie": true,
	}
	for key, want := range cases {
		if got := IsSensitiveLogField(key); got != want {
			t.Errorf("IsSensitiveLogField(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestFieldValueForLog_RedactsSensitive(t *testing.T) {
	t.Parallel()
	if got := FieldValueForLog("パスワード", "password123", 40); got != "[REDACTED len=11]" {
		t.Fatalf("unexpected redaction: %s", got)
	}
	if got := FieldValueForLog("メールアドレス", "student@test.com", 40); got != `"student@test.com"` {
		t.Fatalf("unexpected rendering: %s", got)
	}
}

func testTruncateForLog_BoundedSingleLine(t *rapid.T) {
	value := rapid.String().Draw(t, "value")
	limit := rapid.IntRange(1, 64).Draw(t, "limit")

	got := TruncateForLog(value, limit)
	if strings.Contains(got, "\n") {
		t.Fatalf("truncated value contains newline: %q", got)
	}
	body := strings.TrimSuffix(got, "... [truncated]")
	if n := len([]rune(body)); n > limit {
		t.Fatalf("truncated body has %d runes, limit %d", n, limit)
	}
}

func TestTruncateForLog_BoundedSingleLine(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testTruncateForLog_BoundedSingleLine)
}
