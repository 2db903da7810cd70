// Package logging provides sanitization helpers for putting SQL text and
// parameter payloads into log fields without leaking data.
package logging

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	// MaxSQLLogLength is the maximum length of SQL text to log.
	MaxSQLLogLength = 200
	// RedactedText is the replacement text for sensitive data.
	RedactedText = "[REDACTED]"
)

var (
	// Pattern to match potential passwords embedded in SQL or connection
	// strings: password=xxx, pwd=xxx, pass=xxx (until next delimiter).
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Pattern to match potential API keys.
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)
)

// SanitizeSQL truncates and sanitizes SQL text for logging.
func SanitizeSQL(sql string) string {
	if sql == "" {
		return ""
	}
	sanitized := sql
	if len(sanitized) > MaxSQLLogLength {
		sanitized = sanitized[:MaxSQLLogLength] + "..."
	}
	sanitized = passwordPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	return sanitized
}

// RedactParameters renders the shape of a parameter payload with values
// elided. Parameter values are user data and never belong in logs.
func RedactParameters(params any) string {
	switch v := params.(type) {
	case nil:
		return "none"
	case []any:
		return fmt.Sprintf("%d positional values", len(v))
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "named values [" + strings.Join(keys, ", ") + "]"
	}
	return "1 scalar value"
}

// TruncateString truncates s to maxLen and adds an ellipsis if needed.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
