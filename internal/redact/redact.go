// Package redact provides utilities for redacting sensitive information from strings
// before they are logged. It scrubs credentials embedded in connection strings,
// secrets and tokens, e-mail addresses, and the literal values inside SQL text so
// that query logs do not leak the data a task filters on.
package redact

import (
	"regexp"
)

// Constants for redaction placeholders
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedLiteralPlaceholder    = "'[REDACTED]'"
)

type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

// Rules are applied in order.
var rules = []rule{
	// Database connection strings
	{
		regexp.MustCompile(`(?i)(postgres|postgresql|mysql|mongodb|duckdb|db|database|connection)://[^@\s]+@`),
		RedactedCredentialPlaceholder,
	},
	// key=value passwords, including libpq keyword/value DSNs
	{
		regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`),
		RedactedCredentialPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)(api[_-]?key|token|secret|access[_-]?key)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`),
		RedactedKeyPlaceholder,
	},
	{regexp.MustCompile(`(AKIA|AccessKey(Id)?)([^a-zA-Z0-9])?[A-Z0-9]{8,}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), "[REDACTED_JWT]"},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[REDACTED_EMAIL]"},
	// SQL string literals, with '' as an escaped quote
	{regexp.MustCompile(`'(?:[^']|'')*'`), RedactedLiteralPlaceholder},
}

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.placeholder)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
