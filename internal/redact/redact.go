// Package redact sanitizes connection strings and driver error text before
// they reach a Fault's context or a log line, so a DSN's password never
// ends up recorded anywhere.
package redact

import (
	"regexp"
	"strings"
)

var (
	secretKeyExpr   = `(?:password|passwd|pwd|secret|api[_-]?key|[a-z0-9._-]*token[a-z0-9._-]*)`
	kvSecretPattern = regexp.MustCompile(`(?i)(` + secretKeyExpr + `)\s*[:=]\s*(?:"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'|[^\s"'&;]+)`)
	dsnUserPattern  = regexp.MustCompile(`(?i)(://[^\s/@:]+):([^\s/@]+)@`)
	pemBlockPattern = regexp.MustCompile(`(?s)-----BEGIN [^-]+ PRIVATE KEY-----.*?-----END [^-]+ PRIVATE KEY-----`)
)

// DSN redacts the password component of a connection string (both
// "user:pass@host" URL form and "key=value" keyword form), leaving the
// rest of the string intact so it still identifies which database failed.
func DSN(input string) string {
	if input == "" {
		return ""
	}
	out := pemBlockPattern.ReplaceAllString(input, "[REDACTED_PRIVATE_KEY]")
	out = dsnUserPattern.ReplaceAllString(out, "${1}:[REDACTED]@")
	out = kvSecretPattern.ReplaceAllStringFunc(out, func(match string) string {
		idx := strings.IndexAny(match, ":=")
		if idx < 0 {
			return "[REDACTED]"
		}
		return match[:idx+1] + "[REDACTED]"
	})
	return out
}
