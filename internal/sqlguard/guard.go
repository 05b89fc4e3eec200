// Package sqlguard bounds model-written SQL before it reaches the database.
//
// The guard is a textual filter, not a parser. It rejects anything that is not
// a single SELECT/WITH statement free of mutating keywords and makes sure every
// accepted statement carries a LIMIT. Read-only transactions and statement
// timeouts are enforced by the query executor, not here.
package sqlguard

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Unsupported is the marker query returned for rejected candidates.
const Unsupported = "SELECT 'unsupported' AS error"

// DefaultLimit applies when callers pass a non-positive limit.
const DefaultLimit = 100

// ErrRejectedQuery is wrapped by every rejection returned from Sanitize.
var ErrRejectedQuery = errors.New("rejected query")

var (
	mutating = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|CREATE|TRUNCATE|GRANT|REVOKE|MERGE|CALL|COPY|DO)\b`)
	limitRe  = regexp.MustCompile(`(?i)\blimit\b`)
	fenceRe  = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// Sanitize validates candidate and returns the query to run. Rejected
// candidates yield Unsupported together with an error wrapping ErrRejectedQuery.
func Sanitize(candidate string, defaultLimit int) (string, error) {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	s := strings.TrimSpace(candidate)
	low := strings.ToLower(s)

	if !strings.HasPrefix(low, "select") && !strings.HasPrefix(low, "with") {
		return Unsupported, reject("only SELECT or WITH statements are allowed")
	}
	if m := mutating.FindString(s); m != "" {
		return Unsupported, reject("mutating keyword %s", strings.ToUpper(m))
	}
	if strings.Contains(strings.TrimSuffix(s, ";"), ";") {
		return Unsupported, reject("multiple statements")
	}
	if !limitRe.MatchString(low) {
		s = strings.TrimRight(s, " \t\r\n;") + fmt.Sprintf(" LIMIT %d", defaultLimit)
	}
	return s, nil
}

// IsUnsupported reports whether sql is the rejection marker, as models are
// instructed to emit it when a request cannot be answered read-only.
func IsUnsupported(sql string) bool {
	s := strings.TrimRight(strings.TrimSpace(sql), " \t\r\n;")
	return strings.EqualFold(s, Unsupported)
}

// StripCodeFence removes a surrounding markdown code fence, if any.
func StripCodeFence(text string) string {
	t := strings.TrimSpace(text)
	if m := fenceRe.FindStringSubmatch(t); m != nil {
		return strings.TrimSpace(m[1])
	}
	return t
}

func reject(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrRejectedQuery, fmt.Sprintf(format, args...))
}
