package advisor

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned for blank messages and prompts.
	ErrEmptyInput = errors.New("input is empty")
	// ErrNoDatabase is returned by SanitizeAndRun when no query runner is configured.
	ErrNoDatabase = errors.New("database not configured")
)

// QueryError carries the SQL that was rejected or failed to run.
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%v (sql: %s)", e.Err, e.SQL)
}

func (e *QueryError) Unwrap() error { return e.Err }
