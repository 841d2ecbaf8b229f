package dedupe

import (
	"fmt"
	"strings"
)

// ConfigError reports a caller-correctable parameter problem (bad batch
// size, syntactically invalid field name). It is always returned before any
// I/O has happened.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// QueryError reports a failure in the grouping/read stage: the store
// rejected the grouping operation or the result cursor broke mid-stream.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("grouping query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// WriteError reports a failure in the write stage: the initial delete-all or
// a bulk-insert call itself. Inserted is the number of documents committed
// to the destination before the failure; the destination is left holding
// that partial copy.
type WriteError struct {
	Op       string
	Inserted int
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s failed after %d document(s) inserted: %v", e.Op, e.Inserted, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ValidateField checks that a dedupe field name is syntactically acceptable
// to the store's query language. Store-side rejections of a well-formed name
// still surface as a QueryError at run time.
func ValidateField(field string) error {
	switch {
	case field == "":
		return &ConfigError{Reason: "dedupe field must not be empty"}
	case strings.HasPrefix(field, "$"):
		return &ConfigError{Reason: fmt.Sprintf("dedupe field %q must not start with '$'", field)}
	case strings.ContainsRune(field, '\x00'):
		return &ConfigError{Reason: "dedupe field must not contain NUL bytes"}
	}
	return nil
}
