package errs

import (
	"fmt"
	"strings"
)

// FieldError represents a field-level error.
// Example:
//
//	{ "field": "keywords", "error": "is required" }
type FieldError struct {
	// Field is the field or column name the error relates to.
	Field string `json:"field"`

	// Error is the human-readable error message.
	Error string `json:"error"`
}

// SchemaError reports a conflicting, invalid, or missing schema definition.
type SchemaError struct {
	Table   string `json:"table"`
	Message string `json:"message"`

	cause error
}

func (e *SchemaError) Error() string {
	if e.Table == "" {
		return "schema: " + e.Message
	}
	return fmt.Sprintf("schema %q: %s", e.Table, e.Message)
}

func (e *SchemaError) Unwrap() error { return e.cause }

// Is reports whether target is also a *SchemaError.
// It does NOT compare Table/Message.
func (e *SchemaError) Is(target error) bool {
	_, ok := target.(*SchemaError)
	return ok
}

// ExecutionError reports a statement that failed against storage.
//
// Fields:
//   - Code: machine-friendly code (e.g. "QUERY_REQUIRED", "CONNECTION_CLOSED").
//   - Message: human-friendly message.
//   - Table/Column: the storage objects involved, when the driver reports them.
//   - Errors: per-field errors (e.g. a NOT NULL violation on one column).
type ExecutionError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Table   string       `json:"table,omitempty"`
	Column  string       `json:"column,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`

	cause error
}

func (e *ExecutionError) Error() string {
	return e.Message
}

func (e *ExecutionError) Unwrap() error { return e.cause }

// Is reports whether target is also an *ExecutionError.
func (e *ExecutionError) Is(target error) bool {
	_, ok := target.(*ExecutionError)
	return ok
}

// StateError reports an operation that is invalid for the lifecycle state of
// a mapped object or of the session itself.
type StateError struct {
	State   string `json:"state"`
	Message string `json:"message"`
}

func (e *StateError) Error() string {
	if e.State == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (state: %s)", e.Message, strings.ToLower(e.State))
}

// Is reports whether target is also a *StateError.
func (e *StateError) Is(target error) bool {
	_, ok := target.(*StateError)
	return ok
}

// CommitError reports a session flush that failed. The whole batch was rolled
// back: nothing from it was persisted.
type CommitError struct {
	// Pending is the number of objects in the batch that failed.
	Pending int    `json:"pending"`
	Message string `json:"message"`

	cause error
}

func (e *CommitError) Error() string {
	if e.cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.cause.Error()
}

func (e *CommitError) Unwrap() error { return e.cause }

// Is reports whether target is also a *CommitError.
func (e *CommitError) Is(target error) bool {
	_, ok := target.(*CommitError)
	return ok
}

// ValidationError reports struct-tag validation failures.
type ValidationError struct {
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+" "+fe.Error)
	}
	return e.Message + ": " + strings.Join(parts, ", ")
}

// Is reports whether target is also a *ValidationError.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// MakeUpperCaseWithUnderscores converts a string into an UPPER_CASE_WITH_UNDERSCORES format.
//
// Example:
//
//	"connection closed" -> "CONNECTION_CLOSED"
func MakeUpperCaseWithUnderscores(str string) string {
	return strings.ToUpper(strings.ReplaceAll(str, " ", "_"))
}
