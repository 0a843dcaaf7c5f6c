package errs

import "errors"

// ErrConnectionClosed is returned by a connection or transaction that was
// already released. Statement execution reports it as an ExecutionError.
var ErrConnectionClosed = errors.New("connection is closed")

// NewSchemaError creates a SchemaError for the given table.
func NewSchemaError(table, message string) *SchemaError {
	return &SchemaError{Table: table, Message: message}
}

// WrapSchemaError creates a SchemaError that keeps cause for errors.Unwrap.
func WrapSchemaError(table, message string, cause error) *SchemaError {
	return &SchemaError{Table: table, Message: message, cause: cause}
}

// NewExecutionError creates an ExecutionError.
//
// Parameters:
//   - code: machine-friendly code; if empty, derived from message.
//   - message: text describing what failed.
//   - cause: the driver error, kept for errors.Unwrap (may be nil).
func NewExecutionError(code, message string, cause error) *ExecutionError {
	if code == "" {
		code = MakeUpperCaseWithUnderscores(message)
	}
	return &ExecutionError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// NewConstraintError creates an ExecutionError for a constraint the engine
// rejected, carrying table/column details and optional field errors.
func NewConstraintError(code, message, table, column string, fieldErrors []FieldError, cause error) *ExecutionError {
	return &ExecutionError{
		Code:    code,
		Message: message,
		Table:   table,
		Column:  column,
		Errors:  fieldErrors,
		cause:   cause,
	}
}

// NewStateError creates a StateError.
func NewStateError(state, message string) *StateError {
	return &StateError{State: state, Message: message}
}

// NewCommitError creates a CommitError for a rolled back batch of pending objects.
func NewCommitError(pending int, cause error) *CommitError {
	return &CommitError{
		Pending: pending,
		Message: "commit failed, batch rolled back",
		cause:   cause,
	}
}

// NewValidationError creates a ValidationError carrying field errors.
func NewValidationError(message string, fieldErrors []FieldError) *ValidationError {
	if message == "" {
		message = "Validation failed"
	}
	return &ValidationError{Message: message, Errors: fieldErrors}
}

// IsSchema reports whether err contains a SchemaError.
func IsSchema(err error) bool { return errors.Is(err, &SchemaError{}) }

// IsExecution reports whether err contains an ExecutionError.
func IsExecution(err error) bool { return errors.Is(err, &ExecutionError{}) }

// IsState reports whether err contains a StateError.
func IsState(err error) bool { return errors.Is(err, &StateError{}) }

// IsCommit reports whether err contains a CommitError.
func IsCommit(err error) bool { return errors.Is(err, &CommitError{}) }
