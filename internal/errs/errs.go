// Package errs define custom error types and utilities.
//
// Its purpose is to give every failure of the record store a specific
// error structure so callers can branch on the kind of failure and still
// read a meaningful, consistent message:
//   - SchemaError: conflicting or missing table definitions.
//   - ExecutionError: a statement failed against storage.
//   - StateError: an operation is invalid for an object's lifecycle state.
//   - CommitError: a session batch failed and was rolled back.
//   - ValidationError: struct-tag validation failed (config, requests).
//
// Every kind implements Is() by type, so errors.Is(err, &ExecutionError{})
// matches any ExecutionError in the chain regardless of its fields.
package errs
