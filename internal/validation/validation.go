// Package validation contains the logic for validating
// configuration and request data.
//
// It uses the `validator` library to enforce rules (like
// required fields or URL formats) defined in struct tags
// and extracts validation errors into errs.FieldError lists
// callers can understand.
package validation
