package sqlerr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/deppfellow/countstore/internal/errs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ConvertPgError converts a pgconn.PgError (raw Postgres error) into our custom sqlerr.Error.
//
// SQLSTATE + Severity are mapped into our enums for easier switching.
func ConvertPgError(src *pgconn.PgError) *Error {
	return &Error{
		Code:           MapCode(src.Code),
		Severity:       MapSeverity(src.Severity),
		DatabaseCode:   src.Code,
		Message:        src.Message,
		SchemaName:     src.SchemaName,
		TableName:      src.TableName,
		ColumnName:     src.ColumnName,
		DataTypeName:   src.DataTypeName,
		ConstraintName: src.ConstraintName,
		driverErr:      src,
	}
}

var (
	// "NOT NULL constraint failed: queries.keywords"
	sqliteColumnConstraint = regexp.MustCompile(`(NOT NULL|UNIQUE) constraint failed: ([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)`)
	// "CHECK constraint failed: queries_keywords_length"
	sqliteCheckConstraint = regexp.MustCompile(`CHECK constraint failed: ([A-Za-z_][A-Za-z0-9_]*)`)
	// "no such table: queries"
	sqliteNoSuchTable = regexp.MustCompile(`no such table: ([A-Za-z_][A-Za-z0-9_]*)`)
	// "table queries has no column named nope"
	sqliteNoSuchColumn = regexp.MustCompile(`table ([A-Za-z_][A-Za-z0-9_]*) has no column named ([A-Za-z_][A-Za-z0-9_]*)`)
)

// ConvertSQLiteError converts a modernc sqlite.Error into our custom sqlerr.Error.
//
// SQLite reports the failing table/column only inside the message text, so
// they are parsed out of it.
func ConvertSQLiteError(src *sqlite.Error) *Error {
	msg := src.Error()
	out := &Error{
		Code:         Other,
		Severity:     SeverityError,
		DatabaseCode: fmt.Sprintf("%d", src.Code()),
		Message:      msg,
		driverErr:    src,
	}

	switch src.Code() {
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		out.Code = NotNullViolation
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		out.Code = UniqueViolation
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		out.Code = CheckViolation
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		out.Code = ForeignKeyViolation
	}

	switch src.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		out.Code = Busy
	case sqlite3.SQLITE_INTERRUPT:
		out.Code = Interrupted
	}

	if m := sqliteColumnConstraint.FindStringSubmatch(msg); m != nil {
		out.TableName, out.ColumnName = m[2], m[3]
		if out.Code == Other {
			if m[1] == "NOT NULL" {
				out.Code = NotNullViolation
			} else {
				out.Code = UniqueViolation
			}
		}
	}

	if m := sqliteCheckConstraint.FindStringSubmatch(msg); m != nil {
		out.Code = CheckViolation
		out.ConstraintName = m[1]
		out.TableName, out.ColumnName = splitCheckConstraint(m[1])
	}

	if m := sqliteNoSuchTable.FindStringSubmatch(msg); m != nil {
		out.Code = UndefinedTable
		out.TableName = m[1]
	}

	if m := sqliteNoSuchColumn.FindStringSubmatch(msg); m != nil {
		out.Code = UndefinedColumn
		out.TableName, out.ColumnName = m[1], m[2]
	}

	if out.Code == Other && strings.Contains(msg, "syntax error") {
		out.Code = SyntaxError
	}

	return out
}

// splitCheckConstraint splits "<table>_<column>_<rule>" check names.
//
// Example: "queries_keywords_length" -> ("queries", "keywords").
// Names that don't follow the convention return empty strings.
func splitCheckConstraint(name string) (table, column string) {
	parts := strings.Split(name, "_")
	if len(parts) < 3 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:len(parts)-1], "_")
}

// singular crudely singularizes a table name: "queries" -> "query", "users" -> "user".
func singular(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, "ies") && len(name) > 3:
		return name[:len(name)-3] + matchCase(name[len(name)-3:], "y")
	case strings.HasSuffix(lower, "s") && len(name) > 1:
		return name[:len(name)-1]
	default:
		return name
	}
}

func matchCase(sample, s string) string {
	if strings.ToUpper(sample) == sample {
		return strings.ToUpper(s)
	}
	return s
}

// generateErrorCode creates consistent "application error codes" from DB errors.
//
// Output format:
//
//	<DOMAIN>_<ACTION>
//
// Example:
//
//	queries + NotNullViolation => QUERY_REQUIRED
func generateErrorCode(tableName string, errType Code) string {
	if tableName == "" {
		tableName = "RECORD"
	}

	domain := strings.ToUpper(singular(tableName))

	action := "ERROR"
	switch errType {
	case ForeignKeyViolation:
		action = "NOT_FOUND"
	case UniqueViolation:
		action = "ALREADY_EXISTS"
	case NotNullViolation:
		action = "REQUIRED"
	case CheckViolation:
		action = "INVALID"
	case StringDataRightTruncation:
		action = "TOO_LONG"
	case UndefinedTable:
		action = "TABLE_MISSING"
	case UndefinedColumn:
		action = "COLUMN_MISSING"
	}

	return fmt.Sprintf("%s_%s", domain, action)
}

// formatUserFriendlyMessage produces a readable error message from table/column info.
func formatUserFriendlyMessage(sqlErr *Error) string {
	entityName := getEntityName(sqlErr.TableName, sqlErr.ColumnName)

	switch sqlErr.Code {
	case ForeignKeyViolation:
		return fmt.Sprintf("The referenced %s does not exist", entityName)

	case UniqueViolation:
		// "identifier" is replaced later if the column can be inferred.
		return fmt.Sprintf("A %s with this identifier already exists", entityName)

	case NotNullViolation:
		fieldName := humanizeText(sqlErr.ColumnName)
		if fieldName == "" {
			fieldName = "field"
		}
		return fmt.Sprintf("The %s is required", fieldName)

	case CheckViolation:
		fieldName := humanizeText(sqlErr.ColumnName)
		if fieldName != "" {
			return fmt.Sprintf("The %s value does not meet required conditions", fieldName)
		}
		return "One or more values do not meet required conditions"

	case StringDataRightTruncation:
		fieldName := humanizeText(sqlErr.ColumnName)
		if fieldName != "" {
			return fmt.Sprintf("The %s value is too long", fieldName)
		}
		return "A value is too long for its column"

	case UndefinedTable:
		return fmt.Sprintf("The %s table does not exist", humanizeText(sqlErr.TableName))

	case UndefinedColumn:
		return fmt.Sprintf("The %s column does not exist", humanizeText(sqlErr.ColumnName))

	default:
		return "An error occurred while executing the statement"
	}
}

// getEntityName tries to infer an entity name from table/column data.
//
// Priority rules:
//  1. If column ends with "_id", use that base name ("user_id" -> "User").
//  2. Otherwise use the singularized table name.
//  3. Otherwise fall back to "record".
func getEntityName(tableName, columnName string) string {
	if columnName != "" && strings.HasSuffix(strings.ToLower(columnName), "_id") {
		entity := strings.TrimSuffix(strings.ToLower(columnName), "_id")
		return humanizeText(entity)
	}

	if tableName != "" {
		return humanizeText(singular(tableName))
	}

	return "record"
}

// humanizeText converts snake_case identifiers into Title Case.
//
// Example:
//
//	"first_name" -> "First Name"
func humanizeText(text string) string {
	if text == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ReplaceAll(text, "_", " "))
}

// extractColumnForUniqueViolation tries to infer the column name from a unique constraint name.
//
// It supports two conventions:
//
//  1. "unique_<table>_<column>"
//  2. "<table>_<column>_(key|ukey)"
func extractColumnForUniqueViolation(constraintName string) string {
	if constraintName == "" {
		return ""
	}

	if strings.HasPrefix(constraintName, "unique_") {
		parts := strings.Split(constraintName, "_")
		if len(parts) >= 3 {
			return parts[len(parts)-1]
		}
	}

	re := regexp.MustCompile(`_([^_]+)_(?:key|ukey)$`)
	matches := re.FindStringSubmatch(constraintName)
	if len(matches) > 1 {
		return matches[1]
	}

	return ""
}

// toExecutionError builds the ExecutionError for a normalized driver error.
func toExecutionError(sqlErr *Error) *errs.ExecutionError {
	errorCode := generateErrorCode(sqlErr.TableName, sqlErr.Code)
	userMessage := formatUserFriendlyMessage(sqlErr)
	column := strings.ToLower(sqlErr.ColumnName)

	switch sqlErr.Code {
	case UniqueViolation:
		if column == "" {
			column = extractColumnForUniqueViolation(sqlErr.ConstraintName)
		}
		if column != "" {
			userMessage = strings.ReplaceAll(userMessage, "identifier", humanizeText(column))
		}
		return errs.NewConstraintError(errorCode, userMessage, sqlErr.TableName, column, nil, sqlErr)

	case NotNullViolation:
		fieldErrors := []errs.FieldError{
			{
				Field: column,
				Error: "is required",
			},
		}
		return errs.NewConstraintError(errorCode, userMessage, sqlErr.TableName, column, fieldErrors, sqlErr)

	case StringDataRightTruncation, CheckViolation:
		var fieldErrors []errs.FieldError
		if column != "" {
			fieldErrors = []errs.FieldError{{Field: column, Error: "is invalid"}}
		}
		return errs.NewConstraintError(errorCode, userMessage, sqlErr.TableName, column, fieldErrors, sqlErr)

	case Busy:
		return errs.NewExecutionError("DATABASE_BUSY", "The database is locked by another connection", sqlErr)

	case Interrupted:
		return errs.NewExecutionError("CANCELED", "statement canceled: "+sqlErr.Message, sqlErr)

	case Other:
		return errs.NewConstraintError(errorCode, fmt.Sprintf("%s: %s", userMessage, sqlErr.Message), sqlErr.TableName, column, nil, sqlErr)

	default:
		return errs.NewConstraintError(errorCode, userMessage, sqlErr.TableName, column, nil, sqlErr)
	}
}

// HandleError converts a low-level database error into an application-level error.
//
// Output:
//   - nil: nil
//   - already a typed errs error: returned unchanged
//   - context cancellation: ExecutionError CANCELED
//   - closed connection: ExecutionError CONNECTION_CLOSED
//   - pgconn.PgError / sqlite.Error: ExecutionError with a generated code
//   - ErrNoRows: ExecutionError RECORD_NOT_FOUND
//   - anything else: ExecutionError EXECUTION_FAILED
//
// It is called by the statement executor right after a driver call fails.
func HandleError(err error) error {
	if err == nil {
		return nil
	}

	if errs.IsExecution(err) || errs.IsSchema(err) || errs.IsState(err) || errs.IsCommit(err) {
		return err
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errs.NewExecutionError("CANCELED", "statement canceled: "+err.Error(), err)
	}

	if errors.Is(err, errs.ErrConnectionClosed) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return errs.NewExecutionError("CONNECTION_CLOSED", "connection is closed", err)
	}

	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) {
		return toExecutionError(ConvertPgError(pgerr))
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return toExecutionError(ConvertSQLiteError(liteErr))
	}

	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return errs.NewExecutionError("RECORD_NOT_FOUND", "Resource not found", err)
	}

	return errs.NewExecutionError("EXECUTION_FAILED", "statement execution failed: "+err.Error(), err)
}

// HandleContextError is HandleError for a call made under ctx.
//
// Once ctx has expired database/sql rolls the transaction back on its own,
// and later calls on it only report sql.ErrTxDone. Those failures are
// reported as CANCELED with the context error as cause.
func HandleContextError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && (errors.Is(err, sql.ErrTxDone) || errors.Is(err, sql.ErrConnDone)) {
		return errs.NewExecutionError("CANCELED", "statement canceled: "+ctxErr.Error(), errors.Join(ctxErr, err))
	}

	return HandleError(err)
}
