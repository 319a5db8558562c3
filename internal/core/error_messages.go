// Error codes for support reference. When an import fails, the CLI and the
// HTTP service show a short message, an action, and one of these codes:
//
//	SNIFF001  no candidate delimiter splits the file consistently
//	SCHEMA001 the target table exists and cannot take the inferred schema
//	SRC001    the source stream failed while reading
//	SRC002    the source holds no records
//	SRC003    the source charset is unknown or undecodable
//	SRC004    the compressed container is corrupt
//	ROW001    a row has the wrong number of fields
//	ROW002    a value does not fit an INTEGER column
//	ROW003    a value does not fit a REAL column
//	ROW004    the store refused a row
//	DB001     duplicate key or unique constraint
//	DB004     connection refused
//	DB005     connection reset
//	DB006     store timeout
//	DB007     deadlock
//	DB008     database file is locked
//	DB009     the named table does not exist
//	IMP001    too many imports in progress
//	IMP002    unknown import ID
//	IMP003    import cancelled
//	IMP004    import timed out
//	IMP005    no target table given
//	ERR000    anything else; check the logs for the technical error
//
// Typed errors are matched first; otherwise patterns are matched
// case-insensitively with strings.Contains and the first match wins.
package core

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgAmbiguous = UserMessage{
		Message: "Could not work out how the file is delimited",
		Action:  "Check that every line uses the same separator, or list candidates with --delimiters",
		Code:    "SNIFF001",
	}
	msgConflict = UserMessage{
		Message: "The target table already exists with different columns",
		Action:  "Pick another table name or use --if-exists=replace",
		Code:    "SCHEMA001",
	}
	msgSourceRead = UserMessage{
		Message: "The file could not be read",
		Action:  "Check the file is complete and readable, then try again",
		Code:    "SRC001",
	}
	msgRowFields = UserMessage{
		Message: "A row has the wrong number of fields",
		Action:  "Fix the row or rerun with --invalid=warn to skip it",
		Code:    "ROW001",
	}
	msgRowInsert = UserMessage{
		Message: "The database refused a row",
		Action:  "Review the row against the table's constraints",
		Code:    "ROW004",
	}
)

// errorPatterns maps technical error text to user messages. Specific
// patterns come before general ones.
var errorPatterns = []errorPattern{
	{"ambiguous delimiter", msgAmbiguous},
	{"schema conflict", msgConflict},
	{"empty file", UserMessage{
		Message: "The file is empty",
		Action:  "Import a file with at least one data row",
		Code:    "SRC002",
	}},
	{"encoding error", UserMessage{
		Message: "The file's character set is not recognised",
		Action:  "Use a WHATWG charset label such as utf-8, latin1 or windows-1252",
		Code:    "SRC003",
	}},
	{"gzip", UserMessage{
		Message: "The compressed file is corrupt",
		Action:  "Re-create the archive or import the uncompressed file",
		Code:    "SRC004",
	}},
	{"xz stream", UserMessage{
		Message: "The compressed file is corrupt",
		Action:  "Re-create the archive or import the uncompressed file",
		Code:    "SRC004",
	}},
	{"source read error", msgSourceRead},
	{"fields, got", msgRowFields},
	{"integer out of range", UserMessage{
		Message: "A number is too large for an INTEGER column",
		Action:  "Widen the column to REAL by importing into a new table",
		Code:    "ROW002",
	}},
	{"not an integer", UserMessage{
		Message: "A value is not a whole number",
		Action:  "Fix the value or rerun with --invalid=warn to skip the row",
		Code:    "ROW002",
	}},
	{"not a number", UserMessage{
		Message: "A value is not a number",
		Action:  "Fix the value or rerun with --invalid=warn to skip the row",
		Code:    "ROW003",
	}},
	{"duplicate key", UserMessage{
		Message: "A row with this key already exists",
		Action:  "Remove the duplicate rows or import into a new table",
		Code:    "DB001",
	}},
	{"unique constraint", UserMessage{
		Message: "This value must be unique but already exists",
		Action:  "Check for duplicate entries in your file",
		Code:    "DB001",
	}},
	{"insert failed", msgRowInsert},
	{"connection refused", UserMessage{
		Message: "Unable to connect to the database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{"database is locked", UserMessage{
		Message: "The database file is locked by another process",
		Action:  "Close other programs using the database and try again",
		Code:    "DB008",
	}},
	{"table not found", UserMessage{
		Message: "Table not found",
		Action:  "Check the table name; GET /tables or SHOW TABLES lists them",
		Code:    "DB009",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "DB006",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}},
	{"too many imports", UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "IMP001",
	}},
	{"import not found", UserMessage{
		Message: "Import not found",
		Action:  "The import may have expired; start a new one",
		Code:    "IMP002",
	}},
	{"context canceled", UserMessage{
		Message: "Import was cancelled",
		Action:  "Start a new import when ready",
		Code:    "IMP003",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "Import timed out",
		Action:  "Try a smaller file or raise IMPORT_TIMEOUT",
		Code:    "IMP004",
	}},
	{"no target table", UserMessage{
		Message: "No target table was given",
		Action:  "Name the table to import into",
		Code:    "IMP005",
	}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again, and check the logs if it persists",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		ambiguous *AmbiguousDelimiterError
		conflict  *SchemaConflictError
		rowErr    *RowCoercionError
	)
	switch {
	case errors.As(err, &ambiguous):
		return msgAmbiguous
	case errors.As(err, &conflict):
		return msgConflict
	case errors.As(err, &rowErr):
		if rowErr.Column == "" && !errors.Is(rowErr, ErrRowInsert) {
			return msgRowFields
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error (for logs) with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string { return e.User.Message }

func (e *UserError) Unwrap() error { return e.Technical }

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
