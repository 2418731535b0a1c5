package core

// error_messages.go maps technical errors to user-facing messages with a
// support code. Typed import errors are matched first, then message
// patterns (case-insensitive substring, first match wins).
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Invalid spreadsheet: required columns missing or options invalid
//	         Action: Download the template and compare the header row
//
//	IMP002 - Unknown students: student ids without an account
//	         Action: Create the listed student accounts, then import again
//
//	IMP003 - Import stopped: a session could not be saved
//	         Action: Sessions before the failure were saved; fix and re-import
//
//	IMP004 - Import busy: another import is running
//	         Action: Wait for it to finish and try again
//
// # Lookup and Integration Errors
//
//	NF001   - Not found: exam or student does not exist
//	SEAT001 - Seat generator not configured
//	SEAT002 - Seat generation failed
//	MAIL001 - Email sender not configured
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key          Patterns: "duplicate key"
//	DB002 - Unique constraint      Patterns: "unique constraint", "violates unique"
//	DB003 - Foreign key            Patterns: "foreign key constraint", "violates foreign key"
//	DB004 - Connection refused     Patterns: "connection refused"
//	DB005 - Connection reset       Patterns: "connection reset"
//	DB006 - Timeout                Patterns: "timeout", "deadline exceeded"
//	DB007 - Deadlock               Patterns: "deadlock"
//	DB008 - Missing constraint     Patterns: "no unique or exclusion constraint"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large       Patterns: "file too large", "request body too large"
//	FILE002 - Unreadable file      Patterns: "invalid csv", "invalid spreadsheet"
//	FILE003 - Unsupported type     Patterns: "unsupported file type"
//	FILE004 - No file              Patterns: "no file provided"
//	FILE005 - Empty file           Patterns: "empty file"
//
// # Other
//
//	RATE001 - Too many requests    Patterns: "rate limit"
//	ERR000  - Unknown error; check the logs for the technical error

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/ExamSeat/internal/store"
)

// UserMessage is what an end user sees for an error.
type UserMessage struct {
	Message string // what happened
	Action  string // what to do about it
	Code    string // support reference
}

var (
	msgInvalidImport = UserMessage{
		Message: "The spreadsheet is not a valid exam import",
		Action:  "Download the import template and compare the header row",
		Code:    "IMP001",
	}
	msgUnresolved = UserMessage{
		Message: "Some student IDs have no account",
		Action:  "Create the listed student accounts, then import again",
		Code:    "IMP002",
	}
	msgAborted = UserMessage{
		Message: "The import stopped before finishing",
		Action:  "Sessions before the failure were saved; fix the problem and import again",
		Code:    "IMP003",
	}
	msgBusy = UserMessage{
		Message: "Another import is in progress",
		Action:  "Wait for it to finish and try again",
		Code:    "IMP004",
	}
	msgNotFound = UserMessage{
		Message: "The requested record does not exist",
		Action:  "Check the link or ID and try again",
		Code:    "NF001",
	}
	msgNoGenerator = UserMessage{
		Message: "Seat generation is not configured",
		Action:  "Set SEATGEN_URL and try again",
		Code:    "SEAT001",
	}
	msgGenerateFailed = UserMessage{
		Message: "Seat generation failed",
		Action:  "Check the room capacity and try again",
		Code:    "SEAT002",
	}
	msgMissingConstraint = UserMessage{
		Message: "The database is missing an expected unique constraint",
		Action:  "Ask an administrator to apply the latest schema",
		Code:    "DB008",
	}
	msgNoMailer = UserMessage{
		Message: "Email reminders are not configured",
		Action:  "Set SENDGRID_API_KEY or enable dry-run mode",
		Code:    "MAIL001",
	}
)

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is ordered: specific patterns precede general ones.
var errorPatterns = []errorPattern{
	// Database constraints
	{"duplicate key", UserMessage{"A record with this key already exists", "Check the spreadsheet for duplicate rows", "DB001"}},
	{"unique constraint", UserMessage{"This value must be unique but already exists", "Check the spreadsheet for duplicate entries", "DB002"}},
	{"violates unique", UserMessage{"A duplicate value was found", "Review the data for duplicate key values", "DB002"}},
	{"foreign key constraint", UserMessage{"Referenced record does not exist", "Import the referenced subjects or rooms first", "DB003"}},
	{"violates foreign key", UserMessage{"Referenced record does not exist", "Import the referenced subjects or rooms first", "DB003"}},
	{"no unique or exclusion constraint", msgMissingConstraint},

	// Database connectivity
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"deadline exceeded", UserMessage{"Operation timed out", "Try a smaller spreadsheet or try again later", "DB006"}},
	{"timeout", UserMessage{"Operation timed out", "Try a smaller spreadsheet or try again later", "DB006"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},

	// Files
	{"file too large", UserMessage{"File exceeds the maximum upload size", "Split the spreadsheet into smaller files", "FILE001"}},
	{"request body too large", UserMessage{"File exceeds the maximum upload size", "Split the spreadsheet into smaller files", "FILE001"}},
	{"invalid csv", UserMessage{"The file could not be read as CSV", "Save the file as comma-separated UTF-8", "FILE002"}},
	{"invalid spreadsheet", UserMessage{"The file could not be read as a spreadsheet", "Save the file as .xlsx or .csv", "FILE002"}},
	{"unsupported file type", UserMessage{"This file type is not supported", "Upload a .csv or .xlsx file", "FILE003"}},
	{"no file provided", UserMessage{"No file was selected", "Select a spreadsheet to import", "FILE004"}},
	{"empty file", UserMessage{"The uploaded file is empty", "Upload a spreadsheet with data rows", "FILE005"}},

	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "REQ001"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts err to a user message. A nil error maps to the zero
// UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	if msg, ok := mapTyped(err); ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	var aborted *ImportAbortedError
	if errors.As(err, &aborted) {
		return msgAborted
	}
	return defaultMessage
}

func mapTyped(err error) (UserMessage, bool) {
	var (
		ve   *ValidationError
		ue   *UnresolvedIdentityError
		step *StepError
		cm   *store.ConstraintMissingError
	)
	switch {
	case errors.As(err, &ve):
		msg := msgInvalidImport
		if len(ve.Missing) > 0 {
			msg.Message = "Missing required column(s): " + strings.Join(ve.Missing, ", ")
		} else if ve.Reason != "" {
			msg.Message = capitalize(ve.Reason)
		}
		return msg, true
	case errors.As(err, &ue):
		msg := msgUnresolved
		msg.Message = "No account for student ID(s): " + strings.Join(ue.StudentIDs, ", ")
		return msg, true
	case errors.Is(err, ErrImportBusy):
		return msgBusy, true
	case errors.Is(err, ErrNotFound):
		return msgNotFound, true
	case errors.Is(err, ErrSeatGeneratorUnavailable):
		return msgNoGenerator, true
	case errors.Is(err, ErrMailerUnavailable):
		return msgNoMailer, true
	case errors.As(err, &step) && step.Step == StepGenerate:
		return msgGenerateFailed, true
	case errors.As(err, &cm):
		return msgMissingConstraint, true
	}
	return UserMessage{}, false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
