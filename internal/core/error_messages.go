package core

// error_messages.go maps technical errors to user-facing messages with a
// support code. Known error kinds are matched with errors.Is first; storage
// driver messages that arrive as plain text fall back to substring patterns.
//
// # Codes
//
//	FILE001 file too large          FILE006 file type not allowed
//	FILE002 unreadable spreadsheet  FILE007 invalid resource name
//	FILE004 no file provided        FILE008 file not found
//
//	VAL001 invalid date             VAL004 mapped column missing from file
//	VAL002 invalid number           VAL007 invalid field mapping
//	VAL003 required field empty     VAL008 invalid boolean
//
//	IMP001 row rejected, import rolled back
//	IMP002 import plan reused
//
//	TBL002 table not importable
//
//	DB001-DB003 constraint violations   DB004-DB007 connectivity
//
//	UPL002 system busy   UPL004 request cancelled   UPL005 request timed out
//
//	REQ001 malformed request
//
//	ERR000 anything else; check the logs for the technical error.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/ingest/internal/filegate"
	"github.com/JonMunkholm/ingest/internal/spreadsheet"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorKind struct {
	target error
	msg    UserMessage
}

// errorKinds is checked in order; the first errors.Is match wins.
var errorKinds = []errorKind{
	{filegate.ErrFileTooLarge, UserMessage{"File exceeds the maximum upload size", "Split the file into smaller parts", "FILE001"}},
	{spreadsheet.ErrMalformedSpreadsheet, UserMessage{"The file could not be read as a spreadsheet", "Save it as .xlsx or .csv and upload again", "FILE002"}},
	{filegate.ErrInvalidFileType, UserMessage{"This file type is not allowed", "Upload one of the supported file types", "FILE006"}},
	{filegate.ErrInvalidResourceName, UserMessage{"The file reference is not valid", "Use the link returned by the upload", "FILE007"}},
	{filegate.ErrFileNotFound, UserMessage{"File not found", "The file may have been removed. Upload it again", "FILE008"}},
	{ErrMissingColumn, UserMessage{"A mapped column is missing from the file", "Check the column headers or change the mapping", "VAL004"}},
	{ErrInvalidMapping, UserMessage{"The field mapping is incomplete", "Choose a file column or enter a default value for every selected field", "VAL007"}},
	{ErrPlanExecuted, UserMessage{"This import was already submitted", "Start a new import", "IMP002"}},
	{ErrUnknownTable, UserMessage{"This table cannot be imported into", "Choose one of the importable tables", "TBL002"}},
	{ErrTooManyUploads, UserMessage{"System is busy processing other imports", "Please wait a moment and try again", "UPL002"}},
	{context.DeadlineExceeded, UserMessage{"Request timed out", "Try a smaller file or try again later", "UPL005"}},
	{context.Canceled, UserMessage{"Request was cancelled", "Please try again", "UPL004"}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are matched case-insensitively against the error text.
// More specific patterns come first.
var errorPatterns = []errorPattern{
	{"duplicate key", UserMessage{"A record with this key already exists", "Remove duplicate rows and import again", "DB001"}},
	{"unique constraint", UserMessage{"This value must be unique but already exists", "Check for duplicate entries in your file", "DB002"}},
	{"violates unique", UserMessage{"A duplicate value was found", "Review your data for duplicate key values", "DB002"}},
	{"foreign key", UserMessage{"Referenced record does not exist", "Ensure referenced records exist first", "DB003"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"timeout", UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB006"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},
	{"invalid date", UserMessage{"Invalid date format detected", "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024", "VAL001"}},
	{"invalid number", UserMessage{"Invalid number format detected", "Remove currency symbols and use standard decimal format", "VAL002"}},
	{"required field", UserMessage{"Required field is empty", "Fill in the field or map a default value", "VAL003"}},
	{"invalid boolean", UserMessage{"Invalid yes/no value detected", "Use true/false, yes/no or 1/0", "VAL008"}},
	{"no file provided", UserMessage{"No file was selected", "Please select a file to upload", "FILE004"}},
	{"malformed request", UserMessage{"The request could not be understood", "Check the request parameters and try again", "REQ001"}},
}

var storageUnavailableMessage = UserMessage{"Storage is temporarily unavailable", "Please try again in a few moments", "DB004"}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
//	msg := MapError(&PartialImportError{Row: 2, Err: err})
//	// msg.Code == "VAL003" (from the row cause), msg.Message names data row 3
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var partial *PartialImportError
	if errors.As(err, &partial) {
		cause := MapError(partial.Err)
		code := cause.Code
		if code == defaultMessage.Code {
			code = "IMP001"
		}
		return UserMessage{
			Message: fmt.Sprintf("Data row %d could not be imported: %s. Nothing was imported", partial.Row+1, strings.ToLower(cause.Message)),
			Action:  cause.Action,
			Code:    code,
		}
	}

	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	if errors.Is(err, ErrStorageUnavailable) {
		return storageUnavailableMessage
	}
	return defaultMessage
}

// FormatUserError renders MapError(err) as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != defaultMessage.Code
}
