// Package core provides the orchestration logic for cohort matching.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// Typed workflow errors (see errors.go) are mapped first with errors.As.
// Anything else falls through to case-insensitive pattern matching.
//
// # File Errors (FILE001-FILE099)
//
// FILE001 and FILE002 share their wording; the code tells them apart.
//
//	FILE001 - Read failed: The file could not be read as CSV
//	          Action: Select the file again
//	          Type: *ReadError
//
//	FILE002 - Invalid CSV: The file could not be read as CSV
//	          Action: Check the file format and select it again
//	          Type: *ParseError, pattern "invalid csv"
//
//	FILE003 - File too large: File exceeds the upload size limit
//	          Action: Split the cohort into a smaller file
//	          Type: *ReadError wrapping ErrFileTooLarge, pattern "file too large"
//
//	FILE004 - No file: No file was selected
//	          Action: Please select a CSV file to upload
//	          Patterns: "no file provided"
//
//	FILE005 - Empty file: The uploaded file is empty
//	          Action: Upload a CSV file with a header row
//	          Patterns: "empty file"
//
// # Schema Errors (SCH001-SCH099)
//
//	SCH001 - Header mismatch: The two files have different headers
//	         Action: Use identical column headers in the same order
//	         Type: *SchemaMismatchError (also when wrapped by *PreconditionError)
//
// # Workflow Errors (WF001-WF099)
//
//	WF001 - Not ready: Both cohort files are required
//	        Action: Upload experiment and control files with matching headers
//	        Type: *PreconditionError
//
//	WF002 - Busy: A match is already running
//	        Action: Wait for the current match to finish
//	        Type: *PreconditionError wrapping ErrMatchInProgress
//
//	WF003 - Unknown covariate: A selected column is not in the header
//	        Action: Choose columns from the shared header
//	        Patterns: "unknown covariate"
//
//	WF004 - Nothing to export: There is no match result to export
//	        Action: Run a match first
//	        Patterns: "no match result"
//
//	WF005 - Discarded: The files changed while the match was running
//	        Action: Run the match again
//	        Patterns: "files changed while matching" (ErrStaleResponse)
//
// # Service Errors (SVC001-SVC099)
//
//	SVC001 - Matcher message: the server-supplied detail is shown verbatim
//	         Type: *ServiceError with Detail
//
//	SVC002 - Matcher error: The matching service returned an error
//	         Type: *ServiceError with a non-2xx status and no detail
//
//	SVC003 - Matcher timeout: The matching service did not respond in time
//	         Type: *ServiceError wrapping context.DeadlineExceeded
//
//	SVC004 - Match failed: transport failure or unreadable response
//	         Type: *ServiceError without status
//
// # Upload/Request Errors (UPL001-UPL099)
//
//	UPL002 - System busy: Too many matches in progress
//	UPL003 - Session expired: session not found
//	UPL004 - Request cancelled: "context canceled"
//	UPL005 - Request timeout: "context deadline exceeded"
//	UPL006 - Unknown slot: "unknown slot"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Rate limited: Too many requests
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Support staff should check application
// logs for the original technical error when users report ERR000.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgReadFailed = UserMessage{
		Message: "The file could not be read as CSV",
		Action:  "Select the file again",
		Code:    "FILE001",
	}
	msgInvalidCSV = UserMessage{
		Message: "The file could not be read as CSV",
		Action:  "Check the file format and select it again",
		Code:    "FILE002",
	}
	msgFileTooLarge = UserMessage{
		Message: "File exceeds the upload size limit",
		Action:  "Split the cohort into a smaller file",
		Code:    "FILE003",
	}
	msgSchemaMismatch = UserMessage{
		Message: "The two files have different headers and cannot be matched",
		Action:  "Use identical column headers in the same order in both files",
		Code:    "SCH001",
	}
	msgNotReady = UserMessage{
		Message: "Upload experiment and control CSV files with matching headers first",
		Action:  "Select both cohort files",
		Code:    "WF001",
	}
	msgMatchBusy = UserMessage{
		Message: "A match is already running",
		Action:  "Wait for the current match to finish",
		Code:    "WF002",
	}
	msgSystemBusy = UserMessage{
		Message: "Too many matches in progress",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgServiceError = UserMessage{
		Message: "The matching service returned an error",
		Action:  "Please try again",
		Code:    "SVC002",
	}
	msgServiceTimeout = UserMessage{
		Message: "The matching service did not respond in time",
		Action:  "Try smaller files or try again later",
		Code:    "SVC003",
	}
	msgMatchFailed = UserMessage{
		Message: "Matching failed",
		Action:  "Check that the matching service is running and try again",
		Code:    "SVC004",
	}
)

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so more specific patterns come first.
var errorPatterns = []errorPattern{
	// =========================================================================
	// File Errors (FILE003-FILE005)
	// =========================================================================
	{pattern: "file too large", msg: msgFileTooLarge},
	{pattern: "invalid csv", msg: msgInvalidCSV},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a CSV file with a header row",
			Code:    "FILE005",
		},
	},

	// =========================================================================
	// Workflow Errors (WF003-WF005)
	// =========================================================================
	{
		pattern: "files changed while matching",
		msg: UserMessage{
			Message: "The files changed while the match was running",
			Action:  "Run the match again",
			Code:    "WF005",
		},
	},
	{
		pattern: "no match result",
		msg: UserMessage{
			Message: "There is no match result to export",
			Action:  "Run a match first",
			Code:    "WF004",
		},
	},
	{
		pattern: "unknown covariate",
		msg: UserMessage{
			Message: "A selected column is not in the header",
			Action:  "Choose columns from the shared header",
			Code:    "WF003",
		},
	},

	// =========================================================================
	// Upload/Request Errors (UPL002-UPL005)
	// =========================================================================
	{pattern: "too many matches", msg: msgSystemBusy},
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "Your session has expired",
			Action:  "Reload the page and select the files again",
			Code:    "UPL003",
		},
	},
	{
		pattern: "unknown slot",
		msg: UserMessage{
			Message: "Unknown upload slot",
			Action:  "Upload to the experiment or control slot",
			Code:    "UPL006",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try smaller files or check your connection",
			Code:    "UPL005",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Typed workflow errors are resolved with errors.As; other errors are
// matched against known patterns, falling back to ERR000.
//
// Example:
//
//	err := &ParseError{Slot: SlotControl, Err: csv.ErrQuote}
//	msg := MapError(err)
//	// msg.Code == "FILE002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		readErr    *ReadError
		parseErr   *ParseError
		schemaErr  *SchemaMismatchError
		precondErr *PreconditionError
		serviceErr *ServiceError
	)

	switch {
	case errors.Is(err, ErrMatchInProgress):
		return msgMatchBusy
	case errors.Is(err, ErrTooManyMatches):
		return msgSystemBusy
	case errors.As(err, &schemaErr):
		return msgSchemaMismatch
	case errors.As(err, &precondErr):
		if m, ok := matchPattern(precondErr.Reason); ok {
			return m
		}
		return msgNotReady
	case errors.As(err, &readErr):
		if errors.Is(err, ErrFileTooLarge) {
			return msgFileTooLarge
		}
		return msgReadFailed
	case errors.As(err, &parseErr):
		return msgInvalidCSV
	case errors.As(err, &serviceErr):
		return mapServiceError(serviceErr)
	}

	if m, ok := matchPattern(err.Error()); ok {
		return m
	}
	return defaultMessage
}

// mapServiceError picks the message for a failed matcher call. A detail
// supplied by the matcher is shown as-is.
func mapServiceError(e *ServiceError) UserMessage {
	switch {
	case e.Detail != "":
		return UserMessage{
			Message: e.Detail,
			Action:  "Review the cohort files and try again",
			Code:    "SVC001",
		}
	case errors.Is(e, context.DeadlineExceeded):
		return msgServiceTimeout
	case e.StatusCode != 0:
		return msgServiceError
	default:
		return msgMatchFailed
	}
}

func matchPattern(s string) (UserMessage, bool) {
	s = strings.ToLower(s)
	for _, ep := range errorPatterns {
		if strings.Contains(s, ep.pattern) {
			return ep.msg, true
		}
	}
	return UserMessage{}, false
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error maps to a specific message rather than
// the generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
