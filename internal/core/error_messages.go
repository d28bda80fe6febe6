package core

// # Error Codes Reference
//
// This file maps technical errors to user-facing messages with a code that
// operators can quote when reporting a failed import.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key: A record with this key already exists
//	        Patterns: "duplicate key"
//	DB002 - Conflicting rows: Two rows in one batch share a key
//	        Patterns: "cannot affect row a second time", "violates unique"
//	DB003 - Foreign key: Schedule references a store that was not loaded
//	        Patterns: "violates foreign key"
//	DB004 - Connection refused: Unable to connect to database
//	        Patterns: "connection refused"
//	DB005 - Connection reset: Database connection was interrupted
//	        Patterns: "connection reset"
//	DB006 - Timeout: Operation timed out
//	        Patterns: "timeout"
//	DB007 - Deadlock: Database was busy with conflicting operations
//	        Patterns: "deadlock"
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Unreadable input: The file is not a workbook or JSON document
//	         Patterns: "invalid workbook", "invalid json", "invalid input"
//	IMP002 - Missing section: The input lacks stores, employees or schedules
//	         Patterns: "missing required section"
//	IMP003 - Busy: Another import is running
//	         Patterns: "import already in progress"
//	IMP004 - Unsupported format: Neither .xlsx nor JSON
//	         Patterns: "unsupported format"
//	IMP005 - Rejected value: A value could not be stored in its column
//	         Patterns: "invalid input syntax", "out of range"
//	IMP006 - Empty input: The payload is empty
//	         Patterns: "empty payload"
//	IMP007 - Shutting down: The service is stopping
//	         Patterns: "service shutting down"
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - No file: No file was provided
//	         Patterns: "no file provided"
//	UPL002 - File too large: File exceeds the configured size limit
//	         Patterns: "file too large"
//	UPL003 - Unknown import: Import id not found
//	         Patterns: "import not found"
//	UPL004 - Request cancelled: Request was cancelled
//	         Patterns: "context canceled"
//	UPL005 - Request timeout: Request timed out
//	         Patterns: "context deadline exceeded"
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgDuplicate = UserMessage{
		Message: "A record with this key already exists",
		Action:  "Check the input for repeated store numbers or phone numbers",
		Code:    "DB001",
	}
	msgConflict = UserMessage{
		Message: "Two rows in one batch share the same key",
		Action:  "Remove repeated store numbers or phone numbers and retry",
		Code:    "DB002",
	}
	msgForeignKey = UserMessage{
		Message: "A schedule references a store that does not exist",
		Action:  "Add the store to the stores sheet before referencing it",
		Code:    "DB003",
	}
	msgUnreadable = UserMessage{
		Message: "The file could not be read",
		Action:  "Upload an .xlsx workbook or a JSON document",
		Code:    "IMP001",
	}
	msgRejected = UserMessage{
		Message: "A value could not be stored in its column",
		Action:  "Check dates and numbers in the failing rows",
		Code:    "IMP005",
	}
)

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// Database patterns come first so a LoadError wrapping a constraint
// violation maps to the constraint, not to the generic import code.
var errorPatterns = []errorPattern{
	// Database constraint errors
	{pattern: "duplicate key", msg: msgDuplicate},
	{pattern: "cannot affect row a second time", msg: msgConflict},
	{pattern: "violates unique", msg: msgConflict},
	{pattern: "violates foreign key", msg: msgForeignKey},

	// Database connection errors
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or raise IMPORT_TIMEOUT",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// Import errors
	{
		pattern: "unsupported format",
		msg: UserMessage{
			Message: "Unsupported file format",
			Action:  "Upload an .xlsx workbook or a JSON document",
			Code:    "IMP004",
		},
	},
	{
		pattern: "empty payload",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a file with data rows",
			Code:    "IMP006",
		},
	},
	{pattern: "invalid workbook", msg: msgUnreadable},
	{pattern: "invalid json", msg: msgUnreadable},
	{pattern: "invalid input:", msg: msgUnreadable},
	{
		pattern: "missing required section",
		msg: UserMessage{
			Message: "The input is missing a required section",
			Action:  "Provide stores, employees and schedules",
			Code:    "IMP002",
		},
	},
	{
		pattern: "import already in progress",
		msg: UserMessage{
			Message: "Another import is running",
			Action:  "Wait for the current import to finish and try again",
			Code:    "IMP003",
		},
	},
	{
		pattern: "service shutting down",
		msg: UserMessage{
			Message: "The service is shutting down",
			Action:  "Retry once the service is back",
			Code:    "IMP007",
		},
	},
	{pattern: "invalid input syntax", msg: msgRejected},
	{pattern: "out of range", msg: msgRejected},

	// Upload errors
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was provided",
			Action:  "Attach the file as the \"file\" form field or the request body",
			Code:    "UPL001",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file or raise IMPORT_MAX_FILE_SIZE",
			Code:    "UPL002",
		},
	},
	{
		pattern: "import not found",
		msg: UserMessage{
			Message: "Import not found",
			Action:  "The import may have expired. Check the import id",
			Code:    "UPL003",
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
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL005",
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
// If no pattern matches, a generic fallback with code ERR000 is returned.
//
// Example:
//
//	msg := MapError(errors.New("duplicate key value violates unique constraint"))
//	// msg.Code == "DB001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
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

// IsUserFacing reports whether err matches a known pattern rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
