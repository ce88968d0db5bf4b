// Package core holds the contact-batch domain.
//
// # Error Codes Reference
//
// Every error returned to API callers carries a stable code. Codes raised by
// the domain itself live on *Error values (see errors.go and the delivery
// package's rule table). Errors from the standard library or third-party
// packages are mapped here by substring pattern:
//
//	MEDIA_TOO_LARGE          - request body exceeded the upload ceiling
//	                           Patterns: "request body too large"
//	INVALID_FORM             - multipart form could not be parsed
//	                           Patterns: "multipart", "mime:"
//	CONTACT_FILE_NOT_FOUND   - a stored contacts file vanished between calls
//	                           Patterns: "no such file"
//	STORAGE_PERMISSION       - the contacts directory is not writable
//	                           Patterns: "permission denied"
//	STORAGE_FULL             - the contacts directory ran out of space
//	                           Patterns: "no space left"
//	REQUEST_CANCELLED        - client went away
//	                           Patterns: "context canceled"
//	REQUEST_TIMEOUT          - request exceeded its deadline
//	                           Patterns: "context deadline exceeded"
//	RATE_LIMITED             - too many requests
//	                           Patterns: "rate limit"
//	UNEXPECTED_SERVER_ERROR  - fallback; check logs for the technical error
//
// Patterns are matched case-insensitively with strings.Contains; the first
// match wins.
package core

import (
	"fmt"
	"net/http"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Stable code for support reference
}

type errorPattern struct {
	pattern string
	status  int
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// Request errors
	// =========================================================================
	{
		pattern: "request body too large",
		status:  http.StatusRequestEntityTooLarge,
		msg: UserMessage{
			Message: "Selected media is too large.",
			Action:  "Choose a smaller file and try again.",
			Code:    "MEDIA_TOO_LARGE",
		},
	},
	{
		pattern: "multipart",
		status:  http.StatusBadRequest,
		msg: UserMessage{
			Message: "The submitted form could not be read.",
			Action:  "Reload the page and submit again.",
			Code:    "INVALID_FORM",
		},
	},
	{
		pattern: "mime:",
		status:  http.StatusBadRequest,
		msg: UserMessage{
			Message: "The submitted form could not be read.",
			Action:  "Reload the page and submit again.",
			Code:    "INVALID_FORM",
		},
	},

	// =========================================================================
	// Storage errors
	// =========================================================================
	{
		pattern: "no such file",
		status:  http.StatusNotFound,
		msg: UserMessage{
			Message: "Selected contacts file was not found.",
			Action:  "Refresh the contacts history and pick the file again.",
			Code:    "CONTACT_FILE_NOT_FOUND",
		},
	},
	{
		pattern: "permission denied",
		status:  http.StatusInternalServerError,
		msg: UserMessage{
			Message: "The contacts folder is not writable.",
			Action:  "Check the permissions of CONTACTS_UPLOAD_DIR.",
			Code:    "STORAGE_PERMISSION",
		},
	},
	{
		pattern: "no space left",
		status:  http.StatusInsufficientStorage,
		msg: UserMessage{
			Message: "The contacts folder is out of disk space.",
			Action:  "Delete old contacts files and try again.",
			Code:    "STORAGE_FULL",
		},
	},

	// =========================================================================
	// Context errors
	// =========================================================================
	{
		pattern: "context canceled",
		status:  499,
		msg: UserMessage{
			Message: "Request was cancelled.",
			Action:  "Please try again.",
			Code:    "REQUEST_CANCELLED",
		},
	},
	{
		pattern: "context deadline exceeded",
		status:  http.StatusGatewayTimeout,
		msg: UserMessage{
			Message: "Request timed out.",
			Action:  "Please try again.",
			Code:    "REQUEST_TIMEOUT",
		},
	},
	{
		pattern: "rate limit",
		status:  http.StatusTooManyRequests,
		msg: UserMessage{
			Message: "Too many requests.",
			Action:  "Please wait a moment before trying again.",
			Code:    "RATE_LIMITED",
		},
	},
}

// defaultMessage is returned when no pattern matches.
var defaultMessage = UserMessage{
	Message: "Unexpected server error. Please try again.",
	Action:  "If it keeps happening, check the server logs.",
	Code:    "UNEXPECTED_SERVER_ERROR",
}

// MapError converts any error to a user-facing message. *Error values keep
// their own message; anything else goes through the pattern table.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	if appErr, ok := AsError(err); ok {
		return appErr.UserMessage()
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// ToError returns err as an *Error, classifying foreign errors through the
// pattern table. The original error is kept in Err and Details.
func ToError(err error) *Error {
	if err == nil {
		return nil
	}
	if appErr, ok := AsError(err); ok {
		return appErr
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return &Error{
				Kind:    KindInternal,
				Code:    ep.msg.Code,
				Message: ep.msg.Message,
				Action:  ep.msg.Action,
				Status:  ep.status,
				Details: err.Error(),
				Err:     err,
			}
		}
	}
	return &Error{
		Kind:    KindInternal,
		Code:    defaultMessage.Code,
		Message: defaultMessage.Message,
		Action:  defaultMessage.Action,
		Status:  http.StatusInternalServerError,
		Details: err.Error(),
		Err:     err,
	}
}

// FormatUserError renders "Message (Code: XXX). Action" for CLI output.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	out := fmt.Sprintf("%s (Code: %s)", msg.Message, msg.Code)
	if msg.Action != "" {
		out += " " + msg.Action
	}
	if appErr, ok := AsError(err); ok && appErr.Details != "" {
		out += " [" + appErr.Details + "]"
	}
	return out
}

// IsUserFacing reports whether err has a specific code rather than the fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
