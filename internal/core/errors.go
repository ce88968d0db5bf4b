package core

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the closed set of failure categories. Every error leaving the core
// or delivery packages is an *Error carrying one of these.
type Kind string

const (
	KindParse       Kind = "parse"         // unreadable or corrupt contacts file
	KindEmptyInput  Kind = "empty_input"   // no bytes or no header row
	KindSchema      Kind = "schema"        // NUMBERS column missing, bad columns
	KindNoValidRows Kind = "no_valid_rows" // every row lacks a number
	KindValidation  Kind = "validation"    // bad phone input, bad configuration, bad request fields
	KindTemplate    Kind = "template"      // placeholders without a column, empty rendered text
	KindTransport   Kind = "transport"     // backend timeout, unreachable, malformed response
	KindBackend     Kind = "backend"       // backend reported a failure
	KindSession     Kind = "session"       // logout or auth passthrough failure, never fatal to a batch
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindInternal    Kind = "internal"
)

// Error is the application error carried through every layer. Code is a
// stable machine-readable identifier, Message and Action are user-facing,
// Status is the HTTP status surfaced to API callers, Details is diagnostic
// text (backend error strings, the failing row).
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Action  string
	Status  int
	Details string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Code + ": " + e.Message
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage returns the user-facing portion of the error.
func (e *Error) UserMessage() UserMessage {
	return UserMessage{Message: e.Message, Action: e.Action, Code: e.Code}
}

// HTTPStatus returns Status, defaulting by kind when unset.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTransport, KindBackend, KindSession:
		return http.StatusBadGateway
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// NewError builds an *Error with the given kind, code, status and message.
func NewError(kind Kind, code string, status int, message string) *Error {
	return &Error{Kind: kind, Code: code, Status: status, Message: message}
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details string) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// WithDetailsf is WithDetails with formatting.
func (e *Error) WithDetailsf(format string, args ...any) *Error {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// Wrap returns a copy of e wrapping cause; Details defaults to cause's text.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	if cp.Details == "" && cause != nil {
		cp.Details = cause.Error()
	}
	return &cp
}

// AsError extracts the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf reports the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if appErr, ok := AsError(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// CodeOf reports the code of err, or "" for foreign errors.
func CodeOf(err error) string {
	if appErr, ok := AsError(err); ok {
		return appErr.Code
	}
	return ""
}

// Recode replaces the code and message of a parse-style error while keeping
// its details. Used where one reader serves several callers that each report
// failures under their own code.
func Recode(err error, code, message string) error {
	appErr, ok := AsError(err)
	if !ok || appErr.Kind != KindParse {
		return err
	}
	cp := *appErr
	cp.Code = code
	cp.Message = message
	return &cp
}

// Contacts file errors.
var (
	ErrInvalidContactsFile = NewError(KindValidation, "INVALID_CONTACTS_FILE", http.StatusBadRequest,
		"Upload a valid contacts file (.xlsx or .csv).")
	ErrContactsParse = NewError(KindParse, "EXCEL_PARSE_ERROR", http.StatusBadRequest,
		"Could not read the contacts file. Please check the file format.")
	ErrContactsEmpty = NewError(KindEmptyInput, "EXCEL_EMPTY", http.StatusBadRequest,
		"Contacts file is empty.")
	ErrMissingNumbers = NewError(KindSchema, "EXCEL_MISSING_NUMBERS", http.StatusBadRequest,
		`Contacts file must contain a "NUMBERS" column in the first row.`)
	ErrNoValidRows = NewError(KindNoValidRows, "EXCEL_NO_ROWS", http.StatusBadRequest,
		`No valid rows found. Ensure "NUMBERS" has values.`)
	ErrPreviewFailed = NewError(KindParse, "CONTACTS_PREVIEW_FAILED", http.StatusBadRequest,
		"Could not read the selected contacts file.")
	ErrInvalidContent = NewError(KindSchema, "INVALID_CONTACTS_CONTENT", http.StatusBadRequest,
		"Contacts content is invalid.")
)

// Send request errors.
var (
	ErrMissingTarget = NewError(KindValidation, "MISSING_TARGET", http.StatusBadRequest,
		"Enter a phone number, upload a contacts file, or select an existing contacts file.")
	ErrMissingContent = NewError(KindValidation, "MISSING_CONTENT", http.StatusBadRequest,
		"Write a message or choose a media file.")
	ErrEmptyMedia = NewError(KindValidation, "VALIDATION_ERROR", http.StatusBadRequest,
		"Selected media file is empty.")
	ErrEmptyRowMessage = NewError(KindTemplate, "EMPTY_ROW_MESSAGE", http.StatusBadRequest,
		"Message is empty for one or more rows after variable replacement.")
	ErrBackendBusy = &Error{Kind: KindConflict, Code: "BACKEND_BUSY", Status: http.StatusTooManyRequests,
		Message: "Another send is already using the WhatsApp session.",
		Action:  "Wait for it to finish, then try again."}
	ErrBatchRowFailed = NewError(KindInternal, "BATCH_ROW_FAILED", http.StatusBadGateway,
		"Failed while sending one of the contacts rows.")
	ErrShuttingDown = NewError(KindInternal, "SERVER_SHUTTING_DOWN", http.StatusServiceUnavailable,
		"The server is shutting down; the batch was stopped.")
)

// BatchError reports a batch that stopped early. Unwrap yields the error
// that stopped it, so callers classify the batch by its root cause.
type BatchError struct {
	BatchID       string
	RowsProcessed int
	FailedLine    int
	LogoutErr     error
	Err           error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %s stopped at row %d after %d sent: %v", e.BatchID, e.FailedLine, e.RowsProcessed, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
