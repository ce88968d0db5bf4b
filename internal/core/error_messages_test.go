package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "app error keeps its own message",
			err:         ErrMissingNumbers,
			wantCode:    "EXCEL_MISSING_NUMBERS",
			wantMessage: `Contacts file must contain a "NUMBERS" column in the first row.`,
		},
		{
			name:        "wrapped app error is found",
			err:         fmt.Errorf("send: %w", ErrMissingTarget),
			wantCode:    "MISSING_TARGET",
			wantMessage: ErrMissingTarget.Message,
		},
		{
			name:        "body too large maps to media too large",
			err:         errors.New("http: request body too large"),
			wantCode:    "MEDIA_TOO_LARGE",
			wantMessage: "Selected media is too large.",
		},
		{
			name:        "missing file",
			err:         errors.New("open data/x.csv: no such file or directory"),
			wantCode:    "CONTACT_FILE_NOT_FOUND",
			wantMessage: "Selected contacts file was not found.",
		},
		{
			name:        "case insensitive match",
			err:         errors.New("Context Deadline Exceeded"),
			wantCode:    "REQUEST_TIMEOUT",
			wantMessage: "Request timed out.",
		},
		{
			name:        "unknown error falls back",
			err:         errors.New("something odd"),
			wantCode:    "UNEXPECTED_SERVER_ERROR",
			wantMessage: "Unexpected server error. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError().Code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError().Message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestToError(t *testing.T) {
	t.Run("app error passes through", func(t *testing.T) {
		if got := ToError(ErrContactsEmpty); got != ErrContactsEmpty {
			t.Errorf("ToError() = %v, want the same *Error", got)
		}
	})

	t.Run("foreign error is classified and kept", func(t *testing.T) {
		cause := errors.New("http: request body too large")
		got := ToError(cause)
		if got.Status != http.StatusRequestEntityTooLarge {
			t.Errorf("Status = %d, want %d", got.Status, http.StatusRequestEntityTooLarge)
		}
		if !errors.Is(got, cause) {
			t.Error("ToError() should wrap the original error")
		}
	})

	t.Run("fallback is a 500", func(t *testing.T) {
		got := ToError(errors.New("boom"))
		if got.Status != http.StatusInternalServerError || got.Details != "boom" {
			t.Errorf("ToError() = %+v, want 500 with details", got)
		}
	})
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil should not be user facing")
	}
	if !IsUserFacing(ErrEmptyMedia) {
		t.Error("app errors should be user facing")
	}
	if IsUserFacing(errors.New("random")) {
		t.Error("unmatched errors should not be user facing")
	}
}

func TestFormatUserError(t *testing.T) {
	err := ErrEmptyRowMessage.WithDetails("Row 4")
	want := "Message is empty for one or more rows after variable replacement. (Code: EMPTY_ROW_MESSAGE) [Row 4]"
	if got := FormatUserError(err); got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
}

func TestError_HTTPStatusDefaults(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindNotFound, http.StatusNotFound},
		{KindTransport, http.StatusBadGateway},
		{KindValidation, http.StatusBadRequest},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		e := &Error{Kind: tt.kind}
		if got := e.HTTPStatus(); got != tt.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestRecode(t *testing.T) {
	parseErr := ErrContactsParse.WithDetails("zip: not a valid zip file")
	got := Recode(parseErr, ErrPreviewFailed.Code, ErrPreviewFailed.Message)

	if CodeOf(got) != "CONTACTS_PREVIEW_FAILED" {
		t.Errorf("CodeOf() = %q, want CONTACTS_PREVIEW_FAILED", CodeOf(got))
	}
	if appErr, _ := AsError(got); appErr.Details != "zip: not a valid zip file" {
		t.Errorf("Details = %q, want preserved", appErr.Details)
	}
	if CodeOf(Recode(ErrMissingNumbers, "X", "y")) != "EXCEL_MISSING_NUMBERS" {
		t.Error("Recode should leave non-parse errors alone")
	}
}
