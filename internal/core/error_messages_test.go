package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/JonMunkholm/ExamSeat/internal/store"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil", nil, ""},
		{"missing columns", &ValidationError{Missing: []string{"exam_date"}}, "IMP001"},
		{"unresolved", &UnresolvedIdentityError{StudentIDs: []string{"S9"}}, "IMP002"},
		{"busy", fmt.Errorf("acquire: %w", ErrImportBusy), "IMP004"},
		{"not found", fmt.Errorf("exam x: %w", ErrNotFound), "NF001"},
		{"no generator", ErrSeatGeneratorUnavailable, "SEAT001"},
		{"generator failed", &StepError{Step: StepGenerate, Err: errors.New("boom")}, "SEAT002"},
		{"no mailer", ErrMailerUnavailable, "MAIL001"},
		{"constraint missing", &store.ConstraintMissingError{Table: "exams"}, "DB008"},
		{"duplicate key", errors.New("ERROR: duplicate key value violates unique constraint"), "DB001"},
		{"connection refused", errors.New("dial tcp: connection refused"), "DB004"},
		{"deadline", context.DeadlineExceeded, "DB006"},
		{"case insensitive", errors.New("DEADLOCK detected"), "DB007"},
		{"file too large", errors.New("http: request body too large"), "FILE001"},
		{"unsupported", errors.New("unsupported file type \".pdf\""), "FILE003"},
		{"unknown", errors.New("something odd"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err).Code; got != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestMapError_AbortedUsesCause(t *testing.T) {
	storeErr := &ImportAbortedError{Reason: ReasonStore, Cause: errors.New("dial tcp: connection refused")}
	if got := MapError(storeErr).Code; got != "DB004" {
		t.Errorf("code = %q, want DB004", got)
	}

	opaque := &ImportAbortedError{Reason: ReasonStore, Cause: errors.New("weird")}
	if got := MapError(opaque).Code; got != "IMP003" {
		t.Errorf("code = %q, want IMP003", got)
	}

	unresolved := &ImportAbortedError{
		Reason: ReasonUnresolvedIdentity,
		Cause:  &UnresolvedIdentityError{StudentIDs: []string{"S1", "S2"}},
	}
	msg := MapError(unresolved)
	if msg.Code != "IMP002" || !strings.Contains(msg.Message, "S1, S2") {
		t.Errorf("MapError = %+v, want IMP002 naming S1, S2", msg)
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(&ValidationError{Missing: []string{"student_id", "room_number"}})
	want := "Missing required column(s): student_id, room_number (Code: IMP001). Download the import template and compare the header row"
	if got != want {
		t.Errorf("FormatUserError() = %q\nwant %q", got, want)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil should not be user facing")
	}
	if !IsUserFacing(errors.New("empty file")) {
		t.Error("known pattern should be user facing")
	}
	if IsUserFacing(errors.New("segfault")) {
		t.Error("unknown error should not be user facing")
	}
}
