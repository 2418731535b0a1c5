package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/ExamSeat/internal/store"
)

// RawRow is one decoded spreadsheet row keyed by header text as it appeared
// in the file. Values are strings, numbers, or time.Time depending on the
// decoder.
type RawRow map[string]any

// NormalizedRow is a row that passed normalization. Line is the 1-based
// spreadsheet line, counting the header as line 1.
type NormalizedRow struct {
	Line            int    `json:"line"`
	StudentID       string `json:"student_id"`
	FullName        string `json:"full_name"`
	SubjectCode     string `json:"subject_code"`
	SubjectName     string `json:"subject_name,omitempty"`
	RoomNumber      string `json:"room_number"`
	RoomCapacity    string `json:"room_capacity,omitempty"`
	ExamDate        string `json:"exam_date"`  // YYYY-MM-DD
	StartTime       string `json:"start_time"` // HH:MM
	DurationMinutes string `json:"duration_minutes,omitempty"`
}

// Strictness is the anti-cheat level passed to the seat generator.
type Strictness string

const (
	StrictnessBasic  Strictness = "basic"
	StrictnessStrict Strictness = "strict"
	StrictnessMax    Strictness = "max"
)

// ImportOptions controls a single spreadsheet import.
type ImportOptions struct {
	AutoGenerate   bool       `json:"auto_generate"`
	AntiCheatLevel Strictness `json:"anti_cheat_level" validate:"omitempty,oneof=basic strict max"`
}

// Subject is a subjects row.
type Subject struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Label renders the subject for display, e.g. "Mathematics (MATH101)".
func (s Subject) Label() string {
	switch {
	case s.Name == "" && s.Code == "":
		return ""
	case s.Name == "" || s.Name == s.Code:
		return s.Code
	case s.Code == "":
		return s.Name
	}
	return s.Name + " (" + s.Code + ")"
}

// Room is a rooms row.
type Room struct {
	ID         string `json:"id"`
	RoomNumber string `json:"room_number"`
	Building   string `json:"building,omitempty"`
	Capacity   int    `json:"capacity"`
}

// ExamSession is an exams row: one sitting of a subject in a room.
type ExamSession struct {
	ID              string `json:"id"`
	SubjectID       string `json:"subject_id"`
	RoomID          string `json:"room_id"`
	ExamDate        string `json:"exam_date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Profile is a student identity. Its ID is owned by the auth system.
type Profile struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email,omitempty"`
}

// Enrollment links a profile to a subject.
type Enrollment struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"` // profile id
	SubjectID string `json:"subject_id"`
}

// Seat is a seating_arrangements row.
type Seat struct {
	ID           string `json:"id"`
	ExamID       string `json:"exam_id"`
	StudentID    string `json:"student_id"` // profile id
	SeatNumber   string `json:"seat_number"`
	RowNumber    int    `json:"row_number"`
	ColumnNumber int    `json:"column_number"`
}

// SkippedRow records a row dropped during normalization.
type SkippedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
	Value  string `json:"value,omitempty"`
}

// WarningKind classifies non-fatal import events.
type WarningKind string

const (
	WarnSessionReused   WarningKind = "session_reused"
	WarnSessionInserted WarningKind = "session_inserted"
	WarnNameMissing     WarningKind = "name_missing"
)

// Warning is a non-fatal import event.
type Warning struct {
	Kind       WarningKind `json:"kind"`
	SessionKey string      `json:"session_key,omitempty"`
	Message    string      `json:"message"`
}

// SessionPath records how an exam session row was obtained.
type SessionPath string

const (
	PathUpserted SessionPath = "upserted"
	PathReused   SessionPath = "reused"
	PathInserted SessionPath = "inserted"
)

// SessionOutcome is the result of reconciling one session group.
type SessionOutcome struct {
	Key         SessionGroupKey `json:"key"`
	Session     ExamSession     `json:"session"`
	Subject     Subject         `json:"subject"`
	Room        Room            `json:"room"`
	Path        SessionPath     `json:"path"`
	Students    int             `json:"students"`
	Enrollments int             `json:"enrollments"`
	Generated   *GenerateResult `json:"generated,omitempty"`
	Warnings    []Warning       `json:"warnings,omitempty"`
}

// GenerateResult is the seat generator's reply.
type GenerateResult struct {
	Message string `json:"message,omitempty"`
	Seats   int    `json:"seats,omitempty"`
}

// SeatGenerator produces seat assignments for an exam session.
type SeatGenerator interface {
	Generate(ctx context.Context, examID string, level Strictness) (GenerateResult, error)
}

// EmailMessage is an outgoing notification.
type EmailMessage struct {
	ToName    string
	ToAddress string
	Subject   string
	Text      string
	HTML      string
}

// EmailSender delivers notifications.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// MetricsRecorder receives pipeline counters. Implementations must be safe
// for concurrent use.
type MetricsRecorder interface {
	ImportFinished(outcome string, d time.Duration)
	SessionReconciled(path SessionPath)
	RowsSkipped(n int)
	SeatGeneration(ok bool)
	ReminderSent(ok bool)
}

type nopMetrics struct{}

func (nopMetrics) ImportFinished(string, time.Duration) {}
func (nopMetrics) SessionReconciled(SessionPath) {}
func (nopMetrics) RowsSkipped(int) {}
func (nopMetrics) SeatGeneration(bool) {}
func (nopMetrics) ReminderSent(bool) {}

func subjectFromRecord(r store.Record) Subject {
	return Subject{ID: r.String("id"), Code: r.String("code"), Name: r.String("name")}
}

func roomFromRecord(r store.Record) Room {
	return Room{
		ID:         r.String("id"),
		RoomNumber: r.String("room_number"),
		Building:   r.String("building"),
		Capacity:   r.Int("capacity"),
	}
}

func sessionFromRecord(r store.Record) ExamSession {
	return ExamSession{
		ID:              r.String("id"),
		SubjectID:       r.String("subject_id"),
		RoomID:          r.String("room_id"),
		ExamDate:        r.String("exam_date"),
		StartTime:       r.String("start_time"),
		EndTime:         r.String("end_time"),
		DurationMinutes: r.Int("duration_minutes"),
	}
}

func profileFromRecord(r store.Record) Profile {
	return Profile{
		ID:        r.String("id"),
		StudentID: r.String("student_id"),
		FullName:  r.String("full_name"),
		Email:     r.String("email"),
	}
}

func seatFromRecord(r store.Record) Seat {
	return Seat{
		ID:           r.String("id"),
		ExamID:       r.String("exam_id"),
		StudentID:    r.String("student_id"),
		SeatNumber:   r.String("seat_number"),
		RowNumber:    r.Int("row_number"),
		ColumnNumber: r.Int("column_number"),
	}
}
