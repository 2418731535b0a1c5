package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/JonMunkholm/ExamSeat/internal/core"
)

func TestSeatingPage(t *testing.T) {
	view := &core.SeatingView{
		Exam:    core.ExamSession{ID: "e1", ExamDate: "2024-03-01", StartTime: "09:00:00", EndTime: "11:00:00"},
		Subject: core.Subject{Code: "MATH101", Name: "Mathematics"},
		Room:    core.Room{RoomNumber: "A1"},
		Seats: []core.SeatingViewRow{
			{SeatNumber: "A1-1", RowNumber: 1, ColumnNumber: 1, StudentID: "S1", StudentName: "Ann <Lee>", Subject: "Mathematics (MATH101)"},
			{SeatNumber: "A1-4", RowNumber: 2, ColumnNumber: 2, StudentID: "S2", StudentName: "Bob", Subject: "Physics (PHY201)"},
			{SeatNumber: "X", StudentID: "S3", StudentName: "Cy"},
		},
	}

	var buf bytes.Buffer
	if err := SeatingPage(view).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	html := buf.String()

	for _, want := range []string{
		"<h1>Mathematics (MATH101)</h1>",
		"09:00&ndash;11:00",
		"Ann &lt;Lee&gt;",
		"Physics (PHY201)",
		"Unplaced seats",
		"<td></td>",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(html, "<Lee>") {
		t.Error("student name not escaped")
	}
}

func TestSeatingPage_Empty(t *testing.T) {
	var buf bytes.Buffer
	view := &core.SeatingView{Subject: core.Subject{Code: "M1"}}
	if err := SeatingPage(view).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "No seats generated yet") {
		t.Errorf("empty page = %s", buf.String())
	}
}

func TestExamIndexAndError(t *testing.T) {
	var buf bytes.Buffer
	exams := []core.ExamListing{{
		ExamSession: core.ExamSession{ID: "e1", ExamDate: "2024-03-01", StartTime: "09:00:00", EndTime: "11:00:00"},
		Subject:     core.Subject{Code: "M1"},
		Room:        core.Room{RoomNumber: "A1"},
		SeatCount:   30,
	}}
	if err := ExamIndex(exams).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), `href="/exams/e1/seating"`) {
		t.Errorf("index missing seating link: %s", buf.String())
	}

	buf.Reset()
	msg := core.UserMessage{Message: "Not found", Action: "Check the link", Code: "NF001"}
	if err := ErrorPage(msg).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "Code: NF001") {
		t.Errorf("error page = %s", buf.String())
	}
}
