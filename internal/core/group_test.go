package core

import (
	"reflect"
	"testing"
)

func row(student, subject, date, start, room string) NormalizedRow {
	return NormalizedRow{StudentID: student, FullName: "Student " + student, SubjectCode: subject,
		ExamDate: date, StartTime: start, RoomNumber: room}
}

func TestGroupSessions_FirstAppearanceOrder(t *testing.T) {
	rows := []NormalizedRow{
		row("S1", "PHY", "2024-03-02", "09:00", "A1"),
		row("S2", "MATH", "2024-03-01", "09:00", "A1"),
		row("S3", "PHY", "2024-03-02", "09:00", "A1"),
		row("S4", "MATH", "2024-03-01", "09:00", "B2"),
	}
	groups := GroupSessions(rows)

	var keys []SessionGroupKey
	for _, g := range groups {
		keys = append(keys, g.Key)
	}
	want := []SessionGroupKey{
		"PHY||2024-03-02||09:00||A1",
		"MATH||2024-03-01||09:00||A1",
		"MATH||2024-03-01||09:00||B2",
	}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}
	if got := groups[0].StudentIDs(); !reflect.DeepEqual(got, []string{"S1", "S3"}) {
		t.Errorf("first group students = %v", got)
	}
}

func TestGroupSessions_Deterministic(t *testing.T) {
	rows := []NormalizedRow{
		row("S1", "A", "2024-01-01", "09:00", "R1"),
		row("S2", "B", "2024-01-01", "09:00", "R1"),
		row("S3", "A", "2024-01-01", "09:00", "R1"),
		row("S4", "C", "2024-01-02", "13:00", "R2"),
	}
	first := GroupSessions(rows)
	for i := 0; i < 10; i++ {
		if again := GroupSessions(rows); !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs:\n%v\n%v", i, first, again)
		}
	}
}

func TestGroupSessions_EveryRowInExactlyOneGroup(t *testing.T) {
	var rows []NormalizedRow
	for i, code := range []string{"A", "B", "A", "C", "B", "A"} {
		rows = append(rows, row(string(rune('a'+i)), code, "2024-01-01", "09:00", "R"))
	}
	total := 0
	for _, g := range GroupSessions(rows) {
		for _, r := range g.Rows {
			if KeyOf(r) != g.Key {
				t.Errorf("row %s in group %s", r.StudentID, g.Key)
			}
		}
		total += len(g.Rows)
	}
	if total != len(rows) {
		t.Errorf("grouped %d rows, want %d", total, len(rows))
	}
}

func TestGroupSessions_FirstRowWins(t *testing.T) {
	a := row("S1", "M", "2024-01-01", "09:00", "R")
	a.SubjectName, a.RoomCapacity = "Maths", "30"
	b := row("S2", "M", "2024-01-01", "09:00", "R")
	b.SubjectName, b.RoomCapacity = "Mathematics", "90"

	groups := GroupSessions([]NormalizedRow{a, b})
	if len(groups) != 1 {
		t.Fatalf("expected one group, got %d", len(groups))
	}
	first := groups[0].First()
	if first.SubjectName != "Maths" || first.RoomCapacity != "30" {
		t.Errorf("First() = %+v, want attributes of the first row", first)
	}
}

func TestGroupSessions_DuplicateStudentCountedOnce(t *testing.T) {
	groups := GroupSessions([]NormalizedRow{
		row("S1", "M", "2024-01-01", "09:00", "R"),
		row("S1", "M", "2024-01-01", "09:00", "R"),
	})
	if got := groups[0].StudentIDs(); len(got) != 1 {
		t.Errorf("StudentIDs = %v, want one id", got)
	}
}

func TestGroupSessions_Empty(t *testing.T) {
	if got := GroupSessions(nil); len(got) != 0 {
		t.Errorf("expected no groups, got %d", len(got))
	}
}
