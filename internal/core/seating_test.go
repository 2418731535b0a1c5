package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/JonMunkholm/ExamSeat/internal/store"
)

// seededService imports the scenario and seats S1 and S2 in the maths exam.
func seededService(t *testing.T, gw store.Gateway, mem *store.Memory, opts ...Option) (*Service, string, string) {
	t.Helper()
	seedProfiles(mem, "S1", "S2")
	svc := newTestService(t, gw, opts...)
	res, err := svc.ImportSpreadsheet(context.Background(), scenarioRows(), ImportOptions{})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	mathExam := res.Sessions[0].Session.ID
	physExam := res.Sessions[1].Session.ID
	mem.Seed(store.TableSeating,
		store.Record{"id": "seat-2", "exam_id": mathExam, "student_id": "p-S2", "seat_number": "A2", "row_number": 1, "column_number": 2},
		store.Record{"id": "seat-1", "exam_id": mathExam, "student_id": "p-S1", "seat_number": "A1", "row_number": 1, "column_number": 1},
	)
	return svc, mathExam, physExam
}

// ============================================================================
// GetSeatingView
// ============================================================================

func TestGetSeatingView(t *testing.T) {
	mem := store.NewMemory()
	svc, mathExam, _ := seededService(t, mem, mem)

	view, err := svc.GetSeatingView(context.Background(), mathExam)
	if err != nil {
		t.Fatalf("GetSeatingView: %v", err)
	}
	if view.Subject.Code != "MATH101" || view.Room.RoomNumber != "A1" {
		t.Errorf("subject/room = %+v / %+v", view.Subject, view.Room)
	}
	if len(view.Seats) != 2 {
		t.Fatalf("seats = %d, want 2", len(view.Seats))
	}
	first := view.Seats[0]
	if first.SeatNumber != "A1" || first.StudentID != "S1" || first.StudentName != "Ann Lee" {
		t.Errorf("first seat = %+v", first)
	}
	// S1 is enrolled in maths and physics; the exam's own subject wins.
	if first.Subject != "Mathematics (MATH101)" {
		t.Errorf("S1 subject = %q", first.Subject)
	}
}

func TestGetSeatingView_SubjectFallbacks(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc, mathExam, _ := seededService(t, mem, mem)

	// S3 has no enrollments; S4 is only enrolled in an unrelated subject.
	seedProfiles(mem, "S3", "S4")
	mem.Seed(store.TableSubjects, store.Record{"id": "sub-art", "code": "ART1", "name": "Art"})
	mem.Seed(store.TableEnrollments, store.Record{"id": "e-art", "student_id": "p-S4", "subject_id": "sub-art"})
	mem.Seed(store.TableSeating,
		store.Record{"id": "seat-3", "exam_id": mathExam, "student_id": "p-S3", "seat_number": "A3"},
		store.Record{"id": "seat-4", "exam_id": mathExam, "student_id": "p-S4", "seat_number": "A4"},
	)

	view, err := svc.GetSeatingView(ctx, mathExam)
	if err != nil {
		t.Fatalf("GetSeatingView: %v", err)
	}
	got := map[string]string{}
	for _, s := range view.Seats {
		got[s.StudentID] = s.Subject
	}
	if got["S3"] != "Mathematics (MATH101)" {
		t.Errorf("S3 subject = %q, want exam subject", got["S3"])
	}
	if got["S4"] != "Art (ART1)" {
		t.Errorf("S4 subject = %q, want first enrollment", got["S4"])
	}
}

func TestGetSeatingView_Empty(t *testing.T) {
	mem := store.NewMemory()
	svc, _, physExam := seededService(t, mem, mem)

	view, err := svc.GetSeatingView(context.Background(), physExam)
	if err != nil {
		t.Fatalf("GetSeatingView: %v", err)
	}
	if view.Seats == nil || len(view.Seats) != 0 {
		t.Errorf("Seats = %v, want empty non-nil", view.Seats)
	}
}

func TestGetSeatingView_NotFound(t *testing.T) {
	svc := newTestService(t, store.NewMemory())
	_, err := svc.GetSeatingView(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// ============================================================================
// ListExams / DatabaseOverview
// ============================================================================

func TestListExams(t *testing.T) {
	mem := store.NewMemory()
	svc, mathExam, _ := seededService(t, mem, mem)

	exams, err := svc.ListExams(context.Background())
	if err != nil {
		t.Fatalf("ListExams: %v", err)
	}
	if len(exams) != 2 {
		t.Fatalf("exams = %d, want 2", len(exams))
	}
	if exams[0].ID != mathExam || exams[0].SeatCount != 2 || exams[0].Subject.Code != "MATH101" {
		t.Errorf("first exam = %+v", exams[0])
	}
	if exams[1].SeatCount != 0 || exams[1].Room.RoomNumber != "B2" {
		t.Errorf("second exam = %+v", exams[1])
	}
}

func TestDatabaseOverview(t *testing.T) {
	mem := store.NewMemory()
	svc, _, _ := seededService(t, mem, mem)

	all, err := svc.DatabaseOverview(context.Background())
	if err != nil {
		t.Fatalf("DatabaseOverview: %v", err)
	}
	if len(all) != len(store.Tables) {
		t.Errorf("tables = %d, want %d", len(all), len(store.Tables))
	}
	if len(all[store.TableSeating]) != 2 || len(all[store.TableExams]) != 2 {
		t.Errorf("seating=%d exams=%d", len(all[store.TableSeating]), len(all[store.TableExams]))
	}
	if all[store.TableDepartments] == nil {
		t.Error("empty tables should be empty slices")
	}
}

func TestDatabaseOverview_Error(t *testing.T) {
	gw := &failingGateway{Memory: store.NewMemory(), op: "select", table: store.TableRooms, err: errors.New("boom")}
	svc := newTestService(t, gw)
	if _, err := svc.DatabaseOverview(context.Background()); err == nil || !strings.Contains(err.Error(), "rooms") {
		t.Errorf("expected error naming rooms, got %v", err)
	}
}

// ============================================================================
// GetStudentSchedule
// ============================================================================

func TestGetStudentSchedule(t *testing.T) {
	mem := store.NewMemory()
	svc, mathExam, physExam := seededService(t, mem, mem)

	sched, err := svc.GetStudentSchedule(context.Background(), "p-S1")
	if err != nil {
		t.Fatalf("GetStudentSchedule: %v", err)
	}
	if sched.Profile.StudentID != "S1" || len(sched.Exams) != 2 {
		t.Fatalf("schedule = %+v", sched)
	}
	math, phys := sched.Exams[0], sched.Exams[1]
	if math.Exam.ID != mathExam || math.Seat == nil || math.Seat.SeatNumber != "A1" {
		t.Errorf("maths entry = %+v", math)
	}
	if len(math.SeatMap) != 2 || math.SeatMap[1].StudentName != "Bob Ray" {
		t.Errorf("maths seat map = %+v", math.SeatMap)
	}
	if phys.Exam.ID != physExam || phys.Seat != nil || len(phys.SeatMap) != 0 {
		t.Errorf("physics entry = %+v", phys)
	}
}

// inHidingGateway hides seats from bulk IN reads, as a row-level policy
// might.
type inHidingGateway struct {
	*store.Memory
}

func (g inHidingGateway) Select(ctx context.Context, table string, f store.Filter) ([]store.Record, error) {
	if table == store.TableSeating {
		for _, c := range f.Conditions {
			if c.Op == store.OpIn {
				return nil, nil
			}
		}
	}
	return g.Memory.Select(ctx, table, f)
}

func TestGetStudentSchedule_FallbackSeatLookup(t *testing.T) {
	mem := store.NewMemory()
	svc, _, _ := seededService(t, inHidingGateway{mem}, mem)

	sched, err := svc.GetStudentSchedule(context.Background(), "p-S2")
	if err != nil {
		t.Fatalf("GetStudentSchedule: %v", err)
	}
	if len(sched.Exams) != 1 {
		t.Fatalf("exams = %d, want 1", len(sched.Exams))
	}
	if seat := sched.Exams[0].Seat; seat == nil || seat.SeatNumber != "A2" {
		t.Errorf("seat = %+v, want A2 from per-exam lookup", seat)
	}
}

func TestGetStudentSchedule_NoEnrollments(t *testing.T) {
	mem := store.NewMemory()
	seedProfiles(mem, "S7")
	svc := newTestService(t, mem)

	sched, err := svc.GetStudentSchedule(context.Background(), "p-S7")
	if err != nil {
		t.Fatalf("GetStudentSchedule: %v", err)
	}
	if len(sched.Exams) != 0 {
		t.Errorf("exams = %d, want 0", len(sched.Exams))
	}
	if _, err := svc.GetStudentSchedule(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// ============================================================================
// GenerateSeating
// ============================================================================

func TestGenerateSeating(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	gen := &fakeGenerator{}
	svc, mathExam, _ := seededService(t, mem, mem, WithSeatGenerator(gen))

	if _, err := svc.GenerateSeating(ctx, mathExam, StrictnessStrict); err != nil {
		t.Fatalf("GenerateSeating: %v", err)
	}
	if len(gen.calls) != 1 || gen.calls[0].level != StrictnessStrict {
		t.Errorf("calls = %+v", gen.calls)
	}

	if _, err := svc.GenerateSeating(ctx, "missing", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing exam: got %v", err)
	}
	var ve *ValidationError
	if _, err := svc.GenerateSeating(ctx, mathExam, "extreme"); !errors.As(err, &ve) {
		t.Errorf("bad level: got %v", err)
	}
}

func TestGenerateSeating_Unconfigured(t *testing.T) {
	mem := store.NewMemory()
	svc, mathExam, _ := seededService(t, mem, mem)
	if _, err := svc.GenerateSeating(context.Background(), mathExam, ""); !errors.Is(err, ErrSeatGeneratorUnavailable) {
		t.Errorf("expected ErrSeatGeneratorUnavailable, got %v", err)
	}
}

// ============================================================================
// Seat ordering
// ============================================================================

func TestNaturalLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"2", "10", true},
		{"10", "2", false},
		{"A2", "A10", true},
		{"A10", "B1", true},
		{"A02", "A2", false},
		{"A", "A1", true},
		{"A1", "A1", false},
	}
	for _, tt := range tests {
		if got := naturalLess(tt.a, tt.b); got != tt.want {
			t.Errorf("naturalLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestGetSeatingView_SeatOrder(t *testing.T) {
	mem := store.NewMemory()
	svc, mathExam, _ := seededService(t, mem, mem)
	mem.Seed(store.TableProfiles,
		store.Record{"id": "p-S3", "student_id": "S3", "full_name": "Cy"},
		store.Record{"id": "p-S4", "student_id": "S4", "full_name": "Di"},
		store.Record{"id": "p-S5", "student_id": "S5", "full_name": "Ed"},
	)
	mem.Seed(store.TableSeating,
		store.Record{"id": "seat-10", "exam_id": mathExam, "student_id": "p-S3", "seat_number": "10", "row_number": 1, "column_number": 10},
		store.Record{"id": "seat-x", "exam_id": mathExam, "student_id": "p-S4", "seat_number": "0"},
		store.Record{"id": "seat-r2", "exam_id": mathExam, "student_id": "p-S5", "seat_number": "9", "row_number": 2, "column_number": 1},
	)

	view, err := svc.GetSeatingView(context.Background(), mathExam)
	if err != nil {
		t.Fatalf("GetSeatingView: %v", err)
	}
	var got []string
	for _, s := range view.Seats {
		got = append(got, s.SeatNumber)
	}
	if want := "A1,A2,10,9,0"; strings.Join(got, ",") != want {
		t.Errorf("seat order = %s, want %s", strings.Join(got, ","), want)
	}
}
