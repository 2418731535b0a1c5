package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/ExamSeat/internal/store"
)

func tableCounts(m *store.Memory) map[string]int {
	out := make(map[string]int)
	for _, t := range store.Tables {
		out[t] = m.Count(t)
	}
	return out
}

func TestImportSpreadsheet_Scenario(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seedProfiles(mem, "S1", "S2")
	svc := newTestService(t, mem)

	res, err := svc.ImportSpreadsheet(ctx, scenarioRows(), ImportOptions{})
	if err != nil {
		t.Fatalf("ImportSpreadsheet: %v", err)
	}
	if res.ImportedSessions != 2 || res.SkippedRows != 0 {
		t.Errorf("sessions/skipped = %d/%d, want 2/0", res.ImportedSessions, res.SkippedRows)
	}

	want := map[string]int{
		store.TableSubjects:    2,
		store.TableRooms:       2,
		store.TableExams:       2,
		store.TableProfiles:    2,
		store.TableEnrollments: 3,
	}
	counts := tableCounts(mem)
	for table, n := range want {
		if counts[table] != n {
			t.Errorf("%s = %d, want %d", table, counts[table], n)
		}
	}

	phy := selectOne(t, mem, store.TableSubjects, store.Eq("code", "PHY201"))
	exam := selectOne(t, mem, store.TableExams, store.Eq("subject_id", phy.String("id")))
	if exam.String("exam_date") != "2024-03-02" || exam.String("start_time") != "14:30" {
		t.Errorf("physics exam = %v, want 2024-03-02 14:30", exam)
	}
	if exam.String("end_time") != "16:00:00" {
		t.Errorf("end_time = %q, want 16:00:00", exam.String("end_time"))
	}
	room := selectOne(t, mem, store.TableRooms, store.Eq("room_number", "B2"))
	if room.Int("capacity") != DefaultRoomCapacity {
		t.Errorf("B2 capacity = %d, want default", room.Int("capacity"))
	}
}

func TestImportSpreadsheet_Idempotent(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seedProfiles(mem, "S1", "S2")
	svc := newTestService(t, mem)

	if _, err := svc.ImportSpreadsheet(ctx, scenarioRows(), ImportOptions{}); err != nil {
		t.Fatalf("first import: %v", err)
	}
	before := tableCounts(mem)
	firstExams, _ := mem.Select(ctx, store.TableExams, store.All().Asc("id"))

	if _, err := svc.ImportSpreadsheet(ctx, scenarioRows(), ImportOptions{}); err != nil {
		t.Fatalf("second import: %v", err)
	}
	after := tableCounts(mem)
	for table, n := range before {
		if after[table] != n {
			t.Errorf("%s grew from %d to %d", table, n, after[table])
		}
	}
	secondExams, _ := mem.Select(ctx, store.TableExams, store.All().Asc("id"))
	for i := range firstExams {
		if firstExams[i].String("id") != secondExams[i].String("id") {
			t.Errorf("exam ids changed across imports")
		}
	}
}

func TestImportSpreadsheet_ValidationWritesNothing(t *testing.T) {
	mem := store.NewMemory()
	seedProfiles(mem, "S1")
	svc := newTestService(t, mem)

	rows := []RawRow{{"student_id": "S1", "full_name": "Ann", "subject_code": "M1"}}
	res, err := svc.ImportSpreadsheet(context.Background(), rows, ImportOptions{})

	var aborted *ImportAbortedError
	if !errors.As(err, &aborted) || aborted.Reason != ReasonValidation {
		t.Fatalf("expected validation abort, got %v", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Missing) != 3 {
		t.Errorf("expected 3 missing columns, got %v", err)
	}
	if res == nil || res.ImportedSessions != 0 {
		t.Errorf("result = %+v", res)
	}
	for table, n := range tableCounts(mem) {
		if table != store.TableProfiles && n != 0 {
			t.Errorf("%s has %d rows after rejected import", table, n)
		}
	}
}

func TestImportSpreadsheet_InvalidStrictness(t *testing.T) {
	svc := newTestService(t, store.NewMemory())
	_, err := svc.ImportSpreadsheet(context.Background(), scenarioRows(), ImportOptions{AntiCheatLevel: "extreme"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestImportSpreadsheet_SkippedRowsCounted(t *testing.T) {
	mem := store.NewMemory()
	seedProfiles(mem, "S1", "S2")
	svc := newTestService(t, mem)

	rows := append(scenarioRows(),
		importRow("S2", "Bob", "MATH101", "", "A1", "", "not a date", "09:00", ""),
		importRow("S2", "Bob", "MATH101", "", "A1", "", "", "09:00", ""),
	)
	res, err := svc.ImportSpreadsheet(context.Background(), rows, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportSpreadsheet: %v", err)
	}
	if res.SkippedRows != 2 {
		t.Errorf("SkippedRows = %d, want 2", res.SkippedRows)
	}
	if res.Skipped[0].Line != 5 || res.Skipped[1].Line != 6 {
		t.Errorf("skipped lines = %d, %d; want 5, 6", res.Skipped[0].Line, res.Skipped[1].Line)
	}
	if res.ImportedSessions != 2 {
		t.Errorf("ImportedSessions = %d, want 2", res.ImportedSessions)
	}
}

func TestImportSpreadsheet_AbortKeepsEarlierGroups(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seedProfiles(mem, "S1", "S2")
	svc := newTestService(t, mem)

	rows := []RawRow{
		importRow("S1", "Ann", "M1", "", "A1", "", "2024-03-01", "09:00", ""),
		importRow("S9", "Ghost", "P1", "", "A1", "", "2024-03-02", "09:00", ""),
		importRow("S2", "Bob", "C1", "", "A1", "", "2024-03-03", "09:00", ""),
	}
	res, err := svc.ImportSpreadsheet(ctx, rows, ImportOptions{})

	var aborted *ImportAbortedError
	if !errors.As(err, &aborted) {
		t.Fatalf("expected ImportAbortedError, got %v", err)
	}
	if aborted.Reason != ReasonUnresolvedIdentity {
		t.Errorf("Reason = %q, want %q", aborted.Reason, ReasonUnresolvedIdentity)
	}
	if aborted.LastSession != "M1||2024-03-01||09:00||A1" {
		t.Errorf("LastSession = %q", aborted.LastSession)
	}
	if res.ImportedSessions != 1 || aborted.Result != res {
		t.Errorf("partial result = %+v", res)
	}

	// First group persisted, second stopped before enrollments, third never ran.
	if n := mem.Count(store.TableEnrollments); n != 1 {
		t.Errorf("enrollments = %d, want 1", n)
	}
	if rows, _ := mem.Select(ctx, store.TableSubjects, store.Eq("code", "C1")); len(rows) != 0 {
		t.Error("group after the failure must not be processed")
	}
}

func TestImportSpreadsheet_StoreFailure(t *testing.T) {
	mem := store.NewMemory()
	seedProfiles(mem, "S1", "S2")
	gw := &failingGateway{Memory: mem, op: "upsert", table: store.TableRooms, err: errors.New("connection refused")}
	svc := newTestService(t, gw)

	_, err := svc.ImportSpreadsheet(context.Background(), scenarioRows(), ImportOptions{})
	var aborted *ImportAbortedError
	if !errors.As(err, &aborted) || aborted.Reason != ReasonStore {
		t.Fatalf("expected store abort, got %v", err)
	}
	if aborted.LastSession != "" {
		t.Errorf("LastSession = %q, want empty", aborted.LastSession)
	}
	if mem.Count(store.TableExams) != 0 {
		t.Error("no session may be written after the room step failed")
	}
}

func TestImportSpreadsheet_SeatGenerationFailure(t *testing.T) {
	mem := store.NewMemory()
	seedProfiles(mem, "S1", "S2")
	gen := &fakeGenerator{err: errors.New("room too small")}
	svc := newTestService(t, mem, WithSeatGenerator(gen))

	_, err := svc.ImportSpreadsheet(context.Background(), scenarioRows(), ImportOptions{AutoGenerate: true})
	var aborted *ImportAbortedError
	if !errors.As(err, &aborted) || aborted.Reason != ReasonSeatGeneration {
		t.Fatalf("expected seat generation abort, got %v", err)
	}
	if len(gen.calls) != 1 {
		t.Errorf("generator called %d times, want 1", len(gen.calls))
	}
	if gen.calls[0].level != StrictnessBasic {
		t.Errorf("level = %q, want default basic", gen.calls[0].level)
	}
}

func TestImportSpreadsheet_Busy(t *testing.T) {
	mem := store.NewMemory()
	seedProfiles(mem, "S1", "S2")
	svc := newTestService(t, mem)

	if !svc.Limiter().TryAcquire() {
		t.Fatal("TryAcquire failed")
	}
	defer svc.Limiter().Release()

	_, err := svc.ImportSpreadsheet(context.Background(), scenarioRows(), ImportOptions{})
	var aborted *ImportAbortedError
	if !errors.As(err, &aborted) || aborted.Reason != ReasonBusy {
		t.Fatalf("expected busy abort, got %v", err)
	}
	if mem.Count(store.TableExams) != 0 {
		t.Error("busy import must not write")
	}
}

// cancellingGateway cancels the caller's context after the first enrollment
// upsert and, like pgx, fails any call made on a done context.
type cancellingGateway struct {
	*store.Memory
	cancel context.CancelFunc
}

func (g *cancellingGateway) Upsert(ctx context.Context, table string, recs []store.Record, keys []string) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := g.Memory.Upsert(ctx, table, recs, keys)
	if table == store.TableEnrollments {
		g.cancel()
	}
	return rows, err
}

func (g *cancellingGateway) Select(ctx context.Context, table string, f store.Filter) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.Memory.Select(ctx, table, f)
}

func TestImportSpreadsheet_CallerCancelDoesNotStopImport(t *testing.T) {
	tests := []struct {
		name      string
		preCancel bool
	}{
		{"cancelled before start", true},
		{"cancelled after first group", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := store.NewMemory()
			seedProfiles(mem, "S1", "S2")
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			gw := &cancellingGateway{Memory: mem, cancel: cancel}
			if tt.preCancel {
				cancel()
			}
			svc := newTestService(t, gw)

			res, err := svc.ImportSpreadsheet(ctx, scenarioRows(), ImportOptions{})
			if err != nil {
				t.Fatalf("ImportSpreadsheet: %v", err)
			}
			if res.ImportedSessions != 2 {
				t.Errorf("sessions = %d, want 2", res.ImportedSessions)
			}
			if n := mem.Count(store.TableEnrollments); n != 3 {
				t.Errorf("enrollments = %d, want 3", n)
			}
		})
	}
}

func TestImportSpreadsheet_WithoutStartTimeColumn(t *testing.T) {
	mem := store.NewMemory()
	seedProfiles(mem, "S1")
	svc := newTestService(t, mem)

	row := importRow("S1", "Ann", "M1", "", "A1", "", "2024-03-01", "", "60")
	delete(row, "start_time")
	res, err := svc.ImportSpreadsheet(context.Background(), []RawRow{row}, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportSpreadsheet: %v", err)
	}
	if res.ImportedSessions != 1 {
		t.Fatalf("sessions = %d, want 1", res.ImportedSessions)
	}
	exam := selectOne(t, mem, store.TableExams, store.All())
	if got := exam.String("start_time"); got != DefaultStartTime {
		t.Errorf("start_time = %q, want %q", got, DefaultStartTime)
	}
	if got := exam.String("end_time"); got != "10:00:00" {
		t.Errorf("end_time = %q, want 10:00:00", got)
	}
}

type countingMetrics struct {
	nopMetrics
	outcomes []string
	skipped  int
	paths    []SessionPath
}

func (m *countingMetrics) ImportFinished(outcome string, _ time.Duration) {
	m.outcomes = append(m.outcomes, outcome)
}
func (m *countingMetrics) RowsSkipped(n int) { m.skipped += n }
func (m *countingMetrics) SessionReconciled(p SessionPath) { m.paths = append(m.paths, p) }

func TestImportSpreadsheet_RecordsMetrics(t *testing.T) {
	mem := store.NewMemory()
	seedProfiles(mem, "S1", "S2")
	metrics := &countingMetrics{}
	svc := newTestService(t, mem, WithMetrics(metrics))

	rows := append(scenarioRows(), importRow("S1", "Ann", "M", "", "A", "", "??", "", ""))
	if _, err := svc.ImportSpreadsheet(context.Background(), rows, ImportOptions{}); err != nil {
		t.Fatalf("ImportSpreadsheet: %v", err)
	}
	if len(metrics.outcomes) != 1 || metrics.outcomes[0] != "success" {
		t.Errorf("outcomes = %v", metrics.outcomes)
	}
	if metrics.skipped != 1 || len(metrics.paths) != 2 {
		t.Errorf("skipped=%d paths=%v", metrics.skipped, metrics.paths)
	}
}
