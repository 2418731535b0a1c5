package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/ExamSeat/internal/store"
)

// ============================================================================
// Fakes
// ============================================================================

type generateCall struct {
	examID string
	level  Strictness
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls []generateCall
	err   error
}

func (g *fakeGenerator) Generate(_ context.Context, examID string, level Strictness) (GenerateResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, generateCall{examID, level})
	if g.err != nil {
		return GenerateResult{}, g.err
	}
	return GenerateResult{Message: "seated"}, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []EmailMessage
	fail map[string]bool // by address
}

func (m *fakeMailer) Send(_ context.Context, msg EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[msg.ToAddress] {
		return errors.New("mailbox unavailable")
	}
	m.sent = append(m.sent, msg)
	return nil
}

// failingGateway fails the first matching operation on a table.
type failingGateway struct {
	*store.Memory
	op    string
	table string
	err   error
}

func (f *failingGateway) fails(op, table string) bool {
	return f.op == op && f.table == table
}

func (f *failingGateway) Select(ctx context.Context, table string, filter store.Filter) ([]store.Record, error) {
	if f.fails("select", table) {
		return nil, f.err
	}
	return f.Memory.Select(ctx, table, filter)
}

func (f *failingGateway) Upsert(ctx context.Context, table string, recs []store.Record, keys []string) ([]store.Record, error) {
	if f.fails("upsert", table) {
		return nil, f.err
	}
	return f.Memory.Upsert(ctx, table, recs, keys)
}

func (f *failingGateway) Insert(ctx context.Context, table string, rec store.Record) (store.Record, error) {
	if f.fails("insert", table) {
		return nil, f.err
	}
	return f.Memory.Insert(ctx, table, rec)
}

// ============================================================================
// Builders
// ============================================================================

func seedProfiles(m *store.Memory, studentIDs ...string) {
	for _, sid := range studentIDs {
		m.Seed(store.TableProfiles, store.Record{
			"id":         "p-" + sid,
			"student_id": sid,
			"full_name":  "Old " + sid,
			"email":      sid + "@school.test",
		})
	}
}

func newTestService(t *testing.T, gw store.Gateway, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(gw, Config{ImportWait: 20 * time.Millisecond}, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func importRow(student, name, subject, subjectName, room, capacity, date, start, duration string) RawRow {
	return RawRow{
		"student_id":       student,
		"full_name":        name,
		"subject_code":     subject,
		"subject_name":     subjectName,
		"room_number":      room,
		"room_capacity":    capacity,
		"exam_date":        date,
		"start_time":       start,
		"duration_minutes": duration,
	}
}

// scenarioRows is a two-session import for students S1 and S2.
func scenarioRows() []RawRow {
	return []RawRow{
		importRow("S1", "Ann Lee", "MATH101", "Mathematics", "A1", "40", "2024-03-01", "9:00", "120"),
		importRow("S2", "Bob Ray", "MATH101", "Mathematics", "A1", "40", "01/03/2024", "0.375", ""),
		importRow("S1", "Ann Lee", "PHY201", "", "B2", "", "45353", "1430", "90"),
	}
}

func selectOne(t *testing.T, gw store.Gateway, table string, f store.Filter) store.Record {
	t.Helper()
	rows, err := gw.Select(context.Background(), table, f)
	if err != nil {
		t.Fatalf("select %s: %v", table, err)
	}
	if len(rows) != 1 {
		t.Fatalf("select %s: got %d rows, want 1", table, len(rows))
	}
	return rows[0]
}
