package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DefaultUniqueKeys are the unique constraints the production schema carries.
var DefaultUniqueKeys = map[string][][]string{
	TableDepartments: {{"name"}},
	TableSubjects:    {{"code"}},
	TableRooms:       {{"room_number"}},
	TableExams:       {{"subject_id", "exam_date", "start_time", "room_id"}},
	TableProfiles:    {{"student_id"}},
	TableEnrollments: {{"student_id", "subject_id"}},
	TableSeating:     {{"exam_id", "student_id"}},
}

// Memory is an in-process Gateway. It enforces declared unique keys the way
// PostgreSQL does for ON CONFLICT targets, so the constraint-missing path can
// be exercised without a database.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][]Record
	unique map[string][][]string
	// externalIDs lists tables whose id must be supplied by the caller.
	externalIDs map[string]bool
	newID       func() string
}

// MemoryOption configures a Memory gateway.
type MemoryOption func(*Memory)

// WithoutUniqueKey drops the unique constraint on table(cols...).
func WithoutUniqueKey(table string, cols ...string) MemoryOption {
	return func(m *Memory) {
		keys := m.unique[table]
		kept := keys[:0:0]
		for _, k := range keys {
			if !sameColumns(k, cols) {
				kept = append(kept, k)
			}
		}
		m.unique[table] = kept
	}
}

// WithIDFunc replaces the id generator.
func WithIDFunc(fn func() string) MemoryOption {
	return func(m *Memory) { m.newID = fn }
}

// NewMemory returns an empty gateway with DefaultUniqueKeys. Profiles mirror
// the auth-owned table: their id is never generated here.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		tables:      make(map[string][]Record),
		unique:      make(map[string][][]string, len(DefaultUniqueKeys)),
		externalIDs: map[string]bool{TableProfiles: true},
		newID:       uuid.NewString,
	}
	for t, keys := range DefaultUniqueKeys {
		m.unique[t] = append([][]string(nil), keys...)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Seed appends rows verbatim, bypassing constraints.
func (m *Memory) Seed(table string, rows ...Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.tables[table] = append(m.tables[table], r.Clone())
	}
}

// Count returns the number of rows in table.
func (m *Memory) Count(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[table])
}

func (m *Memory) Select(_ context.Context, table string, filter Filter) ([]Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, row := range m.tables[table] {
		if matches(row, filter) {
			out = append(out, row.Clone())
		}
	}
	sortRecords(out, filter.OrderBy)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *Memory) Upsert(_ context.Context, table string, records []Record, conflictKeys []string) ([]Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasUnique(table, conflictKeys) {
		return nil, &ConstraintMissingError{Table: table, Keys: conflictKeys}
	}

	records = DedupeByKeys(records, conflictKeys)
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		key := keyOf(rec, conflictKeys)
		idx := -1
		for i, row := range m.tables[table] {
			if keyOf(row, conflictKeys) == key {
				idx = i
				break
			}
		}
		if idx >= 0 {
			row := m.tables[table][idx]
			for col, v := range rec {
				row[col] = v
			}
			out = append(out, row.Clone())
			continue
		}
		row, err := m.insertLocked(table, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *Memory) Insert(_ context.Context, table string, record Record) (Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, keys := range m.unique[table] {
		key := keyOf(record, keys)
		for _, row := range m.tables[table] {
			if keyOf(row, keys) == key {
				return nil, fmt.Errorf("insert %s: duplicate key (%s)", table, strings.Join(keys, ", "))
			}
		}
	}
	return m.insertLocked(table, record)
}

func (m *Memory) insertLocked(table string, record Record) (Record, error) {
	row := record.Clone()
	if row.String("id") == "" {
		if m.externalIDs[table] {
			return nil, fmt.Errorf("insert %s: null value in column \"id\"", table)
		}
		row["id"] = m.newID()
	}
	m.tables[table] = append(m.tables[table], row)
	return row.Clone(), nil
}

func (m *Memory) Delete(_ context.Context, table string, filter Filter) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.tables[table]
	kept := rows[:0]
	var n int64
	for _, row := range rows {
		if matches(row, filter) {
			n++
			continue
		}
		kept = append(kept, row)
	}
	m.tables[table] = kept
	return n, nil
}

func (m *Memory) hasUnique(table string, cols []string) bool {
	for _, k := range m.unique[table] {
		if sameColumns(k, cols) {
			return true
		}
	}
	return false
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, c := range a {
		set[c] = true
	}
	for _, c := range b {
		if !set[c] {
			return false
		}
	}
	return true
}

func matches(row Record, f Filter) bool {
	for _, c := range f.Conditions {
		switch c.Op {
		case OpEq:
			if c.Value == nil {
				if row[c.Column] != nil {
					return false
				}
				continue
			}
			if row.String(c.Column) != fmt.Sprint(c.Value) {
				return false
			}
		case OpIn:
			got := row.String(c.Column)
			found := false
			for _, v := range c.Values {
				if got == fmt.Sprint(v) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func sortRecords(rows []Record, order []Order) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range order {
			a, b := rows[i].String(o.Column), rows[j].String(o.Column)
			if a == b {
				continue
			}
			if o.Desc {
				return a > b
			}
			return a < b
		}
		return false
	})
}
