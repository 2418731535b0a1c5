// Package store is the generic table gateway the import pipeline writes
// through. Records are plain column maps so the same reconciliation code
// runs against PostgreSQL or the in-memory gateway used in tests and dry runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Table names.
const (
	TableDepartments = "departments"
	TableSubjects    = "subjects"
	TableRooms       = "rooms"
	TableExams       = "exams"
	TableProfiles    = "profiles"
	TableEnrollments = "student_enrollments"
	TableSeating     = "seating_arrangements"
)

// Tables lists every table the gateway knows about, in display order.
var Tables = []string{
	TableDepartments,
	TableSubjects,
	TableRooms,
	TableExams,
	TableProfiles,
	TableEnrollments,
	TableSeating,
}

// Record is one row keyed by column name.
type Record map[string]any

// String returns the column value as text, or "" when absent.
func (r Record) String(col string) string {
	v, ok := r[col]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int returns the column value as an int, or 0 when absent or not numeric.
func (r Record) Int(col string) int {
	switch v := r[col].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Gateway is the persistence surface the core depends on.
type Gateway interface {
	// Select returns the rows of table matching filter.
	Select(ctx context.Context, table string, filter Filter) ([]Record, error)
	// Upsert inserts records, updating rows that collide on conflictKeys,
	// and returns the resulting rows. It fails with *ConstraintMissingError
	// when no unique constraint covers conflictKeys.
	Upsert(ctx context.Context, table string, records []Record, conflictKeys []string) ([]Record, error)
	// Insert inserts a record and returns the stored row.
	Insert(ctx context.Context, table string, record Record) (Record, error)
	// Delete removes matching rows and reports how many were removed.
	Delete(ctx context.Context, table string, filter Filter) (int64, error)
}

// ConstraintMissingError reports an upsert whose conflict target has no
// matching unique constraint in the store.
type ConstraintMissingError struct {
	Table string
	Keys  []string
	Err   error
}

func (e *ConstraintMissingError) Error() string {
	return fmt.Sprintf("no unique or exclusion constraint on %s(%s)", e.Table, strings.Join(e.Keys, ", "))
}

func (e *ConstraintMissingError) Unwrap() error { return e.Err }

// IsConstraintMissing reports whether err is, or wraps, a ConstraintMissingError.
func IsConstraintMissing(err error) bool {
	var cm *ConstraintMissingError
	return errors.As(err, &cm)
}

// ErrUnknownTable is returned for table names outside Tables.
var ErrUnknownTable = errors.New("unknown table")

func checkTable(table string) error {
	for _, t := range Tables {
		if t == table {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownTable, table)
}

// DedupeByKeys keeps the last record for each conflict key tuple, preserving
// first-seen order. PostgreSQL rejects an upsert batch that touches the same
// row twice.
func DedupeByKeys(records []Record, keys []string) []Record {
	if len(keys) == 0 || len(records) < 2 {
		return records
	}
	index := make(map[string]int, len(records))
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		k := keyOf(rec, keys)
		if i, ok := index[k]; ok {
			out[i] = rec
			continue
		}
		index[k] = len(out)
		out = append(out, rec)
	}
	return out
}

func keyOf(rec Record, keys []string) string {
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString("\x1f")
		}
		b.WriteString(rec.String(k))
	}
	return b.String()
}
