package store

import (
	"reflect"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
)

// ============================================================================
// WhereBuilder
// ============================================================================

func TestWhereBuilder_Empty(t *testing.T) {
	where, args := NewWhereBuilder().Build()
	if where != "" {
		t.Errorf("expected empty clause, got %q", where)
	}
	if args != nil {
		t.Errorf("expected nil args, got %v", args)
	}
}

func TestWhereBuilder_Multiple(t *testing.T) {
	wb := NewWhereBuilder()
	wb.Add("a", 1)
	wb.AddAny("b", []string{"x", "y"})
	wb.AddRaw("c IS NULL")

	where, args := wb.Build()
	if want := " WHERE a = $1 AND b = ANY($2) AND c IS NULL"; where != want {
		t.Errorf("where = %q, want %q", where, want)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
	if wb.NextArgIndex() != 3 {
		t.Errorf("NextArgIndex = %d, want 3", wb.NextArgIndex())
	}
}

// ============================================================================
// SQL rendering
// ============================================================================

func TestBuildSelect(t *testing.T) {
	query, args := buildSelect(TableSeating, Eq("exam_id", "e1").Asc("seat_number").First(5))
	want := `SELECT * FROM "seating_arrangements" WHERE "exam_id" = $1 ORDER BY "seat_number" LIMIT 5`
	if query != want {
		t.Errorf("query = %q\nwant    %q", query, want)
	}
	if !reflect.DeepEqual(args, []any{"e1"}) {
		t.Errorf("args = %v", args)
	}
}

func TestBuildSelect_EmptyIn(t *testing.T) {
	query, args := buildSelect(TableProfiles, In("student_id", []string{}))
	if want := `SELECT * FROM "profiles" WHERE FALSE`; query != want {
		t.Errorf("query = %q, want %q", query, want)
	}
	if len(args) != 0 {
		t.Errorf("expected no args, got %v", args)
	}
}

func TestBuildUpsert(t *testing.T) {
	query, args := buildUpsert(TableSubjects,
		[]Record{{"code": "M1", "name": "Math"}, {"code": "P1", "name": "Physics"}},
		[]string{"code"})

	want := `INSERT INTO "subjects" ("code", "name") VALUES ($1, $2), ($3, $4) ` +
		`ON CONFLICT ("code") DO UPDATE SET "name" = EXCLUDED."name" RETURNING *`
	if query != want {
		t.Errorf("query = %q\nwant    %q", query, want)
	}
	if !reflect.DeepEqual(args, []any{"M1", "Math", "P1", "Physics"}) {
		t.Errorf("args = %v", args)
	}
}

func TestBuildUpsert_AllColumnsAreKeys(t *testing.T) {
	query, _ := buildUpsert(TableEnrollments,
		[]Record{{"student_id": "p1", "subject_id": "s1"}},
		[]string{"student_id", "subject_id"})

	want := `INSERT INTO "student_enrollments" ("student_id", "subject_id") VALUES ($1, $2) ` +
		`ON CONFLICT ("student_id", "subject_id") DO UPDATE SET "student_id" = EXCLUDED."student_id" RETURNING *`
	if query != want {
		t.Errorf("query = %q\nwant    %q", query, want)
	}
}

func TestBuildInsert_MissingColumnsUseDefault(t *testing.T) {
	query, args := buildValues([]Record{{"a": 1, "b": 2}, {"a": 3}}, []string{"a", "b"})
	if want := "($1, $2), ($3, DEFAULT)"; query != want {
		t.Errorf("values = %q, want %q", query, want)
	}
	if len(args) != 3 {
		t.Errorf("expected 3 args, got %d", len(args))
	}
}

func TestNormalizeValue(t *testing.T) {
	id := [16]byte{0x12, 0x34, 0x56, 0x78, 0x12, 0x34, 0x12, 0x34, 0x12, 0x34, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc}
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"uuid", id, "12345678-1234-1234-1234-123456789abc"},
		{"int32", int32(7), int64(7)},
		{"time of day", pgtype.Time{Microseconds: (9*3600 + 30*60) * 1e6, Valid: true}, "09:30:00"},
		{"null time", pgtype.Time{}, nil},
		{"string", "x", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeValue(tt.in); got != tt.want {
				t.Errorf("normalizeValue() = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestDedupeByKeys(t *testing.T) {
	got := DedupeByKeys([]Record{
		{"k": "a", "v": 1},
		{"k": "b", "v": 2},
		{"k": "a", "v": 3},
	}, []string{"k"})
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].String("k") != "a" || got[0].Int("v") != 3 {
		t.Errorf("first = %v, want k=a v=3", got[0])
	}
	if got[1].String("k") != "b" {
		t.Errorf("second = %v, want k=b", got[1])
	}
}
