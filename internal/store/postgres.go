package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// pgCodeNoConflictTarget is SQLSTATE 42P10: there is no unique or exclusion
// constraint matching the ON CONFLICT target.
const pgCodeNoConflictTarget = "42P10"

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Postgres is a Gateway over a pgx connection or pool.
type Postgres struct {
	db DBTX
}

// NewPostgres wraps db.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Select(ctx context.Context, table string, filter Filter) ([]Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	query, args := buildSelect(table, filter)
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return collect(rows, table)
}

func (p *Postgres) Upsert(ctx context.Context, table string, records []Record, conflictKeys []string) ([]Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	records = DedupeByKeys(records, conflictKeys)
	query, args := buildUpsert(table, records, conflictKeys)
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, p.upsertErr(table, conflictKeys, err)
	}
	out, err := collect(rows, table)
	if err != nil {
		return nil, p.upsertErr(table, conflictKeys, err)
	}
	return out, nil
}

func (p *Postgres) upsertErr(table string, keys []string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgCodeNoConflictTarget {
		return &ConstraintMissingError{Table: table, Keys: keys, Err: err}
	}
	return fmt.Errorf("upsert %s: %w", table, err)
}

func (p *Postgres) Insert(ctx context.Context, table string, record Record) (Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	query, args := buildInsert(table, record)
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	out, err := collect(rows, table)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("insert %s: no row returned", table)
	}
	return out[0], nil
}

func (p *Postgres) Delete(ctx context.Context, table string, filter Filter) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	where, args := filter.Where().Build()
	tag, err := p.db.Exec(ctx, "DELETE FROM "+quoteIdentifier(table)+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

func buildSelect(table string, filter Filter) (string, []any) {
	where, args := filter.Where().Build()
	query := "SELECT * FROM " + quoteIdentifier(table) + where + filter.orderClause()
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	return query, args
}

// columnsOf returns the sorted union of record columns.
func columnsOf(records []Record) []string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		for col := range rec {
			seen[col] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for col := range seen {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

func buildValues(records []Record, cols []string) (string, []any) {
	var (
		b    strings.Builder
		args []any
		n    = 1
	)
	for i, rec := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, col := range cols {
			if j > 0 {
				b.WriteString(", ")
			}
			v, ok := rec[col]
			if !ok {
				b.WriteString("DEFAULT")
				continue
			}
			fmt.Fprintf(&b, "$%d", n)
			args = append(args, v)
			n++
		}
		b.WriteString(")")
	}
	return b.String(), args
}

func buildInsert(table string, record Record) (string, []any) {
	cols := columnsOf([]Record{record})
	if len(cols) == 0 {
		return "INSERT INTO " + quoteIdentifier(table) + " DEFAULT VALUES RETURNING *", nil
	}
	values, args := buildValues([]Record{record}, cols)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s RETURNING *",
		quoteIdentifier(table), strings.Join(quoteColumns(cols), ", "), values), args
}

// buildUpsert renders INSERT .. ON CONFLICT .. DO UPDATE .. RETURNING *.
// When every column is part of the conflict target the first key is
// re-assigned so RETURNING still yields the existing row.
func buildUpsert(table string, records []Record, keys []string) (string, []any) {
	cols := columnsOf(records)
	values, args := buildValues(records, cols)

	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	var sets []string
	for _, col := range cols {
		if isKey[col] {
			continue
		}
		q := quoteIdentifier(col)
		sets = append(sets, q+" = EXCLUDED."+q)
	}
	if len(sets) == 0 && len(keys) > 0 {
		q := quoteIdentifier(keys[0])
		sets = append(sets, q+" = EXCLUDED."+q)
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) DO UPDATE SET %s RETURNING *",
		quoteIdentifier(table),
		strings.Join(quoteColumns(cols), ", "),
		values,
		strings.Join(quoteColumns(keys), ", "),
		strings.Join(sets, ", "),
	), args
}

func quoteColumns(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = quoteIdentifier(c)
	}
	return out
}

func collect(rows pgx.Rows, table string) ([]Record, error) {
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("read %s rows: %w", table, err)
	}
	out := make([]Record, len(maps))
	for i, m := range maps {
		rec := make(Record, len(m))
		for k, v := range m {
			rec[k] = normalizeValue(v)
		}
		out[i] = rec
	}
	return out, nil
}

// normalizeValue converts pgx scan results into the plain values the rest
// of the code compares: uuids and dates as text, integers as int64.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case [16]byte:
		return uuid.UUID(x).String()
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	case pgtype.Time:
		if !x.Valid {
			return nil
		}
		d := time.Duration(x.Microseconds) * time.Microsecond
		h := int(d / time.Hour)
		m := int(d % time.Hour / time.Minute)
		s := int(d % time.Minute / time.Second)
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int:
		return int64(x)
	}
	return v
}
