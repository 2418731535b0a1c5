package store

import (
	"fmt"
	"strings"
)

// Op is a filter comparison.
type Op int

const (
	OpEq Op = iota
	OpIn
)

// Condition is a single column predicate.
type Condition struct {
	Column string
	Op     Op
	Value  any   // OpEq
	Values []any // OpIn
}

// Order is an ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// Filter is a conjunction of conditions plus an optional ordering.
// The zero Filter matches every row.
type Filter struct {
	Conditions []Condition
	OrderBy    []Order
	Limit      int
}

// All matches every row.
func All() Filter { return Filter{} }

// Eq starts a filter with column = value.
func Eq(column string, value any) Filter {
	return Filter{}.Eq(column, value)
}

// In starts a filter with column IN values.
func In[T any](column string, values []T) Filter {
	return InFilter(Filter{}, column, values)
}

// InFilter adds column IN values to f.
func InFilter[T any](f Filter, column string, values []T) Filter {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	f.Conditions = append(append([]Condition(nil), f.Conditions...), Condition{Column: column, Op: OpIn, Values: vals})
	return f
}

// Eq adds column = value.
func (f Filter) Eq(column string, value any) Filter {
	f.Conditions = append(append([]Condition(nil), f.Conditions...), Condition{Column: column, Op: OpEq, Value: value})
	return f
}

// Asc orders by column ascending.
func (f Filter) Asc(column string) Filter {
	f.OrderBy = append(append([]Order(nil), f.OrderBy...), Order{Column: column})
	return f
}

// Desc orders by column descending.
func (f Filter) Desc(column string) Filter {
	f.OrderBy = append(append([]Order(nil), f.OrderBy...), Order{Column: column, Desc: true})
	return f
}

// First limits the result to n rows.
func (f Filter) First(n int) Filter {
	f.Limit = n
	return f
}

// WhereBuilder accumulates SQL conditions with positional arguments.
type WhereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

// NewWhereBuilder returns a builder whose first placeholder is $1.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{argIndex: 1}
}

// Add appends "column = $n".
func (wb *WhereBuilder) Add(column string, value any) {
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s = $%d", column, wb.argIndex))
	wb.args = append(wb.args, value)
	wb.argIndex++
}

// AddAny appends "column = ANY($n)" with values bound as one array.
func (wb *WhereBuilder) AddAny(column string, values []string) {
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s = ANY($%d)", column, wb.argIndex))
	wb.args = append(wb.args, values)
	wb.argIndex++
}

// AddRaw appends a literal condition with no arguments.
func (wb *WhereBuilder) AddRaw(cond string) {
	wb.conditions = append(wb.conditions, cond)
}

// NextArgIndex is the next placeholder number.
func (wb *WhereBuilder) NextArgIndex() int { return wb.argIndex }

// Build renders " WHERE a AND b" and its args; empty when nothing was added.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

// Where renders f's conditions against quoted column names.
func (f Filter) Where() *WhereBuilder {
	wb := NewWhereBuilder()
	for _, c := range f.Conditions {
		col := quoteIdentifier(c.Column)
		switch c.Op {
		case OpEq:
			if c.Value == nil {
				wb.AddRaw(col + " IS NULL")
				continue
			}
			wb.Add(col, c.Value)
		case OpIn:
			if len(c.Values) == 0 {
				wb.AddRaw("FALSE")
				continue
			}
			vals := make([]string, len(c.Values))
			for i, v := range c.Values {
				vals[i] = fmt.Sprint(v)
			}
			wb.AddAny(col, vals)
		}
	}
	return wb
}

func (f Filter) orderClause() string {
	if len(f.OrderBy) == 0 {
		return ""
	}
	parts := make([]string, len(f.OrderBy))
	for i, o := range f.OrderBy {
		parts[i] = quoteIdentifier(o.Column)
		if o.Desc {
			parts[i] += " DESC"
		}
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// quoteIdentifier safely quotes a SQL identifier.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
