// Package query builds row filters and page requests for listing imported
// data. Predicates are constructed in code, never parsed from strings, and
// render to parameterized SQL with quoted identifiers.
package query

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Predicate is a row filter. SQL renders it starting at placeholder
// $argIdx and returns the next free index; Match evaluates it in memory.
type Predicate interface {
	SQL(argIdx int) (string, []any, int)
	Match(row map[string]any) bool
}

// True matches every row.
func True() Predicate { return truePred{} }

// Eq matches rows where column equals value.
func Eq(column string, value any) Predicate { return eqPred{column: column, value: value} }

// In matches rows where column is one of values. An empty In matches nothing.
func In(column string, values ...any) Predicate { return inPred{column: column, values: values} }

// And matches rows that satisfy every predicate. And() is True.
func And(preds ...Predicate) Predicate { return andPred(preds) }

type truePred struct{}

func (truePred) SQL(argIdx int) (string, []any, int) { return "TRUE", nil, argIdx }
func (truePred) Match(map[string]any) bool            { return true }

type eqPred struct {
	column string
	value  any
}

func (p eqPred) SQL(argIdx int) (string, []any, int) {
	return fmt.Sprintf("%s = $%d", QuoteIdentifier(p.column), argIdx), []any{p.value}, argIdx + 1
}

func (p eqPred) Match(row map[string]any) bool {
	v, ok := row[p.column]
	return ok && sameValue(v, p.value)
}

type inPred struct {
	column string
	values []any
}

func (p inPred) SQL(argIdx int) (string, []any, int) {
	if len(p.values) == 0 {
		return "FALSE", nil, argIdx
	}
	placeholders := make([]string, len(p.values))
	for i := range p.values {
		placeholders[i] = fmt.Sprintf("$%d", argIdx+i)
	}
	args := append([]any(nil), p.values...)
	return fmt.Sprintf("%s IN (%s)", QuoteIdentifier(p.column), strings.Join(placeholders, ", ")),
		args, argIdx + len(p.values)
}

func (p inPred) Match(row map[string]any) bool {
	v, ok := row[p.column]
	if !ok {
		return false
	}
	for _, want := range p.values {
		if sameValue(v, want) {
			return true
		}
	}
	return false
}

type andPred []Predicate

func (p andPred) SQL(argIdx int) (string, []any, int) {
	if len(p) == 0 {
		return "TRUE", nil, argIdx
	}
	clauses := make([]string, 0, len(p))
	var args []any
	for _, pred := range p {
		clause, predArgs, next := pred.SQL(argIdx)
		clauses = append(clauses, "("+clause+")")
		args = append(args, predArgs...)
		argIdx = next
	}
	return strings.Join(clauses, " AND "), args, argIdx
}

func (p andPred) Match(row map[string]any) bool {
	for _, pred := range p {
		if !pred.Match(row) {
			return false
		}
	}
	return true
}

// QuoteIdentifier quotes a SQL identifier, escaping embedded quotes.
func QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// sameValue compares a stored cell with a predicate operand by their
// driver representation, so pgtype wrappers compare equal to plain values.
func sameValue(stored, want any) bool {
	a, b := plain(stored), plain(want)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func plain(v any) any {
	if valuer, ok := v.(driver.Valuer); ok {
		dv, err := valuer.Value()
		if err != nil {
			return nil
		}
		return dv
	}
	return v
}
