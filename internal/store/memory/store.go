// Package memory is an in-process storage collaborator built from the
// registered table definitions. It backs tests and local runs without a
// database.
package memory

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"

	"github.com/JonMunkholm/ingest/internal/core"
	"github.com/JonMunkholm/ingest/internal/query"
)

// ErrUnknownColumn is returned for a write naming a column the table lacks.
var ErrUnknownColumn = errors.New("column does not exist")

// ErrNotNull is returned when a NOT NULL column receives a null value.
var ErrNotNull = errors.New("null value violates not-null constraint")

// RejectFunc may refuse a row before it is staged. index is the row's
// position in the BulkInsert call.
type RejectFunc func(table string, index int, row map[string]any) error

// Store keeps rows in memory. Writes are staged and applied only when the
// whole batch is accepted.
type Store struct {
	mu     sync.RWMutex
	tables map[string][]core.ColumnDescriptor
	rows   map[string][]map[string]any
	nextID map[string]int64

	// Reject, when set, is consulted for every row.
	Reject RejectFunc
	// Unavailable makes every call fail with core.ErrStorageUnavailable.
	Unavailable bool
}

// New creates a store holding the given tables.
func New(defs []core.TableDefinition) *Store {
	s := &Store{
		tables: make(map[string][]core.ColumnDescriptor, len(defs)),
		rows:   make(map[string][]map[string]any, len(defs)),
		nextID: make(map[string]int64, len(defs)),
	}
	for _, def := range defs {
		cols := make([]core.ColumnDescriptor, len(def.Columns))
		for i, c := range def.Columns {
			if c.Type == "" {
				c.Type = core.ParseColumnType(c.DataType)
			}
			cols[i] = c
		}
		s.tables[def.Info.Key] = cols
	}
	return s
}

// FromRegistry creates a store holding every registered table.
func FromRegistry() *Store {
	return New(core.All())
}

func (s *Store) unavailable(op string) error {
	if !s.Unavailable {
		return nil
	}
	return &core.StorageError{Op: op, Err: errors.New("memory store offline")}
}

// Ping reports whether the store accepts calls.
func (s *Store) Ping(context.Context) error {
	return s.unavailable("ping")
}

// DescribeColumns returns the declared columns of table.
func (s *Store) DescribeColumns(_ context.Context, table string) ([]core.ColumnDescriptor, error) {
	if err := s.unavailable("describe " + table); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.ColumnDescriptor(nil), s.tables[table]...), nil
}

// BulkInsert validates every row, then appends them all. A rejected row
// is reported as *core.RowError and nothing is stored.
func (s *Store) BulkInsert(ctx context.Context, table string, fields []string, rows [][]any) error {
	if err := s.unavailable("insert into " + table); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cols, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("relation %q does not exist", table)
	}
	byName := make(map[string]core.ColumnDescriptor, len(cols))
	for _, c := range cols {
		byName[c.Name] = c
	}
	for _, f := range fields {
		if _, ok := byName[f]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, f)
		}
	}

	staged := make([]map[string]any, 0, len(rows))
	id := s.nextID[table]
	for i, values := range rows {
		if len(values) != len(fields) {
			return &core.RowError{Index: i, Err: fmt.Errorf("expected %d values, got %d", len(fields), len(values))}
		}

		row := make(map[string]any, len(cols))
		for j, f := range fields {
			row[f] = values[j]
		}
		for _, c := range cols {
			if c.PrimaryKey {
				if _, set := row[c.Name]; !set {
					id++
					row[c.Name] = id
				}
				continue
			}
			if !c.Nullable && isNull(row[c.Name]) {
				return &core.RowError{Index: i, Err: fmt.Errorf("%w: %s", ErrNotNull, c.Name)}
			}
		}

		if s.Reject != nil {
			if err := s.Reject(table, i, row); err != nil {
				return &core.RowError{Index: i, Err: err}
			}
		}
		staged = append(staged, row)
	}

	s.rows[table] = append(s.rows[table], staged...)
	s.nextID[table] = id
	return nil
}

// Page returns rows matching where, newest first.
func (s *Store) Page(_ context.Context, table string, where query.Predicate, req query.PageRequest) (query.Page, error) {
	if err := s.unavailable("list " + table); err != nil {
		return query.Page{}, err
	}
	req = req.Normalize()

	s.mu.RLock()
	var matched []map[string]any
	for _, row := range s.rows[table] {
		if where.Match(row) {
			matched = append(matched, row)
		}
	}
	s.mu.RUnlock()

	// Insertion order is id order; reverse it.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}

	page := query.Page{Rows: []map[string]any{}, Total: int64(len(matched)), Page: req.Page, PageSize: req.PageSize}
	start := req.Offset()
	if start < len(matched) {
		end := min(start+req.PageSize, len(matched))
		page.Rows = matched[start:end]
	}
	return page, nil
}

// Rows returns a copy of every stored row of table in insertion order.
func (s *Store) Rows(table string) []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]map[string]any(nil), s.rows[table]...)
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	if valuer, ok := v.(driver.Valuer); ok {
		dv, err := valuer.Value()
		return err == nil && dv == nil
	}
	return false
}
