package core

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

var (
	registry   = make(map[string]TableDefinition)
	registryMu sync.RWMutex
)

// Register adds a table to the import allow-list.
// Panics if a table with the same key is already registered.
func Register(def TableDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("table already registered: %s", def.Info.Key))
	}
	if def.Info.Label == "" {
		def.Info.Label = def.Info.Key
	}
	for i := range def.Columns {
		if def.Columns[i].Type == "" {
			def.Columns[i].Type = ParseColumnType(def.Columns[i].DataType)
		}
	}

	registry[def.Info.Key] = def
}

// Get returns a table definition by key.
func Get(key string) (TableDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns every registered table, sorted by group then key.
func All() []TableDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]TableDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Info.Group != result[j].Info.Group {
			return result[i].Info.Group < result[j].Info.Group
		}
		return result[i].Info.Key < result[j].Info.Key
	})

	return result
}

// Clear removes all registered tables. Used by tests.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]TableDefinition)
}

// SystemColumns are filled by the importer or the database and never
// offered for mapping.
var SystemColumns = []string{"id", "create_by", "create_time", "update_by", "update_time", "dept_id", "del_flag"}

func isSystemColumn(name string) bool {
	for _, c := range SystemColumns {
		if c == name {
			return true
		}
	}
	return false
}

// ColumnRegistry resolves and caches the editable columns of registered
// tables. Concurrent first lookups of one table share a single query.
type ColumnRegistry struct {
	schema SchemaDescriber

	mu    sync.RWMutex
	cache map[string][]ColumnDescriptor
	group singleflight.Group
}

// NewColumnRegistry creates a registry backed by schema.
func NewColumnRegistry(schema SchemaDescriber) *ColumnRegistry {
	return &ColumnRegistry{
		schema: schema,
		cache:  make(map[string][]ColumnDescriptor),
	}
}

// ColumnsOf returns the editable columns of table in ordinal order,
// excluding primary keys and system columns. The result must not be
// modified.
func (r *ColumnRegistry) ColumnsOf(ctx context.Context, table string) ([]ColumnDescriptor, error) {
	if _, ok := Get(table); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}

	r.mu.RLock()
	cols, ok := r.cache[table]
	r.mu.RUnlock()
	if ok {
		return cols, nil
	}

	v, err, _ := r.group.Do(table, func() (any, error) {
		described, err := r.schema.DescribeColumns(ctx, table)
		if err != nil {
			return nil, err
		}

		editable := make([]ColumnDescriptor, 0, len(described))
		for _, c := range described {
			if c.PrimaryKey || isSystemColumn(c.Name) {
				continue
			}
			if c.Type == "" {
				c.Type = ParseColumnType(c.DataType)
			}
			c.Editable = true
			editable = append(editable, c)
		}
		if len(described) == 0 {
			return nil, fmt.Errorf("%w: %q has no columns", ErrUnknownTable, table)
		}

		r.mu.Lock()
		r.cache[table] = editable
		r.mu.Unlock()
		return editable, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]ColumnDescriptor), nil
}

// Column returns the editable column named name.
func (r *ColumnRegistry) Column(ctx context.Context, table, name string) (ColumnDescriptor, bool, error) {
	cols, err := r.ColumnsOf(ctx, table)
	if err != nil {
		return ColumnDescriptor{}, false, err
	}
	for _, c := range cols {
		if c.Name == name {
			return c, true, nil
		}
	}
	return ColumnDescriptor{}, false, nil
}
