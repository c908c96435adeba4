package core

import (
	"context"
	"strings"

	"github.com/JonMunkholm/ingest/internal/query"
)

// ColumnType is the coercion class of a column's declared storage type.
type ColumnType string

const (
	TypeText      ColumnType = "text"
	TypeInteger   ColumnType = "integer"
	TypeNumeric   ColumnType = "numeric"
	TypeBool      ColumnType = "bool"
	TypeDate      ColumnType = "date"
	TypeTimestamp ColumnType = "timestamp"
)

var integerTypes = map[string]bool{
	"int": true, "integer": true, "int2": true, "int4": true, "int8": true,
	"tinyint": true, "smallint": true, "mediumint": true, "bigint": true,
	"serial": true, "bigserial": true,
}

// ParseColumnType classifies a declared storage type such as "varchar(64)",
// "bigint" or "timestamp with time zone". Unrecognized types are text.
func ParseColumnType(dataType string) ColumnType {
	t := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(dataType)), " unsigned")
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}

	switch {
	case t == "date":
		return TypeDate
	case strings.HasPrefix(t, "timestamp"), t == "datetime", t == "timestamptz":
		return TypeTimestamp
	case t == "boolean", t == "bool":
		return TypeBool
	case integerTypes[t]:
		return TypeInteger
	case t == "numeric", t == "decimal", t == "real", t == "float",
		t == "double", t == "double precision", t == "money":
		return TypeNumeric
	default:
		return TypeText
	}
}

// ColumnDescriptor is the metadata of one table column.
type ColumnDescriptor struct {
	Name       string     `json:"columnName"`
	DataType   string     `json:"columnType"`
	Type       ColumnType `json:"type"`
	Nullable   bool       `json:"nullable"`
	Editable   bool       `json:"editable"`
	PrimaryKey bool       `json:"primaryKey"`
	Comment    string     `json:"columnComment"`
}

// TableInfo describes a table that may be targeted by imports.
type TableInfo struct {
	Key   string `json:"tableName"` // table name in storage
	Group string `json:"group"`
	Label string `json:"label"`
}

// TableDefinition registers an importable table. Columns is the declared
// schema; collaborators that cannot introspect storage use it directly.
type TableDefinition struct {
	Info    TableInfo
	Columns []ColumnDescriptor
}

// SchemaDescriber reports the columns of a storage table in ordinal order.
// An unknown table yields no columns and no error.
type SchemaDescriber interface {
	DescribeColumns(ctx context.Context, table string) ([]ColumnDescriptor, error)
}

// BulkInserter writes rows into a table in one transaction. Either every
// row is committed or none is. A rejected row is reported as *RowError.
type BulkInserter interface {
	BulkInsert(ctx context.Context, table string, fields []string, rows [][]any) error
}

// Pager lists rows of a table restricted by a predicate.
type Pager interface {
	Page(ctx context.Context, table string, where query.Predicate, req query.PageRequest) (query.Page, error)
}

// Store is the full storage collaborator used by the service.
type Store interface {
	SchemaDescriber
	BulkInserter
	Pager
}
