package core

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/JonMunkholm/ingest/internal/filegate"
	"github.com/JonMunkholm/ingest/internal/spreadsheet"
)

// FieldMapping binds one table column to a spreadsheet column or a default
// literal. When Selected, exactly one of SourceColumn and DefaultValue is
// set; unselected mappings are ignored.
type FieldMapping struct {
	Column       ColumnDescriptor `json:"baseColumn"`
	SourceColumn *string          `json:"excelColumn,omitempty"`
	DefaultValue *string          `json:"defaultValue,omitempty"`
	Selected     bool             `json:"selected"`
}

func (m FieldMapping) hasSource() bool {
	return m.SourceColumn != nil && *m.SourceColumn != ""
}

func (m FieldMapping) hasDefault() bool {
	return m.DefaultValue != nil
}

// ImportPlan is a validated, ordered set of selected mappings for one
// table. A plan executes at most once.
type ImportPlan struct {
	ID       uuid.UUID
	Table    string
	Mappings []FieldMapping

	executed atomic.Bool
}

// Fields returns the target column names in plan order.
func (p *ImportPlan) Fields() []string {
	fields := make([]string, len(p.Mappings))
	for i, m := range p.Mappings {
		fields[i] = m.Column.Name
	}
	return fields
}

// Preview is the analysis result offered to the user for mapping.
type Preview struct {
	ExcelColumns []string           `json:"excelColumns"`
	TableColumns []ColumnDescriptor `json:"tableColumns"`
	FileName     string             `json:"fileName"`
	URL          string             `json:"url"`
}

// Resolver combines column metadata with spreadsheet headers and validates
// user-confirmed mappings.
type Resolver struct {
	columns *ColumnRegistry
}

// NewResolver creates a resolver backed by columns.
func NewResolver(columns *ColumnRegistry) *Resolver {
	return &Resolver{columns: columns}
}

// Analyze returns the spreadsheet headers and editable table columns for
// a stored file. It performs no writes and may be repeated.
func (r *Resolver) Analyze(ctx context.Context, table string, file filegate.StoredFile) (Preview, error) {
	cols, err := r.columns.ColumnsOf(ctx, table)
	if err != nil {
		return Preview{}, err
	}

	headers, err := spreadsheet.Headers(file.Path)
	if err != nil {
		return Preview{}, storedFileError(file.URL, err)
	}

	return Preview{
		ExcelColumns: headers,
		TableColumns: cols,
		FileName:     file.Name,
		URL:          file.URL,
	}, nil
}

// BuildPlan validates candidate mappings against the table's editable
// columns and returns a plan of the selected ones in input order. Column
// descriptors are taken from the registry, not from the candidates.
func (r *Resolver) BuildPlan(ctx context.Context, table string, candidates []FieldMapping) (*ImportPlan, error) {
	cols, err := r.columns.ColumnsOf(ctx, table)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]ColumnDescriptor, len(cols))
	for _, c := range cols {
		byName[c.Name] = c
	}

	plan := &ImportPlan{ID: uuid.New(), Table: table, Mappings: []FieldMapping{}}
	seen := make(map[string]bool)

	for _, m := range candidates {
		if !m.Selected {
			continue
		}
		field := m.Column.Name

		switch {
		case m.hasSource() && m.hasDefault():
			return nil, &MappingError{Field: field, Reason: "both a source column and a default value are set"}
		case !m.hasSource() && !m.hasDefault():
			return nil, &MappingError{Field: field, Reason: "a source column or a default value is required"}
		}

		desc, ok := byName[field]
		if !ok {
			return nil, &MappingError{Field: field, Reason: "not an editable column"}
		}
		if seen[field] {
			return nil, &MappingError{Field: field, Reason: "mapped more than once"}
		}
		seen[field] = true

		resolved := FieldMapping{Column: desc, Selected: true}
		if m.hasSource() {
			src := *m.SourceColumn
			resolved.SourceColumn = &src
		} else {
			def := *m.DefaultValue
			resolved.DefaultValue = &def
		}
		plan.Mappings = append(plan.Mappings, resolved)
	}

	return plan, nil
}

// CheckHeaders reports the first source column, in plan order, that is not
// among headers. It lets a file without data rows fail like one with rows.
func (p *ImportPlan) CheckHeaders(headers []string) error {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	for _, m := range p.Mappings {
		if m.SourceColumn != nil && !present[*m.SourceColumn] {
			return &MissingColumnError{Column: *m.SourceColumn}
		}
	}
	return nil
}

// String is used in logs.
func (p *ImportPlan) String() string {
	return fmt.Sprintf("plan %s (%s, %d fields)", p.ID, p.Table, len(p.Mappings))
}
