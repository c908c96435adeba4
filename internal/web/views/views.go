// Package views holds the templ components returned to HTMX clients.
// Regenerate the _templ.go files with `templ generate` after editing a
// .templ source.
package views

import (
	"strings"

	"github.com/JonMunkholm/ingest/internal/core"
)

// Form field names posted back by MappingForm.
const (
	FieldTable    = "tableName"
	FieldFile     = "fileName"
	prefixExcel   = "excel."
	prefixDefault = "default."
	prefixEmpty   = "empty."
	prefixSelect  = "selected."
)

// ExcelField, DefaultField, EmptyDefaultField and SelectedField name the
// per-column inputs.
func ExcelField(column string) string        { return prefixExcel + column }
func DefaultField(column string) string      { return prefixDefault + column }
func EmptyDefaultField(column string) string { return prefixEmpty + column }
func SelectedField(column string) string     { return prefixSelect + column }

// suggest returns the header whose text matches the column name or comment.
func suggest(col core.ColumnDescriptor, headers []string) string {
	for _, h := range headers {
		if strings.EqualFold(h, col.Name) || (col.Comment != "" && strings.EqualFold(h, col.Comment)) {
			return h
		}
	}
	return ""
}

func columnLabel(col core.ColumnDescriptor) string {
	if col.Comment != "" {
		return col.Comment
	}
	return col.Name
}
