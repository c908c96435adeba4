package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/ingest/internal/spreadsheet"
)

// Audit columns appended to every imported row.
const (
	FieldCreateBy   = "create_by"
	FieldDeptID     = "dept_id"
	FieldCreateTime = "create_time"
	FieldUpdateTime = "update_time"
)

// AuditContext supplies the audit field values for one import.
type AuditContext struct {
	Actor Actor
	Now   time.Time
}

// Importer executes import plans against a BulkInserter.
type Importer struct {
	store BulkInserter
	now   func() time.Time
}

// NewImporter creates an importer writing to store.
func NewImporter(store BulkInserter) *Importer {
	return &Importer{store: store, now: time.Now}
}

// Execute resolves every record through plan, appends audit fields and
// writes all rows in one transaction. It returns the number of rows
// written; on any error nothing is committed.
func (im *Importer) Execute(ctx context.Context, plan *ImportPlan, records []spreadsheet.Record, audit AuditContext) (int, error) {
	if !plan.executed.CompareAndSwap(false, true) {
		return 0, ErrPlanExecuted
	}

	now := audit.Now
	if now.IsZero() {
		now = im.now()
	}
	now = now.Truncate(time.Second)

	fields := append(plan.Fields(), FieldCreateBy, FieldDeptID, FieldCreateTime, FieldUpdateTime)

	rows := make([][]any, 0, len(records))
	for i, rec := range records {
		row, err := resolveRow(plan, rec)
		if err != nil {
			var missing *MissingColumnError
			if errors.As(err, &missing) {
				return 0, err
			}
			return 0, &PartialImportError{Row: i, Err: err}
		}
		row = append(row, audit.Actor.UserID, audit.Actor.DeptID, now, now)
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return 0, nil
	}

	if err := im.store.BulkInsert(ctx, plan.Table, fields, rows); err != nil {
		var rowErr *RowError
		if errors.As(err, &rowErr) {
			return 0, &PartialImportError{Row: rowErr.Index, Err: rowErr.Err}
		}
		return 0, fmt.Errorf("bulk insert into %s: %w", plan.Table, err)
	}

	slog.Debug("import plan executed", "plan_id", plan.ID, "table", plan.Table, "rows", len(rows))
	return len(rows), nil
}

// resolveRow builds the values of one record in plan order.
func resolveRow(plan *ImportPlan, rec spreadsheet.Record) ([]any, error) {
	row := make([]any, 0, len(plan.Mappings)+4)
	for _, m := range plan.Mappings {
		var (
			v   any
			err error
		)
		if m.SourceColumn != nil {
			raw, ok := rec[*m.SourceColumn]
			if !ok {
				return nil, &MissingColumnError{Column: *m.SourceColumn}
			}
			v, err = Coerce(m.Column, raw)
		} else {
			v, err = CoerceLiteral(m.Column, *m.DefaultValue)
		}
		if err != nil {
			return nil, err
		}
		row = append(row, v)
	}
	return row, nil
}
