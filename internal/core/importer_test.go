package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/ingest/internal/spreadsheet"
)

var auditNow = time.Date(2024, 3, 15, 9, 30, 12, 500, time.UTC)

func buildPlan(t *testing.T, fields ...FieldMapping) *ImportPlan {
	t.Helper()
	plan, err := NewResolver(NewColumnRegistry(newFakeStore())).BuildPlan(context.Background(), "student_info", fields)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	return plan
}

func TestExecute(t *testing.T) {
	registerStudents(t)
	store := newFakeStore()
	im := NewImporter(store)
	plan := buildPlan(t, source("name", "Name"), source("sex", "Sex"), literal("grade", "3"))

	records := []spreadsheet.Record{
		{"Name": "Ann", "Sex": "F"},
		{"Name": "Bob", "Sex": ""},
	}
	n, err := im.Execute(context.Background(), plan, records, AuditContext{Actor: Actor{UserID: 7, DeptID: 3}, Now: auditNow})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n != 2 || len(store.rows) != 2 {
		t.Fatalf("wrote %d rows (store has %d), want 2", n, len(store.rows))
	}

	wantFields := []string{"name", "sex", "grade", "create_by", "dept_id", "create_time", "update_time"}
	if len(store.fields) != len(wantFields) {
		t.Fatalf("fields = %v, want %v", store.fields, wantFields)
	}
	for i := range wantFields {
		if store.fields[i] != wantFields[i] {
			t.Errorf("field %d = %q, want %q", i, store.fields[i], wantFields[i])
		}
	}

	first := store.rows[0]
	if first[0] != (pgtype.Text{String: "Ann", Valid: true}) || first[2] != (pgtype.Int8{Int64: 3, Valid: true}) {
		t.Errorf("row 0 values = %v", first[:3])
	}
	if store.rows[1][1] != (pgtype.Text{}) {
		t.Errorf("empty nullable cell = %#v, want NULL text", store.rows[1][1])
	}

	truncated := auditNow.Truncate(time.Second)
	for i, row := range store.rows {
		if row[3] != int64(7) || row[4] != int64(3) {
			t.Errorf("row %d actor fields = %v, %v", i, row[3], row[4])
		}
		if row[5] != truncated || row[6] != truncated {
			t.Errorf("row %d timestamps = %v, %v; want %v", i, row[5], row[6], truncated)
		}
	}
}

func TestExecute_TextStoredVerbatim(t *testing.T) {
	registerStudents(t)
	store := newFakeStore()
	plan := buildPlan(t,
		source("name", "Name"),
		source("sex", "Sex"),
		literal("phone_number", ""),
	)

	records := []spreadsheet.Record{{"Name": "  Ann  ", "Sex": "=F"}}
	if _, err := NewImporter(store).Execute(context.Background(), plan, records, AuditContext{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	row := store.rows[0]
	want := []pgtype.Text{
		{String: "  Ann  ", Valid: true},
		{String: "=F", Valid: true},
		{String: "", Valid: true},
	}
	for i, w := range want {
		if row[i] != w {
			t.Errorf("field %s = %#v, want %#v", store.fields[i], row[i], w)
		}
	}
}

func TestExecute_EmptyDefaultOnRequiredColumn(t *testing.T) {
	registerStudents(t)
	store := newFakeStore()
	plan := buildPlan(t, literal("name", ""))

	n, err := NewImporter(store).Execute(context.Background(), plan,
		[]spreadsheet.Record{{"Name": "Ann"}, {"Name": "Bob"}}, AuditContext{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n != 2 {
		t.Fatalf("wrote %d rows, want 2", n)
	}
	for i, row := range store.rows {
		if row[0] != (pgtype.Text{String: "", Valid: true}) {
			t.Errorf("row %d name = %#v, want empty string", i, row[0])
		}
	}
}

func TestExecute_EmptyPlanWritesAuditRows(t *testing.T) {
	registerStudents(t)
	store := newFakeStore()
	plan := buildPlan(t, FieldMapping{Column: ColumnDescriptor{Name: "name"}, SourceColumn: ptr("Name")})

	records := []spreadsheet.Record{{"Name": "Ann"}, {"Name": "Bob"}, {"Name": "Cy"}}
	n, err := NewImporter(store).Execute(context.Background(), plan, records, AuditContext{Actor: Actor{UserID: 1, DeptID: 1}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n != 3 {
		t.Errorf("wrote %d rows, want 3", n)
	}
	for _, row := range store.rows {
		if len(row) != 4 {
			t.Errorf("row = %v, want audit fields only", row)
		}
	}
}

func TestExecute_NoRecords(t *testing.T) {
	registerStudents(t)
	store := newFakeStore()
	plan := buildPlan(t, source("name", "Name"))

	n, err := NewImporter(store).Execute(context.Background(), plan, nil, AuditContext{})
	if err != nil || n != 0 {
		t.Fatalf("Execute = %d, %v; want 0, nil", n, err)
	}
	if store.inserts != 0 {
		t.Errorf("BulkInsert called %d times for empty input", store.inserts)
	}
}

func TestExecute_MissingColumn(t *testing.T) {
	registerStudents(t)
	store := newFakeStore()
	plan := buildPlan(t, source("name", "Name"), source("sex", "Sex"))

	_, err := NewImporter(store).Execute(context.Background(), plan,
		[]spreadsheet.Record{{"Name": "Ann"}}, AuditContext{})

	var missing *MissingColumnError
	if !errors.As(err, &missing) || missing.Column != "Sex" {
		t.Fatalf("err = %v, want MissingColumnError for Sex", err)
	}
	if store.inserts != 0 {
		t.Error("storage written despite missing column")
	}
}

func TestExecute_CoercionFailure(t *testing.T) {
	registerStudents(t)
	store := newFakeStore()
	plan := buildPlan(t, source("name", "Name"), source("grade", "Grade"))

	records := []spreadsheet.Record{
		{"Name": "Ann", "Grade": "3"},
		{"Name": "Bob", "Grade": "4"},
		{"Name": "Cy", "Grade": "fourth"},
	}
	_, err := NewImporter(store).Execute(context.Background(), plan, records, AuditContext{})

	var partial *PartialImportError
	if !errors.As(err, &partial) || partial.Row != 2 {
		t.Fatalf("err = %v, want PartialImportError at row 2", err)
	}
	if store.inserts != 0 {
		t.Error("storage written despite invalid row")
	}
}

func TestExecute_RowRejected(t *testing.T) {
	registerStudents(t)
	store := newFakeStore()
	store.insertErr = &RowError{Index: 1, Err: errors.New("duplicate key value")}
	plan := buildPlan(t, source("name", "Name"))

	_, err := NewImporter(store).Execute(context.Background(), plan,
		[]spreadsheet.Record{{"Name": "Ann"}, {"Name": "Ann"}}, AuditContext{})

	var partial *PartialImportError
	if !errors.As(err, &partial) || partial.Row != 1 {
		t.Fatalf("err = %v, want PartialImportError at row 1", err)
	}
	if !errors.Is(err, ErrPartialImport) {
		t.Error("error does not match ErrPartialImport")
	}
}

func TestExecute_StorageUnavailable(t *testing.T) {
	registerStudents(t)
	store := newFakeStore()
	cause := errors.New("connection reset by peer")
	store.insertErr = &StorageError{Op: "begin", Err: cause}
	plan := buildPlan(t, source("name", "Name"))

	_, err := NewImporter(store).Execute(context.Background(), plan, []spreadsheet.Record{{"Name": "Ann"}}, AuditContext{})
	if !errors.Is(err, ErrStorageUnavailable) || !errors.Is(err, cause) {
		t.Errorf("err = %v, want ErrStorageUnavailable wrapping the cause", err)
	}
	if store.inserts != 1 {
		t.Errorf("BulkInsert called %d times, want exactly 1 (no retry)", store.inserts)
	}
}

func TestExecute_PlanRunsOnce(t *testing.T) {
	registerStudents(t)
	store := newFakeStore()
	im := NewImporter(store)
	plan := buildPlan(t, source("name", "Name"))
	records := []spreadsheet.Record{{"Name": "Ann"}}

	if _, err := im.Execute(context.Background(), plan, records, AuditContext{}); err != nil {
		t.Fatal(err)
	}
	if _, err := im.Execute(context.Background(), plan, records, AuditContext{}); !errors.Is(err, ErrPlanExecuted) {
		t.Errorf("second Execute = %v, want ErrPlanExecuted", err)
	}
	if len(store.rows) != 1 {
		t.Errorf("store has %d rows, want 1", len(store.rows))
	}
}
