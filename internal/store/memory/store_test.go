package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/ingest/internal/core"
	"github.com/JonMunkholm/ingest/internal/query"
)

func testStore() *Store {
	return New([]core.TableDefinition{{
		Info: core.TableInfo{Key: "people"},
		Columns: []core.ColumnDescriptor{
			{Name: "id", DataType: "bigint", PrimaryKey: true},
			{Name: "name", DataType: "text"},
			{Name: "age", DataType: "integer", Nullable: true},
			{Name: "dept_id", DataType: "bigint", Nullable: true},
		},
	}})
}

func TestBulkInsert(t *testing.T) {
	s := testStore()
	ctx := context.Background()

	err := s.BulkInsert(ctx, "people", []string{"name", "age"}, [][]any{
		{pgtype.Text{String: "Ann", Valid: true}, pgtype.Int8{Int64: 30, Valid: true}},
		{pgtype.Text{String: "Bob", Valid: true}, pgtype.Int8{}},
	})
	if err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}

	rows := s.Rows("people")
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0]["id"] != int64(1) || rows[1]["id"] != int64(2) {
		t.Errorf("ids = %v, %v; want 1, 2", rows[0]["id"], rows[1]["id"])
	}
}

func TestBulkInsert_Atomic(t *testing.T) {
	ctx := context.Background()

	t.Run("not null", func(t *testing.T) {
		s := testStore()
		err := s.BulkInsert(ctx, "people", []string{"name"}, [][]any{
			{pgtype.Text{String: "Ann", Valid: true}},
			{pgtype.Text{}},
		})
		var rowErr *core.RowError
		if !errors.As(err, &rowErr) || rowErr.Index != 1 {
			t.Fatalf("err = %v, want RowError at 1", err)
		}
		if !errors.Is(err, ErrNotNull) {
			t.Errorf("err = %v, want ErrNotNull", err)
		}
		if n := len(s.Rows("people")); n != 0 {
			t.Errorf("stored %d rows after failure", n)
		}
	})

	t.Run("reject hook", func(t *testing.T) {
		s := testStore()
		s.Reject = func(_ string, index int, _ map[string]any) error {
			if index == 2 {
				return errors.New("duplicate key")
			}
			return nil
		}
		rows := [][]any{{"a"}, {"b"}, {"c"}}
		err := s.BulkInsert(ctx, "people", []string{"name"}, rows)
		var rowErr *core.RowError
		if !errors.As(err, &rowErr) || rowErr.Index != 2 {
			t.Fatalf("err = %v, want RowError at 2", err)
		}
		if n := len(s.Rows("people")); n != 0 {
			t.Errorf("stored %d rows after failure", n)
		}
	})

	t.Run("unknown column", func(t *testing.T) {
		s := testStore()
		err := s.BulkInsert(ctx, "people", []string{"nickname"}, [][]any{{"x"}})
		if !errors.Is(err, ErrUnknownColumn) {
			t.Errorf("err = %v, want ErrUnknownColumn", err)
		}
	})

	t.Run("unavailable", func(t *testing.T) {
		s := testStore()
		s.Unavailable = true
		err := s.BulkInsert(ctx, "people", []string{"name"}, [][]any{{"x"}})
		if !errors.Is(err, core.ErrStorageUnavailable) {
			t.Errorf("err = %v, want ErrStorageUnavailable", err)
		}
	})
}

func TestPage(t *testing.T) {
	s := testStore()
	ctx := context.Background()

	var rows [][]any
	for i := 0; i < 5; i++ {
		dept := int64(10)
		if i%2 == 1 {
			dept = 20
		}
		rows = append(rows, []any{"n", dept})
	}
	if err := s.BulkInsert(ctx, "people", []string{"name", "dept_id"}, rows); err != nil {
		t.Fatal(err)
	}

	page, err := s.Page(ctx, "people", query.Eq("dept_id", int64(10)), query.PageRequest{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 || len(page.Rows) != 2 {
		t.Fatalf("total=%d rows=%d, want 3 and 2", page.Total, len(page.Rows))
	}
	if page.Rows[0]["id"] != int64(5) {
		t.Errorf("first id = %v, want newest (5)", page.Rows[0]["id"])
	}

	page, err = s.Page(ctx, "people", query.True(), query.PageRequest{Page: 9})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 5 || len(page.Rows) != 0 {
		t.Errorf("past end: total=%d rows=%d", page.Total, len(page.Rows))
	}
}

func TestDescribeColumns(t *testing.T) {
	s := testStore()
	cols, err := s.DescribeColumns(context.Background(), "people")
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 4 || cols[2].Type != core.TypeInteger {
		t.Errorf("cols = %+v", cols)
	}

	cols, err = s.DescribeColumns(context.Background(), "missing")
	if err != nil || len(cols) != 0 {
		t.Errorf("unknown table: cols=%v err=%v", cols, err)
	}
}
