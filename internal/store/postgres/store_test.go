package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/ingest/internal/core"
)

func TestInsertSQL(t *testing.T) {
	got := insertSQL(pgx.Identifier{"public", "student_info"}, []string{"name", "create_by"})
	want := `INSERT INTO "public"."student_info" ("name", "create_by") VALUES ($1, $2)`
	if got != want {
		t.Errorf("insertSQL =\n%s\nwant\n%s", got, want)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"not null violation", &pgconn.PgError{Code: "23502"}, false},
		{"invalid text", &pgconn.PgError{Code: "22P02"}, false},
		{"empty code", &pgconn.PgError{}, false},
		{"eof", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), true},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"plain", errors.New("cannot encode"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransient(tt.err); got != tt.want {
				t.Errorf("isTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	err := classify("commit", &pgconn.PgError{Code: "08003"})
	if !errors.Is(err, core.ErrStorageUnavailable) {
		t.Errorf("transient: %v does not match ErrStorageUnavailable", err)
	}

	err = classify("commit", &pgconn.PgError{Code: "23505"})
	if errors.Is(err, core.ErrStorageUnavailable) {
		t.Errorf("data error classified as unavailable: %v", err)
	}
	if !strings.HasPrefix(err.Error(), "commit: ") {
		t.Errorf("err = %q, want commit prefix", err)
	}
}

func TestCreateTableSQL(t *testing.T) {
	stmts := createTableSQL(pgx.Identifier{"public", "student_info"}, []core.ColumnDescriptor{
		{Name: "id", DataType: "bigint", PrimaryKey: true},
		{Name: "name", DataType: "varchar(64)", Comment: "Student's name"},
		{Name: "grade", DataType: "integer", Nullable: true},
	})
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2", len(stmts))
	}
	for _, want := range []string{
		`CREATE TABLE IF NOT EXISTS "public"."student_info"`,
		`"id" bigint GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY`,
		`"name" varchar(64) NOT NULL`,
		`"grade" integer`,
	} {
		if !strings.Contains(stmts[0], want) {
			t.Errorf("create statement missing %q:\n%s", want, stmts[0])
		}
	}
	if strings.Contains(stmts[0], `"grade" integer NOT NULL`) {
		t.Errorf("nullable column rendered NOT NULL")
	}
	want := `COMMENT ON COLUMN "public"."student_info"."name" IS 'Student''s name'`
	if stmts[1] != want {
		t.Errorf("comment = %q, want %q", stmts[1], want)
	}
}
