package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func col(name, dataType string, nullable bool) ColumnDescriptor {
	return ColumnDescriptor{Name: name, DataType: dataType, Type: ParseColumnType(dataType), Nullable: nullable}
}

func TestParseColumnType(t *testing.T) {
	tests := map[string]ColumnType{
		"varchar(64)":                 TypeText,
		"character varying":           TypeText,
		"char(1)":                     TypeText,
		"point":                       TypeText,
		"bigint":                      TypeInteger,
		"INT(11) unsigned":            TypeInteger,
		"smallint":                    TypeInteger,
		"numeric(10,2)":               TypeNumeric,
		"double precision":            TypeNumeric,
		"boolean":                     TypeBool,
		"date":                        TypeDate,
		"timestamp without time zone": TypeTimestamp,
		"datetime":                    TypeTimestamp,
	}
	for in, want := range tests {
		if got := ParseColumnType(in); got != want {
			t.Errorf("ParseColumnType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		col  ColumnDescriptor
		raw  string
		want any
	}{
		{"text verbatim", col("name", "varchar(64)", false), "  Ann ", pgtype.Text{String: "  Ann ", Valid: true}},
		{"text leading equals", col("sex", "char(1)", false), "=F", pgtype.Text{String: "=F", Valid: true}},
		{"text formula kept", col("code", "text", false), `="007"`, pgtype.Text{String: `="007"`, Valid: true}},
		{"text whitespace only", col("note", "text", true), "  ", pgtype.Text{String: "  ", Valid: true}},
		{"integer formula wrapper", col("grade", "integer", true), `="7"`, pgtype.Int8{Int64: 7, Valid: true}},
		{"integer", col("grade", "integer", true), "3", pgtype.Int8{Int64: 3, Valid: true}},
		{"integer rendered as float", col("grade", "integer", true), "36.0", pgtype.Int8{Int64: 36, Valid: true}},
		{"integer with separator", col("grade", "bigint", true), "1,200", pgtype.Int8{Int64: 1200, Valid: true}},
		{"bool", col("active", "boolean", true), "Yes", pgtype.Bool{Bool: true, Valid: true}},
		{"date iso", col("birthday", "date", true), "2010-05-04",
			pgtype.Date{Time: time.Date(2010, 5, 4, 0, 0, 0, 0, time.UTC), Valid: true}},
		{"date excel serial", col("birthday", "date", true), "45366",
			pgtype.Date{Time: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), Valid: true}},
		{"empty nullable text", col("gender", "char(1)", true), "", pgtype.Text{}},
		{"empty nullable integer", col("grade", "integer", true), "  ", pgtype.Int8{}},
		{"empty nullable date", col("birthday", "date", true), "", pgtype.Date{}},
		{"empty nullable timestamp", col("seen_at", "timestamp", true), "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.col, tt.raw)
			if err != nil {
				t.Fatalf("Coerce(%q): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("Coerce(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCoerce_Timestamp(t *testing.T) {
	got, err := Coerce(col("seen_at", "timestamp", false), "2024-03-15 09:30:00")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 3, 15, 9, 30, 0, 0, time.Local)
	if ts, ok := got.(time.Time); !ok || !ts.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	got, err = Coerce(col("seen_at", "timestamp", false), "2024-03-15")
	if err != nil {
		t.Fatal(err)
	}
	if ts := got.(time.Time); ts.Hour() != 0 || ts.Day() != 15 {
		t.Errorf("bare date = %v, want midnight on the 15th", ts)
	}
}

func TestCoerce_Errors(t *testing.T) {
	tests := []struct {
		name    string
		col     ColumnDescriptor
		raw     string
		wantMsg string
	}{
		{"required", col("name", "varchar(64)", false), "", "required field is empty"},
		{"required after cleaning", col("grade", "integer", false), `=""`, "required field is empty"},
		{"bad integer", col("grade", "integer", true), "three", "invalid number"},
		{"fractional integer", col("grade", "integer", true), "3.5", "invalid number"},
		{"bad numeric", col("price", "numeric", true), "12abc", "invalid number"},
		{"bad bool", col("active", "bool", true), "maybe", "invalid boolean"},
		{"bad date", col("birthday", "date", true), "not a date", "invalid date"},
		{"bad timestamp", col("seen_at", "timestamp", true), "soon", "invalid date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Coerce(tt.col, tt.raw)
			if err == nil {
				t.Fatalf("Coerce(%q) succeeded, want error", tt.raw)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("err = %q, want it to contain %q", err, tt.wantMsg)
			}
			if !strings.HasPrefix(err.Error(), tt.col.Name+":") {
				t.Errorf("err = %q, want column name prefix", err)
			}
		})
	}

	_, err := Coerce(col("name", "text", false), "")
	if !errors.Is(err, errRequired) {
		t.Errorf("err = %v, want errRequired", err)
	}
}

func TestCoerceLiteral(t *testing.T) {
	tests := []struct {
		name string
		col  ColumnDescriptor
		lit  string
		want any
	}{
		{"empty text not null", col("name", "varchar(64)", false), "", pgtype.Text{String: "", Valid: true}},
		{"empty text nullable", col("phone_number", "varchar(32)", true), "", pgtype.Text{String: "", Valid: true}},
		{"text verbatim", col("sex", "char(1)", false), " =F ", pgtype.Text{String: " =F ", Valid: true}},
		{"integer", col("grade", "integer", true), " 3 ", pgtype.Int8{Int64: 3, Valid: true}},
		{"empty integer nullable", col("grade", "integer", true), "", pgtype.Int8{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CoerceLiteral(tt.col, tt.lit)
			if err != nil {
				t.Fatalf("CoerceLiteral(%q): %v", tt.lit, err)
			}
			if got != tt.want {
				t.Errorf("CoerceLiteral(%q) = %#v, want %#v", tt.lit, got, tt.want)
			}
		})
	}

	if _, err := CoerceLiteral(col("grade", "integer", false), ""); !errors.Is(err, errRequired) {
		t.Errorf("empty integer default on NOT NULL column: err = %v, want errRequired", err)
	}
}

func TestToPgNumeric(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
		want      float64
	}{
		{"123.45", true, 123.45},
		{".99", true, 0.99},
		{"$1,234.50", true, 1234.5},
		{"(1,234.50)", true, -1234.5},
		{"€12", true, 12},
		{"", false, 0},
		{"12.3.4", false, 0},
		{"abc", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ToPgNumeric(tt.input)
			if got.Valid != tt.wantValid {
				t.Fatalf("ToPgNumeric(%q).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
			}
			if !tt.wantValid {
				return
			}
			f, err := got.Float64Value()
			if err != nil {
				t.Fatal(err)
			}
			if f.Float64 != tt.want {
				t.Errorf("ToPgNumeric(%q) = %v, want %v", tt.input, f.Float64, tt.want)
			}
		})
	}
}

func TestToPgDate(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2024-03-15", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"2024/3/5", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"03/15/2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"Jan 2, 2006", time.Date(2006, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"20240315", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"1/2/06", time.Date(2006, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"2024-03-15 18:45:00", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ToPgDate(tt.input)
			if !got.Valid {
				t.Fatalf("ToPgDate(%q) invalid", tt.input)
			}
			if !got.Time.Equal(tt.want) {
				t.Errorf("ToPgDate(%q) = %v, want %v", tt.input, got.Time, tt.want)
			}
		})
	}

	for _, bad := range []string{"", "yesterday", "13/45/2024", "0"} {
		if got := ToPgDate(bad); got.Valid {
			t.Errorf("ToPgDate(%q) = %v, want invalid", bad, got.Time)
		}
	}
}

func TestToPgDate_TwoDigitYearPivot(t *testing.T) {
	old := TwoDigitYearPivot
	defer func() { TwoDigitYearPivot = old }()

	// Years more than the pivot ahead of now go back a century.
	TwoDigitYearPivot = 0
	future := time.Now().Year() + 10
	input := "1/2/" + time.Date(future, 1, 1, 0, 0, 0, 0, time.UTC).Format("06")
	got := ToPgDate(input)
	if !got.Valid {
		t.Fatalf("ToPgDate(%q) invalid", input)
	}
	if got.Time.Year() != future-100 {
		t.Errorf("ToPgDate(%q) year = %d, want %d", input, got.Time.Year(), future-100)
	}
}

func TestToPgBool(t *testing.T) {
	for _, s := range []string{"true", "T", "yes", "Y", "1", " TRUE "} {
		if got := ToPgBool(s); !got.Valid || !got.Bool {
			t.Errorf("ToPgBool(%q) = %+v, want true", s, got)
		}
	}
	for _, s := range []string{"false", "f", "No", "n", "0"} {
		if got := ToPgBool(s); !got.Valid || got.Bool {
			t.Errorf("ToPgBool(%q) = %+v, want false", s, got)
		}
	}
	for _, s := range []string{"", "2", "maybe"} {
		if got := ToPgBool(s); got.Valid {
			t.Errorf("ToPgBool(%q) valid, want invalid", s)
		}
	}
}

func TestCleanCell(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"hello", "hello"},
		{"  hello  ", "hello"},
		{`="12345"`, "12345"},
		{`  ="test"  `, "test"},
		{`=""`, ""},
		{"=SUM(A1)", "SUM(A1)"},
		{`"quoted"`, `"quoted"`},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanCell(tt.input); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
