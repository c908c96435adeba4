package core

// convert.go coerces raw spreadsheet text into typed values for storage.
//
// Spreadsheet cells arrive as untrusted text:
//   - dates in US, EU and ISO layouts, or as Excel serial numbers
//   - numbers with currency symbols, thousands separators or accounting
//     parentheses
//   - booleans as yes/no, true/false, 1/0
//   - Excel formula prefixes (="value") in typed cells
//
// Text is never rewritten. All ToPg* functions return pgtype values with
// Valid=false for empty or unparseable input; Coerce distinguishes the two.

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot controls how 2-digit years are read: years more than
// this far in the future are placed in the previous century.
var TwoDigitYearPivot = 20

// excelEpoch is day zero of the 1900 date system as Excel counts it.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02", "2006/1/2", "2006-1-2",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
	}
	timestampLayouts = []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006/01/02 15:04:05",
		"2006/1/2 15:04:05",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
	}
)

var errRequired = errors.New("required field is empty")

// Coerce converts a raw cell to the storage value for col. Text cells are
// stored exactly as read. Other types are trimmed and unwrapped from Excel
// formula syntax before parsing. An empty cell is NULL for nullable columns
// and an error otherwise.
func Coerce(col ColumnDescriptor, raw string) (any, error) {
	if col.Type == TypeText {
		if raw == "" {
			return emptyCell(col)
		}
		return pgtype.Text{String: raw, Valid: true}, nil
	}

	s := CleanCell(raw)
	if s == "" {
		return emptyCell(col)
	}

	switch col.Type {
	case TypeInteger:
		v := ToPgInt8(s)
		if !v.Valid {
			return nil, fmt.Errorf("%s: invalid number %q", col.Name, s)
		}
		return v, nil
	case TypeNumeric:
		v := ToPgNumeric(s)
		if !v.Valid {
			return nil, fmt.Errorf("%s: invalid number %q", col.Name, s)
		}
		return v, nil
	case TypeBool:
		v := ToPgBool(s)
		if !v.Valid {
			return nil, fmt.Errorf("%s: invalid boolean %q", col.Name, s)
		}
		return v, nil
	case TypeDate:
		v := ToPgDate(s)
		if !v.Valid {
			return nil, fmt.Errorf("%s: invalid date %q", col.Name, s)
		}
		return v, nil
	case TypeTimestamp:
		t, ok := ParseTimestamp(s)
		if !ok {
			return nil, fmt.Errorf("%s: invalid date %q", col.Name, s)
		}
		return t, nil
	default:
		return pgtype.Text{String: s, Valid: true}, nil
	}
}

// CoerceLiteral converts a user-supplied default value. A text literal is
// stored as given, the empty string included; other types follow Coerce.
func CoerceLiteral(col ColumnDescriptor, literal string) (any, error) {
	if col.Type == TypeText {
		return pgtype.Text{String: literal, Valid: true}, nil
	}
	return Coerce(col, literal)
}

func emptyCell(col ColumnDescriptor) (any, error) {
	if !col.Nullable {
		return nil, fmt.Errorf("%s: %w", col.Name, errRequired)
	}
	return nullOf(col.Type), nil
}

func nullOf(t ColumnType) any {
	switch t {
	case TypeInteger:
		return pgtype.Int8{}
	case TypeNumeric:
		return pgtype.Numeric{}
	case TypeBool:
		return pgtype.Bool{}
	case TypeDate:
		return pgtype.Date{}
	case TypeTimestamp:
		return nil
	default:
		return pgtype.Text{}
	}
}

// ToPgInt8 converts a string to pgtype.Int8. Whole-valued decimals such as
// "36.0" (how spreadsheets often render integers) are accepted.
func ToPgInt8(s string) pgtype.Int8 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return pgtype.Int8{Valid: false}
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return pgtype.Int8{Int64: i, Valid: true}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: int64(f), Valid: true}
}

// ToPgDate converts a string to pgtype.Date.
// Supports multiple date formats and handles 2-digit years with pivot.
func ToPgDate(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{Valid: false}
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	if t, ok := parseTimestampLayouts(s); ok {
		y, m, d := t.Date()
		return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
	}
	if t, ok := fromExcelSerial(s); ok {
		return pgtype.Date{Time: t, Valid: true}
	}

	return pgtype.Date{Valid: false}
}

// ParseTimestamp parses a date-time cell. A bare date is midnight; an Excel
// serial number is converted from the 1900 date system.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, ok := parseTimestampLayouts(s); ok {
		return t, true
	}
	if d := ToPgDate(s); d.Valid {
		return d.Time, true
	}
	return time.Time{}, false
}

func parseTimestampLayouts(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func fromExcelSerial(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 1 || f > 2958465 {
		return time.Time{}, false
	}
	days := int(f)
	return excelEpoch.AddDate(0, 0, days), true
}

// ToPgNumeric converts a string to pgtype.Numeric.
// Handles currency symbols, thousands separators, and accounting format (parentheses for negative).
func ToPgNumeric(s string) pgtype.Numeric {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Numeric{Valid: false}
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	for _, sym := range []string{"$", "€", "£", "¥", ","} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}
	if !numericRegex.MatchString(s) {
		return pgtype.Numeric{Valid: false}
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// ToPgBool converts a string to pgtype.Bool.
// Accepts various representations: true/false, yes/no, t/f, y/n, 1/0.
func ToPgBool(s string) pgtype.Bool {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "true", "t", "yes", "y", "1":
		return pgtype.Bool{Bool: true, Valid: true}
	case "false", "f", "no", "n", "0":
		return pgtype.Bool{Bool: false, Valid: true}
	default:
		return pgtype.Bool{Valid: false}
	}
}

// CleanCell trims whitespace and strips Excel formula wrappers (="...").
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(s)
}
