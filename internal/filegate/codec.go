package filegate

// codec.go encodes upload metadata into generated file names and decodes it
// back. A generated name looks like
//
//	<base>_<YYYYmmddHHMMSS><machine><NNN>.<ext>
//
// e.g. roster_20240315093012A042.xlsx. Retrieval trusts a name only when all
// four checks below pass, which lets the gateway reject forged references
// without keeping a table of issued names.

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

const (
	// TimestampLayout is the second-precision timestamp embedded in names.
	TimestampLayout = "20060102150405"

	// RandomDigits is the width of the numeric disambiguator.
	RandomDigits = 3

	traversalToken = ".."
)

var randomPattern = regexp.MustCompile(fmt.Sprintf(`^[0-9]{%d}$`, RandomDigits))

// NameMeta is the metadata carried by a generated name.
type NameMeta struct {
	Base      string
	Ext       string
	CreatedAt time.Time
	Machine   string
	Random    string
}

// Encode renders meta as a generated file name.
func Encode(meta NameMeta) string {
	var b strings.Builder
	b.WriteString(meta.Base)
	b.WriteByte('_')
	b.WriteString(meta.CreatedAt.Format(TimestampLayout))
	b.WriteString(meta.Machine)
	b.WriteString(meta.Random)
	if meta.Ext != "" {
		b.WriteByte('.')
		b.WriteString(meta.Ext)
	}
	return b.String()
}

// Decode parses a generated name. All four checks must pass against the
// given machine id, otherwise ErrInvalidResourceName is returned.
func Decode(name, machine string) (NameMeta, error) {
	if HasTraversal(name) || !ValidTimestamp(name) || !ValidMachine(name, machine) || !ValidRandom(name) {
		return NameMeta{}, ErrInvalidResourceName
	}

	stem, ext := splitExt(path.Base(name))
	sep := strings.LastIndexByte(stem, '_')
	tail := stem[sep+1:]

	created, err := time.ParseInLocation(TimestampLayout, tail[:len(TimestampLayout)], time.Local)
	if err != nil {
		return NameMeta{}, ErrInvalidResourceName
	}

	return NameMeta{
		Base:      stem[:sep],
		Ext:       ext,
		CreatedAt: created,
		Machine:   machine,
		Random:    tail[len(tail)-RandomDigits:],
	}, nil
}

// HasTraversal reports whether s contains a parent-directory token.
func HasTraversal(s string) bool {
	return strings.Contains(s, traversalToken)
}

// ValidTimestamp reports whether the timestamp segment of name parses.
func ValidTimestamp(name string) bool {
	tail, ok := nameTail(name)
	if !ok || len(tail) < len(TimestampLayout) {
		return false
	}
	_, err := time.Parse(TimestampLayout, tail[:len(TimestampLayout)])
	return err == nil
}

// ValidMachine reports whether the machine segment of name equals machine.
func ValidMachine(name, machine string) bool {
	tail, ok := nameTail(name)
	if !ok || machine == "" || len(tail) != len(TimestampLayout)+len(machine)+RandomDigits {
		return false
	}
	return tail[len(TimestampLayout):len(TimestampLayout)+len(machine)] == machine
}

// ValidRandom reports whether the random segment of name is numeric.
func ValidRandom(name string) bool {
	tail, ok := nameTail(name)
	if !ok || len(tail) < RandomDigits {
		return false
	}
	return randomPattern.MatchString(tail[len(tail)-RandomDigits:])
}

// nameTail returns the segment between the last underscore and the extension.
func nameTail(name string) (string, bool) {
	stem, _ := splitExt(path.Base(name))
	sep := strings.LastIndexByte(stem, '_')
	if sep < 0 {
		return "", false
	}
	return stem[sep+1:], true
}

// splitExt splits "a.b.xlsx" into ("a.b", "xlsx").
func splitExt(name string) (stem, ext string) {
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return name, ""
	}
	return name[:dot], name[dot+1:]
}
