// Package csvio implements the delimited-file conventions shared by every
// input and output artifact: locale-aware delimiters (`;` for spreadsheet
// locales, `,`, tab), quote-only-when-needed escaping, and identifier-column
// loading with the 9-digit registration-number invariant.
package csvio

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultDelimiter is used when sniffing finds no known delimiter.
const DefaultDelimiter = ';'

// Escape converts a value into a cell safe for the given delimiter: the value
// is wrapped in double quotes (doubling interior quotes) only when it contains
// the delimiter, a double quote, or a newline.
func Escape(value string, delim rune) string {
	if value == "" {
		return ""
	}
	if strings.ContainsRune(value, delim) || strings.ContainsAny(value, "\"\n") {
		return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
	}
	return value
}

// EncodeRow joins escaped cells with the delimiter. No trailing newline.
func EncodeRow(values []string, delim rune) string {
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = Escape(v, delim)
	}
	return strings.Join(cells, string(delim))
}

// SniffDelimiter picks the delimiter from a header line, preferring `;`,
// then `,`, then tab, defaulting to `;`.
func SniffDelimiter(headerLine string) rune {
	switch {
	case strings.ContainsRune(headerLine, ';'):
		return ';'
	case strings.ContainsRune(headerLine, ','):
		return ','
	case strings.ContainsRune(headerLine, '\t'):
		return '\t'
	default:
		return DefaultDelimiter
	}
}

// Digits strips every non-digit character.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeIdentifier strips non-digits and reports whether the remainder is a
// valid 9-digit company registration number.
func NormalizeIdentifier(s string) (string, bool) {
	d := Digits(s)
	return d, len(d) == 9
}

// LoadIdentifierColumn reads a delimited file with a header row, sniffs the
// delimiter, locates the column named "siren" (case-insensitive, falling back
// to column 0) and returns the valid identifiers de-duplicated in first-seen
// order. Malformed values are silently dropped.
func LoadIdentifierColumn(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read identifier file %s", path)
	}

	lines := strings.Split(strings.ReplaceAll(strings.TrimSpace(string(raw)), "\r\n", "\n"), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil, nil
	}

	delim := SniffDelimiter(lines[0])
	header := strings.Split(lines[0], string(delim))
	col := 0
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), "siren") {
			col = i
			break
		}
	}

	seen := make(map[string]struct{})
	var out []string
	for _, line := range lines[1:] {
		cells := strings.Split(line, string(delim))
		if col >= len(cells) {
			continue
		}
		id, ok := NormalizeIdentifier(cells[col])
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
