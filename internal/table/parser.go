// Package table turns raw comma-delimited text into a header row and
// positional data rows.
//
// The parser is deliberately lenient: it never fails. Quoted fields may
// contain commas, newlines and doubled quotes; an unterminated quote simply
// runs to the end of the input. Upload boundaries prefer a best-effort table
// over a rejected file.
package table

import "strings"

// Table is the positional result of parsing delimited text.
// Rows are aligned to Headers by index; a row may be shorter than Headers.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Parse scans text left to right and splits it into records.
//
// Outside quotes a comma ends the field, a newline ends the record, a
// carriage return is dropped and a double quote opens a quoted section.
// Inside quotes a doubled quote yields one literal quote, a lone quote closes
// the section and everything else is kept verbatim.
//
// The first record becomes the header row. Data records whose fields are all
// empty are dropped.
func Parse(text string) *Table {
	var (
		records  [][]string
		record   []string
		field    strings.Builder
		inQuotes bool
	)

	for i := 0; i < len(text); i++ {
		c := text[i]

		if inQuotes {
			if c == '"' {
				if i+1 < len(text) && text[i+1] == '"' {
					field.WriteByte('"')
					i++
				} else {
					inQuotes = false
				}
				continue
			}
			field.WriteByte(c)
			continue
		}

		switch c {
		case '"':
			inQuotes = true
		case ',':
			record = append(record, field.String())
			field.Reset()
		case '\n':
			record = append(record, field.String())
			records = append(records, record)
			record = nil
			field.Reset()
		case '\r':
		default:
			field.WriteByte(c)
		}
	}

	// Flush whatever is left, including an unterminated quoted field.
	record = append(record, field.String())
	if len(record) > 1 || record[0] != "" {
		records = append(records, record)
	}

	t := &Table{Headers: []string{}, Rows: [][]string{}}
	if len(records) == 0 {
		return t
	}

	t.Headers = records[0]
	for _, r := range records[1:] {
		if isBlank(r) {
			continue
		}
		t.Rows = append(t.Rows, r)
	}
	return t
}

// isBlank reports whether every field of the record is empty.
func isBlank(record []string) bool {
	for _, f := range record {
		if f != "" {
			return false
		}
	}
	return true
}

// Width returns the number of header positions.
func (t *Table) Width() int {
	return len(t.Headers)
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Field returns the value at the given data row and column.
// Positions past the end of a short row read as the empty string.
func (t *Table) Field(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 {
		return ""
	}
	r := t.Rows[row]
	if col >= len(r) {
		return ""
	}
	return r[col]
}
