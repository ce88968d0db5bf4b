package core

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/JonMunkholm/wabatch/internal/logging"
)

// ParseContacts reads a contacts file into dispatchable rows.
//
// The header row must contain a NUMBERS column (any case). When several
// columns fold to NUMBERS the first one is used. Rows with a blank number are
// skipped; if none remain the file is rejected.
func ParseContacts(ctx context.Context, filename string, data []byte) ([]ContactRow, error) {
	if !IsContactsFilename(filename) {
		return nil, ErrInvalidContactsFile
	}

	table, err := ReadTable(filename, data)
	if err != nil {
		return nil, err
	}
	return ContactsFromTable(ctx, table)
}

// ContactsFromTable applies the NUMBERS column rules to an already read table.
func ContactsFromTable(ctx context.Context, table *Table) ([]ContactRow, error) {
	if table.Empty() {
		return nil, ErrContactsEmpty
	}

	numbersIdx := numbersColumns(table.Headers)
	if len(numbersIdx) == 0 {
		return nil, ErrMissingNumbers
	}
	if len(numbersIdx) > 1 {
		logging.FromContext(ctx).Warn("contacts file has several NUMBERS columns; using the first",
			"columns", len(numbersIdx))
	}
	col := numbersIdx[0]

	rows := make([]ContactRow, 0, len(table.Rows))
	for i, values := range table.Rows {
		var number string
		if col < len(values) {
			number = values[col]
		}
		if strings.TrimSpace(number) == "" {
			continue
		}
		line := i + 2
		if i < len(table.Lines) {
			line = table.Lines[i]
		}
		row := NewContactRow(line, table.Headers, values)
		row.Number = number
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrNoValidRows
	}
	return rows, nil
}

// ValidateUpload checks that a contacts file is readable, has a header and
// a NUMBERS column. Used before a file is stored.
func ValidateUpload(filename string, data []byte) (*Table, error) {
	if !IsContactsFilename(filename) {
		return nil, ErrInvalidContactsFile
	}
	if len(data) == 0 {
		return nil, ErrContactsEmpty
	}

	table, err := ReadTable(filename, data)
	if err != nil {
		return nil, err
	}
	if table.Empty() {
		return nil, ErrContactsEmpty
	}
	if len(numbersColumns(table.Headers)) == 0 {
		return nil, ErrMissingNumbers
	}
	return table, nil
}

func numbersColumns(headers []string) []int {
	var idx []int
	for i, h := range headers {
		if strings.ToUpper(h) == NumbersColumn {
			idx = append(idx, i)
		}
	}
	return idx
}

// CleanContent validates edited contacts content and returns the table to
// write back. Unlike ParseContacts it is strict: exactly one NUMBERS column
// (renamed to "NUMBERS"), unique column names ignoring case. Row cells past
// the header width are dropped and blank rows removed.
//
// headers and rows are decoded JSON: headers is a list of scalars, rows a
// list of lists.
func CleanContent(headers any, rows any) (*Table, error) {
	rawHeaders, ok := headers.([]any)
	if !ok {
		return nil, contentError("Headers must be a list.")
	}
	rawRows, ok := rows.([]any)
	if !ok {
		return nil, contentError("Rows must be a list.")
	}

	cleaned := make([]string, len(rawHeaders))
	for i, h := range rawHeaders {
		text := strings.TrimSpace(CellText(h))
		if text == "" {
			text = fmt.Sprintf("Column %d", i+1)
		}
		cleaned[i] = text
	}
	if len(cleaned) == 0 {
		return nil, contentError("Contacts file must have at least one column.")
	}

	numbersIdx := numbersColumns(cleaned)
	if len(numbersIdx) != 1 {
		return nil, ErrMissingNumbers.withMessage(`Contacts file must contain exactly one "NUMBERS" column.`)
	}
	cleaned[numbersIdx[0]] = NumbersColumn

	if dups := duplicateHeaders(cleaned); len(dups) > 0 {
		return nil, contentError(fmt.Sprintf("Column names must be unique. Duplicate: %s.", strings.Join(dups, ", ")))
	}

	table := &Table{Headers: cleaned}
	for n, raw := range rawRows {
		cells, ok := raw.([]any)
		if !ok {
			return nil, contentError("Each row must be a list of values.")
		}
		values := make([]string, len(cleaned))
		blank := true
		for i := range values {
			if i < len(cells) {
				values[i] = CellText(cells[i])
			}
			if strings.TrimSpace(values[i]) != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		table.Rows = append(table.Rows, values)
		table.Lines = append(table.Lines, n+2)
	}
	return table, nil
}

// duplicateHeaders returns the upper-cased names that occur more than once, sorted.
func duplicateHeaders(headers []string) []string {
	seen := make(map[string]int, len(headers))
	for _, h := range headers {
		seen[strings.ToUpper(h)]++
	}
	var dups []string
	for name, n := range seen {
		if n > 1 {
			dups = append(dups, name)
		}
	}
	slices.Sort(dups)
	return dups
}

func contentError(message string) *Error {
	return ErrInvalidContent.withMessage(message)
}

func (e *Error) withMessage(message string) *Error {
	cp := *e
	cp.Message = message
	return &cp
}
