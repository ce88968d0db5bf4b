package core

import (
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// NumbersColumn is the header that holds each contact's phone number.
// Matching is case-insensitive.
const NumbersColumn = "NUMBERS"

// rowIndexKey resolves to a row's source line in templates.
const rowIndexKey = "__row_index"

// AllowedContactExtensions lists the accepted contact file extensions.
var AllowedContactExtensions = []string{".csv", ".xlsx", ".xlsm", ".xltx", ".xltm"}

// IsContactsFilename reports whether name has an accepted contact file extension.
func IsContactsFilename(name string) bool {
	return slices.Contains(AllowedContactExtensions, strings.ToLower(filepath.Ext(name)))
}

// Table is a rectangular grid of cell text. Every row in Rows has
// len(Headers) cells. Lines optionally holds each row's source line number,
// with the header on line 1; rows without an entry count from line 2.
type Table struct {
	Headers []string
	Rows    [][]string
	Lines   []int
}

// Empty reports whether the table has no header row.
func (t *Table) Empty() bool {
	return t == nil || len(t.Headers) == 0
}

// Field is one header/value pair of a contact row.
type Field struct {
	Key   string
	Value string
}

// ContactRow is one recipient read from a contacts file. Fields keeps the
// file's column order and holds each header under its original spelling
// and its upper-cased form.
type ContactRow struct {
	Line   int
	Number string
	fields []Field
}

// NewContactRow builds a row from parallel header and value slices.
func NewContactRow(line int, headers, values []string) ContactRow {
	row := ContactRow{Line: line, fields: make([]Field, 0, len(headers)*2)}
	for i, header := range headers {
		name := strings.TrimSpace(header)
		if name == "" {
			continue
		}
		var value string
		if i < len(values) {
			value = values[i]
		}
		row.set(name, value)
		row.set(strings.ToUpper(name), value)
	}
	return row
}

// set replaces the value of an existing key, keeping its position, or appends.
func (r *ContactRow) set(key, value string) {
	for i := range r.fields {
		if r.fields[i].Key == key {
			r.fields[i].Value = value
			return
		}
	}
	r.fields = append(r.fields, Field{Key: key, Value: value})
}

// Get returns the value stored under exactly key.
func (r ContactRow) Get(key string) (string, bool) {
	for _, f := range r.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Lookup resolves name case-insensitively. When several keys fold to the
// same name the later one wins. The reserved name __row_index always yields
// Line, even when a column has that name.
func (r ContactRow) Lookup(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == rowIndexKey {
		return strconv.Itoa(r.Line), true
	}
	var (
		value string
		found bool
	)
	for _, f := range r.fields {
		if strings.ToLower(strings.TrimSpace(f.Key)) == name {
			value, found = f.Value, true
		}
	}
	return value, found
}

// Fields returns a copy of the row's fields in insertion order.
func (r ContactRow) Fields() []Field {
	return slices.Clone(r.fields)
}

// RowRef is the "Row N" reference used in error details.
func (r ContactRow) RowRef() string {
	if r.Line <= 0 {
		return "Row ?"
	}
	return "Row " + strconv.Itoa(r.Line)
}
