package core

// Preview is a bounded view of a contacts table.
type Preview struct {
	Headers          []string   `json:"headers"`
	Rows             [][]string `json:"rows"`
	TotalRows        int        `json:"total_rows"`
	DisplayedRows    int        `json:"displayed_rows"`
	Truncated        bool       `json:"truncated"`
	TotalColumns     int        `json:"total_columns"`
	DisplayedColumns int        `json:"displayed_columns"`
}

// PreviewLimits bounds a preview; nil fields mean unlimited.
type PreviewLimits struct {
	Rows    *int
	Columns *int
}

// Limits builds PreviewLimits from concrete values.
func Limits(rows, columns int) PreviewLimits {
	return PreviewLimits{Rows: &rows, Columns: &columns}
}

// BuildPreview cuts table down to limits. At least one column is shown when
// the table has any. Rows are padded or cut to the shown width.
func BuildPreview(table *Table, limits PreviewLimits) Preview {
	if table.Empty() {
		return Preview{Headers: []string{}, Rows: [][]string{}}
	}

	headers := table.Headers
	if limits.Columns != nil {
		headers = headers[:min(len(headers), max(1, *limits.Columns))]
	}

	source := table.Rows
	if limits.Rows != nil {
		source = source[:min(len(source), max(0, *limits.Rows))]
	}

	rows := make([][]string, len(source))
	for i, row := range source {
		shown := make([]string, len(headers))
		copy(shown, row)
		rows[i] = shown
	}

	return Preview{
		Headers:          append([]string(nil), headers...),
		Rows:             rows,
		TotalRows:        len(table.Rows),
		DisplayedRows:    len(rows),
		Truncated:        len(table.Rows) > len(rows) || len(table.Headers) > len(headers),
		TotalColumns:     len(table.Headers),
		DisplayedColumns: len(headers),
	}
}
