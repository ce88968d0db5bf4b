package core

// table.go reads contact files into a rectangular Table of strings.
//
// CSV input is decoded as UTF-8 (a leading BOM is dropped) and falls back to
// Latin-1 when the bytes are not valid UTF-8. Spreadsheets are read from
// their active sheet, values only. Both paths share the same shaping rules:
//   - width is the longer of the header row and the longest data row
//   - short rows are padded with "" and blank headers become "Column N"
//   - rows whose cells are all blank are dropped

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadTable reads a contacts file. The format is chosen by extension: ".csv"
// is parsed as CSV, anything else as a spreadsheet. Failures are KindParse
// errors with code EXCEL_PARSE_ERROR. Empty input yields an empty Table.
func ReadTable(filename string, data []byte) (*Table, error) {
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		return readCSVTable(data)
	}
	return readSpreadsheetTable(data)
}

// decodeCSVBytes returns data as UTF-8 text.
func decodeCSVBytes(data []byte) string {
	text := bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(text) {
		return string(text)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		// ISO-8859-1 maps every byte, so this is unreachable in practice.
		return string(data)
	}
	return string(decoded)
}

func readCSVTable(data []byte) (*Table, error) {
	r := csv.NewReader(strings.NewReader(decodeCSVBytes(data)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var (
		records [][]string
		lines   []int
	)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ErrContactsParse.Wrap(err)
		}
		line, _ := r.FieldPos(0)
		records = append(records, record)
		lines = append(lines, line)
	}

	if len(records) == 0 {
		return &Table{}, nil
	}

	header := make([]any, len(records[0]))
	for i, cell := range records[0] {
		header[i] = cell
	}
	body := make([][]any, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make([]any, len(record))
		for i, cell := range record {
			row[i] = cell
		}
		body = append(body, row)
	}
	return shapeTable(header, body, lines[1:]), nil
}

func readSpreadsheetTable(data []byte) (*Table, error) {
	if len(data) == 0 {
		return &Table{}, nil
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, ErrContactsParse.Wrap(err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		return &Table{}, nil
	}

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, ErrContactsParse.Wrap(err)
	}
	formatted, err := f.GetRows(sheet)
	if err != nil {
		return nil, ErrContactsParse.Wrap(err)
	}

	// GetRows returns one entry per row index, including empty rows in the
	// middle of the sheet, so slice position i is sheet row i+1.
	rows := make([][]any, len(raw))
	for i := range raw {
		rows[i] = make([]any, len(raw[i]))
		for j, value := range raw[i] {
			display := ""
			if i < len(formatted) && j < len(formatted[i]) {
				display = formatted[i][j]
			}
			rows[i][j] = spreadsheetCell(f, sheet, j+1, i+1, value, display)
		}
	}

	if len(rows) == 0 {
		return &Table{}, nil
	}

	lines := make([]int, len(rows)-1)
	for i := range lines {
		lines[i] = i + 2
	}
	return shapeTable(rows[0], rows[1:], lines), nil
}

// spreadsheetCell converts a raw cell value to a typed value so CellText
// renders it the same way regardless of the workbook's number formats.
func spreadsheetCell(f *excelize.File, sheet string, col, row int, raw, display string) any {
	if raw == "" {
		return ""
	}
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return raw
	}
	cellType, err := f.GetCellType(sheet, axis)
	if err != nil {
		return raw
	}

	switch cellType {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true")
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return raw
		}
		// Date and time formats display as text; keep what the sheet shows.
		if display != "" && display != raw {
			if _, err := strconv.ParseFloat(strings.ReplaceAll(display, ",", ""), 64); err != nil {
				return display
			}
		}
		return n
	default:
		return raw
	}
}

// shapeTable applies the width, header defaulting and blank-row rules.
// lines holds the source line of each body row.
func shapeTable(header []any, body [][]any, lines []int) *Table {
	width := len(header)
	for _, row := range body {
		width = max(width, len(row))
	}
	if width == 0 {
		return &Table{}
	}

	t := &Table{Headers: make([]string, width)}
	for i := range width {
		var text string
		if i < len(header) {
			text = strings.TrimSpace(CellText(header[i]))
		}
		if text == "" {
			text = fmt.Sprintf("Column %d", i+1)
		}
		t.Headers[i] = text
	}

	for n, raw := range body {
		row := make([]string, width)
		blank := true
		for i := range width {
			if i < len(raw) {
				row[i] = CellText(raw[i])
			}
			if strings.TrimSpace(row[i]) != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		t.Rows = append(t.Rows, row)
		t.Lines = append(t.Lines, lines[n])
	}
	return t
}

// CellText converts a cell value to its canonical text form: nil is "",
// booleans are TRUE/FALSE, integral numbers have no decimal part, other
// floats drop trailing zeros, and strings are trimmed.
func CellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return formatFloat(float64(val))
	case float64:
		return formatFloat(val)
	case string:
		return strings.TrimSpace(val)
	case time.Time:
		return val.Format("2006-01-02 15:04:05")
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if f == math.Trunc(f) {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	text := strconv.FormatFloat(f, 'f', 6, 64)
	text = strings.TrimRight(text, "0")
	return strings.TrimSuffix(text, ".")
}
