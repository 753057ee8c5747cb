package excel

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"entitlements/domain/table"
	"entitlements/internal"
	"entitlements/internal/errors"

	"github.com/xuri/excelize/v2"
)

// DataReader loads Excel workbooks and CSV files into a table
type DataReader struct {
	config ReaderConfig
	na     map[string]bool
	logger *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(config ReaderConfig, logger *internal.Logger) *DataReader {
	return &DataReader{
		config: config,
		na:     config.naSet(),
		logger: internal.OrDefault(logger).With("DataReader"),
	}
}

// fileType maps a path to the reader used for it
func fileType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return "xlsx"
	case ".csv":
		return "csv"
	}
	return ""
}

// Load reads the source into a table. Column names are trimmed and
// stringified; rows are kept in source order without filtering.
func (r *DataReader) Load(ctx context.Context, source string) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.SourceNotFound(source)
		}
		return nil, errors.SourceUnreadable(source, err)
	}
	if info.IsDir() {
		return nil, errors.SourceUnreadable(source, fmt.Errorf("path is a directory"))
	}

	kind := fileType(source)
	if kind == "" {
		return nil, errors.SourceUnreadable(source, fmt.Errorf("unsupported file type %q", filepath.Ext(source)))
	}
	r.logger.Info("Starting to read %s file: %s", kind, source)
	start := time.Now()

	var t *table.Table
	switch kind {
	case "xlsx":
		t, err = r.readExcel(source)
	case "csv":
		t, err = r.readCSV(source)
	}
	if err != nil {
		return nil, errors.SourceUnreadable(source, err)
	}

	r.logger.Info("%s file processed in %.2fms (%d columns, %d rows)",
		strings.ToUpper(kind), float64(time.Since(start).Nanoseconds())/1e6, len(t.Columns), t.Len())
	return t, nil
}

// readExcel reads the configured sheet, using each cell's stored type and
// number format to recover ints, floats, booleans and native dates.
func (r *DataReader) readExcel(path string) (*table.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.config.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found", sheet)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q has no header row", sheet)
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	cells := &excelCells{f: f, sheet: sheet, styles: newStyleCache(f), date1904: date1904, na: r.na}

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	rawHeader := make([]string, len(rows[0]))
	for col, raw := range rows[0] {
		rawHeader[col] = cells.headerText(1, col+1, raw)
	}
	names := headerNames(rawHeader, width)

	records := make([]table.Record, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		rec := make(table.Record, width)
		for col := 0; col < width; col++ {
			raw := ""
			if col < len(rows[i]) {
				raw = rows[i][col]
			}
			rec[col] = cells.value(i+1, col+1, raw)
		}
		records = append(records, rec)
	}

	return buildTable(names, records)
}

// excelCells converts raw worksheet cells into typed values
type excelCells struct {
	f        *excelize.File
	sheet    string
	styles   *styleCache
	date1904 bool
	na       map[string]bool
}

func (c *excelCells) ref(row, col int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// dateFormat classifies the cell's number format
func (c *excelCells) dateFormat(ref string) formatKind {
	styleID, err := c.f.GetCellStyle(c.sheet, ref)
	if err != nil || styleID == 0 {
		return formatNumber
	}
	return c.styles.kind(styleID)
}

// headerText stringifies a header cell. Date headers render as
// "YYYY-MM-DD HH:MM:SS"; everything else keeps its stored text. Missing-value
// tokens only apply to data cells, so a column named "N/A" keeps its name.
func (c *excelCells) headerText(row, col int, raw string) string {
	if raw == "" {
		return ""
	}
	v := c.typed(row, col, raw)
	switch v.Kind {
	case table.KindDate:
		return v.DateVal.Format("2006-01-02 15:04:05")
	case table.KindAbsent:
		return ""
	}
	return v.String()
}

func (c *excelCells) value(row, col int, raw string) table.Value {
	if raw == "" || c.na[strings.TrimSpace(raw)] {
		return table.Absent()
	}
	return c.typed(row, col, raw)
}

func (c *excelCells) typed(row, col int, raw string) table.Value {
	ref := c.ref(row, col)
	cellType, err := c.f.GetCellType(c.sheet, ref)
	if err != nil {
		return table.String(raw)
	}

	switch cellType {
	case excelize.CellTypeBool:
		switch strings.ToUpper(strings.TrimSpace(raw)) {
		case "1", "TRUE":
			return table.Bool(true)
		case "0", "FALSE":
			return table.Bool(false)
		}
		return table.String(raw)
	case excelize.CellTypeError:
		return table.Absent()
	case excelize.CellTypeDate:
		if t, ok := parseISODate(raw); ok {
			return table.Date(t)
		}
		return table.String(raw)
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return table.String(raw)
	}

	// Unset, Number and Formula cells carry either a number or a cached string
	num, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return table.String(raw)
	}
	switch c.dateFormat(ref) {
	case formatTime:
		if num >= 0 && num < 1 {
			return table.String(timeOfDay(num))
		}
		fallthrough
	case formatDate:
		if t, err := excelize.ExcelDateToTime(num, c.date1904); err == nil {
			return table.Date(t)
		}
	}
	return numericValue(num, raw)
}

// timeOfDay renders a day fraction as "HH:MM:SS", with microseconds only when
// they are non-zero
func timeOfDay(fraction float64) string {
	micros := int64(math.Round(fraction*86400*1e6)) % (86400 * 1e6)
	secs, us := micros/1e6, micros%1e6
	s := fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
	if us != 0 {
		s += fmt.Sprintf(".%06d", us)
	}
	return s
}

// numericValue keeps integral numbers as ints so no ".0" artifacts appear downstream
func numericValue(num float64, raw string) table.Value {
	if i, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
		return table.Int(i)
	}
	if !math.IsInf(num, 0) && !math.IsNaN(num) && num == math.Trunc(num) && math.Abs(num) < 1<<53 {
		return table.Int(int64(num))
	}
	return table.Float(num)
}

func parseISODate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV reads CSV data. Cells are untyped text, so typing is decided per
// column: integers, then floats, then booleans, otherwise strings.
func (r *DataReader) readCSV(path string) (*table.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	br := bufio.NewReader(file)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV file has no header row")
	}

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	names := headerNames(rows[0], width)

	columns := make([][]string, width)
	for col := range columns {
		columns[col] = make([]string, len(rows)-1)
		for i := 1; i < len(rows); i++ {
			if col < len(rows[i]) {
				columns[col][i-1] = rows[i][col]
			}
		}
	}

	records := make([]table.Record, len(rows)-1)
	for i := range records {
		records[i] = make(table.Record, width)
	}
	for col, cells := range columns {
		for i, v := range r.typeCSVColumn(cells) {
			records[i][col] = v
		}
	}

	return buildTable(names, records)
}

func (r *DataReader) typeCSVColumn(cells []string) []table.Value {
	present := make([]bool, len(cells))
	for i, s := range cells {
		present[i] = strings.TrimSpace(s) != "" && !r.na[strings.TrimSpace(s)]
	}

	all := func(parse func(string) (table.Value, bool)) ([]table.Value, bool) {
		out := make([]table.Value, len(cells))
		for i, s := range cells {
			if !present[i] {
				out[i] = table.Absent()
				continue
			}
			v, ok := parse(strings.TrimSpace(s))
			if !ok {
				return nil, false
			}
			out[i] = v
		}
		return out, true
	}

	if out, ok := all(func(s string) (table.Value, bool) {
		i, err := strconv.ParseInt(s, 10, 64)
		return table.Int(i), err == nil
	}); ok {
		return out
	}
	if out, ok := all(func(s string) (table.Value, bool) {
		f, err := strconv.ParseFloat(s, 64)
		return table.Float(f), err == nil
	}); ok {
		return out
	}
	if out, ok := all(func(s string) (table.Value, bool) {
		switch strings.ToLower(s) {
		case "true":
			return table.Bool(true), true
		case "false":
			return table.Bool(false), true
		}
		return table.Value{}, false
	}); ok {
		return out
	}

	out := make([]table.Value, len(cells))
	for i, s := range cells {
		if present[i] {
			out[i] = table.String(s)
		} else {
			out[i] = table.Absent()
		}
	}
	return out
}
