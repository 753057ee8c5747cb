// Package testkit builds entitlement workbooks and tables for tests.
package testkit

import (
	"fmt"
	"math"
	"time"

	"entitlements/domain/table"

	"github.com/xuri/excelize/v2"
)

// EntitlementHeaders is the header row of a representative entitlements workbook
var EntitlementHeaders = []interface{}{
	"Brand",
	"Customer name",
	"CRM region",
	"Current product",
	"Site number",
	"Software license or appliance quantity",
	"Active S&S quantity",
	"SaaS/Cloud software or leased appliance quantity",
	"S&S end date",
}

// EntitlementRows returns three data rows matching EntitlementHeaders
func EntitlementRows() [][]interface{} {
	return [][]interface{}{
		{"Data & AI", "Acme Corp", "North America", "Db2", 1001, 10, 8, 0, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)},
		{"Automation", "Globex", "EMEA", "Instana", 1002, 5, 5, 2.5, time.Date(2024, 12, 31, 13, 45, 0, 0, time.UTC)},
		{"Data & AI", "Initech", "EMEA", "Cognos", 1003, nil, 1, 1, nil},
	}
}

// WriteWorkbook writes header and rows into the first sheet ("Sheet1") of a new workbook.
// nil values leave the cell blank; time.Time values get excelize's default date style.
func WriteWorkbook(path string, header []interface{}, rows [][]interface{}) error {
	return WriteSheet(path, "Sheet1", header, rows)
}

// WriteSheet writes header and rows into a workbook whose only sheet is named sheet
func WriteSheet(path, sheet string, header []interface{}, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	}

	all := append([][]interface{}{header}, rows...)
	for r, row := range all {
		for c, v := range row {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("set %s: %w", cell, err)
			}
		}
	}

	return f.SaveAs(path)
}

// SetDateFormat applies a number format id to a single cell of an existing workbook
func SetDateFormat(path, sheet, cell string, numFmt int) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	style, err := f.NewStyle(&excelize.Style{NumFmt: numFmt})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
		return err
	}
	return f.Save()
}

// SetNumberFormat applies a custom number format code to a single cell of an existing workbook
func SetNumberFormat(path, sheet, cell, code string) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	style, err := f.NewStyle(&excelize.Style{CustomNumFmt: &code})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
		return err
	}
	return f.Save()
}

// ScenarioTable builds the Brand / Ship Date / Qty table with a native date
// column and one NaN quantity.
func ScenarioTable() *table.Table {
	t, err := table.New(
		[]table.Column{
			{Name: "Brand", Type: table.ColumnTypeString},
			{Name: "Ship Date", Type: table.ColumnTypeDateTime},
			{Name: "Qty", Type: table.ColumnTypeFloat},
		},
		[]table.Record{
			{table.String("Acme"), table.Date(time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)), table.Float(3)},
			{table.String("Globex"), table.Date(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)), table.Float(math.NaN())},
			{table.String("Initech"), table.Date(time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)), table.Float(7.5)},
		},
	)
	if err != nil {
		panic(err)
	}
	return t
}

// EntitlementTable is the normalized form of EntitlementRows: dates are
// YYYY-MM-DD text and blank cells are absent.
func EntitlementTable() *table.Table {
	columns := make([]table.Column, len(EntitlementHeaders))
	for i, h := range EntitlementHeaders {
		columns[i] = table.Column{Name: fmt.Sprint(h), Type: table.ColumnTypeObject}
	}

	t, err := table.New(columns, []table.Record{
		{table.String("Data & AI"), table.String("Acme Corp"), table.String("North America"), table.String("Db2"),
			table.Int(1001), table.Int(10), table.Int(8), table.Float(0), table.String("2025-06-30")},
		{table.String("Automation"), table.String("Globex"), table.String("EMEA"), table.String("Instana"),
			table.Int(1002), table.Int(5), table.Int(5), table.Float(2.5), table.String("2024-12-31")},
		{table.String("Data & AI"), table.String("Initech"), table.String("EMEA"), table.String("Cognos"),
			table.Int(1003), table.Absent(), table.Int(1), table.Float(1), table.Absent()},
	})
	if err != nil {
		panic(err)
	}
	return t
}
