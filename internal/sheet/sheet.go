// Package sheet reads and writes the .xlsx workbooks produced by a crawl.
package sheet

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/david/kapt-crawler/internal/crawl"
	"github.com/xuri/excelize/v2"
)

// MergedSheet is the sheet title of merged detail workbooks.
const MergedSheet = "Sheet1"

const timestampLayout = "20060102_150405"

// UniquePath returns dir/<prefix>_<YYYYMMDD_HHMMSS>.xlsx, adding _1, _2, ...
// until the name is unused. dir is created if needed.
func UniquePath(dir, prefix string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	stem := prefix + "_" + now.Format(timestampLayout)
	path := filepath.Join(dir, stem+".xlsx")
	for n := 1; exists(path); n++ {
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.xlsx", stem, n))
	}
	return path, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Write saves records as a single-sheet workbook with columns as the header
// row. Values missing from a record are written as empty cells.
func Write(path, sheetName string, columns []crawl.Field, records []crawl.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("name sheet %q: %w", sheetName, err)
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = string(c)
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, rec := range records {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = rec[c]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

// Read loads the first sheet of a workbook, using its first row as column
// names. Every record carries every header column.
func Read(path string) ([]crawl.Field, []crawl.Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	columns := make([]crawl.Field, len(rows[0]))
	for i, name := range rows[0] {
		columns[i] = crawl.Field(name)
	}

	records := make([]crawl.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(crawl.Record, len(columns))
		for i, c := range columns {
			if i < len(row) {
				rec[c] = row[i]
			} else {
				rec[c] = ""
			}
		}
		records = append(records, rec)
	}
	return columns, records, nil
}
