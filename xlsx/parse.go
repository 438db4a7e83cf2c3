// Package xlsx reads spreadsheet data for a mail merge run from XLSX
// workbooks.
package xlsx

import (
	"fmt"
	"io"
	"os"

	"github.com/unidoc/unioffice/spreadsheet"
	"github.com/unidoc/unioffice/spreadsheet/reference"

	"github.com/aerissecure/mailmerge"
)

// Open reads the named sheet of the workbook at path as a Dataset.  An empty
// sheet name selects the first sheet.
func Open(path, sheet string) (*mailmerge.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return Read(f, info.Size(), sheet)
}

// Read reads a sheet from r/size as a Dataset.  The first non-blank row is the
// header.
func Read(r io.ReaderAt, size int64, sheet string) (*mailmerge.Dataset, error) {
	sd, err := ReadSheet(r, size, sheet)
	if err != nil {
		return nil, err
	}
	return ToDataset(sd), nil
}

// ToDataset splits sheet data into header and records.
func ToDataset(sd SheetData) *mailmerge.Dataset {
	for i, row := range sd.Rows {
		if blank(row) {
			continue
		}
		header := pad(row, sd.Width)
		records := make([][]string, 0, len(sd.Rows)-i-1)
		for _, rec := range sd.Rows[i+1:] {
			records = append(records, pad(rec, sd.Width))
		}
		return mailmerge.NewDataset(header, records)
	}
	return &mailmerge.Dataset{}
}

// SheetNames lists the worksheets of the workbook in r/size.
func SheetNames(r io.ReaderAt, size int64) ([]string, error) {
	wb, err := spreadsheet.Read(r, size)
	if err != nil {
		return nil, err
	}
	defer wb.Close()
	var names []string
	for _, s := range wb.Sheets() {
		names = append(names, s.Name())
	}
	return names, nil
}

// ReadSheet reads the formatted cell values of one sheet.
func ReadSheet(r io.ReaderAt, size int64, name string) (SheetData, error) {
	wb, err := spreadsheet.Read(r, size)
	if err != nil {
		return SheetData{}, err
	}
	defer wb.Close()

	sheets := wb.Sheets()
	if len(sheets) == 0 {
		return SheetData{}, fmt.Errorf("workbook has no sheets")
	}
	sheet := sheets[0]
	if name != "" {
		found := false
		for _, s := range sheets {
			if s.Name() == name {
				sheet, found = s, true
				break
			}
		}
		if !found {
			return SheetData{}, fmt.Errorf("sheet %q not found", name)
		}
	}

	sd := SheetData{Name: sheet.Name()}
	if sheet.X().MergeCells != nil {
		sd.Merged = len(sheet.X().MergeCells.MergeCell)
	}

	for _, row := range sheet.Rows() {
		rowIdx := int(row.RowNumber()) - 1
		if rowIdx < 0 {
			continue
		}
		if rowIdx >= len(sd.Rows) {
			// grow slice to accommodate sparse rows
			sd.Rows = append(sd.Rows, make([][]string, rowIdx-len(sd.Rows)+1)...)
		}

		var vals []string
		for _, cell := range row.Cells() {
			colName, err := cell.Column()
			if err != nil {
				continue
			}
			colIdx := int(reference.ColumnToIndex(colName))
			if colIdx >= len(vals) {
				vals = append(vals, make([]string, colIdx-len(vals)+1)...)
			}
			vals[colIdx] = cell.GetFormattedValue()
		}
		if len(vals) > sd.Width {
			sd.Width = len(vals)
		}
		sd.Rows[rowIdx] = vals
	}

	return sd, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}

func pad(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}
