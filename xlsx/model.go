package xlsx

import (
	"fmt"
)

// Intermediate representation for a worksheet read as tabular data.

// SheetData is the formatted cell text of one worksheet.  Rows are in sheet
// order; blank rows in the sheet are kept as empty slices so row positions
// can be reported back to the user.
type SheetData struct {
	Name   string
	Width  int        // widest row, in columns
	Rows   [][]string // Rows[i][c] is the formatted value at row i+1, column c
	Merged int        // number of merged ranges, informational
}

func (s SheetData) String() string {
	return fmt.Sprintf("Name: %s, Width: %d, Rows: %d, Merged: %d", s.Name, s.Width, len(s.Rows), s.Merged)
}
