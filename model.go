package mailmerge

import (
	"fmt"
	"strconv"
	"strings"
)

// Intermediate representation shared by the template readers, the renderer and
// the encoders.  It carries only what substitution needs: styled text blocks in
// body order plus the tables found between them.

// -----------------------------------------------------------------------------
// Template
// -----------------------------------------------------------------------------

// Block is one paragraph-equivalent unit of styled text.
type Block struct {
	Style string // opaque style identifier, copied verbatim
	Text  string // raw text of the block
}

func (b Block) String() string {
	return fmt.Sprintf("Style: %q, Text: %q", b.Style, b.Text)
}

// Cell is a single table cell.  It can hold multiple blocks.
type Cell struct {
	Blocks []Block
}

// TableRow is one row of a table.
type TableRow struct {
	Cells []Cell
}

// Table is a tabular region embedded in a template.
type Table struct {
	Style string     // table style identifier, "" for none
	After int        // number of top-level blocks preceding the table in the body
	Rows  []TableRow // in order
}

func (t Table) String() string {
	return fmt.Sprintf("Style: %q, After: %d, Rows: %d", t.Style, t.After, len(t.Rows))
}

// Template is a parsed document template.  Blocks are the top-level paragraphs
// and the only addressable units of the position index; Tables are scanned for
// variable names but are not position-indexed.
type Template struct {
	Name   string // source name, informational only
	Blocks []Block
	Tables []Table
}

func (t *Template) String() string {
	return fmt.Sprintf("Name: %q, Blocks: %d, Tables: %d", t.Name, len(t.Blocks), len(t.Tables))
}

// Document is a generated document.  It shares nothing with the template it
// was rendered from.
type Document struct {
	Blocks []Block
	Tables []Table
}

func (d *Document) String() string {
	return fmt.Sprintf("Blocks: %d, Tables: %d", len(d.Blocks), len(d.Tables))
}

// Texts returns the text of each top-level block.
func (d *Document) Texts() []string {
	out := make([]string, len(d.Blocks))
	for i, b := range d.Blocks {
		out[i] = b.Text
	}
	return out
}

func cloneTables(in []Table) []Table {
	if in == nil {
		return nil
	}
	out := make([]Table, len(in))
	for i, t := range in {
		out[i] = Table{Style: t.Style, After: t.After, Rows: make([]TableRow, len(t.Rows))}
		for r, row := range t.Rows {
			cells := make([]Cell, len(row.Cells))
			for c, cell := range row.Cells {
				cells[c] = Cell{Blocks: append([]Block(nil), cell.Blocks...)}
			}
			out[i].Rows[r] = TableRow{Cells: cells}
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Tabular data
// -----------------------------------------------------------------------------

// Row is one record of input data.  Values are keyed by column name; Columns
// keeps the source order.
type Row struct {
	Number  int // 1-based position among the data rows
	Columns []string
	Values  map[string]any
}

// NewRow builds a Row from parallel column and value slices.  Missing trailing
// values are stored as "".
func NewRow(number int, columns []string, values []string) Row {
	r := Row{Number: number, Columns: columns, Values: make(map[string]any, len(columns))}
	for i, c := range columns {
		if i < len(values) {
			r.Values[c] = values[i]
		} else {
			r.Values[c] = ""
		}
	}
	return r
}

// Has reports whether the row carries the column at all.
func (r Row) Has(column string) bool {
	_, ok := r.Values[column]
	return ok
}

// Text returns the display text of the column's value.  ok is false if the
// column is absent.
func (r Row) Text(column string) (string, bool) {
	v, ok := r.Values[column]
	if !ok {
		return "", false
	}
	return FormatValue(v), true
}

// FormatValue converts a scalar to its display text.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Dataset is tabular input: a header and the rows beneath it.
type Dataset struct {
	Columns []string
	Rows    []Row
}

func (d *Dataset) String() string {
	return fmt.Sprintf("Columns: %d, Rows: %d", len(d.Columns), len(d.Rows))
}

// NewDataset builds a Dataset from a raw header and records.  Blank header
// cells are named "Unnamed: <i>" and repeated names get ".1", ".2", ...
// suffixes.  Records with no non-blank value are skipped; row numbers count
// the kept records from 1.
func NewDataset(header []string, records [][]string) *Dataset {
	ds := &Dataset{Columns: normalizeHeader(header)}
	n := 0
	for _, rec := range records {
		if isBlank(rec) {
			continue
		}
		n++
		ds.Rows = append(ds.Rows, NewRow(n, ds.Columns, rec))
	}
	return ds
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for {
			if _, dup := seen[name]; !dup {
				break
			}
			seen[h]++
			name = h + "." + strconv.Itoa(seen[h])
		}
		seen[name] = 0
		out[i] = name
	}
	return out
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
