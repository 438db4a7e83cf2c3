package mailmerge

import (
	"fmt"
	"slices"
)

// Index records the variables of a template and where they occur.  It is built
// once per template and only read afterwards.
type Index struct {
	variables map[string]struct{}
	positions map[string][]int // name -> top-level block indices, duplicates kept
	inTables  map[string]struct{}
}

// NewIndex scans t and builds its Index.  Top-level blocks contribute to both
// the variable set and the position index; table cells contribute to the
// variable set only.
func NewIndex(t *Template) *Index {
	idx := &Index{
		variables: make(map[string]struct{}),
		positions: make(map[string][]int),
		inTables:  make(map[string]struct{}),
	}
	if t == nil {
		return idx
	}

	for i, b := range t.Blocks {
		for _, name := range FindVariables(b.Text) {
			idx.variables[name] = struct{}{}
			idx.positions[name] = append(idx.positions[name], i)
		}
	}

	for _, tbl := range t.Tables {
		for _, row := range tbl.Rows {
			for _, cell := range row.Cells {
				for _, b := range cell.Blocks {
					for _, name := range FindVariables(b.Text) {
						idx.variables[name] = struct{}{}
						idx.inTables[name] = struct{}{}
					}
				}
			}
		}
	}

	return idx
}

// Variables returns the distinct variable names, sorted.
func (x *Index) Variables() []string {
	out := make([]string, 0, len(x.variables))
	for name := range x.variables {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Has reports whether name occurs anywhere in the template.
func (x *Index) Has(name string) bool {
	_, ok := x.variables[name]
	return ok
}

// Positions returns the top-level block indices holding {name}.  The returned
// slice must not be modified.
func (x *Index) Positions(name string) []int {
	return x.positions[name]
}

// InTablesOnly returns the variables that occur in table cells but in no
// top-level block, sorted.  Their tokens are not substituted unless table
// substitution is enabled.
func (x *Index) InTablesOnly() []string {
	var out []string
	for name := range x.inTables {
		if _, ok := x.positions[name]; !ok {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

func (x *Index) String() string {
	return fmt.Sprintf("Variables: %d, Indexed: %d, InTables: %d", len(x.variables), len(x.positions), len(x.inTables))
}
