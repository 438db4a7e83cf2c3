package mailmerge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blocks(texts ...string) []Block {
	out := make([]Block, len(texts))
	for i, t := range texts {
		out[i] = Block{Style: "Normal", Text: t}
	}
	return out
}

func tableOf(after int, cells ...string) Table {
	row := TableRow{}
	for _, c := range cells {
		row.Cells = append(row.Cells, Cell{Blocks: blocks(c)})
	}
	return Table{After: after, Rows: []TableRow{row}}
}

func TestIndex_Empty(t *testing.T) {
	idx := NewIndex(&Template{})
	assert.Empty(t, idx.Variables())
	assert.Empty(t, idx.InTablesOnly())
	assert.Nil(t, idx.Positions("x"))

	assert.Empty(t, NewIndex(nil).Variables())
}

func TestIndex_BlocksAndTables(t *testing.T) {
	tmpl := &Template{
		Blocks: blocks("Dear {name},", "no vars", "{name} owes {amount} ({amount})"),
		Tables: []Table{tableOf(2, "{sku}", "{name}", "plain")},
	}
	idx := NewIndex(tmpl)

	assert.Equal(t, []string{"amount", "name", "sku"}, idx.Variables())
	assert.Equal(t, []int{0, 2}, idx.Positions("name"))
	// Repeated tokens in one block repeat the index.
	assert.Equal(t, []int{2, 2}, idx.Positions("amount"))
	// Table-only variables are known but not position-indexed.
	assert.True(t, idx.Has("sku"))
	assert.Nil(t, idx.Positions("sku"))
	assert.Equal(t, []string{"sku"}, idx.InTablesOnly())
	assert.False(t, idx.Has("missing"))
}

func TestIndex_NestedTableBlocks(t *testing.T) {
	tmpl := &Template{
		Tables: []Table{{Rows: []TableRow{{Cells: []Cell{{Blocks: blocks("a", "{deep}")}}}}}},
	}
	idx := NewIndex(tmpl)
	assert.Equal(t, []string{"deep"}, idx.Variables())
}

// Every position entry points at a block containing the token, and every block
// containing a token is listed for it.
func TestIndex_PositionsMatchText(t *testing.T) {
	tmpl := &Template{Blocks: blocks("{a}", "{b} {a}", "", "{c}{c}", "x{a}x")}
	idx := NewIndex(tmpl)

	for _, v := range idx.Variables() {
		for _, i := range idx.Positions(v) {
			assert.Contains(t, tmpl.Blocks[i].Text, Token(v))
		}
		for i, b := range tmpl.Blocks {
			if strings.Contains(b.Text, Token(v)) {
				assert.Contains(t, idx.Positions(v), i)
			}
		}
	}
	require.Equal(t, []int{0, 1, 4}, idx.Positions("a"))
}
