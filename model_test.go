package mailmerge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"", ""},
		{"Ana", "Ana"},
		{42, "42"},
		{int64(-7), "-7"},
		{uint32(7), "7"},
		{42.0, "42"},
		{0.1, "0.1"},
		{float32(2.5), "2.5"},
		{true, "true"},
		{[]byte("raw"), "raw"},
		{time.Second, "1s"},
		{[]int{1, 2}, "[1 2]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in), "%#v", tt.in)
	}
}

func TestRow_Text(t *testing.T) {
	r := NewRow(3, []string{"a", "b", "c"}, []string{"1", "2"})

	v, ok := r.Text("b")
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	v, ok = r.Text("c")
	assert.True(t, ok)
	assert.Equal(t, "", v)

	_, ok = r.Text("d")
	assert.False(t, ok)
	assert.Equal(t, 3, r.Number)
}

func TestNewDataset(t *testing.T) {
	ds := NewDataset(
		[]string{"name", "", "name", " amount ", "name"},
		[][]string{
			{"Ana", "x", "dup", "42", "again"},
			{"", "", "", "", ""},
			{"Bo"},
		},
	)

	assert.Equal(t, []string{"name", "Unnamed: 1", "name.1", "amount", "name.2"}, ds.Columns)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, 1, ds.Rows[0].Number)
	assert.Equal(t, 2, ds.Rows[1].Number)

	v, _ := ds.Rows[0].Text("name.1")
	assert.Equal(t, "dup", v)
	v, _ = ds.Rows[1].Text("amount")
	assert.Equal(t, "", v)
}

func TestCloneTables(t *testing.T) {
	in := []Table{tableOf(0, "a")}
	out := cloneTables(in)
	out[0].Rows[0].Cells[0].Blocks[0].Text = "b"

	assert.Equal(t, "a", in[0].Rows[0].Cells[0].Blocks[0].Text)
	assert.Nil(t, cloneTables(nil))
}
