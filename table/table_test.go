package table

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unidoc/unioffice/spreadsheet"

	"github.com/aerissecure/mailmerge"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDetectFormat(t *testing.T) {
	for path, want := range map[string]Format{
		"a.xlsx": FormatXLSX,
		"a.XLSM": FormatXLSX,
		"a.csv":  FormatCSV,
		"a.tsv":  FormatTSV,
		"a.txt":  FormatTSV,
		"a.dat":  FormatXLSX,
		"noext":  FormatXLSX,
	} {
		got, err := DetectFormat(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	for _, path := range []string{"a.xls", "a.xlsb", "a.ods"} {
		_, err := DetectFormat(path)
		assert.ErrorIs(t, err, mailmerge.ErrUnsupportedFormat, path)
	}
}

func TestLoad_CSV(t *testing.T) {
	path := writeFile(t, "people.csv", "\xEF\xBB\xBFname,amount,note\nAna,42,\"hello, world\"\n,,\nBo,7\n")

	ds, err := Load(path, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "amount", "note"}, ds.Columns)
	require.Len(t, ds.Rows, 2)
	v, _ := ds.Rows[0].Text("note")
	assert.Equal(t, "hello, world", v)
	v, _ = ds.Rows[1].Text("note")
	assert.Equal(t, "", v)
	assert.Equal(t, 2, ds.Rows[1].Number)
}

func TestLoad_TSV(t *testing.T) {
	path := writeFile(t, "people.txt", "name\tcity\nAna\tSão \"Paulo\"\n")

	ds, err := Load(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "city"}, ds.Columns)
	v, _ := ds.Rows[0].Text("city")
	assert.Equal(t, `São "Paulo"`, v)
}

func TestLoad_XLSX(t *testing.T) {
	wb := spreadsheet.New()
	sheet := wb.AddSheet()
	sheet.SetName("Data")
	h := sheet.AddRow()
	h.AddCell().SetString("name")
	r := sheet.AddRow()
	r.AddCell().SetString("Ana")
	path := filepath.Join(t.TempDir(), "people.xlsx")
	require.NoError(t, wb.SaveToFile(path))

	ds, err := Load(path, Options{Sheet: "Data"})
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, ds.Columns)
	require.Len(t, ds.Rows, 1)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(writeFile(t, "old.xls", "x"), Options{})
	assert.ErrorIs(t, err, mailmerge.ErrUnsupportedFormat)

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "bad.xlsx", "not a zip"), Options{})
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.csv", "a,b\n\"unterminated\n"), Options{})
	assert.Error(t, err)
}

func TestReadDelimited_Empty(t *testing.T) {
	ds, err := ReadDelimited(strings.NewReader(""), ',')
	require.NoError(t, err)
	assert.Empty(t, ds.Columns)
	assert.Empty(t, ds.Rows)
}

func TestWriteCSV(t *testing.T) {
	ds, err := ReadDelimited(strings.NewReader("name,,name\nAna,x,\"a,b\"\n"), ',')
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ds))
	assert.Equal(t, "name,Unnamed: 1,name.1\nAna,x,\"a,b\"\n", buf.String())
}
