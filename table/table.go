// Package table loads mail merge data from spreadsheet and delimited text
// files into a common Dataset, and exports it back to CSV.
package table

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aerissecure/mailmerge"
	"github.com/aerissecure/mailmerge/xlsx"
)

// Options tunes Load.
type Options struct {
	Sheet string // worksheet name for workbooks; "" selects the first sheet
}

// Format identifies how a data file is read.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
)

// DetectFormat picks the reader for path from its extension.  Unknown
// extensions are read as XLSX.
func DetectFormat(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	case ".tsv", ".txt":
		return FormatTSV, nil
	case ".xls", ".xlsb", ".ods":
		return "", fmt.Errorf("%w: %s", mailmerge.ErrUnsupportedFormat, ext)
	default:
		return FormatXLSX, nil
	}
}

// Load reads the data file at path.
func Load(path string, opts Options) (*mailmerge.Dataset, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	if format == FormatXLSX {
		ds, err := xlsx.Open(path, opts.Sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read workbook %s: %w", path, err)
		}
		return ds, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	comma := ','
	if format == FormatTSV {
		comma = '\t'
	}
	ds, err := ReadDelimited(f, comma)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ds, nil
}

// ReadDelimited reads delimited text with a header line.  Records may have
// fewer or more fields than the header; missing fields read as "".
func ReadDelimited(r io.Reader, comma rune) (*mailmerge.Dataset, error) {
	cr := csv.NewReader(stripBOM(r))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	if comma == '\t' {
		cr.LazyQuotes = true
	}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &mailmerge.Dataset{}, nil
	}
	if err != nil {
		return nil, err
	}

	var records [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return mailmerge.NewDataset(header, records), nil
}

// WriteCSV writes ds as comma-separated text with a header line.
func WriteCSV(w io.Writer, ds *mailmerge.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Columns); err != nil {
		return err
	}
	rec := make([]string, len(ds.Columns))
	for _, row := range ds.Rows {
		for i, c := range ds.Columns {
			rec[i], _ = row.Text(c)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// stripBOM drops a leading UTF-8 byte order mark, as written by spreadsheet
// applications exporting CSV.
func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	return br
}
