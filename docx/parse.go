// Package docx reads mail merge templates from DOCX files and writes generated
// documents back out as DOCX or HTML.
package docx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/unidoc/unioffice/document"
	"github.com/unidoc/unioffice/schema/soo/wml"

	"github.com/aerissecure/mailmerge"
)

// Source is a template read from a DOCX file.  It keeps the parsed document so
// encoders can reuse its style definitions.
type Source struct {
	Template *mailmerge.Template
	doc      *document.Document
}

// Open reads the DOCX template at path.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open template %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat template %s: %w", path, err)
	}
	src, err := Parse(f, info.Size())
	if err != nil {
		return nil, err
	}
	src.Template.Name = filepath.Base(path)
	return src, nil
}

// Parse reads a DOCX template from r/size.  Top-level paragraphs become
// template blocks and top-level tables become tables; both keep body order.
func Parse(r io.ReaderAt, size int64) (*Source, error) {
	doc, err := document.Read(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mailmerge.ErrMalformedTemplate, err)
	}
	tmpl := buildTemplate(doc)
	// The template is only read from here on; extracted media is not needed.
	if doc.TmpPath != "" {
		os.RemoveAll(doc.TmpPath)
		doc.TmpPath = ""
	}
	return &Source{Template: tmpl, doc: doc}, nil
}

// Encoder returns a DOCX encoder that carries over the template's styles.
func (s *Source) Encoder() *Encoder {
	return &Encoder{styles: s.doc}
}

func buildTemplate(doc *document.Document) *mailmerge.Template {
	tmpl := &mailmerge.Template{}

	// ---- Build lookup maps from underlying XML ptr -> high-level wrapper ----
	pMap := make(map[*wml.CT_P]document.Paragraph)
	for _, p := range doc.Paragraphs() {
		pMap[p.X()] = p
	}

	tMap := make(map[*wml.CT_Tbl]document.Table)
	for _, tbl := range doc.Tables() {
		tMap[tbl.X()] = tbl
	}

	body := doc.X().Body
	if body == nil {
		return tmpl
	}

	for _, bl := range body.EG_BlockLevelElts {
		for _, c := range bl.EG_ContentBlockContent {
			for _, cp := range c.P {
				if par, ok := pMap[cp]; ok {
					tmpl.Blocks = append(tmpl.Blocks, convertParagraph(par))
				}
			}
			for _, ct := range c.Tbl {
				if tbl, ok := tMap[ct]; ok {
					t := convertTable(tbl)
					t.After = len(tmpl.Blocks)
					tmpl.Tables = append(tmpl.Tables, t)
				}
			}
		}
	}

	return tmpl
}

// convertParagraph flattens a paragraph's runs into one block.  Run-level
// formatting is not carried; the paragraph style is.
func convertParagraph(p document.Paragraph) mailmerge.Block {
	var sb strings.Builder
	for _, run := range p.Runs() {
		writeRunText(&sb, run.X())
	}
	return mailmerge.Block{Style: p.Style(), Text: sb.String()}
}

// writeRunText appends the text of r.  Tabs become '\t'; line breaks and
// carriage returns become '\n'.
func writeRunText(sb *strings.Builder, r *wml.CT_R) {
	for _, ic := range r.EG_RunInnerContent {
		switch {
		case ic.T != nil:
			sb.WriteString(ic.T.Content)
		case ic.Tab != nil:
			sb.WriteByte('\t')
		case ic.Br != nil, ic.Cr != nil:
			sb.WriteByte('\n')
		}
	}
}

func convertTable(t document.Table) mailmerge.Table {
	rt := mailmerge.Table{Style: tableStyle(t)}

	for _, row := range t.Rows() {
		var rr mailmerge.TableRow
		for _, cell := range row.Cells() {
			var rc mailmerge.Cell
			for _, p := range cell.Paragraphs() {
				rc.Blocks = append(rc.Blocks, convertParagraph(p))
			}
			rr.Cells = append(rr.Cells, rc)
		}
		rt.Rows = append(rt.Rows, rr)
	}

	return rt
}

func tableStyle(t document.Table) string {
	pr := t.X().TblPr
	if pr == nil || pr.TblStyle == nil {
		return ""
	}
	return pr.TblStyle.ValAttr
}
