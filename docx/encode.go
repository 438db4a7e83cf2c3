package docx

import (
	"archive/zip"
	"io"
	"strings"

	"github.com/unidoc/unioffice"
	"github.com/unidoc/unioffice/common"
	"github.com/unidoc/unioffice/document"
	"github.com/unidoc/unioffice/zippkg"

	"github.com/aerissecure/mailmerge"
)

// Encoder writes generated documents as DOCX.  The zero value uses the
// default unioffice styles; Source.Encoder carries over a template's styles.
type Encoder struct {
	styles *document.Document
}

// Extension implements mailmerge.Encoder.
func (e *Encoder) Extension() string { return "docx" }

// Encode implements mailmerge.Encoder.
func (e *Encoder) Encode(w io.Writer, doc *mailmerge.Document) error {
	return writePackage(w, e.Build(doc))
}

// Build converts doc into a unioffice document.
func (e *Encoder) Build(doc *mailmerge.Document) *document.Document {
	out := document.New()
	if e.styles != nil {
		out.Styles = e.styles.Styles
	}

	walkBody(doc,
		func(b mailmerge.Block) { writeParagraph(out.AddParagraph(), b) },
		func(t mailmerge.Table) { writeTable(out.AddTable(), t) },
	)
	return out
}

// part is one XML file of a zip package.
type part struct {
	name string
	v    any
}

// writePackage writes the parts of a Build result as a DOCX zip package.
// Document.Save is not used: unlicensed builds add a header part to every
// document it saves and print a banner to stdout.
func writePackage(w io.Writer, d *document.Document) error {
	dt := unioffice.DocTypeDocument
	docFn := unioffice.AbsoluteFilename(dt, unioffice.OfficeDocumentType, 0)

	// Body paragraphs and tables reference no relationships of their own.
	docRels := common.NewRelationships()
	docRels.AddRelationship("settings.xml", unioffice.SettingsType)
	if d.Numbering.X() != nil {
		docRels.AddRelationship("numbering.xml", unioffice.NumberingType)
	}
	docRels.AddRelationship("styles.xml", unioffice.StylesType)

	parts := []part{
		{unioffice.BaseRelsFilename, d.Rels.X()},
		{unioffice.AbsoluteFilename(dt, unioffice.ExtendedPropertiesType, 0), d.AppProperties.X()},
		{unioffice.AbsoluteFilename(dt, unioffice.CorePropertiesType, 0), d.CoreProperties.X()},
		{unioffice.AbsoluteFilename(dt, unioffice.SettingsType, 0), d.Settings.X()},
		{docFn, d.X()},
		{zippkg.RelationsPathFor(docFn), docRels.X()},
	}
	if d.Numbering.X() != nil {
		parts = append(parts, part{unioffice.AbsoluteFilename(dt, unioffice.NumberingType, 0), d.Numbering.X()})
	}
	parts = append(parts,
		part{unioffice.AbsoluteFilename(dt, unioffice.StylesType, 0), d.Styles.X()},
		part{unioffice.ContentTypesFilename, d.ContentTypes.X()},
	)

	z := zip.NewWriter(w)
	for _, p := range parts {
		if err := zippkg.MarshalXML(z, p.name, p.v); err != nil {
			z.Close()
			return err
		}
	}
	return z.Close()
}

func writeParagraph(p document.Paragraph, b mailmerge.Block) {
	if b.Style != "" {
		p.SetStyle(b.Style)
	}
	if b.Text == "" {
		return
	}
	run := p.AddRun()
	for i, line := range strings.Split(b.Text, "\n") {
		if i > 0 {
			run.AddBreak()
		}
		for j, part := range strings.Split(line, "\t") {
			if j > 0 {
				run.AddTab()
			}
			if part != "" {
				run.AddText(part)
			}
		}
	}
}

func writeTable(t document.Table, src mailmerge.Table) {
	if src.Style != "" {
		t.Properties().SetStyle(src.Style)
	}
	for _, row := range src.Rows {
		r := t.AddRow()
		for _, cell := range row.Cells {
			c := r.AddCell()
			if len(cell.Blocks) == 0 {
				// A cell must hold at least one paragraph to be valid.
				c.AddParagraph()
				continue
			}
			for _, b := range cell.Blocks {
				writeParagraph(c.AddParagraph(), b)
			}
		}
	}
}

// walkBody visits blocks and tables of doc in body order.
func walkBody(doc *mailmerge.Document, block func(mailmerge.Block), table func(mailmerge.Table)) {
	ti := 0
	for i, b := range doc.Blocks {
		for ti < len(doc.Tables) && doc.Tables[ti].After <= i {
			table(doc.Tables[ti])
			ti++
		}
		block(b)
	}
	for ; ti < len(doc.Tables); ti++ {
		table(doc.Tables[ti])
	}
}
