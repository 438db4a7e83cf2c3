package docx

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unidoc/unioffice/document"
	"github.com/unidoc/unioffice/schema/soo/wml"

	"github.com/aerissecure/mailmerge"
)

// writeLetter saves a small template: a heading, a paragraph whose token is
// split across runs, a table, and a closing paragraph with a line break.
func writeLetter(t *testing.T) string {
	t.Helper()
	doc := document.New()

	p := doc.AddParagraph()
	p.SetStyle("Heading1")
	p.AddRun().AddText("Dear {name},")

	p = doc.AddParagraph()
	p.AddRun().AddText("Your balance is {amo")
	p.AddRun().AddText("unt}.")

	tbl := doc.AddTable()
	row := tbl.AddRow()
	row.AddCell().AddParagraph().AddRun().AddText("{sku}")
	row.AddCell().AddParagraph().AddRun().AddText("{name}")

	p = doc.AddParagraph()
	run := p.AddRun()
	run.AddText("Regards")
	run.AddBreak()
	run.AddText("The Bank")

	path := filepath.Join(t.TempDir(), "letter.docx")
	require.NoError(t, doc.SaveToFile(path))
	return path
}

func TestOpen(t *testing.T) {
	src, err := Open(writeLetter(t))
	require.NoError(t, err)
	tmpl := src.Template

	assert.Equal(t, "letter.docx", tmpl.Name)
	require.Len(t, tmpl.Blocks, 3)
	assert.Equal(t, mailmerge.Block{Style: "Heading1", Text: "Dear {name},"}, tmpl.Blocks[0])
	assert.Equal(t, "Your balance is {amount}.", tmpl.Blocks[1].Text)
	assert.Equal(t, "Regards\nThe Bank", tmpl.Blocks[2].Text)

	require.Len(t, tmpl.Tables, 1)
	assert.Equal(t, 2, tmpl.Tables[0].After)
	require.Len(t, tmpl.Tables[0].Rows, 1)
	require.Len(t, tmpl.Tables[0].Rows[0].Cells, 2)
	assert.Equal(t, "{sku}", tmpl.Tables[0].Rows[0].Cells[0].Blocks[0].Text)

	idx := mailmerge.NewIndex(tmpl)
	assert.Equal(t, []string{"amount", "name", "sku"}, idx.Variables())
	assert.Equal(t, []int{0}, idx.Positions("name"))
	assert.Equal(t, []string{"sku"}, idx.InTablesOnly())
}

func TestParse_Malformed(t *testing.T) {
	data := []byte("this is not a zip file")
	_, err := Parse(bytes.NewReader(data), int64(len(data)))
	require.Error(t, err)
	assert.ErrorIs(t, err, mailmerge.ErrMalformedTemplate)
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.docx"))
	assert.Error(t, err)
}

func TestEncoder_RoundTrip(t *testing.T) {
	src, err := Open(writeLetter(t))
	require.NoError(t, err)

	tmpl := src.Template
	idx := mailmerge.NewIndex(tmpl)
	r := mailmerge.NewRenderer(tmpl, idx, mailmerge.Mapping{"name": "Name", "amount": "Amount"}, mailmerge.RenderOptions{})
	doc := r.Render(mailmerge.NewRow(1, []string{"Name", "Amount"}, []string{"Ana", "42"}))

	enc := src.Encoder()
	assert.Equal(t, "docx", enc.Extension())

	var buf bytes.Buffer
	require.NoError(t, enc.Encode(&buf, doc))

	out, err := Parse(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	assert.Equal(t, []mailmerge.Block{
		{Style: "Heading1", Text: "Dear Ana,"},
		{Text: "Your balance is 42."},
		{Text: "Regards\nThe Bank"},
	}, out.Template.Blocks)

	// Table placeholders stay literal unless table substitution is enabled.
	require.Len(t, out.Template.Tables, 1)
	assert.Equal(t, 2, out.Template.Tables[0].After)
	assert.Equal(t, "{name}", out.Template.Tables[0].Rows[0].Cells[1].Blocks[0].Text)
}

func TestOpen_CarriageReturn(t *testing.T) {
	doc := document.New()
	run := doc.AddParagraph().AddRun()
	run.AddText("a")
	run.X().EG_RunInnerContent = append(run.X().EG_RunInnerContent, &wml.EG_RunInnerContent{Cr: wml.NewCT_Empty()})
	run.AddText("b")
	run.AddTab()
	run.AddText("c")

	path := filepath.Join(t.TempDir(), "cr.docx")
	require.NoError(t, doc.SaveToFile(path))

	src, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a\nb\tc"}, blockTexts(src.Template.Blocks))
}

func TestOpen_RemovesTempFiles(t *testing.T) {
	path := writeLetter(t)
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	for i := 0; i < 3; i++ {
		_, err := Open(path)
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEncoder_PackageParts(t *testing.T) {
	src, err := Open(writeLetter(t))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, src.Encoder().Encode(&buf, &mailmerge.Document{Blocks: src.Template.Blocks}))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var names []string
	var body []byte
	for _, f := range zr.File {
		names = append(names, f.Name)
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			require.NoError(t, err)
			body, err = io.ReadAll(rc)
			rc.Close()
			require.NoError(t, err)
		}
	}
	assert.ElementsMatch(t, []string{
		"_rels/.rels",
		"docProps/app.xml",
		"docProps/core.xml",
		"word/settings.xml",
		"word/document.xml",
		"word/_rels/document.xml.rels",
		"word/numbering.xml",
		"word/styles.xml",
		"[Content_Types].xml",
	}, names)
	assert.Contains(t, string(body), "Dear {name},")
	assert.NotContains(t, string(body), "headerReference")
}

func TestEncoder_CarriesTemplateStyles(t *testing.T) {
	src, err := Open(writeLetter(t))
	require.NoError(t, err)

	built := src.Encoder().Build(&mailmerge.Document{})
	assert.Same(t, src.doc.Styles.X(), built.Styles.X())

	var zero Encoder
	assert.NotSame(t, src.doc.Styles.X(), zero.Build(&mailmerge.Document{}).Styles.X())
}

func TestEncoder_EmptyCellsAndBlocks(t *testing.T) {
	doc := &mailmerge.Document{
		Blocks: []mailmerge.Block{{Text: ""}, {Text: "after"}},
		Tables: []mailmerge.Table{{After: 0, Rows: []mailmerge.TableRow{{Cells: []mailmerge.Cell{{}}}}}},
	}
	var buf bytes.Buffer
	require.NoError(t, (&Encoder{}).Encode(&buf, doc))

	out, err := Parse(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, []string{"", "after"}, blockTexts(out.Template.Blocks))
	require.Len(t, out.Template.Tables, 1)
	assert.Equal(t, 0, out.Template.Tables[0].After)
}

func TestHTMLEncoder(t *testing.T) {
	doc := &mailmerge.Document{
		Blocks: []mailmerge.Block{
			{Style: "Title", Text: "Invoice"},
			{Style: "Heading2", Text: "For <Ana>"},
			{Style: "Body Text", Text: "line one\nline two"},
		},
		Tables: []mailmerge.Table{{After: 1, Rows: []mailmerge.TableRow{{Cells: []mailmerge.Cell{
			{Blocks: []mailmerge.Block{{Text: "cell"}}},
			{},
		}}}}},
	}

	var buf bytes.Buffer
	require.NoError(t, HTMLEncoder{}.Encode(&buf, doc))
	html := buf.String()

	assert.Contains(t, html, `<h1 class="style-Title">Invoice</h1>`)
	assert.Contains(t, html, `<h2 class="style-Heading2">For &lt;Ana&gt;</h2>`)
	assert.Contains(t, html, `<p class="style-BodyText">line one<br>line two</p>`)
	assert.Contains(t, html, "<p>cell</p>")
	assert.Contains(t, html, "&nbsp;")
	// the table sits between the first and second blocks
	assert.Less(t, strings.Index(html, "Invoice"), strings.Index(html, "<table"))
	assert.Less(t, strings.Index(html, "<table"), strings.Index(html, "For &lt;Ana&gt;"))
	assert.Equal(t, "html", HTMLEncoder{}.Extension())
}

func TestHeadingLevel(t *testing.T) {
	assert.Equal(t, 1, headingLevel("Heading1"))
	assert.Equal(t, 3, headingLevel("heading 3"))
	assert.Equal(t, 1, headingLevel("Title"))
	assert.Equal(t, 0, headingLevel("Heading7"))
	assert.Equal(t, 0, headingLevel("Normal"))
}

func blockTexts(blocks []mailmerge.Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.Text
	}
	return out
}
