package docx

import (
	"fmt"
	"html"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/aerissecure/mailmerge"
)

// DebugHTML controls whether the raw style identifier of every block is
// included as a data attribute in the rendered HTML.
var DebugHTML bool

// HTMLEncoder writes generated documents as standalone HTML pages.  It is
// used for previews.
type HTMLEncoder struct{}

// Extension implements mailmerge.Encoder.
func (HTMLEncoder) Extension() string { return "html" }

// Encode implements mailmerge.Encoder.
func (HTMLEncoder) Encode(w io.Writer, doc *mailmerge.Document) error {
	_, err := io.WriteString(w, RenderDocumentHTML(doc))
	return err
}

// -----------------------------------------------------------------------------
// Helpers for sanitising attribute values
// -----------------------------------------------------------------------------
var (
	classSafeRe  = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)
	headingStyle = regexp.MustCompile(`^(?i:heading)\s*([1-6])$`)
)

// styleClass turns a style identifier into a CSS class name.  Any character
// that could break out of the attribute is dropped.
func styleClass(style string) string {
	if style == "" {
		return ""
	}
	return "style-" + classSafeRe.ReplaceAllString(style, "")
}

// headingLevel maps Heading1..Heading6 and Title to a heading level; 0 means a
// normal paragraph.
func headingLevel(style string) int {
	if strings.EqualFold(style, "Title") {
		return 1
	}
	if m := headingStyle.FindStringSubmatch(style); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}

// -----------------------------------------------------------------------------
// Paragraph rendering
// -----------------------------------------------------------------------------

func renderTextHTML(text string) string {
	text = html.EscapeString(text)
	text = strings.ReplaceAll(text, "\t", "&emsp;")
	return strings.ReplaceAll(text, "\n", "<br>")
}

func renderParagraphHTML(b mailmerge.Block) string {
	tag := "p"
	if lvl := headingLevel(b.Style); lvl > 0 {
		tag = fmt.Sprintf("h%d", lvl)
	}
	attr := ""
	if cls := styleClass(b.Style); cls != "" {
		attr = fmt.Sprintf(" class=\"%s\"", cls)
	}
	if DebugHTML {
		attr += fmt.Sprintf(" data-style=\"%s\"", html.EscapeString(b.Style))
	}
	return fmt.Sprintf("<%s%s>%s</%s>\n", tag, attr, renderTextHTML(b.Text), tag)
}

// -----------------------------------------------------------------------------
// Table rendering
// -----------------------------------------------------------------------------

func renderTableHTML(t mailmerge.Table) string {
	var b strings.Builder
	attr := ""
	if cls := styleClass(t.Style); cls != "" {
		attr = fmt.Sprintf(" class=\"%s\"", cls)
	}
	b.WriteString(fmt.Sprintf("<table%s style=\"border-collapse:collapse;\">\n", attr))
	for _, row := range t.Rows {
		b.WriteString("  <tr>")
		for _, cell := range row.Cells {
			var cellHTML string
			if len(cell.Blocks) == 0 {
				cellHTML = "&nbsp;"
			} else {
				var paraB strings.Builder
				for _, p := range cell.Blocks {
					paraB.WriteString(renderParagraphHTML(p))
				}
				cellHTML = paraB.String()
			}
			b.WriteString(fmt.Sprintf("<td style=\"border:1px solid #333; padding:4px;\">%s</td>", cellHTML))
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</table>\n")
	return b.String()
}

// -----------------------------------------------------------------------------
// Top-level rendering entry point
// -----------------------------------------------------------------------------

// RenderDocumentHTML converts a generated document into an HTML page.
func RenderDocumentHTML(doc *mailmerge.Document) string {
	var b strings.Builder
	b.WriteString("<html><body>\n")
	walkBody(doc,
		func(blk mailmerge.Block) { b.WriteString(renderParagraphHTML(blk)) },
		func(t mailmerge.Table) { b.WriteString(renderTableHTML(t)) },
	)
	b.WriteString("</body></html>\n")
	return b.String()
}
