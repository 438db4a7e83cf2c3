package mailmerge

import (
	"regexp"
	"slices"
)

// RenderOptions tunes a Renderer.
type RenderOptions struct {
	// SubstituteTables also replaces mapped tokens inside table cells.  By
	// default table content is copied with its tokens left literal.
	SubstituteTables bool
}

// substitution is the compiled replacement of one mapped variable.
type substitution struct {
	variable string
	column   string
	re       *regexp.Regexp
}

func (s *substitution) apply(text string, row Row) string {
	// Absent columns render as "".  Presence is enforced by the batch driver.
	value, _ := row.Text(s.column)
	return s.re.ReplaceAllLiteralString(text, value)
}

// Renderer produces one Document per row from a shared template.  Patterns are
// compiled once in NewRenderer and reused for every row, so a Renderer should
// live for the whole run.  It is safe for concurrent use.
type Renderer struct {
	tmpl    *Template
	opts    RenderOptions
	all     []*substitution   // every mapped variable, sorted by name
	byBlock [][]*substitution // candidates per top-level block index
}

// NewRenderer compiles the mapping against t and idx.
func NewRenderer(t *Template, idx *Index, m Mapping, opts RenderOptions) *Renderer {
	if idx == nil {
		idx = NewIndex(t)
	}
	r := &Renderer{
		tmpl:    t,
		opts:    opts,
		byBlock: make([][]*substitution, len(t.Blocks)),
	}

	for _, v := range m.Variables() {
		s := &substitution{
			variable: v,
			column:   m[v],
			re:       regexp.MustCompile(regexp.QuoteMeta(Token(v))),
		}
		r.all = append(r.all, s)

		for _, i := range idx.Positions(v) {
			if i < 0 || i >= len(r.byBlock) {
				continue
			}
			// Positions may repeat when a block holds the token more than once.
			if slices.Contains(r.byBlock[i], s) {
				continue
			}
			r.byBlock[i] = append(r.byBlock[i], s)
		}
	}

	return r
}

// Candidates returns the mapped variables that will be substituted in the
// top-level block at index i.
func (r *Renderer) Candidates(i int) []string {
	if i < 0 || i >= len(r.byBlock) {
		return nil
	}
	out := make([]string, len(r.byBlock[i]))
	for j, s := range r.byBlock[i] {
		out[j] = s.variable
	}
	return out
}

// Render builds the document for row.  The template is never modified.
func (r *Renderer) Render(row Row) *Document {
	doc := &Document{
		Blocks: make([]Block, len(r.tmpl.Blocks)),
		Tables: cloneTables(r.tmpl.Tables),
	}

	for i, b := range r.tmpl.Blocks {
		text := b.Text
		for _, s := range r.byBlock[i] {
			text = s.apply(text, row)
		}
		doc.Blocks[i] = Block{Style: b.Style, Text: text}
	}

	if r.opts.SubstituteTables {
		for t := range doc.Tables {
			for _, tr := range doc.Tables[t].Rows {
				for _, cell := range tr.Cells {
					for k := range cell.Blocks {
						cell.Blocks[k].Text = r.substituteAll(cell.Blocks[k].Text, row)
					}
				}
			}
		}
	}

	return doc
}

func (r *Renderer) substituteAll(text string, row Row) string {
	for _, s := range r.all {
		text = s.apply(text, row)
	}
	return text
}
