package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgnsrekt/readaloud/guided"
	"github.com/dgnsrekt/readaloud/internal/text"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	gmtext "github.com/yuin/goldmark/text"
)

// Markdown converts CommonMark with GitHub tables.
type Markdown struct {
	md       goldmark.Markdown
	splitter *text.Splitter
}

// NewMarkdown returns a markdown parser.
func NewMarkdown() *Markdown {
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
		splitter: text.NewSplitter(),
	}
}

// Parse implements Parser. Headings get text references of the form
// name#heading-id.
func (m *Markdown) Parse(r io.Reader, name string) (*guided.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown: %w", err)
	}
	doc := m.md.Parser().Parse(gmtext.NewReader(src))

	root := &block{}
	sections := newOutline(root)
	var title string

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok {
			m.convert(sections.current(), n, src)
			continue
		}
		heading := inlineText(h, src)
		var ref string
		if id, ok := h.AttributeString("id"); ok {
			if b, ok := id.([]byte); ok {
				ref = name + "#" + string(b)
			}
		}
		if title == "" && h.Level == 1 {
			title = heading
		}
		sections.heading(h.Level, heading, ref, "")
	}
	return document(name, title, "", "text/markdown", root)
}

func (m *Markdown) convert(parent *block, n ast.Node, src []byte) {
	switch n := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		if img, ok := n.FirstChild().(*ast.Image); ok && n.ChildCount() == 1 {
			parent.add(&block{
				roles:  []guided.Role{guided.RoleFigure},
				imgRef: string(img.Destination),
				text:   inlineText(img, src),
			})
			return
		}
		parent.add(paragraph(m.splitter, inlineText(n, src), "", ""))

	case *ast.List:
		list := parent.add(&block{roles: []guided.Role{guided.RoleList}})
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			li := list.add(&block{roles: []guided.Role{guided.RoleListItem}})
			for c := item.FirstChild(); c != nil; c = c.NextSibling() {
				m.convert(li, c, src)
			}
		}

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		parent.add(&block{roles: []guided.Role{guided.RoleFigure}, text: codeLines(n, src)})

	case *east.Table:
		table := parent.add(&block{roles: []guided.Role{guided.RoleTable}})
		for row := n.FirstChild(); row != nil; row = row.NextSibling() {
			r := table.add(&block{roles: []guided.Role{guided.RoleRow}})
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				r.add(&block{roles: []guided.Role{guided.RoleCell}, text: inlineText(cell, src)})
			}
		}

	case *ast.HTMLBlock, *ast.ThematicBreak:

	default:
		// Blockquotes and unknown containers are transparent.
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			m.convert(parent, c, src)
		}
	}
}

// inlineText flattens the inline content of n.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(src))
			if c.SoftLineBreak() || c.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(c.Value)
		case *ast.AutoLink:
			b.Write(c.Label(src))
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return text.Normalize(b.String())
}

func codeLines(n ast.Node, src []byte) string {
	lines := n.Lines()
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		parts = append(parts, strings.TrimRight(string(seg.Value(src)), "\n"))
	}
	return strings.Join(parts, "\n")
}
