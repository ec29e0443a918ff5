package source

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dgnsrekt/readaloud/guided"
	"github.com/dgnsrekt/readaloud/internal/text"
	"github.com/fumiama/go-docx"
)

// DOCX converts Word documents. Heading styles open sections.
type DOCX struct {
	splitter *text.Splitter
}

// NewDOCX returns a DOCX parser.
func NewDOCX() *DOCX {
	return &DOCX{splitter: text.NewSplitter()}
}

// Parse implements Parser.
func (d *DOCX) Parse(r io.Reader, name string) (*guided.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read docx: %w", err)
	}
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse docx: %w", err)
	}
	return d.document(name, doc)
}

func (d *DOCX) document(name string, doc *docx.Docx) (*guided.Document, error) {
	root := &block{}
	sections := newOutline(root)
	var title string

	for _, item := range doc.Document.Body.Items {
		switch item := item.(type) {
		case *docx.Paragraph:
			content := paragraphText(item)
			if content == "" {
				continue
			}
			style := paragraphStyle(item)
			if level := headingLevel(style); level > 0 {
				sections.heading(level, content, "", "")
				continue
			}
			if strings.EqualFold(style, "Title") {
				title = content
				continue
			}
			sections.current().add(paragraph(d.splitter, content, "", ""))

		case *docx.Table:
			table := sections.current().add(&block{roles: []guided.Role{guided.RoleTable}})
			for _, tr := range item.TableRows {
				row := table.add(&block{roles: []guided.Role{guided.RoleRow}})
				for _, tc := range tr.TableCells {
					var parts []string
					for _, p := range tc.Paragraphs {
						if t := paragraphText(p); t != "" {
							parts = append(parts, t)
						}
					}
					row.add(&block{roles: []guided.Role{guided.RoleCell}, text: strings.Join(parts, " ")})
				}
			}
		}
	}
	return document(name, title, "", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", root)
}

func paragraphStyle(p *docx.Paragraph) string {
	if p.Properties == nil || p.Properties.Style == nil {
		return ""
	}
	return p.Properties.Style.Val
}

// headingLevel understands both style ids ("Heading2") and names
// ("heading 2").
func headingLevel(style string) int {
	s := strings.ReplaceAll(strings.ToLower(style), " ", "")
	if !strings.HasPrefix(s, "heading") || len(s) != len("heading")+1 {
		return 0
	}
	if level := int(s[len(s)-1] - '0'); level >= 1 && level <= 6 {
		return level
	}
	return 0
}

func paragraphText(p *docx.Paragraph) string {
	var b strings.Builder
	for _, child := range p.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			switch rc := rc.(type) {
			case *docx.Text:
				b.WriteString(rc.Text)
			case *docx.Tab, *docx.BarterRabbet:
				b.WriteByte(' ')
			}
		}
	}
	return text.Normalize(b.String())
}
