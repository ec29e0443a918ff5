package source

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/dgnsrekt/readaloud/guided"
	"github.com/fumiama/go-docx"
)

func roleList(rs ...guided.Role) []guided.Role { return rs }

func plain(o guided.Object) string {
	if o.Text == nil {
		return ""
	}
	return o.Text.Plain
}

func TestForFile(t *testing.T) {
	for _, name := range []string{"a.md", "b.YAML", "c.xhtml", "d.pdf", "e.docx", "f.json"} {
		if _, err := ForFile(name); err != nil {
			t.Errorf("ForFile(%s) error = %v", name, err)
		}
		if !Supported(name) {
			t.Errorf("Supported(%s) = false", name)
		}
	}
	if _, err := ForFile("notes.txt"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("ForFile(txt) error = %v, want ErrUnsupported", err)
	}
	if exts := Extensions(); len(exts) != len(parsers) || exts[0] != ".docx" {
		t.Errorf("Extensions() = %v", exts)
	}
}

func TestOpenGuided(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.yml")
	content := `
title: Book
language: en
guided:
  - role: [heading]
    text: Chapter one
  - text: First paragraph.
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "Book" || len(doc.Guided) != 2 {
		t.Errorf("unexpected document %+v", doc)
	}

	if _, err := Open(filepath.Join(t.TempDir(), "missing.md")); err == nil {
		t.Error("Open of a missing file succeeded")
	}
}

const markdownSample = `# Title

Intro sentence one. Intro two.

## Part

- item one
- item two

| a | b |
|---|---|
| 1 | 2 |

` + "```go\nfmt.Println()\n```\n"

func TestMarkdown(t *testing.T) {
	doc, err := NewMarkdown().Parse(strings.NewReader(markdownSample), "doc.md")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "Title" || len(doc.Guided) != 1 {
		t.Fatalf("unexpected document %+v", doc)
	}
	if doc.MediaType("doc.md") != "text/markdown" {
		t.Errorf("MediaType = %q", doc.MediaType("doc.md"))
	}

	top := doc.Guided[0]
	if !reflect.DeepEqual(top.Roles, roleList(guided.RoleSection)) || len(top.Children) != 3 {
		t.Fatalf("top section = %+v", top)
	}
	heading := top.Children[0]
	if plain(heading) != "Title" || heading.TextRef != "doc.md#title" {
		t.Errorf("heading = %+v", heading)
	}
	intro := top.Children[1]
	if len(intro.Children) != 2 || plain(intro.Children[1]) != "Intro two." {
		t.Errorf("intro paragraph = %+v", intro)
	}

	part := top.Children[2]
	if len(part.Children) != 4 {
		t.Fatalf("part section has %d children, want heading, list, table and code", len(part.Children))
	}
	list, table, code := part.Children[1], part.Children[2], part.Children[3]
	if !reflect.DeepEqual(list.Roles, roleList(guided.RoleList)) || len(list.Children) != 2 {
		t.Errorf("list = %+v", list)
	}
	if plain(list.Children[1].Children[0]) != "item two" {
		t.Errorf("second item = %+v", list.Children[1])
	}
	if len(table.Children) != 2 || plain(table.Children[1].Children[0]) != "1" {
		t.Errorf("table = %+v", table)
	}
	if !reflect.DeepEqual(code.Roles, roleList(guided.RoleFigure)) || plain(code) != "fmt.Println()" {
		t.Errorf("code block = %+v", code)
	}
}

const xhtmlSample = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops" lang="en">
<head><title>Chapter 1</title></head>
<body>
<section epub:type="chapter" id="c1">
<h1>One</h1>
<p id="p1">Hello there. General Kenobi<a epub:type="noteref" href="#n1">1</a>.</p>
<span epub:type="pagebreak" id="pg2" title="2"></span>
<aside epub:type="footnote" id="n1"><p>A note.</p></aside>
<ul><li>First</li><li>Second</li></ul>
<img src="fig.png" alt="A figure"/>
</section>
</body>
</html>`

func TestXHTML(t *testing.T) {
	doc, err := NewXHTML().Parse(strings.NewReader(xhtmlSample), "ch1.xhtml")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "Chapter 1" || doc.Language != "en" || len(doc.Guided) != 1 {
		t.Fatalf("unexpected document %+v", doc)
	}

	chapter := doc.Guided[0]
	if !reflect.DeepEqual(chapter.Roles, roleList(guided.RoleChapter, guided.RoleSection)) || chapter.TextRef != "ch1.xhtml#c1" {
		t.Errorf("chapter = %+v", chapter)
	}
	if len(chapter.Children) != 6 {
		t.Fatalf("chapter has %d children, want 6", len(chapter.Children))
	}

	if h := chapter.Children[0]; plain(h) != "One" || !reflect.DeepEqual(h.Roles, roleList(guided.RoleHeading)) {
		t.Errorf("heading = %+v", h)
	}
	p := chapter.Children[1]
	if len(p.Children) != 2 || plain(p.Children[1]) != "General Kenobi." || p.Children[1].TextRef != "ch1.xhtml#p1" {
		t.Errorf("paragraph = %+v", p)
	}
	if p.Children[0].Text.Language != "en" {
		t.Errorf("sentence language = %q, want en", p.Children[0].Text.Language)
	}
	if pb := chapter.Children[2]; plain(pb) != "2" || !reflect.DeepEqual(pb.Roles, roleList(guided.RolePagebreak)) {
		t.Errorf("page break = %+v", pb)
	}
	note := chapter.Children[3]
	if !reflect.DeepEqual(note.Roles, roleList(guided.RoleFootnote, guided.RoleAside)) || plain(note.Children[0]) != "A note." {
		t.Errorf("footnote = %+v", note)
	}
	if list := chapter.Children[4]; len(list.Children) != 2 || plain(list.Children[0]) != "First" {
		t.Errorf("list = %+v", list)
	}
	if img := chapter.Children[5]; img.ImgRef != "fig.png" || plain(img) != "A figure" {
		t.Errorf("image = %+v", img)
	}
}

func TestXHTMLWithoutContent(t *testing.T) {
	_, err := NewXHTML().Parse(strings.NewReader("<html><body>  </body></html>"), "empty.xhtml")
	if !errors.Is(err, guided.ErrEmptyDocument) {
		t.Errorf("error = %v, want ErrEmptyDocument", err)
	}
}

func TestPDFDocument(t *testing.T) {
	pages := []string{"First para. Second.\n\nNext para.", "  ", "Page three."}
	doc, err := NewPDF().document("doc.pdf", pages)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "doc" || len(doc.Guided) != 2 {
		t.Fatalf("unexpected document %+v", doc)
	}

	first := doc.Guided[0]
	if len(first.Children) != 3 || plain(first.Children[0]) != "Page 1" {
		t.Errorf("first page = %+v", first)
	}
	if len(first.Children[1].Children) != 2 || plain(first.Children[2]) != "Next para." {
		t.Errorf("first page paragraphs = %+v", first.Children[1:])
	}
	if doc.Guided[1].TextRef != "doc.pdf#page=3" {
		t.Errorf("third page ref = %q", doc.Guided[1].TextRef)
	}

	if _, err := NewPDF().document("blank.pdf", []string{""}); !errors.Is(err, guided.ErrEmptyDocument) {
		t.Errorf("blank pdf error = %v", err)
	}
}

func TestDOCXDocument(t *testing.T) {
	w := docx.New()
	w.AddParagraph().Style("Title").AddText("Report")
	w.AddParagraph().Style("Heading1").AddText("Intro")
	w.AddParagraph().AddText("Some text. More text.")
	tbl := w.AddTable(1, 2, 0, nil)
	tbl.TableRows[0].TableCells[0].AddParagraph().AddText("A")
	tbl.TableRows[0].TableCells[1].AddParagraph().AddText("B")

	doc, err := NewDOCX().document("r.docx", w)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "Report" || len(doc.Guided) != 1 {
		t.Fatalf("unexpected document %+v", doc)
	}
	intro := doc.Guided[0]
	if len(intro.Children) != 3 || plain(intro.Children[0]) != "Intro" {
		t.Fatalf("intro section = %+v", intro)
	}
	if len(intro.Children[1].Children) != 2 {
		t.Errorf("paragraph = %+v", intro.Children[1])
	}
	table := intro.Children[2]
	if !reflect.DeepEqual(table.Roles, roleList(guided.RoleTable)) || plain(table.Children[0].Children[1]) != "B" {
		t.Errorf("table = %+v", table)
	}
}

func TestHeadingLevel(t *testing.T) {
	tests := map[string]int{
		"Heading1":  1,
		"heading 3": 3,
		"Heading7":  0,
		"Heading":   0,
		"Normal":    0,
		"":          0,
	}
	for style, want := range tests {
		if got := headingLevel(style); got != want {
			t.Errorf("headingLevel(%q) = %d, want %d", style, got, want)
		}
	}
}
