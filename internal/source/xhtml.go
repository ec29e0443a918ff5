package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgnsrekt/readaloud/guided"
	"github.com/dgnsrekt/readaloud/internal/text"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// XHTML converts (X)HTML content documents, such as EPUB chapters. Roles
// come from epub:type and doc- ARIA roles, then from the element.
type XHTML struct {
	splitter *text.Splitter
}

// NewXHTML returns an XHTML parser.
func NewXHTML() *XHTML {
	return &XHTML{splitter: text.NewSplitter()}
}

var structuralRoles = map[string]guided.Role{
	"aside":        guided.RoleAside,
	"bibliography": guided.RoleBibliography,
	"chapter":      guided.RoleChapter,
	"endnotes":     guided.RoleEndnotes,
	"endnote":      guided.RoleFootnote,
	"rearnote":     guided.RoleFootnote,
	"footnote":     guided.RoleFootnote,
	"footnotes":    guided.RoleEndnotes,
	"noteref":      guided.RoleNoteref,
	"pagebreak":    guided.RolePagebreak,
	"pullquote":    guided.RolePullquote,
	"toc":          guided.RoleTOC,
	"landmarks":    guided.RoleLandmarks,
	"loa":          guided.RoleLOA,
	"loi":          guided.RoleLOI,
	"lot":          guided.RoleLOT,
	"lov":          guided.RoleLOV,
	"figure":       guided.RoleFigure,
	"table":        guided.RoleTable,
	"list":         guided.RoleList,
	"list-item":    guided.RoleListItem,
}

var elementRoles = map[atom.Atom]guided.Role{
	atom.Section: guided.RoleSection,
	atom.Article: guided.RoleSection,
	atom.Aside:   guided.RoleAside,
	atom.Figure:  guided.RoleFigure,
	atom.Ul:      guided.RoleList,
	atom.Ol:      guided.RoleList,
	atom.Dl:      guided.RoleList,
	atom.Li:      guided.RoleListItem,
	atom.Dt:      guided.RoleListItem,
	atom.Dd:      guided.RoleListItem,
	atom.Table:   guided.RoleTable,
	atom.Tr:      guided.RoleRow,
	atom.Td:      guided.RoleCell,
	atom.Th:      guided.RoleCell,
	atom.P:       guided.RoleParagraph,
	atom.H1:      guided.RoleHeading,
	atom.H2:      guided.RoleHeading,
	atom.H3:      guided.RoleHeading,
	atom.H4:      guided.RoleHeading,
	atom.H5:      guided.RoleHeading,
	atom.H6:      guided.RoleHeading,
}

var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Body: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Figcaption: true, atom.Figure: true, atom.Footer: true, atom.Header: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Hr: true, atom.Img: true, atom.Li: true, atom.Main: true, atom.Nav: true, atom.Ol: true,
	atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true, atom.Tbody: true,
	atom.Thead: true, atom.Tfoot: true, atom.Tr: true, atom.Td: true, atom.Th: true,
	atom.Ul: true, atom.Caption: true,
}

var ignoredElements = map[atom.Atom]bool{
	atom.Head: true, atom.Script: true, atom.Style: true, atom.Template: true, atom.Noscript: true,
}

// Parse implements Parser. Elements with an id get text references of the
// form name#id.
func (x *XHTML) Parse(r io.Reader, name string) (*guided.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	htmlNode := find(root, atom.Html)
	lang := language(htmlNode)
	var title string
	if t := find(root, atom.Title); t != nil {
		title = text.Normalize(textContent(t))
	}

	body := find(root, atom.Body)
	if body == nil {
		return nil, guided.ErrEmptyDocument
	}
	top := &block{}
	x.convert(top, body, name, lang)
	return document(name, title, lang, "application/xhtml+xml", top)
}

// convert appends the blocks found below n to parent. Runs of inline
// content between block elements become paragraphs.
func (x *XHTML) convert(parent *block, n *html.Node, name, lang string) {
	var inline strings.Builder
	flush := func() {
		if t := text.Normalize(inline.String()); t != "" {
			parent.add(paragraph(x.splitter, t, "", lang))
		}
		inline.Reset()
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode:
			inline.WriteString(c.Data)
		case c.Type != html.ElementNode || ignoredElements[c.DataAtom]:
		case !blockElements[c.DataAtom] && len(roles(c)) == 0:
			inline.WriteString(textContent(c))
		default:
			flush()
			x.element(parent, c, name, lang)
		}
	}
	flush()
}

func (x *XHTML) element(parent *block, n *html.Node, name, lang string) {
	if l := language(n); l != "" {
		lang = l
	}
	var ref string
	if id := attr(n, "id"); id != "" {
		ref = name + "#" + id
	}
	rs := roles(n)

	switch {
	case n.DataAtom == atom.Img:
		parent.add(&block{roles: withRole(rs, guided.RoleFigure), imgRef: attr(n, "src"), text: attr(n, "alt"), textRef: ref, lang: lang})

	case n.DataAtom == atom.P:
		parent.add(paragraph(x.splitter, textContent(n), ref, lang, rs...))

	case n.DataAtom == atom.Hr:

	case !hasBlockChild(n):
		t := text.Normalize(textContent(n))
		if t == "" {
			// Page breaks are usually empty with the page number as title.
			t = attr(n, "title")
		}
		parent.add(&block{roles: rs, text: t, textRef: ref, lang: lang})

	default:
		b := &block{roles: rs, textRef: ref}
		x.convert(b, n, name, lang)
		if len(rs) == 0 && ref == "" {
			parent.children = append(parent.children, b.children...)
			return
		}
		parent.add(b)
	}
}

// roles returns the structural roles of n, falling back to the element
// role.
func roles(n *html.Node) []guided.Role {
	var rs []guided.Role
	for _, key := range []string{"epub:type", "role"} {
		for _, v := range strings.Fields(attr(n, key)) {
			if r, ok := structuralRoles[strings.TrimPrefix(v, "doc-")]; ok && !hasRole(rs, r) {
				rs = append(rs, r)
			}
		}
	}
	if r, ok := elementRoles[n.DataAtom]; ok && !hasRole(rs, r) {
		rs = append(rs, r)
	}
	return rs
}

func withRole(rs []guided.Role, r guided.Role) []guided.Role {
	if hasRole(rs, r) {
		return rs
	}
	return append(rs, r)
}

func hasRole(rs []guided.Role, r guided.Role) bool {
	for _, x := range rs {
		if x == r {
			return true
		}
	}
	return false
}

func hasBlockChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (blockElements[c.DataAtom] || len(roles(c)) > 0) {
			return true
		}
	}
	return false
}

// textContent returns the text below n. Note references and page breaks
// are left out.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				b.WriteString(c.Data)
			case html.ElementNode:
				if ignoredElements[c.DataAtom] {
					continue
				}
				rs := roles(c)
				if hasRole(rs, guided.RoleNoteref) || hasRole(rs, guided.RolePagebreak) {
					continue
				}
				if c.DataAtom == atom.Br {
					b.WriteByte(' ')
				}
				walk(c)
			}
		}
	}
	walk(n)
	return b.String()
}

func find(n *html.Node, a atom.Atom) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, a); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key || (a.Namespace != "" && a.Namespace+":"+a.Key == key) {
			return a.Val
		}
	}
	return ""
}

func language(n *html.Node) string {
	if l := attr(n, "lang"); l != "" {
		return l
	}
	return attr(n, "xml:lang")
}
