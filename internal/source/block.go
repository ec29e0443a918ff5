package source

import (
	"strings"

	"github.com/dgnsrekt/readaloud/guided"
	"github.com/dgnsrekt/readaloud/internal/text"
)

// block is a guided navigation object under construction.
type block struct {
	roles    []guided.Role
	text     string
	lang     string
	textRef  string
	imgRef   string
	children []*block
}

func (b *block) add(c *block) *block {
	b.children = append(b.children, c)
	return c
}

// object converts b. Blocks without text, image or content below them are
// dropped.
func (b *block) object() (guided.Object, bool) {
	obj := guided.Object{
		Roles:    b.roles,
		TextRef:  b.textRef,
		ImgRef:   b.imgRef,
		Children: b.childObjects(),
	}
	if t := strings.TrimSpace(b.text); t != "" {
		obj.Text = &guided.ObjectText{Plain: t, Language: b.lang}
	}
	if obj.Text == nil && obj.ImgRef == "" && len(obj.Children) == 0 {
		return guided.Object{}, false
	}
	return obj, true
}

func (b *block) childObjects() []guided.Object {
	var objects []guided.Object
	for _, c := range b.children {
		if obj, ok := c.object(); ok {
			objects = append(objects, obj)
		}
	}
	return objects
}

// paragraph returns a block for content with one child per sentence. A
// single sentence is kept on the paragraph itself.
func paragraph(s *text.Splitter, content, ref, lang string, roles ...guided.Role) *block {
	if len(roles) == 0 {
		roles = []guided.Role{guided.RoleParagraph}
	}
	b := &block{roles: roles, textRef: ref, lang: lang}

	sentences := s.Split(content)
	switch len(sentences) {
	case 0:
	case 1:
		b.text = sentences[0]
	default:
		for _, sentence := range sentences {
			b.add(&block{text: sentence, textRef: ref, lang: lang})
		}
	}
	return b
}

// outline nests sections by heading level.
type outline struct {
	stack []outlineFrame
}

type outlineFrame struct {
	block *block
	level int
}

func newOutline(root *block) *outline {
	return &outline{stack: []outlineFrame{{block: root}}}
}

// current returns the innermost open section.
func (o *outline) current() *block {
	return o.stack[len(o.stack)-1].block
}

// heading closes sections at level or deeper and opens a new one.
func (o *outline) heading(level int, title, ref, lang string) {
	for len(o.stack) > 1 && o.stack[len(o.stack)-1].level >= level {
		o.stack = o.stack[:len(o.stack)-1]
	}
	section := o.current().add(&block{roles: []guided.Role{guided.RoleSection}, textRef: ref})
	section.add(&block{roles: []guided.Role{guided.RoleHeading}, text: title, textRef: ref, lang: lang})
	o.stack = append(o.stack, outlineFrame{block: section, level: level})
}
