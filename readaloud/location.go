package readaloud

import (
	"strings"

	"github.com/dgnsrekt/readaloud/guided"
)

// Location points at the text being read, for highlighting.
type Location struct {
	Href        string `json:"href"`
	MediaType   string `json:"type,omitempty"`
	CSSSelector string `json:"cssSelector,omitempty"`
	Text        string `json:"text,omitempty"`
}

// IsZero reports whether the location points nowhere.
func (l Location) IsZero() bool {
	return l.Href == ""
}

// MediaTypeResolver maps a resource href to its media type.
type MediaTypeResolver interface {
	MediaType(href string) string
}

// LocationOf derives the highlight location of the current item of s.
func LocationOf(tree *guided.Tree, s State, types MediaTypeResolver) (Location, bool) {
	seg := s.Segment
	if seg == nil || s.Index < 0 || s.Index >= len(seg.TextRefs) {
		return Location{}, false
	}
	ref := seg.TextRefs[s.Index]
	if ref == "" {
		return Location{}, false
	}

	href, fragment := guided.SplitFragment(ref)
	loc := Location{Href: href}
	if fragment != "" {
		loc.CSSSelector = "#" + fragment
	}
	if types != nil {
		loc.MediaType = types.MediaType(href)
	}
	if text, ok := tree.Text(seg.Nodes[s.Index]); ok {
		loc.Text = text.Plain
	}
	return loc, true
}

// NodeForLocation returns the first node, in document order, whose text or
// audio reference points at loc, resolved to its first content node. The
// fragment must match exactly: a location without a selector only matches
// references without a fragment.
func NodeForLocation(nav *NavigationHelper, tree *guided.Tree, loc Location) (guided.NodeID, bool) {
	anchor := strings.TrimPrefix(loc.CSSSelector, "#")

	match := guided.NoNode
	tree.Walk(tree.Root(), func(id guided.NodeID, _ int) bool {
		for _, ref := range tree.Refs(id) {
			if ref.Kind == guided.ImageRef {
				continue
			}
			if ref.Href() == loc.Href && ref.Fragment() == anchor {
				match = id
				return false
			}
		}
		return true
	})
	if match == guided.NoNode {
		return guided.NoNode, false
	}
	return nav.FirstContentNode(match)
}
