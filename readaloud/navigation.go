package readaloud

import (
	"github.com/dgnsrekt/readaloud/guided"
	"golang.org/x/text/language"
)

// ContentClass tells which backend can play a node.
type ContentClass int

const (
	ContentEmpty ContentClass = iota
	ContentAudio
	ContentText
)

func (c ContentClass) String() string {
	switch c {
	case ContentAudio:
		return "audio"
	case ContentText:
		return "text"
	default:
		return "empty"
	}
}

// Classify returns the content class of id. A node is audio when it owns an
// audio reference paired with a text reference for highlighting, text when
// it owns non-empty inline text, and empty otherwise.
func Classify(tree *guided.Tree, id guided.NodeID) ContentClass {
	_, hasAudio := tree.Ref(id, guided.AudioRef)
	_, hasText := tree.Ref(id, guided.TextRef)
	if hasAudio && hasText {
		return ContentAudio
	}
	if text, ok := tree.Text(id); ok && (text.Plain != "" || text.SSML != "") {
		return ContentText
	}
	return ContentEmpty
}

// NavigationHelper answers traversal and role queries over a tree for a
// given set of settings. It holds no mutable state besides the settings.
type NavigationHelper struct {
	tree     *guided.Tree
	settings Settings
}

// NewNavigationHelper returns a helper for tree.
func NewNavigationHelper(tree *guided.Tree, settings Settings) *NavigationHelper {
	return &NavigationHelper{tree: tree, settings: settings}
}

// SetSettings replaces the settings used for role queries.
func (h *NavigationHelper) SetSettings(s Settings) {
	h.settings = s
}

// Next returns the document-order successor of id.
func (h *NavigationHelper) Next(id guided.NodeID) (guided.NodeID, bool) {
	return h.tree.Next(id)
}

// Previous returns the document-order predecessor of id.
func (h *NavigationHelper) Previous(id guided.NodeID) (guided.NodeID, bool) {
	return h.tree.Previous(id)
}

// NearestAncestorMatching walks from id up to the root and returns the first
// node whose roles intersect roles. id itself is considered.
func (h *NavigationHelper) NearestAncestorMatching(id guided.NodeID, roles guided.RoleSet) (guided.NodeID, bool) {
	for cur, ok := id, true; ok; cur, ok = h.tree.Parent(cur) {
		if h.tree.Roles(cur).Intersects(roles) {
			return cur, true
		}
	}
	return guided.NoNode, false
}

func (h *NavigationHelper) IsSkippable(id guided.NodeID) bool {
	_, ok := h.NearestAncestorMatching(id, h.settings.SkippableRoles)
	return ok
}

func (h *NavigationHelper) IsEscapable(id guided.NodeID) bool {
	_, ok := h.NearestAncestorMatching(id, h.settings.EscapableRoles)
	return ok
}

// FirstContentNode returns id or its first descendant, in document order,
// that an engine can play.
func (h *NavigationHelper) FirstContentNode(id guided.NodeID) (guided.NodeID, bool) {
	found := guided.NoNode
	h.tree.Walk(id, func(cur guided.NodeID, _ int) bool {
		if Classify(h.tree, cur) != ContentEmpty {
			found = cur
			return false
		}
		return true
	})
	return found, found != guided.NoNode
}

// SkipToNext returns the node following the nearest skippable ancestor of
// id. With force and no skippable ancestor, it returns the node following
// id itself. Otherwise it returns false and the caller must not move.
func (h *NavigationHelper) SkipToNext(id guided.NodeID, force bool) (guided.NodeID, bool) {
	return h.jumpOut(id, h.settings.SkippableRoles, force, h.tree.NextAfter)
}

// SkipToPrevious is SkipToNext in the backward direction.
func (h *NavigationHelper) SkipToPrevious(id guided.NodeID, force bool) (guided.NodeID, bool) {
	return h.jumpOut(id, h.settings.SkippableRoles, force, h.tree.Previous)
}

// EscapeToNext leaves the nearest escapable ancestor of id.
func (h *NavigationHelper) EscapeToNext(id guided.NodeID, force bool) (guided.NodeID, bool) {
	return h.jumpOut(id, h.settings.EscapableRoles, force, h.tree.NextAfter)
}

// EscapeToPrevious leaves the nearest escapable ancestor of id backwards.
func (h *NavigationHelper) EscapeToPrevious(id guided.NodeID, force bool) (guided.NodeID, bool) {
	return h.jumpOut(id, h.settings.EscapableRoles, force, h.tree.Previous)
}

func (h *NavigationHelper) jumpOut(
	id guided.NodeID,
	roles guided.RoleSet,
	force bool,
	step func(guided.NodeID) (guided.NodeID, bool),
) (guided.NodeID, bool) {
	container, ok := h.NearestAncestorMatching(id, roles)
	if !ok {
		if !force {
			return guided.NoNode, false
		}
		container = id
	}
	return step(container)
}

// TextLanguage returns the language a text node is spoken in.
func (h *NavigationHelper) TextLanguage(id guided.NodeID) language.Tag {
	if h.settings.OverrideContentLanguage {
		return h.settings.Language
	}
	if text, ok := h.tree.Text(id); ok && text.Language != "" {
		if tag, err := language.Parse(text.Language); err == nil {
			return tag
		}
	}
	return h.settings.Language
}

// ContentNodeAtOrBefore returns id when it has content, else the closest
// content node before it in document order. Backward moves resolve through
// it so that landing on a container does not lead back into the subtree
// that was just left.
func (h *NavigationHelper) ContentNodeAtOrBefore(id guided.NodeID) (guided.NodeID, bool) {
	for cur, ok := id, true; ok; cur, ok = h.tree.Previous(cur) {
		if Classify(h.tree, cur) != ContentEmpty {
			return cur, true
		}
	}
	return guided.NoNode, false
}

// NextContentNode returns the first content node after id in document
// order.
func (h *NavigationHelper) NextContentNode(id guided.NodeID) (guided.NodeID, bool) {
	for cur, ok := h.tree.Next(id); ok; cur, ok = h.tree.Next(cur) {
		if Classify(h.tree, cur) != ContentEmpty {
			return cur, true
		}
	}
	return guided.NoNode, false
}
