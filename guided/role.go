package guided

import (
	"sort"
	"strings"
)

// Role is a semantic tag attached to a guided navigation node.
type Role string

// Roles found in guided navigation documents. The list follows the EPUB
// structural semantics vocabulary and the ARIA roles used by publishers.
const (
	RoleAside        Role = "aside"
	RoleBibliography Role = "bibliography"
	RoleCell         Role = "cell"
	RoleChapter      Role = "chapter"
	RoleEndnotes     Role = "endnotes"
	RoleFigure       Role = "figure"
	RoleFootnote     Role = "footnote"
	RoleHeading      Role = "heading"
	RoleLandmarks    Role = "landmarks"
	RoleList         Role = "list"
	RoleListItem     Role = "listItem"
	RoleLOA          Role = "loa"
	RoleLOI          Role = "loi"
	RoleLOT          Role = "lot"
	RoleLOV          Role = "lov"
	RoleNoteref      Role = "noteref"
	RolePagebreak    Role = "pagebreak"
	RoleParagraph    Role = "paragraph"
	RolePullquote    Role = "pullquote"
	RoleRow          Role = "row"
	RoleSection      Role = "section"
	RoleTable        Role = "table"
	RoleTOC          Role = "toc"
)

// RoleSet is an unordered set of roles. A nil RoleSet is empty.
type RoleSet map[Role]struct{}

// NewRoleSet returns a set holding the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Has reports whether r is in the set.
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Intersects reports whether the two sets share at least one role.
func (s RoleSet) Intersects(other RoleSet) bool {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for r := range small {
		if large.Has(r) {
			return true
		}
	}
	return false
}

// Slice returns the roles sorted alphabetically.
func (s RoleSet) Slice() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s RoleSet) String() string {
	roles := s.Slice()
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}
