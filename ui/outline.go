package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/readaloud/guided"
	"github.com/dgnsrekt/readaloud/readaloud"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
)

const (
	statusBarHeight  = 1
	nowReadingHeight = 4
	indentWidth      = 2
)

type outlineEntry struct {
	node  guided.NodeID
	depth int
	label string
	roles guided.RoleSet
}

// outlineModel shows the navigation tree, one line per labelled node, and
// keeps the node being read in view.
type outlineModel struct {
	common   *commonModel
	viewport viewport.Model

	entries []outlineEntry
	lines   map[guided.NodeID]int
	current guided.NodeID

	// follow recenters the viewport on the current node after every
	// update. Scrolling by hand turns it off until the next jump.
	follow bool
}

func newOutlineModel(common *commonModel) outlineModel {
	m := outlineModel{
		common:   common,
		viewport: viewport.New(0, 0),
		lines:    make(map[guided.NodeID]int),
		follow:   true,
	}

	tree := common.session.Tree()
	tree.Walk(tree.Root(), func(id guided.NodeID, depth int) bool {
		label := tree.Label(id)
		if label == "" {
			return true
		}
		m.lines[id] = len(m.entries)
		m.entries = append(m.entries, outlineEntry{
			node:  id,
			depth: depth,
			label: label,
			roles: tree.Roles(id),
		})
		return true
	})
	return m
}

func (m *outlineModel) setSize(w, h int) {
	m.viewport.Width = w
	m.viewport.Height = max(0, h-statusBarHeight-nowReadingHeight)
	m.render()
}

// setCurrent marks id as being read. Nodes without a line of their own are
// shown through their closest labelled ancestor.
func (m *outlineModel) setCurrent(id guided.NodeID) {
	if id == m.current {
		return
	}
	m.current = id
	m.render()
}

func (m *outlineModel) currentLine() (int, bool) {
	tree := m.common.session.Tree()
	id := m.current
	for {
		if line, ok := m.lines[id]; ok {
			return line, true
		}
		parent, ok := tree.Parent(id)
		if !ok {
			return 0, false
		}
		id = parent
	}
}

func (m *outlineModel) render() {
	width := m.width()
	current, hasCurrent := m.currentLine()
	skippable := m.common.session.Current().Settings.SkippableRoles

	var b strings.Builder
	for i, e := range m.entries {
		prefix := strings.Repeat(" ", e.depth*indentWidth)
		marker := "  "
		if hasCurrent && i == current {
			marker = "▸ "
		}

		var suffix string
		if m.common.cfg.ShowRoles && len(e.roles) > 0 {
			suffix = " " + rolesStyle.Render(e.roles.String())
		}

		room := max(0, width-ansi.PrintableRuneWidth(prefix+marker)-ansi.PrintableRuneWidth(suffix))
		label := truncate.StringWithTail(e.label, uint(room), ellipsis) //nolint:gosec

		switch {
		case hasCurrent && i == current:
			label = currentNodeStyle.Render(label)
		case e.roles.Has(guided.RoleHeading):
			label = headingStyle.Render(label)
		case e.roles.Intersects(skippable):
			label = skippableStyle.Render(label)
		}

		b.WriteString(prefix + marker + label + suffix)
		if i+1 < len(m.entries) {
			b.WriteRune('\n')
		}
	}
	m.viewport.SetContent(b.String())

	if m.follow && hasCurrent {
		m.viewport.SetYOffset(current - m.viewport.Height/2)
	}
}

func (m outlineModel) width() int {
	w := m.viewport.Width
	if limit := int(m.common.cfg.MaxWidth); limit > 0 && limit < w { //nolint:gosec
		w = limit
	}
	return w
}

func (m outlineModel) update(msg tea.Msg) (outlineModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "home", "g":
			m.follow = false
			m.viewport.GotoTop()
			return m, nil
		case "end", "G":
			m.follow = false
			m.viewport.GotoBottom()
			return m, nil
		case "d":
			m.follow = false
			m.viewport.HalfPageDown()
			return m, nil
		case "u":
			m.follow = false
			m.viewport.HalfPageUp()
			return m, nil
		case ".":
			m.follow = true
			m.render()
			return m, nil
		case "up", "k", "down", "j", "pgup", "pgdown", "b", "f":
			m.follow = false
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m outlineModel) View() string {
	return m.viewport.View()
}

// nowReadingView shows the full text of the node being read, wrapped to the
// terminal width.
func (m outlineModel) nowReadingView(p readaloud.Playback) string {
	width := max(1, m.width())
	tree := m.common.session.Tree()

	var text string
	if tree.Valid(p.Node) {
		text = tree.Label(p.Node)
	}
	if t, ok := tree.Text(p.Node); ok && t.Language != "" {
		text = fmt.Sprintf("[%s] %s", t.Language, text)
	}

	lines := strings.Split(wordwrap.String(text, width), "\n")
	const maxLines = nowReadingHeight - 1
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		last := truncate.String(lines[maxLines-1], uint(max(0, width-1))) //nolint:gosec
		lines[maxLines-1] = last + ellipsis
	}
	for len(lines) < maxLines {
		lines = append(lines, "")
	}
	return nowReadingStyle.Width(width).Render(strings.Join(lines, "\n"))
}
