package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/readaloud/guided"
	"github.com/muesli/reflow/truncate"
)

const maxSearchResults = 8

// searchModel runs a fuzzy search over the node labels. Choosing a result
// jumps the session to that node.
type searchModel struct {
	common  *commonModel
	input   textinput.Model
	matches []guided.Match
	cursor  int
}

func newSearchModel(common *commonModel) searchModel {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "search the document"
	ti.CharLimit = 128
	return searchModel{common: common, input: ti}
}

func (m *searchModel) focus() tea.Cmd {
	m.input.Reset()
	m.matches = nil
	m.cursor = 0
	return m.input.Focus()
}

func (m *searchModel) blur() {
	m.input.Blur()
}

// selected returns the node under the cursor.
func (m searchModel) selected() (guided.NodeID, bool) {
	if m.cursor < 0 || m.cursor >= len(m.matches) {
		return 0, false
	}
	return m.matches[m.cursor].Node, true
}

func (m searchModel) update(msg tea.Msg) (searchModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "ctrl+p", "shift+tab":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "ctrl+n", "tab":
			if m.cursor < min(len(m.matches), maxSearchResults)-1 {
				m.cursor++
			}
			return m, nil
		}
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if query := strings.TrimSpace(m.input.Value()); query != strings.TrimSpace(before) {
		m.matches = nil
		if query != "" {
			m.matches = m.common.session.Tree().Search(query)
		}
		m.cursor = 0
	}
	return m, cmd
}

func (m searchModel) View() string {
	var b strings.Builder
	b.WriteString(m.input.View())

	width := max(0, m.common.width-4)
	for i, match := range m.matches {
		if i == maxSearchResults {
			break
		}
		line := truncate.StringWithTail(match.Text, uint(width), ellipsis) //nolint:gosec
		b.WriteRune('\n')
		if i == m.cursor {
			b.WriteString(searchCursorStyle.Render("▸ ") + searchMatchStyle.Render(line))
		} else {
			b.WriteString("  " + line)
		}
	}
	if len(m.matches) == 0 && m.input.Value() != "" {
		b.WriteString("\n" + subtleStyle.Render("  no matches"))
	}
	return b.String()
}
