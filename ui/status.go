package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dgnsrekt/readaloud/readaloud"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
)

// conditionView describes the playback state in a few characters.
func (m model) conditionView() string {
	p := m.playback
	switch p.Condition {
	case readaloud.Ready:
		if p.PlayWhenReady {
			return "▶ playing"
		}
		return "⏸ paused"
	case readaloud.Starved:
		if p.PlayWhenReady {
			return m.spinner.View() + " loading"
		}
		return "⏸ paused"
	case readaloud.Failure:
		return "✗ failed"
	default:
		return "■ ended"
	}
}

func (m model) statusBarView(b *strings.Builder) {
	logo := logoView()
	p := m.playback

	// Position within the segment and speed
	var position string
	if p.Items > 0 {
		position = fmt.Sprintf(" %s %d/%d ", p.Kind, p.Index+1, p.Items)
	}
	position += " " + strconv.FormatFloat(p.Settings.Speed, 'f', -1, 64) + "× "
	position = statusBarPositionStyle(position)

	helpNote := statusBarHelpStyle(" ? Help ")

	style := statusBarNoteStyle
	var note string
	switch {
	case m.statusMessage != "":
		note = m.statusMessage
		style = statusBarMessageStyle
		if m.statusIsError {
			style = statusBarErrorStyle
		}
	case p.Condition == readaloud.Failure && p.Err != nil:
		note = m.conditionView() + ": " + p.Err.Error()
		style = statusBarErrorStyle
	default:
		note = m.conditionView()
		if m.common.cfg.Path != "" {
			note += " · " + m.common.cfg.Path
		}
	}

	room := max(0, m.common.width-
		ansi.PrintableRuneWidth(logo)-
		ansi.PrintableRuneWidth(position)-
		ansi.PrintableRuneWidth(helpNote))
	note = truncate.StringWithTail(" "+note+" ", uint(room), ellipsis) //nolint:gosec

	padding := max(0, room-ansi.PrintableRuneWidth(note))
	fmt.Fprintf(b, "%s%s%s%s%s",
		logo,
		style(note),
		style(strings.Repeat(" ", padding)),
		position,
		helpNote,
	)
}

func (m model) helpView() (s string) {
	col1 := []string{
		"space    play/pause",
		"→/←      skip forward/back",
		"⇧→/⇧←    skip, ignoring roles",
		"e/E      escape (E forces)",
		"n/p      next/previous node",
		"+/-      faster/slower",
	}
	col2 := []string{
		"/        search",
		"c        copy location",
		"k/↑ j/↓  scroll",
		"g/G      top/bottom",
		".        follow reading",
		"q        quit",
	}

	for i := range col1 {
		s += col1[i] + "      " + col2[i] + "\n"
	}
	s = indent(strings.TrimSuffix(s, "\n"), 2)

	// Fill up empty cells with spaces for background coloring
	if m.common.width > 0 {
		lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
		for i := range lines {
			l := runewidth.StringWidth(lines[i])
			lines[i] += strings.Repeat(" ", max(m.common.width-l, 0))
		}
		s = strings.Join(lines, "\n")
	}

	return helpViewStyle(s)
}
