// Package ui provides the terminal interface of a read aloud session.
package ui

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/guided"
	"github.com/dgnsrekt/readaloud/readaloud"
	"github.com/muesli/termenv"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show status messages like "copied"
	ellipsis             = "…"
	helpHeight           = 6

	minSpeed = 0.25
	maxSpeed = 4.0
)

// Session is the part of the navigator the interface drives.
type Session interface {
	Tree() *guided.Tree
	Current() readaloud.Playback
	Subscribe() (<-chan readaloud.Playback, func())

	TogglePlayPause() error
	GoTo(node guided.NodeID) error
	NextNode() error
	PreviousNode() error
	SkipForward(force bool) error
	SkipBackward(force bool) error
	EscapeForward(force bool) error
	EscapeBackward(force bool) error
	SetSettings(s readaloud.Settings) error
}

// NewProgram returns a new Tea program reading session.
func NewProgram(cfg Config, session Session) *tea.Program {
	log.Debug("starting interface", "path", cfg.Path, "mouse", cfg.EnableMouse)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, session), opts...)
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

type (
	playbackMsg             readaloud.Playback
	sessionClosedMsg        struct{}
	statusMsg               string
	statusMessageTimeoutMsg struct{}
)

// state is the top-level application state.
type state int

const (
	stateReading state = iota
	stateSearching
)

func (s state) String() string {
	return map[state]string{
		stateReading:   "reading",
		stateSearching: "searching",
	}[s]
}

// Common stuff we'll need to access in all models.
type commonModel struct {
	cfg     Config
	session Session
	width   int
	height  int
}

type model struct {
	common   *commonModel
	state    state
	fatalErr error

	// Sub-models
	outline outlineModel
	search  searchModel
	spinner spinner.Model

	playback    readaloud.Playback
	updates     <-chan readaloud.Playback
	unsubscribe func()

	showHelp           bool
	statusMessage      string
	statusIsError      bool
	statusMessageTimer *time.Timer
}

func newModel(cfg Config, session Session) model {
	if cfg.SpeedStep <= 0 {
		cfg.SpeedStep = 0.25
	}
	common := &commonModel{
		cfg:     cfg,
		session: session,
	}
	updates, unsubscribe := session.Subscribe()

	m := model{
		common:      common,
		state:       stateReading,
		outline:     newOutlineModel(common),
		search:      newSearchModel(common),
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(lipgloss.NewStyle().Foreground(fuchsia))),
		playback:    session.Current(),
		updates:     updates,
		unsubscribe: unsubscribe,
	}
	m.outline.setCurrent(m.playback.Node)
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForPlayback(m.updates), m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been an error, any key exits
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			cmd := m.quit()
			return m, cmd
		}
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			cmd := m.quit()
			return m, cmd
		}
		if m.state == stateSearching {
			return m.updateSearch(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height
		m.resize()
		return m, nil

	case playbackMsg:
		m.playback = readaloud.Playback(msg)
		m.outline.setCurrent(m.playback.Node)
		if m.playback.Condition == readaloud.Failure && m.playback.Err != nil {
			log.Warn("playback failed", "node", m.playback.Node, "err", m.playback.Err)
		}
		return m, waitForPlayback(m.updates)

	case sessionClosedMsg:
		log.Debug("session closed")
		return m, tea.Quit

	case errMsg:
		if errors.Is(msg.err, readaloud.ErrNavigatorClosed) {
			m.fatalErr = msg.err
			return m, nil
		}
		cmd := m.showStatusMessage(msg.Error(), true)
		return m, cmd

	case statusMsg:
		cmd := m.showStatusMessage(string(msg), false)
		return m, cmd

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
		m.statusIsError = false
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.outline, cmd = m.outline.update(msg)
	return m, cmd
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.common.session
	switch msg.String() {
	case "q":
		cmd := m.quit()
		return m, cmd
	case "esc":
		if m.showHelp {
			m.showHelp = false
			m.resize()
		}
		return m, nil
	case "?":
		m.showHelp = !m.showHelp
		m.resize()
		return m, nil

	case " ":
		return m, run(s.TogglePlayPause)
	case "right", "l":
		return m, run(func() error { return s.SkipForward(false) })
	case "shift+right", "L":
		return m, run(func() error { return s.SkipForward(true) })
	case "left", "h":
		return m, run(func() error { return s.SkipBackward(false) })
	case "shift+left", "H":
		return m, run(func() error { return s.SkipBackward(true) })
	case "e":
		m.outline.follow = true
		return m, run(func() error { return s.EscapeForward(false) })
	case "E":
		m.outline.follow = true
		return m, run(func() error { return s.EscapeForward(true) })
	case "n":
		m.outline.follow = true
		return m, run(s.NextNode)
	case "p":
		m.outline.follow = true
		return m, run(s.PreviousNode)
	case "+", "=":
		return m, changeSpeed(s, m.common.cfg.SpeedStep)
	case "-", "_":
		return m, changeSpeed(s, -m.common.cfg.SpeedStep)
	case "c":
		return m, m.copyLocation()
	case "/":
		m.state = stateSearching
		log.Debug("state changed", "state", m.state)
		cmd := m.search.focus()
		return m, cmd
	}

	var cmd tea.Cmd
	m.outline, cmd = m.outline.update(msg)
	return m, cmd
}

func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.state = stateReading
		m.search.blur()
		return m, nil
	case "enter":
		m.state = stateReading
		m.search.blur()
		node, ok := m.search.selected()
		if !ok {
			return m, nil
		}
		s := m.common.session
		m.outline.follow = true
		return m, run(func() error { return s.GoTo(node) })
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.update(msg)
	return m, cmd
}

func (m *model) resize() {
	h := m.common.height
	if m.showHelp {
		h -= helpHeight
	}
	m.outline.setSize(m.common.width, h)
}

func (m *model) showStatusMessage(msg string, isError bool) tea.Cmd {
	m.statusMessage = msg
	m.statusIsError = isError
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

func (m *model) quit() tea.Cmd {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	return tea.Quit
}

func (m model) copyLocation() tea.Cmd {
	loc := m.playback.Location
	if loc.IsZero() {
		return func() tea.Msg { return errMsg{errors.New("nothing to copy")} }
	}
	ref := loc.Href + loc.CSSSelector

	// Copy using OSC 52
	termenv.Copy(ref)
	// Copy using native system clipboard
	if err := clipboard.WriteAll(ref); err != nil {
		log.Debug("clipboard unavailable", "err", err)
	}
	return func() tea.Msg { return statusMsg("Copied " + ref) }
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}

	var b strings.Builder
	if m.state == stateSearching {
		search := m.search.View()
		lines := strings.Count(search, "\n") + 1
		b.WriteString(search)
		b.WriteString(strings.Repeat("\n", max(1, m.outline.viewport.Height-lines+1)))
	} else {
		b.WriteString(m.outline.View() + "\n")
	}
	b.WriteString(m.outline.nowReadingView(m.playback) + "\n")
	m.statusBarView(&b)

	if m.showHelp {
		b.WriteString("\n" + m.helpView())
	}
	return b.String()
}

func errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle.Render("ERROR"),
		err,
		subtleStyle.Render(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// COMMANDS

func waitForPlayback(ch <-chan readaloud.Playback) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return sessionClosedMsg{}
		}
		return playbackMsg(p)
	}
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}

// run turns a navigator command into a tea command reporting its error.
func run(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func changeSpeed(s Session, delta float64) tea.Cmd {
	return func() tea.Msg {
		settings := s.Current().Settings
		speed := math.Round((settings.Speed+delta)*100) / 100
		speed = max(minSpeed, min(maxSpeed, speed))
		if speed == settings.Speed {
			return nil
		}
		settings.Speed = speed
		if err := s.SetSettings(settings); err != nil {
			return errMsg{err}
		}
		return statusMsg(fmt.Sprintf("Speed %.2f×", speed))
	}
}

// ETC

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
