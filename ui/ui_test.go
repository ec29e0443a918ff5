package ui

import (
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/readaloud/guided"
	"github.com/dgnsrekt/readaloud/readaloud"
)

type fakeSession struct {
	tree *guided.Tree

	mu       sync.Mutex
	calls    []string
	current  readaloud.Playback
	settings []readaloud.Settings
	updates  chan readaloud.Playback
	err      error
}

func newFakeSession() *fakeSession {
	tree := guided.NewTree(guided.Object{
		Roles: []guided.Role{guided.RoleSection},
		Children: []guided.Object{
			{Roles: []guided.Role{guided.RoleHeading}, TextRef: "ch1.xhtml#h", Text: &guided.ObjectText{Plain: "Chapter one"}},
			{TextRef: "ch1.xhtml#p1", Text: &guided.ObjectText{Plain: "First paragraph."}},
			{Roles: []guided.Role{guided.RoleAside}, TextRef: "ch1.xhtml#a", Text: &guided.ObjectText{Plain: "A side note."}},
		},
	})
	return &fakeSession{
		tree: tree,
		current: readaloud.Playback{
			Condition: readaloud.Ready,
			Node:      1,
			Settings:  readaloud.DefaultSettings(),
		},
		updates: make(chan readaloud.Playback, 1),
	}
}

func (f *fakeSession) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeSession) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSession) Tree() *guided.Tree { return f.tree }

func (f *fakeSession) Current() readaloud.Playback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeSession) Subscribe() (<-chan readaloud.Playback, func()) {
	return f.updates, func() { f.record("unsubscribe") }
}

func (f *fakeSession) TogglePlayPause() error { return f.record("toggle") }
func (f *fakeSession) NextNode() error        { return f.record("next") }
func (f *fakeSession) PreviousNode() error    { return f.record("previous") }

func (f *fakeSession) GoTo(node guided.NodeID) error {
	return f.record("go " + f.tree.Label(node))
}

func (f *fakeSession) SkipForward(force bool) error {
	if force {
		return f.record("skip_forward!")
	}
	return f.record("skip_forward")
}

func (f *fakeSession) SkipBackward(force bool) error {
	if force {
		return f.record("skip_backward!")
	}
	return f.record("skip_backward")
}

func (f *fakeSession) EscapeForward(force bool) error {
	if force {
		return f.record("escape_forward!")
	}
	return f.record("escape_forward")
}

func (f *fakeSession) EscapeBackward(bool) error { return f.record("escape_backward") }

func (f *fakeSession) SetSettings(s readaloud.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = append(f.settings, s)
	f.current.Settings = s
	return f.err
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m model, key tea.KeyMsg) (model, tea.Msg) {
	t.Helper()
	next, cmd := m.Update(key)
	var msg tea.Msg
	if cmd != nil {
		msg = cmd()
	}
	return next.(model), msg
}

// send delivers key without running the returned command. The text input
// returns cursor blink commands that block for a while.
func send(m model, key tea.KeyMsg) model {
	next, _ := m.Update(key)
	return next.(model)
}

func sized(t *testing.T, s Session) model {
	t.Helper()
	m := newModel(Config{Path: "book.md", SpeedStep: 0.25}, s)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	return next.(model)
}

func TestKeysDriveSession(t *testing.T) {
	tests := []struct {
		key  tea.KeyMsg
		want string
	}{
		{tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, "toggle"},
		{tea.KeyMsg{Type: tea.KeyRight}, "skip_forward"},
		{tea.KeyMsg{Type: tea.KeyShiftRight}, "skip_forward!"},
		{tea.KeyMsg{Type: tea.KeyLeft}, "skip_backward"},
		{tea.KeyMsg{Type: tea.KeyShiftLeft}, "skip_backward!"},
		{runes("e"), "escape_forward"},
		{runes("E"), "escape_forward!"},
		{runes("n"), "next"},
		{runes("p"), "previous"},
	}

	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			s := newFakeSession()
			_, msg := press(t, sized(t, s), tt.key)
			if msg != nil {
				t.Errorf("unexpected message %v", msg)
			}
			if calls := s.Calls(); len(calls) != 1 || calls[0] != tt.want {
				t.Errorf("calls = %v, want [%s]", calls, tt.want)
			}
		})
	}
}

func TestCommandErrorsAreShown(t *testing.T) {
	s := newFakeSession()
	s.err = errors.New("engine exploded")
	m, msg := press(t, sized(t, s), runes("n"))
	if _, ok := msg.(errMsg); !ok {
		t.Fatalf("message = %#v, want errMsg", msg)
	}
	next, _ := m.Update(msg)
	m = next.(model)
	if !m.statusIsError || !strings.Contains(m.View(), "engine exploded") {
		t.Errorf("error not shown in the status bar")
	}

	next, _ = m.Update(errMsg{readaloud.ErrNavigatorClosed})
	if m = next.(model); m.fatalErr == nil {
		t.Errorf("closed navigator should be fatal")
	}
}

func TestSpeedKeys(t *testing.T) {
	s := newFakeSession()
	m := sized(t, s)

	m, msg := press(t, m, runes("+"))
	if len(s.settings) != 1 || s.settings[0].Speed != 1.25 {
		t.Fatalf("settings = %+v, want speed 1.25", s.settings)
	}
	if _, ok := msg.(statusMsg); !ok {
		t.Errorf("message = %#v, want statusMsg", msg)
	}

	_, _ = press(t, m, runes("-"))
	if len(s.settings) != 2 || s.settings[1].Speed != 1.0 {
		t.Errorf("settings = %+v, want speed back to 1", s.settings)
	}

	s.current.Settings.Speed = maxSpeed
	_, msg = press(t, m, runes("+"))
	if len(s.settings) != 2 || msg != nil {
		t.Errorf("speed above the maximum was applied")
	}
}

func TestPlaybackUpdatesView(t *testing.T) {
	s := newFakeSession()
	m := sized(t, s)

	p := s.Current()
	p.Node = 2
	p.PlayWhenReady = true
	p.Kind = readaloud.TextSegment
	p.Index = 0
	p.Items = 3
	next, cmd := m.Update(playbackMsg(p))
	m = next.(model)
	if cmd == nil {
		t.Fatal("expected to keep waiting for playback updates")
	}
	if m.outline.current != 2 {
		t.Errorf("current = %d, want 2", m.outline.current)
	}

	view := m.View()
	for _, want := range []string{"▸ First paragraph.", "▶ playing", "text 1/3", "book.md", "Chapter one"} {
		if !strings.Contains(view, want) {
			t.Errorf("view is missing %q:\n%s", want, view)
		}
	}

	p.Condition = readaloud.Failure
	p.Err = errors.New("no voice")
	next, _ = m.Update(playbackMsg(p))
	if view := next.(model).View(); !strings.Contains(view, "✗ failed: no voice") {
		t.Errorf("failure not shown:\n%s", view)
	}
}

func TestSearchJumps(t *testing.T) {
	s := newFakeSession()
	m := sized(t, s)

	m = send(m, runes("/"))
	if m.state != stateSearching {
		t.Fatalf("state = %s, want searching", m.state)
	}
	for _, r := range "side" {
		m = send(m, runes(string(r)))
	}
	if len(m.search.matches) == 0 || m.search.matches[0].Text != "A side note." {
		t.Fatalf("matches = %+v", m.search.matches)
	}
	if !strings.Contains(m.View(), "▸ A side note.") {
		t.Errorf("search results not shown")
	}
	if len(s.Calls()) != 0 {
		t.Errorf("typing should not drive the session: %v", s.Calls())
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.state != stateReading {
		t.Errorf("state = %s, want reading", m.state)
	}
	if calls := s.Calls(); len(calls) != 1 || calls[0] != "go A side note." {
		t.Errorf("calls = %v", calls)
	}
}

func TestSearchEscape(t *testing.T) {
	s := newFakeSession()
	m := send(sized(t, s), runes("/"))
	m = send(m, runes("x"))
	m = send(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.state != stateReading || len(s.Calls()) != 0 {
		t.Errorf("escape should leave search without jumping")
	}
}

func TestCopyLocation(t *testing.T) {
	s := newFakeSession()
	m := sized(t, s)
	if _, msg := press(t, m, runes("c")); msg == nil {
		t.Error("expected an error without a location")
	} else if _, ok := msg.(errMsg); !ok {
		t.Errorf("message = %#v, want errMsg", msg)
	}
}

func TestQuitUnsubscribes(t *testing.T) {
	s := newFakeSession()
	_, msg := press(t, sized(t, s), runes("q"))
	if _, ok := msg.(tea.QuitMsg); !ok {
		t.Errorf("message = %#v, want QuitMsg", msg)
	}
	if calls := s.Calls(); len(calls) != 1 || calls[0] != "unsubscribe" {
		t.Errorf("calls = %v, want [unsubscribe]", calls)
	}
}

func TestWaitForPlayback(t *testing.T) {
	ch := make(chan readaloud.Playback, 1)
	ch <- readaloud.Playback{Node: 3}
	if msg := waitForPlayback(ch)(); msg.(playbackMsg).Node != 3 {
		t.Errorf("got %#v", msg)
	}
	close(ch)
	if _, ok := waitForPlayback(ch)().(sessionClosedMsg); !ok {
		t.Error("closed channel should end the session")
	}
}
