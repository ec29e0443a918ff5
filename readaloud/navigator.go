package readaloud

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/guided"
	"github.com/dgnsrekt/readaloud/internal/queue"
	"github.com/google/uuid"
)

// Config holds the collaborators of a read aloud session.
type Config struct {
	Tree *guided.Tree

	// Publication resolves media types for highlight locations. Optional.
	Publication MediaTypeResolver

	// At least one provider is required.
	Audio  AudioEngineProvider
	Speech SpeechEngineProvider

	Settings Settings

	// Start is the node playback begins at. The zero value is the root.
	Start         guided.NodeID
	PlayWhenReady bool

	Observer Observer
}

// Playback is the snapshot published after every transition.
type Playback struct {
	SessionID string

	Condition     Condition
	Err           error
	PlayWhenReady bool

	Node     guided.NodeID
	Location Location

	// Kind, Index and Items describe the active segment. Items is 0 when no
	// segment is bound.
	Kind  SegmentKind
	Index int
	Items int

	Settings Settings
}

// Playing reports whether audio is expected to come out.
func (p Playback) Playing() bool {
	return p.PlayWhenReady && (p.Condition == Ready || p.Condition == Starved)
}

type message interface {
	name() string
}

type (
	playMsg     struct{}
	pauseMsg    struct{}
	goToMsg     struct{ node guided.NodeID }
	stepMsg     struct{ forward bool }
	skipMsg     struct{ forward, force, escape bool }
	settingsMsg struct{ settings Settings }
	closeMsg    struct{}
	startMsg    struct{}

	itemChangedMsg struct {
		engine Engine
		gen    uint64
		index  int
	}
	stateChangedMsg struct {
		engine    Engine
		condition EngineCondition
	}
	completedMsg struct {
		engine Engine
		gen    uint64
	}
	errorMsg struct {
		engine Engine
		err    error
	}
)

func (playMsg) name() string         { return "play" }
func (pauseMsg) name() string        { return "pause" }
func (goToMsg) name() string         { return "go" }
func (stepMsg) name() string         { return "step" }
func (settingsMsg) name() string     { return "settings" }
func (closeMsg) name() string        { return "close" }
func (startMsg) name() string        { return "start" }
func (itemChangedMsg) name() string  { return "item_changed" }
func (stateChangedMsg) name() string { return "state_changed" }
func (completedMsg) name() string    { return "completed" }
func (errorMsg) name() string        { return "error" }

func (m skipMsg) name() string {
	if m.escape {
		return "escape"
	}
	return "skip"
}

// mailboxListener turns engine callbacks into mailbox messages.
type mailboxListener struct {
	mailbox *queue.Mailbox[message]
}

func (l mailboxListener) OnItemChanged(e Engine, gen uint64, index int) {
	_ = l.mailbox.Push(itemChangedMsg{engine: e, gen: gen, index: index}, false)
}

func (l mailboxListener) OnStateChanged(e Engine, c EngineCondition) {
	_ = l.mailbox.Push(stateChangedMsg{engine: e, condition: c}, false)
}

func (l mailboxListener) OnCompleted(e Engine, gen uint64) {
	_ = l.mailbox.Push(completedMsg{engine: e, gen: gen}, false)
}

func (l mailboxListener) OnError(e Engine, err error) {
	_ = l.mailbox.Push(errorMsg{engine: e, err: err}, false)
}

// Navigator runs a read aloud session. Commands and engine events are
// queued into a mailbox and applied one at a time by a single goroutine.
type Navigator struct {
	id     string
	logger *log.Logger

	tree     *guided.Tree
	types    MediaTypeResolver
	observer Observer

	// Owned by the loop goroutine.
	nav     *NavigationHelper
	machine *StateMachine
	state   State

	start         guided.NodeID
	playWhenReady bool

	mailbox  *queue.Mailbox[message]
	snapshot atomic.Pointer[Playback]

	subsMu  sync.Mutex
	subs    map[int]chan Playback
	nextSub int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started   atomic.Bool
	closeOnce sync.Once
}

// NewNavigator validates cfg and returns a navigator that is not running
// yet. Call Start to begin the session.
func NewNavigator(cfg Config) (*Navigator, error) {
	if cfg.Tree == nil || cfg.Tree.Len() == 0 {
		return nil, ErrNilTree
	}
	if cfg.Audio == nil && cfg.Speech == nil {
		return nil, ErrNoBackend
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	start := cfg.Start
	if !cfg.Tree.Valid(start) {
		start = cfg.Tree.Root()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	id := uuid.NewString()
	n := &Navigator{
		id:            id,
		logger:        log.WithPrefix("readaloud").With("session", id[:8]),
		tree:          cfg.Tree,
		types:         cfg.Publication,
		observer:      observer,
		start:         start,
		playWhenReady: cfg.PlayWhenReady,
		mailbox:       queue.NewMailbox[message](),
		subs:          make(map[int]chan Playback),
	}

	n.nav = NewNavigationHelper(cfg.Tree, cfg.Settings)
	factory := NewSegmentFactory(cfg.Tree, cfg.Audio, cfg.Speech, mailboxListener{n.mailbox}, cfg.Settings)
	n.machine = NewStateMachine(n.nav, NewDataLoader(factory, observer))
	n.state = State{
		Condition:     Ended,
		PlayWhenReady: cfg.PlayWhenReady,
		Node:          start,
		Settings:      cfg.Settings,
	}
	n.publish()
	return n, nil
}

// ID returns the session id.
func (n *Navigator) ID() string {
	return n.id
}

// Tree returns the navigation tree of the session.
func (n *Navigator) Tree() *guided.Tree {
	return n.tree
}

// Start launches the session loop. The first segment is resolved on the
// loop goroutine, so Start returns before any engine exists.
func (n *Navigator) Start(ctx context.Context) error {
	if !n.started.CompareAndSwap(false, true) {
		return errors.New("navigator already started")
	}
	n.ctx, n.cancel = context.WithCancel(ctx)
	if err := n.mailbox.Push(startMsg{}, true); err != nil {
		return ErrNavigatorClosed
	}

	n.wg.Add(1)
	go n.loop()
	n.logger.Debug("Session started", "start", n.start, "play", n.playWhenReady)
	return nil
}

// Close stops the session and releases every engine. It waits for the loop
// to exit.
func (n *Navigator) Close() error {
	n.closeOnce.Do(func() {
		if !n.started.Load() {
			_ = n.mailbox.Close()
			n.closeSubscribers()
			return
		}
		_ = n.mailbox.Push(closeMsg{}, true)
		n.wg.Wait()
		n.cancel()
	})
	return nil
}

// Play sets the play intent.
func (n *Navigator) Play() error { return n.send(playMsg{}, false) }

// Pause clears the play intent.
func (n *Navigator) Pause() error { return n.send(pauseMsg{}, false) }

// TogglePlayPause plays when paused and pauses when playing.
func (n *Navigator) TogglePlayPause() error {
	if n.Current().PlayWhenReady {
		return n.Pause()
	}
	return n.Play()
}

// GoTo moves playback to the first content node of node.
func (n *Navigator) GoTo(node guided.NodeID) error {
	if !n.tree.Valid(node) {
		return fmt.Errorf("%w: node %d", ErrLocationNotFound, node)
	}
	return n.send(goToMsg{node: node}, false)
}

// GoToLocation moves playback to the node referencing loc.
func (n *Navigator) GoToLocation(loc Location) error {
	node, ok := NodeForLocation(NewNavigationHelper(n.tree, n.Current().Settings), n.tree, loc)
	if !ok {
		return fmt.Errorf("%w: %s%s", ErrLocationNotFound, loc.Href, loc.CSSSelector)
	}
	return n.send(goToMsg{node: node}, false)
}

// NextNode moves to the next content node in document order.
func (n *Navigator) NextNode() error { return n.send(stepMsg{forward: true}, false) }

// PreviousNode moves to the previous content node in document order.
func (n *Navigator) PreviousNode() error { return n.send(stepMsg{forward: false}, false) }

// SkipForward leaves the nearest skippable container. With force, the
// current node is skipped when no container matches.
func (n *Navigator) SkipForward(force bool) error {
	return n.send(skipMsg{forward: true, force: force}, false)
}

// SkipBackward is SkipForward towards the start of the document.
func (n *Navigator) SkipBackward(force bool) error {
	return n.send(skipMsg{forward: false, force: force}, false)
}

// EscapeForward leaves the nearest escapable container.
func (n *Navigator) EscapeForward(force bool) error {
	return n.send(skipMsg{forward: true, force: force, escape: true}, false)
}

// EscapeBackward leaves the nearest escapable container backwards.
func (n *Navigator) EscapeBackward(force bool) error {
	return n.send(skipMsg{forward: false, force: force, escape: true}, false)
}

// SetSettings replaces the settings. The active segment is rebuilt from the
// current node.
func (n *Navigator) SetSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return n.send(settingsMsg{settings: s}, false)
}

// CanSkip reports whether the current node is inside a skippable container.
func (n *Navigator) CanSkip() bool {
	p := n.Current()
	return NewNavigationHelper(n.tree, p.Settings).IsSkippable(p.Node)
}

// CanEscape reports whether the current node is inside an escapable
// container.
func (n *Navigator) CanEscape() bool {
	p := n.Current()
	return NewNavigationHelper(n.tree, p.Settings).IsEscapable(p.Node)
}

// Current returns the latest snapshot.
func (n *Navigator) Current() Playback {
	return *n.snapshot.Load()
}

// Subscribe returns a channel receiving snapshots. Slow readers only see the
// latest one. The channel is closed when the navigator closes or when the
// returned function is called.
func (n *Navigator) Subscribe() (<-chan Playback, func()) {
	ch := make(chan Playback, 1)
	ch <- n.Current()

	n.subsMu.Lock()
	id := n.nextSub
	n.nextSub++
	if n.subs == nil {
		close(ch)
	} else {
		n.subs[id] = ch
	}
	n.subsMu.Unlock()

	return ch, func() {
		n.subsMu.Lock()
		defer n.subsMu.Unlock()
		if c, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(c)
		}
	}
}

func (n *Navigator) send(m message, priority bool) error {
	if err := n.mailbox.Push(m, priority); err != nil {
		return ErrNavigatorClosed
	}
	return nil
}

func (n *Navigator) loop() {
	defer n.wg.Done()
	defer n.closeSubscribers()

	for {
		m, err := n.mailbox.Pop(n.ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrQueueClosed) {
				n.state = n.machine.Close(n.state)
				_ = n.mailbox.Close()
				n.publish()
			}
			n.logger.Debug("Session loop stopped", "reason", err)
			return
		}

		if _, ok := m.(closeMsg); ok {
			n.state = n.machine.Close(n.state)
			_ = n.mailbox.Close()
			n.observer.CommandHandled(m.name())
			n.publish()
			n.logger.Debug("Session closed")
			return
		}

		before := n.state.Condition
		if !n.handle(m) {
			continue
		}
		if n.state.Condition != before {
			n.observer.ConditionChanged(n.state.Condition)
			if n.state.Condition == Failure {
				n.logger.Warn("Playback failed", "node", n.state.Node, "err", n.state.Err)
			}
		}
		n.publish()
	}
}

// handle applies m to the state. It returns false when m was dropped.
func (n *Navigator) handle(m message) bool {
	s := n.state
	switch m := m.(type) {
	case startMsg:
		n.state = n.machine.Start(n.start, n.playWhenReady, s.Settings)
		if n.state.Segment == nil {
			n.logger.Info("No playable content", "start", n.start)
		}

	case playMsg:
		n.state = n.machine.Resume(s)

	case pauseMsg:
		n.state = n.machine.Pause(s)

	case goToMsg:
		n.state = n.machine.Jump(s, m.node)

	case stepMsg:
		var (
			target guided.NodeID
			ok     bool
		)
		if m.forward {
			target, ok = n.nav.NextContentNode(s.Node)
		} else if prev, found := n.nav.Previous(s.Node); found {
			target, ok = n.nav.ContentNodeAtOrBefore(prev)
		}
		if !ok {
			return false
		}
		n.state = n.machine.Jump(s, target)

	case skipMsg:
		target, ok := n.skipTarget(s.Node, m)
		if !ok {
			n.logger.Debug("Nothing to leave", "op", m.name(), "node", s.Node)
			return false
		}
		n.state = n.machine.Jump(s, target)

	case settingsMsg:
		n.state = n.machine.UpdateSettings(s, m.settings)
		n.logger.Debug("Settings applied", "language", m.settings.Language, "speed", m.settings.Speed)

	case itemChangedMsg:
		if !n.current(m.engine) || m.gen != m.engine.Generation() {
			return n.drop(m)
		}
		n.state = n.machine.OnEngineItemChanged(s, m.index)

	case stateChangedMsg:
		if !n.current(m.engine) {
			return n.drop(m)
		}
		n.state = n.machine.OnEngineStateChanged(s, m.condition)

	case completedMsg:
		if !n.current(m.engine) || m.gen != m.engine.Generation() {
			return n.drop(m)
		}
		n.state = n.machine.OnPlaybackCompleted(s)

	case errorMsg:
		if !n.current(m.engine) {
			return n.drop(m)
		}
		n.state = n.machine.OnEngineError(s, m.err)

	default:
		return false
	}
	n.observer.CommandHandled(m.name())
	return true
}

func (n *Navigator) skipTarget(node guided.NodeID, m skipMsg) (guided.NodeID, bool) {
	var (
		target guided.NodeID
		ok     bool
	)
	switch {
	case m.escape && m.forward:
		target, ok = n.nav.EscapeToNext(node, m.force)
	case m.escape:
		target, ok = n.nav.EscapeToPrevious(node, m.force)
	case m.forward:
		target, ok = n.nav.SkipToNext(node, m.force)
	default:
		target, ok = n.nav.SkipToPrevious(node, m.force)
	}
	if !ok || m.forward {
		return target, ok
	}
	return n.nav.ContentNodeAtOrBefore(target)
}

func (n *Navigator) current(e Engine) bool {
	return n.state.Segment != nil && n.state.Segment.Engine == e
}

func (n *Navigator) drop(m message) bool {
	n.observer.StaleEventDropped()
	n.logger.Debug("Dropped stale engine event", "event", m.name())
	return false
}

func (n *Navigator) publish() {
	s := n.state
	p := &Playback{
		SessionID:     n.id,
		Condition:     s.Condition,
		Err:           s.Err,
		PlayWhenReady: s.PlayWhenReady,
		Node:          s.Node,
		Index:         s.Index,
		Settings:      s.Settings,
	}
	if s.Segment != nil {
		p.Kind = s.Segment.Kind
		p.Items = len(s.Segment.Nodes)
		if loc, ok := LocationOf(n.tree, s, n.types); ok {
			p.Location = loc
		}
	}
	n.snapshot.Store(p)

	n.subsMu.Lock()
	defer n.subsMu.Unlock()
	for _, ch := range n.subs {
		select {
		case <-ch:
		default:
		}
		ch <- *p
	}
}

func (n *Navigator) closeSubscribers() {
	n.subsMu.Lock()
	defer n.subsMu.Unlock()
	for id, ch := range n.subs {
		close(ch)
		delete(n.subs, id)
	}
	n.subs = nil
}
