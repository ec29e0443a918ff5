package readaloud

import (
	"github.com/dgnsrekt/readaloud/guided"
)

// Condition is the playback condition exposed to the presentation layer.
type Condition int

const (
	// Ready means the active engine can play.
	Ready Condition = iota
	// Starved means the active engine waits for data.
	Starved
	// Ended means there is nothing more to play.
	Ended
	// Failure means the active engine reported an error.
	Failure
)

func (c Condition) String() string {
	switch c {
	case Ready:
		return "ready"
	case Starved:
		return "starved"
	case Ended:
		return "ended"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// State is the complete playback state of a session. Transitions return a
// new State; the previous one is never modified.
type State struct {
	Condition Condition
	// Err is set when Condition is Failure.
	Err error

	PlayWhenReady bool

	// Node is the content node being played. It is kept when Segment is nil
	// so that a restart can resolve it again.
	Node    guided.NodeID
	Segment *Segment
	Index   int

	Settings Settings
}

// StateMachine computes state transitions. Its only side effects are the
// calls made on engines and on the data loader, and it must be driven from
// a single goroutine.
type StateMachine struct {
	nav    *NavigationHelper
	loader *DataLoader
}

// NewStateMachine returns a state machine over nav and loader.
func NewStateMachine(nav *NavigationHelper, loader *DataLoader) *StateMachine {
	return &StateMachine{nav: nav, loader: loader}
}

// Start resolves node and plays it. It is Jump from an empty state.
func (m *StateMachine) Start(node guided.NodeID, playWhenReady bool, settings Settings) State {
	return m.Jump(State{
		Condition:     Ended,
		PlayWhenReady: playWhenReady,
		Node:          node,
		Settings:      settings,
	}, node)
}

// Play binds seg at index and applies the play intent and settings.
func (m *StateMachine) Play(seg *Segment, index int, playWhenReady bool, settings Settings) State {
	m.loader.Activate(seg)

	engine := seg.Engine
	prepare(engine, settings)
	seek(engine, index, playWhenReady)

	node := seg.Nodes[index]
	m.loader.OnPlaybackProgressed(node)

	return State{
		Condition:     conditionOf(engine),
		PlayWhenReady: playWhenReady,
		Node:          node,
		Segment:       seg,
		Index:         index,
		Settings:      settings,
	}
}

// seek moves e to index with the given play intent. A paused intent is set
// before seeking and a playing one after, so a buffered item never starts
// while the engine still holds the old intent.
func seek(e Engine, index int, playWhenReady bool) {
	if !playWhenReady {
		e.SetPlayWhenReady(false)
	}
	e.SeekTo(index)
	if playWhenReady {
		e.SetPlayWhenReady(true)
	}
}

func conditionOf(e Engine) Condition {
	if e.Condition() == EngineStarved {
		return Starved
	}
	return Ready
}

// Pause clears the play intent.
func (m *StateMachine) Pause(s State) State {
	if s.Segment != nil {
		s.Segment.Engine.SetPlayWhenReady(false)
	}
	s.PlayWhenReady = false
	return s
}

// Resume sets the play intent. A paused engine resumes where it stopped;
// after an end or a failure the current item is played again.
func (m *StateMachine) Resume(s State) State {
	if s.Segment == nil {
		s.PlayWhenReady = true
		return m.Jump(s, s.Node)
	}

	switch s.Condition {
	case Ended, Failure:
		return m.Play(s.Segment, s.Index, true, s.Settings)
	default:
		s.Segment.Engine.SetPlayWhenReady(true)
		s.PlayWhenReady = true
		return s
	}
}

// Jump moves playback to the first content node of target, keeping the play
// intent. When target holds no content the state becomes Ended and the
// current position is kept.
func (m *StateMachine) Jump(s State, target guided.NodeID) State {
	node, ok := m.nav.FirstContentNode(target)
	if !ok {
		return m.end(s)
	}
	ref, ok := m.loader.ItemRef(node)
	if !ok || !ref.HasIndex {
		return m.end(s)
	}
	if s.Segment != nil && s.Segment != ref.Segment {
		m.loader.Release(s.Segment)
	}
	return m.Play(ref.Segment, ref.Index, s.PlayWhenReady, s.Settings)
}

// UpdateSettings applies new settings and restarts from the current node.
func (m *StateMachine) UpdateSettings(s State, settings Settings) State {
	m.nav.SetSettings(settings)
	m.loader.Invalidate(settings)
	s.Settings = settings
	return m.Restart(s)
}

// Restart releases the active engine and resolves the current node again.
func (m *StateMachine) Restart(s State) State {
	if s.Segment != nil {
		m.loader.Release(s.Segment)
		s.Segment = nil
	}
	s.Condition = Ended
	s.Err = nil

	node, ok := m.nav.FirstContentNode(s.Node)
	if !ok {
		return s
	}
	ref, ok := m.loader.ItemRef(node)
	if !ok || !ref.HasIndex {
		return s
	}
	return m.Play(ref.Segment, ref.Index, s.PlayWhenReady, s.Settings)
}

// OnEngineStateChanged maps a condition reported by the active engine.
func (m *StateMachine) OnEngineStateChanged(s State, c EngineCondition) State {
	switch c {
	case EngineEnded:
		return m.OnPlaybackCompleted(s)
	case EngineStarved:
		if s.Condition == Ready {
			s.Condition = Starved
		}
	case EngineReady:
		if s.Condition == Starved {
			s.Condition = Ready
		}
	}
	return s
}

// OnEngineItemChanged follows an engine that moved to another item on its
// own.
func (m *StateMachine) OnEngineItemChanged(s State, index int) State {
	if s.Segment == nil || index < 0 || index >= len(s.Segment.Nodes) {
		return s
	}
	s.Index = index
	s.Node = s.Segment.Nodes[index]
	m.loader.OnPlaybackProgressed(s.Node)
	return s
}

// OnPlaybackCompleted handles the end of the current item: the next item of
// the segment, else the first item of the next segment, else Ended. With
// ReadContinuously off the next item is loaded paused.
func (m *StateMachine) OnPlaybackCompleted(s State) State {
	seg := s.Segment
	if seg == nil {
		return s
	}
	playWhenReady := s.PlayWhenReady && s.Settings.ReadContinuously

	if s.Index+1 < len(seg.Nodes) {
		s.Index++
		s.Node = seg.Nodes[s.Index]
		seek(seg.Engine, s.Index, playWhenReady)
		s.PlayWhenReady = playWhenReady
		s.Condition = conditionOf(seg.Engine)
		s.Err = nil
		m.loader.OnPlaybackProgressed(s.Node)
		return s
	}

	boundary, ok := seg.Boundary()
	if !ok {
		return m.end(s)
	}
	ref, ok := m.loader.ItemRef(boundary)
	if !ok || ref.Segment == seg || len(ref.Segment.Nodes) == 0 {
		return m.end(s)
	}
	m.loader.Release(seg)
	return m.Play(ref.Segment, 0, playWhenReady, s.Settings)
}

// OnEngineError turns a backend fault into a Failure. There is no retry.
func (m *StateMachine) OnEngineError(s State, err error) State {
	s.Condition = Failure
	s.Err = err
	return s
}

// Close releases every engine. The returned state is Ended.
func (m *StateMachine) Close(s State) State {
	m.loader.Close()
	s.Segment = nil
	s.Condition = Ended
	s.PlayWhenReady = false
	return s
}

func (m *StateMachine) end(s State) State {
	if s.Segment != nil {
		s.Segment.Engine.SetPlayWhenReady(false)
	}
	s.Condition = Ended
	s.Err = nil
	return s
}
