package readaloud

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud/guided"
	"golang.org/x/text/language"
)

// fakeEngine records every call made by the state machine.
type fakeEngine struct {
	mu sync.Mutex

	kind     string
	items    int
	listener Listener

	index         int
	playWhenReady bool
	pitch         float64
	speed         float64
	condition     EngineCondition

	seeks    []int
	prepared int
	released int
}

func (e *fakeEngine) SeekTo(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.index = index
	e.seeks = append(e.seeks, index)
}

func (e *fakeEngine) SetPlayWhenReady(play bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playWhenReady = play
}

func (e *fakeEngine) SetPitch(pitch float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pitch = pitch
}

func (e *fakeEngine) SetSpeed(speed float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = speed
}

func (e *fakeEngine) Condition() EngineCondition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.condition
}

func (e *fakeEngine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return uint64(len(e.seeks))
}

func (e *fakeEngine) Prepare() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prepared++
}

func (e *fakeEngine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.released++
}

func (e *fakeEngine) Released() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.released
}

func (e *fakeEngine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playWhenReady
}

func (e *fakeEngine) Seeks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.seeks)
}

type fakeAudio struct {
	mu      sync.Mutex
	fail    bool
	engines []*fakeEngine
	clips   [][]Clip
}

func (p *fakeAudio) CreateAudioEngine(clips []Clip, listener Listener) (Engine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return nil, errors.New("no audio device")
	}
	e := &fakeEngine{kind: "audio", items: len(clips), listener: listener, speed: 1, pitch: 1}
	p.engines = append(p.engines, e)
	p.clips = append(p.clips, clips)
	return e, nil
}

func (p *fakeAudio) Engines() []*fakeEngine {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*fakeEngine(nil), p.engines...)
}

type fakeSpeech struct {
	mu         sync.Mutex
	voices     []Voice
	engines    []*fakeEngine
	utterances [][]Utterance
	used       []Voice
}

func newFakeSpeech() *fakeSpeech {
	return &fakeSpeech{voices: []Voice{
		{ID: "amy", Name: "Amy", Languages: []language.Tag{language.AmericanEnglish}},
		{ID: "alan", Name: "Alan", Languages: []language.Tag{language.BritishEnglish}},
		{ID: "gilles", Name: "Gilles", Languages: []language.Tag{language.French}},
	}}
}

func (p *fakeSpeech) Voices() []Voice {
	return p.voices
}

func (p *fakeSpeech) CreateSpeechEngine(voice Voice, utterances []Utterance, listener Listener) (Engine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := &fakeEngine{kind: "speech", items: len(utterances), listener: listener, speed: 1, pitch: 1}
	p.engines = append(p.engines, e)
	p.utterances = append(p.utterances, utterances)
	p.used = append(p.used, voice)
	return e, nil
}

func (p *fakeSpeech) Engines() []*fakeEngine {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*fakeEngine(nil), p.engines...)
}

type nopListener struct{}

func (nopListener) OnItemChanged(Engine, uint64, int)      {}
func (nopListener) OnStateChanged(Engine, EngineCondition) {}
func (nopListener) OnCompleted(Engine, uint64)             {}
func (nopListener) OnError(Engine, error)                  {}

type countingObserver struct {
	mu       sync.Mutex
	created  int
	released int
	stale    int
	commands map[string]int
}

func (o *countingObserver) SegmentCreated(SegmentKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.created++
}

func (o *countingObserver) SegmentReleased(SegmentKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.released++
}

func (o *countingObserver) CommandHandled(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.commands == nil {
		o.commands = make(map[string]int)
	}
	o.commands[name]++
}

func (o *countingObserver) ConditionChanged(Condition) {}

func (o *countingObserver) StaleEventDropped() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stale++
}

func (o *countingObserver) Stale() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stale
}

type mediaTypes map[string]string

func (m mediaTypes) MediaType(href string) string { return m[href] }

func textNode(text, lang string) guided.Object {
	return guided.Object{Text: &guided.ObjectText{Plain: text, Language: lang}}
}

func audioNode(audio, text string) guided.Object {
	return guided.Object{AudioRef: audio, TextRef: text}
}

// scenarioATree returns:
//
//	0 root
//	1 ├── a1  audio 0-5s
//	2 ├── a2  audio 5-9s
//	3 └── t1  text "en"
func scenarioATree() *guided.Tree {
	t1 := textNode("Hello there.", "en")
	t1.TextRef = "chapter1.xhtml#t1"
	return guided.NewTree(guided.Object{Children: []guided.Object{
		audioNode("chapter1.mp3#t=0,5", "chapter1.xhtml#a1"),
		audioNode("chapter1.mp3#t=5,9", "chapter1.xhtml#a2"),
		t1,
	}})
}

// bookTree returns:
//
//	0  root
//	1  ├── section
//	2  │   ├── p1 "One."
//	3  │   ├── aside
//	4  │   │   └── n1 "Note."
//	5  │   └── p2 "Two."
//	6  ├── figure
//	7  │   └── img
//	8  └── list
//	9      └── item
//	10         └── li "Three."
func bookTree() *guided.Tree {
	return guided.NewTree(guided.Object{Children: []guided.Object{
		{Roles: []guided.Role{guided.RoleSection}, Children: []guided.Object{
			textNode("One.", ""),
			{Roles: []guided.Role{guided.RoleAside}, Children: []guided.Object{
				textNode("Note.", ""),
			}},
			textNode("Two.", ""),
		}},
		{Roles: []guided.Role{guided.RoleFigure}, Children: []guided.Object{
			{ImgRef: "fig1.png"},
		}},
		{Roles: []guided.Role{guided.RoleList}, Children: []guided.Object{
			{Roles: []guided.Role{guided.RoleListItem}, Children: []guided.Object{
				textNode("Three.", ""),
			}},
		}},
	}})
}

func newTestMachine(tree *guided.Tree, settings Settings) (*StateMachine, *fakeAudio, *fakeSpeech) {
	audio := &fakeAudio{}
	speech := newFakeSpeech()
	factory := NewSegmentFactory(tree, audio, speech, nopListener{}, settings)
	machine := NewStateMachine(NewNavigationHelper(tree, settings), NewDataLoader(factory, nil))
	return machine, audio, speech
}

// waitFor subscribes to n and blocks until ok accepts a snapshot.
func waitFor(t *testing.T, n *Navigator, ok func(Playback) bool) Playback {
	t.Helper()
	ch, unsubscribe := n.Subscribe()
	defer unsubscribe()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case p, open := <-ch:
			if !open {
				t.Fatal("navigator closed while waiting")
			}
			if ok(p) {
				return p
			}
		case <-timeout:
			t.Fatalf("timed out waiting for playback state, last: %+v", n.Current())
		}
	}
}
