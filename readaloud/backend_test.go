package readaloud_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud/guided"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/readaloud"
	"golang.org/x/text/language"
)

// These tests run the state machine over real playback engines, where the
// order of engine calls decides what reaches the sink.

type stream struct {
	text string
	done chan struct{}
	once sync.Once
}

func (s *stream) Done() <-chan struct{} { return s.done }
func (s *stream) Pause()                {}
func (s *stream) Resume()               {}
func (s *stream) Stop()                 { s.once.Do(func() { close(s.done) }) }

type sink struct {
	mu      sync.Mutex
	streams []*stream
	played  chan *stream
}

func newSink() *sink {
	return &sink{played: make(chan *stream, 16)}
}

func (s *sink) Play(pcm []byte) (playback.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &stream{text: string(pcm), done: make(chan struct{})}
	s.streams = append(s.streams, st)
	s.played <- st
	return st, nil
}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

// speech renders an utterance as its text.
type speech struct {
	sink *sink

	mu    sync.Mutex
	loads []string
}

func (p *speech) Voices() []readaloud.Voice {
	return []readaloud.Voice{
		{ID: "amy", Languages: []language.Tag{language.English}},
		{ID: "gilles", Languages: []language.Tag{language.French}},
	}
}

func (p *speech) CreateSpeechEngine(_ readaloud.Voice, utterances []readaloud.Utterance, listener readaloud.Listener) (readaloud.Engine, error) {
	loader := playback.LoaderFunc(func(_ context.Context, index int, _ playback.Prosody) ([]byte, error) {
		p.mu.Lock()
		p.loads = append(p.loads, utterances[index].Text)
		p.mu.Unlock()
		return []byte(utterances[index].Text), nil
	})
	return playback.NewEngine("speech", len(utterances), loader, p.sink, listener), nil
}

func (p *speech) loaded(text string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, l := range p.loads {
		if l == text {
			n++
		}
	}
	return n
}

func (p *speech) waitLoaded(t *testing.T, text string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for p.loaded(text) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("%q was never loaded", text)
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
}

type completions chan struct{}

func (c completions) OnItemChanged(readaloud.Engine, uint64, int)                {}
func (c completions) OnStateChanged(readaloud.Engine, readaloud.EngineCondition) {}
func (c completions) OnCompleted(readaloud.Engine, uint64)                       { c <- struct{}{} }
func (c completions) OnError(readaloud.Engine, error)                            {}

func text(plain, lang string) guided.Object {
	return guided.Object{Text: &guided.ObjectText{Plain: plain, Language: lang}}
}

func newMachine(tree *guided.Tree, settings readaloud.Settings, listener readaloud.Listener) (*readaloud.StateMachine, *speech) {
	sp := &speech{sink: newSink()}
	factory := readaloud.NewSegmentFactory(tree, nil, sp, listener, settings)
	nav := readaloud.NewNavigationHelper(tree, settings)
	return readaloud.NewStateMachine(nav, readaloud.NewDataLoader(factory, nil)), sp
}

func TestPausedAdvanceKeepsNextItemSilent(t *testing.T) {
	tree := guided.NewTree(guided.Object{Children: []guided.Object{
		text("One.", ""),
		text("Two.", ""),
	}})
	settings := readaloud.DefaultSettings()
	settings.ReadContinuously = false
	done := make(completions, 4)
	m, sp := newMachine(tree, settings, done)

	s := m.Start(tree.Root(), true, settings)
	defer m.Close(s)

	select {
	case st := <-sp.sink.played:
		if st.text != "One." {
			t.Fatalf("played %q, want One.", st.text)
		}
		sp.waitLoaded(t, "Two.")
		st.Stop()
	case <-time.After(2 * time.Second):
		t.Fatal("first item never played")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("first item never completed")
	}

	s = m.OnPlaybackCompleted(s)
	if s.PlayWhenReady || s.Condition != readaloud.Ready {
		t.Fatalf("state = %v playing %v, want ready and paused", s.Condition, s.PlayWhenReady)
	}
	time.Sleep(20 * time.Millisecond)
	if n := sp.sink.count(); n != 1 {
		t.Fatalf("sink streams = %d, the paused item was started", n)
	}

	s = m.Resume(s)
	select {
	case st := <-sp.sink.played:
		if st.text != "Two." {
			t.Errorf("played %q, want Two.", st.text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("resume did not play the next item")
	}
}

func TestPrefetchedSegmentIsReadyOnArrival(t *testing.T) {
	tree := guided.NewTree(guided.Object{Children: []guided.Object{
		text("One.", "en"),
		text("Un.", "fr"),
	}})
	settings := readaloud.DefaultSettings()
	m, sp := newMachine(tree, settings, make(completions, 4))

	s := m.Start(tree.Root(), false, settings)
	defer m.Close(s)
	first := s.Segment

	// The French segment is created and its first item loaded while the
	// English one is current.
	sp.waitLoaded(t, "Un.")

	s = m.OnPlaybackCompleted(s)
	if s.Segment == nil || s.Segment == first {
		t.Fatal("did not move to the next segment")
	}
	if s.Condition != readaloud.Ready {
		t.Errorf("condition on arrival = %v, want ready", s.Condition)
	}
	if n := sp.loaded("Un."); n != 1 {
		t.Errorf("Un. loaded %d times, want once", n)
	}
}
