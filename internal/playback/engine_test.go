package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud/readaloud"
)

type fakeStream struct {
	done     chan struct{}
	once     sync.Once
	mu       sync.Mutex
	paused   bool
	stopped  bool
	pcm      []byte
	finished bool
}

func (s *fakeStream) Done() <-chan struct{} { return s.done }

func (s *fakeStream) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

func (s *fakeStream) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

func (s *fakeStream) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.once.Do(func() { close(s.done) })
}

// finish simulates the sink reaching the end of the buffer.
func (s *fakeStream) finish() {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()
	s.once.Do(func() { close(s.done) })
}

func (s *fakeStream) isPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *fakeStream) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakeSink struct {
	mu      sync.Mutex
	fail    error
	streams []*fakeStream
	played  chan *fakeStream
}

func newFakeSink() *fakeSink {
	return &fakeSink{played: make(chan *fakeStream, 16)}
}

func (s *fakeSink) Play(pcm []byte) (Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	st := &fakeStream{done: make(chan struct{}), pcm: pcm}
	s.streams = append(s.streams, st)
	s.played <- st
	return st, nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

type loadCall struct {
	index   int
	prosody Prosody
}

// fakeLoader renders an item as its index byte. Items listed in block wait
// for their channel to be closed; items in fail return an error.
type fakeLoader struct {
	mu    sync.Mutex
	calls []loadCall
	block map[int]chan struct{}
	fail  map[int]error
}

func (l *fakeLoader) Load(ctx context.Context, index int, p Prosody) ([]byte, error) {
	l.mu.Lock()
	l.calls = append(l.calls, loadCall{index, p})
	wait := l.block[index]
	err := l.fail[index]
	l.mu.Unlock()

	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return []byte{byte(index), 0}, nil
}

func (l *fakeLoader) Calls() []loadCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]loadCall(nil), l.calls...)
}

type event struct {
	kind      string
	condition readaloud.EngineCondition
	gen       uint64
	err       error
}

type recordingListener struct {
	events chan event
}

func newRecordingListener() *recordingListener {
	return &recordingListener{events: make(chan event, 64)}
}

func (l *recordingListener) OnItemChanged(_ readaloud.Engine, gen uint64, _ int) {
	l.events <- event{kind: "item", gen: gen}
}

func (l *recordingListener) OnStateChanged(_ readaloud.Engine, c readaloud.EngineCondition) {
	l.events <- event{kind: "state", condition: c}
}

func (l *recordingListener) OnCompleted(_ readaloud.Engine, gen uint64) {
	l.events <- event{kind: "completed", gen: gen}
}

func (l *recordingListener) OnError(_ readaloud.Engine, err error) {
	l.events <- event{kind: "error", err: err}
}

func (l *recordingListener) next(t *testing.T) event {
	t.Helper()
	select {
	case ev := <-l.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for engine event")
		return event{}
	}
}

func (l *recordingListener) quiet(t *testing.T) {
	t.Helper()
	select {
	case ev := <-l.events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func nextStream(t *testing.T, sink *fakeSink) *fakeStream {
	t.Helper()
	select {
	case st := <-sink.played:
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sink playback")
		return nil
	}
}

func TestEnginePlaysAndCompletes(t *testing.T) {
	loader := &fakeLoader{}
	sink := newFakeSink()
	listener := newRecordingListener()
	e := NewEngine("speech", 3, loader, sink, listener)
	defer e.Release()

	e.SeekTo(0)
	if got := e.Condition(); got != readaloud.EngineStarved {
		t.Fatalf("condition after seek = %v, want starved", got)
	}
	e.SetPlayWhenReady(true)

	if ev := listener.next(t); ev.kind != "state" || ev.condition != readaloud.EngineReady {
		t.Fatalf("first event = %+v, want ready", ev)
	}
	st := nextStream(t, sink)
	if st.pcm[0] != 0 {
		t.Errorf("played item %d, want 0", st.pcm[0])
	}

	st.finish()
	ev := listener.next(t)
	if ev.kind != "completed" {
		t.Fatalf("event = %+v, want completed", ev)
	}
	if ev.gen != e.Generation() {
		t.Errorf("completion generation = %d, want %d", ev.gen, e.Generation())
	}
	if got := e.Condition(); got != readaloud.EngineEnded {
		t.Errorf("condition after completion = %v, want ended", got)
	}
	// The engine never advances on its own.
	listener.quiet(t)
	if sink.count() != 1 {
		t.Errorf("sink streams = %d, want 1", sink.count())
	}
}

func TestEnginePreloadsNextItem(t *testing.T) {
	loader := &fakeLoader{}
	sink := newFakeSink()
	listener := newRecordingListener()
	e := NewEngine("speech", 2, loader, sink, listener)
	defer e.Release()

	e.SeekTo(0)
	e.SetPlayWhenReady(true)
	listener.next(t)
	nextStream(t, sink).finish()
	listener.next(t)

	// Wait for the preload of item 1 to land.
	deadline := time.Now().Add(2 * time.Second)
	for len(loader.Calls()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)

	e.SeekTo(1)
	if got := e.Condition(); got != readaloud.EngineReady {
		t.Fatalf("condition after seeking to a preloaded item = %v, want ready", got)
	}
	if st := nextStream(t, sink); st.pcm[0] != 1 {
		t.Errorf("played item %d, want 1", st.pcm[0])
	}
	if calls := loader.Calls(); len(calls) != 2 {
		t.Errorf("loads = %+v, want items 0 and 1 once each", calls)
	}
}

func TestEnginePauseResumeKeepsStream(t *testing.T) {
	loader := &fakeLoader{}
	sink := newFakeSink()
	listener := newRecordingListener()
	e := NewEngine("audio", 1, loader, sink, listener)
	defer e.Release()

	e.SeekTo(0)
	e.SetPlayWhenReady(true)
	listener.next(t)
	st := nextStream(t, sink)

	e.SetPlayWhenReady(false)
	if !st.isPaused() {
		t.Fatal("stream not paused")
	}
	e.SetPlayWhenReady(true)
	if st.isPaused() {
		t.Fatal("stream not resumed")
	}
	if sink.count() != 1 {
		t.Errorf("resume started a new stream, streams = %d", sink.count())
	}
}

func TestEngineLoadsPausedWithoutPlaying(t *testing.T) {
	loader := &fakeLoader{}
	sink := newFakeSink()
	listener := newRecordingListener()
	e := NewEngine("audio", 1, loader, sink, listener)
	defer e.Release()

	e.SeekTo(0)
	listener.next(t)
	if sink.count() != 0 {
		t.Fatalf("paused engine started playback")
	}

	e.SetPlayWhenReady(true)
	if st := nextStream(t, sink); st.pcm[0] != 0 {
		t.Errorf("played item %d, want 0", st.pcm[0])
	}
}

func TestEngineSeekCancelsPendingLoad(t *testing.T) {
	gate := make(chan struct{})
	loader := &fakeLoader{block: map[int]chan struct{}{0: gate}}
	sink := newFakeSink()
	listener := newRecordingListener()
	e := NewEngine("speech", 3, loader, sink, listener)
	defer e.Release()

	e.SetPlayWhenReady(true)
	e.SeekTo(0)
	e.SeekTo(2)

	if ev := listener.next(t); ev.kind != "state" || ev.condition != readaloud.EngineReady {
		t.Fatalf("event = %+v, want ready", ev)
	}
	if st := nextStream(t, sink); st.pcm[0] != 2 {
		t.Fatalf("played item %d, want 2", st.pcm[0])
	}
	close(gate)
	listener.quiet(t)
}

func TestEngineSeekStopsCurrentStream(t *testing.T) {
	loader := &fakeLoader{}
	sink := newFakeSink()
	listener := newRecordingListener()
	e := NewEngine("speech", 2, loader, sink, listener)
	defer e.Release()

	e.SetPlayWhenReady(true)
	e.SeekTo(0)
	listener.next(t)
	first := nextStream(t, sink)

	e.SeekTo(1)
	if !first.isStopped() {
		t.Fatal("previous stream still playing after seek")
	}
	// Stopping the stream closes Done but must not be reported as completion.
	for {
		select {
		case ev := <-listener.events:
			if ev.kind == "completed" {
				t.Fatal("stopped stream reported completion")
			}
			continue
		case <-time.After(50 * time.Millisecond):
		}
		break
	}
}

func TestEngineLoadErrorIsReported(t *testing.T) {
	cause := errors.New("synthesizer crashed")
	loader := &fakeLoader{fail: map[int]error{0: cause}}
	listener := newRecordingListener()
	e := NewEngine("speech", 1, loader, newFakeSink(), listener)
	defer e.Release()

	e.SeekTo(0)
	ev := listener.next(t)
	if ev.kind != "error" {
		t.Fatalf("event = %+v, want error", ev)
	}
	var engineErr *readaloud.EngineError
	if !errors.As(ev.err, &engineErr) {
		t.Fatalf("error %v is not an EngineError", ev.err)
	}
	if engineErr.Component != "speech" || !errors.Is(ev.err, cause) {
		t.Errorf("unexpected engine error %+v", engineErr)
	}
}

func TestEngineSinkErrorIsReported(t *testing.T) {
	sink := newFakeSink()
	sink.fail = errors.New("device busy")
	listener := newRecordingListener()
	e := NewEngine("audio", 1, &fakeLoader{}, sink, listener)
	defer e.Release()

	e.SetPlayWhenReady(true)
	e.SeekTo(0)

	seenError := false
	for i := 0; i < 2 && !seenError; i++ {
		seenError = listener.next(t).kind == "error"
	}
	if !seenError {
		t.Fatal("sink failure not reported")
	}
}

func TestEngineSpeedChangeRendersAgain(t *testing.T) {
	loader := &fakeLoader{}
	sink := newFakeSink()
	listener := newRecordingListener()
	e := NewEngine("speech", 1, loader, sink, listener)
	defer e.Release()

	e.SetSpeed(1.5)
	if len(loader.Calls()) != 0 {
		t.Fatal("speed change before the first seek loaded an item")
	}
	e.SeekTo(0)
	listener.next(t)

	e.SetSpeed(2)
	listener.next(t) // starved
	listener.next(t) // ready

	calls := loader.Calls()
	last := calls[len(calls)-1]
	if last.index != 0 || last.prosody.Speed != 2 {
		t.Errorf("last load = %+v, want item 0 at speed 2", last)
	}
	if calls[0].prosody.Speed != 1.5 {
		t.Errorf("first load speed = %v, want 1.5", calls[0].prosody.Speed)
	}
}

func TestEngineNoCallbacksAfterRelease(t *testing.T) {
	gate := make(chan struct{})
	loader := &fakeLoader{block: map[int]chan struct{}{0: gate}}
	sink := newFakeSink()
	listener := newRecordingListener()
	e := NewEngine("speech", 1, loader, sink, listener)

	e.SetPlayWhenReady(true)
	e.SeekTo(0)
	e.Release()
	e.Release()
	close(gate)

	listener.quiet(t)
	if sink.count() != 0 {
		t.Errorf("released engine played %d streams", sink.count())
	}

	e.SeekTo(0)
	e.SetPlayWhenReady(true)
	listener.quiet(t)
}

func TestEngineSeekOutOfRangeIsIgnored(t *testing.T) {
	loader := &fakeLoader{}
	e := NewEngine("audio", 1, loader, newFakeSink(), newRecordingListener())
	defer e.Release()

	e.SeekTo(5)
	e.SeekTo(-1)
	if len(loader.Calls()) != 0 {
		t.Errorf("out of range seeks loaded items: %+v", loader.Calls())
	}
}

// waitForLoads blocks until the loader has been called n times and the
// results had time to land.
func waitForLoads(t *testing.T, loader *fakeLoader, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(loader.Calls()) < n {
		if time.Now().After(deadline) {
			t.Fatalf("loads = %+v, want %d", loader.Calls(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
}

func TestEnginePausedAdvanceDoesNotPlay(t *testing.T) {
	loader := &fakeLoader{}
	sink := newFakeSink()
	listener := newRecordingListener()
	e := NewEngine("speech", 2, loader, sink, listener)
	defer e.Release()

	e.SeekTo(0)
	e.SetPlayWhenReady(true)
	listener.next(t)
	nextStream(t, sink).finish()
	if ev := listener.next(t); ev.kind != "completed" {
		t.Fatalf("event = %+v, want completed", ev)
	}
	waitForLoads(t, loader, 2)

	e.SetPlayWhenReady(false)
	e.SeekTo(1)
	if got := e.Condition(); got != readaloud.EngineReady {
		t.Fatalf("condition = %v, want ready", got)
	}
	time.Sleep(20 * time.Millisecond)
	if n := sink.count(); n != 1 {
		t.Fatalf("sink streams = %d, the paused item was started", n)
	}

	e.SetPlayWhenReady(true)
	if st := nextStream(t, sink); st.pcm[0] != 1 {
		t.Errorf("played item %d, want 1", st.pcm[0])
	}
}

func TestEnginePrepareLoadsFirstItem(t *testing.T) {
	loader := &fakeLoader{}
	sink := newFakeSink()
	listener := newRecordingListener()
	e := NewEngine("speech", 2, loader, sink, listener)
	defer e.Release()

	e.Prepare()
	e.Prepare()
	waitForLoads(t, loader, 1)

	e.SeekTo(0)
	if got := e.Condition(); got != readaloud.EngineReady {
		t.Fatalf("condition after seeking to a prepared item = %v, want ready", got)
	}
	if sink.count() != 0 {
		t.Error("prepared engine started playback without play intent")
	}
	e.SetPlayWhenReady(true)
	if st := nextStream(t, sink); st.pcm[0] != 0 {
		t.Errorf("played item %d, want 0", st.pcm[0])
	}
	waitForLoads(t, loader, 2)
	if calls := loader.Calls(); len(calls) != 2 || calls[0].index != 0 || calls[1].index != 1 {
		t.Errorf("loads = %+v, want items 0 and 1 once each", calls)
	}
}

func TestEngineSeekWaitsForPendingPreload(t *testing.T) {
	release := make(chan struct{})
	loader := &fakeLoader{block: map[int]chan struct{}{0: release}}
	sink := newFakeSink()
	listener := newRecordingListener()
	e := NewEngine("speech", 1, loader, sink, listener)
	defer e.Release()

	e.Prepare()
	waitForLoads(t, loader, 1)
	e.SetPlayWhenReady(true)
	e.SeekTo(0)
	if got := e.Condition(); got != readaloud.EngineStarved {
		t.Fatalf("condition = %v, want starved", got)
	}

	close(release)
	if ev := listener.next(t); ev.kind != "state" || ev.condition != readaloud.EngineReady {
		t.Fatalf("event = %+v, want ready", ev)
	}
	if st := nextStream(t, sink); st.pcm[0] != 0 {
		t.Errorf("played item %d, want 0", st.pcm[0])
	}
	if calls := loader.Calls(); len(calls) != 1 {
		t.Errorf("loads = %+v, want the preload only", calls)
	}
}

func TestEngineGenerationCountsSeeks(t *testing.T) {
	e := NewEngine("speech", 3, &fakeLoader{}, newFakeSink(), newRecordingListener())
	defer e.Release()

	e.Prepare()
	if got := e.Generation(); got != 0 {
		t.Fatalf("generation after prepare = %d, want 0", got)
	}
	e.SeekTo(0)
	e.SeekTo(0)
	if got := e.Generation(); got != 2 {
		t.Errorf("generation after two seeks = %d, want 2", got)
	}
	// A prosody change restarts the current item.
	e.SetSpeed(2)
	if got := e.Generation(); got != 3 {
		t.Errorf("generation after a speed change = %d, want 3", got)
	}
	e.SeekTo(7)
	if got := e.Generation(); got != 3 {
		t.Errorf("out of range seek changed the generation to %d", got)
	}
}
