package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/readaloud"
)

// ErrEmptyItem is reported when a loader returns no audio for an item.
var ErrEmptyItem = errors.New("item produced no audio")

// Prosody carries the voice parameters an item is rendered with.
type Prosody struct {
	Speed float64
	Pitch float64
}

// Loader renders one item of an engine to PCM in the sink format.
type Loader interface {
	Load(ctx context.Context, index int, p Prosody) ([]byte, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, index int, p Prosody) ([]byte, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, index int, p Prosody) ([]byte, error) {
	return f(ctx, index, p)
}

// Sink plays PCM buffers.
type Sink interface {
	Play(pcm []byte) (Stream, error)
}

// Stream is a buffer handed to a Sink. Done is closed when the buffer has
// played to its end or the stream was stopped. Stopping a stream that was
// already superseded on the sink has no effect on the newer one.
type Stream interface {
	Done() <-chan struct{}
	Pause()
	Resume()
	Stop()
}

// Engine plays a fixed list of items, loading the current item on demand and
// the next one ahead of time. It implements readaloud.Engine.
type Engine struct {
	component string
	items     int
	loader    Loader
	sink      Sink
	listener  readaloud.Listener
	logger    *log.Logger

	mu            sync.Mutex
	index         int
	playWhenReady bool
	prosody       Prosody
	condition     readaloud.EngineCondition
	gen           uint64 // bumped on every seek, cancels pending loads
	epoch         uint64 // bumped on prosody changes, invalidates buffers
	cancel        context.CancelFunc
	buffers       map[int][]byte
	preloading    map[int]bool
	stream        Stream
	prepared      bool
	awaiting      bool // the current item is being preloaded

	ctx      context.Context
	stop     context.CancelFunc
	released atomic.Bool
	cbMu     sync.Mutex
	wg       sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for engine diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine returns an engine over items items. component names the engine in
// errors ("audio" or "speech").
func NewEngine(component string, items int, loader Loader, sink Sink, listener readaloud.Listener, opts ...Option) *Engine {
	ctx, stop := context.WithCancel(context.Background())
	e := &Engine{
		component:  component,
		items:      items,
		loader:     loader,
		sink:       sink,
		listener:   listener,
		logger:     log.Default().WithPrefix(component),
		prosody:    Prosody{Speed: 1, Pitch: 1},
		condition:  readaloud.EngineStarved,
		buffers:    make(map[int][]byte),
		preloading: make(map[int]bool),
		ctx:        ctx,
		stop:       stop,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Len returns the number of items.
func (e *Engine) Len() int {
	return e.items
}

// Index returns the current item.
func (e *Engine) Index() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index
}

// SeekTo makes index current and starts loading it. A buffered item becomes
// ready immediately.
func (e *Engine) SeekTo(index int) {
	e.mu.Lock()
	if e.released.Load() {
		e.mu.Unlock()
		return
	}
	if index < 0 || index >= e.items {
		e.mu.Unlock()
		e.logger.Warn("seek out of range", "index", index, "items", e.items)
		return
	}
	changed := e.seekLocked(index)
	condition := e.condition
	e.mu.Unlock()

	if changed {
		e.emit(func() { e.listener.OnStateChanged(e, condition) })
	}
}

// seekLocked must be called with e.mu held. It reports whether the condition
// changed.
func (e *Engine) seekLocked(index int) bool {
	e.stopStreamLocked()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.gen++
	e.index = index
	e.awaiting = false
	before := e.condition

	if pcm, ok := e.buffers[index]; ok {
		e.condition = readaloud.EngineReady
		e.trimBuffersLocked()
		if e.playWhenReady {
			e.startStreamLocked(pcm)
		}
		e.preloadLocked(index + 1)
		return before != e.condition
	}

	e.condition = readaloud.EngineStarved
	if e.preloading[index] {
		e.awaiting = true
		return before != e.condition
	}
	e.startLoadLocked(index)
	return before != e.condition
}

func (e *Engine) startLoadLocked(index int) {
	ctx, cancel := context.WithCancel(e.ctx)
	e.cancel = cancel
	e.wg.Add(1)
	go e.load(ctx, e.gen, e.epoch, index, e.prosody)
}

func (e *Engine) load(ctx context.Context, gen, epoch uint64, index int, p Prosody) {
	defer e.wg.Done()

	pcm, err := e.loader.Load(ctx, index, p)
	if err == nil && len(pcm) == 0 {
		err = ErrEmptyItem
	}

	e.mu.Lock()
	if e.released.Load() || gen != e.gen || epoch != e.epoch {
		e.mu.Unlock()
		return
	}
	e.cancel = nil
	if err != nil {
		e.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		e.fail(fmt.Sprintf("load item %d", index), err)
		return
	}

	condition := e.readyLocked(index, pcm)
	e.mu.Unlock()

	e.emit(func() { e.listener.OnStateChanged(e, condition) })
}

// readyLocked buffers pcm as the current item, starts it when playing and
// preloads the item after it.
func (e *Engine) readyLocked(index int, pcm []byte) readaloud.EngineCondition {
	e.buffers[index] = pcm
	e.trimBuffersLocked()
	e.condition = readaloud.EngineReady
	if e.playWhenReady {
		e.startStreamLocked(pcm)
	}
	e.preloadLocked(index + 1)
	return e.condition
}

// preloadLocked renders index in the background so that it is ready when the
// current item completes.
func (e *Engine) preloadLocked(index int) {
	if index >= e.items || e.preloading[index] {
		return
	}
	if _, ok := e.buffers[index]; ok {
		return
	}
	e.preloading[index] = true
	epoch, p := e.epoch, e.prosody
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		pcm, err := e.loader.Load(e.ctx, index, p)

		e.mu.Lock()
		if e.released.Load() || epoch != e.epoch {
			e.mu.Unlock()
			return
		}
		delete(e.preloading, index)
		awaited := e.awaiting && e.index == index
		e.awaiting = false

		if err != nil || len(pcm) == 0 {
			// The item is loaded again on demand and the error reported then.
			e.logger.Debug("preload failed", "index", index, "err", err)
			if awaited {
				e.startLoadLocked(index)
			}
			e.mu.Unlock()
			return
		}
		if !awaited {
			e.buffers[index] = pcm
			e.trimBuffersLocked()
			e.mu.Unlock()
			return
		}
		condition := e.readyLocked(index, pcm)
		e.mu.Unlock()

		e.emit(func() { e.listener.OnStateChanged(e, condition) })
	}()
}

// trimBuffersLocked keeps the current and the next item only.
func (e *Engine) trimBuffersLocked() {
	for i := range e.buffers {
		if i != e.index && i != e.index+1 {
			delete(e.buffers, i)
		}
	}
}

func (e *Engine) startStreamLocked(pcm []byte) {
	stream, err := e.sink.Play(pcm)
	if err != nil {
		e.condition = readaloud.EngineStarved
		go e.fail("play", err)
		return
	}
	e.stream = stream
	e.wg.Add(1)
	go e.watch(e.gen, stream)
}

func (e *Engine) stopStreamLocked() {
	if e.stream != nil {
		s := e.stream
		e.stream = nil
		s.Stop()
	}
}

// watch reports the completion of stream unless it was stopped or replaced.
func (e *Engine) watch(gen uint64, stream Stream) {
	defer e.wg.Done()

	select {
	case <-stream.Done():
	case <-e.ctx.Done():
		return
	}

	e.mu.Lock()
	if e.released.Load() || gen != e.gen || e.stream != stream {
		e.mu.Unlock()
		return
	}
	e.stream = nil
	e.condition = readaloud.EngineEnded
	delete(e.buffers, e.index)
	index := e.index
	e.mu.Unlock()

	e.logger.Debug("item completed", "index", index)
	e.emit(func() { e.listener.OnCompleted(e, gen) })
}

// Generation returns the number of seeks so far, counting the restart of the
// current item after a prosody change.
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen
}

// SetPlayWhenReady sets the play intent. A paused stream is resumed in place.
func (e *Engine) SetPlayWhenReady(play bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released.Load() {
		return
	}
	e.playWhenReady = play

	switch {
	case !play:
		if e.stream != nil {
			e.stream.Pause()
		}
	case e.stream != nil:
		e.stream.Resume()
	case e.condition == readaloud.EngineReady:
		if pcm, ok := e.buffers[e.index]; ok {
			e.startStreamLocked(pcm)
		}
	}
}

// SetPitch changes the pitch. Buffered items are rendered again.
func (e *Engine) SetPitch(pitch float64) {
	e.setProsody(func(p *Prosody) { p.Pitch = pitch })
}

// SetSpeed changes the rate. Buffered items are rendered again.
func (e *Engine) SetSpeed(speed float64) {
	e.setProsody(func(p *Prosody) { p.Speed = speed })
}

func (e *Engine) setProsody(update func(*Prosody)) {
	e.mu.Lock()
	if e.released.Load() {
		e.mu.Unlock()
		return
	}
	next := e.prosody
	update(&next)
	if next == e.prosody {
		e.mu.Unlock()
		return
	}
	e.prosody = next
	e.epoch++
	clear(e.buffers)
	clear(e.preloading)

	// Nothing has been requested yet.
	if e.gen == 0 {
		e.mu.Unlock()
		return
	}
	changed := e.seekLocked(e.index)
	condition := e.condition
	e.mu.Unlock()

	if changed {
		e.emit(func() { e.listener.OnStateChanged(e, condition) })
	}
}

// Condition returns the current condition.
func (e *Engine) Condition() readaloud.EngineCondition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.condition
}

// Prepare starts loading the first item in the background so that a later
// SeekTo(0) finds it buffered. It is idempotent.
func (e *Engine) Prepare() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.prepared || e.released.Load() {
		return
	}
	e.prepared = true
	if e.gen == 0 {
		e.preloadLocked(0)
	}
	e.logger.Debug("engine prepared", "items", e.items)
}

// Release stops playback, cancels pending loads and waits for background
// work. No listener callback runs after Release returns.
func (e *Engine) Release() {
	e.cbMu.Lock()
	if e.released.Swap(true) {
		e.cbMu.Unlock()
		return
	}
	e.cbMu.Unlock()

	e.mu.Lock()
	e.stopStreamLocked()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.gen++
	e.epoch++
	e.buffers = nil
	e.preloading = nil
	e.mu.Unlock()

	e.stop()
	e.wg.Wait()
	e.logger.Debug("engine released")
}

func (e *Engine) fail(action string, err error) {
	e.logger.Error("engine failure", "action", action, "err", err)
	e.emit(func() {
		e.listener.OnError(e, &readaloud.EngineError{Err: err, Component: e.component, Action: action})
	})
}

// emit runs fn unless the engine has been released. Release waits for a
// callback in progress.
func (e *Engine) emit(fn func()) {
	e.cbMu.Lock()
	defer e.cbMu.Unlock()
	if e.released.Load() {
		return
	}
	fn()
}

var _ readaloud.Engine = (*Engine)(nil)
