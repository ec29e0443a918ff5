package audio

import (
	"sync"
	"time"

	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/faiface/beep"
)

// NullSink simulates an output device. Streams complete after the play time
// of their buffer divided by the speed-up factor, without producing sound.
// It is used when no audio device is available and in tests.
type NullSink struct {
	format  beep.Format
	speedup float64

	mu     sync.Mutex
	played int
}

// NewNullSink returns a sink for PCM in format f. speedup shortens the
// simulated play time; values below 1 are treated as 1.
func NewNullSink(f beep.Format, speedup float64) *NullSink {
	if speedup < 1 {
		speedup = 1
	}
	return &NullSink{format: f, speedup: speedup}
}

// Format returns the PCM format the sink consumes.
func (n *NullSink) Format() beep.Format {
	return n.format
}

// Played returns the number of streams started.
func (n *NullSink) Played() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.played
}

// Play starts a simulated stream.
func (n *NullSink) Play(pcm []byte) (playback.Stream, error) {
	if len(pcm) == 0 {
		return nil, ErrEmptyAudio
	}
	n.mu.Lock()
	n.played++
	n.mu.Unlock()

	d := time.Duration(float64(Duration(n.format, pcm)) / n.speedup)
	s := &nullStream{
		remaining: d,
		started:   time.Now(),
		done:      make(chan struct{}),
	}
	s.timer = time.AfterFunc(d, s.finish)
	return s, nil
}

type nullStream struct {
	mu        sync.Mutex
	timer     *time.Timer
	remaining time.Duration
	started   time.Time
	paused    bool

	done chan struct{}
	once sync.Once
}

func (s *nullStream) Done() <-chan struct{} { return s.done }

func (s *nullStream) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused || !s.timer.Stop() {
		return
	}
	s.paused = true
	s.remaining -= time.Since(s.started)
}

func (s *nullStream) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return
	}
	s.paused = false
	s.started = time.Now()
	s.timer = time.AfterFunc(max(s.remaining, 0), s.finish)
}

func (s *nullStream) Stop() {
	s.mu.Lock()
	s.timer.Stop()
	s.mu.Unlock()
	s.finish()
}

func (s *nullStream) finish() {
	s.once.Do(func() { close(s.done) })
}
