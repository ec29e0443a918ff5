package audio

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/ebitengine/oto/v3"
	"github.com/faiface/beep"
)

// Player errors.
var (
	ErrEmptyAudio   = errors.New("audio data is empty")
	ErrPlayerClosed = errors.New("player is closed")
)

// completionPoll is how often a stream checks whether oto drained it.
const completionPoll = 20 * time.Millisecond

// Player is the oto output sink. It owns the single oto context of the
// process; every Play call returns an independent stream.
type Player struct {
	context *oto.Context

	mu      sync.Mutex
	current *Stream
	closed  bool

	volume atomic.Uint64 // volume * 1e6

	config PlayerConfig
}

// PlayerConfig contains configuration for the audio player.
type PlayerConfig struct {
	SampleRate int // 44100 or 48000 Hz only
	Channels   int // 1 = mono, 2 = stereo
	BitDepth   int // 16 bits per sample
	BufferSize int // Buffer size in bytes
}

// DefaultPlayerConfig returns the default player configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: 44100,
		Channels:   1,
		BitDepth:   16,
		BufferSize: 4096,
	}
}

// Format returns the PCM format the player consumes.
func (c PlayerConfig) Format() beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(c.SampleRate),
		NumChannels: c.Channels,
		Precision:   c.BitDepth / 8,
	}
}

// Validate checks the configuration against what oto handles reliably.
func (c PlayerConfig) Validate() error {
	if c.SampleRate != 44100 && c.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", c.Channels)
	}
	if c.BitDepth != 16 {
		return fmt.Errorf("bit depth must be 16, got %d", c.BitDepth)
	}
	if c.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}
	return nil
}

// NewPlayer opens the audio device.
func NewPlayer(config PlayerConfig) (*Player, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	op := &oto.NewContextOptions{
		SampleRate:   config.SampleRate,
		ChannelCount: config.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(config.BufferSize) * time.Second / time.Duration(config.SampleRate*config.Channels*2),
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	p := &Player{context: ctx, config: config}
	p.volume.Store(1e6)
	return p, nil
}

// Format returns the PCM format the player consumes.
func (p *Player) Format() beep.Format {
	return p.config.Format()
}

// Play starts a stream over pcm, stopping the stream that was playing.
func (p *Player) Play(pcm []byte) (playback.Stream, error) {
	if len(pcm) == 0 {
		return nil, ErrEmptyAudio
	}

	// oto reads from the buffer asynchronously, keep our own copy alive for
	// the lifetime of the stream.
	data := make([]byte, len(pcm))
	copy(data, pcm)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPlayerClosed
	}
	player := p.context.NewPlayer(bytes.NewReader(data))
	player.SetVolume(p.Volume())
	s := &Stream{
		player:   player,
		data:     data,
		duration: Duration(p.config.Format(), data),
		done:     make(chan struct{}),
		owner:    p,
	}
	previous := p.current
	p.current = s
	p.mu.Unlock()

	if previous != nil {
		previous.Stop()
	}
	player.Play()
	go s.monitor()

	log.Debug("stream started", "bytes", len(data), "duration", s.duration)
	return s, nil
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (p *Player) SetVolume(volume float64) error {
	if volume < 0.0 || volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}
	p.volume.Store(uint64(volume * 1e6))

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.player.SetVolume(volume)
	}
	return nil
}

// Volume returns the playback volume.
func (p *Player) Volume() float64 {
	return float64(p.volume.Load()) / 1e6
}

// Close stops playback. oto contexts cannot be closed, later Play calls fail.
func (p *Player) Close() error {
	p.mu.Lock()
	current := p.current
	p.current = nil
	p.closed = true
	p.mu.Unlock()

	if current != nil {
		current.Stop()
	}
	return nil
}

func (p *Player) finished(s *Stream) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == s {
		p.current = nil
	}
}

// Stream is one buffer playing on the Player.
type Stream struct {
	owner    *Player
	player   *oto.Player
	data     []byte
	duration time.Duration

	mu      sync.Mutex
	paused  bool
	stopped bool

	done     chan struct{}
	doneOnce sync.Once
}

// Done is closed when the stream drained or was stopped.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Duration returns the play time of the buffer.
func (s *Stream) Duration() time.Duration {
	return s.duration
}

// Pause pauses output. oto keeps the read position.
func (s *Stream) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.paused {
		return
	}
	s.paused = true
	s.player.Pause()
}

// Resume continues a paused stream.
func (s *Stream) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || !s.paused {
		return
	}
	s.paused = false
	s.player.Play()
}

// Stop ends the stream. Other streams of the player are not affected.
func (s *Stream) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.player.Pause()
	if err := s.player.Close(); err != nil {
		log.Debug("closing oto player", "err", err)
	}
	s.data = nil
	s.mu.Unlock()

	s.finish()
}

func (s *Stream) finish() {
	s.doneOnce.Do(func() {
		close(s.done)
		s.owner.finished(s)
	})
}

// monitor closes done once oto has played every byte. A paused player also
// reports !IsPlaying, so pauses are excluded.
func (s *Stream) monitor() {
	ticker := time.NewTicker(completionPoll)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		drained := !s.stopped && !s.paused && !s.player.IsPlaying()
		if drained {
			s.stopped = true
			if err := s.player.Close(); err != nil {
				log.Debug("closing oto player", "err", err)
			}
			s.data = nil
		}
		s.mu.Unlock()

		if drained {
			s.finish()
			return
		}
	}
}
