package speech

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/internal/text"
	"github.com/dgnsrekt/readaloud/readaloud"
	"github.com/faiface/beep"
)

const (
	defaultMaxChars = 1000
	voicesTimeout   = 15 * time.Second
)

// Provider implements readaloud.SpeechEngineProvider. Every utterance is
// one engine item.
type Provider struct {
	synth    Synthesizer
	sink     playback.Sink
	format   beep.Format
	store    *cache.Store
	splitter *text.Splitter
	maxChars int
	observer Observer
	logger   *log.Logger

	mu     sync.Mutex
	voices []readaloud.Voice
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithCache stores rendered utterances in s.
func WithCache(s *cache.Store) ProviderOption {
	return func(p *Provider) { p.store = s }
}

// WithObserver reports synthesis and cache activity to o.
func WithObserver(o Observer) ProviderOption {
	return func(p *Provider) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithMaxChars sets the longest text sent in one request. Longer
// utterances are split at sentence boundaries.
func WithMaxChars(n int) ProviderOption {
	return func(p *Provider) {
		if n > 0 {
			p.maxChars = n
		}
	}
}

// NewProvider returns a provider rendering with synth and playing PCM in
// format on sink.
func NewProvider(synth Synthesizer, sink playback.Sink, format beep.Format, opts ...ProviderOption) *Provider {
	p := &Provider{
		synth:    synth,
		sink:     sink,
		format:   format,
		splitter: text.NewSplitter(),
		maxChars: defaultMaxChars,
		observer: nopObserver{},
		logger:   log.WithPrefix("speech"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Synthesizer returns the backend in use.
func (p *Provider) Synthesizer() Synthesizer {
	return p.synth
}

// Voices returns the synthesizer voices. A successful listing is kept; a
// failed one is retried on the next call.
func (p *Provider) Voices() []readaloud.Voice {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.voices != nil {
		return p.voices
	}

	ctx, cancel := context.WithTimeout(context.Background(), voicesTimeout)
	defer cancel()
	voices, err := p.synth.Voices(ctx)
	if err != nil {
		p.logger.Warn("failed to list voices", "engine", p.synth.Name(), "err", err)
		return nil
	}
	p.voices = voices
	p.logger.Debug("voices loaded", "engine", p.synth.Name(), "count", len(voices))
	return voices
}

// CreateSpeechEngine implements readaloud.SpeechEngineProvider.
func (p *Provider) CreateSpeechEngine(voice readaloud.Voice, utterances []readaloud.Utterance, listener readaloud.Listener) (readaloud.Engine, error) {
	if len(utterances) == 0 {
		return nil, ErrNoUtterances
	}
	if voice.ID == "" {
		return nil, readaloud.ErrNoVoice
	}

	loader := playback.LoaderFunc(func(ctx context.Context, index int, pr playback.Prosody) ([]byte, error) {
		return p.render(ctx, voice, utterances[index], pr)
	})

	p.logger.Debug("speech engine created", "voice", voice.ID, "utterances", len(utterances))
	return playback.NewEngine("speech", len(utterances), loader, p.sink, listener, playback.WithLogger(p.logger)), nil
}

// render produces the PCM of one utterance in the sink format, from the
// cache when possible.
func (p *Provider) render(ctx context.Context, voice readaloud.Voice, u readaloud.Utterance, pr playback.Prosody) ([]byte, error) {
	plain, ssml := u.Text, ""
	if u.SSML != "" {
		if p.synth.SSML() {
			ssml = u.SSML
		} else if plain == "" {
			plain = StripSSML(u.SSML)
		}
	}

	key := cache.Key{
		Engine:   p.synth.Name(),
		Voice:    voice.ID,
		Language: u.Language.String(),
		Text:     plain,
		Speed:    pr.Speed,
		Pitch:    pr.Pitch,
	}
	if ssml != "" {
		key.Text = ssml
	}
	if p.store != nil {
		pcm, ok := p.store.Get(key)
		p.observer.CacheLookup(key.Engine, ok)
		if ok {
			return pcm, nil
		}
	}

	var requests []Request
	if ssml != "" {
		requests = []Request{{SSML: ssml}}
	} else {
		for _, chunk := range p.splitter.Chunk(plain, p.maxChars) {
			requests = append(requests, Request{Text: chunk})
		}
	}
	if len(requests) == 0 {
		return nil, ErrEmptyText
	}

	var out bytes.Buffer
	for _, req := range requests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req.Voice = voice.ID
		req.Language = u.Language
		req.Speed = pr.Speed
		req.Pitch = pr.Pitch

		start := time.Now()
		a, err := p.synth.Synthesize(ctx, req)
		p.observer.Synthesized(p.synth.Name(), time.Since(start), err)
		if err != nil {
			return nil, err
		}
		speed := 1.0
		if a.Speed > 0 && pr.Speed > 0 {
			speed = pr.Speed / a.Speed
		}
		pcm, err := audio.Convert(a.Data, a.Format, p.format, speed)
		if err != nil {
			return nil, newError(p.synth.Name(), CodeFormat, "conversion failed", err)
		}
		out.Write(pcm)
	}

	pcm := out.Bytes()
	if p.store != nil {
		if err := p.store.Put(key, pcm); err != nil {
			p.logger.Warn("failed to cache utterance", "err", err)
		}
	}
	return pcm, nil
}

// Config selects and configures a synthesizer.
type Config struct {
	Engine   string       `yaml:"engine" mapstructure:"engine" env:"ENGINE"`
	MaxChars int          `yaml:"max_chars" mapstructure:"max_chars" env:"MAX_CHARS"`
	Piper    PiperConfig  `yaml:"piper" mapstructure:"piper" envPrefix:"PIPER_"`
	GTTS     GTTSConfig   `yaml:"gtts" mapstructure:"gtts" envPrefix:"GTTS_"`
	Google   GoogleConfig `yaml:"google" mapstructure:"google" envPrefix:"GOOGLE_"`
}

// New creates the synthesizer named by config.Engine.
func New(ctx context.Context, config Config) (Synthesizer, error) {
	switch config.Engine {
	case "piper":
		return NewPiper(config.Piper)
	case "gtts":
		return NewGTTS(config.GTTS), nil
	case "google":
		return NewGoogle(ctx, config.Google)
	case "mock", "":
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, config.Engine)
	}
}

var _ readaloud.SpeechEngineProvider = (*Provider)(nil)
