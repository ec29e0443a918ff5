package speech

import (
	"context"
	"time"

	"github.com/dgnsrekt/readaloud/readaloud"
	"github.com/faiface/beep"
	"golang.org/x/text/language"
)

// Request is one piece of text to render. SSML is only set for
// synthesizers that accept it.
type Request struct {
	Text     string
	SSML     string
	Voice    string
	Language language.Tag
	Speed    float64
	Pitch    float64
}

// Audio is signed little endian PCM. Speed is the rate the synthesizer
// already applied; 1 means the audio is at natural speed.
type Audio struct {
	Data   []byte
	Format beep.Format
	Speed  float64
}

// Synthesizer renders text to audio.
type Synthesizer interface {
	// Name identifies the engine in cache keys and logs.
	Name() string

	Voices(ctx context.Context) ([]readaloud.Voice, error)

	Synthesize(ctx context.Context, req Request) (Audio, error)

	// SSML reports whether Synthesize accepts Request.SSML.
	SSML() bool
}

// Observer receives synthesis measurements. Calls come from engine loader
// goroutines and must not block.
type Observer interface {
	CacheLookup(engine string, hit bool)
	Synthesized(engine string, took time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) CacheLookup(string, bool)                 {}
func (nopObserver) Synthesized(string, time.Duration, error) {}
