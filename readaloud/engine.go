package readaloud

import (
	"github.com/dgnsrekt/readaloud/guided"
	"golang.org/x/text/language"
)

// EngineCondition is the playback condition reported by a backend engine.
type EngineCondition int

const (
	// EngineReady means the engine can play the current item right away.
	EngineReady EngineCondition = iota
	// EngineStarved means the engine is waiting for data (decoding,
	// synthesis, network).
	EngineStarved
	// EngineEnded means the current item played to its end and the engine
	// stopped.
	EngineEnded
)

func (c EngineCondition) String() string {
	switch c {
	case EngineReady:
		return "ready"
	case EngineStarved:
		return "starved"
	case EngineEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Engine is the contract shared by audio clip and speech backends. An
// engine holds a fixed list of items given at construction. Calls never
// block; results are reported later through the Listener.
type Engine interface {
	// SeekTo makes index the current item and starts loading it.
	SeekTo(index int)

	// SetPlayWhenReady sets the play intent. The engine plays the current
	// item as soon as it is ready while the intent is true.
	SetPlayWhenReady(play bool)

	// SetPitch sets the voice pitch multiplier. Audio clip engines may
	// ignore it.
	SetPitch(pitch float64)

	// SetSpeed sets the playback rate multiplier.
	SetSpeed(speed float64)

	// Condition returns the current playback condition.
	Condition() EngineCondition

	// Generation returns the seek generation. It grows with every SeekTo and
	// tags the item and completion events reported for that seek.
	Generation() uint64

	// Prepare warms the engine up. It is idempotent.
	Prepare()

	// Release stops playback and frees every resource. It is idempotent and
	// no listener callback is delivered after it returns.
	Release()
}

// Listener receives engine events. Every callback carries the engine that
// produced it so the receiver can drop events from engines it no longer
// owns. Callbacks may be invoked from any goroutine.
//
// Engines report the end of the current item either with OnCompleted or
// with OnStateChanged(EngineEnded), never both. They do not move to the next
// item on their own unless they report it with OnItemChanged. Item and
// completion events carry the generation they were observed under; an event
// older than Generation() describes an item the engine has already left.
type Listener interface {
	OnItemChanged(e Engine, gen uint64, index int)
	OnStateChanged(e Engine, condition EngineCondition)
	OnCompleted(e Engine, gen uint64)
	OnError(e Engine, err error)
}

// Clip is an audio resource, optionally trimmed to an interval.
type Clip struct {
	URL      string
	Interval guided.TimeInterval
}

// Utterance is a piece of text to be spoken.
type Utterance struct {
	Text     string
	SSML     string
	Language language.Tag
}

// AudioEngineProvider creates engines playing pre-recorded clips.
type AudioEngineProvider interface {
	CreateAudioEngine(clips []Clip, listener Listener) (Engine, error)
}

// SpeechEngineProvider creates engines speaking synthesized utterances.
type SpeechEngineProvider interface {
	// Voices returns the voices the backend can use.
	Voices() []Voice

	CreateSpeechEngine(voice Voice, utterances []Utterance, listener Listener) (Engine, error)
}
