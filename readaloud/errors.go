package readaloud

import (
	"errors"
	"fmt"
)

// Common errors for the read aloud navigator.
var (
	// Setup errors
	ErrNilTree        = errors.New("navigation tree is nil")
	ErrNoContent      = errors.New("no playable content in the navigation tree")
	ErrNoBackend      = errors.New("no audio or speech backend configured")
	ErrInvalidSetting = errors.New("invalid read aloud setting")

	// Segment errors
	ErrNoVoice         = errors.New("no voice available for language")
	ErrEngineCreation  = errors.New("engine creation failed")
	ErrSegmentReleased = errors.New("segment has been released")

	// Navigator errors
	ErrNavigatorClosed  = errors.New("navigator is closed")
	ErrLocationNotFound = errors.New("location not found in navigation tree")
)

// EngineError wraps a failure reported by a backend engine.
type EngineError struct {
	Err       error  // The underlying error
	Component string // "audio" or "speech"
	Action    string // What the engine was doing
}

func (e *EngineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s engine error", e.Component)
	}
	if e.Action != "" {
		return fmt.Sprintf("%s engine failed to %s: %v", e.Component, e.Action, e.Err)
	}
	return fmt.Sprintf("%s engine error: %v", e.Component, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}
