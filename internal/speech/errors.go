package speech

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEngine is returned by New for an unrecognized engine name.
	ErrUnknownEngine = errors.New("unknown speech engine")

	// ErrEngineNotAvailable indicates the synthesizer binary or service
	// cannot be reached.
	ErrEngineNotAvailable = errors.New("speech engine not available")

	// ErrEmptyText is returned when an utterance has nothing to speak.
	ErrEmptyText = errors.New("nothing to speak")

	// ErrNoUtterances is returned when an engine is requested for no
	// utterances.
	ErrNoUtterances = errors.New("no utterances to speak")

	// ErrTextTooLong is returned when a single request exceeds the engine
	// limit.
	ErrTextTooLong = errors.New("text exceeds engine limit")

	// ErrTimeout indicates synthesis did not finish in time.
	ErrTimeout = errors.New("synthesis timed out")
)

// ErrorCode classifies synthesis failures.
type ErrorCode string

const (
	CodeUnavailable ErrorCode = "ENGINE_UNAVAILABLE"
	CodeTimeout     ErrorCode = "ENGINE_TIMEOUT"
	CodeFailure     ErrorCode = "ENGINE_FAILURE"
	CodeRateLimit   ErrorCode = "RATE_LIMIT"
	CodeFormat      ErrorCode = "AUDIO_FORMAT"
)

// SynthesisError carries the engine and failure class of a synthesis error.
type SynthesisError struct {
	Code    ErrorCode
	Engine  string
	Message string
	Cause   error
}

func (e *SynthesisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Engine, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Engine, e.Code, e.Message)
}

func (e *SynthesisError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether trying again later may succeed.
func (e *SynthesisError) Retryable() bool {
	return e.Code == CodeTimeout || e.Code == CodeRateLimit
}

func newError(engine string, code ErrorCode, message string, cause error) error {
	return &SynthesisError{Code: code, Engine: engine, Message: message, Cause: cause}
}

// IsRetryable reports whether err is a retryable synthesis error.
func IsRetryable(err error) bool {
	var se *SynthesisError
	return errors.As(err, &se) && se.Retryable()
}
