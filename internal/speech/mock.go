package speech

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/readaloud"
	"github.com/faiface/beep"
	"golang.org/x/text/language"
)

// mockFormat is low quality to keep buffers small.
var mockFormat = beep.Format{SampleRate: 16000, NumChannels: 1, Precision: 2}

// Mock renders a quiet tone per word. It needs no external tools and is
// used for demos and tests.
type Mock struct {
	PerWord time.Duration
	Delay   time.Duration
	Fail    error

	mu       sync.Mutex
	requests []Request
}

// NewMock returns a mock synthesizer speaking 60ms per word.
func NewMock() *Mock {
	return &Mock{PerWord: 60 * time.Millisecond}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) SSML() bool { return false }

func (m *Mock) Voices(context.Context) ([]readaloud.Voice, error) {
	return []readaloud.Voice{
		{ID: "mock-en", Name: "Mock English", Languages: []language.Tag{language.English, language.AmericanEnglish}},
		{ID: "mock-fr", Name: "Mock French", Languages: []language.Tag{language.French}},
	}, nil
}

func (m *Mock) Synthesize(ctx context.Context, req Request) (Audio, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	fail := m.Fail
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return Audio{}, ctx.Err()
		}
	}
	if fail != nil {
		return Audio{}, newError(m.Name(), CodeFailure, "mock failure", fail)
	}

	words := len(strings.Fields(req.Text))
	if words == 0 {
		return Audio{}, ErrEmptyText
	}
	n := mockFormat.SampleRate.N(time.Duration(words) * m.PerWord)
	data, err := audio.Encode(mockFormat, beep.Take(n, tone(mockFormat.SampleRate, 440)))
	if err != nil {
		return Audio{}, err
	}
	return Audio{Data: data, Format: mockFormat, Speed: 1}, nil
}

// Requests returns the requests received so far.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

func tone(sr beep.SampleRate, freq float64) beep.Streamer {
	var t int
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			v := 0.1 * math.Sin(2*math.Pi*freq*float64(t)/float64(sr))
			samples[i] = [2]float64{v, v}
			t++
		}
		return len(samples), true
	})
}

var _ Synthesizer = (*Mock)(nil)
