package audio

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/readaloud"
)

// ErrNoClips is returned when an engine is requested for an empty clip list.
var ErrNoClips = errors.New("no clips to play")

// ClipProvider creates engines that play pre-recorded clips on a sink.
type ClipProvider struct {
	decoder *ClipDecoder
	sink    playback.Sink
	logger  *log.Logger
}

// NewClipProvider returns a provider decoding with decoder and playing on
// sink.
func NewClipProvider(decoder *ClipDecoder, sink playback.Sink) *ClipProvider {
	return &ClipProvider{
		decoder: decoder,
		sink:    sink,
		logger:  log.WithPrefix("audio"),
	}
}

// CreateAudioEngine implements readaloud.AudioEngineProvider.
func (p *ClipProvider) CreateAudioEngine(clips []readaloud.Clip, listener readaloud.Listener) (readaloud.Engine, error) {
	if len(clips) == 0 {
		return nil, ErrNoClips
	}
	for _, c := range clips {
		if !Supported(c.URL) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, c.URL)
		}
	}

	loader := playback.LoaderFunc(func(ctx context.Context, index int, pr playback.Prosody) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return p.decoder.Decode(clips[index], pr.Speed)
	})

	p.logger.Debug("audio engine created", "clips", len(clips), "first", clips[0].URL)
	return playback.NewEngine("audio", len(clips), loader, p.sink, listener, playback.WithLogger(p.logger)), nil
}

var _ readaloud.AudioEngineProvider = (*ClipProvider)(nil)
