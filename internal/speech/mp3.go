package speech

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/faiface/beep/mp3"
)

// decodeMP3 converts an MP3 payload to PCM at natural speed.
func decodeMP3(data []byte) (Audio, error) {
	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return Audio{}, fmt.Errorf("failed to decode mp3: %w", err)
	}
	defer streamer.Close()

	pcm, err := audio.Encode(format, streamer)
	if err != nil {
		return Audio{}, fmt.Errorf("failed to read mp3: %w", err)
	}
	return Audio{Data: pcm, Format: format, Speed: 1}, nil
}
