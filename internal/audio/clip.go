package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgnsrekt/readaloud/guided"
	"github.com/dgnsrekt/readaloud/readaloud"
	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

// Clip errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrIntervalRange     = errors.New("clip interval starts past the end of the resource")
)

// Opener opens a publication resource by href.
type Opener func(href string) (io.ReadCloser, error)

// DirOpener resolves hrefs relative to dir.
func DirOpener(dir string) Opener {
	return func(href string) (io.ReadCloser, error) {
		href = strings.TrimPrefix(href, "file://")
		if !filepath.IsAbs(href) {
			href = filepath.Join(dir, filepath.FromSlash(href))
		}
		return os.Open(href)
	}
}

// ClipDecoder renders clips to PCM in the output format.
type ClipDecoder struct {
	open   Opener
	output beep.Format
}

// NewClipDecoder returns a decoder reading resources through open.
func NewClipDecoder(open Opener, output beep.Format) *ClipDecoder {
	return &ClipDecoder{open: open, output: output}
}

// Supported reports whether the resource at url can be decoded.
func Supported(url string) bool {
	href, _ := guided.SplitFragment(url)
	switch strings.ToLower(filepath.Ext(href)) {
	case ".mp3", ".wav":
		return true
	}
	return false
}

// Decode renders clip at the given speed.
func (d *ClipDecoder) Decode(clip readaloud.Clip, speed float64) ([]byte, error) {
	href, _ := guided.SplitFragment(clip.URL)
	rc, err := d.open(href)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", href, err)
	}
	defer rc.Close()

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch ext := strings.ToLower(filepath.Ext(href)); ext {
	case ".mp3":
		stream, format, err = mp3.Decode(rc)
	case ".wav":
		stream, format, err = wav.Decode(rc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", href, err)
	}
	defer stream.Close()

	if start := clip.Interval.Start; start > 0 {
		pos := format.SampleRate.N(start)
		if pos >= stream.Len() {
			return nil, fmt.Errorf("%w: %s at %v", ErrIntervalRange, href, start)
		}
		if err := stream.Seek(pos); err != nil {
			return nil, fmt.Errorf("seek %s: %w", href, err)
		}
	}

	var s beep.Streamer = stream
	if length := clip.Interval.Duration(); length > 0 {
		s = beep.Take(format.SampleRate.N(length), s)
	}
	return Encode(d.output, Retime(s, format.SampleRate, d.output.SampleRate, speed))
}
