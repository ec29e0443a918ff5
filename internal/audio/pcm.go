package audio

import (
	"bytes"
	"math"
	"time"

	"github.com/faiface/beep"
)

// resampleQuality is the beep resampler quality, 1 to 64.
const resampleQuality = 4

// Encode drains s into signed little endian PCM in format f.
func Encode(f beep.Format, s beep.Streamer) ([]byte, error) {
	var buf bytes.Buffer
	samples := make([][2]float64, 512)
	frame := make([]byte, f.Width())
	for {
		n, ok := s.Stream(samples)
		for _, sample := range samples[:n] {
			f.EncodeSigned(frame, sample)
			buf.Write(frame)
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// pcmStreamer streams signed little endian PCM.
type pcmStreamer struct {
	format beep.Format
	data   []byte
	pos    int
}

// NewPCMStreamer returns a streamer over raw PCM in format f.
func NewPCMStreamer(f beep.Format, data []byte) beep.Streamer {
	return &pcmStreamer{format: f, data: data}
}

func (p *pcmStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	width := p.format.Width()
	for n < len(samples) && p.pos+width <= len(p.data) {
		samples[n], _ = p.format.DecodeSigned(p.data[p.pos : p.pos+width])
		p.pos += width
		n++
	}
	return n, n > 0
}

func (p *pcmStreamer) Err() error { return nil }

// Retime resamples s from rate from to rate to, played speed times faster.
// Speed changes shift the pitch as well.
func Retime(s beep.Streamer, from, to beep.SampleRate, speed float64) beep.Streamer {
	if speed <= 0 {
		speed = 1
	}
	src := beep.SampleRate(math.Round(float64(from) * speed))
	if src == to {
		return s
	}
	return beep.Resample(resampleQuality, src, to, s)
}

// Convert re-encodes PCM from one format to another at the given speed.
func Convert(data []byte, from, to beep.Format, speed float64) ([]byte, error) {
	return Encode(to, Retime(NewPCMStreamer(from, data), from.SampleRate, to.SampleRate, speed))
}

// Duration returns the play time of data in format f.
func Duration(f beep.Format, data []byte) time.Duration {
	width := f.Width()
	if width == 0 || f.SampleRate <= 0 {
		return 0
	}
	return f.SampleRate.D(len(data) / width)
}
