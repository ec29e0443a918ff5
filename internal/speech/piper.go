package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/readaloud"
	"github.com/faiface/beep"
	"golang.org/x/text/language"
)

const (
	piperDefaultRate = 22050
	piperMaxText     = 5000
	piperMaxOutput   = 10 << 20
)

// PiperConfig configures the offline piper synthesizer.
type PiperConfig struct {
	Binary  string        `yaml:"binary" mapstructure:"binary" env:"BINARY"`
	Model   string        `yaml:"model" mapstructure:"model" env:"MODEL"`
	Config  string        `yaml:"config" mapstructure:"config" env:"CONFIG"` // defaults to <model>.json
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" env:"TIMEOUT"`
}

// Piper runs a fresh piper process per request with the text on stdin and
// raw PCM on stdout.
type Piper struct {
	binary  string
	model   string
	timeout time.Duration
	meta    piperModel
}

// piperModel is the subset of the model's .onnx.json we use.
type piperModel struct {
	Dataset  string `json:"dataset"`
	Language struct {
		Code string `json:"code"`
	} `json:"language"`
	Audio struct {
		SampleRate int `json:"sample_rate"`
	} `json:"audio"`
	SpeakerIDMap map[string]int `json:"speaker_id_map"`
}

// NewPiper validates the model and reads its metadata. The binary is looked
// up lazily so that voices can be listed without piper installed.
func NewPiper(config PiperConfig) (*Piper, error) {
	if config.Model == "" {
		return nil, errors.New("piper model path is required")
	}
	if _, err := os.Stat(config.Model); err != nil {
		return nil, fmt.Errorf("piper model not found: %w", err)
	}
	if config.Config == "" {
		config.Config = config.Model + ".json"
		if _, err := os.Stat(config.Config); err != nil {
			config.Config = strings.TrimSuffix(config.Model, filepath.Ext(config.Model)) + ".json"
		}
	}
	if config.Binary == "" {
		config.Binary = "piper"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	p := &Piper{binary: config.Binary, model: config.Model, timeout: config.Timeout}
	data, err := os.ReadFile(config.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to read piper model config: %w", err)
	}
	if err := json.Unmarshal(data, &p.meta); err != nil {
		return nil, fmt.Errorf("failed to parse piper model config: %w", err)
	}
	if p.meta.Audio.SampleRate == 0 {
		p.meta.Audio.SampleRate = piperDefaultRate
	}
	if p.meta.Dataset == "" {
		p.meta.Dataset = strings.TrimSuffix(filepath.Base(config.Model), filepath.Ext(config.Model))
	}
	return p, nil
}

func (p *Piper) Name() string { return "piper" }

func (p *Piper) SSML() bool { return false }

// Format is 16-bit mono at the model sample rate.
func (p *Piper) Format() beep.Format {
	return beep.Format{SampleRate: beep.SampleRate(p.meta.Audio.SampleRate), NumChannels: 1, Precision: 2}
}

// Voices returns the model voice, or one voice per speaker for multi-speaker
// models.
func (p *Piper) Voices(context.Context) ([]readaloud.Voice, error) {
	tag, err := language.Parse(strings.ReplaceAll(p.meta.Language.Code, "_", "-"))
	if err != nil {
		tag = language.Und
	}

	if len(p.meta.SpeakerIDMap) == 0 {
		return []readaloud.Voice{{ID: p.meta.Dataset, Name: p.meta.Dataset, Languages: []language.Tag{tag}}}, nil
	}

	speakers := make([]string, 0, len(p.meta.SpeakerIDMap))
	for name := range p.meta.SpeakerIDMap {
		speakers = append(speakers, name)
	}
	slices.SortFunc(speakers, func(a, b string) int {
		return p.meta.SpeakerIDMap[a] - p.meta.SpeakerIDMap[b]
	})

	voices := make([]readaloud.Voice, 0, len(speakers))
	for _, name := range speakers {
		voices = append(voices, readaloud.Voice{
			ID:        p.meta.Dataset + "#" + name,
			Name:      p.meta.Dataset + " (" + name + ")",
			Languages: []language.Tag{tag},
		})
	}
	return voices, nil
}

// Synthesize renders req.Text. Speed is applied natively through the length
// scale; pitch is not supported.
func (p *Piper) Synthesize(ctx context.Context, req Request) (Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Audio{}, ErrEmptyText
	}
	if len(req.Text) > piperMaxText {
		return Audio{}, fmt.Errorf("%w: %d characters", ErrTextTooLong, len(req.Text))
	}
	binary, err := lookPath(p.binary)
	if err != nil {
		return Audio{}, newError(p.Name(), CodeUnavailable, "binary missing", err)
	}

	speed := req.Speed
	if speed <= 0 {
		speed = 1
	}
	args := []string{
		"--model", p.model,
		"--output-raw",
		"--length-scale", strconv.FormatFloat(1/speed, 'f', 3, 64),
	}
	if _, name, ok := strings.Cut(req.Voice, "#"); ok {
		if id, ok := p.meta.SpeakerIDMap[name]; ok {
			args = append(args, "--speaker", strconv.Itoa(id))
		}
	}

	start := time.Now()
	out, err := command{
		name:      binary,
		args:      args,
		stdin:     req.Text,
		timeout:   p.timeout,
		maxOutput: piperMaxOutput,
	}.run(ctx)
	if err != nil {
		code := CodeFailure
		if errors.Is(err, ErrTimeout) {
			code = CodeTimeout
		}
		return Audio{}, newError(p.Name(), code, "synthesis failed", err)
	}
	if len(out) == 0 {
		return Audio{}, newError(p.Name(), CodeFormat, "no audio produced", nil)
	}
	// Drop a trailing odd byte so every sample is complete.
	out = out[:len(out)&^1]

	log.Debug("piper synthesized", "chars", len(req.Text), "bytes", len(out), "took", time.Since(start))
	return Audio{Data: out, Format: p.Format(), Speed: speed}, nil
}

var _ Synthesizer = (*Piper)(nil)
