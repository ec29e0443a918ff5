package speech

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/dgnsrekt/readaloud/readaloud"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"golang.org/x/time/rate"
)

const (
	gttsMaxOutput = 50 << 20
	gttsVoice     = "gtts"
)

// GTTSConfig configures the Google Translate synthesizer, reached through
// gtts-cli.
type GTTSConfig struct {
	Binary            string        `yaml:"binary" mapstructure:"binary" env:"BINARY"`
	Slow              bool          `yaml:"slow" mapstructure:"slow" env:"SLOW"`
	RequestsPerMinute int           `yaml:"requests_per_minute" mapstructure:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout" env:"TIMEOUT"`
}

// gttsAccents maps regional tags to the Google domain serving that accent.
var gttsAccents = map[string]string{
	"en-US": "com",
	"en-GB": "co.uk",
	"en-AU": "com.au",
	"en-IN": "co.in",
	"en-CA": "ca",
	"fr-FR": "fr",
	"fr-CA": "ca",
	"pt-BR": "com.br",
	"pt-PT": "pt",
	"es-ES": "es",
	"es-MX": "com.mx",
}

var gttsLanguages = []string{"en", "fr", "de", "es", "it", "pt", "nl", "pl", "sv", "ja", "ko", "zh"}

// GTTS renders MP3 with gtts-cli and decodes it in process. Requests are
// rate limited so the service does not block us.
type GTTS struct {
	binary  string
	slow    bool
	timeout time.Duration
	limiter *rate.Limiter
}

// NewGTTS returns a gTTS synthesizer.
func NewGTTS(config GTTSConfig) *GTTS {
	if config.Binary == "" {
		config.Binary = "gtts-cli"
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 50
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &GTTS{
		binary:  config.Binary,
		slow:    config.Slow,
		timeout: config.Timeout,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1),
	}
}

func (g *GTTS) Name() string { return "gtts" }

func (g *GTTS) SSML() bool { return false }

// Voices returns one voice per supported language, declaring the regional
// accents gtts-cli can produce for it.
func (g *GTTS) Voices(context.Context) ([]readaloud.Voice, error) {
	voices := make([]readaloud.Voice, 0, len(gttsLanguages))
	for _, lang := range gttsLanguages {
		var regions []string
		for region := range gttsAccents {
			if strings.HasPrefix(region, lang+"-") {
				regions = append(regions, region)
			}
		}
		slices.Sort(regions)

		tags := []language.Tag{language.Make(lang)}
		for _, region := range regions {
			tags = append(tags, language.Make(region))
		}
		voices = append(voices, readaloud.Voice{
			ID:        gttsVoice + "-" + lang,
			Name:      "Google Translate (" + display.English.Languages().Name(tags[0]) + ")",
			Languages: tags,
		})
	}
	return voices, nil
}

// Synthesize renders req.Text at natural speed; the provider applies the
// requested speed afterwards.
func (g *GTTS) Synthesize(ctx context.Context, req Request) (Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Audio{}, ErrEmptyText
	}
	binary, err := lookPath(g.binary)
	if err != nil {
		return Audio{}, newError(g.Name(), CodeUnavailable, "binary missing", err)
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return Audio{}, newError(g.Name(), CodeRateLimit, "rate limit wait", err)
	}

	// "-" makes gtts-cli read the text from stdin.
	data, err := command{
		name:      binary,
		args:      append([]string{"-"}, g.args(req.Language)...),
		stdin:     req.Text,
		timeout:   g.timeout,
		maxOutput: gttsMaxOutput,
	}.run(ctx)
	if err != nil {
		code := CodeFailure
		if errors.Is(err, ErrTimeout) {
			code = CodeTimeout
		}
		return Audio{}, newError(g.Name(), code, "gtts-cli failed", err)
	}
	if len(data) == 0 {
		return Audio{}, newError(g.Name(), CodeFormat, "no audio produced", nil)
	}

	a, err := decodeMP3(data)
	if err != nil {
		return Audio{}, newError(g.Name(), CodeFormat, "invalid mp3", err)
	}
	return a, nil
}

func (g *GTTS) args(tag language.Tag) []string {
	base, _ := tag.Base()
	args := []string{"-l", base.String()}
	if tld, ok := gttsAccents[tag.String()]; ok {
		args = append(args, "--tld", tld)
	}
	if g.slow {
		args = append(args, "--slow")
	}
	return append(args, "-o", "-")
}

var _ Synthesizer = (*GTTS)(nil)
