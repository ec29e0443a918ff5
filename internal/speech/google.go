package speech

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"github.com/dgnsrekt/readaloud/readaloud"
	"golang.org/x/text/language"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"
)

// GoogleConfig configures the Cloud Text-to-Speech synthesizer.
// Credentials come from the environment (GOOGLE_APPLICATION_CREDENTIALS).
type GoogleConfig struct {
	// LanguageFilter restricts ListVoices, e.g. "en".
	LanguageFilter string `yaml:"language_filter" mapstructure:"language_filter" env:"LANGUAGE_FILTER"`
}

// Google renders through the Cloud Text-to-Speech API. It applies speed
// and pitch natively and accepts SSML.
type Google struct {
	client *texttospeech.Client
	filter string
}

// NewGoogle connects to the API.
func NewGoogle(ctx context.Context, config GoogleConfig) (*Google, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, newError("google", CodeUnavailable, "failed to create client", err)
	}
	return &Google{client: client, filter: config.LanguageFilter}, nil
}

func (g *Google) Name() string { return "google" }

func (g *Google) SSML() bool { return true }

// Voices lists the voices of the service, sorted by name.
func (g *Google) Voices(ctx context.Context) ([]readaloud.Voice, error) {
	resp, err := g.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{LanguageCode: g.filter})
	if err != nil {
		return nil, newError(g.Name(), CodeFailure, "failed to list voices", err)
	}

	voices := make([]readaloud.Voice, 0, len(resp.GetVoices()))
	for _, v := range resp.GetVoices() {
		voices = append(voices, voiceFromProto(v))
	}
	slices.SortFunc(voices, func(a, b readaloud.Voice) int {
		return strings.Compare(a.ID, b.ID)
	})
	return voices, nil
}

// Synthesize requests MP3 audio and decodes it.
func (g *Google) Synthesize(ctx context.Context, req Request) (Audio, error) {
	input := &texttospeechpb.SynthesisInput{}
	switch {
	case req.SSML != "":
		input.InputSource = &texttospeechpb.SynthesisInput_Ssml{Ssml: req.SSML}
	case strings.TrimSpace(req.Text) != "":
		input.InputSource = &texttospeechpb.SynthesisInput_Text{Text: req.Text}
	default:
		return Audio{}, ErrEmptyText
	}

	speed := 1.0
	if req.Speed > 0 {
		speed = clamp(req.Speed, 0.25, 4)
	}
	resp, err := g.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: input,
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: req.Language.String(),
			Name:         req.Voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
			SpeakingRate:  speed,
			Pitch:         semitones(req.Pitch),
		},
	})
	if err != nil {
		return Audio{}, newError(g.Name(), CodeFailure, "synthesis request failed", err)
	}

	a, err := decodeMP3(resp.GetAudioContent())
	if err != nil {
		return Audio{}, newError(g.Name(), CodeFormat, "invalid audio", err)
	}
	a.Speed = speed
	return a, nil
}

// Close releases the client connection.
func (g *Google) Close() error {
	if err := g.client.Close(); err != nil {
		return fmt.Errorf("failed to close texttospeech client: %w", err)
	}
	return nil
}

func voiceFromProto(v *texttospeechpb.Voice) readaloud.Voice {
	tags := make([]language.Tag, 0, len(v.GetLanguageCodes()))
	for _, code := range v.GetLanguageCodes() {
		if tag, err := language.Parse(code); err == nil {
			tags = append(tags, tag)
		}
	}
	name := v.GetName()
	if g := v.GetSsmlGender(); g != texttospeechpb.SsmlVoiceGender_SSML_VOICE_GENDER_UNSPECIFIED {
		name += " (" + strings.ToLower(g.String()) + ")"
	}
	return readaloud.Voice{ID: v.GetName(), Name: name, Languages: tags}
}

// semitones converts a pitch ratio to the API's semitone offset.
func semitones(pitch float64) float64 {
	if pitch <= 0 {
		return 0
	}
	return clamp(12*math.Log2(pitch), -20, 20)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

var _ Synthesizer = (*Google)(nil)
