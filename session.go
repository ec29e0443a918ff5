package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/guided"
	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/config"
	"github.com/dgnsrekt/readaloud/internal/metrics"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/internal/source"
	"github.com/dgnsrekt/readaloud/internal/speech"
	"github.com/dgnsrekt/readaloud/readaloud"
	"github.com/faiface/beep"
	"golang.org/x/text/language"
)

// session wires a document to the audio device, the speech backend and a
// navigator.
type session struct {
	doc      *guided.Document
	nav      *readaloud.Navigator
	metrics  *metrics.Metrics
	resolver readaloud.SettingsResolver

	player  *audio.Player
	closers []io.Closer
}

func openSession(ctx context.Context, cfg config.Config, path string) (*session, error) {
	doc, err := source.Open(path)
	if err != nil {
		return nil, err
	}

	s := &session{
		doc:      doc,
		metrics:  metrics.New(),
		resolver: readaloud.SettingsResolver{MetadataLanguage: documentLanguage(doc)},
	}
	ok := false
	defer func() {
		if !ok {
			_ = s.Close()
		}
	}()

	sink, format := s.openSink(cfg.Audio)

	synth, err := speech.New(ctx, cfg.Speech)
	if err != nil {
		return nil, fmt.Errorf("unable to create speech backend: %w", err)
	}
	if c, isCloser := synth.(io.Closer); isCloser {
		s.closers = append(s.closers, c)
	}

	opts := []speech.ProviderOption{
		speech.WithMaxChars(cfg.Speech.MaxChars),
		speech.WithObserver(s.metrics),
	}
	if store := openCache(cfg.Cache); store != nil {
		s.closers = append(s.closers, store)
		opts = append(opts, speech.WithCache(store))
	}
	speechProvider := speech.NewProvider(synth, sink, format, opts...)

	clips := audio.NewClipDecoder(audio.DirOpener(filepath.Dir(path)), format)
	audioProvider := audio.NewClipProvider(clips, sink)

	settings, err := s.settings(cfg.Playback)
	if err != nil {
		return nil, err
	}

	s.nav, err = readaloud.NewNavigator(readaloud.Config{
		Tree:          doc.Tree(),
		Publication:   doc,
		Audio:         audioProvider,
		Speech:        speechProvider,
		Settings:      settings,
		PlayWhenReady: cfg.Playback.AutoPlay,
		Observer:      s.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create navigator: %w", err)
	}
	if err := s.nav.Start(ctx); err != nil {
		return nil, fmt.Errorf("unable to start navigator: %w", err)
	}

	log.Info("session started",
		"document", filepath.Base(path),
		"nodes", s.nav.Tree().Len(),
		"engine", synth.Name(),
		"language", settings.Language,
	)
	ok = true
	return s, nil
}

// openSink opens the audio device. Without one, audio is discarded in real
// time so the session still advances.
func (s *session) openSink(cfg config.AudioConfig) (playback.Sink, beep.Format) {
	if !cfg.Discard {
		player, err := audio.NewPlayer(cfg.Player())
		if err == nil {
			if err := player.SetVolume(cfg.Volume); err != nil {
				log.Warn("unable to set volume", "err", err)
			}
			s.player = player
			s.closers = append(s.closers, player)
			return player, player.Format()
		}
		log.Warn("no audio device, discarding audio", "err", err)
	}
	format := cfg.Player().Format()
	return audio.NewNullSink(format, 1), format
}

func openCache(cfg config.CacheConfig) *cache.Store {
	if !cfg.Enabled {
		return nil
	}
	c := cfg.Config
	if c.Dir == "" {
		dir, err := config.CacheDir()
		if err != nil {
			log.Warn("synthesis cache disabled", "err", err)
			return nil
		}
		c.Dir = dir
	}
	c.Dir = expandPath(c.Dir)

	store, err := cache.Open(c)
	if err != nil {
		log.Warn("synthesis cache disabled", "err", err)
		return nil
	}
	return store
}

func (s *session) settings(cfg config.PlaybackConfig) (readaloud.Settings, error) {
	prefs, err := cfg.Preferences()
	if err != nil {
		return readaloud.Settings{}, err
	}
	return s.resolver.Resolve(prefs), nil
}

// reload applies a changed config file to the running session.
func (s *session) reload(cfg config.Config) {
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if s.player != nil {
		if err := s.player.SetVolume(cfg.Audio.Volume); err != nil {
			log.Warn("unable to set volume", "err", err)
		}
	}

	settings, err := s.settings(cfg.Playback)
	if err != nil {
		log.Warn("ignoring playback settings", "err", err)
		return
	}
	if err := s.nav.SetSettings(settings); err != nil {
		log.Warn("unable to apply settings", "err", err)
		return
	}
	log.Info("settings reloaded", "language", settings.Language, "speed", settings.Speed, "pitch", settings.Pitch)
}

// Close stops the navigator first so no engine is left writing to the
// device.
func (s *session) Close() error {
	var errs []error
	if s.nav != nil {
		errs = append(errs, s.nav.Close())
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	return errors.Join(errs...)
}

func documentLanguage(doc *guided.Document) language.Tag {
	if doc.Language == "" {
		return language.Und
	}
	tag, err := language.Parse(doc.Language)
	if err != nil {
		log.Warn("ignoring document language", "language", doc.Language, "err", err)
		return language.Und
	}
	return tag
}
