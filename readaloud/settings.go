package readaloud

import (
	"fmt"
	"maps"

	"github.com/dgnsrekt/readaloud/guided"
	"golang.org/x/text/language"
)

// DefaultSkippableRoles are skipped by SkipToNext and SkipToPrevious unless
// preferences say otherwise.
func DefaultSkippableRoles() guided.RoleSet {
	return guided.NewRoleSet(
		guided.RoleAside, guided.RoleBibliography, guided.RoleEndnotes,
		guided.RoleFootnote, guided.RoleNoteref, guided.RolePullquote,
		guided.RoleLandmarks, guided.RoleLOA, guided.RoleLOI, guided.RoleLOT,
		guided.RoleLOV, guided.RolePagebreak, guided.RoleTOC,
	)
}

// DefaultEscapableRoles can be escaped from with EscapeToNext.
func DefaultEscapableRoles() guided.RoleSet {
	return guided.NewRoleSet(
		guided.RoleAside, guided.RoleFigure, guided.RoleList,
		guided.RoleListItem, guided.RoleTable, guided.RoleRow, guided.RoleCell,
	)
}

// Settings is the resolved, immutable configuration of a read aloud
// session. Replace it with Navigator.SetSettings, never mutate it in place.
type Settings struct {
	// Language is used for text without a language and, when
	// OverrideContentLanguage is set, for all text.
	Language                language.Tag
	OverrideContentLanguage bool

	Pitch float64
	Speed float64

	// Voices maps a language, with or without region, to a voice ID.
	Voices map[language.Tag]string

	SkippableRoles guided.RoleSet
	EscapableRoles guided.RoleSet

	// ReadContinuously moves to the next item automatically when the
	// current one ends. When false playback pauses after each item.
	ReadContinuously bool
}

// DefaultSettings returns the settings resolved from empty preferences.
func DefaultSettings() Settings {
	return SettingsResolver{}.Resolve(Preferences{})
}

// Validate checks the numeric ranges.
func (s Settings) Validate() error {
	if s.Pitch <= 0 {
		return fmt.Errorf("%w: pitch must be positive, got %.2f", ErrInvalidSetting, s.Pitch)
	}
	if s.Speed <= 0 {
		return fmt.Errorf("%w: speed must be positive, got %.2f", ErrInvalidSetting, s.Speed)
	}
	return nil
}

// Preferences are user choices; nil fields fall back to the publication
// metadata and then to the defaults.
type Preferences struct {
	Language         *language.Tag
	Pitch            *float64
	Speed            *float64
	Voices           map[language.Tag]string
	SkippableRoles   guided.RoleSet
	EscapableRoles   guided.RoleSet
	ReadContinuously *bool
}

// Merge returns p overridden by the non-nil fields of other.
func (p Preferences) Merge(other Preferences) Preferences {
	if other.Language != nil {
		p.Language = other.Language
	}
	if other.Pitch != nil {
		p.Pitch = other.Pitch
	}
	if other.Speed != nil {
		p.Speed = other.Speed
	}
	if other.Voices != nil {
		p.Voices = other.Voices
	}
	if other.SkippableRoles != nil {
		p.SkippableRoles = other.SkippableRoles
	}
	if other.EscapableRoles != nil {
		p.EscapableRoles = other.EscapableRoles
	}
	if other.ReadContinuously != nil {
		p.ReadContinuously = other.ReadContinuously
	}
	return p
}

// Defaults are application-wide fallbacks. Zero fields are unset.
type Defaults struct {
	Language         language.Tag
	Pitch            float64
	Speed            float64
	Voices           map[language.Tag]string
	SkippableRoles   guided.RoleSet
	EscapableRoles   guided.RoleSet
	ReadContinuously *bool
}

// SettingsResolver turns preferences into settings.
type SettingsResolver struct {
	// MetadataLanguage is the language declared by the publication.
	MetadataLanguage language.Tag
	Defaults         Defaults
}

// Resolve computes the settings for p. Language comes from the
// preferences, then the publication, then the defaults, then English.
// Default voices are dropped for languages the preferences already pick a
// voice for, whatever the region.
func (r SettingsResolver) Resolve(p Preferences) Settings {
	lang := language.English
	switch {
	case p.Language != nil:
		lang = *p.Language
	case r.MetadataLanguage != language.Und:
		lang = r.MetadataLanguage
	case r.Defaults.Language != language.Und:
		lang = r.Defaults.Language
	}

	skippable := p.SkippableRoles
	if skippable == nil {
		skippable = r.Defaults.SkippableRoles
	}
	if skippable == nil {
		skippable = DefaultSkippableRoles()
	}
	escapable := p.EscapableRoles
	if escapable == nil {
		escapable = r.Defaults.EscapableRoles
	}
	if escapable == nil {
		escapable = DefaultEscapableRoles()
	}

	preferred := make(map[language.Base]bool, len(p.Voices))
	for tag := range p.Voices {
		base, _ := tag.Base()
		preferred[base] = true
	}
	voices := make(map[language.Tag]string, len(r.Defaults.Voices)+len(p.Voices))
	for tag, id := range r.Defaults.Voices {
		if base, _ := tag.Base(); !preferred[base] {
			voices[tag] = id
		}
	}
	maps.Copy(voices, p.Voices)

	readContinuously := true
	switch {
	case p.ReadContinuously != nil:
		readContinuously = *p.ReadContinuously
	case r.Defaults.ReadContinuously != nil:
		readContinuously = *r.Defaults.ReadContinuously
	}

	return Settings{
		Language:                lang,
		OverrideContentLanguage: p.Language != nil,
		Pitch:                   firstPositive(p.Pitch, r.Defaults.Pitch),
		Speed:                   firstPositive(p.Speed, r.Defaults.Speed),
		Voices:                  voices,
		SkippableRoles:          skippable,
		EscapableRoles:          escapable,
		ReadContinuously:        readContinuously,
	}
}

func firstPositive(pref *float64, def float64) float64 {
	if pref != nil && *pref > 0 {
		return *pref
	}
	if def > 0 {
		return def
	}
	return 1.0
}
