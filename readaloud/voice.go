package readaloud

import "golang.org/x/text/language"

// Voice is a speech synthesis voice offered by a SpeechEngineProvider.
type Voice struct {
	ID        string
	Name      string
	Languages []language.Tag
}

// Supports reports whether the voice declares lang exactly, region included.
func (v Voice) Supports(lang language.Tag) bool {
	for _, l := range v.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// SupportsBase reports whether the voice declares any variant of the base
// language of lang.
func (v Voice) SupportsBase(lang language.Tag) bool {
	want, _ := lang.Base()
	for _, l := range v.Languages {
		if base, _ := l.Base(); base == want {
			return true
		}
	}
	return false
}

// ResolveVoice picks a voice for lang. The precedence is: the preferred
// voice for lang with its region, the preferred voice for the bare
// language, any voice declaring lang with its region, any voice declaring
// the bare language, the first voice. It returns false only when voices is
// empty.
func ResolveVoice(lang language.Tag, preferred map[language.Tag]string, voices []Voice) (Voice, bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}

	byID := func(id string) (Voice, bool) {
		for _, v := range voices {
			if v.ID == id {
				return v, true
			}
		}
		return Voice{}, false
	}

	if id, ok := preferred[lang]; ok {
		if v, ok := byID(id); ok {
			return v, true
		}
	}
	base, _ := lang.Base()
	if id, ok := preferred[language.Make(base.String())]; ok {
		if v, ok := byID(id); ok {
			return v, true
		}
	}
	for _, v := range voices {
		if v.Supports(lang) {
			return v, true
		}
	}
	for _, v := range voices {
		if v.SupportsBase(lang) {
			return v, true
		}
	}
	return voices[0], true
}
