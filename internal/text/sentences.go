// Package text splits prose into sentences for highlighting and synthesis.
package text

import (
	"regexp"
	"strings"
	"unicode"
)

var spaces = regexp.MustCompile(`\s+`)

// Splitter finds sentence boundaries in English-like prose. It does not break
// on abbreviations, decimal numbers, ellipses or URL schemes.
type Splitter struct {
	abbreviations map[string]bool
	titles        map[string]bool
}

// NewSplitter returns a splitter with the default abbreviation lists.
func NewSplitter() *Splitter {
	return &Splitter{
		abbreviations: defaultAbbreviations(),
		titles:        defaultTitles(),
	}
}

// Normalize collapses runs of whitespace.
func Normalize(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

// Split returns the sentences of s, whitespace normalized.
func (p *Splitter) Split(s string) []string {
	runes := []rune(Normalize(s))

	var (
		sentences []string
		start     int
	)
	for i := range runes {
		if !p.boundary(runes, i) {
			continue
		}
		if sentence := strings.TrimSpace(string(runes[start : i+1])); sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = i + 1
	}
	return sentences
}

// Chunk splits s into pieces of at most max runes, cutting at sentence
// boundaries when possible and at spaces otherwise.
func (p *Splitter) Chunk(s string, max int) []string {
	var (
		chunks  []string
		current strings.Builder
		length  int
	)
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			length = 0
		}
	}

	for _, sentence := range p.Split(s) {
		n := len([]rune(sentence))
		if length > 0 && length+1+n > max {
			flush()
		}
		if n > max {
			chunks = append(chunks, chunkWords(sentence, max)...)
			continue
		}
		if length > 0 {
			current.WriteByte(' ')
			length++
		}
		current.WriteString(sentence)
		length += n
	}
	flush()
	return chunks
}

func chunkWords(s string, max int) []string {
	var chunks []string
	runes := []rune(s)
	for len(runes) > max {
		cut := max
		for i := max; i > max/2; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		chunks = append(chunks, strings.TrimSpace(string(runes[:cut])))
		runes = []rune(strings.TrimSpace(string(runes[cut:])))
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

func (p *Splitter) boundary(runes []rune, pos int) bool {
	if pos >= len(runes)-1 {
		return true
	}

	switch runes[pos] {
	case '.':
		if isEllipsis(runes, pos) || isDecimal(runes, pos) {
			return false
		}
		if word := wordBefore(runes, pos); p.abbreviations[word] {
			if p.titles[word] {
				return false
			}
			return nextIsUpper(runes, pos+1)
		}
	case '!', '?':
	case ':':
		if isScheme(runes, pos) {
			return false
		}
		return unicode.IsSpace(runes[pos+1])
	case '"', '”':
		if pos == 0 || !strings.ContainsRune(".!?", runes[pos-1]) {
			return false
		}
		return unicode.IsSpace(runes[pos+1]) && nextIsUpper(runes, pos+1)
	default:
		return false
	}

	// The closing quote ends the sentence.
	if runes[pos+1] == '"' || runes[pos+1] == '”' {
		return false
	}
	if !unicode.IsSpace(runes[pos+1]) {
		return false
	}
	return nextIsUpper(runes, pos+1)
}

func nextIsUpper(runes []rune, pos int) bool {
	for pos < len(runes) && unicode.IsSpace(runes[pos]) {
		pos++
	}
	return pos < len(runes) && (unicode.IsUpper(runes[pos]) || unicode.IsDigit(runes[pos]) || runes[pos] == '"' || runes[pos] == '“')
}

func wordBefore(runes []rune, pos int) string {
	start := pos
	for start > 0 && !unicode.IsSpace(runes[start-1]) {
		start--
	}
	return strings.ToLower(strings.TrimLeft(string(runes[start:pos]), "(\"'“"))
}

func isDecimal(runes []rune, pos int) bool {
	return pos > 0 && pos+1 < len(runes) && unicode.IsDigit(runes[pos-1]) && unicode.IsDigit(runes[pos+1])
}

func isEllipsis(runes []rune, pos int) bool {
	return (pos > 0 && runes[pos-1] == '.') || (pos+1 < len(runes) && runes[pos+1] == '.')
}

func isScheme(runes []rune, pos int) bool {
	word := wordBefore(runes, pos)
	return word == "http" || word == "https" || word == "ftp" || word == "mailto"
}

func defaultAbbreviations() map[string]bool {
	words := []string{
		"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st",
		"ph.d", "m.d", "b.a", "m.a", "b.s", "m.s",
		"etc", "vs", "e.g", "i.e", "cf", "al", "approx", "no", "vol", "ch", "fig", "p", "pp",
		"inc", "ltd", "co", "corp",
		"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
	}
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func defaultTitles() map[string]bool {
	return map[string]bool{
		"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true, "st": true,
		"ph.d": true, "m.d": true,
	}
}
