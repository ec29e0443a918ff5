// Package source turns readable files into guided navigation documents.
//
// Guided navigation documents (YAML or JSON) are loaded as they are. Other
// formats are converted: headings open sections, paragraphs are split into
// sentence nodes, lists and tables keep their structure so that the
// navigator can escape them.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dgnsrekt/readaloud/guided"
)

// ErrUnsupported is returned for files with an unknown extension.
var ErrUnsupported = errors.New("unsupported document format")

// Parser converts the content of a file. name is used for text references
// and as a fallback title.
type Parser interface {
	Parse(r io.Reader, name string) (*guided.Document, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(r io.Reader, name string) (*guided.Document, error)

// Parse calls f.
func (f ParserFunc) Parse(r io.Reader, name string) (*guided.Document, error) {
	return f(r, name)
}

var parsers = map[string]Parser{
	".yml":      ParserFunc(parseGuided),
	".yaml":     ParserFunc(parseGuided),
	".json":     ParserFunc(parseGuided),
	".md":       NewMarkdown(),
	".markdown": NewMarkdown(),
	".xhtml":    NewXHTML(),
	".html":     NewXHTML(),
	".htm":      NewXHTML(),
	".pdf":      NewPDF(),
	".docx":     NewDOCX(),
}

// Extensions lists the supported file extensions.
func Extensions() []string {
	exts := make([]string, 0, len(parsers))
	for ext := range parsers {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Supported reports whether name has a supported extension.
func Supported(name string) bool {
	_, ok := parsers[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ForFile returns the parser for name.
func ForFile(name string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(name))
	p, ok := parsers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	return p, nil
}

// Open reads and converts the file at path.
func Open(path string) (*guided.Document, error) {
	p, err := ForFile(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	doc, err := p.Parse(f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

func parseGuided(r io.Reader, _ string) (*guided.Document, error) {
	return guided.LoadDocument(r)
}

// document wraps converted blocks. Converted documents always reference a
// single resource, the file itself.
func document(name, title, lang, mediaType string, root *block) (*guided.Document, error) {
	objects := root.childObjects()
	if len(objects) == 0 {
		return nil, guided.ErrEmptyDocument
	}
	if title == "" {
		title = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return &guided.Document{
		Title:     title,
		Language:  lang,
		Resources: []guided.Resource{{Href: name, MediaType: mediaType, Title: title}},
		Guided:    objects,
	}, nil
}
