package guided

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmptyDocument is returned when a document has no guided navigation
// objects.
var ErrEmptyDocument = errors.New("guided navigation document is empty")

// Object is the serialized form of a node. Documents are written in YAML or
// JSON using the guided navigation field names.
type Object struct {
	Roles    []Role      `yaml:"role,omitempty" json:"role,omitempty"`
	TextRef  string      `yaml:"textref,omitempty" json:"textref,omitempty"`
	AudioRef string      `yaml:"audioref,omitempty" json:"audioref,omitempty"`
	ImgRef   string      `yaml:"imgref,omitempty" json:"imgref,omitempty"`
	Text     *ObjectText `yaml:"text,omitempty" json:"text,omitempty"`
	Children []Object    `yaml:"children,omitempty" json:"children,omitempty"`
}

// ObjectText is either a bare string or a mapping with plain, ssml and
// language keys.
type ObjectText struct {
	Plain    string `yaml:"plain,omitempty" json:"plain,omitempty"`
	SSML     string `yaml:"ssml,omitempty" json:"ssml,omitempty"`
	Language string `yaml:"language,omitempty" json:"language,omitempty"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (t *ObjectText) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		t.Plain = value.Value
		return nil
	}
	type plain ObjectText
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*t = ObjectText(p)
	return nil
}

func (t *ObjectText) value() *Text {
	if t == nil || (strings.TrimSpace(t.Plain) == "" && t.SSML == "") {
		return nil
	}
	return &Text{Plain: t.Plain, SSML: t.SSML, Language: t.Language}
}

func (o Object) refs() []Ref {
	var refs []Ref
	if o.TextRef != "" {
		refs = append(refs, Ref{Kind: TextRef, URL: o.TextRef})
	}
	if o.AudioRef != "" {
		ref := Ref{Kind: AudioRef, URL: o.AudioRef}
		if frag := ref.Fragment(); frag != "" {
			ref.Interval, _ = ParseTemporalFragment(frag)
		}
		refs = append(refs, ref)
	}
	if o.ImgRef != "" {
		refs = append(refs, Ref{Kind: ImageRef, URL: o.ImgRef})
	}
	return refs
}

// Resource is an entry of the publication reading order.
type Resource struct {
	Href      string `yaml:"href" json:"href"`
	MediaType string `yaml:"type,omitempty" json:"type,omitempty"`
	Title     string `yaml:"title,omitempty" json:"title,omitempty"`
}

// Document is a guided navigation document together with the metadata the
// read aloud navigator needs.
type Document struct {
	Title     string     `yaml:"title,omitempty" json:"title,omitempty"`
	Language  string     `yaml:"language,omitempty" json:"language,omitempty"`
	Resources []Resource `yaml:"resources,omitempty" json:"resources,omitempty"`
	Guided    []Object   `yaml:"guided" json:"guided"`
}

// LoadDocument decodes a YAML or JSON document.
func LoadDocument(r io.Reader) (*Document, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyDocument
		}
		return nil, fmt.Errorf("decode guided navigation document: %w", err)
	}
	if len(doc.Guided) == 0 {
		return nil, ErrEmptyDocument
	}
	return &doc, nil
}

// Tree builds the navigation tree. The document objects become the children
// of a synthetic root.
func (d *Document) Tree() *Tree {
	return NewTree(Object{Children: d.Guided})
}

// MediaType returns the media type of the resource at href, or an empty
// string.
func (d *Document) MediaType(href string) string {
	for _, r := range d.Resources {
		if r.Href == href {
			return r.MediaType
		}
	}
	return ""
}
