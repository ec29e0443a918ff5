package readaloud

import (
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/guided"
	"golang.org/x/text/language"
)

// SegmentKind tells which backend plays a segment.
type SegmentKind int

const (
	AudioSegment SegmentKind = iota
	TextSegment
)

func (k SegmentKind) String() string {
	if k == AudioSegment {
		return "audio"
	}
	return "text"
}

// Segment is a maximal run of adjacent nodes played by one engine.
type Segment struct {
	Kind SegmentKind

	// Nodes are the content nodes; item i of the engine plays Nodes[i].
	Nodes []guided.NodeID

	// EmptyNodes were crossed while building the run. They resolve to this
	// segment but have no item index.
	EmptyNodes []guided.NodeID

	// TextRefs holds, for each item, the text reference used for
	// highlighting. Empty strings mean no reference.
	TextRefs []string

	// Language and Voice are set for text segments.
	Language language.Tag
	Voice    Voice

	Engine Engine

	boundary guided.NodeID
	released bool
}

// Boundary returns the first node after the run, or false at the end of
// the tree.
func (s *Segment) Boundary() (guided.NodeID, bool) {
	return s.boundary, s.boundary != guided.NoNode
}

// IndexOf returns the item index of a content node of the segment.
func (s *Segment) IndexOf(id guided.NodeID) (int, bool) {
	for i, n := range s.Nodes {
		if n == id {
			return i, true
		}
	}
	return 0, false
}

// Released reports whether the engine has been torn down.
func (s *Segment) Released() bool {
	return s.released
}

// Release tears the engine down. It returns false when the segment was
// already released.
func (s *Segment) Release() bool {
	if s.released {
		return false
	}
	s.released = true
	s.Engine.Release()
	return true
}

// SegmentFactory groups nodes into segments and creates their engines.
type SegmentFactory struct {
	tree     *guided.Tree
	nav      *NavigationHelper
	audio    AudioEngineProvider
	speech   SpeechEngineProvider
	listener Listener
	settings Settings
}

// NewSegmentFactory returns a factory. Either provider may be nil, in which
// case the matching content is treated as unplayable.
func NewSegmentFactory(
	tree *guided.Tree,
	audio AudioEngineProvider,
	speech SpeechEngineProvider,
	listener Listener,
	settings Settings,
) *SegmentFactory {
	return &SegmentFactory{
		tree:     tree,
		nav:      NewNavigationHelper(tree, settings),
		audio:    audio,
		speech:   speech,
		listener: listener,
		settings: settings,
	}
}

// SetSettings changes the settings used for the next segments.
func (f *SegmentFactory) SetSettings(s Settings) {
	f.settings = s
	f.nav.SetSettings(s)
}

// CreateSegment builds the segment starting at start, trying audio content
// first and text second. It returns false when no content follows start or
// when the engine could not be created.
func (f *SegmentFactory) CreateSegment(start guided.NodeID) (*Segment, bool) {
	if seg, ok := f.createAudioSegment(start); ok {
		return seg, true
	}
	return f.createTextSegment(start)
}

type run struct {
	nodes    []guided.NodeID
	empty    []guided.NodeID
	boundary guided.NodeID
}

// collect walks forward from start while accept returns true for content
// nodes. Empty nodes never stop the walk.
func (f *SegmentFactory) collect(start guided.NodeID, accept func(guided.NodeID, ContentClass) bool) run {
	r := run{boundary: guided.NoNode}
	for cur, ok := start, true; ok; cur, ok = f.tree.Next(cur) {
		class := Classify(f.tree, cur)
		if class == ContentEmpty {
			r.empty = append(r.empty, cur)
			continue
		}
		if !accept(cur, class) {
			r.boundary = cur
			break
		}
		r.nodes = append(r.nodes, cur)
	}
	return r
}

func (f *SegmentFactory) createAudioSegment(start guided.NodeID) (*Segment, bool) {
	r := f.collect(start, func(_ guided.NodeID, class ContentClass) bool {
		return class == ContentAudio
	})
	if len(r.nodes) == 0 || f.audio == nil {
		return nil, false
	}

	clips := make([]Clip, len(r.nodes))
	textRefs := make([]string, len(r.nodes))
	for i, id := range r.nodes {
		audio, _ := f.tree.Ref(id, guided.AudioRef)
		text, _ := f.tree.Ref(id, guided.TextRef)
		clips[i] = Clip{URL: audio.Href(), Interval: audio.Interval}
		textRefs[i] = text.URL
	}

	engine, err := f.audio.CreateAudioEngine(clips, f.listener)
	if err != nil {
		log.Warn("Could not create audio engine", "start", start, "clips", len(clips), "err", err)
		return nil, false
	}

	log.Debug("Audio segment created", "start", r.nodes[0], "items", len(r.nodes), "empty", len(r.empty))
	return &Segment{
		Kind:       AudioSegment,
		Nodes:      r.nodes,
		EmptyNodes: r.empty,
		TextRefs:   textRefs,
		Engine:     engine,
		boundary:   r.boundary,
	}, true
}

func (f *SegmentFactory) createTextSegment(start guided.NodeID) (*Segment, bool) {
	var (
		lang    language.Tag
		started bool
	)
	r := f.collect(start, func(id guided.NodeID, class ContentClass) bool {
		if class != ContentText {
			return false
		}
		nodeLang := f.nav.TextLanguage(id)
		if !started {
			lang, started = nodeLang, true
			return true
		}
		return nodeLang == lang
	})
	if len(r.nodes) == 0 || f.speech == nil {
		return nil, false
	}

	voice, ok := ResolveVoice(lang, f.settings.Voices, f.speech.Voices())
	if !ok {
		log.Warn("No voice for text segment", "start", start, "language", lang)
		return nil, false
	}

	utterances := make([]Utterance, len(r.nodes))
	textRefs := make([]string, len(r.nodes))
	for i, id := range r.nodes {
		text, _ := f.tree.Text(id)
		utterances[i] = Utterance{Text: text.Plain, SSML: text.SSML, Language: lang}
		if ref, ok := f.tree.Ref(id, guided.TextRef); ok {
			textRefs[i] = ref.URL
		}
	}

	engine, err := f.speech.CreateSpeechEngine(voice, utterances, f.listener)
	if err != nil {
		log.Warn("Could not create speech engine", "start", start, "voice", voice.ID, "err", err)
		return nil, false
	}

	log.Debug("Text segment created", "start", r.nodes[0], "items", len(r.nodes), "language", lang, "voice", voice.ID)
	return &Segment{
		Kind:       TextSegment,
		Nodes:      r.nodes,
		EmptyNodes: r.empty,
		TextRefs:   textRefs,
		Language:   lang,
		Voice:      voice,
		Engine:     engine,
		boundary:   r.boundary,
	}, true
}
