package readaloud

import (
	"testing"

	"github.com/dgnsrekt/readaloud/guided"
)

// mixedTree interleaves audio, text in several languages, and empty
// containers.
func mixedTree() *guided.Tree {
	return guided.NewTree(guided.Object{Children: []guided.Object{
		{Roles: []guided.Role{guided.RoleHeading}, Children: []guided.Object{
			textNode("Chapter one", "en"),
		}},
		audioNode("c1.mp3#t=0,2", "c1.xhtml#s1"),
		{ImgRef: "c1.png"},
		audioNode("c1.mp3#t=2,4", "c1.xhtml#s2"),
		textNode("Une phrase.", "fr"),
		{Children: []guided.Object{
			textNode("Encore.", "fr"),
			textNode("Back to English.", "en-GB"),
		}},
		textNode("Still English.", ""),
		{AudioRef: "orphan.mp3"},
		audioNode("c2.mp3", "c2.xhtml#s1"),
	}})
}

func TestSegmentHomogeneity(t *testing.T) {
	tree := mixedTree()
	settings := DefaultSettings()
	audio := &fakeAudio{}
	factory := NewSegmentFactory(tree, audio, newFakeSpeech(), nopListener{}, settings)
	nav := NewNavigationHelper(tree, settings)

	covered := 0
	for start, ok := tree.Root(), true; ok; {
		seg, created := factory.CreateSegment(start)
		if !created {
			break
		}
		covered += len(seg.Nodes)

		class := Classify(tree, seg.Nodes[0])
		for _, id := range seg.Nodes {
			if got := Classify(tree, id); got != class {
				t.Errorf("segment at %d mixes %v and %v", seg.Nodes[0], class, got)
			}
			if seg.Kind == TextSegment && nav.TextLanguage(id) != seg.Language {
				t.Errorf("node %d language %v in a %v segment", id, nav.TextLanguage(id), seg.Language)
			}
		}
		for _, id := range seg.EmptyNodes {
			if Classify(tree, id) != ContentEmpty {
				t.Errorf("node %d listed as empty", id)
			}
		}

		boundary, more := seg.Boundary()
		if more {
			sameClass := Classify(tree, boundary) == class
			sameLang := seg.Kind == AudioSegment || nav.TextLanguage(boundary) == seg.Language
			if sameClass && sameLang {
				t.Errorf("segment at %d stops at %d which it could have covered", seg.Nodes[0], boundary)
			}
		}
		start, ok = boundary, more
	}

	contentNodes := 0
	for id := guided.NodeID(0); int(id) < tree.Len(); id++ {
		if Classify(tree, id) != ContentEmpty {
			contentNodes++
		}
	}
	if covered != contentNodes {
		t.Errorf("segments cover %d content nodes, want %d", covered, contentNodes)
	}
}

func TestSegmentBoundarySkipsTrailingEmptyNodes(t *testing.T) {
	tree := mixedTree()
	settings := DefaultSettings()
	factory := NewSegmentFactory(tree, &fakeAudio{}, newFakeSpeech(), nopListener{}, settings)

	// 0 root, 1 heading, 2 "Chapter one", 3 audio, 4 img, 5 audio, 6 fr ...
	seg, ok := factory.CreateSegment(3)
	if !ok {
		t.Fatal("expected an audio segment")
	}
	if seg.Kind != AudioSegment || len(seg.Nodes) != 2 {
		t.Fatalf("segment = %v with %d nodes", seg.Kind, len(seg.Nodes))
	}
	if len(seg.EmptyNodes) != 1 || seg.EmptyNodes[0] != 4 {
		t.Errorf("empty nodes = %v, want [4]", seg.EmptyNodes)
	}
	if b, ok := seg.Boundary(); !ok || b != 6 {
		t.Errorf("boundary = %d/%v, want 6", b, ok)
	}
}

func TestSegmentFactoryWithoutBackend(t *testing.T) {
	tree := mixedTree()
	settings := DefaultSettings()

	factory := NewSegmentFactory(tree, nil, newFakeSpeech(), nopListener{}, settings)
	if _, ok := factory.CreateSegment(3); ok {
		t.Error("audio content without an audio provider should not produce a segment")
	}

	audio := &fakeAudio{fail: true}
	factory = NewSegmentFactory(tree, audio, newFakeSpeech(), nopListener{}, settings)
	if _, ok := factory.CreateSegment(3); ok {
		t.Error("engine creation failure should not produce a segment")
	}
}

func TestSegmentReleaseOnce(t *testing.T) {
	engine := &fakeEngine{}
	seg := &Segment{Engine: engine, boundary: guided.NoNode}

	if !seg.Release() {
		t.Error("first release should report true")
	}
	if seg.Release() {
		t.Error("second release should report false")
	}
	if engine.Released() != 1 || !seg.Released() {
		t.Errorf("engine released %d times", engine.Released())
	}
}

func TestDataLoader(t *testing.T) {
	tree := mixedTree()
	settings := DefaultSettings()
	audio := &fakeAudio{}
	speech := newFakeSpeech()
	observer := &countingObserver{}
	factory := NewSegmentFactory(tree, audio, speech, nopListener{}, settings)
	loader := NewDataLoader(factory, observer)

	first, ok := loader.ItemRef(0)
	if !ok {
		t.Fatal("root should resolve to the first segment")
	}
	if first.HasIndex {
		t.Error("the empty root should have no item index")
	}
	if again, _ := loader.ItemRef(2); again.Segment != first.Segment || again.Index != 0 {
		t.Error("cached lookup should return the same segment")
	}
	if observer.created != 1 {
		t.Errorf("segments created = %d, want 1", observer.created)
	}

	loader.Activate(first.Segment)
	loader.OnPlaybackProgressed(2)
	next, ok := loader.ItemRef(3)
	if !ok || next.Segment == first.Segment {
		t.Fatal("expected the audio segment to be prefetched")
	}
	if observer.created != 2 {
		t.Errorf("segments created = %d, want 2 after prefetch", observer.created)
	}
	if audio.Engines()[0].prepared == 0 {
		t.Error("prefetched engine should be prepared")
	}

	// Moving on releases everything but the active segment and its follower.
	loader.Activate(next.Segment)
	if !first.Segment.Released() {
		t.Error("previous segment should be released")
	}
	if _, ok := loader.ItemRef(3); !ok {
		t.Error("active segment should stay cached")
	}

	loader.Invalidate(settings)
	if loader.Len() != 0 {
		t.Errorf("cache holds %d entries after invalidation", loader.Len())
	}
	if next.Segment.Released() {
		t.Error("the active segment belongs to the caller after invalidation")
	}
}

func TestDataLoaderRemembersMisses(t *testing.T) {
	tree := guided.NewTree(guided.Object{Children: []guided.Object{textNode("Only text.", "")}})
	speech := newFakeSpeech()
	speech.voices = nil
	loader := NewDataLoader(NewSegmentFactory(tree, nil, speech, nopListener{}, DefaultSettings()), nil)

	if _, ok := loader.ItemRef(1); ok {
		t.Fatal("no voice should mean no segment")
	}
	speech.voices = newFakeSpeech().voices
	if _, ok := loader.ItemRef(1); ok {
		t.Error("misses are kept until invalidation")
	}
	loader.Invalidate(DefaultSettings())
	if _, ok := loader.ItemRef(1); !ok {
		t.Error("invalidation should retry the factory")
	}
}
