package readaloud

import (
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/guided"
)

// ItemRef locates a node inside a segment. Empty nodes have no index.
type ItemRef struct {
	Segment  *Segment
	Index    int
	HasIndex bool
}

// DataLoader caches which segment covers each node and prefetches the
// segment after the one being played. It is owned by the navigator
// goroutine and is not safe for concurrent use.
type DataLoader struct {
	factory *SegmentFactory
	items   map[guided.NodeID]ItemRef

	// misses remembers start nodes the factory failed on until the next
	// invalidation.
	misses map[guided.NodeID]bool

	active   *Segment
	observer Observer
}

// NewDataLoader returns an empty loader.
func NewDataLoader(factory *SegmentFactory, observer Observer) *DataLoader {
	if observer == nil {
		observer = nopObserver{}
	}
	return &DataLoader{
		factory:  factory,
		items:    make(map[guided.NodeID]ItemRef),
		misses:   make(map[guided.NodeID]bool),
		observer: observer,
	}
}

// ItemRef returns the segment covering id, creating it when needed.
func (l *DataLoader) ItemRef(id guided.NodeID) (ItemRef, bool) {
	if ref, ok := l.items[id]; ok {
		return ref, true
	}
	if l.misses[id] {
		return ItemRef{}, false
	}

	seg, ok := l.factory.CreateSegment(id)
	if !ok {
		l.misses[id] = true
		return ItemRef{}, false
	}
	l.observer.SegmentCreated(seg.Kind)
	l.register(seg)

	ref, ok := l.items[id]
	return ref, ok
}

func (l *DataLoader) register(seg *Segment) {
	displaced := make(map[*Segment]bool)
	put := func(id guided.NodeID, ref ItemRef) {
		if old, ok := l.items[id]; ok && old.Segment != seg {
			displaced[old.Segment] = true
		}
		l.items[id] = ref
	}
	for i, id := range seg.Nodes {
		put(id, ItemRef{Segment: seg, Index: i, HasIndex: true})
	}
	for _, id := range seg.EmptyNodes {
		put(id, ItemRef{Segment: seg})
	}

	// A segment that lost every entry can never be looked up again.
	for old := range displaced {
		if old != l.active && !l.referenced(old) {
			l.release(old)
		}
	}
}

func (l *DataLoader) referenced(seg *Segment) bool {
	for _, ref := range l.items {
		if ref.Segment == seg {
			return true
		}
	}
	return false
}

// OnPlaybackProgressed prefetches the segment following the one covering
// id, so crossing the boundary does not wait for engine creation.
func (l *DataLoader) OnPlaybackProgressed(id guided.NodeID) {
	ref, ok := l.items[id]
	if !ok {
		return
	}
	next, ok := ref.Segment.Boundary()
	if !ok {
		return
	}
	if _, cached := l.items[next]; cached || l.misses[next] {
		return
	}
	nextRef, ok := l.ItemRef(next)
	if !ok {
		log.Debug("Nothing to prefetch after segment", "boundary", next)
		return
	}
	prepare(nextRef.Segment.Engine, l.factory.settings)
}

// prepare applies the prosody of settings before the engine starts loading,
// so that playing it later does not render its first item again.
func prepare(e Engine, settings Settings) {
	e.SetPitch(settings.Pitch)
	e.SetSpeed(settings.Speed)
	e.Prepare()
}

// Activate marks seg as the segment being played and releases cached
// segments other than seg and the one right after it.
func (l *DataLoader) Activate(seg *Segment) {
	l.active = seg

	var keep *Segment
	if next, ok := seg.Boundary(); ok {
		if ref, ok := l.items[next]; ok {
			keep = ref.Segment
		}
	}

	stale := make(map[*Segment]bool)
	for _, ref := range l.items {
		if ref.Segment != seg && ref.Segment != keep {
			stale[ref.Segment] = true
		}
	}
	for s := range stale {
		l.release(s)
	}
}

// Release tears seg down and forgets every node it covered.
func (l *DataLoader) Release(seg *Segment) {
	if seg == l.active {
		l.active = nil
	}
	l.release(seg)
}

func (l *DataLoader) release(seg *Segment) {
	for id, ref := range l.items {
		if ref.Segment == seg {
			delete(l.items, id)
		}
	}
	if seg.Release() {
		l.observer.SegmentReleased(seg.Kind)
	}
}

// Invalidate switches to new settings and drops the whole cache. Every
// cached segment except the active one is released; the caller owns the
// active segment and must release it itself.
func (l *DataLoader) Invalidate(settings Settings) {
	l.factory.SetSettings(settings)

	segments := make(map[*Segment]bool)
	for _, ref := range l.items {
		segments[ref.Segment] = true
	}
	for seg := range segments {
		if seg != l.active {
			if seg.Release() {
				l.observer.SegmentReleased(seg.Kind)
			}
		}
	}
	l.items = make(map[guided.NodeID]ItemRef)
	l.misses = make(map[guided.NodeID]bool)
}

// Close releases every segment, the active one included.
func (l *DataLoader) Close() {
	if l.active != nil {
		l.Release(l.active)
	}
	l.Invalidate(l.factory.settings)
}

// Len returns the number of cached node entries.
func (l *DataLoader) Len() int {
	return len(l.items)
}
