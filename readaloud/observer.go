package readaloud

// Observer is notified of navigator activity. It is used to export metrics.
// Methods are called from the navigator goroutine and must not block.
type Observer interface {
	SegmentCreated(kind SegmentKind)
	SegmentReleased(kind SegmentKind)
	CommandHandled(name string)
	ConditionChanged(c Condition)
	StaleEventDropped()
}

type nopObserver struct{}

func (nopObserver) SegmentCreated(SegmentKind)  {}
func (nopObserver) SegmentReleased(SegmentKind) {}
func (nopObserver) CommandHandled(string)       {}
func (nopObserver) ConditionChanged(Condition)  {}
func (nopObserver) StaleEventDropped()          {}
