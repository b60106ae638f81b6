package metrics

// HubObserver receives fanout lifecycle signals from the hub.
type HubObserver interface {
	IncOnline()
	DecOnline()
	RecordPush()
	RecordDrop()
}

// CacheObserver counts cache outcomes per entry shape.
type CacheObserver interface {
	RecordHit(shape string)
	RecordMiss(shape string)
}

// NoopObserver satisfies both observer interfaces; used in tests.
type NoopObserver struct{}

func (NoopObserver) IncOnline()        {}
func (NoopObserver) DecOnline()        {}
func (NoopObserver) RecordPush()       {}
func (NoopObserver) RecordDrop()       {}
func (NoopObserver) RecordHit(string)  {}
func (NoopObserver) RecordMiss(string) {}
