package metrics

import (
	"testing"
)

func TestPrometheusObserver(t *testing.T) {
	obs := NewPrometheusObserver()

	obs.IncOnline()
	obs.DecOnline()
	obs.RecordPush()
	obs.RecordDrop()
	obs.RecordHit("flag")
	obs.RecordMiss("flag")
}
