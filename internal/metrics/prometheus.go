package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	onlineGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flagpole_online_connections",
		Help: "Number of live push-channel connections",
	})
	pushCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flagpole_push_total",
		Help: "Total number of events delivered to connections",
	})
	dropCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flagpole_push_dropped_total",
		Help: "Events dropped because a connection's send buffer was full",
	})
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flagpole_cache_hits_total",
		Help: "Cache hits per entry shape",
	}, []string{"shape"})
	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flagpole_cache_misses_total",
		Help: "Cache misses per entry shape",
	}, []string{"shape"})
)

type prometheusObserver struct{}

// NewPrometheusObserver returns the process-wide observer backing both the
// hub and cache metrics.
func NewPrometheusObserver() *prometheusObserver {
	return &prometheusObserver{}
}

func (prometheusObserver) IncOnline()  { onlineGauge.Inc() }
func (prometheusObserver) DecOnline()  { onlineGauge.Dec() }
func (prometheusObserver) RecordPush() { pushCounter.Inc() }
func (prometheusObserver) RecordDrop() { dropCounter.Inc() }

func (prometheusObserver) RecordHit(shape string) {
	cacheHits.WithLabelValues(shape).Inc()
}

func (prometheusObserver) RecordMiss(shape string) {
	cacheMisses.WithLabelValues(shape).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
