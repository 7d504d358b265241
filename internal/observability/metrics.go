package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/evrstamp/internal/pipeline"
	"github.com/danmuck/evrstamp/internal/triple"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evrstamp",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"pipeline", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "evrstamp",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"pipeline", "method", "path", "status"},
	)
	fieldEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evrstamp",
			Name:      "field_events_total",
			Help:      "Per-field extraction health events.",
		},
		[]string{"pipeline", "field", "event"},
	)
	tripleUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evrstamp",
			Subsystem: "triple",
			Name:      "updates_total",
			Help:      "Published timestamp triples.",
		},
		[]string{"pipeline"},
	)
	triplePulseID = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "evrstamp",
			Subsystem: "triple",
			Name:      "pulse_id",
			Help:      "Pulse id of the last published triple.",
		},
		[]string{"pipeline"},
	)
	registerAccesses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evrstamp",
			Subsystem: "regfile",
			Name:      "accesses_total",
			Help:      "Register API accesses by slot, operation, and result.",
		},
		[]string{"pipeline", "slot", "op", "result"},
	)
	freezeCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "evrstamp",
			Subsystem: "regfile",
			Name:      "freeze_count",
			Help:      "Signed freeze counter; negative while frozen.",
		},
		[]string{"pipeline"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, registerAccesses, fieldEvents, tripleUpdates, triplePulseID, freezeCount)
	})
}

func RecordHTTPRequest(name, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(name, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(name, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordRegisterAccess(name, slot, op string, ok bool) {
	RegisterMetrics()
	result := "ok"
	if !ok {
		result = "error"
	}
	registerAccesses.WithLabelValues(name, slot, op, result).Inc()
}

// PipelineObserver exports pipeline events as prometheus series. Counters
// are resolved once so the consumer tick path does no label lookups.
type PipelineObserver struct {
	events  [triple.NumFields][pipeline.NumEventKinds]prometheus.Counter
	updates prometheus.Counter
	pulseID prometheus.Gauge
	freeze  prometheus.Gauge
}

func NewPipelineObserver(name string) *PipelineObserver {
	RegisterMetrics()
	o := &PipelineObserver{
		updates: tripleUpdates.WithLabelValues(name),
		pulseID: triplePulseID.WithLabelValues(name),
		freeze:  freezeCount.WithLabelValues(name),
	}
	for f := triple.Field(0); f < triple.NumFields; f++ {
		for k := pipeline.EventKind(0); k < pipeline.NumEventKinds; k++ {
			o.events[f][k] = fieldEvents.WithLabelValues(name, f.String(), k.String())
		}
	}
	return o
}

func (o *PipelineObserver) FieldEvent(field triple.Field, kind pipeline.EventKind) {
	if field < 0 || field >= triple.NumFields || kind < 0 || kind >= pipeline.NumEventKinds {
		return
	}
	o.events[field][kind].Inc()
}

func (o *PipelineObserver) TripleUpdated(v triple.Values) {
	o.updates.Inc()
	o.pulseID.Set(float64(v.PulseID))
}

func (o *PipelineObserver) FreezeChanged(count int8) {
	o.freeze.Set(float64(count))
}
