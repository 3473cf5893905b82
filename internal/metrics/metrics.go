package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for conversion runs.
type Metrics struct {
	conversions    *prometheus.CounterVec
	convertSeconds *prometheus.HistogramVec
	runs           *prometheus.CounterVec
	inputsHeld     prometheus.Gauge
}

var (
	defaultOnce   sync.Once
	sharedMetrics *Metrics
)

// Default returns the package-level instance registered with the global
// Prometheus registry. It is created once so repeated pipelines in one
// process do not trip duplicate registration.
func Default() *Metrics {
	defaultOnce.Do(func() {
		sharedMetrics = MustNew(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNew constructs Metrics on reg. Registration errors other than an
// already-registered collector of the same shape panic.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	conversions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgconv",
			Subsystem: "converter",
			Name:      "conversions_total",
			Help:      "Per-file conversions by target format and outcome.",
		},
		[]string{"format", "outcome"},
	)
	convertSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imgconv",
			Subsystem: "converter",
			Name:      "conversion_duration_seconds",
			Help:      "Time spent converting one file.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"format"},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgconv",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Batch runs by final status.",
		},
		[]string{"status"},
	)
	inputsHeld := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "imgconv",
			Subsystem: "pipeline",
			Name:      "inputs_held",
			Help:      "Number of input files currently held by the pipeline.",
		},
	)

	collectors := []prometheus.Collector{conversions, convertSeconds, runs, inputsHeld}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			already, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				panic(err)
			}
			switch collector {
			case conversions:
				conversions = already.ExistingCollector.(*prometheus.CounterVec)
			case convertSeconds:
				convertSeconds = already.ExistingCollector.(*prometheus.HistogramVec)
			case runs:
				runs = already.ExistingCollector.(*prometheus.CounterVec)
			case inputsHeld:
				inputsHeld = already.ExistingCollector.(prometheus.Gauge)
			}
		}
	}

	return &Metrics{
		conversions:    conversions,
		convertSeconds: convertSeconds,
		runs:           runs,
		inputsHeld:     inputsHeld,
	}
}

// ObserveConversion records one per-file conversion.
func (m *Metrics) ObserveConversion(format, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(format, outcome).Inc()
	m.convertSeconds.WithLabelValues(format).Observe(d.Seconds())
}

// IncRun counts a finished run with status "completed", "superseded" or "cancelled".
func (m *Metrics) IncRun(status string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
}

// SetInputsHeld reports the current input collection size.
func (m *Metrics) SetInputsHeld(n int) {
	if m == nil {
		return
	}
	m.inputsHeld.Set(float64(n))
}

// Conversions returns the conversion counter for tests and dumps.
func (m *Metrics) Conversions() *prometheus.CounterVec { return m.conversions }

// Runs returns the run counter.
func (m *Metrics) Runs() *prometheus.CounterVec { return m.runs }

// InputsHeld returns the held-inputs gauge.
func (m *Metrics) InputsHeld() prometheus.Gauge { return m.inputsHeld }
