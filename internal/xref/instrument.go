package xref

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mesdx/xref/internal/symbols"
)

// PhaseTiming is the wall time of one pipeline step.
type PhaseTiming struct {
	Phase    Phase         `json:"phase" yaml:"phase"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Instrumentation holds the metrics of a single scan. Each scan gets its own
// registry, so concurrent scans never share counters.
type Instrumentation struct {
	registry *prometheus.Registry

	phaseSeconds *prometheus.HistogramVec
	references   *prometheus.CounterVec
	diagnostics  *prometheus.CounterVec
	files        *prometheus.CounterVec

	mu      sync.Mutex
	timings []PhaseTiming
}

func NewInstrumentation() *Instrumentation {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Instrumentation{
		registry: reg,
		phaseSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "xref_phase_seconds",
			Help:    "Time spent in each scan phase.",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase"}),
		references: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xref_references_total",
			Help: "References recorded, by phase and context.",
		}, []string{"phase", "context"}),
		diagnostics: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xref_diagnostics_total",
			Help: "Diagnostics recorded, by phase.",
		}, []string{"phase"}),
		files: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xref_files_total",
			Help: "Files seen by the catalog phase, by status.",
		}, []string{"status"}),
	}
}

// Registry exposes the scan's private registry.
func (in *Instrumentation) Registry() *prometheus.Registry {
	return in.registry
}

// Phase starts timing p; the returned func stops it.
func (in *Instrumentation) Phase(p Phase) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		in.phaseSeconds.WithLabelValues(string(p)).Observe(d.Seconds())
		in.mu.Lock()
		in.timings = append(in.timings, PhaseTiming{Phase: p, Duration: d})
		in.mu.Unlock()
	}
}

// Timings returns the recorded phase timings in completion order.
func (in *Instrumentation) Timings() []PhaseTiming {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]PhaseTiming(nil), in.timings...)
}

// WriteTextfile writes the registry in the text exposition format.
func (in *Instrumentation) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, in.registry)
}

func (in *Instrumentation) reference(p Phase, ctx symbols.Context) {
	in.references.WithLabelValues(string(p), ctx.String()).Inc()
}

func (in *Instrumentation) diagnostic(p Phase) {
	in.diagnostics.WithLabelValues(string(p)).Inc()
}

func (in *Instrumentation) addFiles(status string, n int) {
	in.files.WithLabelValues(status).Add(float64(n))
}
