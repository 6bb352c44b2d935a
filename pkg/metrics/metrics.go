// Package metrics exposes activity of the console as prometheus collectors.
package metrics

import (
	"time"

	"github.com/poec-forensics/console/pkg/liveness"
	"github.com/poec-forensics/console/pkg/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "poec"

type Metrics struct {
	// Probes counts liveness probes. Labels: result (ok, ng)
	Probes *prometheus.CounterVec

	// ProbeSeconds measures duration of liveness probes.
	ProbeSeconds prometheus.Histogram

	// StageSeconds measures duration of pipeline stages.
	// Labels: stage, result (ok, ng)
	StageSeconds *prometheus.HistogramVec

	// Anchors counts anchoring. Labels: result (anchored, already_anchored, failed)
	Anchors *prometheus.CounterVec

	// Liveness is the last known liveness state: 0 checking, 1 online, 2 offline.
	Liveness prometheus.Gauge
}

// New creates collectors and registers them to reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Probes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "liveness",
				Name:      "probes_total",
				Help:      "Liveness probes to the analysis service, by result.",
			},
			[]string{"result"},
		),
		ProbeSeconds: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "liveness",
				Name:      "probe_duration_seconds",
				Help:      "Duration of liveness probes.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		StageSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages, by stage and result.",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage", "result"},
		),
		Anchors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "proof",
				Name:      "anchors_total",
				Help:      "Anchoring of hash triplets, by result.",
			},
			[]string{"result"},
		),
		Liveness: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "liveness",
				Name:      "state",
				Help:      "Liveness of the analysis service. 0: checking, 1: online, 2: offline.",
			},
		),
	}
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "ng"
}

// ObserveProbe is a liveness.ProbeObserver.
func (m *Metrics) ObserveProbe(ok bool, elapsed time.Duration) {
	m.Probes.WithLabelValues(result(ok)).Inc()
	m.ProbeSeconds.Observe(elapsed.Seconds())
}

// ObserveStage is a pipeline.StageObserver.
func (m *Metrics) ObserveStage(stage pipeline.Stage, elapsed time.Duration, err error) {
	m.StageSeconds.WithLabelValues(stage.String(), result(err == nil)).Observe(elapsed.Seconds())
}

// ObserveAnchor counts a result of anchoring. Pass it to proof.WithObserver.
func (m *Metrics) ObserveAnchor(result string) {
	m.Anchors.WithLabelValues(result).Inc()
}

// SetLiveness records the liveness state.
func (m *Metrics) SetLiveness(s liveness.State) {
	m.Liveness.Set(float64(s))
}

var (
	_ liveness.ProbeObserver = (*Metrics)(nil).ObserveProbe
	_ pipeline.StageObserver = (*Metrics)(nil).ObserveStage
)
