// Package metrics exposes pipeline counters and histograms to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"docvoice/internal/model"
)

// Pipeline holds the conversion and speech metrics.
type Pipeline struct {
	jobs             *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	synthesis        *prometheus.CounterVec
}

// NewPipeline creates the pipeline collectors and registers them with reg.
func NewPipeline(reg prometheus.Registerer) (*Pipeline, error) {
	p := &Pipeline{
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conversion_jobs_total",
				Help: "Conversion jobs that reached a terminal status.",
			},
			[]string{"status"},
		),
		analysisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analysis_duration_seconds",
				Help:    "Latency of analysis provider calls.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
			},
			[]string{"op", "result"},
		),
		synthesis: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "speech_synthesis_total",
				Help: "Speech synthesis attempts by outcome.",
			},
			[]string{"result"},
		),
	}

	for _, c := range []prometheus.Collector{p.jobs, p.analysisDuration, p.synthesis} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveAnalysis records one provider round-trip.
func (p *Pipeline) ObserveAnalysis(op string, d time.Duration, err error) {
	p.analysisDuration.WithLabelValues(op, result(err)).Observe(d.Seconds())
}

// JobFinished counts a job that reached status.
func (p *Pipeline) JobFinished(status model.JobStatus) {
	p.jobs.WithLabelValues(string(status)).Inc()
}

// SynthesisDone counts one synthesis attempt.
func (p *Pipeline) SynthesisDone(err error) {
	p.synthesis.WithLabelValues(result(err)).Inc()
}
