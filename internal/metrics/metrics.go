// Package metrics counts import outcomes for one batch run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Batch holds the counters of a single import run on a private registry.
type Batch struct {
	FilesTotal     *prometheus.CounterVec
	BonesSkipped   prometheus.Counter
	SamplesTotal   *prometheus.CounterVec
	ClipsWritten   prometheus.Counter
	DecodeDuration prometheus.Histogram
	registry       *prometheus.Registry
}

// NewBatch creates a Batch with all metrics registered.
func NewBatch() *Batch {
	reg := prometheus.NewRegistry()
	b := &Batch{registry: reg}

	b.FilesTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ska_files_total",
			Help: "Input files processed, by loader kind and result",
		},
		[]string{"kind", "result"},
	)
	b.BonesSkipped = promauto.With(reg).NewCounter(
		prometheus.CounterOpts{
			Name: "ska_bones_skipped_total",
			Help: "SKA bones with no matching skeleton bone",
		},
	)
	b.SamplesTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ska_samples_total",
			Help: "Curve samples written, by channel",
		},
		[]string{"channel"},
	)
	b.ClipsWritten = promauto.With(reg).NewCounter(
		prometheus.CounterOpts{
			Name: "ska_clips_written_total",
			Help: "Clips written to the output directory",
		},
	)
	b.DecodeDuration = promauto.With(reg).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ska_file_duration_seconds",
			Help:    "Time spent decoding and retargeting one input file",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
	)
	return b
}

// Registry exposes the underlying prometheus registry.
func (b *Batch) Registry() *prometheus.Registry { return b.registry }

// RecordFile records the outcome of one input file.
func (b *Batch) RecordFile(kind string, ok bool, duration time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	b.FilesTotal.WithLabelValues(kind, result).Inc()
	b.DecodeDuration.Observe(duration.Seconds())
}

// RecordClip records one written clip and its sample counts.
func (b *Batch) RecordClip(rotations, translations, skipped int) {
	b.ClipsWritten.Inc()
	b.SamplesTotal.WithLabelValues("rotation").Add(float64(rotations))
	b.SamplesTotal.WithLabelValues("translation").Add(float64(translations))
	b.BonesSkipped.Add(float64(skipped))
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node exporter textfile collector.
func (b *Batch) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, b.registry)
}
