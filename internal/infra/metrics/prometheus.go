package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sam2_jobs_processed_total",
		Help: "Total number of segmentation requests, by status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sam2_stage_duration_seconds",
		Help:    "Duration of segmentation pipeline stages",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesSegmentedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sam2_frames_segmented_total",
		Help: "Total number of frames segmented across all requests",
	})

	ChunksDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sam2_chunks_dispatched_total",
		Help: "Total number of chunks dispatched, by dispatch mode",
	}, []string{"mode"})

	ActiveChunkWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sam2_active_chunk_workers",
		Help: "Number of chunk segmentations currently in flight",
	})
)
