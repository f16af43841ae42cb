// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HWBackendAvailable is 1 per hardware backend found during detection.
	HWBackendAvailable = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "framecore_hw_backend_available",
		Help: "Hardware acceleration backend availability (1 = detected)",
	}, []string{"backend"})

	// CodecProbeDuration tracks how long codec detection took.
	CodecProbeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "framecore_codec_probe_duration_seconds",
		Help:    "Duration of codec capability probing",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
	})

	// DecodeDuration tracks per-frame decode latency by engine.
	DecodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framecore_decode_duration_seconds",
		Help:    "Duration of single-frame decode operations",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	}, []string{"engine"})

	// EncodeDuration tracks encode session durations by engine.
	EncodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framecore_encode_duration_seconds",
		Help:    "Duration of encode sessions",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"engine"})

	// MediaErrors counts decode/encode failures by engine and class.
	MediaErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framecore_media_errors_total",
		Help: "Decode and encode failures",
	}, []string{"engine", "error_type"})
)
