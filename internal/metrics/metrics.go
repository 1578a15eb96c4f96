// Copyright 2026 The Dualview Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics holds every prometheus metric exported by the workstation
// core. To add a new one remember to both declare it below and register it
// in init().
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// QueueDepth reports the current number of pending tasks per named
	// TaskQueue (download, hash).
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dualview_queue_depth",
			Help: "Current number of pending tasks in a queue",
		},
		[]string{"queue"},
	)

	// CacheHits / CacheMisses count ImageCache.LoadFull and LoadThumb
	// resolutions that did or did not reuse an already-loaded entry.
	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dualview_image_cache_hits",
			Help: "Total number of image cache hits",
		},
	)
	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dualview_image_cache_misses",
			Help: "Total number of image cache misses",
		},
	)
	CacheEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dualview_image_cache_evictions",
			Help: "Total number of entries dropped by the eviction thread",
		},
	)
	CacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dualview_image_cache_size",
			Help: "Current number of entries held in the image cache",
		},
	)

	// ThumbnailLatency times the full decode+resize+encode path for a
	// thumbnail generation (cache hits on disk are not measured).
	ThumbnailLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dualview_thumbnail_latency_seconds",
			Help:    "Time spent generating a thumbnail from source",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)
	ThumbnailFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dualview_thumbnail_failures",
			Help: "Total number of thumbnail generation failures",
		},
	)

	// DownloadSuccesses / DownloadFailures / DownloadLatency track the
	// NetGallery/NetFile downloader worker.
	DownloadSuccesses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dualview_download_successes",
			Help: "Total number of successful file downloads",
		},
	)
	DownloadFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dualview_download_failures",
			Help: "Total number of failed file downloads",
		},
	)
	DownloadLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dualview_download_latency_seconds",
			Help:    "Time spent downloading a single net file",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	// HashSuccesses / HashDuplicates / HashFailures / HashLatency track the
	// hash-calculation worker: a completed import either inserts a new row
	// or binds to a pre-existing one sharing the same content hash.
	HashSuccesses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dualview_hash_successes",
			Help: "Total number of imports that inserted a new image row",
		},
	)
	HashDuplicates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dualview_hash_duplicates",
			Help: "Total number of imports that resolved to a pre-existing image row",
		},
	)
	HashFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dualview_hash_failures",
			Help: "Total number of imports that failed to hash or decode",
		},
	)
	HashLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dualview_hash_latency_seconds",
			Help:    "Time spent hashing and measuring a single imported file",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// ActionsUndone / ActionsRedone / ActionsPurged track the ActionJournal.
	ActionsUndone = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dualview_actions_undone",
			Help: "Total number of actions undone",
		},
	)
	ActionsRedone = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dualview_actions_redone",
			Help: "Total number of actions redone",
		},
	)
	ActionsPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dualview_actions_purged",
			Help: "Total number of actions purged from history",
		},
	)
)

func init() {
	prometheus.MustRegister(
		QueueDepth,
		CacheHits,
		CacheMisses,
		CacheEvictions,
		CacheSize,
		ThumbnailLatency,
		ThumbnailFailures,
		DownloadSuccesses,
		DownloadFailures,
		DownloadLatency,
		HashSuccesses,
		HashDuplicates,
		HashFailures,
		HashLatency,
		ActionsUndone,
		ActionsRedone,
		ActionsPurged,
	)
}
