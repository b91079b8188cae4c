// Copyright (c) 2025 SciGo HDF5 Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package nczarr

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts chunk traffic of one or more Arrays.
// A nil *Metrics records nothing.
type Metrics struct {
	chunkOps         *prometheus.CounterVec
	bytes            *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	transferDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered, which is useful in tests.
//
// Example:
//
//	m := nczarr.NewMetrics(prometheus.DefaultRegisterer)
//	arr, _ := nczarr.NewArray(shape, nczarr.WithMetrics(m))
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// chunkOps counts chunk loads, stores and fill substitutions
		chunkOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nczarr_chunk_operations_total",
			Help: "Chunk operations by type",
		}, []string{"op"}), // "read", "write" or "fill"

		bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nczarr_chunk_bytes_total",
			Help: "Encoded chunk bytes moved to and from the store",
		}, []string{"direction"}),

		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nczarr_chunk_cache_lookups_total",
			Help: "Decoded chunk cache lookups by result",
		}, []string{"result"}),

		transferDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nczarr_transfer_duration_seconds",
			Help:    "Hyperslab transfer duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 0.1ms to ~3s
		}, []string{"op"}),
	}
}

func (m *Metrics) chunkRead(n int) {
	if m == nil {
		return
	}
	m.chunkOps.WithLabelValues("read").Inc()
	m.bytes.WithLabelValues("read").Add(float64(n))
}

func (m *Metrics) chunkWrite(n int) {
	if m == nil {
		return
	}
	m.chunkOps.WithLabelValues("write").Inc()
	m.bytes.WithLabelValues("write").Add(float64(n))
}

func (m *Metrics) chunkFill() {
	if m == nil {
		return
	}
	m.chunkOps.WithLabelValues("fill").Inc()
}

func (m *Metrics) cacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) observeTransfer(op string, start time.Time) {
	if m == nil {
		return
	}
	m.transferDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
