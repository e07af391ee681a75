//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package pipe

import "github.com/prometheus/client_golang/prometheus"

type limiterMetrics struct {
	kva              prometheus.GaugeFunc
	bigBuffers       prometheus.GaugeFunc
	allocs           prometheus.Counter
	allocFailures    prometheus.Counter
	promotions       prometheus.Counter
	promotionsDenied prometheus.Counter
}

func newLimiterMetrics(l *Limiter) *limiterMetrics {
	return &limiterMetrics{
		kva: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pipe_kva_bytes",
			Help: "Bytes of pipe buffer storage in use",
		}, func() float64 {
			return float64(l.kva.Load())
		}),
		bigBuffers: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pipe_big_buffers",
			Help: "Number of promoted pipe buffers",
		}, func() float64 {
			return float64(l.big.Load())
		}),
		allocs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipe_buffer_allocations_total",
			Help: "Total number of pipe buffer allocations",
		}),
		allocFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipe_buffer_allocation_failures_total",
			Help: "Total number of failed pipe buffer allocations",
		}),
		promotions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipe_buffer_promotions_total",
			Help: "Total number of buffers promoted to the big size",
		}),
		promotionsDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipe_buffer_promotions_denied_total",
			Help: "Total number of promotions refused or failed",
		}),
	}
}

func (m *limiterMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.kva, m.bigBuffers, m.allocs, m.allocFailures, m.promotions, m.promotionsDenied}
}

// Describe implements prometheus.Collector.
func (l *Limiter) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range l.metrics.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (l *Limiter) Collect(ch chan<- prometheus.Metric) {
	for _, c := range l.metrics.collectors() {
		c.Collect(ch)
	}
}
