// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

// Package metrics implements turtle.Prober with Prometheus counters/histograms, keeping the
// prometheus/client_golang dependency out of the root package (spec §6 "dtrace-style probe
// emission").
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prober records request counts and latencies per (method, vhost, status) and
// (method, vhost) respectively, satisfying turtle.Prober.
type Prober struct {
	hits      *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// New registers the collectors against reg and returns a Prober.
func New(reg prometheus.Registerer) *Prober {
	p := &Prober{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turtle",
			Name:      "requests_total",
			Help:      "Total requests handled, labeled by method, vhost and status.",
		}, []string{"method", "vhost", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "turtle",
			Name:      "request_duration_seconds",
			Help:      "Request handling latency, labeled by method and vhost.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "vhost"}),
	}
	reg.MustRegister(p.hits, p.durations)
	return p
}

// Hit increments the request counter for (method, vhost, status).
func (p *Prober) Hit(method, vhost string, status int) {
	p.hits.WithLabelValues(method, vhost, strconv.Itoa(status)).Inc()
}

// Duration observes d for (method, vhost).
func (p *Prober) Duration(method, vhost string, d time.Duration) {
	p.durations.WithLabelValues(method, vhost).Observe(d.Seconds())
}
