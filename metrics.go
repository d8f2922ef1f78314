// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package transcriptome

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

type serverMetrics struct {
	requests   *prometheus.CounterVec
	analysis   *prometheus.HistogramVec
	enrichment *prometheus.CounterVec
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	m := &serverMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transcriptome",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of HTTP requests handled, by route and response status.",
		}, []string{"route", "code"}),
		analysis: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "transcriptome",
			Name:      "analysis_duration_seconds",
			Help:      "Time spent computing analysis results, by analysis.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"analysis"}),
		enrichment: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transcriptome",
			Name:      "enrichment_requests_total",
			Help:      "Number of enrichment queries, by outcome (terms, empty, error).",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.requests, m.analysis, m.enrichment)
	return m
}

// instrument counts each request under its chi route pattern, so
// unmatched paths do not create unbounded label values.
func (m *serverMetrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

// time starts a timer for the named analysis. Call the returned func
// when the analysis is done.
func (m *serverMetrics) time(analysis string) func() {
	t0 := time.Now()
	return func() {
		m.analysis.WithLabelValues(analysis).Observe(time.Since(t0).Seconds())
	}
}

func (m *serverMetrics) enrichmentOutcome(recs []EnrichmentRecord, err error) {
	outcome := "terms"
	if err != nil {
		outcome = "error"
	} else if len(recs) == 0 {
		outcome = "empty"
	}
	m.enrichment.WithLabelValues(outcome).Inc()
}
