// Package telemetry exposes the service's Prometheus metrics.
package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AssessmentsTotal counts finished triage assessments by final level
	// and classification source.
	AssessmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_assessments_total",
			Help: "Total number of completed urgency assessments",
		},
		[]string{"level", "source"}, // source: llm, heuristic, default
	)

	// LLMFallbacksTotal counts degradations from the LLM path to the
	// deterministic heuristic.
	LLMFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_llm_fallbacks_total",
			Help: "Total number of LLM failures recovered by the heuristic path",
		},
		[]string{"stage"}, // stage: classify, task_progress
	)

	// VerificationEscalationsTotal counts safety-rule escalations.
	VerificationEscalationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_verification_escalations_total",
			Help: "Total number of assessments escalated by the rule verification layer",
		},
	)

	// AssessmentDuration tracks end-to-end pipeline latency.
	AssessmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "triage_assessment_duration_seconds",
			Help:    "End-to-end urgency assessment duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	// HTTPRequestDuration tracks request latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)
)

// ObserveAssessment records one finished assessment.
func ObserveAssessment(level, source string, duration time.Duration) {
	AssessmentsTotal.WithLabelValues(level, source).Inc()
	AssessmentDuration.Observe(duration.Seconds())
}

// Middleware records request duration for every route.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if httpErr, ok := err.(*echo.HTTPError); ok {
					status = httpErr.Code
				}
			}
			HTTPRequestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
				strconv.Itoa(status),
			).Observe(time.Since(start).Seconds())

			return err
		}
	}
}
