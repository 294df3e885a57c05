// Package prometheuscollector exposes the upload handler's metrics in the
// Prometheus exposition format:
//
//	handler, err := handler.NewHandler(…)
//	collector := prometheuscollector.New(handler.Metrics)
//	prometheus.MustRegister(collector)
package prometheuscollector

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/resumed/resumed/pkg/handler"
)

var (
	requestsTotalDesc = prometheus.NewDesc(
		"resumed_requests_total",
		"Total number of requests served per method.",
		[]string{"method"}, nil)
	errorsTotalDesc = prometheus.NewDesc(
		"resumed_errors_total",
		"Total number of returned errors per status and error code.",
		[]string{"status", "code"}, nil)
	bytesReceivedDesc = prometheus.NewDesc(
		"resumed_bytes_received",
		"Number of bytes received for uploads.",
		nil, nil)
	uploadsCreatedDesc = prometheus.NewDesc(
		"resumed_uploads_created",
		"Number of created uploads.",
		nil, nil)
	uploadsFinishedDesc = prometheus.NewDesc(
		"resumed_uploads_finished",
		"Number of finished uploads.",
		nil, nil)
	uploadsTerminatedDesc = prometheus.NewDesc(
		"resumed_uploads_terminated",
		"Number of terminated uploads.",
		nil, nil)
)

// Collector reads from the handler's Metrics struct on every scrape.
type Collector struct {
	metrics handler.Metrics
}

// New creates a new collector which reads from the provided Metrics struct.
func New(metrics handler.Metrics) Collector {
	return Collector{
		metrics: metrics,
	}
}

func (Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- requestsTotalDesc
	descs <- errorsTotalDesc
	descs <- bytesReceivedDesc
	descs <- uploadsCreatedDesc
	descs <- uploadsFinishedDesc
	descs <- uploadsTerminatedDesc
}

func (c Collector) Collect(metrics chan<- prometheus.Metric) {
	for method, counter := range c.metrics.RequestsTotal {
		metrics <- prometheus.MustNewConstMetric(
			requestsTotalDesc,
			prometheus.CounterValue,
			float64(counter.Load()),
			method,
		)
	}

	for identity, counter := range c.metrics.ErrorsTotal.Load() {
		metrics <- prometheus.MustNewConstMetric(
			errorsTotalDesc,
			prometheus.CounterValue,
			float64(counter.Load()),
			strconv.Itoa(identity.StatusCode),
			identity.ErrorCode,
		)
	}

	metrics <- prometheus.MustNewConstMetric(
		bytesReceivedDesc,
		prometheus.CounterValue,
		float64(c.metrics.BytesReceived.Load()),
	)

	metrics <- prometheus.MustNewConstMetric(
		uploadsCreatedDesc,
		prometheus.CounterValue,
		float64(c.metrics.UploadsCreated.Load()),
	)

	metrics <- prometheus.MustNewConstMetric(
		uploadsFinishedDesc,
		prometheus.CounterValue,
		float64(c.metrics.UploadsFinished.Load()),
	)

	metrics <- prometheus.MustNewConstMetric(
		uploadsTerminatedDesc,
		prometheus.CounterValue,
		float64(c.metrics.UploadsTerminated.Load()),
	)
}
