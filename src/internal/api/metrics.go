package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoip_rsc_http_requests_total",
			Help: "HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geoip_rsc_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	scriptEntries = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geoip_rsc_script_entries",
			Help:    "Address-list entries per rendered script",
			Buckets: prometheus.ExponentialBuckets(16, 4, 8),
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, scriptEntries)
}
