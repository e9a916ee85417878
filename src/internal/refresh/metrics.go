package refresh

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultSuccess   = "success"
	resultUnchanged = "unchanged"
	resultFailure   = "failure"
)

var (
	refreshCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoip_rsc_refresh_total",
			Help: "Total data refreshes by family and result",
		},
		[]string{"family", "result"},
	)
	refreshDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geoip_rsc_refresh_duration_seconds",
			Help:    "Duration of data refreshes in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"family"},
	)
	lastSuccessGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geoip_rsc_last_success_timestamp_seconds",
			Help: "Unix time of the last successful refresh",
		},
		[]string{"family"},
	)
	countriesGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geoip_rsc_countries",
			Help: "Countries available in the block store",
		},
		[]string{"family"},
	)
	skippedLinesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoip_rsc_skipped_lines_total",
			Help: "Archive lines dropped as invalid or of the wrong family",
		},
		[]string{"family"},
	)
)

func init() {
	prometheus.MustRegister(refreshCounter, refreshDuration, lastSuccessGauge, countriesGauge, skippedLinesCounter)
}
