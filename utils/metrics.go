package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sales_processed_total",
		Help: "Sale transactions by outcome",
	}, []string{"result"})

	SaleLogFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_sale_log_failures_total",
		Help: "Committed sales whose log record could not be written",
	})

	UnitsSoldTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_units_sold_total",
		Help: "Product units decremented by committed sales",
	})

	TableLocksHeld = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pos_table_locks_held",
		Help: "Tables currently locked by a staff member",
	})

	RealtimeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pos_realtime_connections",
		Help: "Open websocket connections",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
