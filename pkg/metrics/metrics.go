package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Fleet metrics
	RobotsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chargepal_robots_total",
			Help: "Total number of robots by availability",
		},
		[]string{"status"},
	)

	CartsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chargepal_carts_total",
			Help: "Total number of battery carts by availability",
		},
		[]string{"status"},
	)

	StationsReserved = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chargepal_stations_reserved",
			Help: "Number of stations currently holding a reservation",
		},
	)

	JobsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chargepal_jobs_total",
			Help: "Total number of jobs by state",
		},
		[]string{"state"},
	)

	BookingsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chargepal_bookings_total",
			Help: "Total number of bookings by status",
		},
		[]string{"status"},
	)

	// Planner metrics
	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chargepal_tick_duration_seconds",
			Help:    "Duration of a full planner tick in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chargepal_ticks_total",
			Help: "Total number of planner ticks executed",
		},
	)

	JobsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chargepal_jobs_created_total",
			Help: "Total number of jobs created by type",
		},
		[]string{"type"},
	)

	JobsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chargepal_jobs_completed_total",
			Help: "Total number of jobs completed by type",
		},
		[]string{"type"},
	)

	JobsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chargepal_jobs_failed_total",
			Help: "Total number of jobs failed by type",
		},
		[]string{"type"},
	)

	JobsCanceled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chargepal_jobs_canceled_total",
			Help: "Total number of jobs canceled by type",
		},
		[]string{"type"},
	)

	// RPC metrics
	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chargepal_rpc_requests_total",
			Help: "Total number of RPC requests by method and status",
		},
		[]string{"method", "status"},
	)

	RPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chargepal_rpc_request_duration_seconds",
			Help:    "RPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Battery metrics
	BatteryCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chargepal_battery_commands_total",
			Help: "Total number of charger commands dispatched by command",
		},
		[]string{"command"},
	)

	// LiveStore metrics
	LiveStoreErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chargepal_livestore_errors_total",
			Help: "Total number of failed LiveStore queries",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(RobotsTotal)
	prometheus.MustRegister(CartsTotal)
	prometheus.MustRegister(StationsReserved)
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(BookingsTotal)
	prometheus.MustRegister(TickDuration)
	prometheus.MustRegister(TicksTotal)
	prometheus.MustRegister(JobsCreated)
	prometheus.MustRegister(JobsCompleted)
	prometheus.MustRegister(JobsFailed)
	prometheus.MustRegister(JobsCanceled)
	prometheus.MustRegister(RPCRequestsTotal)
	prometheus.MustRegister(RPCRequestDuration)
	prometheus.MustRegister(BatteryCommandsTotal)
	prometheus.MustRegister(LiveStoreErrorsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
