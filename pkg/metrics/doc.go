/*
Package metrics provides Prometheus metrics collection and exposition for ChargePal.

The metrics package defines and registers all controller metrics using the
Prometheus client library, providing observability into fleet state, planner
throughput, RPC latency, and charger activity. Metrics are exposed via HTTP
endpoint for scraping by Prometheus servers, alongside the health and
readiness endpoints of the HTTP listener.

# Architecture

All metrics live in the global default registry and are registered once at
package init:

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐           │
	│  │          Prometheus Registry                │           │
	│  │  - Global DefaultRegistry                   │           │
	│  │  - MustRegister at package init             │           │
	│  │  - Automatic Go runtime metrics             │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │           Metric Categories                 │           │
	│  │                                              │           │
	│  │  Fleet: robots, carts, stations             │           │
	│  │  Planner: tick duration, job lifecycle      │           │
	│  │  RPC: request count, duration               │           │
	│  │  Battery: charger commands                  │           │
	│  │  LiveStore: query failures                  │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │          HTTP Exposition                    │           │
	│  │  - Handler() wraps promhttp                 │           │
	│  │  - served as /metrics next to /healthz      │           │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────────┘

Two write paths feed the registry. The planner, RPC server, battery
commander and LiveStore update counters and histograms inline as work
happens. The planner additionally refreshes the fleet gauges (robots,
carts, stations, jobs, bookings) from committed state after every tick.

# Metrics Catalog

Fleet gauges (refreshed by the planner after each tick):

	chargepal_robots_total{status}      robots by availability (available/busy)
	chargepal_carts_total{status}       carts by availability (available/busy)
	chargepal_stations_reserved         stations currently holding a reservation
	chargepal_jobs_total{state}         jobs by state (OPEN/PENDING/ONGOING/...)
	chargepal_bookings_total{status}    bookings by session status

Planner metrics (updated inline by the tick loop):

	chargepal_ticks_total               planner ticks executed
	chargepal_tick_duration_seconds     histogram of full tick durations
	chargepal_jobs_created_total{type}  jobs created by type
	chargepal_jobs_completed_total{type}
	chargepal_jobs_failed_total{type}
	chargepal_jobs_canceled_total{type}

RPC metrics (updated inline by the endpoint dispatcher):

	chargepal_rpc_requests_total{method,status}   requests by method and success/error
	chargepal_rpc_request_duration_seconds{method}

Battery metrics:

	chargepal_battery_commands_total{command}     charger commands dispatched

LiveStore metrics:

	chargepal_livestore_errors_total              failed LiveStore queries

# Usage

Expose the exposition endpoint on an HTTP listener:

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

Update metrics inline where the work happens:

	metrics.JobsCreated.WithLabelValues(string(job.Type)).Inc()

	timer := prometheus.NewTimer(metrics.TickDuration)
	defer timer.ObserveDuration()

# Integration Points

Used by:
  - pkg/planner: tick counters, job lifecycle counters, fleet gauges
  - pkg/api: RPC request counters and duration histograms, /metrics wiring
  - pkg/battery: charger command counter
  - pkg/livestore: query failure counter

# Best Practices

Keep label cardinality low: job type, job state, booking status and RPC
method are all small fixed sets. Never label by robot name, cart name or
booking id. Counters only go up; use the fleet gauges for current state
and the counters for rates (e.g. rate(chargepal_jobs_failed_total[5m])).
*/
package metrics
