/*
Package planner is the brain of the fleet: it decides which robot brings
which battery cart to which station, and when.

# Architecture

All fleet state lives in the plan database and is mutated by exactly one
goroutine, the tick loop. Robot RPCs never write directly; they enqueue a
request that the next tick applies inside its transaction. Reads for RPC
replies come from prepared snapshots or read-only views.

	                 ┌─────────────────────────────────────┐
	                 │               Planner               │
	                 │                                     │
	  LiveStore ────▶│  Reconcile ──▶ Bookings ──▶ Battery │
	  (robots,       │      │                          │   │
	   bookings)     │      ▼                          ▼   │
	                 │  scheduleJobs ──▶ drain RequestQueue│
	                 │      │                          │   │
	                 │      └────────── commit ────────┘   │
	                 └─────────────────────────────────────┘
	                        ▲                    │
	                 RPC requests          events, metrics
	                 (fetch, update,
	                  handshake)

Each tick:

 1. Reconcile mirrors robot, cart, and booking rows from the live
    database into the plan database and reports what changed.
 2. Changed bookings are dispatched: check-ins open charger deliveries,
    pending advances the plug-in handshake, ready starts the retrieve
    flow, cancellations tear jobs down.
 3. Battery state transitions become charger commands.
 4. Open jobs are bound to robots, carts, and stations in creation
    order; idle robots away from base get a recharge job.
 5. Queued robot requests are applied in arrival order.

The transaction commits even when a handler faults. An invariant fault
afterwards stops the loop and surfaces on Fault(), leaving the committed
state on disk for inspection; transient I/O errors are only logged.

# Job Lifecycle

	OPEN ──▶ PENDING ──▶ ONGOING ──▶ COMPLETE
	  │         │           │
	  │         │           ├──▶ FAILED
	  └─────────┴───────────┴──▶ CANCELED

Jobs are created OPEN (except self recharges, which are born assigned),
become PENDING when the scheduler binds a robot, ONGOING when that robot
fetches them, and terminal on the robot's final report. A retrieve job
upgrades in place to a recharge or stow once the scheduler knows where
the cart can go.

# Usage

	plans, _ := planstore.Open(dataDir)
	live, _ := livestore.Open(dataDir, nil)

	p := planner.New(plans, live, stations.NewPicker(live), broker, planner.DefaultConfig())
	p.Start()
	defer p.Stop()

	select {
	case err := <-p.Fault():
	        // state corrupted, restart the daemon
	case <-ctx.Done():
	}

# Integration Points

  - pkg/reconciler: pulls external changes into the plan database
  - pkg/battery: cart battery transitions feeding charger commands
  - pkg/stations: picker for waiting stations with per-robot blockers
  - pkg/api: exposes FetchJob, UpdateJob, and the handshake over RPC
  - pkg/events: emits job and booking lifecycle events
  - pkg/metrics: tick duration, job counters, and fleet gauges

# See Also

  - pkg/planstore for the transactional fleet state
  - pkg/livestore for the shared robot-facing database
*/
package planner
