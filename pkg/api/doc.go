/*
Package api implements the msgpack RPC server robots call and the HTTP
surface for health and metrics.

Robots on the parking lot are the clients of the fleet controller. Each
one keeps a TCP connection open and drives its duty cycle through a
handful of RPCs: fetch a job, report progress, negotiate the plug-in
handshake, ask for a free station when its target is taken, run battery
commands and mirror the live database.

# Architecture

	┌────────────────────── ROBOT ─────────────────────┐
	│                                                   │
	│  ┌─────────────────────────────────────────┐     │
	│  │       msgpack RPC client (pkg/client)    │     │
	│  └──────────────────┬──────────────────────┘     │
	└─────────────────────┼────────────────────────────┘
	                      │ TCP (port 50059)
	                      │
	┌─────────────────────▼──── FLEET CONTROLLER ──────┐
	│                                                   │
	│  ┌─────────────────────────────────────────┐     │
	│  │           RPC Server (pkg/api)           │     │
	│  │   Jobs / Stations / Bookings /           │     │
	│  │   Battery / Data endpoints               │     │
	│  └──────┬──────────┬──────────┬────────────┘     │
	│         │          │          │                   │
	│     Planner     Picker    Commander + LiveStore   │
	└───────────────────────────────────────────────────┘

Each connection gets one goroutine running a ServeRequest loop over a
msgpack codec. Requests and responses are the plain structs in
structs.go; no code generation is involved.

# Endpoints

Jobs:
  - FetchJob: hand out the robot's prepared job
  - UpdateJobMonitor: report Success/Failure/Recovery/Ongoing
  - OperationTime: remaining operation time for a cart

Stations:
  - AskFreeStation: nearest unoccupied BCS or BWS for this robot
  - ResetStationBlocker: forget stations already handed to this robot

Bookings:
  - Ready2PlugInADS: advance the plug-in handshake at an adapter station

Battery:
  - BatteryCommunication: run one battery mode request against a cart

Data:
  - PushToLDB: replace fleet mirror rows a robot observed
  - UpdateRDB: dump the live database tables for the robot's mirror
  - PullLDB: send the live database file
  - LogText: forward a robot log line into the fleet log

# Error Policy

Endpoints never answer a domain problem with a transport error. An
unknown robot, a full station group, an unconfirmed battery command or a
rejected table push all come back as a typed negative: an empty job, an
empty station name, Success false, nil data. The transport carries an
error only when the connection itself is broken. State changes requested
over RPC are queued for the planner tick; handlers themselves only read.

# Usage

	srv := api.NewServer(planner, picker, commander, store, broker)
	if err := srv.Start(":50059"); err != nil {
		log.Fatal(err)
	}
	defer srv.Stop()

	hs := api.NewHealthServer(version, map[string]health.Checker{
		"livestore": health.NewSQLChecker("livestore", store),
	})
	go hs.Start(":9090")

# Integration Points

This package integrates with:

  - pkg/planner: job handout, progress reports, the plug-in handshake
  - pkg/stations: free-station search and blocker resets
  - pkg/battery: the battery command protocol
  - pkg/livestore: database mirroring for robots
  - pkg/health: dependency checks behind /readyz
  - pkg/metrics: per-method request counters and latency
  - pkg/client: the Go client robots and the simulator use

# See Also

  - pkg/client for the typed client
  - pkg/planner for what happens to queued requests
*/
package api
