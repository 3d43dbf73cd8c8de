/*
Package log provides structured logging for the ChargePal controller using
zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level for production debugging.

# Architecture

A single package-level zerolog.Logger is initialized once via log.Init() and
shared by all packages. Child loggers attach context fields:

	┌──────────────────── LOGGING SYSTEM ───────────────────┐
	│                                                         │
	│   Global Logger ── Init(Config{Level, JSONOutput})      │
	│        │                                                │
	│        ├── WithComponent("planner")                     │
	│        ├── WithRobot("ChargePal1")                      │
	│        ├── WithJob(42)                                  │
	│        └── WithBooking(1079)                            │
	│                                                         │
	│   JSON output (service mode):                           │
	│   {"level":"info","component":"planner",                │
	│    "job_id":42,"message":"job assigned"}                │
	│                                                         │
	│   Console output (development):                         │
	│   10:30:00 INF job assigned component=planner job_id=42 │
	└─────────────────────────────────────────────────────────┘

# Log Levels

  - Debug: per-tick decisions (candidate distances, queue drains)
  - Info: job and booking lifecycle transitions
  - Warn: recoverable oddities (job update without a current job,
    no free station for a retrieve)
  - Error: failed LiveStore operations, RPC transport faults, and the
    invariant violation that stops the planner before the daemon exits

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component loggers:

	plannerLog := log.WithComponent("planner")
	plannerLog.Info().Uint64("job_id", job.ID).
		Str("robot", robot.Name).
		Msg("job assigned")

Error logging:

	log.Logger.Error().
		Err(err).
		Str("component", "livestore").
		Msg("booking fetch failed")

# Integration Points

  - pkg/planner: tick lifecycle, scheduling decisions, state transitions
  - pkg/reconciler: copy and diff results
  - pkg/livestore: backend selection and query failures
  - pkg/api: per-request logging
  - pkg/battery: command dispatch and feedback timeouts
  - pkg/events: the daemon attaches a sink that logs published events

# Best Practices

Do:
  - use Info for production, Debug for scenario debugging
  - use typed fields (.Str, .Int, .Err) for queryable data
  - create component loggers once per subsystem, not per call

Don't:
  - log in the distance-ranking hot loop above Debug
  - build messages from variable data; typed fields keep them queryable
*/
package log
