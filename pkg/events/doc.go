/*
Package events provides an in-memory event broker for ChargePal's pub/sub messaging.

The events package implements a lightweight event bus for broadcasting fleet
events to interested subscribers. Every externally visible planner decision
(job lifecycle transitions, booking scheduling, charger commands, handshake
steps) is published here, enabling loose coupling between the planner and
anything that wants to observe it: log sinks, simulators, dashboards.

# Architecture

Non-blocking pub/sub messaging with buffered channels:

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  Publisher → Event Channel (buffer: 100)                   │
	│       ↓                                                    │
	│  Broadcast Loop                                            │
	│       ↓                                                    │
	│  Subscriber Channels (buffer: 50 each)                     │
	│                                                            │
	│  ┌────────────────────────────────────────────┐           │
	│  │           Event Types                       │           │
	│  │                                              │           │
	│  │  Job Events:                                │           │
	│  │    - job.created, job.assigned              │           │
	│  │    - job.ongoing                            │           │
	│  │    - job.completed, job.failed              │           │
	│  │    - job.canceled                           │           │
	│  │                                              │           │
	│  │  Booking Events:                            │           │
	│  │    - booking.scheduled                      │           │
	│  │    - booking.canceled                       │           │
	│  │                                              │           │
	│  │  Charger Events:                            │           │
	│  │    - charger.command                        │           │
	│  │    - handshake.step                         │           │
	│  │                                              │           │
	│  │  Robot Events:                              │           │
	│  │    - robot.log                              │           │
	│  │                                              │           │
	│  │  Controller Events:                         │           │
	│  │    - planner.fault                          │           │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────────┘

Publish never blocks the planner: events flow through a buffered channel
into the broadcast loop, and a subscriber that stops draining its channel
silently loses events rather than stalling the tick.

# Usage

Create and start the broker:

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

Publish with automatic ID and timestamp stamping:

	broker.Emit(events.EventJobCreated, "BRING_CHARGER job 3 created", map[string]string{
		"job":  "3",
		"type": "BRING_CHARGER",
		"cart": "BAT_2",
	})

Subscribe and consume:

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	for event := range sub {
		fmt.Printf("[%s] %s\n", event.Type, event.Message)
	}

# Delivery Semantics

Best-effort, at-most-once. Events carry a uuid so downstream consumers
can deduplicate if they fan out further, but the broker itself keeps no
history: a late subscriber sees only what is published after it joins,
and a slow subscriber with a full buffer is skipped.

# Integration Points

Used by:
  - pkg/planner: publishes job, booking, handshake and fault events
  - pkg/battery: publishes charger.command when frames go out
  - pkg/api: publishes robot.log lines relayed from robots
  - cmd/chargepald: subscribes to mirror events into the structured log
*/
package events
