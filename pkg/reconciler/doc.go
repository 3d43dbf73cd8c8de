/*
Package reconciler copies live fleet state into the plan database at the
start of every planner tick.

Robots write where they are and what they are doing into the live
database; the booking server writes charging sessions there; the battery
bridge mirrors cart firmware state. None of that is directly usable by
the planner, which makes all decisions against its own plan database
inside one transaction per tick. The reconciler is the bridge: it pulls
the live rows, normalizes them, and lands them in the plan rows before
any scheduling happens.

# Architecture

One pass, four steps, fixed order:

	┌────────────────────────────────────────────────────────────┐
	│                    Reconcile (per tick)                    │
	└────────────────┬───────────────────────────────────────────┘
	                 │
	    1. robot_info ──► Robot rows   (location, actions,
	                 │                  charge, error count)
	    2. cart_info ───► Cart rows    (location only)
	                 │
	    3. orders_in ───► Booking rows (upsert + value diff)
	                 │
	    4. battery feed ► StateChange deltas (via battery.Monitor)

Steps 1 and 2 copy attributes the fleet owns. They never touch fields
the planner owns: a robot's current job and carried cart, a cart's
plugged flag and booking binding all stay exactly as the planner left
them. A live row naming a robot or cart the plan database does not know
is ignored with a debug log; it means the environment configuration and
the fleet disagree, and the planner cannot act on a machine it never
bootstrapped.

Steps 3 and 4 produce the Result the planner dispatches on: the bookings
that changed since the previous pass and the battery state transitions.

# Booking Diff

The live database stamps bookings with a last_change of one-second
resolution. Two updates landing within the same second are
indistinguishable by timestamp, so the reconciler never filters on it.
Instead it keeps the previous snapshot of every booking and compares
values:

	pass 1: {id 4, status checked_in}  → new, reported
	pass 2: {id 4, status checked_in}  → equal, silent
	pass 3: {id 4, status ready}       → differs, reported

A reported booking updates the cache, so calling Reconcile twice without
a live change reports nothing the second time. The snapshot comparison
excludes the completion time, which the planner writes and the live
database never carries; without that exclusion the planner's own write
would echo back as a phantom update one tick later.

Upserts preserve two fields across updates: the creation time (written
once, when the booking is first seen) and the completion time.

# Failure Policy

A live database failure during any step is logged, counted, and
aggregated into the returned error; the pass continues with the
remaining steps. Plan state written by earlier ticks stays authoritative
until the next successful pass. The planner treats the aggregate as
transient and proceeds with the tick.

# Usage

	r := reconciler.New(liveStore)

	txn, err := planStore.Begin()
	if err != nil {
		return err
	}
	result, err := r.Reconcile(ctx, txn)
	if err != nil {
		log.Warn().Err(err).Msg("Reconcile incomplete")
	}
	for _, booking := range result.UpdatedBookings {
		// dispatch booking handlers
	}
	for _, change := range result.BatteryChanges {
		// dispatch charger commands
	}

# Integration Points

The reconciler connects with:
  - pkg/livestore: reads robot_info, cart_info, orders_in
  - pkg/planstore: writes through the planner's transaction
  - pkg/battery: owns the Monitor that detects cart state transitions
  - pkg/planner: the only caller; runs this as tick step one

# See Also

  - pkg/planner for where the Result is consumed
  - pkg/livestore for the tables this package reads
*/
package reconciler
