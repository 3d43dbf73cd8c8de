/*
Package planstore provides BoltDB-backed persistence for the planner's
fleet state.

The plan database is the planner's single source of truth: robots, battery
carts, stations, jobs, bookings, and the materialized station distance
relation all live here. Entities are serialized as JSON into separate
buckets. The planner mutates state exclusively through one read-write
transaction per tick, so observers only ever see fully committed ticks.

# Architecture

	┌──────────────────── PLAN DATABASE ───────────────────────┐
	│                                                           │
	│  ┌────────────────────────────────────────────┐           │
	│  │            Store                           │           │
	│  │  - File: <dataDir>/plan.db                 │           │
	│  │  - Format: B+tree with MVCC                │           │
	│  │  - Transactions: ACID with fsync           │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │              Bucket Structure              │           │
	│  │  ┌──────────────────────────────┐          │           │
	│  │  │ robots     (robot name)      │          │           │
	│  │  │ carts      (cart name)       │          │           │
	│  │  │ stations   (station name)    │          │           │
	│  │  │ jobs       (sequence number) │          │           │
	│  │  │ bookings   (booking id)      │          │           │
	│  │  │ distances  (start|target)    │          │           │
	│  │  │ meta       (fixed keys)      │          │           │
	│  │  └──────────────────────────────┘          │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │        Transaction Model                   │           │
	│  │  - Planner tick: Begin() → Txn → Commit()  │           │
	│  │  - Observers: View() / List*() snapshots   │           │
	│  │  - Invariant fault: Commit(), then crash   │           │
	│  └────────────────────────────────────────────┘           │
	│                                                           │
	└───────────────────────────────────────────────────────────┘

# Core Components

Store:
  - Single database file per controller
  - Automatic bucket creation on Open
  - Bootstrap seeds the fleet once; restarts keep prior state
  - List* / Get* snapshot reads for the RPC layer and metrics collector

Txn:
  - One writable transaction wrapping a whole planner tick
  - Typed getters return nil (not an error) for unknown names
  - CreateJob draws ids from the bucket sequence, so iteration order
    over the jobs bucket is creation order
  - Scan helpers encode planning rules: CurrentJob enforces the
    one-assigned-job-per-robot rule, LiveJobForCart the
    one-live-chain-per-cart rule

Distances:
  - Full start×target relation written once at Bootstrap from the
    layout table
  - Unknown pairs read back as layout.MaxDistance so they lose every
    nearest-station tie-break

# Usage

Opening and seeding:

	store, err := planstore.Open("/var/lib/chargepal")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	err = store.Bootstrap(planstore.Seed{
		Robots:   map[string]string{"ChargePal1": "RBS_1"},
		Carts:    map[string]string{"BAT_1": "BWS_1"},
		Stations: []string{"ADS_1", "BCS_1", "BWS_1", "RBS_1"},
	})

A planner tick:

	txn, err := store.Begin()
	if err != nil {
		return err
	}
	defer txn.Rollback()

	robot, err := txn.Robot("ChargePal1")
	if err != nil {
		return err
	}
	robot.Available = false
	if err := txn.PutRobot(robot); err != nil {
		return err
	}
	return txn.Commit()

Snapshot reads from other goroutines:

	jobs, err := store.ListJobs()
	robot, err := store.GetRobot("ChargePal1")

# Integration Points

This package integrates with:

  - pkg/planner: owns the per-tick Txn; nearest-entity selection via
    Txn scans and Distance; List* feeds the fleet gauges after commit
  - pkg/reconciler: writes live-database snapshots into the plan
  - pkg/layout: distance relation source
  - pkg/types: all entity definitions

# Design Patterns

Upsert Pattern:
  - Put* overwrites by key, no exists check needed

Nil For Unknown:
  - Txn getters return (nil, nil) for unknown names; callers decide
    whether that is an error. Store.Get* wraps the nil into a
    "not found" error for RPC responses.

Filter Pattern:
  - Scans load the bucket and filter in memory; fleets are tens of
    entities, not thousands

Commit On Fault:
  - When a scan detects corrupted state it returns a types.InvariantError.
    The planner still commits the tick before terminating, so the
    offending state stays inspectable on disk.

# See Also

  - pkg/planner for the tick loop
  - pkg/types for entity definitions
  - BoltDB documentation: https://github.com/etcd-io/bbolt
*/
package planstore
