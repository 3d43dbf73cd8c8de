/*
Package livestore is the single gateway to the live database the fleet
shares with the booking server and the battery bridge.

Two backends exist behind one API. The embedded SQLite file
(<dataDir>/ldb.db) always opens and carries the fleet mirror tables
(robot_info, cart_info, env_info) plus a full copy of the schema. When a
configuration file names a primary MySQL server and that server answers
at startup, booking and battery tables are read from and written to it
instead.

# Architecture

	                ┌───────────────┐
	   bookings,    │  primary      │   orders_in
	   battery ───► │  (MySQL)      │   CAN_MSG_RX_LIVE
	   tables       └──────┬────────┘   TX_ChargeOrdersFeedback
	                       │ unreachable → warn + degrade
	                ┌──────▼────────┐
	   fleet   ───► │  embedded     │   robot_info, cart_info,
	   mirror       │  (SQLite/WAL) │   env_info, full schema
	                └───────────────┘

Failure policy: reads on the primary fall back to the embedded copy with
a warning; writes on the primary surface their error to the caller. A
primary that is down at startup is skipped entirely.

# Table Ownership

  - orders_in: written by the booking server; this daemon only flips
    charging_session_status and last_change.
  - robot_info, cart_info: written by robots through PushTable and
    UpdateLocation; read back by the reconciler each tick.
  - env_info: site configuration (entity names and counts), written once
    by seeding.
  - CAN_MSG_RX_LIVE, TX_ChargeOrdersFeedback: written by the battery
    bridge; the battery monitor polls State_bat_mod, command feedback
    polls Bat_State_actual.

# Parsing

Cells are TEXT. ParseTime, ParseDuration, ParseMinutes, ParseFloat and
ParseInt promote them; "NONE"/"NULL"/empty count as null (IsSQLNone).
Datetimes use "2006-01-02 15:04:05" (TimeLayout) so string comparison
orders chronologically, which FetchUpdatedBookings and
FetchBatteryStates rely on for their last_change watermarks.

# Usage

	config, err := livestore.LoadConfig("/etc/chargepal/live.yaml") // nil when absent
	if err != nil {
		return err
	}
	store, err := livestore.Open(dataDir, config)
	if err != nil {
		return err
	}
	defer store.Close()

	bookings, err := store.FetchUpdatedBookings(ctx, watermark)
	robots, err := store.FetchByFirstHeader(ctx, "robot_info", livestore.RobotInfoHeaders)

# Integration Points

  - pkg/reconciler: per-tick copy of robot/cart/booking rows into the plan
  - pkg/battery: state polling and command feedback reads
  - pkg/planner: session status writes, location pushes
  - pkg/api: Dump for UpdateRDB, FileBytes for PullLDB, PushTable for PushToLDB
  - pkg/scenario: seeding sites and development bookings
*/
package livestore
