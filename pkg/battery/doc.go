/*
Package battery talks to the battery cart fleet over MQTT and watches the
cart state feed the firmware mirrors into the live database.

# Architecture

The package has two halves that share nothing but the live store:

	┌──────────────────────────────────────────────────────────────┐
	│                         Commander                            │
	│                                                              │
	│  Execute(cart, request)                                      │
	│    ├── resolve request name to CAN frame(s)                  │
	│    ├── publish frame(s) to MQTT topic <cart>                 │
	│    └── wakeup only: poll live store until the cart           │
	│        acknowledges, or give up after the timeout            │
	└──────────────────────────────────────────────────────────────┘

	┌──────────────────────────────────────────────────────────────┐
	│                          Monitor                             │
	│                                                              │
	│  Poll()                                                      │
	│    ├── fetch State_bat_mod rows changed since last poll      │
	│    ├── diff against the previous observation per cart        │
	│    └── return StateChange list, sorted by cart name          │
	└──────────────────────────────────────────────────────────────┘

# Command Protocol

Cart firmware accepts raw CAN frames published as comma separated strings
on an MQTT topic named after the cart. Every mode request maps to exactly
one frame; the two ladeprozess requests publish a pair:

	wakeup                      1793,2,1,0
	mode_req_EV_DC_Charge       1793,2,2,0
	mode_req_EV_AC_Charge       1793,2,4,0
	mode_req_Bat_AC_Charge      1793,2,8,0
	mode_req_standby            1793,2,16,0
	mode_req_idle               1793,2,32,0
	mode_req_bat_only           1793,2,128,0
	ladeprozess_start           1793,2,64,0 + 1793,2,0,1
	ladeprozess_end             1793,2,32,0 + 1793,2,0,1
	mode_req_emergency_shutdown 1793,2,0,2

Only wakeup is confirmed end to end: the commander first waits for the
firmware to write WakeUp_OK into the feedback table, then for the cart to
report battery-only mode on the live feed. Every other request is fire
and forget; the planner learns the outcome from the Monitor.

An empty broker address disables publishing entirely. Execute then logs
the frames and reports success, which is how simulation and tests run
without an MQTT broker.

# State Monitoring

The Monitor keeps a watermark (the wall clock of its previous poll) and a
per-cart copy of the last observed State_bat_mod value. A poll fetches
only rows stamped at or after the watermark and reports a StateChange
when the value actually differs, so rewrites of the same state are
silent.

StateChange.Commands translates a transition into charger commands for
the job state machine: entering a recharging state starts a recharge,
leaving one stops it, and entering a charging state starts a vehicle
charge.

# Usage

	commander := battery.NewCommander(store, broker, battery.CommanderConfig{
		Broker: "tcp://192.168.185.25:1883",
	})
	defer commander.Close()

	ok, err := commander.Execute(ctx, "BAT_1", battery.RequestWakeup)
	if err != nil {
		return err
	}
	if !ok {
		// cart refused or did not acknowledge in time
	}

	monitor := battery.NewMonitor(store)
	changes, err := monitor.Poll(ctx)

# Integration Points

The battery package connects with:
  - pkg/livestore: CAN_MSG_RX_LIVE and TX_ChargeOrdersFeedback tables
  - pkg/planner: drives Execute from the handshake and recharge flows,
    drains Monitor output every tick
  - pkg/events: emits charger.command events for observability
  - pkg/metrics: counts issued commands per request name

# See Also

  - pkg/livestore for the table schemas the two halves read and write
  - pkg/planner for how state changes become job updates
*/
package battery
