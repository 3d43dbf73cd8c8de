/*
Package scenario builds and replays whole sites for tests and
development seeding.

A Config names the stations of a site and where every robot and cart
starts. It comes from counts ("ADS: 2, BCS: 2, BWS: 3, RBS: 2,
robots: 2, carts: 3"), from one of the canned layouts, or from a
literal when a test needs carts parked somewhere unusual. Seed writes
the config into the live database (env_info groups plus one row per
robot and cart, as if each had already reported in) and bootstraps the
plan database.

A Scenario adds the booking-world script: sessions being booked,
vehicles arriving, drivers checking in, cancellations, departures. The
Timeline replays that script batch by batch against the live database,
standing in for the booking server and the vehicles:

	timeline := scenario.NewTimeline(scenario.DeliveryScenario(), live)
	for !timeline.Done() {
		batch, err := timeline.Next(ctx)
		...        // pump planner ticks, move simulated robots
	}

The timeline refuses scripts that contradict themselves, for example a
check-in at a station without a vehicle. CarCharged plays the booking
server's part after a fulfilled session: it flips the session to ready
so the fleet reclaims its charger.

Station seeding and event writes go through pkg/livestore; nothing here
touches the planner directly.
*/
package scenario
