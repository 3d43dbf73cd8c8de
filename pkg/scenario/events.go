package scenario

import "time"

// Event is one scripted action of the booking world. At is the offset
// from scenario start; End is when the event's consequences are over,
// used to size the scenario duration.
type Event interface {
	At() time.Duration
	End() time.Duration
}

// BookingEvent registers a charging session ahead of the vehicle's
// arrival. Times are offsets from scenario start.
type BookingEvent struct {
	Offset     time.Duration
	BookingID  int
	Location   string
	DropTime   time.Duration
	PickupTime time.Duration
	PluginTime time.Duration
	TargetSOC  float64
}

func (e BookingEvent) At() time.Duration  { return e.Offset }
func (e BookingEvent) End() time.Duration { return e.PickupTime }

// CancelEvent withdraws a session that has not completed
type CancelEvent struct {
	Offset    time.Duration
	BookingID int
}

func (e CancelEvent) At() time.Duration  { return e.Offset }
func (e CancelEvent) End() time.Duration { return e.Offset }

// CarEvent marks a vehicle arriving at or leaving an adapter station
type CarEvent struct {
	Offset  time.Duration
	Station string
	Present bool
}

func (e CarEvent) At() time.Duration  { return e.Offset }
func (e CarEvent) End() time.Duration { return e.Offset }

// CheckInEvent is the driver confirming arrival. The session gets its
// measured state of charge and goes checked_in, which makes it
// schedulable.
type CheckInEvent struct {
	Offset     time.Duration
	BookingID  int
	Location   string
	DropSOC    float64
	PluginTime time.Duration
}

func (e CheckInEvent) At() time.Duration  { return e.Offset }
func (e CheckInEvent) End() time.Duration { return e.Offset + e.PluginTime }

// CheckOutEvent is the vehicle leaving with a completed session
type CheckOutEvent struct {
	Offset    time.Duration
	BookingID int
	Location  string
}

func (e CheckOutEvent) At() time.Duration  { return e.Offset }
func (e CheckOutEvent) End() time.Duration { return e.Offset }

// Scenario is a site layout plus the booking-world script that runs
// against it.
type Scenario struct {
	Config Config
	Events []Event
}

// Duration returns the time span the script covers
func (s Scenario) Duration() time.Duration {
	var total time.Duration
	for _, event := range s.Events {
		if end := event.End(); end > total {
			total = end
		}
	}
	return total
}

// DeliveryScenario is one booking on the smallest site: book, arrive,
// check in, drive away charged.
func DeliveryScenario() Scenario {
	return Scenario{
		Config: AllOneConfig(),
		Events: []Event{
			BookingEvent{
				BookingID:  1,
				Location:   "ADS_1",
				PluginTime: time.Minute,
				PickupTime: 5 * time.Minute,
			},
			CarEvent{Station: "ADS_1", Present: true},
			CheckInEvent{
				Offset:     time.Minute,
				BookingID:  1,
				Location:   "ADS_1",
				DropSOC:    25,
				PluginTime: time.Minute,
			},
			CheckOutEvent{Offset: 3 * time.Minute, BookingID: 1, Location: "ADS_1"},
		},
	}
}

// ContendedScenario is two bookings sharing the single adapter station
// of a one-robot site, so the second session waits for the first to
// clear out.
func ContendedScenario() Scenario {
	return Scenario{
		Config: Config{
			ADS:            []string{"ADS_1"},
			BCS:            []string{"BCS_1"},
			BWS:            []string{"BWS_1", "BWS_2"},
			RBS:            []string{"RBS_1"},
			RobotLocations: map[string]string{"ChargePal1": "RBS_1"},
			CartLocations:  map[string]string{"BAT_1": "BWS_1", "BAT_2": "BWS_2"},
		},
		Events: []Event{
			BookingEvent{
				BookingID:  1,
				Location:   "ADS_1",
				PluginTime: 3 * time.Minute,
				PickupTime: 15 * time.Minute,
			},
			BookingEvent{
				BookingID:  2,
				Location:   "ADS_1",
				PluginTime: time.Minute,
				PickupTime: 5 * time.Minute,
			},
			CarEvent{Station: "ADS_1", Present: true},
			CheckInEvent{
				Offset:     time.Minute,
				BookingID:  2,
				Location:   "ADS_1",
				DropSOC:    85,
				PluginTime: 4 * time.Minute,
			},
			CheckOutEvent{Offset: 6 * time.Minute, BookingID: 2, Location: "ADS_1"},
			CarEvent{Offset: 6 * time.Minute, Station: "ADS_1", Present: false},
			CarEvent{Offset: 7 * time.Minute, Station: "ADS_1", Present: true},
			CheckInEvent{
				Offset:     7 * time.Minute,
				BookingID:  1,
				Location:   "ADS_1",
				DropSOC:    25,
				PluginTime: 12 * time.Minute,
			},
			CheckOutEvent{Offset: 20 * time.Minute, BookingID: 1, Location: "ADS_1"},
		},
	}
}
