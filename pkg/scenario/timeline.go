package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/chargepal/chargepald/pkg/livestore"
	"github.com/chargepal/chargepald/pkg/types"
)

// sessionState tracks where a scripted booking stands, mirrored from
// the events as they apply.
type sessionState int

const (
	sessionBooked sessionState = iota
	sessionCheckedIn
	sessionFulfilled
	sessionComplete
	sessionCanceled
)

// Timeline replays a scenario's events against a live database, batch
// by batch. It stands in for the booking server and the vehicles;
// whatever is under test only ever sees their writes.
type Timeline struct {
	scenario Scenario
	live     *livestore.Store
	start    time.Time

	now      time.Duration
	applied  []bool
	sessions map[int]int64
	states   map[int]sessionState
	cars     map[string]bool
	serving  map[string]int // adapter station → scripted booking id
}

// NewTimeline stands a scenario up against a live database. Seeding the
// site is the caller's business; the timeline only writes what the
// booking world writes.
func NewTimeline(s Scenario, live *livestore.Store) *Timeline {
	return &Timeline{
		scenario: s,
		live:     live,
		start:    time.Now(),
		applied:  make([]bool, len(s.Events)),
		sessions: make(map[int]int64),
		states:   make(map[int]sessionState),
		cars:     make(map[string]bool),
		serving:  make(map[string]int),
	}
}

// Done reports whether every scripted event has been applied
func (t *Timeline) Done() bool {
	for _, done := range t.applied {
		if !done {
			return false
		}
	}
	return true
}

// Elapsed returns the script time reached so far
func (t *Timeline) Elapsed() time.Duration { return t.now }

// SessionID returns the live session id a scripted booking received on
// insert, 0 before its booking event applied.
func (t *Timeline) SessionID(bookingID int) int64 { return t.sessions[bookingID] }

// CarAt reports whether a vehicle stands at the station
func (t *Timeline) CarAt(station string) bool { return t.cars[station] }

// Next advances to the next scripted timestamp and applies every event
// due there, in script order. It returns the applied batch, nil once
// the script is exhausted.
func (t *Timeline) Next(ctx context.Context) ([]Event, error) {
	next := time.Duration(-1)
	for i, event := range t.scenario.Events {
		if t.applied[i] {
			continue
		}
		if next < 0 || event.At() < next {
			next = event.At()
		}
	}
	if next < 0 {
		return nil, nil
	}

	var batch []Event
	for i, event := range t.scenario.Events {
		if t.applied[i] || event.At() != next {
			continue
		}
		if err := t.apply(ctx, event); err != nil {
			return nil, err
		}
		t.applied[i] = true
		batch = append(batch, event)
	}
	t.now = next
	return batch, nil
}

// CarCharged is the booking server reacting to a fulfilled session: the
// booking at the station goes ready, so the fleet reclaims the charger
// once the driver unplugs.
func (t *Timeline) CarCharged(ctx context.Context, station string) error {
	bookingID, ok := t.serving[station]
	if !ok {
		return fmt.Errorf("no session at %s", station)
	}
	if t.states[bookingID] != sessionCheckedIn {
		return fmt.Errorf("booking %d is not charging", bookingID)
	}
	if err := t.live.UpdateSessionStatus(ctx, t.sessions[bookingID], types.BookingStatusReady); err != nil {
		return err
	}
	t.states[bookingID] = sessionFulfilled
	return nil
}

func (t *Timeline) apply(ctx context.Context, event Event) error {
	switch e := event.(type) {
	case BookingEvent:
		if _, exists := t.sessions[e.BookingID]; exists {
			return fmt.Errorf("booking %d scripted twice", e.BookingID)
		}
		id, err := t.live.InsertBooking(ctx, livestore.BookingSeed{
			DropLocation: e.Location,
			Status:       types.BookingStatusBooked,
			BookedAt:     t.start.Add(e.Offset),
			DropTime:     t.start.Add(e.DropTime),
			PickupTime:   t.start.Add(e.PickupTime),
			PluginTime:   e.PluginTime,
			TargetSOC:    e.TargetSOC,
		})
		if err != nil {
			return err
		}
		t.sessions[e.BookingID] = id
		t.states[e.BookingID] = sessionBooked

	case CancelEvent:
		id, ok := t.sessions[e.BookingID]
		if !ok {
			return fmt.Errorf("cancel for unknown booking %d", e.BookingID)
		}
		switch t.states[e.BookingID] {
		case sessionBooked, sessionCheckedIn:
		default:
			return fmt.Errorf("booking %d can no longer be canceled", e.BookingID)
		}
		if err := t.live.UpdateSessionStatus(ctx, id, types.BookingStatusCanceled); err != nil {
			return err
		}
		t.states[e.BookingID] = sessionCanceled

	case CarEvent:
		t.cars[e.Station] = e.Present

	case CheckInEvent:
		id, ok := t.sessions[e.BookingID]
		if !ok {
			return fmt.Errorf("check-in for unknown booking %d", e.BookingID)
		}
		if !t.cars[e.Location] {
			return fmt.Errorf("check-in at %s without a vehicle", e.Location)
		}
		if t.states[e.BookingID] != sessionBooked {
			return fmt.Errorf("booking %d is not open for check-in", e.BookingID)
		}
		if holder, taken := t.serving[e.Location]; taken {
			return fmt.Errorf("station %s already serves booking %d", e.Location, holder)
		}
		if err := t.live.CheckInBooking(ctx, id, e.Location, e.DropSOC, e.PluginTime); err != nil {
			return err
		}
		t.states[e.BookingID] = sessionCheckedIn
		t.serving[e.Location] = e.BookingID

	case CheckOutEvent:
		id, ok := t.sessions[e.BookingID]
		if !ok {
			return fmt.Errorf("check-out for unknown booking %d", e.BookingID)
		}
		if t.states[e.BookingID] != sessionFulfilled {
			return fmt.Errorf("booking %d is not charged yet", e.BookingID)
		}
		if err := t.live.CheckOutBooking(ctx, id); err != nil {
			return err
		}
		t.states[e.BookingID] = sessionComplete
		delete(t.serving, e.Location)

	default:
		return fmt.Errorf("unknown event %T", event)
	}
	return nil
}
