package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Robot represents one mobile robot of the fleet
type Robot struct {
	Name           string
	Location       string // Station name the robot is currently at
	CurrentJobID   uint64 // 0 = no job
	OngoingAction  string
	PreviousAction string
	CartOnRobot    string // Cart name currently carried, "" = none
	Charge         float64
	Available      bool
	ErrorCount     int
}

// Cart represents a mobile battery cart the robots transport
type Cart struct {
	Name             string
	Location         string
	BookingID        int64 // Active booking this cart serves, 0 = none
	Plugged          bool
	ActionState      string
	ModeResponse     string
	StateOfCharge    string
	StatusFlag       string
	ChargerOK        bool
	ChargerState     string
	ChargerError     string
	BalancingRequest bool
	Charge           float64
	Available        bool
	ErrorCount       int
}

// Station is a fixed slot in the parking area. Names carry the kind as
// prefix: ADS_ (vehicle adapter), BCS_ (battery charging), BWS_ (battery
// waiting), RBS_ (robot base).
type Station struct {
	Name        string
	Pose        string // Opaque pose string consumed by robot navigation
	Reservation string // Cart name holding an exclusive reservation, "" = none
	Available   bool
}

// Station name prefixes
const (
	PrefixADS = "ADS_"
	PrefixBCS = "BCS_"
	PrefixBWS = "BWS_"
	PrefixRBS = "RBS_"
)

// Kind returns the station's name prefix, "" if it has none.
func (s *Station) Kind() string {
	for _, prefix := range []string{PrefixADS, PrefixBCS, PrefixBWS, PrefixRBS} {
		if strings.HasPrefix(s.Name, prefix) {
			return prefix
		}
	}
	return ""
}

// Distance is one materialized entry of the station distance relation
type Distance struct {
	Start    string
	Target   string
	Distance float64
}

// Job is a single unit of robot work
type Job struct {
	ID                uint64 // Monotonically assigned
	Type              JobType
	State             JobState
	Schedule          time.Time
	Deadline          time.Time // Zero = none
	BookingID         int64     // 0 = none
	CurrentlyAssigned bool
	RobotName         string
	CartName          string
	SourceStation     string
	TargetStation     string
	ChargingType      string
	PortLocation      string
	StartedAt         time.Time
	FinishedAt        time.Time
}

// JobType defines what a job asks a robot to do
type JobType string

const (
	JobTypeBringCharger    JobType = "BRING_CHARGER"
	JobTypeRetrieveCharger JobType = "RETRIEVE_CHARGER"
	JobTypeRechargeCharger JobType = "RECHARGE_CHARGER"
	JobTypeStowCharger     JobType = "STOW_CHARGER"
	JobTypeRechargeSelf    JobType = "RECHARGE_SELF"
)

// JobState represents the lifecycle state of a job
type JobState string

const (
	JobStateOpen     JobState = "OPEN"
	JobStatePending  JobState = "PENDING"
	JobStateOngoing  JobState = "ONGOING"
	JobStateComplete JobState = "COMPLETE"
	JobStateFailed   JobState = "FAILED"
	JobStateCanceled JobState = "CANCELED"
)

// Terminal reports whether no further transitions may leave the state.
func (s JobState) Terminal() bool {
	return s == JobStateComplete || s == JobStateFailed || s == JobStateCanceled
}

// Live reports whether the job still occupies resources (OPEN, PENDING or
// ONGOING).
func (s JobState) Live() bool {
	return !s.Terminal()
}

// JobUpdateStatus is the outcome string a robot reports for its current job
type JobUpdateStatus string

const (
	JobUpdateSuccess  JobUpdateStatus = "Success"
	JobUpdateFailure  JobUpdateStatus = "Failure"
	JobUpdateRecovery JobUpdateStatus = "Recovery"
	JobUpdateOngoing  JobUpdateStatus = "Ongoing"
)

// BookingStatus is the charging_session_status enum of the shared database.
// External writers use inconsistent casing, so comparisons go through Is.
type BookingStatus string

const (
	BookingStatusBooked      BookingStatus = "booked"
	BookingStatusCheckedIn   BookingStatus = "checked_in"
	BookingStatusPending     BookingStatus = "pending"
	BookingStatusChargingBEV BookingStatus = "charging_BEV"
	BookingStatusReady       BookingStatus = "ready"
	BookingStatusCanceled    BookingStatus = "canceled"
	BookingStatusNoShow      BookingStatus = "no_show"
)

// Is compares two statuses ignoring case.
func (s BookingStatus) Is(other BookingStatus) bool {
	return strings.EqualFold(string(s), string(other))
}

// Booking is the planner's snapshot of one orders_in row
type Booking struct {
	ID                 int64
	Status             BookingStatus
	LastChange         time.Time
	PlannedDropTime    time.Time
	PlannedLocation    string
	PlannedPluginTime  time.Duration
	PlannedPickupTime  time.Time
	SlotPlanned        string
	PortLocation       string
	ActualDropTime     time.Time
	ActualLocation     string
	ActualPluginTime   time.Duration
	ActualPickupTime   time.Time
	ActualDropSOC      float64
	ActualTargetSOC    float64
	CreatedAt          time.Time
	CompletedAt        time.Time
}

// ChargeRequest returns the state-of-charge delta the customer asked for.
func (b *Booking) ChargeRequest() float64 {
	return b.ActualTargetSOC - b.ActualDropSOC
}

// Equal reports value equality of the reconciled snapshot. The reconciler
// diffs whole snapshots instead of trusting a last_change watermark so that
// updates landing within the same second are not lost. CompletedAt is
// excluded: it is written by the planner, not sourced from the live row.
func (b *Booking) Equal(o *Booking) bool {
	if b == nil || o == nil {
		return b == o
	}
	return b.ID == o.ID &&
		b.Status == o.Status &&
		b.LastChange.Equal(o.LastChange) &&
		b.PlannedDropTime.Equal(o.PlannedDropTime) &&
		b.PlannedLocation == o.PlannedLocation &&
		b.PlannedPluginTime == o.PlannedPluginTime &&
		b.PlannedPickupTime.Equal(o.PlannedPickupTime) &&
		b.SlotPlanned == o.SlotPlanned &&
		b.PortLocation == o.PortLocation &&
		b.ActualDropTime.Equal(o.ActualDropTime) &&
		b.ActualLocation == o.ActualLocation &&
		b.ActualPluginTime == o.ActualPluginTime &&
		b.ActualPickupTime.Equal(o.ActualPickupTime) &&
		b.ActualDropSOC == o.ActualDropSOC &&
		b.ActualTargetSOC == o.ActualTargetSOC &&
		b.CreatedAt.Equal(o.CreatedAt)
}

// PlugInState tracks the handshake of one booking from charger delivery to
// confirmed power exchange.
type PlugInState int

const (
	PlugInBringCharger PlugInState = iota + 1
	PlugInRobotReady
	PlugInBEVPending
	PlugInPlugIn
	PlugInSuccess
)

func (s PlugInState) String() string {
	switch s {
	case PlugInBringCharger:
		return "BRING_CHARGER"
	case PlugInRobotReady:
		return "ROBOT_READY2PLUG"
	case PlugInBEVPending:
		return "BEV_PENDING"
	case PlugInPlugIn:
		return "PLUG_IN"
	case PlugInSuccess:
		return "SUCCESS"
	}
	return fmt.Sprintf("PlugInState(%d)", int(s))
}

// ChargerCommand is a battery-side signal the planner reacts to
type ChargerCommand int

const (
	CommandStartCharging ChargerCommand = iota + 1
	CommandStartRecharging
	CommandStopRecharging
	CommandRetrieveCharger
	CommandBookingFulfilled
)

func (c ChargerCommand) String() string {
	switch c {
	case CommandStartCharging:
		return "START_CHARGING"
	case CommandStartRecharging:
		return "START_RECHARGING"
	case CommandStopRecharging:
		return "STOP_RECHARGING"
	case CommandRetrieveCharger:
		return "RETRIEVE_CHARGER"
	case CommandBookingFulfilled:
		return "BOOKING_FULFILLED"
	}
	return fmt.Sprintf("ChargerCommand(%d)", int(c))
}

// JobDetails is the payload a robot receives when fetching its next job.
// Empty strings mean "no job".
type JobDetails struct {
	JobID         uint64
	JobType       string
	ChargingType  string
	RobotName     string
	Cart          string
	SourceStation string
	TargetStation string
}

// InvariantError reports a violated planner invariant. The planner commits
// the running tick transaction so partial progress stays durable, then the
// process terminates for external supervision to restart it.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "invariant violated: " + e.Msg
}

// Invariantf builds an InvariantError from a format string.
func Invariantf(format string, args ...any) error {
	return &InvariantError{Msg: fmt.Sprintf(format, args...)}
}

// IsInvariant reports whether err wraps an InvariantError.
func IsInvariant(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}
