/*
Package types defines the core data structures used throughout the ChargePal
fleet controller.

This package contains the domain model shared by every other package: robots,
battery carts, stations, jobs, bookings and the enumerations that drive the
planner's state machines. It has no dependencies beyond the standard library
and carries no behavior except equality, classification and formatting
helpers.

# Architecture

The types package is the foundation of the controller's data model. It
defines:

  - Fleet entities (Robot, Cart, Station, Distance)
  - Work units (Job, JobType, JobState)
  - Customer sessions (Booking, BookingStatus)
  - The plug-in handshake progression (PlugInState)
  - Battery-side signals (ChargerCommand)
  - The robot-facing job payload (JobDetails)
  - The planner's failure mode (InvariantError)

All entity types are plain structs serialized as JSON into the planning
store. Nullable references are encoded as zero values: an empty string means
"no station/cart/robot", a zero time means "not set", booking id 0 and job
id 0 mean "none".

# State Machines

Jobs follow:

	OPEN ──(assign)──► PENDING ──(fetch)──► ONGOING ──(Success)──► COMPLETE
	                                                ├──(Failure)──► FAILED
	OPEN/PENDING/ONGOING ──(booking canceled)──► CANCELED

Bookings follow the shared-database enum. The subset the planner actively
drives:

	checked_in ──(job created)──► booked ("scheduled")
	checked_in ──(handshake step 1)──► pending
	pending ──(external)──► charging_BEV ──(external)──► ready
	any ──(external)──► canceled

The plug-in handshake advances BRING_CHARGER → ROBOT_READY2PLUG →
BEV_PENDING → PLUG_IN → SUCCESS; PlugInState is ordered so the progression
can be compared.

# Enumeration Pattern

Enums persisted or exchanged over the wire are typed string constants
(JobType, JobState, BookingStatus, JobUpdateStatus). BookingStatus values
written by external producers arrive with inconsistent casing, so
comparisons use BookingStatus.Is rather than ==. Purely in-memory
progressions (PlugInState, ChargerCommand) are typed integers with String
methods for logging.

# Invariants

The planner asserts, at every state change:

  - at most one currently-assigned job per robot
  - an available cart has no booking binding
  - a station reservation is exclusive to one cart
  - terminal jobs are never currently assigned

Violations surface as *InvariantError. They are not recoverable: the running
tick transaction is committed so partial progress stays visible to
monitoring, and the process exits.

# Integration Points

  - pkg/planstore persists these types as JSON in bbolt buckets
  - pkg/reconciler builds Booking snapshots and diffs them with Equal
  - pkg/planner mutates entities under its tick transaction
  - pkg/api converts JobDetails and status strings to wire messages
*/
package types
