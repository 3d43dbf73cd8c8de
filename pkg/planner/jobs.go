package planner

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chargepal/chargepald/pkg/battery"
	"github.com/chargepal/chargepald/pkg/events"
	"github.com/chargepal/chargepald/pkg/metrics"
	"github.com/chargepal/chargepald/pkg/planstore"
	"github.com/chargepal/chargepald/pkg/types"
)

// createJob persists a new job and records it in metrics and events
func (p *Planner) createJob(txn *planstore.Txn, job *types.Job) error {
	if err := txn.CreateJob(job); err != nil {
		return err
	}
	metrics.JobsCreated.WithLabelValues(string(job.Type)).Inc()
	p.emit(events.EventJobCreated, fmt.Sprintf("%s job %d created", job.Type, job.ID), map[string]string{
		"job":  strconv.FormatUint(job.ID, 10),
		"type": string(job.Type),
	})

	entry := p.logger.Info()
	if job.Type == types.JobTypeRechargeSelf {
		entry = p.logger.Debug()
	}
	entry.Uint64("job", job.ID).
		Str("type", string(job.Type)).
		Str("cart", job.CartName).
		Str("target", job.TargetStation).
		Msg("Job created")
	return nil
}

// cancelJob terminates a live job. Resources are released only when the
// job was assigned; an open job holds none yet.
func (p *Planner) cancelJob(txn *planstore.Txn, job *types.Job, reason string) error {
	wasAssigned := job.CurrentlyAssigned

	job.State = types.JobStateCanceled
	job.CurrentlyAssigned = false
	job.FinishedAt = time.Now()
	if err := txn.PutJob(job); err != nil {
		return err
	}

	if wasAssigned {
		if job.RobotName != "" {
			robot, err := txn.Robot(job.RobotName)
			if err != nil {
				return err
			}
			if robot != nil {
				robot.Available = true
				robot.CurrentJobID = 0
				if err := txn.PutRobot(robot); err != nil {
					return err
				}
			}
			p.prepared.dropJob(job.RobotName, job.ID)
		}
		if job.CartName != "" {
			cart, err := txn.Cart(job.CartName)
			if err != nil {
				return err
			}
			if cart != nil && (cart.BookingID == 0 || cart.BookingID == job.BookingID) {
				cart.Available = true
				cart.BookingID = 0
				if err := txn.PutCart(cart); err != nil {
					return err
				}
			}
		}
		if job.TargetStation != "" {
			station, err := txn.Station(job.TargetStation)
			if err != nil {
				return err
			}
			if station != nil {
				if job.CartName != "" && station.Reservation == job.CartName {
					station.Reservation = ""
				}
				station.Available = true
				if err := txn.PutStation(station); err != nil {
					return err
				}
			}
		}
	}

	metrics.JobsCanceled.WithLabelValues(string(job.Type)).Inc()
	p.emit(events.EventJobCanceled, fmt.Sprintf("%s job %d canceled", job.Type, job.ID), map[string]string{
		"job":    strconv.FormatUint(job.ID, 10),
		"type":   string(job.Type),
		"reason": reason,
	})
	p.logger.Info().Uint64("job", job.ID).Str("reason", reason).Msg("Job canceled")
	return nil
}

// handleUpdatedBooking reacts to one booking row that changed since the
// previous reconcile pass
func (p *Planner) handleUpdatedBooking(ctx context.Context, txn *planstore.Txn, bookingID int64) error {
	booking, err := txn.Booking(bookingID)
	if err != nil {
		return err
	}
	if booking == nil {
		return nil
	}

	p.logger.Debug().
		Int64("booking", bookingID).
		Str("status", string(booking.Status)).
		Msg("Booking changed")

	switch {
	case booking.Status.Is(types.BookingStatusCheckedIn):
		return p.scheduleBooking(ctx, txn, booking)
	case booking.Status.Is(types.BookingStatusPending):
		p.plugins.set(bookingID, types.PlugInBEVPending)
	case booking.Status.Is(types.BookingStatusReady):
		return p.fulfillBooking(ctx, txn, booking)
	case booking.Status.Is(types.BookingStatusCanceled):
		return p.cancelBookingJobs(txn, booking)
	}
	return nil
}

// adsFor maps a booking's drop location to its adapter station.
func adsFor(location string) (string, error) {
	if strings.HasPrefix(location, types.PrefixADS) {
		return location, nil
	}
	// TODO: remove the digit fallback once the parking area numbering
	// scheme is final.
	if location != "" {
		last := location[len(location)-1]
		if last >= '0' && last <= '9' {
			return types.PrefixADS + string(last), nil
		}
	}
	return "", fmt.Errorf("no adapter station mapped to %q", location)
}

// scheduleBooking opens a charger delivery for a vehicle that checked in.
// The booking is acknowledged by flipping its status to booked in both
// databases, which keeps a re-sent check-in from producing a second job.
func (p *Planner) scheduleBooking(ctx context.Context, txn *planstore.Txn, booking *types.Booking) error {
	jobs, err := txn.JobsForBooking(booking.ID)
	if err != nil {
		return err
	}
	for _, existing := range jobs {
		if existing.Type == types.JobTypeBringCharger && !existing.State.Terminal() {
			p.logger.Debug().
				Int64("booking", booking.ID).
				Uint64("job", existing.ID).
				Msg("Booking already has a delivery under way")
			return nil
		}
	}

	target, err := adsFor(booking.ActualLocation)
	if err != nil {
		p.logger.Warn().Err(err).Int64("booking", booking.ID).Msg("Cannot schedule booking")
		return nil
	}

	pickup := booking.ActualPickupTime
	if pickup.IsZero() {
		pickup = booking.ActualDropTime.Add(2 * time.Hour)
	}

	job := &types.Job{
		Type:          types.JobTypeBringCharger,
		State:         types.JobStateOpen,
		Schedule:      booking.ActualDropTime,
		Deadline:      pickup.Add(-booking.ActualPluginTime - p.config.RobotJobDuration),
		BookingID:     booking.ID,
		TargetStation: target,
		ChargingType:  booking.SlotPlanned,
		PortLocation:  booking.PortLocation,
	}
	if err := p.createJob(txn, job); err != nil {
		return err
	}

	booking.Status = types.BookingStatusBooked
	if err := txn.PutBooking(booking); err != nil {
		return err
	}
	if err := p.live.UpdateSessionStatus(ctx, booking.ID, types.BookingStatusBooked); err != nil {
		p.logger.Warn().Err(err).Int64("booking", booking.ID).Msg("Could not acknowledge booking")
	}

	p.emit(events.EventBookingScheduled, fmt.Sprintf("booking %d scheduled", booking.ID), map[string]string{
		"booking": strconv.FormatInt(booking.ID, 10),
		"job":     strconv.FormatUint(job.ID, 10),
		"target":  target,
	})
	return nil
}

// fulfillBooking stamps the completion time of a finished charging session
// and sends the delivered cart into the retrieve flow
func (p *Planner) fulfillBooking(ctx context.Context, txn *planstore.Txn, booking *types.Booking) error {
	if booking.CompletedAt.IsZero() {
		booking.CompletedAt = time.Now()
		if err := txn.PutBooking(booking); err != nil {
			return err
		}
	}

	cart, err := txn.CartForBooking(booking.ID)
	if err != nil {
		return err
	}
	if cart == nil {
		p.logger.Warn().Int64("booking", booking.ID).Msg("Booking finished with no cart bound")
		return nil
	}
	return p.handleChargerCommand(ctx, txn, cart, types.CommandBookingFulfilled)
}

// cancelBookingJobs terminates every live job serving a canceled booking
// and returns whatever the booking still holds to the free pool
func (p *Planner) cancelBookingJobs(txn *planstore.Txn, booking *types.Booking) error {
	jobs, err := txn.JobsForBooking(booking.ID)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if job.State.Terminal() {
			continue
		}
		if err := p.cancelJob(txn, job, "booking canceled"); err != nil {
			return err
		}
	}

	// Between delivery and retrieve the cart holds the binding alone.
	cart, err := txn.CartForBooking(booking.ID)
	if err != nil {
		return err
	}
	if cart != nil {
		cart.BookingID = 0
		cart.Available = true
		if err := txn.PutCart(cart); err != nil {
			return err
		}
	}

	p.plugins.clear(booking.ID)
	p.emit(events.EventBookingCanceled, fmt.Sprintf("booking %d canceled", booking.ID), map[string]string{
		"booking": strconv.FormatInt(booking.ID, 10),
	})
	return nil
}

// handleBatteryChange turns a cart battery state transition into charger
// commands
func (p *Planner) handleBatteryChange(ctx context.Context, txn *planstore.Txn, change battery.StateChange) error {
	cart, err := txn.Cart(change.Cart)
	if err != nil {
		return err
	}
	if cart == nil {
		p.logger.Debug().Str("cart", change.Cart).Msg("Battery state for unknown cart")
		return nil
	}

	for _, command := range change.Commands() {
		p.logger.Info().
			Str("cart", cart.Name).
			Str("command", command.String()).
			Msg("Charger command")
		metrics.BatteryCommandsTotal.WithLabelValues(command.String()).Inc()
		if err := p.handleChargerCommand(ctx, txn, cart, command); err != nil {
			return err
		}
	}
	return nil
}

// handleChargerCommand applies one charger lifecycle command to a cart
func (p *Planner) handleChargerCommand(ctx context.Context, txn *planstore.Txn, cart *types.Cart, command types.ChargerCommand) error {
	switch command {
	case types.CommandStartCharging, types.CommandStartRecharging:
		// Informational; the cart runs its own power electronics.
		return nil
	case types.CommandStopRecharging:
		if cart.Available {
			return types.Invariantf("cart %s was available while recharging", cart.Name)
		}
		cart.Available = true
		if err := txn.PutCart(cart); err != nil {
			return err
		}
		return p.stowForWaitingRecharge(txn, cart)
	case types.CommandRetrieveCharger, types.CommandBookingFulfilled:
		return p.createRetrieveJob(txn, cart)
	}
	return nil
}

// stowForWaitingRecharge moves a freshly recharged cart out of its
// charging station when another cart is waiting for one
func (p *Planner) stowForWaitingRecharge(txn *planstore.Txn, cart *types.Cart) error {
	open, err := txn.JobsInState(types.JobStateOpen)
	if err != nil {
		return err
	}
	waiting := false
	for _, job := range open {
		if job.Type == types.JobTypeRechargeCharger && job.CartName != cart.Name {
			waiting = true
			break
		}
	}
	if !waiting {
		return nil
	}

	live, err := txn.LiveJobForCart(cart.Name)
	if err != nil {
		return err
	}
	if live != nil {
		return nil
	}

	job := &types.Job{
		Type:          types.JobTypeStowCharger,
		State:         types.JobStateOpen,
		Schedule:      time.Now(),
		CartName:      cart.Name,
		SourceStation: cart.Location,
	}
	return p.createJob(txn, job)
}

// createRetrieveJob opens a retrieve for a cart whose charging session
// finished. The booking binding stays on the cart until the retrieve
// chain completes, which keeps the cart out of other bookings' reach.
func (p *Planner) createRetrieveJob(txn *planstore.Txn, cart *types.Cart) error {
	if cart.BookingID == 0 {
		return types.Invariantf("cart %s has no current booking", cart.Name)
	}

	live, err := txn.LiveJobForCart(cart.Name)
	if err != nil {
		return err
	}
	if live != nil {
		p.logger.Debug().
			Str("cart", cart.Name).
			Uint64("job", live.ID).
			Msg("Cart already has a live job")
		return nil
	}

	booking, err := txn.Booking(cart.BookingID)
	if err != nil {
		return err
	}
	if booking == nil {
		return types.Invariantf("cart %s bound to unknown booking %d", cart.Name, cart.BookingID)
	}

	job := &types.Job{
		Type:          types.JobTypeRetrieveCharger,
		State:         types.JobStateOpen,
		Schedule:      time.Now(),
		BookingID:     cart.BookingID,
		CartName:      cart.Name,
		SourceStation: booking.ActualLocation,
	}
	return p.createJob(txn, job)
}

// handleUpdateJob applies a robot's status report to its current job
func (p *Planner) handleUpdateJob(ctx context.Context, txn *planstore.Txn, robotName string, jobType types.JobType, status types.JobUpdateStatus) error {
	job, err := txn.CurrentJob(robotName)
	if err != nil {
		return err
	}
	if job == nil {
		p.logger.Warn().Str("robot", robotName).Msg("Robot without a current job sent a job update")
		return nil
	}

	p.logger.Info().
		Str("robot", robotName).
		Uint64("job", job.ID).
		Str("status", string(status)).
		Msg("Job update")

	switch status {
	case types.JobUpdateSuccess:
		return p.completeJob(ctx, txn, robotName, jobType, job)
	case types.JobUpdateFailure:
		return p.failJob(ctx, txn, robotName, jobType, job)
	case types.JobUpdateRecovery, types.JobUpdateOngoing:
		return nil
	}
	return types.Invariantf("unknown job status %q from %s", status, robotName)
}

// completeJob finishes a job the robot carried out, releases the stations
// involved, and pushes the new position to the live database
func (p *Planner) completeJob(ctx context.Context, txn *planstore.Txn, robotName string, jobType types.JobType, job *types.Job) error {
	if job.RobotName != robotName || job.TargetStation == "" {
		return types.Invariantf("job %d cannot complete: robot %q, target %q", job.ID, job.RobotName, job.TargetStation)
	}
	if jobType != job.Type {
		return types.Invariantf("%s reported %s but is assigned %s", robotName, jobType, job.Type)
	}

	job.State = types.JobStateComplete
	job.CurrentlyAssigned = false
	job.FinishedAt = time.Now()
	if err := txn.PutJob(job); err != nil {
		return err
	}

	// The slot the cart came from is free again.
	if job.SourceStation != "" {
		source, err := txn.Station(job.SourceStation)
		if err != nil {
			return err
		}
		if source != nil && !source.Available {
			source.Available = true
			if err := txn.PutStation(source); err != nil {
				return err
			}
		}
	}

	target, err := txn.Station(job.TargetStation)
	if err != nil {
		return err
	}
	if target != nil && target.Reservation != "" {
		if target.Reservation != job.CartName {
			return types.Invariantf("station %s was reserved for %s, not %s", target.Name, target.Reservation, job.CartName)
		}
		target.Reservation = ""
		if err := txn.PutStation(target); err != nil {
			return err
		}
	}

	robot, err := txn.Robot(robotName)
	if err != nil {
		return err
	}
	if robot != nil && robot.CurrentJobID == job.ID {
		robot.CurrentJobID = 0
		if err := txn.PutRobot(robot); err != nil {
			return err
		}
	}

	if err := p.live.UpdateLocation(ctx, job.TargetStation, robotName, job.CartName); err != nil {
		p.logger.Warn().Err(err).Uint64("job", job.ID).Msg("Could not push new location")
	}

	// A completed retrieve chain releases the booking binding; a delivery
	// keeps it for the retrieve that follows.
	if job.BookingID != 0 && job.Type != types.JobTypeBringCharger && job.CartName != "" {
		cart, err := txn.Cart(job.CartName)
		if err != nil {
			return err
		}
		if cart != nil && cart.BookingID == job.BookingID {
			cart.BookingID = 0
			if err := txn.PutCart(cart); err != nil {
				return err
			}
		}
	}

	switch job.Type {
	case types.JobTypeBringCharger:
		p.plugins.set(job.BookingID, types.PlugInSuccess)
	case types.JobTypeStowCharger:
		if err := p.finishStow(txn, job); err != nil {
			return err
		}
	}

	metrics.JobsCompleted.WithLabelValues(string(job.Type)).Inc()
	p.emit(events.EventJobCompleted, fmt.Sprintf("%s job %d completed", job.Type, job.ID), map[string]string{
		"job":   strconv.FormatUint(job.ID, 10),
		"type":  string(job.Type),
		"robot": robotName,
	})
	p.logger.Info().Uint64("job", job.ID).Str("robot", robotName).Msg("Job completed")
	return nil
}

// finishStow returns a parked cart to the pool and lines it up for a
// recharge when the site has charging stations
func (p *Planner) finishStow(txn *planstore.Txn, job *types.Job) error {
	cart, err := txn.Cart(job.CartName)
	if err != nil {
		return err
	}
	if cart == nil {
		return types.Invariantf("stowed cart %s not found", job.CartName)
	}
	if cart.Available {
		return types.Invariantf("cart %s was available while being stowed", cart.Name)
	}
	cart.Available = true
	if err := txn.PutCart(cart); err != nil {
		return err
	}

	hasBCS, err := hasChargingStation(txn)
	if err != nil {
		return err
	}
	if !hasBCS {
		return nil
	}
	live, err := txn.LiveJobForCart(cart.Name)
	if err != nil {
		return err
	}
	if live != nil {
		return nil
	}

	recharge := &types.Job{
		Type:          types.JobTypeRechargeCharger,
		State:         types.JobStateOpen,
		Schedule:      time.Now(),
		CartName:      cart.Name,
		SourceStation: job.TargetStation,
	}
	return p.createJob(txn, recharge)
}

// failJob records a failed job and untangles whatever it was holding so
// the work can be redone
func (p *Planner) failJob(ctx context.Context, txn *planstore.Txn, robotName string, jobType types.JobType, job *types.Job) error {
	if job.RobotName != robotName {
		return types.Invariantf("job %d belongs to %q, not %s", job.ID, job.RobotName, robotName)
	}
	if jobType != job.Type {
		return types.Invariantf("%s reported %s but is assigned %s", robotName, jobType, job.Type)
	}

	job.State = types.JobStateFailed
	job.CurrentlyAssigned = false
	job.FinishedAt = time.Now()
	if err := txn.PutJob(job); err != nil {
		return err
	}
	p.logger.Warn().Uint64("job", job.ID).Str("robot", robotName).Msg("Job failed")

	robot, err := txn.Robot(robotName)
	if err != nil {
		return err
	}
	if robot != nil && robot.CurrentJobID == job.ID {
		robot.CurrentJobID = 0
		if err := txn.PutRobot(robot); err != nil {
			return err
		}
	}

	if job.TargetStation != "" {
		station, err := txn.Station(job.TargetStation)
		if err != nil {
			return err
		}
		if station != nil && station.Reservation != "" {
			if station.Reservation != job.CartName {
				return types.Invariantf("station %s was reserved for %s, not %s", station.Name, station.Reservation, job.CartName)
			}
			station.Reservation = ""
			if err := txn.PutStation(station); err != nil {
				return err
			}
		}
	}

	if job.CartName != "" {
		if err := p.releaseFailedCart(ctx, txn, job); err != nil {
			return err
		}
	}

	metrics.JobsFailed.WithLabelValues(string(job.Type)).Inc()
	p.emit(events.EventJobFailed, fmt.Sprintf("%s job %d failed", job.Type, job.ID), map[string]string{
		"job":   strconv.FormatUint(job.ID, 10),
		"type":  string(job.Type),
		"robot": robotName,
	})
	return nil
}

// releaseFailedCart decides what happens to the cart of a failed job. A
// failed delivery resets its booking to checked in so the next tick plans
// it again from scratch. A failed retrieve chain keeps the binding and
// opens a fresh retrieve, since the vehicle is gone and the cart must
// still come back. Carts of direct moves simply return to the pool.
func (p *Planner) releaseFailedCart(ctx context.Context, txn *planstore.Txn, job *types.Job) error {
	cart, err := txn.Cart(job.CartName)
	if err != nil {
		return err
	}
	if cart == nil {
		return types.Invariantf("failed job %d references unknown cart %s", job.ID, job.CartName)
	}

	bound := job.BookingID != 0 && cart.BookingID == job.BookingID

	if bound && job.Type == types.JobTypeBringCharger {
		booking, err := txn.Booking(job.BookingID)
		if err != nil {
			return err
		}
		if booking != nil && !booking.Status.Is(types.BookingStatusCheckedIn) {
			booking.Status = types.BookingStatusCheckedIn
			if err := txn.PutBooking(booking); err != nil {
				return err
			}
			if err := p.live.UpdateSessionStatus(ctx, job.BookingID, types.BookingStatusCheckedIn); err != nil {
				p.logger.Warn().Err(err).Int64("booking", job.BookingID).Msg("Could not reset booking")
			}
		}
		cart.BookingID = 0
		cart.Available = true
		return txn.PutCart(cart)
	}

	if bound {
		retry := &types.Job{
			Type:          types.JobTypeRetrieveCharger,
			State:         types.JobStateOpen,
			Schedule:      time.Now(),
			BookingID:     job.BookingID,
			CartName:      cart.Name,
			SourceStation: cart.Location,
		}
		return p.createJob(txn, retry)
	}

	cart.Available = true
	return txn.PutCart(cart)
}

// handleFetchJob promotes the robot's pending job to ongoing and stages
// its details for the reply to the next fetch. A robot that asks for work
// while holding nothing is evidently available again, whatever an earlier
// failure left behind.
func (p *Planner) handleFetchJob(ctx context.Context, txn *planstore.Txn, robotName string) error {
	job, err := txn.CurrentJob(robotName)
	if err != nil {
		return err
	}
	if job != nil && job.State == types.JobStatePending {
		job.State = types.JobStateOngoing
		job.StartedAt = time.Now()
		if err := txn.PutJob(job); err != nil {
			return err
		}
		p.prepared.put(robotName, types.JobDetails{
			JobID:         job.ID,
			JobType:       string(job.Type),
			ChargingType:  job.ChargingType,
			RobotName:     robotName,
			Cart:          job.CartName,
			SourceStation: job.SourceStation,
			TargetStation: job.TargetStation,
		})
		p.emit(events.EventJobOngoing, fmt.Sprintf("%s job %d started", job.Type, job.ID), map[string]string{
			"job":   strconv.FormatUint(job.ID, 10),
			"type":  string(job.Type),
			"robot": robotName,
		})
		p.logger.Info().
			Uint64("job", job.ID).
			Str("type", string(job.Type)).
			Str("robot", robotName).
			Msg("Job prepared")
		return nil
	}

	robot, err := txn.Robot(robotName)
	if err != nil {
		return err
	}
	if robot == nil {
		p.logger.Warn().Str("robot", robotName).Msg("Unknown robot fetched a job")
		return nil
	}
	if !robot.Available && job == nil {
		robot.Available = true
		robot.CurrentJobID = 0
		return txn.PutRobot(robot)
	}
	return nil
}
