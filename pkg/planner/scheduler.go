package planner

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/chargepal/chargepald/pkg/events"
	"github.com/chargepal/chargepald/pkg/planstore"
	"github.com/chargepal/chargepald/pkg/types"
)

// popNearestCart returns the available cart nearest to location that can
// deliver the requested charge, marking it unavailable. Nil when no cart
// qualifies.
func (p *Planner) popNearestCart(txn *planstore.Txn, location string, charge float64) (*types.Cart, error) {
	carts, err := txn.AvailableCarts()
	if err != nil {
		return nil, err
	}

	var best *types.Cart
	bestDistance := math.Inf(1)
	for _, cart := range carts {
		if cart.Charge < charge {
			continue
		}
		distance, err := txn.Distance(cart.Location, location)
		if err != nil {
			return nil, err
		}
		if distance < bestDistance {
			best = cart
			bestDistance = distance
		}
	}
	if best != nil {
		best.Available = false
		if err := txn.PutCart(best); err != nil {
			return nil, err
		}
	}
	return best, nil
}

// popNearestRobot returns the available robot nearest to location, marking
// it unavailable. Nil when no robot is available.
func (p *Planner) popNearestRobot(txn *planstore.Txn, location string) (*types.Robot, error) {
	robots, err := txn.AvailableRobots()
	if err != nil {
		return nil, err
	}

	var best *types.Robot
	bestDistance := math.Inf(1)
	for _, robot := range robots {
		distance, err := txn.Distance(robot.Location, location)
		if err != nil {
			return nil, err
		}
		if distance < bestDistance {
			best = robot
			bestDistance = distance
		}
	}
	if best != nil {
		best.Available = false
		if err := txn.PutRobot(best); err != nil {
			return nil, err
		}
	}
	return best, nil
}

// popNearestChargingStation returns the nearest unoccupied battery
// charging station to location, "" when every one is taken
func (p *Planner) popNearestChargingStation(txn *planstore.Txn, location string) (string, error) {
	stations, err := txn.Stations()
	if err != nil {
		return "", err
	}

	best := ""
	bestDistance := math.Inf(1)
	for _, station := range stations {
		if station.Kind() != types.PrefixBCS {
			continue
		}
		occupied, err := txn.StationOccupied(station.Name)
		if err != nil {
			return "", err
		}
		if occupied {
			continue
		}
		distance, err := txn.Distance(station.Name, location)
		if err != nil {
			return "", err
		}
		if distance < bestDistance {
			best = station.Name
			bestDistance = distance
		}
	}
	return best, nil
}

// hasChargingStation reports whether the site has any battery charging
// station at all, occupied or not
func hasChargingStation(txn *planstore.Txn) (bool, error) {
	stations, err := txn.Stations()
	if err != nil {
		return false, err
	}
	for _, station := range stations {
		if station.Kind() == types.PrefixBCS {
			return true, nil
		}
	}
	return false, nil
}

// assignJob moves an open job onto a robot that was popped from the
// available pool. The robot must not hold another assigned job.
func (p *Planner) assignJob(txn *planstore.Txn, job *types.Job, robot *types.Robot) error {
	if job.State != types.JobStateOpen {
		return types.Invariantf("job %d is %s, not OPEN", job.ID, job.State)
	}
	current, err := txn.CurrentJob(robot.Name)
	if err != nil {
		return err
	}
	if current != nil {
		return types.Invariantf("robot %s already has job %d assigned", robot.Name, current.ID)
	}

	job.State = types.JobStatePending
	job.CurrentlyAssigned = true
	job.RobotName = robot.Name
	robot.CurrentJobID = job.ID
	if err := txn.PutRobot(robot); err != nil {
		return err
	}
	p.emit(events.EventJobAssigned, fmt.Sprintf("%s job %d assigned to %s", job.Type, job.ID, robot.Name), map[string]string{
		"job":   strconv.FormatUint(job.ID, 10),
		"type":  string(job.Type),
		"robot": robot.Name,
	})
	p.logger.Debug().
		Uint64("job", job.ID).
		Str("type", string(job.Type)).
		Str("robot", robot.Name).
		Msg("Job assigned")
	return nil
}

// scheduleJobs binds open jobs to robots, carts, and stations in job
// creation order, then sends every remaining idle robot that is away from
// its base home to recharge. Assigned jobs are never preempted.
func (p *Planner) scheduleJobs(ctx context.Context, txn *planstore.Txn) error {
	open, err := txn.JobsInState(types.JobStateOpen)
	if err != nil {
		return err
	}

	for _, job := range open {
		available, err := txn.AvailableRobots()
		if err != nil {
			return err
		}
		if len(available) == 0 {
			break
		}

		switch job.Type {
		case types.JobTypeBringCharger:
			err = p.scheduleBringCharger(txn, job)
		case types.JobTypeRetrieveCharger:
			err = p.scheduleRetrieveCharger(ctx, txn, job)
		case types.JobTypeRechargeCharger, types.JobTypeStowCharger:
			err = p.scheduleDirectMove(ctx, txn, job)
		default:
			err = types.Invariantf("open job %d has unschedulable type %s", job.ID, job.Type)
		}
		if err != nil {
			return err
		}
	}

	return p.scheduleSelfRecharges(txn)
}

// scheduleBringCharger binds a cart and a robot to a charger delivery.
// The job stays open when the target is still occupied or no cart can
// deliver the requested charge.
func (p *Planner) scheduleBringCharger(txn *planstore.Txn, job *types.Job) error {
	if job.BookingID == 0 || job.TargetStation == "" {
		return types.Invariantf("bring job %d lacks booking or target", job.ID)
	}

	occupied, err := txn.StationOccupied(job.TargetStation)
	if err != nil {
		return err
	}
	if occupied {
		return nil
	}

	booking, err := txn.Booking(job.BookingID)
	if err != nil {
		return err
	}
	if booking == nil {
		return types.Invariantf("bring job %d references unknown booking %d", job.ID, job.BookingID)
	}

	// Nearest cart to the vehicle to keep transports short.
	cart, err := p.popNearestCart(txn, job.TargetStation, booking.ChargeRequest())
	if err != nil || cart == nil {
		return err
	}
	if cart.BookingID != 0 {
		return types.Invariantf("cart %s is already bound to booking %d", cart.Name, cart.BookingID)
	}

	robot, err := p.popNearestRobot(txn, cart.Location)
	if err != nil {
		return err
	}
	if robot == nil {
		cart.Available = true
		return txn.PutCart(cart)
	}

	if err := p.assignJob(txn, job, robot); err != nil {
		return err
	}
	job.CartName = cart.Name
	job.SourceStation = cart.Location

	cart.BookingID = job.BookingID
	if err := txn.PutCart(cart); err != nil {
		return err
	}

	target, err := txn.Station(job.TargetStation)
	if err != nil {
		return err
	}
	if target != nil {
		target.Available = false
		if err := txn.PutStation(target); err != nil {
			return err
		}
	}

	p.plugins.set(job.BookingID, types.PlugInBringCharger)
	return txn.PutJob(job)
}

// scheduleRetrieveCharger picks up a cart whose booking finished and
// upgrades the job in place: to a recharge when a charging station is
// free, otherwise to a stow at a waiting station. Downstream code keys on
// the assigned job's type, so the upgrade must happen before the robot
// fetches it.
func (p *Planner) scheduleRetrieveCharger(ctx context.Context, txn *planstore.Txn, job *types.Job) error {
	if job.CartName == "" || job.SourceStation == "" {
		return types.Invariantf("retrieve job %d lacks cart or source", job.ID)
	}

	cart, err := txn.Cart(job.CartName)
	if err != nil {
		return err
	}
	if cart == nil {
		return types.Invariantf("retrieve job %d references unknown cart %s", job.ID, job.CartName)
	}

	robot, err := p.popNearestRobot(txn, job.SourceStation)
	if err != nil {
		return err
	}
	if robot == nil {
		return types.Invariantf("retrieve job %d found no robot despite availability check", job.ID)
	}

	target, err := p.popNearestChargingStation(txn, cart.Location)
	if err != nil {
		return err
	}
	if target == "" {
		target, err = p.picker.SearchFreeStation(ctx, robot.Name, types.PrefixBWS)
		if err != nil {
			return err
		}
	}
	if target == "" {
		// The robot stays popped; its next fetch attempt flips it back.
		p.logger.Warn().Uint64("job", job.ID).Msg("No station available for retrieved charger")
		return nil
	}

	if err := p.assignJob(txn, job, robot); err != nil {
		return err
	}

	switch {
	case strings.HasPrefix(target, types.PrefixBCS):
		job.Type = types.JobTypeRechargeCharger
		station, err := txn.Station(target)
		if err != nil {
			return err
		}
		if station == nil {
			return types.Invariantf("station not found: %s", target)
		}
		if station.Reservation != "" {
			return types.Invariantf("station %s is already reserved for %s", target, station.Reservation)
		}
		station.Reservation = job.CartName
		if err := txn.PutStation(station); err != nil {
			return err
		}
	case strings.HasPrefix(target, types.PrefixBWS):
		job.Type = types.JobTypeStowCharger
	default:
		return types.Invariantf("invalid retrieve target %s", target)
	}
	job.TargetStation = target
	return txn.PutJob(job)
}

// scheduleDirectMove handles stow and recharge jobs created outside the
// retrieve flow. A cart that has been claimed by a booking since the job
// was created no longer needs parking; such jobs cancel themselves.
func (p *Planner) scheduleDirectMove(ctx context.Context, txn *planstore.Txn, job *types.Job) error {
	if job.CartName == "" {
		return types.Invariantf("job %d lacks a cart", job.ID)
	}
	cart, err := txn.Cart(job.CartName)
	if err != nil {
		return err
	}
	if cart == nil {
		return types.Invariantf("job %d references unknown cart %s", job.ID, job.CartName)
	}
	if cart.BookingID != 0 {
		return p.cancelJob(txn, job, "cart claimed by booking")
	}
	if !cart.Available {
		return nil
	}

	source := job.SourceStation
	if source == "" {
		source = cart.Location
	}

	var robot *types.Robot
	target := ""
	if job.Type == types.JobTypeRechargeCharger {
		target, err = p.popNearestChargingStation(txn, source)
		if err != nil {
			return err
		}
		if target == "" {
			return nil
		}
		robot, err = p.popNearestRobot(txn, source)
		if err != nil {
			return err
		}
		if robot == nil {
			return types.Invariantf("job %d found no robot despite availability check", job.ID)
		}
		station, err := txn.Station(target)
		if err != nil {
			return err
		}
		if station == nil {
			return types.Invariantf("station not found: %s", target)
		}
		if station.Reservation != "" {
			return types.Invariantf("station %s is already reserved for %s", target, station.Reservation)
		}
		station.Reservation = job.CartName
		if err := txn.PutStation(station); err != nil {
			return err
		}
	} else {
		robot, err = p.popNearestRobot(txn, source)
		if err != nil {
			return err
		}
		if robot == nil {
			return types.Invariantf("job %d found no robot despite availability check", job.ID)
		}
		target, err = p.picker.SearchFreeStation(ctx, robot.Name, types.PrefixBWS)
		if err != nil {
			return err
		}
		if target == "" {
			p.logger.Warn().Uint64("job", job.ID).Msg("No waiting station available")
			return nil
		}
		station, err := txn.Station(target)
		if err != nil {
			return err
		}
		if station != nil {
			station.Available = false
			if err := txn.PutStation(station); err != nil {
				return err
			}
		}
	}

	if err := p.assignJob(txn, job, robot); err != nil {
		return err
	}
	job.TargetStation = target
	cart.Available = false
	if err := txn.PutCart(cart); err != nil {
		return err
	}
	return txn.PutJob(job)
}

// scheduleSelfRecharges creates a recharge job for every remaining idle
// robot that is not at its base station. The job is born assigned: the
// robot it belongs to is the robot it targets.
func (p *Planner) scheduleSelfRecharges(txn *planstore.Txn) error {
	robots, err := txn.AvailableRobots()
	if err != nil {
		return err
	}

	for _, robot := range robots {
		current, err := txn.CurrentJob(robot.Name)
		if err != nil {
			return err
		}
		if current != nil || strings.HasPrefix(robot.Location, types.PrefixRBS) {
			continue
		}
		pending, err := txn.HasPendingJob(robot.Name)
		if err != nil {
			return err
		}
		if pending {
			return types.Invariantf("robot %s already has a pending job", robot.Name)
		}

		job := &types.Job{
			Type:              types.JobTypeRechargeSelf,
			State:             types.JobStatePending,
			Schedule:          time.Now(),
			CurrentlyAssigned: true,
			RobotName:         robot.Name,
			TargetStation:     types.PrefixRBS + robotSuffix(robot.Name),
		}
		if err := p.createJob(txn, job); err != nil {
			return err
		}

		robot.Available = false
		robot.CurrentJobID = job.ID
		if err := txn.PutRobot(robot); err != nil {
			return err
		}
		p.emit(events.EventJobAssigned, fmt.Sprintf("%s job %d assigned to %s", job.Type, job.ID, robot.Name), map[string]string{
			"job":   strconv.FormatUint(job.ID, 10),
			"type":  string(job.Type),
			"robot": robot.Name,
		})
	}
	return nil
}

// robotSuffix returns the numeric tail of a robot name, so "ChargePal2"
// yields "2"
func robotSuffix(name string) string {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	return name[i:]
}
