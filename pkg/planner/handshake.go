package planner

import (
	"context"
	"strconv"
	"sync"

	"github.com/chargepal/chargepald/pkg/events"
	"github.com/chargepal/chargepald/pkg/planstore"
	"github.com/chargepal/chargepald/pkg/types"
)

// plugInStates tracks the plug-in handshake per booking. The tick loop
// writes it when bookings and jobs move; robots advance it through the
// handshake RPC. One mutex covers both sides.
type plugInStates struct {
	mu     sync.Mutex
	states map[int64]types.PlugInState
}

func newPlugInStates() *plugInStates {
	return &plugInStates{states: make(map[int64]types.PlugInState)}
}

func (p *plugInStates) get(id int64) (types.PlugInState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.states[id]
	return state, ok
}

func (p *plugInStates) set(id int64, state types.PlugInState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[id] = state
}

func (p *plugInStates) clear(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.states, id)
}

// advance moves the handshake one step if the current state allows it and
// returns the state after the call. Both checks happen under one lock so
// two robots hammering the handshake cannot double-advance.
func (p *plugInStates) advance(id int64) (types.PlugInState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.states[id] {
	case types.PlugInBringCharger:
		p.states[id] = types.PlugInRobotReady
		return types.PlugInRobotReady, true
	case types.PlugInBEVPending:
		p.states[id] = types.PlugInPlugIn
		return types.PlugInPlugIn, true
	}
	return p.states[id], false
}

// preparedJobs holds job details readied by the tick for robots to fetch
type preparedJobs struct {
	mu   sync.Mutex
	jobs map[string]types.JobDetails
}

func newPreparedJobs() *preparedJobs {
	return &preparedJobs{jobs: make(map[string]types.JobDetails)}
}

func (p *preparedJobs) put(robot string, details types.JobDetails) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs[robot] = details
}

func (p *preparedJobs) pop(robot string) (types.JobDetails, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	details, ok := p.jobs[robot]
	if ok {
		delete(p.jobs, robot)
	}
	return details, ok
}

// dropJob removes a prepared entry if it references the given job, so a
// robot cannot fetch work that was canceled after preparation.
func (p *preparedJobs) dropJob(robot string, jobID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if details, ok := p.jobs[robot]; ok && details.JobID == jobID {
		delete(p.jobs, robot)
	}
}

// HandshakePlugIn advances the plug-in handshake for the robot's current
// booking. The first call after charger delivery acknowledges the robot as
// ready to plug and publishes that to the live database; once the vehicle
// side reports pending, the next call tells the robot to plug in by
// returning true. Any other state answers false and changes nothing.
func (p *Planner) HandshakePlugIn(ctx context.Context, robotName string) bool {
	var bookingID int64
	err := p.plans.View(func(txn *planstore.Txn) error {
		job, err := txn.CurrentJob(robotName)
		if err != nil {
			return err
		}
		if job != nil {
			bookingID = job.BookingID
		}
		return nil
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("robot", robotName).Msg("Handshake lookup failed")
		return false
	}
	if bookingID == 0 {
		return false
	}

	state, advanced := p.plugins.advance(bookingID)
	if !advanced {
		return false
	}

	p.emit(events.EventHandshakeStep, "Plug-in handshake advanced", map[string]string{
		"robot":   robotName,
		"booking": strconv.FormatInt(bookingID, 10),
		"state":   state.String(),
	})

	switch state {
	case types.PlugInRobotReady:
		if err := p.live.UpdateSessionStatus(ctx, bookingID, types.BookingStatusPending); err != nil {
			p.logger.Warn().Err(err).Int64("booking", bookingID).Msg("Failed to push pending status")
		}
		p.logger.Debug().Str("robot", robotName).Int64("booking", bookingID).
			Msg("Robot ready to plug")
		return false
	case types.PlugInPlugIn:
		return true
	}
	return false
}
