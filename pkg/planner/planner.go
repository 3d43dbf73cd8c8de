package planner

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/chargepal/chargepald/pkg/events"
	"github.com/chargepal/chargepald/pkg/livestore"
	"github.com/chargepal/chargepald/pkg/log"
	"github.com/chargepal/chargepald/pkg/metrics"
	"github.com/chargepal/chargepald/pkg/planstore"
	"github.com/chargepal/chargepald/pkg/reconciler"
	"github.com/chargepal/chargepald/pkg/stations"
	"github.com/chargepal/chargepald/pkg/types"
)

// Config tunes the planning loop.
type Config struct {
	// UpdateInterval is the pause between planning passes.
	UpdateInterval time.Duration

	// RobotJobDuration estimates how long a robot needs for one transport.
	// It widens the deadline margin of charger deliveries.
	RobotJobDuration time.Duration
}

// DefaultConfig returns the planner settings used in production.
func DefaultConfig() Config {
	return Config{
		UpdateInterval:   time.Second,
		RobotJobDuration: time.Minute,
	}
}

// Planner owns the fleet state and advances it in single-writer ticks.
// Robot calls arriving between ticks are queued and applied inside the
// next tick's transaction, so every mutation of the plan database happens
// on one goroutine.
type Planner struct {
	logger     zerolog.Logger
	config     Config
	plans      *planstore.Store
	live       *livestore.Store
	reconciler *reconciler.Reconciler
	picker     *stations.Picker
	broker     *events.Broker
	queue      *RequestQueue
	plugins    *plugInStates
	prepared   *preparedJobs

	stopCh  chan struct{}
	doneCh  chan struct{}
	faultCh chan error
}

// New creates a planner over the given stores. The broker may be nil when
// nobody listens for events.
func New(plans *planstore.Store, live *livestore.Store, picker *stations.Picker, broker *events.Broker, config Config) *Planner {
	if config.UpdateInterval <= 0 {
		config.UpdateInterval = time.Second
	}
	if config.RobotJobDuration <= 0 {
		config.RobotJobDuration = time.Minute
	}
	return &Planner{
		logger:     log.WithComponent("planner"),
		config:     config,
		plans:      plans,
		live:       live,
		reconciler: reconciler.New(live),
		picker:     picker,
		broker:     broker,
		queue:      NewRequestQueue(),
		plugins:    newPlugInStates(),
		prepared:   newPreparedJobs(),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		faultCh:    make(chan error, 1),
	}
}

// Start launches the tick loop.
func (p *Planner) Start() {
	p.logger.Info().Dur("interval", p.config.UpdateInterval).Msg("Starting planner")
	go p.run()
}

// Stop halts the tick loop and waits for the current tick to finish.
func (p *Planner) Stop() {
	close(p.stopCh)
	<-p.doneCh
	p.logger.Info().Msg("Planner stopped")
}

// Fault delivers the invariant violation that terminated the tick loop.
// The channel stays silent as long as the planner is healthy.
func (p *Planner) Fault() <-chan error {
	return p.faultCh
}

func (p *Planner) run() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := p.Tick(context.Background())
			p.observeFleet()
			if err == nil {
				continue
			}
			if types.IsInvariant(err) {
				p.logger.Error().Err(err).Msg("Planner state corrupted, stopping")
				p.emit(events.EventPlannerFault, err.Error(), nil)
				p.faultCh <- err
				return
			}
			p.logger.Warn().Err(err).Msg("Tick failed")
		case <-p.stopCh:
			return
		}
	}
}

// Tick runs one full planning pass: sync state from the live database,
// react to booking and battery changes, bind open jobs to resources, and
// apply the queued robot requests. The transaction commits even when a
// handler faults, so the partial progress is still on disk for whoever
// inspects the wreck.
func (p *Planner) Tick(ctx context.Context) (err error) {
	timer := prometheus.NewTimer(metrics.TickDuration)
	defer timer.ObserveDuration()
	metrics.TicksTotal.Inc()

	txn, beginErr := p.plans.Begin()
	if beginErr != nil {
		return beginErr
	}
	defer func() {
		if commitErr := txn.Commit(); commitErr != nil && err == nil {
			err = commitErr
		}
	}()

	result, recErr := p.reconciler.Reconcile(ctx, txn)
	if recErr != nil {
		p.logger.Warn().Err(recErr).Msg("Reconcile incomplete")
	}

	for _, booking := range result.UpdatedBookings {
		if err := p.handleUpdatedBooking(ctx, txn, booking.ID); err != nil {
			return err
		}
	}
	for _, change := range result.BatteryChanges {
		if err := p.handleBatteryChange(ctx, txn, change); err != nil {
			return err
		}
	}

	if err := p.scheduleJobs(ctx, txn); err != nil {
		return err
	}

	for _, req := range p.queue.Drain() {
		if err := req.fn(ctx, txn); err != nil {
			p.logger.Error().Err(err).Str("request", req.name).Msg("Request failed")
			return err
		}
	}
	return nil
}

// FetchJob returns the job prepared for the robot by its previous call, or
// an empty job, and queues preparation of the next one. Giving out jobs one
// call behind keeps this safe to serve without touching the plan database.
func (p *Planner) FetchJob(robotName string) types.JobDetails {
	p.queue.Enqueue("fetch_job", func(ctx context.Context, txn *planstore.Txn) error {
		return p.handleFetchJob(ctx, txn, robotName)
	})

	if details, ok := p.prepared.pop(robotName); ok {
		p.logger.Debug().
			Str("robot", robotName).
			Uint64("job", details.JobID).
			Msg("Job handed out")
		return details
	}
	return types.JobDetails{RobotName: robotName}
}

// UpdateJob queues a robot's status report for its current job and reports
// whether the robot holds an assigned job right now.
func (p *Planner) UpdateJob(robotName string, jobType types.JobType, status types.JobUpdateStatus) bool {
	p.queue.Enqueue("update_job", func(ctx context.Context, txn *planstore.Txn) error {
		return p.handleUpdateJob(ctx, txn, robotName, jobType, status)
	})

	assigned := false
	if err := p.plans.View(func(txn *planstore.Txn) error {
		job, err := txn.CurrentJob(robotName)
		if err != nil {
			return err
		}
		assigned = job != nil
		return nil
	}); err != nil {
		p.logger.Warn().Err(err).Str("robot", robotName).Msg("Could not check current job")
	}
	return assigned
}

// ResetStationBlockers clears the robot's failure memory for one station
// prefix, making previously refused stations eligible again.
func (p *Planner) ResetStationBlockers(robotName, prefix string) {
	p.picker.ResetBlockers(robotName, prefix)
	p.logger.Debug().Str("robot", robotName).Str("prefix", prefix).Msg("Station blockers reset")
}

func (p *Planner) emit(eventType events.EventType, message string, metadata map[string]string) {
	if p.broker == nil {
		return
	}
	p.broker.Emit(eventType, message, metadata)
}

var (
	gaugeJobStates = []types.JobState{
		types.JobStateOpen,
		types.JobStatePending,
		types.JobStateOngoing,
		types.JobStateComplete,
		types.JobStateFailed,
		types.JobStateCanceled,
	}
	gaugeBookingStatuses = []types.BookingStatus{
		types.BookingStatusBooked,
		types.BookingStatusCheckedIn,
		types.BookingStatusPending,
		types.BookingStatusChargingBEV,
		types.BookingStatusReady,
		types.BookingStatusCanceled,
		types.BookingStatusNoShow,
	}
)

// observeFleet refreshes the fleet gauges from committed state. It runs
// outside the tick transaction and tolerates read errors silently; the
// next pass repairs the numbers.
func (p *Planner) observeFleet() {
	if robots, err := p.plans.ListRobots(); err == nil {
		available, busy := 0, 0
		for _, robot := range robots {
			if robot.Available {
				available++
			} else {
				busy++
			}
		}
		metrics.RobotsTotal.WithLabelValues("available").Set(float64(available))
		metrics.RobotsTotal.WithLabelValues("busy").Set(float64(busy))
	}

	if carts, err := p.plans.ListCarts(); err == nil {
		available, busy := 0, 0
		for _, cart := range carts {
			if cart.Available {
				available++
			} else {
				busy++
			}
		}
		metrics.CartsTotal.WithLabelValues("available").Set(float64(available))
		metrics.CartsTotal.WithLabelValues("busy").Set(float64(busy))
	}

	if jobs, err := p.plans.ListJobs(); err == nil {
		counts := make(map[types.JobState]int, len(gaugeJobStates))
		for _, job := range jobs {
			counts[job.State]++
		}
		for _, state := range gaugeJobStates {
			metrics.JobsTotal.WithLabelValues(string(state)).Set(float64(counts[state]))
		}
	}

	if bookings, err := p.plans.ListBookings(); err == nil {
		counts := make(map[types.BookingStatus]int, len(gaugeBookingStatuses))
		for _, booking := range bookings {
			for _, status := range gaugeBookingStatuses {
				if booking.Status.Is(status) {
					counts[status]++
					break
				}
			}
		}
		for _, status := range gaugeBookingStatuses {
			metrics.BookingsTotal.WithLabelValues(string(status)).Set(float64(counts[status]))
		}
	}

	if all, err := p.plans.ListStations(); err == nil {
		reserved := 0
		for _, station := range all {
			if station.Reservation != "" {
				reserved++
			}
		}
		metrics.StationsReserved.Set(float64(reserved))
	}
}
