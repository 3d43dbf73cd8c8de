package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/chargepal/chargepald/pkg/battery"
	"github.com/chargepal/chargepald/pkg/livestore"
	"github.com/chargepal/chargepald/pkg/log"
	"github.com/chargepal/chargepald/pkg/planstore"
	"github.com/chargepal/chargepald/pkg/types"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// Result is what one reconcile pass observed in the live database.
type Result struct {
	UpdatedBookings []types.Booking
	BatteryChanges  []battery.StateChange
}

// Reconciler copies live fleet state into the plan database once per tick
// and reports which bookings and battery states changed since the last
// pass. It is driven by the planner and writes only through the planner's
// transaction.
type Reconciler struct {
	logger  zerolog.Logger
	live    *livestore.Store
	monitor *battery.Monitor

	// fetched holds the previous snapshot per booking id. Booking updates
	// are detected by value against this cache, never by last_change: the
	// timestamp has second resolution and two updates landing within the
	// same second would otherwise be collapsed into one.
	fetched map[int64]types.Booking
}

// New creates a reconciler reading from the given live store
func New(live *livestore.Store) *Reconciler {
	return &Reconciler{
		logger:  log.WithComponent("reconciler"),
		live:    live,
		monitor: battery.NewMonitor(live),
		fetched: make(map[int64]types.Booking),
	}
}

// Reconcile runs one pass inside the caller's transaction: robot
// attributes, cart locations, booking upserts, battery states. A live
// database failure is logged and aggregated, not fatal; whatever was
// copied before the failure stays in the transaction and plan state
// remains authoritative until the next successful pass.
func (r *Reconciler) Reconcile(ctx context.Context, txn *planstore.Txn) (*Result, error) {
	var errs *multierror.Error
	result := &Result{}

	if err := r.reconcileRobots(ctx, txn); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to reconcile robots")
		errs = multierror.Append(errs, err)
	}

	if err := r.reconcileCarts(ctx, txn); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to reconcile carts")
		errs = multierror.Append(errs, err)
	}

	updated, err := r.reconcileBookings(ctx, txn)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to reconcile bookings")
		errs = multierror.Append(errs, err)
	}
	result.UpdatedBookings = updated

	changes, err := r.monitor.Poll(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to poll battery states")
		errs = multierror.Append(errs, err)
	}
	result.BatteryChanges = changes

	return result, errs.ErrorOrNil()
}

// reconcileRobots copies the robot-reported attributes onto the plan rows.
// Job assignment and cart possession stay untouched: those belong to the
// planner, not the fleet.
func (r *Reconciler) reconcileRobots(ctx context.Context, txn *planstore.Txn) error {
	rows, err := r.live.FetchByFirstHeader(ctx, livestore.TableRobotInfo, livestore.RobotInfoHeaders)
	if err != nil {
		return fmt.Errorf("failed to fetch robot_info: %w", err)
	}

	for name, row := range rows {
		robot, err := txn.Robot(name)
		if err != nil {
			return err
		}
		if robot == nil {
			r.logger.Debug().Str("robot", name).Msg("Ignoring robot_info row for unknown robot")
			continue
		}

		robot.Location = row["robot_location"]
		robot.OngoingAction = normalized(row["ongoing_action"])
		robot.PreviousAction = normalized(row["previous_action"])
		robot.Charge = livestore.ParseFloat(row["robot_charge"])
		robot.ErrorCount = livestore.ParseInt(row["error_count"])

		if err := txn.PutRobot(robot); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) reconcileCarts(ctx context.Context, txn *planstore.Txn) error {
	rows, err := r.live.FetchByFirstHeader(ctx, livestore.TableCartInfo, livestore.CartInfoHeaders)
	if err != nil {
		return fmt.Errorf("failed to fetch cart_info: %w", err)
	}

	for name, row := range rows {
		cart, err := txn.Cart(name)
		if err != nil {
			return err
		}
		if cart == nil {
			r.logger.Debug().Str("cart", name).Msg("Ignoring cart_info row for unknown cart")
			continue
		}

		cart.Location = row["cart_location"]

		if err := txn.PutCart(cart); err != nil {
			return err
		}
	}
	return nil
}

// reconcileBookings upserts every orders_in row into the plan database and
// returns those whose snapshot differs from the previous pass. New bookings
// always count as updated. The creation time is written once, on first
// sight; later rows may carry a null there and must not erase it. The
// completion time is planner-owned and never sourced from the live row.
func (r *Reconciler) reconcileBookings(ctx context.Context, txn *planstore.Txn) ([]types.Booking, error) {
	bookings, err := r.live.FetchUpdatedBookings(ctx, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bookings: %w", err)
	}

	var updated []types.Booking
	for _, booking := range bookings {
		record := booking

		existing, err := txn.Booking(record.ID)
		if err != nil {
			return updated, err
		}
		if existing != nil {
			record.CreatedAt = existing.CreatedAt
			record.CompletedAt = existing.CompletedAt
		}

		if err := txn.PutBooking(&record); err != nil {
			return updated, err
		}

		last, seen := r.fetched[record.ID]
		if !seen || !last.Equal(&record) {
			r.fetched[record.ID] = record
			updated = append(updated, record)
			r.logger.Debug().
				Int64("booking", record.ID).
				Str("status", string(record.Status)).
				Msg("Booking changed")
		}
	}
	return updated, nil
}

// normalized maps the live database's null spellings to the empty string
func normalized(value string) string {
	if livestore.IsSQLNone(value) {
		return ""
	}
	return value
}
