package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/chargepal/chargepald/pkg/livestore"
	"github.com/chargepal/chargepald/pkg/planstore"
	"github.com/chargepal/chargepald/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStores(t *testing.T) (*livestore.Store, *planstore.Store) {
	t.Helper()
	dir := t.TempDir()

	live, err := livestore.Open(dir, nil)
	require.NoError(t, err)
	plans, err := planstore.Open(dir)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = live.Close()
		_ = plans.Close()
	})

	require.NoError(t, plans.Bootstrap(planstore.Seed{
		Robots:   map[string]string{"ChargePal1": "RBS_1"},
		Carts:    map[string]string{"BAT_1": "BWS_1"},
		Stations: []string{"ADS_1", "BCS_1", "BWS_1", "RBS_1"},
	}))
	return live, plans
}

func reconcileOnce(t *testing.T, r *Reconciler, plans *planstore.Store) *Result {
	t.Helper()
	txn, err := plans.Begin()
	require.NoError(t, err)
	result, err := r.Reconcile(context.Background(), txn)
	require.NoError(t, err)
	require.NoError(t, txn.Commit())
	return result
}

func TestReconcileCopiesRobotAttributes(t *testing.T) {
	live, plans := newTestStores(t)
	ctx := context.Background()

	// Planner-owned fields must survive the copy.
	txn, err := plans.Begin()
	require.NoError(t, err)
	robot, err := txn.Robot("ChargePal1")
	require.NoError(t, err)
	require.NotNil(t, robot)
	robot.CurrentJobID = 7
	robot.CartOnRobot = "BAT_1"
	require.NoError(t, txn.PutRobot(robot))
	require.NoError(t, txn.Commit())

	require.NoError(t, live.PushTable(ctx, livestore.TableRobotInfo, [][]string{
		{"ChargePal1", "ADS_1", "", "MoveTo_BCS_1", "NONE", "", "87.5", "2"},
	}))

	reconcileOnce(t, New(live), plans)

	robot, err = plans.GetRobot("ChargePal1")
	require.NoError(t, err)
	assert.Equal(t, "ADS_1", robot.Location)
	assert.Equal(t, "MoveTo_BCS_1", robot.OngoingAction)
	assert.Equal(t, "", robot.PreviousAction, "NONE reads as empty")
	assert.Equal(t, 87.5, robot.Charge)
	assert.Equal(t, 2, robot.ErrorCount)
	assert.Equal(t, uint64(7), robot.CurrentJobID)
	assert.Equal(t, "BAT_1", robot.CartOnRobot)
}

func TestReconcileCopiesCartLocation(t *testing.T) {
	live, plans := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, live.PushTable(ctx, livestore.TableCartInfo, [][]string{
		{"BAT_1", "ADS_1", "ChargePal1", "true", "0"},
	}))

	reconcileOnce(t, New(live), plans)

	txn, err := plans.Begin()
	require.NoError(t, err)
	defer func() { _ = txn.Rollback() }()
	cart, err := txn.Cart("BAT_1")
	require.NoError(t, err)
	require.NotNil(t, cart)
	assert.Equal(t, "ADS_1", cart.Location)
	assert.False(t, cart.Plugged, "plugged is not copied from cart_info")
}

func TestReconcileIgnoresUnknownNames(t *testing.T) {
	live, plans := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, live.PushTable(ctx, livestore.TableRobotInfo, [][]string{
		{"ChargePal9", "ADS_1", "", "", "", "", "100.0", "0"},
	}))
	require.NoError(t, live.PushTable(ctx, livestore.TableCartInfo, [][]string{
		{"BAT_9", "ADS_1", "", "false", "0"},
	}))

	reconcileOnce(t, New(live), plans)

	robots, err := plans.ListRobots()
	require.NoError(t, err)
	assert.Len(t, robots, 1)
	carts, err := plans.ListCarts()
	require.NoError(t, err)
	assert.Len(t, carts, 1)
}

func TestReconcileBookingLifecycle(t *testing.T) {
	live, plans := newTestStores(t)
	ctx := context.Background()

	id, err := live.SeedBooking(ctx, "ADS_1", types.BookingStatusCheckedIn)
	require.NoError(t, err)

	r := New(live)

	result := reconcileOnce(t, r, plans)
	require.Len(t, result.UpdatedBookings, 1)
	booking := result.UpdatedBookings[0]
	assert.Equal(t, id, booking.ID)
	assert.True(t, booking.Status.Is(types.BookingStatusCheckedIn))
	assert.Equal(t, "ADS_1", booking.PlannedLocation)

	stored, err := plans.GetBooking(id)
	require.NoError(t, err)
	createdAt := stored.CreatedAt
	assert.False(t, createdAt.IsZero())

	// Unchanged rows do not fire twice.
	result = reconcileOnce(t, r, plans)
	assert.Empty(t, result.UpdatedBookings)

	// A status change fires exactly one more update.
	require.NoError(t, live.UpdateSessionStatus(ctx, id, types.BookingStatusReady))
	result = reconcileOnce(t, r, plans)
	require.Len(t, result.UpdatedBookings, 1)
	assert.True(t, result.UpdatedBookings[0].Status.Is(types.BookingStatusReady))

	stored, err = plans.GetBooking(id)
	require.NoError(t, err)
	assert.True(t, stored.CreatedAt.Equal(createdAt), "creation time is written once")
}

func TestReconcilePreservesCompletionTime(t *testing.T) {
	live, plans := newTestStores(t)
	ctx := context.Background()

	id, err := live.SeedBooking(ctx, "ADS_1", types.BookingStatusCheckedIn)
	require.NoError(t, err)

	r := New(live)
	reconcileOnce(t, r, plans)

	txn, err := plans.Begin()
	require.NoError(t, err)
	stored, err := txn.Booking(id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	stored.CompletedAt = stored.CreatedAt.Add(time.Hour)
	require.NoError(t, txn.PutBooking(stored))
	require.NoError(t, txn.Commit())

	require.NoError(t, live.UpdateSessionStatus(ctx, id, types.BookingStatusReady))
	result := reconcileOnce(t, r, plans)
	require.Len(t, result.UpdatedBookings, 1)

	stored, err = plans.GetBooking(id)
	require.NoError(t, err)
	assert.False(t, stored.CompletedAt.IsZero(), "completion time is planner-owned")
}

func TestReconcileReportsBatteryChanges(t *testing.T) {
	live, plans := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, live.UpdateBattery(ctx, livestore.TableBatteryLive,
		"BAT_1", "State_bat_mod", "BAT_1_recharging"))

	r := New(live)
	result := reconcileOnce(t, r, plans)
	require.Len(t, result.BatteryChanges, 1)
	assert.Equal(t, "BAT_1", result.BatteryChanges[0].Cart)
	assert.Equal(t, "BAT_1_recharging", result.BatteryChanges[0].State)

	result = reconcileOnce(t, r, plans)
	assert.Empty(t, result.BatteryChanges)
}
