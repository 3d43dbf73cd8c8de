package livestore

import (
	"context"
	"testing"
	"time"

	"github.com/chargepal/chargepald/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenEmbeddedOnly(t *testing.T) {
	store := newTestStore(t)
	assert.False(t, store.HasPrimary())
	require.NoError(t, store.Ping(context.Background()))
	assert.NotEmpty(t, store.FilePath())
}

func TestEnvInfo(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutEnvInfo(ctx, EnvRobots, []string{"ChargePal1", "ChargePal2"}))
	require.NoError(t, store.PutEnvInfo(ctx, EnvBCS, []string{"BCS_1"}))

	infos, err := store.FetchEnvInfos(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ChargePal1", "ChargePal2"}, infos[EnvRobots])
	assert.Equal(t, []string{"BCS_1"}, infos[EnvBCS])

	count, err := store.FetchEnvCount(ctx, EnvRobots)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.FetchEnvCount(ctx, EnvADS)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "missing row counts as zero")

	// Overwrite keeps one row per name.
	require.NoError(t, store.PutEnvInfo(ctx, EnvRobots, []string{"ChargePal1"}))
	count, err = store.FetchEnvCount(ctx, EnvRobots)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPushTableAndFetch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rows := [][]string{
		{"ChargePal1", "RBS_1", "", "", "", "", "100.0", "0"},
		{"ChargePal2", "ADS_1", "", "BringChargerAction", "", "BAT_1", "87.5", "1"},
	}
	require.NoError(t, store.PushTable(ctx, "robot_info", rows))

	fetched, err := store.FetchByFirstHeader(ctx, "robot_info", RobotInfoHeaders)
	require.NoError(t, err)
	require.Len(t, fetched, 2)
	assert.Equal(t, "RBS_1", fetched["ChargePal1"]["robot_location"])
	assert.Equal(t, "BAT_1", fetched["ChargePal2"]["cart_on_robot"])
	assert.Equal(t, 87.5, ParseFloat(fetched["ChargePal2"]["robot_charge"]))

	// Pushing again replaces by key instead of duplicating.
	require.NoError(t, store.PushTable(ctx, "robot_info", [][]string{
		{"ChargePal1", "BCS_1", "", "", "", "", "99.0", "0"},
	}))
	fetched, err = store.FetchByFirstHeader(ctx, "robot_info", RobotInfoHeaders)
	require.NoError(t, err)
	require.Len(t, fetched, 2)
	assert.Equal(t, "BCS_1", fetched["ChargePal1"]["robot_location"])
}

func TestPushTableValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.PushTable(ctx, "orders_in", [][]string{{"1"}})
	require.Error(t, err, "only fleet mirror tables are writable")

	err = store.PushTable(ctx, "cart_info", [][]string{{"BAT_1", "BWS_1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "columns")
}

func TestUpdateLocation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PushTable(ctx, "robot_info", [][]string{
		{"ChargePal1", "RBS_1", "", "", "", "", "100.0", "0"},
	}))
	require.NoError(t, store.PushTable(ctx, "cart_info", [][]string{
		{"BAT_1", "BWS_1", "", "", "0"},
	}))

	require.NoError(t, store.UpdateLocation(ctx, "ADS_1", "ChargePal1", "BAT_1"))

	robots, err := store.FetchByFirstHeader(ctx, "robot_info", RobotInfoHeaders)
	require.NoError(t, err)
	assert.Equal(t, "ADS_1", robots["ChargePal1"]["robot_location"])

	carts, err := store.FetchByFirstHeader(ctx, "cart_info", CartInfoHeaders)
	require.NoError(t, err)
	assert.Equal(t, "ADS_1", carts["BAT_1"]["cart_location"])
}

func TestBookingLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.SeedBooking(ctx, "ADS_1", types.BookingStatusCheckedIn)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	second, err := store.SeedBooking(ctx, "ADS_2", types.BookingStatusBooked)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second)

	bookings, err := store.FetchUpdatedBookings(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, bookings, 2)

	first := bookings[0]
	assert.Equal(t, int64(1), first.ID)
	assert.True(t, first.Status.Is(types.BookingStatusCheckedIn))
	assert.Equal(t, "ADS_1", first.PlannedLocation)
	assert.Equal(t, "ADS_1", first.ActualLocation)
	assert.Equal(t, 20.0, first.ActualDropSOC)
	assert.Equal(t, 80.0, first.ActualTargetSOC)
	assert.Equal(t, 60.0, first.ChargeRequest())
	assert.InDelta(t, 195.87, first.PlannedPluginTime.Minutes(), 0.01)
	assert.False(t, first.PlannedDropTime.IsZero())
	assert.False(t, first.PlannedPickupTime.IsZero())

	require.NoError(t, store.UpdateSessionStatus(ctx, id, types.BookingStatusCanceled))
	statuses, err := store.SessionStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, string(types.BookingStatusCanceled), statuses[id])

	// A watermark excludes rows changed before it.
	future := time.Now().Add(time.Hour)
	updated, err := store.FetchUpdatedBookings(ctx, future)
	require.NoError(t, err)
	assert.Empty(t, updated)

	require.NoError(t, store.DeleteBookings(ctx))
	bookings, err = store.FetchUpdatedBookings(ctx, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, bookings)
}

func TestBatteryCells(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	value, err := store.ReadBatteryCell(ctx, TableBatteryLive, "BAT_1", "State_bat_mod")
	require.NoError(t, err)
	assert.Equal(t, "", value, "missing row reads as empty")

	require.NoError(t, store.UpdateBattery(ctx, TableBatteryLive, "BAT_1", "State_bat_mod", "standby"))
	value, err = store.ReadBatteryCell(ctx, TableBatteryLive, "BAT_1", "State_bat_mod")
	require.NoError(t, err)
	assert.Equal(t, "standby", value)

	require.NoError(t, store.UpdateBattery(ctx, TableBatteryLive, "BAT_1", "State_bat_mod", "BAT_1_recharging"))
	value, err = store.ReadBatteryCell(ctx, TableBatteryLive, "BAT_1", "State_bat_mod")
	require.NoError(t, err)
	assert.Equal(t, "BAT_1_recharging", value)

	_, err = store.ReadBatteryCell(ctx, TableBatteryLive, "BAT_1", "charging_session_id")
	require.Error(t, err, "column whitelist")
	err = store.UpdateBattery(ctx, "orders_in", "BAT_1", "State_bat_mod", "x")
	require.Error(t, err, "table whitelist")
}

func TestFetchBatteryStates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpdateBattery(ctx, TableBatteryLive, "BAT_1", "State_bat_mod", "BAT_1_charging"))
	require.NoError(t, store.UpdateBattery(ctx, TableBatteryLive, "BAT_2", "State_bat_mod", "standby"))

	states, err := store.FetchBatteryStates(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "BAT_1_charging", states["BAT_1"])
	assert.Equal(t, "standby", states["BAT_2"])

	states, err = store.FetchBatteryStates(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, states, "watermark filters untouched rows")
}

func TestDumpAndFileBytes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PushTable(ctx, "cart_info", [][]string{
		{"BAT_1", "BWS_1", "", "", "0"},
	}))
	_, err := store.SeedBooking(ctx, "ADS_1", types.BookingStatusCheckedIn)
	require.NoError(t, err)

	dumps, err := store.Dump(ctx)
	require.NoError(t, err)

	byName := make(map[string]TableDump)
	for _, dump := range dumps {
		byName[dump.Name] = dump
	}
	require.Contains(t, byName, "cart_info")
	require.Contains(t, byName, "orders_in")
	require.Len(t, byName["cart_info"].Rows, 1)
	assert.Equal(t, "BAT_1", byName["cart_info"].Rows[0].Values[0])
	assert.NotZero(t, byName["cart_info"].Rows[0].RowID)

	data, err := store.FileBytes(ctx)
	require.NoError(t, err)
	assert.Greater(t, len(data), 16)
	assert.Equal(t, "SQLite format 3", string(data[:15]))
}
