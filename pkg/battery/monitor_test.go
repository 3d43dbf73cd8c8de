package battery

import (
	"context"
	"testing"
	"time"

	"github.com/chargepal/chargepald/pkg/livestore"
	"github.com/chargepal/chargepald/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLiveStore(t *testing.T) *livestore.Store {
	t.Helper()
	store, err := livestore.Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMonitorReportsChanges(t *testing.T) {
	store := newTestLiveStore(t)
	monitor := NewMonitor(store)
	ctx := context.Background()

	require.NoError(t, store.UpdateBattery(ctx, livestore.TableBatteryLive, "BAT_1", "State_bat_mod", "standby"))
	require.NoError(t, store.UpdateBattery(ctx, livestore.TableBatteryLive, "BAT_2", "State_bat_mod", "BAT_2_charging"))

	changes, err := monitor.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "BAT_1", changes[0].Cart)
	assert.Equal(t, "standby", changes[0].State)
	assert.Equal(t, "BAT_2", changes[1].Cart)

	// Nothing written since: no changes.
	changes, err = monitor.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, changes)

	// Only the rewritten cart surfaces again.
	require.NoError(t, store.UpdateBattery(ctx, livestore.TableBatteryLive, "BAT_1", "State_bat_mod", "BAT_1_recharging"))
	changes, err = monitor.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "BAT_1", changes[0].Cart)
	assert.Equal(t, "standby", changes[0].Previous)
	assert.Equal(t, "BAT_1_recharging", changes[0].State)
}

func TestMonitorIgnoresRewriteOfSameValue(t *testing.T) {
	store := newTestLiveStore(t)
	monitor := NewMonitor(store)
	ctx := context.Background()

	require.NoError(t, store.UpdateBattery(ctx, livestore.TableBatteryLive, "BAT_1", "State_bat_mod", "standby"))
	_, err := monitor.Poll(ctx)
	require.NoError(t, err)

	// The bridge touches last_change without changing the text.
	require.NoError(t, store.UpdateBattery(ctx, livestore.TableBatteryLive, "BAT_1", "State_bat_mod", "standby"))
	changes, err := monitor.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestStateChangeCommands(t *testing.T) {
	cases := []struct {
		name     string
		previous string
		state    string
		want     []types.ChargerCommand
	}{
		{"start recharging", "standby", "BAT_1_recharging", []types.ChargerCommand{types.CommandStartRecharging}},
		{"stop recharging", "BAT_1_recharging", "standby", []types.ChargerCommand{types.CommandStopRecharging}},
		{"start charging", "standby", "BAT_1_charging", []types.ChargerCommand{types.CommandStartCharging}},
		{"charging to recharging", "BAT_1_charging", "BAT_1_recharging", []types.ChargerCommand{types.CommandStartRecharging}},
		{"unrelated text", "standby", "batok", nil},
		{"first observation", "", "standby", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			change := StateChange{Cart: "BAT_1", Previous: tc.previous, State: tc.state}
			assert.Equal(t, tc.want, change.Commands())
		})
	}
}

func TestMonitorWatermarkSkipsOldRows(t *testing.T) {
	store := newTestLiveStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpdateBattery(ctx, livestore.TableBatteryLive, "BAT_1", "State_bat_mod", "standby"))

	monitor := NewMonitor(store)
	monitor.last = time.Now().Add(time.Hour)

	changes, err := monitor.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, changes, "rows older than the watermark are not re-read")
}
