package stations

import (
	"context"
	"testing"

	"github.com/chargepal/chargepald/pkg/livestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPicker(t *testing.T) (*Picker, *livestore.Store) {
	t.Helper()
	store, err := livestore.Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.PutEnvInfo(ctx, livestore.EnvBCS, []string{"BCS_1", "BCS_2"}))
	require.NoError(t, store.PutEnvInfo(ctx, livestore.EnvBWS, []string{"BWS_1", "BWS_2"}))
	require.NoError(t, store.PushTable(ctx, "robot_info", [][]string{
		{"ChargePal1", "ADS_1", "", "", "", "", "100.0", "0"},
	}))
	return NewPicker(store), store
}

func TestSearchPicksNearestFreeStation(t *testing.T) {
	picker, _ := newTestPicker(t)
	ctx := context.Background()

	// From ADS_1 the layout puts BCS_2 closer than BCS_1.
	station, err := picker.SearchFreeStation(ctx, "ChargePal1", "BCS_")
	require.NoError(t, err)
	assert.Equal(t, "BCS_2", station)
}

func TestSearchSkipsOccupiedStations(t *testing.T) {
	picker, store := newTestPicker(t)
	ctx := context.Background()

	require.NoError(t, store.PushTable(ctx, "cart_info", [][]string{
		{"BAT_1", "BCS_2", "", "", "0"},
	}))

	station, err := picker.SearchFreeStation(ctx, "ChargePal1", "BCS_")
	require.NoError(t, err)
	assert.Equal(t, "BCS_1", station, "cart on BCS_2 blocks it")
}

func TestSearchSeesStationsInsideActionText(t *testing.T) {
	picker, store := newTestPicker(t)
	ctx := context.Background()

	// Another robot is heading for BCS_2; the mention inside its action
	// text blocks the station.
	require.NoError(t, store.PushTable(ctx, "robot_info", [][]string{
		{"ChargePal1", "ADS_1", "", "", "", "", "100.0", "0"},
		{"ChargePal2", "ADS_2", "", "MoveTo_BCS_2", "", "", "95.0", "0"},
	}))

	station, err := picker.SearchFreeStation(ctx, "ChargePal1", "BCS_")
	require.NoError(t, err)
	assert.Equal(t, "BCS_1", station)
}

func TestBlockersAccumulateAndReset(t *testing.T) {
	picker, _ := newTestPicker(t)
	ctx := context.Background()

	first, err := picker.SearchFreeStation(ctx, "ChargePal1", "BCS_")
	require.NoError(t, err)
	assert.Equal(t, "BCS_2", first)

	second, err := picker.SearchFreeStation(ctx, "ChargePal1", "BCS_")
	require.NoError(t, err)
	assert.Equal(t, "BCS_1", second, "previous pick stays blocked")

	third, err := picker.SearchFreeStation(ctx, "ChargePal1", "BCS_")
	require.NoError(t, err)
	assert.Equal(t, "", third, "everything blocked")

	picker.ResetBlockers("ChargePal1", "BCS_")

	again, err := picker.SearchFreeStation(ctx, "ChargePal1", "BCS_")
	require.NoError(t, err)
	assert.Equal(t, "BCS_2", again)
}

func TestBlockersAreIndependentPerRobotAndPrefix(t *testing.T) {
	picker, store := newTestPicker(t)
	ctx := context.Background()

	require.NoError(t, store.PushTable(ctx, "robot_info", [][]string{
		{"ChargePal1", "ADS_1", "", "", "", "", "100.0", "0"},
		{"ChargePal2", "ADS_2", "", "", "", "", "100.0", "0"},
	}))

	_, err := picker.SearchFreeStation(ctx, "ChargePal1", "BCS_")
	require.NoError(t, err)

	// ChargePal1's pick does not block BWS searches...
	bws, err := picker.SearchFreeStation(ctx, "ChargePal1", "BWS_")
	require.NoError(t, err)
	assert.NotEmpty(t, bws)

	// ...and another robot still sees its own picture of BCS. The first
	// robot's blocker is private, but its pick is NOT an occupation, so
	// ChargePal2 may receive the same station.
	station, err := picker.SearchFreeStation(ctx, "ChargePal2", "BCS_")
	require.NoError(t, err)
	assert.NotEmpty(t, station)
}

func TestRobotStandingOnCandidateBlocksIt(t *testing.T) {
	picker, store := newTestPicker(t)
	ctx := context.Background()

	require.NoError(t, store.PushTable(ctx, "robot_info", [][]string{
		{"ChargePal1", "BCS_2", "", "", "", "", "100.0", "0"},
	}))

	station, err := picker.SearchFreeStation(ctx, "ChargePal1", "BCS_")
	require.NoError(t, err)
	assert.Equal(t, "BCS_1", station, "own location is not a valid pick")

	blocked := picker.Blocked("ChargePal1", "BCS_")
	assert.Contains(t, blocked, "BCS_2")
}

func TestSearchUnknownRobotFindsByMaxDistance(t *testing.T) {
	picker, _ := newTestPicker(t)
	ctx := context.Background()

	// No location row: every candidate ties at max distance, the lowest
	// number wins.
	station, err := picker.SearchFreeStation(ctx, "ChargePal9", "BCS_")
	require.NoError(t, err)
	assert.Equal(t, "BCS_1", station)
}
