package api

import (
	"context"
	"net"
	"net/rpc"
	"strings"
	"testing"
	"time"

	msgpackrpc "github.com/hashicorp/net-rpc-msgpackrpc/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chargepal/chargepald/pkg/battery"
	"github.com/chargepal/chargepald/pkg/events"
	"github.com/chargepal/chargepald/pkg/livestore"
	"github.com/chargepal/chargepald/pkg/planner"
	"github.com/chargepal/chargepald/pkg/planstore"
	"github.com/chargepal/chargepald/pkg/scenario"
	"github.com/chargepal/chargepald/pkg/stations"
	"github.com/chargepal/chargepald/pkg/types"
)

// testSite is a fleet controller with a listening RPC server and one of
// everything: one robot at its base, one cart on a waiting station, plus
// a spare waiting slot for the station picker to hand out.
type testSite struct {
	srv     *Server
	planner *planner.Planner
	plans   *planstore.Store
	live    *livestore.Store
}

func newTestSite(t *testing.T, broker *events.Broker) *testSite {
	t.Helper()
	dir := t.TempDir()

	live, err := livestore.Open(dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = live.Close() })

	plans, err := planstore.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = plans.Close() })

	site := scenario.AllOneConfig()
	site.BWS = append(site.BWS, "BWS_2")
	require.NoError(t, site.Seed(context.Background(), live, plans))

	picker := stations.NewPicker(live)
	commander := battery.NewCommander(live, broker, battery.CommanderConfig{})
	pln := planner.New(plans, live, picker, broker, planner.DefaultConfig())

	srv := NewServer(pln, picker, commander, live, broker)
	require.NoError(t, srv.Start("127.0.0.1:0"))
	t.Cleanup(srv.Stop)

	return &testSite{srv: srv, planner: pln, plans: plans, live: live}
}

// rpcClient dials the test server and hands back a codec for raw calls
func rpcClient(t *testing.T, site *testSite) rpc.ClientCodec {
	t.Helper()
	conn, err := net.DialTimeout("tcp", site.srv.Addr().String(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return msgpackrpc.NewClientCodec(conn)
}

func (s *testSite) tick(t *testing.T) {
	t.Helper()
	require.NoError(t, s.planner.Tick(context.Background()))
}

func TestFetchJob_NoWork(t *testing.T) {
	site := newTestSite(t, nil)
	codec := rpcClient(t, site)

	var reply FetchJobResponse
	err := msgpackrpc.CallWithCodec(codec, "Jobs.FetchJob",
		&FetchJobRequest{RobotName: "ChargePal1"}, &reply)
	require.NoError(t, err)

	assert.Zero(t, reply.JobID)
	assert.Empty(t, reply.JobType)
	assert.Equal(t, "ChargePal1", reply.RobotName)
}

func TestFetchJob_DeliversScheduledJob(t *testing.T) {
	site := newTestSite(t, nil)
	codec := rpcClient(t, site)
	ctx := context.Background()

	_, err := site.live.SeedBooking(ctx, "ADS_1", types.BookingStatusCheckedIn)
	require.NoError(t, err)
	site.tick(t)

	// First call only queues the handout; the job arrives one tick later
	var first FetchJobResponse
	require.NoError(t, msgpackrpc.CallWithCodec(codec, "Jobs.FetchJob",
		&FetchJobRequest{RobotName: "ChargePal1"}, &first))
	assert.Empty(t, first.JobType)

	site.tick(t)

	var second FetchJobResponse
	require.NoError(t, msgpackrpc.CallWithCodec(codec, "Jobs.FetchJob",
		&FetchJobRequest{RobotName: "ChargePal1"}, &second))
	assert.Equal(t, string(types.JobTypeBringCharger), second.JobType)
	assert.Equal(t, "ChargePal1", second.RobotName)
	assert.Equal(t, "BAT_1", second.Cart)
	assert.Equal(t, "ADS_1", second.TargetStation)
	assert.NotZero(t, second.JobID)
}

func TestUpdateJobMonitor_WithoutAssignment(t *testing.T) {
	site := newTestSite(t, nil)
	codec := rpcClient(t, site)

	var reply GenericResponse
	err := msgpackrpc.CallWithCodec(codec, "Jobs.UpdateJobMonitor",
		&UpdateJobRequest{
			RobotName: "ChargePal1",
			JobName:   string(types.JobTypeBringCharger),
			JobStatus: string(types.JobUpdateSuccess),
		}, &reply)
	require.NoError(t, err)

	assert.False(t, reply.Success)
}

func TestUpdateJobMonitor_WithAssignment(t *testing.T) {
	site := newTestSite(t, nil)
	codec := rpcClient(t, site)
	ctx := context.Background()

	_, err := site.live.SeedBooking(ctx, "ADS_1", types.BookingStatusCheckedIn)
	require.NoError(t, err)
	site.tick(t)

	var reply GenericResponse
	require.NoError(t, msgpackrpc.CallWithCodec(codec, "Jobs.UpdateJobMonitor",
		&UpdateJobRequest{
			RobotName: "ChargePal1",
			JobName:   string(types.JobTypeBringCharger),
			JobStatus: string(types.JobUpdateOngoing),
		}, &reply))

	assert.True(t, reply.Success)
}

func TestOperationTime(t *testing.T) {
	site := newTestSite(t, nil)
	codec := rpcClient(t, site)

	var reply OperationTimeResponse
	err := msgpackrpc.CallWithCodec(codec, "Jobs.OperationTime",
		&OperationTimeRequest{CartName: "BAT_1"}, &reply)
	require.NoError(t, err)

	assert.Equal(t, int64(30000), reply.Msec)
}

func TestAskFreeStation(t *testing.T) {
	site := newTestSite(t, nil)
	codec := rpcClient(t, site)

	// BAT_1 stands on BWS_1, so the free waiting station is BWS_2
	var reply AskFreeStationResponse
	require.NoError(t, msgpackrpc.CallWithCodec(codec, "Stations.AskFreeStation",
		&AskFreeStationRequest{RobotName: "ChargePal1", RequestName: RequestFreeBWS}, &reply))
	assert.Equal(t, "BWS_2", reply.StationName)

	// The handed-out station is blocked for this robot until reset
	var again AskFreeStationResponse
	require.NoError(t, msgpackrpc.CallWithCodec(codec, "Stations.AskFreeStation",
		&AskFreeStationRequest{RobotName: "ChargePal1", RequestName: RequestFreeBWS}, &again))
	assert.Empty(t, again.StationName)

	var blocker GenericResponse
	require.NoError(t, msgpackrpc.CallWithCodec(codec, "Stations.ResetStationBlocker",
		&ResetStationBlockerRequest{RobotName: "ChargePal1", RequestName: RequestResetBWSBlocker}, &blocker))
	assert.True(t, blocker.Success)

	var after AskFreeStationResponse
	require.NoError(t, msgpackrpc.CallWithCodec(codec, "Stations.AskFreeStation",
		&AskFreeStationRequest{RobotName: "ChargePal1", RequestName: RequestFreeBWS}, &after))
	assert.Equal(t, "BWS_2", after.StationName)
}

func TestAskFreeStation_UnknownRequest(t *testing.T) {
	site := newTestSite(t, nil)
	codec := rpcClient(t, site)

	var reply AskFreeStationResponse
	err := msgpackrpc.CallWithCodec(codec, "Stations.AskFreeStation",
		&AskFreeStationRequest{RobotName: "ChargePal1", RequestName: "ask_free_ads"}, &reply)
	require.NoError(t, err)

	assert.Empty(t, reply.StationName)
}

func TestResetStationBlocker_UnknownRequest(t *testing.T) {
	site := newTestSite(t, nil)
	codec := rpcClient(t, site)

	var reply GenericResponse
	err := msgpackrpc.CallWithCodec(codec, "Stations.ResetStationBlocker",
		&ResetStationBlockerRequest{RobotName: "ChargePal1", RequestName: "reset_ads_blocker"}, &reply)
	require.NoError(t, err)

	assert.False(t, reply.Success)
}

func TestReady2PlugInADS_WithoutDelivery(t *testing.T) {
	site := newTestSite(t, nil)
	codec := rpcClient(t, site)

	var reply ReadyToPlugInResponse
	err := msgpackrpc.CallWithCodec(codec, "Bookings.Ready2PlugInADS",
		&ReadyToPlugInRequest{RobotName: "ChargePal1"}, &reply)
	require.NoError(t, err)

	assert.False(t, reply.ReadyToPlugin)
}

func TestBatteryCommunication(t *testing.T) {
	site := newTestSite(t, nil)
	codec := rpcClient(t, site)

	// Plain mode requests need no confirmation; without a broker the
	// frames are dropped and the request counts as done.
	var standby GenericResponse
	require.NoError(t, msgpackrpc.CallWithCodec(codec, "Battery.BatteryCommunication",
		&BatteryCommunicationRequest{
			CartName:    "BAT_1",
			StationName: "BWS_1",
			RequestName: battery.RequestStandby,
		}, &standby))
	assert.True(t, standby.Success)

	// Unknown request names answer a typed negative, not an error
	var unknown GenericResponse
	require.NoError(t, msgpackrpc.CallWithCodec(codec, "Battery.BatteryCommunication",
		&BatteryCommunicationRequest{
			CartName:    "BAT_1",
			RequestName: "mode_req_flight",
		}, &unknown))
	assert.False(t, unknown.Success)

	// Wakeup for a cart with no battery rows cannot confirm
	var wakeup GenericResponse
	require.NoError(t, msgpackrpc.CallWithCodec(codec, "Battery.BatteryCommunication",
		&BatteryCommunicationRequest{
			CartName:    "BAT_9",
			RequestName: battery.RequestWakeup,
		}, &wakeup))
	assert.False(t, wakeup.Success)
}

func TestPushToLDB(t *testing.T) {
	site := newTestSite(t, nil)
	codec := rpcClient(t, site)
	ctx := context.Background()

	var reply GenericResponse
	require.NoError(t, msgpackrpc.CallWithCodec(codec, "Data.PushToLDB",
		&PushToLDBRequest{
			TableName: livestore.TableRobotInfo,
			RDBCData:  [][]string{{"ChargePal1", "ADS_1", "", "NONE", "NONE", "BAT_1", "97", "0"}},
		}, &reply))
	assert.True(t, reply.Success)

	rows, err := site.live.FetchByFirstHeader(ctx, livestore.TableRobotInfo, livestore.RobotInfoHeaders)
	require.NoError(t, err)
	require.Contains(t, rows, "ChargePal1")
	assert.Equal(t, "ADS_1", rows["ChargePal1"]["robot_location"])
}

func TestPushToLDB_UnknownTable(t *testing.T) {
	site := newTestSite(t, nil)
	codec := rpcClient(t, site)

	var reply GenericResponse
	err := msgpackrpc.CallWithCodec(codec, "Data.PushToLDB",
		&PushToLDBRequest{
			TableName: "orders_in",
			RDBCData:  [][]string{{"1"}},
		}, &reply)
	require.NoError(t, err)

	assert.False(t, reply.Success)
}

func TestUpdateRDB(t *testing.T) {
	site := newTestSite(t, nil)
	codec := rpcClient(t, site)

	var reply UpdateRDBResponse
	require.NoError(t, msgpackrpc.CallWithCodec(codec, "Data.UpdateRDB",
		&UpdateRDBRequest{}, &reply))
	require.NotEmpty(t, reply.Tables)

	byName := make(map[string]livestore.TableDump, len(reply.Tables))
	for _, table := range reply.Tables {
		byName[table.Name] = table
	}
	require.Contains(t, byName, livestore.TableRobotInfo)
	require.Len(t, byName[livestore.TableRobotInfo].Rows, 1)
	assert.Equal(t, "ChargePal1", byName[livestore.TableRobotInfo].Rows[0].Values[0])
}

func TestPullLDB(t *testing.T) {
	site := newTestSite(t, nil)
	codec := rpcClient(t, site)

	var reply PullLDBResponse
	require.NoError(t, msgpackrpc.CallWithCodec(codec, "Data.PullLDB",
		&PullLDBRequest{}, &reply))

	require.NotEmpty(t, reply.Data)
	assert.True(t, strings.HasPrefix(string(reply.Data), "SQLite format 3"),
		"expected a SQLite file header")
}

func TestLogText(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)
	sub := broker.Subscribe()

	site := newTestSite(t, broker)
	codec := rpcClient(t, site)

	var reply GenericResponse
	require.NoError(t, msgpackrpc.CallWithCodec(codec, "Data.LogText",
		&LogTextRequest{RobotName: "ChargePal1", LogText: "arrived at ADS_1"}, &reply))
	assert.True(t, reply.Success)

	select {
	case event := <-sub:
		assert.Equal(t, events.EventRobotLog, event.Type)
		assert.Equal(t, "arrived at ADS_1", event.Message)
		assert.Equal(t, "ChargePal1", event.Metadata["robot"])
	case <-time.After(time.Second):
		t.Fatal("no robot.log event published")
	}
}

func TestServerStop_ClosesListener(t *testing.T) {
	site := newTestSite(t, nil)
	addr := site.srv.Addr().String()

	codec := rpcClient(t, site)
	var reply OperationTimeResponse
	require.NoError(t, msgpackrpc.CallWithCodec(codec, "Jobs.OperationTime",
		&OperationTimeRequest{CartName: "BAT_1"}, &reply))

	site.srv.Stop()

	_, err := net.DialTimeout("tcp", addr, 250*time.Millisecond)
	assert.Error(t, err)
}
