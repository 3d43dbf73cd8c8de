package client

import (
	"net"
	"net/rpc"
	"sync"
	"testing"
	"time"

	msgpackrpc "github.com/hashicorp/net-rpc-msgpackrpc/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chargepal/chargepald/pkg/api"
	"github.com/chargepal/chargepald/pkg/livestore"
)

// The stubs below answer with canned data so the client's request
// building and reply mapping can be checked without a fleet controller.

type stubJobs struct{}

func (s *stubJobs) FetchJob(args *api.FetchJobRequest, reply *api.FetchJobResponse) error {
	reply.JobID = 7
	reply.JobType = "BRING_CHARGER"
	reply.ChargingType = "AC"
	reply.RobotName = args.RobotName
	reply.Cart = "BAT_1"
	reply.SourceStation = "BWS_1"
	reply.TargetStation = "ADS_1"
	return nil
}

func (s *stubJobs) UpdateJobMonitor(args *api.UpdateJobRequest, reply *api.GenericResponse) error {
	reply.Success = args.JobName == "BRING_CHARGER"
	return nil
}

func (s *stubJobs) OperationTime(args *api.OperationTimeRequest, reply *api.OperationTimeResponse) error {
	reply.Msec = 30000
	return nil
}

type stubStations struct{}

func (s *stubStations) AskFreeStation(args *api.AskFreeStationRequest, reply *api.AskFreeStationResponse) error {
	if args.RequestName == api.RequestFreeBWS {
		reply.StationName = "BWS_2"
	}
	return nil
}

func (s *stubStations) ResetStationBlocker(args *api.ResetStationBlockerRequest, reply *api.GenericResponse) error {
	reply.Success = args.RequestName == api.RequestResetBWSBlocker
	return nil
}

type stubBookings struct{}

func (s *stubBookings) Ready2PlugInADS(args *api.ReadyToPlugInRequest, reply *api.ReadyToPlugInResponse) error {
	reply.ReadyToPlugin = args.RobotName == "ChargePal1"
	return nil
}

type stubBattery struct{}

func (s *stubBattery) BatteryCommunication(args *api.BatteryCommunicationRequest, reply *api.GenericResponse) error {
	reply.Success = args.RequestName == "wakeup"
	return nil
}

type stubData struct {
	mu     sync.Mutex
	table  string
	rows   [][]string
	logged string
}

func (s *stubData) PushToLDB(args *api.PushToLDBRequest, reply *api.GenericResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = args.TableName
	s.rows = args.RDBCData
	reply.Success = true
	return nil
}

func (s *stubData) UpdateRDB(args *api.UpdateRDBRequest, reply *api.UpdateRDBResponse) error {
	reply.Tables = []livestore.TableDump{{
		Name: "robot_info",
		Rows: []livestore.RowDump{{RowID: 1, Values: []string{"ChargePal1", "RBS_1"}}},
	}}
	return nil
}

func (s *stubData) PullLDB(args *api.PullLDBRequest, reply *api.PullLDBResponse) error {
	reply.Data = []byte("SQLite format 3\x00")
	return nil
}

func (s *stubData) LogText(args *api.LogTextRequest, reply *api.GenericResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logged = args.RobotName + ": " + args.LogText
	reply.Success = true
	return nil
}

func (s *stubData) snapshot() (string, [][]string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table, s.rows, s.logged
}

type stubSlow struct{}

func (s *stubSlow) Wait(args *api.PullLDBRequest, reply *api.PullLDBResponse) error {
	time.Sleep(500 * time.Millisecond)
	return nil
}

// stubServer runs the stub endpoints on a loopback listener
func stubServer(t *testing.T) (string, *stubData) {
	t.Helper()

	data := &stubData{}
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("Jobs", &stubJobs{}))
	require.NoError(t, server.RegisterName("Stations", &stubStations{}))
	require.NoError(t, server.RegisterName("Bookings", &stubBookings{}))
	require.NoError(t, server.RegisterName("Battery", &stubBattery{}))
	require.NoError(t, server.RegisterName("Data", data))
	require.NoError(t, server.RegisterName("Slow", &stubSlow{}))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go server.ServeCodec(msgpackrpc.NewServerCodec(conn))
		}
	}()

	return listener.Addr().String(), data
}

func dial(t *testing.T, addr string) *Client {
	t.Helper()
	c, err := NewClient(addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestFetchJob(t *testing.T) {
	addr, _ := stubServer(t)
	c := dial(t, addr)

	job, err := c.FetchJob("ChargePal1")
	require.NoError(t, err)

	assert.Equal(t, uint64(7), job.JobID)
	assert.Equal(t, "BRING_CHARGER", job.JobType)
	assert.Equal(t, "AC", job.ChargingType)
	assert.Equal(t, "ChargePal1", job.RobotName)
	assert.Equal(t, "BAT_1", job.Cart)
	assert.Equal(t, "BWS_1", job.SourceStation)
	assert.Equal(t, "ADS_1", job.TargetStation)
}

func TestUpdateJobMonitor(t *testing.T) {
	addr, _ := stubServer(t)
	c := dial(t, addr)

	ok, err := c.UpdateJobMonitor("ChargePal1", "BRING_CHARGER", "Success")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.UpdateJobMonitor("ChargePal1", "STOW_CHARGER", "Success")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOperationTime(t *testing.T) {
	addr, _ := stubServer(t)
	c := dial(t, addr)

	estimate, err := c.OperationTime("BAT_1")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, estimate)
}

func TestAskFreeStation(t *testing.T) {
	addr, _ := stubServer(t)
	c := dial(t, addr)

	name, err := c.AskFreeStation("ChargePal1", api.RequestFreeBWS)
	require.NoError(t, err)
	assert.Equal(t, "BWS_2", name)

	name, err = c.AskFreeStation("ChargePal1", api.RequestFreeBCS)
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestResetStationBlocker(t *testing.T) {
	addr, _ := stubServer(t)
	c := dial(t, addr)

	ok, err := c.ResetStationBlocker("ChargePal1", api.RequestResetBWSBlocker)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReady2PlugInADS(t *testing.T) {
	addr, _ := stubServer(t)
	c := dial(t, addr)

	ready, err := c.Ready2PlugInADS("ChargePal1")
	require.NoError(t, err)
	assert.True(t, ready)

	ready, err = c.Ready2PlugInADS("ChargePal2")
	require.NoError(t, err)
	assert.False(t, ready)
}

func TestBatteryCommunication(t *testing.T) {
	addr, _ := stubServer(t)
	c := dial(t, addr)

	ok, err := c.BatteryCommunication("BAT_1", "BCS_1", "wakeup")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.BatteryCommunication("BAT_1", "BCS_1", "mode_req_flight")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPushToLDB(t *testing.T) {
	addr, data := stubServer(t)
	c := dial(t, addr)

	rows := [][]string{{"ChargePal1", "ADS_1", "", "NONE", "NONE", "BAT_1", "97", "0"}}
	ok, err := c.PushToLDB("robot_info", rows)
	require.NoError(t, err)
	assert.True(t, ok)

	table, pushed, _ := data.snapshot()
	assert.Equal(t, "robot_info", table)
	assert.Equal(t, rows, pushed)
}

func TestUpdateRDB(t *testing.T) {
	addr, _ := stubServer(t)
	c := dial(t, addr)

	tables, err := c.UpdateRDB()
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "robot_info", tables[0].Name)
	require.Len(t, tables[0].Rows, 1)
	assert.Equal(t, int64(1), tables[0].Rows[0].RowID)
	assert.Equal(t, []string{"ChargePal1", "RBS_1"}, tables[0].Rows[0].Values)
}

func TestPullLDB(t *testing.T) {
	addr, _ := stubServer(t)
	c := dial(t, addr)

	data, err := c.PullLDB()
	require.NoError(t, err)
	assert.Contains(t, string(data), "SQLite format 3")
}

func TestLogText(t *testing.T) {
	addr, data := stubServer(t)
	c := dial(t, addr)

	require.NoError(t, c.LogText("ChargePal1", "arrived at ADS_1"))

	_, _, logged := data.snapshot()
	assert.Equal(t, "ChargePal1: arrived at ADS_1", logged)
}

func TestCallDeadline(t *testing.T) {
	addr, _ := stubServer(t)

	c, err := NewClientWithTimeout(addr, 50*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	var reply api.PullLDBResponse
	err = c.call("Slow.Wait", &api.PullLDBRequest{}, &reply)
	assert.Error(t, err)
}
