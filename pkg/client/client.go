package client

import (
	"fmt"
	"net"
	"net/rpc"
	"sync"
	"time"

	"github.com/chargepal/chargepald/pkg/api"
	"github.com/chargepal/chargepald/pkg/livestore"
	"github.com/chargepal/chargepald/pkg/types"
)

// DefaultTimeout bounds each call unless the client was built with its own
const DefaultTimeout = 10 * time.Second

// Client is the robot-side connection to the fleet controller. It keeps
// one TCP connection open and issues msgpack RPC calls over it.
type Client struct {
	addr    string
	timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
	rpc  *rpc.Client
}

// NewClient dials the fleet controller at addr
func NewClient(addr string) (*Client, error) {
	return NewClientWithTimeout(addr, DefaultTimeout)
}

// NewClientWithTimeout dials with a custom per-call timeout. Zero disables
// call deadlines, which battery commands with long confirmation loops
// need.
func NewClientWithTimeout(addr string, timeout time.Duration) (*Client, error) {
	dialTimeout := timeout
	if dialTimeout == 0 {
		dialTimeout = DefaultTimeout
	}
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	return &Client{
		addr:    addr,
		timeout: timeout,
		conn:    conn,
		rpc:     rpc.NewClientWithCodec(api.NewClientCodec(conn)),
	}, nil
}

// Close closes the client connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rpc.Close()
}

// call issues one RPC. Calls are serialized so the connection deadline of
// one call cannot cut off another.
func (c *Client) call(method string, args, reply any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
		defer func() { _ = c.conn.SetDeadline(time.Time{}) }()
	}
	return c.rpc.Call(method, args, reply)
}

// FetchJob asks for the robot's next job. An empty JobType means the
// robot has none and should ask again later.
func (c *Client) FetchJob(robotName string) (types.JobDetails, error) {
	var reply api.FetchJobResponse
	err := c.call("Jobs.FetchJob", &api.FetchJobRequest{RobotName: robotName}, &reply)
	if err != nil {
		return types.JobDetails{}, err
	}

	return types.JobDetails{
		JobID:         reply.JobID,
		JobType:       reply.JobType,
		ChargingType:  reply.ChargingType,
		RobotName:     reply.RobotName,
		Cart:          reply.Cart,
		SourceStation: reply.SourceStation,
		TargetStation: reply.TargetStation,
	}, nil
}

// UpdateJobMonitor reports progress on the robot's current job. The
// returned flag tells whether the controller had an assigned job for this
// robot at all.
func (c *Client) UpdateJobMonitor(robotName, jobName, jobStatus string) (bool, error) {
	var reply api.GenericResponse
	err := c.call("Jobs.UpdateJobMonitor", &api.UpdateJobRequest{
		RobotName: robotName,
		JobName:   jobName,
		JobStatus: jobStatus,
	}, &reply)
	if err != nil {
		return false, err
	}
	return reply.Success, nil
}

// OperationTime asks how long the cart's current operation still takes
func (c *Client) OperationTime(cartName string) (time.Duration, error) {
	var reply api.OperationTimeResponse
	err := c.call("Jobs.OperationTime", &api.OperationTimeRequest{CartName: cartName}, &reply)
	if err != nil {
		return 0, err
	}
	return time.Duration(reply.Msec) * time.Millisecond, nil
}

// AskFreeStation asks for the nearest unoccupied station of the requested
// kind, "" when none is free
func (c *Client) AskFreeStation(robotName, requestName string) (string, error) {
	var reply api.AskFreeStationResponse
	err := c.call("Stations.AskFreeStation", &api.AskFreeStationRequest{
		RobotName:   robotName,
		RequestName: requestName,
	}, &reply)
	if err != nil {
		return "", err
	}
	return reply.StationName, nil
}

// ResetStationBlocker forgets the stations previously handed to the robot
func (c *Client) ResetStationBlocker(robotName, requestName string) (bool, error) {
	var reply api.GenericResponse
	err := c.call("Stations.ResetStationBlocker", &api.ResetStationBlockerRequest{
		RobotName:   robotName,
		RequestName: requestName,
	}, &reply)
	if err != nil {
		return false, err
	}
	return reply.Success, nil
}

// Ready2PlugInADS advances the plug-in handshake. True tells the robot to
// plug the charger into the vehicle now.
func (c *Client) Ready2PlugInADS(robotName string) (bool, error) {
	var reply api.ReadyToPlugInResponse
	err := c.call("Bookings.Ready2PlugInADS", &api.ReadyToPlugInRequest{RobotName: robotName}, &reply)
	if err != nil {
		return false, err
	}
	return reply.ReadyToPlugin, nil
}

// BatteryCommunication runs one battery mode request against a cart and
// reports whether the battery confirmed it
func (c *Client) BatteryCommunication(cartName, stationName, requestName string) (bool, error) {
	var reply api.GenericResponse
	err := c.call("Battery.BatteryCommunication", &api.BatteryCommunicationRequest{
		CartName:    cartName,
		StationName: stationName,
		RequestName: requestName,
	}, &reply)
	if err != nil {
		return false, err
	}
	return reply.Success, nil
}

// PushToLDB replaces fleet mirror rows with rows the robot observed
func (c *Client) PushToLDB(tableName string, rows [][]string) (bool, error) {
	var reply api.GenericResponse
	err := c.call("Data.PushToLDB", &api.PushToLDBRequest{
		TableName: tableName,
		RDBCData:  rows,
	}, &reply)
	if err != nil {
		return false, err
	}
	return reply.Success, nil
}

// UpdateRDB fetches every live database table for the robot's local
// mirror. Nil tables mean the dump failed server-side.
func (c *Client) UpdateRDB() ([]livestore.TableDump, error) {
	var reply api.UpdateRDBResponse
	if err := c.call("Data.UpdateRDB", &api.UpdateRDBRequest{}, &reply); err != nil {
		return nil, err
	}
	return reply.Tables, nil
}

// PullLDB fetches the live database as a file. Nil data means the
// snapshot failed server-side.
func (c *Client) PullLDB() ([]byte, error) {
	var reply api.PullLDBResponse
	if err := c.call("Data.PullLDB", &api.PullLDBRequest{}, &reply); err != nil {
		return nil, err
	}
	return reply.Data, nil
}

// LogText forwards one log line into the fleet log
func (c *Client) LogText(robotName, text string) error {
	var reply api.GenericResponse
	return c.call("Data.LogText", &api.LogTextRequest{
		RobotName: robotName,
		LogText:   text,
	}, &reply)
}
