package api

import (
	"time"

	"github.com/chargepal/chargepald/pkg/events"
	"github.com/chargepal/chargepald/pkg/types"
)

// operationTimeMsec is the fixed estimate handed to robots asking how long
// a cart still needs. The battery protocol reports no duration yet, so
// every caller gets the same answer.
const operationTimeMsec = 30000

// Jobs serves the job distribution endpoints robots poll
type Jobs struct {
	srv *Server
}

// FetchJob hands out the robot's prepared job. Preparation happens inside
// the tick, so a fresh assignment arrives one call after it was made.
func (j *Jobs) FetchJob(args *FetchJobRequest, reply *FetchJobResponse) error {
	start := time.Now()
	details := j.srv.planner.FetchJob(args.RobotName)
	reply.JobID = details.JobID
	reply.JobType = details.JobType
	reply.ChargingType = details.ChargingType
	reply.RobotName = details.RobotName
	reply.Cart = details.Cart
	reply.SourceStation = details.SourceStation
	reply.TargetStation = details.TargetStation
	observe("Jobs.FetchJob", start, reply.JobType != "")
	return nil
}

// UpdateJobMonitor reports job progress. Success tells the robot whether
// it had an assigned job at all; the transition itself runs on the next
// tick.
func (j *Jobs) UpdateJobMonitor(args *UpdateJobRequest, reply *GenericResponse) error {
	start := time.Now()
	reply.Success = j.srv.planner.UpdateJob(args.RobotName,
		types.JobType(args.JobName), types.JobUpdateStatus(args.JobStatus))
	observe("Jobs.UpdateJobMonitor", start, reply.Success)
	return nil
}

// OperationTime estimates the remaining operation time for a cart
func (j *Jobs) OperationTime(args *OperationTimeRequest, reply *OperationTimeResponse) error {
	start := time.Now()
	reply.Msec = operationTimeMsec
	observe("Jobs.OperationTime", start, true)
	return nil
}

// Stations serves the free-station search robots use when their target is
// taken
type Stations struct {
	srv *Server
}

// AskFreeStation names the nearest unoccupied station of the requested
// kind, "" when none is free or the request name is unknown
func (st *Stations) AskFreeStation(args *AskFreeStationRequest, reply *AskFreeStationResponse) error {
	start := time.Now()
	defer func() { observe("Stations.AskFreeStation", start, reply.StationName != "") }()

	prefix := stationPrefix(args.RequestName)
	if prefix == "" {
		st.srv.logger.Warn().Str("robot", args.RobotName).Str("request", args.RequestName).
			Msg("Unknown station request")
		return nil
	}

	name, err := st.srv.picker.SearchFreeStation(st.srv.ctx, args.RobotName, prefix)
	if err != nil {
		st.srv.logger.Warn().Err(err).Str("robot", args.RobotName).Msg("Station search failed")
		return nil
	}
	reply.StationName = name
	return nil
}

// ResetStationBlocker forgets the stations previously handed to the robot
// for the requested kind
func (st *Stations) ResetStationBlocker(args *ResetStationBlockerRequest, reply *GenericResponse) error {
	start := time.Now()
	defer func() { observe("Stations.ResetStationBlocker", start, reply.Success) }()

	prefix := stationPrefix(args.RequestName)
	if prefix == "" {
		st.srv.logger.Warn().Str("robot", args.RobotName).Str("request", args.RequestName).
			Msg("Unknown blocker request")
		return nil
	}

	st.srv.planner.ResetStationBlockers(args.RobotName, prefix)
	reply.Success = true
	return nil
}

// Bookings serves the plug-in handshake at adapter stations
type Bookings struct {
	srv *Server
}

// Ready2PlugInADS advances the plug-in handshake for the robot's current
// delivery. True tells the robot to plug the charger into the vehicle.
func (b *Bookings) Ready2PlugInADS(args *ReadyToPlugInRequest, reply *ReadyToPlugInResponse) error {
	start := time.Now()
	reply.ReadyToPlugin = b.srv.planner.HandshakePlugIn(b.srv.ctx, args.RobotName)
	observe("Bookings.Ready2PlugInADS", start, reply.ReadyToPlugin)
	return nil
}

// Battery serves the battery command protocol
type Battery struct {
	srv *Server
}

// BatteryCommunication runs one battery mode request against a cart and
// reports whether the battery confirmed it
func (b *Battery) BatteryCommunication(args *BatteryCommunicationRequest, reply *GenericResponse) error {
	start := time.Now()
	defer func() { observe("Battery.BatteryCommunication", start, reply.Success) }()

	confirmed, err := b.srv.commander.Execute(b.srv.ctx, args.CartName, args.RequestName)
	if err != nil {
		b.srv.logger.Warn().Err(err).
			Str("cart", args.CartName).
			Str("station", args.StationName).
			Str("request", args.RequestName).
			Msg("Battery request failed")
		return nil
	}
	reply.Success = confirmed
	return nil
}

// Data serves the database mirroring endpoints
type Data struct {
	srv *Server
}

// PushToLDB replaces fleet mirror rows with the rows a robot observed
func (d *Data) PushToLDB(args *PushToLDBRequest, reply *GenericResponse) error {
	start := time.Now()
	defer func() { observe("Data.PushToLDB", start, reply.Success) }()

	if err := d.srv.live.PushTable(d.srv.ctx, args.TableName, args.RDBCData); err != nil {
		d.srv.logger.Warn().Err(err).Str("table", args.TableName).Msg("Push rejected")
		return nil
	}
	reply.Success = true
	return nil
}

// UpdateRDB dumps every live database table for the robot's local mirror.
// Nil tables mean the dump failed; robots keep their previous mirror.
func (d *Data) UpdateRDB(args *UpdateRDBRequest, reply *UpdateRDBResponse) error {
	start := time.Now()
	defer func() { observe("Data.UpdateRDB", start, reply.Tables != nil) }()

	tables, err := d.srv.live.Dump(d.srv.ctx)
	if err != nil {
		d.srv.logger.Warn().Err(err).Msg("Dump failed")
		return nil
	}
	reply.Tables = tables
	return nil
}

// PullLDB sends the live database file. Nil data means the snapshot
// failed.
func (d *Data) PullLDB(args *PullLDBRequest, reply *PullLDBResponse) error {
	start := time.Now()
	defer func() { observe("Data.PullLDB", start, reply.Data != nil) }()

	data, err := d.srv.live.FileBytes(d.srv.ctx)
	if err != nil {
		d.srv.logger.Warn().Err(err).Msg("Snapshot failed")
		return nil
	}
	reply.Data = data
	return nil
}

// LogText forwards one robot log line into the event stream. The daemon's
// event sink mirrors it into the fleet log at info.
func (d *Data) LogText(args *LogTextRequest, reply *GenericResponse) error {
	start := time.Now()
	if d.srv.broker != nil {
		d.srv.broker.Emit(events.EventRobotLog, args.LogText, map[string]string{
			"robot": args.RobotName,
		})
	}
	reply.Success = true
	observe("Data.LogText", start, true)
	return nil
}
