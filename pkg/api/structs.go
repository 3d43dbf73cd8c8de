package api

import (
	"github.com/chargepal/chargepald/pkg/livestore"
	"github.com/chargepal/chargepald/pkg/types"
)

// Station request names accepted by AskFreeStation and ResetStationBlocker
const (
	RequestFreeBCS         = "ask_free_bcs"
	RequestFreeBWS         = "ask_free_bws"
	RequestResetBCSBlocker = "reset_bcs_blocker"
	RequestResetBWSBlocker = "reset_bws_blocker"
)

// stationPrefix maps a station request name to the station name prefix it
// asks about, "" for unknown request names.
func stationPrefix(requestName string) string {
	switch requestName {
	case RequestFreeBCS, RequestResetBCSBlocker:
		return types.PrefixBCS
	case RequestFreeBWS, RequestResetBWSBlocker:
		return types.PrefixBWS
	}
	return ""
}

// GenericResponse answers RPCs whose only outcome is yes or no
type GenericResponse struct {
	Success bool
}

// FetchJobRequest asks for the robot's next prepared job
type FetchJobRequest struct {
	RobotName string
}

// FetchJobResponse carries one job assignment. Empty strings mean the
// robot has no job; it should idle and ask again.
type FetchJobResponse struct {
	JobID         uint64
	JobType       string
	ChargingType  string
	RobotName     string
	Cart          string
	SourceStation string
	TargetStation string
}

// UpdateJobRequest reports the robot's progress on its current job.
// JobName is the job type string the robot believes it is executing,
// JobStatus one of Success, Failure, Recovery or Ongoing.
type UpdateJobRequest struct {
	RobotName string
	JobName   string
	JobStatus string
}

// AskFreeStationRequest asks for the nearest unoccupied station of the
// kind named by RequestName
type AskFreeStationRequest struct {
	RobotName   string
	RequestName string
}

// AskFreeStationResponse names the picked station, "" when none is free
type AskFreeStationResponse struct {
	StationName string
}

// ResetStationBlockerRequest clears the robot's blocker set for the
// station kind named by RequestName
type ResetStationBlockerRequest struct {
	RobotName   string
	RequestName string
}

// ReadyToPlugInRequest advances the plug-in handshake at an adapter station
type ReadyToPlugInRequest struct {
	RobotName string
}

// ReadyToPlugInResponse tells the robot whether to plug the charger in now
type ReadyToPlugInResponse struct {
	ReadyToPlugin bool
}

// BatteryCommunicationRequest runs one battery mode request against a cart
type BatteryCommunicationRequest struct {
	CartName    string
	StationName string
	RequestName string
}

// PushToLDBRequest replaces rows of a fleet mirror table with the rows a
// robot observed. The first cell of each row is the entity name.
type PushToLDBRequest struct {
	TableName string
	RDBCData  [][]string
}

// UpdateRDBRequest asks for the tables robots mirror locally
type UpdateRDBRequest struct{}

// UpdateRDBResponse carries every live database table with row ids
type UpdateRDBResponse struct {
	Tables []livestore.TableDump
}

// PullLDBRequest asks for the live database as a file
type PullLDBRequest struct{}

// PullLDBResponse carries the database file bytes, nil on failure
type PullLDBResponse struct {
	Data []byte
}

// OperationTimeRequest asks how long the cart's current operation takes
type OperationTimeRequest struct {
	CartName string
}

// OperationTimeResponse is the estimate in milliseconds
type OperationTimeResponse struct {
	Msec int64
}

// LogTextRequest forwards one robot log line into the fleet log
type LogTextRequest struct {
	RobotName string
	LogText   string
}
