/*
Package client provides the Go client robots use to talk to the fleet
controller.

The client wraps the msgpack RPC surface of pkg/api with typed methods.
It keeps one TCP connection open, serializes calls over it and applies a
per-call deadline, which is how the robot software drives its duty cycle:

	client, err := client.NewClient("controller:50059")
	if err != nil {
		return err
	}
	defer client.Close()

	for {
		job, err := client.FetchJob("ChargePal1")
		if err != nil {
			return err
		}
		if job.JobType == "" {
			time.Sleep(time.Second)
			continue
		}
		execute(job)
		client.UpdateJobMonitor("ChargePal1", job.JobType, "Success")
	}

# Methods

Job cycle:
  - FetchJob, UpdateJobMonitor, OperationTime

Navigation:
  - AskFreeStation, ResetStationBlocker

Plug-in handshake:
  - Ready2PlugInADS

Battery protocol:
  - BatteryCommunication

Database mirroring:
  - PushToLDB, UpdateRDB, PullLDB, LogText

# Error Handling

Transport failures surface as errors; domain negatives come back in the
values (empty job, empty station name, false flags, nil data). A robot
that gets an error should reconnect; a robot that gets a negative should
just keep going.

The default 10 second deadline suits every call except battery commands
that wait on hardware confirmation. Build those clients with
NewClientWithTimeout and a zero timeout, which disables deadlines.

# See Also

  - pkg/api for the server side and the wire types
  - cmd/chargepal-sim for a complete robot loop built on this client
*/
package client
