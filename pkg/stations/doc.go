/*
Package stations answers "where can this robot go" for battery charging
(BCS) and battery waiting (BWS) stations.

A station is free when no robot or cart row in the live database mentions
it and the asking robot has not been handed it before. Handed-out picks
accumulate in a per-robot, per-prefix blocker set so a robot cannot
bounce between two equally free stations while it decides; the robot
clears the set through the ResetStationBlocker RPC once its maneuver is
done. Among the free candidates the nearest one by layout distance wins.

Used by the scheduler for stowing upgrades and by the AskFreeStation RPC.
*/
package stations
