/*
Package layout maps station names to parking-area grid coordinates and
computes travel distances between them.

Distances are Manhattan distances in integer grid cells multiplied by the
cell size. Any pair involving a station without a known coordinate yields
MaxDistance, which makes such stations lose every nearest-candidate
tie-break without needing special cases in the scheduler.

The coordinate table is the reference layout of the simulation grid. It is
materialized into the planning store once at startup via Pairs; scheduler
hot-path lookups read the store, not this package.
*/
package layout
