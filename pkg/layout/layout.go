package layout

import (
	"github.com/chargepal/chargepald/pkg/types"
)

// Reference layout from the simulation grid, cell by cell:
//
//	.b.b...r.
//	.........
//	...awa...
//	...pwp...
//	....w....
//	...awa...
//	...pwp...
//	.........
//	.........
//
// a = adapter station, b = battery charging station, p = parking slot,
// r = robot base station, w = wall. Update the coordinate table when the
// real parking area layout is surveyed.
const (
	// CellSize is the edge length of one grid cell in meters.
	CellSize = 2.5

	// MaxDistance is returned for any station pair with an unknown
	// coordinate, so such pairs lose every tie-break.
	MaxDistance = 16 * CellSize
)

type position struct {
	x, y int
}

var positions = map[string]position{
	"ADS_1": {3, 2},
	"ADS_2": {5, 2},
	"ADS_3": {3, 5},
	"ADS_4": {5, 5},
	"BCS_1": {1, 0},
	"BCS_2": {3, 0},
	"BWS_1": {1, 0},
	"BWS_2": {3, 0},
	"RBS_1": {7, 0},
}

// Distance returns the travel distance between two stations: Manhattan
// distance in grid cells times CellSize, or MaxDistance if either name is
// not in the coordinate table.
func Distance(start, target string) float64 {
	a, ok := positions[start]
	if !ok {
		return MaxDistance
	}
	b, ok := positions[target]
	if !ok {
		return MaxDistance
	}
	return float64(abs(b.x-a.x)+abs(b.y-a.y)) * CellSize
}

// Stations returns the names in the coordinate table.
func Stations() []string {
	names := make([]string, 0, len(positions))
	for name := range positions {
		names = append(names, name)
	}
	return names
}

// Pairs materializes the full distance relation for the planning store.
// Lookups on the hot path go against that table, not this function.
func Pairs(names []string) []types.Distance {
	pairs := make([]types.Distance, 0, len(names)*len(names))
	for _, start := range names {
		for _, target := range names {
			pairs = append(pairs, types.Distance{
				Start:    start,
				Target:   target,
				Distance: Distance(start, target),
			})
		}
	}
	return pairs
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
