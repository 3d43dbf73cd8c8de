package scenario

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/chargepal/chargepald/pkg/livestore"
	"github.com/chargepal/chargepald/pkg/planstore"
	"github.com/chargepal/chargepald/pkg/types"
)

// Config is the initial layout of a site: which stations exist and
// where every robot and cart starts.
type Config struct {
	ADS []string
	BCS []string
	BWS []string
	RBS []string

	RobotLocations map[string]string
	CartLocations  map[string]string
}

// Counts describes a site by entity counts alone. Names follow the site
// conventions (ADS_1, BAT_1, ChargePal1).
type Counts struct {
	ADS    int
	BCS    int
	BWS    int
	RBS    int
	Robots int
	Carts  int
}

// enumerate returns count names built from prefix, numbered from 1
func enumerate(prefix string, count int) []string {
	result := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		result = append(result, prefix+strconv.Itoa(i))
	}
	return result
}

// NewConfig expands counts into a full config. Zero BWS defaults to one
// waiting slot per cart and zero RBS to one base per robot; robots
// start at their bases and carts at the waiting stations.
func NewConfig(counts Counts) (Config, error) {
	if counts.BWS == 0 {
		counts.BWS = counts.Carts
	}
	if counts.RBS == 0 {
		counts.RBS = counts.Robots
	}
	if counts.Robots > counts.RBS {
		return Config{}, fmt.Errorf("%d robots but only %d base stations",
			counts.Robots, counts.RBS)
	}
	if counts.Carts > counts.BWS {
		return Config{}, fmt.Errorf("%d carts but only %d waiting stations",
			counts.Carts, counts.BWS)
	}

	cfg := Config{
		ADS:            enumerate(types.PrefixADS, counts.ADS),
		BCS:            enumerate(types.PrefixBCS, counts.BCS),
		BWS:            enumerate(types.PrefixBWS, counts.BWS),
		RBS:            enumerate(types.PrefixRBS, counts.RBS),
		RobotLocations: make(map[string]string, counts.Robots),
		CartLocations:  make(map[string]string, counts.Carts),
	}
	for i, robot := range enumerate("ChargePal", counts.Robots) {
		cfg.RobotLocations[robot] = cfg.RBS[i]
	}
	for i, cart := range enumerate("BAT_", counts.Carts) {
		cfg.CartLocations[cart] = cfg.BWS[i]
	}
	return cfg, nil
}

// ParseConfig reads the compact counts notation, for example
// "ADS: 2, BCS: 2, BWS: 3, RBS: 2, robots: 2, carts: 3".
func ParseConfig(text string) (Config, error) {
	var counts Counts
	for _, field := range strings.Split(text, ",") {
		key, value, found := strings.Cut(field, ":")
		if !found {
			return Config{}, fmt.Errorf("malformed count %q", strings.TrimSpace(field))
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("malformed count %q", strings.TrimSpace(field))
		}
		switch strings.TrimSpace(key) {
		case "ADS":
			counts.ADS = n
		case "BCS":
			counts.BCS = n
		case "BWS":
			counts.BWS = n
		case "RBS":
			counts.RBS = n
		case "robots":
			counts.Robots = n
		case "carts":
			counts.Carts = n
		default:
			return Config{}, fmt.Errorf("unknown entity %q", strings.TrimSpace(key))
		}
	}
	return NewConfig(counts)
}

// String renders the counts the way ParseConfig reads them
func (c Config) String() string {
	return fmt.Sprintf("ADS: %d, BCS: %d, BWS: %d, RBS: %d, robots: %d, carts: %d",
		len(c.ADS), len(c.BCS), len(c.BWS), len(c.RBS),
		len(c.RobotLocations), len(c.CartLocations))
}

// Stations returns every station name of the site
func (c Config) Stations() []string {
	all := make([]string, 0, len(c.ADS)+len(c.BCS)+len(c.BWS)+len(c.RBS))
	all = append(all, c.ADS...)
	all = append(all, c.BCS...)
	all = append(all, c.BWS...)
	all = append(all, c.RBS...)
	return all
}

// Validate checks that station names are unique and that every start
// location names a station of the site.
func (c Config) Validate() error {
	known := make(map[string]bool)
	for _, station := range c.Stations() {
		if known[station] {
			return fmt.Errorf("duplicate station %s", station)
		}
		known[station] = true
	}
	for robot, station := range c.RobotLocations {
		if !known[station] {
			return fmt.Errorf("invalid location %s for %s", station, robot)
		}
	}
	for cart, station := range c.CartLocations {
		if !known[station] {
			return fmt.Errorf("invalid location %s for %s", station, cart)
		}
	}
	return nil
}

// Seed materializes the site: station groups and fleet names into
// env_info, one pushed row per robot and cart as if each had already
// reported in, and a bootstrapped plan database. A nil plans store
// seeds the live side only.
func (c Config) Seed(ctx context.Context, live *livestore.Store, plans *planstore.Store) error {
	if err := c.Validate(); err != nil {
		return err
	}

	robots := sortedKeys(c.RobotLocations)
	carts := sortedKeys(c.CartLocations)

	groups := map[string][]string{
		livestore.EnvADS:    c.ADS,
		livestore.EnvBCS:    c.BCS,
		livestore.EnvBWS:    c.BWS,
		livestore.EnvRBS:    c.RBS,
		livestore.EnvRobots: robots,
		livestore.EnvCarts:  carts,
	}
	for name, members := range groups {
		if err := live.PutEnvInfo(ctx, name, members); err != nil {
			return err
		}
	}

	for _, robot := range robots {
		row := []string{robot, c.RobotLocations[robot], "", "NONE", "NONE", "", "100", "0"}
		if err := live.PushTable(ctx, livestore.TableRobotInfo, [][]string{row}); err != nil {
			return err
		}
	}
	for _, cart := range carts {
		row := []string{cart, c.CartLocations[cart], "", "false", "0"}
		if err := live.PushTable(ctx, livestore.TableCartInfo, [][]string{row}); err != nil {
			return err
		}
	}

	if plans == nil {
		return nil
	}
	return plans.Bootstrap(planstore.Seed{
		Robots:   c.RobotLocations,
		Carts:    c.CartLocations,
		Stations: c.Stations(),
	})
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// AllOneConfig returns the smallest complete site, one of everything:
// robot ChargePal1 at its base and cart BAT_1 at the waiting station.
func AllOneConfig() Config {
	return Config{
		ADS:            []string{"ADS_1"},
		BCS:            []string{"BCS_1"},
		BWS:            []string{"BWS_1"},
		RBS:            []string{"RBS_1"},
		RobotLocations: map[string]string{"ChargePal1": "RBS_1"},
		CartLocations:  map[string]string{"BAT_1": "BWS_1"},
	}
}

// DefaultConfig returns the reference site: two robots, three carts,
// two adapter and two charging stations.
func DefaultConfig() Config {
	return Config{
		ADS: []string{"ADS_1", "ADS_2"},
		BCS: []string{"BCS_1", "BCS_2"},
		BWS: []string{"BWS_1", "BWS_2", "BWS_3"},
		RBS: []string{"RBS_1", "RBS_2"},
		RobotLocations: map[string]string{
			"ChargePal1": "RBS_1",
			"ChargePal2": "RBS_2",
		},
		CartLocations: map[string]string{
			"BAT_1": "BWS_1",
			"BAT_2": "BWS_2",
			"BAT_3": "BWS_3",
		},
	}
}
