package stations

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/go-set/v2"
	"github.com/rs/zerolog"

	"github.com/chargepal/chargepald/pkg/layout"
	"github.com/chargepal/chargepald/pkg/livestore"
	"github.com/chargepal/chargepald/pkg/log"
)

// Picker finds free charging (BCS) and waiting (BWS) stations for robots.
// Every pick is remembered in a per-robot blocker set so a robot asking
// repeatedly within one maneuver never oscillates between two equally
// free stations. Blockers persist until the robot resets them.
type Picker struct {
	mu       sync.Mutex
	store    *livestore.Store
	logger   zerolog.Logger
	blockers map[string]map[string]*set.Set[string] // prefix → robot → stations
}

// NewPicker creates a station picker backed by the live database
func NewPicker(store *livestore.Store) *Picker {
	return &Picker{
		store:    store,
		logger:   log.WithComponent("stations"),
		blockers: make(map[string]map[string]*set.Set[string]),
	}
}

// SearchFreeStation returns the free station with the given prefix
// nearest to the robot, or "" when every candidate is taken. The result
// is added to the robot's blocker set.
//
// A station counts as taken when any robot or cart row in the live
// database mentions it, or when a previous pick by this robot blocked it.
func (p *Picker) SearchFreeStation(ctx context.Context, robot, prefix string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	blockers := p.blockerSet(robot, prefix)
	pattern := stationPattern(prefix)

	robots, err := p.store.FetchByFirstHeader(ctx, livestore.TableRobotInfo, livestore.RobotInfoHeaders)
	if err != nil {
		return "", err
	}

	location := ""
	if row, ok := robots[robot]; ok {
		location = row["robot_location"]
	}
	// Standing on one of the candidates permanently blocks it for this
	// robot: it is asking for somewhere else to go.
	if name := pattern.FindString(location); name != "" {
		blockers.Insert(name)
	}

	blocked := set.New[string](8)
	for _, row := range robots {
		collectStations(pattern, row, blocked)
	}
	carts, err := p.store.FetchByFirstHeader(ctx, livestore.TableCartInfo, livestore.CartInfoHeaders)
	if err != nil {
		return "", err
	}
	for _, row := range carts {
		collectStations(pattern, row, blocked)
	}

	count, err := p.store.FetchEnvCount(ctx, strings.TrimSuffix(prefix, "_"))
	if err != nil {
		return "", err
	}

	free := ""
	best := 0.0
	for number := 1; number <= count; number++ {
		name := numbered(prefix, number)
		if blocked.Contains(name) || blockers.Contains(name) {
			continue
		}
		distance := layout.Distance(location, name)
		if free == "" || distance < best {
			free = name
			best = distance
		}
	}

	if free != "" {
		blockers.Insert(free)
	}
	p.logger.Debug().
		Str("robot", robot).
		Str("prefix", prefix).
		Str("station", free).
		Msg("Free station search")
	return free, nil
}

// ResetBlockers clears the robot's blocker set for one station prefix
func (p *Picker) ResetBlockers(robot, prefix string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if byRobot, ok := p.blockers[prefix]; ok {
		delete(byRobot, robot)
	}
	p.logger.Debug().Str("robot", robot).Str("prefix", prefix).Msg("Blockers reset")
}

// Blocked returns the robot's currently blocked stations for a prefix
func (p *Picker) Blocked(robot, prefix string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.blockerSet(robot, prefix).Slice()
}

func (p *Picker) blockerSet(robot, prefix string) *set.Set[string] {
	byRobot, ok := p.blockers[prefix]
	if !ok {
		byRobot = make(map[string]*set.Set[string])
		p.blockers[prefix] = byRobot
	}
	blockers, ok := byRobot[robot]
	if !ok {
		blockers = set.New[string](4)
		byRobot[robot] = blockers
	}
	return blockers
}

func stationPattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(prefix) + `\d+`)
}

func collectStations(pattern *regexp.Regexp, row map[string]string, into *set.Set[string]) {
	for _, value := range row {
		for _, name := range pattern.FindAllString(value, -1) {
			into.Insert(name)
		}
	}
}

func numbered(prefix string, number int) string {
	return prefix + strconv.Itoa(number)
}
