package battery

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/chargepal/chargepald/pkg/livestore"
	"github.com/chargepal/chargepald/pkg/log"
	"github.com/chargepal/chargepald/pkg/types"
)

// StateChange is one observed battery state text transition
type StateChange struct {
	Cart     string
	Previous string
	State    string
}

// Monitor watches the battery live table and reports state text changes.
// It keeps the last known text per cart and a last_change watermark, so a
// poll only touches rows the bridge wrote since the previous poll.
// Re-reads of unchanged rows at the second boundary are filtered by the
// value comparison.
type Monitor struct {
	logger zerolog.Logger
	store  *livestore.Store
	states map[string]string
	last   time.Time
}

// NewMonitor creates a battery state monitor
func NewMonitor(store *livestore.Store) *Monitor {
	return &Monitor{
		logger: log.WithComponent("battery"),
		store:  store,
		states: make(map[string]string),
	}
}

// Poll returns the state changes since the previous poll, ordered by cart
func (m *Monitor) Poll(ctx context.Context) ([]StateChange, error) {
	states, err := m.store.FetchBatteryStates(ctx, m.last)
	if err != nil {
		return nil, err
	}
	m.last = time.Now()

	var changes []StateChange
	for cart, state := range states {
		previous, known := m.states[cart]
		if known && previous == state {
			continue
		}
		m.states[cart] = state
		changes = append(changes, StateChange{Cart: cart, Previous: previous, State: state})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Cart < changes[j].Cart })

	for _, change := range changes {
		m.logger.Debug().
			Str("cart", change.Cart).
			Str("previous", change.Previous).
			Str("state", change.State).
			Msg("Battery state changed")
	}
	return changes, nil
}

// Commands maps a state text transition to the charger commands it
// implies. The bridge writes texts like "BAT_1_recharging"; gaining or
// losing the marker substrings drives the job state machine.
func (c StateChange) Commands() []types.ChargerCommand {
	var commands []types.ChargerCommand

	hadRecharging := strings.Contains(c.Previous, "_recharging")
	hasRecharging := strings.Contains(c.State, "_recharging")
	switch {
	case hasRecharging && !hadRecharging:
		commands = append(commands, types.CommandStartRecharging)
	case hadRecharging && !hasRecharging:
		commands = append(commands, types.CommandStopRecharging)
	}

	hadCharging := strings.Contains(c.Previous, "_charging")
	hasCharging := strings.Contains(c.State, "_charging")
	if hasCharging && !hadCharging {
		commands = append(commands, types.CommandStartCharging)
	}
	return commands
}
