package battery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/chargepal/chargepald/pkg/events"
	"github.com/chargepal/chargepald/pkg/livestore"
	"github.com/chargepal/chargepald/pkg/log"
	"github.com/chargepal/chargepald/pkg/metrics"
)

// Mode request names accepted by Execute
const (
	RequestWakeup      = "wakeup"
	RequestBatOnly     = "mode_req_bat_only"
	RequestStandby     = "mode_req_standby"
	RequestIdle        = "mode_req_idle"
	RequestEVACCharge  = "mode_req_EV_AC_Charge"
	RequestEVDCCharge  = "mode_req_EV_DC_Charge"
	RequestBatACCharge = "mode_req_Bat_AC_Charge"
	RequestChargeStart = "ladeprozess_start"
	RequestChargeEnd   = "ladeprozess_end"
	RequestEmergency   = "mode_req_emergency_shutdown"
)

// CAN frames of the battery protocol, published as MQTT payloads on the
// cart's topic.
const (
	frameWakeup    = "1793,2,1,0"
	frameEVDC      = "1793,2,2,0"
	frameEVAC      = "1793,2,4,0"
	frameBatAC     = "1793,2,8,0"
	frameStandby   = "1793,2,16,0"
	frameIdle      = "1793,2,32,0"
	frameUnlock    = "1793,2,64,0"
	frameBatOnly   = "1793,2,128,0"
	framePlugDone  = "1793,2,0,1"
	frameEmergency = "1793,2,0,2"
)

// DefaultBroker is the battery bridge on the fleet network
const DefaultBroker = "tcp://192.168.185.25:1883"

// CommanderConfig tunes the command confirmation loops
type CommanderConfig struct {
	// Broker is the MQTT address, e.g. tcp://192.168.185.25:1883.
	// Empty disables publishing; commands then only run their
	// database-side confirmation logic.
	Broker string

	// FeedbackTimeout bounds the wait for the battery's acknowledgment
	// in TX_ChargeOrdersFeedback (default 60s).
	FeedbackTimeout time.Duration

	// MonitorTimeout bounds the wait for a live state column to reach
	// its expected value (default 180s).
	MonitorTimeout time.Duration

	// PollInterval is the confirmation poll period (default 500ms)
	PollInterval time.Duration
}

func (c *CommanderConfig) withDefaults() CommanderConfig {
	config := *c
	if config.FeedbackTimeout == 0 {
		config.FeedbackTimeout = 60 * time.Second
	}
	if config.MonitorTimeout == 0 {
		config.MonitorTimeout = 180 * time.Second
	}
	if config.PollInterval == 0 {
		config.PollInterval = 500 * time.Millisecond
	}
	return config
}

// Commander executes battery mode requests against carts. Frames go out
// over MQTT on the cart's topic; confirmations come back through the
// battery tables the bridge keeps fresh in the live database.
type Commander struct {
	logger zerolog.Logger
	store  *livestore.Store
	broker *events.Broker
	config CommanderConfig

	mu     sync.Mutex
	client mqtt.Client
}

// NewCommander creates a battery commander. The events broker may be nil.
func NewCommander(store *livestore.Store, broker *events.Broker, config CommanderConfig) *Commander {
	return &Commander{
		logger: log.WithComponent("battery"),
		store:  store,
		broker: broker,
		config: config.withDefaults(),
	}
}

// Close disconnects from the MQTT broker
func (c *Commander) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
	c.client = nil
}

// Execute runs one named mode request against a cart and reports whether
// the battery confirmed it. Unknown request names are an error so the
// RPC layer can answer with a typed negative.
func (c *Commander) Execute(ctx context.Context, cart, request string) (bool, error) {
	metrics.BatteryCommandsTotal.WithLabelValues(request).Inc()
	c.emit(cart, request)

	switch request {
	case RequestWakeup:
		return c.wakeup(ctx, cart)
	case RequestBatOnly:
		return c.publish(cart, frameBatOnly)
	case RequestStandby:
		return c.publish(cart, frameStandby)
	case RequestIdle:
		return c.publish(cart, frameIdle)
	case RequestEVACCharge:
		return c.publish(cart, frameEVAC)
	case RequestEVDCCharge:
		return c.publish(cart, frameEVDC)
	case RequestBatACCharge:
		return c.publish(cart, frameBatAC)
	case RequestChargeStart:
		return c.publish(cart, frameUnlock, framePlugDone)
	case RequestChargeEnd:
		return c.publish(cart, frameIdle, framePlugDone)
	case RequestEmergency:
		return c.publish(cart, frameEmergency)
	}
	return false, fmt.Errorf("unknown battery request: %s", request)
}

// wakeup brings a battery from standby into Bat_only mode. This is the
// one request the protocol fully confirms: frame out, WakeUp_OK feedback
// in, then the live mode column must flip.
func (c *Commander) wakeup(ctx context.Context, cart string) (bool, error) {
	state, err := c.store.ReadBatteryCell(ctx, livestore.TableBatteryLive, cart, "State_bat_mod")
	if err != nil {
		return false, err
	}
	mode, err := c.store.ReadBatteryCell(ctx, livestore.TableBatteryLive, cart, "Mode_Bat_only")
	if err != nil {
		return false, err
	}
	state = strings.ToLower(state)

	switch {
	case strings.Contains(state, "standby") && !strings.Contains(state, "error"):
		if _, err := c.publish(cart, frameWakeup); err != nil {
			return false, err
		}
		if !c.awaitCell(ctx, livestore.TableBatteryFeedback, cart, "Bat_State_actual", "WakeUp_OK", c.config.FeedbackTimeout) {
			c.logger.Warn().Str("cart", cart).Msg("No wakeup acknowledgment from battery")
			return false, nil
		}
		return c.awaitCell(ctx, livestore.TableBatteryLive, cart, "Mode_Bat_only", "1", c.config.MonitorTimeout), nil

	case strings.Contains(state, "batok") && !strings.Contains(state, "error") && mode == "1":
		return true, nil
	}
	return false, nil
}

// awaitCell polls one battery cell until it holds the expected value or
// the timeout elapses.
func (c *Commander) awaitCell(ctx context.Context, table, cart, column, expected string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		value, err := c.store.ReadBatteryCell(ctx, table, cart, column)
		if err == nil && value == expected {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// publish sends frames to the cart's MQTT topic. Without a configured
// broker frames are dropped with a debug log, which keeps development
// sites without battery hardware working.
func (c *Commander) publish(cart string, frames ...string) (bool, error) {
	if c.config.Broker == "" {
		c.logger.Debug().Str("cart", cart).Strs("frames", frames).Msg("MQTT disabled, dropping frames")
		return true, nil
	}

	client, err := c.connect()
	if err != nil {
		return false, err
	}
	for _, frame := range frames {
		token := client.Publish(cart, 0, false, frame)
		if !token.WaitTimeout(5 * time.Second) {
			return false, fmt.Errorf("publish to %s timed out", cart)
		}
		if err := token.Error(); err != nil {
			return false, fmt.Errorf("failed to publish to %s: %w", cart, err)
		}
	}
	return true, nil
}

func (c *Commander) connect() (mqtt.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.client.IsConnected() {
		return c.client, nil
	}

	options := mqtt.NewClientOptions().
		AddBroker(c.config.Broker).
		SetClientID("chargepald").
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(options)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connect to MQTT broker %s timed out", c.config.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", c.config.Broker, err)
	}
	c.client = client
	c.logger.Info().Str("broker", c.config.Broker).Msg("Connected to MQTT broker")
	return client, nil
}

func (c *Commander) emit(cart, request string) {
	if c.broker == nil {
		return
	}
	c.broker.Emit(events.EventChargerCommand, "Battery command "+request, map[string]string{
		"cart":    cart,
		"request": request,
	})
}
