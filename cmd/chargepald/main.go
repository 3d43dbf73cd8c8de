package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chargepal/chargepald/pkg/api"
	"github.com/chargepal/chargepald/pkg/battery"
	"github.com/chargepal/chargepald/pkg/events"
	"github.com/chargepal/chargepald/pkg/health"
	"github.com/chargepal/chargepald/pkg/livestore"
	"github.com/chargepal/chargepald/pkg/log"
	"github.com/chargepal/chargepald/pkg/planner"
	"github.com/chargepal/chargepald/pkg/planstore"
	"github.com/chargepal/chargepald/pkg/stations"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chargepald",
	Short: "Chargepald - ChargePal fleet controller",
	Long: `Chargepald is the on-site controller of a ChargePal robot fleet.

It watches the booking database, plans which robot moves which battery
cart where, hands jobs to robots over msgpack RPC, and walks every
charging session from check-in to pickup.`,
	Version: Version,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Chargepald version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the fleet controller",
	Long: `Run the fleet controller for one parking area.

The controller mirrors fleet and booking state from the live database
(the booking server's MySQL when --livestore-config points at a
connection file, an embedded database otherwise), plans robot jobs once
per update interval, and serves the robots' RPC endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		rpcAddr, _ := cmd.Flags().GetString("rpc-addr")
		httpAddr, _ := cmd.Flags().GetString("http-addr")
		liveConfigPath, _ := cmd.Flags().GetString("livestore-config")
		mqttBroker, _ := cmd.Flags().GetString("mqtt-broker")
		updateInterval, _ := cmd.Flags().GetDuration("update-interval")
		jobDuration, _ := cmd.Flags().GetDuration("robot-job-duration")
		logLevel, _ := cmd.Flags().GetString("log-level")
		logJSON, _ := cmd.Flags().GetBool("log-json")

		log.Init(log.Config{
			Level:      log.Level(logLevel),
			JSONOutput: logJSON,
		})

		fmt.Println("Starting ChargePal fleet controller...")
		fmt.Printf("  Data Directory: %s\n", dataDir)
		fmt.Printf("  RPC Address: %s\n", rpcAddr)
		fmt.Printf("  HTTP Address: %s\n", httpAddr)
		fmt.Println()

		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		liveConfig, err := livestore.LoadConfig(liveConfigPath)
		if err != nil {
			return err
		}

		live, err := livestore.Open(dataDir, liveConfig)
		if err != nil {
			return fmt.Errorf("failed to open live database: %w", err)
		}
		defer func() { _ = live.Close() }()

		plans, err := planstore.Open(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open plan store: %w", err)
		}
		defer func() { _ = plans.Close() }()

		// The fleet composition comes from the live database, not from
		// flags. Robots, carts and stations survive restarts in the plan
		// store; bootstrap only fills the gaps.
		seed, err := fleetFromLive(cmd.Context(), live)
		if err != nil {
			return err
		}
		if err := plans.Bootstrap(seed); err != nil {
			return fmt.Errorf("failed to bootstrap plan store: %w", err)
		}
		fmt.Printf("✓ Fleet bootstrapped (%d robots, %d carts, %d stations)\n",
			len(seed.Robots), len(seed.Carts), len(seed.Stations))

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()
		stopSink := logEvents(broker)
		defer stopSink()

		picker := stations.NewPicker(live)
		commander := battery.NewCommander(live, broker, battery.CommanderConfig{
			Broker: mqttBroker,
		})
		defer commander.Close()

		pln := planner.New(plans, live, picker, broker, planner.Config{
			UpdateInterval:   updateInterval,
			RobotJobDuration: jobDuration,
		})
		pln.Start()
		fmt.Println("✓ Planner started")

		apiServer := api.NewServer(pln, picker, commander, live, broker)
		if err := apiServer.Start(rpcAddr); err != nil {
			pln.Stop()
			return err
		}
		fmt.Printf("✓ RPC server listening on %s\n", apiServer.Addr())

		checks := map[string]health.Checker{
			"livestore": health.NewSQLChecker("livestore", live),
		}
		if mqttBroker != "" {
			checks["mqtt"] = health.NewTCPChecker(brokerAddr(mqttBroker))
		}
		healthServer := api.NewHealthServer(Version, checks)
		errCh := make(chan error, 1)
		go func() {
			if err := healthServer.Start(httpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("health server error: %w", err)
			}
		}()
		fmt.Printf("✓ Health and metrics endpoints on %s\n", httpAddr)

		fmt.Println()
		fmt.Println("Controller is running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		var runErr error
		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case err := <-pln.Fault():
			fmt.Fprintf(os.Stderr, "\nPlanner fault: %v\n", err)
			runErr = err
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
			runErr = err
		}

		apiServer.Stop()
		healthServer.Stop()
		pln.Stop()

		fmt.Println("✓ Shutdown complete")
		return runErr
	},
}

func init() {
	serveCmd.Flags().String("data-dir", "/var/lib/chargepald", "Directory for the plan store and embedded live database")
	serveCmd.Flags().String("rpc-addr", ":50059", "Address for the robots' RPC endpoints")
	serveCmd.Flags().String("http-addr", ":9090", "Address for health and metrics endpoints")
	serveCmd.Flags().String("livestore-config", "", "Connection file of the booking server's database (absent = embedded)")
	serveCmd.Flags().String("mqtt-broker", "", "MQTT broker for battery commands, e.g. "+battery.DefaultBroker+" (empty = disabled)")
	serveCmd.Flags().Duration("update-interval", time.Second, "Pause between planning passes")
	serveCmd.Flags().Duration("robot-job-duration", time.Minute, "Transport time estimate widening delivery deadlines")
	serveCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().Bool("log-json", true, "Log JSON instead of console output")
}

// fleetFromLive reads the fleet composition from env_info and the current
// entity positions from the mirror tables.
func fleetFromLive(ctx context.Context, live *livestore.Store) (planstore.Seed, error) {
	var seed planstore.Seed

	groups, err := live.FetchEnvInfos(ctx)
	if err != nil {
		return seed, fmt.Errorf("failed to read env_info: %w", err)
	}
	if len(groups[livestore.EnvRobots]) == 0 {
		return seed, fmt.Errorf("live database names no robots; run 'chargepald seed' or point --livestore-config at the booking server")
	}

	for _, kind := range []string{livestore.EnvADS, livestore.EnvBCS, livestore.EnvBWS, livestore.EnvRBS} {
		seed.Stations = append(seed.Stations, groups[kind]...)
	}

	robots, err := live.FetchByFirstHeader(ctx, livestore.TableRobotInfo, livestore.RobotInfoHeaders)
	if err != nil {
		return seed, fmt.Errorf("failed to read robot positions: %w", err)
	}
	seed.Robots = make(map[string]string, len(groups[livestore.EnvRobots]))
	for _, name := range groups[livestore.EnvRobots] {
		seed.Robots[name] = robots[name]["robot_location"]
	}

	carts, err := live.FetchByFirstHeader(ctx, livestore.TableCartInfo, livestore.CartInfoHeaders)
	if err != nil {
		return seed, fmt.Errorf("failed to read cart positions: %w", err)
	}
	seed.Carts = make(map[string]string, len(groups[livestore.EnvCarts]))
	for _, name := range groups[livestore.EnvCarts] {
		seed.Carts[name] = carts[name]["cart_location"]
	}

	return seed, nil
}

// logEvents mirrors the broker onto the log so operators can follow the
// fleet without a subscriber of their own. Robot log lines surface at
// info, the planner's own chatter stays at debug.
func logEvents(broker *events.Broker) func() {
	logger := log.WithComponent("events")
	sub := broker.Subscribe()
	go func() {
		for event := range sub {
			entry := logger.Debug()
			if event.Type == events.EventRobotLog {
				entry = logger.Info()
			}
			entry = entry.Str("type", string(event.Type))
			for key, value := range event.Metadata {
				entry = entry.Str(key, value)
			}
			entry.Msg(event.Message)
		}
	}()
	return func() { broker.Unsubscribe(sub) }
}

// brokerAddr strips the MQTT URI scheme for the TCP reachability probe
func brokerAddr(uri string) string {
	for _, scheme := range []string{"tcp://", "ssl://", "ws://"} {
		if strings.HasPrefix(uri, scheme) {
			return strings.TrimPrefix(uri, scheme)
		}
	}
	return uri
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Chargepald version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}
