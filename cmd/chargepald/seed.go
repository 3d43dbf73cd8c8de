package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chargepal/chargepald/pkg/livestore"
	"github.com/chargepal/chargepald/pkg/log"
	"github.com/chargepal/chargepald/pkg/planstore"
	"github.com/chargepal/chargepald/pkg/scenario"
	"github.com/chargepal/chargepald/pkg/types"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed a development fleet into the embedded databases",
	Long: `Seed a development fleet into the embedded databases.

Writes the fleet composition into env_info, places robots and carts in
the mirror tables, bootstraps the plan store, and optionally inserts
checked-in sample bookings so a controller started afterwards has work
to hand out.

Examples:
  # Default two-robot fleet
  chargepald seed --data-dir ./dev

  # Minimal fleet with one booking waiting at the adapter station
  chargepald seed --data-dir ./dev \
    --fleet "ADS: 1, BCS: 1, BWS: 1, RBS: 1, robots: 1, carts: 1" \
    --bookings 1`,
	RunE: runSeed,
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the live database and plan store contents",
	RunE:  runDump,
}

func init() {
	seedCmd.Flags().String("data-dir", "/var/lib/chargepald", "Directory for the plan store and embedded live database")
	seedCmd.Flags().String("fleet", "", `Fleet counts, e.g. "ADS: 1, BCS: 1, BWS: 1, RBS: 1, robots: 1, carts: 1" (empty = default fleet)`)
	seedCmd.Flags().Int("bookings", 0, "Number of checked-in sample bookings to insert")
	seedCmd.Flags().String("drop-location", "ADS_1", "Drop location of the sample bookings")
	seedCmd.Flags().Bool("reset", false, "Drop existing bookings before seeding")

	dumpCmd.Flags().String("data-dir", "/var/lib/chargepald", "Directory for the plan store and embedded live database")

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(dumpCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	fleet, _ := cmd.Flags().GetString("fleet")
	bookings, _ := cmd.Flags().GetInt("bookings")
	dropLocation, _ := cmd.Flags().GetString("drop-location")
	reset, _ := cmd.Flags().GetBool("reset")

	log.Init(log.Config{Level: log.WarnLevel})

	site := scenario.DefaultConfig()
	if fleet != "" {
		var err error
		site, err = scenario.ParseConfig(fleet)
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	live, err := livestore.Open(dataDir, nil)
	if err != nil {
		return fmt.Errorf("failed to open live database: %w", err)
	}
	defer func() { _ = live.Close() }()

	plans, err := planstore.Open(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open plan store: %w", err)
	}
	defer func() { _ = plans.Close() }()

	ctx := context.Background()
	if reset {
		if err := resetBookings(ctx, live, plans); err != nil {
			return err
		}
		fmt.Println("✓ Existing bookings dropped")
	}

	if err := site.Seed(ctx, live, plans); err != nil {
		return fmt.Errorf("failed to seed fleet: %w", err)
	}
	fmt.Printf("✓ Fleet seeded: %s\n", site)

	for i := 0; i < bookings; i++ {
		id, err := live.InsertBooking(ctx, livestore.BookingSeed{
			DropLocation: dropLocation,
			Status:       types.BookingStatusCheckedIn,
		})
		if err != nil {
			return fmt.Errorf("failed to insert booking: %w", err)
		}
		fmt.Printf("✓ Booking %d created at %s (checked_in)\n", id, dropLocation)
	}

	return nil
}

// resetBookings drops the booking rows from the live database and the
// booking snapshots from the plan store
func resetBookings(ctx context.Context, live *livestore.Store, plans *planstore.Store) error {
	if err := live.DeleteBookings(ctx); err != nil {
		return fmt.Errorf("failed to reset bookings: %w", err)
	}
	txn, err := plans.Begin()
	if err != nil {
		return err
	}
	if err := txn.DeleteBookings(); err != nil {
		_ = txn.Rollback()
		return fmt.Errorf("failed to reset planned bookings: %w", err)
	}
	return txn.Commit()
}

func runDump(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")

	log.Init(log.Config{Level: log.WarnLevel})

	live, err := livestore.Open(dataDir, nil)
	if err != nil {
		return fmt.Errorf("failed to open live database: %w", err)
	}
	defer func() { _ = live.Close() }()

	plans, err := planstore.Open(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open plan store: %w", err)
	}
	defer func() { _ = plans.Close() }()

	ctx := context.Background()

	tables, err := live.Dump(ctx)
	if err != nil {
		return fmt.Errorf("failed to dump live database: %w", err)
	}
	fmt.Printf("Live database (%s):\n", live.FilePath())
	for _, table := range tables {
		fmt.Printf("  %s (%d rows)\n", table.Name, len(table.Rows))
		for _, row := range table.Rows {
			fmt.Printf("    [%d] %s\n", row.RowID, strings.Join(row.Values, " | "))
		}
	}

	robots, err := plans.ListRobots()
	if err != nil {
		return fmt.Errorf("failed to list robots: %w", err)
	}
	fmt.Printf("\nRobots (%d):\n", len(robots))
	for _, robot := range robots {
		fmt.Printf("  %-12s location=%-8s charge=%.0f available=%v job=%d\n",
			robot.Name, robot.Location, robot.Charge, robot.Available, robot.CurrentJobID)
	}

	carts, err := plans.ListCarts()
	if err != nil {
		return fmt.Errorf("failed to list carts: %w", err)
	}
	fmt.Printf("\nCarts (%d):\n", len(carts))
	for _, cart := range carts {
		fmt.Printf("  %-12s location=%-8s charge=%.0f available=%v booking=%d\n",
			cart.Name, cart.Location, cart.Charge, cart.Available, cart.BookingID)
	}

	allStations, err := plans.ListStations()
	if err != nil {
		return fmt.Errorf("failed to list stations: %w", err)
	}
	fmt.Printf("\nStations (%d):\n", len(allStations))
	for _, station := range allStations {
		reservation := station.Reservation
		if reservation == "" {
			reservation = "-"
		}
		fmt.Printf("  %-12s available=%-5v reservation=%s\n",
			station.Name, station.Available, reservation)
	}

	jobs, err := plans.ListJobs()
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	fmt.Printf("\nJobs (%d):\n", len(jobs))
	for _, job := range jobs {
		fmt.Printf("  [%d] %-17s %-8s robot=%-12s cart=%-8s %s -> %s booking=%d\n",
			job.ID, job.Type, job.State, job.RobotName, job.CartName,
			job.SourceStation, job.TargetStation, job.BookingID)
	}

	sessions, err := plans.ListBookings()
	if err != nil {
		return fmt.Errorf("failed to list bookings: %w", err)
	}
	fmt.Printf("\nBookings (%d):\n", len(sessions))
	for _, booking := range sessions {
		location := booking.ActualLocation
		if location == "" {
			location = booking.PlannedLocation
		}
		fmt.Printf("  [%d] %-12s location=%-8s charge_request=%.0f\n",
			booking.ID, booking.Status, location, booking.ChargeRequest())
	}

	return nil
}
