package livestore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chargepal/chargepald/pkg/metrics"
	"github.com/chargepal/chargepald/pkg/types"
)

// bookingColumns is the orders_in subset the planner consumes
const bookingColumns = `charging_session_id, drop_location, charging_session_status,
	drop_date_time, pick_up_date_time, plugintime_calculated, booking_date_time_dev,
	last_change, Actual_Drop_SOC, Actual_Target_SOC, Actual_plugintime_calculated,
	Actual_BEV_Drop_Time, Actual_BEV_Pickup_Time, BEV_slot_planned, bev_Port_Location`

// FetchUpdatedBookings returns bookings whose last_change is at or after
// the given watermark, in id order. Ties at the second boundary are
// included; the reconciler value-diffs, so re-reads are harmless. A zero
// watermark returns all bookings.
func (s *Store) FetchUpdatedBookings(ctx context.Context, since time.Time) ([]types.Booking, error) {
	query := "SELECT " + bookingColumns + " FROM orders_in"
	args := []any{}
	if !since.IsZero() {
		query += " WHERE last_change >= ?"
		args = append(args, FormatTime(since))
	}
	query += " ORDER BY charging_session_id"

	rows, err := s.queryLive(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bookings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bookings []types.Booking
	for rows.Next() {
		var cells [15]sql.NullString
		targets := make([]any, len(cells))
		for i := range cells {
			targets[i] = &cells[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		booking, err := parseBooking(cells)
		if err != nil {
			metrics.LiveStoreErrorsTotal.Inc()
			s.logger.Warn().Err(err).Str("id", cells[0].String).Msg("Skipping malformed booking row")
			continue
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

func parseBooking(cells [15]sql.NullString) (types.Booking, error) {
	id, err := strconv.ParseInt(cells[0].String, 10, 64)
	if err != nil {
		return types.Booking{}, fmt.Errorf("bad charging_session_id %q", cells[0].String)
	}

	booking := types.Booking{
		ID:              id,
		PlannedLocation: cells[1].String,
		// The live database has no separate actual-location column;
		// the drop location is where the vehicle stands.
		ActualLocation:  cells[1].String,
		Status:          types.BookingStatus(cells[2].String),
		ActualDropSOC:   ParseFloat(cells[8].String),
		ActualTargetSOC: ParseFloat(cells[9].String),
		SlotPlanned:     cells[13].String,
		PortLocation:    cells[14].String,
	}
	booking.PlannedDropTime, _ = ParseTime(cells[3].String)
	booking.PlannedPickupTime, _ = ParseTime(cells[4].String)
	booking.PlannedPluginTime, _ = ParseMinutes(cells[5].String)
	booking.CreatedAt, _ = ParseTime(cells[6].String)
	booking.LastChange, _ = ParseTime(cells[7].String)
	booking.ActualPluginTime, _ = ParseMinutes(cells[10].String)
	booking.ActualDropTime, _ = ParseTime(cells[11].String)
	booking.ActualPickupTime, _ = ParseTime(cells[12].String)
	return booking, nil
}

// SessionStatuses returns the status column of every booking
func (s *Store) SessionStatuses(ctx context.Context) (map[int64]string, error) {
	rows, err := s.queryLive(ctx,
		"SELECT charging_session_id, charging_session_status FROM orders_in")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session statuses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	statuses := make(map[int64]string)
	for rows.Next() {
		var rawID, status sql.NullString
		if err := rows.Scan(&rawID, &status); err != nil {
			return nil, err
		}
		id, err := strconv.ParseInt(rawID.String, 10, 64)
		if err != nil {
			continue
		}
		statuses[id] = status.String
	}
	return statuses, rows.Err()
}

// UpdateSessionStatus writes a booking's status and stamps last_change
func (s *Store) UpdateSessionStatus(ctx context.Context, id int64, status types.BookingStatus) error {
	_, err := s.execLive(ctx,
		"UPDATE orders_in SET charging_session_status = ?, last_change = ? WHERE charging_session_id = ?",
		string(status), FormatTime(time.Now()), strconv.FormatInt(id, 10))
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	return nil
}

// DeleteBookings clears the bookings table. Development reset.
func (s *Store) DeleteBookings(ctx context.Context) error {
	if _, err := s.execLive(ctx, "DELETE FROM orders_in"); err != nil {
		return fmt.Errorf("failed to delete bookings: %w", err)
	}
	return nil
}

// BookingSeed carries the caller-controlled columns of a new booking
// row. Zero values fall back to the booking server's sample layout:
// status booked, drop now, pickup in two hours, the sample plug-in
// estimate, target SOC 80.
type BookingSeed struct {
	DropLocation string
	Status       types.BookingStatus
	BookedAt     time.Time
	DropTime     time.Time
	PickupTime   time.Time
	PluginTime   time.Duration
	TargetSOC    float64
}

// InsertBooking writes a booking row the way the booking server lays it
// out and returns its session id, one higher than the highest existing
// one.
func (s *Store) InsertBooking(ctx context.Context, seed BookingSeed) (int64, error) {
	var maxID sql.NullString
	err := s.live().QueryRowContext(ctx,
		"SELECT MAX(charging_session_id) FROM orders_in").Scan(&maxID)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to find max booking id: %w", err)
	}
	id := int64(1)
	if maxID.Valid {
		if previous, err := strconv.ParseInt(maxID.String, 10, 64); err == nil {
			id = previous + 1
		}
	}

	now := time.Now()
	if seed.Status == "" {
		seed.Status = types.BookingStatusBooked
	}
	if seed.BookedAt.IsZero() {
		seed.BookedAt = now
	}
	if seed.DropTime.IsZero() {
		seed.DropTime = now
	}
	if seed.PickupTime.IsZero() {
		seed.PickupTime = now.Add(2 * time.Hour)
	}
	plugin := "195.87"
	if seed.PluginTime > 0 {
		plugin = FormatMinutes(seed.PluginTime)
	}
	target := "80"
	if seed.TargetSOC > 0 {
		target = strconv.FormatFloat(seed.TargetSOC, 'f', -1, 64)
	}

	nowStr := FormatTime(now)
	row := []any{
		strconv.FormatInt(id, 10),   // charging_session_id
		"0",                         // app_id
		"2",                         // customer_id
		"5YJSA7H11FFP67457",         // VIN
		"11",                        // bev_chargePower_kW_AC_I
		"NULL",                      // bev_chargePower_kW_AC_II
		"TYP2",                      // bev_charge_Port_AC
		"250",                       // bev_fastcharge_power_DC_I
		"NULL",                      // bev_fastcharge_power_DC_II
		"CCS",                       // bev_fastcharge_port
		"Left Side - Rear",          // bev_Port_Location
		seed.DropLocation,           // drop_location
		"AC",                        // BEV_slot_planned
		plugin,                      // plugintime_calculated
		target,                      // target_soc_pct
		"NULL",                      // current_BEV_slot_recond
		FormatTime(seed.DropTime),   // drop_date_time
		FormatTime(seed.PickupTime), // pick_up_date_time
		nowStr,                      // arrival_timestamp
		FormatTime(seed.BookedAt),   // booking_date_time_dev
		string(seed.Status),         // charging_session_status
		nowStr,                      // last_change
		"0",                         // immediate_charge
		"20",                        // Actual_Drop_SOC
		target,                      // Actual_Target_SOC
		"0.00",                      // Actual_plugintime_calculated
		nowStr,                      // Actual_BEV_Drop_Time
		nowStr,                      // Actual_BEV_Pickup_Time
	}
	placeholders := "?" + strings.Repeat(",?", orderColumns-1)
	if _, err := s.execLive(ctx,
		"INSERT INTO orders_in VALUES ("+placeholders+")", row...); err != nil {
		return 0, fmt.Errorf("failed to insert booking: %w", err)
	}
	return id, nil
}

// SeedBooking inserts a development booking at the given adapter station
// and returns its id. Values beyond location and status follow the
// booking server's sample layout.
func (s *Store) SeedBooking(ctx context.Context, dropLocation string, status types.BookingStatus) (int64, error) {
	return s.InsertBooking(ctx, BookingSeed{DropLocation: dropLocation, Status: status})
}

// CheckInBooking records a vehicle's arrival: where it actually stands,
// the measured state of charge, the recalculated plug-in time, and the
// checked_in status the planner schedules on.
func (s *Store) CheckInBooking(ctx context.Context, id int64, location string, dropSOC float64, pluginTime time.Duration) error {
	now := FormatTime(time.Now())
	_, err := s.execLive(ctx,
		`UPDATE orders_in SET charging_session_status = ?, drop_location = ?,
			Actual_Drop_SOC = ?, Actual_plugintime_calculated = ?,
			Actual_BEV_Drop_Time = ?, last_change = ?
		 WHERE charging_session_id = ?`,
		string(types.BookingStatusCheckedIn), location,
		strconv.FormatFloat(dropSOC, 'f', -1, 64), FormatMinutes(pluginTime),
		now, now, strconv.FormatInt(id, 10))
	if err != nil {
		return fmt.Errorf("failed to check in booking %d: %w", id, err)
	}
	return nil
}

// CheckOutBooking stamps a vehicle's departure
func (s *Store) CheckOutBooking(ctx context.Context, id int64) error {
	now := FormatTime(time.Now())
	_, err := s.execLive(ctx,
		"UPDATE orders_in SET Actual_BEV_Pickup_Time = ?, last_change = ? WHERE charging_session_id = ?",
		now, now, strconv.FormatInt(id, 10))
	if err != nil {
		return fmt.Errorf("failed to check out booking %d: %w", id, err)
	}
	return nil
}
