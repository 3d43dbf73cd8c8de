package planstore

import (
	"encoding/json"
	"strings"

	"github.com/chargepal/chargepald/pkg/layout"
	"github.com/chargepal/chargepald/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// Txn wraps a single BoltDB transaction. The planner opens one per tick,
// mutates the fleet through it, and commits at the end; everything else
// only ever sees committed state.
type Txn struct {
	tx *bolt.Tx
}

// Commit commits the transaction
func (t *Txn) Commit() error {
	return t.tx.Commit()
}

// Rollback discards the transaction
func (t *Txn) Rollback() error {
	return t.tx.Rollback()
}

// Robot retrieves a robot by name, nil when unknown
func (t *Txn) Robot(name string) (*types.Robot, error) {
	return getRobot(t.tx.Bucket(bucketRobots), []byte(name))
}

// PutRobot stores a robot
func (t *Txn) PutRobot(robot *types.Robot) error {
	return putJSON(t.tx.Bucket(bucketRobots), []byte(robot.Name), robot)
}

// Robots returns all robots
func (t *Txn) Robots() ([]*types.Robot, error) {
	var robots []*types.Robot
	err := t.tx.Bucket(bucketRobots).ForEach(func(k, v []byte) error {
		var robot types.Robot
		if err := json.Unmarshal(v, &robot); err != nil {
			return err
		}
		robots = append(robots, &robot)
		return nil
	})
	return robots, err
}

// AvailableRobots returns the robots currently free for assignment
func (t *Txn) AvailableRobots() ([]*types.Robot, error) {
	robots, err := t.Robots()
	if err != nil {
		return nil, err
	}
	var available []*types.Robot
	for _, robot := range robots {
		if robot.Available {
			available = append(available, robot)
		}
	}
	return available, nil
}

// Cart retrieves a cart by name, nil when unknown
func (t *Txn) Cart(name string) (*types.Cart, error) {
	return getCart(t.tx.Bucket(bucketCarts), []byte(name))
}

// PutCart stores a cart
func (t *Txn) PutCart(cart *types.Cart) error {
	return putJSON(t.tx.Bucket(bucketCarts), []byte(cart.Name), cart)
}

// Carts returns all carts
func (t *Txn) Carts() ([]*types.Cart, error) {
	var carts []*types.Cart
	err := t.tx.Bucket(bucketCarts).ForEach(func(k, v []byte) error {
		var cart types.Cart
		if err := json.Unmarshal(v, &cart); err != nil {
			return err
		}
		carts = append(carts, &cart)
		return nil
	})
	return carts, err
}

// AvailableCarts returns the carts currently free for assignment
func (t *Txn) AvailableCarts() ([]*types.Cart, error) {
	carts, err := t.Carts()
	if err != nil {
		return nil, err
	}
	var available []*types.Cart
	for _, cart := range carts {
		if cart.Available {
			available = append(available, cart)
		}
	}
	return available, nil
}

// CartForBooking returns the cart bound to the given booking, nil when none
func (t *Txn) CartForBooking(bookingID int64) (*types.Cart, error) {
	if bookingID == 0 {
		return nil, nil
	}
	carts, err := t.Carts()
	if err != nil {
		return nil, err
	}
	for _, cart := range carts {
		if cart.BookingID == bookingID {
			return cart, nil
		}
	}
	return nil, nil
}

// Station retrieves a station by name, nil when unknown
func (t *Txn) Station(name string) (*types.Station, error) {
	data := t.tx.Bucket(bucketStations).Get([]byte(name))
	if data == nil {
		return nil, nil
	}
	var station types.Station
	if err := json.Unmarshal(data, &station); err != nil {
		return nil, err
	}
	return &station, nil
}

// PutStation stores a station
func (t *Txn) PutStation(station *types.Station) error {
	return putJSON(t.tx.Bucket(bucketStations), []byte(station.Name), station)
}

// Stations returns all stations
func (t *Txn) Stations() ([]*types.Station, error) {
	var stations []*types.Station
	err := t.tx.Bucket(bucketStations).ForEach(func(k, v []byte) error {
		var station types.Station
		if err := json.Unmarshal(v, &station); err != nil {
			return err
		}
		stations = append(stations, &station)
		return nil
	})
	return stations, err
}

// StationOccupied reports whether a station is reserved or has a cart
// standing on it. Cart locations are matched by substring so composite
// locations like "robot ChargePal1 at BCS_1" count as occupying BCS_1.
func (t *Txn) StationOccupied(name string) (bool, error) {
	station, err := t.Station(name)
	if err != nil {
		return false, err
	}
	if station != nil && station.Reservation != "" {
		return true, nil
	}
	carts, err := t.Carts()
	if err != nil {
		return false, err
	}
	for _, cart := range carts {
		if strings.Contains(cart.Location, name) {
			return true, nil
		}
	}
	return false, nil
}

// Booking retrieves a booking by id, nil when unknown
func (t *Txn) Booking(id int64) (*types.Booking, error) {
	data := t.tx.Bucket(bucketBookings).Get(itob(uint64(id)))
	if data == nil {
		return nil, nil
	}
	var booking types.Booking
	if err := json.Unmarshal(data, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

// PutBooking stores a booking
func (t *Txn) PutBooking(booking *types.Booking) error {
	return putJSON(t.tx.Bucket(bucketBookings), itob(uint64(booking.ID)), booking)
}

// Bookings returns all bookings in id order
func (t *Txn) Bookings() ([]*types.Booking, error) {
	var bookings []*types.Booking
	err := t.tx.Bucket(bucketBookings).ForEach(func(k, v []byte) error {
		var booking types.Booking
		if err := json.Unmarshal(v, &booking); err != nil {
			return err
		}
		bookings = append(bookings, &booking)
		return nil
	})
	return bookings, err
}

// DeleteBookings drops all bookings. Development reset.
func (t *Txn) DeleteBookings() error {
	cursor := t.tx.Bucket(bucketBookings).Cursor()
	for k, _ := cursor.First(); k != nil; k, _ = cursor.Next() {
		if err := cursor.Delete(); err != nil {
			return err
		}
	}
	return nil
}

// Job retrieves a job by id, nil when unknown
func (t *Txn) Job(id uint64) (*types.Job, error) {
	data := t.tx.Bucket(bucketJobs).Get(itob(id))
	if data == nil {
		return nil, nil
	}
	var job types.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// PutJob stores a job
func (t *Txn) PutJob(job *types.Job) error {
	return putJSON(t.tx.Bucket(bucketJobs), itob(job.ID), job)
}

// CreateJob assigns the next job id and stores the job
func (t *Txn) CreateJob(job *types.Job) error {
	bucket := t.tx.Bucket(bucketJobs)
	id, err := bucket.NextSequence()
	if err != nil {
		return err
	}
	job.ID = id
	return putJSON(bucket, itob(id), job)
}

// Jobs returns all jobs in insertion order. Keys are big-endian sequence
// numbers, so bucket order is creation order.
func (t *Txn) Jobs() ([]*types.Job, error) {
	var jobs []*types.Job
	err := t.tx.Bucket(bucketJobs).ForEach(func(k, v []byte) error {
		var job types.Job
		if err := json.Unmarshal(v, &job); err != nil {
			return err
		}
		jobs = append(jobs, &job)
		return nil
	})
	return jobs, err
}

// JobsInState returns all jobs in any of the given states, insertion order
func (t *Txn) JobsInState(states ...types.JobState) ([]*types.Job, error) {
	jobs, err := t.Jobs()
	if err != nil {
		return nil, err
	}
	var matched []*types.Job
	for _, job := range jobs {
		for _, state := range states {
			if job.State == state {
				matched = append(matched, job)
				break
			}
		}
	}
	return matched, nil
}

// JobsForBooking returns all jobs referencing the given booking
func (t *Txn) JobsForBooking(bookingID int64) ([]*types.Job, error) {
	if bookingID == 0 {
		return nil, nil
	}
	jobs, err := t.Jobs()
	if err != nil {
		return nil, err
	}
	var matched []*types.Job
	for _, job := range jobs {
		if job.BookingID == bookingID {
			matched = append(matched, job)
		}
	}
	return matched, nil
}

// CurrentJob returns the job currently assigned to a robot, nil when the
// robot has none. More than one assigned job is a corrupted plan.
func (t *Txn) CurrentJob(robotName string) (*types.Job, error) {
	jobs, err := t.Jobs()
	if err != nil {
		return nil, err
	}
	var current *types.Job
	for _, job := range jobs {
		if job.CurrentlyAssigned && job.RobotName == robotName {
			if current != nil {
				return nil, types.Invariantf("robot %s has multiple assigned jobs: %d and %d",
					robotName, current.ID, job.ID)
			}
			current = job
		}
	}
	return current, nil
}

// HasPendingJob reports whether a robot already has a PENDING job queued
func (t *Txn) HasPendingJob(robotName string) (bool, error) {
	jobs, err := t.JobsInState(types.JobStatePending)
	if err != nil {
		return false, err
	}
	for _, job := range jobs {
		if job.RobotName == robotName {
			return true, nil
		}
	}
	return false, nil
}

// LiveJobForCart returns the non-terminal job handling the given cart,
// nil when no chain is live. At most one such job may exist per cart.
func (t *Txn) LiveJobForCart(cartName string) (*types.Job, error) {
	jobs, err := t.JobsInState(types.JobStateOpen, types.JobStatePending, types.JobStateOngoing)
	if err != nil {
		return nil, err
	}
	var live *types.Job
	for _, job := range jobs {
		if job.CartName != cartName {
			continue
		}
		if live != nil {
			return nil, types.Invariantf("cart %s has multiple live jobs: %d and %d",
				cartName, live.ID, job.ID)
		}
		live = job
	}
	return live, nil
}

// ReservationFor returns the station a cart is reserved at, "" when none
func (t *Txn) ReservationFor(cartName string) (string, error) {
	stations, err := t.Stations()
	if err != nil {
		return "", err
	}
	for _, station := range stations {
		if station.Reservation == cartName {
			return station.Name, nil
		}
	}
	return "", nil
}

// Distance returns the layout distance between two stations. Unknown
// pairs fall back to the layout maximum so they sort last.
func (t *Txn) Distance(start, target string) (float64, error) {
	data := t.tx.Bucket(bucketDistances).Get(distanceKey(start, target))
	if data == nil {
		return layout.MaxDistance, nil
	}
	var entry types.Distance
	if err := json.Unmarshal(data, &entry); err != nil {
		return 0, err
	}
	return entry.Distance, nil
}

func getRobot(bucket *bolt.Bucket, key []byte) (*types.Robot, error) {
	data := bucket.Get(key)
	if data == nil {
		return nil, nil
	}
	var robot types.Robot
	if err := json.Unmarshal(data, &robot); err != nil {
		return nil, err
	}
	return &robot, nil
}

func getCart(bucket *bolt.Bucket, key []byte) (*types.Cart, error) {
	data := bucket.Get(key)
	if data == nil {
		return nil, nil
	}
	var cart types.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}
