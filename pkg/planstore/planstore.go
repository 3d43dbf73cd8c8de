package planstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/chargepal/chargepald/pkg/layout"
	"github.com/chargepal/chargepald/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketRobots    = []byte("robots")
	bucketCarts     = []byte("carts")
	bucketStations  = []byte("stations")
	bucketJobs      = []byte("jobs")
	bucketBookings  = []byte("bookings")
	bucketDistances = []byte("distances")
	bucketMeta      = []byte("meta")
)

const schemaVersion = 1

// Store is the BoltDB-backed plan database. It holds the fleet entities
// the planner owns: robots, carts, stations, jobs, bookings, and the
// station distance relation.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the plan database under dataDir
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "plan.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketRobots,
			bucketCarts,
			bucketStations,
			bucketJobs,
			bucketBookings,
			bucketDistances,
			bucketMeta,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		meta := tx.Bucket(bucketMeta)
		return meta.Put([]byte("schema_version"), itob(schemaVersion))
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Seed describes the fleet bootstrapped into the plan store at startup.
// Station names carry their kind in the prefix (ADS_, BCS_, BWS_, RBS_).
type Seed struct {
	Robots   map[string]string // name → initial location
	Carts    map[string]string // name → initial location
	Stations []string
}

// Bootstrap creates robot, cart, and station rows that do not exist yet
// and materializes the station distance relation. Existing rows are left
// untouched so a restart preserves fleet state.
func (s *Store) Bootstrap(seed Seed) error {
	occupied := make(map[string]bool)
	for _, location := range seed.Robots {
		occupied[location] = true
	}
	for _, location := range seed.Carts {
		occupied[location] = true
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		robots := tx.Bucket(bucketRobots)
		for name, location := range seed.Robots {
			if robots.Get([]byte(name)) != nil {
				continue
			}
			robot := &types.Robot{
				Name:      name,
				Location:  location,
				Charge:    100.0,
				Available: true,
			}
			if err := putJSON(robots, []byte(name), robot); err != nil {
				return err
			}
		}

		carts := tx.Bucket(bucketCarts)
		for name, location := range seed.Carts {
			if carts.Get([]byte(name)) != nil {
				continue
			}
			cart := &types.Cart{
				Name:      name,
				Location:  location,
				Charge:    100.0,
				Available: true,
			}
			if err := putJSON(carts, []byte(name), cart); err != nil {
				return err
			}
		}

		stations := tx.Bucket(bucketStations)
		for _, name := range seed.Stations {
			if stations.Get([]byte(name)) != nil {
				continue
			}
			station := &types.Station{
				Name:      name,
				Available: !occupied[name],
			}
			if err := putJSON(stations, []byte(name), station); err != nil {
				return err
			}
		}

		distances := tx.Bucket(bucketDistances)
		for _, pair := range layout.Pairs(seed.Stations) {
			key := distanceKey(pair.Start, pair.Target)
			if err := putJSON(distances, key, &pair); err != nil {
				return err
			}
		}
		return nil
	})
}

// Begin opens the planner's per-tick read-write transaction
func (s *Store) Begin() (*Txn, error) {
	tx, err := s.db.Begin(true)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Txn{tx: tx}, nil
}

// View runs fn inside a read-only transaction
func (s *Store) View(fn func(*Txn) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&Txn{tx: tx})
	})
}

// ListRobots returns a snapshot of all robots
func (s *Store) ListRobots() ([]*types.Robot, error) {
	var robots []*types.Robot
	err := s.View(func(t *Txn) error {
		var err error
		robots, err = t.Robots()
		return err
	})
	return robots, err
}

// ListCarts returns a snapshot of all carts
func (s *Store) ListCarts() ([]*types.Cart, error) {
	var carts []*types.Cart
	err := s.View(func(t *Txn) error {
		var err error
		carts, err = t.Carts()
		return err
	})
	return carts, err
}

// ListStations returns a snapshot of all stations
func (s *Store) ListStations() ([]*types.Station, error) {
	var stations []*types.Station
	err := s.View(func(t *Txn) error {
		var err error
		stations, err = t.Stations()
		return err
	})
	return stations, err
}

// ListJobs returns a snapshot of all jobs in insertion order
func (s *Store) ListJobs() ([]*types.Job, error) {
	var jobs []*types.Job
	err := s.View(func(t *Txn) error {
		var err error
		jobs, err = t.Jobs()
		return err
	})
	return jobs, err
}

// ListBookings returns a snapshot of all bookings
func (s *Store) ListBookings() ([]*types.Booking, error) {
	var bookings []*types.Booking
	err := s.View(func(t *Txn) error {
		var err error
		bookings, err = t.Bookings()
		return err
	})
	return bookings, err
}

// GetRobot retrieves a robot by name
func (s *Store) GetRobot(name string) (*types.Robot, error) {
	var robot *types.Robot
	err := s.View(func(t *Txn) error {
		var err error
		robot, err = t.Robot(name)
		return err
	})
	if err != nil {
		return nil, err
	}
	if robot == nil {
		return nil, fmt.Errorf("robot not found: %s", name)
	}
	return robot, nil
}

// GetJob retrieves a job by id
func (s *Store) GetJob(id uint64) (*types.Job, error) {
	var job *types.Job
	err := s.View(func(t *Txn) error {
		var err error
		job, err = t.Job(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job not found: %d", id)
	}
	return job, nil
}

// GetBooking retrieves a booking by id
func (s *Store) GetBooking(id int64) (*types.Booking, error) {
	var booking *types.Booking
	err := s.View(func(t *Txn) error {
		var err error
		booking, err = t.Booking(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, fmt.Errorf("booking not found: %d", id)
	}
	return booking, nil
}

func putJSON(b *bolt.Bucket, key []byte, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

func itob(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func distanceKey(start, target string) []byte {
	return []byte(start + "|" + target)
}
