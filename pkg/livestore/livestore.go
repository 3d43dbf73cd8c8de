package livestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/chargepal/chargepald/pkg/log"
	"github.com/chargepal/chargepald/pkg/metrics"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Store is the single gateway to the live database shared with the
// booking server and the battery bridge. It always opens an embedded
// SQLite file; a primary MySQL server is attached when a configuration
// file exists and the server answers. Connections are pooled, every
// statement runs on a scoped connection from the pool.
type Store struct {
	logger   zerolog.Logger
	embedded *sql.DB
	primary  *sql.DB
	path     string
}

// Open opens the embedded database under dataDir and, when config is
// non-nil, attaches the primary server. An unreachable primary degrades
// to the embedded database with a warning instead of failing startup.
func Open(dataDir string, config *Config) (*Store, error) {
	path := filepath.Join(dataDir, "ldb.db")
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)",
		path,
	)

	embedded, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded database: %w", err)
	}
	if err := embedded.Ping(); err != nil {
		embedded.Close()
		return nil, fmt.Errorf("failed to ping embedded database: %w", err)
	}

	store := &Store{
		logger:   log.WithComponent("livestore"),
		embedded: embedded,
		path:     path,
	}
	if err := store.migrate(); err != nil {
		embedded.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if config != nil {
		primary, err := sql.Open("mysql", config.DSN())
		if err == nil {
			err = primary.Ping()
		}
		if err != nil {
			store.logger.Warn().Err(err).
				Str("addr", config.Addr()).
				Msg("Primary live database unreachable, using embedded database")
			if primary != nil {
				primary.Close()
			}
		} else {
			store.primary = primary
			store.logger.Info().
				Str("addr", config.Addr()).
				Str("database", config.Database).
				Msg("Connected to primary live database")
		}
	} else {
		store.logger.Info().Str("path", path).Msg("No primary configured, using embedded database")
	}

	return store, nil
}

// Close closes all database connections
func (s *Store) Close() error {
	var result *multierror.Error
	if s.primary != nil {
		if err := s.primary.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close primary: %w", err))
		}
	}
	if err := s.embedded.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close embedded: %w", err))
	}
	return result.ErrorOrNil()
}

// Ping verifies the backends are reachable. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.embedded.PingContext(ctx); err != nil {
		return fmt.Errorf("embedded database: %w", err)
	}
	if s.primary != nil {
		if err := s.primary.PingContext(ctx); err != nil {
			return fmt.Errorf("primary database: %w", err)
		}
	}
	return nil
}

// HasPrimary reports whether the primary server is attached
func (s *Store) HasPrimary() bool {
	return s.primary != nil
}

// FilePath returns the embedded database file path
func (s *Store) FilePath() string {
	return s.path
}

func (s *Store) migrate() error {
	_, err := s.embedded.Exec(schema)
	return err
}

// live returns the backend holding booking and battery tables
func (s *Store) live() *sql.DB {
	if s.primary != nil {
		return s.primary
	}
	return s.embedded
}

// queryLive runs a read on the primary, falling back to the embedded
// database when the primary fails mid-flight.
func (s *Store) queryLive(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if s.primary != nil {
		rows, err := s.primary.QueryContext(ctx, query, args...)
		if err == nil {
			return rows, nil
		}
		metrics.LiveStoreErrorsTotal.Inc()
		s.logger.Warn().Err(err).Msg("Primary query failed, falling back to embedded database")
	}
	return s.embedded.QueryContext(ctx, query, args...)
}

// execLive runs a mutation on the live backend. Primary failures are
// surfaced, not retried against the embedded copy.
func (s *Store) execLive(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := s.live().ExecContext(ctx, query, args...)
	if err != nil {
		metrics.LiveStoreErrorsTotal.Inc()
	}
	return result, err
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validIdents(names ...string) error {
	for _, name := range names {
		if !identPattern.MatchString(name) {
			return fmt.Errorf("invalid identifier: %q", name)
		}
	}
	return nil
}

// FetchByFirstHeader reads the given columns of a fleet mirror table and
// returns a map keyed by the first header, each value holding the
// remaining columns. Null cells come back as empty strings.
func (s *Store) FetchByFirstHeader(ctx context.Context, table string, headers []string) (map[string]map[string]string, error) {
	if len(headers) < 2 {
		return nil, fmt.Errorf("need at least two headers, got %d", len(headers))
	}
	if err := validIdents(append([]string{table}, headers...)...); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(headers, ", "), table)
	rows, err := s.embedded.QueryContext(ctx, query)
	if err != nil {
		metrics.LiveStoreErrorsTotal.Inc()
		return nil, fmt.Errorf("failed to fetch %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]map[string]string)
	cells := make([]sql.NullString, len(headers))
	targets := make([]any, len(headers))
	for i := range cells {
		targets[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}
		entry := make(map[string]string, len(headers)-1)
		for i := 1; i < len(headers); i++ {
			entry[headers[i]] = cells[i].String
		}
		result[cells[0].String] = entry
	}
	return result, rows.Err()
}

// FetchEnvInfos returns all env_info rows as name to list-of-names.
// Values are comma-separated in the table.
func (s *Store) FetchEnvInfos(ctx context.Context) (map[string][]string, error) {
	rows, err := s.embedded.QueryContext(ctx, "SELECT name, value FROM env_info")
	if err != nil {
		metrics.LiveStoreErrorsTotal.Inc()
		return nil, fmt.Errorf("failed to fetch env_info: %w", err)
	}
	defer func() { _ = rows.Close() }()

	infos := make(map[string][]string)
	for rows.Next() {
		var name string
		var value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		infos[name] = splitNames(value.String)
	}
	return infos, rows.Err()
}

// FetchEnvCount returns the count column of one env_info row, 0 when the
// row does not exist.
func (s *Store) FetchEnvCount(ctx context.Context, name string) (int, error) {
	var count int
	err := s.embedded.QueryRowContext(ctx,
		"SELECT count FROM env_info WHERE name = ?", name).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		metrics.LiveStoreErrorsTotal.Inc()
		return 0, fmt.Errorf("failed to fetch env count %s: %w", name, err)
	}
	return count, nil
}

// PutEnvInfo writes one env_info row, used when seeding a site
func (s *Store) PutEnvInfo(ctx context.Context, name string, names []string) error {
	_, err := s.embedded.ExecContext(ctx,
		`INSERT INTO env_info (name, value, count) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, count = excluded.count`,
		name, strings.Join(names, ","), len(names))
	if err != nil {
		return fmt.Errorf("failed to put env_info %s: %w", name, err)
	}
	return nil
}

// UpdateLocation moves a robot, and the cart it carries if any, to the
// given location in the fleet mirror.
func (s *Store) UpdateLocation(ctx context.Context, location, robot, cart string) error {
	if _, err := s.embedded.ExecContext(ctx,
		"UPDATE robot_info SET robot_location = ? WHERE name = ?", location, robot); err != nil {
		metrics.LiveStoreErrorsTotal.Inc()
		return fmt.Errorf("failed to update robot location: %w", err)
	}
	if cart != "" {
		if _, err := s.embedded.ExecContext(ctx,
			"UPDATE cart_info SET cart_location = ? WHERE name = ?", location, cart); err != nil {
			metrics.LiveStoreErrorsTotal.Inc()
			return fmt.Errorf("failed to update cart location: %w", err)
		}
	}
	return nil
}

// PushTable replaces rows of a fleet mirror table. Each row's first cell
// is the key; existing rows with that key are deleted first, so robots
// can push partial updates.
func (s *Store) PushTable(ctx context.Context, table string, rows [][]string) error {
	columns, ok := pushTables[table]
	if !ok {
		return fmt.Errorf("table not writable: %s", table)
	}

	tx, err := s.embedded.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := "?" + strings.Repeat(",?", columns-1)
	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", table, placeholders)
	del := fmt.Sprintf("DELETE FROM %s WHERE name = ?", table)

	for _, row := range rows {
		if len(row) != columns {
			return fmt.Errorf("table %s expects %d columns, got %d", table, columns, len(row))
		}
		if _, err := tx.ExecContext(ctx, del, row[0]); err != nil {
			return err
		}
		args := make([]any, len(row))
		for i, cell := range row {
			args[i] = cell
		}
		if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// TableDump is one table of the embedded database in wire form
type TableDump struct {
	Name string
	Rows []RowDump
}

// RowDump is one row with its engine row id
type RowDump struct {
	RowID  int64
	Values []string
}

// Dump serializes every table of the embedded database. Robots mirror the
// fleet state from this.
func (s *Store) Dump(ctx context.Context) ([]TableDump, error) {
	rows, err := s.embedded.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return nil, err
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	dumps := make([]TableDump, 0, len(tables))
	for _, table := range tables {
		dump, err := s.dumpTable(ctx, table)
		if err != nil {
			return nil, err
		}
		dumps = append(dumps, dump)
	}
	return dumps, nil
}

func (s *Store) dumpTable(ctx context.Context, table string) (TableDump, error) {
	dump := TableDump{Name: table}

	rows, err := s.embedded.QueryContext(ctx, fmt.Sprintf("SELECT rowid, * FROM %s", table))
	if err != nil {
		return dump, fmt.Errorf("failed to dump %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return dump, err
	}
	for rows.Next() {
		var rowID int64
		cells := make([]sql.NullString, len(columns)-1)
		targets := make([]any, len(columns))
		targets[0] = &rowID
		for i := range cells {
			targets[i+1] = &cells[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return dump, err
		}
		values := make([]string, len(cells))
		for i, cell := range cells {
			values[i] = cell.String
		}
		dump.Rows = append(dump.Rows, RowDump{RowID: rowID, Values: values})
	}
	return dump, rows.Err()
}

// FileBytes returns the embedded database file contents. The WAL is
// checkpointed first so the file alone is a complete snapshot.
func (s *Store) FileBytes(ctx context.Context) ([]byte, error) {
	if _, err := s.embedded.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, fmt.Errorf("failed to checkpoint: %w", err)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read database file: %w", err)
	}
	return data, nil
}

// ReadBatteryCell reads one column of a battery table row
func (s *Store) ReadBatteryCell(ctx context.Context, table, battery, column string) (string, error) {
	columns, ok := batteryColumns[table]
	if !ok || !columns[column] {
		return "", fmt.Errorf("unknown battery cell: %s.%s", table, column)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE Battry_ID = ?", column, table)
	var value sql.NullString
	err := s.live().QueryRowContext(ctx, query, battery).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		metrics.LiveStoreErrorsTotal.Inc()
		return "", fmt.Errorf("failed to read %s.%s: %w", table, column, err)
	}
	return value.String, nil
}

// UpdateBattery upserts one column of a battery table row and stamps
// last_change.
func (s *Store) UpdateBattery(ctx context.Context, table, battery, column, value string) error {
	columns, ok := batteryColumns[table]
	if !ok || !columns[column] {
		return fmt.Errorf("unknown battery cell: %s.%s", table, column)
	}

	now := FormatTime(time.Now())
	update := fmt.Sprintf("UPDATE %s SET %s = ?, last_change = ? WHERE Battry_ID = ?", table, column)
	result, err := s.execLive(ctx, update, value, now, battery)
	if err != nil {
		return fmt.Errorf("failed to update %s.%s: %w", table, column, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	insert := fmt.Sprintf("INSERT INTO %s (Battry_ID, %s, last_change) VALUES (?, ?, ?)", table, column)
	if _, err := s.execLive(ctx, insert, battery, value, now); err != nil {
		return fmt.Errorf("failed to insert %s.%s: %w", table, column, err)
	}
	return nil
}

// FetchBatteryStates returns battery state texts changed since the given
// watermark, keyed by battery name. A zero watermark returns everything.
func (s *Store) FetchBatteryStates(ctx context.Context, since time.Time) (map[string]string, error) {
	query := "SELECT Battry_ID, State_bat_mod FROM CAN_MSG_RX_LIVE"
	args := []any{}
	if !since.IsZero() {
		query += " WHERE last_change >= ?"
		args = append(args, FormatTime(since))
	}

	rows, err := s.queryLive(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch battery states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	states := make(map[string]string)
	for rows.Next() {
		var battery string
		var state sql.NullString
		if err := rows.Scan(&battery, &state); err != nil {
			return nil, err
		}
		states[battery] = state.String
	}
	return states, rows.Err()
}

func splitNames(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
