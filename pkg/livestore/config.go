package livestore

import (
	"fmt"
	"os"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

// Config holds the connection settings of the primary live database.
// A missing configuration file means the daemon runs on the embedded
// database alone.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// DefaultConfig returns the connection settings of the on-site server
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     3306,
		User:     "ChargePal",
		Password: "ChargePal3002!",
		Database: "LSV0002_DB",
	}
}

// LoadConfig reads a primary database configuration file. A missing file
// is not an error: it returns (nil, nil) and the caller stays on the
// embedded database.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, nil
}

// Addr returns the host:port of the primary server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DSN builds the driver connection string for the primary server
func (c *Config) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = c.Addr()
	cfg.DBName = c.Database
	cfg.Timeout = 5 * time.Second
	return cfg.FormatDSN()
}
