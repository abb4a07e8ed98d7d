package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration, loaded once per process.
type Config struct {
	KeyVault   KeyVaultConfig   `mapstructure:"key_vault"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Blob       BlobConfig       `mapstructure:"blob"`
	ServiceBus ServiceBusConfig `mapstructure:"service_bus"`
	Run        RunConfig        `mapstructure:"run"`
	Tables     []TableConfig    `mapstructure:"tables"`
}

// KeyVaultConfig points at the Azure Key Vault holding connection
// secrets. When URL is empty the local connection strings are used as-is.
type KeyVaultConfig struct {
	URL string `mapstructure:"url"`
}

type DatabaseConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	Schema           string `mapstructure:"schema"`
}

type BlobConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	Container        string `mapstructure:"container"`
}

type ServiceBusConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	Queue            string `mapstructure:"queue"`
	SKU              string `mapstructure:"sku"`
}

type RunConfig struct {
	RetryAttempts    int    `mapstructure:"retry_attempts"`
	RetryDelay       string `mapstructure:"retry_delay"`
	WatchInterval    string `mapstructure:"watch_interval"`
	MaxWatchInterval string `mapstructure:"max_watch_interval"`
}

// GetRetryDelay returns the RetryDelay as a time.Duration
func (r *RunConfig) GetRetryDelay() (time.Duration, error) {
	return time.ParseDuration(r.RetryDelay)
}

// GetWatchInterval returns the WatchInterval as a time.Duration
func (r *RunConfig) GetWatchInterval() (time.Duration, error) {
	return time.ParseDuration(r.WatchInterval)
}

// GetMaxWatchInterval returns the MaxWatchInterval as a time.Duration
func (r *RunConfig) GetMaxWatchInterval() (time.Duration, error) {
	return time.ParseDuration(r.MaxWatchInterval)
}

// TableConfig describes one monitored table: its name, the primary key
// column, and any volatile columns excluded from hashing.
type TableConfig struct {
	Name            string   `mapstructure:"name"`
	PrimaryKey      string   `mapstructure:"primary_key"`
	ExcludedColumns []string `mapstructure:"excluded_columns"`
}

// Load reads and validates a YAML config file. Values may reference
// environment variables with ${VAR} syntax.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if expanded := os.ExpandEnv(val); expanded != val {
			v.Set(key, expanded)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate applies defaults and rejects configurations that cannot run.
// It is called before any table processing begins, so a bad config never
// touches source or storage.
func (c *Config) Validate() error {
	if c.Database.ConnectionString == "" && c.KeyVault.URL == "" {
		return fmt.Errorf("database.connection_string is required when key_vault.url is unset")
	}
	if c.Blob.ConnectionString == "" && c.KeyVault.URL == "" {
		return fmt.Errorf("blob.connection_string is required when key_vault.url is unset")
	}
	if c.Database.Schema == "" {
		c.Database.Schema = "dbo"
	}
	if c.Blob.Container == "" {
		c.Blob.Container = "cdc-logs"
	}

	if len(c.Tables) == 0 {
		return fmt.Errorf("at least one table must be configured")
	}
	seen := make(map[string]bool, len(c.Tables))
	for i, t := range c.Tables {
		if t.Name == "" {
			return fmt.Errorf("tables[%d].name is required", i)
		}
		if t.PrimaryKey == "" {
			return fmt.Errorf("table %s: primary_key is required", t.Name)
		}
		if seen[t.Name] {
			return fmt.Errorf("table %s configured more than once", t.Name)
		}
		seen[t.Name] = true
	}

	switch strings.ToLower(c.ServiceBus.SKU) {
	case "", "standard", "premium":
	default:
		return fmt.Errorf("invalid service_bus.sku: %s (valid options: standard, premium)", c.ServiceBus.SKU)
	}
	if c.ServiceBus.ConnectionString != "" && c.ServiceBus.Queue == "" {
		return fmt.Errorf("service_bus.queue is required when service_bus.connection_string is set")
	}

	if c.Run.RetryAttempts == 0 {
		c.Run.RetryAttempts = 3
	}
	if c.Run.RetryAttempts < 1 {
		return fmt.Errorf("run.retry_attempts must be at least 1")
	}
	if c.Run.RetryDelay == "" {
		c.Run.RetryDelay = "2s"
	}
	if c.Run.WatchInterval == "" {
		c.Run.WatchInterval = "5m"
	}
	if c.Run.MaxWatchInterval == "" {
		c.Run.MaxWatchInterval = "30m"
	}
	for name, get := range map[string]func() (time.Duration, error){
		"run.retry_delay":        c.Run.GetRetryDelay,
		"run.watch_interval":     c.Run.GetWatchInterval,
		"run.max_watch_interval": c.Run.GetMaxWatchInterval,
	} {
		if _, err := get(); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	return nil
}
