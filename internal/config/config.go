package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Limits bounds one record collection.
type Limits struct {
	// Capacity is the maximum number of resident records.
	Capacity int `json:"capacity"`
	// EvictionChunkSize is how many oldest records one eviction removes.
	EvictionChunkSize int `json:"evictionChunkSize"`
}

// CollectionLimits carries the per-collection retention bounds.
type CollectionLimits struct {
	Transactions Limits `json:"transactions"`
	Steps        Limits `json:"steps"`
	Snapshots    Limits `json:"snapshots"`
	Logs         Limits `json:"logs"`
}

// Config is the top-level configuration.
type Config struct {
	HTTPAddr         string           `json:"httpAddr" env:"COSMOS_API_HTTP_ADDR"`
	DataDir          string           `json:"dataDir" env:"COSMOS_API_DATA_DIR"`
	MonitoringOrigin string           `json:"monitoringOrigin" env:"MONITORING_URL"`
	LogLevel         string           `json:"logLevel" env:"COSMOS_API_LOG_LEVEL"`
	LogFormat        string           `json:"logFormat" env:"COSMOS_API_LOG_FORMAT"`
	Fsync            string           `json:"fsync" env:"COSMOS_API_FSYNC"`
	Collections      CollectionLimits `json:"collections"`
}

// Default returns built-in defaults. The retention bounds match the
// reference deployment: 3 transactions, 50 each of steps, snapshots, logs,
// evicting one record at a time.
func Default() Config {
	return Config{
		HTTPAddr:  ":8000",
		DataDir:   "./data",
		LogLevel:  "info",
		LogFormat: "text",
		Fsync:     "always",
		Collections: CollectionLimits{
			Transactions: Limits{Capacity: 3, EvictionChunkSize: 1},
			Steps:        Limits{Capacity: 50, EvictionChunkSize: 1},
			Snapshots:    Limits{Capacity: 50, EvictionChunkSize: 1},
			Logs:         Limits{Capacity: 50, EvictionChunkSize: 1},
		},
	}
}

// Load reads configuration from a JSON file over the defaults. An empty
// path returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (l Limits) validate(name string) error {
	if l.Capacity <= 0 {
		return fmt.Errorf("config: %s capacity must be positive, got %d", name, l.Capacity)
	}
	if l.EvictionChunkSize < 1 || l.EvictionChunkSize > l.Capacity {
		return fmt.Errorf("config: %s eviction chunk size %d outside [1, %d]",
			name, l.EvictionChunkSize, l.Capacity)
	}
	return nil
}

// Validate rejects configurations the stores would refuse at startup.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("config: httpAddr is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: dataDir is required")
	}
	for _, col := range []struct {
		name   string
		limits Limits
	}{
		{"transactions", c.Collections.Transactions},
		{"steps", c.Collections.Steps},
		{"snapshots", c.Collections.Snapshots},
		{"logs", c.Collections.Logs},
	} {
		if err := col.limits.validate(col.name); err != nil {
			return err
		}
	}
	return nil
}
