// Package config holds the runtime configuration for mdedup.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// MDEDUP_* environment variables, then command-line flags (applied by the
// CLI). Validation happens once, after all layers are merged.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/ziangzhang/mdedup/internal/dedupe"
)

// Config describes one deduplication run.
type Config struct {
	// URI is the MongoDB connection string.
	URI string `yaml:"uri"`

	// Database is the database holding both collections.
	Database string `yaml:"database"`

	// Source is the collection to read from.
	Source string `yaml:"source"`

	// Dest is the collection to write the deduplicated copy into. Its
	// existing contents are deleted at the start of the run.
	Dest string `yaml:"dest"`

	// Field is the document field whose value defines the duplicate
	// equivalence classes.
	Field string `yaml:"field"`

	// BatchSize is how many documents to buffer before each bulk insert.
	// Default: 1000.
	BatchSize int `yaml:"batch_size"`

	// Throttle caps bulk writes per second. 0 means unthrottled.
	Throttle float64 `yaml:"throttle"`

	// Yes skips the confirmation prompt when the destination is non-empty.
	Yes bool `yaml:"yes"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		BatchSize: dedupe.DefaultBatchSize,
	}
}

// Load builds a Config from defaults, the optional YAML file at path, and
// the environment. An empty path skips the file layer.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays MDEDUP_* environment variables.
//
// Environment variables:
//   - MDEDUP_URI: MongoDB connection string
//   - MDEDUP_DB: database name
//   - MDEDUP_SRC: source collection name
//   - MDEDUP_DEST: destination collection name
//   - MDEDUP_FIELD: dedupe field name
//   - MDEDUP_BATCH_SIZE: documents per bulk insert
//   - MDEDUP_THROTTLE: bulk writes per second (0 = unthrottled)
func (c *Config) applyEnv() error {
	parseEnvString("MDEDUP_URI", &c.URI)
	parseEnvString("MDEDUP_DB", &c.Database)
	parseEnvString("MDEDUP_SRC", &c.Source)
	parseEnvString("MDEDUP_DEST", &c.Dest)
	parseEnvString("MDEDUP_FIELD", &c.Field)
	if err := parseEnvInt("MDEDUP_BATCH_SIZE", &c.BatchSize); err != nil {
		return err
	}
	if err := parseEnvFloat("MDEDUP_THROTTLE", &c.Throttle); err != nil {
		return err
	}
	return nil
}

// Validate checks that the merged configuration describes a runnable
// operation. All failures here are caller-correctable and happen before any
// I/O.
func (c Config) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("connection URI is required (--uri or MDEDUP_URI)")
	}
	if c.Database == "" {
		return fmt.Errorf("database name is required (--db or MDEDUP_DB)")
	}
	if c.Source == "" {
		return fmt.Errorf("source collection is required (--src or MDEDUP_SRC)")
	}
	if c.Dest == "" {
		return fmt.Errorf("destination collection is required (--dest or MDEDUP_DEST)")
	}
	if c.Source == c.Dest {
		return fmt.Errorf("source and destination must be different collections (both %q)", c.Source)
	}
	if err := dedupe.ValidateField(c.Field); err != nil {
		return err
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive (got %d)", c.BatchSize)
	}
	if c.Throttle < 0 {
		return fmt.Errorf("throttle cannot be negative (got %v)", c.Throttle)
	}
	return nil
}

// parseEnvString reads a string from an environment variable
func parseEnvString(key string, dest *string) {
	if value := os.Getenv(key); value != "" {
		*dest = value
	}
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvFloat parses a float64 from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
