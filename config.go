package primary

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the configuration for an Elector.
//
// All duration fields accept standard Go duration strings like "30s", "5m", "1h".
type Config struct {
	// ID is this process's identity. When empty the identity comes from the
	// IdentityProvider option, or a random UUID if none is given.
	ID string `yaml:"id"`

	// LockName is the store key contested by all participants.
	LockName string `yaml:"lockName"`

	// StoreName names the shared store (NATS KV bucket, bbolt file name).
	// It is consumed by the store backends, not by the Elector itself.
	StoreName string `yaml:"storeName"`

	// TTL is the lease duration. A leader renews every TTL - TTL/4 and a
	// follower retries every TTL.
	TTL time.Duration `yaml:"ttl"`

	// BroadcastKey is the well-known key on which a departing process
	// publishes its identity.
	BroadcastKey string `yaml:"broadcastKey"`

	// OperationTimeout bounds each store transaction started by a timer or a
	// broadcast, and the publish and release performed by Destroy.
	// Must not exceed TTL.
	OperationTimeout time.Duration `yaml:"operationTimeout"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		LockName:         "primary",
		StoreName:        "primary",
		TTL:              30 * time.Second,
		BroadcastKey:     "MSID",
		OperationTimeout: 5 * time.Second,
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// OperationTimeout is clamped to TTL when TTL was set below the default
// timeout.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.LockName == "" {
		cfg.LockName = defaults.LockName
	}
	if cfg.StoreName == "" {
		cfg.StoreName = defaults.StoreName
	}
	if cfg.TTL == 0 {
		cfg.TTL = defaults.TTL
	}
	if cfg.BroadcastKey == "" {
		cfg.BroadcastKey = defaults.BroadcastKey
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = min(defaults.OperationTimeout, cfg.TTL)
	}
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - TTL > 0
//   - LockName and BroadcastKey are non-empty
//   - 0 < OperationTimeout <= TTL (a transaction must finish before the lease it writes expires)
//
// Returns:
//   - error: Wraps ErrInvalidConfig with a clear explanation, nil if valid
func (cfg *Config) Validate() error {
	var errs []error

	if cfg.TTL <= 0 {
		errs = append(errs, fmt.Errorf("TTL must be > 0, got %v", cfg.TTL))
	}
	if cfg.LockName == "" {
		errs = append(errs, errors.New("LockName is required"))
	}
	if cfg.BroadcastKey == "" {
		errs = append(errs, errors.New("BroadcastKey is required"))
	}
	if cfg.OperationTimeout <= 0 {
		errs = append(errs, fmt.Errorf("OperationTimeout must be > 0, got %v", cfg.OperationTimeout))
	} else if cfg.TTL > 0 && cfg.OperationTimeout > cfg.TTL {
		errs = append(errs, fmt.Errorf(
			"OperationTimeout (%v) must be <= TTL (%v)",
			cfg.OperationTimeout, cfg.TTL,
		))
	}

	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// ValidateWithWarnings logs warnings for values that are valid but risky.
//
// This is called after Validate() in New() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.TTL < time.Second {
		logger.Warn(
			"TTL is very short, clock skew between hosts may cause overlapping leaders",
			"ttl", cfg.TTL,
			"recommended", "5s or higher",
		)
	}

	// The leader renews at 3/4 TTL, leaving TTL/4 for the renewal to commit.
	if cfg.OperationTimeout > cfg.TTL/4 {
		logger.Warn(
			"OperationTimeout exceeds the renewal margin, a slow renewal may let the lease lapse",
			"operationTimeout", cfg.OperationTimeout,
			"renewalMargin", cfg.TTL/4,
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Returns:
//   - Config: Configuration with a sub-second TTL
//
// Example:
//
//	cfg := primary.TestConfig()
//	cfg.ID = "node-a"
//	elector, err := primary.New(cfg, store, bus)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.TTL = 200 * time.Millisecond             // 150x faster
	cfg.OperationTimeout = 50 * time.Millisecond // 100x faster

	return cfg
}

// ParseConfig decodes a YAML document, applies defaults and validates it.
//
// Parameters:
//   - data: YAML document
//
// Returns:
//   - Config: Parsed configuration with defaults applied
//   - error: Parse or validation error
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: failed to parse config: %w", ErrInvalidConfig, err)
	}

	SetDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadConfig loads configuration from a YAML file.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - Config: Loaded configuration with defaults applied
//   - error: Error if file cannot be read, parsed or validated
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}
