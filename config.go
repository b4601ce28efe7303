package looper

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/golobby/cast"
	"gopkg.in/yaml.v3"
)

// DefaultCycleInterval is the control loop cadence when none is configured:
// 12.5ms per cycle, 80 cycles per second.
const DefaultCycleInterval = 12500 * time.Microsecond

// Config holds the tunable settings of the core. It can be populated from a
// YAML or TOML file, with LOOPER_* environment variables applied on top.
type Config struct {
	// CycleInterval is the target duration of one control cycle.
	CycleInterval Duration `yaml:"cycle_interval" toml:"cycle_interval" env:"CYCLE_INTERVAL"`

	// StrictConflicts upgrades unordered-access diagnostics from warnings
	// to fatal build errors.
	StrictConflicts bool `yaml:"strict_conflicts" toml:"strict_conflicts" env:"STRICT_CONFLICTS"`

	// AsyncWorkers sizes the async dispatcher pool.
	AsyncWorkers int `yaml:"async_workers" toml:"async_workers" env:"ASYNC_WORKERS"`

	// ComputeWorkers sizes the compute dispatcher pool.
	ComputeWorkers int `yaml:"compute_workers" toml:"compute_workers" env:"COMPUTE_WORKERS"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		CycleInterval:  Duration(DefaultCycleInterval),
		AsyncWorkers:   2,
		ComputeWorkers: 2,
	}
}

// Duration wraps time.Duration so config files can spell intervals as
// strings like "12.5ms" in both YAML and TOML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler for the TOML decoder.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// LoadConfigFile reads settings from path, choosing the decoder by file
// extension (.yaml/.yml or .toml), then applies environment overrides.
// Fields absent from the file keep their defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("decoding yaml config %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("decoding toml config %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides settings from LOOPER_* environment variables, matching
// struct fields by their env tag (LOOPER_CYCLE_INTERVAL and so on).
func (c *Config) applyEnv() error {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("env")
		if tag == "" {
			continue
		}
		envValue := os.Getenv("LOOPER_" + tag)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(v.Field(i), envValue); err != nil {
			return fmt.Errorf("LOOPER_%s: %w", tag, err)
		}
	}
	return nil
}

// setFieldValue converts and sets a field value. Duration fields are parsed
// with time.ParseDuration; everything else goes through cast.
func setFieldValue(field reflect.Value, strValue string) error {
	if field.Type() == reflect.TypeOf(Duration(0)) {
		parsed, err := time.ParseDuration(strValue)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", strValue, err)
		}
		field.Set(reflect.ValueOf(Duration(parsed)))
		return nil
	}

	convertedValue, err := cast.FromType(strValue, field.Type())
	if err != nil {
		return fmt.Errorf("cannot convert value to type %v: %w", field.Type(), err)
	}
	field.Set(reflect.ValueOf(convertedValue))
	return nil
}
