// Package config loads the host settings shared by every canvasblocks command.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var ErrUnsupportedFormat = errors.New("unsupported settings file format")

// Settings are the host-level options a run is executed with.
type Settings struct {
	// VaultPath is the directory canvas and script paths are resolved against.
	VaultPath string `toml:"vault_path" yaml:"vault_path" validate:"required"`

	// PythonPath is the interpreter used for python blocks.
	PythonPath string `toml:"python_path" yaml:"python_path" validate:"required"`

	// DataFolder is reported to scripts as plugin_folder; "/" means the vault root.
	DataFolder string `toml:"data_folder" yaml:"data_folder"`

	// WorkflowScriptFolder holds the script files offered by add-script.
	WorkflowScriptFolder string `toml:"workflow_script_folder" yaml:"workflow_script_folder"`

	// Variables may be requested by scripts through allowedVariables.
	Variables map[string]string `toml:"variables" yaml:"variables"`

	LocatorCacheTTL time.Duration `toml:"locator_cache_ttl" yaml:"locator_cache_ttl" validate:"gte=0"`
	Ordering        string        `toml:"ordering"          yaml:"ordering"          validate:"omitempty,oneof=reverse-discovery topological"`

	DatabaseURL  string `toml:"database_url"  yaml:"database_url"`
	EventBus     string `toml:"event_bus"     yaml:"event_bus"     validate:"omitempty,oneof=gochannel kafka"`
	KafkaBrokers string `toml:"kafka_brokers" yaml:"kafka_brokers" validate:"required_if=EventBus kafka"`

	Schedules []Schedule `toml:"schedules" yaml:"schedules" validate:"dive"`
	Queue     Queue      `toml:"queue"     yaml:"queue"`
}

// Schedule runs the workflow anchored at NodeID of Canvas on a cron expression.
type Schedule struct {
	Cron   string `toml:"cron"    yaml:"cron"    validate:"required"`
	Canvas string `toml:"canvas"  yaml:"canvas"  validate:"required"`
	NodeID string `toml:"node_id" yaml:"node_id" validate:"required"`
}

// Queue configures the Redis list the worker command consumes run requests from.
type Queue struct {
	RedisURL string `toml:"redis_url" yaml:"redis_url" validate:"omitempty,url"`
	Name     string `toml:"name"      yaml:"name"`
}

const (
	DefaultQueueName       = "canvasblocks:runs"
	DefaultLocatorCacheTTL = 60 * time.Second
)

// Default returns the settings used when no file overrides them.
func Default() Settings {
	return Settings{
		VaultPath:       ".",
		PythonPath:      "python3",
		DataFolder:      "/",
		Variables:       map[string]string{},
		LocatorCacheTTL: DefaultLocatorCacheTTL,
		Ordering:        "reverse-discovery",
		DatabaseURL:     "file://./data",
		EventBus:        "gochannel",
		Queue:           Queue{Name: DefaultQueueName},
	}
}

// Load reads a .toml, .yaml or .yml file over the defaults and validates the result. An
// empty path returns the validated defaults.
func Load(path string) (Settings, error) {
	settings := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path is chosen by the operator
		if err != nil {
			return Settings{}, fmt.Errorf("failed to read settings file %s: %w", path, err)
		}

		if err := decode(path, data, &settings); err != nil {
			return Settings{}, err
		}
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}

	return settings, nil
}

func decode(path string, data []byte, settings *Settings) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), settings); err != nil {
			return fmt.Errorf("failed to parse TOML settings: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, settings); err != nil {
			return fmt.Errorf("failed to parse YAML settings: %w", err)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	return nil
}
