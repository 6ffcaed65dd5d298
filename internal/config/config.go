package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultInterval is the game's every-10th-frame tick at 60 updates per second.
const DefaultInterval = 10 * time.Second / 60

type Config struct {
	Program   ProgramConfig   `yaml:"program"`
	Log       LogConfig       `yaml:"log"`
	Sim       SimConfig       `yaml:"sim"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Record    RecordConfig    `yaml:"record"`
	Web       WebConfig       `yaml:"web"`
	Button    ButtonConfig    `yaml:"button"`
	Console   ConsoleConfig   `yaml:"console"`
}

type ProgramConfig struct {
	// Construct is the construct the program block belongs to; 0 accepts all.
	Construct int64         `yaml:"construct"`
	Interval  time.Duration `yaml:"interval"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type SimConfig struct {
	Scenario string `yaml:"scenario"`
	Loop     bool   `yaml:"loop"`
}

type TelemetryConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

type ButtonConfig struct {
	Enable   bool          `yaml:"enable"`
	Chip     string        `yaml:"chip"`
	Pin      int           `yaml:"pin"`
	Debounce time.Duration `yaml:"debounce"`
}

type ConsoleConfig struct {
	Enable bool `yaml:"enable"`
}

var logLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("config is empty")
		}
		var te *yaml.TypeError
		if errors.As(err, &te) {
			return Config{}, fmt.Errorf("config contains unknown fields: %s", unknownFields(te))
		}
		return Config{}, err
	}

	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// unknownFields strips yaml's "line N: " prefixes.
func unknownFields(te *yaml.TypeError) string {
	out := make([]string, 0, len(te.Errors))
	for _, e := range te.Errors {
		if i := strings.Index(e, ": "); i >= 0 && strings.HasPrefix(e, "line ") {
			e = e[i+2:]
		}
		out = append(out, e)
	}
	return strings.Join(out, "; ")
}

func applyDefaults(cfg *Config) {
	if cfg.Program.Interval == 0 {
		cfg.Program.Interval = DefaultInterval
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 10
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAgeDays <= 0 {
		cfg.Log.MaxAgeDays = 7
	}

	if cfg.Button.Chip == "" {
		cfg.Button.Chip = "gpiochip0"
	}
	if cfg.Button.Debounce == 0 {
		cfg.Button.Debounce = 50 * time.Millisecond
	}
}

func validate(cfg Config) error {
	if cfg.Program.Interval < 0 {
		return fmt.Errorf("program.interval must be > 0")
	}
	if cfg.Program.Construct < 0 {
		return fmt.Errorf("program.construct must be >= 0")
	}
	if !logLevels[cfg.Log.Level] {
		return fmt.Errorf("log.level %q is not one of trace, debug, info, warn, error", cfg.Log.Level)
	}
	if strings.TrimSpace(cfg.Sim.Scenario) == "" {
		return fmt.Errorf("sim.scenario is required")
	}
	if cfg.Telemetry.Enable && strings.TrimSpace(cfg.Telemetry.Dest) == "" {
		return fmt.Errorf("telemetry.dest is required when telemetry.enable is true")
	}
	if cfg.Record.Enable && strings.TrimSpace(cfg.Record.Path) == "" {
		return fmt.Errorf("record.path is required when record.enable is true")
	}
	if cfg.Web.Enable && strings.TrimSpace(cfg.Web.Listen) == "" {
		return fmt.Errorf("web.listen is required when web.enable is true")
	}
	if cfg.Button.Enable {
		if cfg.Button.Pin <= 0 {
			return fmt.Errorf("button.pin must be > 0 when button.enable is true")
		}
		if cfg.Button.Debounce < 0 {
			return fmt.Errorf("button.debounce must be >= 0")
		}
	}
	return nil
}
