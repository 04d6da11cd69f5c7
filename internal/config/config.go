// Package config loads the workspace configuration (tableside.yml): the floor
// plan, the reservation window, the menu file, and optional outbound webhooks.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// TableDef declares one table of the floor plan.
type TableDef struct {
	ID       int `yaml:"id"`
	Capacity int `yaml:"capacity"`
}

// Webhook configures one outbound push target for archived orders.
type Webhook struct {
	URL            string `yaml:"url"`
	Secret         string `yaml:"secret,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
	Disabled       bool   `yaml:"disabled,omitempty"`
}

// Config is the parsed tableside.yml.
type Config struct {
	Restaurant struct {
		Name string `yaml:"name"`
	} `yaml:"restaurant"`
	Floor struct {
		Columns int        `yaml:"columns"`
		Tables  []TableDef `yaml:"tables"`
	} `yaml:"floor"`
	Reservations struct {
		WindowMinutes int `yaml:"window_minutes"`
	} `yaml:"reservations"`
	Menu struct {
		File string `yaml:"file"`
	} `yaml:"menu"`
	Webhooks []Webhook `yaml:"webhooks,omitempty"`
}

// Window returns the reservation display window as a duration.
func (c *Config) Window() time.Duration {
	return time.Duration(c.Reservations.WindowMinutes) * time.Minute
}

// Validate checks structural invariants of the floor plan.
func (c *Config) Validate() error {
	if c.Floor.Columns < 1 {
		return fmt.Errorf("floor.columns must be >= 1, got %d", c.Floor.Columns)
	}
	if len(c.Floor.Tables) == 0 {
		return fmt.Errorf("floor.tables must declare at least one table")
	}
	seen := map[int]bool{}
	for _, t := range c.Floor.Tables {
		if t.ID < 1 {
			return fmt.Errorf("table id %d must be >= 1", t.ID)
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate table id %d", t.ID)
		}
		seen[t.ID] = true
		if t.Capacity < 1 {
			return fmt.Errorf("table %d: capacity must be >= 1, got %d", t.ID, t.Capacity)
		}
	}
	if c.Reservations.WindowMinutes < 0 {
		return fmt.Errorf("reservations.window_minutes must be >= 0")
	}
	for i, w := range c.Webhooks {
		if w.URL == "" {
			return fmt.Errorf("webhooks[%d]: url is required", i)
		}
	}
	return nil
}

// FromYAML parses and validates a config document.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile loads a config from disk.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return FromYAML(data)
}

// Path returns the config file location inside a workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, "tableside.yml")
}

// Load reads the workspace config, falling back to the default floor when the
// file does not exist yet.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return FromFile(path)
}

func applyDefaults(cfg *Config) {
	if cfg.Floor.Columns == 0 {
		cfg.Floor.Columns = 4
	}
	if cfg.Reservations.WindowMinutes == 0 {
		cfg.Reservations.WindowMinutes = 60
	}
	if cfg.Menu.File == "" {
		cfg.Menu.File = "menu.yml"
	}
}

const defaultTemplate = `restaurant:
  name: Tableside
floor:
  columns: 4
  tables:
    - {id: 1, capacity: 4}
    - {id: 2, capacity: 4}
    - {id: 3, capacity: 2}
    - {id: 4, capacity: 2}
    - {id: 5, capacity: 6}
    - {id: 6, capacity: 6}
    - {id: 7, capacity: 4}
    - {id: 8, capacity: 4}
    - {id: 9, capacity: 2}
    - {id: 10, capacity: 8}
    - {id: 11, capacity: 4}
    - {id: 12, capacity: 4}
reservations:
  window_minutes: 60
menu:
  file: menu.yml
`

// GenerateDefault returns the template written by a first run.
func GenerateDefault() string { return defaultTemplate }

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := FromYAML([]byte(defaultTemplate))
	if err != nil {
		panic(fmt.Sprintf("default config template invalid: %v", err))
	}
	return cfg
}
