// Package config loads earworm settings from YAML files and environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"earworm/internal/session"
	"earworm/internal/sim"
)

// Config contains all earworm settings.
type Config struct {
	// Simulation holds the run parameters a control surface can edit.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Arena holds the fixed physics of the arena.
	Arena ArenaConfig `json:"arena" yaml:"arena"`

	// Server configures the websocket transport.
	Server ServerConfig `json:"server" yaml:"server"`

	// Logging configures operational logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// SimulationConfig configures population and transmission.
type SimulationConfig struct {
	Population     int     `json:"population" yaml:"population"`
	InfectionRate  float64 `json:"infection_rate" yaml:"infection_rate"`
	ResistanceRate float64 `json:"resistance_rate" yaml:"resistance_rate"`

	// Seed fixes the random source. Zero seeds from the clock.
	Seed int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// ArenaConfig configures the arena and the per-tick dynamics.
type ArenaConfig struct {
	Width            float64 `json:"width" yaml:"width"`
	Height           float64 `json:"height" yaml:"height"`
	InfectionRadius  float64 `json:"infection_radius" yaml:"infection_radius"`
	IntensityGrowth  float64 `json:"intensity_growth" yaml:"intensity_growth"`
	ContactIntensity float64 `json:"contact_intensity" yaml:"contact_intensity"`

	// TimeScaled makes movement and growth proportional to elapsed time
	// instead of fixed per tick.
	TimeScaled bool `json:"time_scaled" yaml:"time_scaled"`
}

// ServerConfig configures the websocket server.
type ServerConfig struct {
	Addr         string        `json:"addr" yaml:"addr"`
	TickInterval time.Duration `json:"tick_interval" yaml:"tick_interval"`
}

// LoggingConfig configures log verbosity: "info" (default), "debug" or "trace".
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with the reference values.
func Default() *Config {
	params := sim.DefaultParams()
	return &Config{
		Simulation: SimulationConfig{
			Population:     500,
			InfectionRate:  params.InfectionRate,
			ResistanceRate: params.ResistanceRate,
		},
		Arena: ArenaConfig{
			Width:            params.Width,
			Height:           params.Height,
			InfectionRadius:  params.InfectionRadius,
			IntensityGrowth:  params.IntensityGrowth,
			ContactIntensity: params.ContactIntensity,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			TickInterval: 16 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration: defaults, then path (when non-empty), then
// environment variables.
func Load(path string) (*Config, error) {
	config := Default()
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return config, nil
}

// Marshal renders c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Params converts the config into engine parameters.
func (c *Config) Params() sim.Params {
	return sim.Params{
		InfectionRate:    c.Simulation.InfectionRate,
		ResistanceRate:   c.Simulation.ResistanceRate,
		Width:            c.Arena.Width,
		Height:           c.Arena.Height,
		InfectionRadius:  c.Arena.InfectionRadius,
		IntensityGrowth:  c.Arena.IntensityGrowth,
		ContactIntensity: c.Arena.ContactIntensity,
		TimeScaled:       c.Arena.TimeScaled,
	}
}

// Settings converts the config into session settings.
func (c *Config) Settings() session.Settings {
	return session.Settings{Population: c.Simulation.Population, Params: c.Params()}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Settings().Validate(); err != nil {
		return err
	}

	if c.Server.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", c.Server.TickInterval)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies EARWORM_* environment variables to the config.
func applyEnvOverrides(config *Config) error {
	if v := os.Getenv("EARWORM_ADDR"); v != "" {
		config.Server.Addr = v
	}

	if v := os.Getenv("EARWORM_TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("EARWORM_TICK_INTERVAL: %w", err)
		}
		config.Server.TickInterval = d
	}

	if v := os.Getenv("EARWORM_POPULATION"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("EARWORM_POPULATION: %w", err)
		}
		config.Simulation.Population = n
	}

	if v := os.Getenv("EARWORM_INFECTION_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("EARWORM_INFECTION_RATE: %w", err)
		}
		config.Simulation.InfectionRate = f
	}

	if v := os.Getenv("EARWORM_RESISTANCE_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("EARWORM_RESISTANCE_RATE: %w", err)
		}
		config.Simulation.ResistanceRate = f
	}

	if v := os.Getenv("EARWORM_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("EARWORM_SEED: %w", err)
		}
		config.Simulation.Seed = n
	}

	if v := os.Getenv("EARWORM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	return nil
}
