// Package config loads friendgraph settings from TOML or YAML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/TFMV/friendgraph/graph"
	"github.com/TFMV/friendgraph/physics"
	"gopkg.in/yaml.v3"
)

// Config holds all friendgraph configuration.
type Config struct {
	Server     ServerConfig     `toml:"server" yaml:"server"`
	Simulation SimulationConfig `toml:"simulation" yaml:"simulation"`
	Graph      GraphConfig      `toml:"graph" yaml:"graph"`
	Render     RenderConfig     `toml:"render" yaml:"render"`
}

// ServerConfig is the HTTP listen address and request limits.
type ServerConfig struct {
	Bind    string `toml:"bind" yaml:"bind"`
	Port    int    `toml:"port" yaml:"port"`
	MaxBody int64  `toml:"max_body" yaml:"max_body"` // request body limit, bytes
}

// SimulationConfig holds the force constants and how often the server
// advances its graphs.
type SimulationConfig struct {
	Forces  physics.Params `toml:"forces" yaml:"forces"`
	Tick    Duration       `toml:"tick" yaml:"tick"`         // interval between server steps
	MaxStep float64        `toml:"max_step" yaml:"max_step"` // upper bound on dt, seconds
}

// GraphConfig controls naming and where new people are placed.
type GraphConfig struct {
	UniqueNames bool    `toml:"unique_names" yaml:"unique_names"`
	Placement   string  `toml:"placement" yaml:"placement"` // "origin" or "noise"
	Seed        int64   `toml:"seed" yaml:"seed"`
	Spread      float64 `toml:"spread" yaml:"spread"` // radius used by noise placement
}

// RenderConfig holds snapshot defaults.
type RenderConfig struct {
	Width      int      `toml:"width" yaml:"width"`
	Height     int      `toml:"height" yaml:"height"`
	Background string   `toml:"background" yaml:"background"`
	Recent     string   `toml:"recent_color" yaml:"recent_color"`
	Old        string   `toml:"old_color" yaml:"old_color"`
	Horizon    Duration `toml:"horizon" yaml:"horizon"` // age at which edges are drawn fully old
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind:    "127.0.0.1",
			Port:    8080,
			MaxBody: 8 << 20,
		},
		Simulation: SimulationConfig{
			Forces:  physics.DefaultParams(),
			Tick:    Duration(16 * time.Millisecond),
			MaxStep: 0.05,
		},
		Graph: GraphConfig{
			Placement: "origin",
			Seed:      1,
			Spread:    60,
		},
		Render: RenderConfig{
			Width:      1200,
			Height:     900,
			Background: "#f8f8f8",
			Recent:     "#e4572e",
			Old:        "#6c8ead",
			Horizon:    Duration(10 * 365 * 24 * time.Hour),
		},
	}
}

// Load reads path over the defaults. The format follows the extension:
// .toml, or .yaml/.yml.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values that would break the simulation or server.
func (c *Config) Validate() error {
	if err := c.Simulation.Forces.Validate(); err != nil {
		return err
	}
	if c.Simulation.MaxStep <= 0 {
		return fmt.Errorf("simulation.max_step must be positive, got %v", c.Simulation.MaxStep)
	}
	if c.Simulation.Tick.Std() <= 0 {
		return fmt.Errorf("simulation.tick must be positive, got %v", c.Simulation.Tick)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.MaxBody <= 0 {
		return fmt.Errorf("server.max_body must be positive, got %d", c.Server.MaxBody)
	}
	switch c.Graph.Placement {
	case "origin", "noise":
	default:
		return fmt.Errorf("graph.placement must be origin or noise, got %q", c.Graph.Placement)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// Placer returns the node placement strategy selected by the graph section.
func (c *Config) Placer() physics.Placer {
	return physics.PlacerFor(c.Graph.Placement, c.Graph.Seed, c.Graph.Spread)
}

// GraphOptions returns the options for building a graph with these settings.
func (c *Config) GraphOptions() []graph.Option {
	opts := []graph.Option{
		graph.WithParams(c.Simulation.Forces),
		graph.WithPlacer(c.Placer()),
	}
	if c.Graph.UniqueNames {
		opts = append(opts, graph.WithUniqueNames())
	}
	return opts
}

// Duration is a time.Duration written as a string such as "16ms" in
// config files.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalText implements encoding.TextUnmarshaler, used by the TOML decoder.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}
