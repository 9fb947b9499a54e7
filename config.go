package conduit

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("conduit: invalid config")

// Config configures collision detection, spatial lookups and tick pacing.
type Config struct {
	// Tolerance is added to the longest half-extent of both boxes when testing
	// conduit against conduit. Default: 0.02.
	Tolerance float64 `yaml:"connection_tolerance"`

	// SearchRadius is the centre distance beyond which two conduits are never
	// tested. Default: 5.
	SearchRadius float64 `yaml:"search_radius"`

	// ContainerSearchRadius is the same cut-off for containers. Default: 5.
	ContainerSearchRadius float64 `yaml:"container_search_radius"`

	// CellSize is the edge length of a spatial cell in the store. Default: 8.
	CellSize float64 `yaml:"cell_size"`

	// QueryCells is how many rings of cells around the source are enumerated.
	// CellSize*QueryCells must cover both search radii. Default: 1.
	QueryCells int `yaml:"query_cells"`

	// TickRateMs is the scheduler tick interval in milliseconds. Default: 50.
	TickRateMs int `yaml:"tick_rate_ms"`

	// TransferRate is the per-node transfer rate used when a conduit has none
	// stored. Default: 1.
	TransferRate int `yaml:"transfer_rate"`

	// ConduitPrefabs lists the prefab tags that are conduits.
	ConduitPrefabs []string `yaml:"conduit_prefabs"`

	// ContainerPrefabs lists the prefab tags that are containers.
	ContainerPrefabs []string `yaml:"container_prefabs"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Tolerance:             0.02,
		SearchRadius:          5,
		ContainerSearchRadius: 5,
		CellSize:              8,
		QueryCells:            1,
		TickRateMs:            50, // 20 TPS
		TransferRate:          1,
		ConduitPrefabs: []string{
			"ic_wood_beam_1",
			"ic_wood_beam",
			"ic_wood_pole",
			"ic_wood_pole2",
		},
		ContainerPrefabs: []string{
			"piece_chest_wood",
			"piece_chest",
			"piece_chest_private",
			"piece_chest_blackmetal",
			"piece_chest_treasure",
		},
	}
}

// TickRate returns the scheduler tick interval.
func (c Config) TickRate() time.Duration {
	return time.Duration(c.TickRateMs) * time.Millisecond
}

// Validate checks the config for values the engine cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Tolerance < 0:
		return fmt.Errorf("%w: connection_tolerance %v < 0", ErrInvalidConfig, c.Tolerance)
	case c.SearchRadius <= 0 || c.ContainerSearchRadius <= 0:
		return fmt.Errorf("%w: search radii must be positive", ErrInvalidConfig)
	case c.CellSize <= 0:
		return fmt.Errorf("%w: cell_size %v <= 0", ErrInvalidConfig, c.CellSize)
	case c.QueryCells < 1:
		return fmt.Errorf("%w: query_cells %d < 1", ErrInvalidConfig, c.QueryCells)
	case c.CellSize*float64(c.QueryCells) < max(c.SearchRadius, c.ContainerSearchRadius):
		return fmt.Errorf("%w: %d cells of %v do not cover search radius", ErrInvalidConfig, c.QueryCells, c.CellSize)
	case c.TickRateMs <= 0:
		return fmt.Errorf("%w: tick_rate_ms %d <= 0", ErrInvalidConfig, c.TickRateMs)
	case c.TransferRate < 1 || c.TransferRate > 100:
		return fmt.Errorf("%w: transfer_rate %d outside [1, 100]", ErrInvalidConfig, c.TransferRate)
	}
	return nil
}

// LoadConfig reads a YAML config file. Keys missing from the file keep their
// default value.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("conduit: %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Option configures a Config.
type Option func(*Config)

// WithTolerance sets the connection tolerance.
func WithTolerance(t float64) Option {
	return func(c *Config) {
		c.Tolerance = t
	}
}

// WithSearchRadius sets the conduit and container search radii.
func WithSearchRadius(r float64) Option {
	return func(c *Config) {
		c.SearchRadius = r
		c.ContainerSearchRadius = r
	}
}

// WithCells sets the spatial cell size and the number of rings queried.
func WithCells(size float64, rings int) Option {
	return func(c *Config) {
		c.CellSize = size
		c.QueryCells = rings
	}
}

// WithTickRate sets the scheduler tick interval.
func WithTickRate(d time.Duration) Option {
	return func(c *Config) {
		c.TickRateMs = int(d / time.Millisecond)
	}
}

// WithConduitPrefabs replaces the conduit prefab list.
func WithConduitPrefabs(prefabs ...string) Option {
	return func(c *Config) {
		c.ConduitPrefabs = prefabs
	}
}

// WithContainerPrefabs replaces the container prefab list.
func WithContainerPrefabs(prefabs ...string) Option {
	return func(c *Config) {
		c.ContainerPrefabs = prefabs
	}
}
