/*
Package config loads the control plane's startup configuration from a YAML
file via viper, the same two-stage decode the teacher's FromYaml used:
viper handles file discovery/parsing into a loosely-typed outer shape, then
gopkg.in/yaml.v3 re-marshals/unmarshals the inner section into the typed
struct this package actually hands back.
*/
package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"traindispatch/internal/hw/track"
)

// outerConfig mirrors the teacher's kind/def envelope: kind selects which
// typed shape def should be decoded as.
type outerConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// Config is the control plane's full startup configuration.
type Config struct {
	// Track selects which static layout (TrackA or TrackB) to load.
	Track string `mapstructure:"track"`
	// Trains lists every locomotive this run should track, plus any
	// calibration override.
	Trains []TrainConfig `mapstructure:"trains"`
	// Dashboard configures the HTTP/websocket dashboard server.
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// TrainConfig is one locomotive's startup parameters.
type TrainConfig struct {
	ID int `mapstructure:"id"`
	// Calibration is a free-form label for the train's physics table. It
	// does not select a table: every train, labelled or not, uses the
	// measured default table.
	Calibration string `mapstructure:"calibration"`
}

// DashboardConfig configures the dashboard's HTTP listener.
type DashboardConfig struct {
	Addr string `mapstructure:"addr"`
}

// TrackName resolves the configured track string to a track.Name, falling
// back to TrackA when unset or unrecognized.
func (c *Config) TrackName() track.Name {
	switch c.Track {
	case "TrackB":
		return track.TrackB
	default:
		return track.TrackA
	}
}

// FromYaml loads and decodes path, mirroring the teacher's
// reinforcement.FromYaml two-stage viper+yaml decode: viper parses the
// file into a loosely-typed map, then yaml.v3 re-decodes the "def" section
// into the typed Config.
func FromYaml(path string) (*Config, error) {
	vp := viper.New()
	vp.SetConfigFile(filepath.Base(path))
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	if err := vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	outer := &outerConfig{}
	if err := vp.Unmarshal(outer); err != nil {
		return nil, fmt.Errorf("config: decoding outer envelope: %w", err)
	}

	spec, err := yaml.Marshal(outer.Def)
	if err != nil {
		return nil, fmt.Errorf("config: remarshaling def section: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(spec, cfg); err != nil {
		return nil, fmt.Errorf("config: decoding inner config: %w", err)
	}
	return cfg, nil
}
