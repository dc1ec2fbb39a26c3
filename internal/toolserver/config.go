package toolserver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so configs can say "30s" instead of
// nanosecond integers. JSON uses the same string form.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Config declares how to launch and call one tool server. Immutable once
// registered with a registry.
type Config struct {
	Name    string            `yaml:"name" json:"name"`
	Command string            `yaml:"command" json:"command"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	// Timeout bounds each call against this server. Zero means
	// DefaultCallTimeout.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	// Rate limits invokes per second against this server. Zero means
	// unlimited.
	Rate  float64 `yaml:"rate,omitempty" json:"rate,omitempty"`
	Burst int     `yaml:"burst,omitempty" json:"burst,omitempty"`
}

// Validate checks the fields required to spawn and address the server.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("toolserver: config has empty name")
	}
	if strings.TrimSpace(c.Command) == "" {
		return fmt.Errorf("toolserver: config %q has empty command", c.Name)
	}
	return nil
}

func (c Config) callTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout.Std()
	}
	return DefaultCallTimeout
}

// FleetConfig is the on-disk declaration of the tool-server fleet.
type FleetConfig struct {
	Servers []Config `yaml:"servers" json:"servers"`
}

// LoadFleetConfig reads a fleet file (YAML or JSON, detected by extension or
// content) and validates every server entry.
func LoadFleetConfig(path string) (*FleetConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fleet config: %w", err)
	}
	return ParseFleetConfig(data, filepath.Ext(path))
}

// ParseFleetConfig parses fleet config bytes. ext is the file extension for
// format hint; empty = detect from content.
func ParseFleetConfig(data []byte, ext string) (*FleetConfig, error) {
	var fc FleetConfig

	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	switch ext {
	case ".yaml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse fleet yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse fleet json: %w", err)
		}
	default:
		if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
			if err := json.Unmarshal(data, &fc); err != nil {
				return nil, fmt.Errorf("parse fleet json: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse fleet yaml: %w", err)
		}
	}

	seen := make(map[string]struct{}, len(fc.Servers))
	for _, cfg := range fc.Servers {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[cfg.Name]; dup {
			return nil, fmt.Errorf("toolserver: duplicate server name %q", cfg.Name)
		}
		seen[cfg.Name] = struct{}{}
	}
	return &fc, nil
}
