// pkg/core/config.go
package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cixo/susci/pkg/header"
)

// Config holds installer configuration
type Config struct {
	Compiler    string        `yaml:"compiler" toml:"compiler" validate:"required"`
	SourceDir   string        `yaml:"source_dir" toml:"source_dir" validate:"required"`
	PackageName string        `yaml:"package_name" toml:"package_name" validate:"required,excludesall=/\\"`
	HeaderFile  string        `yaml:"header_file" toml:"header_file" validate:"required"`
	IncludePath string        `yaml:"include_path" toml:"include_path"`
	Verify      bool          `yaml:"verify" toml:"verify"`
	Debug       bool          `yaml:"debug" toml:"debug"`
	Timeout     time.Duration `yaml:"timeout" toml:"timeout" validate:"gte=0"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Compiler:    "avr-gcc",
		SourceDir:   "./Source",
		PackageName: "Susci",
		HeaderFile:  header.DefaultFile,
		IncludePath: "", // Ask the compiler
		Verify:      true,
		Debug:       false,
		Timeout:     30 * time.Second,
	}
}

// DefaultConfigPath returns $HOME/.config/susci/config.yaml
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "susci", "config.yaml"), nil
}

// LoadConfig loads configuration from file. An empty path loads the default
// file if it exists. Values missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return DefaultConfig(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required settings are present
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	// The package directory is removed recursively, so it must name a
	// child of the include path.
	if name := c.PackageName; name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("invalid config: package_name %q must be a plain directory name", name)
	}
	return nil
}
