package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to accept YAML scalars like "250ms", since
// yaml.v3 has no built-in support for parsing a string into a Duration.
type Duration time.Duration

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("tick_interval: %w", err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config holds the server's tunable settings, loaded from a YAML file with
// hardcoded fallbacks for anything left unset.
type Config struct {
	ListenAddr     string   `yaml:"listen_addr"`
	DBPath         string   `yaml:"db_path"`
	ContentRoot    string   `yaml:"content_root"`
	ManifestName   string   `yaml:"manifest_name"`
	TickInterval   Duration `yaml:"tick_interval"`
	SigningKeyPath string   `yaml:"signing_key_path,omitempty"`
	LogLevel       string   `yaml:"log_level"`
	LogFile        string   `yaml:"log_file,omitempty"`
}

// Default returns a Config with every field set to its hardcoded default,
// rooted at home (typically config.DefaultHomeDir()).
func Default(home string) Config {
	return Config{
		ListenAddr:   ":8080",
		DBPath:       filepath.Join(home, "mudcore.db"),
		ContentRoot:  filepath.Join(home, "content"),
		ManifestName: "MODULES",
		TickInterval: Duration(100 * time.Millisecond),
		LogLevel:     "info",
	}
}

// Load reads a YAML config file at path and overlays it onto defaults
// rooted at home. A missing file is not an error: defaults are used as-is.
func Load(path, home string) (Config, error) {
	cfg := Default(home)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
