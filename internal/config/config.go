// Package config resolves the taskq database path and daemon settings
// from, in priority order: an explicit argument, the TASKQ_DB
// environment variable, a taskq.yaml or taskq.toml config file, or a
// platform default under os.UserConfigDir().
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds the settings resolved from all sources.
type Config struct {
	DBPath      string `mapstructure:"db_path" yaml:"db_path"`
	SocketPath  string `mapstructure:"socket_path" yaml:"socket_path"`
	Listen      string `mapstructure:"listen" yaml:"listen"`
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"`
}

const (
	envDBPath = "TASKQ_DB"
	appName   = "taskq"
)

// Resolve returns the effective Config, honoring the documented priority
// order. explicitDBPath, when non-empty, always wins.
func Resolve(explicitDBPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TASKQ")
	v.AutomaticEnv()

	v.SetDefault("socket_path", defaultSocketPath())
	v.SetDefault("listen", "")
	v.SetDefault("metrics_addr", "")

	if dir, err := userConfigDir(); err == nil {
		v.AddConfigPath(dir)
	}
	v.SetConfigName(appName)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.DBPath = resolveDBPath(explicitDBPath, v)
	return cfg, nil
}

// readConfigFile tries taskq.yaml then taskq.toml in the config
// directory; a missing file is not an error, since every layer below
// it (env var, explicit flag) may still resolve the path.
//
// taskq.yaml is read through viper directly. taskq.toml is decoded by
// hand with BurntSushi/toml and merged in, since viper's own toml
// codec doesn't round-trip the bare key names this package uses.
func readConfigFile(v *viper.Viper) error {
	dir, err := userConfigDir()
	if err != nil {
		return nil
	}
	yamlPath := filepath.Join(dir, appName+".yaml")
	if _, statErr := os.Stat(yamlPath); statErr == nil {
		v.SetConfigFile(yamlPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read taskq.yaml: %w", err)
		}
		return nil
	}

	tomlPath := filepath.Join(dir, appName+".toml")
	if _, statErr := os.Stat(tomlPath); statErr != nil {
		return nil
	}

	var fromToml struct {
		DBPath      string `toml:"db_path"`
		SocketPath  string `toml:"socket_path"`
		Listen      string `toml:"listen"`
		MetricsAddr string `toml:"metrics_addr"`
	}
	if _, err := toml.DecodeFile(tomlPath, &fromToml); err != nil {
		return fmt.Errorf("read taskq.toml: %w", err)
	}
	if fromToml.DBPath != "" {
		v.Set("db_path", fromToml.DBPath)
	}
	if fromToml.SocketPath != "" {
		v.Set("socket_path", fromToml.SocketPath)
	}
	if fromToml.Listen != "" {
		v.Set("listen", fromToml.Listen)
	}
	if fromToml.MetricsAddr != "" {
		v.Set("metrics_addr", fromToml.MetricsAddr)
	}
	return nil
}

// DumpYAML renders cfg as YAML, used by the CLI's "config dump" command.
func DumpYAML(cfg *Config) (string, error) {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(b), nil
}

func resolveDBPath(explicit string, v *viper.Viper) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(envDBPath); env != "" {
		return env
	}
	if fromFile := v.GetString("db_path"); fromFile != "" {
		return fromFile
	}
	return defaultDBPath()
}

func userConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appName), nil
}

func defaultDBPath() string {
	dir, err := userConfigDir()
	if err != nil {
		return filepath.Join(".", appName+".db")
	}
	return filepath.Join(dir, "taskq.db")
}

func defaultSocketPath() string {
	dir, err := userConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "taskq.sock")
	}
	return filepath.Join(dir, "taskq.sock")
}
