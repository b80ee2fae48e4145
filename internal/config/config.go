package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config captures every setting the DropIt client reads at start-up.
type Config struct {
	APIBase            string        `mapstructure:"api_base"`
	DataDir            string        `mapstructure:"data_dir"`
	LogLevel           string        `mapstructure:"log_level"`
	LogFormat          string        `mapstructure:"log_format"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	ProbeTimeout       time.Duration `mapstructure:"probe_timeout"`
	RequestsPerSecond  float64       `mapstructure:"requests_per_second"`
	AutoRefreshMinutes int           `mapstructure:"auto_refresh_minutes"`
	NearbyRadiusKm     float64       `mapstructure:"nearby_radius_km"`
	DefaultLat         float64       `mapstructure:"default_lat"`
	DefaultLng         float64       `mapstructure:"default_lng"`
	DefaultZoom        int           `mapstructure:"default_zoom"`
}

const (
	defaultConfigPath = "~/.config/dropit/config.toml"
	defaultDataDir    = "~/.local/share/dropit"
	defaultAPIBase    = "http://localhost:8080/api"
	envPrefix         = "DROPIT"
)

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"api-base":  "api_base",
	"data-dir":  "data_dir",
	"log-level": "log_level",
}

// Load reads the config file at path (the default location when empty),
// overlays DROPIT_* environment variables and any changed flags, and falls
// back to defaults for everything unset. A missing file is not an error.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(resolved); err == nil {
		v.SetConfigFile(resolved)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("open config: %w", err)
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.APIBase = strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaultDataDir
	}
	cfg.DataDir = mustExpand(cfg.DataDir)
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.AutoRefreshMinutes < 0 {
		cfg.AutoRefreshMinutes = 0
	}
	return cfg, nil
}

// StorageDir is the directory holding the local key/value database.
func (c Config) StorageDir() string {
	return filepath.Join(c.DataDir, "storage")
}

// PrefsPath is the location of the UI appearance preferences file.
func (c Config) PrefsPath() string {
	return filepath.Join(c.DataDir, "prefs.toml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_base", defaultAPIBase)
	v.SetDefault("data_dir", defaultDataDir)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("probe_timeout", "5s")
	v.SetDefault("requests_per_second", 10.0)
	v.SetDefault("auto_refresh_minutes", 5)
	v.SetDefault("nearby_radius_km", 5.0)
	v.SetDefault("default_lat", 37.5666805)
	v.SetDefault("default_lng", 126.9784147)
	v.SetDefault("default_zoom", 12)
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
