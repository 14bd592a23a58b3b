// Package config loads nativepkg settings.
//
// Values come from, highest precedence first: command-line flags,
// NATIVEPKG_* environment variables, the config file
// ($XDG_CONFIG_HOME/nativepkg/config.toml) and built-in defaults.
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

	"github.com/matzehuels/nativepkg/pkg/cache"
	"github.com/matzehuels/nativepkg/pkg/project"
	"github.com/matzehuels/nativepkg/pkg/registry"
)

const (
	// AppName is the application name.
	AppName = "nativepkg"
	// EnvPrefix prefixes every environment variable.
	EnvPrefix = "NATIVEPKG"
	// FileName is the config file name inside [Dir].
	FileName = "config.toml"
)

// Config holds the resolved settings.
type Config struct {
	RegistryURL string        `mapstructure:"registry_url"`
	Token       string        `mapstructure:"token"`
	Timeout     time.Duration `mapstructure:"timeout"`
	CacheDir    string        `mapstructure:"cache_dir"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	DownloadDir string        `mapstructure:"download_dir"`
	RedisURL    string        `mapstructure:"redis_url"`
	MongoURI    string        `mapstructure:"mongo_uri"`
}

// Default returns the built-in defaults.
func Default() Config {
	dir, err := cache.DefaultDir()
	if err != nil {
		dir = filepath.Join(os.TempDir(), AppName, "registry")
	}
	return Config{
		RegistryURL: registry.DefaultURL,
		Timeout:     30 * time.Second,
		CacheDir:    dir,
		CacheTTL:    24 * time.Hour,
		DownloadDir: project.TempCacheDir(),
	}
}

// FlagKeys maps command-line flag names to config keys.
var FlagKeys = map[string]string{
	"registry":  "registry_url",
	"token":     "token",
	"timeout":   "timeout",
	"cache-dir": "cache_dir",
	"redis":     "redis_url",
	"mongo":     "mongo_uri",
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// File overrides the config file path. It must exist when set.
	File string
	// Dir overrides the config directory (tests).
	Dir string
	// Flags are bound per [FlagKeys]; only flags set by the user override.
	Flags *pflag.FlagSet
}

// Dir returns the nativepkg config directory.
func Dir() (string, error) {
	if d := os.Getenv("XDG_CONFIG_HOME"); d != "" {
		return filepath.Join(d, AppName), nil
	}
	d, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	return filepath.Join(d, AppName), nil
}

// Load resolves the configuration. It returns the config file used, or "".
func Load(opts LoadOptions) (*Config, string, error) {
	v := viper.New()

	d := Default()
	v.SetDefault("registry_url", d.RegistryURL)
	v.SetDefault("token", d.Token)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("cache_dir", d.CacheDir)
	v.SetDefault("cache_ttl", d.CacheTTL)
	v.SetDefault("download_dir", d.DownloadDir)
	v.SetDefault("redis_url", d.RedisURL)
	v.SetDefault("mongo_uri", d.MongoURI)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	used := ""
	switch {
	case opts.File != "":
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("read config %s: %w", opts.File, err)
		}
		used = opts.File
	default:
		dir := opts.Dir
		if dir == "" {
			var err error
			if dir, err = Dir(); err != nil {
				return nil, "", err
			}
		}
		v.AddConfigPath(dir)
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, "", fmt.Errorf("read config: %w", err)
			}
		} else {
			used = v.ConfigFileUsed()
		}
	}

	if opts.Flags != nil {
		for name, key := range FlagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, "", fmt.Errorf("bind --%s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("parse config: %w", err)
	}
	if cfg.Timeout <= 0 {
		return nil, "", fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}
	return &cfg, used, nil
}

// RegistryConfig returns the registry client settings. c is the response
// cache for manifests and listings.
func (c *Config) RegistryConfig(rc cache.Cache) registry.Config {
	return registry.Config{
		URL:      c.RegistryURL,
		Token:    c.Token,
		Timeout:  c.Timeout,
		Cache:    rc,
		CacheTTL: c.CacheTTL,
	}
}
