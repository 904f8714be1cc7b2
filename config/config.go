// Package config loads warmcache settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the standard locations.
const FileName = "warmcache.yaml"

// EnvPath overrides the config file location.
const EnvPath = "WARMCACHE_CONFIG"

type Cache struct {
	DefaultTTL    time.Duration `yaml:"default_ttl"`
	Shards        int           `yaml:"shards"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type Warmer struct {
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
	MaxProjects int           `yaml:"max_projects"`
	MaxRoutes   int           `yaml:"max_routes"`
	TTL         time.Duration `yaml:"ttl"`
}

type Behavior struct {
	MaxEntries int           `yaml:"max_entries"`
	Retention  time.Duration `yaml:"retention"`
	Buffer     int           `yaml:"buffer"`
}

// Type is the whole configuration. Source is the file it came from, empty
// when only defaults apply.
type Type struct {
	Source   string   `yaml:"-"`
	Cache    Cache    `yaml:"cache"`
	Warmer   Warmer   `yaml:"warmer"`
	Behavior Behavior `yaml:"behavior"`
}

// Default returns the built-in settings.
func Default() Type {
	return Type{
		Cache: Cache{
			DefaultTTL:    5 * time.Minute,
			Shards:        16,
			SweepInterval: time.Minute,
		},
		Warmer: Warmer{
			Interval:    30 * time.Second,
			Concurrency: 4,
			MaxProjects: 3,
			MaxRoutes:   3,
			TTL:         10 * time.Minute,
		},
		Behavior: Behavior{
			MaxEntries: 50,
			Retention:  7 * 24 * time.Hour,
			Buffer:     256,
		},
	}
}

/*
Load reads the config file over the defaults.

The first of these that exists wins:
  - the explicit path argument
  - $WARMCACHE_CONFIG
  - $XDG_CONFIG_HOME/warmcache.yaml, $APPDATA/warmcache.yaml, $HOME/warmcache.yaml

No file at all is not an error; an explicit path that is missing is.
*/
func Load(cfgFilePath ...string) (Type, error) {
	cfg := Default()

	path, explicit := "", false
	if len(cfgFilePath) > 0 && cfgFilePath[0] != "" {
		path, explicit = cfgFilePath[0], true
	} else if p, ok := os.LookupEnv(EnvPath); ok && p != "" {
		path, explicit = p, true
	} else {
		path = findConfig()
	}

	if path == "" {
		log.Debug("no config file found, using defaults")
		return cfg, nil
	}

	bytes, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Type{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		return Type{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.Source = path

	if err := cfg.Validate(); err != nil {
		return Type{}, fmt.Errorf("invalid config %s: %w", path, err)
	}

	log.Debugf("using config file: %s", path)
	return cfg, nil
}

// Validate rejects settings the cache cannot run with.
func (cfg Type) Validate() error {
	var errs []error
	positive := func(name string, ok bool) {
		if !ok {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	positive("cache.default_ttl", cfg.Cache.DefaultTTL > 0)
	positive("cache.shards", cfg.Cache.Shards > 0)
	if cfg.Cache.SweepInterval < 0 {
		errs = append(errs, errors.New("cache.sweep_interval must not be negative"))
	}
	positive("warmer.interval", cfg.Warmer.Interval > 0)
	positive("warmer.concurrency", cfg.Warmer.Concurrency > 0)
	positive("warmer.ttl", cfg.Warmer.TTL > 0)
	if cfg.Warmer.MaxProjects < 0 || cfg.Warmer.MaxRoutes < 0 {
		errs = append(errs, errors.New("warmer.max_projects and warmer.max_routes must not be negative"))
	}
	positive("behavior.max_entries", cfg.Behavior.MaxEntries > 0)
	positive("behavior.retention", cfg.Behavior.Retention > 0)
	positive("behavior.buffer", cfg.Behavior.Buffer > 0)

	return errors.Join(errs...)
}

func findConfig() string {
	candidates := []string{
		os.Getenv("XDG_CONFIG_HOME"),
		os.Getenv("APPDATA"),
		os.Getenv("HOME"),
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		file := filepath.Join(c, FileName)
		if fileInfo, err := os.Stat(file); err == nil && !fileInfo.IsDir() {
			return file
		}
	}
	return ""
}
