package config

import (
	"os"

	"github.com/goccy/go-yaml"

	"github.com/aixlab/aix/errors"
)

// Load builds a Config from defaults, an optional YAML file, and a few
// environment overrides, in that order of increasing precedence.
func Load(path string) (*Config, error) {
	conf := NewConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
		if err := yaml.Unmarshal(raw, conf); err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidConfig, "failed to parse %s: %v", path, err)
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		conf.Log.LogLevel = v
	}
	if v := os.Getenv("LOG_HANDLER"); v != "" {
		conf.Log.LogHandler = v
	}
	if v := os.Getenv("AIX_SQLITE_PATH"); v != "" {
		conf.Store.SqlitePath = v
	}
	if v := os.Getenv("AIX_ADDR"); v != "" {
		conf.Server.Addr = v
	}

	if conf.Store.VectorDimension <= 0 {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "vector dimension must be positive")
	}
	if conf.Session.HistoryLimit <= 0 {
		conf.Session.HistoryLimit = NewSessionConfig().HistoryLimit
	}

	return conf, nil
}
