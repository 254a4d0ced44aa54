package config

import (
	"context"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/stackrelay/stackrelay/pkg/telemetry"
)

// Load reads, defaults, and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses, defaults, and validates raw YAML configuration.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overlays STACKRELAY_* environment variables on top of the
// file values, for deployments that inject per-environment settings.
func applyEnvOverrides(cfg *Config) {
	overrides := map[string]*string{
		"STACKRELAY_EXECUTOR_PROJECT": &cfg.Executor.Project,
		"STACKRELAY_EXECUTOR_REGION":  &cfg.Executor.Region,
		"STACKRELAY_STACK":            &cfg.Stack.Provisioned,
		"STACKRELAY_LISTEN_ADDRESS":   &cfg.Server.ListenAddress,
		"STACKRELAY_STORE_PATH":       &cfg.Store.Path,
		"STACKRELAY_LOG_LEVEL":        &cfg.Telemetry.Logging.Level,
	}
	for key, field := range overrides {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}
}

// Watcher watches a configuration file and invokes a callback when it
// changes and still parses cleanly.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	log     *telemetry.Logger
}

// NewWatcher creates a watcher for the given configuration file.
func NewWatcher(path string, log *telemetry.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}
	return &Watcher{
		path:    path,
		watcher: fw,
		log:     log.NewComponentLogger("config-watcher"),
	}, nil
}

// Watch blocks, reloading the configuration on every write to the watched
// file and passing valid results to reloadFn. Invalid configurations are
// logged and skipped; the previous configuration stays in effect.
func (w *Watcher) Watch(ctx context.Context, reloadFn func(*Config)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.log.WithError(err).Warn("Ignoring invalid configuration change")
				continue
			}
			w.log.Info("Configuration reloaded")
			reloadFn(cfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("Configuration watch error")
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
