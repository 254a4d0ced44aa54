package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/stackrelay/stackrelay/pkg/telemetry"
)

// Config is the root configuration of the stackrelay service.
type Config struct {
	// Executor configures the build executor backend.
	Executor ExecutorConfig `yaml:"executor" validate:"required"`

	// Stack configures the provisioned application stack.
	Stack StackConfig `yaml:"stack" validate:"required"`

	// Dispatcher configures lifecycle dispatch behavior.
	Dispatcher DispatcherConfig `yaml:"dispatcher"`

	// Server configures the inbound HTTP listener.
	Server ServerConfig `yaml:"server"`

	// Store configures the execution journal.
	Store StoreConfig `yaml:"store"`

	// Telemetry configures logging, tracing, and metrics.
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// ExecutorConfig configures the build executor backend.
type ExecutorConfig struct {
	// Project is the name of the build project executions run against.
	Project string `yaml:"project" validate:"required"`

	// Region overrides the cloud region; empty uses the ambient default.
	Region string `yaml:"region"`

	// BuildTimeout bounds a whole execution, from build submission to the
	// terminal phase.
	BuildTimeout time.Duration `yaml:"build_timeout"`

	// PollInterval is the delay between build status polls.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// StackConfig configures the provisioned application stack.
type StackConfig struct {
	// Provisioned is the name of the stack that executions provision and
	// Delete tears down.
	Provisioned string `yaml:"provisioned" validate:"required"`

	// FrontendURLKey names the stack output carrying the frontend URL.
	FrontendURLKey string `yaml:"frontend_url_key"`
}

// DispatcherConfig configures lifecycle dispatch behavior.
type DispatcherConfig struct {
	// ExecutionPrefix prefixes deterministic execution names.
	ExecutionPrefix string `yaml:"execution_prefix"`

	// ProjectionKeys are the resource properties whose changes trigger a
	// rebuild on Update. Empty uses the built-in defaults.
	ProjectionKeys []string `yaml:"projection_keys"`
}

// ServerConfig configures the inbound HTTP listener.
type ServerConfig struct {
	// ListenAddress is the address the HTTP server binds to.
	ListenAddress string `yaml:"listen_address"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig configures the execution journal.
type StoreConfig struct {
	// Path is the SQLite database file path. Empty disables journaling.
	Path string `yaml:"path"`
}

var validate = validator.New()

// DefaultConfig returns a configuration with defaults applied. Executor
// project and provisioned stack name have no defaults and must be set.
func DefaultConfig() *Config {
	return &Config{
		Executor: ExecutorConfig{
			BuildTimeout: 1 * time.Hour,
			PollInterval: 15 * time.Second,
		},
		Stack: StackConfig{
			FrontendURLKey: "FrontendUrl",
		},
		Dispatcher: DispatcherConfig{
			ExecutionPrefix: "deploy",
		},
		Server: ServerConfig{
			ListenAddress:   ":8080",
			ShutdownTimeout: 30 * time.Second,
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// ApplyDefaults fills zero-valued fields with defaults.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.Executor.BuildTimeout <= 0 {
		c.Executor.BuildTimeout = def.Executor.BuildTimeout
	}
	if c.Executor.PollInterval <= 0 {
		c.Executor.PollInterval = def.Executor.PollInterval
	}
	if c.Stack.FrontendURLKey == "" {
		c.Stack.FrontendURLKey = def.Stack.FrontendURLKey
	}
	if c.Dispatcher.ExecutionPrefix == "" {
		c.Dispatcher.ExecutionPrefix = def.Dispatcher.ExecutionPrefix
	}
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = def.Server.ListenAddress
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry = def.Telemetry
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Executor.PollInterval > c.Executor.BuildTimeout {
		return fmt.Errorf("poll interval %s exceeds build timeout %s", c.Executor.PollInterval, c.Executor.BuildTimeout)
	}
	return c.Telemetry.Validate()
}
