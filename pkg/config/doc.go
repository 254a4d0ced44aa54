// Package config defines the service configuration, its YAML loader, and an
// optional file watcher for configuration reload.
package config
