// Package config holds the audit configuration: defaults, validation,
// XDG directories and the per-site .indexator.yaml file.
package config
