// Package config loads engine configuration from environment variables and
// an optional YAML file. Environment variables always win over file values,
// so deployments can override a checked-in config without editing it.
package config
