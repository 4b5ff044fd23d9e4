// Package config loads the daemon configuration for fanctld.
//
// Configuration comes from a YAML file with defaults applied first and
// FANCTL_* environment variables applied last. This covers the deployment
// surface only (broker, database, telemetry, logging, paths); the fan
// control policy itself lives in the JSON policy files read by the control
// package.
package config
