// Package config holds process configuration: listen address, backend data
// directory, CORS origin for the monitoring UI, logging, and the per-
// collection capacity limits. Values layer as defaults, then an optional
// JSON file, then environment variables.
package config
