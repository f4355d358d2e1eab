// Package config loads the mcpdiscover configuration.
//
// Configuration is a single yaml file, read once per invocation. Every
// timeout, retry count, and port-range constant used by the discovery engine
// has a default here and can be overridden in the file.
package config
