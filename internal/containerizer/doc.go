// Package containerizer provides the container runtime abstraction used by
// the docker probe.
//
// The runtime drives the container engine through its CLI rather than an SDK:
// everything discovery needs is create/start/inspect/logs/remove, and the CLI
// keeps the dependency surface to a binary on PATH. Operations are mockable
// in tests by swapping execCommandContext.
package containerizer
