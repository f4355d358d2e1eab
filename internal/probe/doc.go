// Package probe implements ephemeral tool discovery for MCP servers.
//
// A probe provisions throwaway compute for a server, drives the protocol
// handshake against it, and guarantees the provisioned resource is torn down
// no matter how discovery ends:
//
//   - CommandProbe runs a local subprocess and speaks stdio directly.
//   - DockerProbe provisions a single ephemeral container, either attaching
//     the image to local stdio, exec'ing a server command inside a detached
//     container, or mapping a host port for network-transport servers.
//   - KubernetesProbe provisions a Deployment and Service, waits for pod
//     readiness, and discovers over the service port.
//
// Image-backed probes share one outer state machine per attempt:
// provision, wait for readiness, discover, tear down. Teardown is always
// reached once a resource exists; a failed synchronous removal is handed to
// a background reaper that retries with bounded exponential backoff and
// never blocks the caller.
//
// Every public entry point resolves failures to a nil DiscoveryResult plus a
// logged diagnostic. Callers can fall back to another backend without
// special-casing failure modes; an empty tool list and a failed discovery
// are theirs to distinguish.
package probe
