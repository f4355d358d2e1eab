package config

import "time"

const (
	// DefaultDiscoveryTimeout bounds one discoverFromImage attempt.
	DefaultDiscoveryTimeout = 60 * time.Second

	// DefaultDiscoveryRetries is the orchestration-layer attempt count.
	DefaultDiscoveryRetries = 3

	// DefaultDiscoveryRetrySleep is the pause between attempts.
	DefaultDiscoveryRetrySleep = 5 * time.Second

	// DefaultCommandTimeout bounds one discoverFromCommand call.
	DefaultCommandTimeout = 15 * time.Second

	// DefaultHandshakeTimeout bounds the wait for the initialize response.
	DefaultHandshakeTimeout = 30 * time.Second

	// DefaultContainerHealthCheckTimeout bounds the wait for a container
	// to become reachable.
	DefaultContainerHealthCheckTimeout = 15 * time.Second

	// DefaultPodReadyTimeout bounds the wait for pod readiness.
	DefaultPodReadyTimeout = 60 * time.Second

	// DefaultPortRangeStart and DefaultPortRangeEnd bound the half-open
	// port search range.
	DefaultPortRangeStart = 8000
	DefaultPortRangeEnd   = 9000

	// DefaultCleanupRetries and DefaultCleanupBaseDelay shape the
	// background removal backoff (1s, 2s, 4s).
	DefaultCleanupRetries   = 3
	DefaultCleanupBaseDelay = 1 * time.Second

	// DefaultContainerPort is the in-container port for network servers.
	DefaultContainerPort = 8080

	// DefaultNamespace receives ephemeral Kubernetes objects.
	DefaultNamespace = "default"
)

// GetDefaultConfig returns the configuration used when no file is given.
func GetDefaultConfig() Config {
	return Config{
		Discovery: DiscoveryConfig{
			Timeout:          Duration(DefaultDiscoveryTimeout),
			Retries:          DefaultDiscoveryRetries,
			RetrySleep:       Duration(DefaultDiscoveryRetrySleep),
			CommandTimeout:   Duration(DefaultCommandTimeout),
			HandshakeTimeout: Duration(DefaultHandshakeTimeout),
			PortRangeStart:   DefaultPortRangeStart,
			PortRangeEnd:     DefaultPortRangeEnd,
			CleanupRetries:   DefaultCleanupRetries,
			CleanupBaseDelay: Duration(DefaultCleanupBaseDelay),
		},
		Docker: DockerConfig{
			Runtime:            "docker",
			HealthCheckTimeout: Duration(DefaultContainerHealthCheckTimeout),
			ContainerPort:      DefaultContainerPort,
		},
		Kubernetes: KubernetesConfig{
			Namespace:       DefaultNamespace,
			PodReadyTimeout: Duration(DefaultPodReadyTimeout),
		},
	}
}
