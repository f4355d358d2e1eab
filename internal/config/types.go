package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from yaml strings like "60s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration for mcpdiscover.
type Config struct {
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Docker     DockerConfig     `yaml:"docker"`
	Kubernetes KubernetesConfig `yaml:"kubernetes"`
}

// DiscoveryConfig holds the timing and retry knobs shared by all probes.
type DiscoveryConfig struct {
	// Timeout bounds one discoverFromImage attempt.
	Timeout Duration `yaml:"timeout"`
	// Retries is the number of attempts made by the orchestration layer,
	// not by an individual probe call.
	Retries int `yaml:"retries"`
	// RetrySleep is the pause between orchestration-layer attempts.
	RetrySleep Duration `yaml:"retrySleep"`
	// CommandTimeout bounds one discoverFromCommand call.
	CommandTimeout Duration `yaml:"commandTimeout"`
	// HandshakeTimeout bounds the wait for the initialize response.
	HandshakeTimeout Duration `yaml:"handshakeTimeout"`
	// PortRangeStart and PortRangeEnd bound the half-open port search
	// range [start,end) used for container and service ports.
	PortRangeStart int `yaml:"portRangeStart"`
	PortRangeEnd   int `yaml:"portRangeEnd"`
	// CleanupRetries and CleanupBaseDelay shape the background removal
	// retry loop after a failed synchronous teardown.
	CleanupRetries   int      `yaml:"cleanupRetries"`
	CleanupBaseDelay Duration `yaml:"cleanupBaseDelay"`
}

// DockerConfig holds the container-backend settings.
type DockerConfig struct {
	// Runtime selects the container runtime binary ("docker" by default).
	Runtime string `yaml:"runtime"`
	// HealthCheckTimeout bounds the wait for a started container to
	// accept connections.
	HealthCheckTimeout Duration `yaml:"healthCheckTimeout"`
	// ContainerPort is the in-container port a network-transport server
	// is told to listen on (via MCP_PORT).
	ContainerPort int `yaml:"containerPort"`
}

// KubernetesConfig holds the pod-backend settings.
type KubernetesConfig struct {
	// Namespace receives the ephemeral Deployment and Service.
	Namespace string `yaml:"namespace"`
	// PodReadyTimeout bounds the wait for the probe pod's Ready condition.
	PodReadyTimeout Duration `yaml:"podReadyTimeout"`
	// Endpoint overrides the service DNS endpoint URL, mainly for
	// discovering from outside the cluster.
	Endpoint string `yaml:"endpoint"`
}
