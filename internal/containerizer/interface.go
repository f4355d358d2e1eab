package containerizer

import "context"

// ContainerRuntime defines the interface for container runtime operations
type ContainerRuntime interface {
	// PullImage pulls a container image if not already present
	PullImage(ctx context.Context, image string) error

	// StartContainer starts a detached container and returns its id
	StartContainer(ctx context.Context, config ContainerConfig) (string, error)

	// StopContainer stops a running container
	StopContainer(ctx context.Context, containerID string) error

	// IsContainerRunning checks if a container is running
	IsContainerRunning(ctx context.Context, containerID string) (bool, error)

	// ContainerLogs returns the last tail lines of container output
	ContainerLogs(ctx context.Context, containerID string, tail int) (string, error)

	// RemoveContainer force-removes a container; removing a container
	// that no longer exists is not an error
	RemoveContainer(ctx context.Context, containerID string) error
}

// ContainerConfig holds configuration for starting a container
type ContainerConfig struct {
	Name       string            // Container name
	Image      string            // Container image
	Env        map[string]string // Environment variables
	Ports      []string          // Port mappings (host:container)
	Labels     map[string]string // Container labels
	Entrypoint []string          // Entrypoint override
	Args       []string          // Arguments passed to the image's command
}
