package containerizer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
)

// init sets up the test environment
func init() {
	// Replace the exec command context with our mock in tests
	execCommandContext = mockExecCommandContext
}

// mockExecCommandContext is our mock implementation
func mockExecCommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	cs := []string{"-test.run=TestHelperProcess", "--", name}
	cs = append(cs, args...)
	cmd := exec.Command(os.Args[0], cs...)
	cmd.Env = []string{"GO_WANT_HELPER_PROCESS=1"}
	return cmd
}

// TestHelperProcess is a helper process for mocking exec.Command
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}

	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "No command\n")
		os.Exit(2)
	}

	cmd, args := args[0], args[1:]

	if cmd != "docker" {
		fmt.Fprintf(os.Stderr, "Unknown command: %s %v\n", cmd, args)
		os.Exit(1)
	}
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "No docker subcommand\n")
		os.Exit(1)
	}

	switch args[0] {
	case "info":
		os.Exit(0)

	case "image":
		if len(args) > 2 && args[1] == "inspect" {
			if args[2] == "alpine:latest" {
				// Image exists locally
				os.Exit(0)
			}
			os.Exit(1)
		}

	case "pull":
		if len(args) > 1 {
			if args[1] == "nonexistent/image:doesnotexist" {
				fmt.Fprintf(os.Stderr, "Error response from daemon: pull access denied\n")
				os.Exit(1)
			}
			fmt.Printf("Pulling %s\n", args[1])
			os.Exit(0)
		}

	case "run":
		fmt.Println("abc123def456789")
		os.Exit(0)

	case "stop":
		os.Exit(0)

	case "rm":
		if len(args) > 2 && args[2] == "gone-container" {
			fmt.Fprintf(os.Stderr, "Error response from daemon: No such container: gone-container\n")
			os.Exit(1)
		}
		if len(args) > 2 && args[2] == "stuck-container" {
			fmt.Fprintf(os.Stderr, "Error response from daemon: removal already in progress\n")
			os.Exit(1)
		}
		os.Exit(0)

	case "inspect":
		if len(args) > 3 && args[1] == "-f" && args[2] == "{{.State.Running}}" {
			fmt.Println("true")
			os.Exit(0)
		}

	case "logs":
		fmt.Println("Container started")
		fmt.Println("Listening on port 8080")
		os.Exit(0)
	}

	fmt.Fprintf(os.Stderr, "Unknown command: %s %v\n", cmd, args)
	os.Exit(1)
}

func TestNewDockerRuntime(t *testing.T) {
	runtime, err := NewDockerRuntime()
	if err != nil {
		t.Errorf("NewDockerRuntime() error = %v, want nil", err)
	}
	if runtime == nil {
		t.Error("NewDockerRuntime() returned nil runtime")
	}
}

func TestDockerRuntime_PullImage(t *testing.T) {
	tests := []struct {
		name        string
		image       string
		expectError bool
	}{
		{
			name:        "image already exists",
			image:       "alpine:latest",
			expectError: false,
		},
		{
			name:        "image needs pull",
			image:       "hello-world:latest",
			expectError: false,
		},
		{
			name:        "pull fails",
			image:       "nonexistent/image:doesnotexist",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &DockerRuntime{}
			ctx := context.Background()

			err := d.PullImage(ctx, tt.image)
			if (err != nil) != tt.expectError {
				t.Errorf("PullImage() error = %v, expectError %v", err, tt.expectError)
			}
		})
	}
}

func TestDockerRuntime_StartContainer(t *testing.T) {
	tests := []struct {
		name        string
		config      ContainerConfig
		expectError bool
	}{
		{
			name: "basic container",
			config: ContainerConfig{
				Name:  "mcp-discover-test",
				Image: "alpine:latest",
			},
			expectError: false,
		},
		{
			name: "container with port env and label",
			config: ContainerConfig{
				Name:  "mcp-discover-test-2",
				Image: "alpine:latest",
				Ports: []string{"8001:8080"},
				Env: map[string]string{
					"MCP_PORT": "8080",
				},
				Labels: map[string]string{
					"app.kubernetes.io/managed-by": "mcpdiscover",
				},
			},
			expectError: false,
		},
		{
			name: "container with entrypoint and args",
			config: ContainerConfig{
				Name:       "mcp-discover-test-3",
				Image:      "alpine:latest",
				Entrypoint: []string{"/bin/sh", "-c"},
				Args:       []string{"echo hello"},
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &DockerRuntime{}
			ctx := context.Background()

			id, err := d.StartContainer(ctx, tt.config)
			if (err != nil) != tt.expectError {
				t.Errorf("StartContainer() error = %v, expectError %v", err, tt.expectError)
			}

			if !tt.expectError && id == "" {
				t.Error("StartContainer() returned empty container ID")
			}
		})
	}
}

func TestDockerRuntime_StopContainer(t *testing.T) {
	d := &DockerRuntime{}
	ctx := context.Background()

	err := d.StopContainer(ctx, "abc123def456")
	if err != nil {
		t.Errorf("StopContainer() error = %v, want nil", err)
	}
}

func TestDockerRuntime_RemoveContainer(t *testing.T) {
	tests := []struct {
		name        string
		containerID string
		expectError bool
	}{
		{
			name:        "existing container",
			containerID: "abc123def456",
			expectError: false,
		},
		{
			name:        "already removed container",
			containerID: "gone-container",
			expectError: false,
		},
		{
			name:        "removal stuck",
			containerID: "stuck-container",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &DockerRuntime{}
			ctx := context.Background()

			err := d.RemoveContainer(ctx, tt.containerID)
			if (err != nil) != tt.expectError {
				t.Errorf("RemoveContainer() error = %v, expectError %v", err, tt.expectError)
			}
		})
	}
}

func TestDockerRuntime_IsContainerRunning(t *testing.T) {
	d := &DockerRuntime{}
	ctx := context.Background()

	running, err := d.IsContainerRunning(ctx, "abc123def456")
	if err != nil {
		t.Errorf("IsContainerRunning() error = %v, want nil", err)
	}
	if !running {
		t.Error("IsContainerRunning() = false, want true")
	}
}

func TestDockerRuntime_ContainerLogs(t *testing.T) {
	d := &DockerRuntime{}
	ctx := context.Background()

	logs, err := d.ContainerLogs(ctx, "abc123def456", 50)
	if err != nil {
		t.Errorf("ContainerLogs() error = %v, want nil", err)
	}
	if !strings.Contains(logs, "Listening on port 8080") {
		t.Errorf("ContainerLogs() = %q, missing expected output", logs)
	}
}

func TestNewContainerRuntime(t *testing.T) {
	tests := []struct {
		name        string
		runtimeType string
		expectError bool
	}{
		{"default", "", false},
		{"docker", "docker", false},
		{"docker uppercase", "Docker", false},
		{"podman", "podman", true},
		{"unknown", "containerd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := NewContainerRuntime(tt.runtimeType)
			if (err != nil) != tt.expectError {
				t.Errorf("NewContainerRuntime(%q) error = %v, expectError %v", tt.runtimeType, err, tt.expectError)
			}
			if !tt.expectError && rt == nil {
				t.Error("NewContainerRuntime() returned nil runtime")
			}
		})
	}
}
