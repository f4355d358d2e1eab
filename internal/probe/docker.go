package probe

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"mcpdiscover/internal/config"
	"mcpdiscover/internal/containerizer"
	"mcpdiscover/pkg/logging"

	"github.com/google/uuid"
)

const dockerProbeSubsystem = "DockerProbe"

// managedByLabel marks every resource this engine provisions.
const managedByLabel = "app.kubernetes.io/managed-by=mcpdiscover"

// teardownTimeout bounds the synchronous removal attempt; anything slower is
// handed to the reaper.
const teardownTimeout = 10 * time.Second

// DockerProbe discovers tools from an image by provisioning one ephemeral
// container per attempt. Containers are removed on every exit path: a failed
// synchronous removal is retried in the background.
type DockerProbe struct {
	runtime  containerizer.ContainerRuntime
	commands commandDiscoverer
	reaper   *Reaper

	cfg       config.DockerConfig
	discovery config.DiscoveryConfig

	// httpDiscover is swappable in tests.
	httpDiscover httpDiscoverFunc
}

// NewDockerProbe creates a probe backed by the configured container runtime.
// It fails if the runtime binary or daemon is unavailable.
func NewDockerProbe(cfg config.Config) (*DockerProbe, error) {
	runtime, err := containerizer.NewContainerRuntime(cfg.Docker.Runtime)
	if err != nil {
		return nil, fmt.Errorf("container runtime unavailable: %w", err)
	}
	return &DockerProbe{
		runtime:      runtime,
		commands:     NewCommandProbe(cfg.Discovery),
		reaper:       NewReaper(cfg.Discovery.CleanupRetries, cfg.Discovery.CleanupBaseDelay.D()),
		cfg:          cfg.Docker,
		discovery:    cfg.Discovery,
		httpDiscover: discoverStreamableHTTP,
	}, nil
}

// DiscoverFromImage provisions a container for the image, waits for it to be
// reachable, performs the handshake, and tears the container down. All
// failures resolve to nil with a logged diagnostic.
func (p *DockerProbe) DiscoverFromImage(ctx context.Context, target ImageTarget) *DiscoveryResult {
	timeout := target.Timeout
	if timeout <= 0 {
		timeout = p.discovery.Timeout.D()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name := fmt.Sprintf("mcp-discover-%s", uuid.NewString()[:8])

	switch {
	case target.Transport == TransportHTTP:
		return p.discoverHTTP(ctx, name, target)
	case target.Command != "":
		return p.discoverExec(ctx, name, target)
	default:
		return p.discoverAttached(ctx, name, target)
	}
}

// discoverAttached runs the image attached to local stdio: the container's
// lifetime is the protocol conversation.
func (p *DockerProbe) discoverAttached(ctx context.Context, name string, target ImageTarget) *DiscoveryResult {
	args := []string{"run", "-i", "--rm", "--name", name, "--label", managedByLabel}
	for _, k := range sortedEnvKeys(target.Env) {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, target.Env[k]))
	}
	args = append(args, target.Image)
	args = append(args, target.Args...)

	logging.Debug(dockerProbeSubsystem, "Attaching to image %s as container %s", target.Image, name)
	result := p.commands.discoverAs(ctx, CommandTarget{
		Command: "docker",
		Args:    args,
		Timeout: remainingTimeout(ctx),
	}, MethodContainerStdio)

	// --rm normally reaps the container, but a killed attach can leave it
	// behind. Removal of a gone container is a no-op.
	p.teardown(name)
	return result
}

// discoverExec starts the container detached and execs the server command
// inside it.
func (p *DockerProbe) discoverExec(ctx context.Context, name string, target ImageTarget) *DiscoveryResult {
	id, err := p.provision(ctx, name, target, 0)
	if err != nil {
		logging.Warn(dockerProbeSubsystem, "Provisioning %s failed: %v", target.Image, err)
		if id != "" {
			p.teardown(id)
		}
		return nil
	}
	defer p.teardown(id)

	if !p.waitRunning(ctx, id) {
		p.logContainerDiagnostics(id)
		return nil
	}

	execArgs := []string{"exec", "-i", id, target.Command}
	execArgs = append(execArgs, target.Args...)
	return p.commands.discoverAs(ctx, CommandTarget{
		Command: "docker",
		Args:    execArgs,
		Timeout: remainingTimeout(ctx),
	}, MethodContainerExec)
}

// discoverHTTP starts the container detached with a host port mapping and
// discovers over streamable HTTP.
func (p *DockerProbe) discoverHTTP(ctx context.Context, name string, target ImageTarget) *DiscoveryResult {
	port, err := FindFreePort(p.discovery.PortRangeStart, p.discovery.PortRangeEnd)
	if err != nil {
		logging.Warn(dockerProbeSubsystem, "No port available for %s: %v", target.Image, err)
		return nil
	}

	id, err := p.provision(ctx, name, target, port)
	if err != nil {
		logging.Warn(dockerProbeSubsystem, "Provisioning %s failed: %v", target.Image, err)
		if id != "" {
			p.teardown(id)
		}
		return nil
	}
	defer p.teardown(id)

	if !p.waitReachable(ctx, id, port) {
		p.logContainerDiagnostics(id)
		return nil
	}

	url := fmt.Sprintf("http://127.0.0.1:%d/mcp", port)
	tools, info, err := p.httpDiscover(ctx, url)
	if err != nil {
		logging.Warn(dockerProbeSubsystem, "Discovery against %s failed: %v", url, err)
		return nil
	}

	logging.Debug(dockerProbeSubsystem, "Discovered %d tools from %s", len(tools), target.Image)
	return &DiscoveryResult{
		Tools:      tools,
		Method:     MethodContainerHTTP,
		ServerInfo: info,
		Timestamp:  time.Now().UTC(),
	}
}

// provision pulls the image and starts a detached container. port > 0 adds a
// host mapping and tells the server where to listen via MCP_PORT.
func (p *DockerProbe) provision(ctx context.Context, name string, target ImageTarget, port int) (string, error) {
	if err := p.runtime.PullImage(ctx, target.Image); err != nil {
		return "", err
	}

	containerCfg := containerizer.ContainerConfig{
		Name:   name,
		Image:  target.Image,
		Env:    cloneEnv(target.Env),
		Labels: map[string]string{"app.kubernetes.io/managed-by": "mcpdiscover"},
	}
	if port > 0 {
		containerCfg.Ports = []string{fmt.Sprintf("%d:%d", port, p.cfg.ContainerPort)}
		containerCfg.Env["MCP_PORT"] = strconv.Itoa(p.cfg.ContainerPort)
	}
	// Exec-mode args belong to the exec'd command, not the container.
	if target.Command == "" {
		containerCfg.Args = target.Args
	}

	return p.runtime.StartContainer(ctx, containerCfg)
}

// waitRunning polls until the container reports a running state.
func (p *DockerProbe) waitRunning(ctx context.Context, id string) bool {
	return p.poll(ctx, func() bool {
		running, err := p.runtime.IsContainerRunning(ctx, id)
		return err == nil && running
	})
}

// waitReachable polls until the mapped host port accepts a connection.
func (p *DockerProbe) waitReachable(ctx context.Context, id string, port int) bool {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	return p.poll(ctx, func() bool {
		if running, err := p.runtime.IsContainerRunning(ctx, id); err == nil && !running {
			return false
		}
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	})
}

func (p *DockerProbe) poll(ctx context.Context, ready func() bool) bool {
	deadline := time.Now().Add(p.cfg.HealthCheckTimeout.D())
	for time.Now().Before(deadline) {
		if ready() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(500 * time.Millisecond):
		}
	}
	return false
}

// teardown stops and removes the container with a bounded timeout; on a
// failed removal the container is handed to the background reaper. It never
// fails the discovery call.
func (p *DockerProbe) teardown(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	// Stop is best-effort: a container that already exited cannot be
	// stopped, and the forced removal below covers it regardless.
	if err := p.runtime.StopContainer(ctx, id); err != nil {
		logging.Debug(dockerProbeSubsystem, "Stopping container %s failed: %v", id, err)
	}

	if err := p.runtime.RemoveContainer(ctx, id); err != nil {
		logging.Warn(dockerProbeSubsystem, "Synchronous removal of container %s failed: %v", id, err)
		p.reaper.Schedule("container "+id, func(ctx context.Context) error {
			return p.runtime.RemoveContainer(ctx, id)
		})
	}
}

func (p *DockerProbe) logContainerDiagnostics(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logs, err := p.runtime.ContainerLogs(ctx, id, 20)
	if err != nil {
		logging.Warn(dockerProbeSubsystem, "Container %s never became ready; logs unavailable: %v", id, err)
		return
	}
	logging.Warn(dockerProbeSubsystem, "Container %s never became ready; recent output:\n%s", id, strings.TrimSpace(logs))
}

// remainingTimeout converts a context deadline into the inner call's budget.
func remainingTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		return time.Until(deadline)
	}
	return 0
}

func sortedEnvKeys(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	// Deterministic docker arguments make debug logs and tests stable.
	sort.Strings(keys)
	return keys
}
