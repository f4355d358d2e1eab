package probe

import (
	"context"
	"time"

	"mcpdiscover/internal/config"
	"mcpdiscover/internal/protocol"
	"mcpdiscover/pkg/logging"
)

const commandSubsystem = "CommandProbe"

// commandDiscoverer is the handshake primitive shared by the container
// probes: they wrap the server in a runtime command (docker run -i, docker
// exec -i) and delegate the protocol work here.
type commandDiscoverer interface {
	discoverAs(ctx context.Context, target CommandTarget, method DiscoveryMethod) *DiscoveryResult
}

// CommandProbe performs a single discovery attempt against a local process.
// The process is always terminated before the call returns, on every exit
// path.
type CommandProbe struct {
	// Timeout bounds the whole attempt when the target carries none.
	Timeout time.Duration
	// HandshakeTimeout bounds the wait for the initialize response.
	HandshakeTimeout time.Duration
}

// NewCommandProbe creates a command probe with the given discovery settings.
func NewCommandProbe(cfg config.DiscoveryConfig) *CommandProbe {
	probe := &CommandProbe{
		Timeout:          cfg.CommandTimeout.D(),
		HandshakeTimeout: cfg.HandshakeTimeout.D(),
	}
	if probe.Timeout <= 0 {
		probe.Timeout = config.DefaultCommandTimeout
	}
	if probe.HandshakeTimeout <= 0 {
		probe.HandshakeTimeout = config.DefaultHandshakeTimeout
	}
	return probe
}

// DiscoverFromCommand spawns the command, performs the handshake, and lists
// its tools. Any failure resolves to nil with a logged diagnostic.
func (p *CommandProbe) DiscoverFromCommand(ctx context.Context, target CommandTarget) *DiscoveryResult {
	return p.discoverAs(ctx, target, MethodStdioDirect)
}

func (p *CommandProbe) discoverAs(ctx context.Context, target CommandTarget, method DiscoveryMethod) *DiscoveryResult {
	timeout := target.Timeout
	if timeout <= 0 {
		timeout = p.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn := protocol.NewConnection(protocol.Options{
		WorkingDir:       target.WorkingDir,
		Env:              target.Env,
		HandshakeTimeout: p.HandshakeTimeout,
	})
	// Unconditional teardown on every exit path; Disconnect is idempotent
	// and kills the process if it is still alive.
	defer conn.Disconnect()

	if err := conn.Connect(ctx, target.Command, target.Args...); err != nil {
		logging.Warn(commandSubsystem, "Connect to %q failed: %v", target.Command, err)
		return nil
	}

	tools, err := conn.ListTools(ctx)
	if err != nil {
		logging.Warn(commandSubsystem, "Listing tools from %q failed: %v", target.Command, err)
		return nil
	}

	logging.Debug(commandSubsystem, "Discovered %d tools from %q", len(tools), target.Command)
	return &DiscoveryResult{
		Tools:      tools,
		Method:     method,
		ServerInfo: conn.ServerInfo(),
		Timestamp:  time.Now().UTC(),
	}
}
