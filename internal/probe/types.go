package probe

import (
	"time"

	"mcpdiscover/internal/protocol"
)

// DiscoveryMethod tags which path produced a DiscoveryResult.
type DiscoveryMethod string

const (
	// MethodStdioDirect is a local subprocess spoken to over stdio.
	MethodStdioDirect DiscoveryMethod = "stdio-direct"
	// MethodContainerStdio is an image run attached to local stdio.
	MethodContainerStdio DiscoveryMethod = "container-stdio"
	// MethodContainerExec is a server command exec'd inside a container.
	MethodContainerExec DiscoveryMethod = "container-exec"
	// MethodContainerHTTP is a container reached over a mapped host port.
	MethodContainerHTTP DiscoveryMethod = "container-http"
	// MethodKubernetesService is a pod reached through its service port.
	MethodKubernetesService DiscoveryMethod = "kubernetes-service"
)

// DiscoveryResult is the outcome of one successful discovery attempt.
type DiscoveryResult struct {
	Tools      []protocol.Tool      `json:"tools"`
	Method     DiscoveryMethod      `json:"discoveryMethod"`
	ServerInfo *protocol.ServerInfo `json:"serverInfo,omitempty"`
	Timestamp  time.Time            `json:"timestamp"`
}

// Transport is how a containerized server expects to be spoken to.
type Transport string

const (
	// TransportStdio servers speak newline-delimited JSON-RPC on stdio.
	TransportStdio Transport = "stdio"
	// TransportHTTP servers listen on a port for streamable HTTP.
	TransportHTTP Transport = "http"
)

// CommandTarget describes a local command to probe. It is immutable input:
// probes never modify it.
type CommandTarget struct {
	Command    string
	Args       []string
	Env        map[string]string
	WorkingDir string
	// Timeout bounds the whole discovery call; zero means the probe default.
	Timeout time.Duration
}

// ImageTarget describes a container image to probe.
type ImageTarget struct {
	Image string
	// Args are passed to the image's command (stdio and http transports).
	// For exec-mode discovery they are passed to Command instead.
	Args []string
	Env  map[string]string
	// Transport selects how the containerized server is reached.
	// Empty means TransportStdio.
	Transport Transport
	// Command, when set with the stdio transport, is the server command to
	// exec inside a detached container instead of attaching the image to
	// local stdio.
	Command string
	// Timeout bounds the whole discovery call; zero means the probe default.
	Timeout time.Duration
}

func cloneEnv(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}
