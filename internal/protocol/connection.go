package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"mcpdiscover/pkg/logging"
)

const connectionSubsystem = "ProtocolConnection"

const (
	// DefaultHandshakeTimeout bounds the wait for the initialize response.
	DefaultHandshakeTimeout = 30 * time.Second

	// DefaultRequestTimeout bounds each tools/list and tools/call round trip.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultGracePeriod is how long Disconnect waits for the process to exit
	// after closing its stdin before killing it.
	DefaultGracePeriod = 2 * time.Second

	// mcpProtocolVersion is the MCP protocol revision sent in initialize.
	mcpProtocolVersion = "2024-11-05"

	clientName    = "mcpdiscover"
	clientVersion = "1.0.0"
)

// maxLineSize caps a single server output line. Tool schemas can be large.
const maxLineSize = 4 * 1024 * 1024

// State is the connection lifecycle state. StateClosed is terminal and
// reachable from every other state.
type State int

const (
	StateNew State = iota
	StateConnecting
	StateHandshaking
	StateReady
	StateClosed
)

// String makes State satisfy the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options configures a Connection. The zero value picks sane defaults.
type Options struct {
	// WorkingDir is the working directory for the spawned process.
	WorkingDir string
	// Env is merged over the inherited environment.
	Env map[string]string

	HandshakeTimeout time.Duration
	RequestTimeout   time.Duration
	GracePeriod      time.Duration
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = DefaultGracePeriod
	}
	return o
}

// Connection owns one server subprocess and its stdio pipes. It is single-use:
// one Connect, one handshake, any number of serialized requests, one teardown.
// It is never pooled or shared between discovery attempts.
type Connection struct {
	opts Options

	// mu guards state and the process handles.
	mu         sync.Mutex
	state      State
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	serverInfo *ServerInfo
	session    map[string]interface{}

	// reqMu serializes round trips so that at most one request is ever
	// outstanding. Next-line correlation is only sound under this invariant.
	reqMu  sync.Mutex
	nextID int64

	lines      chan string
	readerDone chan struct{}
	waitDone   chan struct{}
	// done releases a reader blocked on a full lines channel once teardown
	// starts, so the waiter can reap the process.
	done chan struct{}
}

// NewConnection creates an unconnected Connection.
func NewConnection(opts Options) *Connection {
	return &Connection{
		opts:  opts.withDefaults(),
		state: StateNew,
	}
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the handshake completed and the connection is
// usable for requests.
func (c *Connection) Connected() bool {
	return c.State() == StateReady
}

// ServerInfo returns the server identity from the initialize result, or nil
// before a successful handshake and after disconnect.
func (c *Connection) ServerInfo() *ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverInfo
}

// SessionInfo returns the raw initialize result, or nil outside READY.
func (c *Connection) SessionInfo() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Connect spawns the server process with stdin/stdout as pipes and performs
// the initialize handshake. On any failure the process is torn down and the
// connection ends up closed.
func (c *Connection) Connect(ctx context.Context, command string, args ...string) error {
	c.mu.Lock()
	if c.state != StateNew {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("connection is single-use, state is %s", state)
	}

	cmd := exec.Command(command, args...)
	cmd.Dir = c.opts.WorkingDir
	cmd.Env = mergedEnv(c.opts.Env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		c.state = StateClosed
		c.mu.Unlock()
		return fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.state = StateClosed
		c.mu.Unlock()
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		c.state = StateClosed
		c.mu.Unlock()
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	logging.Debug(connectionSubsystem, "Spawning %s %v", command, args)
	if err := cmd.Start(); err != nil {
		c.state = StateClosed
		c.mu.Unlock()
		return fmt.Errorf("failed to spawn %q: %w", command, err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.state = StateConnecting
	c.lines = make(chan string, 16)
	c.readerDone = make(chan struct{})
	c.waitDone = make(chan struct{})
	c.done = make(chan struct{})

	go c.readLoop(stdout)
	go drainStderr(command, stderr)
	go func() {
		// Wait must not run until the stdout reader has drained the pipe.
		<-c.readerDone
		_ = cmd.Wait()
		close(c.waitDone)
	}()

	c.state = StateHandshaking
	c.mu.Unlock()

	if err := c.handshake(ctx); err != nil {
		logging.Warn(connectionSubsystem, "Handshake with %q failed: %v", command, err)
		_ = c.Disconnect()
		return err
	}

	c.mu.Lock()
	c.state = StateReady
	c.mu.Unlock()
	logging.Debug(connectionSubsystem, "Connection to %q ready", command)
	return nil
}

// readLoop pumps newline-terminated server output into the lines channel
// until EOF or a read error.
func (c *Connection) readLoop(stdout io.Reader) {
	defer close(c.readerDone)
	defer close(c.lines)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		select {
		case c.lines <- scanner.Text():
		case <-c.done:
			// Teardown started; nobody will read another line. A server
			// that floods stdout must not pin the reader here, or the
			// waiter never gets to reap the process.
			return
		}
	}
	if err := scanner.Err(); err != nil {
		logging.Debug(connectionSubsystem, "Server output closed: %v", err)
	}
}

func drainStderr(command string, stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		logging.Debug(connectionSubsystem, "%s stderr: %s", command, scanner.Text())
	}
}

type implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ClientInfo      implementation         `json:"clientInfo"`
}

// handshake sends initialize, stores the result, and fires the initialized
// notification. No response is read for the notification.
func (c *Connection) handshake(ctx context.Context) error {
	params := initializeParams{
		ProtocolVersion: mcpProtocolVersion,
		Capabilities:    map[string]interface{}{},
		ClientInfo: implementation{
			Name:    clientName,
			Version: clientVersion,
		},
	}

	result, err := c.roundTrip(ctx, "initialize", params, c.opts.HandshakeTimeout)
	if err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}

	var initRes struct {
		ServerInfo ServerInfo `json:"serverInfo"`
	}
	if err := json.Unmarshal(result, &initRes); err != nil {
		return fmt.Errorf("invalid initialize result: %w", err)
	}
	var session map[string]interface{}
	_ = json.Unmarshal(result, &session)

	c.mu.Lock()
	c.serverInfo = &initRes.ServerInfo
	c.session = session
	c.mu.Unlock()

	note, err := NewNotification("notifications/initialized", map[string]interface{}{})
	if err != nil {
		return err
	}
	if err := c.writeMessage(note); err != nil {
		return fmt.Errorf("failed to send initialized notification: %w", err)
	}
	return nil
}

// ListTools requests the server's tool inventory. It is valid only in READY;
// outside READY it returns an error without writing to the process.
func (c *Connection) ListTools(ctx context.Context) ([]Tool, error) {
	if !c.Connected() {
		return nil, fmt.Errorf("connection not ready (state %s)", c.State())
	}

	result, err := c.roundTrip(ctx, "tools/list", map[string]interface{}{}, c.opts.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("tools/list failed: %w", err)
	}

	var payload struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, fmt.Errorf("invalid tools/list result: %w", err)
	}

	tools := make([]Tool, 0, len(payload.Tools))
	for _, tool := range payload.Tools {
		if tool.Name == "" {
			logging.Warn(connectionSubsystem, "Dropping tool with empty name from tools/list")
			continue
		}
		tools = append(tools, tool)
	}
	return tools, nil
}

// CallTool invokes a tool by name and returns the raw result payload. Valid
// only in READY.
func (c *Connection) CallTool(ctx context.Context, name string, args map[string]interface{}) (json.RawMessage, error) {
	if !c.Connected() {
		return nil, fmt.Errorf("connection not ready (state %s)", c.State())
	}

	params := struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	}{
		Name:      name,
		Arguments: args,
	}
	result, err := c.roundTrip(ctx, "tools/call", params, c.opts.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("tools/call %q failed: %w", name, err)
	}
	return result, nil
}

// roundTrip writes one request and reads the next line of server output as
// its response. Request ids increase monotonically per connection but are not
// matched against the response; reqMu keeps at most one request outstanding,
// which is what makes next-line correlation sound. A timeout here does not
// close the connection: a later request with a fresh timeout is still valid.
func (c *Connection) roundTrip(ctx context.Context, method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	c.nextID++
	req, err := NewRequest(c.nextID, method, params)
	if err != nil {
		return nil, err
	}
	if err := c.writeMessage(req); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case line, ok := <-c.lines:
		if !ok {
			return nil, fmt.Errorf("server closed its output before responding to %q", method)
		}
		msg, err := ParseMessage([]byte(line))
		if err != nil {
			return nil, err
		}
		if msg.Kind() != KindResponse {
			return nil, fmt.Errorf("expected a response to %q, got a %s", method, msg.Kind())
		}
		if msg.Error != nil {
			return nil, msg.Error
		}
		return msg.Result, nil
	case <-timer.C:
		return nil, fmt.Errorf("no response to %q within %s", method, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Connection) writeMessage(msg Message) error {
	c.mu.Lock()
	stdin := c.stdin
	c.mu.Unlock()
	if stdin == nil {
		return fmt.Errorf("connection has no process")
	}

	data, err := msg.Encode()
	if err != nil {
		return err
	}
	if _, err := stdin.Write(data); err != nil {
		return fmt.Errorf("failed to write to server stdin: %w", err)
	}
	return nil
}

// Disconnect tears the connection down. It is idempotent and safe to call in
// any state. A live process is asked to exit by closing its stdin; if it is
// still running after the grace period it is killed. Server identity and the
// process handle are always cleared.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	cmd := c.cmd
	stdin := c.stdin
	waitDone := c.waitDone
	done := c.done
	c.cmd = nil
	c.stdin = nil
	c.serverInfo = nil
	c.session = nil
	c.state = StateClosed
	c.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	close(done)

	if stdin != nil {
		_ = stdin.Close()
	}

	select {
	case <-waitDone:
		return nil
	case <-time.After(c.opts.GracePeriod):
	}

	logging.Debug(connectionSubsystem, "Process did not exit within %s, killing", c.opts.GracePeriod)
	if err := cmd.Process.Kill(); err != nil {
		logging.Debug(connectionSubsystem, "Kill failed: %v", err)
	}

	select {
	case <-waitDone:
	case <-time.After(c.opts.GracePeriod):
		logging.Warn(connectionSubsystem, "Process still not reaped after kill")
	}
	return nil
}

// mergedEnv merges overrides over the inherited environment with
// deterministic ordering for the overrides.
func mergedEnv(overrides map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, overrides[k]))
	}
	return env
}
