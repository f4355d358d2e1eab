package probe

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpdiscover/internal/config"
)

func testCommandProbe() *CommandProbe {
	return NewCommandProbe(config.GetDefaultConfig().Discovery)
}

// fakeServerTarget re-executes this test binary as a fake MCP server on
// stdio (see TestHelperProcess).
func fakeServerTarget(mode string) CommandTarget {
	return CommandTarget{
		Command: os.Args[0],
		Args:    []string{"-test.run=TestHelperProcess"},
		Env: map[string]string{
			"GO_WANT_HELPER_PROCESS": "1",
			"MCP_SERVER_MODE":        mode,
		},
	}
}

func TestDiscoverFromCommand(t *testing.T) {
	probe := testCommandProbe()

	result := probe.DiscoverFromCommand(context.Background(), fakeServerTarget("ok"))
	require.NotNil(t, result)
	assert.Equal(t, MethodStdioDirect, result.Method)
	require.Len(t, result.Tools, 1)
	assert.Equal(t, "echo", result.Tools[0].Name)
	require.NotNil(t, result.ServerInfo)
	assert.Equal(t, "fake-server", result.ServerInfo.Name)
	assert.False(t, result.Timestamp.IsZero())
}

func TestDiscoverFromCommandSpawnFailure(t *testing.T) {
	probe := testCommandProbe()

	result := probe.DiscoverFromCommand(context.Background(), CommandTarget{
		Command: "/nonexistent/mcp-server-binary",
	})
	assert.Nil(t, result)
}

func TestDiscoverFromCommandSilentServer(t *testing.T) {
	probe := testCommandProbe()
	probe.HandshakeTimeout = 300 * time.Millisecond

	target := fakeServerTarget("silent")
	target.Timeout = 2 * time.Second

	start := time.Now()
	result := probe.DiscoverFromCommand(context.Background(), target)
	assert.Nil(t, result)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestDiscoverFromCommandHandshakeRefused(t *testing.T) {
	probe := testCommandProbe()

	result := probe.DiscoverFromCommand(context.Background(), fakeServerTarget("handshake-error"))
	assert.Nil(t, result)
}

func TestDiscoverAsTagsMethod(t *testing.T) {
	probe := testCommandProbe()

	result := probe.discoverAs(context.Background(), fakeServerTarget("ok"), MethodContainerStdio)
	require.NotNil(t, result)
	assert.Equal(t, MethodContainerStdio, result.Method)
}

// TestHelperProcess is re-executed by the tests above as a fake newline-
// delimited JSON-RPC MCP server on stdio. MCP_SERVER_MODE selects behavior.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	runFakeMCPServer(os.Getenv("MCP_SERVER_MODE"))
	os.Exit(0)
}

func runFakeMCPServer(mode string) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	out := bufio.NewWriter(os.Stdout)

	respond := func(id interface{}, result string) {
		raw, _ := json.Marshal(id)
		fmt.Fprintf(out, `{"jsonrpc":"2.0","id":%s,"result":%s}`+"\n", raw, result)
		out.Flush()
	}

	for scanner.Scan() {
		var msg map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		method, _ := msg["method"].(string)
		id := msg["id"]

		switch method {
		case "initialize":
			switch mode {
			case "silent":
				// Never respond; the probe must give up on its own.
			case "handshake-error":
				raw, _ := json.Marshal(id)
				fmt.Fprintf(out, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32603,"message":"init refused"}}`+"\n", raw)
				out.Flush()
			default:
				respond(id, `{"protocolVersion":"2024-11-05","capabilities":{"tools":{}},"serverInfo":{"name":"fake-server","version":"0.1.0"}}`)
			}
		case "notifications/initialized":
		case "tools/list":
			respond(id, `{"tools":[{"name":"echo","description":"Echo a message","inputSchema":{"type":"object","properties":{"message":{"type":"string"}}}}]}`)
		}
	}
}
