package probe

import (
	"context"
	"encoding/json"
	"fmt"

	"mcpdiscover/internal/protocol"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// httpDiscoverFunc performs the handshake and tool listing against a
// network-transport server. A variable so probes can be tested without a
// live HTTP server.
type httpDiscoverFunc func(ctx context.Context, url string) ([]protocol.Tool, *protocol.ServerInfo, error)

// discoverStreamableHTTP connects to a streamable-HTTP MCP endpoint,
// initializes the protocol, and lists tools.
func discoverStreamableHTTP(ctx context.Context, url string) ([]protocol.Tool, *protocol.ServerInfo, error) {
	mcpClient, err := client.NewStreamableHttpClient(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create StreamableHTTP client: %w", err)
	}
	defer mcpClient.Close()

	initResult, err := mcpClient.Initialize(ctx, mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: "2024-11-05",
			ClientInfo: mcp.Implementation{
				Name:    "mcpdiscover",
				Version: "1.0.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize MCP protocol: %w", err)
	}

	result, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list tools: %w", err)
	}

	tools := make([]protocol.Tool, 0, len(result.Tools))
	for _, tool := range result.Tools {
		if tool.Name == "" {
			continue
		}
		tools = append(tools, protocol.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schemaToMap(tool.InputSchema),
		})
	}

	info := &protocol.ServerInfo{
		Name:    initResult.ServerInfo.Name,
		Version: initResult.ServerInfo.Version,
	}
	return tools, info, nil
}

func schemaToMap(schema mcp.ToolInputSchema) map[string]interface{} {
	out := map[string]interface{}{}
	raw, err := json.Marshal(schema)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}
