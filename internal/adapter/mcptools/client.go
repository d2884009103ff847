// Package mcptools connects the fraud specialists to the CRM lookup-tool
// backend over MCP streamable HTTP.
package mcptools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpprotocol "github.com/mark3labs/mcp-go/mcp"

	"fraudwatch/internal/adapter/litellm"
	"fraudwatch/internal/config"
)

// Client wraps an mcp-go client and exposes the discovered tools in the
// OpenAI function-calling shape the specialists feed to the LLM.
type Client struct {
	mcp    mcpclient.MCPClient
	tools  []mcpprotocol.Tool
	logger *slog.Logger
}

// Connect dials the MCP server, performs the Initialize handshake and lists
// the available tools. Call Close when done.
func Connect(ctx context.Context, cfg config.Tools, logger *slog.Logger) (*Client, error) {
	client, err := mcpclient.NewStreamableHttpClient(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("create mcp client: %w", err)
	}

	initReq := mcpprotocol.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpprotocol.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpprotocol.Implementation{
		Name:    cfg.Name,
		Version: "1.0.0",
	}
	initResult, err := client.Initialize(ctx, initReq)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("mcp initialize: %w", err)
	}

	toolsResult, err := client.ListTools(ctx, mcpprotocol.ListToolsRequest{})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("mcp tools/list: %w", err)
	}

	logger.Info("connected to mcp tool server",
		"server", initResult.ServerInfo.Name,
		"version", initResult.ServerInfo.Version,
		"tools", len(toolsResult.Tools),
	)

	return &Client{
		mcp:    client,
		tools:  toolsResult.Tools,
		logger: logger,
	}, nil
}

// Close shuts the MCP connection down.
func (c *Client) Close() error {
	return c.mcp.Close()
}

// ToolNames returns the names of every tool the server advertises.
func (c *Client) ToolNames() []string {
	names := make([]string, 0, len(c.tools))
	for i := range c.tools {
		names = append(names, c.tools[i].Name)
	}
	return names
}

// Definitions converts discovered MCP tools into OpenAI tool definitions,
// filtered to the given allow-list. Unknown allowed names are skipped.
func (c *Client) Definitions(allowed []string) []litellm.Tool {
	allowSet := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		allowSet[name] = struct{}{}
	}

	defs := make([]litellm.Tool, 0, len(allowed))
	for i := range c.tools {
		t := &c.tools[i]
		if _, ok := allowSet[t.Name]; !ok {
			continue
		}
		params := map[string]any{
			"type":       t.InputSchema.Type,
			"properties": t.InputSchema.Properties,
		}
		if len(t.InputSchema.Required) > 0 {
			params["required"] = t.InputSchema.Required
		}
		defs = append(defs, litellm.Tool{
			Type: "function",
			Function: litellm.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return defs
}

// Call invokes the named tool and returns its text output. Tool-level errors
// (IsError results) come back as Go errors so callers can surface them to the
// model as failed tool results.
func (c *Client) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	req := mcpprotocol.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := c.mcp.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("call tool %s: %w", name, err)
	}

	text := flattenContent(result.Content)
	if result.IsError {
		return "", fmt.Errorf("tool %s failed: %s", name, text)
	}
	return text, nil
}

// flattenContent joins all text content blocks of a tool result.
func flattenContent(content []mcpprotocol.Content) string {
	var parts []string
	for _, block := range content {
		switch v := block.(type) {
		case mcpprotocol.TextContent:
			parts = append(parts, v.Text)
		case *mcpprotocol.TextContent:
			parts = append(parts, v.Text)
		}
	}
	return strings.Join(parts, "\n")
}
