package toolserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/conductorhq/conductor/core"
)

// protocolVersion is the MCP wire version this runtime speaks.
const protocolVersion = "2024-11-05"

// clientInfo identifies this runtime to every tool server it connects to.
var clientInfo = mcp.Implementation{
	Name:    "conductor",
	Version: "0.1.0",
}

// rpcClient is the subset of an MCP client a conn needs. It exists so
// tests can substitute a fake client instead of spawning a real subprocess.
type rpcClient interface {
	Initialize(ctx context.Context) error
	ListTools(ctx context.Context) ([]core.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}) (content string, isError bool, err error)
	Close() error
}

// stdioClient adapts mark3labs/mcp-go's stdio client to rpcClient.
type stdioClient struct {
	serverID string
	inner    *client.Client
}

// dialStdio spawns the server's command and wraps it, without yet performing
// the MCP handshake (that's Initialize, called separately so connectServer
// can bound it with its own timeout).
func dialStdio(ctx context.Context, serverID string, cfg core.ToolServerConfig) (*stdioClient, error) {
	cmd, args := splitCommand(cfg.Command)
	args = append(args, cfg.Args...)

	inner, err := client.NewStdioMCPClient(cmd, envSlice(cfg.Env), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: creating client for %s: %v", core.ErrTransport, serverID, err)
	}
	if err := inner.Start(ctx); err != nil {
		return nil, fmt.Errorf("%w: starting %s: %v", core.ErrTransport, serverID, err)
	}
	return &stdioClient{serverID: serverID, inner: inner}, nil
}

func (c *stdioClient) Initialize(ctx context.Context) error {
	req := mcp.InitializeRequest{}
	req.Params.ClientInfo = clientInfo
	req.Params.ProtocolVersion = protocolVersion

	if _, err := c.inner.Initialize(ctx, req); err != nil {
		return fmt.Errorf("%w: initializing %s: %v", core.ErrProtocol, c.serverID, err)
	}
	return nil
}

func (c *stdioClient) ListTools(ctx context.Context) ([]core.Tool, error) {
	resp, err := c.inner.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("%w: listing tools on %s: %v", core.ErrProtocol, c.serverID, err)
	}

	tools := make([]core.Tool, 0, len(resp.Tools))
	for _, mt := range resp.Tools {
		tools = append(tools, core.Tool{
			Name:        mt.Name,
			Description: mt.Description,
			ServerID:    c.serverID,
			Schema:      convertSchema(mt.InputSchema),
		})
	}
	return tools, nil
}

func (c *stdioClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (string, bool, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	resp, err := c.inner.CallTool(ctx, req)
	if err != nil {
		return "", false, fmt.Errorf("%w: calling %s on %s: %v", core.ErrTransport, name, c.serverID, err)
	}
	return extractContent(resp), resp.IsError, nil
}

func (c *stdioClient) Close() error {
	return c.inner.Close()
}

// extractContent joins the text parts of a CallToolResult. Multiple text
// blocks are newline-joined; non-text content (images, embedded resources)
// is not meaningful to an LLM-facing tool call and is dropped.
func extractContent(resp *mcp.CallToolResult) string {
	var texts []string
	for _, c := range resp.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	if len(texts) == 0 {
		return ""
	}
	if len(texts) == 1 {
		return texts[0]
	}
	out := texts[0]
	for _, t := range texts[1:] {
		out += "\n" + t
	}
	return out
}

// convertSchema turns an MCP JSON-Schema tool input schema into a
// core.ToolSchema by round-tripping through JSON: both shapes use the same
// "properties"/"required" field names, so a direct unmarshal is sufficient.
func convertSchema(schema mcp.ToolInputSchema) core.ToolSchema {
	data, err := json.Marshal(schema)
	if err != nil {
		return core.ToolSchema{}
	}
	var out core.ToolSchema
	if err := json.Unmarshal(data, &out); err != nil {
		return core.ToolSchema{}
	}
	return out
}
