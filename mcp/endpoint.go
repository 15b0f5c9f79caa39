package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flarexio/ragblade"
)

const (
	ToolSearchCompanyPolicy = "search_company_policy"
)

var ErrToolNotFound = errors.New("tool not found")

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      mcp.RequestId   `json:"id"`
	Method  mcp.MCPMethod   `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func errorResponse(id any, code int, message string) mcp.JSONRPCError {
	return mcp.JSONRPCError{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      mcp.NewRequestId(id),
		Error: struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Data    any    `json:"data,omitempty"`
		}{
			Code:    code,
			Message: message,
		},
	}
}

type MCPEndpoint func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage

const MCPSERVER_INSTRUCTIONS string = `RAGBlade answers questions about company policy from an indexed document corpus.

Call search_company_policy with a natural-language query. It returns the most
relevant passages in ranked order, each formatted as:

  Source: <document>
  Content: <passage text>

Cite the sources you rely on. If the tool reports that the index is unavailable,
the documents have not been ingested yet.`

// MakeEndpoints maps the supported MCP methods onto svc.
func MakeEndpoints(svc ragblade.Service) map[mcp.MCPMethod]MCPEndpoint {
	return map[mcp.MCPMethod]MCPEndpoint{
		mcp.MethodInitialize: InitializeEndpoint(svc),
		mcp.MethodPing:       PingEndpoint(svc),
		mcp.MethodToolsList:  ListToolsEndpoint(svc),
		mcp.MethodToolsCall:  CallToolEndpoint(svc),
	}
}

// SearchCompanyPolicyTool describes the retrieval tool offered to agents.
func SearchCompanyPolicyTool() mcp.Tool {
	return mcp.NewTool(ToolSearchCompanyPolicy,
		mcp.WithDescription("Search the company policy documents and return the most relevant passages with their sources."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural-language question or keywords to look up."),
		),
		mcp.WithNumber("limit",
			mcp.DefaultNumber(ragblade.DefaultLimit),
			mcp.Description("Maximum number of passages to return."),
		),
	)
}

func InitializeEndpoint(svc ragblade.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.InitializeParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		protocolVersion := mcp.LATEST_PROTOCOL_VERSION
		if clientVersion := params.ProtocolVersion; clientVersion != "" {
			if slices.Contains(mcp.ValidProtocolVersions, clientVersion) {
				protocolVersion = clientVersion
			}
		}

		result := &mcp.InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: mcp.ServerCapabilities{
				Tools: &struct {
					ListChanged bool `json:"listChanged,omitempty"`
				}{},
			},
			ServerInfo: mcp.Implementation{
				Name:    "ragblade",
				Version: "1.0.0",
			},
			Instructions: MCPSERVER_INSTRUCTIONS,
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func PingEndpoint(svc ragblade.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  struct{}{}, // empty response
		}
	}
}

func ListToolsEndpoint(svc ragblade.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		result := &mcp.ListToolsResult{
			Tools: []mcp.Tool{
				SearchCompanyPolicyTool(),
			},
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

// CallToolEndpoint runs search_company_policy. Service failures are
// reported inside the tool result so the calling agent can read them.
func CallToolEndpoint(svc ragblade.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.CallToolParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		if params.Name != ToolSearchCompanyPolicy {
			err := fmt.Errorf("%w: %s", ErrToolNotFound, params.Name)
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		query, limit, err := SearchArguments(params.Arguments)
		if err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		var result *mcp.CallToolResult

		text, err := svc.SearchCompanyPolicy(ctx, query, limit)
		if err != nil {
			result = mcp.NewToolResultError(err.Error())
		} else {
			result = mcp.NewToolResultText(text)
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

// SearchArguments extracts query and limit from decoded tool arguments.
// JSON numbers arrive as float64; a missing limit yields zero, which the
// service replaces with its default.
func SearchArguments(arguments any) (string, int, error) {
	args, ok := arguments.(map[string]any)
	if !ok {
		return "", 0, errors.New("arguments must be an object")
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return "", 0, errors.New("query is required")
	}

	var limit int
	switch v := args["limit"].(type) {
	case nil:
	case float64:
		limit = int(v)
	case int:
		limit = v
	case string:
		if _, err := fmt.Sscanf(v, "%d", &limit); err != nil {
			return "", 0, fmt.Errorf("invalid limit %q", v)
		}
	default:
		return "", 0, fmt.Errorf("invalid limit type %T", v)
	}

	return query, limit, nil
}
