package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"

	mcpE "github.com/flarexio/ragblade/mcp"
)

func jsonrpcError(id mcp.RequestId, code int, message string) *mcp.JSONRPCError {
	return &mcp.JSONRPCError{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      id,
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

func MCPStreamableHandler(endpoints map[mcp.MCPMethod]mcpE.MCPEndpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req mcpE.JSONRPCRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(err)
			c.Abort()

			c.JSON(http.StatusBadRequest, jsonrpcError(req.ID, mcp.PARSE_ERROR, err.Error()))
			return
		}

		// notifications carry no id and expect no response body
		if strings.HasPrefix(string(req.Method), "notifications/") {
			c.Status(http.StatusAccepted)
			return
		}

		endpoint, ok := endpoints[req.Method]
		if !ok {
			c.Abort()

			c.JSON(http.StatusNotFound, jsonrpcError(req.ID, mcp.METHOD_NOT_FOUND, "method not found"))
			return
		}

		ctx := c.Request.Context()
		resp := endpoint(ctx, req)

		c.JSON(http.StatusOK, &resp)
	}
}
