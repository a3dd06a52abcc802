package tools

import (
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/journeymcp/pkg/core"
)

// IsErrorResult checks if a CallToolResult represents an error
func IsErrorResult(result *mcp.CallToolResult) bool {
	if result == nil {
		return false
	}
	return result.IsError
}

// AssertErrorResult checks that a result is an error result and fails the test if not
func AssertErrorResult(t *testing.T, result *mcp.CallToolResult, message string) {
	t.Helper()
	if !IsErrorResult(result) {
		t.Error(message)
	}
}

// AssertErrorCode checks that a result is an error result carrying code
func AssertErrorCode(t *testing.T, result *mcp.CallToolResult, code core.ErrorCode) core.MCPError {
	t.Helper()
	var mcpErr core.MCPError
	if !IsErrorResult(result) {
		t.Errorf("expected %s error, got success: %s", code, resultText(result))
		return mcpErr
	}
	if err := ParseResultJSON(result, &mcpErr); err != nil {
		t.Errorf("error result is not JSON: %v", err)
		return mcpErr
	}
	if mcpErr.Code != string(code) {
		t.Errorf("error code = %s, want %s (%s)", mcpErr.Code, code, mcpErr.Message)
	}
	return mcpErr
}

// AssertSuccessResult checks that a result is a success result and fails the test if not
func AssertSuccessResult(t *testing.T, result *mcp.CallToolResult, message string) {
	t.Helper()
	if result == nil {
		t.Fatalf("%s. Got nil result", message)
	}
	if IsErrorResult(result) {
		t.Fatalf("%s. Got error: %s", message, resultText(result))
	}
}

// ParseResultJSON parses the JSON content from a CallToolResult
func ParseResultJSON(result *mcp.CallToolResult, out any) error {
	return json.Unmarshal([]byte(resultText(result)), out)
}

func resultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	for _, c := range result.Content {
		if text, ok := c.(mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}
