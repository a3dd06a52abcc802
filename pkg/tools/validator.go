package tools

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/journeymcp/pkg/core"
)

// ValidateRequired checks that every parameter the tool declares as required
// is present and not null, and returns an error result with a usage example
// when any is missing.
func ValidateRequired(tool mcp.Tool, req mcp.CallToolRequest, logger *slog.Logger) *mcp.CallToolResult {
	if len(tool.InputSchema.Required) == 0 {
		return nil
	}

	var args map[string]any
	if err := core.ParseArgs(req, &args); err != nil {
		logger.Error("failed to parse arguments", "error", err)
		return core.FromError(err).
			WithGuidance(fmt.Sprintf("Example: %s", GetToolUsageExample(tool.Name))).
			ToMCPResult()
	}

	var missing []string
	for _, name := range tool.InputSchema.Required {
		if v, ok := args[name]; !ok || v == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	logger.Error("missing required parameters", "missing", strings.Join(missing, ", "))
	return core.NewError(core.ErrMissingParameter,
		fmt.Sprintf("Missing required parameters: %s", strings.Join(missing, ", "))).
		WithGuidance(fmt.Sprintf("Example: %s", GetToolUsageExample(tool.Name))).
		ToMCPResult()
}
