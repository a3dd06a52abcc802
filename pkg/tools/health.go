package tools

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/journeymcp/pkg/version"
)

// VersionInfo represents version information for the service
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Tables    string `json:"tables"`
}

// GetVersionTool returns a tool definition for retrieving version information
func GetVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the version and build information of the journey MCP service and the loaded fare tables"),
	)
}

// HandleGetVersion implements version information retrieval
func HandleGetVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("get_version", "version", func(ctx context.Context, _ struct{}, logger *slog.Logger) (any, error) {
		info := version.Info()
		out := VersionInfo{
			Version:   info["version"],
			Commit:    info["commit"],
			BuildDate: info["build_date"],
			GoVersion: info["go_version"],
		}
		if calc, err := current(); err == nil {
			out.Tables = calc.Name
		}
		return out, nil
	})(ctx, req)
}
