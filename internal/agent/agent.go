// Package agent exposes the weather resolver as an MCP tool server.
package agent

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/kjstillabower/city-weather-service/internal/models"
	"github.com/kjstillabower/city-weather-service/internal/observability"
)

const (
	ServerName    = "Weather Agent"
	ServerVersion = "1.0.0"

	// FetchWeatherTool is the only tool the server registers.
	FetchWeatherTool = "fetchWeather"
)

// Resolver resolves current weather for a city.
type Resolver interface {
	ResolveWeather(ctx context.Context, city string) (models.WeatherSnapshot, error)
}

// toolError is the text payload of a failed tool call.
type toolError struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// NewServer builds the MCP server with the fetchWeather tool bound to resolver.
func NewServer(resolver Resolver, logger *zap.Logger) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false))
	s.AddTool(
		mcp.NewTool(FetchWeatherTool,
			mcp.WithDescription("Fetch current weather for a city"),
			mcp.WithString("city", mcp.Required(), mcp.Description("The city name")),
		),
		fetchWeatherHandler(resolver, logger),
	)
	return s
}

// fetchWeatherHandler returns the snapshot as indented JSON text. Resolution
// failures are reported as a tool error result, never as a protocol error.
func fetchWeatherHandler(resolver Resolver, logger *zap.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		city := req.GetString("city", "")
		logger.Info("fetchWeather tool called", zap.String("city", city))

		snapshot, err := resolver.ResolveWeather(ctx, city)
		if err != nil {
			observability.ToolCallsTotal.WithLabelValues(FetchWeatherTool, "error").Inc()
			logger.Warn("fetchWeather failed", zap.String("city", city), zap.Error(err))
			return errorResult(err), nil
		}

		text, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			observability.ToolCallsTotal.WithLabelValues(FetchWeatherTool, "error").Inc()
			return errorResult(err), nil
		}
		observability.ToolCallsTotal.WithLabelValues(FetchWeatherTool, "success").Inc()
		return mcp.NewToolResultText(string(text)), nil
	}
}

func errorResult(err error) *mcp.CallToolResult {
	text, _ := json.Marshal(toolError{Error: true, Reason: err.Error()})
	return mcp.NewToolResultError(string(text))
}
