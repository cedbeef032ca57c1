// Package mcp exposes the conversion engine as Model Context Protocol
// tools so that agent clients can drive conversions.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tomaskovarik271/pipecrm/internal/auth"
	"github.com/tomaskovarik271/pipecrm/internal/services"
	"github.com/tomaskovarik271/pipecrm/pkg/models"
)

// serviceAccount acts on behalf of MCP clients. The transport is mounted
// behind the HTTP auth middleware, so reaching a tool already proves the
// caller authenticated.
var serviceAccount = models.User{
	ID:          "mcp-service",
	Email:       "mcp@pipecrm.local",
	Permissions: auth.AdminPermissions,
}

type Server struct {
	mcpServer *server.MCPServer
	converter services.Converter
}

func NewServer(converter services.Converter) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"PipeCRM Conversions",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		converter: converter,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"convert_lead",
			mcp.WithDescription("Convert a lead into a deal, carrying contact and workflow state forward"),
			mcp.WithString("lead_id", mcp.Required(), mcp.Description("The ID of the lead to convert")),
			mcp.WithString("deal_name", mcp.Description("Optional name for the created deal")),
			mcp.WithString("target_step_id", mcp.Description("Optional workflow step to place the deal on")),
		),
		s.handleConvertLead,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"convert_deal_to_lead",
			mcp.WithDescription("Convert a deal back into a lead for re-qualification"),
			mcp.WithString("deal_id", mcp.Required(), mcp.Description("The ID of the deal to convert")),
			mcp.WithString("reason", mcp.Description("Why the deal is going back to qualification")),
		),
		s.handleConvertDealToLead,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"validate_conversion",
			mcp.WithDescription("Check whether a conversion would be allowed, without changing anything"),
			mcp.WithString("source_type", mcp.Required(), mcp.Description("LEAD or DEAL")),
			mcp.WithString("source_id", mcp.Required(), mcp.Description("The ID of the source entity")),
			mcp.WithString("target_type", mcp.Required(), mcp.Description("LEAD or DEAL")),
		),
		s.handleValidateConversion,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"conversion_history",
			mcp.WithDescription("List the conversion audit trail for a lead or deal, newest first"),
			mcp.WithString("entity_type", mcp.Required(), mcp.Description("LEAD or DEAL")),
			mcp.WithString("entity_id", mcp.Required(), mcp.Description("The ID of the entity")),
		),
		s.handleConversionHistory,
	)
}

func (s *Server) handleConvertLead(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	leadID, ok := args["lead_id"].(string)
	if !ok || leadID == "" {
		return mcp.NewToolResultError("Missing required parameter: lead_id"), nil
	}

	var opts models.LeadConversionOptions
	if name, ok := args["deal_name"].(string); ok && name != "" {
		opts.DealName = &name
	}
	if step, ok := args["target_step_id"].(string); ok && step != "" {
		opts.TargetStepID = &step
	}

	result := s.converter.ConvertLeadToDeal(auth.WithUser(ctx, serviceAccount), leadID, opts, serviceAccount)
	if !result.Success {
		return mcp.NewToolResultError(fmt.Sprintf("Conversion failed: %s", strings.Join(result.Errors, "; "))), nil
	}

	jsonBytes, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleConvertDealToLead(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	dealID, ok := args["deal_id"].(string)
	if !ok || dealID == "" {
		return mcp.NewToolResultError("Missing required parameter: deal_id"), nil
	}

	var opts models.DealToLeadOptions
	if reason, ok := args["reason"].(string); ok && reason != "" {
		opts.Reason = &reason
	}

	result := s.converter.ConvertDealToLead(auth.WithUser(ctx, serviceAccount), dealID, opts, serviceAccount)
	if !result.Success {
		return mcp.NewToolResultError(fmt.Sprintf("Conversion failed: %s", strings.Join(result.Errors, "; "))), nil
	}

	jsonBytes, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleValidateConversion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	sourceType, _ := args["source_type"].(string)
	sourceID, _ := args["source_id"].(string)
	targetType, _ := args["target_type"].(string)
	if sourceType == "" || sourceID == "" || targetType == "" {
		return mcp.NewToolResultError("source_type, source_id and target_type are required"), nil
	}

	result, err := s.converter.ValidateConversion(ctx,
		models.EntityType(sourceType), sourceID, models.EntityType(targetType), serviceAccount)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Validation failed: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleConversionHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	entityType, _ := args["entity_type"].(string)
	entityID, _ := args["entity_id"].(string)
	if entityType == "" || entityID == "" {
		return mcp.NewToolResultError("entity_type and entity_id are required"), nil
	}

	entries := s.converter.ConversionHistory(ctx, models.EntityType(entityType), entityID)

	jsonBytes, _ := json.Marshal(entries)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
