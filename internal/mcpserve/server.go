// Package mcpserve exposes the investigation orchestrator as an MCP server,
// so that agent hosts can drive investigations over stdio the same way the
// orchestrator drives its own tool fleet.
package mcpserve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"verity/internal/investigate"
	"verity/internal/logging"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP SDK server around an orchestrator.
type Server struct {
	MCPServer *sdkmcp.Server

	orch   *investigate.Orchestrator
	logger *slog.Logger
}

// NewServer creates an MCP server exposing investigation tools.
func NewServer(orch *investigate.Orchestrator, version string) *Server {
	s := &Server{
		orch:   orch,
		logger: logging.New("mcpserve"),
	}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "verity", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "investigate",
		Description: "Run a full verification investigation on a claim, a media URL, or both. Returns the verdict, confidence, evidence chain, and signed artifact.",
	}, s.handleInvestigate)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_investigation",
		Description: "Fetch a stored investigation by id.",
	}, s.handleGetInvestigation)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "export_investigation",
		Description: "Export a stored investigation as a versioned, shareable document.",
	}, s.handleExportInvestigation)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "health",
		Description: "Report tool server fleet liveness: per-server state plus connected/total counts.",
	}, s.handleHealth)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_servers",
		Description: "List configured tool servers and which of them hold live connections.",
	}, s.handleListServers)
}

// --- Tool input/output types ---

type investigateInput struct {
	Type             string `json:"type" jsonschema:"investigation type (fact_check, media_analysis, full_investigation)"`
	Claim            string `json:"claim,omitempty" jsonschema:"text claim to verify"`
	MediaURL         string `json:"media_url,omitempty" jsonschema:"URL of the image or video to analyze"`
	Context          string `json:"context,omitempty" jsonschema:"free-form context around the claim"`
	IncludeForensics bool   `json:"include_forensics,omitempty" jsonschema:"run forensic analysis on the media"`
	GenerateLesson   bool   `json:"generate_lesson,omitempty" jsonschema:"attach a micro-lesson about the primary detected technique"`
	CreateTimeline   bool   `json:"create_timeline,omitempty" jsonschema:"build a content spread timeline from the evidence"`
}

type investigateOutput struct {
	Investigation *investigate.Investigation `json:"investigation"`
}

type getInvestigationInput struct {
	ID string `json:"id" jsonschema:"investigation id returned by investigate"`
}

type getInvestigationOutput struct {
	Found         bool                       `json:"found"`
	Investigation *investigate.Investigation `json:"investigation,omitempty"`
}

type exportInvestigationInput struct {
	ID string `json:"id" jsonschema:"investigation id returned by investigate"`
}

type exportInvestigationOutput struct {
	Export *investigate.Export `json:"export"`
}

type healthInput struct{}

type healthOutput struct {
	Servers   map[string]bool `json:"servers"`
	Connected int             `json:"connected"`
	Total     int             `json:"total"`
}

type listServersInput struct{}

type listServersOutput struct {
	Configured []string `json:"configured"`
	Connected  []string `json:"connected"`
}

// --- Tool handlers ---

func (s *Server) handleInvestigate(ctx context.Context, _ *sdkmcp.CallToolRequest, input investigateInput) (*sdkmcp.CallToolResult, investigateOutput, error) {
	req := investigate.Request{
		Type: investigate.Type(input.Type),
		Content: investigate.Content{
			Claim:    input.Claim,
			MediaURL: input.MediaURL,
			Context:  input.Context,
		},
		Options: investigate.Options{
			IncludeForensics: input.IncludeForensics,
			GenerateLesson:   input.GenerateLesson,
			CreateTimeline:   input.CreateTimeline,
		},
	}

	start := time.Now()
	inv, err := s.orch.Investigate(ctx, req)
	if err != nil {
		return nil, investigateOutput{}, fmt.Errorf("investigate: %w", err)
	}
	s.logger.Info("investigation served",
		"id", inv.ID, "verdict", inv.Verdict, "elapsed", time.Since(start))

	return nil, investigateOutput{Investigation: inv}, nil
}

func (s *Server) handleGetInvestigation(ctx context.Context, _ *sdkmcp.CallToolRequest, input getInvestigationInput) (*sdkmcp.CallToolResult, getInvestigationOutput, error) {
	if input.ID == "" {
		return nil, getInvestigationOutput{}, fmt.Errorf("id is required")
	}
	inv, err := s.orch.Get(input.ID)
	if err != nil {
		return nil, getInvestigationOutput{}, fmt.Errorf("get_investigation: %w", err)
	}
	return nil, getInvestigationOutput{Found: inv != nil, Investigation: inv}, nil
}

func (s *Server) handleExportInvestigation(ctx context.Context, _ *sdkmcp.CallToolRequest, input exportInvestigationInput) (*sdkmcp.CallToolResult, exportInvestigationOutput, error) {
	if input.ID == "" {
		return nil, exportInvestigationOutput{}, fmt.Errorf("id is required")
	}
	export, err := s.orch.Export(input.ID)
	if err != nil {
		return nil, exportInvestigationOutput{}, fmt.Errorf("export_investigation: %w", err)
	}
	return nil, exportInvestigationOutput{Export: export}, nil
}

func (s *Server) handleHealth(ctx context.Context, _ *sdkmcp.CallToolRequest, _ healthInput) (*sdkmcp.CallToolResult, healthOutput, error) {
	h := s.orch.Health(ctx)
	return nil, healthOutput{
		Servers:   h.Servers,
		Connected: h.Connected,
		Total:     h.Total,
	}, nil
}

func (s *Server) handleListServers(ctx context.Context, _ *sdkmcp.CallToolRequest, _ listServersInput) (*sdkmcp.CallToolResult, listServersOutput, error) {
	h := s.orch.Health(ctx)
	out := listServersOutput{}
	for name, alive := range h.Servers {
		out.Configured = append(out.Configured, name)
		if alive {
			out.Connected = append(out.Connected, name)
		}
	}
	sort.Strings(out.Configured)
	sort.Strings(out.Connected)
	return nil, out, nil
}

// Run serves MCP over stdio until ctx is canceled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio")
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
