// mock-tool-server is a deterministic stand-in for the external fact-check,
// forensic, and web-search services. It speaks MCP over stdio and answers
// from keyword heuristics, so investigations against it are reproducible.
// This binary is testing-only; it has no role in production.
//
// Usage: mock-tool-server [--debug] [factcheck|forensic|websearch|all]
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"verity/internal/logging"
)

const (
	roleFactCheck = "factcheck"
	roleForensic  = "forensic"
	roleWebSearch = "websearch"
	roleAll       = "all"
)

func main() {
	role := roleAll
	level := slog.LevelWarn
	for _, arg := range os.Args[1:] {
		switch arg {
		case "--debug":
			level = slog.LevelDebug
		default:
			role = arg
		}
	}

	logging.Init(level, "text")

	srv := sdkmcp.NewServer(&sdkmcp.Implementation{Name: "mock-" + role, Version: "dev"}, nil)
	if err := registerRole(srv, role); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}

	logging.New("mocktools").Info("mock tool server ready", "role", role)
	if err := srv.Run(context.Background(), &sdkmcp.StdioTransport{}); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func registerRole(srv *sdkmcp.Server, role string) error {
	switch role {
	case roleFactCheck:
		registerFactCheck(srv)
	case roleForensic:
		registerForensic(srv)
	case roleWebSearch:
		registerWebSearch(srv)
	case roleAll:
		registerFactCheck(srv)
		registerForensic(srv)
		registerWebSearch(srv)
	default:
		return fmt.Errorf("unknown role %q (want factcheck, forensic, websearch, or all)", role)
	}
	return nil
}

type checkClaimInput struct {
	Claim   string `json:"claim" jsonschema:"claim text to look up"`
	Context string `json:"context,omitempty" jsonschema:"optional background context"`
}

type checkClaimOutput struct {
	Reviews []review `json:"reviews"`
}

type mediaInput struct {
	MediaURL string `json:"media_url" jsonschema:"URL of the media to analyze"`
}

type searchInput struct {
	Query      string `json:"query" jsonschema:"search query"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"maximum number of results"`
}

type searchOutput struct {
	Results []searchResult `json:"results"`
}

type fetchInput struct {
	URL string `json:"url" jsonschema:"page URL to fetch"`
}

type reverseOutput struct {
	Matches []reverseMatch `json:"matches"`
}

func registerFactCheck(srv *sdkmcp.Server) {
	sdkmcp.AddTool(srv, &sdkmcp.Tool{
		Name:        "check_claim",
		Description: "Look up prior fact-check reviews for a claim",
	}, func(_ context.Context, _ *sdkmcp.CallToolRequest, in checkClaimInput) (*sdkmcp.CallToolResult, checkClaimOutput, error) {
		if in.Claim == "" {
			return nil, checkClaimOutput{}, fmt.Errorf("claim is required")
		}
		return nil, checkClaimOutput{Reviews: reviewsFor(in.Claim)}, nil
	})
}

func registerForensic(srv *sdkmcp.Server) {
	analyze := func(video bool) func(context.Context, *sdkmcp.CallToolRequest, mediaInput) (*sdkmcp.CallToolResult, mediaFinding, error) {
		return func(_ context.Context, _ *sdkmcp.CallToolRequest, in mediaInput) (*sdkmcp.CallToolResult, mediaFinding, error) {
			if in.MediaURL == "" {
				return nil, mediaFinding{}, fmt.Errorf("media_url is required")
			}
			return nil, assessMedia(in.MediaURL, video), nil
		}
	}
	sdkmcp.AddTool(srv, &sdkmcp.Tool{
		Name:        "analyze_image",
		Description: "Estimate image tampering probability and detected techniques",
	}, analyze(false))
	sdkmcp.AddTool(srv, &sdkmcp.Tool{
		Name:        "analyze_video",
		Description: "Estimate video manipulation probability and detected techniques",
	}, analyze(true))
}

func registerWebSearch(srv *sdkmcp.Server) {
	sdkmcp.AddTool(srv, &sdkmcp.Tool{
		Name:        "search",
		Description: "Search for pages covering a query",
	}, func(_ context.Context, _ *sdkmcp.CallToolRequest, in searchInput) (*sdkmcp.CallToolResult, searchOutput, error) {
		if in.Query == "" {
			return nil, searchOutput{}, fmt.Errorf("query is required")
		}
		return nil, searchOutput{Results: resultsFor(in.Query, in.MaxResults)}, nil
	})
	sdkmcp.AddTool(srv, &sdkmcp.Tool{
		Name:        "fetch_page",
		Description: "Fetch the text content of a page",
	}, func(_ context.Context, _ *sdkmcp.CallToolRequest, in fetchInput) (*sdkmcp.CallToolResult, fetchedPage, error) {
		if in.URL == "" {
			return nil, fetchedPage{}, fmt.Errorf("url is required")
		}
		return nil, fetchedPageFor(in.URL), nil
	})
	sdkmcp.AddTool(srv, &sdkmcp.Tool{
		Name:        "reverse_search",
		Description: "Find prior appearances of a media URL",
	}, func(_ context.Context, _ *sdkmcp.CallToolRequest, in mediaInput) (*sdkmcp.CallToolResult, reverseOutput, error) {
		if in.MediaURL == "" {
			return nil, reverseOutput{}, fmt.Errorf("media_url is required")
		}
		return nil, reverseOutput{Matches: reverseMatchesFor(in.MediaURL)}, nil
	})
}
