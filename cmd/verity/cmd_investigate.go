package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"verity/internal/display"
	"verity/internal/format"
	"verity/internal/investigate"
)

var investigateFlags struct {
	claim      string
	mediaURL   string
	reqContext string
	reqType    string
	forensics  bool
	lesson     bool
	timeline   bool
	outputPath string
}

var investigateCmd = &cobra.Command{
	Use:   "investigate",
	Short: "Investigate a claim or media item and synthesize a verdict",
	Long: `Runs the investigation pipeline: fact-check lookup for claims, forensic
analysis and reverse image search for media, web search for context. The
evidence is reduced to a verdict with confidence and sealed in a signed
artifact.

Usage:
  verity investigate --claim "the photo shows yesterday's protest"
  verity investigate --media-url https://cdn.example/photo.jpg --forensics
  verity investigate --claim "..." --media-url "..." --timeline --lesson

Tool servers come from the fleet config (--config). Unreachable servers
degrade the investigation instead of failing it.`,
	RunE: runInvestigate,
}

func init() {
	f := investigateCmd.Flags()
	f.StringVar(&investigateFlags.claim, "claim", "", "Text claim to verify")
	f.StringVar(&investigateFlags.mediaURL, "media-url", "", "Image or video URL to analyze")
	f.StringVar(&investigateFlags.reqContext, "context", "", "Free-form context around the claim")
	f.StringVar(&investigateFlags.reqType, "type", "", "Investigation type: fact_check, media_analysis, full_investigation (default: inferred from inputs)")
	f.BoolVar(&investigateFlags.forensics, "forensics", false, "Run forensic analysis on the media")
	f.BoolVar(&investigateFlags.lesson, "lesson", false, "Attach a micro-lesson about the primary detected technique")
	f.BoolVar(&investigateFlags.timeline, "timeline", false, "Build a content spread timeline from the evidence")
	f.StringVarP(&investigateFlags.outputPath, "output", "o", "", "Write the investigation JSON to this path")
}

// inferType picks the investigation type from the provided inputs.
func inferType(claim, mediaURL string) investigate.Type {
	switch {
	case claim != "" && mediaURL != "":
		return investigate.TypeFullInvestigation
	case mediaURL != "":
		return investigate.TypeMediaAnalysis
	default:
		return investigate.TypeFactCheck
	}
}

func runInvestigate(cmd *cobra.Command, _ []string) error {
	reqType := investigate.Type(investigateFlags.reqType)
	if investigateFlags.reqType == "" {
		reqType = inferType(investigateFlags.claim, investigateFlags.mediaURL)
	}

	req := investigate.Request{
		Type: reqType,
		Content: investigate.Content{
			Claim:    investigateFlags.claim,
			MediaURL: investigateFlags.mediaURL,
			Context:  investigateFlags.reqContext,
		},
		Options: investigate.Options{
			IncludeForensics: investigateFlags.forensics,
			GenerateLesson:   investigateFlags.lesson,
			CreateTimeline:   investigateFlags.timeline,
		},
	}

	app, err := buildApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer app.Close()

	inv, err := app.orch.Investigate(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("investigate: %w", err)
	}

	if investigateFlags.outputPath != "" {
		data, err := json.MarshalIndent(inv, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal investigation: %w", err)
		}
		if err := os.WriteFile(investigateFlags.outputPath, data, 0600); err != nil {
			return fmt.Errorf("write investigation: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Investigation written to: %s\n", investigateFlags.outputPath)
		return nil
	}

	printInvestigation(cmd.OutOrStdout(), inv)
	return nil
}

func printInvestigation(w io.Writer, inv *investigate.Investigation) {
	fmt.Fprintf(w, "Verdict:    %s (%s confidence)\n",
		display.VerdictGlyph(string(inv.Verdict)), format.FmtConfidence(inv.Confidence))
	fmt.Fprintf(w, "Type:       %s\n", display.InvestigationType(string(inv.Type)))
	fmt.Fprintf(w, "Duration:   %s\n", format.FmtDuration(time.Duration(inv.DurationMS)*time.Millisecond))
	fmt.Fprintf(w, "\n%s\n", inv.Explanation)

	if len(inv.Techniques) > 0 {
		fmt.Fprintf(w, "Techniques: %s\n", display.TechniqueList(inv.Techniques))
	}
	if inv.Forensic != nil {
		fmt.Fprintf(w, "Forensics:  %s tampering probability (%s)\n",
			format.FmtConfidence(inv.Forensic.TamperingProbability), inv.Forensic.Method)
	}

	if len(inv.EvidenceChain) > 0 {
		tb := format.NewTable(format.ASCII)
		tb.Header("#", "Type", "Source", "Conf", "Summary")
		for i, item := range inv.EvidenceChain {
			tb.Row(i+1,
				display.EvidenceType(string(item.Type)),
				format.Truncate(item.Source, 32),
				format.FmtConfidence(item.Confidence),
				format.Truncate(item.Content, 56))
		}
		tb.Columns(format.ColumnConfig{Number: 4, Align: format.AlignRight})
		fmt.Fprintf(w, "\nEvidence (%d items):\n%s\n", len(inv.EvidenceChain), tb.String())
	}

	if len(inv.Timeline) > 0 {
		tb := format.NewTable(format.ASCII)
		tb.Header("When", "Event", "Source", "Description")
		for _, ev := range inv.Timeline {
			tb.Row(format.FmtTime(ev.Timestamp),
				display.EventType(string(ev.EventType)),
				format.Truncate(ev.Source, 32),
				format.Truncate(ev.Description, 48))
		}
		fmt.Fprintf(w, "\nTimeline:\n%s\n", tb.String())
	}

	if inv.Lesson != nil {
		fmt.Fprintf(w, "\nLesson: %s\n  %s\n", inv.Lesson.Title, inv.Lesson.Summary)
		for _, tip := range inv.Lesson.Tips {
			fmt.Fprintf(w, "  - %s\n", tip)
		}
	}

	if inv.Artifact != nil {
		fmt.Fprintf(w, "\nArtifact:   %s\n  hash      %s\n", inv.Artifact.ID, inv.Artifact.ContentHash)
	}
	fmt.Fprintf(w, "\nSaved as %s (share with: verity export %s)\n", inv.ID, inv.ID)
}
