package investigate

import (
	"fmt"
	"strings"
	"time"

	"verity/internal/artifact"
	"verity/internal/evidence"
)

// FormatVersion tags serialized investigation reports and exports.
const FormatVersion = "1.0"

// Type selects which required content a request must carry. The pipeline
// itself is driven by the content present, not by the type.
type Type string

const (
	TypeFactCheck         Type = "fact_check"
	TypeMediaAnalysis     Type = "media_analysis"
	TypeFullInvestigation Type = "full_investigation"
)

// Content is the subject under investigation.
type Content struct {
	Claim    string `json:"claim,omitempty"`
	MediaURL string `json:"media_url,omitempty"`
	Context  string `json:"context,omitempty"`
}

// Options toggles the pipeline's optional stages.
type Options struct {
	IncludeForensics bool `json:"include_forensics"`
	GenerateLesson   bool `json:"generate_lesson"`
	CreateTimeline   bool `json:"create_timeline"`
}

// Request is one investigation order as received from the outer surface.
type Request struct {
	Type    Type    `json:"type"`
	Content Content `json:"content"`
	Options Options `json:"options"`
}

// Validate checks that the request carries what its type needs.
func (r Request) Validate() error {
	switch r.Type {
	case TypeFactCheck:
		if strings.TrimSpace(r.Content.Claim) == "" {
			return fmt.Errorf("%w: fact_check needs a claim", ErrBadRequest)
		}
	case TypeMediaAnalysis:
		if strings.TrimSpace(r.Content.MediaURL) == "" {
			return fmt.Errorf("%w: media_analysis needs a media_url", ErrBadRequest)
		}
	case TypeFullInvestigation:
		if strings.TrimSpace(r.Content.Claim) == "" && strings.TrimSpace(r.Content.MediaURL) == "" {
			return fmt.Errorf("%w: full_investigation needs a claim or a media_url", ErrBadRequest)
		}
	default:
		return fmt.Errorf("%w: unknown investigation type %q", ErrBadRequest, r.Type)
	}
	return nil
}

// Lesson is a short media-literacy note attached to a finished
// investigation on request.
type Lesson struct {
	Technique string   `json:"technique"`
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	Tips      []string `json:"tips"`
}

// Investigation is the finished, immutable record of one pipeline run.
type Investigation struct {
	ID            string                     `json:"id"`
	Type          Type                       `json:"type"`
	Request       Request                    `json:"request"`
	Verdict       evidence.Verdict           `json:"verdict"`
	Confidence    float64                    `json:"confidence"`
	Explanation   string                     `json:"explanation"`
	EvidenceChain []evidence.Item            `json:"evidence_chain"`
	Forensic      *evidence.ForensicAnalysis `json:"forensic_analysis,omitempty"`
	Timeline      []evidence.TimelineEvent   `json:"timeline,omitempty"`
	Techniques    []string                   `json:"techniques_detected"`
	Artifact      *artifact.Signed           `json:"signed_artifact"`
	Lesson        *Lesson                    `json:"micro_lesson,omitempty"`
	CreatedAt     time.Time                  `json:"created_at"`
	DurationMS    int64                      `json:"duration_ms"`
}

// Export wraps a stored investigation for handoff outside the process.
type Export struct {
	FormatVersion string         `json:"format_version"`
	ExportedAt    time.Time      `json:"exported_at"`
	Investigation *Investigation `json:"investigation"`
}

// Health is the fleet liveness snapshot reported to operators.
type Health struct {
	Servers   map[string]bool `json:"servers"`
	Connected int             `json:"connected"`
	Total     int             `json:"total"`
}

// explanation renders the verdict for humans. Machine-readable detail lives
// in the evidence chain; this line is what a reader sees first.
func explanation(v evidence.Verdict, confidence float64, evidenceCount int) string {
	pct := int(confidence * 100)
	switch v {
	case evidence.VerdictFalse:
		return fmt.Sprintf("The evidence contradicts this claim (%d%% confidence across %d evidence items).", pct, evidenceCount)
	case evidence.VerdictTrue:
		return fmt.Sprintf("The evidence supports this claim (%d%% confidence across %d evidence items).", pct, evidenceCount)
	case evidence.VerdictMixed:
		return fmt.Sprintf("The evidence is split: parts of this check out and parts do not (%d evidence items).", evidenceCount)
	default:
		if evidenceCount == 0 {
			return "No usable evidence was gathered, so this claim could not be verified."
		}
		return fmt.Sprintf("The available evidence (%d items) is not conclusive either way.", evidenceCount)
	}
}
