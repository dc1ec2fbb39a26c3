// Package evidence defines the atomic findings gathered during an
// investigation and the pure reduction functions over them: deduplication,
// timeline construction, verdict synthesis, and technique extraction.
package evidence

import "time"

// Type classifies where an evidence item came from.
type Type string

const (
	TypeFactCheck    Type = "fact_check"    // prior-review record from a claim database
	TypeForensic     Type = "forensic"      // media manipulation finding
	TypeWebSearch    Type = "web_search"    // fetched web page content
	TypeReverseImage Type = "reverse_image" // prior appearance of the media
	TypeArchive      Type = "archive"       // archived snapshot
)

// Item is one atomic fact, search result, or forensic finding.
// Immutable after creation; appended to an investigation's evidence
// chain in gathering order.
type Item struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	Source     string         `json:"source"`
	Content    string         `json:"content"`
	Confidence float64        `json:"confidence"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// EventType categorizes a timeline event.
type EventType string

const (
	EventFirstAppearance EventType = "first_appearance"
	EventModification    EventType = "modification"
	EventSpread          EventType = "spread"
	EventFactCheck       EventType = "fact_check"
)

// TimelineEvent is a time-ordered projection of an evidence item.
type TimelineEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     EventType `json:"event_type"`
	Description   string    `json:"description"`
	Source        string    `json:"source"`
	Confidence    float64   `json:"confidence"`
	MediaSnapshot string    `json:"media_snapshot,omitempty"`
}

// Verdict is the conclusion of an investigation.
type Verdict string

const (
	VerdictTrue       Verdict = "TRUE"
	VerdictFalse      Verdict = "FALSE"
	VerdictMixed      Verdict = "MIXED"
	VerdictUnverified Verdict = "UNVERIFIED"
)

// ForensicAnalysis is the consumed contract of the forensic tool server:
// an opaque estimate of manipulation plus technique tags. A degraded
// analysis (tool unreachable) carries probability 0.5 and a note.
type ForensicAnalysis struct {
	TamperingProbability float64  `json:"tampering_probability"`
	Techniques           []string `json:"techniques,omitempty"`
	Method               string   `json:"method,omitempty"`
	Note                 string   `json:"note,omitempty"`
}

// Clamp01 bounds a confidence value to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
