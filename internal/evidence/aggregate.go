package evidence

import (
	"sort"
	"strings"
)

// Hasher is the digest half of the signing collaborator, consumed here for
// deduplication keys.
type Hasher interface {
	Hash(data []byte) string
}

// Aggregator reduces evidence collections. All methods are pure and
// deterministic: identical input always yields identical output.
type Aggregator struct {
	hasher Hasher
}

// NewAggregator creates an aggregator keyed on the given hasher.
func NewAggregator(h Hasher) *Aggregator {
	return &Aggregator{hasher: h}
}

// Deduplicate drops later items whose Hash(content ++ source) collides with
// an earlier one. First occurrence wins; relative order is preserved.
func (a *Aggregator) Deduplicate(items []Item) []Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		key := a.hasher.Hash([]byte(it.Content + it.Source))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}
	return out
}

// eventTypeFor maps an evidence type to its timeline event type. Types with
// no temporal interpretation (archive) are excluded from the timeline.
func eventTypeFor(t Type) (EventType, bool) {
	switch t {
	case TypeForensic:
		return EventModification, true
	case TypeReverseImage:
		return EventFirstAppearance, true
	case TypeWebSearch:
		return EventSpread, true
	case TypeFactCheck:
		return EventFactCheck, true
	default:
		return "", false
	}
}

// BuildTimeline projects evidence items onto timeline events sorted
// ascending by timestamp. The sort is stable: items sharing a timestamp
// keep their gathering order.
func (a *Aggregator) BuildTimeline(items []Item) []TimelineEvent {
	events := make([]TimelineEvent, 0, len(items))
	for _, it := range items {
		et, ok := eventTypeFor(it.Type)
		if !ok {
			continue
		}
		ev := TimelineEvent{
			Timestamp:   it.Timestamp,
			EventType:   et,
			Description: summarize(it.Content),
			Source:      it.Source,
			Confidence:  it.Confidence,
		}
		if snap, ok := it.Metadata["media_snapshot"].(string); ok {
			ev.MediaSnapshot = snap
		}
		events = append(events, ev)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}

// SynthesizeVerdict reduces weighted evidence to a verdict and confidence.
//
// Every item's confidence contributes to the total weight. A fact-check item
// votes false when its content contains "false" or "incorrect", true when it
// contains "true" or "correct"; the false patterns are checked first so that
// "incorrect" (which contains "correct") counts as a false vote. A forensic
// item contributes weight x tampering probability to the false score, and
// only when the tampering probability exceeds 0.7.
func (a *Aggregator) SynthesizeVerdict(items []Item, forensic *ForensicAnalysis) (Verdict, float64) {
	var trueScore, falseScore, totalWeight float64

	for _, it := range items {
		w := it.Confidence
		totalWeight += w

		switch it.Type {
		case TypeFactCheck:
			content := strings.ToLower(it.Content)
			switch {
			case strings.Contains(content, "false") || strings.Contains(content, "incorrect"):
				falseScore += w
			case strings.Contains(content, "true") || strings.Contains(content, "correct"):
				trueScore += w
			}
		case TypeForensic:
			if forensic != nil && forensic.TamperingProbability > 0.7 {
				falseScore += w * forensic.TamperingProbability
			}
		}
	}

	if totalWeight == 0 {
		return VerdictUnverified, 0.5
	}

	trueRatio := trueScore / totalWeight
	falseRatio := falseScore / totalWeight

	switch {
	case falseRatio > 0.6:
		return VerdictFalse, min(falseRatio, 0.95)
	case trueRatio > 0.6:
		return VerdictTrue, min(trueRatio, 0.95)
	case trueRatio > 0.3 && falseRatio > 0.3:
		return VerdictMixed, min((trueRatio+falseRatio)/2, 0.8)
	default:
		return VerdictUnverified, 0.5
	}
}

// ExtractTechniques unions forensic-reported technique tags with tags derived
// from evidence patterns. Output order is deterministic for identical input:
// forensic tags in reported order, then pattern tags.
func (a *Aggregator) ExtractTechniques(items []Item, forensic *ForensicAnalysis) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(tag string) {
		if tag == "" {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	if forensic != nil {
		for _, tag := range forensic.Techniques {
			add(tag)
		}
	}

	var factChecks, forensics, reverseImages int
	for _, it := range items {
		switch it.Type {
		case TypeFactCheck:
			factChecks++
		case TypeForensic:
			forensics++
		case TypeReverseImage:
			reverseImages++
		}
	}
	if factChecks >= 2 {
		add("cross_reference_analysis")
	}
	if forensics > 0 {
		add("digital_forensics")
	}
	if reverseImages > 0 {
		add("reverse_image_search")
	}
	return out
}

// summarize shortens content for timeline display.
func summarize(s string) string {
	const maxLen = 160
	if len(s) <= maxLen {
		return s
	}
	cut := s[:maxLen]
	if i := strings.LastIndexByte(cut, ' '); i > maxLen/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
