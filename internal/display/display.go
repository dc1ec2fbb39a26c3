// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output, markdown reports, logs, and docs.
// Keep raw codes for JSON fields, map keys, and equality comparisons.
package display

import "strings"

// --- Verdicts ---

var verdicts = map[string]string{
	"TRUE":       "True",
	"FALSE":      "False",
	"MIXED":      "Mixed Evidence",
	"UNVERIFIED": "Unverified",
}

// verdictGlyphs are single-character markers for dense table output.
var verdictGlyphs = map[string]string{
	"TRUE":       "✓",
	"FALSE":      "✗",
	"MIXED":      "±",
	"UNVERIFIED": "?",
}

// Verdict returns the human-readable name for a verdict code.
// Unknown codes are returned as-is.
func Verdict(code string) string {
	if name, ok := verdicts[code]; ok {
		return name
	}
	return code
}

// VerdictGlyph returns "✗ False" format for table cells and summaries.
func VerdictGlyph(code string) string {
	name, ok := verdicts[code]
	if !ok {
		return code
	}
	return verdictGlyphs[code] + " " + name
}

// --- Evidence Types ---

var evidenceTypes = map[string]string{
	"fact_check":           "Fact Check",
	"web_search":           "Web Search",
	"reverse_image_search": "Reverse Image Search",
	"forensic_analysis":    "Forensic Analysis",
	"archive":              "Archive",
}

// EvidenceType returns the human-readable name for an evidence type code.
// "reverse_image_search" -> "Reverse Image Search".
func EvidenceType(code string) string {
	if name, ok := evidenceTypes[code]; ok {
		return name
	}
	return code
}

// --- Timeline Events ---

var eventTypes = map[string]string{
	"first_appearance": "First Appearance",
	"spread":           "Spread",
	"modification":     "Modification",
	"fact_check":       "Fact Check",
}

// EventType returns the human-readable name for a timeline event code.
func EventType(code string) string {
	if name, ok := eventTypes[code]; ok {
		return name
	}
	return code
}

// EventPath converts a slice of event codes to a human-readable path.
// ["first_appearance", "spread"] -> "First Appearance -> Spread"
func EventPath(codes []string) string {
	names := make([]string, len(codes))
	for i, c := range codes {
		names[i] = EventType(c)
	}
	return strings.Join(names, " → ")
}

// --- Investigation Types ---

var investigationTypes = map[string]string{
	"fact_check":         "Fact Check",
	"media_analysis":     "Media Analysis",
	"full_investigation": "Full Investigation",
}

// InvestigationType returns the human-readable name for a request type code.
func InvestigationType(code string) string {
	if name, ok := investigationTypes[code]; ok {
		return name
	}
	return code
}

// --- Manipulation Techniques ---

var techniques = map[string]string{
	"splicing":                 "Splicing",
	"deepfake":                 "Deepfake",
	"cross_reference_analysis": "Cross-Reference Analysis",
	"digital_forensics":        "Digital Forensics",
	"reverse_image_search":     "Reverse Image Search",
	"general":                  "General",
}

// Technique returns the human-readable name for a technique tag.
// "splicing" -> "Splicing".
func Technique(tag string) string {
	if name, ok := techniques[tag]; ok {
		return name
	}
	return tag
}

// TechniqueList humanizes a slice of technique tags.
// ["splicing", "deepfake"] -> "Splicing, Deepfake"
func TechniqueList(tags []string) string {
	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = Technique(tag)
	}
	return strings.Join(names, ", ")
}

// --- Connection States ---

// ConnState humanizes a server liveness flag for status output.
func ConnState(connected bool) string {
	if connected {
		return "connected"
	}
	return "disconnected"
}
