package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type sha256Hasher struct{}

func (sha256Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func newTestAggregator() *Aggregator {
	return NewAggregator(sha256Hasher{})
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9
}

func ts(sec int) time.Time {
	return time.Date(2025, 5, 1, 0, 0, sec, 0, time.UTC)
}

func TestDeduplicate_FirstSeenWins(t *testing.T) {
	a := Item{ID: "a", Type: TypeWebSearch, Source: "example.com", Content: "same text", Confidence: 0.5, Timestamp: ts(1)}
	b := Item{ID: "b", Type: TypeWebSearch, Source: "example.com", Content: "same text", Confidence: 0.9, Timestamp: ts(2)}
	c := Item{ID: "c", Type: TypeFactCheck, Source: "snopes.com", Content: "same text", Confidence: 0.7, Timestamp: ts(3)}

	agg := newTestAggregator()

	// a and b collide on (content, source); c shares content but not source.
	permutations := [][]Item{
		{a, b, c},
		{b, a, c},
		{c, a, b},
		{b, c, a},
	}
	for _, perm := range permutations {
		got := agg.Deduplicate(perm)
		if len(got) != 2 {
			t.Fatalf("perm %v: got %d items, want 2", ids(perm), len(got))
		}
		// First occurrence of the colliding pair must survive, in input order.
		var want []Item
		seen := map[string]bool{}
		for _, it := range perm {
			key := it.Content + "|" + it.Source
			if !seen[key] {
				seen[key] = true
				want = append(want, it)
			}
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("perm %v mismatch (-want +got):\n%s", ids(perm), diff)
		}
	}
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestDeduplicate_Empty(t *testing.T) {
	agg := newTestAggregator()
	if got := agg.Deduplicate(nil); len(got) != 0 {
		t.Errorf("got %d items from nil input", len(got))
	}
}

func TestBuildTimeline_SortedAndMapped(t *testing.T) {
	items := []Item{
		{ID: "w", Type: TypeWebSearch, Source: "blog.example", Content: "spreading", Confidence: 0.4, Timestamp: ts(30)},
		{ID: "f", Type: TypeForensic, Source: "forensic-lab", Content: "splice detected", Confidence: 0.8, Timestamp: ts(10)},
		{ID: "r", Type: TypeReverseImage, Source: "images.example", Content: "earliest copy", Confidence: 0.6, Timestamp: ts(5),
			Metadata: map[string]any{"media_snapshot": "https://images.example/snap.jpg"}},
		{ID: "a", Type: TypeArchive, Source: "archive.org", Content: "snapshot", Confidence: 0.5, Timestamp: ts(1)},
		{ID: "c", Type: TypeFactCheck, Source: "snopes.com", Content: "rated false", Confidence: 0.9, Timestamp: ts(10)},
	}

	agg := newTestAggregator()
	got := agg.BuildTimeline(items)

	// Archive items carry no timeline mapping.
	if len(got) != 4 {
		t.Fatalf("got %d events, want 4", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Errorf("timeline not sorted at %d: %v after %v", i, got[i].Timestamp, got[i-1].Timestamp)
		}
	}

	wantTypes := []EventType{EventFirstAppearance, EventModification, EventFactCheck, EventSpread}
	for i, want := range wantTypes {
		if got[i].EventType != want {
			t.Errorf("event[%d].EventType = %s, want %s", i, got[i].EventType, want)
		}
	}

	// Equal timestamps keep gathering order: forensic before fact_check.
	if got[1].Source != "forensic-lab" || got[2].Source != "snopes.com" {
		t.Errorf("stable sort violated: %s then %s", got[1].Source, got[2].Source)
	}

	if got[0].MediaSnapshot != "https://images.example/snap.jpg" {
		t.Errorf("media snapshot not carried over: %q", got[0].MediaSnapshot)
	}
}

func TestBuildTimeline_PermutationInvariant(t *testing.T) {
	base := []Item{
		{ID: "1", Type: TypeFactCheck, Source: "s1", Content: "c1", Confidence: 0.5, Timestamp: ts(3)},
		{ID: "2", Type: TypeWebSearch, Source: "s2", Content: "c2", Confidence: 0.5, Timestamp: ts(1)},
		{ID: "3", Type: TypeReverseImage, Source: "s3", Content: "c3", Confidence: 0.5, Timestamp: ts(2)},
	}
	perm := []Item{base[2], base[0], base[1]}

	agg := newTestAggregator()
	for _, in := range [][]Item{base, perm} {
		got := agg.BuildTimeline(in)
		for i := 1; i < len(got); i++ {
			if got[i].Timestamp.Before(got[i-1].Timestamp) {
				t.Errorf("timeline not non-decreasing for input %v", ids(in))
			}
		}
	}
}

func TestSynthesizeVerdict_ScenarioFalse(t *testing.T) {
	items := []Item{
		{ID: "1", Type: TypeFactCheck, Source: "snopes.com", Content: "this claim is false per reviewers", Confidence: 0.9, Timestamp: ts(1)},
	}
	agg := newTestAggregator()
	verdict, conf := agg.SynthesizeVerdict(items, nil)
	if verdict != VerdictFalse {
		t.Errorf("verdict = %s, want FALSE", verdict)
	}
	if !floatEq(conf, 0.95) {
		t.Errorf("confidence = %v, want 0.95", conf)
	}
}

func TestSynthesizeVerdict_ScenarioEmpty(t *testing.T) {
	agg := newTestAggregator()
	verdict, conf := agg.SynthesizeVerdict(nil, nil)
	if verdict != VerdictUnverified {
		t.Errorf("verdict = %s, want UNVERIFIED", verdict)
	}
	if !floatEq(conf, 0.5) {
		t.Errorf("confidence = %v, want 0.5", conf)
	}
}

func TestSynthesizeVerdict_ScenarioMixed(t *testing.T) {
	items := []Item{
		{ID: "1", Type: TypeFactCheck, Source: "a", Content: "partly true according to review", Confidence: 0.7, Timestamp: ts(1)},
		{ID: "2", Type: TypeFactCheck, Source: "b", Content: "rated false by another outlet", Confidence: 0.7, Timestamp: ts(2)},
	}
	agg := newTestAggregator()
	verdict, conf := agg.SynthesizeVerdict(items, nil)
	if verdict != VerdictMixed {
		t.Errorf("verdict = %s, want MIXED", verdict)
	}
	if !floatEq(conf, 0.5) {
		t.Errorf("confidence = %v, want 0.5", conf)
	}
}

func TestSynthesizeVerdict_ScenarioForensic(t *testing.T) {
	items := []Item{
		{ID: "1", Type: TypeForensic, Source: "forensic-lab", Content: "frame splice analysis", Confidence: 0.2, Timestamp: ts(1)},
	}
	forensic := &ForensicAnalysis{TamperingProbability: 0.8}
	agg := newTestAggregator()
	verdict, conf := agg.SynthesizeVerdict(items, forensic)
	if verdict != VerdictFalse {
		t.Errorf("verdict = %s, want FALSE", verdict)
	}
	if !floatEq(conf, 0.8) {
		t.Errorf("confidence = %v, want 0.8", conf)
	}
}

func TestSynthesizeVerdict_TrueMajority(t *testing.T) {
	items := []Item{
		{ID: "1", Type: TypeFactCheck, Source: "a", Content: "verified true", Confidence: 0.8, Timestamp: ts(1)},
		{ID: "2", Type: TypeFactCheck, Source: "b", Content: "correct per records", Confidence: 0.6, Timestamp: ts(2)},
	}
	agg := newTestAggregator()
	verdict, conf := agg.SynthesizeVerdict(items, nil)
	if verdict != VerdictTrue {
		t.Errorf("verdict = %s, want TRUE", verdict)
	}
	if !floatEq(conf, 0.95) {
		t.Errorf("confidence = %v, want 0.95", conf)
	}
}

func TestSynthesizeVerdict_IncorrectVotesFalse(t *testing.T) {
	// "incorrect" contains "correct"; it must count as a false vote only.
	items := []Item{
		{ID: "1", Type: TypeFactCheck, Source: "a", Content: "the statement is incorrect", Confidence: 0.9, Timestamp: ts(1)},
	}
	agg := newTestAggregator()
	verdict, _ := agg.SynthesizeVerdict(items, nil)
	if verdict != VerdictFalse {
		t.Errorf("verdict = %s, want FALSE", verdict)
	}
}

func TestSynthesizeVerdict_ForensicBelowThreshold(t *testing.T) {
	items := []Item{
		{ID: "1", Type: TypeForensic, Source: "forensic-lab", Content: "analysis", Confidence: 0.9, Timestamp: ts(1)},
	}
	forensic := &ForensicAnalysis{TamperingProbability: 0.5}
	agg := newTestAggregator()
	verdict, conf := agg.SynthesizeVerdict(items, forensic)
	if verdict != VerdictUnverified {
		t.Errorf("verdict = %s, want UNVERIFIED (no vote below 0.7 tampering)", verdict)
	}
	if !floatEq(conf, 0.5) {
		t.Errorf("confidence = %v, want 0.5", conf)
	}
}

func TestSynthesizeVerdict_Pure(t *testing.T) {
	items := []Item{
		{ID: "1", Type: TypeFactCheck, Source: "a", Content: "false claim", Confidence: 0.4, Timestamp: ts(1)},
		{ID: "2", Type: TypeFactCheck, Source: "b", Content: "true in part", Confidence: 0.4, Timestamp: ts(2)},
		{ID: "3", Type: TypeForensic, Source: "c", Content: "analysis", Confidence: 0.3, Timestamp: ts(3)},
	}
	forensic := &ForensicAnalysis{TamperingProbability: 0.9, Techniques: []string{"splicing"}}
	agg := newTestAggregator()

	v1, c1 := agg.SynthesizeVerdict(items, forensic)
	v2, c2 := agg.SynthesizeVerdict(items, forensic)
	if v1 != v2 || !floatEq(c1, c2) {
		t.Errorf("not deterministic: (%s, %v) vs (%s, %v)", v1, c1, v2, c2)
	}
}

func TestExtractTechniques(t *testing.T) {
	items := []Item{
		{ID: "1", Type: TypeFactCheck, Source: "a", Content: "x", Confidence: 0.5, Timestamp: ts(1)},
		{ID: "2", Type: TypeFactCheck, Source: "b", Content: "y", Confidence: 0.5, Timestamp: ts(2)},
		{ID: "3", Type: TypeForensic, Source: "c", Content: "z", Confidence: 0.5, Timestamp: ts(3)},
		{ID: "4", Type: TypeReverseImage, Source: "d", Content: "w", Confidence: 0.5, Timestamp: ts(4)},
	}
	forensic := &ForensicAnalysis{Techniques: []string{"splicing", "digital_forensics"}}

	agg := newTestAggregator()
	got := agg.ExtractTechniques(items, forensic)
	want := []string{"splicing", "digital_forensics", "cross_reference_analysis", "reverse_image_search"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("techniques mismatch (-want +got):\n%s", diff)
	}

	again := agg.ExtractTechniques(items, forensic)
	if diff := cmp.Diff(got, again); diff != "" {
		t.Errorf("not deterministic (-first +second):\n%s", diff)
	}
}

func TestExtractTechniques_NoSignals(t *testing.T) {
	agg := newTestAggregator()
	items := []Item{
		{ID: "1", Type: TypeFactCheck, Source: "a", Content: "x", Confidence: 0.5, Timestamp: ts(1)},
	}
	if got := agg.ExtractTechniques(items, nil); len(got) != 0 {
		t.Errorf("got %v, want none", got)
	}
}

func TestClamp01(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.7, 1},
	}
	for _, tc := range cases {
		if got := Clamp01(tc.in); got != tc.want {
			t.Errorf("Clamp01(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
