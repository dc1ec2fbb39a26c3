package investigate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"verity/internal/artifact"
	"verity/internal/evidence"
	"verity/internal/store"
	"verity/internal/toolserver"

	"github.com/google/go-cmp/cmp"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	})))
	os.Exit(m.Run())
}

// fakeInvoker scripts tool responses per "server/tool" key. Missing keys
// behave like a server that never connected.
type fakeInvoker struct {
	mu       sync.Mutex
	handlers map[string]func(args map[string]any) (*toolserver.Result, error)
	calls    []string
	health   map[string]bool
	closed   bool
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{
		handlers: make(map[string]func(args map[string]any) (*toolserver.Result, error)),
		health:   make(map[string]bool),
	}
}

func (f *fakeInvoker) on(server, tool string, h func(args map[string]any) (*toolserver.Result, error)) {
	f.handlers[server+"/"+tool] = h
}

func (f *fakeInvoker) reply(server, tool string, value any) {
	f.on(server, tool, func(map[string]any) (*toolserver.Result, error) {
		return &toolserver.Result{Value: value}, nil
	})
}

func (f *fakeInvoker) callCount(server, tool string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == server+"/"+tool {
			n++
		}
	}
	return n
}

func (f *fakeInvoker) Invoke(ctx context.Context, server, tool string, args map[string]any) (*toolserver.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, server+"/"+tool)
	h := f.handlers[server+"/"+tool]
	f.mu.Unlock()
	if h == nil {
		return nil, fmt.Errorf("%w: %s", toolserver.ErrNotConnected, server)
	}
	return h(args)
}

func (f *fakeInvoker) HealthCheckAll(ctx context.Context) map[string]bool { return f.health }
func (f *fakeInvoker) CloseAll() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func newTestOrchestrator(t *testing.T, tools ToolInvoker) (*Orchestrator, artifact.Signer) {
	t.Helper()
	signer := artifact.NewEphemeralSigner()
	return New(tools, signer, store.NewMemStore()), signer
}

func floatEq(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestInvestigate_ClaimPipeline(t *testing.T) {
	tools := newFakeInvoker()
	tools.reply(ServerFactCheck, toolCheckClaim, map[string]any{
		"reviews": []any{
			map[string]any{
				"rating":      "False",
				"summary":     "The photo shows a 2014 event, not this one.",
				"source":      "snopes.com",
				"confidence":  0.9,
				"reviewed_at": "2025-05-20T09:00:00Z",
			},
		},
	})
	tools.reply(ServerWebSearch, toolSearch, map[string]any{
		"results": []any{
			map[string]any{"url": "https://a.example/report", "title": "Report A"},
			map[string]any{"url": "https://b.example/analysis", "title": "Analysis B"},
		},
	})
	tools.on(ServerWebSearch, toolFetchPage, func(args map[string]any) (*toolserver.Result, error) {
		return &toolserver.Result{Value: map[string]any{
			"text":       "Background coverage of the event.",
			"confidence": 0.05,
		}}, nil
	})

	orch, signer := newTestOrchestrator(t, tools)
	req := Request{
		Type:    TypeFactCheck,
		Content: Content{Claim: "The photo shows yesterday's protest"},
		Options: Options{CreateTimeline: true, GenerateLesson: true},
	}

	inv, err := orch.Investigate(context.Background(), req)
	if err != nil {
		t.Fatalf("Investigate: %v", err)
	}

	// One 0.9 false vote against 0.1 of web weight: falseRatio 0.9.
	if inv.Verdict != evidence.VerdictFalse {
		t.Errorf("verdict = %s, want FALSE", inv.Verdict)
	}
	if !floatEq(inv.Confidence, 0.9) {
		t.Errorf("confidence = %v, want 0.9", inv.Confidence)
	}
	if len(inv.EvidenceChain) != 3 {
		t.Fatalf("evidence chain = %d items, want 3", len(inv.EvidenceChain))
	}
	if inv.EvidenceChain[0].Type != evidence.TypeFactCheck || inv.EvidenceChain[0].Source != "snopes.com" {
		t.Errorf("first item = %+v, want snopes.com fact check", inv.EvidenceChain[0])
	}
	wantSources := []string{"https://a.example/report", "https://b.example/analysis"}
	gotSources := []string{inv.EvidenceChain[1].Source, inv.EvidenceChain[2].Source}
	if diff := cmp.Diff(wantSources, gotSources); diff != "" {
		t.Errorf("web sources mismatch (-want +got):\n%s", diff)
	}
	if len(inv.Timeline) != 3 {
		t.Errorf("timeline = %d events, want 3", len(inv.Timeline))
	}
	if inv.Lesson == nil || inv.Lesson.Technique != "general" {
		t.Errorf("lesson = %+v, want the default lesson", inv.Lesson)
	}
	if inv.Explanation == "" {
		t.Error("explanation is empty")
	}
	if inv.DurationMS < 0 {
		t.Errorf("duration = %d ms", inv.DurationMS)
	}

	// The artifact must verify against the exact snapshot that was signed.
	if inv.Artifact == nil || inv.Artifact.ClaimReview == nil {
		t.Fatalf("artifact = %+v, want signed artifact with claim review", inv.Artifact)
	}
	if inv.Artifact.ClaimReview.ReviewRating.RatingValue != 1 {
		t.Errorf("claim review rating = %d, want 1 (FALSE)", inv.Artifact.ClaimReview.ReviewRating.RatingValue)
	}
	snap := artifact.Snapshot{
		ID:              inv.ID,
		Verdict:         inv.Verdict,
		Confidence:      inv.Confidence,
		EvidenceChain:   inv.EvidenceChain,
		Timestamp:       inv.CreatedAt,
		OriginalRequest: inv.Request,
	}
	ok, err := artifact.Verify(signer, snap, inv.Artifact)
	if err != nil || !ok {
		t.Errorf("artifact verify = %v, %v, want true", ok, err)
	}

	// Stored and retrievable.
	stored, err := orch.Get(inv.ID)
	if err != nil || stored == nil {
		t.Fatalf("Get(%s): %+v, %v", inv.ID, stored, err)
	}
	if stored.Verdict != inv.Verdict || stored.ID != inv.ID {
		t.Errorf("stored investigation differs: %+v", stored)
	}
}

func TestInvestigate_MediaPipeline(t *testing.T) {
	tools := newFakeInvoker()
	tools.reply(ServerForensic, toolAnalyzeImage, map[string]any{
		"tampering_probability": 0.85,
		"techniques":            []any{"splicing"},
		"confidence":            0.6,
	})
	tools.reply(ServerWebSearch, toolReverseSearch, map[string]any{
		"matches": []any{
			map[string]any{
				"url":        "https://old.example/photo",
				"title":      "Same photo in 2014 coverage",
				"similarity": 0.1,
				"first_seen": "2014-03-01T00:00:00Z",
			},
		},
	})

	orch, _ := newTestOrchestrator(t, tools)
	req := Request{
		Type:    TypeMediaAnalysis,
		Content: Content{MediaURL: "https://cdn.example/photo.jpg"},
		Options: Options{IncludeForensics: true, CreateTimeline: true, GenerateLesson: true},
	}

	inv, err := orch.Investigate(context.Background(), req)
	if err != nil {
		t.Fatalf("Investigate: %v", err)
	}

	if tools.callCount(ServerForensic, toolAnalyzeImage) != 1 {
		t.Error("image analysis not invoked exactly once")
	}
	if tools.callCount(ServerForensic, toolAnalyzeVideo) != 0 {
		t.Error("video analysis invoked for an image URL")
	}

	if inv.Forensic == nil || !floatEq(inv.Forensic.TamperingProbability, 0.85) {
		t.Fatalf("forensic = %+v, want tampering probability 0.85", inv.Forensic)
	}

	// forensic weight 0.6 votes 0.6*0.85 false; reverse item adds 0.1:
	// falseRatio = 0.51/0.7 ≈ 0.7286.
	if inv.Verdict != evidence.VerdictFalse {
		t.Errorf("verdict = %s, want FALSE", inv.Verdict)
	}
	if !floatEq(inv.Confidence, 0.51/0.7) {
		t.Errorf("confidence = %v, want %v", inv.Confidence, 0.51/0.7)
	}

	for _, want := range []string{"splicing", "digital_forensics", "reverse_image_search"} {
		found := false
		for _, tech := range inv.Techniques {
			if tech == want {
				found = true
			}
		}
		if !found {
			t.Errorf("techniques %v missing %q", inv.Techniques, want)
		}
	}
	if inv.Lesson == nil || inv.Lesson.Technique != "splicing" {
		t.Errorf("lesson = %+v, want splicing lesson", inv.Lesson)
	}

	// Reverse match (2014) precedes the forensic finding (now).
	if len(inv.Timeline) != 2 {
		t.Fatalf("timeline = %d events, want 2", len(inv.Timeline))
	}
	if inv.Timeline[0].EventType != evidence.EventFirstAppearance {
		t.Errorf("timeline[0] = %s, want first_appearance", inv.Timeline[0].EventType)
	}
	if inv.Timeline[1].EventType != evidence.EventModification {
		t.Errorf("timeline[1] = %s, want modification", inv.Timeline[1].EventType)
	}
}

func TestInvestigate_VideoRoutesToVideoTool(t *testing.T) {
	tools := newFakeInvoker()
	tools.reply(ServerForensic, toolAnalyzeVideo, map[string]any{
		"tampering_probability": 0.2,
	})
	tools.reply(ServerWebSearch, toolReverseSearch, map[string]any{"matches": []any{}})

	orch, _ := newTestOrchestrator(t, tools)
	req := Request{
		Type:    TypeMediaAnalysis,
		Content: Content{MediaURL: "https://cdn.example/clip.mp4?sig=abc"},
		Options: Options{IncludeForensics: true},
	}
	if _, err := orch.Investigate(context.Background(), req); err != nil {
		t.Fatalf("Investigate: %v", err)
	}
	if tools.callCount(ServerForensic, toolAnalyzeVideo) != 1 {
		t.Error("video tool not used for .mp4 media")
	}
	if tools.callCount(ServerForensic, toolAnalyzeImage) != 0 {
		t.Error("image tool used for .mp4 media")
	}
}

func TestInvestigate_FullyDegradedFleetStillConcludes(t *testing.T) {
	orch, _ := newTestOrchestrator(t, newFakeInvoker())
	req := Request{
		Type:    TypeFullInvestigation,
		Content: Content{Claim: "something", MediaURL: "https://cdn.example/x.jpg"},
		Options: Options{IncludeForensics: true, CreateTimeline: true},
	}

	inv, err := orch.Investigate(context.Background(), req)
	if err != nil {
		t.Fatalf("Investigate with dead fleet: %v", err)
	}
	if inv.Verdict != evidence.VerdictUnverified || !floatEq(inv.Confidence, 0.5) {
		t.Errorf("verdict = %s/%v, want UNVERIFIED/0.5", inv.Verdict, inv.Confidence)
	}

	// Fact-check and forensic stages degrade into low-confidence system
	// items; reverse search and web search degrade to nothing.
	if len(inv.EvidenceChain) != 2 {
		t.Fatalf("evidence chain = %d items, want 2", len(inv.EvidenceChain))
	}
	for _, item := range inv.EvidenceChain {
		if item.Source != "system" {
			t.Errorf("degraded item source = %q, want system", item.Source)
		}
		if !floatEq(item.Confidence, 0.1) {
			t.Errorf("degraded item confidence = %v, want 0.1", item.Confidence)
		}
	}
	if inv.Forensic == nil || !floatEq(inv.Forensic.TamperingProbability, 0.5) {
		t.Errorf("forensic = %+v, want neutral 0.5", inv.Forensic)
	}
	if inv.Forensic.Note == "" {
		t.Error("degraded forensic result carries no error note")
	}
}

func TestInvestigate_FetchFailuresSkippedIndividually(t *testing.T) {
	tools := newFakeInvoker()
	tools.reply(ServerFactCheck, toolCheckClaim, map[string]any{
		"rating": "in dispute", "confidence": 0.5,
	})
	tools.reply(ServerWebSearch, toolSearch, map[string]any{
		"results": []any{
			map[string]any{"url": "https://one.example"},
			map[string]any{"url": "https://two.example"},
			map[string]any{"url": "https://three.example"},
		},
	})
	tools.on(ServerWebSearch, toolFetchPage, func(args map[string]any) (*toolserver.Result, error) {
		if args["url"] == "https://two.example" {
			return nil, errors.New("fetch refused")
		}
		return &toolserver.Result{Value: map[string]any{"text": "page body"}}, nil
	})

	orch, _ := newTestOrchestrator(t, tools)
	inv, err := orch.Investigate(context.Background(), Request{
		Type:    TypeFactCheck,
		Content: Content{Claim: "a contested claim"},
	})
	if err != nil {
		t.Fatalf("Investigate: %v", err)
	}

	var webSources []string
	for _, item := range inv.EvidenceChain {
		if item.Type == evidence.TypeWebSearch {
			webSources = append(webSources, item.Source)
		}
	}
	want := []string{"https://one.example", "https://three.example"}
	if diff := cmp.Diff(want, webSources); diff != "" {
		t.Errorf("surviving fetches mismatch (-want +got):\n%s", diff)
	}
}

func TestInvestigate_Timeout(t *testing.T) {
	oldTimeout := DefaultInvestigationTimeout
	DefaultInvestigationTimeout = 30 * time.Millisecond
	defer func() { DefaultInvestigationTimeout = oldTimeout }()

	tools := newFakeInvoker()
	tools.on(ServerFactCheck, toolCheckClaim, func(map[string]any) (*toolserver.Result, error) {
		time.Sleep(80 * time.Millisecond)
		return &toolserver.Result{Value: map[string]any{"rating": "False"}}, nil
	})

	orch, _ := newTestOrchestrator(t, tools)
	_, err := orch.Investigate(context.Background(), Request{
		Type:    TypeFactCheck,
		Content: Content{Claim: "slow claim"},
	})
	if !errors.Is(err, ErrInvestigationTimeout) {
		t.Fatalf("err = %v, want ErrInvestigationTimeout", err)
	}

	// The overrun pipeline must not store a degraded record behind the
	// caller's back.
	time.Sleep(200 * time.Millisecond)
	recent, err := orch.Recent(0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 0 {
		t.Errorf("stored %d investigations after timeout, want 0", len(recent))
	}
}

func TestInvestigate_BadRequests(t *testing.T) {
	orch, _ := newTestOrchestrator(t, newFakeInvoker())
	cases := []Request{
		{Type: "espionage", Content: Content{Claim: "x"}},
		{Type: TypeFactCheck},
		{Type: TypeMediaAnalysis, Content: Content{Claim: "claim but no media"}},
		{Type: TypeFullInvestigation},
	}
	for _, req := range cases {
		if _, err := orch.Investigate(context.Background(), req); !errors.Is(err, ErrBadRequest) {
			t.Errorf("Investigate(%+v) = %v, want ErrBadRequest", req, err)
		}
	}
}

func TestInvestigate_RepeatQueriesHitCache(t *testing.T) {
	tools := newFakeInvoker()
	tools.reply(ServerFactCheck, toolCheckClaim, map[string]any{
		"rating": "True", "confidence": 0.9,
	})

	orch, _ := newTestOrchestrator(t, tools)
	req := Request{Type: TypeFactCheck, Content: Content{Claim: "repeated claim"}}

	first, err := orch.Investigate(context.Background(), req)
	if err != nil {
		t.Fatalf("first Investigate: %v", err)
	}
	second, err := orch.Investigate(context.Background(), req)
	if err != nil {
		t.Fatalf("second Investigate: %v", err)
	}

	if got := tools.callCount(ServerFactCheck, toolCheckClaim); got != 1 {
		t.Errorf("fact-check invoked %d times, want 1 (cache hit)", got)
	}
	if first.ID == second.ID {
		t.Error("repeat investigations must get fresh ids")
	}
	if first.Verdict != second.Verdict || !floatEq(first.Confidence, second.Confidence) {
		t.Error("cached evidence produced a different verdict")
	}
}

func TestExport_RoundTrip(t *testing.T) {
	tools := newFakeInvoker()
	tools.reply(ServerFactCheck, toolCheckClaim, map[string]any{
		"rating": "False", "confidence": 0.9, "source": "factcheck.org",
		"reviewed_at": "2025-05-20T09:00:00Z",
	})

	orch, signer := newTestOrchestrator(t, tools)
	inv, err := orch.Investigate(context.Background(), Request{
		Type:    TypeFactCheck,
		Content: Content{Claim: "exportable claim"},
	})
	if err != nil {
		t.Fatalf("Investigate: %v", err)
	}

	export, err := orch.Export(inv.ID)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if export.FormatVersion != FormatVersion {
		t.Errorf("format version = %s, want %s", export.FormatVersion, FormatVersion)
	}
	if export.ExportedAt.IsZero() {
		t.Error("export timestamp is zero")
	}

	// The exported record's canonical bytes must rehash to the stored hash.
	got := export.Investigation
	snap := artifact.Snapshot{
		ID:              got.ID,
		Verdict:         got.Verdict,
		Confidence:      got.Confidence,
		EvidenceChain:   got.EvidenceChain,
		Timestamp:       got.CreatedAt,
		OriginalRequest: got.Request,
	}
	ok, err := artifact.Verify(signer, snap, got.Artifact)
	if err != nil || !ok {
		t.Errorf("exported artifact verify = %v, %v, want true", ok, err)
	}
}

func TestExport_NotFound(t *testing.T) {
	orch, _ := newTestOrchestrator(t, newFakeInvoker())
	if _, err := orch.Export("ghost-id"); !errors.Is(err, ErrExportNotFound) {
		t.Fatalf("Export = %v, want ErrExportNotFound", err)
	}
}

func TestGet_UnknownReturnsNil(t *testing.T) {
	orch, _ := newTestOrchestrator(t, newFakeInvoker())
	inv, err := orch.Get("ghost-id")
	if err != nil || inv != nil {
		t.Fatalf("Get = %+v, %v, want nil, nil", inv, err)
	}
}

func TestRecent_NewestFirst(t *testing.T) {
	tools := newFakeInvoker()
	tools.reply(ServerFactCheck, toolCheckClaim, map[string]any{"rating": "True", "confidence": 0.9})

	orch, _ := newTestOrchestrator(t, tools)
	var ids []string
	for _, claim := range []string{"first", "second"} {
		inv, err := orch.Investigate(context.Background(), Request{
			Type: TypeFactCheck, Content: Content{Claim: claim},
		})
		if err != nil {
			t.Fatalf("Investigate(%s): %v", claim, err)
		}
		ids = append(ids, inv.ID)
	}

	recent, err := orch.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent = %d records, want 2", len(recent))
	}
	gotIDs := map[string]bool{recent[0].ID: true, recent[1].ID: true}
	if !gotIDs[ids[0]] || !gotIDs[ids[1]] {
		t.Errorf("Recent ids %v missing investigations %v", gotIDs, ids)
	}
}

func TestHealth_Counts(t *testing.T) {
	tools := newFakeInvoker()
	tools.health = map[string]bool{"factcheck": true, "forensic": false, "websearch": true}

	orch, _ := newTestOrchestrator(t, tools)
	h := orch.Health(context.Background())
	if h.Total != 3 || h.Connected != 2 {
		t.Errorf("health = %d/%d, want 2/3", h.Connected, h.Total)
	}
	if !h.Servers["factcheck"] || h.Servers["forensic"] {
		t.Errorf("servers = %v", h.Servers)
	}
}

func TestShutdown_ClosesFleet(t *testing.T) {
	tools := newFakeInvoker()
	orch, _ := newTestOrchestrator(t, tools)
	orch.Shutdown()
	if !tools.closed {
		t.Error("Shutdown did not close the fleet")
	}
}
