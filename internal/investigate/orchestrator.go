// Package investigate drives the end-to-end investigation pipeline: it fans
// evidence gathering out across the tool-server fleet, reduces what comes
// back to a verdict, signs the result, and stores it.
package investigate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"verity/internal/artifact"
	"verity/internal/cache"
	"verity/internal/evidence"
	"verity/internal/logging"
	"verity/internal/store"
	"verity/internal/toolserver"
)

var (
	// DefaultInvestigationTimeout is the wall-clock budget racing one
	// pipeline run. Calls already issued to tool servers are not
	// interrupted on expiry; the caller just stops waiting.
	DefaultInvestigationTimeout = 120 * time.Second

	// DefaultSearchResults is how many search hits to request per claim.
	DefaultSearchResults = 5

	// DefaultWebFetchLimit bounds how many of those hits get their page
	// content fetched, concurrently, per investigation.
	DefaultWebFetchLimit = 3
)

// Well-known tool server names the pipeline routes its stages to.
const (
	ServerFactCheck = "factcheck"
	ServerForensic  = "forensic"
	ServerWebSearch = "websearch"
)

// Tool names the pipeline expects those servers to expose.
const (
	toolCheckClaim    = "check_claim"
	toolAnalyzeImage  = "analyze_image"
	toolAnalyzeVideo  = "analyze_video"
	toolSearch        = "search"
	toolFetchPage     = "fetch_page"
	toolReverseSearch = "reverse_search"
)

// ToolInvoker is the slice of the connection registry the pipeline needs.
type ToolInvoker interface {
	Invoke(ctx context.Context, server, tool string, args map[string]any) (*toolserver.Result, error)
	HealthCheckAll(ctx context.Context) map[string]bool
	CloseAll()
}

// Orchestrator owns one investigation pipeline: the tool fleet it draws
// evidence from, the aggregator that reduces evidence, the signer that seals
// results, and the store that keeps them. Construct once at process start;
// Shutdown releases the fleet.
type Orchestrator struct {
	logger *slog.Logger
	tools  ToolInvoker
	agg    *evidence.Aggregator
	signer artifact.Signer
	store  store.Store
	cache  *cache.QueryCache
}

// New wires an orchestrator from its collaborators.
func New(tools ToolInvoker, signer artifact.Signer, st store.Store) *Orchestrator {
	return &Orchestrator{
		logger: logging.New("investigate"),
		tools:  tools,
		agg:    evidence.NewAggregator(signer),
		signer: signer,
		store:  st,
		cache:  cache.NewQueryCache(0, 0),
	}
}

// Investigate runs the pipeline for one request under the wall-clock budget.
// Evidence-gathering failures degrade into the evidence chain; only a fault
// in the pipeline's own control flow comes back as an error.
func (o *Orchestrator) Investigate(ctx context.Context, req Request) (*Investigation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, DefaultInvestigationTimeout)
	defer cancel()

	type outcome struct {
		inv *Investigation
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{nil, fmt.Errorf("%w: %v", ErrInvestigationFailed, r)}
			}
		}()
		inv, err := o.run(runCtx, req)
		done <- outcome{inv, err}
	}()

	select {
	case out := <-done:
		return out.inv, out.err
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrInvestigationTimeout, DefaultInvestigationTimeout)
		}
		return nil, runCtx.Err()
	}
}

// run executes the staged pipeline. Stages are keyed off the content present
// and the requested options, never off the request type.
func (o *Orchestrator) run(ctx context.Context, req Request) (*Investigation, error) {
	start := time.Now()

	var chain []evidence.Item
	var forensic *evidence.ForensicAnalysis

	if req.Content.Claim != "" {
		chain = append(chain, o.factCheckStage(ctx, req.Content)...)
	}
	if req.Content.MediaURL != "" && req.Options.IncludeForensics {
		item, fa := o.forensicStage(ctx, req.Content.MediaURL)
		chain = append(chain, item)
		forensic = fa
	}
	if req.Content.MediaURL != "" {
		chain = append(chain, o.reverseSearchStage(ctx, req.Content.MediaURL)...)
	}
	if req.Content.Claim != "" {
		chain = append(chain, o.webEvidenceStage(ctx, req.Content.Claim)...)
	}

	chain = o.agg.Deduplicate(chain)

	var timeline []evidence.TimelineEvent
	if req.Options.CreateTimeline {
		timeline = o.agg.BuildTimeline(chain)
	}

	verdict, confidence := o.agg.SynthesizeVerdict(chain, forensic)
	techniques := o.agg.ExtractTechniques(chain, forensic)

	var lesson *Lesson
	if req.Options.GenerateLesson {
		lesson = LessonFor(techniques)
	}

	// A run that outlived its budget must not leave a degraded record
	// behind; the caller already received the timeout.
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w after %s", ErrInvestigationTimeout, DefaultInvestigationTimeout)
	}

	id := o.signer.NewID()
	now := time.Now().UTC()
	snap := artifact.Snapshot{
		ID:              id,
		Verdict:         verdict,
		Confidence:      confidence,
		EvidenceChain:   chain,
		Timestamp:       now,
		OriginalRequest: req,
	}
	signed, err := artifact.Build(o.signer, snap)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvestigationFailed, err)
	}
	if req.Content.Claim != "" {
		signed.ClaimReview = artifact.NewClaimReview(req.Content.Claim, verdict, now)
	}

	inv := &Investigation{
		ID:            id,
		Type:          req.Type,
		Request:       req,
		Verdict:       verdict,
		Confidence:    confidence,
		Explanation:   explanation(verdict, confidence, len(chain)),
		EvidenceChain: chain,
		Forensic:      forensic,
		Timeline:      timeline,
		Techniques:    techniques,
		Artifact:      signed,
		Lesson:        lesson,
		CreatedAt:     now,
		DurationMS:    time.Since(start).Milliseconds(),
	}

	if err := o.save(inv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvestigationFailed, err)
	}

	o.logger.Info("investigation complete",
		"id", inv.ID,
		"verdict", inv.Verdict,
		"confidence", inv.Confidence,
		"evidence", len(inv.EvidenceChain),
		"duration_ms", inv.DurationMS)
	return inv, nil
}

func (o *Orchestrator) save(inv *Investigation) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("marshal investigation: %w", err)
	}
	return o.store.SaveInvestigation(&store.Record{
		ID:         inv.ID,
		Kind:       string(inv.Type),
		Verdict:    string(inv.Verdict),
		Confidence: inv.Confidence,
		CreatedAt:  inv.CreatedAt.Format(time.RFC3339),
		Payload:    payload,
	})
}

// Get returns a stored investigation, or (nil, nil) for an unknown id.
func (o *Orchestrator) Get(id string) (*Investigation, error) {
	rec, err := o.store.GetInvestigation(id)
	if err != nil {
		return nil, fmt.Errorf("load investigation %s: %w", id, err)
	}
	if rec == nil {
		return nil, nil
	}
	var inv Investigation
	if err := json.Unmarshal(rec.Payload, &inv); err != nil {
		return nil, fmt.Errorf("decode investigation %s: %w", id, err)
	}
	return &inv, nil
}

// Export wraps a stored investigation with an export timestamp and format
// version. Unknown ids fail with ErrExportNotFound.
func (o *Orchestrator) Export(id string) (*Export, error) {
	inv, err := o.Get(id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: %s", ErrExportNotFound, id)
	}
	return &Export{
		FormatVersion: FormatVersion,
		ExportedAt:    time.Now().UTC(),
		Investigation: inv,
	}, nil
}

// Recent lists the newest stored investigations, up to limit.
func (o *Orchestrator) Recent(limit int) ([]*Investigation, error) {
	recs, err := o.store.ListInvestigations(limit)
	if err != nil {
		return nil, fmt.Errorf("list investigations: %w", err)
	}
	out := make([]*Investigation, 0, len(recs))
	for _, rec := range recs {
		var inv Investigation
		if err := json.Unmarshal(rec.Payload, &inv); err != nil {
			return nil, fmt.Errorf("decode investigation %s: %w", rec.ID, err)
		}
		out = append(out, &inv)
	}
	return out, nil
}

// Health reports per-server liveness plus connected/total counts.
func (o *Orchestrator) Health(ctx context.Context) Health {
	servers := o.tools.HealthCheckAll(ctx)
	h := Health{Servers: servers, Total: len(servers)}
	for _, alive := range servers {
		if alive {
			h.Connected++
		}
	}
	return h
}

// Shutdown releases the tool-server fleet. The store stays open; its owner
// closes it.
func (o *Orchestrator) Shutdown() {
	o.tools.CloseAll()
}
