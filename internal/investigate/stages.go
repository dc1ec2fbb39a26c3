package investigate

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"verity/internal/cache"
	"verity/internal/evidence"
	"verity/internal/toolserver"

	"golang.org/x/sync/errgroup"
)

// maxWebContent caps how much fetched page text one evidence item carries.
const maxWebContent = 4000

// invokeCached routes a tool call through the query cache, so one process
// never asks the same server the same question twice within the TTL.
func (o *Orchestrator) invokeCached(ctx context.Context, server, tool string, args map[string]any) (*toolserver.Result, error) {
	key := cache.Key(server, tool, args)
	if v, ok := o.cache.Get(key); ok {
		if res, ok := v.(*toolserver.Result); ok {
			return res, nil
		}
	}
	res, err := o.tools.Invoke(ctx, server, tool, args)
	if err != nil {
		return nil, err
	}
	o.cache.Set(key, res)
	return res, nil
}

// factCheckStage asks the fact-check server for prior reviews of the claim.
// On failure it degrades to a single low-confidence system item describing
// the failure, so the verdict math still sees that a lookup was attempted.
func (o *Orchestrator) factCheckStage(ctx context.Context, content Content) []evidence.Item {
	args := map[string]any{"claim": content.Claim}
	if content.Context != "" {
		args["context"] = content.Context
	}

	res, err := o.invokeCached(ctx, ServerFactCheck, toolCheckClaim, args)
	if err != nil {
		o.logger.Warn("fact-check degraded", "error", err)
		return []evidence.Item{{
			ID:         o.signer.NewID(),
			Type:       evidence.TypeFactCheck,
			Source:     "system",
			Content:    "Fact-check lookup did not complete: " + err.Error(),
			Confidence: 0.1,
			Timestamp:  time.Now().UTC(),
		}}
	}

	m := asMap(res.Value)
	if reviews := asSlice(m["reviews"]); len(reviews) > 0 {
		items := make([]evidence.Item, 0, len(reviews))
		for _, raw := range reviews {
			if rm := asMap(raw); rm != nil {
				items = append(items, o.reviewItem(rm))
			}
		}
		if len(items) > 0 {
			return items
		}
	}
	if m != nil {
		return []evidence.Item{o.reviewItem(m)}
	}
	if s, ok := res.Value.(string); ok && s != "" {
		return []evidence.Item{{
			ID:         o.signer.NewID(),
			Type:       evidence.TypeFactCheck,
			Source:     ServerFactCheck,
			Content:    s,
			Confidence: 0.7,
			Timestamp:  time.Now().UTC(),
		}}
	}
	return nil
}

// reviewItem maps one prior-review record to an evidence item. The rating
// text leads the content so the verdict keywords land where the synthesis
// looks for them.
func (o *Orchestrator) reviewItem(m map[string]any) evidence.Item {
	source := firstString(m, "source", "publisher", "review_url", "url")
	if source == "" {
		source = ServerFactCheck
	}
	rating := firstString(m, "rating", "verdict", "textual_rating")
	summary := firstString(m, "summary", "text", "title", "claim_reviewed")

	content := rating
	if summary != "" {
		if content != "" {
			content += ": " + summary
		} else {
			content = summary
		}
	}
	if content == "" {
		content = "prior review without a textual rating"
	}

	return evidence.Item{
		ID:         o.signer.NewID(),
		Type:       evidence.TypeFactCheck,
		Source:     source,
		Content:    content,
		Confidence: evidence.Clamp01(floatOr(m, 0.7, "confidence", "score")),
		Timestamp:  timeOr(m, time.Now().UTC(), "reviewed_at", "published_at", "date"),
		Metadata:   m,
	}
}

// forensicStage runs manipulation detection on the media, choosing the
// analysis method by content type. Failure degrades to a neutral result
// (probability 0.5) with the error noted; it never aborts the pipeline.
func (o *Orchestrator) forensicStage(ctx context.Context, mediaURL string) (evidence.Item, *evidence.ForensicAnalysis) {
	tool := toolAnalyzeImage
	method := "image_analysis"
	if isVideoURL(mediaURL) {
		tool = toolAnalyzeVideo
		method = "video_analysis"
	}

	res, err := o.invokeCached(ctx, ServerForensic, tool, map[string]any{"media_url": mediaURL})
	if err != nil {
		o.logger.Warn("forensic analysis degraded", "media_url", mediaURL, "error", err)
		fa := &evidence.ForensicAnalysis{
			TamperingProbability: 0.5,
			Method:               method,
			Note:                 "forensic server unavailable: " + err.Error(),
		}
		return evidence.Item{
			ID:         o.signer.NewID(),
			Type:       evidence.TypeForensic,
			Source:     "system",
			Content:    "Forensic analysis unavailable; tampering likelihood unknown.",
			Confidence: 0.1,
			Timestamp:  time.Now().UTC(),
		}, fa
	}

	m := asMap(res.Value)
	fa := &evidence.ForensicAnalysis{
		TamperingProbability: evidence.Clamp01(floatOr(m, 0.5, "tampering_probability", "probability")),
		Techniques:           stringsOf(m["techniques"]),
		Method:               stringOr(m, method, "method"),
		Note:                 firstString(m, "note", "notes"),
	}
	item := evidence.Item{
		ID:         o.signer.NewID(),
		Type:       evidence.TypeForensic,
		Source:     ServerForensic,
		Content:    fmt.Sprintf("Forensic %s puts tampering probability at %.2f.", fa.Method, fa.TamperingProbability),
		Confidence: evidence.Clamp01(floatOr(m, 0.7, "confidence")),
		Timestamp:  time.Now().UTC(),
		Metadata:   m,
	}
	return item, fa
}

// reverseSearchStage looks for prior appearances of the media. Failures are
// swallowed: logged, zero evidence added.
func (o *Orchestrator) reverseSearchStage(ctx context.Context, mediaURL string) []evidence.Item {
	res, err := o.invokeCached(ctx, ServerWebSearch, toolReverseSearch, map[string]any{"media_url": mediaURL})
	if err != nil {
		o.logger.Warn("reverse search skipped", "media_url", mediaURL, "error", err)
		return nil
	}

	m := asMap(res.Value)
	matches := asSlice(m["matches"])
	items := make([]evidence.Item, 0, len(matches))
	for _, raw := range matches {
		mm := asMap(raw)
		if mm == nil {
			continue
		}
		source := firstString(mm, "url", "source")
		if source == "" {
			source = ServerWebSearch
		}
		desc := firstString(mm, "title", "snippet")
		if desc == "" {
			desc = source
		}
		items = append(items, evidence.Item{
			ID:         o.signer.NewID(),
			Type:       evidence.TypeReverseImage,
			Source:     source,
			Content:    "Prior appearance: " + desc,
			Confidence: evidence.Clamp01(floatOr(mm, 0.6, "similarity", "confidence")),
			Timestamp:  timeOr(mm, time.Now().UTC(), "first_seen", "date"),
			Metadata:   mm,
		})
	}
	return items
}

// webEvidenceStage searches the claim, then fetches page content for the top
// few hits concurrently. Each fetch failure is skipped individually; hit
// order is preserved in the returned items.
func (o *Orchestrator) webEvidenceStage(ctx context.Context, claim string) []evidence.Item {
	res, err := o.invokeCached(ctx, ServerWebSearch, toolSearch, map[string]any{
		"query":       claim,
		"max_results": DefaultSearchResults,
	})
	if err != nil {
		o.logger.Warn("web search skipped", "error", err)
		return nil
	}

	type hit struct{ url, title string }
	var hits []hit
	for _, raw := range asSlice(asMap(res.Value)["results"]) {
		rm := asMap(raw)
		u := firstString(rm, "url", "link")
		if u == "" {
			continue
		}
		hits = append(hits, hit{url: u, title: firstString(rm, "title")})
		if len(hits) == DefaultWebFetchLimit {
			break
		}
	}

	slots := make([]*evidence.Item, len(hits))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range hits {
		g.Go(func() error {
			pageRes, err := o.invokeCached(gctx, ServerWebSearch, toolFetchPage, map[string]any{"url": h.url})
			if err != nil {
				o.logger.Warn("page fetch skipped", "url", h.url, "error", err)
				return nil
			}
			pm := asMap(pageRes.Value)
			text := firstString(pm, "text", "content", "body")
			if text == "" {
				if s, ok := pageRes.Value.(string); ok {
					text = s
				}
			}
			title := firstString(pm, "title")
			if title == "" {
				title = h.title
			}
			content := text
			if title != "" {
				content = title + "\n" + text
			}
			slots[i] = &evidence.Item{
				ID:         o.signer.NewID(),
				Type:       evidence.TypeWebSearch,
				Source:     h.url,
				Content:    truncate(content, maxWebContent),
				Confidence: evidence.Clamp01(floatOr(pm, 0.5, "confidence", "score")),
				Timestamp:  time.Now().UTC(),
				Metadata:   pm,
			}
			return nil
		})
	}
	_ = g.Wait() // fetch failures already skipped per slot

	items := make([]evidence.Item, 0, len(slots))
	for _, it := range slots {
		if it != nil {
			items = append(items, *it)
		}
	}
	return items
}

// --- payload decode helpers ---
// Tool servers return loosely structured JSON; these keep the stages tidy.

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func stringOr(m map[string]any, def string, keys ...string) string {
	if s := firstString(m, keys...); s != "" {
		return s
	}
	return def
}

func floatOr(m map[string]any, def float64, keys ...string) float64 {
	for _, k := range keys {
		switch n := m[k].(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return def
}

func stringsOf(v any) []string {
	raw := asSlice(v)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func timeOr(m map[string]any, def time.Time, keys ...string) time.Time {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return t
			}
		}
	}
	return def
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".webm": true, ".mkv": true, ".m4v": true,
}

func isVideoURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return videoExtensions[strings.ToLower(path.Ext(u.Path))]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
