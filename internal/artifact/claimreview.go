package artifact

import (
	"time"

	"verity/internal/evidence"
)

// ClaimReview is the schema.org structured export of a fact check, suitable
// for embedding in pages consumed by search engines and fact-check feeds.
type ClaimReview struct {
	Context       string       `json:"@context"`
	Type          string       `json:"@type"`
	ClaimReviewed string       `json:"claimReviewed"`
	DatePublished string       `json:"datePublished"`
	Author        ReviewAuthor `json:"author"`
	ReviewRating  ReviewRating `json:"reviewRating"`
}

// ReviewAuthor identifies the producing system.
type ReviewAuthor struct {
	Type string `json:"@type"`
	Name string `json:"name"`
}

// ReviewRating maps a verdict onto the 1..5 ClaimReview rating scale.
type ReviewRating struct {
	Type          string `json:"@type"`
	RatingValue   int    `json:"ratingValue"`
	BestRating    int    `json:"bestRating"`
	WorstRating   int    `json:"worstRating"`
	AlternateName string `json:"alternateName"`
}

// ratingFor maps verdicts to rating values: TRUE 5, MIXED 3, UNVERIFIED 2,
// FALSE 1.
func ratingFor(v evidence.Verdict) int {
	switch v {
	case evidence.VerdictTrue:
		return 5
	case evidence.VerdictMixed:
		return 3
	case evidence.VerdictFalse:
		return 1
	default:
		return 2
	}
}

// NewClaimReview builds the structured export for a reviewed claim.
func NewClaimReview(claim string, verdict evidence.Verdict, published time.Time) *ClaimReview {
	return &ClaimReview{
		Context:       "https://schema.org",
		Type:          "ClaimReview",
		ClaimReviewed: claim,
		DatePublished: published.UTC().Format(time.RFC3339),
		Author: ReviewAuthor{
			Type: "Organization",
			Name: "verity",
		},
		ReviewRating: ReviewRating{
			Type:          "Rating",
			RatingValue:   ratingFor(verdict),
			BestRating:    5,
			WorstRating:   1,
			AlternateName: string(verdict),
		},
	}
}
