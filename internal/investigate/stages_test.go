package investigate

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestIsVideoURL(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"https://cdn.example/clip.mp4", true},
		{"https://cdn.example/clip.MP4?sig=abc&x=1", true},
		{"https://cdn.example/movie.webm", true},
		{"https://cdn.example/photo.jpg", false},
		{"https://cdn.example/page", false},
		{"://not a url", false},
	}
	for _, tc := range cases {
		if got := isVideoURL(tc.url); got != tc.want {
			t.Errorf("isVideoURL(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}

func TestPayloadHelpers(t *testing.T) {
	m := map[string]any{
		"empty":  "",
		"name":   "alpha",
		"score":  0.25,
		"count":  3,
		"when":   "2024-06-01T12:00:00Z",
		"broken": "not a time",
		"tags":   []any{"one", "", "two", 7},
	}

	if got := firstString(m, "empty", "missing", "name"); got != "alpha" {
		t.Errorf("firstString = %q, want alpha", got)
	}
	if got := stringOr(m, "fallback", "empty", "missing"); got != "fallback" {
		t.Errorf("stringOr = %q, want fallback", got)
	}
	if got := floatOr(m, 0.9, "missing", "score"); got != 0.25 {
		t.Errorf("floatOr float = %v, want 0.25", got)
	}
	if got := floatOr(m, 0.9, "count"); got != 3 {
		t.Errorf("floatOr int = %v, want 3", got)
	}
	if got := floatOr(m, 0.9, "name"); got != 0.9 {
		t.Errorf("floatOr wrong type = %v, want default", got)
	}
	if diff := cmp.Diff([]string{"one", "two"}, stringsOf(m["tags"])); diff != "" {
		t.Errorf("stringsOf mismatch (-want +got):\n%s", diff)
	}

	def := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	want := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	if got := timeOr(m, def, "broken", "when"); !got.Equal(want) {
		t.Errorf("timeOr = %v, want %v", got, want)
	}
	if got := timeOr(m, def, "missing"); !got.Equal(def) {
		t.Errorf("timeOr default = %v, want %v", got, def)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("0123456789", 4); got != "0123..." {
		t.Errorf("truncate long = %q", got)
	}
}
