package investigate

// Micro-lessons are keyed by detected technique. Selection is a pure lookup:
// the first detected technique with a lesson wins, otherwise the default.

var defaultLesson = Lesson{
	Technique: "general",
	Title:     "Check before you share",
	Summary:   "Most misleading content spreads because it looks plausible at a glance. A minute of checking beats a retraction.",
	Tips: []string{
		"Find the original source, not a screenshot of it.",
		"Search the exact claim together with the word 'fact check'.",
		"Be extra careful with content that makes you angry; outrage is the cheapest lure.",
	},
}

var lessons = map[string]Lesson{
	"cross_reference_analysis": {
		Technique: "cross_reference_analysis",
		Title:     "One source is no source",
		Summary:   "Independent fact-checkers reaching the same conclusion is strong signal; a single unsourced post is not.",
		Tips: []string{
			"Look for at least two unrelated outlets reporting the same core facts.",
			"Check whether the 'different' sources all trace back to one original post.",
			"Prefer sources that link to primary documents over sources that paraphrase.",
		},
	},
	"digital_forensics": {
		Technique: "digital_forensics",
		Title:     "Pixels can lie",
		Summary:   "Edited media often carries traces: mismatched lighting, warped backgrounds, inconsistent noise between regions.",
		Tips: []string{
			"Zoom into edges around faces and text; splices blur or ghost there first.",
			"Check shadows and reflections for directions that disagree.",
			"Look for repeated patches, the signature of clone-stamp edits.",
		},
	},
	"reverse_image_search": {
		Technique: "reverse_image_search",
		Title:     "Old photo, new story",
		Summary:   "The most common media manipulation is no edit at all: a real photo recaptioned into a different event.",
		Tips: []string{
			"Reverse-search the image and compare the earliest appearance with the claim.",
			"Check dates: media older than the event it supposedly shows is recycled.",
			"Weather, signage and clothing often betray a different time or place.",
		},
	},
	"splicing": {
		Technique: "splicing",
		Title:     "Cut and stitched",
		Summary:   "Splicing pastes regions from different images or recordings into one, and the seams rarely match perfectly.",
		Tips: []string{
			"Inspect boundaries between subjects and background for halos or hard cuts.",
			"Listen for room-tone jumps in audio; rooms have fingerprints.",
			"Compare compression quality across regions; pasted parts often differ.",
		},
	},
	"deepfake": {
		Technique: "deepfake",
		Title:     "Synthetic faces",
		Summary:   "Generated faces and voice clones keep improving, but they still slip on the hard parts: hands, teeth, ears, and timing.",
		Tips: []string{
			"Watch blinking and lip-sync closely; timing drifts under stress.",
			"Check earrings, glasses and hairlines across frames for flicker.",
			"Ask where the full original recording is; clips without provenance deserve doubt.",
		},
	},
}

// LessonFor selects the micro-lesson for the primary detected technique,
// falling back to the default when nothing matches.
func LessonFor(techniques []string) *Lesson {
	for _, technique := range techniques {
		if lesson, ok := lessons[technique]; ok {
			return &lesson
		}
	}
	lesson := defaultLesson
	return &lesson
}
