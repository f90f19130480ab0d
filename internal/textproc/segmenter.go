package textproc

import (
	"regexp"
	"strconv"
	"strings"
)

// Fragment is one question's slice of a script, keyed by the number parsed
// from its question marker.
type Fragment struct {
	ID   int
	Text string
}

// Marker grammar: "Q" or "Question", a number, then one of ". ) :".
// The answer anchor keeps only the text following an "Answer:" label.
var (
	questionMarker = regexp.MustCompile(`(?i)Q(?:uestion)?\s*(\d+)\s*[.):]`)
	answerAnchor   = regexp.MustCompile(`(?i)answer\s*:\s*`)
)

type marker struct {
	id         int
	start, end int
}

// Segment cleans text and splits it into per-question fragments in first-seen
// marker order. A marker starting before the previous marker's end is
// discarded; an adjacent marker ("Q1:Q2:") starts a new fragment. A marker
// whose number is zero stays plain text inside the surrounding fragment.
// When no markers are found the whole cleaned text is returned verbatim as a
// single fragment with ID 1.
func Segment(text string) []Fragment {
	cleaned := Clean(text)
	if cleaned == "" {
		return nil
	}

	matches := questionMarker.FindAllStringSubmatchIndex(cleaned, -1)

	kept := make([]marker, 0, len(matches))
	lastEnd := -1
	for _, m := range matches {
		if m[0] < lastEnd {
			continue
		}
		id, err := strconv.Atoi(cleaned[m[2]:m[3]])
		if err != nil || id <= 0 {
			continue
		}
		kept = append(kept, marker{id: id, start: m[0], end: m[1]})
		lastEnd = m[1]
	}

	if len(kept) == 0 {
		return []Fragment{{ID: 1, Text: cleaned}}
	}

	fragments := make([]Fragment, 0, len(kept))
	for i, m := range kept {
		end := len(cleaned)
		if i+1 < len(kept) {
			end = kept[i+1].start
		}
		fragment := strings.TrimSpace(cleaned[m.end:end])
		fragments = append(fragments, Fragment{ID: m.id, Text: extractAnswer(fragment)})
	}
	return fragments
}

// SegmentMap returns the fragments keyed by question ID. Duplicate markers
// resolve last-write-wins.
func SegmentMap(text string) map[int]string {
	fragments := Segment(text)
	out := make(map[int]string, len(fragments))
	for _, f := range fragments {
		out[f.ID] = f.Text
	}
	return out
}

func extractAnswer(fragment string) string {
	loc := answerAnchor.FindStringIndex(fragment)
	if loc == nil {
		return fragment
	}
	return strings.TrimSpace(fragment[loc[1]:])
}
