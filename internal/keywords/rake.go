// Package keywords ranks candidate phrases in a text by importance using the
// RAKE scheme: candidate phrases are maximal runs of content words between
// stopwords and punctuation, each word is scored by co-occurrence degree over
// frequency, and a phrase scores the sum of its word scores.
package keywords

import (
	"sort"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
)

// DefaultLimit is the nominal cap on returned phrases.
const DefaultLimit = 15

// Extractor ranks key phrases in a text.
type Extractor struct {
	limit  int
	logger zerolog.Logger
}

// NewExtractor builds an extractor with the given default phrase limit.
func NewExtractor(limit int, logger zerolog.Logger) *Extractor {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Extractor{
		limit:  limit,
		logger: logger.With().Str("component", "keyword_extractor").Logger(),
	}
}

// Extract returns at most limit top-ranked phrases, most important first,
// lowercased. A non-positive limit falls back to the extractor's default.
// Empty input yields an empty result.
func (e *Extractor) Extract(text string, limit int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if limit <= 0 {
		limit = e.limit
	}

	phrases := candidatePhrases(text)
	if len(phrases) == 0 {
		return nil
	}
	scores := wordScores(phrases)

	type ranked struct {
		phrase string
		score  float64
		pos    int
	}
	seen := make(map[string]bool, len(phrases))
	candidates := make([]ranked, 0, len(phrases))
	for i, words := range phrases {
		phrase := strings.Join(words, " ")
		if seen[phrase] {
			continue
		}
		seen[phrase] = true
		var score float64
		for _, w := range words {
			score += scores[w]
		}
		candidates = append(candidates, ranked{phrase: phrase, score: score, pos: i})
	}

	// ties break on first occurrence so results are deterministic
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].pos < candidates[j].pos
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.phrase
	}
	e.logger.Debug().Int("phrases", len(out)).Msg("extracted keywords")
	return out
}

type token struct {
	word     string
	boundary bool
}

func tokenize(text string) []token {
	var tokens []token
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, token{word: strings.ToLower(word.String())})
			word.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'':
			word.WriteRune(r)
		case unicode.IsSpace(r):
			flush()
		default:
			flush()
			tokens = append(tokens, token{boundary: true})
		}
	}
	flush()
	return tokens
}

// candidatePhrases splits the text at stopwords and punctuation into maximal
// content-word runs.
func candidatePhrases(text string) [][]string {
	var phrases [][]string
	var current []string
	flush := func() {
		if len(current) > 0 {
			phrases = append(phrases, current)
			current = nil
		}
	}
	for _, tok := range tokenize(text) {
		if tok.boundary || stopwords[tok.word] {
			flush()
			continue
		}
		current = append(current, tok.word)
	}
	flush()
	return phrases
}

// wordScores assigns each content word degree(w)/frequency(w), where degree
// counts co-occurring words within candidate phrases (including the word itself).
func wordScores(phrases [][]string) map[string]float64 {
	frequency := make(map[string]int)
	degree := make(map[string]int)
	for _, words := range phrases {
		for _, w := range words {
			frequency[w]++
			degree[w] += len(words) - 1
		}
	}
	scores := make(map[string]float64, len(frequency))
	for w, f := range frequency {
		scores[w] = float64(degree[w]+f) / float64(f)
	}
	return scores
}
