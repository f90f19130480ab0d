package scorer

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// GrammarChecker reports the number of grammar/fluency issues in a text.
type GrammarChecker interface {
	Check(ctx context.Context, text string) (int, error)
}

// LanguageToolChecker counts issues via a LanguageTool HTTP server.
type LanguageToolChecker struct {
	client *resty.Client
	url    string
}

// NewLanguageToolChecker builds a checker against the given server base URL,
// e.g. "http://localhost:8010".
func NewLanguageToolChecker(baseURL string, timeout time.Duration) *LanguageToolChecker {
	client := resty.New()
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &LanguageToolChecker{
		client: client,
		url:    strings.TrimRight(baseURL, "/") + "/v2/check",
	}
}

// Check posts the text and returns the number of reported matches.
func (c *LanguageToolChecker) Check(ctx context.Context, text string) (int, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"text":     text,
			"language": "en-US",
		}).
		Post(c.url)
	if err != nil {
		return 0, fmt.Errorf("languagetool check: %w", err)
	}
	if !resp.IsSuccess() {
		return 0, fmt.Errorf("languagetool check: unexpected status %d", resp.StatusCode())
	}

	matches := gjson.GetBytes(resp.Body(), "matches")
	if !matches.IsArray() {
		return 0, fmt.Errorf("languagetool check: malformed response body")
	}
	return len(matches.Array()), nil
}

var (
	sentenceSplit = regexp.MustCompile(`[.!?]+`)
	repeatedPunct = regexp.MustCompile(`[!?]{2,}|\.{3,}`)
)

// heuristicGrammarIssues approximates an issue count without the external
// tool: sentences shorter than three words, runs of repeated terminal
// punctuation, and single-character tokens weighted at one tenth each.
func heuristicGrammarIssues(text string) int {
	short := 0
	for _, sentence := range sentenceSplit.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence != "" && len(strings.Fields(sentence)) < 3 {
			short++
		}
	}

	repeated := len(repeatedPunct.FindAllString(text, -1))

	single := 0
	for _, tok := range strings.Fields(text) {
		if len(tok) == 1 {
			single++
		}
	}

	return short + repeated + single/10
}
