package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/brand-seo/internal/seo"
	"github.com/sells-group/brand-seo/pkg/anthropic"
)

// KeywordExtractor derives a brand's SEO keyword phrases from its product
// descriptions.
type KeywordExtractor interface {
	Extract(ctx context.Context, brandName string, descriptions []string) ([]string, error)
}

const keywordSystemPrompt = "You are an SEO analyst for the Pakistani e-commerce market. " +
	"From the product descriptions of one brand, extract a concise, non-redundant set of " +
	"high-impact SEO keywords and phrases that would help these products rank in Google and " +
	"local e-commerce search. Focus on product types, materials, styles and local search intent. " +
	"Never repeat a keyword. Respond with a JSON list of strings and nothing else."

var jsonListRe = regexp.MustCompile(`(?s)\[.*\]`)

// LLMExtractor asks a text generation service for keywords.
type LLMExtractor struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewLLMExtractor creates an LLMExtractor.
func NewLLMExtractor(client anthropic.Client, model string, maxTokens int64) *LLMExtractor {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	return &LLMExtractor{client: client, model: model, maxTokens: maxTokens}
}

// Extract sends the brand's descriptions and parses the returned list. An
// unparseable reply yields an empty list, not an error.
func (e *LLMExtractor) Extract(ctx context.Context, brandName string, descriptions []string) ([]string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Brand: %s\nProduct Descriptions:\n", brandName)
	for _, d := range descriptions {
		fmt.Fprintf(&b, "- %s\n", d)
	}
	b.WriteString("\nReturn the keywords as a JSON list.")

	temp := 0.2
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		System:      []anthropic.SystemBlock{{Text: keywordSystemPrompt}},
		Messages:    []anthropic.Message{{Role: "user", Content: b.String()}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "analytics: extract keywords for %s", brandName)
	}
	resp.Usage.LogCost(e.model, "seo_keywords")

	keywords := ParseKeywordList(resp.Text())
	if len(keywords) == 0 {
		zap.L().Warn("analytics: no keyword list in model reply", zap.String("brand", brandName))
	}
	return keywords, nil
}

// ParseKeywordList reads a JSON list of strings from text, falling back to
// the outermost [...] span when the reply has prose around it. Non-string
// entries are dropped.
func ParseKeywordList(text string) []string {
	if list, ok := decodeList(strings.TrimSpace(text)); ok {
		return list
	}
	if m := jsonListRe.FindString(text); m != "" {
		if list, ok := decodeList(m); ok {
			return list
		}
	}
	return []string{}
}

func decodeList(s string) ([]string, bool) {
	var raw []any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if str, ok := v.(string); ok {
			if str = strings.TrimSpace(str); str != "" {
				out = append(out, str)
			}
		}
	}
	return out, true
}

// FrequencyExtractor picks the most frequent content words. It needs no
// external service and is used when no API key is configured.
type FrequencyExtractor struct {
	TopN int
}

// Extract returns up to TopN tokens ordered by frequency, then alphabetically.
func (f FrequencyExtractor) Extract(_ context.Context, _ string, descriptions []string) ([]string, error) {
	n := f.TopN
	if n <= 0 {
		n = 10
	}

	counts := make(map[string]int)
	for _, d := range descriptions {
		for _, t := range seo.Tokenize(d) {
			if len(t) < 3 || seo.IsStopWord(t) || isNumeric(t) {
				continue
			}
			counts[t]++
		}
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words, nil
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
