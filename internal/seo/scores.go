// Package seo scores product description text on five independent 0-100
// metrics and aggregates them per brand.
package seo

import (
	"strings"

	"github.com/sells-group/brand-seo/internal/brand"
	"github.com/sells-group/brand-seo/internal/model"
)

var (
	qualityAdjectives = []string{"elegant", "luxurious", "vibrant", "classic", "modern", "trendy"}
	technicalTerms    = []string{"cambric fabric", "jacquard", "chiffon", "lawn", "cotton"}
	callsToAction     = []string{"shop now", "order today", "don't miss", "grab yours"}
	jargonTerms       = []string{"jacquard", "cambric", "fusionwear"}
)

// DefaultMustHaveKeywords lists the vocabulary each known brand is expected
// to use, keyed by title-cased brand name.
var DefaultMustHaveKeywords = map[string][]string{
	"Khaadi":         {"traditional", "embroidered", "floral", "casual"},
	"Outfitters":     {"casual", "relaxed fit", "streetwear", "breathable"},
	"Sana Safinaz":   {"luxury", "chiffon", "formal", "collection", "elegant"},
	"Alkaram Studio": {"cotton", "cambric", "2-piece", "ethnic wear", "printed"},
	"Breakout":       {"urban", "denim", "minimalist", "street style"},
}

// KeywordDensityScore scores how densely the keyword phrases occur in
// description. Each word of each phrase is counted separately against the
// token stream. Density peaks at 4-7% and is penalised for both sparsity and
// stuffing; no hits at all scores 0.
func KeywordDensityScore(description string, keywords []string) int {
	tokens := Tokenize(description)
	if len(tokens) == 0 {
		return 0
	}
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}

	hits := 0
	for _, kw := range keywords {
		for _, w := range strings.Fields(strings.ToLower(kw)) {
			hits += counts[w]
		}
	}
	if hits == 0 {
		return 0
	}
	return densityBucket(float64(hits) * 100 / float64(len(tokens)))
}

func densityBucket(density float64) int {
	switch {
	case density >= 4 && density <= 7:
		return 100
	case density >= 2 && density < 4:
		return 80
	case density >= 1 && density < 2:
		return 60
	case density > 0 && density < 1:
		return 30
	case density > 7 && density <= 10:
		return 70
	case density > 10 && density <= 15:
		return 40
	case density > 15:
		return 20
	default:
		return 50
	}
}

// ContentQualityScore applies an additive rubric covering length, sentence
// variety, descriptive and technical vocabulary, calls to action, lexical
// diversity and basic punctuation.
func ContentQualityScore(description string) int {
	lower := strings.ToLower(description)
	tokens := Tokenize(description)
	score := 0

	if n := len(tokens); n >= 50 && n <= 150 {
		score += 20
	}

	lengths := make(map[int]struct{})
	for _, l := range sentenceLengths(description) {
		lengths[l] = struct{}{}
	}
	if len(lengths) > 1 {
		score += 15
	}

	if containsAny(lower, qualityAdjectives) {
		score += 15
	}
	if containsAny(lower, technicalTerms) {
		score += 10
	}
	if containsAny(lower, callsToAction) {
		score += 10
	}

	unique := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		unique[t] = struct{}{}
	}
	if float64(len(unique))/(float64(len(tokens))+1e-5) > 0.7 {
		score += 10
	}

	if strings.Contains(description, ".") && !hasTripleRepeat(description) {
		score += 20
	} else {
		score += 10
	}

	return min(score, 100)
}

// BrandConsistencyScore is the percentage of mustHave phrases found in
// description (case-insensitive substring). An empty list scores 50.
func BrandConsistencyScore(description string, mustHave []string) int {
	if len(mustHave) == 0 {
		return 50
	}
	lower := strings.ToLower(description)
	matches := 0
	for _, kw := range mustHave {
		if strings.Contains(lower, strings.ToLower(kw)) {
			matches++
		}
	}
	return matches * 100 / len(mustHave)
}

// UniquenessScore compares description against every other entry of corpus
// by Jaccard similarity of stop-word-filtered token sets and maps the highest
// similarity onto a threshold ladder. Entries identical to description are
// skipped; with nothing to compare the score is 100.
func UniquenessScore(description string, corpus []string) int {
	if len(corpus) == 0 {
		return 100
	}
	self := contentTokens(description)

	maxSim := -1.0
	for _, other := range corpus {
		if other == description {
			continue
		}
		if sim := jaccard(self, contentTokens(other)); sim > maxSim {
			maxSim = sim
		}
	}

	switch {
	case maxSim < 0:
		return 100
	case maxSim < 0.3:
		return 100
	case maxSim < 0.5:
		return 70
	case maxSim < 0.7:
		return 40
	default:
		return 10
	}
}

func jaccard(a, b map[string]struct{}) float64 {
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / (float64(union) + 1e-5)
}

// ReadabilityScore scores description with the Flesch reading-ease formula,
// falling back to a structural heuristic when the formula cannot be applied.
func ReadabilityScore(description string) int {
	return readabilityScore(description, FleschReadingEase)
}

func readabilityScore(description string, ease ReadingEaseFunc) int {
	if v, err := ease(description); err == nil {
		switch {
		case v < 30:
			return 40
		case v < 60:
			return 70
		default:
			return 100
		}
	}
	return readabilityFallback(description)
}

func readabilityFallback(description string) int {
	score := 0
	if n := len(Tokenize(description)); n >= 50 && n <= 150 {
		score += 20
	}

	parts := splitSentences(description)
	total := 0
	for _, l := range sentenceLengths(description) {
		total += l
	}
	if avg := float64(total) / float64(len(parts)); avg >= 10 && avg <= 20 {
		score += 20
	}

	if containsAny(strings.ToLower(description), jargonTerms) {
		score += 15
	} else {
		score += 30
	}

	if strings.Contains(description, "\n") {
		score += 30
	} else {
		score += 15
	}
	return min(score, 100)
}

// Scorer computes score sets with brand-aware lookups.
type Scorer struct {
	// MustHave maps title-cased brand names to their expected vocabulary.
	MustHave map[string][]string
	// ReadingEase computes reading ease; nil uses FleschReadingEase.
	ReadingEase ReadingEaseFunc
}

// NewScorer returns a Scorer using the built-in brand vocabulary, with
// overrides replacing entries per brand.
func NewScorer(overrides map[string][]string) *Scorer {
	mustHave := make(map[string][]string, len(DefaultMustHaveKeywords)+len(overrides))
	for k, v := range DefaultMustHaveKeywords {
		mustHave[k] = v
	}
	for k, v := range overrides {
		mustHave[brand.NormalizeBrand(k)] = v
	}
	return &Scorer{MustHave: mustHave}
}

// Score computes all five sub-scores for one description. keywords are the
// brand's extracted keyword phrases; corpus is the comparison set for
// uniqueness and may include description itself.
func (s *Scorer) Score(brandName, description string, keywords, corpus []string) model.ScoreSet {
	ease := s.ReadingEase
	if ease == nil {
		ease = FleschReadingEase
	}
	return model.ScoreSet{
		KeywordDensity:   KeywordDensityScore(description, keywords),
		ContentQuality:   ContentQualityScore(description),
		BrandConsistency: BrandConsistencyScore(description, s.MustHave[brand.NormalizeBrand(brandName)]),
		Uniqueness:       UniquenessScore(description, corpus),
		Readability:      readabilityScore(description, ease),
	}
}

// Aggregate averages each sub-score across sets, rounded to two decimals.
func Aggregate(sets []model.ScoreSet) model.ScoreAverages {
	return model.AverageScores(sets)
}
