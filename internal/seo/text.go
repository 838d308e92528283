package seo

import (
	"regexp"
	"strings"
	"unicode"
)

var sentenceSplitRe = regexp.MustCompile(`[.!?]`)

// Tokenize lowercases text and splits it into letter/digit runs. Punctuation
// never forms a token.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// splitSentences splits on terminal punctuation. Blank segments are kept so
// callers can see the raw segment count.
func splitSentences(text string) []string {
	return sentenceSplitRe.Split(text, -1)
}

// sentenceLengths returns the token count of each non-blank sentence.
func sentenceLengths(text string) []int {
	var out []int
	for _, s := range splitSentences(text) {
		if strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, len(Tokenize(s)))
	}
	return out
}

// contentTokens returns the distinct non-stop-word tokens of text.
func contentTokens(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range Tokenize(text) {
		if _, stop := stopWords[t]; stop {
			continue
		}
		set[t] = struct{}{}
	}
	return set
}

func containsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// hasTripleRepeat reports whether any rune other than a newline appears
// three times in a row.
func hasTripleRepeat(text string) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == '\n' {
			run = 0
			continue
		}
		if run > 0 && r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run >= 3 {
			return true
		}
	}
	return false
}

// IsStopWord reports whether token is an English stop word.
func IsStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}
