package seo

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ReadingEaseFunc computes a reading-ease value for text.
type ReadingEaseFunc func(text string) (float64, error)

// ErrNoWords is returned when text has nothing to measure.
var ErrNoWords = eris.New("seo: text has no words")

// FleschReadingEase computes the Flesch reading-ease formula. Syllables are
// estimated from vowel groups.
func FleschReadingEase(text string) (float64, error) {
	words := Tokenize(text)
	if len(words) == 0 {
		return 0, ErrNoWords
	}
	sentences := len(sentenceLengths(text))
	if sentences == 0 {
		sentences = 1
	}
	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}

	wps := float64(len(words)) / float64(sentences)
	spw := float64(syllables) / float64(len(words))
	return 206.835 - 1.015*wps - 84.6*spw, nil
}

func isVowel(r rune) bool {
	return strings.ContainsRune("aeiouy", r)
}

// countSyllables estimates syllables in a lowercase word. Every word has at
// least one.
func countSyllables(word string) int {
	runes := []rune(word)
	count := 0
	prevVowel := false
	for _, r := range runes {
		v := isVowel(r)
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}
	// Silent trailing e, except "-le" endings like "table".
	if n := len(runes); count > 1 && n > 2 && runes[n-1] == 'e' && !isVowel(runes[n-2]) &&
		!(runes[n-2] == 'l' && !isVowel(runes[n-3])) {
		count--
	}
	return max(count, 1)
}
