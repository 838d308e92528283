package scrape

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	currencyRe   = regexp.MustCompile(`(?i)(\bPKR\b|\bRs\.?|\bRupees?\b|\bUSD\b|[₨$€£])`)
	nonNumericRe = regexp.MustCompile(`[^\d.]`)
	firstNumRe   = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	materialRe   = regexp.MustCompile(`(?i)Material:?\s*([\w\s,]+)`)
)

// CleanText trims s and collapses internal whitespace runs to one space.
func CleanText(s string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// ParsePrice extracts a numeric price from storefront text such as
// "PKR 9,990" or "Rs. 1,250.50". The second result is false when no number
// can be recovered.
func ParsePrice(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	cleaned := nonNumericRe.ReplaceAllString(currencyRe.ReplaceAllString(raw, ""), "")
	if cleaned != "" {
		if v, err := strconv.ParseFloat(cleaned, 64); err == nil {
			return v, true
		}
	}

	// Multiple dots or stray digits: take the first number in the raw text.
	if m := firstNumRe.FindString(raw); m != "" {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// FormatPrice renders a parsed price for text storage.
func FormatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ExtractMaterial finds a "Material: ..." clause in description text.
func ExtractMaterial(description string) (string, bool) {
	m := materialRe.FindStringSubmatch(description)
	if len(m) < 2 {
		return "", false
	}
	v := strings.TrimSpace(m[1])
	return v, v != ""
}

// SelectionText returns the visible text under sel with text nodes joined by
// single spaces, skipping script and style content.
func SelectionText(sel *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return CleanText(strings.Join(parts, " "))
}
