package brand

import (
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Quirk is a named brand-specific deviation from the default collection or
// extraction algorithm.
type Quirk string

const (
	// QuirkScrollToLoad scrolls the listing page to force lazy cards to render.
	QuirkScrollToLoad Quirk = "scroll_to_load"
	// QuirkBrandLabelName builds the product name from a separate brand label
	// element followed by the product-name element.
	QuirkBrandLabelName Quirk = "brand_label_name"
	// QuirkStripDisclaimerBlock removes an embedded disclaimer block from the
	// description markup before text extraction.
	QuirkStripDisclaimerBlock Quirk = "strip_disclaimer_block"
)

var knownQuirks = map[Quirk]bool{
	QuirkScrollToLoad:         true,
	QuirkBrandLabelName:       true,
	QuirkStripDisclaimerBlock: true,
}

// DefaultQuirks is the built-in quirk registry keyed by brand key. Quirks
// listed in a descriptor are added to these.
var DefaultQuirks = map[string][]Quirk{
	"khaadi":         {QuirkScrollToLoad, QuirkBrandLabelName},
	"outfitters":     {QuirkScrollToLoad},
	"breakout":       {QuirkScrollToLoad},
	"alkaram_studio": {QuirkStripDisclaimerBlock},
}

// QuirkSet is a set of quirks.
type QuirkSet map[Quirk]struct{}

// NewQuirkSet builds a set from the given quirks.
func NewQuirkSet(qs ...Quirk) QuirkSet {
	s := make(QuirkSet, len(qs))
	for _, q := range qs {
		s[q] = struct{}{}
	}
	return s
}

// Has reports whether q is in the set.
func (s QuirkSet) Has(q Quirk) bool {
	_, ok := s[q]
	return ok
}

// List returns the quirks in sorted order.
func (s QuirkSet) List() []Quirk {
	out := make([]Quirk, 0, len(s))
	for q := range s {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *QuirkSet) fromNames(names []string) error {
	set := make(QuirkSet, len(names))
	for _, n := range names {
		q := Quirk(n)
		if !knownQuirks[q] {
			return eris.Errorf("brand: unknown quirk %q", n)
		}
		set[q] = struct{}{}
	}
	*s = set
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *QuirkSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return eris.Wrap(err, "brand: quirks must be a list of strings")
	}
	return s.fromNames(names)
}

// MarshalJSON implements json.Marshaler.
func (s QuirkSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *QuirkSet) UnmarshalYAML(node *yaml.Node) error {
	var names []string
	if err := node.Decode(&names); err != nil {
		return eris.Wrap(err, "brand: quirks must be a list of strings")
	}
	return s.fromNames(names)
}

func withDefaults(key string, s QuirkSet) QuirkSet {
	out := make(QuirkSet, len(s))
	for q := range s {
		out[q] = struct{}{}
	}
	for _, q := range DefaultQuirks[key] {
		out[q] = struct{}{}
	}
	return out
}
