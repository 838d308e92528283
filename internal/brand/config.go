// Package brand loads per-brand site descriptors and the quirk registry that
// adjusts listing collection and product extraction for individual brands.
package brand

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/brand-seo/internal/model"
)

// Link resolution strategies for listing cards.
const (
	// LinkParentAnchor ascends to the nearest enclosing anchor and reads its href.
	LinkParentAnchor = "parent_a_href"
	// LinkDefaultAttribute is used when no attribute is configured.
	LinkDefaultAttribute = "href"
)

// Config describes how to scrape a single brand's storefront.
type Config struct {
	Key              string            `json:"-" yaml:"-"`
	DisplayName      string            `json:"brand" yaml:"brand"`
	BaseURLs         URLList           `json:"base_url" yaml:"base_url"`
	Listing          ListingConfig     `json:"product_listing" yaml:"product_listing"`
	ProductPage      ProductPageConfig `json:"product_page" yaml:"product_page"`
	Quirks           QuirkSet          `json:"quirks,omitempty" yaml:"quirks,omitempty"`
	MustHaveKeywords []string          `json:"must_have_keywords,omitempty" yaml:"must_have_keywords,omitempty"`
}

// ListingConfig locates product cards on a listing page.
type ListingConfig struct {
	CardSelector  string `json:"product_card_selector" yaml:"product_card_selector"`
	LinkAttribute string `json:"product_link_attribute" yaml:"product_link_attribute"`
}

// ProductPageConfig maps product fields to selectors. Every selector is
// optional; an empty selector omits the field.
type ProductPageConfig struct {
	NameSelector            string            `json:"name_selector,omitempty" yaml:"name_selector,omitempty"`
	PriceSelector           string            `json:"price_selector,omitempty" yaml:"price_selector,omitempty"`
	DescriptionSelector     string            `json:"description_selector,omitempty" yaml:"description_selector,omitempty"`
	SpecificationsSelector  string            `json:"specifications_selector,omitempty" yaml:"specifications_selector,omitempty"`
	SpecFields              map[string]string `json:"spec_fields,omitempty" yaml:"spec_fields,omitempty"`
	MaterialFromDescription bool              `json:"material_in_description,omitempty" yaml:"material_in_description,omitempty"`
}

// Has reports whether the brand is flagged with quirk q.
func (c *Config) Has(q Quirk) bool {
	return c.Quirks.Has(q)
}

// LinkStrategy returns the configured link attribute, defaulting to href.
func (c *Config) LinkStrategy() string {
	if a := strings.TrimSpace(c.Listing.LinkAttribute); a != "" {
		return a
	}
	return LinkDefaultAttribute
}

// Validate checks that the descriptor can drive a scrape.
func (c *Config) Validate() error {
	var errs []string
	if len(c.BaseURLs) == 0 {
		errs = append(errs, "base_url is required")
	}
	if strings.TrimSpace(c.Listing.CardSelector) == "" {
		errs = append(errs, "product_listing.product_card_selector is required")
	}
	if strings.TrimSpace(c.DisplayName) == "" {
		errs = append(errs, "brand is required")
	}
	for label, key := range c.ProductPage.SpecFields {
		switch {
		case strings.TrimSpace(key) == "":
			errs = append(errs, fmt.Sprintf("spec_fields[%q] has an empty field name", label))
		case model.IsReservedField(key):
			errs = append(errs, fmt.Sprintf("spec_fields[%q] uses reserved field name %q", label, key))
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("brand %s: %s", c.Key, strings.Join(errs, "; "))
	}
	return nil
}

// URLList accepts either a single URL string or a list of URLs.
type URLList []string

// UnmarshalJSON implements json.Unmarshaler.
func (u *URLList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*u = compactURLs([]string{single})
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return eris.Wrap(err, "brand: base_url must be a string or list of strings")
	}
	*u = compactURLs(many)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (u *URLList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*u = compactURLs([]string{node.Value})
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return eris.Wrap(err, "brand: decode base_url list")
		}
		*u = compactURLs(many)
		return nil
	default:
		return eris.New("brand: base_url must be a string or list of strings")
	}
}

func compactURLs(in []string) URLList {
	out := make(URLList, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
