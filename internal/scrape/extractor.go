package scrape

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/brand-seo/internal/brand"
	"github.com/sells-group/brand-seo/internal/browser"
	"github.com/sells-group/brand-seo/internal/model"
)

// ExtractorConfig holds the selectors consulted by extraction quirks.
type ExtractorConfig struct {
	// BrandLabelSelector locates the brand label for QuirkBrandLabelName.
	BrandLabelSelector string
	// LabelNameSelector locates the product name paired with the brand
	// label when the brand has no name selector of its own.
	LabelNameSelector string
	// DisclaimerBlockSelector is removed from descriptions under
	// QuirkStripDisclaimerBlock.
	DisclaimerBlockSelector string
}

// DefaultExtractorConfig returns the standard quirk selectors.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		BrandLabelSelector:      "div.product-brand",
		LabelNameSelector:       "h1.product-name",
		DisclaimerBlockSelector: "div.tab--disclaimer",
	}
}

// Extractor reads product fields from a product-detail page.
type Extractor struct {
	cfg ExtractorConfig
}

// NewExtractor creates an Extractor.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	return &Extractor{cfg: cfg}
}

// Extract snapshots page and extracts its fields. The only error is a failed
// snapshot; individual fields degrade to absent.
func (e *Extractor) Extract(ctx context.Context, page browser.Page, b *brand.Config) (model.ProductRecord, error) {
	doc, err := page.Document(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: snapshot product page")
	}
	return e.ExtractFields(doc, b), nil
}

// ExtractFields extracts every configured field that is present on doc.
func (e *Extractor) ExtractFields(doc *goquery.Document, b *brand.Config) model.ProductRecord {
	pp := b.ProductPage
	log := zap.L().With(zap.String("brand", b.Key))
	if doc.Url != nil {
		log = log.With(zap.String("url", doc.Url.String()))
	}

	rec := model.ProductRecord{}

	if name, ok := e.name(doc, b); ok {
		rec[model.FieldName] = name
	}

	if pp.PriceSelector != "" {
		if el := first(doc, pp.PriceSelector); el != nil {
			raw := CleanText(el.Text())
			if v, ok := ParsePrice(raw); ok {
				rec[model.FieldPrice] = FormatPrice(v)
			} else {
				log.Warn("scrape: could not parse price", zap.String("raw", raw))
			}
		}
	}

	if pp.DescriptionSelector != "" {
		if el := first(doc, pp.DescriptionSelector); el != nil {
			if b.Has(brand.QuirkStripDisclaimerBlock) && e.cfg.DisclaimerBlockSelector != "" {
				// Work on a copy so the page snapshot stays intact.
				el = el.Clone()
				el.Find(e.cfg.DisclaimerBlockSelector).Remove()
			}
			if desc := SelectionText(el); desc != "" {
				rec[model.FieldDescription] = desc
			}
		}
	}

	if pp.SpecificationsSelector != "" && len(pp.SpecFields) > 0 {
		doc.Find(pp.SpecificationsSelector).Each(func(_ int, el *goquery.Selection) {
			text := CleanText(el.Text())
			lower := strings.ToLower(text)
			for label, key := range pp.SpecFields {
				if strings.Contains(lower, strings.ToLower(label)) {
					rec[key] = text
				}
			}
		})
	}

	if pp.MaterialFromDescription {
		if m, ok := ExtractMaterial(rec[model.FieldDescription]); ok {
			rec[model.FieldMaterial] = m
		}
	}

	return rec
}

// name applies the brand-label quirk or the default name selector.
func (e *Extractor) name(doc *goquery.Document, b *brand.Config) (string, bool) {
	if b.Has(brand.QuirkBrandLabelName) {
		nameSel := b.ProductPage.NameSelector
		if nameSel == "" {
			nameSel = e.cfg.LabelNameSelector
		}
		var parts []string
		for _, sel := range []string{e.cfg.BrandLabelSelector, nameSel} {
			if el := first(doc, sel); el != nil {
				if t := CleanText(el.Text()); t != "" {
					parts = append(parts, t)
				}
			}
		}
		name := strings.Join(parts, " ")
		return name, name != ""
	}

	if b.ProductPage.NameSelector == "" {
		return "", false
	}
	el := first(doc, b.ProductPage.NameSelector)
	if el == nil {
		return "", false
	}
	name := CleanText(el.Text())
	return name, name != ""
}

// first returns the first match for selector, or nil.
func first(doc *goquery.Document, selector string) *goquery.Selection {
	if selector == "" {
		return nil
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil
	}
	return sel
}
