// Package store persists scraped product records into a single products
// table whose text columns grow with the data, plus scrape run status.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/brand-seo/internal/model"
)

// ProductsTable is the dynamic-schema table holding every scraped record.
const ProductsTable = "products"

// DisclaimerText is the boilerplate some storefronts place in the
// description slot. Records whose description is only this carry no product
// information.
const DisclaimerText = "Disclaimer: Due to the difference in lighting used during photoshoots, the color or texture of the actual product may slightly vary from the image."

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = eris.New("store: run not found")

// ProductFilter narrows product reads.
type ProductFilter struct {
	// Brand matches the stored brand case-insensitively. Empty matches all.
	Brand string
	// Limit caps the result; <= 0 means 100.
	Limit int
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Brand  string          `json:"brand,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// PersistResult reports what a persist call did.
type PersistResult struct {
	Received     int      `json:"received"`
	Filtered     int      `json:"filtered"`
	Inserted     int      `json:"inserted"`
	Failed       int      `json:"failed"`
	AddedColumns []string `json:"added_columns,omitempty"`
}

// Store defines the persistence interface for scraping and analytics.
type Store interface {
	// Products
	PersistProducts(ctx context.Context, records []model.ProductRecord) (*PersistResult, error)
	ProductColumns(ctx context.Context) ([]string, error)
	CountProducts(ctx context.Context, brand string) (int, error)
	RecentProducts(ctx context.Context, filter ProductFilter) ([]model.ProductRecord, error)
	BrandDescriptions(ctx context.Context) (map[string][]string, error)
	ProductStats(ctx context.Context) (*ProductStats, error)

	// Runs
	CreateRun(ctx context.Context, brand string, target int) (*model.ScrapeRun, error)
	UpdateRun(ctx context.Context, runID string, status model.RunStatus, scraped, failed int) error
	GetRun(ctx context.Context, runID string) (*model.ScrapeRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.ScrapeRun, error)
	RequestStop(ctx context.Context, runID string) error
	StopRequested(ctx context.Context, runID string) (bool, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// disclaimerLead is the shortest truncation still treated as the disclaimer.
const disclaimerLead = "Disclaimer:"

// IsDisclaimerOnly reports whether description, once trimmed, is the
// disclaimer sentence or a truncated prefix of it that keeps at least the
// "Disclaimer:" lead.
func IsDisclaimerOnly(description string) bool {
	d := strings.Join(strings.Fields(description), " ")
	if len(d) < len(disclaimerLead) {
		return false
	}
	return strings.HasPrefix(DisclaimerText, d)
}

// usable drops records without product content: disclaimer-only or blank
// descriptions. Records without a description field at all are kept.
func usable(records []model.ProductRecord) ([]model.ProductRecord, int) {
	out := make([]model.ProductRecord, 0, len(records))
	for _, r := range records {
		if desc, ok := r[model.FieldDescription]; ok {
			if strings.TrimSpace(desc) == "" || IsDisclaimerOnly(desc) {
				continue
			}
		}
		out = append(out, r)
	}
	return out, len(records) - len(out)
}

// checkFieldNames rejects columns that would collide with insertion order.
func checkFieldNames(cols []string) error {
	for _, c := range cols {
		if model.IsReservedField(c) {
			return eris.Errorf("store: reserved field name %q", c)
		}
	}
	return nil
}

// missingColumns returns the entries of want not present in have, in order.
func missingColumns(want, have []string) []string {
	seen := make(map[string]struct{}, len(have))
	for _, c := range have {
		seen[c] = struct{}{}
	}
	var out []string
	for _, c := range want {
		if _, ok := seen[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// quoteIdent quotes a column name for use in SQL. Field names come from
// brand descriptors and may contain any character.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteIdents(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteIdent(n)
	}
	return out
}

func contains(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
