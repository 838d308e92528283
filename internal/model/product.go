package model

import (
	"sort"
	"strings"
)

// Guaranteed product record fields.
const (
	FieldURL         = "url"
	FieldBrand       = "brand"
	FieldName        = "name"
	FieldPrice       = "price"
	FieldDescription = "description"
	FieldMaterial    = "material"
)

// reservedFields name the stores' insertion-order columns. SQLite resolves
// rowid, _rowid_ and oid to a declared column of that name when one exists.
var reservedFields = map[string]struct{}{
	"rowid":   {},
	"_rowid_": {},
	"oid":     {},
	"row_id":  {},
}

// IsReservedField reports whether name cannot be used as a record field.
func IsReservedField(name string) bool {
	_, ok := reservedFields[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// ProductRecord is an open-ended mapping of field name to text value. Every
// record produced by a scrape carries at least FieldURL and FieldBrand.
type ProductRecord map[string]string

// URL returns the product page URL.
func (r ProductRecord) URL() string { return r[FieldURL] }

// Brand returns the brand the product was scraped for.
func (r ProductRecord) Brand() string { return r[FieldBrand] }

// Description returns the extracted description text, if any.
func (r ProductRecord) Description() string { return r[FieldDescription] }

// Fields returns the record's field names in sorted order.
func (r ProductRecord) Fields() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ScrapeResult is the outcome of a single brand scrape. Partial success is a
// normal outcome: Records and FailedURLs are both always reported.
type ScrapeResult struct {
	Brand      string          `json:"brand"`
	Records    []ProductRecord `json:"records"`
	FailedURLs []string        `json:"failed_urls"`
	Stopped    bool            `json:"stopped"`
}

// UnionFields returns the sorted union of field names across records.
func UnionFields(records []ProductRecord) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
