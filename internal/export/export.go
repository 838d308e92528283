// Package export writes stored product records and SEO analytics to
// spreadsheet and CSV files.
package export

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/brand-seo/internal/model"
)

const (
	productsSheet  = "Products"
	analyticsSheet = "SEO"
)

// leadingColumns are placed first, in this order, when present.
var leadingColumns = []string{
	model.FieldBrand,
	model.FieldName,
	model.FieldPrice,
	model.FieldMaterial,
	model.FieldDescription,
	model.FieldURL,
}

// OrderColumns puts the guaranteed record fields first and the remaining
// columns after them alphabetically.
func OrderColumns(columns []string) []string {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	out := make([]string, 0, len(columns))
	for _, c := range leadingColumns {
		if present[c] {
			out = append(out, c)
			delete(present, c)
		}
	}
	rest := make([]string, 0, len(present))
	for c := range present {
		rest = append(rest, c)
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// WriteCSV writes a header row followed by one row per record. Missing
// fields are written as empty cells.
func WriteCSV(w io.Writer, columns []string, records []model.ProductRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	row := make([]string, len(columns))
	for _, r := range records {
		for i, c := range columns {
			row[i] = r[c]
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes records to a single-sheet workbook at path.
func WriteXLSX(path string, columns []string, records []model.ProductRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(productsSheet)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	addStringRow(sheet, columns)
	for _, r := range records {
		row := sheet.AddRow()
		for _, c := range columns {
			cell := row.AddCell()
			v, ok := r[c]
			if !ok {
				continue
			}
			if c == model.FieldPrice {
				if n, err := strconv.ParseFloat(v, 64); err == nil {
					cell.SetFloat(n)
					continue
				}
			}
			cell.SetString(v)
		}
	}
	return save(f, path)
}

// WriteAnalyticsXLSX writes one row of averaged sub-scores per brand,
// ordered by brand name.
func WriteAnalyticsXLSX(path string, analytics map[string]model.BrandAnalytics) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(analyticsSheet)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	addStringRow(sheet, []string{
		"brand", "keyword_density", "content_quality", "brand_consistency",
		"uniqueness", "readability", "keywords",
	})

	brands := make([]string, 0, len(analytics))
	for b := range analytics {
		brands = append(brands, b)
	}
	sort.Strings(brands)

	for _, b := range brands {
		a := analytics[b]
		row := sheet.AddRow()
		row.AddCell().SetString(b)
		for _, v := range []float64{
			a.AvgScores.KeywordDensity,
			a.AvgScores.ContentQuality,
			a.AvgScores.BrandConsistency,
			a.AvgScores.Uniqueness,
			a.AvgScores.Readability,
		} {
			row.AddCell().SetFloat(v)
		}
		row.AddCell().SetString(strings.Join(a.Keywords, ", "))
	}
	return save(f, path)
}

func addStringRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func save(f *xlsx.File, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "export: create dir %s", dir)
		}
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}
