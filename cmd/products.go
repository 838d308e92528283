package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/brand-seo/internal/export"
	"github.com/sells-group/brand-seo/internal/model"
	"github.com/sells-group/brand-seo/internal/store"
)

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Show stored products, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "products")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		brandName, _ := cmd.Flags().GetString("brand")
		limit, _ := cmd.Flags().GetInt("limit")
		cols, _ := cmd.Flags().GetStringSlice("columns")

		total, err := st.CountProducts(ctx, brandName)
		if err != nil {
			return eris.Wrap(err, "products")
		}
		records, err := st.RecentProducts(ctx, store.ProductFilter{Brand: brandName, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "products")
		}
		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No products found.")
			return nil
		}

		formatProducts(os.Stdout, cols, records)
		fmt.Fprintf(os.Stdout, "\n%d of %d products\n", len(records), total)
		return nil
	},
}

var productsColumnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "List the product table's columns",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "products")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		cols, err := st.ProductColumns(ctx)
		if err != nil {
			return eris.Wrap(err, "products columns")
		}
		for _, c := range export.OrderColumns(cols) {
			fmt.Fprintln(os.Stdout, c)
		}
		return nil
	},
}

var productsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-brand counts, average prices and the price distribution",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "products")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := st.ProductStats(ctx)
		if err != nil {
			return eris.Wrap(err, "products stats")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}
		formatProductStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	productsStatsCmd.Flags().Bool("json", false, "print the stats as JSON")

	productsCmd.Flags().String("brand", "", "only products of this brand")
	productsCmd.Flags().Int("limit", 20, "max number of products to display")
	productsCmd.Flags().StringSlice("columns", []string{model.FieldBrand, model.FieldName, model.FieldPrice, model.FieldURL}, "columns to display")

	productsCmd.AddCommand(productsColumnsCmd, productsStatsCmd)
	rootCmd.AddCommand(productsCmd)
}

// formatProducts writes the selected columns of records as a table. Long
// values are shortened for display.
func formatProducts(out io.Writer, cols []string, records []model.ProductRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.ToUpper(strings.Join(cols, "\t")))
	for _, r := range records {
		vals := make([]string, len(cols))
		for i, c := range cols {
			vals[i] = truncate(r[c], 60)
		}
		_, _ = fmt.Fprintln(w, strings.Join(vals, "\t"))
	}
	_ = w.Flush()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// formatProductStats writes the per-brand table followed by the price bands.
func formatProductStats(out io.Writer, stats *store.ProductStats) {
	if len(stats.Brands) == 0 {
		_, _ = fmt.Fprintln(out, "No products stored.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "BRAND\tPRODUCTS\tAVG PRICE")
	for _, b := range stats.Brands {
		avg := "-"
		if b.AvgPrice != nil {
			avg = fmt.Sprintf("%.2f", *b.AvgPrice)
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", b.Brand, b.Count, avg)
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "PRICE (PKR)\tPRODUCTS")
	for _, b := range stats.PriceDistribution {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", b.Label, b.Count)
	}
	_ = w.Flush()
}
