package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/brand-seo/internal/export"
	"github.com/sells-group/brand-seo/internal/model"
	"github.com/sells-group/brand-seo/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored products to xlsx or csv",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		format, _ := cmd.Flags().GetString("format")
		if format != "xlsx" && format != "csv" {
			return eris.Errorf("export: unsupported format %q (want xlsx or csv)", format)
		}
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = "products." + format
		}

		st, err := openStore(ctx, "export")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		brandName, _ := cmd.Flags().GetString("brand")
		limit, _ := cmd.Flags().GetInt("limit")

		records, err := st.RecentProducts(ctx, store.ProductFilter{Brand: brandName, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "export")
		}
		cols, err := st.ProductColumns(ctx)
		if err != nil {
			return eris.Wrap(err, "export")
		}
		cols = export.OrderColumns(cols)

		switch format {
		case "xlsx":
			err = export.WriteXLSX(output, cols, records)
		case "csv":
			err = writeCSVFile(output, cols, records)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Wrote %d products to %s\n", len(records), output)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "xlsx", "output format: xlsx or csv")
	exportCmd.Flags().String("output", "", "output path (default products.<format>)")
	exportCmd.Flags().String("brand", "", "only products of this brand")
	exportCmd.Flags().Int("limit", 10000, "max number of products to export")
	rootCmd.AddCommand(exportCmd)
}

func writeCSVFile(path string, cols []string, records []model.ProductRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := export.WriteCSV(f, cols, records); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}
