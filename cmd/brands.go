package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/brand-seo/internal/brand"
)

var brandsCmd = &cobra.Command{
	Use:   "brands",
	Short: "List configured brands",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("brands"); err != nil {
			return err
		}
		reg, err := brand.Load(cfg.Brands.File)
		if err != nil {
			return err
		}
		formatBrands(os.Stdout, reg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(brandsCmd)
}

func formatBrands(out io.Writer, reg *brand.Registry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tBRAND\tLISTINGS\tQUIRKS")
	for _, k := range reg.Keys() {
		b, err := reg.Get(k)
		if err != nil {
			continue
		}
		quirks := make([]string, 0, len(b.Quirks))
		for _, q := range b.Quirks.List() {
			quirks = append(quirks, string(q))
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", k, b.DisplayName, len(b.BaseURLs), strings.Join(quirks, ","))
	}
	_ = w.Flush()
}
