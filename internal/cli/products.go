package cli

import (
	"bytes"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vetrina/vetrina/internal/vetrinasrv/products"
	"github.com/vetrina/vetrina/pkg/articlecode"
)

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Search and import products",
}

var (
	productsBrand  int64
	productsDryRun bool
)

var productsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search products by article or variant code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		candidates, err := newClient().SearchProducts(cmd.Context(), args[0], productsBrand)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, candidates)
		}
		printCandidates(cmd.OutOrStdout(), candidates)
		return nil
	},
}

var productsImportCmd = &cobra.Command{
	Use:   "import <file.xlsx>",
	Short: "Create or update a brand's products from a spreadsheet",
	Long: `Create or update a brand's products from the first sheet of an .xlsx workbook with the columns
article_code, variant_code, size, size_group, price and optionally retail_price.
With --dry-run the workbook is only checked locally.

Example:
  vetrina products import --brand 3 spring.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workbook, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if productsDryRun {
			rows, skipped, err := products.ParseWorkbook(bytes.NewReader(workbook))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d rows ready to import\n", len(rows))
			for _, s := range skipped {
				fmt.Fprintf(out, "Row %d skipped: %s\n", s.Row, s.Reason)
			}
			return nil
		}
		if productsBrand <= 0 {
			return fmt.Errorf("--brand is required")
		}
		rsp, err := newClient().ImportProducts(cmd.Context(), productsBrand, workbook)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, rsp)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created %d, updated %d products\n", rsp.Created, rsp.Updated)
		for _, s := range rsp.Skipped {
			fmt.Fprintf(out, "Row %d skipped: %s\n", s.Row, s.Reason)
		}
		return nil
	},
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize <code>...",
	Short: "Print article codes the way the server stores them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, code := range args {
			n := articlecode.Normalize(code)
			if n == "" {
				n = "(invalid)"
			}
			fmt.Fprintf(w, "%s\t%s\t\n", code, n)
		}
		return w.Flush()
	},
}

func init() {
	productsSearchCmd.Flags().Int64Var(&productsBrand, "brand", 0, "Brand id")
	productsImportCmd.Flags().Int64Var(&productsBrand, "brand", 0, "Brand id")
	productsImportCmd.Flags().BoolVar(&productsDryRun, "dry-run", false, "Only check the workbook")
	productsCmd.AddCommand(productsSearchCmd, productsImportCmd)
	rootCmd.AddCommand(productsCmd, normalizeCmd)
}
