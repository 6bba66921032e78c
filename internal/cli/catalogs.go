package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var catalogsState string

var catalogsCmd = &cobra.Command{
	Use:   "catalogs",
	Short: "List catalogs",
	Long: `List catalogs. Clients see published catalogs; admins see all of them and may filter by --state
(draft, published or archived).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalogs, err := newClient().Catalogs(cmd.Context(), catalogsState)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, catalogs)
		}
		title := cases.Title(language.English)
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tBRAND\tTYPE\tSEASON\tYEAR\tSTATE\tORDERS UNTIL\t")
		for _, c := range catalogs {
			until := "-"
			if c.OrderEnd != nil {
				until = *c.OrderEnd
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\t%s\t\n", c.ID, c.BrandName, c.Type, c.Season, c.Year, title.String(c.State), until)
		}
		return w.Flush()
	},
}

func init() {
	catalogsCmd.Flags().StringVar(&catalogsState, "state", "", "Filter by state (admin)")
	rootCmd.AddCommand(catalogsCmd)
}
