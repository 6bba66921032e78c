package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vetrina/vetrina/internal/ordereditor/draftcache"
	"github.com/vetrina/vetrina/pkg/api"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List, create and submit orders",
}

var ordersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your orders (admins see every order)",
	RunE: func(cmd *cobra.Command, args []string) error {
		orders, err := newClient().Orders(cmd.Context())
		if err != nil {
			return err
		}
		drafts := map[int64]bool{}
		if storage, err := draftcache.OpenSQLite(GetConfig().DraftFile); err == nil {
			ids, _ := draftcache.New(storage).ModifiedOrders()
			for _, id := range ids {
				drafts[id] = true
			}
			_ = storage.Close()
		}
		if jsonOutput {
			return printJSON(cmd, orders)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCATALOG\tSTATUS\tTOTAL\tUPDATED\t")
		for _, o := range orders {
			status := o.Status
			if drafts[o.ID] {
				status += " (unsaved edits)"
			}
			fmt.Fprintf(w, "%d\t%d\t%s\t%.2f\t%s\t\n", o.ID, o.CatalogID, status, o.Total, o.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var createCatalogID int64

var ordersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Start a draft order on a catalog",
	Long: `Start a draft order on a catalog.

Example:
  vetrina orders create --catalog 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if createCatalogID <= 0 {
			return fmt.Errorf("--catalog is required")
		}
		o, err := newClient().CreateOrder(cmd.Context(), createCatalogID)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, o)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created order %d\n", o.ID)
		return nil
	},
}

func statusCmd(use, short, status string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <orderId>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "order")
			if err != nil {
				return err
			}
			o, err := newClient().SetOrderStatus(cmd.Context(), id, status)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd, o)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %d is %s\n", o.ID, o.Status)
			return nil
		},
	}
}

func init() {
	ordersCreateCmd.Flags().Int64Var(&createCatalogID, "catalog", 0, "Catalog id")
	ordersCmd.AddCommand(
		ordersListCmd,
		ordersCreateCmd,
		statusCmd("submit", "Submit a draft order", api.OrderStatusSubmitted),
		statusCmd("reopen", "Move a submitted order back to draft (admin)", api.OrderStatusDraft),
	)
	rootCmd.AddCommand(ordersCmd)
}
