package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vetrina/vetrina/internal/ordereditor"
	"github.com/vetrina/vetrina/internal/ordereditor/draftcache"
	"github.com/vetrina/vetrina/pkg/api"
	"github.com/vetrina/vetrina/pkg/ordering"
)

// orderCmd edits the lines of one order. Edits are kept in the local draft file until "order save".
var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Edit the lines of an order",
	Long: `Edit the lines of an order. Every edit is kept in a local draft until it is saved or discarded.
Lines are numbered from 1 as shown by "order show".

Example:
  vetrina order add 42 --article AB/12 --variant 001 --group 7 --price 10
  vetrina order qty 42 1 S=2 M=1
  vetrina order save 42`,
}

// withEditor parses the order id in args[0], opens an editor on it and runs fn.
func withEditor(fn func(cmd *cobra.Command, e *ordereditor.Editor, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "order")
		if err != nil {
			return err
		}
		e, closer, err := openEditor(cmd, id)
		if err != nil {
			return err
		}
		defer closer()
		return fn(cmd, e, args[1:])
	}
}

func lineIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid line number %q", s)
	}
	return n - 1, nil
}

var orderShowCmd = &cobra.Command{
	Use:   "show <orderId>",
	Short: "Show the lines of an order, including unsaved edits",
	Args:  cobra.ExactArgs(1),
	RunE: withEditor(func(cmd *cobra.Command, e *ordereditor.Editor, args []string) error {
		return printLines(cmd, e)
	}),
}

type linesOutput struct {
	Order   api.Order            `json:"order"`
	Lines   []ordering.DraftLine `json:"lines"`
	Total   float64              `json:"total"`
	Unsaved bool                 `json:"unsaved"`
}

func printLines(cmd *cobra.Command, e *ordereditor.Editor) error {
	o, _ := e.Order()
	lines := e.Lines()
	if jsonOutput {
		return printJSON(cmd, linesOutput{Order: o, Lines: lines, Total: e.Total(), Unsaved: e.Dirty()})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Order %d (%s)\n", o.ID, o.Status)
	if e.Dirty() {
		fmt.Fprintln(out, "Unsaved edits; run \"vetrina order save\" or \"vetrina order discard\".")
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tARTICLE\tVARIANT\tGROUP\tPRICE\tSIZES\tTOTAL\t")
	for i, l := range lines {
		article := l.ArticleCode
		if l.FromDatabase {
			article += " *"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f\t%s\t%.2f\t\n", i+1, article, l.VariantCode, l.SizeGroupName, l.Price,
			sizeColumn(e, l), ordering.LineTotal(l))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Total: %.2f\n", e.Total())
	return nil
}

// sizeColumn lists the quantities in size order, e.g. "S:2 M:0 L:0".
func sizeColumn(e *ordereditor.Editor, l ordering.DraftLine) string {
	var parts []string
	for _, s := range e.GroupSizes(l.SizeGroupID) {
		parts = append(parts, fmt.Sprintf("%s:%d", s.Name, l.SizesQuantities[s.ID]))
	}
	return strings.Join(parts, " ")
}

var (
	lineArticle string
	lineVariant string
	lineGroup   int64
	linePrice   float64
	lineChoice  int
	lineConfirm bool
)

var orderAddCmd = &cobra.Command{
	Use:   "add <orderId>",
	Short: "Add a line to an order",
	Args:  cobra.ExactArgs(1),
	RunE: withEditor(func(cmd *cobra.Command, e *ordereditor.Editor, args []string) error {
		i, err := e.AddLine()
		if err != nil {
			return err
		}
		if err := applyLineFlags(cmd, e, i); err != nil {
			return err
		}
		return printLines(cmd, e)
	}),
}

var orderSetCmd = &cobra.Command{
	Use:   "set <orderId> <line>",
	Short: "Change the article, variant, size group or price of a line",
	Args:  cobra.ExactArgs(2),
	RunE: withEditor(func(cmd *cobra.Command, e *ordereditor.Editor, args []string) error {
		i, err := lineIndex(args[0])
		if err != nil {
			return err
		}
		if err := applyLineFlags(cmd, e, i); err != nil {
			return err
		}
		return printLines(cmd, e)
	}),
}

func applyLineFlags(cmd *cobra.Command, e *ordereditor.Editor, i int) error {
	flags := cmd.Flags()
	if flags.Changed("article") {
		if err := e.SetArticle(i, lineArticle); err != nil {
			return err
		}
	}
	if flags.Changed("variant") {
		if err := e.SetVariant(i, lineVariant); err != nil {
			return err
		}
	}
	if flags.Changed("group") {
		if err := selectGroup(cmd, e, i, lineGroup); err != nil {
			return err
		}
	}
	if flags.Changed("price") {
		if err := e.SetPrice(i, linePrice); err != nil {
			return err
		}
	}
	return nil
}

func selectGroup(cmd *cobra.Command, e *ordereditor.Editor, i int, groupID int64) error {
	o, _ := e.Order()
	name := ""
	groups, err := newClient().SizeGroups(cmd.Context(), o.BrandID)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if g.ID == groupID {
			name = g.Name
		}
	}
	err = e.SelectSizeGroup(cmd.Context(), i, groupID, name, lineConfirm)
	if errors.Is(err, ordereditor.ErrConfirmationRequired) {
		return fmt.Errorf("%w; pass --yes to discard them", err)
	}
	return err
}

var orderPickCmd = &cobra.Command{
	Use:   "pick <orderId> <line> <query>",
	Short: "Search the brand's products and fill a line from a match",
	Long: `Search the products of the order's brand and fill the line from a match. The line's article, variant
and size group are then locked. With several matches, choose one with --choice.`,
	Args: cobra.ExactArgs(3),
	RunE: withEditor(func(cmd *cobra.Command, e *ordereditor.Editor, args []string) error {
		i, err := lineIndex(args[0])
		if err != nil {
			return err
		}
		o, _ := e.Order()
		candidates, err := newClient().SearchProducts(cmd.Context(), args[1], o.BrandID)
		if err != nil {
			return err
		}
		choice := lineChoice
		if choice == 0 && len(candidates) == 1 {
			choice = 1
		}
		if choice < 1 || choice > len(candidates) {
			printCandidates(cmd.OutOrStdout(), candidates)
			if len(candidates) == 0 {
				return fmt.Errorf("no product matches %q", args[1])
			}
			return fmt.Errorf("choose a product with --choice 1..%d", len(candidates))
		}
		if err := e.ApplySuggestion(cmd.Context(), i, candidates[choice-1]); err != nil {
			return err
		}
		return printLines(cmd, e)
	}),
}

func printCandidates(out io.Writer, candidates []api.ProductCandidate) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tARTICLE\tVARIANT\tGROUP\tPRICE\t")
	for i, c := range candidates {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f\t\n", i+1, c.ArticleCode, c.VariantCode, c.SizeGroupName, c.Price)
	}
	_ = w.Flush()
}

var orderQtyCmd = &cobra.Command{
	Use:   "qty <orderId> <line> <size>=<quantity>...",
	Short: "Set quantities of a line by size name",
	Args:  cobra.MinimumNArgs(3),
	RunE: withEditor(func(cmd *cobra.Command, e *ordereditor.Editor, args []string) error {
		i, err := lineIndex(args[0])
		if err != nil {
			return err
		}
		lines := e.Lines()
		if i >= len(lines) {
			return fmt.Errorf("%w: %d", ordereditor.ErrNoSuchLine, i+1)
		}
		groupSizes := e.GroupSizes(lines[i].SizeGroupID)
		for _, arg := range args[1:] {
			name, value, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("invalid quantity %q, expected size=quantity", arg)
			}
			qty, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid quantity %q", arg)
			}
			sizeID := int64(0)
			for _, s := range groupSizes {
				if strings.EqualFold(s.Name, name) {
					sizeID = s.ID
				}
			}
			if sizeID == 0 {
				return fmt.Errorf("%w: %s", ordereditor.ErrUnknownSize, name)
			}
			if err := e.SetQuantity(i, sizeID, qty); err != nil {
				return err
			}
		}
		return printLines(cmd, e)
	}),
}

var orderRemoveCmd = &cobra.Command{
	Use:   "remove <orderId> <line>",
	Short: "Remove a line",
	Args:  cobra.ExactArgs(2),
	RunE: withEditor(func(cmd *cobra.Command, e *ordereditor.Editor, args []string) error {
		i, err := lineIndex(args[0])
		if err != nil {
			return err
		}
		if err := e.RemoveLine(i); err != nil {
			return err
		}
		return printLines(cmd, e)
	}),
}

var orderSaveCmd = &cobra.Command{
	Use:   "save <orderId>",
	Short: "Save the draft to the server",
	Args:  cobra.ExactArgs(1),
	RunE: withEditor(func(cmd *cobra.Command, e *ordereditor.Editor, args []string) error {
		rsp, err := e.Save(cmd.Context())
		if err != nil {
			if rsp != nil {
				printSkipped(cmd.OutOrStdout(), rsp.Skipped)
			}
			return err
		}
		if jsonOutput {
			return printJSON(cmd, rsp)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %d rows\n", rsp.Saved)
		printSkipped(cmd.OutOrStdout(), rsp.Skipped)
		return printLines(cmd, e)
	}),
}

func printSkipped(out io.Writer, skipped []ordering.Skipped) {
	for _, s := range skipped {
		fmt.Fprintf(out, "Line %d not saved: %s\n", s.Index+1, s.Reason)
	}
}

var orderDiscardCmd = &cobra.Command{
	Use:   "discard <orderId>",
	Short: "Drop unsaved edits",
	Args:  cobra.ExactArgs(1),
	RunE: withEditor(func(cmd *cobra.Command, e *ordereditor.Editor, args []string) error {
		if err := e.Discard(cmd.Context()); err != nil {
			return err
		}
		return printLines(cmd, e)
	}),
}

var orderDraftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "List orders with unsaved edits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		storage, err := draftcache.OpenSQLite(GetConfig().DraftFile)
		if err != nil {
			return err
		}
		defer storage.Close()
		ids, err := draftcache.New(storage).ModifiedOrders()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, ids)
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{orderAddCmd, orderSetCmd} {
		c.Flags().StringVar(&lineArticle, "article", "", "Article code")
		c.Flags().StringVar(&lineVariant, "variant", "", "Variant code")
		c.Flags().Int64Var(&lineGroup, "group", 0, "Size group id")
		c.Flags().Float64Var(&linePrice, "price", 0, "Unit price")
		c.Flags().BoolVarP(&lineConfirm, "yes", "y", false, "Discard quantities when the size group changes")
	}
	orderPickCmd.Flags().IntVar(&lineChoice, "choice", 0, "Number of the match to use")

	orderCmd.AddCommand(orderShowCmd, orderAddCmd, orderSetCmd, orderPickCmd, orderQtyCmd, orderRemoveCmd,
		orderSaveCmd, orderDiscardCmd, orderDraftsCmd)
	rootCmd.AddCommand(orderCmd)
}
