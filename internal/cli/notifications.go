package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/vetrina/vetrina/pkg/api"
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notif"},
	Short:   "Read and follow notifications",
}

var notificationsPage int64

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rsp, err := newClient().Notifications(cmd.Context(), notificationsPage)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, rsp)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\t\tTYPE\tDATE\tMESSAGE\t")
		for _, n := range rsp.Notifications {
			printNotification(w, n)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		p := rsp.Pagination
		fmt.Fprintf(cmd.OutOrStdout(), "Page %d of %d (%d notifications)\n", p.Current, p.Pages, p.Total)
		return nil
	},
}

func printNotification(w io.Writer, n api.Notification) {
	unread := ""
	if !n.Read {
		unread = "●"
	}
	fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t\n", n.ID, unread, n.Type, n.CreatedAt.Format("2006-01-02 15:04"), n.Message)
}

var notificationsUnreadCmd = &cobra.Command{
	Use:   "unread",
	Short: "Print the number of unread notifications",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := newClient().UnreadCount(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, api.CountRsp{Count: n})
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Mark a notification as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "notification")
		if err != nil {
			return err
		}
		return newClient().MarkRead(cmd.Context(), id)
	},
}

var notificationsReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification as read",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return newClient().MarkAllRead(cmd.Context())
	},
}

var notificationsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print notifications as they arrive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, err := newClient().DialNotifications(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()
		return watch(ctx, conn, cmd.OutOrStdout())
	},
}

// watch prints every notification frame until the server closes the stream or ctx ends.
func watch(ctx context.Context, conn *websocket.Conn, out io.Writer) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for {
		var n api.Notification
		if err := conn.ReadJSON(&n); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if jsonOutput {
			b, err := json.Marshal(n)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			continue
		}
		printNotification(w, n)
		if err := w.Flush(); err != nil {
			return err
		}
	}
}

func init() {
	notificationsListCmd.Flags().Int64Var(&notificationsPage, "page", 1, "Page number")
	notificationsCmd.AddCommand(notificationsListCmd, notificationsUnreadCmd, notificationsReadCmd,
		notificationsReadAllCmd, notificationsWatchCmd)
	rootCmd.AddCommand(notificationsCmd)
}
