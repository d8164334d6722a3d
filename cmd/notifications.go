package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesm/pr-watch/internal/models"
	"github.com/wesm/pr-watch/internal/notify"
)

var (
	notificationsDeliver bool
	notificationsSince   time.Duration
)

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "List notifications",
	Long: `List notifications that have not been shown yet. With --deliver they are
printed and marked as shown. With --since every notification created in that
window is listed, shown or not.

Examples:
  pr-watch notifications
  pr-watch notifications --deliver
  pr-watch notifications --since 24h`,
	Args: cobra.NoArgs,
	RunE: runNotifications,
}

func init() {
	notificationsCmd.Flags().BoolVar(&notificationsDeliver, "deliver", false, "Print pending notifications and mark them shown")
	notificationsCmd.Flags().DurationVar(&notificationsSince, "since", 0, "List all notifications created within this window")
	notificationsCmd.MarkFlagsMutuallyExclusive("deliver", "since")
}

func runNotifications(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	out := cmd.OutOrStdout()

	if notificationsDeliver {
		shown, err := notify.Deliver(ctx, database, logPresenter(out))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d notifications delivered\n", shown)
		return nil
	}

	var list []*models.Notification
	if notificationsSince > 0 {
		list, err = database.ListNotificationsSince(ctx, time.Now().Add(-notificationsSince))
	} else {
		list, err = database.ListUndisplayedNotifications(ctx)
	}
	if err != nil {
		return err
	}
	for _, n := range list {
		printNotification(out, n)
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "No notifications")
	}
	return nil
}

// logPresenter prints each notification to w
func logPresenter(w io.Writer) notify.Presenter {
	return notify.PresenterFunc(func(ctx context.Context, n *models.Notification) error {
		printNotification(w, n)
		return nil
	})
}

func printNotification(w io.Writer, n *models.Notification) {
	marker := " "
	if n.Toasted {
		marker = "*"
	}
	fmt.Fprintf(w, "%s %s  [%s] %s\n", marker, n.TimeOccurred.Local().Format(time.DateTime), n.Type, n.Title)
	if n.Result != "" {
		fmt.Fprintf(w, "    %s\n", n.Result)
	}
	url := n.DetailsURL
	if url == "" {
		url = n.HTMLURL
	}
	if url != "" {
		fmt.Fprintf(w, "    %s\n", url)
	}
}
