package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nhle/priobox/internal/model"
)

var foldersCmd = &cobra.Command{
	Use:   "folders <account>",
	Short: "List the cached folders of an account",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runFolders),
}

var messagesCmd = &cobra.Command{
	Use:   "messages <account>",
	Short: "List cached messages, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runMessages),
}

var readCmd = &cobra.Command{
	Use:   "read <message-id>",
	Short: "Mark a cached message as read or unread",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runRead),
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "List VIP notifications",
	RunE:  withApp(runNotifications),
}

func init() {
	rootCmd.AddCommand(foldersCmd, messagesCmd, readCmd, notificationsCmd)

	foldersCmd.Flags().Bool("refresh", false, "fetch the folder list from the server first")

	messagesCmd.Flags().StringP("folder", "f", model.InboxServerID, "folder server ID")
	messagesCmd.Flags().Bool("vip", false, "show the VIP inbox instead of a folder")

	readCmd.Flags().Bool("unread", false, "mark as unread instead")

	notificationsCmd.Flags().Bool("unread", false, "show only unread notifications")
	notificationsCmd.Flags().Bool("mark-read", false, "mark the listed notifications as read")
}

func runFolders(cmd *cobra.Command, args []string, a *app) error {
	ctx := cmd.Context()
	account, err := a.resolveAccount(ctx, args[0])
	if err != nil {
		return err
	}

	if refresh, _ := cmd.Flags().GetBool("refresh"); refresh {
		if err := a.orch.SyncFolders(ctx, account); err != nil {
			return err
		}
	}

	folders, err := a.store.ListFolders(ctx, account.ID)
	if err != nil {
		return err
	}
	if len(folders) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No folders cached. Run with --refresh or sync first.")
		return nil
	}

	t := newTable("NAME", "SERVER ID", "SELECTABLE")
	for _, f := range folders {
		t.Row(f.DisplayName, f.ServerID, strconv.FormatBool(f.Selectable))
	}
	return printTable(cmd.OutOrStdout(), t)
}

func runMessages(cmd *cobra.Command, args []string, a *app) error {
	ctx := cmd.Context()
	account, err := a.resolveAccount(ctx, args[0])
	if err != nil {
		return err
	}

	folder, _ := cmd.Flags().GetString("folder")
	vipOnly, _ := cmd.Flags().GetBool("vip")

	var msgs []model.Message
	if vipOnly {
		msgs, err = a.orch.VipInbox(ctx, account.ID)
	} else {
		msgs, err = a.orch.FolderMessages(ctx, account.ID, folder)
	}
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No messages.")
		return nil
	}

	t := newTable("ID", "", "DATE", "FROM", "SUBJECT")
	for _, m := range msgs {
		t.Row(strconv.FormatInt(m.ID, 10), marks(m), m.Time().Format("2006-01-02 15:04"), m.Sender, m.Subject)
	}
	return printTable(cmd.OutOrStdout(), t)
}

// marks renders the unread and VIP markers of a message row.
func marks(m model.Message) string {
	s := []byte("  ")
	if !m.IsRead {
		s[0] = '*'
	}
	if m.IsVip {
		s[1] = 'V'
	}
	return string(s)
}

func runRead(cmd *cobra.Command, args []string, a *app) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid message id %q", args[0])
	}
	unread, _ := cmd.Flags().GetBool("unread")

	if err := a.orch.SetMessageReadState(cmd.Context(), id, !unread); err != nil {
		return err
	}

	state := "read"
	if unread {
		state = "unread"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Message %d marked %s\n", id, state)
	return nil
}

func runNotifications(cmd *cobra.Command, _ []string, a *app) error {
	ctx := cmd.Context()
	unreadOnly, _ := cmd.Flags().GetBool("unread")
	markRead, _ := cmd.Flags().GetBool("mark-read")

	notifications, err := a.store.ListNotifications(ctx, unreadOnly)
	if err != nil {
		return err
	}
	if len(notifications) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No notifications.")
		return nil
	}

	t := newTable("WHEN", "FROM", "TITLE", "TEXT")
	for _, n := range notifications {
		t.Row(n.CreatedAt.Format("2006-01-02 15:04"), n.Sender, n.Title, n.Text)
	}
	if err := printTable(cmd.OutOrStdout(), t); err != nil {
		return err
	}

	if markRead {
		for _, n := range notifications {
			if n.Read {
				continue
			}
			if err := a.store.MarkNotificationRead(ctx, n.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
