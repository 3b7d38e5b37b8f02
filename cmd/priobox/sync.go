package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nhle/priobox/internal/model"
	appsync "github.com/nhle/priobox/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize folders and messages once",
	Long: `Synchronize the folder list and the inbox of one or every account.
With --folder only that folder is fetched; with --all-folders every
selectable folder is fetched.`,
	RunE: withApp(runSync),
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the periodic sync job until interrupted",
	RunE:  withApp(runDaemon),
}

func init() {
	rootCmd.AddCommand(syncCmd, daemonCmd)

	syncCmd.Flags().StringP("account", "a", "", "account ID or email (default: every account)")
	syncCmd.Flags().StringP("folder", "f", "", "sync only this folder")
	syncCmd.Flags().Bool("all-folders", false, "sync every selectable folder")
	syncCmd.MarkFlagsMutuallyExclusive("folder", "all-folders")
}

func runSync(cmd *cobra.Command, _ []string, a *app) error {
	ctx := cmd.Context()
	ref, _ := cmd.Flags().GetString("account")
	folder, _ := cmd.Flags().GetString("folder")
	allFolders, _ := cmd.Flags().GetBool("all-folders")

	var accounts []model.Account
	if ref != "" {
		account, err := a.resolveAccount(ctx, ref)
		if err != nil {
			return err
		}
		accounts = []model.Account{account}
	} else {
		var err error
		if accounts, err = a.store.ListAccounts(ctx); err != nil {
			return err
		}
	}
	if len(accounts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No accounts configured.")
		return nil
	}

	var errs []error
	for _, account := range accounts {
		var err error
		switch {
		case allFolders:
			err = a.orch.SyncAccount(ctx, account)
		case folder != "":
			err = a.orch.SyncFolder(ctx, account, folder)
		default:
			err = a.orch.SyncInbox(ctx, account)
		}
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", account.EmailAddress, err)
			errs = append(errs, fmt.Errorf("%s: %w", account.EmailAddress, err))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: synced\n", account.EmailAddress)
	}
	return errors.Join(errs...)
}

func runDaemon(cmd *cobra.Command, _ []string, a *app) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	job := a.job()
	logger.Info("daemon started", "interval", seconds(cfg.Sync.IntervalSec))

	// SIGHUP forces an immediate tick.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				job.Trigger()
			}
		}
	}()

	err := job.Run(ctx)
	printStatuses(cmd, job.Statuses())
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("daemon stopped")
	return nil
}

func printStatuses(cmd *cobra.Command, statuses []appsync.SyncStatus) {
	if len(statuses) == 0 {
		return
	}
	t := newTable("ACCOUNT", "STATE", "LAST SYNC", "NOTIFIED", "ERROR")
	for _, st := range statuses {
		last := "never"
		if !st.LastSync.IsZero() {
			last = st.LastSync.Format("2006-01-02 15:04:05")
		}
		errText := ""
		if st.Error != nil {
			errText = st.Error.Error()
		}
		t.Row(st.EmailAddress, st.State.String(), last, strconv.Itoa(st.Notified), errText)
	}
	_ = printTable(cmd.OutOrStdout(), t)
}
