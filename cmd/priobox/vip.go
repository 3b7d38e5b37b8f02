package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var vipCmd = &cobra.Command{
	Use:   "vip",
	Short: "Manage VIP senders",
}

var vipToggleCmd = &cobra.Command{
	Use:   "toggle <account> <email>",
	Short: "Mark or unmark a sender as VIP",
	Args:  cobra.ExactArgs(2),
	RunE:  withApp(runVipToggle),
}

var vipListCmd = &cobra.Command{
	Use:   "list <account>",
	Short: "List the VIP senders of an account",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runVipList),
}

func init() {
	rootCmd.AddCommand(vipCmd)
	vipCmd.AddCommand(vipToggleCmd, vipListCmd)
}

func runVipToggle(cmd *cobra.Command, args []string, a *app) error {
	account, err := a.resolveAccount(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	isVip, err := a.orch.ToggleVip(cmd.Context(), account.ID, args[1])
	if err != nil {
		return err
	}
	if isVip {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now a VIP\n", args[1])
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is no longer a VIP\n", args[1])
	}
	return nil
}

func runVipList(cmd *cobra.Command, args []string, a *app) error {
	account, err := a.resolveAccount(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	senders, err := a.store.ListVipSenders(cmd.Context(), account.ID)
	if err != nil {
		return err
	}
	if len(senders) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No VIP senders.")
		return nil
	}

	t := newTable("EMAIL", "ADDED")
	for _, s := range senders {
		t.Row(s.EmailAddress, s.CreatedAt.Format("2006-01-02"))
	}
	return printTable(cmd.OutOrStdout(), t)
}
