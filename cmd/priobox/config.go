package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/priobox/internal/model"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "config file:      %s\n", cfgFile)
		fmt.Fprintf(out, "database:         %s\n", cfg.Database.Path)
		fmt.Fprintf(out, "sync interval:    %s\n", seconds(cfg.Sync.IntervalSec))
		fmt.Fprintf(out, "max messages:     %d\n", cfg.Sync.MaxMessages)
		fmt.Fprintf(out, "parallel:         %d\n", cfg.Sync.MaxParallelAccounts)
		fmt.Fprintf(out, "vault backend:    %s\n", cfg.Vault.Backend)
		fmt.Fprintf(out, "desktop notify:   %t\n", cfg.Notify.Desktop)
		fmt.Fprintf(out, "log:              %s (%s)\n", cfg.Log.Level, cfg.Log.Format)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")

	if _, err := os.Stat(cfgFile); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfgFile)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := model.SaveConfig(cfgFile, model.DefaultAppConfig()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", cfgFile)
	return nil
}
