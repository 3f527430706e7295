package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "ourslists",
		Short:         "OursLists - shared household chores, reminders, groceries and projects",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("OURSLISTS_CONFIG"), "path to YAML config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(rescheduleCmd(&configPath))
	rootCmd.AddCommand(backupCmd(&configPath))
	rootCmd.AddCommand(vapidKeysCmd())

	return rootCmd
}
