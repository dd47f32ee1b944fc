package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "superadmin",
		Short: "Tenant provisioning and lifecycle administration",
	}
	cmd.AddCommand(
		newProvisionCmd(),
		newSetStatusCmd(),
		newListCmd(),
		newCreateAdminCmd(),
	)
	return cmd
}

func execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
