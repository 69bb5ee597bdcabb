package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProviderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Inspect or change the active cloud provider",
	}

	cmd.AddCommand(newProviderGetCmd())
	cmd.AddCommand(newProviderSetCmd())

	return cmd
}

func newProviderGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the currently active cloud provider authority",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			authority := cc.cloudSt.GetCloudProvider()
			if authority == "" {
				fmt.Println("<no active cloud provider>")
				return nil
			}

			fmt.Println(authority)

			return nil
		},
	}
}

func newProviderSetCmd() *cobra.Command {
	var ignoreAllowlist bool

	cmd := &cobra.Command{
		Use:   "set <authority>",
		Short: "Set the active cloud provider (empty string clears it)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			authority := ""
			if len(args) > 0 {
				authority = args[0]
			}

			accepted, err := cc.cloudSt.SetCloudProvider(cmd.Context(), authority, ignoreAllowlist)
			if err != nil {
				return fmt.Errorf("set cloud provider: %w", err)
			}

			if !accepted {
				fmt.Println("rejected: provider disabled or not available")
				return nil
			}

			fmt.Println("cloud provider updated")

			return nil
		},
	}

	cmd.Flags().BoolVar(&ignoreAllowlist, "ignore-allowlist", false, "allow any registered provider, not just the configured allow-list")

	return cmd
}
