package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDiagnoseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Dump cloud provider state, available providers, and collection info",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			allowlist := cc.holder.Config().CloudPicker.AllowedProviders

			fmt.Print(cc.controller.Dump(cmd.Context(), allowlist, cc.registry))

			return nil
		},
	}
}
