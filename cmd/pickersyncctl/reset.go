package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear all synced media and cursors for local and cloud providers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return fmt.Errorf("refusing to reset without --yes")
			}

			cc := mustCLIContext(cmd.Context())

			if err := cc.controller.ResetAllMedia(cmd.Context()); err != nil {
				return fmt.Errorf("reset all media: %w", err)
			}

			fmt.Println("reset complete")

			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm the destructive reset")

	return cmd
}
