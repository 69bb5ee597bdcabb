package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a media sync cycle",
	}

	cmd.AddCommand(newSyncAllCmd())
	cmd.AddCommand(newSyncAlbumCmd())

	return cmd
}

func newSyncAllCmd() *cobra.Command {
	var localOnly bool

	cmd := &cobra.Command{
		Use:   "all",
		Short: "Sync all local media, then all cloud media if a provider is active",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			if localOnly {
				if err := cc.controller.SyncAllMediaFromLocalProvider(cmd.Context()); err != nil {
					return fmt.Errorf("sync local media: %w", err)
				}

				fmt.Println("local media sync complete")

				return nil
			}

			if err := cc.controller.SyncAllMedia(cmd.Context()); err != nil {
				return fmt.Errorf("sync all media: %w", err)
			}

			fmt.Println("media sync complete")

			return nil
		},
	}

	cmd.Flags().BoolVar(&localOnly, "local-only", false, "sync only the local provider")

	return cmd
}

func newSyncAlbumCmd() *cobra.Command {
	var isLocal bool

	cmd := &cobra.Command{
		Use:   "album <album-id>",
		Short: "Sync a single album's media (always a full re-enumeration)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			if err := cc.controller.SyncAlbumMedia(cmd.Context(), args[0], isLocal); err != nil {
				return fmt.Errorf("sync album media: %w", err)
			}

			fmt.Printf("album %s sync complete\n", args[0])

			return nil
		},
	}

	cmd.Flags().BoolVar(&isLocal, "local", false, "sync against the local provider instead of the active cloud provider")

	return cmd
}
