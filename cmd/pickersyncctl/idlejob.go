package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"
)

// idleJob is a stand-in for an unrelated device-idle maintenance task (a
// thumbnail cleanup sweep, a vacuum) that touches the same picker database
// as syncAllMediaFromLocalProvider. It shares the controller's
// idle-maintenance semaphore by value, demonstrating that the two cannot
// run concurrently and corrupt each other's writes.
type idleJob struct {
	sem    *semaphore.Weighted
	logger *slog.Logger
}

func newIdleJob(sem *semaphore.Weighted, logger *slog.Logger) *idleJob {
	return &idleJob{sem: sem, logger: logger}
}

// Run acquires the shared idle-maintenance lock and simulates a brief
// maintenance sweep.
func (j *idleJob) Run(ctx context.Context) error {
	if err := j.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire idle-maintenance lock: %w", err)
	}
	defer j.sem.Release(1)

	j.logger.Info("idle maintenance sweep running")

	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}

	j.logger.Info("idle maintenance sweep complete")

	return nil
}

func newIdleJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "idle-job",
		Short:  "Run the demo idle-maintenance job that shares the sync lock",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			job := newIdleJob(cc.idleSem, cc.logger)

			return job.Run(cmd.Context())
		},
	}
}
