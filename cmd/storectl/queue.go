package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/supabros/bookstore/internal/config"
	"github.com/supabros/bookstore/internal/replication"
)

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and repair the replication queue",
	}
	cmd.AddCommand(queueListCmd())
	cmd.AddCommand(queueRequeueStaleCmd())
	return cmd
}

func openQueue() (*replication.Queue, error) {
	repCfg := config.LoadReplicationConfig()
	queue, err := replication.OpenQueue(repCfg.QueuePath)
	if err != nil {
		return nil, fmt.Errorf("open replication queue %s: %w", repCfg.QueuePath, err)
	}
	return queue, nil
}

func queueListCmd() *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued replication tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := openQueue()
			if err != nil {
				return err
			}
			defer queue.Close()

			tasks, err := queue.List(cmd.Context(), replication.TaskStatus(status), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tATTEMPTS\tNEXT TRY\tTARGET\tLAST ERROR")
			for _, t := range tasks {
				lastErr := ""
				if t.LastError != nil {
					lastErr = *t.LastError
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
					t.ID, t.Status, t.Attempts, t.NextTryAt.Format(time.RFC3339), targetDriver(t.Conn), lastErr)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only tasks in this status (pending, in_progress, failed, done)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum tasks to show")
	return cmd
}

// targetDriver hides the DSN, which usually carries credentials.
func targetDriver(conn string) string {
	if t, err := replication.ParseTarget(conn); err == nil {
		return t.Driver
	}
	return "?"
}

func queueRequeueStaleCmd() *cobra.Command {
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "requeue-stale",
		Short: "Return in_progress tasks abandoned by a dead worker to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := openQueue()
			if err != nil {
				return err
			}
			defer queue.Close()

			n, err := queue.ResetStale(cmd.Context(), grace)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %d task(s)\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&grace, "grace", time.Minute, "only tasks started longer ago than this")
	return cmd
}
