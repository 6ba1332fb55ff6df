package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/persistorai/pathmerge/internal/store"
)

var errNoAuditStore = errors.New("the audit log requires DATABASE_URL")

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect and prune the merge audit log",
	}

	cmd.AddCommand(newAuditListCmd(), newAuditPurgeCmd())

	return cmd
}

func newAuditListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list RUN_ID",
		Short: "List the merge reports of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}

			return runAuditList(cmd.Context(), cmd.OutOrStdout(), runID)
		},
	}
}

func newAuditPurgeCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete audit entries older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}

			return runAuditPurge(cmd.Context(), cmd.OutOrStdout(), days)
		},
	}

	cmd.Flags().IntVar(&days, "days", 90, "Retention period in days")

	return cmd
}

func openAudit(ctx context.Context) (*backend, error) {
	b, err := openBackend(ctx, false, "")
	if err != nil {
		return nil, err
	}

	if b.audit == nil {
		b.Close(ctx)
		return nil, errNoAuditStore
	}

	return b, nil
}

func runAuditList(ctx context.Context, w io.Writer, runID uuid.UUID) error {
	b, err := openAudit(ctx)
	if err != nil {
		return err
	}
	defer b.Close(context.WithoutCancel(ctx))

	entries, err := b.audit.ListRun(ctx, runID)
	if err != nil {
		return err
	}

	return output(w, entries, []string{"DOCUMENT", "STATUS", "REPLACED", "ERROR"}, func() [][]string {
		return auditRows(entries)
	})
}

func auditRows(entries []store.AuditEntry) [][]string {
	rows := make([][]string, 0, len(entries))

	for _, e := range entries {
		replaced := "-"
		if e.Report != nil {
			replaced = strconv.Itoa(e.Report.ReplacedTotal())
		}

		rows = append(rows, []string{e.Document, e.Status, replaced, e.Error})
	}

	return rows
}

func runAuditPurge(ctx context.Context, w io.Writer, days int) error {
	b, err := openAudit(ctx)
	if err != nil {
		return err
	}
	defer b.Close(context.WithoutCancel(ctx))

	n, err := b.audit.PurgeOldEntries(ctx, days)
	if err != nil {
		return err
	}

	log.WithField("deleted", n).Info("audit log purged")

	return output(w, map[string]int{"deleted": n}, []string{"DELETED"}, func() [][]string {
		return [][]string{{strconv.Itoa(n)}}
	})
}
