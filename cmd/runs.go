package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/moses-scraper/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect scraping runs",
	}
	cmd.AddCommand(newRunsListCmd())
	cmd.AddCommand(newRunsShowCmd())
	return cmd
}

func newRunsListCmd() *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent scraping runs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter *store.RunStatus
			if status != "" {
				s := store.RunStatus(strings.ToLower(status))
				if !s.Valid() {
					return fmt.Errorf("invalid --status %q", status)
				}
				filter = &s
			}
			if limit <= 0 {
				return errors.New("--limit must be > 0")
			}
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			a, err := e.App(cmd.Context())
			if err != nil {
				return err
			}
			runs, err := a.Runs().List(cmd.Context(), filter, limit, 0)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			return printRuns(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (in_progress, completed, failed)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one scraping run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			a, err := e.App(cmd.Context())
			if err != nil {
				return err
			}
			run, err := a.Runs().Get(cmd.Context(), id)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("run %d not found", id)
			}
			if err != nil {
				return fmt.Errorf("get run: %w", err)
			}
			return printRun(cmd.OutOrStdout(), run)
		},
	}
}

func printRuns(w io.Writer, runs []store.ScrapingRun) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSTARTED\tTOTAL\tOK\tFAILED\tSKIPPED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, r.Status, r.StartedAt.Format(time.RFC3339), r.Total, r.Successful, r.Failed, r.Skipped)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write runs: %w", err)
	}
	return nil
}

func printRun(w io.Writer, r store.ScrapingRun) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%d\n", r.ID)
	fmt.Fprintf(tw, "key:\t%s\n", r.Key)
	fmt.Fprintf(tw, "status:\t%s\n", r.Status)
	fmt.Fprintf(tw, "started:\t%s\n", r.StartedAt.Format(time.RFC3339))
	if r.CompletedAt != nil {
		fmt.Fprintf(tw, "completed:\t%s\n", r.CompletedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(tw, "progress:\t%d/%d\n", r.Completed(), r.Total)
	fmt.Fprintf(tw, "successful:\t%d\n", r.Successful)
	fmt.Fprintf(tw, "failed:\t%d\n", r.Failed)
	fmt.Fprintf(tw, "skipped:\t%d\n", r.Skipped)
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}
