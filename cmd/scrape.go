package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/moses-scraper/internal/catalog"
	"github.com/JakeFAU/moses-scraper/internal/config"
)

type scrapeFlags struct {
	csv    string
	limit  int
	force  bool
	dryRun bool
}

func newScrapeCmd() *cobra.Command {
	var flags scrapeFlags
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape every module listed in a MOSES CSV export",
		Long: `Starts a scraping run for the modules in --csv. Each module is fetched,
parsed and stored as part of a new snapshot. The command refuses to start
while another run is in progress unless --force is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScrape(cmd, flags)
		},
	}
	cmd.Flags().StringVar(&flags.csv, "csv", "", "module list exported from MOSES (required)")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "scrape only the first N valid modules (overrides scraper.limit)")
	cmd.Flags().BoolVar(&flags.force, "force", false, "start even if another run is in progress")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "keep results in memory instead of the database")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}

func runScrape(cmd *cobra.Command, flags scrapeFlags) error {
	ctx := cmd.Context()
	e, err := resolveEnv(ctx)
	if err != nil {
		return err
	}
	if flags.dryRun {
		e.cfg.Storage.Backend = config.BackendMemory
	}
	if flags.limit < 0 {
		return errors.New("--limit must be >= 0")
	}
	limit := e.cfg.Scraper.Limit
	if cmd.Flags().Changed("limit") {
		limit = flags.limit
	}

	a, err := e.App(ctx)
	if err != nil {
		return err
	}
	loader, err := a.Loader()
	if err != nil {
		return err
	}
	res, err := loader.LoadFile(flags.csv, catalog.Options{Limit: limit})
	if err != nil {
		return fmt.Errorf("load module list: %w", err)
	}
	if len(res.Refs) == 0 {
		return fmt.Errorf("no valid modules in %s (%d rows, %d invalid)", flags.csv, res.Total, res.Invalid)
	}

	opsCtx, stopOps := context.WithCancel(ctx)
	defer stopOps()
	opsDone := make(chan error, 1)
	if e.cfg.Server.Enabled {
		go func() { opsDone <- a.ServeOps(opsCtx) }()
	} else {
		opsDone <- nil
	}

	run, scrapeErr := a.Scrape(ctx, res.Refs, flags.force)
	stopOps()
	if err := <-opsDone; err != nil {
		a.Logger().Warn("ops server stopped with error", zap.Error(err))
	}
	if scrapeErr != nil && run.ID == 0 {
		return scrapeErr
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %d (%s) %s\n", run.ID, run.Key, run.Status)
	fmt.Fprintf(out, "  total:      %d\n", run.Total)
	fmt.Fprintf(out, "  successful: %d\n", run.Successful)
	fmt.Fprintf(out, "  failed:     %d\n", run.Failed)
	fmt.Fprintf(out, "  skipped:    %d\n", run.Skipped)
	if res.Invalid > 0 {
		fmt.Fprintf(out, "  invalid csv rows ignored: %d\n", res.Invalid)
	}
	return scrapeErr
}
